// Copyright 2026 The Slotlist Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package slotlist

import "github.com/pkg/errors"

// The sentinel errors returned by List and Table operations. Callers match
// them with errors.Is; the returned errors carry additional context attached
// via errors.Wrapf.
//
// Key misses on Get and Delete are reported through an ok boolean rather
// than an error as they are an expected outcome of normal use.
var (
	// ErrAllocFailed indicates the allocator could not provide backing
	// storage. The operation that triggered the allocation is aborted and
	// the structure is left exactly as it was before the call.
	ErrAllocFailed = errors.New("slotlist: allocation failed")

	// ErrIndexOutOfRange indicates a logical or physical index outside the
	// valid bounds of the list, including attempts to delete the sentinel
	// slot or a slot that is not occupied.
	ErrIndexOutOfRange = errors.New("slotlist: index out of range")

	// ErrKeyExists is returned by Table.Insert when the key is already
	// present. The table is not modified.
	ErrKeyExists = errors.New("slotlist: key already exists")
)
