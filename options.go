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

// ListOption provides an interface to do work on a List while it is being
// created.
type ListOption[E any] interface {
	apply(l *List[E])
}

// Allocator specifies an interface for allocating and releasing the slot
// slab backing a List. The default allocator utilizes Go's builtin make()
// and allows the GC to reclaim memory.
//
// An allocator that cannot satisfy a request returns nil (or a short
// slice), which surfaces to the caller as ErrAllocFailed with the
// triggering operation aborted. If the allocator is manually managing
// memory then List.Close (or Table.Close) must be called in order to
// ensure FreeSlots is called.
type Allocator[E any] interface {
	// AllocSlots should return a slice equivalent to make([]Slot[E], n).
	AllocSlots(n int) []Slot[E]

	// FreeSlots can optionally release the memory associated with the
	// supplied slice that is guaranteed to have been allocated by
	// AllocSlots.
	FreeSlots(v []Slot[E])
}

type defaultAllocator[E any] struct{}

func (defaultAllocator[E]) AllocSlots(n int) []Slot[E] {
	return make([]Slot[E], n)
}

func (defaultAllocator[E]) FreeSlots(v []Slot[E]) {
}

type allocatorOption[E any] struct {
	alloc Allocator[E]
}

func (op allocatorOption[E]) apply(l *List[E]) {
	l.alloc = op.alloc
}

// WithAllocator is an option to specify the Allocator to use for a
// List[E]'s slab.
func WithAllocator[E any](alloc Allocator[E]) ListOption[E] {
	return allocatorOption[E]{alloc}
}

// TableOption provides an interface to do work on a Table while it is being
// created.
type TableOption[K comparable, V any] interface {
	apply(t *Table[K, V])
}

type equalOption[K comparable, V any] struct {
	eq func(a, b K) bool
}

func (op equalOption[K, V]) apply(t *Table[K, V]) {
	t.eq = op.eq
}

// WithEqual is an option to specify the key equality used by a Table[K,V]
// in place of ==. The hash function supplied to NewTable must map keys that
// compare equal to the same hash.
func WithEqual[K comparable, V any](eq func(a, b K) bool) TableOption[K, V] {
	return equalOption[K, V]{eq}
}

type pairAllocatorOption[K comparable, V any] struct {
	alloc Allocator[Pair[K, V]]
}

func (op pairAllocatorOption[K, V]) apply(t *Table[K, V]) {
	t.alloc = op.alloc
}

// WithPairAllocator is an option to specify the Allocator backing a
// Table[K,V]'s value list.
func WithPairAllocator[K comparable, V any](alloc Allocator[Pair[K, V]]) TableOption[K, V] {
	return pairAllocatorOption[K, V]{alloc}
}
