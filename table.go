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

import (
	"fmt"
	"math/bits"

	"github.com/pkg/errors"
)

const (
	defaultBucketHint = 32
	defaultValueHint  = 10

	// maxLoadFactor is the buckets-in-use to bucket-count ratio at which
	// the table rehashes, doubling both dimensions. 0.5 trades memory for
	// short chains.
	maxLoadFactor = 0.5
	growthFactor  = 2
)

// HashFunc hashes a key. The table reduces the hash to a bucket with a
// power-of-two mask, so every bit of the output should depend on the key.
type HashFunc[K comparable] func(key K) uint32

// Pair is a key/value entry as stored in a Table's backing list.
type Pair[K comparable, V any] struct {
	Key   K
	Value V
}

// bucket references one chain inside the shared value list. start is End
// iff the bucket is empty.
type bucket struct {
	start Index
	size  int
}

// Table is a hash table with open chaining. Every bucket chain lives in a
// single shared List[Pair[K,V]], which the table owns; buckets record only
// a list index and a chain length. By default keys are compared with ==; a
// different equality can be supplied with WithEqual (paired with a hash
// that is compatible with it).
//
// A Table is NOT goroutine-safe.
type Table[K comparable, V any] struct {
	hash HashFunc[K]
	eq   func(a, b K) bool
	// len(buckets) is always a power of two so that position reduces to a
	// mask.
	buckets []bucket
	// The number of buckets with a non-empty chain; the load factor is
	// bucketsUsed/len(buckets).
	bucketsUsed int
	values      *List[Pair[K, V]]
	alloc       Allocator[Pair[K, V]]
}

func defaultEqual[K comparable](a, b K) bool {
	return a == b
}

// NewTable constructs a Table using hash for bucket placement. bucketHint
// is rounded up to a power of two and valueHint sizes the backing list;
// values below one select defaults. The only failure mode is allocation.
func NewTable[K comparable, V any](
	hash HashFunc[K], bucketHint, valueHint int, opts ...TableOption[K, V],
) (*Table[K, V], error) {
	if hash == nil {
		panic("slotlist: hash function must not be nil")
	}
	t := &Table[K, V]{hash: hash, eq: defaultEqual[K]}
	for _, op := range opts {
		op.apply(t)
	}
	if err := t.init(bucketHint, valueHint); err != nil {
		return nil, err
	}
	return t, nil
}

// NewTableFromPairs constructs a Table pre-populated with pairs, sized so
// the initial inserts stay under the load factor. A duplicate key in pairs
// fails the construction with ErrKeyExists.
func NewTableFromPairs[K comparable, V any](
	hash HashFunc[K], pairs []Pair[K, V], opts ...TableOption[K, V],
) (*Table[K, V], error) {
	t, err := NewTable(hash, int(float64(len(pairs))/maxLoadFactor), len(pairs), opts...)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		if err := t.Insert(p.Key, p.Value); err != nil {
			t.Close()
			return nil, err
		}
	}
	return t, nil
}

// init allocates the bucket array and the backing list. It is used both by
// NewTable and to build the replacement table during a rehash.
func (t *Table[K, V]) init(bucketHint, valueHint int) error {
	if bucketHint < 1 {
		bucketHint = defaultBucketHint
	}
	if valueHint < 1 {
		valueHint = defaultValueHint
	}
	t.buckets = make([]bucket, 1<<bits.Len(uint(bucketHint-1)))

	var lopts []ListOption[Pair[K, V]]
	if t.alloc != nil {
		lopts = append(lopts, WithAllocator(t.alloc))
	}
	values, err := NewList[Pair[K, V]](valueHint, lopts...)
	if err != nil {
		t.buckets = nil
		return errors.Wrap(err, "value list")
	}
	t.values = values
	t.checkInvariants()
	return nil
}

// Close destroys the backing list and the bucket array. The table must not
// be used after Close, though Close itself is idempotent.
func (t *Table[K, V]) Close() {
	if t.values != nil {
		t.values.Close()
		t.values = nil
	}
	t.buckets = nil
	t.bucketsUsed = 0
}

// Len returns the number of entries in the table.
func (t *Table[K, V]) Len() int {
	return t.values.Len()
}

// position returns the bucket index for key. len(t.buckets) is a power of
// two, so the modulo reduces to a mask.
func (t *Table[K, V]) position(key K) int {
	return int(t.hash(key)) & (len(t.buckets) - 1)
}

// find locates key's entry in the value list, returning End if absent. The
// owning bucket is returned either way so mutating callers do not hash the
// key twice.
func (t *Table[K, V]) find(key K) (Index, *bucket) {
	b := &t.buckets[t.position(key)]
	i := b.start
	for n := 0; n < b.size; n++ {
		if t.eq(t.values.At(i).Key, key) {
			return i, b
		}
		i = t.values.Next(i)
	}
	return End, b
}

// Get retrieves the value for key, returning ok=false if the key is not
// present. Get does not mutate the table.
func (t *Table[K, V]) Get(key K) (value V, ok bool) {
	i, _ := t.find(key)
	if i == End {
		return value, false
	}
	return t.values.At(i).Value, true
}

// Contains reports whether key is present.
func (t *Table[K, V]) Contains(key K) bool {
	i, _ := t.find(key)
	return i != End
}

// Insert adds a key/value entry. Inserting a key that is already present
// returns ErrKeyExists and leaves the existing value in place. A rehash is
// triggered once half the buckets are in use; if it cannot allocate, the
// insert is rolled back and the table is left exactly as it was.
func (t *Table[K, V]) Insert(key K, value V) error {
	i, b := t.find(key)
	if i != End {
		return errors.Wrapf(ErrKeyExists, "key %v", key)
	}

	pair := Pair[K, V]{Key: key, Value: value}
	if b.size > 0 {
		// Extend the existing chain directly after its first entry.
		if _, err := t.values.InsertAfter(b.start, pair); err != nil {
			return err
		}
	} else {
		idx, err := t.values.PushBack(pair)
		if err != nil {
			return err
		}
		b.start = idx
		t.bucketsUsed++
	}
	b.size++
	t.checkInvariants()

	if float64(t.bucketsUsed) >= maxLoadFactor*float64(len(t.buckets)) {
		if err := t.rehash(growthFactor*len(t.buckets), growthFactor*t.values.Cap()); err != nil {
			t.Delete(key)
			return err
		}
	}
	return nil
}

// Delete removes key's entry, reporting whether it was present. A miss does
// not mutate the table.
func (t *Table[K, V]) Delete(key K) bool {
	i, b := t.find(key)
	if i == End {
		return false
	}

	// The chain head must move before its slot is freed.
	if i == b.start && b.size > 1 {
		b.start = t.values.Next(i)
	}
	if err := t.values.Delete(i); err != nil {
		panic(fmt.Sprintf("deleting found entry at slot %d: %v", i, err))
	}
	b.size--
	if b.size == 0 {
		b.start = End
		t.bucketsUsed--
	}
	t.checkInvariants()
	return true
}

// rehash replaces the bucket array and the value list with freshly sized
// ones, re-placing every pair against the new bucket count. From the
// caller's point of view the replacement is atomic: on failure the old
// table is untouched, and no partially migrated state is ever observable.
func (t *Table[K, V]) rehash(bucketCapacity, valueCapacity int) error {
	if debug {
		fmt.Printf("rehash: buckets=%d->%d values=%d->%d\n",
			len(t.buckets), bucketCapacity, t.values.Cap(), valueCapacity)
	}

	nt := &Table[K, V]{hash: t.hash, eq: t.eq, alloc: t.alloc}
	if err := nt.init(bucketCapacity, valueCapacity); err != nil {
		return err
	}
	var insertErr error
	t.values.All(func(p Pair[K, V]) bool {
		insertErr = nt.Insert(p.Key, p.Value)
		return insertErr == nil
	})
	if insertErr != nil {
		nt.Close()
		return insertErr
	}

	t.values.Close()
	*t = *nt
	t.checkInvariants()
	return nil
}

// All calls yield for each key and value in the table, in the logical order
// of the backing list (bucket chains are contiguous runs within it). If
// yield returns false, iteration stops. The table must not be mutated
// during iteration.
func (t *Table[K, V]) All(yield func(key K, value V) bool) {
	t.values.All(func(p Pair[K, V]) bool {
		return yield(p.Key, p.Value)
	})
}

func (t *Table[K, V]) checkInvariants() {
	if !invariants || t.values == nil {
		return
	}

	used, entries := 0, 0
	for pos := range t.buckets {
		b := &t.buckets[pos]
		if b.size == 0 {
			if b.start != End {
				panic(fmt.Sprintf("invariant failed: empty bucket %d has start=%d", pos, b.start))
			}
			continue
		}
		used++
		entries += b.size

		// Every entry on the chain hashes to this bucket and is found by
		// lookup.
		i := b.start
		for n := 0; n < b.size; n++ {
			p := t.values.At(i)
			if got := t.position(p.Key); got != pos {
				panic(fmt.Sprintf("invariant failed: key %v on bucket %d hashes to %d\n%s",
					p.Key, pos, got, t.values.debugString()))
			}
			if _, ok := t.Get(p.Key); !ok {
				panic(fmt.Sprintf("invariant failed: key %v on bucket %d not found\n%s",
					p.Key, pos, t.values.debugString()))
			}
			i = t.values.Next(i)
		}
	}
	if used != t.bucketsUsed {
		panic(fmt.Sprintf("invariant failed: found %d used buckets, but bucketsUsed is %d", used, t.bucketsUsed))
	}
	if entries != t.values.Len() {
		panic(fmt.Sprintf("invariant failed: chains hold %d entries, but the list holds %d", entries, t.values.Len()))
	}
	if n := len(t.buckets); n&(n-1) != 0 {
		panic(fmt.Sprintf("invariant failed: bucket count %d is not a power of two", n))
	}
}
