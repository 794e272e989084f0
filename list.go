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

// Package slotlist provides an arena-backed doubly linked list and an
// open-chaining hash table built on top of it.
//
// # Indexed list
//
// A List[E] stores its elements in a single growable slab of slots. A slot
// holds the payload together with the prev/next links and a free flag, and
// is addressed by a small integer Index rather than a pointer. No pointers
// into the slab ever escape the API, so growth can relocate the slab freely
// and callers cannot hold a dangling reference; an Index obtained before an
// operation that grows the slab remains a valid handle.
//
// Slot 0 is the sentinel of the occupied chain: its next link is the
// logical head and its prev link is the logical tail. The remaining slots
// are partitioned between the occupied chain and a circular free chain that
// is threaded through the same prev/next fields; slot 1 seeds the free
// chain at creation. Insertion takes a slot from the free chain, deletion
// returns one. The free chain always retains at least one slot to serve as
// its anchor, so a List created with capacity c holds up to c elements
// before growing.
//
// Insertion prefers the slot physically following the insertion point when
// that slot happens to be free. This keeps the slab physically contiguous
// for append-heavy workloads, in which case logical positions resolve in
// O(1). Any insertion or deletion that breaks physical contiguity degrades
// positional lookup to an O(n) chain walk until Linearize restores the
// physical order with an in-place swap pass.
//
// # Hash table
//
// A Table[K,V] maps keys to values with open chaining. All bucket chains
// live in one shared List[Pair[K,V]]; a bucket records only the list index
// of its first pair and the chain length. Bucket counts are powers of two
// so placement is a mask of the caller-supplied hash, and the table doubles
// both the bucket array and the value list once half the buckets are in
// use, keeping chains short and operations O(1) expected.
//
// Neither structure is goroutine-safe.
package slotlist

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

const debug = false

// Index identifies a physical slot in a List's slab. Indices may be held
// across any list operation, including growth, but the element a given
// index refers to can change across Swap or Linearize; logical positions
// are the stable re-resolution handle.
type Index int

// End is the sentinel slot of the occupied chain. It is returned by
// navigation methods to signal "one past the tail" (or "one before the
// head") and is never occupied by an element.
const End Index = 0

// Slot is one arena cell: a payload plus the doubly-linked neighbor indices
// and a free/used flag. The fields are unexported; Slot is exported only so
// an Allocator can traffic in slot slabs.
type Slot[E any] struct {
	next Index
	prev Index
	free bool
	elem E
}

// List is a doubly linked list realized inside a single growable slab of
// slots. The zero value is not usable; construct with NewList.
type List[E any] struct {
	slots []Slot[E]
	// The number of elements the list can hold before growing. The slab
	// holds capacity+2 slots: the sentinel plus the free-chain seed.
	capacity int
	// The number of occupied slots, excluding the sentinel.
	used int
	// The anchor of the circular free chain. Never End while the list is
	// alive: at least one free slot always remains to anchor the chain.
	free Index
	// linearized reports that physical slot order matches logical order
	// starting at the head, making positional lookup O(1).
	linearized bool
	alloc      Allocator[E]
}

// NewList constructs a List with room for initialCapacity elements.
// Capacities below one are raised to one. The only failure mode is the
// allocator declining to provide the slab.
func NewList[E any](initialCapacity int, opts ...ListOption[E]) (*List[E], error) {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	l := &List[E]{alloc: defaultAllocator[E]{}}
	for _, op := range opts {
		op.apply(l)
	}

	slots := l.alloc.AllocSlots(initialCapacity + 2)
	if len(slots) < initialCapacity+2 {
		return nil, errors.Wrapf(ErrAllocFailed, "slab of %d slots", initialCapacity+2)
	}
	l.slots = slots
	l.capacity = initialCapacity
	l.linearized = true

	// The sentinel is permanently in use; its links start out pointing at
	// itself, i.e. the list is empty.
	l.slots[End].free = false

	// Loop the free-chain seed onto itself, then thread the remaining
	// slots into the chain.
	l.free = 1
	l.slots[l.free] = Slot[E]{next: l.free, prev: l.free, free: true}
	for i := Index(initialCapacity + 1); i > l.free; i-- {
		l.insertInPlace(i, l.free, *new(E))
	}

	l.checkInvariants()
	return l, nil
}

// Close returns the slab to the allocator. It is unnecessary to close a
// list using the default allocator. The list must not be used after Close,
// though Close itself is idempotent.
func (l *List[E]) Close() {
	if l.slots == nil {
		return
	}
	l.alloc.FreeSlots(l.slots)
	l.slots = nil
	l.capacity = 0
	l.used = 0
	l.free = End
	l.alloc = nil
}

// Len returns the number of elements in the list.
func (l *List[E]) Len() int {
	return l.used
}

// Cap returns the number of elements the list can hold before growing.
func (l *List[E]) Cap() int {
	return l.capacity
}

// Linearized reports whether physical slot order currently matches logical
// order, i.e. whether positional lookups are O(1).
func (l *List[E]) Linearized() bool {
	return l.linearized
}

// Head returns the index of the first element, or End if the list is empty.
func (l *List[E]) Head() Index {
	return l.slots[End].next
}

// Tail returns the index of the last element, or End if the list is empty.
func (l *List[E]) Tail() Index {
	return l.slots[End].prev
}

// Next returns the index of the element following i in logical order. The
// successor of the tail is End.
func (l *List[E]) Next(i Index) Index {
	return l.slots[i].next
}

// Prev returns the index of the element preceding i in logical order. The
// predecessor of the head is End.
func (l *List[E]) Prev(i Index) Index {
	return l.slots[i].prev
}

// At returns the payload stored in slot i. The slot must be occupied.
func (l *List[E]) At(i Index) E {
	return l.slots[i].elem
}

func (l *List[E]) checkIndex(i Index) error {
	if i < 0 || int(i) > l.capacity+1 {
		return errors.Wrapf(ErrIndexOutOfRange, "slot %d outside [0, %d]", i, l.capacity+1)
	}
	return nil
}

// checkOccupied extends checkIndex to reject the sentinel and free slots,
// which are never legal operands for element-level operations.
func (l *List[E]) checkOccupied(i Index) error {
	if err := l.checkIndex(i); err != nil {
		return err
	}
	if i == End || l.slots[i].free {
		return errors.Wrapf(ErrIndexOutOfRange, "slot %d is not occupied", i)
	}
	return nil
}

// insertInPlace links slot place into the chain directly after prev and
// constructs the slot there. The new slot joins whichever chain prev is on:
// inserting after an occupied slot extends the occupied chain, inserting
// after a free slot extends the free chain.
func (l *List[E]) insertInPlace(place, prev Index, v E) {
	next := l.slots[prev].next
	l.slots[prev].next = place
	l.slots[next].prev = place
	l.slots[place] = Slot[E]{
		next: next,
		prev: prev,
		free: l.slots[prev].free,
		elem: v,
	}
}

// unlink removes slot i from its chain by repairing the neighbor links. The
// slot's own links are left untouched.
func (l *List[E]) unlink(i Index) {
	p, n := l.slots[i].prev, l.slots[i].next
	l.slots[p].next = n
	l.slots[n].prev = p
}

// freeLeft reports whether a free slot can be handed out. The chain anchor
// itself is never handed out, so a single remaining free slot counts as
// exhausted.
func (l *List[E]) freeLeft() bool {
	return l.free != l.slots[l.free].next
}

// takeFree detaches slot place from the free chain and re-anchors the chain
// on place's successor, which conveniently holds for the case where place is
// the anchor itself. The caller guarantees place is free and is not the last
// free slot.
func (l *List[E]) takeFree(place Index) {
	next := l.slots[place].next
	l.unlink(place)
	l.free = next
}

// addFree splices slot i into the free chain and zeroes its payload so the
// garbage collector does not retain whatever the element referenced.
func (l *List[E]) addFree(i Index) {
	l.insertInPlace(i, l.free, *new(E))
}

// grow doubles the slab, threading the newly added slots into the free
// chain. On failure the list is unmodified.
func (l *List[E]) grow() error {
	newCapacity := 2 * l.capacity
	slots := l.alloc.AllocSlots(newCapacity + 2)
	if len(slots) < newCapacity+2 {
		return errors.Wrapf(ErrAllocFailed, "growing slab to %d slots", newCapacity+2)
	}
	copy(slots, l.slots)
	old := l.slots
	l.slots = slots
	for i := Index(l.capacity + 2); i <= Index(newCapacity+1); i++ {
		l.addFree(i)
	}
	l.capacity = newCapacity
	l.alloc.FreeSlots(old)

	if debug {
		fmt.Printf("grow: capacity=%d->%d\n", newCapacity/2, newCapacity)
	}
	return nil
}

// InsertAfter inserts v directly after the element at prev and returns the
// physical index of the new slot. Passing End inserts at the front. If the
// slot physically following prev is free it is reused in place, which keeps
// the slab contiguous for appends; otherwise the slot comes from the free
// chain and positional lookups degrade to O(n) until the next Linearize.
func (l *List[E]) InsertAfter(prev Index, v E) (Index, error) {
	if prev != End {
		if err := l.checkOccupied(prev); err != nil {
			return End, err
		}
	}

	if !l.freeLeft() {
		if err := l.grow(); err != nil {
			return End, err
		}
	}

	head, tail := l.Head(), l.Tail()
	var place Index
	if int(prev) <= l.capacity && l.slots[prev+1].free {
		place = prev + 1
		l.takeFree(place)
		// In-place reuse keeps the slab contiguous only when it extends
		// the occupied run at the tail or fills the slot directly before
		// the head. Any other reuse (e.g. a front insert landing in slot 1
		// after the head has drifted past slot 2) leaves a gap.
		if prev != tail && place+1 != head {
			l.linearized = false
		}
	} else {
		place = l.free
		l.takeFree(place)
		l.linearized = false
	}
	if debug {
		fmt.Printf("insert: prev=%d place=%d linearized=%t\n", prev, place, l.linearized)
	}

	l.insertInPlace(place, prev, v)
	l.used++
	l.checkInvariants()
	return place, nil
}

// PushFront inserts v as the new head.
func (l *List[E]) PushFront(v E) (Index, error) {
	return l.InsertAfter(End, v)
}

// PushBack inserts v as the new tail.
func (l *List[E]) PushBack(v E) (Index, error) {
	return l.InsertAfter(l.Tail(), v)
}

// Delete removes the element at index i, returning its slot to the free
// chain. Removing the head or the tail preserves physical contiguity;
// removing an interior element degrades positional lookups until the next
// Linearize.
func (l *List[E]) Delete(i Index) error {
	if err := l.checkOccupied(i); err != nil {
		return err
	}

	if i != l.Head() && i != l.Tail() {
		l.linearized = false
	}
	l.unlink(i)
	l.addFree(i)
	l.used--
	l.checkInvariants()
	return nil
}

// PopFront removes the head element.
func (l *List[E]) PopFront() error {
	if l.used == 0 {
		return errors.Wrap(ErrIndexOutOfRange, "pop from empty list")
	}
	return l.Delete(l.Head())
}

// PopBack removes the tail element.
func (l *List[E]) PopBack() error {
	if l.used == 0 {
		return errors.Wrap(ErrIndexOutOfRange, "pop from empty list")
	}
	return l.Delete(l.Tail())
}

// Swap exchanges the physical slots of i and j while preserving the logical
// order of the list: the payloads trade places, and every neighbor link is
// repointed so traversal is unaffected. Either slot may be free, which is
// what lets Linearize move elements into position, but the sentinel cannot
// be swapped. A swap conservatively drops the linearized state; Linearize
// restores it.
func (l *List[E]) Swap(i, j Index) error {
	if i == j {
		return nil
	}
	if err := l.checkIndex(i); err != nil {
		return err
	}
	if err := l.checkIndex(j); err != nil {
		return err
	}
	if i == End || j == End {
		return errors.Wrap(ErrIndexOutOfRange, "cannot swap the sentinel slot")
	}
	l.swap(i, j)
	l.linearized = false
	l.checkInvariants()
	return nil
}

// swap requires i != j and both indices valid and non-sentinel.
func (l *List[E]) swap(i, j Index) {
	iPrev, iNext := l.slots[i].prev, l.slots[i].next
	jPrev, jNext := l.slots[j].prev, l.slots[j].next

	// Repoint the four neighboring links at the slots' new homes, then
	// exchange the slot contents wholesale. When i and j are adjacent some
	// of these writes land in i or j themselves and are resolved by the
	// content swap.
	l.slots[iPrev].next = j
	l.slots[iNext].prev = j
	l.slots[jPrev].next = i
	l.slots[jNext].prev = i
	l.slots[i], l.slots[j] = l.slots[j], l.slots[i]

	// The free-chain anchor follows the slot it pointed at.
	switch l.free {
	case i:
		l.free = j
	case j:
		l.free = i
	}
}

// Linearize reorders the slab so that physical slot order matches logical
// order, walking the occupied chain and swapping each element into the slot
// matching its position. Afterwards positional lookups are O(1) until a
// non-contiguous insert or delete. Linearize is idempotent.
func (l *List[E]) Linearize() {
	logical := Index(1)
	for current := l.Head(); current != End; logical++ {
		if current != logical {
			if debug {
				fmt.Printf("linearize: %d -> %d\n", current, logical)
			}
			l.swap(current, logical)
		}
		current = l.slots[logical].next
	}
	l.linearized = true
	l.checkInvariants()
}

// LogicalIndex resolves the 0-based logical position k to the physical
// index currently holding that element: O(1) if the list is linearized,
// otherwise an O(n) walk from the head.
func (l *List[E]) LogicalIndex(k int) (Index, error) {
	if k < 0 || k >= l.used {
		return End, errors.Wrapf(ErrIndexOutOfRange, "logical index %d outside [0, %d)", k, l.used)
	}
	if l.linearized {
		return l.Head() + Index(k), nil
	}
	i := l.Head()
	for ; k > 0; k-- {
		i = l.slots[i].next
	}
	return i, nil
}

// Get returns the element at logical position k.
func (l *List[E]) Get(k int) (E, error) {
	i, err := l.LogicalIndex(k)
	if err != nil {
		var zero E
		return zero, err
	}
	return l.slots[i].elem, nil
}

// All calls yield for each element in logical order, head to tail. If yield
// returns false, iteration stops. The list must not be mutated during
// iteration.
func (l *List[E]) All(yield func(v E) bool) {
	for i := l.Head(); i != End; i = l.slots[i].next {
		if !yield(l.slots[i].elem) {
			return
		}
	}
}

func (l *List[E]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "capacity=%d  used=%d  free=%d  linearized=%t\n",
		l.capacity, l.used, l.free, l.linearized)
	for i := 0; i <= l.capacity+1; i++ {
		s := &l.slots[i]
		state := "used"
		if s.free {
			state = "free"
		}
		fmt.Fprintf(&buf, "  %4d: prev=%-4d next=%-4d %s %v\n", i, s.prev, s.next, state, s.elem)
	}
	return buf.String()
}

func (l *List[E]) checkInvariants() {
	if !invariants || l.slots == nil {
		return
	}

	seen := make([]bool, l.capacity+2)

	// Walk the occupied chain: every slot on it is in use, the prev links
	// mirror the next links, and its length matches used.
	n := 0
	for i := l.Head(); i != End; i = l.slots[i].next {
		if l.slots[i].free {
			panic(fmt.Sprintf("invariant failed: free slot %d on occupied chain\n%s", i, l.debugString()))
		}
		if seen[i] {
			panic(fmt.Sprintf("invariant failed: occupied chain revisits slot %d\n%s", i, l.debugString()))
		}
		seen[i] = true
		if got := l.slots[l.slots[i].next].prev; got != i {
			panic(fmt.Sprintf("invariant failed: prev(next(%d))=%d\n%s", i, got, l.debugString()))
		}
		if n++; n > l.used {
			panic(fmt.Sprintf("invariant failed: occupied chain longer than used=%d\n%s", l.used, l.debugString()))
		}
	}
	if n != l.used {
		panic(fmt.Sprintf("invariant failed: found %d occupied slots, but used is %d\n%s", n, l.used, l.debugString()))
	}

	// Walk the circular free chain from the anchor.
	f := 0
	for i := l.free; ; {
		if !l.slots[i].free {
			panic(fmt.Sprintf("invariant failed: occupied slot %d on free chain\n%s", i, l.debugString()))
		}
		if seen[i] {
			panic(fmt.Sprintf("invariant failed: slot %d on both chains\n%s", i, l.debugString()))
		}
		seen[i] = true
		if got := l.slots[l.slots[i].next].prev; got != i {
			panic(fmt.Sprintf("invariant failed: prev(next(%d))=%d on free chain\n%s", i, got, l.debugString()))
		}
		if f++; f > l.capacity+1 {
			panic(fmt.Sprintf("invariant failed: free chain does not close\n%s", l.debugString()))
		}
		if i = l.slots[i].next; i == l.free {
			break
		}
	}

	// The two chains partition the non-sentinel slots.
	if n+f != l.capacity+1 {
		panic(fmt.Sprintf("invariant failed: %d occupied + %d free != %d slots\n%s",
			n, f, l.capacity+1, l.debugString()))
	}

	// linearized implies physical order matches logical order.
	if l.linearized {
		k := Index(0)
		for i := l.Head(); i != End; i = l.slots[i].next {
			if i != l.Head()+k {
				panic(fmt.Sprintf("invariant failed: linearized but logical %d is at slot %d\n%s",
					k, i, l.debugString()))
			}
			k++
		}
	}
}
