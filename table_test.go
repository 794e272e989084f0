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
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func hashInt(k int) uint32 {
	x := uint64(uint32(k)) * 0x9e3779b97f4a7c15
	return uint32(x >> 32)
}

func hashString(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h = (h ^ uint32(s[i])) * 16777619
	}
	return h
}

// identityHash places key k in bucket k&(buckets-1), which makes bucket
// placement deterministic in tests.
func identityHash(k int) uint32 {
	return uint32(k)
}

// toBuiltinMap returns the entries as a map[K]V. Useful for testing.
func (t *Table[K, V]) toBuiltinMap() map[K]V {
	r := make(map[K]V)
	t.All(func(k K, v V) bool {
		r[k] = v
		return true
	})
	return r
}

func (t *Table[K, V]) loadFactor() float64 {
	return float64(t.bucketsUsed) / float64(len(t.buckets))
}

func TestTableBucketSizing(t *testing.T) {
	testCases := []struct {
		bucketHint      int
		expectedBuckets int
	}{
		{0, defaultBucketHint},
		{1, 1},
		{2, 2},
		{3, 4},
		{4, 4},
		{5, 8},
		{33, 64},
	}
	for _, c := range testCases {
		t.Run("", func(t *testing.T) {
			m, err := NewTable[int, int](hashInt, c.bucketHint, 0)
			require.NoError(t, err)
			defer m.Close()
			require.Equal(t, c.expectedBuckets, len(m.buckets))
		})
	}
}

func TestTableBasic(t *testing.T) {
	test := func(t *testing.T, m *Table[int, int]) {
		const count = 100

		e := make(map[int]int)
		require.EqualValues(t, 0, m.Len())

		// Non-existent.
		for i := 0; i < count; i++ {
			_, ok := m.Get(i)
			require.False(t, ok)
			require.False(t, m.Contains(i))
		}

		// Insert.
		for i := 0; i < count; i++ {
			require.NoError(t, m.Insert(i, i+count))
			e[i] = i + count
			v, ok := m.Get(i)
			require.True(t, ok)
			require.EqualValues(t, i+count, v)
			require.EqualValues(t, i+1, m.Len())
			require.Equal(t, e, m.toBuiltinMap())
			require.Less(t, m.loadFactor(), maxLoadFactor)
		}

		// A second insert of a present key fails and leaves the original
		// value in place.
		for i := 0; i < count; i++ {
			require.ErrorIs(t, m.Insert(i, -1), ErrKeyExists)
			v, ok := m.Get(i)
			require.True(t, ok)
			require.EqualValues(t, i+count, v)
			require.EqualValues(t, count, m.Len())
		}

		// Delete.
		for i := 0; i < count; i++ {
			require.True(t, m.Delete(i))
			delete(e, i)
			require.EqualValues(t, count-i-1, m.Len())
			_, ok := m.Get(i)
			require.False(t, ok)
			require.False(t, m.Delete(i))
			require.Equal(t, e, m.toBuiltinMap())
		}
	}

	t.Run("normal", func(t *testing.T) {
		m, err := NewTable[int, int](hashInt, 0, 0)
		require.NoError(t, err)
		defer m.Close()
		test(t, m)
	})

	t.Run("degenerate", func(t *testing.T) {
		// A constant hash funnels every key into one bucket; operations
		// stay correct, just with one long chain.
		for _, h := range []uint32{0, ^uint32(0)} {
			t.Run(fmt.Sprintf("%08x", h), func(t *testing.T) {
				m, err := NewTable[int, int](func(int) uint32 { return h }, 4, 0)
				require.NoError(t, err)
				defer m.Close()
				test(t, m)
			})
		}
	})
}

func TestTableScenario(t *testing.T) {
	m, err := NewTable[string, int](hashString, 4, 0)
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Insert("a", 1))
	require.NoError(t, m.Insert("b", 2))
	require.True(t, m.Delete("a"))

	_, ok := m.Get("a")
	require.False(t, ok)
	v, ok := m.Get("b")
	require.True(t, ok)
	require.EqualValues(t, 2, v)
}

func TestTableCollisionChain(t *testing.T) {
	m, err := NewTable[int, string](identityHash, 32, 0)
	require.NoError(t, err)
	defer m.Close()

	// 1, 33, and 65 all land in bucket 1.
	keys := []int{1, 33, 65}
	for _, k := range keys {
		require.NoError(t, m.Insert(k, fmt.Sprint(k)))
	}
	require.EqualValues(t, 3, m.buckets[1].size)
	require.EqualValues(t, 1, m.bucketsUsed)
	for _, k := range keys {
		v, ok := m.Get(k)
		require.True(t, ok)
		require.Equal(t, fmt.Sprint(k), v)
	}

	// Deleting the chain head must not orphan the remaining entries.
	require.True(t, m.Delete(keys[0]))
	require.EqualValues(t, 2, m.buckets[1].size)
	for _, k := range keys[1:] {
		require.True(t, m.Contains(k))
	}

	// Emptying the chain releases the bucket entirely.
	require.True(t, m.Delete(keys[1]))
	require.True(t, m.Delete(keys[2]))
	require.EqualValues(t, 0, m.buckets[1].size)
	require.Equal(t, End, m.buckets[1].start)
	require.EqualValues(t, 0, m.bucketsUsed)
}

func TestTableLoadFactor(t *testing.T) {
	m, err := NewTable[int, int](hashInt, 4, 0)
	require.NoError(t, err)
	defer m.Close()

	for i := 0; i < 1000; i++ {
		require.NoError(t, m.Insert(i, i))
		require.Less(t, m.loadFactor(), maxLoadFactor,
			"load factor bound violated after %d inserts", i+1)
		n := len(m.buckets)
		require.Zero(t, n&(n-1), "bucket count %d is not a power of two", n)
	}
}

func TestTableRehashPreserves(t *testing.T) {
	m, err := NewTable[int, int](hashInt, 1, 1)
	require.NoError(t, err)
	defer m.Close()

	e := make(map[int]int)
	for i := 0; i < 500; i++ {
		require.NoError(t, m.Insert(i, i*3))
		e[i] = i * 3
	}
	require.Equal(t, e, m.toBuiltinMap())
	require.EqualValues(t, 500, m.Len())
}

func TestTableRandom(t *testing.T) {
	test := func(t *testing.T, m *Table[int, int]) {
		e := make(map[int]int)
		var keys []int
		for i := 0; i < 10000; i++ {
			switch r := rand.Float64(); {
			case r < 0.5: // 50% inserts
				k, v := rand.Intn(2000), rand.Int()
				err := m.Insert(k, v)
				if _, ok := e[k]; ok {
					require.ErrorIs(t, err, ErrKeyExists)
				} else {
					require.NoError(t, err)
					e[k] = v
					keys = append(keys, k)
				}
			case r < 0.75: // 25% deletes
				if len(keys) == 0 {
					continue
				}
				j := rand.Intn(len(keys))
				k := keys[j]
				_, present := e[k]
				require.Equal(t, present, m.Delete(k))
				delete(e, k)
				keys[j] = keys[len(keys)-1]
				keys = keys[:len(keys)-1]
			default: // 25% lookups
				k := rand.Intn(2000)
				v, ok := m.Get(k)
				ev, eok := e[k]
				require.Equal(t, eok, ok)
				if ok {
					require.Equal(t, ev, v)
				}
			}
			require.EqualValues(t, len(e), m.Len())
		}
		require.Equal(t, e, m.toBuiltinMap())
	}

	t.Run("normal", func(t *testing.T) {
		m, err := NewTable[int, int](hashInt, 0, 0)
		require.NoError(t, err)
		defer m.Close()
		test(t, m)
	})

	t.Run("degenerate", func(t *testing.T) {
		m, err := NewTable[int, int](func(int) uint32 { return 0 }, 0, 0)
		require.NoError(t, err)
		defer m.Close()
		test(t, m)
	})
}

func TestTableFromPairs(t *testing.T) {
	pairs := []Pair[string, int]{
		{"same", 1},
		{"max", 2},
		{"min", 3},
		{"source", 4},
		{"sink", 5},
	}
	m, err := NewTableFromPairs(hashString, pairs)
	require.NoError(t, err)
	defer m.Close()

	require.EqualValues(t, len(pairs), m.Len())
	for _, p := range pairs {
		v, ok := m.Get(p.Key)
		require.True(t, ok)
		require.Equal(t, p.Value, v)
	}
	// Sized for the load factor up front: no rehash was needed.
	require.GreaterOrEqual(t, len(m.buckets), 2*len(pairs))

	_, err = NewTableFromPairs(hashString, []Pair[string, int]{{"dup", 1}, {"dup", 2}})
	require.ErrorIs(t, err, ErrKeyExists)

	empty, err := NewTableFromPairs[string, int](hashString, nil)
	require.NoError(t, err)
	defer empty.Close()
	require.EqualValues(t, 0, empty.Len())
}

func TestTableWithEqual(t *testing.T) {
	foldHash := func(s string) uint32 {
		return hashString(strings.ToLower(s))
	}
	m, err := NewTable[string, int](foldHash, 8, 0,
		WithEqual[string, int](strings.EqualFold))
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, m.Insert("Cache", 1))
	require.ErrorIs(t, m.Insert("CACHE", 2), ErrKeyExists)
	v, ok := m.Get("cache")
	require.True(t, ok)
	require.EqualValues(t, 1, v)
	require.True(t, m.Delete("cAcHe"))
	require.False(t, m.Contains("Cache"))
}

func TestTableAllocFailure(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		_, err := NewTable[int, int](hashInt, 4, 2,
			WithPairAllocator[int, int](failingAllocator[Pair[int, int]]{}))
		require.ErrorIs(t, err, ErrAllocFailed)
	})

	t.Run("rehash-rollback", func(t *testing.T) {
		// The first allocation backs the initial value list; the rehash
		// triggered by the second insert needs another and fails. The
		// failed insert must be rolled back wholesale.
		a := &countingAllocator[Pair[int, int]]{failAfter: 1}
		m, err := NewTable[int, int](identityHash, 4, 10,
			WithPairAllocator[int, int](a))
		require.NoError(t, err)
		defer m.Close()

		require.NoError(t, m.Insert(0, 100))

		err = m.Insert(1, 200)
		require.ErrorIs(t, err, ErrAllocFailed)

		require.EqualValues(t, 1, m.Len())
		require.False(t, m.Contains(1))
		v, ok := m.Get(0)
		require.True(t, ok)
		require.EqualValues(t, 100, v)
		require.EqualValues(t, 1, m.bucketsUsed)
		require.Equal(t, 4, len(m.buckets))
	})
}

func TestTableAllEarlyStop(t *testing.T) {
	m, err := NewTable[int, int](hashInt, 0, 0)
	require.NoError(t, err)
	defer m.Close()

	for i := 0; i < 10; i++ {
		require.NoError(t, m.Insert(i, i))
	}
	var n int
	m.All(func(int, int) bool {
		n++
		return n < 3
	})
	require.Equal(t, 3, n)
}

func TestTableClose(t *testing.T) {
	m, err := NewTable[int, int](hashInt, 0, 0)
	require.NoError(t, err)
	require.NoError(t, m.Insert(1, 1))
	m.Close()
	m.Close() // idempotent
}
