// Copyright 2025 Blink Labs Software
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

package utxoref_test

import (
	"bytes"
	"math/rand/v2"
	"slices"
	"sort"
	"testing"

	"github.com/blinklabs-io/utxoorder/txid"
	"github.com/blinklabs-io/utxoorder/utxoref"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	txIdZero = "0000000000000000000000000000000000000000000000000000000000000000"
	txIdOnes = "0101010101010101010101010101010101010101010101010101010101010101"
	txIdTwos = "0202020202020202020202020202020202020202020202020202020202020202"
	txId1b56 = "1b56fc4a62e897481a5606bfa88502b48ae4a02b9abcbdfdd8e568144b21c2b7"
	txIdA0   = "a000000000000000000000000000000000000000000000000000000000000000"
)

func mustRef(t *testing.T, hexStr string, idx uint64) utxoref.Ref {
	t.Helper()
	ref, err := utxoref.FromHex(hexStr, idx)
	require.NoError(t, err)
	return ref
}

func randomRefs(r *rand.Rand, count int) []utxoref.Ref {
	ret := make([]utxoref.Ref, 0, count)
	for range count {
		var id txid.TransactionId
		// Keep the id space small so that ties on the id are common
		for i := range 2 {
			id[i] = byte(r.IntN(4)) << 6
		}
		ret = append(ret, utxoref.New(id, uint64(r.IntN(12))))
	}
	return ret
}

func TestSortMatchesSerializationLib(t *testing.T) {
	testDefs := []struct {
		name     string
		input    []utxoref.Ref
		expected []utxoref.Ref
	}{
		{
			name: "same tx id ordered by index",
			input: []utxoref.Ref{
				mustRef(t, txIdTwos, 0),
				mustRef(t, txIdTwos, 1),
				mustRef(t, txIdOnes, 0),
			},
			expected: []utxoref.Ref{
				mustRef(t, txIdOnes, 0),
				mustRef(t, txIdTwos, 0),
				mustRef(t, txIdTwos, 1),
			},
		},
		{
			name: "byte value ordering of tx ids",
			input: []utxoref.Ref{
				mustRef(t, txId1b56, 0),
				mustRef(t, txIdA0, 0),
				mustRef(t, txId1b56, 1),
				mustRef(t, txIdZero, 0),
			},
			expected: []utxoref.Ref{
				mustRef(t, txIdZero, 0),
				mustRef(t, txId1b56, 0),
				mustRef(t, txId1b56, 1),
				mustRef(t, txIdA0, 0),
			},
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			sorted := utxoref.Sorted(testDef.input)
			assert.Equal(t, testDef.expected, sorted)
			assert.True(t, utxoref.IsSorted(sorted))
			// Sorted must not modify its input
			assert.False(t, utxoref.IsSorted(testDef.input))
			// Re-sorting a sorted sequence is a no-op
			resorted := slices.Clone(sorted)
			utxoref.Sort(resorted)
			assert.Equal(t, sorted, resorted)
		})
	}
}

func TestCompareIgnoresHexCase(t *testing.T) {
	upper := mustRef(
		t,
		"AABBCCDDEEFF00112233445566778899AABBCCDDEEFF00112233445566778899",
		0,
	)
	lower := mustRef(
		t,
		"aabbccddeeff00112233445566778899aabbccddeeff00112233445566778899",
		0,
	)
	assert.Equal(t, 0, utxoref.Compare(upper, lower))
	assert.Equal(t, upper, lower)

	// Character comparison of mixed-case text would order "aa" after "B0"
	aa := mustRef(t, "aa00000000000000000000000000000000000000000000000000000000000000", 0)
	b0 := mustRef(t, "B000000000000000000000000000000000000000000000000000000000000000", 0)
	assert.Equal(t, -1, utxoref.Compare(aa, b0))
}

func TestCompareIndexNumeric(t *testing.T) {
	testDefs := []struct {
		a, b     uint64
		expected int
	}{
		{a: 0, b: 1, expected: -1},
		{a: 1, b: 0, expected: 1},
		{a: 9, b: 10, expected: -1},
		{a: 10, b: 9, expected: 1},
		{a: 2, b: 10, expected: -1},
		{a: 100, b: 100, expected: 0},
		{a: 1 << 32, b: 1<<32 + 1, expected: -1},
	}
	for _, testDef := range testDefs {
		assert.Equal(
			t,
			testDef.expected,
			utxoref.Compare(
				mustRef(t, txIdOnes, testDef.a),
				mustRef(t, txIdOnes, testDef.b),
			),
			"compare(%d, %d)",
			testDef.a,
			testDef.b,
		)
	}
	// The tx id always takes precedence over the index
	assert.Equal(
		t,
		-1,
		utxoref.Compare(mustRef(t, txIdOnes, 100), mustRef(t, txIdTwos, 0)),
	)
}

func TestCompareTotalOrder(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	refs := randomRefs(r, 64)
	for _, a := range refs {
		assert.Equal(t, 0, utxoref.Compare(a, a))
		for _, b := range refs {
			ab := utxoref.Compare(a, b)
			assert.Equal(t, -ab, utxoref.Compare(b, a))
			assert.Equal(t, a == b, ab == 0)
			assert.Equal(t, ab < 0, utxoref.Less(a, b))
			assert.Equal(t, ab, a.Compare(b))
			for _, c := range refs {
				if ab < 0 && utxoref.Compare(b, c) < 0 {
					assert.Equal(t, -1, utxoref.Compare(a, c))
				}
			}
		}
	}
}

func TestSortConsistentAcrossAlgorithms(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	refs := randomRefs(r, 200)
	expected := utxoref.Sorted(refs)

	stable := slices.Clone(refs)
	slices.SortStableFunc(stable, utxoref.Compare)
	assert.Equal(t, expected, stable)

	legacy := slices.Clone(refs)
	sort.Slice(legacy, func(i, j int) bool {
		return utxoref.Less(legacy[i], legacy[j])
	})
	assert.Equal(t, expected, legacy)

	r.Shuffle(len(refs), func(i, j int) { refs[i], refs[j] = refs[j], refs[i] })
	assert.Equal(t, expected, utxoref.Sorted(refs))
}

func TestDedup(t *testing.T) {
	refs := []utxoref.Ref{
		mustRef(t, txIdTwos, 1),
		mustRef(t, "0202020202020202020202020202020202020202020202020202020202020202", 1),
		mustRef(t, txIdOnes, 0),
		mustRef(t, txIdTwos, 1),
	}
	assert.Equal(
		t,
		[]utxoref.Ref{mustRef(t, txIdOnes, 0), mustRef(t, txIdTwos, 1)},
		utxoref.Dedup(refs),
	)
	assert.Len(t, refs, 4)
	assert.Empty(t, utxoref.Dedup(nil))
}

func TestKeyOrderMatchesCompare(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	refs := randomRefs(r, 64)
	// Large indexes exercise every byte of the index encoding
	refs = append(
		refs,
		mustRef(t, txIdOnes, 255),
		mustRef(t, txIdOnes, 256),
		mustRef(t, txIdOnes, 1<<40),
	)
	for _, a := range refs {
		decoded, err := utxoref.FromKey(a.Key())
		require.NoError(t, err)
		assert.Equal(t, a, decoded)
		assert.Len(t, a.Key(), utxoref.KeySize)
		for _, b := range refs {
			assert.Equal(
				t,
				utxoref.Compare(a, b),
				bytes.Compare(a.Key(), b.Key()),
				"%s vs %s",
				a,
				b,
			)
		}
	}
	_, err := utxoref.FromKey([]byte("x"))
	assert.ErrorIs(t, err, utxoref.ErrMalformedRef)
	badPrefix := mustRef(t, txIdOnes, 0).Key()
	badPrefix[0] = 'z'
	_, err = utxoref.FromKey(badPrefix)
	assert.ErrorIs(t, err, utxoref.ErrMalformedRef)
}
