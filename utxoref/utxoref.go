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

// Package utxoref provides the reference to an unspent transaction output and
// the one canonical ordering used everywhere references need a deterministic
// sequence: transaction input lists, set deduplication and display.
package utxoref

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/blinklabs-io/utxoorder/txid"
)

var (
	// ErrMalformedRef is returned when a textual or encoded reference cannot
	// be parsed
	ErrMalformedRef = errors.New("malformed UTxO reference")

	// ErrIndexOutOfRange is returned when an output index does not fit the
	// width required by the target representation
	ErrIndexOutOfRange = errors.New("output index out of range")
)

// Ref identifies a transaction output by transaction id and output index.
// Refs are values and are compared with == or Compare.
type Ref struct {
	TxId  txid.TransactionId
	Index uint64
}

// New returns a Ref for the given transaction id and output index
func New(id txid.TransactionId, index uint64) Ref {
	return Ref{TxId: id, Index: index}
}

// FromHex returns a Ref from a hex transaction id in any lettercase
func FromHex(hexStr string, index uint64) (Ref, error) {
	id, err := txid.NewFromHex(hexStr)
	if err != nil {
		return Ref{}, err
	}
	return New(id, index), nil
}

// Compare is the canonical ordering of references. Transaction ids are
// compared by unsigned byte value, most significant byte first, and ties are
// broken by numeric output index. It returns -1, 0 or +1 and is suitable for
// slices.SortFunc and any other sort routine.
func Compare(a, b Ref) int {
	if c := a.TxId.Compare(b.TxId); c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}

// Less reports whether a sorts before b
func Less(a, b Ref) bool {
	return Compare(a, b) < 0
}

// Compare compares r with other using the canonical ordering
func (r Ref) Compare(other Ref) int {
	return Compare(r, other)
}

// String returns the reference as "<txid hex>#<index>" with lowercase hex
func (r Ref) String() string {
	return fmt.Sprintf("%s#%d", r.TxId.String(), r.Index)
}

func (r Ref) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Ref) UnmarshalText(data []byte) error {
	tmp, err := Parse(string(data))
	if err != nil {
		return err
	}
	*r = tmp
	return nil
}

// Sort sorts refs in place in canonical order
func Sort(refs []Ref) {
	slices.SortFunc(refs, Compare)
}

// Sorted returns a sorted copy of refs, leaving the input unmodified
func Sorted(refs []Ref) []Ref {
	ret := slices.Clone(refs)
	Sort(ret)
	return ret
}

// IsSorted reports whether refs are in canonical order
func IsSorted(refs []Ref) bool {
	return slices.IsSortedFunc(refs, Compare)
}

// Dedup returns a sorted copy of refs with duplicates removed
func Dedup(refs []Ref) []Ref {
	return slices.Compact(Sorted(refs))
}
