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

package utxoref

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/blinklabs-io/utxoorder/txid"
)

const (
	// KeyPrefix is prepended to storage keys for references
	KeyPrefix = "u"

	// KeySize is the total length of a storage key
	KeySize = len(KeyPrefix) + txid.Size + 8
)

// Parse parses "<txid hex>#<index>". A ':' separator is also accepted. The
// transaction id may use any lettercase.
func Parse(s string) (Ref, error) {
	sepIdx := strings.LastIndexAny(s, "#:")
	if sepIdx < 0 {
		return Ref{}, fmt.Errorf(
			"%w: missing index separator in %q",
			ErrMalformedRef,
			s,
		)
	}
	id, err := txid.NewFromHex(s[:sepIdx])
	if err != nil {
		return Ref{}, err
	}
	idxStr := s[sepIdx+1:]
	// ParseUint tolerates a leading '+', which we do not
	if idxStr == "" || idxStr[0] < '0' || idxStr[0] > '9' {
		return Ref{}, fmt.Errorf(
			"%w: invalid output index %q",
			ErrMalformedRef,
			idxStr,
		)
	}
	idx, err := strconv.ParseUint(idxStr, 10, 64)
	if err != nil {
		return Ref{}, fmt.Errorf(
			"%w: invalid output index %q: %w",
			ErrMalformedRef,
			idxStr,
			err,
		)
	}
	return New(id, idx), nil
}

// MustParse is like Parse but panics on malformed input
func MustParse(s string) Ref {
	ret, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return ret
}

// ParseAll parses each string in order, stopping at the first error
func ParseAll(items []string) ([]Ref, error) {
	ret := make([]Ref, 0, len(items))
	for _, item := range items {
		ref, err := Parse(item)
		if err != nil {
			return nil, err
		}
		ret = append(ret, ref)
	}
	return ret, nil
}

// Key returns the storage key for the reference. The unsigned lexicographic
// order of keys is the same as the Compare order of the references.
func (r Ref) Key() []byte {
	key := make([]byte, 0, KeySize)
	key = append(key, KeyPrefix...)
	key = append(key, r.TxId[:]...)
	key = binary.BigEndian.AppendUint64(key, r.Index)
	return key
}

// FromKey decodes a storage key produced by Key
func FromKey(key []byte) (Ref, error) {
	if len(key) != KeySize || string(key[:len(KeyPrefix)]) != KeyPrefix {
		return Ref{}, fmt.Errorf(
			"%w: invalid storage key of length %d",
			ErrMalformedRef,
			len(key),
		)
	}
	id, err := txid.NewFromBytes(
		key[len(KeyPrefix) : len(KeyPrefix)+txid.Size],
	)
	if err != nil {
		return Ref{}, err
	}
	idx := binary.BigEndian.Uint64(key[len(KeyPrefix)+txid.Size:])
	return New(id, idx), nil
}
