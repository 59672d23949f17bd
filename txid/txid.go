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

// Package txid models the 32-byte transaction identifier used to reference
// unspent transaction outputs.
//
// The identifier is held as raw bytes. Hex is only a construction and
// display format: parsing accepts either lettercase and rendering always
// produces lowercase, so two identifiers are equal exactly when their bytes
// are equal.
package txid

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/blinklabs-io/gouroboros/cbor"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
)

// Size is the length of a transaction id in bytes
const Size = 32

// ErrMalformedIdentifier is returned when a transaction id cannot be
// constructed from the provided bytes or text
var ErrMalformedIdentifier = errors.New("malformed transaction identifier")

// TransactionId is the canonical byte form of a transaction id
type TransactionId [Size]byte

// NewFromBytes builds a TransactionId from a byte slice of exactly Size bytes
func NewFromBytes(data []byte) (TransactionId, error) {
	var ret TransactionId
	if len(data) != Size {
		return ret, fmt.Errorf(
			"%w: expected %d bytes, got %d",
			ErrMalformedIdentifier,
			Size,
			len(data),
		)
	}
	copy(ret[:], data)
	return ret, nil
}

// NewFromHex builds a TransactionId from its hex representation. Upper, lower
// and mixed case input all decode to the same identifier.
func NewFromHex(hexStr string) (TransactionId, error) {
	if len(hexStr) != Size*2 {
		return TransactionId{}, fmt.Errorf(
			"%w: expected %d hex characters, got %d",
			ErrMalformedIdentifier,
			Size*2,
			len(hexStr),
		)
	}
	data, err := hex.DecodeString(hexStr)
	if err != nil {
		return TransactionId{}, fmt.Errorf(
			"%w: %w",
			ErrMalformedIdentifier,
			err,
		)
	}
	return NewFromBytes(data)
}

// MustFromHex is like NewFromHex but panics on malformed input. It is
// intended for constants and tests.
func MustFromHex(hexStr string) TransactionId {
	ret, err := NewFromHex(hexStr)
	if err != nil {
		panic(err)
	}
	return ret
}

// FromBlake2b256 converts a ledger transaction hash
func FromBlake2b256(h lcommon.Blake2b256) TransactionId {
	return TransactionId(h)
}

// Blake2b256 returns the identifier as a ledger transaction hash
func (t TransactionId) Blake2b256() lcommon.Blake2b256 {
	return lcommon.Blake2b256(t)
}

// Bytes returns a copy of the identifier bytes
func (t TransactionId) Bytes() []byte {
	return bytes.Clone(t[:])
}

// String returns the lowercase hex representation
func (t TransactionId) String() string {
	return hex.EncodeToString(t[:])
}

// Compare orders identifiers by unsigned byte value, most significant byte
// first. It returns -1, 0 or +1.
func (t TransactionId) Compare(other TransactionId) int {
	return bytes.Compare(t[:], other[:])
}

// IsZero returns true if all bytes of the identifier are zero
func (t TransactionId) IsZero() bool {
	return t == TransactionId{}
}

func (t TransactionId) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TransactionId) UnmarshalText(data []byte) error {
	tmp, err := NewFromHex(string(data))
	if err != nil {
		return err
	}
	*t = tmp
	return nil
}

// MarshalCBOR encodes the identifier as a CBOR byte string
func (t TransactionId) MarshalCBOR() ([]byte, error) {
	return cbor.Encode(t[:])
}

// UnmarshalCBOR decodes a CBOR byte string of exactly Size bytes
func (t *TransactionId) UnmarshalCBOR(data []byte) error {
	var tmpBytes []byte
	if _, err := cbor.Decode(data, &tmpBytes); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedIdentifier, err)
	}
	tmp, err := NewFromBytes(tmpBytes)
	if err != nil {
		return err
	}
	*t = tmp
	return nil
}
