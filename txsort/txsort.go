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

// Package txsort orders ledger transaction inputs canonically and produces
// the canonical CBOR encoding of an input set.
package txsort

import (
	"fmt"
	"slices"

	"github.com/blinklabs-io/gouroboros/cbor"
	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/gouroboros/ledger/shelley"
	"github.com/blinklabs-io/utxoorder/utxoref"
)

// Compare orders two ledger inputs using utxoref.Compare
func Compare(a, b lcommon.TransactionInput) int {
	return utxoref.Compare(
		utxoref.FromTransactionInput(a),
		utxoref.FromTransactionInput(b),
	)
}

// Sort returns a copy of inputs in canonical order. The passed slice is not
// modified.
func Sort(inputs []lcommon.TransactionInput) []lcommon.TransactionInput {
	ret := slices.Clone(inputs)
	slices.SortFunc(ret, Compare)
	return ret
}

// IsSorted checks whether inputs are in canonical order
func IsSorted(inputs []lcommon.TransactionInput) bool {
	return slices.IsSortedFunc(inputs, Compare)
}

// InputSet returns the deduplicated, canonically ordered ledger inputs for
// refs
func InputSet(refs []utxoref.Ref) ([]shelley.ShelleyTransactionInput, error) {
	unique := utxoref.Dedup(refs)
	ret := make([]shelley.ShelleyTransactionInput, 0, len(unique))
	for _, ref := range unique {
		input, err := ref.TransactionInput()
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", ref, err)
		}
		ret = append(ret, input)
	}
	return ret, nil
}

// EncodeInputSet returns the CBOR encoding of the input set for refs. Any
// permutation of the same refs, with transaction ids given in any lettercase,
// produces identical bytes.
func EncodeInputSet(refs []utxoref.Ref) ([]byte, error) {
	inputs, err := InputSet(refs)
	if err != nil {
		return nil, err
	}
	return cbor.Encode(inputs)
}

// DecodeInputSet decodes a CBOR input set. The decoded refs are returned in
// encoded order so that callers can verify canonical ordering with
// utxoref.IsSorted.
func DecodeInputSet(cborData []byte) ([]utxoref.Ref, error) {
	var inputs []shelley.ShelleyTransactionInput
	if _, err := cbor.Decode(cborData, &inputs); err != nil {
		return nil, fmt.Errorf("decode input set: %w", err)
	}
	ret := make([]utxoref.Ref, 0, len(inputs))
	for _, input := range inputs {
		ret = append(ret, utxoref.FromTransactionInput(input))
	}
	return ret, nil
}
