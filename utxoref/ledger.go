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
	"fmt"
	"math"
	"math/big"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/gouroboros/ledger/shelley"
	"github.com/blinklabs-io/plutigo/data"
	"github.com/blinklabs-io/utxoorder/txid"
	utxorpc "github.com/utxorpc/go-codegen/utxorpc/v1alpha/cardano"
)

// FromTransactionInput returns the Ref for a ledger transaction input
func FromTransactionInput(input lcommon.TransactionInput) Ref {
	return New(
		txid.FromBlake2b256(input.Id()),
		uint64(input.Index()),
	)
}

// FromTransactionInputs converts a list of ledger transaction inputs
func FromTransactionInputs(inputs []lcommon.TransactionInput) []Ref {
	ret := make([]Ref, 0, len(inputs))
	for _, input := range inputs {
		ret = append(ret, FromTransactionInput(input))
	}
	return ret
}

// TransactionInput returns the reference as a Shelley-era ledger input. The
// ledger uses 32-bit output indexes.
func (r Ref) TransactionInput() (shelley.ShelleyTransactionInput, error) {
	idx, err := r.index32()
	if err != nil {
		return shelley.ShelleyTransactionInput{}, err
	}
	return shelley.ShelleyTransactionInput{
		TxId:        r.TxId.Blake2b256(),
		OutputIndex: idx,
	}, nil
}

// FromUtxorpc returns the Ref for a UTxO RPC transaction input
func FromUtxorpc(input *utxorpc.TxInput) (Ref, error) {
	if input == nil {
		return Ref{}, fmt.Errorf("%w: nil input", ErrMalformedRef)
	}
	id, err := txid.NewFromBytes(input.GetTxHash())
	if err != nil {
		return Ref{}, err
	}
	return New(id, uint64(input.GetOutputIndex())), nil
}

// Utxorpc returns the reference as a UTxO RPC transaction input
func (r Ref) Utxorpc() (*utxorpc.TxInput, error) {
	idx, err := r.index32()
	if err != nil {
		return nil, err
	}
	return &utxorpc.TxInput{
		TxHash:      r.TxId.Bytes(),
		OutputIndex: idx,
	}, nil
}

// ToPlutusData returns the reference as a Plutus TxOutRef
func (r Ref) ToPlutusData() data.PlutusData {
	return data.NewConstr(0,
		data.NewByteString(r.TxId.Bytes()),
		data.NewInteger(new(big.Int).SetUint64(r.Index)),
	)
}

func (r Ref) index32() (uint32, error) {
	if r.Index > math.MaxUint32 {
		return 0, fmt.Errorf(
			"%w: %d does not fit in 32 bits",
			ErrIndexOutOfRange,
			r.Index,
		)
	}
	return uint32(r.Index), nil
}
