/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package models

import "math/big"

// TxHandle references a submitted transaction. The hash is available the
// moment submission returns, before any confirmation, so callers can
// persist it for crash recovery.
type TxHandle struct {
	Hash string
}

// Receipt is the chain's confirmation record for a submitted transaction.
// MintedTokenId is non-nil when the receipt carries an ERC-721 Transfer
// event emitted by the tracked contract.
type Receipt struct {
	TxHash        string
	BlockNumber   uint64
	Confirmations uint64
	Success       bool
	MintedTokenId *big.Int
}
