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

package database

const (
	// User queries
	queryInsertUserIfAbsent = `
		INSERT OR IGNORE INTO users (account_address) VALUES (?)`

	queryGetUserByAddress = `
		SELECT account_address, is_onboarded, name, insta_acc_url, verification_status, created_at, updated_at
		FROM users
		WHERE account_address = ?`

	queryOnboardUser = `
		UPDATE users
		SET is_onboarded = 1, name = ?, insta_acc_url = ?, verification_status = ?, updated_at = CURRENT_TIMESTAMP
		WHERE account_address = ?`

	// Token queries. The upsert deliberately leaves is_released out of the
	// update set: the flag is one-way and only MarkReleased may set it.
	queryUpsertToken = `
		INSERT INTO tokens (token_id, owner_address, name, thumbnail_cid, audio_cid, metadata_cid,
		                    available_tokens, token_price, tx_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(token_id) DO UPDATE SET
			owner_address    = excluded.owner_address,
			name             = excluded.name,
			thumbnail_cid    = excluded.thumbnail_cid,
			audio_cid        = excluded.audio_cid,
			metadata_cid     = excluded.metadata_cid,
			available_tokens = excluded.available_tokens,
			token_price      = excluded.token_price,
			tx_hash          = excluded.tx_hash`

	queryMarkReleased = `
		UPDATE tokens SET is_released = 1 WHERE token_id = ?`

	queryGetToken = `
		SELECT token_id, owner_address, name, thumbnail_cid, audio_cid, metadata_cid,
		       available_tokens, token_price, is_released, tx_hash, created_at
		FROM tokens
		WHERE token_id = ?`

	queryGetTokensByOwner = `
		SELECT token_id, owner_address, name, thumbnail_cid, audio_cid, metadata_cid,
		       available_tokens, token_price, is_released, tx_hash, created_at
		FROM tokens
		WHERE owner_address = ?
		ORDER BY created_at DESC, token_id DESC`

	// Mint attempt queries
	queryUpsertMintAttempt = `
		INSERT INTO mint_attempts (id, owner_address, name, creator, asset_cid, metadata_cid, token_uri,
		                           available_tokens, token_price, tx_hash, stage, outcome, cause)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			asset_cid        = excluded.asset_cid,
			metadata_cid     = excluded.metadata_cid,
			token_uri        = excluded.token_uri,
			available_tokens = excluded.available_tokens,
			token_price      = excluded.token_price,
			tx_hash          = excluded.tx_hash,
			stage            = excluded.stage,
			outcome          = excluded.outcome,
			cause            = excluded.cause,
			updated_at       = CURRENT_TIMESTAMP`

	queryGetMintAttempt = `
		SELECT id, owner_address, name, creator, asset_cid, metadata_cid, token_uri,
		       available_tokens, token_price, tx_hash, stage, outcome, cause, created_at, updated_at
		FROM mint_attempts
		WHERE id = ?`

	queryListUnresolvedAttempts = `
		SELECT id, owner_address, name, creator, asset_cid, metadata_cid, token_uri,
		       available_tokens, token_price, tx_hash, stage, outcome, cause, created_at, updated_at
		FROM mint_attempts
		WHERE outcome = ''
		ORDER BY created_at`

	queryListUnresolvedAttemptsByOwner = `
		SELECT id, owner_address, name, creator, asset_cid, metadata_cid, token_uri,
		       available_tokens, token_price, tx_hash, stage, outcome, cause, created_at, updated_at
		FROM mint_attempts
		WHERE outcome = '' AND owner_address = ?
		ORDER BY created_at`

	queryResolveMintAttempt = `
		UPDATE mint_attempts
		SET outcome = ?, cause = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	// Release sync queries
	queryPutReleaseSync = `
		INSERT OR IGNORE INTO release_syncs (token_id, tx_hash) VALUES (?, ?)`

	queryListPendingReleaseSyncs = `
		SELECT token_id, tx_hash, created_at
		FROM release_syncs
		ORDER BY created_at`

	queryResolveReleaseSync = `
		DELETE FROM release_syncs WHERE token_id = ?`
)
