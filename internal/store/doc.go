// Package store provides SQLite-backed durable storage for the governance
// projection.
//
// The store holds the chain outputs relevant to the protocol together with
// every state version and transition the projectors derive from them:
//   - Blocks, transactions and outputs with their multi-asset values
//   - Parameter sets, deduplicated by natural key
//   - Immutable state versions (one row per output that carries a state)
//   - Transitions linking a previous version to the next one
//
// # Write Pattern
//
// All writes of a block go through a single BlockTx opened by BeginBlock.
// Commit makes the block visible; Rollback discards it. Shared rows
// (addresses, tokens, datums, parameters) are written with
// INSERT ... ON CONFLICT DO NOTHING and re-read by natural key, so a
// replayed block yields the same rows.
//
// # Rollbacks
//
// Every row a block creates references the block through a chain of
// ON DELETE CASCADE foreign keys, and the spend marker on tx_outputs is
// ON DELETE SET NULL. Deleting blocks above a slot therefore removes all
// state the blocks produced and un-spends the outputs they consumed.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Required for cascading rollbacks
//
// Hashes, policy ids, asset names and addresses are stored as lowercase hex.
package store
