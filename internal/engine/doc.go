// Package engine implements the block ingestor.
//
// The ingestor is the single writer of the projection. It receives
// chain-sync events in chain order and applies them to the store.
//
// ARCHITECTURE:
//
// Roll forward:
// 1. BeginBlock opens the block's store transaction
// 2. For each transaction in block order: decode, mark spent inputs,
// run the projectors (governance, staking, tally, licenses, treasury)
// 3. Commit, or on any error roll back and restore the cache snapshot
//
// Roll backward:
// Blocks above the rollback point are deleted (all blocks for origin);
// cascading deletes remove everything they produced and un-spend what
// they consumed. The tracked-state cache is then rebuilt from the store.
//
// ERROR HANDLING:
//
// Transactions using unsupported ledger features still mark their spends
// but are not projected. Invariant violations, store failures and
// undecodable transactions abort the block and are returned as
// IngestError; the caller halts. Transport errors from the event source
// are returned unchanged so the caller can reconnect.
package engine
