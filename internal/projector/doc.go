// Package projector turns protocol transactions into relational history.
//
// There is one Projector per protocol component: governance state,
// staking, tally, licenses and treasury. For every transaction of a block
// the ingestor runs all of them in that fixed order against the same
// BlockTx, so a projector can see rows written by the ones before it.
//
// Each projector follows the same four steps:
//
//  1. Output scan: store the outputs that belong to the component and
//     decode their datums into typed state.
//  2. Input scan: look up which stored state versions the transaction
//     spends. Inputs are only scanned when a state was created, since no
//     thread can be spent without producing its next version.
//  3. Classify: derive the transition from the spent and created
//     versions and the redeemers that unlocked them.
//  4. Persist: write the transition rows and update the tracker cache.
//
// Datums that do not match the expected shape are logged at debug level
// and skipped. Conditions that break the thread model (two live versions
// of one thread, a vote that changes several weights) are returned as
// *InvariantError and abort the block.
package projector
