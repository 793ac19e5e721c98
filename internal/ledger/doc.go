// Package ledger models the parts of a Cardano transaction that the
// governance projectors read, and decodes them from the CBOR that the
// chain-sync feed delivers.
//
// The model is deliberately narrow: inputs, reference inputs, outputs with
// their values and datums, the mint field, witness datums and redeemers.
// Everything else in the body is skipped. Transactions using features the
// decoder cannot represent (bootstrap addresses, certificate types it does
// not know) come back with ErrUnsupported and their inputs decoded, so spends
// are still recorded.
//
// Redeemer indexes follow ledger ordering: spend indexes refer to inputs
// sorted by (transaction id, index), mint indexes to policy ids sorted by
// bytes. SortedInputs, MintPolicies and the redeemer lookups encode that
// rule in one place.
package ledger
