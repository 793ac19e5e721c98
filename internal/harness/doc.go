// Package harness replays recorded chain-sync sessions against a fresh
// store and checks the projection they leave behind.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: vote_then_rollback
//	description: "What this scenario validates"
//	network: preprod
//	policies:
//	  gov_state_nft: a0a0...
//	events:
//	  - forward:
//	      slot: 20
//	      height: 1
//	      txs:
//	        - cbor: 84a400...
//	  - forward:
//	      slot: 40
//	      height: 2
//	      txs:
//	        - cbor: 84a400...
//	    expect_error: INVARIANT_VIOLATION
//	  - rollback:
//	      slot: 20
//	  - rollback:
//	      origin: true
//	assertions:
//	  - type: row_count
//	    table: gov_states
//	    count: 1
//	  - type: tip
//	    slot: 20
//	  - type: threads
//	    gov: 1
//	  - type: cache_consistent
//
// Block hashes may be omitted and are then derived from slot and height.
// Transaction ids default to the hash of the transaction body.
//
// # Assertion Types
//
//   - row_count: A table holds exactly count rows
//   - tip: The stored tip is at slot, or the store is empty
//   - threads: The tracked-state cache holds gov and treasury threads
//   - cache_consistent: The live cache equals one rebuilt from the store
//
// # Golden Files
//
// RunWithGolden compares the final store dump, which renders every row by
// natural key, against testdata/golden/{name}.golden. Two runs of the same
// scenario always produce the same dump.
package harness
