// Package config loads the indexer configuration from YAML.
//
// Every field has a default, so an empty file (or no file) describes a
// mainnet indexer reading from a local Ogmios. The policy ids of the
// deployment must be supplied for the projectors to record anything.
//
// Example:
//
//	network: preprod
//	ogmios_url: ws://localhost:1337
//	database: govsync.db
//	policies:
//	  gov_state_nft: 4e4d...
//	  treasurer_nft: 9a1f...
//	reconnect_interval: 10s
package config
