// Package tracker holds the in-memory set of open protocol threads.
//
// A thread is the sequence of state versions that carry the same thread
// token: the governance state NFT for governance threads and the treasurer
// NFT for treasury threads. Exactly one version of a thread is unspent at
// any time, and the Cache maps each thread token to that version.
//
// The Cache is owned by the caller and passed explicitly to the projectors;
// there is no package-level state. It is not safe for concurrent use.
//
// After every committed block the Cache equals the unspent versions in the
// store, so it can always be rebuilt from the store with Load.
package tracker
