package tracker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/roach88/govsync/internal/ledger"
	"github.com/roach88/govsync/internal/store"
)

// ErrDuplicateThread is returned when a second live version of a thread
// is added. Callers treat it as an invariant violation.
var ErrDuplicateThread = errors.New("thread already has an unspent version")

// Reader is the subset of the store the cache is rebuilt from.
type Reader interface {
	UnspentGovStates(ctx context.Context) ([]store.GovThread, error)
	UnspentTreasurerStates(ctx context.Context, treasurerPolicy []byte) ([]store.TreasuryThread, error)
}

// Cache maps thread tokens to their unspent state version.
type Cache struct {
	gov      map[ledger.AssetID]store.GovThread
	treasury map[ledger.AssetID]store.TreasuryThread
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		gov:      make(map[ledger.AssetID]store.GovThread),
		treasury: make(map[ledger.AssetID]store.TreasuryThread),
	}
}

// Load builds a cache from the unspent state versions in the store.
func Load(ctx context.Context, r Reader, treasurerPolicy []byte) (*Cache, error) {
	c := New()
	if err := c.Rebuild(ctx, r, treasurerPolicy); err != nil {
		return nil, err
	}
	return c, nil
}

// Rebuild replaces the contents of the cache with the unspent state
// versions in the store. On error the cache is left unchanged.
func (c *Cache) Rebuild(ctx context.Context, r Reader, treasurerPolicy []byte) error {
	govs, err := r.UnspentGovStates(ctx)
	if err != nil {
		return fmt.Errorf("rebuild cache: %w", err)
	}
	treasuries, err := r.UnspentTreasurerStates(ctx, treasurerPolicy)
	if err != nil {
		return fmt.Errorf("rebuild cache: %w", err)
	}

	next := New()
	for _, t := range govs {
		if err := next.AddGov(t); err != nil {
			return fmt.Errorf("rebuild cache: %w", err)
		}
	}
	for _, t := range treasuries {
		if err := next.AddTreasury(t); err != nil {
			return fmt.Errorf("rebuild cache: %w", err)
		}
	}
	c.gov, c.treasury = next.gov, next.treasury
	return nil
}

// AddGov starts tracking a governance state version. The thread must not
// already have a tracked version.
func (c *Cache) AddGov(t store.GovThread) error {
	if cur, ok := c.gov[t.Thread]; ok {
		return fmt.Errorf("governance thread %s at %s (tracked at %s): %w", t.Thread, t.Ref, cur.Ref, ErrDuplicateThread)
	}
	c.gov[t.Thread] = t
	return nil
}

// AddTreasury starts tracking a treasurer state version. The thread must
// not already have a tracked version.
func (c *Cache) AddTreasury(t store.TreasuryThread) error {
	if cur, ok := c.treasury[t.Thread]; ok {
		return fmt.Errorf("treasury thread %s at %s (tracked at %s): %w", t.Thread, t.Ref, cur.Ref, ErrDuplicateThread)
	}
	c.treasury[t.Thread] = t
	return nil
}

// GovByOutRef returns the tracked governance version created at ref.
func (c *Cache) GovByOutRef(ref ledger.OutRef) (store.GovThread, bool) {
	for _, t := range c.gov {
		if t.Ref == ref {
			return t, true
		}
	}
	return store.GovThread{}, false
}

// TreasuryByOutRef returns the tracked treasurer version created at ref.
func (c *Cache) TreasuryByOutRef(ref ledger.OutRef) (store.TreasuryThread, bool) {
	for _, t := range c.treasury {
		if t.Ref == ref {
			return t, true
		}
	}
	return store.TreasuryThread{}, false
}

// RemoveGovByOutRef stops tracking the governance version created at ref.
// Returns false if no tracked version lives there.
func (c *Cache) RemoveGovByOutRef(ref ledger.OutRef) bool {
	t, ok := c.GovByOutRef(ref)
	if ok {
		delete(c.gov, t.Thread)
	}
	return ok
}

// RemoveTreasuryByOutRef stops tracking the treasurer version created at
// ref. Returns false if no tracked version lives there.
func (c *Cache) RemoveTreasuryByOutRef(ref ledger.OutRef) bool {
	t, ok := c.TreasuryByOutRef(ref)
	if ok {
		delete(c.treasury, t.Thread)
	}
	return ok
}

// GovThreads returns the tracked governance versions ordered by state id.
func (c *Cache) GovThreads() []store.GovThread {
	out := make([]store.GovThread, 0, len(c.gov))
	for _, t := range c.gov {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StateID < out[j].StateID })
	return out
}

// TreasuryThreads returns the tracked treasurer versions ordered by state id.
func (c *Cache) TreasuryThreads() []store.TreasuryThread {
	out := make([]store.TreasuryThread, 0, len(c.treasury))
	for _, t := range c.treasury {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StateID < out[j].StateID })
	return out
}

// IsStakingAddress reports whether addr is the staking address of a
// tracked governance thread.
func (c *Cache) IsStakingAddress(addr []byte) bool {
	for _, t := range c.gov {
		if bytes.Equal(t.StakingAddress, addr) {
			return true
		}
	}
	return false
}

// IsTallyAddress reports whether addr is the tally address of a tracked
// governance thread.
func (c *Cache) IsTallyAddress(addr []byte) bool {
	for _, t := range c.gov {
		if bytes.Equal(t.TallyAddress, addr) {
			return true
		}
	}
	return false
}

// TallyAuthPolicies returns the distinct tally auth policies of the
// tracked governance threads, sorted.
func (c *Cache) TallyAuthPolicies() [][]byte {
	seen := make(map[string]bool)
	var out [][]byte
	for _, t := range c.gov {
		if !seen[string(t.TallyAuthPolicy)] {
			seen[string(t.TallyAuthPolicy)] = true
			out = append(out, t.TallyAuthPolicy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i], out[j]) < 0 })
	return out
}

// IsValueStoreAddress reports whether addr is the value store of a
// tracked treasury thread.
func (c *Cache) IsValueStoreAddress(addr []byte) bool {
	for _, t := range c.treasury {
		if bytes.Equal(t.ValueStore, addr) {
			return true
		}
	}
	return false
}

// Len returns the number of tracked governance and treasury threads.
func (c *Cache) Len() (gov, treasury int) {
	return len(c.gov), len(c.treasury)
}

// Clone returns an independent copy of the cache.
func (c *Cache) Clone() *Cache {
	out := New()
	for k, v := range c.gov {
		out.gov[k] = v
	}
	for k, v := range c.treasury {
		out.treasury[k] = v
	}
	return out
}

// Restore replaces the contents of the cache with those of snapshot.
func (c *Cache) Restore(snapshot *Cache) {
	clone := snapshot.Clone()
	c.gov, c.treasury = clone.gov, clone.treasury
}

// Equal reports whether both caches track the same versions.
func (c *Cache) Equal(o *Cache) bool {
	if len(c.gov) != len(o.gov) || len(c.treasury) != len(o.treasury) {
		return false
	}
	for k, v := range c.gov {
		w, ok := o.gov[k]
		if !ok || !govEqual(v, w) {
			return false
		}
	}
	for k, v := range c.treasury {
		w, ok := o.treasury[k]
		if !ok || v.StateID != w.StateID || v.Ref != w.Ref || !bytes.Equal(v.ValueStore, w.ValueStore) {
			return false
		}
	}
	return true
}

func govEqual(a, b store.GovThread) bool {
	return a.StateID == b.StateID &&
		a.Ref == b.Ref &&
		bytes.Equal(a.TallyAddress, b.TallyAddress) &&
		bytes.Equal(a.StakingAddress, b.StakingAddress) &&
		bytes.Equal(a.TallyAuthPolicy, b.TallyAuthPolicy)
}
