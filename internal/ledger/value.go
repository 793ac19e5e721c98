package ledger

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
)

// Hash32 is a 32-byte ledger hash (transaction ids, datum hashes).
type Hash32 [32]byte

// String renders the hash as lowercase hex.
func (h Hash32) String() string {
	return hex.EncodeToString(h[:])
}

// ParseHash32 parses a 64-character hex string.
func ParseHash32(s string) (Hash32, error) {
	var h Hash32
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("parse hash: %w", err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("parse hash: expected %d bytes, got %d", len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// OutRef identifies a transaction output.
type OutRef struct {
	TxID  Hash32
	Index uint32
}

func (r OutRef) String() string {
	return fmt.Sprintf("%s#%d", r.TxID, r.Index)
}

// Less orders references by transaction id bytes, then index.
// This is the order the ledger uses to index inputs for redeemers.
func (r OutRef) Less(o OutRef) bool {
	if c := bytes.Compare(r.TxID[:], o.TxID[:]); c != 0 {
		return c < 0
	}
	return r.Index < o.Index
}

// SortOutRefs returns a sorted copy of refs.
func SortOutRefs(refs []OutRef) []OutRef {
	out := append([]OutRef(nil), refs...)
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// AssetID names a native asset. Policy and Name hold raw bytes.
// The zero AssetID stands for the native coin.
type AssetID struct {
	Policy string
	Name   string
}

// Coin is the pseudo-asset used for the native coin in value rows.
var Coin = AssetID{}

// NewAssetID builds an AssetID from raw bytes.
func NewAssetID(policy, name []byte) AssetID {
	return AssetID{Policy: string(policy), Name: string(name)}
}

// PolicyBytes returns the policy id bytes.
func (a AssetID) PolicyBytes() []byte { return []byte(a.Policy) }

// NameBytes returns the asset name bytes.
func (a AssetID) NameBytes() []byte { return []byte(a.Name) }

func (a AssetID) String() string {
	if a == Coin {
		return "coin"
	}
	return hex.EncodeToString([]byte(a.Policy)) + "." + hex.EncodeToString([]byte(a.Name))
}

func (a AssetID) less(o AssetID) bool {
	if a.Policy != o.Policy {
		return a.Policy < o.Policy
	}
	return a.Name < o.Name
}

// Amount is one asset quantity.
type Amount struct {
	Asset    AssetID
	Quantity int64
}

// Value is a multi-asset bundle. Quantities are signed so that the
// same type carries output values, mints and deltas.
type Value struct {
	Coin   int64
	Assets map[AssetID]int64
}

// Quantity returns the amount of a held asset.
func (v Value) Quantity(a AssetID) int64 {
	if a == Coin {
		return v.Coin
	}
	return v.Assets[a]
}

// HasPolicy reports whether any asset of the policy is present with a
// positive quantity.
func (v Value) HasPolicy(policy []byte) bool {
	for a, q := range v.Assets {
		if a.Policy == string(policy) && q > 0 {
			return true
		}
	}
	return false
}

// Names returns the asset names held under policy with a positive
// quantity, sorted.
func (v Value) Names(policy []byte) [][]byte {
	var names []string
	for a, q := range v.Assets {
		if a.Policy == string(policy) && q > 0 {
			names = append(names, a.Name)
		}
	}
	sort.Strings(names)
	out := make([][]byte, len(names))
	for i, n := range names {
		out[i] = []byte(n)
	}
	return out
}

// Policies returns the distinct policies present, sorted by bytes.
func (v Value) Policies() []string {
	seen := make(map[string]bool)
	var out []string
	for a := range v.Assets {
		if !seen[a.Policy] {
			seen[a.Policy] = true
			out = append(out, a.Policy)
		}
	}
	sort.Strings(out)
	return out
}

// Add returns v + o.
func (v Value) Add(o Value) Value {
	return v.combine(o, 1)
}

// Sub returns v - o.
func (v Value) Sub(o Value) Value {
	return v.combine(o, -1)
}

func (v Value) combine(o Value, sign int64) Value {
	out := Value{Coin: v.Coin + sign*o.Coin, Assets: make(map[AssetID]int64, len(v.Assets)+len(o.Assets))}
	for a, q := range v.Assets {
		out.Assets[a] += q
	}
	for a, q := range o.Assets {
		out.Assets[a] += sign * q
	}
	return out
}

// Entries lists the coin followed by every asset, sorted, including zeros.
func (v Value) Entries() []Amount {
	out := make([]Amount, 0, len(v.Assets)+1)
	out = append(out, Amount{Asset: Coin, Quantity: v.Coin})
	assets := make([]AssetID, 0, len(v.Assets))
	for a := range v.Assets {
		assets = append(assets, a)
	}
	sort.Slice(assets, func(i, j int) bool { return assets[i].less(assets[j]) })
	for _, a := range assets {
		out = append(out, Amount{Asset: a, Quantity: v.Assets[a]})
	}
	return out
}

// NonZero is Entries without zero quantities.
func (v Value) NonZero() []Amount {
	all := v.Entries()
	out := all[:0]
	for _, e := range all {
		if e.Quantity != 0 {
			out = append(out, e)
		}
	}
	return out
}

// ValueOf builds a Value from amounts; the Coin asset sets the coin.
func ValueOf(amounts ...Amount) Value {
	v := Value{Assets: make(map[AssetID]int64)}
	for _, a := range amounts {
		if a.Asset == Coin {
			v.Coin += a.Quantity
			continue
		}
		v.Assets[a.Asset] += a.Quantity
	}
	return v
}
