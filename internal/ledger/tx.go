package ledger

import (
	"bytes"
	"sort"
)

// Output is a decoded transaction output.
type Output struct {
	Index   uint32
	Address []byte
	Value   Value
	// DatumHash is set for outputs that commit to a datum by hash.
	DatumHash *Hash32
	// Datum is the raw datum: inline, or resolved from the witness set
	// when only the hash is on the output. Nil when unknown.
	Datum []byte
}

// HasDatum reports whether the output's datum bytes are known.
func (o Output) HasDatum() bool {
	return len(o.Datum) > 0
}

// RedeemerTag is the purpose a redeemer is attached to.
type RedeemerTag uint8

const (
	RedeemerSpend    RedeemerTag = 0
	RedeemerMint     RedeemerTag = 1
	RedeemerCert     RedeemerTag = 2
	RedeemerReward   RedeemerTag = 3
	RedeemerVoting   RedeemerTag = 4
	RedeemerProposal RedeemerTag = 5
)

func (t RedeemerTag) String() string {
	switch t {
	case RedeemerSpend:
		return "spend"
	case RedeemerMint:
		return "mint"
	case RedeemerCert:
		return "cert"
	case RedeemerReward:
		return "reward"
	case RedeemerVoting:
		return "voting"
	case RedeemerProposal:
		return "proposal"
	}
	return "unknown"
}

// Redeemer is a script argument from the witness set. Data is the raw
// Plutus data.
type Redeemer struct {
	Tag   RedeemerTag
	Index uint32
	Data  []byte
}

// Transaction is the subset of a ledger transaction the projectors read.
type Transaction struct {
	ID     Hash32
	Inputs []OutRef
	// Collateral is consumed instead of Inputs when Valid is false.
	Collateral []OutRef
	// Valid is false for transactions whose scripts failed. Only their
	// collateral is spent and none of their outputs exist.
	Valid           bool
	ReferenceInputs []OutRef
	Outputs         []Output
	Mint            Value
	Redeemers       []Redeemer
	// Datums maps witness datum hashes to their raw bytes.
	Datums map[Hash32][]byte
	// Certificates lists the type of every certificate in the body.
	Certificates []uint64
}

// SortedInputs returns the inputs in ledger order, the order spend
// redeemer indexes refer to.
func (tx *Transaction) SortedInputs() []OutRef {
	return SortOutRefs(tx.Inputs)
}

// SortedReferenceInputs returns the reference inputs in ledger order.
func (tx *Transaction) SortedReferenceInputs() []OutRef {
	return SortOutRefs(tx.ReferenceInputs)
}

// ReferenceInput returns the reference input at a sorted position.
func (tx *Transaction) ReferenceInput(i int64) (OutRef, bool) {
	refs := tx.SortedReferenceInputs()
	if i < 0 || i >= int64(len(refs)) {
		return OutRef{}, false
	}
	return refs[i], true
}

// SortedInput returns the input at a sorted position.
func (tx *Transaction) SortedInput(i int64) (OutRef, bool) {
	refs := tx.SortedInputs()
	if i < 0 || i >= int64(len(refs)) {
		return OutRef{}, false
	}
	return refs[i], true
}

// Redeemer returns the redeemer with the given purpose and index.
func (tx *Transaction) Redeemer(tag RedeemerTag, index uint32) (Redeemer, bool) {
	for _, r := range tx.Redeemers {
		if r.Tag == tag && r.Index == index {
			return r, true
		}
	}
	return Redeemer{}, false
}

// RedeemersByTag returns every redeemer with the given purpose, in
// witness order.
func (tx *Transaction) RedeemersByTag(tag RedeemerTag) []Redeemer {
	var out []Redeemer
	for _, r := range tx.Redeemers {
		if r.Tag == tag {
			out = append(out, r)
		}
	}
	return out
}

// SpendRedeemer returns the redeemer that unlocks ref.
func (tx *Transaction) SpendRedeemer(ref OutRef) (Redeemer, bool) {
	for i, in := range tx.SortedInputs() {
		if in == ref {
			return tx.Redeemer(RedeemerSpend, uint32(i))
		}
	}
	return Redeemer{}, false
}

// MintPolicies returns the minted policies sorted by bytes, the order
// mint redeemer indexes refer to.
func (tx *Transaction) MintPolicies() [][]byte {
	policies := tx.Mint.Policies()
	out := make([][]byte, len(policies))
	for i, p := range policies {
		out[i] = []byte(p)
	}
	return out
}

// MintRedeemer returns the redeemer of a minting policy.
func (tx *Transaction) MintRedeemer(policy []byte) (Redeemer, bool) {
	for i, p := range tx.MintPolicies() {
		if bytes.Equal(p, policy) {
			return tx.Redeemer(RedeemerMint, uint32(i))
		}
	}
	return Redeemer{}, false
}

// Minted returns the names minted or burned under policy with their
// signed quantities, sorted by name.
func (tx *Transaction) Minted(policy []byte) []Amount {
	var out []Amount
	for a, q := range tx.Mint.Assets {
		if a.Policy == string(policy) {
			out = append(out, Amount{Asset: a, Quantity: q})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asset.Name < out[j].Asset.Name })
	return out
}

// OutputsWithPolicy returns the outputs holding any asset of policy.
func (tx *Transaction) OutputsWithPolicy(policy []byte) []Output {
	var out []Output
	for _, o := range tx.Outputs {
		if o.Value.HasPolicy(policy) {
			out = append(out, o)
		}
	}
	return out
}
