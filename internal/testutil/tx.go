package testutil

import (
	"sort"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/roach88/govsync/internal/cborutil"
	"github.com/roach88/govsync/internal/ledger"
)

// TxBuilder assembles real transaction CBOR so that tests drive the
// production decoder rather than hand-built ledger structs.
//
// Outputs use the post-Alonzo map form, inputs are wrapped in a tag 258
// set, and redeemers use the Conway map form unless LegacyRedeemers is set.
// Build is deterministic: the same calls yield the same bytes and id.
type TxBuilder struct {
	inputs          []ledger.OutRef
	refInputs       []ledger.OutRef
	outputs         []cbor.RawMessage
	mint            map[ledger.AssetID]int64
	certificates    []uint64
	datums          []cbor.RawMessage
	redeemers       []ledger.Redeemer
	legacyRedeemers bool
	collateral      []ledger.OutRef
	invalid         bool
	// salt makes otherwise identical transactions hash differently.
	salt uint64
}

// NewTx starts an empty transaction.
func NewTx() *TxBuilder {
	return &TxBuilder{mint: map[ledger.AssetID]int64{}}
}

// Salt sets the transaction fee, which only serves to vary the id.
func (b *TxBuilder) Salt(n uint64) *TxBuilder {
	b.salt = n
	return b
}

// Input adds a spent input.
func (b *TxBuilder) Input(ref ledger.OutRef) *TxBuilder {
	b.inputs = append(b.inputs, ref)
	return b
}

// RefInput adds a reference input.
func (b *TxBuilder) RefInput(ref ledger.OutRef) *TxBuilder {
	b.refInputs = append(b.refInputs, ref)
	return b
}

// Output adds an output. A non-nil datum is attached inline.
func (b *TxBuilder) Output(addr []byte, value ledger.Value, datum []byte) *TxBuilder {
	fields := map[uint64]any{0: addr, 1: encodeValue(value)}
	if datum != nil {
		fields[2] = []any{uint64(1), cbor.Tag{Number: 24, Content: datum}}
	}
	b.outputs = append(b.outputs, mustMarshal(fields))
	return b
}

// OutputDatumHash adds an output committing to datum by hash and puts
// the datum in the witness set.
func (b *TxBuilder) OutputDatumHash(addr []byte, value ledger.Value, datum []byte) *TxBuilder {
	h := ledger.HashDatum(datum)
	fields := map[uint64]any{0: addr, 1: encodeValue(value), 2: []any{uint64(0), h[:]}}
	b.outputs = append(b.outputs, mustMarshal(fields))
	return b.WitnessDatum(datum)
}

// LegacyOutput adds a pre-Babbage array output with an optional datum hash.
func (b *TxBuilder) LegacyOutput(addr []byte, value ledger.Value, datumHash *ledger.Hash32) *TxBuilder {
	parts := []any{addr, encodeValue(value)}
	if datumHash != nil {
		parts = append(parts, datumHash[:])
	}
	b.outputs = append(b.outputs, mustMarshal(parts))
	return b
}

// WitnessDatum adds raw Plutus data to the witness set.
func (b *TxBuilder) WitnessDatum(datum []byte) *TxBuilder {
	b.datums = append(b.datums, cbor.RawMessage(datum))
	return b
}

// Mint adds a minted (positive) or burned (negative) quantity.
func (b *TxBuilder) Mint(policy, name []byte, quantity int64) *TxBuilder {
	b.mint[ledger.NewAssetID(policy, name)] += quantity
	return b
}

// Certificate adds a certificate of the given type with no payload.
func (b *TxBuilder) Certificate(kind uint64) *TxBuilder {
	b.certificates = append(b.certificates, kind)
	return b
}

// Redeemer attaches raw Plutus data to a purpose and index.
func (b *TxBuilder) Redeemer(tag ledger.RedeemerTag, index uint32, data []byte) *TxBuilder {
	b.redeemers = append(b.redeemers, ledger.Redeemer{Tag: tag, Index: index, Data: data})
	return b
}

// SpendRedeemer attaches a redeemer to the input ref, computing its
// index in ledger order. The input must already be added.
func (b *TxBuilder) SpendRedeemer(ref ledger.OutRef, data []byte) *TxBuilder {
	for i, in := range ledger.SortOutRefs(b.inputs) {
		if in == ref {
			return b.Redeemer(ledger.RedeemerSpend, uint32(i), data)
		}
	}
	panic("testutil: spend redeemer for an input that is not part of the transaction")
}

// MintRedeemer attaches a redeemer to policy, computing its index among
// the sorted minted policies. Mint entries must already be added.
func (b *TxBuilder) MintRedeemer(policy []byte, data []byte) *TxBuilder {
	var policies []string
	seen := map[string]bool{}
	for a := range b.mint {
		if !seen[a.Policy] {
			seen[a.Policy] = true
			policies = append(policies, a.Policy)
		}
	}
	sort.Strings(policies)
	for i, p := range policies {
		if p == string(policy) {
			return b.Redeemer(ledger.RedeemerMint, uint32(i), data)
		}
	}
	panic("testutil: mint redeemer for a policy that is not minted")
}

// Collateral adds a collateral input.
func (b *TxBuilder) Collateral(ref ledger.OutRef) *TxBuilder {
	b.collateral = append(b.collateral, ref)
	return b
}

// Invalid clears the validity flag, marking a transaction whose scripts
// failed.
func (b *TxBuilder) Invalid() *TxBuilder {
	b.invalid = true
	return b
}

// LegacyRedeemers switches the witness redeemers to the pre-Conway array form.
func (b *TxBuilder) LegacyRedeemers() *TxBuilder {
	b.legacyRedeemers = true
	return b
}

// Build encodes the transaction and returns its id and full CBOR.
func (b *TxBuilder) Build() ledger.RawTx {
	body := map[uint64]any{
		0: cbor.Tag{Number: cborutil.SetTag, Content: encodeRefs(b.inputs)},
		1: nonNil(b.outputs),
		2: b.salt,
	}
	if len(b.collateral) > 0 {
		body[13] = cbor.Tag{Number: cborutil.SetTag, Content: encodeRefs(b.collateral)}
	}
	if len(b.refInputs) > 0 {
		body[18] = cbor.Tag{Number: cborutil.SetTag, Content: encodeRefs(b.refInputs)}
	}
	if len(b.mint) > 0 {
		body[9] = encodeMultiAsset(b.mint)
	}
	if len(b.certificates) > 0 {
		certs := make([]any, 0, len(b.certificates))
		for _, kind := range b.certificates {
			certs = append(certs, []any{kind})
		}
		body[4] = certs
	}
	rawBody := mustMarshal(body)

	witness := map[uint64]any{}
	if len(b.datums) > 0 {
		witness[4] = b.datums
	}
	if len(b.redeemers) > 0 {
		witness[5] = b.encodeRedeemers()
	}

	tx := []any{rawBody, witness, !b.invalid, nil}
	return ledger.RawTx{ID: ledger.HashBody(rawBody), CBOR: mustMarshal(tx)}
}

// Decode builds the transaction and runs it through the ledger decoder.
func (b *TxBuilder) Decode(t testing.TB) *ledger.Transaction {
	t.Helper()
	raw := b.Build()
	tx, err := ledger.DecodeTransaction(raw.ID, raw.CBOR, nil)
	if err != nil {
		t.Fatalf("decode built transaction: %v", err)
	}
	return tx
}

func (b *TxBuilder) encodeRedeemers() cbor.RawMessage {
	if b.legacyRedeemers {
		items := make([]any, 0, len(b.redeemers))
		for _, r := range b.redeemers {
			items = append(items, []any{uint64(r.Tag), uint64(r.Index), cbor.RawMessage(r.Data), exUnits})
		}
		return mustMarshal(items)
	}
	// Conway map form: keys are [tag, index] arrays.
	buf := cborutil.AppendHead(nil, cborutil.MajorMap, uint64(len(b.redeemers)))
	for _, r := range b.redeemers {
		buf = append(buf, mustMarshal([]any{uint64(r.Tag), uint64(r.Index)})...)
		buf = append(buf, mustMarshal([]any{cbor.RawMessage(r.Data), exUnits})...)
	}
	return buf
}

var exUnits = []any{uint64(1000), uint64(1000)}

func encodeRefs(refs []ledger.OutRef) []any {
	out := make([]any, 0, len(refs))
	for _, r := range refs {
		out = append(out, []any{r.TxID[:], uint64(r.Index)})
	}
	return out
}

func encodeValue(v ledger.Value) any {
	assets := map[ledger.AssetID]int64{}
	for a, q := range v.Assets {
		if q != 0 {
			assets[a] = q
		}
	}
	if len(assets) == 0 {
		return uint64(v.Coin)
	}
	return []any{uint64(v.Coin), encodeMultiAsset(assets)}
}

func encodeMultiAsset(assets map[ledger.AssetID]int64) map[cbor.ByteString]map[cbor.ByteString]int64 {
	out := map[cbor.ByteString]map[cbor.ByteString]int64{}
	for a, q := range assets {
		p := cbor.ByteString(a.Policy)
		if out[p] == nil {
			out[p] = map[cbor.ByteString]int64{}
		}
		out[p][cbor.ByteString(a.Name)] = q
	}
	return out
}

func nonNil(items []cbor.RawMessage) []cbor.RawMessage {
	if items == nil {
		return []cbor.RawMessage{}
	}
	return items
}

func mustMarshal(v any) cbor.RawMessage {
	b, err := cborutil.EncMode.Marshal(v)
	if err != nil {
		panic("testutil: encode: " + err.Error())
	}
	return b
}
