package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/roach88/govsync/internal/cborutil"
)

// ErrUnsupported marks transactions that use ledger features the decoder
// does not model. The transaction returned alongside it still carries its
// inputs so callers can record the spends.
var ErrUnsupported = errors.New("unsupported ledger feature")

// maxCertificateType is the highest certificate type the decoder knows.
const maxCertificateType = 18

// byronHeader is the address header type of Byron bootstrap addresses.
const byronHeader = 0x8

// Transaction body keys.
const (
	bodyInputs          = 0
	bodyOutputs         = 1
	bodyCertificates    = 4
	bodyMint            = 9
	bodyCollateral      = 13
	bodyReferenceInputs = 18
)

// Witness set keys.
const (
	witnessPlutusData = 4
	witnessRedeemers  = 5
)

// Post-Alonzo output keys.
const (
	outputAddress = 0
	outputValue   = 1
	outputDatum   = 2
)

// HashBody returns the transaction id of an encoded transaction body.
func HashBody(body []byte) Hash32 {
	return Hash32(blake2b.Sum256(body))
}

// HashDatum returns the datum hash of raw Plutus data.
func HashDatum(raw []byte) Hash32 {
	return Hash32(blake2b.Sum256(raw))
}

// DecodeTransaction decodes a full transaction (body, witnesses, validity
// flag, auxiliary data). The id is trusted as given; a mismatch with the
// body hash is only logged. Pre-Alonzo transactions carry no validity
// flag and are always valid.
//
// When the transaction uses an unsupported feature the error wraps
// ErrUnsupported and the returned transaction has its inputs populated.
func DecodeTransaction(id Hash32, raw []byte, logger *slog.Logger) (*Transaction, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var top []cbor.RawMessage
	if err := cborutil.DecMode.Unmarshal(raw, &top); err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", id, err)
	}
	if len(top) != 3 && len(top) != 4 {
		return nil, fmt.Errorf("decode transaction %s: expected 3 or 4 elements, got %d", id, len(top))
	}

	if got := HashBody(top[0]); got != id {
		logger.Debug("transaction id does not match body hash", "id", id, "body_hash", got)
	}

	body, err := uintKeyed(top[0])
	if err != nil {
		return nil, fmt.Errorf("decode transaction %s: body: %w", id, err)
	}

	tx := &Transaction{
		ID:     id,
		Valid:  true,
		Mint:   Value{Assets: map[AssetID]int64{}},
		Datums: map[Hash32][]byte{},
	}
	if len(top) == 4 {
		if err := cborutil.DecMode.Unmarshal(top[2], &tx.Valid); err != nil {
			return nil, fmt.Errorf("decode transaction %s: validity flag: %w", id, err)
		}
	}

	if tx.Inputs, err = decodeOutRefs(body[bodyInputs]); err != nil {
		return nil, fmt.Errorf("decode transaction %s: inputs: %w", id, err)
	}
	if tx.Collateral, err = decodeOutRefs(body[bodyCollateral]); err != nil {
		return nil, fmt.Errorf("decode transaction %s: collateral: %w", id, err)
	}
	if tx.ReferenceInputs, err = decodeOutRefs(body[bodyReferenceInputs]); err != nil {
		return nil, fmt.Errorf("decode transaction %s: reference inputs: %w", id, err)
	}

	if tx.Certificates, err = decodeCertificates(body[bodyCertificates]); err != nil {
		return tx, fmt.Errorf("decode transaction %s: certificates: %w", id, err)
	}

	if raw, ok := body[bodyOutputs]; ok {
		items, err := cborutil.Elements(raw)
		if err != nil {
			return nil, fmt.Errorf("decode transaction %s: outputs: %w", id, err)
		}
		tx.Outputs = make([]Output, 0, len(items))
		for i, item := range items {
			out, err := decodeOutput(item)
			if err != nil {
				return tx, fmt.Errorf("decode transaction %s: output %d: %w", id, i, err)
			}
			out.Index = uint32(i)
			tx.Outputs = append(tx.Outputs, out)
		}
	}

	if raw, ok := body[bodyMint]; ok {
		assets, err := decodeMultiAsset(raw)
		if err != nil {
			return tx, fmt.Errorf("decode transaction %s: mint: %w", id, err)
		}
		tx.Mint.Assets = assets
	}

	witness, err := uintKeyed(top[1])
	if err != nil {
		return nil, fmt.Errorf("decode transaction %s: witness set: %w", id, err)
	}
	if raw, ok := witness[witnessPlutusData]; ok {
		items, err := cborutil.Elements(raw)
		if err != nil {
			return nil, fmt.Errorf("decode transaction %s: plutus data: %w", id, err)
		}
		for _, item := range items {
			tx.Datums[HashDatum(item)] = []byte(item)
		}
	}
	if raw, ok := witness[witnessRedeemers]; ok {
		if tx.Redeemers, err = decodeRedeemers(raw); err != nil {
			return nil, fmt.Errorf("decode transaction %s: redeemers: %w", id, err)
		}
	}

	for i := range tx.Outputs {
		out := &tx.Outputs[i]
		if out.Datum == nil && out.DatumHash != nil {
			out.Datum = tx.Datums[*out.DatumHash]
		}
	}
	return tx, nil
}

// uintKeyed decodes a map with unsigned integer keys. A nil input
// yields an empty map.
func uintKeyed(raw []byte) (map[uint64]cbor.RawMessage, error) {
	pairs, err := cborutil.MapPairs(raw)
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]cbor.RawMessage, len(pairs))
	for _, p := range pairs {
		var key uint64
		if err := cborutil.DecMode.Unmarshal(p.Key, &key); err != nil {
			return nil, fmt.Errorf("map key: %w", err)
		}
		out[key] = p.Value
	}
	return out, nil
}

type outRef struct {
	_     struct{} `cbor:",toarray"`
	TxID  []byte
	Index uint32
}

func decodeOutRefs(raw cbor.RawMessage) ([]OutRef, error) {
	if raw == nil {
		return nil, nil
	}
	items, err := cborutil.Elements(raw)
	if err != nil {
		return nil, err
	}
	refs := make([]OutRef, 0, len(items))
	for _, item := range items {
		var r outRef
		if err := cborutil.DecMode.Unmarshal(item, &r); err != nil {
			return nil, err
		}
		if len(r.TxID) != len(Hash32{}) {
			return nil, fmt.Errorf("transaction id has %d bytes", len(r.TxID))
		}
		var ref OutRef
		copy(ref.TxID[:], r.TxID)
		ref.Index = r.Index
		refs = append(refs, ref)
	}
	return refs, nil
}

func decodeCertificates(raw cbor.RawMessage) ([]uint64, error) {
	if raw == nil {
		return nil, nil
	}
	items, err := cborutil.Elements(raw)
	if err != nil {
		return nil, err
	}
	kinds := make([]uint64, 0, len(items))
	for _, item := range items {
		var cert []cbor.RawMessage
		if err := cborutil.DecMode.Unmarshal(item, &cert); err != nil {
			return nil, err
		}
		if len(cert) == 0 {
			return nil, errors.New("empty certificate")
		}
		var kind uint64
		if err := cborutil.DecMode.Unmarshal(cert[0], &kind); err != nil {
			return nil, err
		}
		if kind > maxCertificateType {
			return nil, fmt.Errorf("certificate type %d: %w", kind, ErrUnsupported)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

func decodeOutput(raw cbor.RawMessage) (Output, error) {
	major, err := cborutil.Major(raw)
	if err != nil {
		return Output{}, err
	}

	var out Output
	var addr, value, datumHash, opt cbor.RawMessage
	switch major {
	case cborutil.MajorArray:
		var parts []cbor.RawMessage
		if err := cborutil.DecMode.Unmarshal(raw, &parts); err != nil {
			return Output{}, err
		}
		if len(parts) < 2 || len(parts) > 3 {
			return Output{}, fmt.Errorf("legacy output has %d elements", len(parts))
		}
		addr, value = parts[0], parts[1]
		if len(parts) == 3 {
			datumHash = parts[2]
		}
	case cborutil.MajorMap:
		fields, err := uintKeyed(raw)
		if err != nil {
			return Output{}, err
		}
		addr, value, opt = fields[outputAddress], fields[outputValue], fields[outputDatum]
	default:
		return Output{}, fmt.Errorf("unexpected output major type %d", major)
	}

	if err := cborutil.DecMode.Unmarshal(addr, &out.Address); err != nil {
		return Output{}, fmt.Errorf("address: %w", err)
	}
	if len(out.Address) == 0 {
		return Output{}, errors.New("empty address")
	}
	if out.Address[0]>>4 == byronHeader {
		return Output{}, fmt.Errorf("bootstrap address: %w", ErrUnsupported)
	}

	if out.Value, err = decodeValue(value); err != nil {
		return Output{}, fmt.Errorf("value: %w", err)
	}

	if datumHash != nil {
		h, err := decodeHash(datumHash)
		if err != nil {
			return Output{}, fmt.Errorf("datum hash: %w", err)
		}
		out.DatumHash = &h
	}
	if opt != nil {
		if err := decodeDatumOption(opt, &out); err != nil {
			return Output{}, fmt.Errorf("datum: %w", err)
		}
	}
	return out, nil
}

func decodeDatumOption(raw cbor.RawMessage, out *Output) error {
	var opt []cbor.RawMessage
	if err := cborutil.DecMode.Unmarshal(raw, &opt); err != nil {
		return err
	}
	if len(opt) != 2 {
		return fmt.Errorf("datum option has %d elements", len(opt))
	}
	var kind uint64
	if err := cborutil.DecMode.Unmarshal(opt[0], &kind); err != nil {
		return err
	}
	switch kind {
	case 0:
		h, err := decodeHash(opt[1])
		if err != nil {
			return err
		}
		out.DatumHash = &h
	case 1:
		var tag cbor.RawTag
		if err := cborutil.DecMode.Unmarshal(opt[1], &tag); err != nil {
			return err
		}
		if tag.Number != 24 {
			return fmt.Errorf("inline datum tag %d", tag.Number)
		}
		var datum []byte
		if err := cborutil.DecMode.Unmarshal(tag.Content, &datum); err != nil {
			return err
		}
		h := HashDatum(datum)
		out.DatumHash = &h
		out.Datum = datum
	default:
		return fmt.Errorf("datum option kind %d", kind)
	}
	return nil
}

func decodeHash(raw cbor.RawMessage) (Hash32, error) {
	var b []byte
	if err := cborutil.DecMode.Unmarshal(raw, &b); err != nil {
		return Hash32{}, err
	}
	if len(b) != len(Hash32{}) {
		return Hash32{}, fmt.Errorf("hash has %d bytes", len(b))
	}
	return Hash32(b), nil
}

func decodeValue(raw cbor.RawMessage) (Value, error) {
	major, err := cborutil.Major(raw)
	if err != nil {
		return Value{}, err
	}
	v := Value{Assets: map[AssetID]int64{}}
	switch major {
	case cborutil.MajorUint:
		v.Coin, err = decodeQuantity(raw)
		return v, err
	case cborutil.MajorArray:
		var parts []cbor.RawMessage
		if err := cborutil.DecMode.Unmarshal(raw, &parts); err != nil {
			return Value{}, err
		}
		if len(parts) != 2 {
			return Value{}, fmt.Errorf("value has %d elements", len(parts))
		}
		if v.Coin, err = decodeQuantity(parts[0]); err != nil {
			return Value{}, err
		}
		if v.Assets, err = decodeMultiAsset(parts[1]); err != nil {
			return Value{}, err
		}
		return v, nil
	}
	return Value{}, fmt.Errorf("unexpected value major type %d", major)
}

func decodeMultiAsset(raw cbor.RawMessage) (map[AssetID]int64, error) {
	var policies map[cbor.ByteString]map[cbor.ByteString]cbor.RawMessage
	if err := cborutil.DecMode.Unmarshal(raw, &policies); err != nil {
		return nil, err
	}
	assets := make(map[AssetID]int64)
	for policy, names := range policies {
		for name, q := range names {
			n, err := decodeQuantity(q)
			if err != nil {
				return nil, fmt.Errorf("asset %x.%x: %w", string(policy), string(name), err)
			}
			assets[AssetID{Policy: string(policy), Name: string(name)}] = n
		}
	}
	return assets, nil
}

// decodeQuantity reads a signed integer. Quantities beyond int64 are
// legal on chain but never occur in the protocol's outputs.
func decodeQuantity(raw cbor.RawMessage) (int64, error) {
	var n big.Int
	if err := cborutil.DecMode.Unmarshal(raw, &n); err != nil {
		return 0, err
	}
	if !n.IsInt64() {
		return 0, fmt.Errorf("quantity %s: %w", n.String(), ErrUnsupported)
	}
	return n.Int64(), nil
}

type legacyRedeemer struct {
	_       struct{} `cbor:",toarray"`
	Tag     uint8
	Index   uint32
	Data    cbor.RawMessage
	ExUnits cbor.RawMessage
}

type redeemerKey struct {
	_     struct{} `cbor:",toarray"`
	Tag   uint8
	Index uint32
}

type redeemerValue struct {
	_       struct{} `cbor:",toarray"`
	Data    cbor.RawMessage
	ExUnits cbor.RawMessage
}

func decodeRedeemers(raw cbor.RawMessage) ([]Redeemer, error) {
	major, err := cborutil.Major(raw)
	if err != nil {
		return nil, err
	}
	switch major {
	case cborutil.MajorArray:
		var items []legacyRedeemer
		if err := cborutil.DecMode.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		out := make([]Redeemer, 0, len(items))
		for _, r := range items {
			out = append(out, Redeemer{Tag: RedeemerTag(r.Tag), Index: r.Index, Data: []byte(r.Data)})
		}
		return out, nil
	case cborutil.MajorMap:
		pairs, err := cborutil.MapPairs(raw)
		if err != nil {
			return nil, err
		}
		out := make([]Redeemer, 0, len(pairs))
		for _, p := range pairs {
			var k redeemerKey
			if err := cborutil.DecMode.Unmarshal(p.Key, &k); err != nil {
				return nil, fmt.Errorf("redeemer key: %w", err)
			}
			var v redeemerValue
			if err := cborutil.DecMode.Unmarshal(p.Value, &v); err != nil {
				return nil, fmt.Errorf("redeemer value: %w", err)
			}
			out = append(out, Redeemer{Tag: RedeemerTag(k.Tag), Index: k.Index, Data: []byte(v.Data)})
		}
		return out, nil
	}
	return nil, fmt.Errorf("unexpected redeemers major type %d", major)
}
