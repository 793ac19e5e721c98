package plutus

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/roach88/govsync/internal/cborutil"
)

const (
	tagPosBignum      = 2
	tagNegBignum      = 3
	tagConstrGeneral  = 102
	tagConstrSmallMin = 121
	tagConstrSmallMax = 127
	tagConstrLargeMin = 1280
	tagConstrLargeMax = 1400
)

// ErrEmpty is returned when decoding an empty byte slice.
var ErrEmpty = errors.New("plutus: empty input")

// Decode parses raw CBOR into a Data value.
// Trailing bytes after the first item are an error.
func Decode(raw []byte) (Data, error) {
	if len(raw) == 0 {
		return nil, ErrEmpty
	}
	if err := cborutil.DecMode.Wellformed(raw); err != nil {
		return nil, fmt.Errorf("plutus: %w", err)
	}
	return decodeItem(raw)
}

func decodeItem(raw []byte) (Data, error) {
	major, err := cborutil.Major(raw)
	if err != nil {
		return nil, err
	}

	switch major {
	case cborutil.MajorUint, cborutil.MajorNegInt:
		var v big.Int
		if err := cborutil.DecMode.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("plutus: integer: %w", err)
		}
		return Int{Value: &v}, nil

	case cborutil.MajorBytes:
		var v []byte
		if err := cborutil.DecMode.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("plutus: bytes: %w", err)
		}
		if v == nil {
			v = []byte{}
		}
		return Bytes(v), nil

	case cborutil.MajorArray:
		items, err := decodeArray(raw)
		if err != nil {
			return nil, err
		}
		return List(items), nil

	case cborutil.MajorMap:
		pairs, err := cborutil.MapPairs(raw)
		if err != nil {
			return nil, fmt.Errorf("plutus: map: %w", err)
		}
		m := make(Map, 0, len(pairs))
		for _, p := range pairs {
			k, err := decodeItem(p.Key)
			if err != nil {
				return nil, err
			}
			v, err := decodeItem(p.Value)
			if err != nil {
				return nil, err
			}
			m = append(m, Pair{Key: k, Value: v})
		}
		return m, nil

	case cborutil.MajorTag:
		return decodeTagged(raw)
	}

	return nil, fmt.Errorf("plutus: unsupported major type %d", major)
}

func decodeTagged(raw []byte) (Data, error) {
	var tag cbor.RawTag
	if err := cborutil.DecMode.Unmarshal(raw, &tag); err != nil {
		return nil, fmt.Errorf("plutus: tag: %w", err)
	}

	switch n := tag.Number; {
	case n == tagPosBignum || n == tagNegBignum:
		var v big.Int
		if err := cborutil.DecMode.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("plutus: bignum: %w", err)
		}
		return Int{Value: &v}, nil

	case n >= tagConstrSmallMin && n <= tagConstrSmallMax:
		fields, err := decodeArray(tag.Content)
		if err != nil {
			return nil, err
		}
		return Constr{Index: n - tagConstrSmallMin, Fields: fields}, nil

	case n >= tagConstrLargeMin && n <= tagConstrLargeMax:
		fields, err := decodeArray(tag.Content)
		if err != nil {
			return nil, err
		}
		return Constr{Index: n - tagConstrLargeMin + 7, Fields: fields}, nil

	case n == tagConstrGeneral:
		var parts []cbor.RawMessage
		if err := cborutil.DecMode.Unmarshal(tag.Content, &parts); err != nil {
			return nil, fmt.Errorf("plutus: constructor: %w", err)
		}
		if len(parts) != 2 {
			return nil, fmt.Errorf("plutus: constructor: expected 2 elements, got %d", len(parts))
		}
		var index uint64
		if err := cborutil.DecMode.Unmarshal(parts[0], &index); err != nil {
			return nil, fmt.Errorf("plutus: constructor index: %w", err)
		}
		fields, err := decodeArray(parts[1])
		if err != nil {
			return nil, err
		}
		return Constr{Index: index, Fields: fields}, nil
	}

	return nil, fmt.Errorf("plutus: unsupported tag %d", tag.Number)
}

func decodeArray(raw []byte) ([]Data, error) {
	var items []cbor.RawMessage
	if err := cborutil.DecMode.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("plutus: array: %w", err)
	}
	out := make([]Data, 0, len(items))
	for _, item := range items {
		d, err := decodeItem(item)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Encode writes d as CBOR with definite lengths.
func Encode(d Data) ([]byte, error) {
	v, err := toCBOR(d)
	if err != nil {
		return nil, err
	}
	return cborutil.EncMode.Marshal(v)
}

// MustEncode is Encode for values built in code, where failure is a bug.
func MustEncode(d Data) []byte {
	b, err := Encode(d)
	if err != nil {
		panic(err)
	}
	return b
}

func toCBOR(d Data) (any, error) {
	switch v := d.(type) {
	case Constr:
		fields := make([]any, 0, len(v.Fields))
		for _, f := range v.Fields {
			c, err := toCBOR(f)
			if err != nil {
				return nil, err
			}
			fields = append(fields, c)
		}
		switch {
		case v.Index <= 6:
			return cbor.Tag{Number: tagConstrSmallMin + v.Index, Content: fields}, nil
		case v.Index <= 127:
			return cbor.Tag{Number: tagConstrLargeMin + v.Index - 7, Content: fields}, nil
		default:
			return cbor.Tag{Number: tagConstrGeneral, Content: []any{v.Index, fields}}, nil
		}

	case Map:
		// Pair order is significant, so the map is assembled by hand
		// rather than through a Go map.
		buf := cborutil.AppendHead(nil, cborutil.MajorMap, uint64(len(v)))
		for _, p := range v {
			k, err := Encode(p.Key)
			if err != nil {
				return nil, err
			}
			val, err := Encode(p.Value)
			if err != nil {
				return nil, err
			}
			buf = append(buf, k...)
			buf = append(buf, val...)
		}
		return cbor.RawMessage(buf), nil

	case List:
		items := make([]any, 0, len(v))
		for _, item := range v {
			c, err := toCBOR(item)
			if err != nil {
				return nil, err
			}
			items = append(items, c)
		}
		return items, nil

	case Int:
		return intValue(v), nil

	case Bytes:
		if v == nil {
			return []byte{}, nil
		}
		return []byte(v), nil
	}

	return nil, fmt.Errorf("plutus: cannot encode %T", d)
}

// Hash returns the blake2b-256 datum hash of the raw encoding.
func Hash(raw []byte) [32]byte {
	return blake2b.Sum256(raw)
}

// HashHex is Hash rendered as lowercase hex.
func HashHex(raw []byte) string {
	h := Hash(raw)
	return hex.EncodeToString(h[:])
}
