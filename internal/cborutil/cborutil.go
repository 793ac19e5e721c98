// Package cborutil holds the few CBOR helpers that the ledger and Plutus
// decoders share on top of fxamacker/cbor.
//
// Ledger CBOR uses two shapes the generic decoder cannot express directly:
// maps whose keys are themselves arrays or constructors (Plutus maps, Conway
// redeemer maps) and sets wrapped in tag 258. Both are walked here without
// losing the original encoding of each element.
package cborutil

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Major types of the first byte of a CBOR data item.
const (
	MajorUint   byte = 0
	MajorNegInt byte = 1
	MajorBytes  byte = 2
	MajorText   byte = 3
	MajorArray  byte = 4
	MajorMap    byte = 5
	MajorTag    byte = 6
	MajorSimple byte = 7
)

// SetTag is the tag number the Conway era uses to mark sets.
const SetTag = 258

// DecMode is the decoding mode used for all ledger data.
// Plutus data may nest deeply, so the nesting limit is raised.
var DecMode cbor.DecMode

// EncMode produces deterministic encodings (sorted map keys).
var EncMode cbor.EncMode

func init() {
	var err error
	DecMode, err = cbor.DecOptions{
		MaxNestedLevels: 256,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("cborutil: build decode mode: %v", err))
	}
	EncMode, err = cbor.EncOptions{
		Sort: cbor.SortCanonical,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("cborutil: build encode mode: %v", err))
	}
}

// Pair is one key/value entry of a CBOR map, both still encoded.
type Pair struct {
	Key   cbor.RawMessage
	Value cbor.RawMessage
}

// Major returns the major type of the encoded item.
func Major(raw []byte) (byte, error) {
	if len(raw) == 0 {
		return 0, errors.New("cbor: empty data item")
	}
	return raw[0] >> 5, nil
}

// MapPairs splits an encoded map into its pairs, preserving order.
// Both definite and indefinite length maps are accepted.
func MapPairs(raw []byte) ([]Pair, error) {
	if err := DecMode.Wellformed(raw); err != nil {
		return nil, err
	}
	if raw[0]>>5 != MajorMap {
		return nil, fmt.Errorf("cbor: expected map, got major type %d", raw[0]>>5)
	}
	count, body, indefinite, err := head(raw)
	if err != nil {
		return nil, err
	}

	pairs := make([]Pair, 0, min(count, 1024))
	for i := uint64(0); indefinite || i < count; i++ {
		if indefinite && len(body) > 0 && body[0] == 0xff {
			break
		}
		var p Pair
		if body, err = DecMode.UnmarshalFirst(body, &p.Key); err != nil {
			return nil, fmt.Errorf("cbor: map key %d: %w", i, err)
		}
		if body, err = DecMode.UnmarshalFirst(body, &p.Value); err != nil {
			return nil, fmt.Errorf("cbor: map value %d: %w", i, err)
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// Elements decodes an array, unwrapping a tag 258 set if present.
func Elements(raw []byte) ([]cbor.RawMessage, error) {
	major, err := Major(raw)
	if err != nil {
		return nil, err
	}
	if major == MajorTag {
		var tag cbor.RawTag
		if err := DecMode.Unmarshal(raw, &tag); err != nil {
			return nil, err
		}
		if tag.Number != SetTag {
			return nil, fmt.Errorf("cbor: unexpected tag %d around set", tag.Number)
		}
		raw = tag.Content
	}
	var items []cbor.RawMessage
	if err := DecMode.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// AppendHead appends a definite-length head for the given major type.
func AppendHead(buf []byte, major byte, n uint64) []byte {
	m := major << 5
	switch {
	case n < 24:
		return append(buf, m|byte(n))
	case n <= 0xff:
		return append(buf, m|24, byte(n))
	case n <= 0xffff:
		return append(buf, m|25, byte(n>>8), byte(n))
	case n <= 0xffffffff:
		return append(buf, m|26, byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	default:
		return append(buf, m|27,
			byte(n>>56), byte(n>>48), byte(n>>40), byte(n>>32),
			byte(n>>24), byte(n>>16), byte(n>>8), byte(n))
	}
}

// head reads the argument of a map or array head.
func head(raw []byte) (count uint64, body []byte, indefinite bool, err error) {
	info := raw[0] & 0x1f
	switch {
	case info < 24:
		return uint64(info), raw[1:], false, nil
	case info == 31:
		return 0, raw[1:], true, nil
	case info > 27:
		return 0, nil, false, fmt.Errorf("cbor: invalid additional info %d", info)
	}
	width := 1 << (info - 24)
	if len(raw) < 1+width {
		return 0, nil, false, errors.New("cbor: truncated head")
	}
	for _, b := range raw[1 : 1+width] {
		count = count<<8 | uint64(b)
	}
	return count, raw[1+width:], false, nil
}
