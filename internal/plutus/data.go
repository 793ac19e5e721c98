package plutus

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Data is a Plutus data value: one of Constr, Map, List, Int or Bytes.
type Data interface {
	plutusData()
}

// Constr is a constructor application with its index and fields.
type Constr struct {
	Index  uint64
	Fields []Data
}

// Map is an ordered list of key/value pairs.
type Map []Pair

// Pair is a single Map entry.
type Pair struct {
	Key   Data
	Value Data
}

// List is a Plutus list.
type List []Data

// Int is an arbitrary precision Plutus integer.
type Int struct {
	Value *big.Int
}

// Bytes is a Plutus byte string.
type Bytes []byte

func (Constr) plutusData() {}
func (Map) plutusData()    {}
func (List) plutusData()   {}
func (Int) plutusData()    {}
func (Bytes) plutusData()  {}

// NewInt returns an Int holding v.
func NewInt(v int64) Int {
	return Int{Value: big.NewInt(v)}
}

// NewConstr builds a constructor with the given fields.
func NewConstr(index uint64, fields ...Data) Constr {
	if fields == nil {
		fields = []Data{}
	}
	return Constr{Index: index, Fields: fields}
}

// Equal reports whether a and b are structurally identical.
func Equal(a, b Data) bool {
	switch x := a.(type) {
	case Constr:
		y, ok := b.(Constr)
		if !ok || x.Index != y.Index || len(x.Fields) != len(y.Fields) {
			return false
		}
		for i := range x.Fields {
			if !Equal(x.Fields[i], y.Fields[i]) {
				return false
			}
		}
		return true
	case Map:
		y, ok := b.(Map)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i].Key, y[i].Key) || !Equal(x[i].Value, y[i].Value) {
				return false
			}
		}
		return true
	case List:
		y, ok := b.(List)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Int:
		y, ok := b.(Int)
		return ok && intValue(x).Cmp(intValue(y)) == 0
	case Bytes:
		y, ok := b.(Bytes)
		return ok && bytes.Equal(x, y)
	}
	return false
}

// String renders d in a compact diagnostic form, used in log lines.
func String(d Data) string {
	var sb strings.Builder
	writeString(&sb, d)
	return sb.String()
}

func writeString(sb *strings.Builder, d Data) {
	switch v := d.(type) {
	case Constr:
		fmt.Fprintf(sb, "%d[", v.Index)
		for i, f := range v.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeString(sb, f)
		}
		sb.WriteString("]")
	case Map:
		sb.WriteString("{")
		for i, p := range v {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeString(sb, p.Key)
			sb.WriteString(": ")
			writeString(sb, p.Value)
		}
		sb.WriteString("}")
	case List:
		sb.WriteString("[")
		for i, f := range v {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeString(sb, f)
		}
		sb.WriteString("]")
	case Int:
		sb.WriteString(intValue(v).String())
	case Bytes:
		sb.WriteString("h'")
		sb.WriteString(hex.EncodeToString(v))
		sb.WriteString("'")
	default:
		sb.WriteString("<nil>")
	}
}

func intValue(i Int) *big.Int {
	if i.Value == nil {
		return new(big.Int)
	}
	return i.Value
}
