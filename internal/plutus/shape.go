package plutus

import (
	"errors"
	"fmt"
	"math/big"
)

// Outcome tags the result of decoding bytes into a typed record.
type Outcome uint8

const (
	// Matched means the value decoded into the requested record.
	Matched Outcome = iota
	// NotThisShape means the bytes are Plutus data of a different shape.
	NotThisShape
	// Malformed means the bytes are not Plutus data at all.
	Malformed
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case NotThisShape:
		return "not_this_shape"
	case Malformed:
		return "malformed"
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

// ErrIntRange marks integers that are valid Plutus data but too large
// for the indexer's 64-bit columns.
var ErrIntRange = errors.New("integer out of int64 range")

// ShapeError describes why a value does not have the expected shape.
type ShapeError struct {
	Want string
	Got  string
	// Err is an optional cause, such as ErrIntRange.
	Err error
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Want, e.Got)
}

func (e *ShapeError) Unwrap() error {
	return e.Err
}

// IsShapeError reports whether err is a shape mismatch.
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}

func mismatch(want string, got Data) error {
	return &ShapeError{Want: want, Got: kind(got)}
}

func kind(d Data) string {
	switch v := d.(type) {
	case Constr:
		return fmt.Sprintf("constr %d/%d", v.Index, len(v.Fields))
	case Map:
		return "map"
	case List:
		return "list"
	case Int:
		return "int"
	case Bytes:
		return "bytes"
	}
	return "nothing"
}

// AsConstr returns the fields of d if it is constructor index with arity fields.
func AsConstr(d Data, index uint64, arity int) ([]Data, error) {
	c, ok := d.(Constr)
	if !ok || c.Index != index || len(c.Fields) != arity {
		return nil, mismatch(fmt.Sprintf("constr %d/%d", index, arity), d)
	}
	return c.Fields, nil
}

// AsBigInt returns the integer value of d.
func AsBigInt(d Data) (*big.Int, error) {
	i, ok := d.(Int)
	if !ok {
		return nil, mismatch("int", d)
	}
	return intValue(i), nil
}

// AsInt64 returns d as an int64; integers outside that range do not match.
func AsInt64(d Data) (int64, error) {
	v, err := AsBigInt(d)
	if err != nil {
		return 0, err
	}
	if !v.IsInt64() {
		return 0, &ShapeError{Want: "int64", Got: "int " + v.String(), Err: ErrIntRange}
	}
	return v.Int64(), nil
}

// AsBytes returns the byte string held by d.
func AsBytes(d Data) ([]byte, error) {
	b, ok := d.(Bytes)
	if !ok {
		return nil, mismatch("bytes", d)
	}
	return []byte(b), nil
}

// AsList returns the elements of d.
func AsList(d Data) ([]Data, error) {
	l, ok := d.(List)
	if !ok {
		return nil, mismatch("list", d)
	}
	return []Data(l), nil
}
