package datum

import (
	"encoding/hex"
	"fmt"

	"github.com/roach88/govsync/internal/plutus"
)

// Result is a tagged decode outcome. Value is only meaningful when
// Outcome is plutus.Matched; Err carries the reason otherwise.
type Result[T any] struct {
	Value   T
	Outcome plutus.Outcome
	Err     error
}

// Ok reports whether the decode matched.
func (r Result[T]) Ok() bool {
	return r.Outcome == plutus.Matched
}

func decodeAs[T any](raw []byte, conv func(plutus.Data) (T, error)) Result[T] {
	d, err := plutus.Decode(raw)
	if err != nil {
		return Result[T]{Outcome: plutus.Malformed, Err: err}
	}
	return fromData(d, conv)
}

func fromData[T any](d plutus.Data, conv func(plutus.Data) (T, error)) Result[T] {
	v, err := conv(d)
	if err != nil {
		return Result[T]{Outcome: plutus.NotThisShape, Err: err}
	}
	return Result[T]{Value: v, Outcome: plutus.Matched}
}

// field wraps a shape error with the name of the field being read.
func field(name string, err error) error {
	return fmt.Errorf("%s: %w", name, err)
}

// Token identifies a native asset by policy id and asset name.
type Token struct {
	Policy []byte
	Name   []byte
}

// String renders the token as policy.name in hex.
func (t Token) String() string {
	return hex.EncodeToString(t.Policy) + "." + hex.EncodeToString(t.Name)
}

func tokenFromData(d plutus.Data) (Token, error) {
	f, err := plutus.AsConstr(d, 0, 2)
	if err != nil {
		return Token{}, err
	}
	policy, err := plutus.AsBytes(f[0])
	if err != nil {
		return Token{}, field("policy_id", err)
	}
	name, err := plutus.AsBytes(f[1])
	if err != nil {
		return Token{}, field("token_name", err)
	}
	return Token{Policy: policy, Name: name}, nil
}

// ToData encodes the token in its on-chain form.
func (t Token) ToData() plutus.Data {
	return plutus.NewConstr(0, plutus.Bytes(t.Policy), plutus.Bytes(t.Name))
}

// TimeKind distinguishes the three ExtendedPOSIXTime constructors.
type TimeKind uint8

const (
	NegInf TimeKind = iota
	Finite
	PosInf
)

func (k TimeKind) String() string {
	switch k {
	case NegInf:
		return "neg_inf"
	case Finite:
		return "finite"
	case PosInf:
		return "pos_inf"
	}
	return "unknown"
}

// ExtendedTime is a POSIX time in milliseconds that may be infinite.
type ExtendedTime struct {
	Kind   TimeKind
	Millis int64
}

func extendedTimeFromData(d plutus.Data) (ExtendedTime, error) {
	c, ok := d.(plutus.Constr)
	if !ok {
		return ExtendedTime{}, &plutus.ShapeError{Want: "extended time", Got: plutus.String(d)}
	}
	switch c.Index {
	case 0:
		if _, err := plutus.AsConstr(d, 0, 0); err != nil {
			return ExtendedTime{}, err
		}
		return ExtendedTime{Kind: NegInf}, nil
	case 1:
		f, err := plutus.AsConstr(d, 1, 1)
		if err != nil {
			return ExtendedTime{}, err
		}
		ms, err := plutus.AsInt64(f[0])
		if err != nil {
			return ExtendedTime{}, field("time", err)
		}
		return ExtendedTime{Kind: Finite, Millis: ms}, nil
	case 2:
		if _, err := plutus.AsConstr(d, 2, 0); err != nil {
			return ExtendedTime{}, err
		}
		return ExtendedTime{Kind: PosInf}, nil
	}
	return ExtendedTime{}, &plutus.ShapeError{Want: "extended time", Got: plutus.String(d)}
}

// ToData encodes the time in its on-chain form.
func (t ExtendedTime) ToData() plutus.Data {
	if t.Kind == Finite {
		return plutus.NewConstr(1, plutus.NewInt(t.Millis))
	}
	return plutus.NewConstr(uint64(t.Kind))
}

// bytesField reads a byte string field with a name for error context.
func bytesField(d plutus.Data, name string) ([]byte, error) {
	b, err := plutus.AsBytes(d)
	if err != nil {
		return nil, field(name, err)
	}
	return b, nil
}

// intField reads an int64 field with a name for error context.
func intField(d plutus.Data, name string) (int64, error) {
	v, err := plutus.AsInt64(d)
	if err != nil {
		return 0, field(name, err)
	}
	return v, nil
}
