package datum

import (
	"fmt"

	"github.com/roach88/govsync/internal/plutus"
)

// CredentialKind distinguishes key hashes from script hashes.
type CredentialKind uint8

const (
	KeyCredential CredentialKind = iota
	ScriptCredential
)

// Credential is a payment or staking credential.
type Credential struct {
	Kind CredentialKind
	Hash []byte
}

// Pointer locates a stake registration certificate on chain.
type Pointer struct {
	Slot      uint64
	TxIndex   uint64
	CertIndex uint64
}

// StakingRef is the optional staking part of an address.
// Exactly one of Hash and Pointer is set.
type StakingRef struct {
	Hash    *Credential
	Pointer *Pointer
}

// Address is a Shelley address in its Plutus form.
// A nil Staking means the address has no staking part.
type Address struct {
	Payment Credential
	Staking *StakingRef
}

// Network ids as written in the low nibble of the address header.
const (
	TestnetID byte = 0
	MainnetID byte = 1
)

// Bytes returns the ledger encoding of the address for the given network.
func (a Address) Bytes(network byte) []byte {
	var typ byte
	paymentScript := a.Payment.Kind == ScriptCredential

	switch {
	case a.Staking == nil:
		typ = 6
		if paymentScript {
			typ = 7
		}
	case a.Staking.Pointer != nil:
		typ = 4
		if paymentScript {
			typ = 5
		}
	default:
		stakeScript := a.Staking.Hash.Kind == ScriptCredential
		switch {
		case !paymentScript && !stakeScript:
			typ = 0
		case paymentScript && !stakeScript:
			typ = 1
		case !paymentScript && stakeScript:
			typ = 2
		default:
			typ = 3
		}
	}

	out := make([]byte, 0, 57)
	out = append(out, typ<<4|network&0x0f)
	out = append(out, a.Payment.Hash...)
	if a.Staking == nil {
		return out
	}
	if p := a.Staking.Pointer; p != nil {
		out = appendNat(out, p.Slot)
		out = appendNat(out, p.TxIndex)
		return appendNat(out, p.CertIndex)
	}
	return append(out, a.Staking.Hash.Hash...)
}

// appendNat writes n as base-128 big-endian groups, high bit set on all
// but the last group.
func appendNat(out []byte, n uint64) []byte {
	var groups [10]byte
	i := len(groups) - 1
	groups[i] = byte(n & 0x7f)
	for n >>= 7; n > 0; n >>= 7 {
		i--
		groups[i] = byte(n&0x7f) | 0x80
	}
	return append(out, groups[i:]...)
}

func credentialFromData(d plutus.Data) (Credential, error) {
	c, ok := d.(plutus.Constr)
	if !ok || c.Index > 1 || len(c.Fields) != 1 {
		return Credential{}, &plutus.ShapeError{Want: "credential", Got: plutus.String(d)}
	}
	hash, err := bytesField(c.Fields[0], "credential hash")
	if err != nil {
		return Credential{}, err
	}
	return Credential{Kind: CredentialKind(c.Index), Hash: hash}, nil
}

func stakingFromData(d plutus.Data) (*StakingRef, error) {
	c, ok := d.(plutus.Constr)
	if !ok {
		return nil, &plutus.ShapeError{Want: "staking credential", Got: plutus.String(d)}
	}
	switch {
	case c.Index == 1 && len(c.Fields) == 0:
		return nil, nil
	case c.Index == 0 && len(c.Fields) == 1:
	default:
		return nil, &plutus.ShapeError{Want: "staking credential", Got: plutus.String(d)}
	}

	inner, ok := c.Fields[0].(plutus.Constr)
	if !ok {
		return nil, &plutus.ShapeError{Want: "staking hash or pointer", Got: plutus.String(c.Fields[0])}
	}
	switch {
	case inner.Index == 0 && len(inner.Fields) == 1:
		cred, err := credentialFromData(inner.Fields[0])
		if err != nil {
			return nil, err
		}
		return &StakingRef{Hash: &cred}, nil
	case inner.Index == 1 && len(inner.Fields) == 3:
		var nums [3]uint64
		for i, f := range inner.Fields {
			v, err := intField(f, "staking pointer")
			if err != nil {
				return nil, err
			}
			if v < 0 {
				return nil, fmt.Errorf("staking pointer: negative component %d", v)
			}
			nums[i] = uint64(v)
		}
		return &StakingRef{Pointer: &Pointer{Slot: nums[0], TxIndex: nums[1], CertIndex: nums[2]}}, nil
	}
	return nil, &plutus.ShapeError{Want: "staking hash or pointer", Got: plutus.String(inner)}
}

func addressFromData(d plutus.Data) (Address, error) {
	f, err := plutus.AsConstr(d, 0, 2)
	if err != nil {
		return Address{}, err
	}
	payment, err := credentialFromData(f[0])
	if err != nil {
		return Address{}, field("payment_credential", err)
	}
	staking, err := stakingFromData(f[1])
	if err != nil {
		return Address{}, field("staking_credential", err)
	}
	return Address{Payment: payment, Staking: staking}, nil
}

// DecodeAddress decodes an address from raw Plutus data.
func DecodeAddress(raw []byte) Result[Address] {
	return decodeAs(raw, addressFromData)
}

// ToData encodes the address in its Plutus form.
func (a Address) ToData() plutus.Data {
	payment := plutus.NewConstr(uint64(a.Payment.Kind), plutus.Bytes(a.Payment.Hash))
	if a.Staking == nil {
		return plutus.NewConstr(0, payment, plutus.NewConstr(1))
	}
	var inner plutus.Data
	if p := a.Staking.Pointer; p != nil {
		inner = plutus.NewConstr(1,
			plutus.NewInt(int64(p.Slot)),
			plutus.NewInt(int64(p.TxIndex)),
			plutus.NewInt(int64(p.CertIndex)),
		)
	} else {
		cred := a.Staking.Hash
		inner = plutus.NewConstr(0, plutus.NewConstr(uint64(cred.Kind), plutus.Bytes(cred.Hash)))
	}
	return plutus.NewConstr(0, payment, plutus.NewConstr(0, inner))
}
