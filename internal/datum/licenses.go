package datum

import (
	"fmt"
	"math/big"

	"github.com/roach88/govsync/internal/plutus"
)

// ReleaseLicenses is the mint redeemer of the license policy.
type ReleaseLicenses struct {
	LicenseName     []byte
	ReleaseIndex    int64
	TallyInputIndex int64
}

// DecodeReleaseLicenses decodes a license mint redeemer.
func DecodeReleaseLicenses(raw []byte) Result[ReleaseLicenses] {
	return decodeAs(raw, func(d plutus.Data) (ReleaseLicenses, error) {
		f, err := plutus.AsConstr(d, 2, 3)
		if err != nil {
			return ReleaseLicenses{}, err
		}
		var r ReleaseLicenses
		if r.LicenseName, err = bytesField(f[0], "license_name"); err != nil {
			return r, err
		}
		if r.ReleaseIndex, err = intField(f[1], "release_index"); err != nil {
			return r, err
		}
		if r.TallyInputIndex, err = intField(f[2], "tally_input_index"); err != nil {
			return r, err
		}
		return r, nil
	})
}

// ToData encodes the redeemer in its on-chain form.
func (r ReleaseLicenses) ToData() plutus.Data {
	return plutus.NewConstr(2,
		plutus.Bytes(r.LicenseName),
		plutus.NewInt(r.ReleaseIndex),
		plutus.NewInt(r.TallyInputIndex),
	)
}

// licenseIDBytes is the width of the proposal id prefix of a license name.
const licenseIDBytes = 3

// LicenseName is the decoded asset name of a license token.
type LicenseName struct {
	ProposalID int64
	// ExpiresAt is the POSIX time in milliseconds after which the
	// license is no longer valid.
	ExpiresAt int64
}

// ParseLicenseName splits a license asset name into the proposal id
// (first three bytes) and the expiry (remaining bytes), both big-endian.
func ParseLicenseName(name []byte) (LicenseName, error) {
	if len(name) <= licenseIDBytes {
		return LicenseName{}, fmt.Errorf("license name too short: %d bytes", len(name))
	}
	id := new(big.Int).SetBytes(name[:licenseIDBytes])
	expiry := new(big.Int).SetBytes(name[licenseIDBytes:])
	if !expiry.IsInt64() {
		return LicenseName{}, fmt.Errorf("license expiry out of range: %s", expiry)
	}
	return LicenseName{ProposalID: id.Int64(), ExpiresAt: expiry.Int64()}, nil
}

// Bytes renders the license name in its on-chain form.
func (l LicenseName) Bytes() []byte {
	out := make([]byte, licenseIDBytes, licenseIDBytes+8)
	id := uint64(l.ProposalID)
	out[0], out[1], out[2] = byte(id>>16), byte(id>>8), byte(id)
	return append(out, big.NewInt(l.ExpiresAt).Bytes()...)
}
