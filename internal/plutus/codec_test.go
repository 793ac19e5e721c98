package plutus

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func TestDecode_Constructors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Data
	}{
		{"unit", "d87980", NewConstr(0)},
		{"compact with field", "d87a8105", NewConstr(1, NewInt(5))},
		{"indefinite fields", "d8799f0102ff", NewConstr(0, NewInt(1), NewInt(2))},
		{"large index", "d9050080", NewConstr(7)},
		{"general form", "d8668218c880", NewConstr(200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(mustHex(t, tt.input))
			require.NoError(t, err)
			assert.True(t, Equal(tt.want, got), "got %s", String(got))
		})
	}
}

func TestDecode_Scalars(t *testing.T) {
	got, err := Decode(mustHex(t, "20"))
	require.NoError(t, err)
	assert.True(t, Equal(NewInt(-1), got))

	got, err = Decode(mustHex(t, "c249010000000000000000"))
	require.NoError(t, err)
	want := new(big.Int).Lsh(big.NewInt(1), 64)
	assert.True(t, Equal(Int{Value: want}, got))

	got, err = Decode(mustHex(t, "43010203"))
	require.NoError(t, err)
	assert.True(t, Equal(Bytes{1, 2, 3}, got))
}

func TestDecode_MapKeepsOrder(t *testing.T) {
	got, err := Decode(mustHex(t, "a2024101014102"))
	require.NoError(t, err)

	m, ok := got.(Map)
	require.True(t, ok)
	require.Len(t, m, 2)
	assert.True(t, Equal(NewInt(2), m[0].Key))
	assert.True(t, Equal(NewInt(1), m[1].Key))
}

func TestDecode_RejectsNonPlutus(t *testing.T) {
	tests := map[string]string{
		"text string": "6161",
		"float":       "f93c00",
		"unknown tag": "d81e80",
		"trailing":    "0101",
		"truncated":   "d879",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(mustHex(t, input))
			assert.Error(t, err)
		})
	}

	_, err := Decode(nil)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestEncode_RoundTrip(t *testing.T) {
	value := NewConstr(0,
		List{NewInt(0), NewInt(500), Int{Value: new(big.Int).Lsh(big.NewInt(1), 70)}},
		NewConstr(9, Bytes("policy"), Bytes{}),
		Map{{Key: Bytes("k"), Value: NewConstr(300)}},
		NewInt(-42),
	)

	raw, err := Encode(value)
	require.NoError(t, err)

	back, err := Decode(raw)
	require.NoError(t, err)
	assert.True(t, Equal(value, back), "round trip changed value: %s", String(back))
}

func TestEncode_CompactForms(t *testing.T) {
	assert.Equal(t, "d87980", hex.EncodeToString(MustEncode(NewConstr(0))))
	assert.Equal(t, "d87a8105", hex.EncodeToString(MustEncode(NewConstr(1, NewInt(5)))))
	assert.Equal(t, "d9050080", hex.EncodeToString(MustEncode(NewConstr(7))))
	assert.Equal(t, "40", hex.EncodeToString(MustEncode(Bytes(nil))))
}

func TestHash_UnitDatum(t *testing.T) {
	assert.Equal(t,
		"923918e403bf43c34b4ef6b48eb2ee04babed17320d8d1b9ff9ad086e86f44ec",
		HashHex(mustHex(t, "d87980")),
	)
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(NewInt(3), Int{Value: big.NewInt(3)}))
	assert.False(t, Equal(NewInt(3), Bytes{3}))
	assert.False(t, Equal(NewConstr(0, NewInt(1)), NewConstr(1, NewInt(1))))
	assert.False(t, Equal(List{NewInt(1)}, List{NewInt(1), NewInt(2)}))
}

func TestShapeReaders(t *testing.T) {
	fields, err := AsConstr(NewConstr(2, NewInt(1)), 2, 1)
	require.NoError(t, err)
	assert.Len(t, fields, 1)

	_, err = AsConstr(NewConstr(2, NewInt(1)), 1, 1)
	assert.True(t, IsShapeError(err))

	_, err = AsInt64(Int{Value: new(big.Int).Lsh(big.NewInt(1), 80)})
	assert.True(t, IsShapeError(err))

	b, err := AsBytes(Bytes("ab"))
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), b)

	_, err = AsList(NewInt(1))
	assert.True(t, IsShapeError(err))
}
