package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_SubOmitsNothingButNonZeroDoes(t *testing.T) {
	gov := AssetID{Policy: "p", Name: "gov"}
	nft := AssetID{Policy: "p", Name: "nft"}

	next := ValueOf(Amount{Coin, 10}, Amount{gov, 5}, Amount{nft, 1})
	prev := ValueOf(Amount{Coin, 10}, Amount{gov, 2}, Amount{nft, 1})

	delta := next.Sub(prev)
	assert.Len(t, delta.Entries(), 3)
	assert.Equal(t, []Amount{{gov, 3}}, delta.NonZero())

	back := prev.Add(delta)
	assert.Equal(t, next.Coin, back.Coin)
	assert.Equal(t, int64(5), back.Quantity(gov))
}

func TestValue_EntriesSorted(t *testing.T) {
	v := ValueOf(
		Amount{AssetID{Policy: "b", Name: "1"}, 1},
		Amount{AssetID{Policy: "a", Name: "2"}, 1},
		Amount{AssetID{Policy: "a", Name: "1"}, 1},
	)
	entries := v.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, Coin, entries[0].Asset)
	assert.Equal(t, AssetID{"a", "1"}, entries[1].Asset)
	assert.Equal(t, AssetID{"a", "2"}, entries[2].Asset)
	assert.Equal(t, AssetID{"b", "1"}, entries[3].Asset)

	assert.Equal(t, [][]byte{[]byte("1"), []byte("2")}, v.Names([]byte("a")))
	assert.Equal(t, []string{"a", "b"}, v.Policies())
}

func TestOutRef_Order(t *testing.T) {
	var lo, hi Hash32
	lo[31] = 1
	hi[0] = 1
	refs := SortOutRefs([]OutRef{{hi, 0}, {lo, 5}, {lo, 2}})
	assert.Equal(t, []OutRef{{lo, 2}, {lo, 5}, {hi, 0}}, refs)
}

func TestParseHash32(t *testing.T) {
	h, err := ParseHash32("94b3e8daeec3babc929a1180854687b29ba797cd0173509ff1e90d41a6e7fb59")
	require.NoError(t, err)
	assert.Equal(t, byte(0x94), h[0])
	assert.Equal(t, "94b3e8daeec3babc929a1180854687b29ba797cd0173509ff1e90d41a6e7fb59", h.String())

	_, err = ParseHash32("abcd")
	assert.Error(t, err)
}
