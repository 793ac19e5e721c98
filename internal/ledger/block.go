package ledger

import "fmt"

// Point is a position on the chain. The zero Point is not origin;
// callers model origin explicitly (usually with a nil *Point).
type Point struct {
	Slot uint64
	Hash Hash32
}

func (p Point) String() string {
	return fmt.Sprintf("%d.%s", p.Slot, p.Hash)
}

// BlockHeader identifies a block.
type BlockHeader struct {
	Hash   Hash32
	Slot   uint64
	Height uint64
}

// Point returns the chain point of the header.
func (h BlockHeader) Point() Point {
	return Point{Slot: h.Slot, Hash: h.Hash}
}

// RawTx is a transaction as delivered by the chain-sync feed: the id the
// feed reports and the full transaction CBOR.
type RawTx struct {
	ID   Hash32
	CBOR []byte
}

// Block is a header plus its transactions in block order.
type Block struct {
	BlockHeader
	Transactions []RawTx
}
