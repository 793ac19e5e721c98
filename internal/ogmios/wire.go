package ogmios

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/roach88/govsync/internal/ledger"
)

const (
	methodFindIntersection = "findIntersection"
	methodNextBlock        = "nextBlock"
)

var originJSON = []byte(`"origin"`)

type request struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id"`
}

type response struct {
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
	ID     string          `json:"id"`
}

type wirePoint struct {
	Slot uint64 `json:"slot"`
	ID   string `json:"id"`
}

type wireTip struct {
	Slot   uint64 `json:"slot"`
	ID     string `json:"id"`
	Height uint64 `json:"height"`
}

type intersectionResult struct {
	Intersection json.RawMessage `json:"intersection"`
	Tip          json.RawMessage `json:"tip"`
}

type nextBlockResult struct {
	Direction string          `json:"direction"`
	Tip       json.RawMessage `json:"tip"`
	Block     *wireBlock      `json:"block"`
	Point     json.RawMessage `json:"point"`
}

type wireBlock struct {
	Type         string   `json:"type"`
	ID           string   `json:"id"`
	Height       uint64   `json:"height"`
	Slot         *uint64  `json:"slot"`
	Transactions []wireTx `json:"transactions"`
}

type wireTx struct {
	ID   string `json:"id"`
	CBOR string `json:"cbor"`
}

func encodePoints(points []ledger.Point) []any {
	out := make([]any, 0, len(points)+1)
	for _, p := range points {
		out = append(out, wirePoint{Slot: p.Slot, ID: p.Hash.String()})
	}
	return append(out, "origin")
}

// decodePoint parses a point or "origin" (nil).
func decodePoint(raw json.RawMessage) (*ledger.Point, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), originJSON) {
		return nil, nil
	}
	var wp wirePoint
	if err := json.Unmarshal(raw, &wp); err != nil {
		return nil, fmt.Errorf("point: %w", err)
	}
	hash, err := ledger.ParseHash32(wp.ID)
	if err != nil {
		return nil, fmt.Errorf("point id: %w", err)
	}
	return &ledger.Point{Slot: wp.Slot, Hash: hash}, nil
}

// decodeTip parses a tip. The origin tip is the zero header.
func decodeTip(raw json.RawMessage) (ledger.BlockHeader, error) {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), originJSON) {
		return ledger.BlockHeader{}, nil
	}
	var wt wireTip
	if err := json.Unmarshal(raw, &wt); err != nil {
		return ledger.BlockHeader{}, fmt.Errorf("tip: %w", err)
	}
	hash, err := ledger.ParseHash32(wt.ID)
	if err != nil {
		return ledger.BlockHeader{}, fmt.Errorf("tip id: %w", err)
	}
	return ledger.BlockHeader{Hash: hash, Slot: wt.Slot, Height: wt.Height}, nil
}

// convertBlock turns a wire block into a ledger block. Epoch boundary
// blocks carry no transactions and may lack a slot, in which case the
// height stands in for it.
func convertBlock(wb *wireBlock) (ledger.Block, error) {
	hash, err := ledger.ParseHash32(wb.ID)
	if err != nil {
		return ledger.Block{}, fmt.Errorf("block id: %w", err)
	}
	slot := wb.Height
	if wb.Slot != nil {
		slot = *wb.Slot
	}
	blk := ledger.Block{BlockHeader: ledger.BlockHeader{Hash: hash, Slot: slot, Height: wb.Height}}
	if wb.Type == "ebb" {
		return blk, nil
	}
	blk.Transactions = make([]ledger.RawTx, 0, len(wb.Transactions))
	for _, wt := range wb.Transactions {
		if wt.CBOR == "" {
			return ledger.Block{}, fmt.Errorf("tx %s: %w", wt.ID, ErrMissingCBOR)
		}
		id, err := ledger.ParseHash32(wt.ID)
		if err != nil {
			return ledger.Block{}, fmt.Errorf("tx id: %w", err)
		}
		raw, err := hex.DecodeString(wt.CBOR)
		if err != nil {
			return ledger.Block{}, fmt.Errorf("tx %s cbor: %w", wt.ID, err)
		}
		blk.Transactions = append(blk.Transactions, ledger.RawTx{ID: id, CBOR: raw})
	}
	return blk, nil
}
