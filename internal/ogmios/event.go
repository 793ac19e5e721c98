package ogmios

import "github.com/roach88/govsync/internal/ledger"

// Event is one chain-sync step: RollForward or RollBackward.
type Event interface {
	event()
}

// RollForward delivers the next block on the chain.
type RollForward struct {
	Tip   ledger.BlockHeader
	Block ledger.Block
}

// RollBackward tells the client to discard every block after Point.
// A nil Point is the chain origin.
type RollBackward struct {
	Tip   ledger.BlockHeader
	Point *ledger.Point
}

func (RollForward) event()  {}
func (RollBackward) event() {}
