package testutil

import (
	"encoding/binary"
	"sync"

	"github.com/roach88/govsync/internal/ledger"
)

// SlotsPerBlock is the slot distance between consecutive generated blocks.
const SlotsPerBlock = 20

// Chain generates a deterministic sequence of blocks for tests.
//
// Block hashes derive from slot, height and fork number, so a block
// produced after RewindTo differs from the one it replaces at the same
// slot. The same calls always produce the same blocks.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Chain struct {
	mu     sync.Mutex
	tip    ledger.BlockHeader
	blocks []ledger.BlockHeader
	fork   uint64
}

// NewChain creates a chain whose first block is at startSlot.
func NewChain(startSlot uint64) *Chain {
	c := &Chain{}
	if startSlot >= SlotsPerBlock {
		c.tip = ledger.BlockHeader{Slot: startSlot - SlotsPerBlock}
	}
	return c
}

// Next appends a block holding txs and returns it.
func (c *Chain) Next(txs ...ledger.RawTx) ledger.Block {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := ledger.BlockHeader{Slot: c.tip.Slot + SlotsPerBlock, Height: c.tip.Height + 1}
	if len(c.blocks) == 0 {
		h.Height = 1
	}
	var seed [24]byte
	binary.BigEndian.PutUint64(seed[0:], h.Slot)
	binary.BigEndian.PutUint64(seed[8:], h.Height)
	binary.BigEndian.PutUint64(seed[16:], c.fork)
	h.Hash = ledger.HashBody(seed[:])

	c.tip = h
	c.blocks = append(c.blocks, h)
	return ledger.Block{BlockHeader: h, Transactions: txs}
}

// Tip returns the header of the last generated block.
func (c *Chain) Tip() ledger.BlockHeader {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tip
}

// RewindTo drops every block above slot and starts a new fork, so the
// next blocks get fresh hashes. Returns the point to roll back to, nil
// when no block remains (the origin).
func (c *Chain) RewindTo(slot uint64) *ledger.Point {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.blocks[:0]
	for _, b := range c.blocks {
		if b.Slot <= slot {
			kept = append(kept, b)
		}
	}
	c.blocks = kept
	c.fork++
	if len(kept) == 0 {
		c.tip = ledger.BlockHeader{}
		return nil
	}
	c.tip = kept[len(kept)-1]
	p := c.tip.Point()
	return &p
}
