package harness

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/govsync/internal/cborutil"
	"github.com/roach88/govsync/internal/config"
	"github.com/roach88/govsync/internal/ledger"
	"github.com/roach88/govsync/internal/ogmios"
	"github.com/roach88/govsync/internal/store"
)

// Scenario is a recorded chain-sync session and the state it must leave
// behind. Scenarios pin down projector behaviour across blocks, rollbacks
// and aborted blocks without a live node.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are keyed on it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Network selects the address network tag. Defaults to mainnet.
	Network config.Network `yaml:"network,omitempty"`

	// Policies are the deployment's minting policy ids (hex).
	Policies config.Policies `yaml:"policies"`

	// Events are applied in order.
	Events []Step `yaml:"events"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one chain-sync event. Exactly one of Forward and Rollback is set.
type Step struct {
	Forward  *ForwardStep  `yaml:"forward,omitempty"`
	Rollback *RollbackStep `yaml:"rollback,omitempty"`

	// ExpectError is the ingest error code the step must fail with,
	// e.g. INVARIANT_VIOLATION. Empty means the step must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// ForwardStep is a block to roll forward to.
type ForwardStep struct {
	Slot   uint64 `yaml:"slot"`
	Height uint64 `yaml:"height"`

	// Hash is the block hash (hex). Derived from slot and height if empty.
	Hash string `yaml:"hash,omitempty"`

	Txs []TxStep `yaml:"txs"`
}

// TxStep is a transaction in full CBOR (hex). ID defaults to the hash of
// the transaction body.
type TxStep struct {
	ID   string `yaml:"id,omitempty"`
	CBOR string `yaml:"cbor"`
}

// RollbackStep rolls back to the block at Slot, or to the chain origin.
type RollbackStep struct {
	Slot   uint64 `yaml:"slot"`
	Hash   string `yaml:"hash,omitempty"`
	Origin bool   `yaml:"origin,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "row_count": Table holds exactly Count rows
	// - "tip": Stored tip is at Slot (or the store is empty if Empty)
	// - "threads": Tracked-state cache holds Gov and Treasury threads
	// - "cache_consistent": Cache equals one rebuilt from the store
	Type string `yaml:"type"`

	// Table is the table name (used by row_count).
	Table string `yaml:"table,omitempty"`

	// Count is the expected row count (used by row_count).
	Count int64 `yaml:"count,omitempty"`

	// Slot is the expected tip slot (used by tip).
	Slot uint64 `yaml:"slot,omitempty"`

	// Empty expects no stored blocks (used by tip).
	Empty bool `yaml:"empty,omitempty"`

	// Gov and Treasury are the expected thread counts (used by threads).
	Gov      int `yaml:"gov,omitempty"`
	Treasury int `yaml:"treasury,omitempty"`
}

// Assertion type constants.
const (
	AssertRowCount        = "row_count"
	AssertTip             = "tip"
	AssertThreads         = "threads"
	AssertCacheConsistent = "cache_consistent"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks required fields and value formats.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Events) == 0 {
		return fmt.Errorf("events: at least one event is required")
	}

	for i, step := range s.Events {
		if (step.Forward == nil) == (step.Rollback == nil) {
			return fmt.Errorf("events[%d]: exactly one of forward or rollback is required", i)
		}
		if _, err := step.event(); err != nil {
			return fmt.Errorf("events[%d]: %w", i, err)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertRowCount:
		if !slices.Contains(store.Tables, a.Table) {
			return fmt.Errorf("assertions[%d]: unknown table %q for row_count", index, a.Table)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for row_count", index)
		}
	case AssertTip:
		if a.Empty && a.Slot != 0 {
			return fmt.Errorf("assertions[%d]: tip takes slot or empty, not both", index)
		}
	case AssertThreads:
		if a.Gov < 0 || a.Treasury < 0 {
			return fmt.Errorf("assertions[%d]: thread counts must be non-negative", index)
		}
	case AssertCacheConsistent:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// event converts the step into the chain-sync event it describes.
func (s Step) event() (ogmios.Event, error) {
	if s.Rollback != nil {
		return s.Rollback.event()
	}
	return s.Forward.event()
}

func (r *RollbackStep) event() (ogmios.Event, error) {
	if r.Origin {
		if r.Slot != 0 || r.Hash != "" {
			return nil, fmt.Errorf("rollback: origin takes no slot or hash")
		}
		return ogmios.RollBackward{}, nil
	}
	p := &ledger.Point{Slot: r.Slot}
	if r.Hash != "" {
		h, err := ledger.ParseHash32(r.Hash)
		if err != nil {
			return nil, fmt.Errorf("rollback hash: %w", err)
		}
		p.Hash = h
	}
	return ogmios.RollBackward{Point: p}, nil
}

func (f *ForwardStep) event() (ogmios.Event, error) {
	h := ledger.BlockHeader{Slot: f.Slot, Height: f.Height}
	if f.Hash != "" {
		hash, err := ledger.ParseHash32(f.Hash)
		if err != nil {
			return nil, fmt.Errorf("block hash: %w", err)
		}
		h.Hash = hash
	} else {
		var seed [16]byte
		binary.BigEndian.PutUint64(seed[0:], f.Slot)
		binary.BigEndian.PutUint64(seed[8:], f.Height)
		h.Hash = ledger.HashBody(seed[:])
	}

	blk := ledger.Block{BlockHeader: h, Transactions: make([]ledger.RawTx, 0, len(f.Txs))}
	for i, tx := range f.Txs {
		raw, err := tx.raw()
		if err != nil {
			return nil, fmt.Errorf("txs[%d]: %w", i, err)
		}
		blk.Transactions = append(blk.Transactions, raw)
	}
	return ogmios.RollForward{Tip: h, Block: blk}, nil
}

func (t TxStep) raw() (ledger.RawTx, error) {
	body, err := hex.DecodeString(t.CBOR)
	if err != nil {
		return ledger.RawTx{}, fmt.Errorf("cbor: %w", err)
	}
	if len(body) == 0 {
		return ledger.RawTx{}, fmt.Errorf("cbor is required")
	}
	raw := ledger.RawTx{CBOR: body}
	if t.ID != "" {
		if raw.ID, err = ledger.ParseHash32(t.ID); err != nil {
			return ledger.RawTx{}, fmt.Errorf("id: %w", err)
		}
		return raw, nil
	}
	// The id of a transaction is the hash of its body, the first element.
	elems, err := cborutil.Elements(body)
	if err != nil || len(elems) == 0 {
		return ledger.RawTx{}, fmt.Errorf("cannot derive id: transaction is not a CBOR array")
	}
	raw.ID = ledger.HashBody(elems[0])
	return raw, nil
}

// Source replays a scenario's events as a chain-sync feed. Next returns
// io.EOF once every event has been delivered.
type Source struct {
	events []ogmios.Event
}

// NewSource converts the scenario's events. Fails on malformed hex.
func NewSource(s *Scenario) (*Source, error) {
	src := &Source{events: make([]ogmios.Event, 0, len(s.Events))}
	for i, step := range s.Events {
		ev, err := step.event()
		if err != nil {
			return nil, fmt.Errorf("events[%d]: %w", i, err)
		}
		src.events = append(src.events, ev)
	}
	return src, nil
}

// Next returns the next event.
func (s *Source) Next(ctx context.Context) (ogmios.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.events) == 0 {
		return nil, io.EOF
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

// Len returns the number of events not yet delivered.
func (s *Source) Len() int {
	return len(s.events)
}
