package projector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/govsync/internal/datum"
	"github.com/roach88/govsync/internal/ledger"
	"github.com/roach88/govsync/internal/plutus"
	"github.com/roach88/govsync/internal/store"
	"github.com/roach88/govsync/internal/tracker"
)

// Policies are the minting policies that identify protocol deployments.
// A nil policy disables the part of a projector that depends on it.
type Policies struct {
	GovStateNFT       []byte
	VotePermissionNFT []byte
	Licenses          []byte
	TreasurerNFT      []byte
}

// Env is the configuration shared by all projectors.
type Env struct {
	Policies Policies
	// NetworkID is the address network tag used to render datum addresses
	// (0 for test networks, 1 for mainnet).
	NetworkID byte
	Logger    *slog.Logger
}

func (e Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Input is one transaction handed to the projectors.
type Input struct {
	Block *store.BlockTx
	Cache *tracker.Cache
	Tx    *ledger.Transaction
	// Index is the position of the transaction in its block.
	Index int
}

// Projector records the effects of a transaction on one protocol component.
type Projector interface {
	Name() string
	// Project returns the number of state versions and transitions written.
	Project(ctx context.Context, in Input) (int, error)
}

// All returns the projectors in the order they must run.
func All(env Env) []Projector {
	return []Projector{
		&Gov{env: env},
		&Staking{env: env},
		&Tally{env: env},
		&Licenses{env: env},
		&Treasury{env: env},
	}
}

// InvariantError reports a transaction that breaks the thread model.
type InvariantError struct {
	Projector string
	TxID      ledger.Hash32
	Message   string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: tx %s: %s", e.Projector, e.TxID, e.Message)
}

func invariant(projector string, tx *ledger.Transaction, format string, args ...any) *InvariantError {
	return &InvariantError{Projector: projector, TxID: tx.ID, Message: fmt.Sprintf(format, args...)}
}

// output stores a transaction output under the current transaction.
func output(ctx context.Context, in Input, out ledger.Output) (int64, error) {
	return in.Block.Output(ctx, in.Tx.ID, in.Index, out)
}

// outRef renders the reference of an output of the current transaction.
func outRef(in Input, out ledger.Output) string {
	return ledger.OutRef{TxID: in.Tx.ID, Index: out.Index}.String()
}

// txRow returns the row id of the current transaction.
func txRow(ctx context.Context, in Input) (int64, error) {
	return in.Block.Transaction(ctx, in.Tx.ID, in.Index)
}

func tokenID(ctx context.Context, b *store.BlockTx, t datum.Token) (int64, error) {
	return b.Token(ctx, ledger.NewAssetID(t.Policy, t.Name))
}

func (e Env) addressID(ctx context.Context, b *store.BlockTx, a datum.Address) (int64, error) {
	return b.Address(ctx, a.Bytes(e.NetworkID))
}

// logMismatch records a datum or redeemer that did not decode as expected.
// Integers too large to store are reported at Warn since they leave a gap
// in a thread's history rather than marking an unrelated output.
func (e Env) logMismatch(projector, what string, tx *ledger.Transaction, outcome plutus.Outcome, err error, attrs ...any) {
	level := slog.LevelDebug
	msg := "skipping undecodable " + what
	if errors.Is(err, plutus.ErrIntRange) {
		level = slog.LevelWarn
		msg = "skipping " + what + " with out of range integer"
	}
	args := append([]any{
		"projector", projector,
		"tx", tx.ID.String(),
		"outcome", outcome.String(),
		"error", err,
	}, attrs...)
	e.logger().Log(context.Background(), level, msg, args...)
}

// endTime splits an extended time into its stored kind and value.
func endTime(t datum.ExtendedTime) (string, int64) {
	if t.Kind == datum.Finite {
		return t.Kind.String(), t.Millis
	}
	return t.Kind.String(), 0
}

// spentStates returns the stored versions of kind spent by tx, in sorted
// input order.
func spentStates(ctx context.Context, in Input, kind store.StateKind) ([]spent, error) {
	var out []spent
	for _, ref := range in.Tx.SortedInputs() {
		s, ok, err := in.Block.StateAt(ctx, kind, ref)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, spent{StateRef: s, Ref: ref})
		}
	}
	return out, nil
}

// spent is a stored state version consumed by the current transaction.
type spent struct {
	store.StateRef
	Ref ledger.OutRef
}

func idPtr(id int64) *int64 {
	return &id
}
