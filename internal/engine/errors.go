package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/govsync/internal/ogmios"
	"github.com/roach88/govsync/internal/projector"
)

// IngestError represents a failure that aborted a block.
//
// Ingest errors include:
//   - Invariant violation: a transaction breaks the thread model
//   - Store failure: the database rejected a write or read
//   - Decode failure: a transaction could not be decoded at all
//
// The block is never partially applied when an IngestError is returned.
type IngestError struct {
	// Code identifies the error category.
	Code IngestErrorCode

	// Message is a human-readable description.
	Message string

	// Slot and BlockHash identify the aborted block.
	Slot      uint64
	BlockHash string

	// TxID identifies the offending transaction, if any.
	TxID string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause.
	Err error
}

// IngestErrorCode categorizes ingest errors.
type IngestErrorCode string

const (
	// ErrCodeInvariantViolation indicates a transaction breaks a thread invariant.
	ErrCodeInvariantViolation IngestErrorCode = "INVARIANT_VIOLATION"

	// ErrCodeStoreFailure indicates the store failed.
	ErrCodeStoreFailure IngestErrorCode = "STORE_FAILURE"

	// ErrCodeDecodeFailure indicates transaction bytes could not be decoded.
	ErrCodeDecodeFailure IngestErrorCode = "DECODE_FAILURE"
)

// Error implements the error interface.
func (e *IngestError) Error() string {
	if e.TxID != "" {
		return fmt.Sprintf("%s: %s (slot=%d, tx=%s)", e.Code, e.Message, e.Slot, e.TxID)
	}
	if e.BlockHash != "" {
		return fmt.Sprintf("%s: %s (slot=%d, block=%s)", e.Code, e.Message, e.Slot, e.BlockHash)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *IngestError) Unwrap() error {
	return e.Err
}

// IsInvariantError returns true if the error is an invariant violation.
// Uses errors.As to handle wrapped errors.
func IsInvariantError(err error) bool {
	var ie *IngestError
	if errors.As(err, &ie) {
		return ie.Code == ErrCodeInvariantViolation
	}
	var pe *projector.InvariantError
	return errors.As(err, &pe)
}

// IsTransportError returns true if the error came from the chain-sync
// connection and the caller should reconnect.
func IsTransportError(err error) bool {
	var te *ogmios.TransportError
	return errors.As(err, &te)
}

func newIngestError(code IngestErrorCode, blk blockRef, txID string, err error) *IngestError {
	return &IngestError{
		Code:      code,
		Message:   err.Error(),
		Slot:      blk.slot,
		BlockHash: blk.hash,
		TxID:      txID,
		Err:       err,
	}
}

// classify wraps err from applying a transaction with the matching code.
func classify(blk blockRef, txID string, err error) *IngestError {
	var pe *projector.InvariantError
	if errors.As(err, &pe) {
		ie := newIngestError(ErrCodeInvariantViolation, blk, txID, err)
		ie.Details = map[string]string{"projector": pe.Projector}
		return ie
	}
	return newIngestError(ErrCodeStoreFailure, blk, txID, err)
}

type blockRef struct {
	slot uint64
	hash string
}
