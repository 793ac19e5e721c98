package ogmios

import (
	"errors"
	"fmt"
)

// ErrMissingCBOR is returned for blocks whose transactions lack raw CBOR.
var ErrMissingCBOR = errors.New("transaction without cbor, run ogmios with --include-cbor")

// TransportError wraps a connection or protocol failure. The connection
// is unusable afterwards; callers reconnect and renegotiate.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("ogmios %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RPCError is an error object returned by the server.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func transport(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}
