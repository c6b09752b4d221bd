package subrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Error categories returned by the client packages. Every error produced by
// the client can be matched against one of these with errors.Is.
var (
	// ErrConnection is returned when the node is unreachable, the handshake
	// fails or the connection is lost with a call in flight.
	ErrConnection = errors.New("connection error")
	// ErrInvalidArgument is returned for malformed requests, they're rejected
	// before any I/O.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrSigning is returned when the signer's key material can't be used.
	ErrSigning = errors.New("signing error")
	// ErrRejected is returned when the node refuses a well-formed extrinsic.
	// It always wraps *Error with the node's reason.
	ErrRejected = errors.New("rejected by node")
	// ErrInvalidSeed is returned for malformed seeds and derivation paths.
	ErrInvalidSeed = errors.New("invalid seed")
	// ErrNotReady is returned when the client is used before it's ready.
	ErrNotReady = errors.New("client is not ready")
)

// Standard JSON-RPC 2.0 error codes.
const (
	ParseErrorCode     = -32700
	InvalidRequestCode = -32600
	MethodNotFoundCode = -32601
	InvalidParamsCode  = -32602
	InternalErrorCode  = -32603
)

// Substrate-specific error codes returned by author_* methods.
const (
	// InvalidTransactionCode is returned for transactions that can't be
	// included (bad nonce, bad signature, insufficient funds).
	InvalidTransactionCode = 1010
	// UnknownTransactionCode is returned when validity can't be determined.
	UnknownTransactionCode = 1011
	// PoolTemporarilyBannedCode is returned for recently dropped transactions.
	PoolTemporarilyBannedCode = 1012
	// PoolAlreadyImportedCode is returned for duplicate transactions.
	PoolAlreadyImportedCode = 1013
	// PoolTooLowPriorityCode is returned when a transaction with the same
	// nonce and higher priority is already in the pool.
	PoolTooLowPriorityCode = 1014
)

// Error is a JSON-RPC 2.0 error object. Substrate puts either a string or an
// arbitrary JSON value into data, so it's kept raw.
type Error struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewError is an Error constructor that takes Error contents from its
// parameters.
func NewError(code int64, message string, data string) *Error {
	e := &Error{
		Code:    code,
		Message: message,
	}
	if data != "" {
		e.Data, _ = json.Marshal(data) // Strings always marshal.
	}
	return e
}

// Reason returns the node's explanation of the error: the data field if it's
// a string, its raw JSON form otherwise and the message if there is no data.
func (e *Error) Reason() string {
	if len(e.Data) == 0 {
		return e.Message
	}
	var s string
	if err := json.Unmarshal(e.Data, &s); err == nil {
		return s
	}
	return string(e.Data)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Data) == 0 {
		return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("RPC error %d: %s (%s)", e.Code, e.Message, e.Reason())
}

// Is allows to match errors with the same code using errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}
