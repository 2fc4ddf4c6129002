package domain

import (
	"errors"
	"strconv"
)

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// CapabilityError is returned when an operation needs a signing identity
// and the configured identity is address-only (or absent).
type CapabilityError struct {
	Op       string // Operation that needed the signer (e.g., "order", "approveAgent")
	Identity string // Address of the identity, empty if none is configured
}

func (e *CapabilityError) Error() string {
	if e.Identity == "" {
		return e.Op + ": no signing identity configured"
	}
	return e.Op + ": identity " + e.Identity + " cannot sign"
}

func (e *CapabilityError) IsRetriable() bool { return false }

func (e *CapabilityError) Unwrap() error { return ErrNoSigner }

// SerializationError means an action could not be canonically encoded.
// It always points at a schema bug and is never recovered.
type SerializationError struct {
	Action string
	Err    error
}

func (e *SerializationError) Error() string {
	return "serialize " + e.Action + ": " + e.Err.Error()
}

func (e *SerializationError) IsRetriable() bool { return false }

func (e *SerializationError) Unwrap() error { return e.Err }

// SigningError wraps a failure inside hashing or ECDSA signing.
type SigningError struct {
	Action string
	Err    error
}

func (e *SigningError) Error() string {
	return "sign " + e.Action + ": " + e.Err.Error()
}

func (e *SigningError) IsRetriable() bool { return false }

func (e *SigningError) Unwrap() error { return e.Err }

// TransportError represents a network or remote failure.
// Message holds the exchange's own error text when it returned one.
type TransportError struct {
	Op         string // Endpoint or operation (e.g., "exchange", "info:clearinghouseState")
	StatusCode int    // HTTP status, 0 if the request never completed
	Message    string // Remote error message, if any
	Err        error  // Underlying error
	Retriable  bool
}

func (e *TransportError) Error() string {
	msg := e.Op
	if e.StatusCode != 0 {
		msg += " (status " + strconv.Itoa(e.StatusCode) + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) IsRetriable() bool { return e.Retriable }

func (e *TransportError) Unwrap() error { return e.Err }

// NewTransportError creates a retriable transport error
func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err, Retriable: true}
}

// NewRejectedError creates a non-retriable error for an action the exchange refused.
func NewRejectedError(op, message string) *TransportError {
	return &TransportError{Op: op, Message: message, Err: ErrRejected, Retriable: false}
}

// PersistenceError is returned when the agent key could not be written to disk.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return "persist " + e.Path + ": " + e.Err.Error()
}

func (e *PersistenceError) IsRetriable() bool { return false }

func (e *PersistenceError) Unwrap() error { return e.Err }

// ActionError attaches the action kind and the acting identity to a failure
// before it leaves the gateway. It never carries key material.
type ActionError struct {
	Action   string
	Identity string
	Err      error
}

func (e *ActionError) Error() string {
	if e.Identity == "" {
		return e.Action + ": " + e.Err.Error()
	}
	return e.Action + " as " + e.Identity + ": " + e.Err.Error()
}

func (e *ActionError) Unwrap() error { return e.Err }

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrNoSigner is wrapped by every CapabilityError.
	ErrNoSigner = errors.New("signing identity required")

	// ErrNoAddress is returned by user-scoped reads when no account address is known.
	ErrNoAddress = errors.New("account address required")

	// ErrRejected is returned when the exchange answers with status "err".
	ErrRejected = errors.New("rejected by exchange")

	// ErrUnknownAsset is returned when a coin is not in the perp or spot universe.
	ErrUnknownAsset = errors.New("unknown asset")

	// ErrNoMidPrice is returned when a market order cannot be priced.
	ErrNoMidPrice = errors.New("no mid price available")

	// ErrConfigNotFound is returned when configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
