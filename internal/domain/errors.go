package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrNoRetailers is returned when no retailer connectors are configured
	ErrNoRetailers = errors.New("no retailers configured")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrBasketNotFound is returned when a session has no stored basket
	ErrBasketNotFound = errors.New("basket not found")

	// ErrItemNotFound is returned when a basket does not hold the requested line
	ErrItemNotFound = errors.New("item not found in basket")

	// ErrTemplateNotFound is returned when a basket template id is unknown for the session
	ErrTemplateNotFound = errors.New("template not found")

	// ErrUnparsablePrice marks a raw product whose price cannot be read
	ErrUnparsablePrice = errors.New("unparsable price")

	// ErrNotSupported is returned when a retailer does not offer an operation
	ErrNotSupported = errors.New("operation not supported by retailer")

	// ErrRateLimited is returned when a client exceeds its request budget
	ErrRateLimited = errors.New("rate limit exceeded")
)

// ValidationError rejects a single request input
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrInvalidRequest) match any validation failure
func (e *ValidationError) Unwrap() error { return ErrInvalidRequest }

// NewValidationError builds a ValidationError
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ConnectorErrorKind classifies a connector failure
type ConnectorErrorKind string

const (
	ConnectorTimeout      ConnectorErrorKind = "timeout"
	ConnectorUpstream     ConnectorErrorKind = "upstream"
	ConnectorNotSupported ConnectorErrorKind = "not_supported"
	ConnectorUnavailable  ConnectorErrorKind = "unavailable"
)

// ConnectorError is the failure of a single retailer connector call
type ConnectorError struct {
	Retailer RetailerID
	Kind     ConnectorErrorKind
	Err      error
}

func (e *ConnectorError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("connector %s: %s", e.Retailer, e.Kind)
	}
	return fmt.Sprintf("connector %s: %s: %v", e.Retailer, e.Kind, e.Err)
}

func (e *ConnectorError) Unwrap() error { return e.Err }

// NewConnectorError builds a ConnectorError
func NewConnectorError(retailer RetailerID, kind ConnectorErrorKind, err error) *ConnectorError {
	return &ConnectorError{Retailer: retailer, Kind: kind, Err: err}
}

// ConnectorErrorKindOf extracts the kind of a connector error, defaulting to upstream
func ConnectorErrorKindOf(err error) ConnectorErrorKind {
	var ce *ConnectorError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ConnectorUpstream
}
