// Package adapters holds clients for the system's external collaborators:
// market data, the earnings-call provider, and the backtest service. All
// adapters fail closed: a missing value is a typed error, never a guess.
package adapters

import (
	"errors"
	"fmt"
)

// AdapterError classifies an external-data failure so callers can decide
// between retry, skip, and abort.
type AdapterError struct {
	Type    string // "network", "rate_limit", "provider_error", "not_found", "bad_symbol"
	Symbol  string
	Message string
	Cause   error
}

func (e *AdapterError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error for %s: %s (%v)", e.Type, e.Symbol, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error for %s: %s", e.Type, e.Symbol, e.Message)
}

func (e *AdapterError) Unwrap() error { return e.Cause }

// ErrPriceUnavailable marks a close price the provider does not have. The
// pipeline skips the affected order rather than substituting a price.
var ErrPriceUnavailable = errors.New("close price unavailable")

func NewNetworkError(symbol, message string, cause error) *AdapterError {
	return &AdapterError{Type: "network", Symbol: symbol, Message: message, Cause: cause}
}

func NewRateLimitError(symbol, message string) *AdapterError {
	return &AdapterError{Type: "rate_limit", Symbol: symbol, Message: message}
}

func NewProviderError(symbol, message string, cause error) *AdapterError {
	return &AdapterError{Type: "provider_error", Symbol: symbol, Message: message, Cause: cause}
}

func NewBadSymbolError(symbol, message string) *AdapterError {
	return &AdapterError{Type: "bad_symbol", Symbol: symbol, Message: message}
}

func NewNotFoundError(symbol, message string) *AdapterError {
	return &AdapterError{Type: "not_found", Symbol: symbol, Message: message, Cause: ErrPriceUnavailable}
}
