package utils

import (
	"errors"
	"fmt"
)

// ErrNotApplicable is returned by a provider that cannot answer a query of
// this shape at all (a private address, a placeholder country code).
var ErrNotApplicable = errors.New("provider not applicable")

type FailureReason string

const (
	FailureNetwork   FailureReason = "network"
	FailureTimeout   FailureReason = "timeout"
	FailureStatus    FailureReason = "status"
	FailureMalformed FailureReason = "malformed"
)

// ProviderError is any failed upstream call. Cause is kept for logging.
type ProviderError struct {
	Provider string
	Reason   FailureReason
	Cause    error
}

// CountryCodeError is a country code that is not exactly two characters.
type CountryCodeError struct {
	Code string
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (e *ProviderError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("provider %s failed: %s", e.Provider, e.Reason)
	}
	return fmt.Sprintf("provider %s failed: %s: %s", e.Provider, e.Reason, e.Cause.Error())
}

func (e *ProviderError) Unwrap() error {
	return e.Cause
}

func (e CountryCodeError) Error() string {
	return "Invalid country code. Country code should be exactly 2 characters."
}
