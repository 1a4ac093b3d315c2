package admission

import (
	"errors"
	"fmt"

	"tollbooth-hq/tollbooth/pkg/money"
	"tollbooth-hq/tollbooth/pkg/pricing"
)

// Errors returned by Admit and the settle path. Each maps to one HTTP status
// at the proxy boundary.
var (
	// ErrMissingSecret is returned when the caller sent no internal secret.
	ErrMissingSecret = errors.New("missing internal secret")

	// ErrInvalidSecret is returned when the internal secret does not match.
	ErrInvalidSecret = errors.New("invalid internal secret")

	// ErrNoProvider is returned when no configured provider serves the model.
	ErrNoProvider = errors.New("no provider configured for model")

	// ErrNoPricing is returned when the model has no pricing rule. Admission
	// fails closed rather than forwarding an unpriceable request.
	ErrNoPricing = pricing.ErrNoPricing

	// ErrBudgetExhausted is returned when the user's available balance does
	// not cover the request's ceiling.
	ErrBudgetExhausted = errors.New("budget exhausted")

	// ErrInvariantViolation is returned when a reservation token is unknown
	// at settle or release time. It indicates a bug, not a user error.
	ErrInvariantViolation = errors.New("ledger invariant violation")

	// ErrAlreadyResolved is returned by Settle or Release on an admission
	// that was already settled or released. The ledger is not touched.
	ErrAlreadyResolved = errors.New("admission already resolved")
)

// AlreadyResolvedError reports the state an admission was already in.
type AlreadyResolvedError struct {
	State State
}

// Error implements the error interface.
func (e *AlreadyResolvedError) Error() string {
	return "admission already " + e.State.String()
}

// Is implements error matching for errors.Is().
func (e *AlreadyResolvedError) Is(target error) bool {
	return target == ErrAlreadyResolved
}

// BudgetExhaustedError carries the numbers behind a rejected reservation.
type BudgetExhaustedError struct {
	UserID    string
	Model     string
	Available money.Amount
	Required  money.Amount
}

// Error implements the error interface.
func (e *BudgetExhaustedError) Error() string {
	return fmt.Sprintf("budget exhausted for user %s: available %s, request ceiling %s", e.UserID, e.Available, e.Required)
}

// Is implements error matching for errors.Is().
func (e *BudgetExhaustedError) Is(target error) bool {
	return target == ErrBudgetExhausted
}

// NoProviderError names the model that could not be routed.
type NoProviderError struct {
	Model string
	Cause error
}

// Error implements the error interface.
func (e *NoProviderError) Error() string {
	return fmt.Sprintf("no provider configured for model %q", e.Model)
}

// Is implements error matching for errors.Is().
func (e *NoProviderError) Is(target error) bool {
	return target == ErrNoProvider
}

// Unwrap returns the routing error.
func (e *NoProviderError) Unwrap() error {
	return e.Cause
}

// InvariantViolationError describes a settle or release that found no hold.
type InvariantViolationError struct {
	Stage  string
	UserID string
	Token  string
	Cause  error
}

// Error implements the error interface.
func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("ledger invariant violation during %s (user=%s token=%s): %v", e.Stage, e.UserID, e.Token, e.Cause)
}

// Is implements error matching for errors.Is().
func (e *InvariantViolationError) Is(target error) bool {
	return target == ErrInvariantViolation
}

// Unwrap returns the ledger error.
func (e *InvariantViolationError) Unwrap() error {
	return e.Cause
}
