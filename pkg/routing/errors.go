package routing

import (
	"errors"
	"fmt"
	"strings"
)

// Common routing errors that can be checked with errors.Is().
var (
	// ErrUnknownModel is returned when no route matches a model, or the only
	// matching routes point at providers without credentials.
	ErrUnknownModel = errors.New("no provider route for model")

	// ErrNoProvidersConfigured is returned when no provider has credentials.
	ErrNoProvidersConfigured = errors.New("no providers configured")
)

// UnknownModelError is returned when the requested model cannot be routed.
type UnknownModelError struct {
	// Model is the requested model.
	Model string

	// AvailableProviders contains the providers that are configured.
	AvailableProviders []string
}

// Error implements the error interface.
func (e *UnknownModelError) Error() string {
	if len(e.AvailableProviders) == 0 {
		return fmt.Sprintf("no provider route for model %q", e.Model)
	}
	return fmt.Sprintf("no provider route for model %q (available providers: %s)",
		e.Model, strings.Join(e.AvailableProviders, ", "))
}

// Is implements error matching for errors.Is().
func (e *UnknownModelError) Is(target error) bool {
	if target == ErrNoProvidersConfigured {
		return len(e.AvailableProviders) == 0
	}
	return target == ErrUnknownModel
}
