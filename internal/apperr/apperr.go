// Package apperr defines the error kinds shared by the ledger core and the
// mapping from those kinds to HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidation marks malformed input rejected before any mutation.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientBalance occurs when a debit would take a balance below zero.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAlreadyProcessed is returned when approve/reject targets a transaction
	// that is no longer pending.
	ErrAlreadyProcessed = errors.New("transaction already processed")

	// ErrNotFound covers unknown users, transactions, subscriptions and products.
	ErrNotFound = errors.New("not found")

	// ErrDependency wraps failures of collaborators such as the notifier.
	ErrDependency = errors.New("dependency failure")

	// ErrForbidden indicates the actor's role may not perform the operation.
	ErrForbidden = errors.New("forbidden")
)

// Validation builds an ErrValidation with a formatted reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// NotFound builds an ErrNotFound naming the missing entity.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// HTTPStatus maps an error kind to the status code handlers should answer with.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrInsufficientBalance):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrAlreadyProcessed):
		return http.StatusConflict
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrDependency):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
