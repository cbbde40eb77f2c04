package errors

import (
	"errors"
	"fmt"
)

// Common application errors with proper types for error handling

var (
	// ErrInvalidInput indicates invalid input data
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates missing or invalid authentication
	ErrUnauthorized = errors.New("unauthorized")

	// ErrDeployFailed indicates the deployment procedure did not complete
	ErrDeployFailed = errors.New("deploy failed")

	// ErrOriginUnavailable indicates the upstream origin could not serve a request
	ErrOriginUnavailable = errors.New("origin unavailable")
)

// UnauthorizedError creates an unauthorized error with context
func UnauthorizedError(reason string) error {
	if reason != "" {
		return fmt.Errorf("%s: %w", reason, ErrUnauthorized)
	}
	return ErrUnauthorized
}

// InvalidInputError creates an invalid input error with context
func InvalidInputError(field, reason string) error {
	return fmt.Errorf("%s: %s: %w", field, reason, ErrInvalidInput)
}

// DeployFailedError wraps the cause of a failed deployment
func DeployFailedError(cause error) error {
	return fmt.Errorf("%w: %w", ErrDeployFailed, cause)
}

// OriginUnavailableError wraps the cause of a failed origin fetch
func OriginUnavailableError(url string, cause error) error {
	return fmt.Errorf("%s: %w: %w", url, ErrOriginUnavailable, cause)
}

// Is checks if an error matches a target error (works with wrapped errors)
func Is(err, target error) bool {
	return errors.Is(err, target)
}
