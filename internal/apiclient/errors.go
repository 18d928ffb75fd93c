package apiclient

import (
	"errors"
	"fmt"
)

// Error taxonomy. Callers branch on these with errors.As:
//
//   - ValidationError: bad input caught before or by the request; retrying
//     the same input cannot succeed.
//   - AuthError: the credential was rejected; the owning credential group
//     should be cleared and the session re-resolved.
//   - NotFoundError: the referenced media or team no longer exists; show it
//     as unavailable, do not retry.
//   - TransientError: the request itself failed (network, timeout); the
//     whole operation is safe to retry.

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string { return e.Message }

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return fmt.Sprintf("request failed: %v", e.Err) }
func (e *TransientError) Unwrap() error { return e.Err }

// APIError covers any remaining non-2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string { return e.Message }

// IsAuth reports whether err indicates a rejected credential.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsNotFound reports whether err indicates a missing resource.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// errorEnvelope is the wire shape of every error body.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// classify maps a non-2xx response to the taxonomy. A missing or unparsable
// body falls back to a generic message carrying the status.
func classify(status int, env *errorEnvelope) error {
	message := ""
	code := ""
	if env != nil {
		message = env.Error.Message
		code = env.Error.Code
	}
	if message == "" {
		message = fmt.Sprintf("Request failed (%d)", status)
	}

	switch {
	case status == 401 || status == 403:
		return &AuthError{StatusCode: status, Message: message}
	case status == 404:
		return &NotFoundError{Message: message}
	case status == 400 || status == 413 || status == 422:
		return &ValidationError{Message: message}
	default:
		return &APIError{StatusCode: status, Code: code, Message: message}
	}
}
