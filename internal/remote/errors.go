package remote

import (
	"errors"
	"fmt"
)

// APIError is a non-2xx response from the auth or table API.
type APIError struct {
	Status  int
	Code    string
	Message string
	Method  string
	Path    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s: %d %s: %s", e.Method, e.Path, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s: %d: %s", e.Method, e.Path, e.Status, e.Message)
}

// AuthError indicates the service rejected the credentials or token.
// It wraps the APIError for the 401 response.
type AuthError struct {
	Message string
	Err     *APIError
}

func (e *AuthError) Error() string {
	return "auth error: " + e.Message
}

func (e *AuthError) Unwrap() error {
	if e.Err == nil {
		return nil
	}
	return e.Err
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// IsRejected reports whether the service refused the request itself
// (any 4xx), as opposed to a transport failure or a server error.
func IsRejected(err error) bool {
	if IsAuthError(err) {
		return true
	}
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500
}

// Message returns the human-readable part of a remote error, suitable for an
// alert. Other errors are returned as-is.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Message
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
