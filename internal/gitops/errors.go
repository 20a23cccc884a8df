package gitops

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Typed git errors enabling structured classification without string
// parsing upstream.

type AuthError struct {
	Op, URL string
	Err     error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s auth error for %s: %v", e.Op, e.URL, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Op, URL string
	Err     error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found %s: %v", e.Op, e.URL, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

type NetworkTimeoutError struct {
	Op, URL string
	Err     error
}

func (e *NetworkTimeoutError) Error() string {
	return fmt.Sprintf("%s network timeout %s: %v", e.Op, e.URL, e.Err)
}
func (e *NetworkTimeoutError) Unwrap() error { return e.Err }

type RemoteDivergedError struct {
	Op, Path string
	Err      error
}

func (e *RemoteDivergedError) Error() string {
	return fmt.Sprintf("%s remote diverged at %s: %v", e.Op, e.Path, e.Err)
}
func (e *RemoteDivergedError) Unwrap() error { return e.Err }

// classifyCloneError wraps underlying go-git errors into typed variants when
// the message allows it.
func classifyCloneError(url string, err error) error {
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "auth fail") || strings.Contains(l, "invalid username or password"):
		return &AuthError{Op: "clone", URL: url, Err: err}
	case strings.Contains(l, "not found") || strings.Contains(l, "repository does not exist"):
		return &NotFoundError{Op: "clone", URL: url, Err: err}
	case strings.Contains(l, "timeout") || strings.Contains(l, "i/o timeout"):
		return &NetworkTimeoutError{Op: "clone", URL: url, Err: err}
	}
	return fmt.Errorf("clone %s: %w", url, err)
}

func classifyFetchError(err error) error {
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "auth"):
		return &AuthError{Op: "fetch", Err: err}
	case strings.Contains(l, "not found") || strings.Contains(l, "repository does not exist"):
		return &NotFoundError{Op: "fetch", Err: err}
	case strings.Contains(l, "timeout"):
		return &NetworkTimeoutError{Op: "fetch", Err: err}
	}
	return fmt.Errorf("fetch: %w", err)
}

// IsPermanent reports whether retrying the operation cannot help: bad
// credentials, missing repositories, or non-timeout network errors.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.As(err, new(*AuthError)), errors.As(err, new(*NotFoundError)):
		return true
	case errors.As(err, new(*NetworkTimeoutError)):
		return false
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return !nerr.Timeout()
	}
	return false
}
