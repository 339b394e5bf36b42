package feed

import "fmt"

// FetchError is a transport or API failure while talking to the feed.
// Callers treat it as transient.
type FetchError struct {
	Op         string
	StatusCode int // 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// AuthError means the feed rejected the configured credentials. It is fatal.
type AuthError struct {
	Username string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authenticating as %q: %v", e.Username, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }
