package api

import "fmt"

// Error is the proxy's uniform error shape. Status carries the HTTP status
// the proxy reported; RetryAfter is set only for 429 responses.
type Error struct {
	Message    string `json:"error"`
	Status     int    `json:"status"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// AuthFailed reports whether the session is invalid or expired. Never
// retried automatically; callers clear local session state instead.
func (e *Error) AuthFailed() bool {
	return e.Status == 401 || e.Status == 403
}

// RateLimited reports whether the request hit Reddit's rate limit.
// Recoverable by waiting RetryAfter seconds.
func (e *Error) RateLimited() bool {
	return e.Status == 429
}

// BadRequest reports a 400, typically an insufficient OAuth scope.
func (e *Error) BadRequest() bool {
	return e.Status == 400
}

// NetworkError marks a transport-level failure (connectivity loss, DNS,
// timeout) as opposed to a response the proxy produced.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}
