package reddit

import "fmt"

// RateLimitError signals a 429, either enforced locally from the registry
// (Cooldown=true) or freshly returned by Reddit.
type RateLimitError struct {
	RetryAfter int // seconds
	Cooldown   bool
}

func (e *RateLimitError) Error() string {
	if e.Cooldown {
		return fmt.Sprintf("rate limit in effect, retry after %ds", e.RetryAfter)
	}
	return fmt.Sprintf("rate limited by reddit, retry after %ds", e.RetryAfter)
}

// UpstreamError carries a non-2xx Reddit response that is not a 429.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("reddit returned %d: %s", e.Status, e.Body)
}
