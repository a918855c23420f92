package sync

// State is the orchestrator's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateLoadingFromCache
	StateServingCachedAndRefreshing
	StateLoadingForeground
	StateReady
	StateError
	StateWaitingToRetry
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingFromCache:
		return "loading-from-cache"
	case StateServingCachedAndRefreshing:
		return "serving-cached-and-refreshing"
	case StateLoadingForeground:
		return "loading-foreground"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	case StateWaitingToRetry:
		return "waiting-to-retry"
	default:
		return "unknown"
	}
}

// EventKind classifies a notification emitted by the orchestrator.
type EventKind int

const (
	// EventItemsChanged fires after a background refresh found differences
	// and the displayed set was replaced. Added/Removed carry the counts.
	EventItemsChanged EventKind = iota
	// EventUpToDate fires after a background refresh found no differences.
	EventUpToDate
	// EventRateLimited fires when a fetch hit the rate limit. RetryIn is
	// the scheduled wait in seconds.
	EventRateLimited
	// EventRetryCountdown ticks once a second while waiting to retry.
	EventRetryCountdown
	// EventSessionExpired fires when auth failed anywhere; the session and
	// cache have already been cleared and the UI must return to login.
	EventSessionExpired
	// EventFilterCleared fires when a filtered community lost its last
	// item and was removed from the active selection.
	EventFilterCleared
	// EventUnsaved fires after a successful unsave.
	EventUnsaved
	// EventError carries a transient, manually-retryable failure.
	EventError
)

// Event is a user-facing notification. Kind decides which fields are set.
type Event struct {
	Kind        EventKind
	Message     string
	Added       int
	Removed     int
	RetryIn     int
	Communities []string
}
