package deps

import (
	"time"

	"github.com/bookmarkeddit/bookmarkeddit/internal/logger"
	"github.com/bookmarkeddit/bookmarkeddit/internal/ratelimit"
	"github.com/bookmarkeddit/bookmarkeddit/internal/reddit"
)

type Deps struct {
	Logger         logger.Logger
	StartTime      time.Time
	Version        string
	Commit         string
	BuildDate      string
	GoVersion      string
	TimeNow        func() time.Time    // for testing, defaults to time.Now
	Reddit         *reddit.Client      // upstream Reddit client
	Limiter        *ratelimit.Registry // per-token rate-limit cooldowns
	PageLimit      int                 // default saved-listing page size
	AllowedOrigins []string            // CORS origins for the browser client
}
