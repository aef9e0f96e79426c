package deps

import (
	"time"

	"github.com/MrSnakeDoc/bitmark/internal/background"
	"github.com/MrSnakeDoc/bitmark/internal/logger"
)

type Deps struct {
	Logger                logger.Logger
	StartTime             time.Time
	Version               string
	Commit                string
	BuildDate             string
	GoVersion             string
	TimeNow               func() time.Time    // for testing, defaults to time.Now
	AllowedOrigins        []string            // CORS origins allowed to call the API (the extension)
	AllowedHosts          []string            // Host headers allowed to access the server
	AllowedCIDRS          []string            // IPs allowed to access the API
	TrustProxy            bool                // true if running behind a trusted reverse proxy
	RateBurst             int                 // per-IP burst for the rate limiter
	RatePerMinute         int                 // per-IP sustained rate for the rate limiter
	RequestTimeout        time.Duration       // per-request deadline (captures are detached from it)
	StoreBackend          string              // "redis" | "memory", reported by /infra
	Service               *background.Service // command handler for every API route
	ResyncTrigger         chan struct{}       // Channel to trigger a manual resync
	SettingsReloadTrigger chan struct{}       // Channel to trigger a settings file reload (nil if no settings file)
}
