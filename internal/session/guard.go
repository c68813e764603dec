// Package session tracks per-user idle time and decides when an inactive
// session must be logged out. The cutoff only applies to users who enabled
// the automatic timeout in their security preferences, which the core API
// owns; preference lookups are cached briefly to keep activity pings cheap.
package session

import (
	"context"
	"sync"
	"time"

	"blocklytics/portal/pkg/cache"
	"blocklytics/portal/pkg/logging"
	"blocklytics/portal/pkg/models"
)

// DefaultIdleTimeout matches the portal's historical 30 minute cutoff.
const DefaultIdleTimeout = 30 * time.Minute

// PreferenceSource is the slice of the core API client the guard needs.
type PreferenceSource interface {
	SecurityPreferences(ctx context.Context, token string) (*models.SecurityPreferences, error)
}

// Status reports a session's idle state.
type Status struct {
	Enabled   bool          `json:"enabled"`
	Expired   bool          `json:"expired"`
	Remaining time.Duration `json:"-"`
	ExpiresAt time.Time     `json:"expires_at,omitempty"`
}

// Guard tracks last-activity timestamps per user.
type Guard struct {
	mu           sync.Mutex
	lastActivity map[string]time.Time
	idleTimeout  time.Duration
	prefs        PreferenceSource
	prefCache    *cache.Cache
	logger       logging.Logger
	now          func() time.Time
}

// Config configures a Guard.
type Config struct {
	IdleTimeout time.Duration
	Preferences PreferenceSource
	Logger      logging.Logger
}

// NewGuard creates an idle-session guard.
func NewGuard(config Config) *Guard {
	if config.IdleTimeout == 0 {
		config.IdleTimeout = DefaultIdleTimeout
	}

	return &Guard{
		lastActivity: make(map[string]time.Time),
		idleTimeout:  config.IdleTimeout,
		prefs:        config.Preferences,
		prefCache: cache.New(cache.Options{
			TTL:        5 * time.Minute,
			MaxEntries: 10000,
		}, cache.MetricsHooks{}),
		logger: config.Logger,
		now:    time.Now,
	}
}

// Touch records user activity, resetting the idle clock.
func (g *Guard) Touch(userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastActivity[userID] = g.now()
}

// Forget drops a user's tracking state. Called on logout.
func (g *Guard) Forget(userID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.lastActivity, userID)
	g.prefCache.Delete(userID)
}

// Status returns whether the timeout applies to this user and, if so, how
// much idle time remains. A user seen for the first time starts a fresh
// clock. Preference lookup failures disable the cutoff rather than logging
// the user out on an upstream hiccup.
func (g *Guard) Status(ctx context.Context, userID, token string) Status {
	enabled := g.timeoutEnabled(ctx, userID, token)
	if !enabled {
		return Status{Enabled: false}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	last, ok := g.lastActivity[userID]
	if !ok {
		last = g.now()
		g.lastActivity[userID] = last
	}

	expiresAt := last.Add(g.idleTimeout)
	remaining := expiresAt.Sub(g.now())
	return Status{
		Enabled:   true,
		Expired:   remaining <= 0,
		Remaining: remaining,
		ExpiresAt: expiresAt,
	}
}

func (g *Guard) timeoutEnabled(ctx context.Context, userID, token string) bool {
	v, ok, err := g.prefCache.Get(ctx, userID, func(ctx context.Context, _ string) (interface{}, bool, error) {
		prefs, err := g.prefs.SecurityPreferences(ctx, token)
		if err != nil {
			return nil, false, err
		}
		return prefs.AutoSessionTimeout, true, nil
	})
	if err != nil || !ok {
		if err != nil && g.logger != nil {
			g.logger.WithError(err).WithField("user_id", userID).Warn("Security preference lookup failed")
		}
		return false
	}

	enabled, _ := v.(bool)
	return enabled
}

// Run prunes idle tracking state until ctx is canceled. Entries older than
// twice the idle timeout have either expired long ago or belong to users who
// logged out without telling us.
func (g *Guard) Run(ctx context.Context) {
	ticker := time.NewTicker(g.idleTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.prune()
		}
	}
}

func (g *Guard) prune() {
	cutoff := g.now().Add(-2 * g.idleTimeout)

	g.mu.Lock()
	defer g.mu.Unlock()
	for userID, last := range g.lastActivity {
		if last.Before(cutoff) {
			delete(g.lastActivity, userID)
		}
	}
}
