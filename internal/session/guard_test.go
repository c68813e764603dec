package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"blocklytics/portal/pkg/models"
)

type fakePrefs struct {
	autoTimeout bool
	err         error
	calls       int
}

func (f *fakePrefs) SecurityPreferences(ctx context.Context, token string) (*models.SecurityPreferences, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &models.SecurityPreferences{AutoSessionTimeout: f.autoTimeout}, nil
}

func newTestGuard(prefs PreferenceSource) (*Guard, *time.Time) {
	g := NewGuard(Config{IdleTimeout: 30 * time.Minute, Preferences: prefs})
	now := time.Date(2025, 11, 3, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	return g, &now
}

func TestStatusDisabledByPreference(t *testing.T) {
	g, _ := newTestGuard(&fakePrefs{autoTimeout: false})

	status := g.Status(context.Background(), "user-1", "token")
	if status.Enabled {
		t.Error("expected timeout disabled")
	}
	if status.Expired {
		t.Error("disabled sessions never expire")
	}
}

func TestStatusFreshSession(t *testing.T) {
	g, _ := newTestGuard(&fakePrefs{autoTimeout: true})

	status := g.Status(context.Background(), "user-1", "token")
	if !status.Enabled {
		t.Fatal("expected timeout enabled")
	}
	if status.Expired {
		t.Error("fresh session must not be expired")
	}
	if status.Remaining != 30*time.Minute {
		t.Errorf("expected 30m remaining, got %v", status.Remaining)
	}
}

func TestStatusExpiresAfterIdleTimeout(t *testing.T) {
	g, now := newTestGuard(&fakePrefs{autoTimeout: true})

	g.Touch("user-1")
	*now = now.Add(31 * time.Minute)

	status := g.Status(context.Background(), "user-1", "token")
	if !status.Expired {
		t.Error("expected session expired after 31 minutes idle")
	}
}

func TestTouchResetsIdleClock(t *testing.T) {
	g, now := newTestGuard(&fakePrefs{autoTimeout: true})

	g.Touch("user-1")
	*now = now.Add(29 * time.Minute)
	g.Touch("user-1")
	*now = now.Add(29 * time.Minute)

	status := g.Status(context.Background(), "user-1", "token")
	if status.Expired {
		t.Error("activity within the window must keep the session alive")
	}
}

func TestPreferenceFailureDisablesCutoff(t *testing.T) {
	g, _ := newTestGuard(&fakePrefs{err: errors.New("upstream down")})

	status := g.Status(context.Background(), "user-1", "token")
	if status.Enabled {
		t.Error("expected cutoff disabled when preferences are unavailable")
	}
}

func TestPreferenceLookupIsCached(t *testing.T) {
	prefs := &fakePrefs{autoTimeout: true}
	g, _ := newTestGuard(prefs)

	for i := 0; i < 5; i++ {
		g.Status(context.Background(), "user-1", "token")
	}
	if prefs.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", prefs.calls)
	}
}

func TestForget(t *testing.T) {
	prefs := &fakePrefs{autoTimeout: true}
	g, now := newTestGuard(prefs)

	g.Touch("user-1")
	*now = now.Add(31 * time.Minute)
	g.Forget("user-1")

	// After logout the next sighting starts a fresh clock.
	status := g.Status(context.Background(), "user-1", "token")
	if status.Expired {
		t.Error("expected fresh clock after Forget")
	}
}

func TestPrune(t *testing.T) {
	g, now := newTestGuard(&fakePrefs{autoTimeout: true})

	g.Touch("user-1")
	*now = now.Add(2 * time.Hour)
	g.Touch("user-2")
	g.prune()

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.lastActivity["user-1"]; ok {
		t.Error("expected stale entry pruned")
	}
	if _, ok := g.lastActivity["user-2"]; !ok {
		t.Error("expected active entry kept")
	}
}
