package chat

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestPresenceStartStop(t *testing.T) {
	p := NewPresenceTracker(5 * time.Second)
	alice := uuid.New()
	bob := uuid.New()

	p.Start("r1", alice, "Alice")
	p.Start("r1", bob, "Bob")

	got := p.Active("r1")
	if len(got) != 2 || got[0] != "Alice" || got[1] != "Bob" {
		t.Fatalf("expected [Alice Bob], got %v", got)
	}

	if !p.Stop("r1", alice) {
		t.Fatal("expected Stop to find Alice's entry")
	}
	got = p.Active("r1")
	if len(got) != 1 || got[0] != "Bob" {
		t.Fatalf("expected [Bob], got %v", got)
	}

	if p.Stop("r1", alice) {
		t.Error("second Stop should report no entry")
	}
}

func TestPresenceExpiry(t *testing.T) {
	p := NewPresenceTracker(5 * time.Second)
	now := time.Now()
	p.now = func() time.Time { return now }

	alice := uuid.New()
	p.Start("r1", alice, "Alice")

	if got := p.Active("r1"); len(got) != 1 {
		t.Fatalf("expected Alice typing, got %v", got)
	}

	// Refresh keeps the entry alive past the original deadline.
	now = now.Add(3 * time.Second)
	p.Start("r1", alice, "Alice")
	now = now.Add(4 * time.Second)
	if got := p.Active("r1"); len(got) != 1 {
		t.Fatalf("refreshed entry should still be active, got %v", got)
	}

	// Past the TTL without a refresh: gone, no explicit stop needed.
	now = now.Add(6 * time.Second)
	if got := p.Active("r1"); len(got) != 0 {
		t.Fatalf("expected expired entry to be pruned, got %v", got)
	}
}

func TestPresenceClearUser(t *testing.T) {
	p := NewPresenceTracker(5 * time.Second)
	alice := uuid.New()
	bob := uuid.New()

	p.Start("r1", alice, "Alice")
	p.Start("r2", alice, "Alice")
	p.Start("r1", bob, "Bob")

	cleared := p.ClearUser(alice, []string{"r1", "r2", "r3"})
	if len(cleared) != 2 {
		t.Fatalf("expected entries cleared in r1 and r2, got %v", cleared)
	}

	if got := p.Active("r1"); len(got) != 1 || got[0] != "Bob" {
		t.Errorf("expected only Bob left in r1, got %v", got)
	}
	if got := p.Active("r2"); len(got) != 0 {
		t.Errorf("expected r2 empty, got %v", got)
	}
}
