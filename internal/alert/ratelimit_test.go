package alert

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/macrokit/macroguard/internal/logger"
)

func TestMain(m *testing.M) {
	logger.InitQuiet()
	os.Exit(m.Run())
}

func TestRateLimiterSuppressesWithinWindow(t *testing.T) {
	now := time.Now()
	r := newRateLimiter(30 * time.Second)
	r.now = func() time.Time { return now }

	if !r.allow("m1", KindPatternWarning) {
		t.Fatal("first alert must be allowed")
	}
	if r.allow("m1", KindPatternWarning) {
		t.Error("identical alert inside the window must be suppressed")
	}

	// Window passes
	now = now.Add(31 * time.Second)
	if !r.allow("m1", KindPatternWarning) {
		t.Error("alert after the window must be allowed")
	}
}

func TestRateLimiterKeysBySubjectAndKind(t *testing.T) {
	now := time.Now()
	r := newRateLimiter(30 * time.Second)
	r.now = func() time.Time { return now }

	if !r.allow("m1", KindPatternWarning) {
		t.Fatal("first alert must be allowed")
	}

	// Different subject, same kind
	if !r.allow("m2", KindPatternWarning) {
		t.Error("different subject must not be suppressed")
	}

	// Same subject, different kind
	if !r.allow("m1", KindResourceWarning) {
		t.Error("different kind must not be suppressed")
	}
}

func TestRateLimiterZeroWindowDisables(t *testing.T) {
	r := newRateLimiter(0)
	for i := 0; i < 5; i++ {
		if !r.allow("m1", KindPatternWarning) {
			t.Fatal("zero window must never suppress")
		}
	}
}

func TestRateLimiterCleansExpiredEntries(t *testing.T) {
	now := time.Now()
	r := newRateLimiter(time.Second)
	r.now = func() time.Time { return now }

	for i := 0; i < 1025; i++ {
		r.allow(fmt.Sprintf("m%d", i), KindPatternWarning)
	}

	// All entries have expired; the next allow triggers cleanup
	now = now.Add(2 * time.Second)
	r.allow("fresh", KindPatternWarning)

	r.mu.Lock()
	size := len(r.last)
	r.mu.Unlock()
	if size > 2 {
		t.Errorf("limiter map size = %d after cleanup, want <= 2", size)
	}
}
