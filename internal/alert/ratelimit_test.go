package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsFirstThenSuppresses(t *testing.T) {
	rl := newRateLimiter(time.Minute)
	now := time.Now()

	assert.True(t, rl.allow("ops@example.com", "/bin/evil", now))
	assert.False(t, rl.allow("ops@example.com", "/bin/evil", now.Add(time.Second)))
}

func TestRateLimiterIsPerRecipientAndPath(t *testing.T) {
	rl := newRateLimiter(time.Minute)
	now := time.Now()

	assert.True(t, rl.allow("a@example.com", "/bin/evil", now))
	assert.True(t, rl.allow("b@example.com", "/bin/evil", now))
	assert.True(t, rl.allow("a@example.com", "/bin/other", now))
}

func TestRateLimiterAllowsAgainAfterWindow(t *testing.T) {
	rl := newRateLimiter(50 * time.Millisecond)
	now := time.Now()

	assert.True(t, rl.allow("ops@example.com", "/bin/evil", now))
	assert.False(t, rl.allow("ops@example.com", "/bin/evil", now.Add(10*time.Millisecond)))
	assert.True(t, rl.allow("ops@example.com", "/bin/evil", now.Add(100*time.Millisecond)))
}
