package hub

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAttemptLimiter_EnforcesWindowLimit(t *testing.T) {
	limiter := newAttemptLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.allow("10.0.0.1"), "attempt %d should pass", i+1)
	}
	assert.False(t, limiter.allow("10.0.0.1"))
	assert.True(t, limiter.allow("10.0.0.2"), "a different origin has its own counter")
}

func TestAttemptLimiter_WindowExpiryResetsCounter(t *testing.T) {
	limiter := newAttemptLimiter(1, 20*time.Millisecond)

	assert.True(t, limiter.allow("10.0.0.1"))
	assert.False(t, limiter.allow("10.0.0.1"))

	time.Sleep(40 * time.Millisecond)
	assert.True(t, limiter.allow("10.0.0.1"))
}

func TestAttemptLimiter_ZeroLimitDisables(t *testing.T) {
	limiter := newAttemptLimiter(0, time.Minute)
	for i := 0; i < 100; i++ {
		assert.True(t, limiter.allow("10.0.0.1"))
	}
}
