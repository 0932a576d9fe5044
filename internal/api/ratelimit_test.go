package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionLimiterNilAllows(t *testing.T) {
	var l *SessionLimiter
	assert.Nil(t, NewSessionLimiter(0, 5))
	assert.True(t, l.Allow("x"))
	l.Forget("x")
	assert.Equal(t, 0, l.Sweep(time.Minute))
}

func TestSessionLimiterRefill(t *testing.T) {
	l := NewSessionLimiter(1, 1)
	now := time.Unix(1700000000, 0)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("s"))
	assert.False(t, l.Allow("s"))

	now = now.Add(1100 * time.Millisecond)
	assert.True(t, l.Allow("s"))
}

func TestSessionLimiterSweep(t *testing.T) {
	l := NewSessionLimiter(1, 1)
	now := time.Unix(1700000000, 0)
	l.now = func() time.Time { return now }

	l.Allow("old")
	now = now.Add(time.Hour)
	l.Allow("new")

	assert.Equal(t, 1, l.Sweep(30*time.Minute))
	assert.Len(t, l.buckets, 1)
	assert.Contains(t, l.buckets, "new")
}
