package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterBurstPerKey(t *testing.T) {
	l := New(0.001, 2, 16, time.Minute)

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.Greater(t, l.RetryAfter("a"), time.Second)

	assert.True(t, l.Allow("b"), "keys are independent")
}

func TestLimiterDisabled(t *testing.T) {
	l := New(0, 1, 16, time.Minute)
	for i := 0; i < 100; i++ {
		assert.True(t, l.Allow("x"))
	}
}
