// internal/api/ratelimit_test.go
package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterRegistryEviction(t *testing.T) {
	t.Run("idle entries are swept", func(t *testing.T) {
		reg := newLimiterRegistry(1, 1)
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		reg.now = func() time.Time { return now }

		reg.allow("csk_stale")
		assert.Len(t, reg.limiters, 1)

		now = now.Add(limiterTTL + time.Minute)
		reg.allow("csk_fresh")

		assert.Len(t, reg.limiters, 1)
		assert.NotContains(t, reg.limiters, "csk_stale")
		assert.Contains(t, reg.limiters, "csk_fresh")
	})

	t.Run("active entries survive the sweep", func(t *testing.T) {
		reg := newLimiterRegistry(1, 1)
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		reg.now = func() time.Time { return now }

		reg.allow("csk_active")
		now = now.Add(limiterTTL - time.Minute)
		reg.allow("csk_active")
		now = now.Add(2 * time.Minute)
		reg.allow("csk_other")

		assert.Contains(t, reg.limiters, "csk_active")
		assert.Contains(t, reg.limiters, "csk_other")
	})

	t.Run("bucket state survives within the window", func(t *testing.T) {
		reg := newLimiterRegistry(0.001, 1)
		assert.True(t, reg.allow("csk_key"))
		assert.False(t, reg.allow("csk_key"))
	})
}
