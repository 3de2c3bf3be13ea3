package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAgentIsAvailable(t *testing.T) {
	healthy := Agent{ID: "a", IsActive: true, MaxConsecutiveFailures: 3, HealthStatus: HealthHealthy}
	assert.True(t, healthy.IsAvailable())

	degraded := healthy
	degraded.HealthStatus = HealthDegraded
	assert.True(t, degraded.IsAvailable())

	inactive := healthy
	inactive.IsActive = false
	assert.False(t, inactive.IsAvailable())

	paused := healthy
	now := time.Now()
	paused.PausedAt = &now
	assert.False(t, paused.IsAvailable())

	tripped := healthy
	tripped.ConsecutiveFailures = 3
	assert.False(t, tripped.IsAvailable())

	failing := healthy
	failing.HealthStatus = HealthFailing
	assert.False(t, failing.IsAvailable())
}
