package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vibe4vets/directory-indexer/internal/store/schema"
)

func TestCalculateHealthStatus(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	successAgo := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	tests := []struct {
		name        string
		errorCount  int
		lastSuccess *time.Time
		want        schema.HealthStatus
	}{
		{"no errors recent success", 0, successAgo(time.Hour), schema.HealthStatusHealthy},
		{"one error", 1, successAgo(time.Hour), schema.HealthStatusDegraded},
		{"two errors", 2, successAgo(time.Hour), schema.HealthStatusDegraded},
		{"three errors", 3, successAgo(time.Hour), schema.HealthStatusFailing},
		{"many errors", 10, successAgo(time.Hour), schema.HealthStatusFailing},
		// Error count dominates freshness
		{"three errors with fresh success", 3, successAgo(time.Minute), schema.HealthStatusFailing},
		// Freshness thresholds with a clean streak
		{"success three days old", 0, successAgo(3 * 24 * time.Hour), schema.HealthStatusHealthy},
		{"success just over three days", 0, successAgo(3*24*time.Hour + time.Minute), schema.HealthStatusDegraded},
		{"success seven days old", 0, successAgo(7 * 24 * time.Hour), schema.HealthStatusDegraded},
		{"success just over seven days", 0, successAgo(7*24*time.Hour + time.Minute), schema.HealthStatusFailing},
		{"success eight days old", 0, successAgo(8 * 24 * time.Hour), schema.HealthStatusFailing},
		// Never succeeded
		{"never succeeded no errors", 0, nil, schema.HealthStatusHealthy},
		{"never succeeded one error", 1, nil, schema.HealthStatusDegraded},
		{"never succeeded three errors", 3, nil, schema.HealthStatusFailing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateHealthStatus(tt.errorCount, tt.lastSuccess, now)
			assert.Equal(t, tt.want, got)
		})
	}
}
