package ingest

import (
	"time"

	"github.com/vibe4vets/directory-indexer/internal/store/schema"
)

const (
	// failingErrorThreshold is the consecutive-failure count at which a
	// source is FAILING regardless of freshness
	failingErrorThreshold = 3
	// failingStaleness is the success age past which a source is FAILING
	failingStaleness = 7 * 24 * time.Hour
	// degradedStaleness is the success age past which a source is DEGRADED
	degradedStaleness = 3 * 24 * time.Hour
)

// CalculateHealthStatus derives a source's health from its consecutive
// error count and the age of its last success. The status is re-derived
// from scratch on every call, never ratcheted toward a sticky worst
// case. Error count dominates freshness: three or more consecutive
// failures is FAILING even with a recent success; one or two is at
// least DEGRADED. A source that has never succeeded is judged on error
// count alone.
func CalculateHealthStatus(errorCount int, lastSuccess *time.Time, now time.Time) schema.HealthStatus {
	if errorCount >= failingErrorThreshold {
		return schema.HealthStatusFailing
	}
	if errorCount > 0 {
		return schema.HealthStatusDegraded
	}

	if lastSuccess == nil {
		return schema.HealthStatusHealthy
	}
	age := now.Sub(*lastSuccess)
	switch {
	case age > failingStaleness:
		return schema.HealthStatusFailing
	case age > degradedStaleness:
		return schema.HealthStatusDegraded
	default:
		return schema.HealthStatusHealthy
	}
}
