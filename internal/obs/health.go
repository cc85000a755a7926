package obs

import (
	"context"
	"time"
)

// HealthStatus reports the aggregate health of the storage client.
type HealthStatus struct {
	Status string                  `json:"status"`
	Checks map[string]*CheckResult `json:"checks"`
}

// CheckResult reports the outcome of a single named health check.
type CheckResult struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message"`
}

// Pingable is implemented by anything the health checker can probe, notably
// the KV store adapter (kvstore.Store).
type Pingable interface {
	Ping(ctx context.Context) error
}

// HealthChecker performs health checks against the underlying KV store and
// reports whether the storage client is fit to serve transactions/queries.
type HealthChecker struct {
	target Pingable
}

// NewHealthChecker creates a health checker bound to a pingable target.
func NewHealthChecker(target Pingable) *HealthChecker {
	return &HealthChecker{target: target}
}

// Check runs every registered health check and aggregates the result.
func (hc *HealthChecker) Check(ctx context.Context) (*HealthStatus, error) {
	checks := map[string]*CheckResult{}

	if hc.target != nil {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := hc.target.Ping(ctx); err != nil {
			checks["kvstore"] = &CheckResult{Healthy: false, Message: err.Error()}
		} else {
			checks["kvstore"] = &CheckResult{Healthy: true, Message: "reachable"}
		}
	} else {
		checks["kvstore"] = &CheckResult{Healthy: true, Message: "no backing store configured"}
	}

	status := "healthy"
	for _, c := range checks {
		if !c.Healthy {
			status = "unhealthy"
			break
		}
	}
	return &HealthStatus{Status: status, Checks: checks}, nil
}
