// Package monitoring evaluates liveness and readiness probes for the
// database, the notification consumer and the realtime broker.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ProbeStatus encodes the outcome of a health probe.
type ProbeStatus string

const (
	StatusUp       ProbeStatus = "up"
	StatusDown     ProbeStatus = "down"
	StatusDegraded ProbeStatus = "degraded"
)

const defaultProbeTimeout = 2 * time.Second

// ProbeResult captures a single dependency check outcome.
type ProbeResult struct {
	Component string        `json:"component"`
	Status    ProbeStatus   `json:"status"`
	Details   string        `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// HealthReport aggregates probe results. Success is false only when a
// component is down; degraded components keep the instance in rotation.
type HealthReport struct {
	Success bool          `json:"success"`
	Status  ProbeStatus   `json:"status"`
	Checks  []ProbeResult `json:"checks"`
}

// Check is a named probe.
type Check struct {
	Name string
	Run  func(ctx context.Context) ProbeResult
}

func NewCheck(name string, fn func(ctx context.Context) ProbeResult) Check {
	return Check{Name: name, Run: fn}
}

// HealthManager holds the liveness and readiness probes.
type HealthManager struct {
	timeout   time.Duration
	liveness  []Check
	readiness []Check
}

// NewHealthManager returns a manager whose probes are bounded by timeout.
// Zero selects two seconds.
func NewHealthManager(timeout time.Duration) *HealthManager {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &HealthManager{timeout: timeout}
}

func (m *HealthManager) RegisterLiveness(check Check) {
	if check.Name != "" && check.Run != nil {
		m.liveness = append(m.liveness, check)
	}
}

func (m *HealthManager) RegisterReadiness(check Check) {
	if check.Name != "" && check.Run != nil {
		m.readiness = append(m.readiness, check)
	}
}

func (m *HealthManager) EvaluateLiveness(ctx context.Context) HealthReport {
	return m.evaluate(ctx, m.liveness)
}

func (m *HealthManager) EvaluateReadiness(ctx context.Context) HealthReport {
	return m.evaluate(ctx, m.readiness)
}

func (m *HealthManager) evaluate(ctx context.Context, checks []Check) HealthReport {
	report := HealthReport{
		Success: true,
		Status:  StatusUp,
		Checks:  make([]ProbeResult, 0, len(checks)),
	}

	for _, check := range checks {
		result := m.run(ctx, check)
		report.Checks = append(report.Checks, result)

		switch result.Status {
		case StatusDown:
			report.Success = false
			report.Status = StatusDown
		case StatusDegraded:
			if report.Status == StatusUp {
				report.Status = StatusDegraded
			}
		}
	}
	return report
}

func (m *HealthManager) run(ctx context.Context, check Check) (result ProbeResult) {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			result = ProbeResult{Status: StatusDown, Details: fmt.Sprint(rec)}
		}
		if result.Status == "" {
			result.Status = StatusDown
		}
		result.Component = check.Name
		result.Duration = time.Since(start)
	}()

	return check.Run(probeCtx)
}

// ResultFromError maps err to a result. Timeouts count as degraded.
func ResultFromError(component string, err error) ProbeResult {
	if err == nil {
		return ProbeResult{Component: component, Status: StatusUp}
	}

	status := StatusDown
	if errors.Is(err, context.DeadlineExceeded) {
		status = StatusDegraded
	}
	return ProbeResult{Component: component, Status: status, Details: err.Error()}
}
