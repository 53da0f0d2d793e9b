package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the store is reachable but processing is failing.
	Degraded Status = "degraded"
	// Unhealthy indicates the store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db       DBPinger
	pipeline PipelineChecker
}

// New creates a Service. pipeline can be nil.
func New(db DBPinger, pipeline PipelineChecker) *Service {
	return &Service{db: db, pipeline: pipeline}
}

// Check runs health checks against all components.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
		status = Unhealthy
	} else {
		checks["database"] = CheckOK
	}

	if s.pipeline != nil {
		if err := s.pipeline.HealthCheck(ctx); err != nil {
			checks["pipeline"] = CheckError
			if status == Healthy {
				status = Degraded
			}
		} else {
			checks["pipeline"] = CheckOK
		}
	}

	return Report{Status: status, Checks: checks}
}
