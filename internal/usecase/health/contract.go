package health

import "context"

// DBPinger checks record store availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// PipelineChecker reports the outcome of the most recent processing cycle.
type PipelineChecker interface {
	HealthCheck(ctx context.Context) error
}
