package service

import "context"

// ComponentStatus represents the health state of a supervised component.
type ComponentStatus string

const (
	// StatusRunning indicates the component is operating normally.
	StatusRunning ComponentStatus = "running"

	// StatusFailed indicates the component has exited with an error.
	StatusFailed ComponentStatus = "failed"

	// StatusStopped indicates the component has been intentionally stopped.
	StatusStopped ComponentStatus = "stopped"
)

// IsHealthy returns true if the status indicates healthy operation.
func (s ComponentStatus) IsHealthy() bool {
	return s == StatusRunning
}

// RestartPolicy determines whether a component is restarted after failure.
type RestartPolicy string

const (
	// RestartNever stops supervision after the first exit. A failure of a
	// RestartNever component is reported on the supervisor's fatal channel.
	RestartNever RestartPolicy = "never"

	// RestartOnFailure restarts the component with doubling backoff until
	// its context is cancelled.
	RestartOnFailure RestartPolicy = "on_failure"
)

// Component is a long-running unit of the service managed by the Runtime.
type Component interface {
	// Name identifies the component in logs and health reports.
	Name() string

	// Start runs the component and blocks until it exits. A nil return is
	// a clean exit; an error return is a failure subject to the restart
	// policy. Start must return promptly once ctx is cancelled.
	Start(ctx context.Context) error

	// Stop releases resources after supervision has ended. It is called
	// once during shutdown, after Start has returned.
	Stop(ctx context.Context) error
}

// Func adapts bare run and cleanup functions into a Component.
type Func struct {
	ComponentName string
	StartFn       func(ctx context.Context) error
	StopFn        func(ctx context.Context) error
}

// Name returns the component name.
func (f Func) Name() string { return f.ComponentName }

// Start invokes StartFn, or blocks until ctx is cancelled when no StartFn
// is set.
func (f Func) Start(ctx context.Context) error {
	if f.StartFn == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.StartFn(ctx)
}

// Stop invokes StopFn if set.
func (f Func) Stop(ctx context.Context) error {
	if f.StopFn == nil {
		return nil
	}
	return f.StopFn(ctx)
}
