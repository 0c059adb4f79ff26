// Package bus carries analysis commands and lifecycle events over Redis
// Streams. Commands travel through a consumer group so exactly one
// analyzer picks each up; stale deliveries are reclaimed and, once the
// delivery budget is spent, parked on a dead-letter stream.
package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Stream naming. The command stream comes from configuration; the
// dead-letter stream derives from it.
const (
	DeadLetterSuffix = ":dead"
	EventsStream     = "archlens:events"
)

// payloadField is the single stream entry field carrying the JSON body.
const payloadField = "payload"

// Event kinds published to the events stream.
const (
	EventAnalysisStarted   = "analysis.started"
	EventAnalysisCompleted = "analysis.completed"
	EventAnalysisFailed    = "analysis.failed"
)

// StartAnalysisCommand asks an analyzer to run the full pipeline for a
// project. Approved carries the operator's consent past the preflight
// approval gate.
type StartAnalysisCommand struct {
	ProjectID     string            `json:"project_id"`
	CorrelationID string            `json:"correlation_id"`
	Priority      int               `json:"priority"`
	Approved      bool              `json:"approved"`
	CreatedAt     time.Time         `json:"created_at"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// AnalysisStartedEvent is published when a job begins executing.
type AnalysisStartedEvent struct {
	ProjectID     string    `json:"project_id"`
	CorrelationID string    `json:"correlation_id"`
	StartedAt     time.Time `json:"started_at"`
}

// AnalysisCompletedEvent is published when a job finishes, successfully
// or not.
type AnalysisCompletedEvent struct {
	ProjectID     string    `json:"project_id"`
	ReportID      string    `json:"report_id,omitempty"`
	Success       bool      `json:"success"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
	CorrelationID string    `json:"correlation_id"`
	CompletedAt   time.Time `json:"completed_at"`
}

// AnalysisFailedEvent is published when a job fails permanently.
type AnalysisFailedEvent struct {
	ProjectID     string    `json:"project_id"`
	ErrorMessage  string    `json:"error_message"`
	ExceptionType string    `json:"exception_type,omitempty"`
	RetryCount    int       `json:"retry_count"`
	FailedAt      time.Time `json:"failed_at"`
	CorrelationID string    `json:"correlation_id"`
}

// encodeCommand packs a command into stream entry values.
func encodeCommand(cmd StartAnalysisCommand) (map[string]any, error) {
	data, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to encode command; %w", err)
	}
	return map[string]any{payloadField: string(data)}, nil
}

// decodeCommand unpacks a command from stream entry values.
func decodeCommand(values map[string]any) (StartAnalysisCommand, error) {
	var cmd StartAnalysisCommand
	raw, ok := values[payloadField]
	if !ok {
		return cmd, fmt.Errorf("stream entry has no %s field", payloadField)
	}
	s, ok := raw.(string)
	if !ok {
		return cmd, fmt.Errorf("stream entry %s field is %T, not string", payloadField, raw)
	}
	if err := json.Unmarshal([]byte(s), &cmd); err != nil {
		return cmd, fmt.Errorf("failed to decode command; %w", err)
	}
	if cmd.ProjectID == "" {
		return cmd, fmt.Errorf("command has no project_id")
	}
	return cmd, nil
}

// newRedisClient builds a client from the shared bus configuration.
func newRedisClient(addr, password string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
}
