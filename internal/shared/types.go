// Package shared provides shared types used across all modules in gradflow.
package shared

import (
	"errors"
	"time"
)

// ============================================================================
// Run Types
// ============================================================================

// RunState represents the lifecycle state of a training run.
type RunState string

const (
	RunStateNotStarted RunState = "not_started"
	RunStateRunning    RunState = "running"
	RunStateStopped    RunState = "stopped"
	RunStateFinished   RunState = "finished"
)

// StopReason explains why a training run left the running state.
type StopReason string

const (
	StopReasonExhausted StopReason = "epochs_exhausted"
	StopReasonRequested StopReason = "callback_requested"
	StopReasonCanceled  StopReason = "context_canceled"
	StopReasonError     StopReason = "error"
)

// RunSummary describes a completed training run.
type RunSummary struct {
	RunID      string     `json:"runId"`
	Epochs     int        `json:"epochs"`
	Iterations int        `json:"iterations"`
	FinalLoss  float64    `json:"finalLoss"`
	Reason     StopReason `json:"reason"`
	DurationMs int64      `json:"durationMs"`
}

// ============================================================================
// Event Types
// ============================================================================

// EventType represents the type of an event.
type EventType string

const (
	EventTrainStarted   EventType = "train:started"
	EventTrainCompleted EventType = "train:completed"
	EventTrainStopped   EventType = "train:stopped"
	EventTrainFailed    EventType = "train:failed"
	EventEpochStarted   EventType = "epoch:started"
	EventEpochCompleted EventType = "epoch:completed"
	EventBatchCompleted EventType = "batch:completed"
	EventLossAnomaly    EventType = "loss:anomaly"
)

// Event represents a generic event in the system.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp int64                  `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
}

// ============================================================================
// Shared Errors
// ============================================================================

var (
	// ErrMissingLossKey indicates a callback referenced a loss entry that was
	// never produced by the criterion. This is a configuration error and
	// fails the run.
	ErrMissingLossKey = errors.New("loss key not found")

	// ErrMissingOutputKey indicates a callback referenced an output entry
	// that the model never produced.
	ErrMissingOutputKey = errors.New("output key not found")

	// ErrShapeMismatch indicates tensor dimensions that do not line up.
	ErrShapeMismatch = errors.New("tensor shape mismatch")

	// ErrRunInProgress indicates Train was called on a learner that is
	// already running.
	ErrRunInProgress = errors.New("training run already in progress")
)

// ============================================================================
// Utility Functions
// ============================================================================

// Now returns the current time in milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}
