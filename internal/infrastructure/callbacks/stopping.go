package callbacks

import (
	"fmt"
	"math"

	domainTraining "github.com/blackms/gradflow/internal/domain/training"
)

// MonitorMode tells a monitoring callback which direction of a metric is an
// improvement.
type MonitorMode string

const (
	ModeMin MonitorMode = "min"
	ModeMax MonitorMode = "max"
)

// monitoredValue extracts the monitored metric from epoch-end logs. The
// fixed "loss" role reads Logs.Loss; any other name reads a numeric entry
// from Extra.
func monitoredValue(logs *domainTraining.Logs, monitor string) (float64, bool) {
	if monitor == domainTraining.DefaultLossName {
		return logs.Loss, true
	}
	raw, ok := logs.Extra[monitor]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// EarlyStopping requests a stop when a monitored metric has not improved for
// a configured number of consecutive epochs.
type EarlyStopping struct {
	BaseCallback
	monitor  string
	mode     MonitorMode
	patience int
	minDelta float64

	best    float64
	waited  int
	started bool
}

// NewEarlyStopping creates an early-stopping callback. Patience is the
// number of epochs without improvement tolerated before stopping; minDelta
// is the smallest change counted as an improvement.
func NewEarlyStopping(monitor string, mode MonitorMode, patience int, minDelta float64) *EarlyStopping {
	if monitor == "" {
		monitor = domainTraining.DefaultLossName
	}
	if mode != ModeMax {
		mode = ModeMin
	}
	if patience < 0 {
		patience = 0
	}
	return &EarlyStopping{
		monitor:  monitor,
		mode:     mode,
		patience: patience,
		minDelta: math.Abs(minDelta),
	}
}

// OnEpochEnd implements Callback.
func (e *EarlyStopping) OnEpochEnd(logs *domainTraining.Logs) (bool, error) {
	value, ok := monitoredValue(logs, e.monitor)
	if !ok {
		return false, fmt.Errorf("early stopping: metric %q absent from epoch logs", e.monitor)
	}

	if !e.started || e.improved(value) {
		e.best = value
		e.waited = 0
		e.started = true
		return false, nil
	}

	e.waited++
	return e.waited > e.patience, nil
}

func (e *EarlyStopping) improved(value float64) bool {
	if e.mode == ModeMax {
		return value > e.best+e.minDelta
	}
	return value < e.best-e.minDelta
}

// Saver persists a parameter snapshot. The checkpoint layout is the saver's
// concern, not the training core's.
type Saver func(runID string, epoch int, params []domainTraining.Parameter) error

// ModelCheckpoint invokes an opaque saver whenever the monitored metric
// improves at an epoch end.
type ModelCheckpoint struct {
	BaseCallback
	monitor string
	mode    MonitorMode
	saver   Saver

	best    float64
	started bool
	saves   int
}

// NewModelCheckpoint creates a checkpoint callback.
func NewModelCheckpoint(monitor string, mode MonitorMode, saver Saver) *ModelCheckpoint {
	if monitor == "" {
		monitor = domainTraining.DefaultLossName
	}
	if mode != ModeMax {
		mode = ModeMin
	}
	return &ModelCheckpoint{
		monitor: monitor,
		mode:    mode,
		saver:   saver,
	}
}

// OnEpochEnd implements Callback. Never requests a stop.
func (c *ModelCheckpoint) OnEpochEnd(logs *domainTraining.Logs) (bool, error) {
	value, ok := monitoredValue(logs, c.monitor)
	if !ok {
		return false, fmt.Errorf("model checkpoint: metric %q absent from epoch logs", c.monitor)
	}

	improved := !c.started ||
		(c.mode == ModeMax && value > c.best) ||
		(c.mode == ModeMin && value < c.best)
	if !improved {
		return false, nil
	}

	c.best = value
	c.started = true

	if c.saver != nil {
		if err := c.saver(c.Learner().RunID(), logs.Epoch, c.Learner().Model().Parameters()); err != nil {
			return false, fmt.Errorf("model checkpoint: save failed: %w", err)
		}
	}
	c.saves++
	return false, nil
}

// Saves reports how many snapshots have been written.
func (c *ModelCheckpoint) Saves() int { return c.saves }
