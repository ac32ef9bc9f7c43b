package callbacks

import (
	"math"

	domainTraining "github.com/blackms/gradflow/internal/domain/training"
	"github.com/blackms/gradflow/internal/shared"
)

// EventEmitter defines the interface for emitting events.
// This allows decoupling from the concrete EventBus implementation.
type EventEmitter interface {
	Emit(event shared.Event)
}

// NaNGuard watches the batch loss and requests a stop at the end of the
// epoch in which the loss first became NaN or infinite. The core loop does
// not validate numeric well-formedness itself; this callback is the
// monitoring layer for it.
type NaNGuard struct {
	BaseCallback
	bus     EventEmitter
	tripped bool
}

// NewNaNGuard creates a NaN guard. The emitter may be nil.
func NewNaNGuard(bus EventEmitter) *NaNGuard {
	return &NaNGuard{bus: bus}
}

// OnBatchEnd implements Callback.
func (g *NaNGuard) OnBatchEnd(logs *domainTraining.Logs) error {
	if g.tripped {
		return nil
	}
	if math.IsNaN(logs.Loss) || math.IsInf(logs.Loss, 0) {
		g.tripped = true
		if g.bus != nil {
			g.bus.Emit(shared.Event{
				Type:      shared.EventLossAnomaly,
				Timestamp: shared.Now(),
				Payload: map[string]interface{}{
					"runId":   g.Learner().RunID(),
					"epoch":   logs.Epoch,
					"iterCnt": logs.IterCnt,
					"loss":    logs.Loss,
				},
			})
		}
	}
	return nil
}

// OnEpochEnd implements Callback. Requests a stop once a non-finite loss
// has been observed.
func (g *NaNGuard) OnEpochEnd(logs *domainTraining.Logs) (bool, error) {
	return g.tripped, nil
}

// Tripped reports whether a non-finite loss was observed.
func (g *NaNGuard) Tripped() bool { return g.tripped }

// LossLogger accumulates the running mean batch loss of each epoch and
// publishes it into the epoch-end logs under "mean_loss".
type LossLogger struct {
	BaseCallback
	bus   EventEmitter
	sum   float64
	count int
	means []float64
}

// NewLossLogger creates a loss logger. The emitter may be nil.
func NewLossLogger(bus EventEmitter) *LossLogger {
	return &LossLogger{bus: bus}
}

// OnEpochBegin implements Callback.
func (l *LossLogger) OnEpochBegin(epoch int) error {
	l.sum = 0
	l.count = 0
	return nil
}

// OnBatchEnd implements Callback.
func (l *LossLogger) OnBatchEnd(logs *domainTraining.Logs) error {
	l.sum += logs.Loss
	l.count++
	return nil
}

// OnEpochEnd implements Callback. Never requests a stop.
func (l *LossLogger) OnEpochEnd(logs *domainTraining.Logs) (bool, error) {
	if l.count == 0 {
		return false, nil
	}

	mean := l.sum / float64(l.count)
	l.means = append(l.means, mean)

	if logs.Extra == nil {
		logs.Extra = make(map[string]interface{})
	}
	logs.Extra["mean_loss"] = mean

	if l.bus != nil {
		l.bus.Emit(shared.Event{
			Type:      shared.EventEpochCompleted,
			Timestamp: shared.Now(),
			Payload: map[string]interface{}{
				"runId":    l.Learner().RunID(),
				"epoch":    logs.Epoch,
				"meanLoss": mean,
			},
		})
	}
	return false, nil
}

// EpochMeans returns the mean loss of each completed epoch so far.
func (l *LossLogger) EpochMeans() []float64 {
	out := make([]float64, len(l.means))
	copy(out, l.means)
	return out
}
