// Package training implements the training-loop learner that drives epochs
// and batches through the callback handler.
package training

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	domainTraining "github.com/blackms/gradflow/internal/domain/training"
	"github.com/blackms/gradflow/internal/infrastructure/callbacks"
	"github.com/blackms/gradflow/internal/shared"
)

// EventEmitter defines the interface for emitting events.
// This allows decoupling from the concrete EventBus implementation.
type EventEmitter interface {
	Emit(event shared.Event)
}

// Learner drives the training loop. Per batch it threads the payload through
// the callback handler, invokes the opaque loss computation, and gates the
// backward pass, the optimizer step, and gradient clearing behind control
// dispatch. Execution is single-threaded and synchronous: every dispatch
// completes before the loop proceeds.
type Learner struct {
	mu        sync.RWMutex
	runID     string
	model     domainTraining.Model
	criterion domainTraining.Criterion
	optimizer domainTraining.Optimizer
	data      domainTraining.DataSource
	config    domainTraining.Config
	eventBus  EventEmitter

	state   shared.RunState
	iterCnt int
}

// NewLearner creates a learner over the given collaborators.
func NewLearner(
	model domainTraining.Model,
	criterion domainTraining.Criterion,
	optimizer domainTraining.Optimizer,
	data domainTraining.DataSource,
	config domainTraining.Config,
) *Learner {
	if config.LossName == "" {
		config.LossName = domainTraining.DefaultLossName
	}
	return &Learner{
		model:     model,
		criterion: criterion,
		optimizer: optimizer,
		data:      data,
		config:    config,
		state:     shared.RunStateNotStarted,
	}
}

// SetEventBus sets the event bus for emitting lifecycle events.
func (l *Learner) SetEventBus(eventBus EventEmitter) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.eventBus = eventBus
}

// RunID implements callbacks.Learner.
func (l *Learner) RunID() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.runID
}

// Model implements callbacks.Learner.
func (l *Learner) Model() domainTraining.Model { return l.model }

// Optimizer implements callbacks.Learner.
func (l *Learner) Optimizer() domainTraining.Optimizer { return l.optimizer }

// Config implements callbacks.Learner.
func (l *Learner) Config() domainTraining.Config { return l.config }

// State returns the learner's lifecycle state.
func (l *Learner) State() shared.RunState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IterCnt returns the global batch counter of the current run.
func (l *Learner) IterCnt() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.iterCnt
}

// Train runs up to epochs epochs (config.Epochs when epochs <= 0) with the
// given callbacks. The train-begin and train-end hooks bracket the run
// exactly once each; an epoch-end stop signal skips remaining epochs.
// A callback or collaborator failure aborts the run immediately with the
// underlying error; no train-end hook fires on the failure path.
func (l *Learner) Train(ctx context.Context, epochs int, cbs ...callbacks.Callback) (*shared.RunSummary, error) {
	l.mu.Lock()
	if l.state == shared.RunStateRunning {
		l.mu.Unlock()
		return nil, shared.ErrRunInProgress
	}
	if epochs <= 0 {
		epochs = l.config.Epochs
	}
	l.runID = uuid.NewString()
	l.state = shared.RunStateRunning
	l.iterCnt = 0
	runID := l.runID
	l.mu.Unlock()

	handler := callbacks.NewHandler(l, cbs...)
	started := time.Now()
	l.emit(shared.EventTrainStarted, map[string]interface{}{
		"runId":  runID,
		"epochs": epochs,
	})

	summary, err := l.run(ctx, epochs, handler)
	if err != nil {
		l.setState(shared.RunStateStopped)
		l.emit(shared.EventTrainFailed, map[string]interface{}{
			"runId": runID,
			"error": err.Error(),
		})
		return nil, err
	}

	summary.RunID = runID
	summary.DurationMs = time.Since(started).Milliseconds()

	eventType := shared.EventTrainCompleted
	if summary.Reason == shared.StopReasonRequested || summary.Reason == shared.StopReasonCanceled {
		eventType = shared.EventTrainStopped
	}
	l.emit(eventType, map[string]interface{}{
		"runId":      runID,
		"epochs":     summary.Epochs,
		"iterations": summary.Iterations,
		"reason":     string(summary.Reason),
	})

	return summary, nil
}

func (l *Learner) run(ctx context.Context, epochs int, handler *callbacks.Handler) (*shared.RunSummary, error) {
	if err := handler.OnTrainBegin(); err != nil {
		return nil, err
	}

	summary := &shared.RunSummary{Reason: shared.StopReasonExhausted}
	lastLoss := 0.0

	for epoch := 0; epoch < epochs; epoch++ {
		// The only cancellation points are epoch boundaries; there is no
		// mid-batch cancellation.
		if err := ctx.Err(); err != nil {
			summary.Reason = shared.StopReasonCanceled
			break
		}

		if err := handler.OnEpochBegin(epoch); err != nil {
			return nil, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		l.emit(shared.EventEpochStarted, map[string]interface{}{
			"runId": l.RunID(),
			"epoch": epoch,
		})

		for _, batch := range l.data.Batches() {
			loss, err := l.learnOneBatch(handler, batch, epoch)
			if err != nil {
				return nil, fmt.Errorf("epoch %d: %w", epoch, err)
			}
			lastLoss = loss
		}
		summary.Epochs = epoch + 1

		logs := &domainTraining.Logs{
			Epoch:   epoch,
			IterCnt: l.IterCnt(),
			Loss:    lastLoss,
		}
		stop, err := handler.OnEpochEnd(logs)
		if err != nil {
			return nil, fmt.Errorf("epoch %d: %w", epoch, err)
		}
		if stop {
			summary.Reason = shared.StopReasonRequested
			break
		}
	}

	l.setState(shared.RunStateStopped)
	if err := handler.OnTrainEnd(); err != nil {
		return nil, err
	}
	l.setState(shared.RunStateFinished)

	summary.Iterations = l.IterCnt()
	summary.FinalLoss = lastLoss
	return summary, nil
}

// learnOneBatch performs one iteration: transform the batch, compute the
// loss, then run the gated backward / step / zero-grad sequence. The
// batch-end hook always fires with at least the scalar loss, regardless of
// gate outcomes.
func (l *Learner) learnOneBatch(handler *callbacks.Handler, batch *domainTraining.Batch, epoch int) (float64, error) {
	batch, err := handler.OnBatchBegin(batch, true)
	if err != nil {
		return 0, err
	}

	loss, err := l.computeLoss(handler, batch, true)
	if err != nil {
		return 0, err
	}

	backward, err := handler.OnBackwardBegin()
	if err != nil {
		return 0, err
	}
	if backward {
		l.optimizer.Backward(loss)
	}

	step, err := handler.AfterBackward()
	if err != nil {
		return 0, err
	}
	if step {
		l.optimizer.Step()

		zero, err := handler.AfterStep()
		if err != nil {
			return 0, err
		}
		if zero {
			l.optimizer.ZeroGrad()
		}
	}

	l.mu.Lock()
	l.iterCnt++
	iterCnt := l.iterCnt
	l.mu.Unlock()

	logs := &domainTraining.Logs{
		Epoch:   epoch,
		IterCnt: iterCnt,
		Loss:    loss,
	}
	if l.config.TrackMemory {
		var stats runtime.MemStats
		runtime.ReadMemStats(&stats)
		logs.AllocatedMemory = int64(stats.HeapAlloc)
	}

	if err := handler.OnBatchEnd(logs); err != nil {
		return 0, err
	}
	l.emit(shared.EventBatchCompleted, map[string]interface{}{
		"runId":   l.RunID(),
		"epoch":   epoch,
		"iterCnt": iterCnt,
		"loss":    loss,
	})

	return loss, nil
}

// computeLoss runs the forward pass and the criterion, dispatching the
// after-outputs and after-losses hooks in between, as the opaque loss
// computation contract requires.
func (l *Learner) computeLoss(handler *callbacks.Handler, batch *domainTraining.Batch, train bool) (float64, error) {
	outputs := &domainTraining.Outputs{Output: l.model.Forward(batch.Inputs)}

	outputs, err := handler.AfterOutputs(outputs, train)
	if err != nil {
		return 0, err
	}

	losses := domainTraining.NewLosses(l.config.LossName, l.criterion(outputs.Output, batch.Labels))
	losses, err = handler.AfterLosses(losses, train)
	if err != nil {
		return 0, err
	}

	loss, ok := losses.Get(l.config.LossName)
	if !ok {
		return 0, fmt.Errorf("%w: %q missing after after_losses dispatch", shared.ErrMissingLossKey, l.config.LossName)
	}
	return loss, nil
}

func (l *Learner) setState(state shared.RunState) {
	l.mu.Lock()
	l.state = state
	l.mu.Unlock()
}

func (l *Learner) emit(eventType shared.EventType, payload map[string]interface{}) {
	l.mu.RLock()
	bus := l.eventBus
	l.mu.RUnlock()

	if bus != nil {
		bus.Emit(shared.Event{
			Type:      eventType,
			Timestamp: shared.Now(),
			Payload:   payload,
		})
	}
}
