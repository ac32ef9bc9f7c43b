package callbacks

import (
	"math"
	"testing"

	domainTraining "github.com/blackms/gradflow/internal/domain/training"
	"github.com/blackms/gradflow/internal/shared"
)

// recordingEmitter collects emitted events for inspection.
type recordingEmitter struct {
	events []shared.Event
}

func (r *recordingEmitter) Emit(event shared.Event) { r.events = append(r.events, event) }

func TestNaNGuardIgnoresFiniteLosses(t *testing.T) {
	bus := &recordingEmitter{}
	guard := NewNaNGuard(bus)
	guard.Attach(&fakeLearner{runID: "run-guard"})

	for _, loss := range []float64{1.5, 0, -3} {
		if err := guard.OnBatchEnd(&domainTraining.Logs{Loss: loss}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	stop, err := guard.OnEpochEnd(&domainTraining.Logs{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stop || guard.Tripped() {
		t.Error("finite losses must not trip the guard")
	}
	if len(bus.events) != 0 {
		t.Errorf("expected no events, got %d", len(bus.events))
	}
}

func TestNaNGuardTripsOnNaN(t *testing.T) {
	bus := &recordingEmitter{}
	guard := NewNaNGuard(bus)
	guard.Attach(&fakeLearner{runID: "run-guard"})

	if err := guard.OnBatchEnd(&domainTraining.Logs{Epoch: 2, IterCnt: 7, Loss: math.NaN()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !guard.Tripped() {
		t.Fatal("NaN loss must trip the guard")
	}
	stop, err := guard.OnEpochEnd(&domainTraining.Logs{Epoch: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stop {
		t.Error("a tripped guard must request a stop at epoch end")
	}

	if len(bus.events) != 1 {
		t.Fatalf("expected one anomaly event, got %d", len(bus.events))
	}
	event := bus.events[0]
	if event.Type != shared.EventLossAnomaly {
		t.Errorf("unexpected event type %q", event.Type)
	}
	if event.Payload["runId"] != "run-guard" || event.Payload["epoch"] != 2 {
		t.Errorf("unexpected payload: %v", event.Payload)
	}
}

func TestNaNGuardEmitsOnce(t *testing.T) {
	bus := &recordingEmitter{}
	guard := NewNaNGuard(bus)
	guard.Attach(&fakeLearner{runID: "run-guard"})

	for i := 0; i < 3; i++ {
		if err := guard.OnBatchEnd(&domainTraining.Logs{IterCnt: i + 1, Loss: math.Inf(1)}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if len(bus.events) != 1 {
		t.Errorf("the anomaly event fires once per trip, got %d", len(bus.events))
	}
}

func TestNaNGuardWithoutEmitter(t *testing.T) {
	guard := NewNaNGuard(nil)
	guard.Attach(&fakeLearner{runID: "run-guard"})

	if err := guard.OnBatchEnd(&domainTraining.Logs{Loss: math.Inf(-1)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !guard.Tripped() {
		t.Error("guard must trip regardless of emitter presence")
	}
}

func TestLossLoggerEpochMeans(t *testing.T) {
	logger := NewLossLogger(nil)
	logger.Attach(&fakeLearner{runID: "run-loss"})

	batches := [][]float64{{2, 4}, {1, 2, 3}}
	for epoch, losses := range batches {
		if err := logger.OnEpochBegin(epoch); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i, loss := range losses {
			if err := logger.OnBatchEnd(&domainTraining.Logs{Epoch: epoch, IterCnt: i + 1, Loss: loss}); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		logs := &domainTraining.Logs{Epoch: epoch}
		stop, err := logger.OnEpochEnd(logs)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if stop {
			t.Fatal("loss logging must never request a stop")
		}
		if logs.Extra["mean_loss"] == nil {
			t.Fatal("expected mean_loss in epoch logs")
		}
	}

	means := logger.EpochMeans()
	if len(means) != 2 || means[0] != 3 || means[1] != 2 {
		t.Errorf("expected epoch means [3 2], got %v", means)
	}
}

func TestLossLoggerEmitsEpochEvents(t *testing.T) {
	bus := &recordingEmitter{}
	logger := NewLossLogger(bus)
	logger.Attach(&fakeLearner{runID: "run-loss"})

	if err := logger.OnEpochBegin(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := logger.OnBatchEnd(&domainTraining.Logs{Loss: 6}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := logger.OnEpochEnd(&domainTraining.Logs{Epoch: 0}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(bus.events) != 1 || bus.events[0].Type != shared.EventEpochCompleted {
		t.Fatalf("expected one epoch completed event, got %v", bus.events)
	}
	if bus.events[0].Payload["meanLoss"] != 6.0 {
		t.Errorf("unexpected payload: %v", bus.events[0].Payload)
	}
}

func TestLossLoggerEmptyEpoch(t *testing.T) {
	logger := NewLossLogger(nil)
	logger.Attach(&fakeLearner{runID: "run-loss"})

	if err := logger.OnEpochBegin(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logs := &domainTraining.Logs{Epoch: 0}
	if _, err := logger.OnEpochEnd(logs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := logs.Extra["mean_loss"]; ok {
		t.Error("an epoch with no batches has no mean loss")
	}
	if len(logger.EpochMeans()) != 0 {
		t.Errorf("expected no recorded means, got %v", logger.EpochMeans())
	}
}
