// Package gradflow provides the public API for gradflow.
//
// This package provides a high-level interface for running callback-driven
// training loops, mining metric learning samples, and persisting training
// history.
//
// Example:
//
//	learner := gradflow.NewLearner(model, criterion, optimizer, data, gradflow.DefaultConfig())
//
//	summary, err := learner.Train(ctx, 10,
//	    gradflow.NewLossLogger(nil),
//	    gradflow.NewNaNGuard(nil),
//	    gradflow.NewEarlyStopping("", gradflow.ModeMin, 3, 0),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(summary.RunID, summary.FinalLoss)
package gradflow

import (
	"context"

	domainMining "github.com/blackms/gradflow/internal/domain/mining"
	domainTraining "github.com/blackms/gradflow/internal/domain/training"
	"github.com/blackms/gradflow/internal/infrastructure/callbacks"
	"github.com/blackms/gradflow/internal/infrastructure/events"
	"github.com/blackms/gradflow/internal/infrastructure/history"
	"github.com/blackms/gradflow/internal/infrastructure/mining"
	"github.com/blackms/gradflow/internal/infrastructure/training"
	"github.com/blackms/gradflow/internal/shared"
)

// Re-export types for public API
type (
	// Shared kernel types
	Tensor     = shared.Tensor
	Event      = shared.Event
	EventType  = shared.EventType
	RunState   = shared.RunState
	StopReason = shared.StopReason
	RunSummary = shared.RunSummary

	// Training domain types
	Batch           = domainTraining.Batch
	Outputs         = domainTraining.Outputs
	Losses          = domainTraining.Losses
	Logs            = domainTraining.Logs
	Parameter       = domainTraining.Parameter
	Model           = domainTraining.Model
	Criterion       = domainTraining.Criterion
	Optimizer       = domainTraining.Optimizer
	DataSource      = domainTraining.DataSource
	SliceDataSource = domainTraining.SliceDataSource
	Config          = domainTraining.Config

	// Callback types
	Callback     = callbacks.Callback
	BaseCallback = callbacks.BaseCallback
	Handler      = callbacks.Handler
	Timescale    = callbacks.Timescale
	MonitorMode  = callbacks.MonitorMode
	Saver        = callbacks.Saver

	// Built-in callbacks
	WeightRegularization      = callbacks.WeightRegularization
	ActivationRegularization  = callbacks.ActivationRegularization
	StochasticWeightAveraging = callbacks.StochasticWeightAveraging
	NaNGuard                  = callbacks.NaNGuard
	LossLogger                = callbacks.LossLogger
	EarlyStopping             = callbacks.EarlyStopping
	ModelCheckpoint           = callbacks.ModelCheckpoint
	History                   = callbacks.History

	// Mining types
	Pair             = domainMining.Pair
	Triplet          = domainMining.Triplet
	MiningStrategy   = domainMining.Strategy
	PairSelector     = mining.PairSelector
	TripletSelector  = mining.TripletSelector
	PairSelection    = mining.PairSelection
	TripletSelection = mining.TripletSelection
	AllPairs         = mining.AllPairs
	AllTriplets      = mining.AllTriplets
	BatchHard        = mining.BatchHard

	// History types
	HistoryStore   = history.Store
	HistoryRecord  = history.Record
	SQLiteConfig   = history.SQLiteConfig
	PostgresConfig = history.PostgresConfig

	// Event bus types
	EventBus = events.EventBus
	Learner  = training.Learner
)

// Re-export constants
const (
	RunStateNotStarted = shared.RunStateNotStarted
	RunStateRunning    = shared.RunStateRunning
	RunStateStopped    = shared.RunStateStopped
	RunStateFinished   = shared.RunStateFinished

	StopReasonExhausted = shared.StopReasonExhausted
	StopReasonRequested = shared.StopReasonRequested
	StopReasonCanceled  = shared.StopReasonCanceled
	StopReasonError     = shared.StopReasonError

	EventTrainStarted   = shared.EventTrainStarted
	EventTrainCompleted = shared.EventTrainCompleted
	EventTrainStopped   = shared.EventTrainStopped
	EventTrainFailed    = shared.EventTrainFailed
	EventEpochStarted   = shared.EventEpochStarted
	EventEpochCompleted = shared.EventEpochCompleted
	EventBatchCompleted = shared.EventBatchCompleted
	EventLossAnomaly    = shared.EventLossAnomaly

	TimescaleEpoch = callbacks.TimescaleEpoch
	TimescaleIter  = callbacks.TimescaleIter

	ModeMin = callbacks.ModeMin
	ModeMax = callbacks.ModeMax

	StrategyAllPairs    = domainMining.StrategyAllPairs
	StrategyAllTriplets = domainMining.StrategyAllTriplets
	StrategyBatchHard   = domainMining.StrategyBatchHard

	DefaultLossName   = domainTraining.DefaultLossName
	DefaultOutputName = domainTraining.DefaultOutputName
)

// Re-export sentinel errors
var (
	ErrMissingLossKey   = shared.ErrMissingLossKey
	ErrMissingOutputKey = shared.ErrMissingOutputKey
	ErrShapeMismatch    = shared.ErrShapeMismatch
	ErrRunInProgress    = shared.ErrRunInProgress
	ErrRunNotFound      = history.ErrRunNotFound
)

// NewTensor creates a zero tensor with the given shape.
func NewTensor(rows, cols int) *Tensor {
	return shared.NewTensor(rows, cols)
}

// TensorFromRows builds a tensor from equal-length rows; nil for ragged or
// empty input.
func TensorFromRows(rows [][]float64) *Tensor {
	return shared.TensorFromRows(rows)
}

// DefaultConfig returns the default training configuration.
func DefaultConfig() Config {
	return domainTraining.DefaultConfig()
}

// NewLearner creates a training loop over the given collaborators.
func NewLearner(model Model, criterion Criterion, optimizer Optimizer, data DataSource, config Config) *Learner {
	return training.NewLearner(model, criterion, optimizer, data, config)
}

// NewEventBus creates an event bus for training lifecycle events.
func NewEventBus(opts ...events.Option) *EventBus {
	return events.New(opts...)
}

// WithBufferSize sets the subscriber channel buffer size of an event bus.
func WithBufferSize(size int) events.Option {
	return events.WithBufferSize(size)
}

// Callback constructors.

// NewLossLogger creates a per-epoch mean loss logger. The emitter may be nil.
func NewLossLogger(bus callbacks.EventEmitter) *LossLogger {
	return callbacks.NewLossLogger(bus)
}

// NewNaNGuard creates a non-finite loss guard. The emitter may be nil.
func NewNaNGuard(bus callbacks.EventEmitter) *NaNGuard {
	return callbacks.NewNaNGuard(bus)
}

// NewEarlyStopping creates an early-stopping callback on the given metric.
func NewEarlyStopping(monitor string, mode MonitorMode, patience int, minDelta float64) *EarlyStopping {
	return callbacks.NewEarlyStopping(monitor, mode, patience, minDelta)
}

// NewModelCheckpoint creates a checkpoint callback with an opaque saver.
func NewModelCheckpoint(monitor string, mode MonitorMode, saver Saver) *ModelCheckpoint {
	return callbacks.NewModelCheckpoint(monitor, mode, saver)
}

// NewStochasticWeightAveraging creates a weight averaging callback seeded
// from the model's current parameters.
func NewStochasticWeightAveraging(model Model, averageAfter, updateEvery int, timescale Timescale) *StochasticWeightAveraging {
	return callbacks.NewStochasticWeightAveraging(model, averageAfter, updateEvery, timescale)
}

// NewL1WeightRegularization penalizes the absolute sum of all weights.
func NewL1WeightRegularization(lambda float64, lossName string) *WeightRegularization {
	return callbacks.NewL1WeightRegularization(lambda, lossName)
}

// NewL2WeightRegularization penalizes the squared sum of all weights.
func NewL2WeightRegularization(lambda float64, lossName string) *WeightRegularization {
	return callbacks.NewL2WeightRegularization(lambda, lossName)
}

// NewWeightElimination applies the soft parameter-count penalty.
func NewWeightElimination(scale, lambda float64, lossName string) *WeightRegularization {
	return callbacks.NewWeightElimination(scale, lambda, lossName)
}

// NewL1ActivationRegularization penalizes the absolute sum of an output.
func NewL1ActivationRegularization(outputName string, lambda float64, lossName string) *ActivationRegularization {
	return callbacks.NewL1ActivationRegularization(outputName, lambda, lossName)
}

// NewL2ActivationRegularization penalizes the squared sum of an output.
func NewL2ActivationRegularization(outputName string, lambda float64, lossName string) *ActivationRegularization {
	return callbacks.NewL2ActivationRegularization(outputName, lambda, lossName)
}

// NewStudentTActivationRegularization applies the Student's T penalty to an
// output.
func NewStudentTActivationRegularization(outputName string, lambda float64, lossName string) *ActivationRegularization {
	return callbacks.NewStudentTActivationRegularization(outputName, lambda, lossName)
}

// NewHistoryCallback creates a callback persisting one record per epoch.
func NewHistoryCallback(store HistoryStore) *History {
	return callbacks.NewHistory(store)
}

// Mining constructors and helpers.

// NewAllPairs enumerates every unordered pair of a batch.
func NewAllPairs() *AllPairs { return mining.NewAllPairs() }

// NewAllTriplets enumerates every valid triplet of a batch.
func NewAllTriplets() *AllTriplets { return mining.NewAllTriplets() }

// NewBatchHard mines the hardest positive and negative per anchor.
func NewBatchHard() *BatchHard { return mining.NewBatchHard() }

// PairwiseDistances computes the pairwise Euclidean distance matrix of the
// embedding rows.
func PairwiseDistances(emb *Tensor, squared bool) *Tensor {
	return mining.PairwiseDistances(emb, squared)
}

// SelectPairs runs a pair selector and gathers embedding rows.
func SelectPairs(s PairSelector, emb *Tensor, labels []int) *PairSelection {
	return mining.SelectPairs(s, emb, labels)
}

// SelectTriplets runs a triplet selector and gathers embedding rows.
func SelectTriplets(s TripletSelector, emb *Tensor, labels []int) *TripletSelection {
	return mining.SelectTriplets(s, emb, labels)
}

// History store constructors.

// NewMemoryHistoryStore creates an in-memory history store.
func NewMemoryHistoryStore() HistoryStore {
	return history.NewMemoryStore()
}

// NewSQLiteHistoryStore creates a SQLite-backed history store.
func NewSQLiteHistoryStore(config SQLiteConfig) (HistoryStore, error) {
	return history.NewSQLiteStore(config)
}

// NewPostgresHistoryStore creates a PostgreSQL-backed history store and
// verifies the connection.
func NewPostgresHistoryStore(ctx context.Context, config PostgresConfig) (HistoryStore, error) {
	return history.NewPostgresStore(ctx, config)
}

// DefaultSQLiteConfig returns sensible defaults for the SQLite store.
func DefaultSQLiteConfig() SQLiteConfig {
	return history.DefaultSQLiteConfig()
}
