package signals

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/monosonet/modcore/internal/moderation/classifier"
	"github.com/monosonet/modcore/internal/moderation/types"
)

// mpscQueueSize bounds the signal processing queue at 1000 entries;
// producers suspend once it fills.
const mpscQueueSize = 1000

// StoreConfig tunes Store's limits and background loop intervals.
type StoreConfig struct {
	MaxSignals             int
	SignalTTL               time.Duration
	MaxPipelineWorkers      int
	CleanupInterval         time.Duration
	EnableRealTimeProcessing bool
}

// DefaultStoreConfig mirrors original_source's SignalProcessorConfig
// defaults (max_signals 10000, 24h TTL, 8 pipeline workers, hourly sweep).
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		MaxSignals:               10000,
		SignalTTL:                24 * time.Hour,
		MaxPipelineWorkers:       8,
		CleanupInterval:          time.Hour,
		EnableRealTimeProcessing: true,
	}
}

// MetricsSink receives signal-store observability events.
type MetricsSink interface {
	RecordSignalReceived(signal types.Signal)
	RecordSignalProcessed(signal types.Signal)
	RecordPipelineExecution(result types.PipelineResult)
	RecordRuleActions(signal types.Signal, actions []types.SignalAction)
	RecordSweep(removed int, remaining int)
}

type noopMetrics struct{}

func (noopMetrics) RecordSignalReceived(types.Signal)                    {}
func (noopMetrics) RecordSignalProcessed(types.Signal)                   {}
func (noopMetrics) RecordPipelineExecution(types.PipelineResult)         {}
func (noopMetrics) RecordRuleActions(types.Signal, []types.SignalAction) {}
func (noopMetrics) RecordSweep(int, int)                                 {}

// Store is a TTL-bounded keyed store of Signal events, backed by a
// bounded MPSC queue feeding a single processing-loop consumer that runs
// rule matching then pipeline execution and publishes onto the fan-out
// bus. Store exclusively owns the signal map and its sweeper task.
type Store struct {
	mu      sync.RWMutex
	signals map[uuid.UUID]types.Signal

	queue  chan types.Signal
	bus    *ResultBus
	rules  *RuleEngine
	runner *PipelineRunner

	config  StoreConfig
	metrics MetricsSink

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewStore builds a Store. rules/runner may be constructed by the caller
// so pipeline stage registrations can happen before Start.
func NewStore(config StoreConfig, rules *RuleEngine, runner *PipelineRunner, metrics MetricsSink) *Store {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Store{
		signals: make(map[uuid.UUID]types.Signal),
		queue:   make(chan types.Signal, mpscQueueSize),
		bus:     NewResultBus(),
		rules:   rules,
		runner:  runner,
		config:  config,
		metrics: metrics,
		stopCh:  make(chan struct{}),
	}
}

// Start launches the processing loop and sweeper goroutines. ctx
// cancellation stops both.
func (s *Store) Start(ctx context.Context) {
	go s.processingLoop(ctx)
	go s.sweepLoop(ctx)
}

// Stop signals background loops to exit via ctx in Start; Stop additionally
// closes stopCh for callers not using a cancellable ctx.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// AddSignal inserts signal into the map and enqueues it for processing.
// If the queue is full, the call blocks until a slot frees or ctx is
// cancelled.
func (s *Store) AddSignal(ctx context.Context, signal types.Signal) error {
	s.mu.Lock()
	s.signals[signal.ID] = signal
	s.mu.Unlock()

	s.metrics.RecordSignalReceived(signal)

	select {
	case s.queue <- signal:
		return nil
	case <-ctx.Done():
		return types.Wrap(types.KindStoreUnavailable, "signal queue enqueue cancelled", ctx.Err())
	}
}

// Get returns a non-expired signal by id.
func (s *Store) Get(id uuid.UUID) (types.Signal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	signal, ok := s.signals[id]
	if !ok || signal.Expired(time.Now()) {
		return types.Signal{}, false
	}
	return signal, true
}

// List returns every non-expired signal matching filter.
func (s *Store) List(filter types.SignalFilter) []types.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	out := make([]types.Signal, 0)
	for _, signal := range s.signals {
		if signal.Expired(now) {
			continue
		}
		if filter.Matches(signal) {
			out = append(out, signal)
		}
	}
	return out
}

// SignalsForUser implements WindowSignalSource for the SignalAggregator
// pipeline stage.
func (s *Store) SignalsForUser(userID string) []types.Signal {
	return s.List(types.SignalFilter{UserID: userID})
}

// Subscribe returns a new receiver on the pipeline-result fan-out bus.
func (s *Store) Subscribe() Subscription {
	return s.bus.Subscribe()
}

// Unsubscribe releases a subscription obtained from Subscribe.
func (s *Store) Unsubscribe(id uint64) {
	s.bus.Unsubscribe(id)
}

// AddRule registers a SignalRule with the embedded rule engine.
func (s *Store) AddRule(rule types.SignalRule) {
	s.rules.AddRule(rule)
}

// AddPipeline registers a SignalPipeline with the embedded runner.
func (s *Store) AddPipeline(pipeline types.SignalPipeline) {
	s.runner.AddPipeline(pipeline)
}

// EmitContentSignals implements classifier.SignalEmitter: it derives
// HighConfidenceViolation and ContentSpam signals from a classification
// result, adds them, and returns their ids in the order emitted.
func (s *Store) EmitContentSignals(ctx context.Context, req types.ClassificationRequest, result types.ClassificationResult) ([]uuid.UUID, error) {
	var ids []uuid.UUID

	if result.Confidence > 0.8 {
		expires := time.Now().Add(24 * time.Hour)
		signal := types.Signal{
			ID:         uuid.New(),
			SignalType: types.SignalHighConfidenceViolation,
			Source:     "ml_classifier",
			ContentID:  req.ContentID,
			UserID:     req.UserID,
			Severity:   result.Label.Severity(),
			Confidence: result.Confidence,
			Metadata:   req.Context,
			Timestamp:  time.Now(),
			ExpiresAt:  &expires,
		}
		if err := s.AddSignal(ctx, signal); err != nil {
			return ids, err
		}
		ids = append(ids, signal.ID)
	}

	if result.Label == types.LabelSpam {
		expires := time.Now().Add(12 * time.Hour)
		signal := types.Signal{
			ID:         uuid.New(),
			SignalType: types.SignalContentSpam,
			Source:     "rule_engine",
			ContentID:  req.ContentID,
			UserID:     req.UserID,
			Severity:   types.SeverityMedium,
			Confidence: result.Confidence,
			Timestamp:  time.Now(),
			ExpiresAt:  &expires,
		}
		if err := s.AddSignal(ctx, signal); err != nil {
			return ids, err
		}
		ids = append(ids, signal.ID)
	}

	return ids, nil
}

// processingLoop is the single-consumer loop over the MPSC queue:
// evaluate rules, publish any matched actions, run admitting pipelines,
// publish each PipelineResult, record processed metric.
func (s *Store) processingLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case signal := <-s.queue:
			if actions := s.rules.Evaluate(signal); len(actions) > 0 {
				s.metrics.RecordRuleActions(signal, actions)
				s.bus.Publish(types.PipelineResult{
					PipelineID: "rule-engine",
					SignalID:   signal.ID.String(),
					FinalDecision: &types.ModerationDecision{
						Decision:     types.DecisionFlag,
						Confidence:   signal.Confidence,
						ActionsTaken: actions,
					},
					Timestamp: time.Now(),
				})
			}

			for _, pipeline := range s.runner.Pipelines() {
				if !pipeline.Enabled {
					continue
				}
				result := s.runner.Run(ctx, signal, pipeline)
				s.bus.Publish(result)
				s.metrics.RecordPipelineExecution(result)
			}

			s.metrics.RecordSignalProcessed(signal)
		}
	}
}

// sweepLoop periodically removes expired signals. The write lock is held
// only for the retain pass itself; new inserts during a sweep are simply
// serialized after it by the mutex.
func (s *Store) sweepLoop(ctx context.Context) {
	interval := s.config.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Store) sweep() {
	now := time.Now()
	s.mu.Lock()
	before := len(s.signals)
	for id, signal := range s.signals {
		if signal.Expired(now) {
			delete(s.signals, id)
		}
	}
	remaining := len(s.signals)
	s.mu.Unlock()

	s.metrics.RecordSweep(before-remaining, remaining)
}

// Len reports the number of stored signals including not-yet-swept
// expired ones, for metrics.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.signals)
}

var _ classifier.SignalEmitter = (*Store)(nil)
