package classifier

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/monosonet/modcore/internal/moderation/types"
)

// ModelInfo describes a loaded inference model.
type ModelInfo struct {
	ID                 string
	Name               string
	Version            string
	SupportedLanguages []string
	ModelType          string
	Checksum           string
}

// Model is the polymorphic inference capability set the manager dispatches
// through. Concrete models (ONNX runtimes, remote inference services, the
// deterministic stub used in tests) all satisfy this interface; the
// manager never depends on a concrete implementation.
type Model interface {
	Info() ModelInfo
	Predict(ctx context.Context, text, language string) (types.ClassificationLabel, float64, error)
	IsHealthy(ctx context.Context) bool
}

// ModelManager is a registry of loaded models, an atomically swappable
// "active" model id, a concurrency semaphore, and an LRU result cache.
type ModelManager struct {
	mu       sync.RWMutex
	registry map[string]Model
	order    []string // stable iteration order, registration order

	active atomic.Pointer[string]

	sem   chan struct{}
	cache *lru.Cache[string, predictCacheEntry]

	healthCheckInterval time.Duration
	stopHealth          chan struct{}
	stopOnce            sync.Once

	failures atomic.Int64
}

type predictCacheEntry struct {
	label      types.ClassificationLabel
	confidence float64
}

// NewModelManager builds a manager with no registered models; Register
// must be called at least once before Predict can succeed.
func NewModelManager(maxConcurrent, cacheSize int, healthCheckInterval time.Duration) *ModelManager {
	cache, _ := lru.New[string, predictCacheEntry](cacheSize)
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &ModelManager{
		registry:            make(map[string]Model),
		sem:                 make(chan struct{}, maxConcurrent),
		cache:               cache,
		healthCheckInterval: healthCheckInterval,
		stopHealth:          make(chan struct{}),
	}
}

// Register loads a model instance into the registry. If no active model
// is set yet, the first registered model becomes active.
func (m *ModelManager) Register(model Model) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := model.Info().ID
	if _, exists := m.registry[id]; !exists {
		m.order = append(m.order, id)
	}
	m.registry[id] = model
	if m.active.Load() == nil {
		m.active.Store(&id)
	}
}

// ActiveModelID returns the id of the currently active model, or "" if
// none is registered.
func (m *ModelManager) ActiveModelID() string {
	if p := m.active.Load(); p != nil {
		return *p
	}
	return ""
}

func (m *ModelManager) activeModel() (Model, bool) {
	id := m.ActiveModelID()
	if id == "" {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	model, ok := m.registry[id]
	return model, ok
}

// StartHealthChecks runs a background loop that polls the active model's
// health every healthCheckInterval and fails over to the first healthy
// model in registration order if the active model becomes unhealthy.
func (m *ModelManager) StartHealthChecks(ctx context.Context) {
	if m.healthCheckInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(m.healthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopHealth:
				return
			case <-ticker.C:
				m.checkAndFailover(ctx)
			}
		}
	}()
}

// Stop halts the health-check loop.
func (m *ModelManager) Stop() {
	m.stopOnce.Do(func() { close(m.stopHealth) })
}

func (m *ModelManager) checkAndFailover(ctx context.Context) {
	active, ok := m.activeModel()
	if ok && active.IsHealthy(ctx) {
		return
	}

	m.mu.RLock()
	order := append([]string(nil), m.order...)
	registry := m.registry
	m.mu.RUnlock()

	for _, id := range order {
		candidate, exists := registry[id]
		if !exists {
			continue
		}
		if candidate.IsHealthy(ctx) {
			newID := id
			m.active.Store(&newID)
			return
		}
	}
}

// GetModelInfo returns the active model's metadata.
func (m *ModelManager) GetModelInfo(ctx context.Context) (ModelInfo, error) {
	model, ok := m.activeModel()
	if !ok {
		return ModelInfo{}, types.NewError(types.KindModelUnavailable, "no active model registered")
	}
	return model.Info(), nil
}

// GetModelVersion returns the active model's version string, or
// "unavailable" if none is registered.
func (m *ModelManager) GetModelVersion(ctx context.Context) string {
	model, ok := m.activeModel()
	if !ok {
		return "unavailable"
	}
	return model.Info().Version
}

// Predict runs single-item inference against the active model, bounded by
// the manager's concurrency semaphore. Its deadline is ctx's: if ctx ends
// while waiting for a slot, Predict returns KindModelUnavailable, and ctx is
// passed on to the model. ProductionClassifier gives ctx its configured ML
// inference timeout.
func (m *ModelManager) Predict(ctx context.Context, text, language string) (types.ClassificationLabel, float64, error) {
	cacheKey := language + "\x00" + text
	if m.cache != nil {
		if entry, ok := m.cache.Get(cacheKey); ok {
			return entry.label, entry.confidence, nil
		}
	}

	model, ok := m.activeModel()
	if !ok {
		return "", 0, types.NewError(types.KindModelUnavailable, "no active model registered")
	}

	select {
	case m.sem <- struct{}{}:
		defer func() { <-m.sem }()
	case <-ctx.Done():
		return "", 0, types.Wrap(types.KindModelUnavailable, "inference semaphore wait cancelled", ctx.Err())
	}

	if !model.IsHealthy(ctx) {
		m.failures.Add(1)
		return "", 0, types.NewError(types.KindModelUnavailable, fmt.Sprintf("active model %s unhealthy", model.Info().ID))
	}

	label, confidence, err := model.Predict(ctx, text, language)
	if err != nil {
		m.failures.Add(1)
		return "", 0, types.Wrap(types.KindModelUnavailable, "inference failed", err)
	}

	if m.cache != nil {
		m.cache.Add(cacheKey, predictCacheEntry{label: label, confidence: confidence})
	}
	return label, confidence, nil
}

// PredictBatch groups requests into chunks and dispatches each chunk to
// the active model, gathering results in input order. It fails fast on
// the first chunk error.
func (m *ModelManager) PredictBatch(ctx context.Context, texts []string, language string, batchSize int) ([]types.ClassificationLabel, []float64, error) {
	if batchSize <= 0 {
		batchSize = 32
	}
	labels := make([]types.ClassificationLabel, len(texts))
	confidences := make([]float64, len(texts))

	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		type outcome struct {
			idx        int
			label      types.ClassificationLabel
			confidence float64
			err        error
		}
		results := make([]outcome, end-start)
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			i := i
			wg.Add(1)
			go func() {
				defer wg.Done()
				label, confidence, err := m.Predict(ctx, texts[i], language)
				results[i-start] = outcome{idx: i, label: label, confidence: confidence, err: err}
			}()
		}
		wg.Wait()

		for _, r := range results {
			if r.err != nil {
				return nil, nil, r.err
			}
			labels[r.idx] = r.label
			confidences[r.idx] = r.confidence
		}
	}

	return labels, confidences, nil
}

// FailureCount exposes the number of inference failures observed, for
// metrics wiring.
func (m *ModelManager) FailureCount() int64 {
	return m.failures.Load()
}
