package classifier

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/monosonet/modcore/internal/moderation/types"
)

// SignalEmitter is the narrow slice of the signal store the production
// classifier depends on. Declaring it here means the classifier package
// never imports the signals package (signals imports classifier, not the
// reverse), which avoids a package cycle.
type SignalEmitter interface {
	EmitContentSignals(ctx context.Context, req types.ClassificationRequest, result types.ClassificationResult) ([]uuid.UUID, error)
}

// noopEmitter is used when signal processing is disabled.
type noopEmitter struct{}

func (noopEmitter) EmitContentSignals(context.Context, types.ClassificationRequest, types.ClassificationResult) ([]uuid.UUID, error) {
	return nil, nil
}

// MetricsSink receives classifier observability events. Left as a small
// interface so the classifier package never imports the metrics package
// directly; the real implementation wraps prometheus collectors.
type MetricsSink interface {
	RecordCacheHit()
	RecordClassificationTime(ms int64)
	RecordClassificationResult(label types.ClassificationLabel)
	RecordMLInferenceTime(ms int64)
}

type noopMetrics struct{}

func (noopMetrics) RecordCacheHit()                                        {}
func (noopMetrics) RecordClassificationTime(int64)                         {}
func (noopMetrics) RecordClassificationResult(types.ClassificationLabel)   {}
func (noopMetrics) RecordMLInferenceTime(int64)                            {}

// ProductionClassifier orchestrates language detection, model inference,
// rule matching, and result fusion to produce the final
// ClassificationResult, grounded on original_source's ProductionClassifier
// (core/classifier.rs).
type ProductionClassifier struct {
	config   Config
	detector *Detector
	models   *ModelManager
	rules    *RuleClassifier
	cache    *ResultCache
	signals  SignalEmitter
	metrics  MetricsSink
}

// New builds a ProductionClassifier. signals and metrics may be nil, in
// which case no-op implementations are used.
func New(config Config, detector *Detector, models *ModelManager, rules *RuleClassifier, cache *ResultCache, signals SignalEmitter, metrics MetricsSink) *ProductionClassifier {
	if signals == nil {
		signals = noopEmitter{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &ProductionClassifier{
		config:   config,
		detector: detector,
		models:   models,
		rules:    rules,
		cache:    cache,
		signals:  signals,
		metrics:  metrics,
	}
}

func (c *ProductionClassifier) detectLanguage(ctx context.Context, text, hint string) (language string, detected string) {
	if hint != "" && c.detector.IsSupported(hint) {
		return hint, ""
	}
	lang := c.detector.Detect(ctx, text)
	return lang, lang
}

func (c *ProductionClassifier) predictML(ctx context.Context, text, language string) (types.ClassificationLabel, float64) {
	if !c.config.EnableMLInference {
		return types.LabelClean, 0.5
	}
	if c.config.MLInferenceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.MLInferenceTimeout)
		defer cancel()
	}
	start := time.Now()
	label, confidence, err := c.models.Predict(ctx, text, language)
	c.metrics.RecordMLInferenceTime(time.Since(start).Milliseconds())
	if err != nil {
		return types.LabelClean, 0.5
	}
	return label, confidence
}

func (c *ProductionClassifier) predictRules(text string) RuleResult {
	if !c.config.EnableRuleBased {
		return RuleResult{Label: types.LabelClean, Confidence: 0.5}
	}
	return c.rules.Classify(text)
}

// Classify runs the single-item classification algorithm: cache check,
// language detection, ML inference, rule matching, fusion, signal
// emission, cache insert.
func (c *ProductionClassifier) Classify(ctx context.Context, req types.ClassificationRequest) (types.ClassificationResult, error) {
	start := time.Now()

	if c.config.CacheResults && c.cache != nil {
		if cached, ok := c.cache.Get(req.ContentID); ok {
			c.metrics.RecordCacheHit()
			cached.CacheHit = true
			return cached, nil
		}
	}

	if strings.TrimSpace(req.Text) == "" {
		result := types.ClassificationResult{
			ID:               uuid.New(),
			ContentID:        req.ContentID,
			UserID:           req.UserID,
			Label:            types.LabelClean,
			Confidence:       0.1,
			Language:         c.config.DefaultLanguage,
			ProcessingTimeMs: uint64(time.Since(start).Milliseconds()),
			ModelVersion:     c.config.ModelVersion,
			Metadata:         req.Context,
			Timestamp:        time.Now(),
		}
		if c.config.CacheResults && c.cache != nil {
			c.cache.Put(result)
		}
		return result, nil
	}

	language, detected := c.detectLanguage(ctx, req.Text, req.LanguageHint)

	mlLabel, mlConfidence := c.predictML(ctx, req.Text, language)
	ruleResult := c.predictRules(req.Text)

	var finalLabel types.ClassificationLabel
	var finalConfidence float64

	switch {
	case mlConfidence > c.config.MinConfidenceThreshold:
		finalLabel, finalConfidence = mlLabel, mlConfidence
	case c.config.EnableRuleBased || c.config.EnableMLInference:
		finalLabel, finalConfidence = ruleResult.Label, ruleResult.Confidence
	default:
		return types.ClassificationResult{}, types.NewError(types.KindClassifierUnavailable, "both ML and rule-based paths disabled")
	}

	if finalConfidence < 0.1 {
		finalConfidence = 0.1
	}

	var detectedPtr string
	if req.LanguageHint == "" {
		detectedPtr = detected
	}

	result := types.ClassificationResult{
		ID:               uuid.New(),
		ContentID:        req.ContentID,
		UserID:           req.UserID,
		Label:            finalLabel,
		Confidence:        finalConfidence,
		Language:         language,
		DetectedLanguage: detectedPtr,
		ProcessingTimeMs: uint64(time.Since(start).Milliseconds()),
		ModelVersion:     c.config.ModelVersion,
		Metadata:         req.Context,
		Timestamp:        time.Now(),
	}

	if c.config.EnableSignalProcessing {
		signalIDs, err := c.signals.EmitContentSignals(ctx, req, result)
		if err == nil {
			result.Signals = signalIDs
		}
	}

	if c.config.CacheResults && c.cache != nil {
		c.cache.Put(result)
	}

	c.metrics.RecordClassificationTime(int64(result.ProcessingTimeMs))
	c.metrics.RecordClassificationResult(result.Label)

	return result, nil
}

// ClassifyBatch classifies a batch, preserving input index order in its
// output and failing fast on the first error when batch_processing is
// enabled; otherwise it classifies one-by-one, also stopping at the
// first error.
func (c *ProductionClassifier) ClassifyBatch(ctx context.Context, requests []types.ClassificationRequest) ([]types.ClassificationResult, error) {
	if !c.config.BatchProcessing {
		results := make([]types.ClassificationResult, 0, len(requests))
		for _, req := range requests {
			result, err := c.Classify(ctx, req)
			if err != nil {
				return nil, err
			}
			results = append(results, result)
		}
		return results, nil
	}

	batchSize := c.config.BatchSize
	if batchSize <= 0 {
		batchSize = 32
	}

	results := make([]types.ClassificationResult, len(requests))
	for start := 0; start < len(requests); start += batchSize {
		end := start + batchSize
		if end > len(requests) {
			end = len(requests)
		}

		type outcome struct {
			idx    int
			result types.ClassificationResult
			err    error
		}
		chunkResults := make([]outcome, end-start)
		done := make(chan struct{}, end-start)
		for i := start; i < end; i++ {
			i := i
			go func() {
				result, err := c.Classify(ctx, requests[i])
				chunkResults[i-start] = outcome{idx: i, result: result, err: err}
				done <- struct{}{}
			}()
		}
		for range chunkResults {
			<-done
		}

		for _, o := range chunkResults {
			if o.err != nil {
				return nil, o.err
			}
			results[o.idx] = o.result
		}
	}

	return results, nil
}

// GetModelInfo exposes the active model's metadata.
func (c *ProductionClassifier) GetModelInfo(ctx context.Context) (ModelInfo, error) {
	return c.models.GetModelInfo(ctx)
}
