package signals

import (
	"context"
	"sync"
	"time"

	"github.com/monosonet/modcore/internal/moderation/types"
)

// StageRunner executes one pipeline stage for a signal. Concrete
// processors (SignalAggregator, RuleEngine re-entry, ml_enhancer, ...) are
// registered against their StageProcessor kind; an unregistered kind
// (including Custom) falls back to the identity stage.
type StageRunner func(ctx context.Context, signal types.Signal, stage types.PipelineStage) (map[string]interface{}, error)

// PipelineRunner executes configured stage sequences against a signal
// and publishes the aggregated PipelineResult.
type PipelineRunner struct {
	mu        sync.RWMutex
	pipelines map[string]types.SignalPipeline
	stages    map[types.StageProcessor]StageRunner
	sem       chan struct{}
	aggregator *SignalAggregator
}

// NewPipelineRunner builds a runner bounded at maxConcurrent simultaneous
// pipeline executions: at most max_pipeline_workers pipelines run in
// parallel.
func NewPipelineRunner(maxConcurrent int, windowSignals WindowSignalSource) *PipelineRunner {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	r := &PipelineRunner{
		pipelines:  make(map[string]types.SignalPipeline),
		stages:     make(map[types.StageProcessor]StageRunner),
		sem:        make(chan struct{}, maxConcurrent),
		aggregator: NewSignalAggregator(windowSignals),
	}
	r.stages[types.StageSignalAggregator] = r.aggregator.Run
	return r
}

// SetWindowSource rewires the signal_aggregator stage to read through
// source. Lets a caller build the runner before the store that will
// supply SignalsForUser exists, then wire it in once the store is built.
func (r *PipelineRunner) SetWindowSource(source WindowSignalSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aggregator.source = source
}

// RegisterStage overrides or adds a stage processor implementation. Tests
// and deployments that want ml_enhancer/user_scorer/content_analyzer/
// notification_sender to do real work call this; unregistered kinds
// (including every Custom variant) use the identity fallback.
func (r *PipelineRunner) RegisterStage(kind types.StageProcessor, runner StageRunner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[kind] = runner
}

// AddPipeline registers or replaces a pipeline definition.
func (r *PipelineRunner) AddPipeline(pipeline types.SignalPipeline) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelines[pipeline.ID] = pipeline
}

// Pipelines returns a snapshot of configured pipelines.
func (r *PipelineRunner) Pipelines() []types.SignalPipeline {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.SignalPipeline, 0, len(r.pipelines))
	for _, p := range r.pipelines {
		out = append(out, p)
	}
	return out
}

func identityStage(ctx context.Context, signal types.Signal, stage types.PipelineStage) (map[string]interface{}, error) {
	return map[string]interface{}{"identity": true, "signal_id": signal.ID.String()}, nil
}

func (r *PipelineRunner) stageRunner(kind types.StageProcessor) StageRunner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if runner, ok := r.stages[kind]; ok {
		return runner
	}
	return identityStage
}

// Run executes the stages of pipeline sequentially against signal,
// retrying each failed stage up to its retry_count. A stage that exhausts
// its retries fails the stage and aborts the pipeline: no later stage
// runs, and the partial stageResults are what deriveDecision sees.
func (r *PipelineRunner) Run(ctx context.Context, signal types.Signal, pipeline types.SignalPipeline) types.PipelineResult {
	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-ctx.Done():
		return types.PipelineResult{
			PipelineID: pipeline.ID,
			SignalID:   signal.ID.String(),
			Timestamp:  time.Now(),
		}
	}

	start := time.Now()
	stageResults := make([]types.StageResult, 0, len(pipeline.Stages))

	for _, stage := range pipeline.Stages {
		result := r.runStage(ctx, signal, stage)
		stageResults = append(stageResults, result)
		if !result.Success {
			break
		}
	}

	decision := deriveDecision(stageResults, len(pipeline.Stages))

	return types.PipelineResult{
		PipelineID:       pipeline.ID,
		SignalID:         signal.ID.String(),
		StageResults:     stageResults,
		FinalDecision:    decision,
		ProcessingTimeMs: uint64(time.Since(start).Milliseconds()),
		Timestamp:        time.Now(),
	}
}

func (r *PipelineRunner) runStage(ctx context.Context, signal types.Signal, stage types.PipelineStage) types.StageResult {
	runner := r.stageRunner(stage.Processor)
	start := time.Now()

	timeout := time.Duration(stage.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	attempts := stage.RetryCount + 1
	var lastErr error
	var output map[string]interface{}

	for attempt := uint32(0); attempt < attempts; attempt++ {
		stageCtx, cancel := context.WithTimeout(ctx, timeout)
		out, err := runner(stageCtx, signal, stage)
		cancel()

		if err == nil {
			output = out
			lastErr = nil
			break
		}
		lastErr = err
	}

	result := types.StageResult{
		StageID:          stage.ID,
		Success:          lastErr == nil,
		Output:           output,
		ProcessingTimeMs: uint64(time.Since(start).Milliseconds()),
	}
	if lastErr != nil {
		result.Error = lastErr.Error()
	}
	return result
}

// deriveDecision builds a ModerationDecision only when at least one stage
// ran; a pipeline with no stages publishes no decision. totalStages is the
// pipeline's full stage count, so a results slice shorter than it (an
// abort after a hard stage failure) still reads as a failed run rather
// than an accidental success.
func deriveDecision(results []types.StageResult, totalStages int) *types.ModerationDecision {
	if len(results) == 0 {
		return nil
	}

	allSucceeded := len(results) == totalStages
	reasoning := make([]string, 0, len(results))
	for _, r := range results {
		if !r.Success {
			allSucceeded = false
			reasoning = append(reasoning, "stage "+r.StageID+" failed: "+r.Error)
		}
	}
	if allSucceeded {
		reasoning = nil
	} else if len(reasoning) == 0 {
		reasoning = append(reasoning, "pipeline aborted before all stages ran")
	}

	decision := types.DecisionAllow
	requiresReview := false
	if !allSucceeded {
		decision = types.DecisionFlag
		requiresReview = true
	}

	return &types.ModerationDecision{
		Decision:            decision,
		Confidence:          1.0,
		Reasoning:           reasoning,
		RequiresHumanReview: requiresReview,
	}
}
