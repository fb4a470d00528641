package signals

import (
	"context"

	"github.com/monosonet/modcore/internal/moderation/types"
)

// riskScoreCap is the maximum risk score SignalAggregator reports.
const riskScoreCap = 100.0

// WindowSignalSource supplies the signals a SignalAggregator stage
// groups by user. The Store implements this; declaring the narrow
// interface here (rather than importing Store's concrete type into the
// stage) keeps the stage testable without a live store.
type WindowSignalSource interface {
	SignalsForUser(userID string) []types.Signal
}

// SignalAggregator implements the "signal_aggregator" pipeline stage:
// groups a window of signals by user and computes a risk score as
// Σ confidence × severity_weight, capped at 100.
type SignalAggregator struct {
	source WindowSignalSource
}

// NewSignalAggregator builds an aggregator reading through source.
func NewSignalAggregator(source WindowSignalSource) *SignalAggregator {
	return &SignalAggregator{source: source}
}

// Run is a StageRunner computing the risk score for the triggering
// signal's user.
func (a *SignalAggregator) Run(ctx context.Context, signal types.Signal, stage types.PipelineStage) (map[string]interface{}, error) {
	if a.source == nil || signal.UserID == "" {
		return map[string]interface{}{"risk_score": 0.0}, nil
	}

	score := 0.0
	for _, s := range a.source.SignalsForUser(signal.UserID) {
		score += s.Confidence * s.Severity.Weight()
	}
	if score > riskScoreCap {
		score = riskScoreCap
	}

	return map[string]interface{}{
		"risk_score": score,
		"user_id":    signal.UserID,
	}, nil
}
