package classifier

import (
	"context"

	"github.com/monosonet/modcore/internal/moderation/types"
)

// HeuristicModel is the default, in-process Model implementation used
// when no external inference service is configured. Real deployments
// register a Model backed by an actual ML runtime or remote inference
// service; this one exists so the manager always has a healthy active
// model to dispatch to out of the box, and so tests don't require a
// live inference backend.
//
// It reuses the rule classifier's pattern matching but maps match density
// onto a steeper confidence curve than the pure rule path, approximating
// how a trained model is typically more confident than keyword matching
// alone on clear-cut cases.
type HeuristicModel struct {
	id      string
	version string
	rules   *RuleClassifier
}

// NewHeuristicModel builds the default model, sharing pattern data with a
// RuleClassifier instance (pass classifier.NewRuleClassifier() or a
// policy-loaded one).
func NewHeuristicModel(id, version string, rules *RuleClassifier) *HeuristicModel {
	return &HeuristicModel{id: id, version: version, rules: rules}
}

func (m *HeuristicModel) Info() ModelInfo {
	return ModelInfo{
		ID:                 m.id,
		Name:               "heuristic-baseline",
		Version:            m.version,
		SupportedLanguages: []string{"en", "es", "fr", "de", "pt"},
		ModelType:          "heuristic",
		Checksum:           "n/a",
	}
}

func (m *HeuristicModel) IsHealthy(ctx context.Context) bool { return true }

func (m *HeuristicModel) Predict(ctx context.Context, text, language string) (types.ClassificationLabel, float64, error) {
	result := m.rules.Classify(text)
	if result.Label == types.LabelClean {
		return types.LabelClean, 0.5, nil
	}

	confidence := 0.5 + result.Confidence
	if confidence > 0.97 {
		confidence = 0.97
	}
	return result.Label, confidence, nil
}
