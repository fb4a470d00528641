package classifier

import (
	"regexp"
	"strings"

	"github.com/monosonet/modcore/internal/moderation/types"
)

// RuleResult is the outcome of RuleClassifier.Classify, deliberately
// narrower than types.ClassificationResult since the rule path never
// touches ids, content ownership, or timestamps.
type RuleResult struct {
	Label      types.ClassificationLabel
	Confidence float64
}

// RuleClassifier performs deterministic, pattern-based labeling. Patterns
// are compiled once at construction; Classify only scans text.
type RuleClassifier struct {
	order    []types.ClassificationLabel
	patterns map[types.ClassificationLabel][]*regexp.Regexp
}

// defaultPatternSet mirrors the seed pattern lists the rule engine ships
// with: case-insensitive phrase matches per label. Order matters: ties
// are broken by label enumeration order.
func defaultPatternSet() map[types.ClassificationLabel][]string {
	return map[types.ClassificationLabel][]string{
		types.LabelSpam: {
			"buy now", "free \\$\\$\\$", "click here", "limited offer", "act now",
			"make money fast", "work from home", "earn \\$1000", "guaranteed results",
		},
		types.LabelHateSpeech: {
			"hate", "racist", "bigot", "supremacist", "nazi",
		},
		types.LabelViolence: {
			"kill", "murder", "attack", "bomb", "shoot",
		},
		types.LabelHarassment: {
			"you are worthless", "kill yourself", "nobody likes you",
		},
	}
}

// NewRuleClassifier compiles the default pattern set into regexes.
func NewRuleClassifier() *RuleClassifier {
	return NewRuleClassifierFromPatterns(defaultPatternSet())
}

// NewRuleClassifierFromPatterns compiles a caller-supplied pattern set,
// letting callers load policy patterns from configuration rather than
// the built-in seed list.
func NewRuleClassifierFromPatterns(patterns map[types.ClassificationLabel][]string) *RuleClassifier {
	order := make([]types.ClassificationLabel, 0, len(patterns))
	for label := range patterns {
		order = append(order, label)
	}
	// Deterministic enumeration order, matching the closed-enum
	// declaration order from the data model rather than map iteration.
	enumOrder := []types.ClassificationLabel{
		types.LabelSpam, types.LabelHateSpeech, types.LabelHarassment, types.LabelViolence,
		types.LabelCsam, types.LabelMisinformation, types.LabelCopyright, types.LabelLowQuality,
		types.LabelDuplicate, types.LabelOffTopic, types.LabelBot, types.LabelTroll,
		types.LabelImpersonation, types.LabelClean, types.LabelEducational, types.LabelCreative,
	}
	ordered := make([]types.ClassificationLabel, 0, len(order))
	seen := make(map[types.ClassificationLabel]bool, len(order))
	for _, l := range enumOrder {
		if _, ok := patterns[l]; ok {
			ordered = append(ordered, l)
			seen[l] = true
		}
	}
	for _, l := range order {
		if !seen[l] {
			ordered = append(ordered, l)
		}
	}

	compiled := make(map[types.ClassificationLabel][]*regexp.Regexp, len(patterns))
	for label, phrases := range patterns {
		regexes := make([]*regexp.Regexp, 0, len(phrases))
		for _, phrase := range phrases {
			re, err := regexp.Compile("(?i)" + phrase)
			if err != nil {
				continue
			}
			regexes = append(regexes, re)
		}
		compiled[label] = regexes
	}

	return &RuleClassifier{order: ordered, patterns: compiled}
}

// Classify scans text against every label's compiled pattern list and
// returns the label with the highest match ratio, ties broken by
// enumeration order. An unmatched text returns (Clean, 0.1).
func (r *RuleClassifier) Classify(text string) RuleResult {
	if strings.TrimSpace(text) == "" {
		return RuleResult{Label: types.LabelClean, Confidence: 0.1}
	}

	bestLabel := types.LabelClean
	bestRatio := 0.0

	for _, label := range r.order {
		patterns := r.patterns[label]
		if len(patterns) == 0 {
			continue
		}
		matches := 0
		for _, re := range patterns {
			if re.MatchString(text) {
				matches++
			}
		}
		if matches == 0 {
			continue
		}
		ratio := float64(matches) / float64(len(patterns))
		if ratio > bestRatio {
			bestRatio = ratio
			bestLabel = label
		}
	}

	if bestRatio == 0 {
		return RuleResult{Label: types.LabelClean, Confidence: 0.1}
	}

	confidence := bestRatio
	if confidence > 0.9 {
		confidence = 0.9
	}
	return RuleResult{Label: bestLabel, Confidence: confidence}
}
