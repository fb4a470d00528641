package signals

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/monosonet/modcore/internal/moderation/types"
)

// RuleEngine matches SignalRules against incoming signals and produces
// the union of matched rules' actions.
type RuleEngine struct {
	mu    sync.RWMutex
	rules []types.SignalRule
}

// NewRuleEngine builds an empty rule engine; rules are added via AddRule.
func NewRuleEngine() *RuleEngine {
	return &RuleEngine{}
}

// AddRule appends a rule. Rules are re-sorted by ascending priority so
// Evaluate always walks them in priority order.
func (e *RuleEngine) AddRule(rule types.SignalRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule)
	sort.SliceStable(e.rules, func(i, j int) bool { return e.rules[i].Priority < e.rules[j].Priority })
}

// Rules returns a snapshot of the configured rules.
func (e *RuleEngine) Rules() []types.SignalRule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]types.SignalRule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Evaluate walks enabled rules in ascending priority order and returns the
// union of actions from every rule that matches the signal.
func (e *RuleEngine) Evaluate(signal types.Signal) []types.SignalAction {
	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	var actions []types.SignalAction
	for _, rule := range rules {
		if !rule.Enabled {
			continue
		}
		if ruleMatchesSignal(signal, rule) {
			actions = append(actions, rule.Actions...)
		}
	}
	return actions
}

func ruleMatchesSignal(signal types.Signal, rule types.SignalRule) bool {
	if !signalTypeIn(signal.SignalType, rule.SignalTypes) {
		return false
	}
	return foldConditions(signal, rule.Conditions)
}

func signalTypeIn(t types.SignalType, types_ []types.SignalType) bool {
	for _, candidate := range types_ {
		if candidate == t {
			return true
		}
	}
	return false
}

// foldConditions evaluates conditions as a left-to-right fold using each
// condition's logical_operator, with no precedence promotion. The first
// condition's own logical_operator is ignored since there is nothing to
// its left to combine with.
func foldConditions(signal types.Signal, conditions []types.SignalCondition) bool {
	if len(conditions) == 0 {
		return true
	}

	result := conditionMatches(signal, conditions[0])
	for _, cond := range conditions[1:] {
		matched := conditionMatches(signal, cond)
		switch cond.LogicalOperator {
		case types.LogicalOr:
			result = result || matched
		default:
			result = result && matched
		}
	}
	return result
}

func conditionMatches(signal types.Signal, cond types.SignalCondition) bool {
	actual, ok := fieldValue(signal, cond.Field)
	if !ok {
		return false
	}

	switch cond.Operator {
	case types.OpEquals:
		return fmt.Sprint(actual) == fmt.Sprint(cond.Value)
	case types.OpNotEquals:
		return fmt.Sprint(actual) != fmt.Sprint(cond.Value)
	case types.OpGreaterThan:
		a, aok := toFloat(actual)
		b, bok := toFloat(cond.Value)
		return aok && bok && a > b
	case types.OpLessThan:
		a, aok := toFloat(actual)
		b, bok := toFloat(cond.Value)
		return aok && bok && a < b
	case types.OpContains:
		return strings.Contains(fmt.Sprint(actual), fmt.Sprint(cond.Value))
	case types.OpNotContains:
		return !strings.Contains(fmt.Sprint(actual), fmt.Sprint(cond.Value))
	case types.OpIn:
		return valueInSlice(actual, cond.Value)
	case types.OpNotIn:
		return !valueInSlice(actual, cond.Value)
	case types.OpRegex:
		re, err := regexp.Compile(fmt.Sprint(cond.Value))
		if err != nil {
			return false
		}
		return re.MatchString(fmt.Sprint(actual))
	default:
		return false
	}
}

func fieldValue(signal types.Signal, field string) (interface{}, bool) {
	switch field {
	case "severity":
		return string(signal.Severity), true
	case "confidence":
		return signal.Confidence, true
	case "signal_type":
		return string(signal.SignalType), true
	case "source":
		return signal.Source, true
	case "user_id":
		return signal.UserID, true
	case "content_id":
		return signal.ContentID, true
	default:
		if v, ok := signal.Metadata[field]; ok {
			return v, true
		}
		return nil, false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func valueInSlice(actual interface{}, set interface{}) bool {
	items, ok := set.([]interface{})
	if !ok {
		return false
	}
	for _, item := range items {
		if fmt.Sprint(item) == fmt.Sprint(actual) {
			return true
		}
	}
	return false
}
