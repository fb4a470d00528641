package types

import "time"

// ConditionOperator is the comparison a SignalCondition applies.
type ConditionOperator string

const (
	OpEquals      ConditionOperator = "equals"
	OpNotEquals   ConditionOperator = "not_equals"
	OpGreaterThan ConditionOperator = "greater_than"
	OpLessThan    ConditionOperator = "less_than"
	OpContains    ConditionOperator = "contains"
	OpNotContains ConditionOperator = "not_contains"
	OpIn          ConditionOperator = "in"
	OpNotIn       ConditionOperator = "not_in"
	OpRegex       ConditionOperator = "regex"
)

// LogicalOperator joins a SignalCondition to the fold's running result.
type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "and"
	LogicalOr  LogicalOperator = "or"
)

// SignalCondition is one term in a SignalRule's left-to-right fold.
// Conditions combine strictly in order; there is no operator precedence.
type SignalCondition struct {
	Field           string            `json:"field"`
	Operator        ConditionOperator `json:"operator"`
	Value           interface{}       `json:"value"`
	LogicalOperator LogicalOperator   `json:"logical_operator"`
}

// ActionType is the closed set of effects a SignalAction may request.
type ActionType string

const (
	ActionBlockUser            ActionType = "block_user"
	ActionRemoveContent        ActionType = "remove_content"
	ActionFlagForReview        ActionType = "flag_for_review"
	ActionSendNotification     ActionType = "send_notification"
	ActionEscalateToSpecialist ActionType = "escalate_to_specialist"
	ActionUpdateUserScore      ActionType = "update_user_score"
	ActionTriggerInvestigation ActionType = "trigger_investigation"
)

// CustomActionType builds a Custom(name) action type.
func CustomActionType(name string) ActionType {
	return ActionType("custom:" + name)
}

// SignalAction is one effect a matching SignalRule requests.
type SignalAction struct {
	ActionType ActionType             `json:"action_type"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
	DelayMs    *uint64                `json:"delay_ms,omitempty"`
	RetryCount *uint32                `json:"retry_count,omitempty"`
}

// SignalRule matches incoming signals and produces a SignalAction list.
type SignalRule struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	SignalTypes []SignalType      `json:"signal_types"`
	Conditions  []SignalCondition `json:"conditions"`
	Actions     []SignalAction    `json:"actions"`
	Priority    uint32            `json:"priority"`
	Enabled     bool              `json:"enabled"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// StageProcessor is the closed set of pipeline stage kinds.
type StageProcessor string

const (
	StageSignalAggregator  StageProcessor = "signal_aggregator"
	StageRuleEngine        StageProcessor = "rule_engine"
	StageMlEnhancer        StageProcessor = "ml_enhancer"
	StageUserScorer        StageProcessor = "user_scorer"
	StageContentAnalyzer   StageProcessor = "content_analyzer"
	StageNotificationSender StageProcessor = "notification_sender"
)

// CustomStageProcessor builds a Custom(name) stage processor.
func CustomStageProcessor(name string) StageProcessor {
	return StageProcessor("custom:" + name)
}

// PipelineStage is one step of a SignalPipeline.
type PipelineStage struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Processor  StageProcessor         `json:"processor"`
	Config     map[string]interface{} `json:"config,omitempty"`
	TimeoutMs  uint64                 `json:"timeout_ms"`
	RetryCount uint32                 `json:"retry_count"`
}

// SignalPipeline is a configured, ordered sequence of stage processors
// applied to one signal at a time.
type SignalPipeline struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	Stages        []PipelineStage `json:"stages"`
	Enabled       bool            `json:"enabled"`
	MaxConcurrent int             `json:"max_concurrent"`
	TimeoutMs     uint64          `json:"timeout_ms"`
}

// StageResult records the outcome of executing one PipelineStage.
type StageResult struct {
	StageID          string                 `json:"stage_id"`
	Success          bool                   `json:"success"`
	Output           map[string]interface{} `json:"output,omitempty"`
	Error            string                 `json:"error,omitempty"`
	ProcessingTimeMs uint64                 `json:"processing_time_ms"`
}

// DecisionType is the closed set of moderation outcomes a pipeline may
// reach.
type DecisionType string

const (
	DecisionAllow      DecisionType = "allow"
	DecisionFlag       DecisionType = "flag"
	DecisionBlock      DecisionType = "block"
	DecisionRemove     DecisionType = "remove"
	DecisionEscalate   DecisionType = "escalate"
	DecisionInvestigate DecisionType = "investigate"
)

// ModerationDecision is the pipeline's final verdict for a signal, if any
// stage produced one.
type ModerationDecision struct {
	Decision            DecisionType   `json:"decision"`
	Confidence          float64        `json:"confidence"`
	Reasoning           []string       `json:"reasoning,omitempty"`
	ActionsTaken        []SignalAction `json:"actions_taken,omitempty"`
	RequiresHumanReview bool           `json:"requires_human_review"`
}

// PipelineResult is published on the fan-out bus after a pipeline run
// completes for one signal.
type PipelineResult struct {
	PipelineID       string               `json:"pipeline_id"`
	SignalID         string               `json:"signal_id"`
	StageResults     []StageResult        `json:"stage_results"`
	FinalDecision    *ModerationDecision  `json:"final_decision,omitempty"`
	ProcessingTimeMs uint64               `json:"processing_time_ms"`
	Timestamp        time.Time            `json:"timestamp"`
}
