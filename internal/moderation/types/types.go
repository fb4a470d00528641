// Package types holds the core data model shared across the moderation
// engine: classification requests/results, signals, and user reports.
// Nothing in this package talks to a database or network; it is pure data
// plus the small amount of validation that belongs on the value itself.
package types

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContentType is the kind of user-generated content being classified.
type ContentType string

const (
	ContentTypePost    ContentType = "post"
	ContentTypeComment ContentType = "comment"
	ContentTypeMessage ContentType = "message"
	ContentTypeProfile ContentType = "profile"
	ContentTypeMedia   ContentType = "media"
	ContentTypeLink    ContentType = "link"
)

// Priority is the urgency a caller attaches to a classification request.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ClassificationLabel is the closed set of outcomes a classifier may return.
type ClassificationLabel string

const (
	LabelSpam           ClassificationLabel = "spam"
	LabelHateSpeech     ClassificationLabel = "hate_speech"
	LabelHarassment     ClassificationLabel = "harassment"
	LabelViolence       ClassificationLabel = "violence"
	LabelCsam           ClassificationLabel = "csam"
	LabelMisinformation ClassificationLabel = "misinformation"
	LabelCopyright      ClassificationLabel = "copyright"
	LabelLowQuality     ClassificationLabel = "low_quality"
	LabelDuplicate      ClassificationLabel = "duplicate"
	LabelOffTopic       ClassificationLabel = "off_topic"
	LabelBot            ClassificationLabel = "bot"
	LabelTroll          ClassificationLabel = "troll"
	LabelImpersonation  ClassificationLabel = "impersonation"
	LabelClean          ClassificationLabel = "clean"
	LabelEducational    ClassificationLabel = "educational"
	LabelCreative       ClassificationLabel = "creative"
)

// CustomLabel builds a Custom(name) label, an open extension point
// within an otherwise closed Go enum.
func CustomLabel(name string) ClassificationLabel {
	return ClassificationLabel("custom:" + name)
}

// IsCustom reports whether label is a Custom(...) label, and if so its name.
func (l ClassificationLabel) IsCustom() (string, bool) {
	if name, ok := strings.CutPrefix(string(l), "custom:"); ok {
		return name, true
	}
	return "", false
}

// ClassificationRequest is the immutable input to the classifier pipeline.
type ClassificationRequest struct {
	ContentID    string                 `json:"content_id" validate:"required"`
	UserID       string                 `json:"user_id" validate:"required"`
	Text         string                 `json:"text"`
	ContentType  ContentType            `json:"content_type" validate:"required"`
	LanguageHint string                 `json:"language_hint,omitempty"`
	Context      map[string]interface{} `json:"context,omitempty"`
	Priority     Priority               `json:"priority"`
}

// ClassificationResult is the outcome of running a request through the
// full classification pipeline.
type ClassificationResult struct {
	ID                uuid.UUID              `json:"id"`
	ContentID         string                 `json:"content_id"`
	UserID            string                 `json:"user_id"`
	Label             ClassificationLabel    `json:"label"`
	Confidence        float64                `json:"confidence"`
	Language          string                 `json:"language"`
	DetectedLanguage  string                 `json:"detected_language,omitempty"`
	ProcessingTimeMs  uint64                 `json:"processing_time_ms"`
	ModelVersion      string                 `json:"model_version"`
	Signals           []uuid.UUID            `json:"signals"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
	Timestamp         time.Time              `json:"timestamp"`
	CacheHit          bool                   `json:"cache_hit,omitempty"`
}

// Severity maps a classification label to a signal severity. CSAM is
// always Critical regardless of model confidence.
func (l ClassificationLabel) Severity() SignalSeverity {
	switch l {
	case LabelCsam:
		return SeverityCritical
	case LabelHateSpeech, LabelHarassment, LabelViolence:
		return SeverityHigh
	case LabelSpam, LabelLowQuality, LabelOffTopic:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// SignalType is the closed set of structured moderation events.
type SignalType string

const (
	SignalUserReport             SignalType = "user_report"
	SignalUserBlock              SignalType = "user_block"
	SignalUserMute               SignalType = "user_mute"
	SignalUserFlag               SignalType = "user_flag"
	SignalContentReport          SignalType = "content_report"
	SignalContentFlag            SignalType = "content_flag"
	SignalContentDownvote        SignalType = "content_downvote"
	SignalContentSpam            SignalType = "content_spam"
	SignalRateLimitExceeded      SignalType = "rate_limit_exceeded"
	SignalBotDetection           SignalType = "bot_detection"
	SignalSuspiciousActivity     SignalType = "suspicious_activity"
	SignalGeographicAnomaly      SignalType = "geographic_anomaly"
	SignalHighConfidenceViolation SignalType = "high_confidence_violation"
	SignalModelUncertainty       SignalType = "model_uncertainty"
	SignalAnomalyDetection       SignalType = "anomaly_detection"
)

// CustomSignalType builds a Custom(name) signal type.
func CustomSignalType(name string) SignalType {
	return SignalType("custom:" + name)
}

// SignalSeverity ranks how urgently a signal should be acted on.
type SignalSeverity string

const (
	SeverityLow      SignalSeverity = "low"
	SeverityMedium   SignalSeverity = "medium"
	SeverityHigh     SignalSeverity = "high"
	SeverityCritical SignalSeverity = "critical"
)

// Weight returns the severity_weight used by the signal aggregator.
func (s SignalSeverity) Weight() float64 {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 5
	case SeverityCritical:
		return 10
	default:
		return 0
	}
}

// Signal is a structured moderation event carrying a type, subject,
// severity, confidence, and optional TTL.
type Signal struct {
	ID         uuid.UUID              `json:"id"`
	SignalType SignalType             `json:"signal_type"`
	Source     string                 `json:"source"`
	ContentID  string                 `json:"content_id,omitempty"`
	UserID     string                 `json:"user_id,omitempty"`
	Severity   SignalSeverity         `json:"severity"`
	Confidence float64                `json:"confidence"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
	ExpiresAt  *time.Time             `json:"expires_at,omitempty"`
}

// Expired reports whether the signal is logically absent at time t.
func (s Signal) Expired(t time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(t)
}

// SignalFilter narrows Store.List results.
type SignalFilter struct {
	Types     []SignalType
	Severity  []SignalSeverity
	UserID    string
	ContentID string
	Since     *time.Time
	Until     *time.Time
}

// Matches reports whether signal satisfies every set filter dimension.
func (f SignalFilter) Matches(s Signal) bool {
	if len(f.Types) > 0 && !containsType(f.Types, s.SignalType) {
		return false
	}
	if len(f.Severity) > 0 && !containsSeverity(f.Severity, s.Severity) {
		return false
	}
	if f.UserID != "" && f.UserID != s.UserID {
		return false
	}
	if f.ContentID != "" && f.ContentID != s.ContentID {
		return false
	}
	if f.Since != nil && s.Timestamp.Before(*f.Since) {
		return false
	}
	if f.Until != nil && s.Timestamp.After(*f.Until) {
		return false
	}
	return true
}

func containsType(haystack []SignalType, needle SignalType) bool {
	for _, t := range haystack {
		if t == needle {
			return true
		}
	}
	return false
}

func containsSeverity(haystack []SignalSeverity, needle SignalSeverity) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

// EvidenceType tags the kind of payload a report's evidence carries.
type EvidenceType string

const (
	EvidenceText       EvidenceType = "text"
	EvidenceImage      EvidenceType = "image"
	EvidenceLink       EvidenceType = "link"
	EvidenceVideo      EvidenceType = "video"
	EvidenceAudio      EvidenceType = "audio"
	EvidenceScreenshot EvidenceType = "screenshot"
	EvidenceLog        EvidenceType = "log"
	EvidenceOther      EvidenceType = "other"
)

// Evidence is a single opaque attachment supporting a UserReport.
type Evidence struct {
	Type    EvidenceType `json:"type"`
	Payload string       `json:"payload"`
}

// ReportType is the reason category a reporter selects.
type ReportType string

const (
	ReportChildSafety    ReportType = "child_safety"
	ReportViolence       ReportType = "violence"
	ReportThreats        ReportType = "threats"
	ReportHateSpeech     ReportType = "hate_speech"
	ReportHarassment     ReportType = "harassment"
	ReportSpam           ReportType = "spam"
	ReportMisinformation ReportType = "misinformation"
	ReportOther          ReportType = "other"
)

// ReportStatus is the report/investigation lifecycle state.
type ReportStatus string

const (
	ReportPending              ReportStatus = "pending"
	ReportUnderInvestigation   ReportStatus = "under_investigation"
	ReportDismissed            ReportStatus = "dismissed"
	ReportEscalated            ReportStatus = "escalated"
	ReportResolved             ReportStatus = "resolved"
	ReportRequiresMoreInfo     ReportStatus = "requires_more_info"
)

// Terminal reports whether the status ends the report's lifecycle.
func (s ReportStatus) Terminal() bool {
	return s == ReportResolved || s == ReportDismissed
}

// validTransitions encodes the report lifecycle state machine:
// Pending → (UnderInvestigation | Dismissed) → (Escalated | Resolved | RequiresMoreInfo) → (Resolved | Dismissed).
var validTransitions = map[ReportStatus]map[ReportStatus]bool{
	ReportPending: {
		ReportUnderInvestigation: true,
		ReportDismissed:          true,
	},
	ReportUnderInvestigation: {
		ReportEscalated:        true,
		ReportResolved:         true,
		ReportRequiresMoreInfo: true,
		ReportDismissed:        true,
	},
	ReportRequiresMoreInfo: {
		ReportUnderInvestigation: true,
		ReportResolved:           true,
		ReportDismissed:          true,
	},
	ReportEscalated: {
		ReportResolved:  true,
		ReportDismissed: true,
	},
}

// ValidTransition reports whether from → to is a legal status transition.
func ValidTransition(from, to ReportStatus) bool {
	if from == to {
		return false
	}
	next, ok := validTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// UserReport is a durable, rate-limited, investigable user report.
type UserReport struct {
	ID                 uuid.UUID    `json:"id"`
	ReporterID         string       `json:"reporter_id"`
	TargetID           string       `json:"target_id"`
	ContentID          string       `json:"content_id,omitempty"`
	ReportType         ReportType   `json:"report_type"`
	Reason             string       `json:"reason"`
	Description        string       `json:"description,omitempty"`
	Evidence           []Evidence   `json:"evidence"`
	Status             ReportStatus `json:"status"`
	Priority           ReportPriority `json:"priority"`
	AssignedSpecialist string       `json:"assigned_specialist,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
	ResolvedAt         *time.Time   `json:"resolved_at,omitempty"`
}

// ReportPriority is the triage priority assigned at creation time.
type ReportPriority string

const (
	ReportPriorityLow      ReportPriority = "low"
	ReportPriorityNormal   ReportPriority = "normal"
	ReportPriorityHigh     ReportPriority = "high"
	ReportPriorityUrgent   ReportPriority = "urgent"
	ReportPriorityCritical ReportPriority = "critical"
)

// AssignPriority maps a report type to its triage priority.
func AssignPriority(rt ReportType) ReportPriority {
	switch rt {
	case ReportChildSafety:
		return ReportPriorityCritical
	case ReportViolence, ReportThreats:
		return ReportPriorityUrgent
	case ReportHateSpeech, ReportHarassment:
		return ReportPriorityHigh
	case ReportSpam, ReportMisinformation:
		return ReportPriorityNormal
	default:
		return ReportPriorityLow
	}
}

// AutoAssigns reports whether a priority triggers automatic specialist
// round-robin assignment (Critical and Urgent).
func (p ReportPriority) AutoAssigns() bool {
	return p == ReportPriorityCritical || p == ReportPriorityUrgent
}

// SignalSeverity derives the severity of the signal emitted for an accepted
// report from its priority.
func (p ReportPriority) SignalSeverity() SignalSeverity {
	switch p {
	case ReportPriorityCritical, ReportPriorityUrgent:
		return SeverityCritical
	case ReportPriorityHigh:
		return SeverityHigh
	case ReportPriorityNormal:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// InvestigationStatus is the lifecycle of an Investigation record.
type InvestigationStatus string

const (
	InvestigationNotStarted    InvestigationStatus = "not_started"
	InvestigationInProgress    InvestigationStatus = "in_progress"
	InvestigationPendingReview InvestigationStatus = "pending_review"
	InvestigationCompleted     InvestigationStatus = "completed"
	InvestigationEscalated     InvestigationStatus = "escalated"
)

// Terminal reports whether the investigation status ends its lifecycle.
func (s InvestigationStatus) Terminal() bool {
	return s == InvestigationCompleted || s == InvestigationEscalated
}

// Investigation tracks the work a specialist does against a UserReport.
type Investigation struct {
	ID               uuid.UUID           `json:"id"`
	ReportID         uuid.UUID           `json:"report_id"`
	InvestigatorID   string              `json:"investigator_id"`
	Status           InvestigationStatus `json:"status"`
	Findings         []string            `json:"findings,omitempty"`
	ActionsTaken     []string            `json:"actions_taken,omitempty"`
	Notes            []string            `json:"notes,omitempty"`
	StartedAt        time.Time           `json:"started_at"`
	CompletedAt      *time.Time          `json:"completed_at,omitempty"`
	TimeSpentMinutes int                 `json:"time_spent_minutes"`
}

// ReportMetrics aggregates counts and means over a set of reports.
type ReportMetrics struct {
	Total                  int                    `json:"total"`
	ByStatus               map[ReportStatus]int   `json:"by_status"`
	ByPriority             map[ReportPriority]int `json:"by_priority"`
	ByReportType           map[ReportType]int     `json:"by_report_type"`
	MeanResolutionMinutes  float64                `json:"mean_resolution_minutes"`
	OpenInvestigationCount int                    `json:"open_investigation_count"`
}

// TimeRange narrows a metrics or listing query to [Since, Until).
type TimeRange struct {
	Since time.Time
	Until time.Time
}

// MarshalEvent renders any event payload as a JSON object tagged with its
// type, matching the fan-out bus wire format.
func MarshalEvent(eventType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["type"] = eventType
	return json.Marshal(fields)
}
