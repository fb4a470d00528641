// Package audit provides audit logging for mutating moderation operations:
// who (request/actor), what (report/investigation), when, and outcome.
package audit

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Event is one audit event for a moderation mutation.
type Event struct {
	Time      string `json:"time"`
	Action    string `json:"action"` // "report.create" | "report.status_update" | "investigation.*"
	RequestID string `json:"request_id,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
	ReportID  string `json:"report_id,omitempty"`
	Outcome   string `json:"outcome"` // "success" | "failure"
	Message   string `json:"message,omitempty"`
}

// Logger writes audit events as structured JSON through the process logger.
type Logger struct {
	logger zerolog.Logger
}

func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{logger: logger}
}

func (l *Logger) Log(requestID, actorID, reportID, action, outcome, message string) {
	e := Event{
		Time:      time.Now().UTC().Format(time.RFC3339Nano),
		Action:    action,
		RequestID: requestID,
		ActorID:   actorID,
		ReportID:  reportID,
		Outcome:   outcome,
		Message:   message,
	}
	b, _ := json.Marshal(e)
	l.logger.Info().RawJSON("event", b).Msg("audit")
}

// ClientIP extracts the originating address for request audit entries,
// preferring X-Forwarded-For the same way ratelimit.ClientKey does.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	return r.RemoteAddr
}

// ActionFromRequest derives the audit action name from a moderation API request.
func ActionFromRequest(method, path string) string {
	switch {
	case method == http.MethodPost && strings.Contains(path, "/classify"):
		return "classify"
	case method == http.MethodPost && strings.Contains(path, "/reports") && !strings.Contains(path, "/assign"):
		return "report.create"
	case method == http.MethodPost && strings.Contains(path, "/assign"):
		return "report.assign"
	case method == http.MethodPatch && strings.Contains(path, "/status"):
		return "report.status_update"
	case method == http.MethodPost && strings.Contains(path, "/investigations") && strings.Contains(path, "/complete"):
		return "investigation.complete"
	case method == http.MethodPost && strings.Contains(path, "/investigations"):
		return "investigation.create"
	default:
		return strings.ToLower(method)
	}
}
