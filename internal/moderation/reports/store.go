package reports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/monosonet/modcore/internal/moderation/types"
)

// ListFilter narrows ListUserReports.
type ListFilter struct {
	Status       *types.ReportStatus
	Priority     *types.ReportPriority
	Limit        int
	Offset       int
	UpdatedSince *time.Time
}

// AuditEvent is one row the durable store's audit log holds.
type AuditEvent struct {
	ID        uuid.UUID
	Action    string
	SubjectID string
	ActorID   string
	Metadata  map[string]interface{}
	CreatedAt time.Time
}

// ReportStore is the durable-store contract the Manager depends on.
// Postgres and SQLite implementations live under internal/repository.
type ReportStore interface {
	InsertUserReport(ctx context.Context, report types.UserReport) error
	FetchUserReport(ctx context.Context, id uuid.UUID) (types.UserReport, error)
	ListUserReports(ctx context.Context, filter ListFilter) ([]types.UserReport, error)
	UpdateUserReportStatus(ctx context.Context, id uuid.UUID, status types.ReportStatus, resolvedAt *time.Time) error
	InsertAuditEvent(ctx context.Context, action string, subjectID, actorID string, metadata map[string]interface{}) error
	ListAuditEvents(ctx context.Context, action string, limit, offset int) ([]AuditEvent, error)
}

// SignalEmitter is the narrow slice of the signal store the Manager
// depends on, kept as an interface to avoid importing the signals
// package directly.
type SignalEmitter interface {
	AddSignal(ctx context.Context, signal types.Signal) error
}
