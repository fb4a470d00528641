package reports

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/monosonet/modcore/internal/moderation/types"
)

// fakeStore is an in-memory ReportStore used for Manager-level tests,
// standing in for the Postgres/SQLite implementations under
// internal/repository.
type fakeStore struct {
	mu      sync.Mutex
	reports map[uuid.UUID]types.UserReport
	audit   []AuditEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{reports: make(map[uuid.UUID]types.UserReport)}
}

func (f *fakeStore) InsertUserReport(ctx context.Context, report types.UserReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[report.ID] = report
	return nil
}

func (f *fakeStore) FetchUserReport(ctx context.Context, id uuid.UUID) (types.UserReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	report, ok := f.reports[id]
	if !ok {
		return types.UserReport{}, types.NewError(types.KindNotFound, "report not found")
	}
	return report, nil
}

func (f *fakeStore) ListUserReports(ctx context.Context, filter ListFilter) ([]types.UserReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.UserReport, 0, len(f.reports))
	for _, r := range f.reports {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) UpdateUserReportStatus(ctx context.Context, id uuid.UUID, status types.ReportStatus, resolvedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	report, ok := f.reports[id]
	if !ok {
		return types.NewError(types.KindNotFound, "report not found")
	}
	report.Status = status
	report.UpdatedAt = time.Now()
	report.ResolvedAt = resolvedAt
	f.reports[id] = report
	return nil
}

func (f *fakeStore) InsertAuditEvent(ctx context.Context, action string, subjectID, actorID string, metadata map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audit = append(f.audit, AuditEvent{ID: uuid.New(), Action: action, SubjectID: subjectID, ActorID: actorID, Metadata: metadata, CreatedAt: time.Now()})
	return nil
}

func (f *fakeStore) ListAuditEvents(ctx context.Context, action string, limit, offset int) ([]AuditEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]AuditEvent, 0, len(f.audit))
	for _, e := range f.audit {
		if action == "" || e.Action == action {
			out = append(out, e)
		}
	}
	return out, nil
}

// fakeSignalEmitter records every emitted signal for assertions.
type fakeSignalEmitter struct {
	mu      sync.Mutex
	signals []types.Signal
}

func (f *fakeSignalEmitter) AddSignal(ctx context.Context, signal types.Signal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, signal)
	return nil
}

func (f *fakeSignalEmitter) Signals() []types.Signal {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Signal, len(f.signals))
	copy(out, f.signals)
	return out
}
