package repository

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monosonet/modcore/internal/moderation/reports"
	"github.com/monosonet/modcore/internal/moderation/types"
)

func newTestSQLiteRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	dbPath := fmt.Sprintf("/tmp/test_modcore_%d.db", time.Now().UnixNano())
	repo, err := NewSQLiteRepository(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		os.Remove(dbPath)
	})
	return repo
}

func sampleReport() types.UserReport {
	now := time.Now().UTC().Truncate(time.Second)
	return types.UserReport{
		ID:         uuid.New(),
		ReporterID: "reporter-1",
		TargetID:   "target-1",
		ReportType: types.ReportSpam,
		Reason:     "spam content",
		Evidence:   []types.Evidence{{Type: types.EvidenceText, Payload: "buy now"}},
		Status:     types.ReportPending,
		Priority:   types.ReportPriorityNormal,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestSQLiteRepository_InsertFetchRoundTrip(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()
	report := sampleReport()

	require.NoError(t, repo.InsertUserReport(ctx, report))

	fetched, err := repo.FetchUserReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, report.ReporterID, fetched.ReporterID)
	assert.Equal(t, report.ReportType, fetched.ReportType)
	assert.Len(t, fetched.Evidence, 1)
	assert.Equal(t, report.Evidence[0].Payload, fetched.Evidence[0].Payload)
}

func TestSQLiteRepository_FetchMissingReturnsNotFound(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	_, err := repo.FetchUserReport(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, types.KindNotFound, types.KindOf(err))
}

func TestSQLiteRepository_ListFiltersByStatusAndPriority(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	pending := sampleReport()
	resolved := sampleReport()
	resolved.Status = types.ReportResolved
	resolved.Priority = types.ReportPriorityHigh

	require.NoError(t, repo.InsertUserReport(ctx, pending))
	require.NoError(t, repo.InsertUserReport(ctx, resolved))

	status := types.ReportResolved
	priority := types.ReportPriorityHigh
	reports, err := repo.ListUserReports(ctx, reports.ListFilter{Status: &status, Priority: &priority})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, resolved.ID, reports[0].ID)
}

func TestSQLiteRepository_UpdateStatusSetsResolvedAt(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()
	report := sampleReport()
	require.NoError(t, repo.InsertUserReport(ctx, report))

	now := time.Now()
	require.NoError(t, repo.UpdateUserReportStatus(ctx, report.ID, types.ReportResolved, &now))

	fetched, err := repo.FetchUserReport(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ReportResolved, fetched.Status)
	require.NotNil(t, fetched.ResolvedAt)
}

func TestSQLiteRepository_AuditEventsRoundTrip(t *testing.T) {
	repo := newTestSQLiteRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.InsertAuditEvent(ctx, "report.created", "report-1", "system", map[string]interface{}{"priority": "high"}))
	require.NoError(t, repo.InsertAuditEvent(ctx, "report.resolved", "report-1", "investigator-1", nil))

	events, err := repo.ListAuditEvents(ctx, "report.created", 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "report.created", events[0].Action)
	assert.Equal(t, "high", events[0].Metadata["priority"])
}
