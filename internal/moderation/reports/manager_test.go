package reports

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monosonet/modcore/internal/moderation/types"
)

func newTestManager(t *testing.T) (*Manager, *fakeSignalEmitter) {
	t.Helper()
	signals := &fakeSignalEmitter{}
	cfg := DefaultConfig()
	cfg.MaxReportsPerUser = 3
	manager := New(cfg, newFakeStore(), signals, []string{"spec-a", "spec-b"}, nil)
	return manager, signals
}

func TestCreateReport_Lifecycle(t *testing.T) {
	manager, signals := newTestManager(t)
	ctx := context.Background()

	sub := manager.Subscribe()

	report, err := manager.CreateReport(ctx, CreateReportRequest{
		ReporterID: "r1",
		TargetID:   "t1",
		ReportType: types.ReportHateSpeech,
		Reason:     "slur",
		Evidence:   []types.Evidence{{Type: types.EvidenceText, Payload: "x"}},
	})
	require.NoError(t, err)
	assert.Equal(t, types.ReportPriorityHigh, report.Priority)
	assert.Equal(t, types.ReportPending, report.Status)

	select {
	case event := <-sub.Ch:
		assert.Equal(t, "report.created", event.Type)
	default:
		t.Fatal("expected report.created event")
	}

	require.Len(t, signals.Signals(), 1)
	assert.Equal(t, types.SignalUserReport, signals.Signals()[0].SignalType)

	report, err = manager.UpdateReportStatus(ctx, report.ID, types.ReportUnderInvestigation)
	require.NoError(t, err)
	assert.Equal(t, types.ReportUnderInvestigation, report.Status)

	investigation, err := manager.StartInvestigation(ctx, report.ID, "investigator-1")
	require.NoError(t, err)
	assert.Equal(t, types.InvestigationInProgress, investigation.Status)

	investigation, err = manager.AddInvestigationNote(ctx, investigation.ID, "reviewed evidence")
	require.NoError(t, err)
	assert.Len(t, investigation.Notes, 1)

	investigation, err = manager.CompleteInvestigation(ctx, investigation.ID, types.InvestigationCompleted)
	require.NoError(t, err)
	assert.NotNil(t, investigation.CompletedAt)

	report, err = manager.UpdateReportStatus(ctx, report.ID, types.ReportResolved)
	require.NoError(t, err)
	assert.Equal(t, types.ReportResolved, report.Status)
	assert.NotNil(t, report.ResolvedAt)
}

func TestCreateReport_EmptyReasonIsInvalid(t *testing.T) {
	manager, signals := newTestManager(t)
	_, err := manager.CreateReport(context.Background(), CreateReportRequest{
		ReporterID: "r1",
		TargetID:   "t1",
		ReportType: types.ReportSpam,
		Reason:     "   ",
		Evidence:   []types.Evidence{{Type: types.EvidenceText, Payload: "x"}},
	})
	require.Error(t, err)
	assert.Equal(t, types.KindRequestInvalid, types.KindOf(err))
	assert.Empty(t, signals.Signals())
}

func TestCreateReport_ChildSafetyIsCriticalAndAutoAssigned(t *testing.T) {
	manager, _ := newTestManager(t)
	report, err := manager.CreateReport(context.Background(), CreateReportRequest{
		ReporterID: "r1",
		TargetID:   "t1",
		ReportType: types.ReportChildSafety,
		Reason:     "csam content",
		Evidence:   []types.Evidence{{Type: types.EvidenceText, Payload: "x"}},
	})
	require.NoError(t, err)
	assert.Equal(t, types.ReportPriorityCritical, report.Priority)
	assert.NotEmpty(t, report.AssignedSpecialist)
}

func TestCreateReport_RateLimited(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()
	req := CreateReportRequest{
		ReporterID: "r-rate",
		TargetID:   "t1",
		ReportType: types.ReportSpam,
		Reason:     "spam",
		Evidence:   []types.Evidence{{Type: types.EvidenceText, Payload: "x"}},
	}

	for i := 0; i < 3; i++ {
		_, err := manager.CreateReport(ctx, req)
		require.NoError(t, err)
	}

	_, err := manager.CreateReport(ctx, req)
	require.Error(t, err)
	assert.Equal(t, types.KindRateLimited, types.KindOf(err))
}

func TestGetReportMetrics_AggregatesByStatusAndPriority(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	_, err := manager.CreateReport(ctx, CreateReportRequest{
		ReporterID: "r1", TargetID: "t1", ReportType: types.ReportSpam, Reason: "x",
		Evidence: []types.Evidence{{Type: types.EvidenceText, Payload: "x"}},
	})
	require.NoError(t, err)
	_, err = manager.CreateReport(ctx, CreateReportRequest{
		ReporterID: "r2", TargetID: "t2", ReportType: types.ReportHateSpeech, Reason: "y",
		Evidence: []types.Evidence{{Type: types.EvidenceText, Payload: "x"}},
	})
	require.NoError(t, err)

	metrics := manager.GetReportMetrics(ctx, nil)
	assert.Equal(t, 2, metrics.Total)
	assert.Equal(t, 2, metrics.ByStatus[types.ReportPending])
	assert.Equal(t, 1, metrics.ByPriority[types.ReportPriorityNormal])
	assert.Equal(t, 1, metrics.ByPriority[types.ReportPriorityHigh])
}
