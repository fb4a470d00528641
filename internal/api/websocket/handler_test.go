package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monosonet/modcore/internal/moderation/reports"
	"github.com/monosonet/modcore/internal/moderation/signals"
	"github.com/monosonet/modcore/internal/moderation/types"
	"github.com/monosonet/modcore/internal/pkg/metrics"
)

type fakeReportStore struct {
	mu      sync.Mutex
	reports map[uuid.UUID]types.UserReport
}

func newFakeReportStore() *fakeReportStore {
	return &fakeReportStore{reports: make(map[uuid.UUID]types.UserReport)}
}

func (f *fakeReportStore) InsertUserReport(ctx context.Context, report types.UserReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports[report.ID] = report
	return nil
}

func (f *fakeReportStore) FetchUserReport(ctx context.Context, id uuid.UUID) (types.UserReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reports[id]
	if !ok {
		return types.UserReport{}, types.NewError(types.KindNotFound, "not found")
	}
	return r, nil
}

func (f *fakeReportStore) ListUserReports(ctx context.Context, filter reports.ListFilter) ([]types.UserReport, error) {
	return nil, nil
}

func (f *fakeReportStore) UpdateUserReportStatus(ctx context.Context, id uuid.UUID, status types.ReportStatus, resolvedAt *time.Time) error {
	return nil
}

func (f *fakeReportStore) InsertAuditEvent(ctx context.Context, action, subjectID, actorID string, metadata map[string]interface{}) error {
	return nil
}

func (f *fakeReportStore) ListAuditEvents(ctx context.Context, action string, limit, offset int) ([]reports.AuditEvent, error) {
	return nil, nil
}

func TestServeWS_UpgradesConnection(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(ctx)
	go hub.Run()
	defer hub.Stop()

	handler := NewHandler(ctx, hub, nil, zerolog.Nop())
	server := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Eventually(t, func() bool {
		return hub.GetClientCount() == 1
	}, time.Second, 5*time.Millisecond)
}

func TestServeWS_RejectsDisallowedOrigin(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(ctx)
	go hub.Run()
	defer hub.Stop()

	handler := NewHandler(ctx, hub, []string{"https://allowed.example"}, zerolog.Nop())
	server := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.Error(t, err)
	require.NotNil(t, resp)
}

func TestRelayPipelineResults_ForwardsToClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(ctx)
	go hub.Run()
	defer hub.Stop()

	client := &Client{send: make(chan []byte, 256)}
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	rules := signals.NewRuleEngine()
	runner := signals.NewPipelineRunner(2, nil)
	runner.AddPipeline(types.SignalPipeline{
		ID:      "relay-test",
		Enabled: true,
		Stages:  []types.PipelineStage{{ID: "aggregate", Processor: types.StageSignalAggregator, TimeoutMs: 1000}},
	})
	store := signals.NewStore(signals.DefaultStoreConfig(), rules, runner, metrics.SignalsSink{})
	store.Start(ctx)
	defer store.Stop()

	go RelayPipelineResults(ctx, store, hub, zerolog.Nop())

	signal := types.Signal{
		ID:       uuid.New(),
		UserID:   "user-1",
		Severity: types.SeverityHigh,
	}
	require.NoError(t, store.AddSignal(ctx, signal))

	select {
	case msg := <-client.send:
		assert.Contains(t, string(msg), "pipeline_result")
	case <-time.After(2 * time.Second):
		t.Fatal("expected a relayed pipeline result")
	}
}

func TestRelayReportEvents_ForwardsToClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(ctx)
	go hub.Run()
	defer hub.Stop()

	client := &Client{send: make(chan []byte, 256)}
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	store := newFakeReportStore()
	manager := reports.New(reports.DefaultConfig(), store, noopSignalEmitter{}, []string{"specialist-1"}, metrics.ReportsSink{})

	go RelayReportEvents(ctx, manager, hub, zerolog.Nop())

	_, err := manager.CreateReport(ctx, reports.CreateReportRequest{
		ReporterID: "reporter-1",
		TargetID:   "target-1",
		ReportType: types.ReportSpam,
		Reason:     "spam content",
		Evidence:   []types.Evidence{{Type: types.EvidenceText, Payload: "spam"}},
	})
	require.NoError(t, err)

	select {
	case msg := <-client.send:
		assert.Contains(t, string(msg), "report.created")
	case <-time.After(2 * time.Second):
		t.Fatal("expected a relayed report event")
	}
}

type noopSignalEmitter struct{}

func (noopSignalEmitter) AddSignal(ctx context.Context, signal types.Signal) error { return nil }
