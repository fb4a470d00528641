package reports

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/monosonet/modcore/internal/moderation/types"
)

// Config tunes the report manager's rate limiting and derived-signal TTL.
type Config struct {
	MaxReportsPerUser   int
	ReportWindow        time.Duration
	DerivedSignalTTL    time.Duration
	EscalationThreshold float64
}

// DefaultConfig returns the baseline local rate-limit window (24h) and
// derived-signal TTL (30 days).
func DefaultConfig() Config {
	return Config{
		MaxReportsPerUser:   10,
		ReportWindow:        24 * time.Hour,
		DerivedSignalTTL:    30 * 24 * time.Hour,
		EscalationThreshold: 0.75,
	}
}

// MetricsSink receives report-manager observability events.
type MetricsSink interface {
	RecordReportCreated(priority types.ReportPriority)
	RecordReportStatusChanged(from, to types.ReportStatus)
}

type noopMetrics struct{}

func (noopMetrics) RecordReportCreated(types.ReportPriority)          {}
func (noopMetrics) RecordReportStatusChanged(types.ReportStatus, types.ReportStatus) {}

// Manager validates and persists user reports, drives the
// report/investigation state machine, and emits derived signals and
// lifecycle events. The Manager exclusively owns its in-memory report
// and investigation maps and holds the durable store reference.
type Manager struct {
	mu             sync.RWMutex
	reports        map[uuid.UUID]types.UserReport
	investigations map[uuid.UUID]types.Investigation

	reportTimesMu sync.Mutex
	reportTimes   map[string][]time.Time // reporterID -> recent submission timestamps

	specialists      []string
	specialistCursor atomic.Uint64

	store   ReportStore
	signals SignalEmitter
	bus     *EventBus
	config  Config
	metrics MetricsSink
}

// New builds a Manager. signals and metrics may be nil for a no-op
// signal emitter / metrics sink.
func New(config Config, store ReportStore, signals SignalEmitter, specialists []string, metrics MetricsSink) *Manager {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Manager{
		reports:        make(map[uuid.UUID]types.UserReport),
		investigations: make(map[uuid.UUID]types.Investigation),
		reportTimes:    make(map[string][]time.Time),
		specialists:    append([]string(nil), specialists...),
		store:          store,
		signals:        signals,
		bus:            NewEventBus(),
		config:         config,
		metrics:        metrics,
	}
}

// Subscribe returns a new receiver on the report/investigation event bus.
func (m *Manager) Subscribe() EventSubscription {
	return m.bus.Subscribe()
}

// Unsubscribe releases a subscription obtained from Subscribe.
func (m *Manager) Unsubscribe(id uint64) {
	m.bus.Unsubscribe(id)
}

// CreateReportRequest is the input to CreateReport.
type CreateReportRequest struct {
	ReporterID  string `validate:"required"`
	TargetID    string `validate:"required"`
	ContentID   string
	ReportType  types.ReportType `validate:"required"`
	Reason      string           `validate:"required"`
	Description string
	Evidence    []types.Evidence `validate:"max=20"`
}

func (m *Manager) withinRateLimit(reporterID string) bool {
	now := time.Now()
	cutoff := now.Add(-m.config.ReportWindow)

	m.reportTimesMu.Lock()
	defer m.reportTimesMu.Unlock()

	times := m.reportTimes[reporterID]
	fresh := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) >= m.config.MaxReportsPerUser {
		m.reportTimes[reporterID] = fresh
		return false
	}

	m.reportTimes[reporterID] = append(fresh, now)
	return true
}

// CreateReport validates req, assigns priority, persists the report,
// and emits its derived signal and report.created event.
func (m *Manager) CreateReport(ctx context.Context, req CreateReportRequest) (types.UserReport, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return types.UserReport{}, types.NewError(types.KindRequestInvalid, "reason must not be empty")
	}
	if len(req.Evidence) == 0 {
		return types.UserReport{}, types.NewError(types.KindRequestInvalid, "evidence must contain at least one item")
	}
	if req.ReporterID == "" || req.TargetID == "" {
		return types.UserReport{}, types.NewError(types.KindRequestInvalid, "reporter_id and target_id are required")
	}

	if !m.withinRateLimit(req.ReporterID) {
		return types.UserReport{}, types.NewError(types.KindRateLimited, "reporter exceeded max_reports_per_user within the rolling window")
	}

	priority := types.AssignPriority(req.ReportType)
	now := time.Now()
	report := types.UserReport{
		ID:          uuid.New(),
		ReporterID:  req.ReporterID,
		TargetID:    req.TargetID,
		ContentID:   req.ContentID,
		ReportType:  req.ReportType,
		Reason:      reason,
		Description: req.Description,
		Evidence:    req.Evidence,
		Status:      types.ReportPending,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if priority.AutoAssigns() {
		if specialist, ok := m.nextSpecialist(); ok {
			report.AssignedSpecialist = specialist
			report.Status = types.ReportUnderInvestigation
		}
	}

	if err := m.store.InsertUserReport(ctx, report); err != nil {
		return types.UserReport{}, types.Wrap(types.KindStoreUnavailable, "failed to persist report", err)
	}

	m.mu.Lock()
	m.reports[report.ID] = report
	m.mu.Unlock()

	m.emitDerivedSignal(ctx, report)
	m.publishReportEvent("report.created", report)
	m.metrics.RecordReportCreated(priority)

	return report, nil
}

func (m *Manager) nextSpecialist() (string, bool) {
	if len(m.specialists) == 0 {
		return "", false
	}
	idx := m.specialistCursor.Add(1) - 1
	return m.specialists[idx%uint64(len(m.specialists))], true
}

func (m *Manager) emitDerivedSignal(ctx context.Context, report types.UserReport) {
	if m.signals == nil {
		return
	}
	expires := time.Now().Add(m.config.DerivedSignalTTL)
	signal := types.Signal{
		ID:         uuid.New(),
		SignalType: types.SignalUserReport,
		Source:     "report_manager",
		ContentID:  report.ContentID,
		UserID:     report.TargetID,
		Severity:   report.Priority.SignalSeverity(),
		Confidence: 0.8,
		Metadata: map[string]interface{}{
			"report_id":   report.ID.String(),
			"report_type": string(report.ReportType),
			"reporter_id": report.ReporterID,
		},
		Timestamp: time.Now(),
		ExpiresAt: &expires,
	}
	_ = m.signals.AddSignal(ctx, signal)
}

func (m *Manager) publishReportEvent(eventType string, report types.UserReport) {
	payload, err := types.MarshalEvent(eventType, report)
	if err != nil {
		return
	}
	m.bus.Publish(Event{Type: eventType, JSON: payload})
}

func (m *Manager) publishInvestigationEvent(eventType string, investigation types.Investigation) {
	payload, err := types.MarshalEvent(eventType, investigation)
	if err != nil {
		return
	}
	m.bus.Publish(Event{Type: eventType, JSON: payload})
}

// GetReport returns a report from the in-memory map, falling back to the
// durable store on miss.
func (m *Manager) GetReport(ctx context.Context, id uuid.UUID) (types.UserReport, error) {
	m.mu.RLock()
	report, ok := m.reports[id]
	m.mu.RUnlock()
	if ok {
		return report, nil
	}

	report, err := m.store.FetchUserReport(ctx, id)
	if err != nil {
		return types.UserReport{}, err
	}

	m.mu.Lock()
	m.reports[id] = report
	m.mu.Unlock()
	return report, nil
}

// UpdateReportStatus validates the transition, persists and caches the
// new status, and publishes report.status_updated.
func (m *Manager) UpdateReportStatus(ctx context.Context, id uuid.UUID, status types.ReportStatus) (types.UserReport, error) {
	report, err := m.GetReport(ctx, id)
	if err != nil {
		return types.UserReport{}, types.NewError(types.KindNotFound, "report not found")
	}

	if !types.ValidTransition(report.Status, status) {
		return types.UserReport{}, types.NewError(types.KindRequestInvalid, "invalid status transition")
	}

	from := report.Status
	now := time.Now()
	report.Status = status
	report.UpdatedAt = now
	if status.Terminal() {
		report.ResolvedAt = &now
	}

	if err := m.store.UpdateUserReportStatus(ctx, id, status, report.ResolvedAt); err != nil {
		return types.UserReport{}, types.Wrap(types.KindStoreUnavailable, "failed to update report status", err)
	}

	m.mu.Lock()
	m.reports[id] = report
	m.mu.Unlock()

	m.publishReportEvent("report.status_updated", report)
	m.metrics.RecordReportStatusChanged(from, status)

	return report, nil
}

// AssignSpecialist assigns a specialist to a Pending or RequiresMoreInfo
// report, moving it to UnderInvestigation.
func (m *Manager) AssignSpecialist(ctx context.Context, id uuid.UUID, specialistID string) (types.UserReport, error) {
	report, err := m.GetReport(ctx, id)
	if err != nil {
		return types.UserReport{}, types.NewError(types.KindNotFound, "report not found")
	}
	if report.Status != types.ReportPending && report.Status != types.ReportRequiresMoreInfo {
		return types.UserReport{}, types.NewError(types.KindRequestInvalid, "report is not assignable in its current status")
	}

	report.AssignedSpecialist = specialistID
	report.Status = types.ReportUnderInvestigation
	report.UpdatedAt = time.Now()

	if err := m.store.UpdateUserReportStatus(ctx, id, report.Status, nil); err != nil {
		return types.UserReport{}, types.Wrap(types.KindStoreUnavailable, "failed to persist assignment", err)
	}

	m.mu.Lock()
	m.reports[id] = report
	m.mu.Unlock()

	m.publishReportEvent("report.status_updated", report)
	return report, nil
}

// StartInvestigation creates an Investigation record for report_id and
// moves the report into UnderInvestigation.
func (m *Manager) StartInvestigation(ctx context.Context, reportID uuid.UUID, investigatorID string) (types.Investigation, error) {
	report, err := m.GetReport(ctx, reportID)
	if err != nil {
		return types.Investigation{}, types.NewError(types.KindNotFound, "report not found")
	}
	if report.Status.Terminal() {
		return types.Investigation{}, types.NewError(types.KindRequestInvalid, "cannot start investigation on a terminal report")
	}

	investigation := types.Investigation{
		ID:             uuid.New(),
		ReportID:       reportID,
		InvestigatorID: investigatorID,
		Status:         types.InvestigationInProgress,
		StartedAt:      time.Now(),
	}

	m.mu.Lock()
	m.investigations[investigation.ID] = investigation
	m.mu.Unlock()

	if report.Status != types.ReportUnderInvestigation && types.ValidTransition(report.Status, types.ReportUnderInvestigation) {
		if _, err := m.UpdateReportStatus(ctx, reportID, types.ReportUnderInvestigation); err != nil {
			return types.Investigation{}, err
		}
	}

	m.publishInvestigationEvent("investigation.started", investigation)
	return investigation, nil
}

func (m *Manager) getInvestigation(id uuid.UUID) (types.Investigation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inv, ok := m.investigations[id]
	if !ok {
		return types.Investigation{}, types.NewError(types.KindNotFound, "investigation not found")
	}
	return inv, nil
}

// AddInvestigationFinding appends a finding to a non-terminal investigation.
func (m *Manager) AddInvestigationFinding(ctx context.Context, investigationID uuid.UUID, finding string) (types.Investigation, error) {
	inv, err := m.getInvestigation(investigationID)
	if err != nil {
		return types.Investigation{}, err
	}
	if inv.Status.Terminal() {
		return types.Investigation{}, types.NewError(types.KindRequestInvalid, "investigation is terminal")
	}

	inv.Findings = append(inv.Findings, finding)

	m.mu.Lock()
	m.investigations[investigationID] = inv
	m.mu.Unlock()

	m.publishInvestigationEvent("investigation.finding_added", inv)
	return inv, nil
}

// AddInvestigationNote appends a note to a non-terminal investigation.
func (m *Manager) AddInvestigationNote(ctx context.Context, investigationID uuid.UUID, note string) (types.Investigation, error) {
	inv, err := m.getInvestigation(investigationID)
	if err != nil {
		return types.Investigation{}, err
	}
	if inv.Status.Terminal() {
		return types.Investigation{}, types.NewError(types.KindRequestInvalid, "investigation is terminal")
	}

	inv.Notes = append(inv.Notes, note)

	m.mu.Lock()
	m.investigations[investigationID] = inv
	m.mu.Unlock()

	m.publishInvestigationEvent("investigation.note_added", inv)
	return inv, nil
}

// CompleteInvestigation sets finalStatus (Completed or Escalated),
// stamps completed_at and time_spent_minutes.
func (m *Manager) CompleteInvestigation(ctx context.Context, investigationID uuid.UUID, finalStatus types.InvestigationStatus) (types.Investigation, error) {
	inv, err := m.getInvestigation(investigationID)
	if err != nil {
		return types.Investigation{}, err
	}
	if inv.Status != types.InvestigationInProgress && inv.Status != types.InvestigationPendingReview {
		return types.Investigation{}, types.NewError(types.KindRequestInvalid, "investigation must be in_progress or pending_review to complete")
	}

	now := time.Now()
	inv.Status = finalStatus
	inv.CompletedAt = &now
	inv.TimeSpentMinutes = int(now.Sub(inv.StartedAt).Minutes())

	m.mu.Lock()
	m.investigations[investigationID] = inv
	m.mu.Unlock()

	m.publishInvestigationEvent("investigation.completed", inv)
	return inv, nil
}

// GetReportMetrics aggregates counts and means over in-memory reports,
// optionally narrowed to a time range.
func (m *Manager) GetReportMetrics(ctx context.Context, tr *types.TimeRange) types.ReportMetrics {
	m.mu.RLock()
	reports := make([]types.UserReport, 0, len(m.reports))
	for _, r := range m.reports {
		reports = append(reports, r)
	}
	investigations := make([]types.Investigation, 0, len(m.investigations))
	for _, inv := range m.investigations {
		investigations = append(investigations, inv)
	}
	m.mu.RUnlock()

	metrics := types.ReportMetrics{
		ByStatus:     make(map[types.ReportStatus]int),
		ByPriority:   make(map[types.ReportPriority]int),
		ByReportType: make(map[types.ReportType]int),
	}

	var resolutionSum time.Duration
	var resolutionCount int

	for _, r := range reports {
		if tr != nil && (r.CreatedAt.Before(tr.Since) || r.CreatedAt.After(tr.Until)) {
			continue
		}
		metrics.Total++
		metrics.ByStatus[r.Status]++
		metrics.ByPriority[r.Priority]++
		metrics.ByReportType[r.ReportType]++

		if r.Status.Terminal() && r.ResolvedAt != nil {
			resolutionSum += r.ResolvedAt.Sub(r.CreatedAt)
			resolutionCount++
		}
	}

	if resolutionCount > 0 {
		metrics.MeanResolutionMinutes = resolutionSum.Minutes() / float64(resolutionCount)
	}

	for _, inv := range investigations {
		if !inv.Status.Terminal() {
			metrics.OpenInvestigationCount++
		}
	}

	return metrics
}
