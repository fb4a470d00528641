// Package repository implements reports.ReportStore against a durable
// SQL backend, with Postgres and SQLite implementations behind one
// shared interface.
package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/monosonet/modcore/internal/moderation/reports"
	"github.com/monosonet/modcore/internal/moderation/types"
)

// reportRow is the flat row shape both backends scan into via sqlx,
// since Evidence is stored as a JSON text column in both schemas.
type reportRow struct {
	ID                 string         `db:"id"`
	ReporterID         string         `db:"reporter_id"`
	TargetID           string         `db:"target_id"`
	ContentID          sql.NullString `db:"content_id"`
	ReportType         string         `db:"report_type"`
	Reason             string         `db:"reason"`
	Description        sql.NullString `db:"description"`
	Evidence           string         `db:"evidence"`
	Status             string         `db:"status"`
	Priority           string         `db:"priority"`
	AssignedSpecialist sql.NullString `db:"assigned_specialist"`
	CreatedAt          time.Time      `db:"created_at"`
	UpdatedAt          time.Time      `db:"updated_at"`
	ResolvedAt         sql.NullTime   `db:"resolved_at"`
}

func toRow(report types.UserReport) (reportRow, error) {
	evidence, err := json.Marshal(report.Evidence)
	if err != nil {
		return reportRow{}, fmt.Errorf("marshal evidence: %w", err)
	}
	row := reportRow{
		ID:         report.ID.String(),
		ReporterID: report.ReporterID,
		TargetID:   report.TargetID,
		ReportType: string(report.ReportType),
		Reason:     report.Reason,
		Evidence:   string(evidence),
		Status:     string(report.Status),
		Priority:   string(report.Priority),
		CreatedAt:  report.CreatedAt,
		UpdatedAt:  report.UpdatedAt,
	}
	if report.ContentID != "" {
		row.ContentID = sql.NullString{String: report.ContentID, Valid: true}
	}
	if report.Description != "" {
		row.Description = sql.NullString{String: report.Description, Valid: true}
	}
	if report.AssignedSpecialist != "" {
		row.AssignedSpecialist = sql.NullString{String: report.AssignedSpecialist, Valid: true}
	}
	if report.ResolvedAt != nil {
		row.ResolvedAt = sql.NullTime{Time: *report.ResolvedAt, Valid: true}
	}
	return row, nil
}

func fromRow(row reportRow) (types.UserReport, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return types.UserReport{}, fmt.Errorf("parse report id: %w", err)
	}
	var evidence []types.Evidence
	if err := json.Unmarshal([]byte(row.Evidence), &evidence); err != nil {
		return types.UserReport{}, fmt.Errorf("unmarshal evidence: %w", err)
	}
	report := types.UserReport{
		ID:         id,
		ReporterID: row.ReporterID,
		TargetID:   row.TargetID,
		ContentID:  row.ContentID.String,
		ReportType: types.ReportType(row.ReportType),
		Reason:     row.Reason,
		Description: row.Description.String,
		Evidence:   evidence,
		Status:     types.ReportStatus(row.Status),
		Priority:   types.ReportPriority(row.Priority),
		AssignedSpecialist: row.AssignedSpecialist.String,
		CreatedAt:  row.CreatedAt,
		UpdatedAt:  row.UpdatedAt,
	}
	if row.ResolvedAt.Valid {
		t := row.ResolvedAt.Time
		report.ResolvedAt = &t
	}
	return report, nil
}

var _ reports.ReportStore = (*PostgresRepository)(nil)
var _ reports.ReportStore = (*SQLiteRepository)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS user_reports (
	id TEXT PRIMARY KEY,
	reporter_id TEXT NOT NULL,
	target_id TEXT NOT NULL,
	content_id TEXT,
	report_type TEXT NOT NULL,
	reason TEXT NOT NULL,
	description TEXT,
	evidence TEXT NOT NULL,
	status TEXT NOT NULL,
	priority TEXT NOT NULL,
	assigned_specialist TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	resolved_at TIMESTAMP
);

CREATE TABLE IF NOT EXISTS audit_events (
	id TEXT PRIMARY KEY,
	action TEXT NOT NULL,
	subject_id TEXT NOT NULL,
	actor_id TEXT NOT NULL,
	metadata TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`
