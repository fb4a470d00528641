package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/monosonet/modcore/internal/moderation/reports"
	"github.com/monosonet/modcore/internal/moderation/types"
)

// PostgresRepository implements reports.ReportStore against PostgreSQL
// using sqlx.Connect, a pooled *sqlx.DB, and numbered placeholders.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(connectionString string) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to bootstrap schema: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *PostgresRepository) InsertUserReport(ctx context.Context, report types.UserReport) error {
	row, err := toRow(report)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO user_reports (id, reporter_id, target_id, content_id, report_type, reason,
			description, evidence, status, priority, assigned_specialist, created_at, updated_at, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`
	err = instrumentQueryContext(ctx, "insert_user_report", func() error {
		_, execErr := r.db.ExecContext(ctx, query,
			row.ID, row.ReporterID, row.TargetID, row.ContentID, row.ReportType, row.Reason,
			row.Description, row.Evidence, row.Status, row.Priority, row.AssignedSpecialist,
			row.CreatedAt, row.UpdatedAt, row.ResolvedAt,
		)
		return execErr
	})
	if err != nil {
		return types.Wrap(types.KindStoreUnavailable, "insert user report", err)
	}
	return nil
}

func (r *PostgresRepository) FetchUserReport(ctx context.Context, id uuid.UUID) (types.UserReport, error) {
	var row reportRow
	query := `SELECT * FROM user_reports WHERE id = $1`
	err := instrumentQueryContext(ctx, "fetch_user_report", func() error {
		return r.db.GetContext(ctx, &row, query, id.String())
	})
	if err != nil {
		if err == sql.ErrNoRows {
			return types.UserReport{}, types.NewError(types.KindNotFound, "report not found: "+id.String())
		}
		return types.UserReport{}, types.Wrap(types.KindStoreUnavailable, "fetch user report", err)
	}
	return fromRow(row)
}

func (r *PostgresRepository) ListUserReports(ctx context.Context, filter reports.ListFilter) ([]types.UserReport, error) {
	query := `SELECT * FROM user_reports WHERE 1=1`
	var args []interface{}
	n := 1
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, string(*filter.Status))
		n++
	}
	if filter.Priority != nil {
		query += fmt.Sprintf(" AND priority = $%d", n)
		args = append(args, string(*filter.Priority))
		n++
	}
	if filter.UpdatedSince != nil {
		query += fmt.Sprintf(" AND updated_at >= $%d", n)
		args = append(args, *filter.UpdatedSince)
		n++
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", n)
		args = append(args, filter.Limit)
		n++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	var rows []reportRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, types.Wrap(types.KindStoreUnavailable, "list user reports", err)
	}
	out := make([]types.UserReport, 0, len(rows))
	for _, row := range rows {
		report, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, report)
	}
	return out, nil
}

func (r *PostgresRepository) UpdateUserReportStatus(ctx context.Context, id uuid.UUID, status types.ReportStatus, resolvedAt *time.Time) error {
	query := `UPDATE user_reports SET status = $1, updated_at = $2, resolved_at = $3 WHERE id = $4`
	var resolved sql.NullTime
	if resolvedAt != nil {
		resolved = sql.NullTime{Time: *resolvedAt, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query, string(status), time.Now(), resolved, id.String())
	if err != nil {
		return types.Wrap(types.KindStoreUnavailable, "update user report status", err)
	}
	return nil
}

func (r *PostgresRepository) InsertAuditEvent(ctx context.Context, action string, subjectID, actorID string, metadata map[string]interface{}) error {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}
	query := `INSERT INTO audit_events (id, action, subject_id, actor_id, metadata, created_at) VALUES ($1, $2, $3, $4, $5, $6)`
	_, err = r.db.ExecContext(ctx, query, uuid.New().String(), action, subjectID, actorID, string(meta), time.Now())
	if err != nil {
		return types.Wrap(types.KindStoreUnavailable, "insert audit event", err)
	}
	return nil
}

func (r *PostgresRepository) ListAuditEvents(ctx context.Context, action string, limit, offset int) ([]reports.AuditEvent, error) {
	query := `SELECT id, action, subject_id, actor_id, metadata, created_at FROM audit_events WHERE 1=1`
	var args []interface{}
	n := 1
	if action != "" {
		query += fmt.Sprintf(" AND action = $%d", n)
		args = append(args, action)
		n++
	}
	query += " ORDER BY created_at DESC"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", n)
		args = append(args, limit)
		n++
	}
	if offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, offset)
	}

	type row struct {
		ID        string    `db:"id"`
		Action    string    `db:"action"`
		SubjectID string    `db:"subject_id"`
		ActorID   string    `db:"actor_id"`
		Metadata  string    `db:"metadata"`
		CreatedAt time.Time `db:"created_at"`
	}
	var rawRows []row
	if err := r.db.SelectContext(ctx, &rawRows, query, args...); err != nil {
		return nil, types.Wrap(types.KindStoreUnavailable, "list audit events", err)
	}

	out := make([]reports.AuditEvent, 0, len(rawRows))
	for _, rr := range rawRows {
		id, err := uuid.Parse(rr.ID)
		if err != nil {
			continue
		}
		var metadata map[string]interface{}
		_ = json.Unmarshal([]byte(rr.Metadata), &metadata)
		out = append(out, reports.AuditEvent{
			ID: id, Action: rr.Action, SubjectID: rr.SubjectID, ActorID: rr.ActorID,
			Metadata: metadata, CreatedAt: rr.CreatedAt,
		})
	}
	return out, nil
}
