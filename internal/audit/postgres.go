package audit

import (
	"context"
	"database/sql"

	"admissions-lifecycle/internal/common/clock"
	apperrors "admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/models"
)

// PostgresRecorder writes to audit_log. It only ever INSERTs.
type PostgresRecorder struct {
	db    *sql.DB
	clock clock.Clock
}

func NewPostgresRecorder(db *sql.DB, c clock.Clock) *PostgresRecorder {
	if c == nil {
		c = clock.System()
	}
	return &PostgresRecorder{db: db, clock: c}
}

func (r *PostgresRecorder) Append(ctx context.Context, entry models.AuditEntry) (models.AuditEntry, error) {
	entry = prepare(entry, r.clock.Now())

	query := `
		INSERT INTO audit_log (id, timestamp, actor_id, action, target_id, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Timestamp,
		entry.ActorID,
		entry.Action,
		entry.TargetID,
		entry.Detail,
	)
	if err != nil {
		return models.AuditEntry{}, apperrors.NewQueryExecutionFailedError("insert audit_log", err)
	}
	return entry, nil
}

func (r *PostgresRecorder) List(ctx context.Context, f models.AuditFilter) ([]models.AuditEntry, error) {
	query := `
		SELECT id, timestamp, actor_id, action, target_id, COALESCE(detail, '')
		FROM audit_log
		WHERE ($1 = '' OR target_id = $1)
		  AND ($2 = '' OR action = $2)
		ORDER BY timestamp DESC, id DESC
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, query, f.TargetID, f.Action, limitOf(f))
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("select audit_log", err)
	}
	defer rows.Close()

	var out []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.ActorID, &e.Action, &e.TargetID, &e.Detail); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan audit_log", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("iterate audit_log", err)
	}
	return out, nil
}
