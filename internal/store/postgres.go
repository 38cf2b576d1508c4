package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	apperrors "admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/models"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const selectColumns = `id, status, priority, COALESCE(source, ''), COALESCE(source_email, ''),
	extracted_fields, confidence_score, COALESCE(decision_notes, ''),
	created_at, decided_at, updated_at`

// PostgresStore keeps applications in the applications table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (models.Application, error) {
	var (
		app       models.Application
		status    string
		priority  string
		fields    []byte
		decidedAt sql.NullTime
	)
	err := row.Scan(
		&app.ID,
		&status,
		&priority,
		&app.Source,
		&app.SourceEmail,
		&fields,
		&app.ConfidenceScore,
		&app.DecisionNotes,
		&app.CreatedAt,
		&decidedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return models.Application{}, err
	}
	app.Status = models.Status(status)
	app.Priority = models.Priority(priority)
	if decidedAt.Valid {
		d := decidedAt.Time.UTC()
		app.DecidedAt = &d
	}
	app.CreatedAt = app.CreatedAt.UTC()
	app.UpdatedAt = app.UpdatedAt.UTC()
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &app.ExtractedFields); err != nil {
			return models.Application{}, err
		}
	}
	return app, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (s *PostgresStore) Get(ctx context.Context, id string) (models.Application, error) {
	query := `SELECT ` + selectColumns + ` FROM applications WHERE id = $1`
	app, err := scanApplication(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Application{}, apperrors.NewNotFoundError(id)
	}
	if err != nil {
		return models.Application{}, apperrors.NewQueryExecutionFailedError("select application", err)
	}
	return app, nil
}

func (s *PostgresStore) Create(ctx context.Context, app models.Application) error {
	fields, err := json.Marshal(nonNilFields(app.ExtractedFields))
	if err != nil {
		return apperrors.NewValidationFailedError("extracted fields are not serializable: " + err.Error())
	}

	query := `
		INSERT INTO applications (
			id, status, priority, source, source_email, extracted_fields,
			confidence_score, decision_notes, created_at, decided_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.db.ExecContext(ctx, query,
		app.ID,
		string(app.Status),
		string(app.Priority),
		app.Source,
		app.SourceEmail,
		fields,
		app.ConfidenceScore,
		app.DecisionNotes,
		app.CreatedAt,
		nullTime(app.DecidedAt),
		app.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return apperrors.NewConflictError(app.ID, "")
		}
		return apperrors.NewQueryExecutionFailedError("insert application", err)
	}
	return nil
}

// ConditionalUpdate is one UPDATE ... WHERE id AND status statement. When it
// touches no row a follow-up existence check tells NotFound from Conflict.
func (s *PostgresStore) ConditionalUpdate(ctx context.Context, id string, expected models.Status, patch models.StatusPatch) (models.Application, error) {
	query := `
		UPDATE applications
		SET status = $3, decided_at = $4, decision_notes = $5, updated_at = $6
		WHERE id = $1 AND status = $2
		RETURNING ` + selectColumns

	app, err := scanApplication(s.db.QueryRowContext(ctx, query,
		id,
		string(expected),
		string(patch.Status),
		nullTime(patch.DecidedAt),
		patch.DecisionNotes,
		patch.UpdatedAt,
	))
	if err == nil {
		return app, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Application{}, apperrors.NewQueryExecutionFailedError("conditional update", err)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM applications WHERE id = $1)`, id).Scan(&exists); err != nil {
		return models.Application{}, apperrors.NewQueryExecutionFailedError("check application", err)
	}
	if !exists {
		return models.Application{}, apperrors.NewNotFoundError(id)
	}
	return models.Application{}, apperrors.NewConflictError(id, string(expected))
}

func (s *PostgresStore) List(ctx context.Context, f models.ApplicationFilter) ([]models.Application, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 10000
	}
	query := `SELECT ` + selectColumns + `
		FROM applications
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR id > $2)
		ORDER BY id
		LIMIT $3`

	rows, err := s.db.QueryContext(ctx, query, string(f.Status), f.AfterID, limit)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("list applications", err)
	}
	defer rows.Close()

	var out []models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan application", err)
		}
		out = append(out, app)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("iterate applications", err)
	}
	return out, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM applications WHERE id = $1`, id)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("delete application", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewNotFoundError(id)
	}
	return nil
}

func (s *PostgresStore) UpdateFields(ctx context.Context, id string, fields map[string]interface{}) error {
	payload, err := json.Marshal(nonNilFields(fields))
	if err != nil {
		return apperrors.NewValidationFailedError("fields are not serializable: " + err.Error())
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE applications SET extracted_fields = extracted_fields || $2::jsonb, updated_at = $3 WHERE id = $1`,
		id, payload, time.Now().UTC(),
	)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("update extracted fields", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewNotFoundError(id)
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context, since time.Time) (models.ApplicationStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*), COUNT(*) FILTER (WHERE created_at >= $1)
		FROM applications
		GROUP BY status`, since)
	if err != nil {
		return models.ApplicationStats{}, apperrors.NewQueryExecutionFailedError("count applications", err)
	}
	defer rows.Close()

	var st models.ApplicationStats
	for rows.Next() {
		var status string
		var total, recent int
		if err := rows.Scan(&status, &total, &recent); err != nil {
			return models.ApplicationStats{}, apperrors.NewQueryExecutionFailedError("scan application counts", err)
		}
		st.Add(models.Status(status), total)
		st.ThisWeek += recent
	}
	if err := rows.Err(); err != nil {
		return models.ApplicationStats{}, apperrors.NewQueryExecutionFailedError("iterate application counts", err)
	}
	return st, nil
}

func nonNilFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return map[string]interface{}{}
	}
	return fields
}
