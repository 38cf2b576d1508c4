package mapping

import (
	"context"
	"database/sql"

	apperrors "admissions-lifecycle/internal/common/errors"
	"admissions-lifecycle/internal/models"
)

// Repository persists the mapping table.
type Repository interface {
	Load(ctx context.Context) ([]models.FieldMapping, error)
	Save(ctx context.Context, mappings []models.FieldMapping) error
}

// PostgresRepository stores the table in field_mappings, ordered by position.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Load(ctx context.Context) ([]models.FieldMapping, error) {
	query := `
		SELECT source_field, destination_field
		FROM field_mappings
		ORDER BY position
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("select field_mappings", err)
	}
	defer rows.Close()

	var out []models.FieldMapping
	for rows.Next() {
		var m models.FieldMapping
		if err := rows.Scan(&m.SourceField, &m.DestinationField); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("scan field_mappings", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Save replaces the stored table in one transaction.
func (r *PostgresRepository) Save(ctx context.Context, mappings []models.FieldMapping) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewDatabaseConnectionFailedError(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM field_mappings`); err != nil {
		return apperrors.NewQueryExecutionFailedError("delete field_mappings", err)
	}

	query := `
		INSERT INTO field_mappings (position, source_field, destination_field)
		VALUES ($1, $2, $3)
		ON CONFLICT (source_field) DO UPDATE SET
			position = EXCLUDED.position,
			destination_field = EXCLUDED.destination_field
	`
	for i, m := range mappings {
		if _, err := tx.ExecContext(ctx, query, i, m.SourceField, m.DestinationField); err != nil {
			return apperrors.NewQueryExecutionFailedError("insert field_mappings", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewQueryExecutionFailedError("commit field_mappings", err)
	}
	return nil
}
