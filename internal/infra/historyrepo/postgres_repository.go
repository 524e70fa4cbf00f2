package historyrepo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wellora/wellcheck/internal/domain/analysis"
)

// PostgresRepository implements analysis.Recorder using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Save persists a completed assessment. The full response is stored as
// JSONB; the columns queried by history views are lifted out.
func (r *PostgresRepository) Save(ctx context.Context, rec analysis.Record) error {
	payload, err := json.Marshal(rec.Response)
	if err != nil {
		return fmt.Errorf("encode assessment payload: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO assessments (id, user_id, allergy_history, sickness_probability, severity, response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		rec.ID,
		nullable(rec.UserID),
		nullable(rec.AllergyHistory),
		rec.Response.SicknessProbability,
		string(rec.Response.Severity),
		payload,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert assessment: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
