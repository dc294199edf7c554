package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fiscora/internal/domain"
	"fiscora/internal/port"
)

type batchJobRepo struct {
	db *sqlx.DB
}

// NewBatchJobRepo creates a new PostgreSQL-backed BatchRepository.
func NewBatchJobRepo(db *sqlx.DB) port.BatchRepository {
	return &batchJobRepo{db: db}
}

// batchJobRow is the flat storage shape; documents and config are JSONB.
type batchJobRow struct {
	ID          uuid.UUID  `db:"id"`
	Status      string     `db:"status"`
	Documents   []byte     `db:"documents"`
	Config      []byte     `db:"config"`
	CreatedAt   time.Time  `db:"created_at"`
	StartedAt   *time.Time `db:"started_at"`
	CompletedAt *time.Time `db:"completed_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func (r *batchJobRepo) Save(ctx context.Context, job *domain.BatchJob) error {
	docs, err := json.Marshal(job.Documents)
	if err != nil {
		return fmt.Errorf("batchJobRepo.Save: marshaling documents: %w", err)
	}
	cfg, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("batchJobRepo.Save: marshaling config: %w", err)
	}

	query := `INSERT INTO batch_jobs (
		id, status, documents, config, created_at, started_at, completed_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		status = EXCLUDED.status,
		documents = EXCLUDED.documents,
		started_at = EXCLUDED.started_at,
		completed_at = EXCLUDED.completed_at,
		updated_at = EXCLUDED.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		job.ID, string(job.Status), docs, cfg,
		job.CreatedAt, job.StartedAt, job.CompletedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("batchJobRepo.Save: %w", err)
	}
	return nil
}

func (r *batchJobRepo) Get(ctx context.Context, id uuid.UUID) (*domain.BatchJob, error) {
	var row batchJobRow
	err := r.db.GetContext(ctx, &row,
		"SELECT id, status, documents, config, created_at, started_at, completed_at, updated_at FROM batch_jobs WHERE id = $1",
		id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrBatchNotFound
		}
		return nil, fmt.Errorf("batchJobRepo.Get: %w", err)
	}
	return row.toDomain()
}

func (r *batchJobRepo) List(ctx context.Context, offset, limit int) ([]domain.BatchJob, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM batch_jobs"); err != nil {
		return nil, 0, fmt.Errorf("batchJobRepo.List: counting: %w", err)
	}

	var rows []batchJobRow
	err := r.db.SelectContext(ctx, &rows,
		`SELECT id, status, documents, config, created_at, started_at, completed_at, updated_at
		 FROM batch_jobs ORDER BY created_at DESC OFFSET $1 LIMIT $2`,
		offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("batchJobRepo.List: %w", err)
	}

	jobs := make([]domain.BatchJob, 0, len(rows))
	for _, row := range rows {
		job, err := row.toDomain()
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, total, nil
}

func (r *batchJobRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM batch_jobs WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("batchJobRepo.Delete: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return domain.ErrBatchNotFound
	}
	return nil
}

func (row batchJobRow) toDomain() (*domain.BatchJob, error) {
	job := &domain.BatchJob{
		ID:          row.ID,
		Status:      domain.BatchStatus(row.Status),
		CreatedAt:   row.CreatedAt,
		StartedAt:   row.StartedAt,
		CompletedAt: row.CompletedAt,
	}
	if err := json.Unmarshal(row.Documents, &job.Documents); err != nil {
		return nil, fmt.Errorf("batchJobRepo: unmarshaling documents for %s: %w", row.ID, err)
	}
	if err := json.Unmarshal(row.Config, &job.Config); err != nil {
		return nil, fmt.Errorf("batchJobRepo: unmarshaling config for %s: %w", row.ID, err)
	}
	return job, nil
}
