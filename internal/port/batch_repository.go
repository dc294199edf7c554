package port

import (
	"context"

	"github.com/google/uuid"

	"fiscora/internal/domain"
)

// BatchRepository persists batch job snapshots. The coordinator owns all
// in-memory state; the repository only records it for reporting and restart
// visibility.
type BatchRepository interface {
	Save(ctx context.Context, job *domain.BatchJob) error
	Get(ctx context.Context, id uuid.UUID) (*domain.BatchJob, error)
	List(ctx context.Context, offset, limit int) ([]domain.BatchJob, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
