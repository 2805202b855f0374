package repository

import (
	"context"
	"errors"

	"github.com/rpattn/bugboard/internal/domain"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a bug does not exist or belongs to another owner.
var ErrNotFound = errors.New("bug not found")

// BugRepository defines the persistence operations for bug records.
type BugRepository interface {
	Create(ctx context.Context, bug domain.Bug) (domain.Bug, error)
	CreateBatch(ctx context.Context, bugs []domain.Bug) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Bug, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Bug, error)
	List(ctx context.Context, ownerID string) ([]domain.Bug, error)
	Update(ctx context.Context, bug domain.Bug) (domain.Bug, error)
	Delete(ctx context.Context, id uuid.UUID, ownerID string) error
	DeleteAll(ctx context.Context, ownerID string) (int64, error)
}

// IngestionLogRepository persists row level ingestion failures.
type IngestionLogRepository interface {
	Record(ctx context.Context, entry domain.IngestionLogEntry) error
	List(ctx context.Context, ownerID string, fileName string, limit int, offset int) ([]domain.IngestionLogEntry, error)
}
