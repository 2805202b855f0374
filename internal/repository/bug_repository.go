package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/rpattn/bugboard/internal/db"
	"github.com/rpattn/bugboard/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const bugColumns = `id, owner_id, fields, created_at, updated_at`

type bugRepository struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewBugRepository wires a bug repository backed by pgxpool. Transaction
// rollback failures are reported on logger.
func NewBugRepository(pool *pgxpool.Pool, logger *zap.Logger) BugRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &bugRepository{pool: pool, logger: logger}
}

func (r *bugRepository) Create(ctx context.Context, bug domain.Bug) (domain.Bug, error) {
	bug = prepareForInsert(bug)
	fields, err := encodeFields(bug)
	if err != nil {
		return domain.Bug{}, err
	}

	row := r.pool.QueryRow(
		ctx,
		`INSERT INTO bugs (id, owner_id, fields, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+bugColumns,
		bug.ID, bug.OwnerID, fields, bug.CreatedAt, bug.UpdatedAt,
	)
	created, err := scanBug(row)
	if err != nil {
		return domain.Bug{}, fmt.Errorf("failed to create bug: %w", err)
	}
	return created, nil
}

func (r *bugRepository) CreateBatch(ctx context.Context, bugs []domain.Bug) error {
	if len(bugs) == 0 {
		return nil
	}

	return db.WithTx(ctx, r.pool, r.logger, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, bug := range bugs {
			bug = prepareForInsert(bug)
			fields, err := encodeFields(bug)
			if err != nil {
				return err
			}
			batch.Queue(
				`INSERT INTO bugs (id, owner_id, fields, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
				bug.ID, bug.OwnerID, fields, bug.CreatedAt, bug.UpdatedAt,
			)
		}

		results := tx.SendBatch(ctx, batch)
		for i := range bugs {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return fmt.Errorf("failed to insert bug %d of batch: %w", i+1, err)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("failed to close batch: %w", err)
		}
		return nil
	})
}

func (r *bugRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Bug, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bugColumns+` FROM bugs WHERE id = $1`, id)
	bug, err := scanBug(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bug{}, ErrNotFound
		}
		return domain.Bug{}, fmt.Errorf("failed to get bug: %w", err)
	}
	return bug, nil
}

func (r *bugRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Bug, error) {
	if len(ids) == 0 {
		return []domain.Bug{}, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT `+bugColumns+` FROM bugs WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to get bugs: %w", err)
	}
	return collectBugs(rows)
}

func (r *bugRepository) List(ctx context.Context, ownerID string) ([]domain.Bug, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT `+bugColumns+` FROM bugs WHERE owner_id = $1 ORDER BY created_at, id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bugs: %w", err)
	}
	return collectBugs(rows)
}

func (r *bugRepository) Update(ctx context.Context, bug domain.Bug) (domain.Bug, error) {
	fields, err := encodeFields(bug)
	if err != nil {
		return domain.Bug{}, err
	}
	row := r.pool.QueryRow(
		ctx,
		`UPDATE bugs SET fields = $3, updated_at = $4
		 WHERE id = $1 AND owner_id = $2
		 RETURNING `+bugColumns,
		bug.ID, bug.OwnerID, fields, bug.UpdatedAt,
	)
	updated, err := scanBug(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bug{}, ErrNotFound
		}
		return domain.Bug{}, fmt.Errorf("failed to update bug: %w", err)
	}
	return updated, nil
}

func (r *bugRepository) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bugs WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete bug: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *bugRepository) DeleteAll(ctx context.Context, ownerID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM bugs WHERE owner_id = $1`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete bugs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanBug(row pgx.Row) (domain.Bug, error) {
	var (
		id        uuid.UUID
		ownerID   string
		fields    []byte
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &ownerID, &fields, &createdAt, &updatedAt); err != nil {
		return domain.Bug{}, err
	}
	return decodeBug(id, ownerID, fields, createdAt.Time, updatedAt.Time)
}

func collectBugs(rows pgx.Rows) ([]domain.Bug, error) {
	defer rows.Close()

	bugs := []domain.Bug{}
	for rows.Next() {
		bug, err := scanBug(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bug: %w", err)
		}
		bugs = append(bugs, bug)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bugs: %w", err)
	}
	return bugs, nil
}
