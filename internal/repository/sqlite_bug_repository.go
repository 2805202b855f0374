package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/bugboard/internal/domain"

	"github.com/google/uuid"
)

type sqliteBugRepository struct {
	db *sql.DB
}

// NewSQLiteBugRepository wires a bug repository backed by an embedded sqlite file.
func NewSQLiteBugRepository(db *sql.DB) BugRepository {
	return &sqliteBugRepository{db: db}
}

func (r *sqliteBugRepository) Create(ctx context.Context, bug domain.Bug) (domain.Bug, error) {
	bug = prepareForInsert(bug)
	if err := insertSQLiteBug(ctx, r.db, bug); err != nil {
		return domain.Bug{}, fmt.Errorf("failed to create bug: %w", err)
	}
	return r.GetByID(ctx, bug.ID)
}

func (r *sqliteBugRepository) CreateBatch(ctx context.Context, bugs []domain.Bug) error {
	if len(bugs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for i, bug := range bugs {
		if err := insertSQLiteBug(ctx, tx, prepareForInsert(bug)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert bug %d of batch: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (r *sqliteBugRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Bug, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+bugColumns+` FROM bugs WHERE id = ?`, id.String())
	bug, err := scanSQLiteBug(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Bug{}, ErrNotFound
		}
		return domain.Bug{}, fmt.Errorf("failed to get bug: %w", err)
	}
	return bug, nil
}

func (r *sqliteBugRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Bug, error) {
	if len(ids) == 0 {
		return []domain.Bug{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id.String()
	}
	rows, err := r.db.QueryContext(ctx, `SELECT `+bugColumns+` FROM bugs WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get bugs: %w", err)
	}
	return collectSQLiteBugs(rows)
}

func (r *sqliteBugRepository) List(ctx context.Context, ownerID string) ([]domain.Bug, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT `+bugColumns+` FROM bugs WHERE owner_id = ? ORDER BY created_at, id`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list bugs: %w", err)
	}
	return collectSQLiteBugs(rows)
}

func (r *sqliteBugRepository) Update(ctx context.Context, bug domain.Bug) (domain.Bug, error) {
	fields, err := encodeFields(bug)
	if err != nil {
		return domain.Bug{}, err
	}
	if bug.UpdatedAt.IsZero() {
		bug.UpdatedAt = time.Now().UTC()
	}
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE bugs SET fields = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		string(fields), formatTime(bug.UpdatedAt), bug.ID.String(), bug.OwnerID,
	)
	if err != nil {
		return domain.Bug{}, fmt.Errorf("failed to update bug: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return domain.Bug{}, ErrNotFound
	}
	return r.GetByID(ctx, bug.ID)
}

func (r *sqliteBugRepository) Delete(ctx context.Context, id uuid.UUID, ownerID string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bugs WHERE id = ? AND owner_id = ?`, id.String(), ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete bug: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqliteBugRepository) DeleteAll(ctx context.Context, ownerID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM bugs WHERE owner_id = ?`, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete bugs: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted bugs: %w", err)
	}
	return affected, nil
}

type sqlExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertSQLiteBug(ctx context.Context, exec sqlExecer, bug domain.Bug) error {
	fields, err := encodeFields(bug)
	if err != nil {
		return err
	}
	_, err = exec.ExecContext(
		ctx,
		`INSERT INTO bugs (id, owner_id, fields, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		bug.ID.String(), bug.OwnerID, string(fields), formatTime(bug.CreatedAt), formatTime(bug.UpdatedAt),
	)
	return err
}

type sqlScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteBug(row sqlScanner) (domain.Bug, error) {
	var (
		rawID     string
		ownerID   string
		fields    string
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&rawID, &ownerID, &fields, &createdAt, &updatedAt); err != nil {
		return domain.Bug{}, err
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return domain.Bug{}, fmt.Errorf("invalid bug id %q: %w", rawID, err)
	}
	return decodeBug(id, ownerID, []byte(fields), parseStoredTime(createdAt), parseStoredTime(updatedAt))
}

func collectSQLiteBugs(rows *sql.Rows) ([]domain.Bug, error) {
	defer rows.Close()

	bugs := []domain.Bug{}
	for rows.Next() {
		bug, err := scanSQLiteBug(rows)
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

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseStoredTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
