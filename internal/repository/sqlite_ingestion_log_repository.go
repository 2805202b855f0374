package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rpattn/bugboard/internal/domain"

	"github.com/google/uuid"
)

type sqliteIngestionLogRepository struct {
	db *sql.DB
}

// NewSQLiteIngestionLogRepository wires an ingestion log repository backed by sqlite.
func NewSQLiteIngestionLogRepository(db *sql.DB) IngestionLogRepository {
	return &sqliteIngestionLogRepository{db: db}
}

func (r *sqliteIngestionLogRepository) Record(ctx context.Context, entry domain.IngestionLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var rowNumber sql.NullInt64
	if entry.RowNumber != nil {
		rowNumber = sql.NullInt64{Int64: int64(*entry.RowNumber), Valid: true}
	}

	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO ingestion_logs (id, owner_id, file_name, row_number, error_message, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID.String(),
		entry.OwnerID,
		entry.FileName,
		rowNumber,
		entry.ErrorMessage,
		formatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to record ingestion log: %w", err)
	}
	return nil
}

func (r *sqliteIngestionLogRepository) List(ctx context.Context, ownerID string, fileName string, limit int, offset int) ([]domain.IngestionLogEntry, error) {
	limit, offset = normalizeLimit(limit, offset)

	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, owner_id, file_name, row_number, error_message, created_at
		 FROM ingestion_logs
		 WHERE owner_id = ?
		   AND (? = '' OR file_name = ?)
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		ownerID, fileName, fileName, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list ingestion logs: %w", err)
	}
	defer rows.Close()

	logs := []domain.IngestionLogEntry{}
	for rows.Next() {
		var (
			entry     domain.IngestionLogEntry
			rawID     string
			rowNumber sql.NullInt64
			createdAt string
		)
		if err := rows.Scan(&rawID, &entry.OwnerID, &entry.FileName, &rowNumber, &entry.ErrorMessage, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan ingestion log: %w", err)
		}
		if entry.ID, err = uuid.Parse(rawID); err != nil {
			return nil, fmt.Errorf("invalid ingestion log id %q: %w", rawID, err)
		}
		if rowNumber.Valid {
			value := int(rowNumber.Int64)
			entry.RowNumber = &value
		}
		entry.CreatedAt = parseStoredTime(createdAt)
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ingestion logs: %w", err)
	}
	return logs, nil
}
