package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rpattn/bugboard/internal/domain"

	"github.com/google/uuid"
)

const (
	defaultLogLimit = 200
	timeLayout      = "2006-01-02T15:04:05.000000000Z07:00"
)

func encodeFields(bug domain.Bug) ([]byte, error) {
	payload, err := json.Marshal(bug.Document())
	if err != nil {
		return nil, fmt.Errorf("failed to encode bug fields: %w", err)
	}
	return payload, nil
}

func decodeBug(id uuid.UUID, ownerID string, fields []byte, createdAt, updatedAt time.Time) (domain.Bug, error) {
	var bug domain.Bug
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &bug); err != nil {
			return domain.Bug{}, fmt.Errorf("failed to decode bug fields: %w", err)
		}
	}
	bug.ID = id
	bug.OwnerID = ownerID
	bug.CreatedAt = createdAt.UTC()
	bug.UpdatedAt = updatedAt.UTC()
	return bug, nil
}

// prepareForInsert assigns an identifier and timestamps when missing.
func prepareForInsert(bug domain.Bug) domain.Bug {
	if bug.ID == uuid.Nil {
		bug.ID = uuid.New()
	}
	now := time.Now().UTC()
	if bug.CreatedAt.IsZero() {
		bug.CreatedAt = now
	}
	if bug.UpdatedAt.IsZero() {
		bug.UpdatedAt = bug.CreatedAt
	}
	return bug
}

func normalizeLimit(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLogLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
