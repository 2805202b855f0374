package ingestion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rpattn/bugboard/internal/domain"
	"github.com/rpattn/bugboard/internal/repository"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubBugRepo struct {
	repository.BugRepository

	mu      sync.Mutex
	batches [][]domain.Bug
	failOn  int
}

func (s *stubBugRepo) CreateBatch(_ context.Context, bugs []domain.Bug) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, bugs)
	if s.failOn > 0 && len(s.batches) == s.failOn {
		return errors.New("disk full")
	}
	return nil
}

func (s *stubBugRepo) stored() []domain.Bug {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Bug
	for _, batch := range s.batches {
		out = append(out, batch...)
	}
	return out
}

type stubLogRepo struct {
	mu      sync.Mutex
	entries []domain.IngestionLogEntry
}

func (s *stubLogRepo) Record(_ context.Context, entry domain.IngestionLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *stubLogRepo) List(context.Context, string, string, int, int) ([]domain.IngestionLogEntry, error) {
	return s.entries, nil
}

func TestServiceIngestStoresRecordsInBatches(t *testing.T) {
	bugRepo := &stubBugRepo{}
	logRepo := &stubLogRepo{}
	service := NewService(bugRepo, logRepo, WithBatchSize(2), WithConcurrency(2))

	var sb strings.Builder
	sb.WriteString("ScenarioID,Status\n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&sb, "SC-%d,open\n", i)
	}

	summary, err := service.Ingest(context.Background(), Request{
		OwnerID:  "device-1",
		FileName: "bugs.csv",
		Data:     strings.NewReader(sb.String()),
	})
	require.NoError(t, err)
	assert.Equal(t, Summary{FileName: "bugs.csv", Inserted: 5, Batches: 3}, summary)
	assert.Empty(t, logRepo.entries)

	stored := bugRepo.stored()
	require.Len(t, stored, 5)
	byScenario := map[string]domain.Bug{}
	for _, b := range stored {
		assert.Equal(t, "device-1", b.OwnerID)
		assert.NotEqual(t, uuid.Nil, b.ID)
		byScenario[b.ScenarioID] = b
	}
	for i := 2; i <= 5; i++ {
		prev, cur := byScenario[fmt.Sprintf("SC-%d", i-1)], byScenario[fmt.Sprintf("SC-%d", i)]
		assert.True(t, cur.CreatedAt.After(prev.CreatedAt), "creation times must follow file order")
	}
}

func TestServiceIngestRejectsWholeFile(t *testing.T) {
	bugRepo := &stubBugRepo{}
	logRepo := &stubLogRepo{}
	service := NewService(bugRepo, logRepo)

	_, err := service.Ingest(context.Background(), Request{
		OwnerID:  "device-1",
		FileName: "bugs.json",
		Data:     strings.NewReader(`[{"Status": "open"}, {"Browser": "Edge"}, {"Comments": "  "}]`),
	})
	require.ErrorIs(t, err, ErrInvalidRecords)
	assert.Empty(t, bugRepo.stored())

	require.Len(t, logRepo.entries, 2)
	assert.Equal(t, 2, *logRepo.entries[0].RowNumber)
	assert.Equal(t, 3, *logRepo.entries[1].RowNumber)
	assert.Equal(t, "bugs.json", logRepo.entries[0].FileName)
}

func TestServiceIngestLogsParseFailure(t *testing.T) {
	logRepo := &stubLogRepo{}
	service := NewService(&stubBugRepo{}, logRepo)

	_, err := service.Ingest(context.Background(), Request{OwnerID: "device-1", FileName: "bugs.pdf", Data: strings.NewReader("x")})
	require.ErrorIs(t, err, ErrUnsupportedFormat)
	require.Len(t, logRepo.entries, 1)
	assert.Nil(t, logRepo.entries[0].RowNumber)
}

func TestServiceIngestStoreFailure(t *testing.T) {
	bugRepo := &stubBugRepo{failOn: 1}
	logRepo := &stubLogRepo{}
	service := NewService(bugRepo, logRepo, WithBatchSize(1), WithConcurrency(1))

	_, err := service.Ingest(context.Background(), Request{
		OwnerID:  "device-1",
		FileName: "bugs.csv",
		Data:     strings.NewReader("Status\nopen\nclosed\n"),
	})
	require.ErrorIs(t, err, ErrStore)
	assert.Len(t, logRepo.entries, 1)
}

func TestServiceIngestRequiresOwner(t *testing.T) {
	service := NewService(&stubBugRepo{}, nil)
	_, err := service.Ingest(context.Background(), Request{FileName: "bugs.csv", Data: strings.NewReader("Status\nopen\n")})
	assert.Error(t, err)
}
