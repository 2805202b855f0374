package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rpattn/bugboard/internal/domain"
	"github.com/rpattn/bugboard/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrStore wraps repository failures while persisting an accepted upload.
var ErrStore = errors.New("failed to store records")

const (
	defaultConcurrency = 4
	defaultBatchSize   = 100
)

// Service ingests uploaded bug files into the repository.
type Service struct {
	bugRepo     repository.BugRepository
	logRepo     repository.IngestionLogRepository
	logger      *zap.Logger
	concurrency int
	batchSize   int
	now         func() time.Time
}

// Option configures optional service behaviour.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithConcurrency bounds how many batches are written at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithBatchSize sets how many records each repository call inserts.
func WithBatchSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// NewService creates a new ingestion service.
func NewService(bugRepo repository.BugRepository, logRepo repository.IngestionLogRepository, opts ...Option) *Service {
	s := &Service{
		bugRepo:     bugRepo,
		logRepo:     logRepo,
		logger:      zap.NewNop(),
		concurrency: defaultConcurrency,
		batchSize:   defaultBatchSize,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Request describes the ingestion input.
type Request struct {
	OwnerID  string
	FileName string
	Data     io.Reader
}

// Summary returns ingestion level metrics.
type Summary struct {
	FileName string `json:"fileName"`
	Inserted int    `json:"inserted"`
	Batches  int    `json:"batches"`
}

// Ingest parses the upload and stores every record for the owner. The upload
// is all or nothing at the validation stage: one invalid row rejects the
// file and every invalid row is written to the ingestion log.
func (s *Service) Ingest(ctx context.Context, req Request) (Summary, error) {
	summary := Summary{FileName: req.FileName}

	if req.OwnerID == "" {
		return summary, errors.New("owner id is required")
	}
	if req.Data == nil {
		return summary, errors.New("upload data is required")
	}

	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return summary, fmt.Errorf("failed to read upload: %w", err)
	}

	bugs, err := ParseBugs(req.FileName, payload)
	if err != nil {
		var validation *ValidationError
		if errors.As(err, &validation) {
			for _, rowErr := range validation.Rows {
				row := rowErr.Row
				s.logIngestionError(ctx, req, &row, errors.New(rowErr.Message))
			}
		} else {
			s.logIngestionError(ctx, req, nil, err)
		}
		s.logger.Warn("upload rejected",
			zap.String("owner", req.OwnerID),
			zap.String("file", req.FileName),
			zap.Error(err),
		)
		return summary, err
	}

	// stamp owner and strictly increasing creation times so listings keep file order
	base := s.now()
	for i := range bugs {
		bugs[i] = bugs[i].WithOwner(req.OwnerID)
		bugs[i].CreatedAt = base.Add(time.Duration(i) * time.Microsecond)
		bugs[i].UpdatedAt = bugs[i].CreatedAt
	}

	batches := chunk(bugs, s.batchSize)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)
	for i, batch := range batches {
		group.Go(func() error {
			if err := s.bugRepo.CreateBatch(groupCtx, batch); err != nil {
				return fmt.Errorf("batch %d: %w", i+1, err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		s.logIngestionError(ctx, req, nil, err)
		return summary, fmt.Errorf("%w: %w", ErrStore, err)
	}

	summary.Inserted = len(bugs)
	summary.Batches = len(batches)
	s.logger.Info("upload stored",
		zap.String("owner", req.OwnerID),
		zap.String("file", req.FileName),
		zap.Int("records", summary.Inserted),
		zap.Int("batches", summary.Batches),
	)
	return summary, nil
}

func chunk(bugs []domain.Bug, size int) [][]domain.Bug {
	var batches [][]domain.Bug
	for start := 0; start < len(bugs); start += size {
		end := min(start+size, len(bugs))
		batches = append(batches, bugs[start:end])
	}
	return batches
}

func (s *Service) logIngestionError(ctx context.Context, req Request, rowNumber *int, err error) {
	if s.logRepo == nil || err == nil {
		return
	}
	entry := domain.IngestionLogEntry{
		OwnerID:      req.OwnerID,
		FileName:     req.FileName,
		RowNumber:    rowNumber,
		ErrorMessage: err.Error(),
	}
	if recordErr := s.logRepo.Record(ctx, entry); recordErr != nil {
		s.logger.Error("failed to record ingestion log", zap.Error(recordErr))
	}
}
