// Package bugloader batches bug lookups by identifier within one request.
package bugloader

import (
	"context"
	"fmt"
	"time"

	"github.com/rpattn/bugboard/internal/domain"
	"github.com/rpattn/bugboard/internal/repository"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"
)

// BatchWait is how long the loader collects keys before querying.
const BatchWait = 5 * time.Millisecond

// BugLoader coalesces concurrent GetByID calls into one GetByIDs query.
type BugLoader struct {
	Loader *dataloader.Loader
}

// NewBugLoader creates a loader reading from repo. The loader caches results,
// so create one per request.
func NewBugLoader(repo repository.BugRepository) *BugLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		results := make([]*dataloader.Result, len(keys))

		ids := make([]uuid.UUID, 0, len(keys))
		parsed := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			id, err := uuid.Parse(k.String())
			if err != nil {
				results[i] = &dataloader.Result{Error: fmt.Errorf("invalid UUID: %w", err)}
				continue
			}
			parsed[i] = id
			ids = append(ids, id)
		}

		bugs, err := repo.GetByIDs(ctx, ids)
		if err != nil {
			for i := range results {
				if results[i] == nil {
					results[i] = &dataloader.Result{Error: err}
				}
			}
			return results
		}

		byID := make(map[uuid.UUID]domain.Bug, len(bugs))
		for _, b := range bugs {
			byID[b.ID] = b
		}

		// results follow key order
		for i, id := range parsed {
			if results[i] != nil {
				continue
			}
			if b, ok := byID[id]; ok {
				results[i] = &dataloader.Result{Data: b}
			} else {
				results[i] = &dataloader.Result{Error: repository.ErrNotFound}
			}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(BatchWait))

	return &BugLoader{Loader: loader}
}

// Load fetches one bug. It returns repository.ErrNotFound for unknown ids.
func (l *BugLoader) Load(ctx context.Context, id uuid.UUID) (domain.Bug, error) {
	data, err := l.Loader.Load(ctx, dataloader.StringKey(id.String()))()
	if err != nil {
		return domain.Bug{}, err
	}
	bug, ok := data.(domain.Bug)
	if !ok {
		return domain.Bug{}, fmt.Errorf("unexpected loader value %T", data)
	}
	return bug, nil
}

// LoadMany fetches several bugs in one batch. Results and errors follow ids.
func (l *BugLoader) LoadMany(ctx context.Context, ids []uuid.UUID) ([]domain.Bug, []error) {
	keys := make(dataloader.Keys, len(ids))
	for i, id := range ids {
		keys[i] = dataloader.StringKey(id.String())
	}
	data, loadErrs := l.Loader.LoadMany(ctx, keys)()

	bugs := make([]domain.Bug, len(ids))
	errs := make([]error, len(ids))
	for i := range ids {
		if i < len(loadErrs) && loadErrs[i] != nil {
			errs[i] = loadErrs[i]
			continue
		}
		if i >= len(data) {
			errs[i] = repository.ErrNotFound
			continue
		}
		bug, ok := data[i].(domain.Bug)
		if !ok {
			errs[i] = fmt.Errorf("unexpected loader value %T", data[i])
			continue
		}
		bugs[i] = bug
	}
	return bugs, errs
}

// Prime replaces the cached value for bug.ID so later loads in the request
// see the stored version.
func (l *BugLoader) Prime(ctx context.Context, bug domain.Bug) {
	key := dataloader.StringKey(bug.ID.String())
	l.Loader.Clear(ctx, key).Prime(ctx, key, bug)
}
