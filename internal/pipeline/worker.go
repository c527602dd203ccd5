package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"golang.org/x/sync/errgroup"
)

// computeGroups fans independent per-group computations out over a
// bounded worker pool. Results keep the sorted group-key order. A panic
// in one group fails the whole computation.
func computeGroups[T any](ctx context.Context, workers int, groups map[domain.GroupKey][]domain.LedgerRecord, fn func([]domain.LedgerRecord) (T, bool)) ([]T, error) {
	keys := make([]domain.GroupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	results := make([]T, len(keys))
	present := make([]bool, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("group %s: panic: %v", key, r)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], present[i] = fn(groups[key])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]T, 0, len(keys))
	for i, ok := range present {
		if ok {
			out = append(out, results[i])
		}
	}
	return out, nil
}
