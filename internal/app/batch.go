package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/admit/internal/domain/resolve"
	"github.com/okian/admit/pkg/logger"
	"github.com/okian/admit/pkg/metrics"
)

// Batch operation names.
const (
	OpPredictBatch   = "predict_batch"
	OpRecommendBatch = "recommend_batch"
)

// ProbabilityItem is one entry of a probability batch.
type ProbabilityItem struct {
	ID string `json:"id,omitempty"`
	ProbabilityRequest
}

// RecommendationItem is one entry of a recommendation batch.
type RecommendationItem struct {
	ID string `json:"id,omitempty"`
	RecommendationRequest
}

// ItemError describes why one batch entry failed.
type ItemError struct {
	Kind        string               `json:"kind"`
	Message     string               `json:"message"`
	Suggestions []resolve.Suggestion `json:"suggestions,omitempty"`
}

// BatchResult is the outcome of one batch entry, in request order.
type BatchResult struct {
	ID      string     `json:"id"`
	Success bool       `json:"success"`
	Result  any        `json:"result,omitempty"`
	Error   *ItemError `json:"error,omitempty"`
}

// PredictBatch runs PredictProbability for every item. One failing item never
// fails the batch; only an oversized batch does.
func (s *Service) PredictBatch(ctx context.Context, items []ProbabilityItem) ([]BatchResult, error) {
	return runBatch(ctx, s, OpPredictBatch, items,
		func(it ProbabilityItem) string { return it.ID },
		func(ctx context.Context, it ProbabilityItem) (any, error) {
			return s.PredictProbability(ctx, it.ProbabilityRequest)
		})
}

// RecommendBatch runs RecommendFields for every item.
func (s *Service) RecommendBatch(ctx context.Context, items []RecommendationItem) ([]BatchResult, error) {
	return runBatch(ctx, s, OpRecommendBatch, items,
		func(it RecommendationItem) string { return it.ID },
		func(ctx context.Context, it RecommendationItem) (any, error) {
			return s.RecommendFields(ctx, it.RecommendationRequest)
		})
}

func runBatch[T any](
	ctx context.Context,
	s *Service,
	op string,
	items []T,
	id func(T) string,
	run func(context.Context, T) (any, error),
) ([]BatchResult, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if len(items) > s.batchMaxItems {
		return nil, validationf("batch has %d items, at most %d allowed", len(items), s.batchMaxItems)
	}

	results := make([]BatchResult, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(s.batchConcurrency, len(items))))

	for i, it := range items {
		i, it := i, it
		g.Go(func() error {
			itemID := id(it)
			if itemID == "" {
				itemID = uuid.NewString()
			}
			results[i] = s.runItem(gctx, op, itemID, func(ctx context.Context) (any, error) {
				return run(ctx, it)
			})
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// runItem isolates one entry: errors and panics become an error entry.
func (s *Service) runItem(ctx context.Context, op, id string, fn func(context.Context) (any, error)) (res BatchResult) {
	res.ID = id
	defer func() {
		if r := recover(); r != nil {
			res = s.failed(ctx, op, id, fmt.Errorf("item panicked: %v", r))
		}
	}()

	if err := ctx.Err(); err != nil {
		return s.failed(ctx, op, id, err)
	}
	out, err := fn(ctx)
	if err != nil {
		return s.failed(ctx, op, id, err)
	}
	s.counters.batchItems.Add(1)
	metrics.RecordBatchItem(op, "success")
	res.Success, res.Result = true, out
	return res
}

func (s *Service) failed(ctx context.Context, op, id string, err error) BatchResult {
	s.counters.batchItems.Add(1)
	metrics.RecordBatchItem(op, "error")
	s.logger.Warn(ctx, "batch item failed",
		logger.String("operation", op),
		logger.String("id", id),
		logger.String("kind", Kind(err)),
		logger.Error(err))

	ie := &ItemError{Kind: Kind(err), Message: err.Error()}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		ie.Suggestions = nf.Suggestions
	}
	return BatchResult{ID: id, Error: ie}
}
