// Package experiments orchestrates the experiment store, the read cache,
// and the significance engine behind one service type.
package experiments

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/splitlab/splitlab/internal/cache"
	"github.com/splitlab/splitlab/internal/stats"
	"github.com/splitlab/splitlab/internal/store"
)

type Service struct {
	store  store.Store
	cache  cache.Cache
	logger *zap.Logger
}

func NewService(s store.Store, c cache.Cache, logger *zap.Logger) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, cache: c, logger: logger}
}

func (s *Service) CreateTest(ctx context.Context, def *store.TestDefinition) (*store.Test, error) {
	test, err := s.store.CreateTest(ctx, def)
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(cache.ActiveTestsKey)
	s.logger.Info("test created",
		zap.String("test_id", test.ID),
		zap.String("name", test.Name),
		zap.Int("variants", len(test.Variants)))

	return test, nil
}

func (s *Service) GetTest(ctx context.Context, id string) (*store.Test, error) {
	if v, ok := s.cache.Get(cache.TestKey(id)); ok {
		return v.(*store.Test), nil
	}

	test, err := s.store.GetTest(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.Set(cache.TestKey(id), test)
	return test, nil
}

func (s *Service) ListTests(ctx context.Context) ([]*store.Test, error) {
	return s.store.ListTests(ctx)
}

func (s *Service) ListActiveTests(ctx context.Context) ([]*store.Test, error) {
	if v, ok := s.cache.Get(cache.ActiveTestsKey); ok {
		return v.([]*store.Test), nil
	}

	tests, err := s.store.ListActiveTests(ctx)
	if err != nil {
		return nil, err
	}

	s.cache.Set(cache.ActiveTestsKey, tests)
	return tests, nil
}

func (s *Service) UpdateTest(ctx context.Context, id string, update *store.TestUpdate) (*store.Test, error) {
	test, err := s.store.UpdateTest(ctx, id, update)
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(cache.TestKey(id))
	s.cache.Invalidate(cache.ActiveTestsKey)
	s.logger.Info("test updated", zap.String("test_id", id))

	return test, nil
}

func (s *Service) DeleteTest(ctx context.Context, id string) error {
	if err := s.store.DeleteTest(ctx, id); err != nil {
		return err
	}

	s.cache.Invalidate(cache.TestKey(id))
	s.cache.Invalidate(cache.ActiveTestsKey)
	s.logger.Info("test deleted", zap.String("test_id", id))

	return nil
}

func (s *Service) RecordImpression(ctx context.Context, testID, variantID string) error {
	if err := s.store.RecordImpression(ctx, testID, variantID); err != nil {
		return err
	}

	// An impression changes the cached counts and can promote a draft test
	// to running, which changes active-list membership.
	s.cache.Invalidate(cache.TestKey(testID))
	s.cache.Invalidate(cache.ActiveTestsKey)

	return nil
}

func (s *Service) RecordConversion(ctx context.Context, testID, variantID string) error {
	if err := s.store.RecordConversion(ctx, testID, variantID); err != nil {
		return err
	}

	s.cache.Invalidate(cache.TestKey(testID))

	return nil
}

// EvaluateSignificance runs the z-test pass over a test. When a challenger
// is a significant winner and the test is still running, the test completes
// and records the winner. "No winner yet" is a normal result, not an error.
//
// The read goes straight to the store so the decision is made against fresh
// counts, never a cached view.
func (s *Service) EvaluateSignificance(ctx context.Context, testID string) (*stats.Result, error) {
	test, err := s.store.GetTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	result, err := stats.Evaluate(test)
	if err != nil {
		if err == stats.ErrNoControl {
			s.logger.Error("test has no control variant", zap.String("test_id", testID))
			return nil, fmt.Errorf("%w: test %s has no control variant", store.ErrInvalidState, testID)
		}
		return nil, err
	}

	if result.HasWinner && test.Status == store.StatusRunning {
		if err := s.store.SetWinner(ctx, testID, result.WinningVariantID); err != nil {
			return nil, fmt.Errorf("failed to complete test: %w", err)
		}
		s.cache.Invalidate(cache.TestKey(testID))
		s.cache.Invalidate(cache.ActiveTestsKey)
		s.logger.Info("test completed",
			zap.String("test_id", testID),
			zap.String("winning_variant_id", result.WinningVariantID),
			zap.Float64("confidence_level", result.ConfidenceLevel))
	}

	return result, nil
}
