package experiments_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/splitlab/splitlab/internal/cache"
	"github.com/splitlab/splitlab/internal/experiments"
	"github.com/splitlab/splitlab/internal/store"
	"github.com/splitlab/splitlab/tests/testutil"
)

func setupService(t *testing.T, c cache.Cache) *experiments.Service {
	t.Helper()
	return experiments.NewService(testutil.SetupTestStore(t), c, zap.NewNop())
}

// seedCounts records events until the variant reaches the given counts.
func seedCounts(t *testing.T, svc *experiments.Service, testID, variantID string, impressions, conversions int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < impressions; i++ {
		require.NoError(t, svc.RecordImpression(ctx, testID, variantID))
	}
	for i := 0; i < conversions; i++ {
		require.NoError(t, svc.RecordConversion(ctx, testID, variantID))
	}
}

func TestEvaluateSignificance_CompletesOnWinner(t *testing.T) {
	svc := setupService(t, cache.Noop{})
	ctx := context.Background()

	test, err := svc.CreateTest(ctx, testutil.TwoVariantDefinition("hero"))
	require.NoError(t, err)
	control, challenger := test.Variants[0], test.Variants[1]

	seedCounts(t, svc, test.ID, control.ID, 1000, 50)
	seedCounts(t, svc, test.ID, challenger.ID, 1000, 80)

	result, err := svc.EvaluateSignificance(ctx, test.ID)
	require.NoError(t, err)

	assert.True(t, result.HasWinner)
	assert.Equal(t, challenger.ID, result.WinningVariantID)

	got, err := svc.GetTest(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, got.Status)
	assert.Equal(t, challenger.ID, got.WinningVariantID)

	// Completed tests leave the active list.
	active, err := svc.ListActiveTests(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestEvaluateSignificance_NoWinnerKeepsRunning(t *testing.T) {
	svc := setupService(t, cache.Noop{})
	ctx := context.Background()

	test, err := svc.CreateTest(ctx, testutil.TwoVariantDefinition("hero"))
	require.NoError(t, err)

	seedCounts(t, svc, test.ID, test.Variants[0].ID, 100, 5)
	seedCounts(t, svc, test.ID, test.Variants[1].ID, 100, 6)

	result, err := svc.EvaluateSignificance(ctx, test.ID)
	require.NoError(t, err)

	assert.False(t, result.HasWinner)

	got, err := svc.GetTest(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusRunning, got.Status, "no-winner evaluation must not change status")
}

func TestEvaluateSignificance_Idempotent(t *testing.T) {
	svc := setupService(t, cache.Noop{})
	ctx := context.Background()

	test, err := svc.CreateTest(ctx, testutil.TwoVariantDefinition("hero"))
	require.NoError(t, err)

	seedCounts(t, svc, test.ID, test.Variants[0].ID, 1000, 50)
	seedCounts(t, svc, test.ID, test.Variants[1].ID, 1000, 80)

	first, err := svc.EvaluateSignificance(ctx, test.ID)
	require.NoError(t, err)
	second, err := svc.EvaluateSignificance(ctx, test.ID)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestEvaluateSignificance_NotFound(t *testing.T) {
	svc := setupService(t, cache.Noop{})

	_, err := svc.EvaluateSignificance(context.Background(), "no-such-id")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetTest_CachedReadsInvalidatedByWrites(t *testing.T) {
	svc := setupService(t, cache.NewTTL(time.Minute))
	ctx := context.Background()

	test, err := svc.CreateTest(ctx, testutil.TwoVariantDefinition("hero"))
	require.NoError(t, err)

	// Prime the cache.
	before, err := svc.GetTest(ctx, test.ID)
	require.NoError(t, err)
	assert.Zero(t, before.Variants[0].Impressions)

	// A write must invalidate before any subsequent read.
	require.NoError(t, svc.RecordImpression(ctx, test.ID, test.Variants[0].ID))

	after, err := svc.GetTest(ctx, test.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, after.Variants[0].Impressions, "read after write must not serve the stale entry")
}

func TestListActiveTests_CacheTracksMembership(t *testing.T) {
	svc := setupService(t, cache.NewTTL(time.Minute))
	ctx := context.Background()

	test, err := svc.CreateTest(ctx, testutil.TwoVariantDefinition("hero"))
	require.NoError(t, err)

	// Prime the cache with the empty active list: the test is still a draft.
	active, err := svc.ListActiveTests(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	// First impression promotes the draft and must evict the cached list.
	require.NoError(t, svc.RecordImpression(ctx, test.ID, test.Variants[0].ID))

	active, err = svc.ListActiveTests(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, test.ID, active[0].ID)
}

func TestDeleteTest_InvalidatesCache(t *testing.T) {
	svc := setupService(t, cache.NewTTL(time.Minute))
	ctx := context.Background()

	test, err := svc.CreateTest(ctx, testutil.TwoVariantDefinition("hero"))
	require.NoError(t, err)

	_, err = svc.GetTest(ctx, test.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTest(ctx, test.ID))

	_, err = svc.GetTest(ctx, test.ID)
	assert.ErrorIs(t, err, store.ErrNotFound, "deleted test must not be served from cache")
}

func TestCreateTest_ValidationSurfaced(t *testing.T) {
	svc := setupService(t, cache.Noop{})

	def := testutil.TwoVariantDefinition("bad")
	def.Variants[1].IsControl = true // two controls

	_, err := svc.CreateTest(context.Background(), def)
	var verr *store.ValidationError
	assert.ErrorAs(t, err, &verr)
}
