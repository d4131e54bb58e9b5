package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cannedoxygen/Sui-Raid/pkg/errutil"
	"github.com/cannedoxygen/Sui-Raid/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db := testutil.NewTestDB(t, &Entry{}, &UserXP{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return NewService(ServiceParams{DB: db, Node: node})
}

func TestCreditRejectsNonPositiveAmount(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Credit(context.Background(), "user-1", 0, SourceRaid, "raid-1")
	require.Error(t, err)
	require.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))

	_, err = svc.Credit(context.Background(), "user-1", -5, SourceRaid, "raid-1")
	require.Error(t, err)
}

func TestCreditMaintainsRunningTotals(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Credit(ctx, "user-1", 10, SourceRaid, "raid-1")
	require.NoError(t, err)
	require.Equal(t, int64(0), first.PreviousTotal)
	require.Equal(t, int64(10), first.NewTotal)

	second, err := svc.Credit(ctx, "user-1", 25, SourceRaid, "raid-2")
	require.NoError(t, err)
	require.Equal(t, int64(10), second.PreviousTotal)
	require.Equal(t, int64(35), second.NewTotal)

	total, err := svc.Total(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(35), total)
}

func TestTotalForFiltersBySource(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, "user-1", 10, SourceRaid, "raid-1")
	require.NoError(t, err)
	_, err = svc.Credit(ctx, "user-1", 20, SourceRaid, "raid-2")
	require.NoError(t, err)
	_, err = svc.Credit(ctx, "user-1", 40, SourceCampaign, "camp-1")
	require.NoError(t, err)

	got, err := svc.TotalFor(ctx, "user-1", SourceRaid, "raid-1")
	require.NoError(t, err)
	require.Equal(t, int64(10), got)

	got, err = svc.TotalForSources(ctx, "user-1", []Source{
		{Type: SourceCampaign, ID: "camp-1"},
		{Type: SourceRaid, ID: "raid-1"},
		{Type: SourceRaid, ID: "raid-2"},
	})
	require.NoError(t, err)
	require.Equal(t, int64(70), got)
}

func TestTotalsForSourcesGroupsByUser(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, "alice", 50, SourceRaid, "raid-1")
	require.NoError(t, err)
	_, err = svc.Credit(ctx, "alice", 50, SourceRaid, "raid-2")
	require.NoError(t, err)
	_, err = svc.Credit(ctx, "bob", 30, SourceRaid, "raid-1")
	require.NoError(t, err)
	_, err = svc.Credit(ctx, "bob", 99, SourceRaid, "unrelated")
	require.NoError(t, err)

	totals, err := svc.TotalsForSources(ctx, []Source{
		{Type: SourceRaid, ID: "raid-1"},
		{Type: SourceRaid, ID: "raid-2"},
	})
	require.NoError(t, err)
	require.Len(t, totals, 2)
	require.Equal(t, UserTotal{UserID: "alice", Total: 100}, totals[0])
	require.Equal(t, UserTotal{UserID: "bob", Total: 30}, totals[1])
}

func TestConcurrentCreditsKeepSumInvariant(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	const workers = 8
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Credit(ctx, "user-1", 5, SourceRaid, "raid-1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	total, err := svc.Total(ctx, "user-1")
	require.NoError(t, err)
	require.Equal(t, int64(5*workers), total)

	require.NoError(t, svc.Reconcile(ctx, "user-1"))
}

func TestReconcileDetectsDrift(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, "user-1", 10, SourceRaid, "raid-1")
	require.NoError(t, err)

	// Corrupt the cache behind the ledger's back.
	require.NoError(t, svc.db.Model(&UserXP{}).
		Where("user_id = ?", "user-1").
		Update("total", 999).Error)

	err = svc.Reconcile(ctx, "user-1")
	require.Error(t, err)
	require.Equal(t, errutil.StatusInternal, errutil.StatusOf(err))
}

func TestVerifyChain(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Credit(ctx, "user-1", 10, SourceRaid, "raid-1")
	require.NoError(t, err)
	_, err = svc.Credit(ctx, "user-1", 20, SourceRaid, "raid-2")
	require.NoError(t, err)

	ok, err := svc.VerifyChain(ctx, "user-1")
	require.NoError(t, err)
	require.True(t, ok)

	// Tampering with an amount invalidates the chain.
	require.NoError(t, svc.db.Model(&Entry{}).
		Where("user_id = ?", "user-1").
		Where("source_id = ?", "raid-1").
		Update("amount", 11).Error)

	ok, err = svc.VerifyChain(ctx, "user-1")
	require.NoError(t, err)
	require.False(t, ok)
}
