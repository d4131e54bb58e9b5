package raid

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cannedoxygen/Sui-Raid/pkg/collab"
	"github.com/cannedoxygen/Sui-Raid/pkg/config"
	"github.com/cannedoxygen/Sui-Raid/pkg/errutil"
	"github.com/cannedoxygen/Sui-Raid/services/ledger"
	"github.com/cannedoxygen/Sui-Raid/services/settlement"
	"github.com/cannedoxygen/Sui-Raid/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) Enqueue(t *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, t)
	return &asynq.TaskInfo{ID: t.Type()}, nil
}

type fakeVerifier struct {
	liked     bool
	retweeted bool
	replies   []collab.Reply
}

func (f *fakeVerifier) HasLiked(context.Context, string, string) (bool, error) {
	return f.liked, nil
}

func (f *fakeVerifier) HasRetweeted(context.Context, string, string) (bool, error) {
	return f.retweeted, nil
}

func (f *fakeVerifier) GetReplies(context.Context, string, string) ([]collab.Reply, error) {
	return f.replies, nil
}

type openWallets struct{}

func (openWallets) HasPayoutWallet(context.Context, string) (bool, error) { return true, nil }
func (openWallets) WalletAddress(_ context.Context, userID string) (string, error) {
	return "0x" + userID, nil
}

type countingTransferrer struct {
	mu    sync.Mutex
	calls int
}

func (c *countingTransferrer) Transfer(context.Context, string, string, string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return "tx", nil
}

type silentNotifier struct{}

func (silentNotifier) Notify(context.Context, string, string) {}

type testEnv struct {
	svc      *Service
	ledger   *ledger.Service
	enqueuer *fakeEnqueuer
	verifier *fakeVerifier
	transfer *countingTransferrer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewTestDB(t,
		&Raid{}, &UserAction{},
		&ledger.Entry{}, &ledger.UserXP{},
		&settlement.Record{},
	)
	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Engine.TokenDecimals = 9

	ledgerSvc := ledger.NewService(ledger.ServiceParams{DB: db, Node: node})
	transfer := &countingTransferrer{}
	settleSvc := settlement.NewService(settlement.ServiceParams{
		DB:       db,
		Node:     node,
		Config:   cfg,
		Transfer: transfer,
		Notify:   silentNotifier{},
	})

	enqueuer := &fakeEnqueuer{}
	verifier := &fakeVerifier{}
	svc := NewService(ServiceParams{
		DB:         db,
		Node:       node,
		Ledger:     ledgerSvc,
		Settlement: settleSvc,
		Verifier:   verifier,
		Wallets:    openWallets{},
		Enqueuer:   enqueuer,
	})
	return &testEnv{svc: svc, ledger: ledgerSvc, enqueuer: enqueuer, verifier: verifier, transfer: transfer}
}

func baseInput() CreateInput {
	return CreateInput{
		TweetID: "1234567890",
		AdminID: "admin-1",
		ChatID:  "chat-1",
	}
}

func TestActivateRequiresTweetReference(t *testing.T) {
	env := newTestEnv(t)
	in := baseInput()
	in.TweetID = ""

	_, err := env.svc.Activate(context.Background(), in)
	require.Error(t, err)
	require.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))
}

func TestActivateRequiresTokenTypeWithReward(t *testing.T) {
	env := newTestEnv(t)
	in := baseInput()
	in.TotalReward = decimal.NewFromInt(100)

	_, err := env.svc.Activate(context.Background(), in)
	require.Error(t, err)
	require.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))
}

func TestActivateSchedulesTermination(t *testing.T) {
	env := newTestEnv(t)
	in := baseInput()
	in.Duration = time.Hour

	r, err := env.svc.Activate(context.Background(), in)
	require.NoError(t, err)
	require.Equal(t, StatusActive, r.Status)
	require.NotNil(t, r.EndTime)
	require.Len(t, env.enqueuer.tasks, 1)
	require.Equal(t, "raid:terminate", env.enqueuer.tasks[0].Type())
}

func TestRecordActionCreditsLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r, err := env.svc.Activate(ctx, baseInput())
	require.NoError(t, err)

	action, err := env.svc.RecordAction(ctx, r.ID, "user-1", ActionLike, ActionData{})
	require.NoError(t, err)
	require.Equal(t, int64(10), action.XPEarned)

	total, err := env.ledger.TotalFor(ctx, "user-1", ledger.SourceRaid, r.ID)
	require.NoError(t, err)
	require.Equal(t, int64(10), total)

	updated, err := env.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1), updated.ActualLikes)
}

func TestRecordActionPenaltyBeforeLike(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r, err := env.svc.Activate(ctx, baseInput())
	require.NoError(t, err)

	// Comment before like: 30 XP reduced by a quarter, floored.
	action, err := env.svc.RecordAction(ctx, r.ID, "user-1", ActionComment, ActionData{})
	require.NoError(t, err)
	require.Equal(t, int64(22), action.XPEarned)

	// After liking, a retweet scores at full value.
	_, err = env.svc.RecordAction(ctx, r.ID, "user-1", ActionLike, ActionData{})
	require.NoError(t, err)
	retweet, err := env.svc.RecordAction(ctx, r.ID, "user-1", ActionRetweet, ActionData{})
	require.NoError(t, err)
	require.Equal(t, int64(20), retweet.XPEarned)
}

func TestRecordActionCommentMediaBonus(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r, err := env.svc.Activate(ctx, baseInput())
	require.NoError(t, err)

	_, err = env.svc.RecordAction(ctx, r.ID, "user-1", ActionLike, ActionData{})
	require.NoError(t, err)

	withMedia, err := env.svc.RecordAction(ctx, r.ID, "user-1", ActionComment, ActionData{HasMedia: true})
	require.NoError(t, err)
	require.Equal(t, int64(40), withMedia.XPEarned)

	animated, err := env.svc.RecordAction(ctx, r.ID, "user-2", ActionComment, ActionData{HasMedia: true, IsAnimated: true})
	require.NoError(t, err)
	// user-2 has no like yet, so the animated comment (45) is penalized.
	require.Equal(t, int64(33), animated.XPEarned)
}

func TestRecordActionDuplicateRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r, err := env.svc.Activate(ctx, baseInput())
	require.NoError(t, err)

	_, err = env.svc.RecordAction(ctx, r.ID, "user-1", ActionLike, ActionData{})
	require.NoError(t, err)

	_, err = env.svc.RecordAction(ctx, r.ID, "user-1", ActionLike, ActionData{})
	require.Error(t, err)
	require.True(t, errutil.IsConflict(err))
}

func TestRecordActionNoDoubleCreditUnderConcurrency(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r, err := env.svc.Activate(ctx, baseInput())
	require.NoError(t, err)

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.RecordAction(ctx, r.ID, "user-1", ActionLike, ActionData{})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, conflicted int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errutil.IsConflict(err):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, attempts-1, conflicted)

	total, err := env.ledger.TotalFor(ctx, "user-1", ledger.SourceRaid, r.ID)
	require.NoError(t, err)
	require.Equal(t, int64(10), total)
}

func TestRecordActionRejectedWhenNotActive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r, err := env.svc.Activate(ctx, baseInput())
	require.NoError(t, err)

	_, err = env.svc.Terminate(ctx, r.ID, ReasonManual)
	require.NoError(t, err)

	_, err = env.svc.RecordAction(ctx, r.ID, "user-1", ActionLike, ActionData{})
	require.Error(t, err)
	require.True(t, errutil.IsConflict(err))
}

func TestRecordActionVerificationRequired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	in := baseInput()
	in.RequireVerification = true
	r, err := env.svc.Activate(ctx, in)
	require.NoError(t, err)

	env.verifier.liked = false
	_, err = env.svc.RecordAction(ctx, r.ID, "user-1", ActionLike, ActionData{})
	require.Error(t, err)
	require.Equal(t, errutil.StatusBadRequest, errutil.StatusOf(err))

	env.verifier.liked = true
	action, err := env.svc.RecordAction(ctx, r.ID, "user-1", ActionLike, ActionData{})
	require.NoError(t, err)
	require.True(t, action.Verified)
}

func TestRecordActionVerifiedCommentOverridesClaimedFlags(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	in := baseInput()
	in.RequireVerification = true
	r, err := env.svc.Activate(ctx, in)
	require.NoError(t, err)

	env.verifier.liked = true
	_, err = env.svc.RecordAction(ctx, r.ID, "user-1", ActionLike, ActionData{})
	require.NoError(t, err)

	// Caller claims animated media; the platform reports a plain comment.
	env.verifier.replies = []collab.Reply{{ID: "reply-1", Text: "gm"}}
	action, err := env.svc.RecordAction(ctx, r.ID, "user-1", ActionComment,
		ActionData{HasMedia: true, IsAnimated: true})
	require.NoError(t, err)
	require.Equal(t, int64(30), action.XPEarned)
}

func TestTerminateIdempotentWithSingleSettlementBatch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	in := baseInput()
	in.TokenType = "0x2::sui::SUI"
	in.TokenSymbol = "SUI"
	in.TotalReward = decimal.NewFromInt(1000)
	r, err := env.svc.Activate(ctx, in)
	require.NoError(t, err)

	_, err = env.svc.RecordAction(ctx, r.ID, "user-1", ActionLike, ActionData{})
	require.NoError(t, err)
	_, err = env.svc.RecordAction(ctx, r.ID, "user-2", ActionLike, ActionData{})
	require.NoError(t, err)

	first, err := env.svc.Terminate(ctx, r.ID, ReasonScheduled)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, first.Status)
	require.True(t, first.RewardsDistributed)

	second, err := env.svc.Terminate(ctx, r.ID, ReasonManual)
	require.NoError(t, err)
	require.Equal(t, first.Status, second.Status)

	// One transfer per recipient, across both terminate calls.
	require.Equal(t, 2, env.transfer.calls)
}

func TestTerminateFailedWhenTargetsUndershot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	in := baseInput()
	in.TargetLikes = 5
	in.TokenType = "0x2::sui::SUI"
	in.TotalReward = decimal.NewFromInt(1000)
	r, err := env.svc.Activate(ctx, in)
	require.NoError(t, err)

	_, err = env.svc.RecordAction(ctx, r.ID, "user-1", ActionLike, ActionData{})
	require.NoError(t, err)

	done, err := env.svc.Terminate(ctx, r.ID, ReasonScheduled)
	require.NoError(t, err)
	require.Equal(t, StatusFailed, done.Status)
	require.False(t, done.RewardsDistributed)
	require.Zero(t, env.transfer.calls)
}

func TestTerminateCancelledOverridesTargets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	r, err := env.svc.Activate(ctx, baseInput())
	require.NoError(t, err)

	done, err := env.svc.Terminate(ctx, r.ID, ReasonCancelled)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, done.Status)
}

func TestCampaignLinkedRaidNeverSelfSettles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	in := baseInput()
	in.CampaignID = "camp-1"
	in.TokenType = "0x2::sui::SUI"
	in.TotalReward = decimal.NewFromInt(1000)
	r, err := env.svc.Activate(ctx, in)
	require.NoError(t, err)

	_, err = env.svc.RecordAction(ctx, r.ID, "user-1", ActionLike, ActionData{})
	require.NoError(t, err)

	done, err := env.svc.Terminate(ctx, r.ID, ReasonScheduled)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, done.Status)
	require.False(t, done.RewardsDistributed)
	require.Zero(t, env.transfer.calls)
}

func TestReconcilePendingTerminatesOverdueRaids(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	in := baseInput()
	in.Duration = time.Millisecond
	r, err := env.svc.Activate(ctx, in)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, env.svc.ReconcilePending(ctx))

	done, err := env.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	require.True(t, done.Status.Terminal())
}
