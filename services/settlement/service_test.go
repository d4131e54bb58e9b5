package settlement

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cannedoxygen/Sui-Raid/pkg/config"
	"github.com/cannedoxygen/Sui-Raid/pkg/errutil"
	"github.com/cannedoxygen/Sui-Raid/services/ledger"
	"github.com/cannedoxygen/Sui-Raid/services/reward"
	"github.com/cannedoxygen/Sui-Raid/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeTransferrer struct {
	calls []string
	fail  map[string]error
}

func (f *fakeTransferrer) Transfer(_ context.Context, walletAddress, _, _ string) (string, error) {
	f.calls = append(f.calls, walletAddress)
	if err, ok := f.fail[walletAddress]; ok {
		return "", err
	}
	return "tx-" + walletAddress, nil
}

type fakeNotifier struct {
	messages map[string][]string
}

func (f *fakeNotifier) Notify(_ context.Context, userID, message string) {
	if f.messages == nil {
		f.messages = make(map[string][]string)
	}
	f.messages[userID] = append(f.messages[userID], message)
}

func newTestService(t *testing.T, transfer *fakeTransferrer) (*Service, *gorm.DB, *fakeNotifier) {
	t.Helper()
	db := testutil.NewTestDB(t, &Record{})
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Engine.TokenDecimals = 9
	// No inter-transfer delay in tests.

	notifier := &fakeNotifier{}
	svc := NewService(ServiceParams{
		DB:       db,
		Node:     node,
		Config:   cfg,
		Transfer: transfer,
		Notify:   notifier,
	})
	return svc, db, notifier
}

func rewardFor(user string, amount string) reward.Reward {
	return reward.Reward{
		UserID:        user,
		WalletAddress: "0x" + user,
		XPAmount:      100,
		TokenAmount:   decimal.RequireFromString(amount),
		TokenSymbol:   "SUI",
		TokenType:     "0x2::sui::SUI",
		SourceID:      "raid-1",
	}
}

func TestSettleHappyPath(t *testing.T) {
	transfer := &fakeTransferrer{}
	svc, db, notifier := newTestService(t, transfer)

	result, err := svc.Settle(context.Background(),
		[]reward.Reward{rewardFor("a", "10"), rewardFor("b", "20")},
		ledger.SourceRaid, "raid-1")
	require.NoError(t, err)
	require.Len(t, result.Successful, 2)
	require.Empty(t, result.Failed)
	require.Equal(t, []string{"0xa", "0xb"}, transfer.calls)

	var count int64
	require.NoError(t, db.Model(&Record{}).Where("status = ?", StatusSuccess).Count(&count).Error)
	require.Equal(t, int64(2), count)
	require.Len(t, notifier.messages["a"], 1)
	require.Len(t, notifier.messages["b"], 1)
}

func TestSettlePartialFailureIsolation(t *testing.T) {
	transfer := &fakeTransferrer{fail: map[string]error{
		"0xb": errors.New("invalid wallet address"),
	}}
	svc, _, _ := newTestService(t, transfer)

	result, err := svc.Settle(context.Background(),
		[]reward.Reward{rewardFor("a", "10"), rewardFor("b", "20"), rewardFor("c", "30")},
		ledger.SourceRaid, "raid-1")
	require.NoError(t, err)

	// B's failure never blocks C.
	require.Equal(t, []string{"0xa", "0xb", "0xc"}, transfer.calls)
	require.Len(t, result.Successful, 2)
	require.Len(t, result.Failed, 1)
	require.Equal(t, "b", result.Failed[0].UserID)
	require.Equal(t, FailurePermanent, result.Failed[0].FailureKind)
}

func TestSettleIdempotentReplay(t *testing.T) {
	transfer := &fakeTransferrer{}
	svc, _, _ := newTestService(t, transfer)
	ctx := context.Background()

	batch := []reward.Reward{rewardFor("a", "10"), rewardFor("b", "20")}

	first, err := svc.Settle(ctx, batch, ledger.SourceRaid, "raid-1")
	require.NoError(t, err)
	require.Len(t, first.Successful, 2)

	replay, err := svc.Settle(ctx, batch, ledger.SourceRaid, "raid-1")
	require.NoError(t, err)
	require.Empty(t, replay.Successful)
	require.Empty(t, replay.Failed)
	require.Equal(t, 2, replay.Skipped)

	// No additional transfer attempts on replay.
	require.Equal(t, []string{"0xa", "0xb"}, transfer.calls)
}

func TestSettleRetriesUnsettledRecipientOnly(t *testing.T) {
	transfer := &fakeTransferrer{fail: map[string]error{
		"0xb": errutil.Unavailable("rpc node down", nil),
	}}
	svc, _, _ := newTestService(t, transfer)
	ctx := context.Background()

	batch := []reward.Reward{rewardFor("a", "10"), rewardFor("b", "20")}

	first, err := svc.Settle(ctx, batch, ledger.SourceRaid, "raid-1")
	require.NoError(t, err)
	require.Len(t, first.Failed, 1)
	require.Equal(t, FailureTransient, first.Failed[0].FailureKind)

	// The node recovers; replay touches only B.
	transfer.fail = nil
	replay, err := svc.Settle(ctx, batch, ledger.SourceRaid, "raid-1")
	require.NoError(t, err)
	require.Len(t, replay.Successful, 1)
	require.Equal(t, "b", replay.Successful[0].UserID)
	require.Equal(t, 1, replay.Skipped)
	require.Equal(t, []string{"0xa", "0xb", "0xb"}, transfer.calls)
}

func TestSettleTruncatesToSmallestUnit(t *testing.T) {
	transfer := &fakeTransferrer{}
	svc, _, _ := newTestService(t, transfer)

	result, err := svc.Settle(context.Background(),
		[]reward.Reward{rewardFor("a", "1.23456789012345")},
		ledger.SourceRaid, "raid-1")
	require.NoError(t, err)
	require.Len(t, result.Successful, 1)
	require.Equal(t, "1.23456789", result.Successful[0].Amount)
}

func TestSettleDustIsPermanentFailureWithoutTransfer(t *testing.T) {
	transfer := &fakeTransferrer{}
	svc, _, _ := newTestService(t, transfer)

	result, err := svc.Settle(context.Background(),
		[]reward.Reward{rewardFor("a", "0.0000000001")},
		ledger.SourceRaid, "raid-1")
	require.NoError(t, err)
	require.Empty(t, result.Successful)
	require.Len(t, result.Failed, 1)
	require.Equal(t, FailurePermanent, result.Failed[0].FailureKind)
	require.Empty(t, transfer.calls)
}

func TestRecordsListsAuditTrail(t *testing.T) {
	transfer := &fakeTransferrer{fail: map[string]error{"0xb": errors.New("boom")}}
	svc, _, _ := newTestService(t, transfer)
	ctx := context.Background()

	_, err := svc.Settle(ctx,
		[]reward.Reward{rewardFor("a", "10"), rewardFor("b", "20")},
		ledger.SourceRaid, "raid-1")
	require.NoError(t, err)

	records, err := svc.Records(ctx, ledger.SourceRaid, "raid-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
}
