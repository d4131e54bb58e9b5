package reward

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cannedoxygen/Sui-Raid/services/ledger"
)

func walletsFor(users ...string) WalletSet {
	ws := make(WalletSet, len(users))
	for _, u := range users {
		ws[u] = "0x" + u
	}
	return ws
}

func TestCalculatePoolShareExactSplit(t *testing.T) {
	cfg := Config{
		SourceID:    "raid-1",
		TokenSymbol: "SUI",
		TotalPool:   decimal.NewFromInt(1000),
	}
	totals := []ledger.UserTotal{
		{UserID: "a", Total: 100},
		{UserID: "b", Total: 300},
		{UserID: "c", Total: 600},
	}

	rewards := Calculate(cfg, totals, walletsFor("a", "b", "c"))
	require.Len(t, rewards, 3)

	require.True(t, rewards[0].TokenAmount.Equal(decimal.NewFromInt(100)), rewards[0].TokenAmount.String())
	require.True(t, rewards[1].TokenAmount.Equal(decimal.NewFromInt(300)), rewards[1].TokenAmount.String())
	require.True(t, rewards[2].TokenAmount.Equal(decimal.NewFromInt(600)), rewards[2].TokenAmount.String())

	sum := decimal.Zero
	for _, r := range rewards {
		sum = sum.Add(r.TokenAmount)
	}
	require.True(t, sum.Equal(decimal.NewFromInt(1000)))
}

func TestCalculateThresholdExcludesFromDenominator(t *testing.T) {
	cfg := Config{
		SourceID:    "camp-1",
		ThresholdXP: 100,
		TotalPool:   decimal.NewFromInt(500),
	}
	totals := []ledger.UserTotal{
		{UserID: "below", Total: 50},
		{UserID: "above", Total: 150},
	}

	rewards := Calculate(cfg, totals, walletsFor("below", "above"))
	require.Len(t, rewards, 1)
	require.Equal(t, "above", rewards[0].UserID)
	require.True(t, rewards[0].TokenAmount.Equal(decimal.NewFromInt(500)))
}

func TestCalculateFixedRate(t *testing.T) {
	cfg := Config{
		SourceID:   "raid-1",
		TokenPerXP: decimal.RequireFromString("0.5"),
	}
	totals := []ledger.UserTotal{
		{UserID: "a", Total: 7},
		{UserID: "b", Total: 40},
	}

	rewards := Calculate(cfg, totals, walletsFor("a", "b"))
	require.Len(t, rewards, 2)
	require.True(t, rewards[0].TokenAmount.Equal(decimal.RequireFromString("3.5")))
	require.True(t, rewards[1].TokenAmount.Equal(decimal.NewFromInt(20)))
}

func TestCalculateFixedRateWinsOverPool(t *testing.T) {
	cfg := Config{
		SourceID:   "raid-1",
		TokenPerXP: decimal.NewFromInt(2),
		TotalPool:  decimal.NewFromInt(1000000),
	}
	totals := []ledger.UserTotal{{UserID: "a", Total: 10}}

	rewards := Calculate(cfg, totals, walletsFor("a"))
	require.Len(t, rewards, 1)
	require.True(t, rewards[0].TokenAmount.Equal(decimal.NewFromInt(20)))
}

func TestCalculateMissingWalletExcludes(t *testing.T) {
	cfg := Config{
		SourceID:  "raid-1",
		TotalPool: decimal.NewFromInt(100),
	}
	totals := []ledger.UserTotal{
		{UserID: "walletless", Total: 500},
		{UserID: "funded", Total: 500},
	}

	rewards := Calculate(cfg, totals, walletsFor("funded"))
	require.Len(t, rewards, 1)
	require.Equal(t, "funded", rewards[0].UserID)
	require.True(t, rewards[0].TokenAmount.Equal(decimal.NewFromInt(100)))
}

func TestCalculateNoQualifiersReturnsEmpty(t *testing.T) {
	cfg := Config{
		SourceID:    "raid-1",
		ThresholdXP: 1000,
		TotalPool:   decimal.NewFromInt(100),
	}
	totals := []ledger.UserTotal{{UserID: "a", Total: 10}}

	rewards := Calculate(cfg, totals, walletsFor("a"))
	require.NotNil(t, rewards)
	require.Empty(t, rewards)
}

func TestCalculateUnconfiguredReturnsNil(t *testing.T) {
	rewards := Calculate(Config{SourceID: "raid-1"}, []ledger.UserTotal{{UserID: "a", Total: 10}}, walletsFor("a"))
	require.Nil(t, rewards)
}

type fakeResolver struct {
	wallets map[string]string
}

func (f fakeResolver) HasPayoutWallet(_ context.Context, userID string) (bool, error) {
	_, ok := f.wallets[userID]
	return ok, nil
}

func (f fakeResolver) WalletAddress(_ context.Context, userID string) (string, error) {
	return f.wallets[userID], nil
}

func TestResolveWallets(t *testing.T) {
	resolver := fakeResolver{wallets: map[string]string{"a": "0xa"}}
	totals := []ledger.UserTotal{
		{UserID: "a", Total: 10},
		{UserID: "b", Total: 20},
	}

	ws := ResolveWallets(context.Background(), resolver, totals)
	require.Equal(t, WalletSet{"a": "0xa"}, ws)
}
