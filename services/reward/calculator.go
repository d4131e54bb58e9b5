// Package reward decides who qualifies for a payout and how large each payout
// is. Everything here is pure: no storage, no clock, no collaborators.
package reward

import (
	"context"

	"github.com/cannedoxygen/Sui-Raid/pkg/collab"
	"github.com/cannedoxygen/Sui-Raid/services/ledger"

	"github.com/shopspring/decimal"
)

// Config is the reward shape attached to a raid or campaign. When both
// TokenPerXP and TotalPool are set, the fixed rate wins.
type Config struct {
	SourceID    string
	TokenType   string
	TokenSymbol string
	ThresholdXP int64
	TokenPerXP  decimal.Decimal
	TotalPool   decimal.Decimal
}

// Configured reports whether any reward model is attached at all.
func (c Config) Configured() bool {
	return c.TokenPerXP.IsPositive() || c.TotalPool.IsPositive()
}

// Reward is one computed payout. TokenAmount is the mathematically exact
// share; rounding to the transfer medium's smallest unit happens at the
// settlement boundary, never here.
type Reward struct {
	UserID        string
	WalletAddress string
	XPAmount      int64
	TokenAmount   decimal.Decimal
	TokenSymbol   string
	TokenType     string
	SourceID      string
}

// WalletSet maps userID to payout wallet address for everyone who has one
// connected. Absence means not eligible.
type WalletSet map[string]string

// ResolveWallets builds a WalletSet for the given totals via the wallet
// directory collaborator. Lookup failures drop the user from the set rather
// than failing the batch; a missing wallet already means ineligible.
func ResolveWallets(ctx context.Context, resolver collab.WalletResolver, totals []ledger.UserTotal) WalletSet {
	wallets := make(WalletSet, len(totals))
	for _, t := range totals {
		ok, err := resolver.HasPayoutWallet(ctx, t.UserID)
		if err != nil || !ok {
			continue
		}
		addr, err := resolver.WalletAddress(ctx, t.UserID)
		if err != nil || addr == "" {
			continue
		}
		wallets[t.UserID] = addr
	}
	return wallets
}

// Calculate turns ledger totals into a reward list.
//
// A user qualifies iff their XP meets the threshold (a zero threshold admits
// everyone) and they have a connected wallet. Pool distribution is two-pass:
// non-qualifying XP never inflates the denominator. An empty qualifying set
// yields an empty list, never a division by zero.
func Calculate(cfg Config, totals []ledger.UserTotal, wallets WalletSet) []Reward {
	if !cfg.Configured() {
		return nil
	}

	type qualifier struct {
		userID string
		wallet string
		xp     int64
	}

	qualifiers := make([]qualifier, 0, len(totals))
	var xpSum int64
	for _, t := range totals {
		if t.Total <= 0 {
			continue
		}
		if cfg.ThresholdXP > 0 && t.Total < cfg.ThresholdXP {
			continue
		}
		wallet, ok := wallets[t.UserID]
		if !ok {
			continue
		}
		qualifiers = append(qualifiers, qualifier{userID: t.UserID, wallet: wallet, xp: t.Total})
		xpSum += t.Total
	}

	if len(qualifiers) == 0 {
		return []Reward{}
	}

	rewards := make([]Reward, 0, len(qualifiers))
	for _, q := range qualifiers {
		xp := decimal.NewFromInt(q.xp)

		var amount decimal.Decimal
		if cfg.TokenPerXP.IsPositive() {
			amount = xp.Mul(cfg.TokenPerXP)
		} else {
			amount = xp.Div(decimal.NewFromInt(xpSum)).Mul(cfg.TotalPool)
		}

		rewards = append(rewards, Reward{
			UserID:        q.userID,
			WalletAddress: q.wallet,
			XPAmount:      q.xp,
			TokenAmount:   amount,
			TokenSymbol:   cfg.TokenSymbol,
			TokenType:     cfg.TokenType,
			SourceID:      cfg.SourceID,
		})
	}

	return rewards
}
