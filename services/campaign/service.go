package campaign

import (
	"context"
	"errors"
	"time"

	"github.com/cannedoxygen/Sui-Raid/pkg/collab"
	"github.com/cannedoxygen/Sui-Raid/pkg/errutil"
	"github.com/cannedoxygen/Sui-Raid/services/ledger"
	"github.com/cannedoxygen/Sui-Raid/services/raid"
	"github.com/cannedoxygen/Sui-Raid/services/reward"
	"github.com/cannedoxygen/Sui-Raid/services/settlement"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service owns the campaign lifecycle. The defining complexity is XP
// aggregation: a user's campaign XP is the sum of ledger entries sourced from
// the campaign itself plus entries from every child raid, computed fresh on
// every read so raids added mid-campaign are always counted.
type Service struct {
	db         *gorm.DB
	node       *snowflake.Node
	ledger     *ledger.Service
	raids      *raid.Service
	settlement *settlement.Service
	wallets    collab.WalletResolver
}

type ServiceParams struct {
	fx.In
	DB         *gorm.DB
	Node       *snowflake.Node
	Ledger     *ledger.Service
	Raids      *raid.Service
	Settlement *settlement.Service
	Wallets    collab.WalletResolver
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:         p.DB,
		node:       p.Node,
		ledger:     p.Ledger,
		raids:      p.Raids,
		settlement: p.Settlement,
		wallets:    p.Wallets,
	}
}

// Create validates the config and persists the campaign as active.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Campaign, error) {
	if in.Name == "" {
		return nil, errutil.ValidationFailed("a campaign name is required", nil)
	}
	if in.AdminID == "" || in.ChatID == "" {
		return nil, errutil.ValidationFailed("admin and chat are required", nil)
	}
	if !in.EndDate.After(in.StartDate) {
		return nil, errutil.ValidationFailed("end date must be after start date", nil)
	}
	if in.ThresholdXP <= 0 {
		return nil, errutil.ValidationFailed("xp threshold must be positive", nil)
	}
	if in.TotalBudget.IsNegative() || in.TokenPerXP.IsNegative() {
		return nil, errutil.ValidationFailed("reward configuration cannot be negative", nil)
	}
	rewardConfigured := in.TotalBudget.IsPositive() || in.TokenPerXP.IsPositive()
	if rewardConfigured && in.TokenType == "" {
		return nil, errutil.ValidationFailed("a token type is required when a reward is configured", nil)
	}

	c := &Campaign{
		ID:          s.node.Generate().String(),
		Name:        in.Name,
		AdminID:     in.AdminID,
		ChatID:      in.ChatID,
		Status:      StatusActive,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		TokenType:   in.TokenType,
		TokenSymbol: in.TokenSymbol,
		TotalBudget: in.TotalBudget,
		TokenPerXP:  in.TokenPerXP,
		ThresholdXP: in.ThresholdXP,
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, errutil.Unavailable("campaign write failed", err)
	}

	zap.L().Info("campaign created",
		zap.String("campaign_id", c.ID),
		zap.String("name", c.Name),
		zap.Time("end_date", c.EndDate),
	)

	return c, nil
}

// Get returns one campaign by id.
func (s *Service) Get(ctx context.Context, id string) (*Campaign, error) {
	var c Campaign
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errutil.NotFound("campaign not found", err)
	}
	if err != nil {
		return nil, errutil.Unavailable("campaign read failed", err)
	}
	return &c, nil
}

// AttachRaid links an existing raid to the campaign. The raid's XP folds
// into the campaign aggregate from its first entry, including entries written
// before the attachment.
func (s *Service) AttachRaid(ctx context.Context, campaignID, raidID string) (*raid.Raid, error) {
	c, err := s.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusActive {
		return nil, errutil.Conflict("campaign is no longer active", nil)
	}
	return s.raids.AttachToCampaign(ctx, raidID, campaignID)
}

// UserXP returns the user's aggregate XP across the campaign and all child
// raids. Always computed fresh from the ledger; never cached.
func (s *Service) UserXP(ctx context.Context, campaignID, userID string) (int64, error) {
	sources, err := s.sources(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	return s.ledger.TotalForSources(ctx, userID, sources)
}

// Terminate moves an active campaign to its terminal state. Idempotent like
// raid termination: the sweep loop and a manual admin command may race, and
// exactly one of them settles.
func (s *Service) Terminate(ctx context.Context, campaignID string, reason TerminateReason) (*Campaign, error) {
	c, err := s.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status.Terminal() {
		return c, nil
	}

	final := StatusCompleted
	if reason == ReasonCancelled {
		final = StatusCancelled
	}

	claim := s.db.WithContext(ctx).Model(&Campaign{}).
		Where("id = ? AND status = ?", campaignID, StatusActive).
		Update("status", final)
	if claim.Error != nil {
		return nil, errutil.Unavailable("campaign write failed", claim.Error)
	}
	if claim.RowsAffected == 0 {
		return s.Get(ctx, campaignID)
	}

	c, err = s.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	zap.L().Info("campaign terminated",
		zap.String("campaign_id", campaignID),
		zap.String("status", string(c.Status)),
		zap.String("reason", string(reason)),
	)

	if c.Status == StatusCompleted && c.RewardConfigured() && !c.RewardsDistributed {
		if _, err := s.settle(ctx, c); err != nil {
			zap.L().Error("campaign settlement failed",
				zap.String("campaign_id", campaignID),
				zap.Error(err),
			)
		}
	}

	return s.Get(ctx, campaignID)
}

// RetrySettlement replays the payout batch for a completed campaign.
// Recipients with a success record are skipped.
func (s *Service) RetrySettlement(ctx context.Context, campaignID string) (*settlement.Result, error) {
	c, err := s.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.Status != StatusCompleted {
		return nil, errutil.Conflict("campaign did not complete; nothing to settle", nil)
	}
	if !c.RewardConfigured() {
		return nil, errutil.Conflict("campaign has no reward configured", nil)
	}
	return s.settle(ctx, c)
}

// Expired lists active campaigns whose end date has passed, the sweep loop's
// input.
func (s *Service) Expired(ctx context.Context, now time.Time) ([]Campaign, error) {
	var campaigns []Campaign
	err := s.db.WithContext(ctx).
		Where("status = ? AND end_date <= ?", StatusActive, now).
		Find(&campaigns).Error
	if err != nil {
		return nil, errutil.Unavailable("campaign read failed", err)
	}
	return campaigns, nil
}

func (s *Service) settle(ctx context.Context, c *Campaign) (*settlement.Result, error) {
	sources, err := s.sources(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	totals, err := s.ledger.TotalsForSources(ctx, sources)
	if err != nil {
		return nil, err
	}

	wallets := reward.ResolveWallets(ctx, s.wallets, totals)
	rewards := reward.Calculate(reward.Config{
		SourceID:    c.ID,
		TokenType:   c.TokenType,
		TokenSymbol: c.TokenSymbol,
		ThresholdXP: c.ThresholdXP,
		TokenPerXP:  c.TokenPerXP,
		TotalPool:   c.TotalBudget,
	}, totals, wallets)

	result, err := s.settlement.Settle(ctx, rewards, ledger.SourceCampaign, c.ID)
	if err != nil {
		return result, err
	}

	err = s.db.WithContext(ctx).Model(&Campaign{}).
		Where("id = ?", c.ID).
		Update("rewards_distributed", true).Error
	if err != nil {
		return result, errutil.Unavailable("campaign write failed", err)
	}
	return result, nil
}

func (s *Service) sources(ctx context.Context, campaignID string) ([]ledger.Source, error) {
	raidIDs, err := s.raids.IDsForCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}

	sources := make([]ledger.Source, 0, len(raidIDs)+1)
	sources = append(sources, ledger.Source{Type: ledger.SourceCampaign, ID: campaignID})
	for _, id := range raidIDs {
		sources = append(sources, ledger.Source{Type: ledger.SourceRaid, ID: id})
	}
	return sources, nil
}
