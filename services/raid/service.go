package raid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cannedoxygen/Sui-Raid/pkg/collab"
	"github.com/cannedoxygen/Sui-Raid/pkg/errutil"
	"github.com/cannedoxygen/Sui-Raid/pkg/task"
	"github.com/cannedoxygen/Sui-Raid/pkg/taskname"
	"github.com/cannedoxygen/Sui-Raid/services/ledger"
	"github.com/cannedoxygen/Sui-Raid/services/reward"
	"github.com/cannedoxygen/Sui-Raid/services/settlement"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service owns the raid lifecycle: activation, action recording and
// termination. Correctness under concurrent calls comes from the storage
// layer (unique index on user actions, guarded status update), not mutexes.
type Service struct {
	db         *gorm.DB
	node       *snowflake.Node
	ledger     *ledger.Service
	settlement *settlement.Service
	verifier   collab.Verifier
	wallets    collab.WalletResolver
	enqueuer   task.Enqueuer
}

type ServiceParams struct {
	fx.In
	DB         *gorm.DB
	Node       *snowflake.Node
	Ledger     *ledger.Service
	Settlement *settlement.Service
	Verifier   collab.Verifier
	Wallets    collab.WalletResolver
	Enqueuer   task.Enqueuer
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:         p.DB,
		node:       p.Node,
		ledger:     p.Ledger,
		settlement: p.Settlement,
		verifier:   p.Verifier,
		wallets:    p.Wallets,
		enqueuer:   p.Enqueuer,
	}
}

// Activate validates the config, creates the raid as active with the clock
// started, and schedules its termination when a duration is set.
func (s *Service) Activate(ctx context.Context, in CreateInput) (*Raid, error) {
	if in.TweetID == "" && in.TweetURL == "" {
		return nil, errutil.ValidationFailed("a tweet reference is required", nil)
	}
	if in.AdminID == "" || in.ChatID == "" {
		return nil, errutil.ValidationFailed("admin and chat are required", nil)
	}
	if in.Duration < 0 {
		return nil, errutil.ValidationFailed("duration cannot be negative", nil)
	}
	if in.TotalReward.IsNegative() || in.TokenPerXP.IsNegative() || in.ThresholdXP < 0 {
		return nil, errutil.ValidationFailed("reward configuration cannot be negative", nil)
	}
	rewardConfigured := in.TotalReward.IsPositive() || in.TokenPerXP.IsPositive()
	if rewardConfigured && in.TokenType == "" {
		return nil, errutil.ValidationFailed("a token type is required when a reward is configured", nil)
	}

	now := time.Now()
	r := &Raid{
		ID:                  s.node.Generate().String(),
		TweetID:             in.TweetID,
		TweetURL:            in.TweetURL,
		AdminID:             in.AdminID,
		ChatID:              in.ChatID,
		Status:              StatusActive,
		StartTime:           now,
		Duration:            in.Duration,
		TargetLikes:         in.TargetLikes,
		TargetRetweets:      in.TargetRetweets,
		TargetComments:      in.TargetComments,
		TokenType:           in.TokenType,
		TokenSymbol:         in.TokenSymbol,
		TotalReward:         in.TotalReward,
		TokenPerXP:          in.TokenPerXP,
		ThresholdXP:         in.ThresholdXP,
		CampaignID:          in.CampaignID,
		RequireVerification: in.RequireVerification,
	}
	if in.Duration > 0 {
		end := now.Add(in.Duration)
		r.EndTime = &end
	}

	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, errutil.Unavailable("raid write failed", err)
	}

	if r.EndTime != nil {
		if err := s.scheduleTermination(r); err != nil {
			// The raid exists; startup reconciliation re-schedules it.
			zap.L().Error("failed to schedule raid termination",
				zap.String("raid_id", r.ID),
				zap.Time("end_time", *r.EndTime),
				zap.Error(err),
			)
		}
	}

	zap.L().Info("raid activated",
		zap.String("raid_id", r.ID),
		zap.String("tweet_id", r.TweetID),
		zap.Duration("duration", r.Duration),
	)

	return r, nil
}

// Get returns one raid by id.
func (s *Service) Get(ctx context.Context, id string) (*Raid, error) {
	var r Raid
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errutil.NotFound("raid not found", err)
	}
	if err != nil {
		return nil, errutil.Unavailable("raid read failed", err)
	}
	return &r, nil
}

// IDsForCampaign lists the raid ids attached to a campaign. Campaign XP
// aggregation folds these in as ledger sources.
func (s *Service) IDsForCampaign(ctx context.Context, campaignID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&Raid{}).
		Where("campaign_id = ?", campaignID).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, errutil.Unavailable("raid read failed", err)
	}
	return ids, nil
}

// AttachToCampaign links an existing raid to a campaign. A campaign-linked
// raid stops self-settling from that point on.
func (s *Service) AttachToCampaign(ctx context.Context, raidID, campaignID string) (*Raid, error) {
	r, err := s.Get(ctx, raidID)
	if err != nil {
		return nil, err
	}
	if r.CampaignID != "" && r.CampaignID != campaignID {
		return nil, errutil.Conflict("raid already belongs to another campaign", nil)
	}
	if r.RewardsDistributed {
		return nil, errutil.Conflict("raid rewards were already distributed", nil)
	}

	err = s.db.WithContext(ctx).Model(&Raid{}).
		Where("id = ?", raidID).
		Update("campaign_id", campaignID).Error
	if err != nil {
		return nil, errutil.Unavailable("raid write failed", err)
	}
	r.CampaignID = campaignID
	return r, nil
}

// RecordAction verifies, scores and credits one engagement action.
//
// The duplicate check here is only a fast path; the unique index on
// (user_id, raid_id, action_type) is what actually serializes two concurrent
// attempts, so the insert happens before the ledger credit and the winner
// alone credits.
func (s *Service) RecordAction(ctx context.Context, raidID, userID string, actionType ActionType, data ActionData) (*UserAction, error) {
	if userID == "" {
		return nil, errutil.ValidationFailed("a user is required", nil)
	}
	if !actionType.Valid() {
		return nil, errutil.ValidationFailed("unknown action type", nil)
	}

	r, err := s.Get(ctx, raidID)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusActive {
		return nil, errutil.Conflict(fmt.Sprintf("raid is not active (status %s)", r.Status), nil)
	}

	verified := false
	if r.RequireVerification {
		verified, data, err = s.verifyAction(ctx, r, userID, actionType, data)
		if err != nil {
			return nil, err
		}
	}

	var count int64
	err = s.db.WithContext(ctx).Model(&UserAction{}).
		Where("user_id = ? AND raid_id = ? AND action_type = ?", userID, raidID, actionType).
		Count(&count).Error
	if err != nil {
		return nil, errutil.Unavailable("action read failed", err)
	}
	if count > 0 {
		return nil, errutil.Conflict("you already recorded this action for this raid", nil)
	}

	xp := xpFor(actionType, data)
	if actionType != ActionLike {
		liked, err := s.hasAction(ctx, raidID, userID, ActionLike)
		if err != nil {
			return nil, errutil.Unavailable("action read failed", err)
		}
		if !liked {
			xp = applyPenalty(xp)
		}
	}

	action := &UserAction{
		ID:         s.node.Generate().String(),
		UserID:     userID,
		RaidID:     raidID,
		ActionType: actionType,
		XPEarned:   xp,
		Verified:   verified,
	}
	if err := s.db.WithContext(ctx).Create(action).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errutil.Conflict("you already recorded this action for this raid", nil)
		}
		return nil, errutil.Unavailable("action write failed", err)
	}

	if _, err := s.ledger.Credit(ctx, userID, xp, ledger.SourceRaid, raidID); err != nil {
		// Roll the gate row back so the caller can retry cleanly.
		if delErr := s.db.WithContext(ctx).Delete(action).Error; delErr != nil {
			zap.L().Error("ACTION RECORDED WITHOUT LEDGER CREDIT",
				zap.String("raid_id", raidID),
				zap.String("user_id", userID),
				zap.String("action_type", string(actionType)),
				zap.Error(delErr),
			)
		}
		return nil, err
	}

	if err := s.recountActuals(ctx, raidID); err != nil {
		// Counters are derived state and self-heal on the next recount.
		zap.L().Warn("actuals recount failed", zap.String("raid_id", raidID), zap.Error(err))
	}

	return action, nil
}

// Terminate moves an active raid to its terminal state. Idempotent: a raid
// that is already terminal is returned as-is, so a scheduled firing and a
// manual command can race without a double settlement.
func (s *Service) Terminate(ctx context.Context, raidID string, reason TerminateReason) (*Raid, error) {
	r, err := s.Get(ctx, raidID)
	if err != nil {
		return nil, err
	}
	if r.Status.Terminal() {
		return r, nil
	}

	if err := s.recountActuals(ctx, raidID); err != nil {
		return nil, errutil.Unavailable("actuals recount failed", err)
	}
	r, err = s.Get(ctx, raidID)
	if err != nil {
		return nil, err
	}

	final := StatusFailed
	if r.TargetsMet() {
		final = StatusCompleted
	}
	if reason == ReasonCancelled {
		final = StatusCancelled
	}

	updates := map[string]any{"status": final}
	if r.EndTime == nil {
		updates["end_time"] = time.Now()
	}

	// Single-winner claim. Whoever flips active to terminal first owns the
	// settlement; the loser observes a terminal raid and no-ops.
	claim := s.db.WithContext(ctx).Model(&Raid{}).
		Where("id = ? AND status = ?", raidID, StatusActive).
		Updates(updates)
	if claim.Error != nil {
		return nil, errutil.Unavailable("raid write failed", claim.Error)
	}
	if claim.RowsAffected == 0 {
		return s.Get(ctx, raidID)
	}

	r, err = s.Get(ctx, raidID)
	if err != nil {
		return nil, err
	}

	zap.L().Info("raid terminated",
		zap.String("raid_id", raidID),
		zap.String("status", string(r.Status)),
		zap.String("reason", string(reason)),
	)

	if r.Status == StatusCompleted && r.RewardConfigured() && !r.RewardsDistributed && r.CampaignID == "" {
		if _, err := s.settle(ctx, r); err != nil {
			// Terminal state stands; settlement is retryable out-of-band.
			zap.L().Error("raid settlement failed",
				zap.String("raid_id", raidID),
				zap.Error(err),
			)
		}
	}

	return s.Get(ctx, raidID)
}

// RetrySettlement replays the payout batch for a completed raid. Safe to call
// repeatedly: recipients with a success record are skipped.
func (s *Service) RetrySettlement(ctx context.Context, raidID string) (*settlement.Result, error) {
	r, err := s.Get(ctx, raidID)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusCompleted {
		return nil, errutil.Conflict("raid did not complete; nothing to settle", nil)
	}
	if !r.RewardConfigured() {
		return nil, errutil.Conflict("raid has no reward configured", nil)
	}
	if r.CampaignID != "" {
		return nil, errutil.Conflict("campaign-linked raids settle at campaign termination", nil)
	}
	return s.settle(ctx, r)
}

func (s *Service) settle(ctx context.Context, r *Raid) (*settlement.Result, error) {
	totals, err := s.ledger.TotalsForSources(ctx, []ledger.Source{{Type: ledger.SourceRaid, ID: r.ID}})
	if err != nil {
		return nil, err
	}

	wallets := reward.ResolveWallets(ctx, s.wallets, totals)
	rewards := reward.Calculate(reward.Config{
		SourceID:    r.ID,
		TokenType:   r.TokenType,
		TokenSymbol: r.TokenSymbol,
		ThresholdXP: r.ThresholdXP,
		TokenPerXP:  r.TokenPerXP,
		TotalPool:   r.TotalReward,
	}, totals, wallets)

	result, err := s.settlement.Settle(ctx, rewards, ledger.SourceRaid, r.ID)
	if err != nil {
		return result, err
	}

	// The batch loop completed; per-recipient failures stay retryable but do
	// not hold the flag back.
	err = s.db.WithContext(ctx).Model(&Raid{}).
		Where("id = ?", r.ID).
		Update("rewards_distributed", true).Error
	if err != nil {
		return result, errutil.Unavailable("raid write failed", err)
	}
	return result, nil
}

func (s *Service) verifyAction(ctx context.Context, r *Raid, userID string, actionType ActionType, data ActionData) (bool, ActionData, error) {
	postID := r.TweetID

	switch actionType {
	case ActionLike:
		ok, err := s.verifier.HasLiked(ctx, userID, postID)
		if err != nil {
			return false, data, errutil.Unavailable("verification service unavailable", err)
		}
		if !ok {
			return false, data, errutil.BadRequest("we could not verify your like on the target post", nil)
		}
		return true, data, nil

	case ActionRetweet:
		ok, err := s.verifier.HasRetweeted(ctx, userID, postID)
		if err != nil {
			return false, data, errutil.Unavailable("verification service unavailable", err)
		}
		if !ok {
			return false, data, errutil.BadRequest("we could not verify your retweet of the target post", nil)
		}
		return true, data, nil

	case ActionComment:
		replies, err := s.verifier.GetReplies(ctx, userID, postID)
		if err != nil {
			return false, data, errutil.Unavailable("verification service unavailable", err)
		}
		if len(replies) == 0 {
			return false, data, errutil.BadRequest("we could not find your comment on the target post", nil)
		}
		// Score from what the platform reports, not what the caller claims.
		reply := replies[0]
		data.CommentText = reply.Text
		data.HasMedia = reply.HasMedia
		data.IsAnimated = reply.IsAnimated
		return true, data, nil

	case ActionBookmark:
		// Bookmarks are private on the platform; self-reported only.
		return false, data, nil
	}

	return false, data, errutil.ValidationFailed("unknown action type", nil)
}

func (s *Service) hasAction(ctx context.Context, raidID, userID string, actionType ActionType) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&UserAction{}).
		Where("user_id = ? AND raid_id = ? AND action_type = ?", userID, raidID, actionType).
		Count(&count).Error
	return count > 0, err
}

// recountActuals rebuilds the cached engagement counters from user_actions
// rows. A full recount instead of increments keeps the counters self-healing.
func (s *Service) recountActuals(ctx context.Context, raidID string) error {
	counts := map[ActionType]int64{}
	rows := []struct {
		ActionType ActionType
		Count      int64
	}{}
	err := s.db.WithContext(ctx).Model(&UserAction{}).
		Select("action_type, COUNT(*) AS count").
		Where("raid_id = ?", raidID).
		Group("action_type").
		Scan(&rows).Error
	if err != nil {
		return err
	}
	for _, row := range rows {
		counts[row.ActionType] = row.Count
	}

	return s.db.WithContext(ctx).Model(&Raid{}).
		Where("id = ?", raidID).
		Updates(map[string]any{
			"actual_likes":    counts[ActionLike],
			"actual_retweets": counts[ActionRetweet],
			"actual_comments": counts[ActionComment],
		}).Error
}

func (s *Service) scheduleTermination(r *Raid) error {
	t, err := NewTerminateTask(r.ID)
	if err != nil {
		return err
	}
	_, err = s.enqueuer.Enqueue(t,
		asynq.ProcessAt(*r.EndTime),
		asynq.TaskID(taskname.RaidTerminate+":"+r.ID),
		asynq.MaxRetry(5),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}
