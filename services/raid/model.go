package raid

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
// RewardsDistributed is the only field that may still change afterwards.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type ActionType string

const (
	ActionLike     ActionType = "like"
	ActionRetweet  ActionType = "retweet"
	ActionComment  ActionType = "comment"
	ActionBookmark ActionType = "bookmark"
)

func (a ActionType) Valid() bool {
	switch a {
	case ActionLike, ActionRetweet, ActionComment, ActionBookmark:
		return true
	}
	return false
}

// TerminateReason records who or what ended the raid.
type TerminateReason string

const (
	ReasonScheduled TerminateReason = "scheduled"
	ReasonManual    TerminateReason = "manual"
	ReasonCancelled TerminateReason = "cancelled"
)

// Raid is a single time-boxed engagement event tied to one post.
// Actuals are cached counters recounted from user_actions rows; the rows are
// the source of truth.
type Raid struct {
	ID       string `gorm:"column:id;primaryKey" json:"id"`
	TweetID  string `gorm:"column:tweet_id;not null" json:"tweet_id"`
	TweetURL string `gorm:"column:tweet_url" json:"tweet_url"`
	AdminID  string `gorm:"column:admin_id;not null" json:"admin_id"`
	ChatID   string `gorm:"column:chat_id;not null" json:"chat_id"`

	Status    Status        `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
	StartTime time.Time     `gorm:"column:start_time" json:"start_time"`
	EndTime   *time.Time    `gorm:"column:end_time" json:"end_time,omitempty"`
	Duration  time.Duration `gorm:"column:duration" json:"duration"`

	TargetLikes    int64 `gorm:"column:target_likes" json:"target_likes"`
	TargetRetweets int64 `gorm:"column:target_retweets" json:"target_retweets"`
	TargetComments int64 `gorm:"column:target_comments" json:"target_comments"`
	ActualLikes    int64 `gorm:"column:actual_likes" json:"actual_likes"`
	ActualRetweets int64 `gorm:"column:actual_retweets" json:"actual_retweets"`
	ActualComments int64 `gorm:"column:actual_comments" json:"actual_comments"`

	TokenType   string          `gorm:"column:token_type" json:"token_type,omitempty"`
	TokenSymbol string          `gorm:"column:token_symbol" json:"token_symbol,omitempty"`
	TotalReward decimal.Decimal `gorm:"column:total_reward;type:decimal(38,18)" json:"total_reward"`
	TokenPerXP  decimal.Decimal `gorm:"column:token_per_xp;type:decimal(38,18)" json:"token_per_xp"`
	ThresholdXP int64           `gorm:"column:threshold_xp" json:"threshold_xp"`

	CampaignID          string `gorm:"column:campaign_id;index" json:"campaign_id,omitempty"`
	RewardsDistributed  bool   `gorm:"column:rewards_distributed" json:"rewards_distributed"`
	RequireVerification bool   `gorm:"column:require_verification" json:"require_verification"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Raid) TableName() string { return "raids" }

// RewardConfigured reports whether any payout model is attached.
func (r *Raid) RewardConfigured() bool {
	return r.TokenPerXP.IsPositive() || r.TotalReward.IsPositive()
}

// TargetsMet checks every configured (nonzero) target against the actuals.
// A raid with no targets at all always meets them.
func (r *Raid) TargetsMet() bool {
	if r.TargetLikes > 0 && r.ActualLikes < r.TargetLikes {
		return false
	}
	if r.TargetRetweets > 0 && r.ActualRetweets < r.TargetRetweets {
		return false
	}
	if r.TargetComments > 0 && r.ActualComments < r.TargetComments {
		return false
	}
	return true
}

// UserAction is one engagement record. The unique index is the primary
// defense against double-crediting; the application-level duplicate check is
// only a fast path in front of it.
type UserAction struct {
	ID         string     `gorm:"column:id;primaryKey" json:"id"`
	UserID     string     `gorm:"column:user_id;uniqueIndex:uniq_user_raid_action,priority:1;not null" json:"user_id"`
	RaidID     string     `gorm:"column:raid_id;uniqueIndex:uniq_user_raid_action,priority:2;index;not null" json:"raid_id"`
	ActionType ActionType `gorm:"column:action_type;type:varchar(20);uniqueIndex:uniq_user_raid_action,priority:3;not null" json:"action_type"`
	XPEarned   int64      `gorm:"column:xp_earned;not null" json:"xp_earned"`
	Verified   bool       `gorm:"column:verified" json:"verified"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (UserAction) TableName() string { return "user_actions" }

// ActionData carries the caller-supplied detail of a comment action. Ignored
// for other action types. When the raid requires verification the flags are
// taken from the verified reply instead.
type ActionData struct {
	CommentText string `json:"comment_text,omitempty"`
	HasMedia    bool   `json:"has_media,omitempty"`
	IsAnimated  bool   `json:"is_animated,omitempty"`
}

// CreateInput is the validated shape Activate accepts.
type CreateInput struct {
	TweetID  string        `json:"tweet_id"`
	TweetURL string        `json:"tweet_url"`
	AdminID  string        `json:"admin_id"`
	ChatID   string        `json:"chat_id"`
	Duration time.Duration `json:"duration"`

	TargetLikes    int64 `json:"target_likes"`
	TargetRetweets int64 `json:"target_retweets"`
	TargetComments int64 `json:"target_comments"`

	TokenType   string          `json:"token_type"`
	TokenSymbol string          `json:"token_symbol"`
	TotalReward decimal.Decimal `json:"total_reward"`
	TokenPerXP  decimal.Decimal `json:"token_per_xp"`
	ThresholdXP int64           `json:"threshold_xp"`

	CampaignID          string `json:"campaign_id"`
	RequireVerification bool   `json:"require_verification"`
}
