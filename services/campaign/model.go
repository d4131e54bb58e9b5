package campaign

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type TerminateReason string

const (
	ReasonScheduled TerminateReason = "scheduled"
	ReasonManual    TerminateReason = "manual"
	ReasonCancelled TerminateReason = "cancelled"
)

// Campaign is a long-running container that aggregates XP across its member
// raids toward a shared threshold and reward pool.
type Campaign struct {
	ID      string `gorm:"column:id;primaryKey" json:"id"`
	Name    string `gorm:"column:name;not null" json:"name"`
	AdminID string `gorm:"column:admin_id;not null" json:"admin_id"`
	ChatID  string `gorm:"column:chat_id;not null" json:"chat_id"`

	Status    Status    `gorm:"column:status;type:varchar(20);index;not null" json:"status"`
	StartDate time.Time `gorm:"column:start_date;not null" json:"start_date"`
	EndDate   time.Time `gorm:"column:end_date;not null" json:"end_date"`

	TokenType   string          `gorm:"column:token_type" json:"token_type,omitempty"`
	TokenSymbol string          `gorm:"column:token_symbol" json:"token_symbol,omitempty"`
	TotalBudget decimal.Decimal `gorm:"column:total_budget;type:decimal(38,18)" json:"total_budget"`
	TokenPerXP  decimal.Decimal `gorm:"column:token_per_xp;type:decimal(38,18)" json:"token_per_xp"`
	ThresholdXP int64           `gorm:"column:threshold_xp;not null" json:"threshold_xp"`

	RewardsDistributed bool `gorm:"column:rewards_distributed" json:"rewards_distributed"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Campaign) TableName() string { return "campaigns" }

func (c *Campaign) RewardConfigured() bool {
	return c.TokenPerXP.IsPositive() || c.TotalBudget.IsPositive()
}

// CreateInput is the validated shape Create accepts.
type CreateInput struct {
	Name      string    `json:"name"`
	AdminID   string    `json:"admin_id"`
	ChatID    string    `json:"chat_id"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	TokenType   string          `json:"token_type"`
	TokenSymbol string          `json:"token_symbol"`
	TotalBudget decimal.Decimal `json:"total_budget"`
	TokenPerXP  decimal.Decimal `json:"token_per_xp"`
	ThresholdXP int64           `json:"threshold_xp"`
}
