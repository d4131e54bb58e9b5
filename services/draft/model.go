package draft

import (
	"time"

	"gorm.io/datatypes"
)

// Kind says which entity the draft is staging.
type Kind string

const (
	KindRaid     Kind = "raid"
	KindCampaign Kind = "campaign"
)

func (k Kind) Valid() bool {
	return k == KindRaid || k == KindCampaign
}

// Stage is one step of the creation wizard. Raids walk
// token -> reward -> targets -> confirm, campaigns dates -> reward -> confirm.
type Stage string

const (
	StageToken   Stage = "token"
	StageReward  Stage = "reward"
	StageTargets Stage = "targets"
	StageDates   Stage = "dates"
	StageConfirm Stage = "confirm"
)

var stageOrder = map[Kind][]Stage{
	KindRaid:     {StageToken, StageReward, StageTargets, StageConfirm},
	KindCampaign: {StageDates, StageReward, StageConfirm},
}

// next returns the stage after s for the given kind, or "" when s is last.
func next(kind Kind, s Stage) Stage {
	order := stageOrder[kind]
	for i, stage := range order {
		if stage == s && i+1 < len(order) {
			return order[i+1]
		}
	}
	return ""
}

// Draft is persisted multi-step creation state, keyed by admin, chat and
// kind. One in-flight draft per key; an abandoned draft expires at ExpiresAt
// instead of lingering in process memory.
type Draft struct {
	ID      string `gorm:"column:id;primaryKey" json:"id"`
	AdminID string `gorm:"column:admin_id;uniqueIndex:uniq_draft_key,priority:1;not null" json:"admin_id"`
	ChatID  string `gorm:"column:chat_id;uniqueIndex:uniq_draft_key,priority:2;not null" json:"chat_id"`
	Kind    Kind   `gorm:"column:kind;type:varchar(20);uniqueIndex:uniq_draft_key,priority:3;not null" json:"kind"`

	Stage   Stage          `gorm:"column:stage;type:varchar(20);not null" json:"stage"`
	Payload datatypes.JSON `gorm:"column:payload" json:"payload"`

	ExpiresAt time.Time `gorm:"column:expires_at;index;not null" json:"expires_at"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Draft) TableName() string { return "drafts" }

func (d *Draft) Expired(now time.Time) bool {
	return !d.ExpiresAt.After(now)
}
