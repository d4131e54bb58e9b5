package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// SourceType identifies which kind of event earned the XP.
type SourceType string

const (
	SourceRaid     SourceType = "raid"
	SourceCampaign SourceType = "campaign"
)

func (t SourceType) Valid() bool {
	return t == SourceRaid || t == SourceCampaign
}

// Entry is one immutable XP grant. The ledger is append-only: entries are
// never updated or deleted, and a user's running total must always equal the
// sum of their entries' amounts in timestamp order.
type Entry struct {
	ID            string     `gorm:"column:id;primaryKey"`
	UserID        string     `gorm:"column:user_id;index:idx_entry_user;index:idx_entry_source,priority:3;not null"`
	Amount        int64      `gorm:"column:amount;not null"`
	SourceType    SourceType `gorm:"column:source_type;type:varchar(20);index:idx_entry_source,priority:1;not null"`
	SourceID      string     `gorm:"column:source_id;index:idx_entry_source,priority:2;not null"`
	PreviousTotal int64      `gorm:"column:previous_total;not null"`
	NewTotal      int64      `gorm:"column:new_total;not null"`
	PreviousHash  string     `gorm:"column:previous_hash"`
	Hash          string     `gorm:"column:hash"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (Entry) TableName() string { return "xp_entries" }

// UserXP is the cached running total per user. Only the ledger writes it, and
// only inside the same transaction that appends the entry.
type UserXP struct {
	UserID    string    `gorm:"column:user_id;primaryKey"`
	Total     int64     `gorm:"column:total;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (UserXP) TableName() string { return "user_xp" }

// Source names one XP source for aggregate queries.
type Source struct {
	Type SourceType
	ID   string
}

// UserTotal is a per-user XP sum over some set of sources.
type UserTotal struct {
	UserID string `gorm:"column:user_id"`
	Total  int64  `gorm:"column:total"`
}

func (e *Entry) hashFields() map[string]string {
	return map[string]string{
		"id":             e.ID,
		"user_id":        e.UserID,
		"amount":         fmt.Sprintf("%d", e.Amount),
		"source_type":    string(e.SourceType),
		"source_id":      e.SourceID,
		"previous_total": fmt.Sprintf("%d", e.PreviousTotal),
		"new_total":      fmt.Sprintf("%d", e.NewTotal),
		"previous_hash":  e.PreviousHash,
	}
}

// GenerateHash derives the tamper-evidence hash from the entry's immutable
// fields plus the previous entry's hash.
func (e *Entry) GenerateHash() string {
	fields := e.hashFields()
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, fields[k]))
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
