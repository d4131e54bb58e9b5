package settlement

import (
	"time"

	"github.com/cannedoxygen/Sui-Raid/services/ledger"
)

type RecordStatus string

const (
	StatusSuccess RecordStatus = "success"
	StatusFailed  RecordStatus = "failed"
)

// FailureKind separates transfer failures an operator may retry from ones
// they must fix first.
type FailureKind string

const (
	// FailureTransient covers network errors and timeouts; eligible for a
	// manual retry.
	FailureTransient FailureKind = "transient"
	// FailurePermanent covers invalid wallets, dust amounts and issuer
	// balance problems; surfaced to the admin, never auto-retried.
	FailurePermanent FailureKind = "permanent"
)

// Record is the append-only audit trail of payout attempts. A success row for
// (source_type, source_id, user_id) is the at-most-once guarantee that
// survives process restarts mid-batch.
type Record struct {
	ID          string            `gorm:"column:id;primaryKey"`
	SourceType  ledger.SourceType `gorm:"column:source_type;type:varchar(20);index:idx_settlement_source,priority:1;not null"`
	SourceID    string            `gorm:"column:source_id;index:idx_settlement_source,priority:2;not null"`
	UserID      string            `gorm:"column:user_id;index:idx_settlement_source,priority:3;not null"`
	Wallet      string            `gorm:"column:wallet"`
	Amount      string            `gorm:"column:amount"`
	TokenType   string            `gorm:"column:token_type"`
	TxID        string            `gorm:"column:tx_id"`
	Status      RecordStatus      `gorm:"column:status;type:varchar(20);not null"`
	FailureKind FailureKind       `gorm:"column:failure_kind;type:varchar(20)"`
	Error       string            `gorm:"column:error;type:text"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (Record) TableName() string { return "settlement_records" }

// Result is the outcome of one settlement batch. Individual failures live in
// Failed; they never abort the batch.
type Result struct {
	Successful []Record
	Failed     []Record
	Skipped    int
}
