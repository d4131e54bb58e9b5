package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cannedoxygen/Sui-Raid/pkg/collab"
	"github.com/cannedoxygen/Sui-Raid/pkg/config"
	"github.com/cannedoxygen/Sui-Raid/pkg/errutil"
	"github.com/cannedoxygen/Sui-Raid/services/ledger"
	"github.com/cannedoxygen/Sui-Raid/services/reward"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service converts a computed reward list into transfers, at most once per
// recipient, isolating every recipient's failure from the rest of the batch.
type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	transfer collab.Transferrer
	notify   collab.Notifier

	delay    time.Duration
	decimals int32
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Config   *config.Config
	Transfer collab.Transferrer
	Notify   collab.Notifier
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		transfer: p.Transfer,
		notify:   p.Notify,
		delay:    p.Config.Engine.SettlementDelay,
		decimals: p.Config.Engine.TokenDecimals,
	}
}

// Settle pays out rewards sequentially. Per recipient: skip when a success
// record already exists, truncate the exact amount to the token's smallest
// unit, attempt the transfer, and record the outcome immediately. A delay
// between attempts throttles the transfer medium. One recipient's failure
// never blocks or rolls back another's payout.
func (s *Service) Settle(ctx context.Context, rewards []reward.Reward, sourceType ledger.SourceType, sourceID string) (*Result, error) {
	zapLog := zap.L().With(
		zap.String("source_type", string(sourceType)),
		zap.String("source_id", sourceID),
		zap.Int("recipients", len(rewards)),
	)
	zapLog.Info("settlement batch started")

	result := &Result{}
	for i, r := range rewards {
		if i > 0 && s.delay > 0 {
			select {
			case <-time.After(s.delay):
			case <-ctx.Done():
				return result, errutil.Timeout("settlement batch interrupted", ctx.Err())
			}
		}

		settled, err := s.alreadySettled(ctx, sourceType, sourceID, r.UserID)
		if err != nil {
			// Cannot prove at-most-once for this recipient; do not transfer.
			result.Failed = append(result.Failed, s.record(ctx, sourceType, sourceID, r, "", StatusFailed, FailureTransient, err))
			continue
		}
		if settled {
			result.Skipped++
			continue
		}

		rec := s.attempt(ctx, sourceType, sourceID, r)
		if rec.Status == StatusSuccess {
			result.Successful = append(result.Successful, rec)
			s.notify.Notify(ctx, r.UserID, fmt.Sprintf("You received %s %s for your participation.", rec.Amount, r.TokenSymbol))
		} else {
			result.Failed = append(result.Failed, rec)
			s.notify.Notify(ctx, r.UserID, "Your reward payout failed. The team has been notified.")
		}
	}

	zapLog.Info("settlement batch finished",
		zap.Int("successful", len(result.Successful)),
		zap.Int("failed", len(result.Failed)),
		zap.Int("skipped", result.Skipped),
	)

	return result, nil
}

func (s *Service) attempt(ctx context.Context, sourceType ledger.SourceType, sourceID string, r reward.Reward) Record {
	amount := r.TokenAmount.Truncate(s.decimals)
	if !amount.IsPositive() {
		// Below the token's smallest unit. Broadcasting would fail anyway.
		return s.record(ctx, sourceType, sourceID, r, "", StatusFailed, FailurePermanent,
			fmt.Errorf("amount %s truncates below smallest unit", r.TokenAmount.String()))
	}

	txID, err := s.transfer.Transfer(ctx, r.WalletAddress, r.TokenType, amount.String())
	if err != nil {
		zap.L().Warn("transfer failed",
			zap.String("user_id", r.UserID),
			zap.String("wallet", r.WalletAddress),
			zap.String("amount", amount.String()),
			zap.Error(err),
		)
		return s.record(ctx, sourceType, sourceID, r, "", StatusFailed, classify(err), err)
	}

	rec := s.record(ctx, sourceType, sourceID, r, txID, StatusSuccess, "", nil)
	rec.Amount = amount.String()
	return rec
}

// record persists the attempt outcome immediately, not batched, so a crash
// between recipients loses at most the in-flight attempt.
func (s *Service) record(ctx context.Context, sourceType ledger.SourceType, sourceID string, r reward.Reward, txID string, status RecordStatus, kind FailureKind, cause error) Record {
	rec := Record{
		ID:          s.node.Generate().String(),
		SourceType:  sourceType,
		SourceID:    sourceID,
		UserID:      r.UserID,
		Wallet:      r.WalletAddress,
		Amount:      r.TokenAmount.Truncate(s.decimals).String(),
		TokenType:   r.TokenType,
		TxID:        txID,
		Status:      status,
		FailureKind: kind,
	}
	if cause != nil {
		rec.Error = cause.Error()
	}

	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		// The transfer may have happened; losing the audit row risks a double
		// payout on retry. Loud log, nothing else we can do here.
		zap.L().Error("FAILED TO PERSIST SETTLEMENT RECORD",
			zap.String("user_id", r.UserID),
			zap.String("source_id", sourceID),
			zap.String("tx_id", txID),
			zap.Error(err),
		)
	}
	return rec
}

func (s *Service) alreadySettled(ctx context.Context, sourceType ledger.SourceType, sourceID, userID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Record{}).
		Where("source_type = ? AND source_id = ? AND user_id = ? AND status = ?",
			sourceType, sourceID, userID, StatusSuccess).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Records lists the audit trail for one raid or campaign, newest first.
func (s *Service) Records(ctx context.Context, sourceType ledger.SourceType, sourceID string) ([]Record, error) {
	var records []Record
	err := s.db.WithContext(ctx).
		Where("source_type = ? AND source_id = ?", sourceType, sourceID).
		Order("created_at DESC, id DESC").
		Find(&records).Error
	if err != nil {
		return nil, errutil.Unavailable("settlement records read failed", err)
	}
	return records, nil
}

// classify sorts a transfer error into retryable or not. Timeouts and
// dependency outages may clear on their own; anything else needs a human.
func classify(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return FailureTransient
	}
	switch errutil.StatusOf(err) {
	case errutil.StatusTimeout, errutil.StatusServiceUnavailable:
		return FailureTransient
	}
	return FailurePermanent
}
