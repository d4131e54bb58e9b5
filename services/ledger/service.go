package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/cannedoxygen/Sui-Raid/pkg/errutil"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Service is the only writer of XP. Every other component reads and writes
// experience exclusively through it.
type Service struct {
	db   *gorm.DB
	node *snowflake.Node
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
	}
}

// Credit atomically appends an XP entry and moves the user's cached total.
// The append and the cache update commit or fail as one transaction; a
// half-applied credit would break the sum invariant.
func (s *Service) Credit(ctx context.Context, userID string, amount int64, sourceType SourceType, sourceID string) (*Entry, error) {
	if amount <= 0 {
		return nil, errutil.ValidationFailed("xp amount must be positive", nil)
	}
	if !sourceType.Valid() {
		return nil, errutil.ValidationFailed("unknown xp source type", nil)
	}
	if userID == "" || sourceID == "" {
		return nil, errutil.ValidationFailed("user and source are required", nil)
	}

	var entry *Entry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cached UserXP
		err := lockForUpdate(tx).
			Where("user_id = ?", userID).
			First(&cached).Error
		fresh := errors.Is(err, gorm.ErrRecordNotFound)
		if err != nil && !fresh {
			return err
		}

		var last Entry
		err = tx.Where("user_id = ?", userID).
			Order("created_at DESC, id DESC").
			First(&last).Error
		hasLast := err == nil
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		entry = &Entry{
			ID:            s.node.Generate().String(),
			UserID:        userID,
			Amount:        amount,
			SourceType:    sourceType,
			SourceID:      sourceID,
			PreviousTotal: cached.Total,
			NewTotal:      cached.Total + amount,
			CreatedAt:     time.Now(),
		}
		if hasLast {
			entry.PreviousHash = last.Hash
		}
		entry.Hash = entry.GenerateHash()

		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		if fresh {
			return tx.Create(&UserXP{
				UserID:    userID,
				Total:     entry.NewTotal,
				UpdatedAt: time.Now(),
			}).Error
		}
		return tx.Model(&UserXP{}).
			Where("user_id = ?", userID).
			Updates(map[string]any{
				"total":      entry.NewTotal,
				"updated_at": time.Now(),
			}).Error
	})
	if err != nil {
		zap.L().Error("ledger credit failed",
			zap.String("user_id", userID),
			zap.String("source_type", string(sourceType)),
			zap.String("source_id", sourceID),
			zap.Error(err),
		)
		return nil, errutil.Unavailable("ledger write failed", err)
	}

	return entry, nil
}

// Total returns the user's cached lifetime XP.
func (s *Service) Total(ctx context.Context, userID string) (int64, error) {
	var cached UserXP
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&cached).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, errutil.Unavailable("ledger read failed", err)
	}
	return cached.Total, nil
}

// TotalFor sums the user's entries for one source. This is the only sanctioned
// way to read "how much XP did user X earn from raid/campaign Y"; callers must
// not cache the result beyond one calculation.
func (s *Service) TotalFor(ctx context.Context, userID string, sourceType SourceType, sourceID string) (int64, error) {
	return s.TotalForSources(ctx, userID, []Source{{Type: sourceType, ID: sourceID}})
}

// TotalForSources sums the user's entries across a set of sources. Campaigns
// use this to fold their own entries together with every child raid's.
func (s *Service) TotalForSources(ctx context.Context, userID string, sources []Source) (int64, error) {
	if len(sources) == 0 {
		return 0, nil
	}

	var total int64
	err := s.db.WithContext(ctx).Model(&Entry{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ?", userID).
		Where(sourceCondition(s.db, sources)).
		Scan(&total).Error
	if err != nil {
		return 0, errutil.Unavailable("ledger read failed", err)
	}
	return total, nil
}

// TotalsForSources returns per-user XP sums across a set of sources, the
// calculator's input at termination time.
func (s *Service) TotalsForSources(ctx context.Context, sources []Source) ([]UserTotal, error) {
	if len(sources) == 0 {
		return nil, nil
	}

	var totals []UserTotal
	err := s.db.WithContext(ctx).Model(&Entry{}).
		Select("user_id, SUM(amount) AS total").
		Where(sourceCondition(s.db, sources)).
		Group("user_id").
		Order("user_id").
		Scan(&totals).Error
	if err != nil {
		return nil, errutil.Unavailable("ledger read failed", err)
	}
	return totals, nil
}

// Entries lists a user's grants, oldest first.
func (s *Service) Entries(ctx context.Context, userID string) ([]Entry, error) {
	var entries []Entry
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, errutil.Unavailable("ledger read failed", err)
	}
	return entries, nil
}

// Reconcile checks the cached total against the entry sum. Drift means a
// partially applied write slipped through and needs operator attention; it is
// logged loudly and reported as an error.
func (s *Service) Reconcile(ctx context.Context, userID string) error {
	var sum int64
	if err := s.db.WithContext(ctx).Model(&Entry{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ?", userID).
		Scan(&sum).Error; err != nil {
		return errutil.Unavailable("ledger read failed", err)
	}

	cached, err := s.Total(ctx, userID)
	if err != nil {
		return err
	}

	if cached != sum {
		zap.L().Error("LEDGER DRIFT: cached total diverged from entry sum",
			zap.String("user_id", userID),
			zap.Int64("cached", cached),
			zap.Int64("entry_sum", sum),
		)
		return errutil.Internal("ledger drift detected", nil)
	}
	return nil
}

// VerifyChain walks the user's entries and checks hash continuity together
// with the previous/new total bookkeeping.
func (s *Service) VerifyChain(ctx context.Context, userID string) (bool, error) {
	entries, err := s.Entries(ctx, userID)
	if err != nil {
		return false, err
	}

	var lastHash string
	var runningTotal int64
	for i := range entries {
		e := &entries[i]
		if e.Hash != e.GenerateHash() || e.PreviousHash != lastHash {
			return false, nil
		}
		if e.PreviousTotal != runningTotal || e.NewTotal != runningTotal+e.Amount {
			return false, nil
		}
		lastHash = e.Hash
		runningTotal = e.NewTotal
	}
	return true, nil
}

// lockForUpdate applies row-level locking where the dialect supports it.
// SQLite serializes writers on its own and rejects FOR UPDATE.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

func sourceCondition(db *gorm.DB, sources []Source) *gorm.DB {
	cond := db.Where("source_type = ? AND source_id = ?", sources[0].Type, sources[0].ID)
	for _, src := range sources[1:] {
		cond = cond.Or("source_type = ? AND source_id = ?", src.Type, src.ID)
	}
	return cond
}
