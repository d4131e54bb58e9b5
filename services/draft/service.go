package draft

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cannedoxygen/Sui-Raid/pkg/config"
	"github.com/cannedoxygen/Sui-Raid/pkg/errutil"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service runs the persisted creation wizard. An admin walks a draft through
// its stages; the accumulated payload becomes the raid or campaign create
// input at the end. Every draft carries a TTL so abandoned wizards clean
// themselves up.
type Service struct {
	db   *gorm.DB
	node *snowflake.Node
	ttl  time.Duration
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
		ttl:  p.Config.Engine.DraftTTL,
	}
}

// Begin starts a fresh draft at the first stage of its kind, replacing any
// draft the same admin already has in the same chat.
func (s *Service) Begin(ctx context.Context, adminID, chatID string, kind Kind) (*Draft, error) {
	if adminID == "" || chatID == "" {
		return nil, errutil.ValidationFailed("admin and chat are required", nil)
	}
	if !kind.Valid() {
		return nil, errutil.ValidationFailed("unknown draft kind", nil)
	}

	d := &Draft{
		ID:        s.node.Generate().String(),
		AdminID:   adminID,
		ChatID:    chatID,
		Kind:      kind,
		Stage:     stageOrder[kind][0],
		Payload:   []byte("{}"),
		ExpiresAt: time.Now().Add(s.ttl),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("admin_id = ? AND chat_id = ? AND kind = ?", adminID, chatID, kind).
			Delete(&Draft{}).Error; err != nil {
			return err
		}
		return tx.Create(d).Error
	})
	if err != nil {
		return nil, errutil.Unavailable("draft write failed", err)
	}
	return d, nil
}

// Get returns the live draft for the key. An expired draft is reported as
// missing; the sweep deletes the row later.
func (s *Service) Get(ctx context.Context, adminID, chatID string, kind Kind) (*Draft, error) {
	var d Draft
	err := s.db.WithContext(ctx).
		Where("admin_id = ? AND chat_id = ? AND kind = ?", adminID, chatID, kind).
		First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errutil.NotFound("no draft in progress", err)
	}
	if err != nil {
		return nil, errutil.Unavailable("draft read failed", err)
	}
	if d.Expired(time.Now()) {
		return nil, errutil.NotFound("the draft expired; start over", nil)
	}
	return &d, nil
}

// Advance merges the stage's answers into the payload and moves to the next
// stage. Advancing past confirm is a conflict; the TTL is refreshed on every
// successful step.
func (s *Service) Advance(ctx context.Context, adminID, chatID string, kind Kind, answers json.RawMessage) (*Draft, error) {
	d, err := s.Get(ctx, adminID, chatID, kind)
	if err != nil {
		return nil, err
	}

	nextStage := next(kind, d.Stage)
	if nextStage == "" {
		return nil, errutil.Conflict("the draft is already at confirmation", nil)
	}

	merged, err := mergePayload(d.Payload, answers)
	if err != nil {
		return nil, errutil.ValidationFailed("answers must be a JSON object", err)
	}

	d.Stage = nextStage
	d.Payload = merged
	d.ExpiresAt = time.Now().Add(s.ttl)

	err = s.db.WithContext(ctx).Model(&Draft{}).
		Where("id = ?", d.ID).
		Updates(map[string]any{
			"stage":      d.Stage,
			"payload":    d.Payload,
			"expires_at": d.ExpiresAt,
		}).Error
	if err != nil {
		return nil, errutil.Unavailable("draft write failed", err)
	}
	return d, nil
}

// Finish returns the assembled payload of a draft that reached confirmation
// and deletes the draft. The caller turns the payload into the real entity.
func (s *Service) Finish(ctx context.Context, adminID, chatID string, kind Kind) (json.RawMessage, error) {
	d, err := s.Get(ctx, adminID, chatID, kind)
	if err != nil {
		return nil, err
	}
	if d.Stage != StageConfirm {
		return nil, errutil.Conflict("the draft has unanswered steps left", nil)
	}

	if err := s.db.WithContext(ctx).Delete(&Draft{}, "id = ?", d.ID).Error; err != nil {
		return nil, errutil.Unavailable("draft write failed", err)
	}
	return json.RawMessage(d.Payload), nil
}

// Cancel discards the draft. Cancelling a missing draft is a no-op.
func (s *Service) Cancel(ctx context.Context, adminID, chatID string, kind Kind) error {
	err := s.db.WithContext(ctx).
		Where("admin_id = ? AND chat_id = ? AND kind = ?", adminID, chatID, kind).
		Delete(&Draft{}).Error
	if err != nil {
		return errutil.Unavailable("draft write failed", err)
	}
	return nil
}

// SweepExpired deletes every draft past its TTL and returns how many went.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&Draft{})
	if res.Error != nil {
		return 0, errutil.Unavailable("draft sweep failed", res.Error)
	}
	if res.RowsAffected > 0 {
		zap.L().Info("expired drafts swept", zap.Int64("count", res.RowsAffected))
	}
	return res.RowsAffected, nil
}

func mergePayload(current []byte, answers json.RawMessage) ([]byte, error) {
	base := map[string]any{}
	if len(current) > 0 {
		if err := json.Unmarshal(current, &base); err != nil {
			return nil, err
		}
	}

	patch := map[string]any{}
	if len(answers) > 0 {
		if err := json.Unmarshal(answers, &patch); err != nil {
			return nil, err
		}
	}
	for k, v := range patch {
		base[k] = v
	}
	return json.Marshal(base)
}
