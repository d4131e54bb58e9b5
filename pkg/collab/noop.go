package collab

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module provides development stand-ins for every collaborator. Deployments
// replace these with fx.Decorate or their own providers.
var Module = fx.Module("collab",
	fx.Provide(
		func() Verifier { return NoopVerifier{} },
		func() Transferrer { return NoopTransferrer{} },
		func() WalletResolver { return NoopWalletResolver{} },
		func() Notifier { return NoopNotifier{} },
	),
)

// NoopVerifier confirms every action. Development only.
type NoopVerifier struct{}

func (NoopVerifier) HasLiked(ctx context.Context, userID, postID string) (bool, error) {
	return true, nil
}

func (NoopVerifier) HasRetweeted(ctx context.Context, userID, postID string) (bool, error) {
	return true, nil
}

func (NoopVerifier) GetReplies(ctx context.Context, userID, postID string) ([]Reply, error) {
	return nil, nil
}

// NoopTransferrer logs instead of broadcasting. Development only.
type NoopTransferrer struct{}

func (NoopTransferrer) Transfer(ctx context.Context, walletAddress, tokenType, amount string) (string, error) {
	zap.L().Info("[collab] dry-run transfer",
		zap.String("wallet", walletAddress),
		zap.String("token_type", tokenType),
		zap.String("amount", amount),
	)
	return "dry-run", nil
}

// NoopWalletResolver reports no connected wallets.
type NoopWalletResolver struct{}

func (NoopWalletResolver) HasPayoutWallet(ctx context.Context, userID string) (bool, error) {
	return false, nil
}

func (NoopWalletResolver) WalletAddress(ctx context.Context, userID string) (string, error) {
	return "", nil
}

// NoopNotifier logs the message.
type NoopNotifier struct{}

func (NoopNotifier) Notify(ctx context.Context, userID, message string) {
	zap.L().Info("[collab] notify", zap.String("user_id", userID), zap.String("message", message))
}
