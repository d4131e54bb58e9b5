// Package collab defines the narrow interfaces the engine expects from its
// external collaborators: the social-platform verification client, the
// on-chain transfer client, the wallet directory and the user notifier.
// Implementations (chat bot, Twitter client, Sui transfer client) live
// outside this repository.
package collab

import "context"

// Reply is a single comment left by a user on the target post.
type Reply struct {
	ID         string
	Text       string
	HasMedia   bool
	IsAnimated bool
}

// Verifier answers whether a user really performed an engagement action on a
// post. Consumed by the raid action-recording flow.
type Verifier interface {
	HasLiked(ctx context.Context, userID, postID string) (bool, error)
	HasRetweeted(ctx context.Context, userID, postID string) (bool, error)
	GetReplies(ctx context.Context, userID, postID string) ([]Reply, error)
}

// Transferrer moves tokens to a wallet. Consumed exclusively by the
// settlement orchestrator.
type Transferrer interface {
	Transfer(ctx context.Context, walletAddress, tokenType, amount string) (txID string, err error)
}

// WalletResolver looks up payout wallets. Consumed by the reward calculator's
// eligibility check.
type WalletResolver interface {
	HasPayoutWallet(ctx context.Context, userID string) (bool, error)
	WalletAddress(ctx context.Context, userID string) (string, error)
}

// Notifier tells a user about a settlement outcome. Fire-and-forget: failures
// must never affect settlement state.
type Notifier interface {
	Notify(ctx context.Context, userID, message string)
}
