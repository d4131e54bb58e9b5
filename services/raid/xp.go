package raid

// Base XP per action type. Comments earn a bonus tier when they carry media,
// and a larger one when the media is animated.
const (
	xpLike     int64 = 10
	xpRetweet  int64 = 20
	xpComment  int64 = 30
	xpBookmark int64 = 15

	xpCommentMediaBonus    int64 = 10
	xpCommentAnimatedBonus int64 = 15
)

// Numerator/denominator of the 25% reduction applied to non-like actions
// recorded before the user has liked the post.
const (
	penaltyNum   int64 = 3
	penaltyDenom int64 = 4
)

// xpFor computes the XP a single action is worth before the early-action
// penalty. Deterministic: same inputs always yield the same amount.
func xpFor(actionType ActionType, data ActionData) int64 {
	switch actionType {
	case ActionLike:
		return xpLike
	case ActionRetweet:
		return xpRetweet
	case ActionBookmark:
		return xpBookmark
	case ActionComment:
		xp := xpComment
		if data.IsAnimated {
			return xp + xpCommentAnimatedBonus
		}
		if data.HasMedia {
			return xp + xpCommentMediaBonus
		}
		return xp
	}
	return 0
}

// applyPenalty reduces XP by 25%, floored, never below 1.
func applyPenalty(xp int64) int64 {
	reduced := xp * penaltyNum / penaltyDenom
	if reduced < 1 {
		return 1
	}
	return reduced
}
