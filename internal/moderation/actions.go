package moderation

import (
	"fmt"

	"inkshelf.org/internal/catalog"
)

// RecommendationAction is the closed vocabulary of moderation actions on
// recommendations. Unknown action names are a caller error, never a silent
// fall-through.
type RecommendationAction string

const (
	RecApprove       RecommendationAction = "approve"
	RecReject        RecommendationAction = "reject"
	RecFeature       RecommendationAction = "feature"
	RecUnfeature     RecommendationAction = "unfeature"
	RecResolveAppeal RecommendationAction = "resolve_appeal"
	RecEdit          RecommendationAction = "edit"
)

// ParseRecommendationAction validates a wire-level action name.
func ParseRecommendationAction(s string) (RecommendationAction, error) {
	switch a := RecommendationAction(s); a {
	case RecApprove, RecReject, RecFeature, RecUnfeature, RecResolveAppeal, RecEdit:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown recommendation action %q", catalog.ErrValidation, s)
}

// AccountAction is the closed vocabulary of moderation actions on accounts.
type AccountAction string

const (
	AccountBan           AccountAction = "ban"
	AccountUnban         AccountAction = "unban"
	AccountChangeRole    AccountAction = "change_role"
	AccountResolveAppeal AccountAction = "resolve_appeal"
)

// ParseAccountAction validates a wire-level action name.
func ParseAccountAction(s string) (AccountAction, error) {
	switch a := AccountAction(s); a {
	case AccountBan, AccountUnban, AccountChangeRole, AccountResolveAppeal:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown account action %q", catalog.ErrValidation, s)
}

// ReviewAction is the closed vocabulary of moderation actions on reviews.
type ReviewAction string

const (
	ReviewApprove ReviewAction = "approve"
	ReviewHide    ReviewAction = "hide"
	ReviewDelete  ReviewAction = "delete"
)

// ParseReviewAction validates a wire-level action name.
func ParseReviewAction(s string) (ReviewAction, error) {
	switch a := ReviewAction(s); a {
	case ReviewApprove, ReviewHide, ReviewDelete:
		return a, nil
	}
	return "", fmt.Errorf("%w: unknown review action %q", catalog.ErrValidation, s)
}

// AppealKind selects which entity an appeal targets.
type AppealKind string

const (
	AppealRecommendation AppealKind = "recommendation"
	AppealBan            AppealKind = "ban"
)

// ParseAppealKind validates a wire-level appeal kind.
func ParseAppealKind(s string) (AppealKind, error) {
	switch k := AppealKind(s); k {
	case AppealRecommendation, AppealBan:
		return k, nil
	}
	return "", fmt.Errorf("%w: unknown appeal kind %q", catalog.ErrValidation, s)
}

// ActionPayload carries the action-specific fields of a moderation request.
type ActionPayload struct {
	// Reason is required for reject and ban.
	Reason string
	// Role is the new role for change_role.
	Role catalog.Role
	// AppealStatus is the verdict for resolve_appeal: approved or rejected.
	AppealStatus catalog.AppealStatus
	// Fields carries the allowed overwrites for edit
	// (title, description, author, artist).
	Fields map[string]string
	// Note is the optional resolution note attached to a report transition.
	Note string
}
