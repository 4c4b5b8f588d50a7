package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"inkshelf.org/internal/catalog"
	"inkshelf.org/internal/ids"
	"inkshelf.org/internal/obs"
	"inkshelf.org/internal/stream"
)

// Actor is the authenticated entity performing an operation. It is threaded
// explicitly through every call; the workflow never consults ambient state.
type Actor struct {
	ID   string
	Role catalog.Role
}

// Service applies moderation actions: it validates actor authority, computes
// the field-level mutation, applies it together with the audit append as one
// unit of work, and triggers the notification side effect afterwards.
type Service struct {
	store  Store
	events *stream.Stream
	now    func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithStream publishes applied actions to the given event stream.
func WithStream(st *stream.Stream) Option {
	return func(s *Service) { s.events = st }
}

// NewService constructs the moderation workflow over the given store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) requireModerator(actor Actor) error {
	if strings.TrimSpace(actor.ID) == "" {
		return catalog.ErrUnauthorized
	}
	if !actor.Role.Privileged() {
		return catalog.ErrForbidden
	}
	return nil
}

func (s *Service) newEntry(actor Actor, action, entityType, entityID string, details map[string]string) *catalog.AuditEntry {
	return &catalog.AuditEntry{
		ID:         ids.New(),
		UserID:     actor.ID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		CreatedAt:  s.now().UTC(),
	}
}

func (s *Service) applied(actor Actor, entityType, entityID string, action string) {
	obs.CountModerationAction(entityType, action)
	if s.events != nil {
		s.events.Publish(stream.ModerationEvent{
			EntityType: entityType,
			EntityID:   entityID,
			Action:     action,
			ActorID:    actor.ID,
			Timestamp:  s.now().UTC(),
		})
	}
}

// notify inserts a notification row on a best-effort basis. A failure here
// never rolls back the already-committed mutation.
func (s *Service) notify(ctx context.Context, n *catalog.Notification) {
	n.ID = ids.New()
	n.CreatedAt = s.now().UTC()
	if err := s.store.InsertNotification(ctx, n); err != nil {
		obs.LogError("notification insert failed", map[string]any{
			"notification_type": n.Type,
			"user_id":           n.UserID,
			"error":             err.Error(),
		})
	}
}

var editableRecommendationFields = map[string]struct{}{
	"title":       {},
	"description": {},
	"author":      {},
	"artist":      {},
}

// ApplyRecommendationAction validates authority and payload, applies the
// action to the recommendation and appends the audit record atomically.
func (s *Service) ApplyRecommendationAction(ctx context.Context, actor Actor, id string, action RecommendationAction, p ActionPayload) (*catalog.Recommendation, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(p.Reason)
	var label string
	switch action {
	case RecApprove:
		label = "approved recommendation"
	case RecReject:
		if reason == "" {
			return nil, fmt.Errorf("%w: rejection reason is required", catalog.ErrValidation)
		}
		label = "rejected recommendation"
	case RecFeature:
		label = "featured recommendation"
	case RecUnfeature:
		label = "unfeatured recommendation"
	case RecResolveAppeal:
		if p.AppealStatus != catalog.AppealApproved && p.AppealStatus != catalog.AppealRejected {
			return nil, fmt.Errorf("%w: appeal_status must be approved or rejected", catalog.ErrValidation)
		}
		label = string(p.AppealStatus) + " appeal for recommendation"
	case RecEdit:
		if len(p.Fields) == 0 {
			return nil, fmt.Errorf("%w: edit requires at least one field", catalog.ErrValidation)
		}
		for k := range p.Fields {
			if _, ok := editableRecommendationFields[k]; !ok {
				return nil, fmt.Errorf("%w: field %q is not editable", catalog.ErrValidation, k)
			}
		}
		label = "edited recommendation"
	default:
		return nil, fmt.Errorf("%w: unknown recommendation action %q", catalog.ErrValidation, action)
	}

	details := map[string]string{"action": string(action)}
	if reason != "" {
		details["reason"] = reason
	}
	entry := s.newEntry(actor, label, "recommendation", id, details)

	now := s.now().UTC()
	updated, err := s.store.UpdateRecommendation(ctx, id, func(rec *catalog.Recommendation) error {
		entry.TargetLabel = rec.Title

		switch action {
		case RecApprove:
			rec.IsApproved = true
			rec.RejectionReason = ""
			rec.RejectedAt = nil
			rec.RejectedBy = ""
		case RecReject:
			rec.IsApproved = false
			rec.RejectionReason = reason
			rec.RejectedAt = &now
			rec.RejectedBy = actor.ID
		case RecFeature:
			if !rec.IsApproved {
				return fmt.Errorf("%w: only approved recommendations can be featured", catalog.ErrValidation)
			}
			rec.IsFeatured = true
			rec.FeaturedAt = &now
			rec.FeaturedBy = actor.ID
		case RecUnfeature:
			rec.IsFeatured = false
			rec.FeaturedAt = nil
			rec.FeaturedBy = ""
		case RecResolveAppeal:
			if rec.AppealStatus != catalog.AppealPending {
				return fmt.Errorf("%w: recommendation has no pending appeal", catalog.ErrConflict)
			}
			rec.AppealStatus = p.AppealStatus
			if p.AppealStatus == catalog.AppealApproved {
				rec.IsApproved = true
				rec.RejectionReason = ""
				rec.RejectedAt = nil
				rec.RejectedBy = ""
			} else {
				rec.IsApproved = false
			}
		case RecEdit:
			for k, v := range p.Fields {
				switch k {
				case "title":
					rec.Title = v
				case "description":
					rec.Description = v
				case "author":
					rec.Author = v
				case "artist":
					rec.Artist = v
				}
			}
		}
		rec.UpdatedAt = now
		return nil
	}, entry)
	if err != nil {
		return nil, err
	}

	s.applied(actor, "recommendation", id, string(action))

	switch action {
	case RecApprove:
		s.notify(ctx, &catalog.Notification{
			UserID: updated.UserID,
			Type:   "recommendation_approve",
			Title:  fmt.Sprintf("Your recommendation %q has been approved! 🎉", updated.Title),
			Data:   map[string]string{"recommendation_id": id},
		})
	case RecReject:
		s.notify(ctx, &catalog.Notification{
			UserID: updated.UserID,
			Type:   "recommendation_reject",
			Title:  fmt.Sprintf("Your recommendation %q was rejected. Reason: %s", updated.Title, reason),
			Data:   map[string]string{"recommendation_id": id},
		})
	case RecResolveAppeal:
		s.notify(ctx, &catalog.Notification{
			UserID: updated.UserID,
			Type:   "recommendation_resolve_appeal",
			Title:  fmt.Sprintf("Your appeal for %q has been %s.", updated.Title, p.AppealStatus),
			Data:   map[string]string{"recommendation_id": id},
		})
	}

	return updated, nil
}

// ApplyAccountAction validates authority and payload, applies the action to
// the profile and appends the audit record atomically.
func (s *Service) ApplyAccountAction(ctx context.Context, actor Actor, id string, action AccountAction, p ActionPayload) (*catalog.Profile, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, err
	}

	reason := strings.TrimSpace(p.Reason)
	var label string
	switch action {
	case AccountBan:
		if reason == "" {
			return nil, fmt.Errorf("%w: ban reason is required", catalog.ErrValidation)
		}
		label = "banned user"
	case AccountUnban:
		label = "unbanned user"
	case AccountChangeRole:
		if !p.Role.Valid() {
			return nil, fmt.Errorf("%w: unknown role %q", catalog.ErrValidation, p.Role)
		}
		if actor.ID == id {
			return nil, fmt.Errorf("%w: cannot change own role", catalog.ErrValidation)
		}
		label = "changed user role to " + string(p.Role)
	case AccountResolveAppeal:
		if p.AppealStatus != catalog.AppealApproved && p.AppealStatus != catalog.AppealRejected {
			return nil, fmt.Errorf("%w: appeal_status must be approved or rejected", catalog.ErrValidation)
		}
		label = string(p.AppealStatus) + " ban appeal"
	default:
		return nil, fmt.Errorf("%w: unknown account action %q", catalog.ErrValidation, action)
	}

	details := map[string]string{"action": string(action)}
	if reason != "" {
		details["reason"] = reason
	}
	if action == AccountChangeRole {
		details["role"] = string(p.Role)
	}
	entry := s.newEntry(actor, label, "user", id, details)

	now := s.now().UTC()
	updated, err := s.store.UpdateProfile(ctx, id, func(pr *catalog.Profile) error {
		entry.TargetLabel = pr.Username

		switch action {
		case AccountBan:
			pr.IsBanned = true
			pr.BanReason = reason
			pr.BannedAt = &now
			pr.BannedBy = actor.ID
		case AccountUnban:
			pr.IsBanned = false
			pr.BanReason = ""
			pr.BannedAt = nil
			pr.BannedBy = ""
			pr.AppealStatus = catalog.AppealNone
			pr.AppealText = ""
		case AccountChangeRole:
			pr.Role = p.Role
		case AccountResolveAppeal:
			if pr.AppealStatus != catalog.AppealPending {
				return fmt.Errorf("%w: account has no pending appeal", catalog.ErrConflict)
			}
			pr.AppealStatus = p.AppealStatus
			if p.AppealStatus == catalog.AppealApproved {
				pr.IsBanned = false
				pr.BanReason = ""
				pr.BannedAt = nil
				pr.BannedBy = ""
			} else {
				pr.IsBanned = true
			}
		}
		pr.UpdatedAt = now
		return nil
	}, entry)
	if err != nil {
		return nil, err
	}

	s.applied(actor, "user", id, string(action))

	switch action {
	case AccountBan:
		s.notify(ctx, &catalog.Notification{
			UserID: id,
			Type:   "account_ban",
			Title:  "Your account has been suspended. Reason: " + reason,
			Data:   map[string]string{"reason": reason},
		})
	case AccountUnban:
		s.notify(ctx, &catalog.Notification{
			UserID: id,
			Type:   "account_unban",
			Title:  "Your account suspension has been lifted.",
		})
	case AccountResolveAppeal:
		s.notify(ctx, &catalog.Notification{
			UserID: id,
			Type:   "account_resolve_appeal",
			Title:  fmt.Sprintf("Your ban appeal has been %s.", p.AppealStatus),
		})
	}

	return updated, nil
}

// ApplyReviewAction toggles review visibility or hard-deletes the review.
// Review actions produce audit entries but no notifications.
func (s *Service) ApplyReviewAction(ctx context.Context, actor Actor, id string, action ReviewAction) (*catalog.Review, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	switch action {
	case ReviewApprove, ReviewHide:
		label := "approved review"
		approved := true
		if action == ReviewHide {
			label = "hidden review"
			approved = false
		}
		entry := s.newEntry(actor, label, "review", id, map[string]string{"action": string(action)})
		entry.TargetLabel = id
		updated, err := s.store.UpdateReview(ctx, id, func(rv *catalog.Review) error {
			rv.IsApproved = approved
			rv.UpdatedAt = now
			return nil
		}, entry)
		if err != nil {
			return nil, err
		}
		s.applied(actor, "review", id, string(action))
		return updated, nil

	case ReviewDelete:
		// Preview is read separately; it only decorates the audit record.
		details := map[string]string{"action": string(action)}
		if rv, err := s.store.GetReview(ctx, id); err == nil {
			details["content_preview"] = preview(rv.Content, 100)
		}
		entry := s.newEntry(actor, "deleted review", "review", id, details)
		entry.TargetLabel = id
		deleted, err := s.store.DeleteReview(ctx, id, entry)
		if err != nil {
			return nil, err
		}
		s.applied(actor, "review", id, string(action))
		return deleted, nil
	}
	return nil, fmt.Errorf("%w: unknown review action %q", catalog.ErrValidation, action)
}

// ResolveReport transitions a report's status. Reports are never deleted.
func (s *Service) ResolveReport(ctx context.Context, actor Actor, id string, status catalog.ReportStatus, note string) (*catalog.Report, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, err
	}
	switch status {
	case catalog.ReportReviewed, catalog.ReportResolved, catalog.ReportDismissed:
	default:
		return nil, fmt.Errorf("%w: unknown report status %q", catalog.ErrValidation, status)
	}

	note = strings.TrimSpace(note)
	details := map[string]string{}
	if note != "" {
		details["resolution_note"] = note
	}
	entry := s.newEntry(actor, string(status)+" report", "report", id, details)
	entry.TargetLabel = id

	now := s.now().UTC()
	updated, err := s.store.UpdateReport(ctx, id, func(rp *catalog.Report) error {
		rp.Status = status
		rp.ResolvedBy = actor.ID
		rp.ResolvedAt = &now
		rp.ResolutionNote = note
		return nil
	}, entry)
	if err != nil {
		return nil, err
	}
	s.applied(actor, "report", id, string(status))
	return updated, nil
}

// SubmitAppeal lets the affected, non-privileged actor contest a rejection or
// a ban once per cycle. Appeal submission is not a moderation action: it
// produces neither an audit entry nor a notification.
func (s *Service) SubmitAppeal(ctx context.Context, actor Actor, kind AppealKind, targetID, text string) error {
	if strings.TrimSpace(actor.ID) == "" {
		return catalog.ErrUnauthorized
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("%w: appeal text is required", catalog.ErrValidation)
	}

	now := s.now().UTC()
	switch kind {
	case AppealRecommendation:
		_, err := s.store.UpdateRecommendation(ctx, targetID, func(rec *catalog.Recommendation) error {
			if rec.UserID != actor.ID {
				return catalog.ErrNotFound
			}
			if rec.RejectionReason == "" {
				return fmt.Errorf("%w: recommendation is not rejected", catalog.ErrValidation)
			}
			if rec.AppealStatus != "" && rec.AppealStatus != catalog.AppealNone {
				return fmt.Errorf("%w: an appeal was already submitted", catalog.ErrConflict)
			}
			rec.AppealText = text
			rec.AppealStatus = catalog.AppealPending
			rec.AppealSubmittedAt = &now
			rec.UpdatedAt = now
			return nil
		}, nil)
		return err

	case AppealBan:
		_, err := s.store.UpdateProfile(ctx, actor.ID, func(pr *catalog.Profile) error {
			if !pr.IsBanned {
				return fmt.Errorf("%w: account is not banned", catalog.ErrValidation)
			}
			if pr.AppealStatus != "" && pr.AppealStatus != catalog.AppealNone {
				return fmt.Errorf("%w: an appeal was already submitted", catalog.ErrConflict)
			}
			pr.AppealText = text
			pr.AppealStatus = catalog.AppealPending
			pr.UpdatedAt = now
			return nil
		}, nil)
		return err
	}
	return fmt.Errorf("%w: unknown appeal kind %q", catalog.ErrValidation, kind)
}

// ListRecommendations returns the admin view filtered by moderation status.
func (s *Service) ListRecommendations(ctx context.Context, actor Actor, f RecommendationFilter) ([]catalog.Recommendation, int, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, 0, err
	}
	f.Page = normalizePage(f.Page, 20)
	return s.store.ListRecommendations(ctx, f)
}

// ListProfiles returns the admin account listing with optional username search.
func (s *Service) ListProfiles(ctx context.Context, actor Actor, f ProfileFilter) ([]catalog.Profile, int, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, 0, err
	}
	f.Page = normalizePage(f.Page, 20)
	return s.store.ListProfiles(ctx, f)
}

// ListReports returns reports filtered by status.
func (s *Service) ListReports(ctx context.Context, actor Actor, f ReportFilter) ([]catalog.Report, int, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, 0, err
	}
	return s.store.ListReports(ctx, f)
}

// ListAuditLog returns audit entries newest first. Default page size is 50.
func (s *Service) ListAuditLog(ctx context.Context, actor Actor, page Page) ([]catalog.AuditEntry, int, error) {
	if err := s.requireModerator(actor); err != nil {
		return nil, 0, err
	}
	page = normalizePage(page, 50)
	return s.store.ListAudit(ctx, page)
}

func normalizePage(p Page, defaultSize int) Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = defaultSize
	}
	if p.Size > 200 {
		p.Size = 200
	}
	return p
}

func preview(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
