package moderation

import (
	"context"

	"inkshelf.org/internal/catalog"
)

// Page selects a slice of a listing.
type Page struct {
	Number int
	Size   int
}

// Offset returns the zero-based offset of the page.
func (p Page) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// RecommendationFilter narrows admin recommendation listings.
// Status is one of pending|approved|rejected|featured|appeals|all.
type RecommendationFilter struct {
	Status string
	Page   Page
}

// ProfileFilter narrows admin account listings.
// Filter is one of all|banned|admin|moderator.
type ProfileFilter struct {
	Query  string
	Filter string
	Page   Page
}

// ReportFilter narrows report listings by status ("all" disables the filter).
type ReportFilter struct {
	Status string
}

// Store is the persistence contract of the moderation workflow. Every Update*
// method applies the mutation computed by mutate and, when entry is non-nil,
// appends the audit record in the same unit of work: either both land or
// neither does. The mutate callback observes the current row state and may
// refuse the transition by returning an error.
type Store interface {
	GetRecommendation(ctx context.Context, id string) (*catalog.Recommendation, error)
	ListRecommendations(ctx context.Context, f RecommendationFilter) ([]catalog.Recommendation, int, error)
	UpdateRecommendation(ctx context.Context, id string, mutate func(*catalog.Recommendation) error, entry *catalog.AuditEntry) (*catalog.Recommendation, error)

	GetProfile(ctx context.Context, id string) (*catalog.Profile, error)
	ListProfiles(ctx context.Context, f ProfileFilter) ([]catalog.Profile, int, error)
	UpdateProfile(ctx context.Context, id string, mutate func(*catalog.Profile) error, entry *catalog.AuditEntry) (*catalog.Profile, error)

	GetReview(ctx context.Context, id string) (*catalog.Review, error)
	UpdateReview(ctx context.Context, id string, mutate func(*catalog.Review) error, entry *catalog.AuditEntry) (*catalog.Review, error)
	DeleteReview(ctx context.Context, id string, entry *catalog.AuditEntry) (*catalog.Review, error)

	GetReport(ctx context.Context, id string) (*catalog.Report, error)
	ListReports(ctx context.Context, f ReportFilter) ([]catalog.Report, int, error)
	UpdateReport(ctx context.Context, id string, mutate func(*catalog.Report) error, entry *catalog.AuditEntry) (*catalog.Report, error)

	ListAudit(ctx context.Context, page Page) ([]catalog.AuditEntry, int, error)

	InsertNotification(ctx context.Context, n *catalog.Notification) error
}
