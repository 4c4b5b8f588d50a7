package content

import (
	"context"

	"inkshelf.org/internal/catalog"
)

// BrowseFilter narrows the public recommendation listing. Only approved
// entries are ever returned; Sort is one of score|trending|recent.
type BrowseFilter struct {
	Type    string
	Genre   string
	Sort    string
	Page    int
	PerPage int
}

// NewsFilter narrows news listings.
type NewsFilter struct {
	Category      string
	PublishedOnly bool
	Page          int
	PerPage       int
}

// Store is the persistence contract of the public content surface. News
// writes carry an audit entry appended in the same unit of work, mirroring
// the moderation store contract.
type Store interface {
	InsertRecommendation(ctx context.Context, rec *catalog.Recommendation) error
	GetRecommendation(ctx context.Context, id string) (*catalog.Recommendation, error)
	BrowseRecommendations(ctx context.Context, f BrowseFilter) ([]catalog.Recommendation, int, error)

	GetProfile(ctx context.Context, id string) (*catalog.Profile, error)

	UpsertVote(ctx context.Context, v *catalog.Vote) (*catalog.Recommendation, error)
	InsertSave(ctx context.Context, sv *catalog.Save) error
	DeleteSave(ctx context.Context, userID, recommendationID string) error

	InsertReview(ctx context.Context, rv *catalog.Review) error
	ListReviews(ctx context.Context, recommendationID string, page, perPage int) ([]catalog.Review, int, error)

	InsertReport(ctx context.Context, rp *catalog.Report) error

	ListNews(ctx context.Context, f NewsFilter) ([]catalog.NewsItem, int, error)
	GetNewsBySlug(ctx context.Context, slug string) (*catalog.NewsItem, error)
	InsertNews(ctx context.Context, item *catalog.NewsItem, entry *catalog.AuditEntry) error
	UpdateNews(ctx context.Context, id string, mutate func(*catalog.NewsItem) error, entry *catalog.AuditEntry) (*catalog.NewsItem, error)
	DeleteNews(ctx context.Context, id string, entry *catalog.AuditEntry) error

	ListNotifications(ctx context.Context, userID string, page, perPage int) ([]catalog.Notification, int, error)
	MarkNotificationRead(ctx context.Context, userID, id string) (*catalog.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int, error)
}
