package content

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"inkshelf.org/internal/catalog"
	"inkshelf.org/internal/ids"
)

// Service implements the public content surface: submissions, browsing,
// votes, saves, reviews, reports, news and notifications. Moderation of the
// entities created here lives in internal/moderation.
type Service struct {
	store    Store
	validate *validator.Validate
	now      func() time.Time
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

// NewService constructs the content service over the given store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		validate: validator.New(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitRecommendationInput is the payload of a new recommendation.
type SubmitRecommendationInput struct {
	Title             string   `json:"title" validate:"required,min=1,max=200"`
	AlternativeTitles []string `json:"alternative_titles" validate:"omitempty,dive,max=200"`
	Description       string   `json:"description" validate:"required,min=20,max=5000"`
	Type              string   `json:"type" validate:"required,oneof=manga manhwa manhua webtoon comic other"`
	Status            string   `json:"status" validate:"required,oneof=ongoing completed hiatus cancelled"`
	Genres            []string `json:"genres" validate:"required,min=1,max=10,dive,required"`
	ContentRating     string   `json:"content_rating" validate:"omitempty,oneof=all teen mature adult"`
	OfficialPlatforms []string `json:"official_platforms" validate:"required,min=1,dive,required"`
	Author            string   `json:"author" validate:"omitempty,max=120"`
	Artist            string   `json:"artist" validate:"omitempty,max=120"`
	YearReleased      int      `json:"year_released" validate:"omitempty,gte=1900,lte=2100"`
	ChapterCount      int      `json:"chapter_count" validate:"omitempty,gte=0"`
	CoverURL          string   `json:"cover_url" validate:"omitempty,url"`
	WhyRecommend      string   `json:"why_recommend" validate:"omitempty,max=2000"`
}

// SubmitRecommendation creates a new entry in the pending state. Banned
// authors are refused; moderator and admin submissions are auto-approved.
func (s *Service) SubmitRecommendation(ctx context.Context, actorID string, in SubmitRecommendationInput) (*catalog.Recommendation, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, catalog.ErrUnauthorized
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", catalog.ErrValidation, err)
	}

	profile, err := s.store.GetProfile(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if profile.IsBanned {
		return nil, fmt.Errorf("%w: banned accounts cannot submit recommendations", catalog.ErrForbidden)
	}

	contentRating := in.ContentRating
	if contentRating == "" {
		contentRating = "all"
	}
	now := s.now().UTC()
	rec := &catalog.Recommendation{
		ID:                ids.New(),
		UserID:            actorID,
		Title:             strings.TrimSpace(in.Title),
		AlternativeTitles: in.AlternativeTitles,
		Description:       strings.TrimSpace(in.Description),
		Type:              catalog.ComicType(in.Type),
		Status:            in.Status,
		Genres:            in.Genres,
		ContentRating:     contentRating,
		OfficialPlatforms: in.OfficialPlatforms,
		Author:            strings.TrimSpace(in.Author),
		Artist:            strings.TrimSpace(in.Artist),
		YearReleased:      in.YearReleased,
		ChapterCount:      in.ChapterCount,
		CoverURL:          in.CoverURL,
		WhyRecommend:      strings.TrimSpace(in.WhyRecommend),
		IsApproved:        profile.Role.Privileged(),
		AppealStatus:      catalog.AppealNone,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.InsertRecommendation(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// GetRecommendation fetches a single entry.
func (s *Service) GetRecommendation(ctx context.Context, id string) (*catalog.Recommendation, error) {
	return s.store.GetRecommendation(ctx, id)
}

// Browse returns approved recommendations filtered and sorted for the public feed.
func (s *Service) Browse(ctx context.Context, f BrowseFilter) ([]catalog.Recommendation, int, error) {
	switch f.Sort {
	case "", "score", "trending", "recent":
	default:
		return nil, 0, fmt.Errorf("%w: unknown sort %q", catalog.ErrValidation, f.Sort)
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}
	return s.store.BrowseRecommendations(ctx, f)
}

// CastVote records or replaces the actor's vote and returns the updated entry.
func (s *Service) CastVote(ctx context.Context, actorID, recommendationID, voteType string) (*catalog.Recommendation, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, catalog.ErrUnauthorized
	}
	if voteType != "up" && voteType != "down" {
		return nil, fmt.Errorf("%w: vote_type must be up or down", catalog.ErrValidation)
	}
	return s.store.UpsertVote(ctx, &catalog.Vote{
		ID:               ids.New(),
		UserID:           actorID,
		RecommendationID: recommendationID,
		VoteType:         voteType,
		CreatedAt:        s.now().UTC(),
	})
}

// SaveRecommendation bookmarks an entry for the actor. Saving twice is a no-op.
func (s *Service) SaveRecommendation(ctx context.Context, actorID, recommendationID string) error {
	if strings.TrimSpace(actorID) == "" {
		return catalog.ErrUnauthorized
	}
	return s.store.InsertSave(ctx, &catalog.Save{
		ID:               ids.New(),
		UserID:           actorID,
		RecommendationID: recommendationID,
		CreatedAt:        s.now().UTC(),
	})
}

// UnsaveRecommendation removes the actor's bookmark.
func (s *Service) UnsaveRecommendation(ctx context.Context, actorID, recommendationID string) error {
	if strings.TrimSpace(actorID) == "" {
		return catalog.ErrUnauthorized
	}
	return s.store.DeleteSave(ctx, actorID, recommendationID)
}

// CreateReviewInput is the payload of a new review.
type CreateReviewInput struct {
	Content          string `json:"content" validate:"required,min=10,max=5000"`
	Rating           int    `json:"rating" validate:"omitempty,gte=1,lte=10"`
	ContainsSpoilers bool   `json:"contains_spoilers"`
}

// CreateReview attaches a review to a recommendation. Reviews are visible
// until a moderator hides them.
func (s *Service) CreateReview(ctx context.Context, actorID, recommendationID string, in CreateReviewInput) (*catalog.Review, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, catalog.ErrUnauthorized
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", catalog.ErrValidation, err)
	}
	if _, err := s.store.GetRecommendation(ctx, recommendationID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	rv := &catalog.Review{
		ID:               ids.New(),
		UserID:           actorID,
		RecommendationID: recommendationID,
		Content:          strings.TrimSpace(in.Content),
		Rating:           in.Rating,
		ContainsSpoilers: in.ContainsSpoilers,
		IsApproved:       true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.store.InsertReview(ctx, rv); err != nil {
		return nil, err
	}
	return rv, nil
}

// ListReviews returns visible reviews for a recommendation, newest first.
func (s *Service) ListReviews(ctx context.Context, recommendationID string, page, perPage int) ([]catalog.Review, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return s.store.ListReviews(ctx, recommendationID, page, perPage)
}

// FileReportInput is the payload of a new user report.
type FileReportInput struct {
	EntityType string `json:"entity_type" validate:"required,oneof=recommendation review user comment"`
	EntityID   string `json:"entity_id" validate:"required"`
	Reason     string `json:"reason" validate:"required,min=3,max=500"`
	Details    string `json:"details" validate:"omitempty,max=2000"`
}

// FileReport records a complaint for moderator review.
func (s *Service) FileReport(ctx context.Context, actorID string, in FileReportInput) (*catalog.Report, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, catalog.ErrUnauthorized
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", catalog.ErrValidation, err)
	}

	rp := &catalog.Report{
		ID:         ids.New(),
		ReporterID: actorID,
		EntityType: in.EntityType,
		EntityID:   in.EntityID,
		Reason:     strings.TrimSpace(in.Reason),
		Details:    strings.TrimSpace(in.Details),
		Status:     catalog.ReportPending,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.store.InsertReport(ctx, rp); err != nil {
		return nil, err
	}
	return rp, nil
}

// NewsInput is the payload for creating or updating a news article.
type NewsInput struct {
	Title       string   `json:"title" validate:"required,min=1,max=200"`
	Slug        string   `json:"slug" validate:"required,min=1,max=200"`
	Excerpt     string   `json:"excerpt" validate:"required,max=500"`
	Content     string   `json:"content" validate:"omitempty,max=50000"`
	SourceName  string   `json:"source_name" validate:"required,max=200"`
	SourceURL   string   `json:"source_url" validate:"required,url"`
	Category    string   `json:"category" validate:"required,oneof=industry release adaptation event creator announcement"`
	Tags        []string `json:"tags" validate:"omitempty,dive,required"`
	IsPublished bool     `json:"is_published"`
}

func requirePrivileged(actorID string, role catalog.Role) error {
	if strings.TrimSpace(actorID) == "" {
		return catalog.ErrUnauthorized
	}
	if !role.Privileged() {
		return catalog.ErrForbidden
	}
	return nil
}

// CreateNews publishes a news article. Moderator/admin only; the creation is
// recorded in the audit log.
func (s *Service) CreateNews(ctx context.Context, actorID string, role catalog.Role, in NewsInput) (*catalog.NewsItem, error) {
	if err := requirePrivileged(actorID, role); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", catalog.ErrValidation, err)
	}

	now := s.now().UTC()
	item := &catalog.NewsItem{
		ID:          ids.New(),
		Title:       strings.TrimSpace(in.Title),
		Slug:        strings.TrimSpace(in.Slug),
		Excerpt:     strings.TrimSpace(in.Excerpt),
		Content:     in.Content,
		SourceName:  in.SourceName,
		SourceURL:   in.SourceURL,
		Category:    in.Category,
		Tags:        in.Tags,
		IsPublished: in.IsPublished,
		PublishedAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if item.IsPublished {
		item.PublishedBy = actorID
	}
	entry := &catalog.AuditEntry{
		ID:          ids.New(),
		UserID:      actorID,
		Action:      "created news",
		EntityType:  "news",
		EntityID:    item.ID,
		TargetLabel: item.Title,
		CreatedAt:   now,
	}
	if err := s.store.InsertNews(ctx, item, entry); err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateNews overwrites a news article. Moderator/admin only.
func (s *Service) UpdateNews(ctx context.Context, actorID string, role catalog.Role, id string, in NewsInput) (*catalog.NewsItem, error) {
	if err := requirePrivileged(actorID, role); err != nil {
		return nil, err
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", catalog.ErrValidation, err)
	}

	now := s.now().UTC()
	entry := &catalog.AuditEntry{
		ID:         ids.New(),
		UserID:     actorID,
		Action:     "updated news",
		EntityType: "news",
		EntityID:   id,
		CreatedAt:  now,
	}
	return s.store.UpdateNews(ctx, id, func(item *catalog.NewsItem) error {
		entry.TargetLabel = item.Title

		wasPublished := item.IsPublished
		item.Title = strings.TrimSpace(in.Title)
		item.Slug = strings.TrimSpace(in.Slug)
		item.Excerpt = strings.TrimSpace(in.Excerpt)
		item.Content = in.Content
		item.SourceName = in.SourceName
		item.SourceURL = in.SourceURL
		item.Category = in.Category
		item.Tags = in.Tags
		item.IsPublished = in.IsPublished
		if in.IsPublished && !wasPublished {
			item.PublishedBy = actorID
			item.PublishedAt = now
		}
		item.UpdatedAt = now
		return nil
	}, entry)
}

// DeleteNews removes a news article. Moderator/admin only.
func (s *Service) DeleteNews(ctx context.Context, actorID string, role catalog.Role, id string) error {
	if err := requirePrivileged(actorID, role); err != nil {
		return err
	}
	entry := &catalog.AuditEntry{
		ID:          ids.New(),
		UserID:      actorID,
		Action:      "deleted news",
		EntityType:  "news",
		EntityID:    id,
		TargetLabel: id,
		CreatedAt:   s.now().UTC(),
	}
	return s.store.DeleteNews(ctx, id, entry)
}

// ListNews returns news articles, optionally restricted to published ones.
func (s *Service) ListNews(ctx context.Context, f NewsFilter) ([]catalog.NewsItem, int, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 || f.PerPage > 100 {
		f.PerPage = 20
	}
	return s.store.ListNews(ctx, f)
}

// GetNewsBySlug fetches a single article by its slug.
func (s *Service) GetNewsBySlug(ctx context.Context, slug string) (*catalog.NewsItem, error) {
	return s.store.GetNewsBySlug(ctx, slug)
}

// ListNotifications returns the actor's notifications, newest first.
func (s *Service) ListNotifications(ctx context.Context, actorID string, page, perPage int) ([]catalog.Notification, int, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, 0, catalog.ErrUnauthorized
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	return s.store.ListNotifications(ctx, actorID, page, perPage)
}

// MarkNotificationRead marks one of the actor's notifications as read.
func (s *Service) MarkNotificationRead(ctx context.Context, actorID, id string) (*catalog.Notification, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, catalog.ErrUnauthorized
	}
	return s.store.MarkNotificationRead(ctx, actorID, id)
}

// MarkAllNotificationsRead marks every unread notification of the actor as read.
func (s *Service) MarkAllNotificationsRead(ctx context.Context, actorID string) (int, error) {
	if strings.TrimSpace(actorID) == "" {
		return 0, catalog.ErrUnauthorized
	}
	return s.store.MarkAllNotificationsRead(ctx, actorID)
}
