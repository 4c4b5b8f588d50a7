package catalog

import "time"

// Role identifies the privilege level of a profile.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether the role is part of the closed vocabulary.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// Privileged reports whether the role may perform moderation actions.
func (r Role) Privileged() bool {
	return r == RoleModerator || r == RoleAdmin
}

// AppealStatus tracks the lifecycle of a rejection/ban appeal.
type AppealStatus string

const (
	AppealNone     AppealStatus = "none"
	AppealPending  AppealStatus = "pending"
	AppealApproved AppealStatus = "approved"
	AppealRejected AppealStatus = "rejected"
)

// ComicType classifies a recommendation's medium.
type ComicType string

const (
	TypeManga   ComicType = "manga"
	TypeManhwa  ComicType = "manhwa"
	TypeManhua  ComicType = "manhua"
	TypeWebtoon ComicType = "webtoon"
	TypeComic   ComicType = "comic"
	TypeOther   ComicType = "other"
)

// ReportStatus tracks the disposition of a user report.
type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"
	ReportReviewed  ReportStatus = "reviewed"
	ReportResolved  ReportStatus = "resolved"
	ReportDismissed ReportStatus = "dismissed"
)

// Recommendation is a user-submitted comic entry with its moderation lifecycle.
type Recommendation struct {
	ID                string       `json:"id"`
	UserID            string       `json:"user_id"`
	Title             string       `json:"title"`
	AlternativeTitles []string     `json:"alternative_titles,omitempty"`
	Description       string       `json:"description"`
	Type              ComicType    `json:"type"`
	Status            string       `json:"status"`
	Genres            []string     `json:"genres"`
	ContentRating     string       `json:"content_rating"`
	OfficialPlatforms []string     `json:"official_platforms"`
	Author            string       `json:"author,omitempty"`
	Artist            string       `json:"artist,omitempty"`
	YearReleased      int          `json:"year_released,omitempty"`
	ChapterCount      int          `json:"chapter_count,omitempty"`
	CoverURL          string       `json:"cover_url,omitempty"`
	WhyRecommend      string       `json:"why_recommend,omitempty"`
	Upvotes           int          `json:"upvotes"`
	Downvotes         int          `json:"downvotes"`
	Score             int          `json:"score"`
	DailyVotes        int          `json:"daily_votes"`
	SaveCount         int          `json:"save_count"`
	ReviewCount       int          `json:"review_count"`
	IsApproved        bool         `json:"is_approved"`
	RejectionReason   string       `json:"rejection_reason,omitempty"`
	RejectedAt        *time.Time   `json:"rejected_at,omitempty"`
	RejectedBy        string       `json:"rejected_by,omitempty"`
	IsFeatured        bool         `json:"is_featured"`
	FeaturedAt        *time.Time   `json:"featured_at,omitempty"`
	FeaturedBy        string       `json:"featured_by,omitempty"`
	AppealStatus      AppealStatus `json:"appeal_status"`
	AppealText        string       `json:"appeal_text,omitempty"`
	AppealSubmittedAt *time.Time   `json:"appeal_submitted_at,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Profile is a user's public record including its ban lifecycle.
type Profile struct {
	ID           string       `json:"id"`
	Username     string       `json:"username"`
	DisplayName  string       `json:"display_name,omitempty"`
	Role         Role         `json:"role"`
	IsBanned     bool         `json:"is_banned"`
	BanReason    string       `json:"ban_reason,omitempty"`
	BannedAt     *time.Time   `json:"banned_at,omitempty"`
	BannedBy     string       `json:"banned_by,omitempty"`
	AppealStatus AppealStatus `json:"appeal_status"`
	AppealText   string       `json:"appeal_text,omitempty"`
	MemberSince  time.Time    `json:"member_since"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Review is a user's write-up attached to a recommendation.
type Review struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	RecommendationID string    `json:"recommendation_id"`
	Content          string    `json:"content"`
	Rating           int       `json:"rating,omitempty"`
	ContainsSpoilers bool      `json:"contains_spoilers"`
	IsApproved       bool      `json:"is_approved"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Report is a user-filed complaint about an entity. Reports are never deleted,
// only status-transitioned.
type Report struct {
	ID             string       `json:"id"`
	ReporterID     string       `json:"reporter_id"`
	EntityType     string       `json:"entity_type"`
	EntityID       string       `json:"entity_id"`
	Reason         string       `json:"reason"`
	Details        string       `json:"details,omitempty"`
	Status         ReportStatus `json:"status"`
	ResolvedBy     string       `json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time   `json:"resolved_at,omitempty"`
	ResolutionNote string       `json:"resolution_note,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// AuditEntry is an immutable record of a moderation action.
type AuditEntry struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Action      string            `json:"action"`
	EntityType  string            `json:"entity_type"`
	EntityID    string            `json:"entity_id"`
	TargetLabel string            `json:"target_label"`
	Details     map[string]string `json:"details,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Notification is a per-user message produced as a moderation side effect.
type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Data      map[string]string `json:"data,omitempty"`
	IsRead    bool              `json:"is_read"`
	ReadAt    *time.Time        `json:"read_at,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewsItem is a curated news article managed by moderators.
type NewsItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	Excerpt     string    `json:"excerpt"`
	Content     string    `json:"content,omitempty"`
	SourceName  string    `json:"source_name"`
	SourceURL   string    `json:"source_url"`
	Category    string    `json:"category"`
	Tags        []string  `json:"tags,omitempty"`
	IsPublished bool      `json:"is_published"`
	PublishedBy string    `json:"published_by,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Vote is a single user's up/down vote on a recommendation.
type Vote struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	RecommendationID string    `json:"recommendation_id"`
	VoteType         string    `json:"vote_type"`
	CreatedAt        time.Time `json:"created_at"`
}

// Save marks a recommendation as bookmarked by a user.
type Save struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	RecommendationID string    `json:"recommendation_id"`
	CreatedAt        time.Time `json:"created_at"`
}
