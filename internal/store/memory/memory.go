// Package memory provides an in-process implementation of the moderation and
// content store contracts. It backs tests and local development; the durable
// implementation lives in internal/store/pg.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"inkshelf.org/internal/catalog"
	"inkshelf.org/internal/content"
	"inkshelf.org/internal/ids"
	"inkshelf.org/internal/moderation"
)

// Store keeps every entity in process memory guarded by a single mutex, so a
// mutation and its audit append are trivially atomic.
type Store struct {
	mu              sync.RWMutex
	recommendations map[string]*catalog.Recommendation
	profiles        map[string]*catalog.Profile
	reviews         map[string]*catalog.Review
	reports         map[string]*catalog.Report
	news            map[string]*catalog.NewsItem
	votes           map[string]*catalog.Vote // keyed by userID+"/"+recommendationID
	saves           map[string]*catalog.Save // keyed by userID+"/"+recommendationID
	notifications   []*catalog.Notification
	audit           []*catalog.AuditEntry
}

var (
	_ moderation.Store = (*Store)(nil)
	_ content.Store    = (*Store)(nil)
)

// New creates an empty store.
func New() *Store {
	return &Store{
		recommendations: make(map[string]*catalog.Recommendation),
		profiles:        make(map[string]*catalog.Profile),
		reviews:         make(map[string]*catalog.Review),
		reports:         make(map[string]*catalog.Report),
		news:            make(map[string]*catalog.NewsItem),
		votes:           make(map[string]*catalog.Vote),
		saves:           make(map[string]*catalog.Save),
	}
}

// --- seeding helpers (tests, local development) ---

// PutProfile inserts or replaces a profile.
func (s *Store) PutProfile(p catalog.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = ids.New()
	}
	if p.Role == "" {
		p.Role = catalog.RoleUser
	}
	if p.AppealStatus == "" {
		p.AppealStatus = catalog.AppealNone
	}
	s.profiles[p.ID] = &p
}

// PutRecommendation inserts or replaces a recommendation.
func (s *Store) PutRecommendation(rec catalog.Recommendation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = ids.New()
	}
	if rec.AppealStatus == "" {
		rec.AppealStatus = catalog.AppealNone
	}
	s.recommendations[rec.ID] = &rec
}

// PutReview inserts or replaces a review.
func (s *Store) PutReview(rv catalog.Review) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rv.ID == "" {
		rv.ID = ids.New()
	}
	s.reviews[rv.ID] = &rv
}

// PutReport inserts or replaces a report.
func (s *Store) PutReport(rp catalog.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rp.ID == "" {
		rp.ID = ids.New()
	}
	if rp.Status == "" {
		rp.Status = catalog.ReportPending
	}
	s.reports[rp.ID] = &rp
}

// Notifications returns every stored notification for a user, newest first.
// Test helper; the serving path is ListNotifications.
func (s *Store) Notifications(userID string) []catalog.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []catalog.Notification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if s.notifications[i].UserID == userID {
			out = append(out, *s.notifications[i])
		}
	}
	return out
}

// --- copies ---

func copyRecommendation(rec *catalog.Recommendation) *catalog.Recommendation {
	out := *rec
	out.AlternativeTitles = append([]string(nil), rec.AlternativeTitles...)
	out.Genres = append([]string(nil), rec.Genres...)
	out.OfficialPlatforms = append([]string(nil), rec.OfficialPlatforms...)
	out.RejectedAt = copyTime(rec.RejectedAt)
	out.FeaturedAt = copyTime(rec.FeaturedAt)
	out.AppealSubmittedAt = copyTime(rec.AppealSubmittedAt)
	return &out
}

func copyProfile(p *catalog.Profile) *catalog.Profile {
	out := *p
	out.BannedAt = copyTime(p.BannedAt)
	return &out
}

func copyReview(rv *catalog.Review) *catalog.Review {
	out := *rv
	return &out
}

func copyReport(rp *catalog.Report) *catalog.Report {
	out := *rp
	out.ResolvedAt = copyTime(rp.ResolvedAt)
	return &out
}

func copyNews(n *catalog.NewsItem) *catalog.NewsItem {
	out := *n
	out.Tags = append([]string(nil), n.Tags...)
	return &out
}

func copyNotification(n *catalog.Notification) *catalog.Notification {
	out := *n
	out.ReadAt = copyTime(n.ReadAt)
	out.Data = copyMap(n.Data)
	return &out
}

func copyEntry(e *catalog.AuditEntry) *catalog.AuditEntry {
	out := *e
	out.Details = copyMap(e.Details)
	return &out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Store) appendAuditLocked(entry *catalog.AuditEntry) {
	e := copyEntry(entry)
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.audit = append(s.audit, e)
}

// --- moderation.Store ---

func (s *Store) GetRecommendation(ctx context.Context, id string) (*catalog.Recommendation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recommendations[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return copyRecommendation(rec), nil
}

func (s *Store) UpdateRecommendation(ctx context.Context, id string, mutate func(*catalog.Recommendation) error, entry *catalog.AuditEntry) (*catalog.Recommendation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recommendations[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	next := copyRecommendation(rec)
	if err := mutate(next); err != nil {
		return nil, err
	}
	s.recommendations[id] = next
	if entry != nil {
		s.appendAuditLocked(entry)
	}
	return copyRecommendation(next), nil
}

func (s *Store) ListRecommendations(ctx context.Context, f moderation.RecommendationFilter) ([]catalog.Recommendation, int, error) {
	switch f.Status {
	case "", "all", "pending", "approved", "rejected", "featured", "appeals":
	default:
		return nil, 0, fmt.Errorf("%w: unknown status filter %q", catalog.ErrValidation, f.Status)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*catalog.Recommendation
	for _, rec := range s.recommendations {
		if matchStatus(rec, f.Status) {
			matched = append(matched, rec)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	out := paginate(matched, f.Page.Offset(), f.Page.Size)
	res := make([]catalog.Recommendation, 0, len(out))
	for _, rec := range out {
		res = append(res, *copyRecommendation(rec))
	}
	return res, total, nil
}

func matchStatus(rec *catalog.Recommendation, status string) bool {
	switch status {
	case "", "all":
		return true
	case "pending":
		return !rec.IsApproved && rec.RejectionReason == ""
	case "approved":
		return rec.IsApproved
	case "rejected":
		return rec.RejectionReason != ""
	case "featured":
		return rec.IsFeatured
	case "appeals":
		return rec.AppealStatus == catalog.AppealPending
	}
	return false
}

func (s *Store) GetProfile(ctx context.Context, id string) (*catalog.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return copyProfile(p), nil
}

func (s *Store) UpdateProfile(ctx context.Context, id string, mutate func(*catalog.Profile) error, entry *catalog.AuditEntry) (*catalog.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	next := copyProfile(p)
	if err := mutate(next); err != nil {
		return nil, err
	}
	s.profiles[id] = next
	if entry != nil {
		s.appendAuditLocked(entry)
	}
	return copyProfile(next), nil
}

func (s *Store) ListProfiles(ctx context.Context, f moderation.ProfileFilter) ([]catalog.Profile, int, error) {
	switch f.Filter {
	case "", "all", "banned", "admin", "moderator":
	default:
		return nil, 0, fmt.Errorf("%w: unknown account filter %q", catalog.ErrValidation, f.Filter)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(f.Query))
	var matched []*catalog.Profile
	for _, p := range s.profiles {
		if q != "" && !strings.Contains(strings.ToLower(p.Username), q) {
			continue
		}
		switch f.Filter {
		case "banned":
			if !p.IsBanned {
				continue
			}
		case "admin":
			if p.Role != catalog.RoleAdmin {
				continue
			}
		case "moderator":
			if p.Role != catalog.RoleModerator {
				continue
			}
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].MemberSince.After(matched[j].MemberSince)
	})

	total := len(matched)
	out := paginate(matched, f.Page.Offset(), f.Page.Size)
	res := make([]catalog.Profile, 0, len(out))
	for _, p := range out {
		res = append(res, *copyProfile(p))
	}
	return res, total, nil
}

func (s *Store) GetReview(ctx context.Context, id string) (*catalog.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rv, ok := s.reviews[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return copyReview(rv), nil
}

func (s *Store) UpdateReview(ctx context.Context, id string, mutate func(*catalog.Review) error, entry *catalog.AuditEntry) (*catalog.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rv, ok := s.reviews[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	next := copyReview(rv)
	if err := mutate(next); err != nil {
		return nil, err
	}
	s.reviews[id] = next
	if entry != nil {
		s.appendAuditLocked(entry)
	}
	return copyReview(next), nil
}

func (s *Store) DeleteReview(ctx context.Context, id string, entry *catalog.AuditEntry) (*catalog.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rv, ok := s.reviews[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	delete(s.reviews, id)
	if rec, ok := s.recommendations[rv.RecommendationID]; ok && rec.ReviewCount > 0 {
		rec.ReviewCount--
	}
	if entry != nil {
		s.appendAuditLocked(entry)
	}
	return copyReview(rv), nil
}

func (s *Store) GetReport(ctx context.Context, id string) (*catalog.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rp, ok := s.reports[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return copyReport(rp), nil
}

func (s *Store) UpdateReport(ctx context.Context, id string, mutate func(*catalog.Report) error, entry *catalog.AuditEntry) (*catalog.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rp, ok := s.reports[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	next := copyReport(rp)
	if err := mutate(next); err != nil {
		return nil, err
	}
	s.reports[id] = next
	if entry != nil {
		s.appendAuditLocked(entry)
	}
	return copyReport(next), nil
}

func (s *Store) ListReports(ctx context.Context, f moderation.ReportFilter) ([]catalog.Report, int, error) {
	switch f.Status {
	case "", "all", string(catalog.ReportPending), string(catalog.ReportReviewed),
		string(catalog.ReportResolved), string(catalog.ReportDismissed):
	default:
		return nil, 0, fmt.Errorf("%w: unknown report status %q", catalog.ErrValidation, f.Status)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*catalog.Report
	for _, rp := range s.reports {
		if f.Status != "" && f.Status != "all" && string(rp.Status) != f.Status {
			continue
		}
		matched = append(matched, rp)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	res := make([]catalog.Report, 0, len(matched))
	for _, rp := range matched {
		res = append(res, *copyReport(rp))
	}
	return res, len(res), nil
}

func (s *Store) ListAudit(ctx context.Context, page moderation.Page) ([]catalog.AuditEntry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.audit)
	// Newest first: the slice is append-ordered.
	reversed := make([]*catalog.AuditEntry, 0, total)
	for i := total - 1; i >= 0; i-- {
		reversed = append(reversed, s.audit[i])
	}
	out := paginate(reversed, page.Offset(), page.Size)
	res := make([]catalog.AuditEntry, 0, len(out))
	for _, e := range out {
		res = append(res, *copyEntry(e))
	}
	return res, total, nil
}

func (s *Store) InsertNotification(ctx context.Context, n *catalog.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, copyNotification(n))
	return nil
}

// --- content.Store ---

func (s *Store) InsertRecommendation(ctx context.Context, rec *catalog.Recommendation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recommendations[rec.ID]; ok {
		return catalog.ErrConflict
	}
	s.recommendations[rec.ID] = copyRecommendation(rec)
	return nil
}

func (s *Store) BrowseRecommendations(ctx context.Context, f content.BrowseFilter) ([]catalog.Recommendation, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*catalog.Recommendation
	for _, rec := range s.recommendations {
		if !rec.IsApproved {
			continue
		}
		if f.Type != "" && string(rec.Type) != f.Type {
			continue
		}
		if f.Genre != "" && !containsFold(rec.Genres, f.Genre) {
			continue
		}
		matched = append(matched, rec)
	}
	switch f.Sort {
	case "trending":
		sort.Slice(matched, func(i, j int) bool { return matched[i].DailyVotes > matched[j].DailyVotes })
	case "recent":
		sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	default:
		sort.Slice(matched, func(i, j int) bool { return matched[i].Score > matched[j].Score })
	}

	total := len(matched)
	out := paginate(matched, (f.Page-1)*f.PerPage, f.PerPage)
	res := make([]catalog.Recommendation, 0, len(out))
	for _, rec := range out {
		res = append(res, *copyRecommendation(rec))
	}
	return res, total, nil
}

func (s *Store) UpsertVote(ctx context.Context, v *catalog.Vote) (*catalog.Recommendation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recommendations[v.RecommendationID]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	key := v.UserID + "/" + v.RecommendationID
	if prev, ok := s.votes[key]; ok {
		if prev.VoteType == v.VoteType {
			return copyRecommendation(rec), nil
		}
		if prev.VoteType == "up" {
			rec.Upvotes--
		} else {
			rec.Downvotes--
		}
	}
	s.votes[key] = copyVote(v)
	if v.VoteType == "up" {
		rec.Upvotes++
	} else {
		rec.Downvotes++
	}
	rec.Score = rec.Upvotes - rec.Downvotes
	rec.DailyVotes++
	return copyRecommendation(rec), nil
}

func copyVote(v *catalog.Vote) *catalog.Vote {
	out := *v
	return &out
}

func (s *Store) InsertSave(ctx context.Context, sv *catalog.Save) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recommendations[sv.RecommendationID]
	if !ok {
		return catalog.ErrNotFound
	}
	key := sv.UserID + "/" + sv.RecommendationID
	if _, ok := s.saves[key]; ok {
		return nil
	}
	cp := *sv
	s.saves[key] = &cp
	rec.SaveCount++
	return nil
}

func (s *Store) DeleteSave(ctx context.Context, userID, recommendationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userID + "/" + recommendationID
	if _, ok := s.saves[key]; !ok {
		return catalog.ErrNotFound
	}
	delete(s.saves, key)
	if rec, ok := s.recommendations[recommendationID]; ok && rec.SaveCount > 0 {
		rec.SaveCount--
	}
	return nil
}

func (s *Store) InsertReview(ctx context.Context, rv *catalog.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recommendations[rv.RecommendationID]
	if !ok {
		return catalog.ErrNotFound
	}
	s.reviews[rv.ID] = copyReview(rv)
	rec.ReviewCount++
	return nil
}

func (s *Store) ListReviews(ctx context.Context, recommendationID string, page, perPage int) ([]catalog.Review, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*catalog.Review
	for _, rv := range s.reviews {
		if rv.RecommendationID == recommendationID && rv.IsApproved {
			matched = append(matched, rv)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	out := paginate(matched, (page-1)*perPage, perPage)
	res := make([]catalog.Review, 0, len(out))
	for _, rv := range out {
		res = append(res, *copyReview(rv))
	}
	return res, total, nil
}

func (s *Store) InsertReport(ctx context.Context, rp *catalog.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[rp.ID] = copyReport(rp)
	return nil
}

func (s *Store) ListNews(ctx context.Context, f content.NewsFilter) ([]catalog.NewsItem, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*catalog.NewsItem
	for _, n := range s.news {
		if f.PublishedOnly && !n.IsPublished {
			continue
		}
		if f.Category != "" && n.Category != f.Category {
			continue
		}
		matched = append(matched, n)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].PublishedAt.After(matched[j].PublishedAt)
	})

	total := len(matched)
	out := paginate(matched, (f.Page-1)*f.PerPage, f.PerPage)
	res := make([]catalog.NewsItem, 0, len(out))
	for _, n := range out {
		res = append(res, *copyNews(n))
	}
	return res, total, nil
}

func (s *Store) GetNewsBySlug(ctx context.Context, slug string) (*catalog.NewsItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, n := range s.news {
		if n.Slug == slug {
			return copyNews(n), nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (s *Store) InsertNews(ctx context.Context, item *catalog.NewsItem, entry *catalog.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.news {
		if n.Slug == item.Slug {
			return catalog.ErrConflict
		}
	}
	s.news[item.ID] = copyNews(item)
	if entry != nil {
		s.appendAuditLocked(entry)
	}
	return nil
}

func (s *Store) UpdateNews(ctx context.Context, id string, mutate func(*catalog.NewsItem) error, entry *catalog.AuditEntry) (*catalog.NewsItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.news[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	next := copyNews(n)
	if err := mutate(next); err != nil {
		return nil, err
	}
	s.news[id] = next
	if entry != nil {
		s.appendAuditLocked(entry)
	}
	return copyNews(next), nil
}

func (s *Store) DeleteNews(ctx context.Context, id string, entry *catalog.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.news[id]; !ok {
		return catalog.ErrNotFound
	}
	delete(s.news, id)
	if entry != nil {
		s.appendAuditLocked(entry)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string, page, perPage int) ([]catalog.Notification, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*catalog.Notification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if s.notifications[i].UserID == userID {
			matched = append(matched, s.notifications[i])
		}
	}
	total := len(matched)
	out := paginate(matched, (page-1)*perPage, perPage)
	res := make([]catalog.Notification, 0, len(out))
	for _, n := range out {
		res = append(res, *copyNotification(n))
	}
	return res, total, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) (*catalog.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.ID == id && n.UserID == userID {
			if !n.IsRead {
				now := time.Now().UTC()
				n.IsRead = true
				n.ReadAt = &now
			}
			return copyNotification(n), nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	now := time.Now().UTC()
	for _, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = &now
			count++
		}
	}
	return count, nil
}

// --- helpers ---

func paginate[T any](items []T, offset, size int) []T {
	if size < 1 {
		size = len(items)
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	end := offset + size
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func containsFold(items []string, want string) bool {
	for _, item := range items {
		if strings.EqualFold(item, want) {
			return true
		}
	}
	return false
}
