package content_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"inkshelf.org/internal/catalog"
	"inkshelf.org/internal/content"
	"inkshelf.org/internal/moderation"
	"inkshelf.org/internal/store/memory"
)

type fixture struct {
	store *memory.Store
	svc   *content.Service
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.New()
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := content.NewService(st, content.WithClock(func() time.Time { return clock }))

	st.PutProfile(catalog.Profile{ID: "user-1", Username: "reader", Role: catalog.RoleUser})
	st.PutProfile(catalog.Profile{ID: "user-2", Username: "lurker", Role: catalog.RoleUser})
	st.PutProfile(catalog.Profile{ID: "mod-1", Username: "mod", Role: catalog.RoleModerator})
	st.PutProfile(catalog.Profile{ID: "banned-1", Username: "troll", Role: catalog.RoleUser, IsBanned: true})

	return &fixture{store: st, svc: svc, ctx: context.Background()}
}

func validSubmission() content.SubmitRecommendationInput {
	return content.SubmitRecommendationInput{
		Title:             "Vagabond",
		Description:       "A sweeping retelling of the life of Musashi Miyamoto.",
		Type:              "manga",
		Status:            "hiatus",
		Genres:            []string{"seinen", "historical"},
		OfficialPlatforms: []string{"VIZ"},
		Author:            "Takehiko Inoue",
	}
}

func TestSubmitRecommendationStartsPending(t *testing.T) {
	f := newFixture(t)

	rec, err := f.svc.SubmitRecommendation(f.ctx, "user-1", validSubmission())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if rec.IsApproved {
		t.Fatal("regular submissions must start unapproved")
	}
	if rec.AppealStatus != catalog.AppealNone {
		t.Fatalf("appeal status = %q, want none", rec.AppealStatus)
	}
	if rec.ContentRating != "all" {
		t.Fatalf("content rating = %q, want default all", rec.ContentRating)
	}
}

func TestSubmitRecommendationModeratorAutoApproves(t *testing.T) {
	f := newFixture(t)

	rec, err := f.svc.SubmitRecommendation(f.ctx, "mod-1", validSubmission())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !rec.IsApproved {
		t.Fatal("moderator submissions should be auto-approved")
	}
}

func TestSubmitRecommendationRefusesBannedAuthor(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.SubmitRecommendation(f.ctx, "banned-1", validSubmission())
	if !errors.Is(err, catalog.ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestSubmitRecommendationValidation(t *testing.T) {
	f := newFixture(t)

	bad := validSubmission()
	bad.Description = "too short"
	if _, err := f.svc.SubmitRecommendation(f.ctx, "user-1", bad); !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("short description: err = %v, want ErrValidation", err)
	}

	bad = validSubmission()
	bad.Type = "novel"
	if _, err := f.svc.SubmitRecommendation(f.ctx, "user-1", bad); !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("unknown type: err = %v, want ErrValidation", err)
	}

	bad = validSubmission()
	bad.Genres = nil
	if _, err := f.svc.SubmitRecommendation(f.ctx, "user-1", bad); !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("missing genres: err = %v, want ErrValidation", err)
	}

	if _, err := f.svc.SubmitRecommendation(f.ctx, "", validSubmission()); !errors.Is(err, catalog.ErrUnauthorized) {
		t.Fatalf("anonymous: err = %v, want ErrUnauthorized", err)
	}
}

func TestBrowseRejectsUnknownSort(t *testing.T) {
	f := newFixture(t)

	if _, _, err := f.svc.Browse(f.ctx, content.BrowseFilter{Sort: "alphabetical"}); !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestCastVoteCountersAndFlip(t *testing.T) {
	f := newFixture(t)
	f.store.PutRecommendation(catalog.Recommendation{
		ID: "rec-1", UserID: "user-2", Title: "Vagabond", IsApproved: true,
	})

	rec, err := f.svc.CastVote(f.ctx, "user-1", "rec-1", "up")
	if err != nil {
		t.Fatalf("vote up: %v", err)
	}
	if rec.Upvotes != 1 || rec.Downvotes != 0 || rec.Score != 1 {
		t.Fatalf("after up: up=%d down=%d score=%d", rec.Upvotes, rec.Downvotes, rec.Score)
	}

	// Same vote again is a no-op.
	rec, err = f.svc.CastVote(f.ctx, "user-1", "rec-1", "up")
	if err != nil {
		t.Fatalf("repeat vote: %v", err)
	}
	if rec.Upvotes != 1 || rec.Score != 1 {
		t.Fatalf("repeat vote changed counters: up=%d score=%d", rec.Upvotes, rec.Score)
	}

	// Flipping replaces the prior vote.
	rec, err = f.svc.CastVote(f.ctx, "user-1", "rec-1", "down")
	if err != nil {
		t.Fatalf("flip vote: %v", err)
	}
	if rec.Upvotes != 0 || rec.Downvotes != 1 || rec.Score != -1 {
		t.Fatalf("after flip: up=%d down=%d score=%d", rec.Upvotes, rec.Downvotes, rec.Score)
	}

	if _, err := f.svc.CastVote(f.ctx, "user-1", "rec-1", "sideways"); !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("bad vote type: err = %v, want ErrValidation", err)
	}
}

func TestSaveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.store.PutRecommendation(catalog.Recommendation{
		ID: "rec-1", UserID: "user-2", Title: "Vagabond", IsApproved: true,
	})

	if err := f.svc.SaveRecommendation(f.ctx, "user-1", "rec-1"); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := f.svc.SaveRecommendation(f.ctx, "user-1", "rec-1"); err != nil {
		t.Fatalf("second save: %v", err)
	}
	rec, err := f.svc.GetRecommendation(f.ctx, "rec-1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.SaveCount != 1 {
		t.Fatalf("save count = %d, want 1", rec.SaveCount)
	}

	if err := f.svc.UnsaveRecommendation(f.ctx, "user-1", "rec-1"); err != nil {
		t.Fatalf("unsave: %v", err)
	}
	rec, _ = f.svc.GetRecommendation(f.ctx, "rec-1")
	if rec.SaveCount != 0 {
		t.Fatalf("save count after unsave = %d, want 0", rec.SaveCount)
	}
}

func TestCreateReviewRequiresRecommendation(t *testing.T) {
	f := newFixture(t)

	in := content.CreateReviewInput{Content: "An all-time great run of chapters.", Rating: 9}
	if _, err := f.svc.CreateReview(f.ctx, "user-1", "rec-missing", in); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	f.store.PutRecommendation(catalog.Recommendation{
		ID: "rec-1", UserID: "user-2", Title: "Vagabond", IsApproved: true,
	})
	rv, err := f.svc.CreateReview(f.ctx, "user-1", "rec-1", in)
	if err != nil {
		t.Fatalf("create review: %v", err)
	}
	if !rv.IsApproved {
		t.Fatal("new reviews should be visible until hidden")
	}
	rec, _ := f.svc.GetRecommendation(f.ctx, "rec-1")
	if rec.ReviewCount != 1 {
		t.Fatalf("review count = %d, want 1", rec.ReviewCount)
	}
}

func TestFileReportStartsPending(t *testing.T) {
	f := newFixture(t)

	rp, err := f.svc.FileReport(f.ctx, "user-1", content.FileReportInput{
		EntityType: "recommendation",
		EntityID:   "rec-1",
		Reason:     "spam",
	})
	if err != nil {
		t.Fatalf("file report: %v", err)
	}
	if rp.Status != catalog.ReportPending {
		t.Fatalf("status = %q, want pending", rp.Status)
	}

	_, err = f.svc.FileReport(f.ctx, "user-1", content.FileReportInput{EntityType: "post", EntityID: "x", Reason: "spam"})
	if !errors.Is(err, catalog.ErrValidation) {
		t.Fatalf("unknown entity type: err = %v, want ErrValidation", err)
	}
}

func validNews() content.NewsInput {
	return content.NewsInput{
		Title:       "New serialization announced",
		Slug:        "new-serialization-announced",
		Excerpt:     "A new series starts next month.",
		SourceName:  "Weekly Magazine",
		SourceURL:   "https://example.com/news/1",
		Category:    "announcement",
		IsPublished: true,
	}
}

func TestNewsWritesAreGatedAndAudited(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.CreateNews(f.ctx, "user-1", catalog.RoleUser, validNews()); !errors.Is(err, catalog.ErrForbidden) {
		t.Fatalf("regular user: err = %v, want ErrForbidden", err)
	}

	item, err := f.svc.CreateNews(f.ctx, "mod-1", catalog.RoleModerator, validNews())
	if err != nil {
		t.Fatalf("create news: %v", err)
	}
	if item.PublishedBy != "mod-1" {
		t.Fatalf("published_by = %q, want mod-1", item.PublishedBy)
	}

	in := validNews()
	in.Title = "New serialization confirmed"
	if _, err := f.svc.UpdateNews(f.ctx, "mod-1", catalog.RoleModerator, item.ID, in); err != nil {
		t.Fatalf("update news: %v", err)
	}
	if err := f.svc.DeleteNews(f.ctx, "mod-1", catalog.RoleModerator, item.ID); err != nil {
		t.Fatalf("delete news: %v", err)
	}

	entries, total, err := f.store.ListAudit(f.ctx, moderation.Page{Number: 1, Size: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Fatalf("audit total = %d, want 3", total)
	}
	wantNewest := []string{"deleted news", "updated news", "created news"}
	for i, want := range wantNewest {
		if entries[i].Action != want {
			t.Fatalf("entry %d action = %q, want %q", i, entries[i].Action, want)
		}
	}
	if entries[2].TargetLabel != "New serialization announced" {
		t.Fatalf("create entry label = %q", entries[2].TargetLabel)
	}
}

func TestPublicNewsListingHidesDrafts(t *testing.T) {
	f := newFixture(t)

	draft := validNews()
	draft.Slug = "draft-article"
	draft.IsPublished = false
	if _, err := f.svc.CreateNews(f.ctx, "mod-1", catalog.RoleModerator, draft); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CreateNews(f.ctx, "mod-1", catalog.RoleModerator, validNews()); err != nil {
		t.Fatal(err)
	}

	items, total, err := f.svc.ListNews(f.ctx, content.NewsFilter{PublishedOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(items) != 1 {
		t.Fatalf("published listing = %d items (total %d), want 1", len(items), total)
	}
	if items[0].Slug != "new-serialization-announced" {
		t.Fatalf("unexpected slug %q", items[0].Slug)
	}

	_, all, err := f.svc.ListNews(f.ctx, content.NewsFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if all != 2 {
		t.Fatalf("unrestricted listing total = %d, want 2", all)
	}
}

func TestNotificationOwnership(t *testing.T) {
	f := newFixture(t)
	if err := f.store.InsertNotification(f.ctx, &catalog.Notification{
		ID: "ntf-1", UserID: "user-1", Type: "recommendation_approve", Title: "Your recommendation was approved",
	}); err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.MarkNotificationRead(f.ctx, "user-2", "ntf-1"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("foreign notification: err = %v, want ErrNotFound", err)
	}

	n, err := f.svc.MarkNotificationRead(f.ctx, "user-1", "ntf-1")
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if !n.IsRead || n.ReadAt == nil {
		t.Fatal("notification should be marked read with a timestamp")
	}

	updated, err := f.svc.MarkAllNotificationsRead(f.ctx, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if updated != 0 {
		t.Fatalf("mark-all after read = %d rows, want 0", updated)
	}
}
