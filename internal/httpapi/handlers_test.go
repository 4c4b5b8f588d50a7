package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"inkshelf.org/internal/auth"
	"inkshelf.org/internal/catalog"
	"inkshelf.org/internal/content"
	"inkshelf.org/internal/moderation"
	"inkshelf.org/internal/store/memory"
	"inkshelf.org/internal/stream"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	t       *testing.T
}

func newTestAPI(t *testing.T) (*apiClient, *memory.Store) {
	t.Helper()

	t.Setenv("INKSHELF_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	st := memory.New()
	st.PutProfile(catalog.Profile{ID: "user-1", Username: "inkreader", Role: catalog.RoleUser})
	st.PutProfile(catalog.Profile{ID: "user-2", Username: "panelhopper", Role: catalog.RoleUser})
	st.PutProfile(catalog.Profile{ID: "mod-1", Username: "shelfkeeper", Role: catalog.RoleModerator})

	events := stream.New()
	mod := moderation.NewService(st, moderation.WithStream(events))
	cont := content.NewService(st)
	api := New(mod, cont, events, ReadyProbe{}, "test")

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		t:       t,
	}, st
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) patch(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPatch, path, body, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

func (c *apiClient) obtainToken(user, role string) map[string]string {
	c.t.Helper()
	resp := c.post("/v1/auth/token", map[string]any{
		"user": user,
		"role": role,
	}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("unexpected token status: %d", resp.StatusCode)
	}
	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.t.Fatalf("decode token response: %v", err)
	}
	if payload.Token == "" {
		c.t.Fatalf("empty token issued")
	}
	return map[string]string{"Authorization": "Bearer " + payload.Token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

var sampleSubmission = map[string]any{
	"title":              "Vagabond",
	"description":        "A sprawling retelling of Musashi's path to mastery.",
	"type":               "manga",
	"status":             "hiatus",
	"genres":             []string{"seinen", "historical"},
	"official_platforms": []string{"VIZ"},
	"author":             "Takehiko Inoue",
}

func TestRejectAppealResolveFlow(t *testing.T) {
	api, _ := newTestAPI(t)
	userAuth := api.obtainToken("user-1", "user")
	modAuth := api.obtainToken("mod-1", "moderator")

	resp := api.post("/v1/recommendations", sampleSubmission, userAuth)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit: expected 201, got %d", resp.StatusCode)
	}
	rec := decode[map[string]any](t, resp)
	id := rec["id"].(string)
	if rec["is_approved"].(bool) {
		t.Fatalf("user submission must start pending")
	}

	resp = api.patch("/v1/admin/recommendations/"+id, map[string]any{
		"action": "reject",
		"reason": "duplicate entry",
	}, modAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reject: expected 200, got %d", resp.StatusCode)
	}
	rec = decode[map[string]any](t, resp)
	if rec["rejection_reason"] != "duplicate entry" {
		t.Fatalf("rejection reason not stored: %v", rec)
	}

	resp = api.post("/v1/appeals", map[string]any{
		"kind":      "recommendation",
		"target_id": id,
		"text":      "This is not a duplicate, the other entry is the spin-off.",
	}, userAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("appeal: expected 200, got %d", resp.StatusCode)
	}
	if body := decode[map[string]any](t, resp); body["success"] != true {
		t.Fatalf("expected success response, got %v", body)
	}

	// duplicate appeal conflicts
	resp = api.post("/v1/appeals", map[string]any{
		"kind":      "recommendation",
		"target_id": id,
		"text":      "asking again",
	}, userAuth)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate appeal: expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.patch("/v1/admin/recommendations/"+id, map[string]any{
		"action":        "resolve_appeal",
		"appeal_status": "approved",
	}, modAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve_appeal: expected 200, got %d", resp.StatusCode)
	}
	rec = decode[map[string]any](t, resp)
	if !rec["is_approved"].(bool) || rec["appeal_status"] != "approved" {
		t.Fatalf("approved appeal should restore entry: %v", rec)
	}

	resp = api.get("/v1/admin/logs", nil, modAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logs: expected 200, got %d", resp.StatusCode)
	}
	logs := decode[map[string]any](t, resp)
	if logs["total"].(float64) != 2 {
		t.Fatalf("expected 2 audit entries (appeal itself is unaudited), got %v", logs["total"])
	}
	if logs["hasMore"].(bool) {
		t.Fatalf("hasMore should be false for 2 entries")
	}
	entries := logs["logs"].([]any)
	first := entries[0].(map[string]any)
	if first["action"] != "approved appeal for recommendation" {
		t.Fatalf("expected newest entry first, got %v", first["action"])
	}
}

func TestBanAppealRejectedFlow(t *testing.T) {
	api, _ := newTestAPI(t)
	userAuth := api.obtainToken("user-1", "user")
	modAuth := api.obtainToken("mod-1", "moderator")

	resp := api.patch("/v1/admin/users/user-1", map[string]any{
		"action": "ban",
		"reason": "harassment in reviews",
	}, modAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ban: expected 200, got %d", resp.StatusCode)
	}
	profile := decode[map[string]any](t, resp)
	if !profile["is_banned"].(bool) {
		t.Fatalf("expected banned profile: %v", profile)
	}

	resp = api.get("/v1/notifications", nil, userAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("notifications: expected 200, got %d", resp.StatusCode)
	}
	notes := decode[listResponse[catalog.Notification]](t, resp)
	if notes.Total != 1 || notes.Items[0].Type != "account_ban" {
		t.Fatalf("expected account_ban notification, got %+v", notes)
	}

	resp = api.post("/v1/appeals", map[string]any{
		"kind": "ban",
		"text": "I was quoting the review I reported.",
	}, userAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ban appeal: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.patch("/v1/admin/users/user-1", map[string]any{
		"action":        "resolve_appeal",
		"appeal_status": "rejected",
	}, modAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve_appeal: expected 200, got %d", resp.StatusCode)
	}
	profile = decode[map[string]any](t, resp)
	if !profile["is_banned"].(bool) || profile["appeal_status"] != "rejected" {
		t.Fatalf("rejected ban appeal must keep the ban: %v", profile)
	}

	// mark the ban notification as read
	noteID := notes.Items[0].ID
	resp = api.post("/v1/notifications/"+noteID+"/read", nil, userAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("mark read: expected 200, got %d", resp.StatusCode)
	}
	read := decode[catalog.Notification](t, resp)
	if !read.IsRead || read.ReadAt == nil {
		t.Fatalf("notification not marked read: %+v", read)
	}
}

func TestAdminSurfaceAuthMatrix(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.get("/v1/admin/logs", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous: expected 401, got %d", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Fatalf("expected WWW-Authenticate challenge")
	}
	resp.Body.Close()

	userAuth := api.obtainToken("user-1", "user")
	resp = api.get("/v1/admin/logs", nil, userAuth)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("plain user: expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	modAuth := api.obtainToken("mod-1", "moderator")
	resp = api.get("/v1/admin/logs", nil, modAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("moderator: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPublicBrowseNeedsNoToken(t *testing.T) {
	api, st := newTestAPI(t)
	st.PutRecommendation(catalog.Recommendation{
		ID: "rec-1", UserID: "user-2", Title: "Berserk", IsApproved: true,
		Type: catalog.TypeManga, Genres: []string{"seinen"},
	})

	resp := api.get("/v1/recommendations", url.Values{"sort": []string{"recent"}}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("browse: expected 200, got %d", resp.StatusCode)
	}
	list := decode[listResponse[catalog.Recommendation]](t, resp)
	if list.Total != 1 || list.Items[0].Title != "Berserk" {
		t.Fatalf("unexpected browse payload: %+v", list)
	}

	resp = api.get("/v1/recommendations/rec-1", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestModerationValidationErrors(t *testing.T) {
	api, st := newTestAPI(t)
	st.PutRecommendation(catalog.Recommendation{ID: "rec-1", UserID: "user-1", Title: "Berserk"})
	modAuth := api.obtainToken("mod-1", "moderator")

	// unknown action
	resp := api.patch("/v1/admin/recommendations/rec-1", map[string]any{"action": "promote"}, modAuth)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown action: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// reject without reason
	resp = api.patch("/v1/admin/recommendations/rec-1", map[string]any{"action": "reject"}, modAuth)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("reject without reason: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// missing target
	resp = api.patch("/v1/admin/recommendations/nope", map[string]any{"action": "approve"}, modAuth)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing target: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// malformed submission
	userAuth := api.obtainToken("user-1", "user")
	resp = api.post("/v1/recommendations", map[string]any{"title": "x"}, userAuth)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad submission: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestVoteSaveReviewFlow(t *testing.T) {
	api, st := newTestAPI(t)
	st.PutRecommendation(catalog.Recommendation{
		ID: "rec-1", UserID: "user-2", Title: "Berserk", IsApproved: true,
	})
	userAuth := api.obtainToken("user-1", "user")

	resp := api.post("/v1/recommendations/rec-1/votes", map[string]any{"vote_type": "up"}, userAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("vote: expected 200, got %d", resp.StatusCode)
	}
	rec := decode[map[string]any](t, resp)
	if rec["upvotes"].(float64) != 1 || rec["score"].(float64) != 1 {
		t.Fatalf("vote counters wrong: %v", rec)
	}

	resp = api.do(http.MethodPut, "/v1/recommendations/rec-1/save", nil, userAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.post("/v1/recommendations/rec-1/reviews", map[string]any{
		"content": "The art carries entire chapters on its own.",
		"rating":  9,
	}, userAuth)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("review: expected 201, got %d", resp.StatusCode)
	}
	review := decode[catalog.Review](t, resp)

	resp = api.get("/v1/recommendations/rec-1/reviews", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list reviews: expected 200, got %d", resp.StatusCode)
	}
	reviews := decode[listResponse[catalog.Review]](t, resp)
	if reviews.Total != 1 || reviews.Items[0].ID != review.ID {
		t.Fatalf("unexpected reviews: %+v", reviews)
	}

	// moderator hides, the public listing empties
	modAuth := api.obtainToken("mod-1", "moderator")
	resp = api.patch("/v1/admin/reviews/"+review.ID, map[string]any{"action": "hide"}, modAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("hide: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = api.get("/v1/recommendations/rec-1/reviews", nil, nil)
	reviews = decode[listResponse[catalog.Review]](t, resp)
	if reviews.Total != 0 {
		t.Fatalf("hidden review must not list publicly: %+v", reviews)
	}
}

func TestAdminListEnvelopes(t *testing.T) {
	api, st := newTestAPI(t)
	st.PutRecommendation(catalog.Recommendation{ID: "rec-1", UserID: "user-1", Title: "Berserk"})
	modAuth := api.obtainToken("mod-1", "moderator")

	resp := api.get("/v1/admin/recommendations", url.Values{"filter": []string{"pending"}}, modAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list recommendations: expected 200, got %d", resp.StatusCode)
	}
	recs := decode[map[string]any](t, resp)
	if recs["total"].(float64) != 1 || len(recs["recommendations"].([]any)) != 1 {
		t.Fatalf("unexpected recommendations envelope: %v", recs)
	}
	if recs["hasMore"].(bool) {
		t.Fatalf("hasMore should be false for a single entry")
	}

	resp = api.get("/v1/admin/users", url.Values{"filter": []string{"moderator"}}, modAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list users: expected 200, got %d", resp.StatusCode)
	}
	users := decode[map[string]any](t, resp)
	if users["total"].(float64) != 1 || len(users["users"].([]any)) != 1 {
		t.Fatalf("unexpected users envelope: %v", users)
	}
}

func TestAdminListsRejectUnknownFilter(t *testing.T) {
	api, _ := newTestAPI(t)
	modAuth := api.obtainToken("mod-1", "moderator")

	for _, path := range []string{
		"/v1/admin/recommendations",
		"/v1/admin/users",
		"/v1/admin/reports",
	} {
		resp := api.get(path, url.Values{"filter": []string{"bogus"}}, modAuth)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s with unknown filter: expected 400, got %d", path, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestReportLifecycle(t *testing.T) {
	api, _ := newTestAPI(t)
	userAuth := api.obtainToken("user-1", "user")
	modAuth := api.obtainToken("mod-1", "moderator")

	resp := api.post("/v1/reports", map[string]any{
		"entity_type": "recommendation",
		"entity_id":   "rec-1",
		"reason":      "stolen artwork",
	}, userAuth)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("report: expected 201, got %d", resp.StatusCode)
	}
	report := decode[catalog.Report](t, resp)

	resp = api.get("/v1/admin/reports", url.Values{"filter": []string{"pending"}}, modAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list reports: expected 200, got %d", resp.StatusCode)
	}
	listing := decode[map[string]any](t, resp)
	if listing["total"].(float64) != 1 || len(listing["reports"].([]any)) != 1 {
		t.Fatalf("expected one pending report: %v", listing)
	}

	resp = api.patch("/v1/admin/reports/"+report.ID, map[string]any{
		"status": "dismissed",
		"note":   "source confirmed original",
	}, modAuth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("resolve: expected 200, got %d", resp.StatusCode)
	}
	resolved := decode[catalog.Report](t, resp)
	if resolved.Status != catalog.ReportDismissed || resolved.ResolutionNote == "" {
		t.Fatalf("resolution wrong: %+v", resolved)
	}
}

func TestTokenEndpointValidation(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.post("/v1/auth/token", map[string]any{"user": ""}, nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestHealthAndInfo(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.get("/healthz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["service"] != "inkshelf-api" {
		t.Fatalf("unexpected healthz body: %v", body)
	}

	resp = api.get("/readyz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}
