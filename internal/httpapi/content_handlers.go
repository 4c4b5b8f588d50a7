package httpapi

import (
	"net/http"
	"strings"

	"inkshelf.org/internal/auth"
	"inkshelf.org/internal/catalog"
	"inkshelf.org/internal/content"
	"inkshelf.org/internal/moderation"
)

type listResponse[T any] struct {
	Items   []T `json:"items"`
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

func (a *API) handleRecommendationsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.browseRecommendations(w, r)
	case http.MethodPost:
		a.submitRecommendation(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) browseRecommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := content.BrowseFilter{
		Type:    strings.TrimSpace(q.Get("type")),
		Genre:   strings.TrimSpace(q.Get("genre")),
		Sort:    strings.TrimSpace(q.Get("sort")),
		Page:    queryInt(r, "page", 1, 1, 1_000_000),
		PerPage: queryInt(r, "per_page", 20, 1, 100),
	}
	items, total, err := a.content.Browse(r.Context(), f)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []catalog.Recommendation{}
	}
	writeJSON(w, http.StatusOK, listResponse[catalog.Recommendation]{
		Items: items, Total: total, Page: f.Page, PerPage: f.PerPage,
	})
}

func (a *API) submitRecommendation(w http.ResponseWriter, r *http.Request) {
	var in content.SubmitRecommendationInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	rec, err := a.content.SubmitRecommendation(r.Context(), userID, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/recommendations/"+rec.ID)
	writeJSON(w, http.StatusCreated, rec)
}

func (a *API) handleRecommendationResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/recommendations/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	id, rest, _ := strings.Cut(path, "/")
	if id == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch rest {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, r, http.MethodGet)
			return
		}
		rec, err := a.content.GetRecommendation(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)

	case "votes":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.castVote(w, r, id)

	case "save":
		switch r.Method {
		case http.MethodPut:
			userID, _ := auth.UserIDFromContext(r.Context())
			if err := a.content.SaveRecommendation(r.Context(), userID, id); err != nil {
				handleServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"saved": true})
		case http.MethodDelete:
			userID, _ := auth.UserIDFromContext(r.Context())
			if err := a.content.UnsaveRecommendation(r.Context(), userID, id); err != nil {
				handleServiceError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"saved": false})
		default:
			methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
		}

	case "reviews":
		switch r.Method {
		case http.MethodGet:
			a.listReviews(w, r, id)
		case http.MethodPost:
			a.createReview(w, r, id)
		default:
			methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
		}

	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

type voteRequest struct {
	VoteType string `json:"vote_type"`
}

func (a *API) castVote(w http.ResponseWriter, r *http.Request, id string) {
	var req voteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	rec, err := a.content.CastVote(r.Context(), userID, id, req.VoteType)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) listReviews(w http.ResponseWriter, r *http.Request, id string) {
	page := queryInt(r, "page", 1, 1, 1_000_000)
	perPage := queryInt(r, "per_page", 20, 1, 100)
	items, total, err := a.content.ListReviews(r.Context(), id, page, perPage)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []catalog.Review{}
	}
	writeJSON(w, http.StatusOK, listResponse[catalog.Review]{
		Items: items, Total: total, Page: page, PerPage: perPage,
	})
}

func (a *API) createReview(w http.ResponseWriter, r *http.Request, id string) {
	var in content.CreateReviewInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	rv, err := a.content.CreateReview(r.Context(), userID, id, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}

func (a *API) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var in content.FileReportInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	rp, err := a.content.FileReport(r.Context(), userID, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rp)
}

type appealRequest struct {
	Kind     string `json:"kind"`
	TargetID string `json:"target_id"`
	Text     string `json:"text"`
}

func (a *API) handleAppeals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req appealRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	kind, err := moderation.ParseAppealKind(req.Kind)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	actor := actorFromContext(r.Context())
	if err := a.moderation.SubmitAppeal(r.Context(), actor, kind, req.TargetID, req.Text); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *API) handleNewsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	f := content.NewsFilter{
		Category:      strings.TrimSpace(r.URL.Query().Get("category")),
		PublishedOnly: true,
		Page:          queryInt(r, "page", 1, 1, 1_000_000),
		PerPage:       queryInt(r, "per_page", 20, 1, 100),
	}
	items, total, err := a.content.ListNews(r.Context(), f)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []catalog.NewsItem{}
	}
	writeJSON(w, http.StatusOK, listResponse[catalog.NewsItem]{
		Items: items, Total: total, Page: f.Page, PerPage: f.PerPage,
	})
}

func (a *API) handleNewsResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	slug := strings.TrimPrefix(r.URL.Path, "/v1/news/")
	if slug == "" || strings.Contains(slug, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	item, err := a.content.GetNewsBySlug(r.Context(), slug)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (a *API) handleNotifications(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	page := queryInt(r, "page", 1, 1, 1_000_000)
	perPage := queryInt(r, "per_page", 20, 1, 100)
	items, total, err := a.content.ListNotifications(r.Context(), userID, page, perPage)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []catalog.Notification{}
	}
	writeJSON(w, http.StatusOK, listResponse[catalog.Notification]{
		Items: items, Total: total, Page: page, PerPage: perPage,
	})
}

func (a *API) handleNotificationsReadAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	n, err := a.content.MarkAllNotificationsRead(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": n})
}

func (a *API) handleNotificationResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/notifications/")
	id, rest, _ := strings.Cut(path, "/")
	if id == "" || rest != "read" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	n, err := a.content.MarkNotificationRead(r.Context(), userID, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}
