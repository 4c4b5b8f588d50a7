package httpapi

import (
	"net/http"
	"strings"

	"inkshelf.org/internal/auth"
	"inkshelf.org/internal/catalog"
	"inkshelf.org/internal/content"
	"inkshelf.org/internal/moderation"
)

// moderationRequest is the wire form of a moderation action. The action
// vocabulary is closed; unknown names are rejected before any store access.
type moderationRequest struct {
	Action       string            `json:"action"`
	Reason       string            `json:"reason,omitempty"`
	Role         string            `json:"role,omitempty"`
	AppealStatus string            `json:"appeal_status,omitempty"`
	Fields       map[string]string `json:"fields,omitempty"`
	Note         string            `json:"note,omitempty"`
}

func (m moderationRequest) payload() moderation.ActionPayload {
	return moderation.ActionPayload{
		Reason:       m.Reason,
		Role:         catalog.Role(m.Role),
		AppealStatus: catalog.AppealStatus(m.AppealStatus),
		Fields:       m.Fields,
		Note:         m.Note,
	}
}

func resourceID(r *http.Request, prefix string) (string, bool) {
	id := strings.TrimPrefix(r.URL.Path, prefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func (a *API) handleAdminRecommendations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	f := moderation.RecommendationFilter{
		Status: strings.TrimSpace(r.URL.Query().Get("filter")),
		Page: moderation.Page{
			Number: queryInt(r, "page", 1, 1, 1_000_000),
			Size:   queryInt(r, "per_page", 20, 1, 200),
		},
	}
	items, total, err := a.moderation.ListRecommendations(r.Context(), actorFromContext(r.Context()), f)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []catalog.Recommendation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recommendations": items,
		"total":           total,
		"hasMore":         total > f.Page.Offset()+len(items),
	})
}

func (a *API) handleAdminRecommendationResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(r, "/v1/admin/recommendations/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, http.MethodPatch)
		return
	}

	var req moderationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	action, err := moderation.ParseRecommendationAction(req.Action)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	rec, err := a.moderation.ApplyRecommendationAction(r.Context(), actorFromContext(r.Context()), id, action, req.payload())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	f := moderation.ProfileFilter{
		Query:  strings.TrimSpace(r.URL.Query().Get("q")),
		Filter: strings.TrimSpace(r.URL.Query().Get("filter")),
		Page: moderation.Page{
			Number: queryInt(r, "page", 1, 1, 1_000_000),
			Size:   queryInt(r, "per_page", 20, 1, 200),
		},
	}
	items, total, err := a.moderation.ListProfiles(r.Context(), actorFromContext(r.Context()), f)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []catalog.Profile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users":   items,
		"total":   total,
		"hasMore": total > f.Page.Offset()+len(items),
	})
}

func (a *API) handleAdminUserResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(r, "/v1/admin/users/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, http.MethodPatch)
		return
	}

	var req moderationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	action, err := moderation.ParseAccountAction(req.Action)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	profile, err := a.moderation.ApplyAccountAction(r.Context(), actorFromContext(r.Context()), id, action, req.payload())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (a *API) handleAdminReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	f := moderation.ReportFilter{
		Status: strings.TrimSpace(r.URL.Query().Get("filter")),
	}
	items, total, err := a.moderation.ListReports(r.Context(), actorFromContext(r.Context()), f)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []catalog.Report{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reports": items,
		"total":   total,
	})
}

type reportResolution struct {
	Status string `json:"status"`
	Note   string `json:"note,omitempty"`
}

func (a *API) handleAdminReportResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(r, "/v1/admin/reports/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPatch {
		methodNotAllowed(w, r, http.MethodPatch)
		return
	}

	var req reportResolution
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rp, err := a.moderation.ResolveReport(r.Context(), actorFromContext(r.Context()), id, catalog.ReportStatus(req.Status), req.Note)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rp)
}

func (a *API) handleAdminReviewResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(r, "/v1/admin/reviews/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req moderationRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		action, err := moderation.ParseReviewAction(req.Action)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if action == moderation.ReviewDelete {
			writeError(w, r, http.StatusBadRequest, "use DELETE to remove a review")
			return
		}
		rv, err := a.moderation.ApplyReviewAction(r.Context(), actorFromContext(r.Context()), id, action)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rv)

	case http.MethodDelete:
		if _, err := a.moderation.ApplyReviewAction(r.Context(), actorFromContext(r.Context()), id, moderation.ReviewDelete); err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true})

	default:
		methodNotAllowed(w, r, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handleAdminLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	page := moderation.Page{
		Number: queryInt(r, "page", 1, 1, 1_000_000),
		Size:   queryInt(r, "per_page", 50, 1, 200),
	}
	entries, total, err := a.moderation.ListAuditLog(r.Context(), actorFromContext(r.Context()), page)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []catalog.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"logs":    entries,
		"total":   total,
		"hasMore": total > page.Offset()+len(entries),
	})
}

func (a *API) handleAdminNewsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		f := content.NewsFilter{
			Category: strings.TrimSpace(r.URL.Query().Get("category")),
			Page:     queryInt(r, "page", 1, 1, 1_000_000),
			PerPage:  queryInt(r, "per_page", 20, 1, 100),
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

	case http.MethodPost:
		var in content.NewsInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		userID, _ := auth.UserIDFromContext(r.Context())
		role := catalog.Role(auth.RoleFromContext(r.Context()))
		item, err := a.content.CreateNews(r.Context(), userID, role, in)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		w.Header().Set("Location", "/v1/news/"+item.Slug)
		writeJSON(w, http.StatusCreated, item)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleAdminNewsResource(w http.ResponseWriter, r *http.Request) {
	id, ok := resourceID(r, "/v1/admin/news/")
	if !ok {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	role := catalog.Role(auth.RoleFromContext(r.Context()))

	switch r.Method {
	case http.MethodPatch:
		var in content.NewsInput
		if err := decodeJSON(w, r, &in); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		item, err := a.content.UpdateNews(r.Context(), userID, role, id, in)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)

	case http.MethodDelete:
		if err := a.content.DeleteNews(r.Context(), userID, role, id); err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true})

	default:
		methodNotAllowed(w, r, http.MethodPatch, http.MethodDelete)
	}
}
