// Command smoke drives a full moderation cycle against a running API:
// submit -> reject -> appeal -> resolve, then verifies the audit trail.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

var base string

func main() {
	base = os.Getenv("INKSHELF_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}

	userTok := token("smoke-user", "user")
	modTok := token("smoke-mod", "moderator")

	rec := call(http.MethodPost, "/v1/recommendations", map[string]any{
		"title":              fmt.Sprintf("Smoke Test Manga %d", time.Now().Unix()),
		"description":        "A throwaway entry created by the smoke test binary.",
		"type":               "manga",
		"status":             "ongoing",
		"genres":             []string{"action"},
		"official_platforms": []string{"none"},
	}, userTok, http.StatusCreated)
	id := rec["id"].(string)

	call(http.MethodPatch, "/v1/admin/recommendations/"+id, map[string]any{
		"action": "reject",
		"reason": "smoke test rejection",
	}, modTok, http.StatusOK)

	call(http.MethodPost, "/v1/appeals", map[string]any{
		"kind":      "recommendation",
		"target_id": id,
		"text":      "smoke test appeal",
	}, userTok, http.StatusOK)

	resolved := call(http.MethodPatch, "/v1/admin/recommendations/"+id, map[string]any{
		"action":        "resolve_appeal",
		"appeal_status": "approved",
	}, modTok, http.StatusOK)
	if resolved["is_approved"] != true {
		log.Fatalf("approved appeal did not restore the entry: %v", resolved)
	}

	logs := call(http.MethodGet, "/v1/admin/logs", nil, modTok, http.StatusOK)
	entries := logs["logs"].([]any)
	if len(entries) < 2 {
		log.Fatalf("expected at least 2 audit entries, got %d", len(entries))
	}
	newest := entries[0].(map[string]any)
	if newest["action"] != "approved appeal for recommendation" {
		log.Fatalf("unexpected newest audit action: %v", newest["action"])
	}

	fmt.Printf("✅ moderation smoke test passed: recommendation=%s\n", id)
}

func token(user, role string) string {
	resp := call(http.MethodPost, "/v1/auth/token", map[string]any{
		"user": user,
		"role": role,
	}, "", http.StatusOK)
	return resp["token"].(string)
}

func call(method, path string, body any, tok string, wantStatus int) map[string]any {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			log.Fatalf("marshal %s %s: %v", method, path, err)
		}
	}
	req, err := http.NewRequest(method, base+path, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("request %s %s: %v", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		log.Fatalf("%s %s: expected %d, got %d", method, path, wantStatus, resp.StatusCode)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		log.Fatalf("decode %s %s: %v", method, path, err)
	}
	return out
}
