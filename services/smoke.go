package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// Titles used for the throwaway record the CRUD round trip creates. The
// record is deleted again before the round trip reports success.
const (
	smokeTestTitle        = "__health_check_test__"
	smokeTestUpdatedTitle = "__health_check_test_updated__"
)

// AnimeRecord mirrors the backend's anime resource.
type AnimeRecord struct {
	ID       int    `json:"id"`
	Title    string `json:"title"`
	Genre    string `json:"genre"`
	Episodes int    `json:"episodes"`
}

// HTTPAPIVerifier exercises the deployed backend API over HTTP. It goes
// beyond the health endpoint: listing proves the read path end to end, the
// CRUD round trip proves writes reach the database.
type HTTPAPIVerifier struct {
	client *http.Client
}

func NewAPIVerifier(config *Config) *HTTPAPIVerifier {
	return &HTTPAPIVerifier{
		client: &http.Client{Timeout: config.HealthTimeout},
	}
}

var _ APIVerifier = (*HTTPAPIVerifier)(nil)

// ListAnimes fetches the collection and returns how many records it holds.
func (v *HTTPAPIVerifier) ListAnimes(ctx context.Context, baseURL string) (int, error) {
	var animes []AnimeRecord
	if err := v.do(ctx, http.MethodGet, animesURL(baseURL), nil, http.StatusOK, &animes); err != nil {
		return 0, fmt.Errorf("listing animes: %w", err)
	}
	return len(animes), nil
}

// CRUDRoundTrip creates a throwaway record, reads it back, updates it and
// deletes it, verifying every write path of the API. The record is cleaned
// up even when an intermediate step fails.
func (v *HTTPAPIVerifier) CRUDRoundTrip(ctx context.Context, baseURL string) (err error) {
	var created AnimeRecord
	payload := AnimeRecord{Title: smokeTestTitle, Genre: "Test", Episodes: 1}
	if err := v.do(ctx, http.MethodPost, animesURL(baseURL), payload, http.StatusCreated, &created); err != nil {
		return fmt.Errorf("create: %w", err)
	}
	if created.ID == 0 {
		return fmt.Errorf("create: response carries no record id")
	}

	recordURL := fmt.Sprintf("%s/%d", animesURL(baseURL), created.ID)
	deleted := false
	defer func() {
		if deleted {
			return
		}
		// Best-effort cleanup so failed verifications don't litter the
		// catalog with test records.
		if cleanupErr := v.do(ctx, http.MethodDelete, recordURL, nil, http.StatusNoContent, nil); cleanupErr != nil {
			slog.Warn("Failed to clean up smoke test record", "id", created.ID, "error", cleanupErr)
		}
	}()

	var read AnimeRecord
	if err := v.do(ctx, http.MethodGet, recordURL, nil, http.StatusOK, &read); err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if read.ID != created.ID {
		return fmt.Errorf("read: got record %d, want %d", read.ID, created.ID)
	}

	update := AnimeRecord{Title: smokeTestUpdatedTitle, Genre: "Test Updated", Episodes: 2}
	if err := v.do(ctx, http.MethodPut, recordURL, update, http.StatusOK, nil); err != nil {
		return fmt.Errorf("update: %w", err)
	}

	if err := v.do(ctx, http.MethodDelete, recordURL, nil, http.StatusNoContent, nil); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	deleted = true
	return nil
}

// CheckDocs probes the backend's API documentation endpoints. The docs are
// optional: a 404 means the app ships without them, which is acceptable.
func (v *HTTPAPIVerifier) CheckDocs(ctx context.Context, baseURL string) (string, error) {
	var notes []string
	for _, path := range []string{"/docs", "/openapi.json"} {
		url := strings.TrimRight(baseURL, "/") + path
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", fmt.Errorf("building request: %w", err)
		}
		resp, err := v.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("GET %s: %w", url, err)
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxHealthBodyBytes))
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			notes = append(notes, path+" available")
		case resp.StatusCode == http.StatusNotFound:
			notes = append(notes, path+" not available (optional)")
		default:
			return "", fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
		}
	}
	return strings.Join(notes, ", "), nil
}

// do performs one JSON request and decodes the response into out when the
// status matches wantStatus.
func (v *HTTPAPIVerifier) do(ctx context.Context, method, url string, body any, wantStatus int, out any) error {
	var reqBody io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxHealthBodyBytes))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != wantStatus {
		return fmt.Errorf("%s %s: status %d, want %d: %s", method, url, resp.StatusCode, wantStatus, bodySnippet(raw))
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("parsing response from %s: %w", url, err)
		}
	}
	return nil
}

func animesURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/animes"
}
