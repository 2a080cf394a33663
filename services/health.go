package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shunt-cd/shunt/domain"
)

// maxHealthBodyBytes caps how much of a response body is read when probing.
const maxHealthBodyBytes = 64 * 1024

// HealthProbe describes one endpoint check. Zero-value fields are not
// checked, except ExpectStatus which defaults to 200.
type HealthProbe struct {
	Name         string
	URL          string
	ExpectStatus int
	BodyContains string
	JSONField    string
	JSONValue    string
}

// ProbeForService builds the health probe for a deployed service based on
// its role. The backend exposes a JSON health endpoint that reports its
// database connectivity; other services only need to respond with 200.
func ProbeForService(spec *domain.ServiceSpec, serviceName, baseURL string) HealthProbe {
	probe := HealthProbe{
		Name:         serviceName,
		URL:          strings.TrimRight(baseURL, "/") + spec.HealthPath,
		ExpectStatus: http.StatusOK,
	}
	if spec.Role == domain.RoleBackend {
		probe.JSONField = "database"
		probe.JSONValue = "connected"
	}
	return probe
}

// HTTPHealthChecker verifies service health over HTTP.
type HTTPHealthChecker struct {
	client     *http.Client
	poller     *Poller
	pollConfig PollConfig
}

func NewHealthChecker(config *Config) *HTTPHealthChecker {
	return &HTTPHealthChecker{
		client:     &http.Client{Timeout: config.HealthTimeout},
		poller:     NewPoller(),
		pollConfig: config.HealthPollConfig(),
	}
}

var _ HealthChecker = (*HTTPHealthChecker)(nil)

// CheckOnce performs a single probe. The returned error describes why the
// endpoint is not healthy; nil means healthy.
func (c *HTTPHealthChecker) CheckOnce(ctx context.Context, probe HealthProbe) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probe.URL, nil)
	if err != nil {
		return fmt.Errorf("building health request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", probe.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHealthBodyBytes))
	if err != nil {
		return fmt.Errorf("reading health response: %w", err)
	}

	expect := probe.ExpectStatus
	if expect == 0 {
		expect = http.StatusOK
	}
	if resp.StatusCode != expect {
		return fmt.Errorf("unexpected status %d (want %d): %s", resp.StatusCode, expect, bodySnippet(body))
	}

	if probe.BodyContains != "" && !strings.Contains(string(body), probe.BodyContains) {
		return fmt.Errorf("response missing %q: %s", probe.BodyContains, bodySnippet(body))
	}

	if probe.JSONField != "" {
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			return fmt.Errorf("parsing health response: %w: %s", err, bodySnippet(body))
		}
		value, ok := payload[probe.JSONField]
		if !ok {
			return fmt.Errorf("health response has no %q field: %s", probe.JSONField, bodySnippet(body))
		}
		if fmt.Sprint(value) != probe.JSONValue {
			return fmt.Errorf("health field %q is %q (want %q)", probe.JSONField, fmt.Sprint(value), probe.JSONValue)
		}
	}

	return nil
}

// WaitHealthy polls the probe until it passes or attempts are exhausted.
// Exhaustion is reported as an UnhealthyError carrying the last probe
// failure; context cancellation is passed through unchanged.
func (c *HTTPHealthChecker) WaitHealthy(ctx context.Context, probe HealthProbe) error {
	var lastErr error
	err := c.poller.Poll(ctx, c.pollConfig, func(ctx context.Context) (bool, error) {
		if checkErr := c.CheckOnce(ctx, probe); checkErr != nil {
			lastErr = checkErr
			slog.Debug("Health check attempt failed",
				"service", probe.Name,
				"url", probe.URL,
				"error", checkErr)
			return false, nil
		}
		return true, nil
	})
	if err == nil {
		slog.Debug("Health check passed",
			"service", probe.Name,
			"url", probe.URL)
		return nil
	}
	if errors.Is(err, ErrPollExhausted) {
		return &UnhealthyError{
			Name:     probe.Name,
			URL:      probe.URL,
			Attempts: c.pollConfig.MaxAttempts,
			LastErr:  lastErr,
		}
	}
	return err
}

func bodySnippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "<empty body>"
	}
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
