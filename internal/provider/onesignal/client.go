package onesignal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the public OneSignal REST endpoint.
const DefaultBaseURL = "https://onesignal.com/api/v1"

// HTTPDoer is the subset of *http.Client the REST client needs, split out
// so tests can intercept requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// deviceType values per the OneSignal device registration API.
const (
	deviceTypeIOS       = 0
	deviceTypeAndroid   = 1
	deviceTypeChromeWeb = 5
)

// restClient wraps the handful of OneSignal player endpoints the provider
// uses. The REST key is attached only on endpoints that require it.
type restClient struct {
	http    HTTPDoer
	baseURL string
	appID   string
	apiKey  string
}

func newRestClient(doer HTTPDoer, baseURL, appID, apiKey string) *restClient {
	if doer == nil {
		doer = &http.Client{Timeout: 15 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &restClient{
		http:    doer,
		baseURL: strings.TrimRight(baseURL, "/"),
		appID:   appID,
		apiKey:  apiKey,
	}
}

type playerRecord struct {
	ID         string            `json:"id"`
	Identifier string            `json:"identifier,omitempty"`
	Tags       map[string]string `json:"tags,omitempty"`
}

// registerPlayer creates a device record and returns its player id.
func (c *restClient) registerPlayer(ctx context.Context, deviceType int, identifier string) (string, error) {
	body := map[string]any{
		"app_id":      c.appID,
		"device_type": deviceType,
	}
	if identifier != "" {
		body["identifier"] = identifier
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.call(ctx, http.MethodPost, "/players", body, &resp, false); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", fmt.Errorf("registration response carried no player id")
	}
	return resp.ID, nil
}

// updateTags merges the given tags into the player record. An empty tag
// value removes the tag on the backend.
func (c *restClient) updateTags(ctx context.Context, playerID string, tags map[string]string) error {
	body := map[string]any{
		"app_id": c.appID,
		"tags":   tags,
	}
	return c.call(ctx, http.MethodPut, "/players/"+playerID, body, nil, false)
}

// getPlayer fetches the player record. Requires the REST key.
func (c *restClient) getPlayer(ctx context.Context, playerID string) (*playerRecord, error) {
	var rec playerRecord
	path := fmt.Sprintf("/players/%s?app_id=%s", playerID, c.appID)
	if err := c.call(ctx, http.MethodGet, path, nil, &rec, true); err != nil {
		return nil, err
	}
	return &rec, nil
}

// deletePlayer removes the device record. Requires the REST key.
func (c *restClient) deletePlayer(ctx context.Context, playerID string) error {
	path := fmt.Sprintf("/players/%s?app_id=%s", playerID, c.appID)
	return c.call(ctx, http.MethodDelete, path, nil, nil, true)
}

func (c *restClient) call(ctx context.Context, method, path string, body any, out any, authed bool) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		if c.apiKey == "" {
			return fmt.Errorf("operation requires the REST api key")
		}
		req.Header.Set("Authorization", "Basic "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("onesignal returned status %d for %s %s: %s",
			resp.StatusCode, method, path, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
