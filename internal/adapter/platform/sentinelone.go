package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kawalsec/s1relay/internal/core/domain"
)

const (
	agentsPath = "/web/api/v2.1/agents"
	alertsPath = "/web/api/v2.1/cloud-detection/alerts"
)

// Error kinds callers can test with errors.Is.
var (
	ErrAuthentication = errors.New("sentinelone: authentication failed")
	ErrConnection     = errors.New("sentinelone: connection failed")
	ErrBadPayload     = errors.New("sentinelone: malformed payload")
)

// Client wraps the SentinelOne management REST API. No retries here;
// the caller decides how to handle a failed tick.
type Client struct {
	baseURL  string
	apiToken string
	client   *http.Client
}

func NewClient(baseURL, apiToken string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:  trimSlash(baseURL),
		apiToken: apiToken,
		client:   client,
	}
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

type pagination struct {
	TotalItems int    `json:"totalItems"`
	NextCursor string `json:"nextCursor"`
}

type listResponse struct {
	Data       []json.RawMessage `json:"data"`
	Pagination pagination        `json:"pagination"`
}

// TestConnection verifies credentials by listing agents and returns the
// tenant's total agent count.
func (c *Client) TestConnection(ctx context.Context) (int, error) {
	var resp listResponse
	if err := c.get(ctx, agentsPath, url.Values{"limit": {"1"}}, &resp); err != nil {
		return 0, err
	}
	return resp.Pagination.TotalItems, nil
}

// FetchAlerts returns cloud-detection alerts created after since, oldest
// first. Follows the pagination cursor until the page comes back empty.
func (c *Client) FetchAlerts(ctx context.Context, since time.Time, limit int) ([]domain.Event, error) {
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{
		"limit":     {strconv.Itoa(limit)},
		"sortBy":    {"createdAt"},
		"sortOrder": {"asc"},
	}
	if !since.IsZero() {
		params.Set("createdAt__gt", since.UTC().Format(time.RFC3339))
	}

	var events []domain.Event
	cursor := ""
	for {
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		var resp listResponse
		if err := c.get(ctx, alertsPath, params, &resp); err != nil {
			return events, err
		}
		if len(resp.Data) == 0 {
			break
		}

		for _, raw := range resp.Data {
			ev := domain.ParseAlert(raw)
			ev.Source = domain.SourcePolling
			events = append(events, ev)
		}

		cursor = resp.Pagination.NextCursor
		if cursor == "" {
			break
		}
	}

	return events, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "ApiToken "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrAuthentication, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: unexpected status %d", ErrConnection, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return nil
}
