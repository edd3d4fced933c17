package canvas

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jmartynas/canvas-auth/internal/errs"
)

// Paths of the Canvas REST API consumed by the authenticator,
// relative to the installation base URL.
const (
	profilePath = "api/v1/users/self/profile"
	coursesPath = "api/v1/courses"
	groupsPath  = "api/v1/users/self/groups"
)

// APIError is returned when Canvas answers with a non-2xx status.
// It unwraps to errs.ErrAuthenticationFailed so callers can treat
// every upstream failure as a login failure without losing the status.
type APIError struct {
	Endpoint string
	Status   int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("canvas: GET %s returned status %d", e.Endpoint, e.Status)
}

func (e *APIError) Unwrap() error {
	return errs.ErrAuthenticationFailed
}

// Client issues bearer-token authenticated, read-only requests against
// a single Canvas installation. It does not retry and does not cache.
type Client struct {
	baseURL string
	http    *http.Client
	log     logrus.FieldLogger
}

// NewClient creates a client for the Canvas installation at baseURL.
// baseURL must have a trailing slash.
func NewClient(baseURL string, httpClient *http.Client, log logrus.FieldLogger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		log:     log,
	}
}

// Profile fetches the current user's profile.
func (c *Client) Profile(ctx context.Context, token string) (Profile, error) {
	var p Profile
	if _, err := c.getJSON(ctx, token, c.baseURL+profilePath, profilePath, &p); err != nil {
		return nil, err
	}
	return p, nil
}

// Courses fetches all active courses of the current user, following
// pagination until exhausted.
func (c *Client) Courses(ctx context.Context, token string) ([]Course, error) {
	items, err := c.collect(ctx, token, c.baseURL+coursesPath, coursesPath)
	if err != nil {
		return nil, err
	}
	courses := make([]Course, 0, len(items))
	for _, raw := range items {
		var course Course
		if err := json.Unmarshal(raw, &course); err != nil {
			return nil, fmt.Errorf("decode course: %w", err)
		}
		courses = append(courses, course)
	}
	return courses, nil
}

// SelfGroups fetches all groups the current user is a member of,
// following pagination until exhausted.
func (c *Client) SelfGroups(ctx context.Context, token string) ([]Group, error) {
	items, err := c.collect(ctx, token, c.baseURL+groupsPath, groupsPath)
	if err != nil {
		return nil, err
	}
	groups := make([]Group, 0, len(items))
	for _, raw := range items {
		var group Group
		if err := json.Unmarshal(raw, &group); err != nil {
			return nil, fmt.Errorf("decode group: %w", err)
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// collect accumulates items from a paginated list endpoint by
// following the Link header rel="next" chain.
// https://canvas.instructure.com/doc/api/file.pagination.html
func (c *Client) collect(ctx context.Context, token, url, endpoint string) ([]json.RawMessage, error) {
	var items []json.RawMessage
	for url != "" {
		var page []json.RawMessage
		next, err := c.getJSON(ctx, token, url, endpoint, &page)
		if err != nil {
			return nil, err
		}
		items = append(items, page...)
		url = next
	}
	return items, nil
}

func (c *Client) getJSON(ctx context.Context, token, url, endpoint string, out any) (next string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("canvas request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("canvas request %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.WithField("endpoint", endpoint).
				WithField("status", resp.StatusCode).
				Warn("canvas API request failed")
		}
		return "", &APIError{Endpoint: endpoint, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return "", fmt.Errorf("decode canvas response %s: %w", endpoint, err)
	}
	return nextLink(resp.Header.Get("Link")), nil
}

// nextLink extracts the rel="next" URL from an RFC 5988 Link header.
// Returns "" when there is no next page.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		var url, rel string
		for _, seg := range strings.Split(part, ";") {
			seg = strings.TrimSpace(seg)
			if strings.HasPrefix(seg, "<") && strings.HasSuffix(seg, ">") {
				url = seg[1 : len(seg)-1]
			} else if strings.HasPrefix(seg, "rel=") {
				rel = strings.Trim(strings.TrimPrefix(seg, "rel="), `"`)
			}
		}
		if rel == "next" {
			return url
		}
	}
	return ""
}
