// Package claudeai reads subscription usage windows from claude.ai so a
// session can line up with the account's five-hour limit window.
package claudeai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	defaultBaseURL = "https://claude.ai/api"
	requestTimeout = 10 * time.Second
	maxBodySize    = 1 << 20 // 1 MB
	keyPrefix      = "sk-ant-sid"
	userAgent      = "burnclock/1.0"
)

var (
	// ErrUnauthorized indicates the session key is expired or invalid.
	ErrUnauthorized = errors.New("claudeai: unauthorized (session key expired or invalid)")
	// ErrRateLimited indicates the API rate limit was hit.
	ErrRateLimited = errors.New("claudeai: rate limited")
	// ErrNoOrganization is returned when the account has no usable organization.
	ErrNoOrganization = errors.New("claudeai: no organizations found")
	// ErrInvalidKey is returned by NewClient for empty or malformed keys.
	ErrInvalidKey = errors.New("claudeai: session key must start with " + keyPrefix)
)

// Client fetches subscription data from the claude.ai web API.
type Client struct {
	sessionKey string
	baseURL    string
	http       *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API root.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// ValidateKey reports whether key looks like a claude.ai session key.
func ValidateKey(key string) error {
	if !strings.HasPrefix(strings.TrimSpace(key), keyPrefix) {
		return ErrInvalidKey
	}
	return nil
}

// NewClient creates a client for the given session key.
func NewClient(sessionKey string, opts ...Option) (*Client, error) {
	sessionKey = strings.TrimSpace(sessionKey)
	if err := ValidateKey(sessionKey); err != nil {
		return nil, err
	}
	c := &Client{
		sessionKey: sessionKey,
		baseURL:    defaultBaseURL,
		http:       &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchAll fetches the organization, its usage windows and overage limit.
// orgID selects the organization; empty picks the first one. Partial data is
// returned even if some requests fail.
func (c *Client) FetchAll(ctx context.Context, orgID string) *SubscriptionData {
	result := &SubscriptionData{FetchedAt: time.Now()}

	orgs, err := c.FetchOrganizations(ctx)
	if err != nil {
		result.Error = err
		return result
	}
	org, ok := pickOrg(orgs, orgID)
	if !ok {
		result.Error = ErrNoOrganization
		return result
	}
	result.Org = org

	usage, usageErr := c.FetchUsage(ctx, org.UUID)
	if usageErr == nil {
		result.Usage = usage
	}

	overage, overageErr := c.FetchOverageLimit(ctx, org.UUID)
	if overageErr == nil {
		result.Overage = overage
	}

	// Surface the first error for status display.
	if usageErr != nil {
		result.Error = usageErr
	} else if overageErr != nil {
		result.Error = overageErr
	}

	return result
}

func pickOrg(orgs []Organization, orgID string) (Organization, bool) {
	for _, o := range orgs {
		if orgID == "" || o.UUID == orgID {
			return o, true
		}
	}
	return Organization{}, false
}

// FetchOrganizations returns the list of organizations for this session.
func (c *Client) FetchOrganizations(ctx context.Context) ([]Organization, error) {
	body, err := c.get(ctx, "/organizations")
	if err != nil {
		return nil, err
	}

	var orgs []Organization
	if err := json.Unmarshal(body, &orgs); err != nil {
		return nil, fmt.Errorf("claudeai: parsing organizations: %w", err)
	}
	return orgs, nil
}

// FetchUsage returns parsed usage windows for the given organization.
func (c *Client) FetchUsage(ctx context.Context, orgID string) (*ParsedUsage, error) {
	body, err := c.get(ctx, fmt.Sprintf("/organizations/%s/usage", orgID))
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.New("claudeai: parsing usage: invalid JSON")
	}

	doc := gjson.ParseBytes(body)
	return &ParsedUsage{
		FiveHour:       parseWindow(doc.Get("five_hour")),
		SevenDay:       parseWindow(doc.Get("seven_day")),
		SevenDayOpus:   parseWindow(doc.Get("seven_day_opus")),
		SevenDaySonnet: parseWindow(doc.Get("seven_day_sonnet")),
	}, nil
}

// FetchOverageLimit returns overage spend limit data for the given organization.
func (c *Client) FetchOverageLimit(ctx context.Context, orgID string) (*OverageLimit, error) {
	body, err := c.get(ctx, fmt.Sprintf("/organizations/%s/overage_spend_limit", orgID))
	if err != nil {
		return nil, err
	}

	var ol OverageLimit
	if err := json.Unmarshal(body, &ol); err != nil {
		return nil, fmt.Errorf("claudeai: parsing overage limit: %w", err)
	}
	return &ol, nil
}

// get performs an authenticated GET request and returns the response body.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("claudeai: creating request: %w", err)
	}

	req.Header.Set("Cookie", "sessionKey="+c.sessionKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("claudeai: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrUnauthorized
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("claudeai: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("claudeai: reading response: %w", err)
	}
	return body, nil
}

// parseWindow converts a raw usage window into a ParsedWindow. It returns nil
// when the window is absent or its utilization is unreadable.
func parseWindow(w gjson.Result) *ParsedWindow {
	if !w.IsObject() {
		return nil
	}

	pct, ok := parseUtilization(w.Get("utilization"))
	if !ok {
		return nil
	}

	pw := &ParsedWindow{Pct: pct}
	if s := w.Get("resets_at").String(); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			pw.ResetsAt = t
		}
	}
	return pw
}

// parseUtilization accepts a number (75, 0.75, 75.0) or a string ("75%",
// "0.75") and returns a 0-1 fraction.
func parseUtilization(v gjson.Result) (float64, bool) {
	switch v.Type {
	case gjson.Number:
		return normalizeUtilization(v.Float()), true
	case gjson.String:
		s := strings.TrimSuffix(strings.TrimSpace(v.Str), "%")
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return normalizeUtilization(f), true
		}
	}
	return 0, false
}

// normalizeUtilization converts a value to 0.0-1.0 range.
// Values > 1.0 are assumed to be percentages (0-100 scale).
func normalizeUtilization(v float64) float64 {
	if v > 1.0 {
		return v / 100.0
	}
	return v
}
