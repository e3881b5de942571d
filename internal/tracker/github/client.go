// Package github adapts the GitHub Issues REST API to the tracker
// boundary. It covers only the calls reconciliation needs.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tracklet/tracklet/internal/reconcile"
)

// ErrNoToken indicates the client has no API token. Every call fails with
// it; reconciliation surfaces it per item instead of crashing.
var ErrNoToken = errors.New("github: no api token configured")

const defaultBaseURL = "https://api.github.com"

// Client talks to one repository's issues.
type Client struct {
	baseURL string
	owner   string
	repo    string
	token   string
	httpc   *http.Client
}

// Option adjusts a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API host, mainly for tests
// and GitHub Enterprise.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) {
		c.httpc = httpc
	}
}

// NewClient builds a client for owner/repo authenticated by token.
func NewClient(owner, repo, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: defaultBaseURL,
		owner:   owner,
		repo:    repo,
		token:   token,
		httpc:   &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type issuePayload struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	State     string    `json:"state"`
	HTMLURL   string    `json:"html_url"`
	UpdatedAt time.Time `json:"updated_at"`
	Labels    []struct {
		Name string `json:"name"`
	} `json:"labels"`
}

func (p issuePayload) toIssue() reconcile.Issue {
	issue := reconcile.Issue{
		Number:    p.Number,
		Title:     p.Title,
		Body:      p.Body,
		State:     reconcile.IssueState(p.State),
		URL:       p.HTMLURL,
		UpdatedAt: p.UpdatedAt.UTC(),
	}
	for _, label := range p.Labels {
		issue.Labels = append(issue.Labels, label.Name)
	}
	return issue
}

// GetIssue fetches one issue. A missing issue returns nil, nil.
func (c *Client) GetIssue(ctx context.Context, number int) (*reconcile.Issue, error) {
	var payload issuePayload
	found, err := c.do(ctx, http.MethodGet, c.issuePath(number), nil, &payload)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	issue := payload.toIssue()
	return &issue, nil
}

// CreateIssue opens a new issue.
func (c *Client) CreateIssue(ctx context.Context, title, body string, labels []string) (*reconcile.Issue, error) {
	request := map[string]any{"title": title}
	if body != "" {
		request["body"] = body
	}
	if len(labels) > 0 {
		request["labels"] = labels
	}

	var payload issuePayload
	if _, err := c.do(ctx, http.MethodPost, c.repoPath("issues"), request, &payload); err != nil {
		return nil, err
	}
	issue := payload.toIssue()
	return &issue, nil
}

// UpdateIssueState opens or closes an issue.
func (c *Client) UpdateIssueState(ctx context.Context, number int, state reconcile.IssueState) error {
	_, err := c.do(ctx, http.MethodPatch, c.issuePath(number), map[string]any{"state": string(state)}, nil)
	return err
}

// AddComment posts a comment on an issue.
func (c *Client) AddComment(ctx context.Context, number int, body string) error {
	_, err := c.do(ctx, http.MethodPost, c.issuePath(number)+"/comments", map[string]any{"body": body}, nil)
	return err
}

// ListIssues fetches the repository's issues matching the filter.
func (c *Client) ListIssues(ctx context.Context, filter reconcile.IssueFilter) ([]reconcile.Issue, error) {
	query := url.Values{}
	if filter.State != "" {
		query.Set("state", string(filter.State))
	}
	if len(filter.Labels) > 0 {
		query.Set("labels", strings.Join(filter.Labels, ","))
	}
	if filter.Limit > 0 {
		query.Set("per_page", strconv.Itoa(filter.Limit))
	}

	path := c.repoPath("issues")
	if encoded := query.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var payloads []issuePayload
	if _, err := c.do(ctx, http.MethodGet, path, nil, &payloads); err != nil {
		return nil, err
	}

	issues := make([]reconcile.Issue, 0, len(payloads))
	for _, payload := range payloads {
		issues = append(issues, payload.toIssue())
	}
	return issues, nil
}

func (c *Client) repoPath(suffix string) string {
	return fmt.Sprintf("/repos/%s/%s/%s", c.owner, c.repo, suffix)
}

func (c *Client) issuePath(number int) string {
	return c.repoPath("issues/" + strconv.Itoa(number))
}

// do runs one API call. It returns found=false for a 404, which GetIssue
// maps to absence.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) (bool, error) {
	if c.token == "" {
		return false, ErrNoToken
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return false, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return false, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(message)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("decode response: %w", err)
		}
	}
	return true, nil
}

var _ reconcile.Tracker = (*Client)(nil)
