package github

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tracklet/tracklet/internal/reconcile"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient("tracklet", "tracklet", "test-token", WithBaseURL(server.URL), WithHTTPClient(server.Client()))
}

func TestGetIssue(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/repos/tracklet/tracklet/issues/7" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("authorization header = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"number":     7,
			"title":      "Wire the parser",
			"state":      "closed",
			"html_url":   "https://example.test/issues/7",
			"updated_at": "2026-03-04T12:00:00Z",
			"labels":     []map[string]string{{"name": "bug"}},
		})
	})

	issue, err := client.GetIssue(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if issue == nil || issue.Number != 7 || issue.State != reconcile.IssueClosed {
		t.Fatalf("issue = %+v", issue)
	}
	if len(issue.Labels) != 1 || issue.Labels[0] != "bug" {
		t.Fatalf("labels = %v", issue.Labels)
	}
	if issue.UpdatedAt.IsZero() {
		t.Fatal("updated_at not decoded")
	}
}

func TestGetIssueMissing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	issue, err := client.GetIssue(context.Background(), 404)
	if err != nil {
		t.Fatalf("GetIssue() error = %v", err)
	}
	if issue != nil {
		t.Fatalf("missing issue = %+v, want nil", issue)
	}
}

func TestCreateIssue(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/repos/tracklet/tracklet/issues" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body["title"] != "New issue" {
			t.Errorf("request body = %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"number": 101, "title": "New issue", "state": "open"})
	})

	issue, err := client.CreateIssue(context.Background(), "New issue", "details", []string{"task"})
	if err != nil {
		t.Fatalf("CreateIssue() error = %v", err)
	}
	if issue.Number != 101 || issue.State != reconcile.IssueOpen {
		t.Fatalf("created issue = %+v", issue)
	}
}

func TestUpdateIssueState(t *testing.T) {
	var gotState string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/repos/tracklet/tracklet/issues/7" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotState = body["state"]
		_ = json.NewEncoder(w).Encode(map[string]any{"number": 7})
	})

	if err := client.UpdateIssueState(context.Background(), 7, reconcile.IssueClosed); err != nil {
		t.Fatalf("UpdateIssueState() error = %v", err)
	}
	if gotState != "closed" {
		t.Fatalf("sent state = %q, want closed", gotState)
	}
}

func TestListIssuesFilter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		if query.Get("state") != "open" || query.Get("labels") != "bug,urgent" || query.Get("per_page") != "10" {
			t.Errorf("query = %v", query)
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"number": 1, "state": "open"},
			{"number": 2, "state": "open"},
		})
	})

	issues, err := client.ListIssues(context.Background(), reconcile.IssueFilter{
		State:  reconcile.IssueOpen,
		Labels: []string{"bug", "urgent"},
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("ListIssues() error = %v", err)
	}
	if len(issues) != 2 {
		t.Fatalf("ListIssues() returned %d issues, want 2", len(issues))
	}
}

func TestUnauthenticatedCallsFailTyped(t *testing.T) {
	client := NewClient("tracklet", "tracklet", "")

	if _, err := client.GetIssue(context.Background(), 7); !errors.Is(err, ErrNoToken) {
		t.Fatalf("GetIssue() error = %v, want ErrNoToken", err)
	}
	if err := client.AddComment(context.Background(), 7, "hi"); !errors.Is(err, ErrNoToken) {
		t.Fatalf("AddComment() error = %v, want ErrNoToken", err)
	}
}

func TestAPIErrorSurfacesStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"rate limited"}`))
	})

	if _, err := client.GetIssue(context.Background(), 7); err == nil {
		t.Fatal("GetIssue() swallowed a 403")
	}
}
