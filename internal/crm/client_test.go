package crm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient("test-key", "testco", WithBaseURL(server.URL), WithRetries(2))
}

func TestListProjectsPaginates(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"1": `{"response":{"items":[{"id":1,"name":"Дело А32-1/2024","is_archive":0},{"id":2,"name":"Дело А32-2/2024","is_archive":"1"}],"total":3}}`,
		"2": `{"response":{"items":[{"id":3,"name":"Дело А40-3/2023","is_archive":false}],"total":3}}`,
	}

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "test-key" {
			t.Errorf("missing api_key in query: %s", r.URL.RawQuery)
		}
		page := r.URL.Query().Get("page")
		body, ok := pages[page]
		if !ok {
			t.Errorf("unexpected page requested: %q", page)
			body = `{"response":{"items":[],"total":3}}`
		}
		_, _ = io.WriteString(w, body)
	}))

	projects, err := client.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("list projects: %v", err)
	}
	if len(projects) != 3 {
		t.Fatalf("expected 3 projects across pages, got %d", len(projects))
	}
	if projects[2].ID != 3 || projects[2].Name != "Дело А40-3/2023" {
		t.Fatalf("unexpected last project: %+v", projects[2])
	}
}

func TestCreateCommentSendsForm(t *testing.T) {
	t.Parallel()

	var gotPath, gotText string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotText = r.PostFormValue("text")
		_, _ = io.WriteString(w, `{"response":{"id":10}}`)
	}))

	if err := client.CreateComment(context.Background(), 42, "<p>тест</p>"); err != nil {
		t.Fatalf("create comment: %v", err)
	}
	if gotPath != "/module/st/projects/42/comments/create" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if gotText != "<p>тест</p>" {
		t.Fatalf("unexpected comment body: %q", gotText)
	}
}

func TestTransientFailuresAreRetried(t *testing.T) {
	t.Parallel()

	attempts := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `{"response":{"items":[]}}`)
	}))

	if _, err := client.ListCalendars(context.Background()); err != nil {
		t.Fatalf("list calendars should succeed after retry: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	t.Parallel()

	attempts := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusForbidden)
	}))

	if err := client.CreateComment(context.Background(), 1, "x"); err == nil {
		t.Fatal("expected error on 403")
	}
	if attempts != 1 {
		t.Fatalf("4xx must not be retried, got %d attempts", attempts)
	}
}

func TestCreateEventReturnsID(t *testing.T) {
	t.Parallel()

	var form map[string][]string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		form = r.PostForm
		_, _ = io.WriteString(w, `{"response":{"id":9001}}`)
	}))

	start := mustDate(t, "2025-10-10 10:00:00")
	eventID, err := client.CreateEvent(context.Background(), EventParams{
		Name:          "Судебное заседание по делу А32-1/2024",
		CalendarID:    5,
		PlanStartDate: start,
		PlanEndDate:   start.Add(hearingEventDuration),
		Color:         hearingEventColor,
		BusyStatus:    20,
		AccessType:    30,
		ProjectID:     42,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if eventID != "9001" {
		t.Fatalf("unexpected event id: %q", eventID)
	}

	checks := map[string]string{
		"plan_start_date":   "2025-10-10 10:00:00",
		"plan_end_date":     "2025-10-10 11:00:00",
		"event_calendar_id": "5",
		"module":            "st",
		"model":             "project",
		"model_id":          "42",
		"all_day":           "0",
		"type":              "20",
	}
	for key, want := range checks {
		if got := formValue(form, key); got != want {
			t.Errorf("form[%s] = %q, want %q", key, got, want)
		}
	}
}

func formValue(form map[string][]string, key string) string {
	values := form[key]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(apiTimeLayout, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return parsed
}
