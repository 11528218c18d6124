package crm

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolveCalendarPrefersConfiguredID(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no API call expected when the calendar id is configured")
	}))

	scheduler := NewScheduler(client, 77, discardLogger())
	id, err := scheduler.ResolveCalendar(context.Background())
	if err != nil {
		t.Fatalf("resolve calendar: %v", err)
	}
	if id != 77 {
		t.Fatalf("expected configured id 77, got %d", id)
	}
}

func TestResolveCalendarFindsByName(t *testing.T) {
	t.Parallel()

	listCalls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		listCalls++
		_, _ = io.WriteString(w, `{"response":{"items":[{"id":3,"name":"Отпуска"},{"id":9,"name":"Зудебные заседания"}]}}`)
	}))

	scheduler := NewScheduler(client, 0, discardLogger())
	id, err := scheduler.ResolveCalendar(context.Background())
	if err != nil {
		t.Fatalf("resolve calendar: %v", err)
	}
	if id != 9 {
		t.Fatalf("legacy calendar name should match, got id %d", id)
	}

	// Second resolution hits the cache, not the API.
	if _, err := scheduler.ResolveCalendar(context.Background()); err != nil {
		t.Fatalf("cached resolve: %v", err)
	}
	if listCalls != 1 {
		t.Fatalf("expected a single list call, got %d", listCalls)
	}

	scheduler.Reset()
	if _, err := scheduler.ResolveCalendar(context.Background()); err != nil {
		t.Fatalf("resolve after reset: %v", err)
	}
	if listCalls != 2 {
		t.Fatalf("reset should force re-resolution, got %d list calls", listCalls)
	}
}

func TestResolveCalendarCreatesWhenMissing(t *testing.T) {
	t.Parallel()

	var createdName string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/module/calendar/calendar/list":
			_, _ = io.WriteString(w, `{"response":{"items":[{"id":3,"name":"Отпуска"}]}}`)
		case "/module/calendar/calendar/create":
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			createdName = r.PostFormValue("name")
			_, _ = io.WriteString(w, `{"response":{"id":15}}`)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))

	scheduler := NewScheduler(client, 0, discardLogger())
	id, err := scheduler.ResolveCalendar(context.Background())
	if err != nil {
		t.Fatalf("resolve calendar: %v", err)
	}
	if id != 15 {
		t.Fatalf("expected created calendar id 15, got %d", id)
	}
	if createdName != hearingsCalendarName {
		t.Fatalf("created calendar with name %q", createdName)
	}
}

func TestCreateHearingEvent(t *testing.T) {
	t.Parallel()

	var eventForm map[string][]string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/module/task/tasks/create":
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			eventForm = r.PostForm
			_, _ = io.WriteString(w, `{"response":{"id":"evt-1"}}`)
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))

	scheduler := NewScheduler(client, 8, discardLogger())
	start := time.Date(2025, 10, 10, 10, 0, 0, 0, time.Local)

	eventID, err := scheduler.CreateHearingEvent(context.Background(), 42, "А32-1/2024", start, "316")
	if err != nil {
		t.Fatalf("create hearing event: %v", err)
	}
	if eventID != "evt-1" {
		t.Fatalf("unexpected event id %q", eventID)
	}

	if got := formValue(eventForm, "plan_end_date"); got != "2025-10-10 11:00:00" {
		t.Fatalf("event should default to one hour, end = %q", got)
	}
	if got := formValue(eventForm, "model_id"); got != "42" {
		t.Fatalf("event not bound to project: model_id = %q", got)
	}
}
