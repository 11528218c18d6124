package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/astrelkov/kadsync/internal/db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "store-test"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })

	return New(database.Querier())
}

func TestCaseLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	if err := store.InsertCase(ctx, "А32-1/2024", 42); err != nil {
		t.Fatalf("insert case: %v", err)
	}

	c, err := store.GetCaseByNumber(ctx, "А32-1/2024")
	if err != nil {
		t.Fatalf("get case: %v", err)
	}
	if !c.IsActive || !c.ProjectID.Valid || c.ProjectID.Int64 != 42 {
		t.Fatalf("unexpected case: %+v", c)
	}

	projectID, err := store.ProjectIDForCase(ctx, "А32-1/2024")
	if err != nil || projectID != 42 {
		t.Fatalf("project id lookup: got %d, %v", projectID, err)
	}

	if err := store.SetCaseActive(ctx, "А32-1/2024", false); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	if _, err := store.ProjectIDForCase(ctx, "А32-1/2024"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("inactive case should not resolve a project id, got %v", err)
	}

	active, err := store.ListActiveCases(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active cases, got %d", len(active))
	}

	all, err := store.ListCases(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 1 || all[0].IsActive {
		t.Fatalf("soft-deleted case should remain listed: %+v", all)
	}
}

func TestChronologyRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	if err := store.InsertCase(ctx, "А40-100/2023", 7); err != nil {
		t.Fatalf("insert case: %v", err)
	}

	if _, err := store.LatestChronology(ctx, "А40-100/2023"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing chronology, got %v", err)
	}

	id, err := store.InsertChronology(ctx, Chronology{
		CaseNumber:   "А40-100/2023",
		EventDate:    "01.06.2024",
		EventTitle:   "Определение",
		EventAuthor:  "АС города Москвы",
		EventPublish: "02.06.2024",
		EventsCount:  12,
		DocLink:      "https://kad.arbitr.ru/Document/Pdf/1",
		HearingDate:  "10.10.2025",
		HearingTime:  "10:00",
		HearingRoom:  "316",
	})
	if err != nil {
		t.Fatalf("insert chronology: %v", err)
	}
	if id == 0 {
		t.Fatal("expected non-zero chronology id")
	}

	rec, err := store.LatestChronology(ctx, "А40-100/2023")
	if err != nil {
		t.Fatalf("latest chronology: %v", err)
	}
	if rec.HearingCreatedAt.Valid || rec.HearingEventID.Valid {
		t.Fatalf("calendar markers must start unset: %+v", rec)
	}

	if err := store.MarkHearingScheduled(ctx, rec.ID, "2025-09-01 12:00:00", "event-55"); err != nil {
		t.Fatalf("mark hearing scheduled: %v", err)
	}

	rec, err = store.LatestChronology(ctx, "А40-100/2023")
	if err != nil {
		t.Fatalf("latest chronology after mark: %v", err)
	}
	if !rec.HearingCreatedAt.Valid || rec.HearingEventID.String != "event-55" {
		t.Fatalf("markers not persisted: %+v", rec)
	}

	// A changed hearing tuple overwrites the record and clears the markers
	// in the same statement.
	rec.HearingDate = "11.10.2025"
	rec.HearingCreatedAt.Valid = false
	rec.HearingEventID.Valid = false
	if err := store.UpdateChronology(ctx, rec); err != nil {
		t.Fatalf("update chronology: %v", err)
	}

	rec, err = store.LatestChronology(ctx, "А40-100/2023")
	if err != nil {
		t.Fatalf("latest chronology after update: %v", err)
	}
	if rec.HearingDate != "11.10.2025" || rec.HearingCreatedAt.Valid || rec.HearingEventID.Valid {
		t.Fatalf("hearing change should clear markers: %+v", rec)
	}
}

func TestActiveProjectIDUniqueness(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newTestStore(t)

	if err := store.InsertCase(ctx, "А32-1/2024", 42); err != nil {
		t.Fatalf("insert first case: %v", err)
	}
	if err := store.InsertCase(ctx, "А32-2/2024", 42); err == nil {
		t.Fatal("second active case on the same project id must be rejected")
	}

	// After a soft delete the project id becomes free again.
	if err := store.SetCaseActive(ctx, "А32-1/2024", false); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if err := store.InsertCase(ctx, "А32-2/2024", 42); err != nil {
		t.Fatalf("insert after soft delete: %v", err)
	}
}
