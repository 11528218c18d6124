package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/astrelkov/kadsync/internal/db"
)

// ErrNotFound is returned when a case or chronology record does not exist.
var ErrNotFound = errors.New("store: not found")

// Case links an arbitration case number to its CRM project.
type Case struct {
	ID         int64
	CaseNumber string
	ProjectID  sql.NullInt64
	IsActive   bool
}

// Chronology is the latest known public docket event for a case plus the
// next-hearing details and the calendar idempotency markers.
type Chronology struct {
	ID           int64
	CaseNumber   string
	EventDate    string
	EventTitle   string
	EventAuthor  string
	EventPublish string
	EventsCount  int64
	DocLink      string
	HearingDate  string
	HearingTime  string
	HearingRoom  string
	// HearingCreatedAt and HearingEventID are set together once per distinct
	// hearing tuple and cleared whenever that tuple changes.
	HearingCreatedAt sql.NullString
	HearingEventID   sql.NullString
}

// Store is the exclusive owner of cases and chronology persistence.
type Store struct {
	db db.DBTX
}

func New(querier db.DBTX) *Store {
	return &Store{db: querier}
}

const listCasesQuery = `-- name: ListCases :many
SELECT id, case_number, project_id, is_active FROM cases ORDER BY id`

// ListCases returns every known case, active or not.
func (s *Store) ListCases(ctx context.Context) ([]Case, error) {
	return s.queryCases(ctx, listCasesQuery)
}

const listActiveCasesQuery = `-- name: ListActiveCases :many
SELECT id, case_number, project_id, is_active FROM cases WHERE is_active = 1 ORDER BY id`

// ListActiveCases returns active cases in stable insertion order. The batch
// runner indexes checkpoints against this ordering.
func (s *Store) ListActiveCases(ctx context.Context) ([]Case, error) {
	return s.queryCases(ctx, listActiveCasesQuery)
}

func (s *Store) queryCases(ctx context.Context, query string) ([]Case, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	var cases []Case
	for rows.Next() {
		var c Case
		var active int64
		if err := rows.Scan(&c.ID, &c.CaseNumber, &c.ProjectID, &active); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		c.IsActive = active != 0
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

const getCaseByNumberQuery = `-- name: GetCaseByNumber :one
SELECT id, case_number, project_id, is_active FROM cases WHERE case_number = ?`

func (s *Store) GetCaseByNumber(ctx context.Context, caseNumber string) (Case, error) {
	var c Case
	var active int64
	err := s.db.QueryRowContext(ctx, getCaseByNumberQuery, caseNumber).
		Scan(&c.ID, &c.CaseNumber, &c.ProjectID, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return Case{}, ErrNotFound
	}
	if err != nil {
		return Case{}, fmt.Errorf("get case %s: %w", caseNumber, err)
	}
	c.IsActive = active != 0
	return c, nil
}

const insertCaseQuery = `-- name: InsertCase :exec
INSERT INTO cases (case_number, project_id, is_active) VALUES (?, ?, 1)`

// InsertCase adds a new active case bound to the given CRM project.
func (s *Store) InsertCase(ctx context.Context, caseNumber string, projectID int64) error {
	if _, err := s.db.ExecContext(ctx, insertCaseQuery, caseNumber, projectID); err != nil {
		return fmt.Errorf("insert case %s: %w", caseNumber, err)
	}
	return nil
}

const updateCaseProjectQuery = `-- name: UpdateCaseProject :exec
UPDATE cases SET project_id = ? WHERE case_number = ?`

// UpdateCaseProject rebinds a case to a different CRM project.
func (s *Store) UpdateCaseProject(ctx context.Context, caseNumber string, projectID int64) error {
	if _, err := s.db.ExecContext(ctx, updateCaseProjectQuery, projectID, caseNumber); err != nil {
		return fmt.Errorf("rebind case %s: %w", caseNumber, err)
	}
	return nil
}

const setCaseActiveQuery = `-- name: SetCaseActive :exec
UPDATE cases SET is_active = ? WHERE case_number = ?`

// SetCaseActive flips the soft-delete flag. Inactive cases keep their
// project binding and chronology for audit.
func (s *Store) SetCaseActive(ctx context.Context, caseNumber string, active bool) error {
	value := int64(0)
	if active {
		value = 1
	}
	if _, err := s.db.ExecContext(ctx, setCaseActiveQuery, value, caseNumber); err != nil {
		return fmt.Errorf("set case %s active=%v: %w", caseNumber, active, err)
	}
	return nil
}

const projectIDForCaseQuery = `-- name: ProjectIDForCase :one
SELECT project_id FROM cases WHERE case_number = ? AND is_active = 1`

// ProjectIDForCase resolves the CRM project for an active case.
func (s *Store) ProjectIDForCase(ctx context.Context, caseNumber string) (int64, error) {
	var projectID sql.NullInt64
	err := s.db.QueryRowContext(ctx, projectIDForCaseQuery, caseNumber).Scan(&projectID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("project id for case %s: %w", caseNumber, err)
	}
	if !projectID.Valid {
		return 0, ErrNotFound
	}
	return projectID.Int64, nil
}

const latestChronologyQuery = `-- name: LatestChronology :one
SELECT id, case_number, event_date, event_title, event_author, event_publish,
       events_count, doc_link, hearing_date, hearing_time, hearing_room,
       hearing_created_at, hearing_event_id
FROM chronology WHERE case_number = ? ORDER BY id DESC LIMIT 1`

// LatestChronology returns the current chronology record for a case.
func (s *Store) LatestChronology(ctx context.Context, caseNumber string) (Chronology, error) {
	var rec Chronology
	err := s.db.QueryRowContext(ctx, latestChronologyQuery, caseNumber).Scan(
		&rec.ID, &rec.CaseNumber, &rec.EventDate, &rec.EventTitle, &rec.EventAuthor,
		&rec.EventPublish, &rec.EventsCount, &rec.DocLink, &rec.HearingDate,
		&rec.HearingTime, &rec.HearingRoom, &rec.HearingCreatedAt, &rec.HearingEventID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Chronology{}, ErrNotFound
	}
	if err != nil {
		return Chronology{}, fmt.Errorf("latest chronology for %s: %w", caseNumber, err)
	}
	return rec, nil
}

const insertChronologyQuery = `-- name: InsertChronology :one
INSERT INTO chronology (case_number, event_date, event_title, event_author,
    event_publish, events_count, doc_link, hearing_date, hearing_time,
    hearing_room, hearing_created_at, hearing_event_id)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL)
RETURNING id`

// InsertChronology creates the first chronology record for a case. The
// calendar markers start unset so a hearing produces a fresh event.
func (s *Store) InsertChronology(ctx context.Context, rec Chronology) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, insertChronologyQuery,
		rec.CaseNumber, rec.EventDate, rec.EventTitle, rec.EventAuthor,
		rec.EventPublish, rec.EventsCount, rec.DocLink, rec.HearingDate,
		rec.HearingTime, rec.HearingRoom,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert chronology for %s: %w", rec.CaseNumber, err)
	}
	return id, nil
}

const updateChronologyQuery = `-- name: UpdateChronology :exec
UPDATE chronology SET event_date = ?, event_title = ?, event_author = ?,
    event_publish = ?, events_count = ?, doc_link = ?, hearing_date = ?,
    hearing_time = ?, hearing_room = ?, hearing_created_at = ?, hearing_event_id = ?
WHERE id = ?`

// UpdateChronology overwrites the stored record with freshly scraped fields
// together with the (possibly cleared) calendar markers, in one statement so
// an interruption never leaves the two halves split.
func (s *Store) UpdateChronology(ctx context.Context, rec Chronology) error {
	_, err := s.db.ExecContext(ctx, updateChronologyQuery,
		rec.EventDate, rec.EventTitle, rec.EventAuthor, rec.EventPublish,
		rec.EventsCount, rec.DocLink, rec.HearingDate, rec.HearingTime,
		rec.HearingRoom, rec.HearingCreatedAt, rec.HearingEventID, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("update chronology %d: %w", rec.ID, err)
	}
	return nil
}

const markHearingScheduledQuery = `-- name: MarkHearingScheduled :exec
UPDATE chronology SET hearing_created_at = ?, hearing_event_id = ? WHERE id = ?`

// MarkHearingScheduled stores the calendar idempotency markers after a
// calendar event was created for the record's hearing tuple.
func (s *Store) MarkHearingScheduled(ctx context.Context, id int64, createdAt, eventID string) error {
	_, err := s.db.ExecContext(ctx, markHearingScheduledQuery,
		sql.NullString{String: createdAt, Valid: createdAt != ""},
		sql.NullString{String: eventID, Valid: eventID != ""},
		id,
	)
	if err != nil {
		return fmt.Errorf("mark hearing scheduled %d: %w", id, err)
	}
	return nil
}
