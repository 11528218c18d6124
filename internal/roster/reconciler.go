// Package roster keeps the local case roster consistent with the CRM
// project list.
package roster

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/astrelkov/kadsync/internal/crm"
	"github.com/astrelkov/kadsync/internal/store"
)

// caseNumberRe matches arbitration case numbers inside project names, e.g.
// "А32-29491/2023". The leading letter may be Cyrillic or Latin.
var caseNumberRe = regexp.MustCompile(`[АA]\d{2,}-\d+/\d{4}`)

// ExtractCaseNumber pulls a case number out of a CRM project name.
// Projects whose names carry no case number are not tracked.
func ExtractCaseNumber(name string) (string, bool) {
	match := caseNumberRe.FindString(name)
	return match, match != ""
}

// ParseArchived normalizes the CRM's heterogeneous is_archive flag into a
// strict boolean. The API returns booleans, 0/1 numbers and several string
// spellings depending on the endpoint version. Unrecognized values yield an
// error; callers log it and treat the project as not archived.
func ParseArchived(raw json.RawMessage) (bool, error) {
	if len(raw) == 0 {
		return false, nil
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return false, fmt.Errorf("parse archived flag %q: %w", string(raw), err)
	}

	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y":
			return true, nil
		case "0", "false", "no", "n", "":
			return false, nil
		default:
			return false, fmt.Errorf("unrecognized archived flag %q", v)
		}
	default:
		return false, fmt.Errorf("unrecognized archived flag type %T", value)
	}
}

// Summary counts the mutations of one reconciliation pass.
type Summary struct {
	Added       int
	Updated     int
	Reactivated int
	SoftDeleted int
	Conflicts   int
}

// Reconciler reconciles the external project roster against the case store:
// add, rebind, reactivate, conflict-detect, soft-delete.
type Reconciler struct {
	store *store.Store
	log   *slog.Logger
}

func New(st *store.Store, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{store: st, log: log}
}

// Reconcile applies one roster pass. It is idempotent: a second run over the
// same project list performs no further mutations (only conflicts repeat).
// A project id may bind at most one active case; colliding bindings are
// counted, logged and skipped without touching the existing state.
func (r *Reconciler) Reconcile(ctx context.Context, projects []crm.Project) (Summary, error) {
	var summary Summary

	known, err := r.store.ListCases(ctx)
	if err != nil {
		return summary, fmt.Errorf("load known cases: %w", err)
	}

	byNumber := make(map[string]store.Case, len(known))
	occupied := make(map[int64]string) // active project id -> case number
	for _, c := range known {
		byNumber[c.CaseNumber] = c
		if c.IsActive && c.ProjectID.Valid {
			occupied[c.ProjectID.Int64] = c.CaseNumber
		}
	}

	seen := make(map[string]bool)

	for _, project := range projects {
		archived, err := ParseArchived(project.IsArchive)
		if err != nil {
			r.log.WarnContext(ctx, "unrecognized archived flag, treating project as active",
				"project_id", project.ID, "name", project.Name, "error", err)
		}
		if archived {
			continue
		}

		caseNumber, ok := ExtractCaseNumber(project.Name)
		if !ok {
			continue
		}
		seen[caseNumber] = true

		existing, exists := byNumber[caseNumber]
		if !exists {
			if holder, taken := occupied[project.ID]; taken {
				r.log.WarnContext(ctx, "project id conflict on new case",
					"case", caseNumber, "project_id", project.ID, "held_by", holder)
				summary.Conflicts++
				continue
			}
			if err := r.store.InsertCase(ctx, caseNumber, project.ID); err != nil {
				return summary, err
			}
			byNumber[caseNumber] = store.Case{
				CaseNumber: caseNumber,
				ProjectID:  nullInt64(project.ID),
				IsActive:   true,
			}
			occupied[project.ID] = caseNumber
			summary.Added++
			r.log.InfoContext(ctx, "added case", "case", caseNumber, "project_id", project.ID)
			continue
		}

		if !existing.ProjectID.Valid || existing.ProjectID.Int64 != project.ID {
			if holder, taken := occupied[project.ID]; taken && holder != caseNumber {
				r.log.WarnContext(ctx, "project id conflict on rebind",
					"case", caseNumber, "project_id", project.ID, "held_by", holder)
				summary.Conflicts++
				continue
			}
			if err := r.store.UpdateCaseProject(ctx, caseNumber, project.ID); err != nil {
				return summary, err
			}
			if existing.IsActive && existing.ProjectID.Valid {
				delete(occupied, existing.ProjectID.Int64)
			}
			if existing.IsActive {
				occupied[project.ID] = caseNumber
			}
			existing.ProjectID = nullInt64(project.ID)
			summary.Updated++
			r.log.InfoContext(ctx, "rebound case", "case", caseNumber, "project_id", project.ID)
		}

		if !existing.IsActive {
			if holder, taken := occupied[project.ID]; taken && holder != caseNumber {
				r.log.WarnContext(ctx, "project id conflict on reactivation",
					"case", caseNumber, "project_id", project.ID, "held_by", holder)
				summary.Conflicts++
				continue
			}
			if err := r.store.SetCaseActive(ctx, caseNumber, true); err != nil {
				return summary, err
			}
			existing.IsActive = true
			occupied[project.ID] = caseNumber
			summary.Reactivated++
			r.log.InfoContext(ctx, "reactivated case", "case", caseNumber)
		}

		byNumber[caseNumber] = existing
	}

	// Every known case absent from the non-archived roster goes inactive.
	// Its chronology and binding are kept for history.
	for caseNumber, c := range byNumber {
		if seen[caseNumber] || !c.IsActive {
			continue
		}
		if err := r.store.SetCaseActive(ctx, caseNumber, false); err != nil {
			return summary, err
		}
		summary.SoftDeleted++
		r.log.InfoContext(ctx, "soft-deleted case", "case", caseNumber)
	}

	r.log.InfoContext(ctx, "roster reconciled",
		"added", summary.Added, "updated", summary.Updated,
		"reactivated", summary.Reactivated, "soft_deleted", summary.SoftDeleted,
		"conflicts", summary.Conflicts)
	return summary, nil
}

func nullInt64(value int64) sql.NullInt64 {
	return sql.NullInt64{Int64: value, Valid: true}
}
