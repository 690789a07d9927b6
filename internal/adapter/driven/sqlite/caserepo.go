package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ericfisherdev/casewatch/internal/domain/model"
	"github.com/ericfisherdev/casewatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CaseStore = (*CaseRepo)(nil)

// CaseRepo is the SQLite implementation of the CaseStore port interface.
type CaseRepo struct {
	db  *DB
	now func() time.Time
}

// NewCaseRepo creates a new CaseRepo backed by the given DB.
func NewCaseRepo(db *DB) *CaseRepo {
	return &CaseRepo{db: db, now: time.Now}
}

// Add inserts a followed case keyed by its court-specific natural key.
func (r *CaseRepo) Add(ctx context.Context, fc model.FollowedCase) (model.FollowedCase, error) {
	const query = `
		INSERT INTO followed_cases (
			workspace_id, court, case_key, cnr, filing_number, diary_number,
			case_year, bench_id, case_data, payload, snapshot, followed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?)
		RETURNING id
	`

	caseData, err := model.MarshalValue(model.Normalize(fc.CaseData))
	if err != nil {
		return model.FollowedCase{}, fmt.Errorf("encode case data: %w", err)
	}

	var payload sql.NullString
	if fc.Payload != nil {
		data, err := model.MarshalValue(fc.Payload)
		if err != nil {
			return model.FollowedCase{}, fmt.Errorf("encode payload: %w", err)
		}
		payload = sql.NullString{String: string(data), Valid: true}
	}

	if fc.FollowedAt.IsZero() {
		fc.FollowedAt = r.now()
	}
	fc.FollowedAt = fc.FollowedAt.UTC()
	fc.Snapshot = nil
	key := fc.Identifier().Key()

	err = r.db.Writer.QueryRowContext(ctx, query,
		fc.WorkspaceID,
		fc.Court,
		key,
		nullString(fc.CNR),
		nullString(fc.FilingNumber),
		nullString(fc.DiaryNumber),
		nullString(fc.CaseYear),
		nullString(fc.BenchID),
		string(caseData),
		payload,
		formatTime(fc.FollowedAt),
	).Scan(&fc.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return model.FollowedCase{}, fmt.Errorf("follow %s in %q: %w", key, fc.Court, driven.ErrCaseAlreadyFollowed)
		}
		return model.FollowedCase{}, fmt.Errorf("insert followed case %s: %w", key, err)
	}

	return fc, nil
}

// Remove deletes a followed case by its natural key.
func (r *CaseRepo) Remove(ctx context.Context, workspaceID int64, court, caseKey string) error {
	const query = `DELETE FROM followed_cases WHERE workspace_id = ? AND court = ? AND case_key = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, workspaceID, court, caseKey)
	if err != nil {
		return fmt.Errorf("delete followed case %s: %w", caseKey, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for %s: %w", caseKey, err)
	}
	if n == 0 {
		return fmt.Errorf("unfollow %s in %q: %w", caseKey, court, driven.ErrCaseNotFound)
	}
	return nil
}

// RemoveByID deletes a followed case by row id within its workspace.
func (r *CaseRepo) RemoveByID(ctx context.Context, workspaceID, caseID int64) error {
	const query = `DELETE FROM followed_cases WHERE id = ? AND workspace_id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, caseID, workspaceID)
	if err != nil {
		return fmt.Errorf("delete followed case %d: %w", caseID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for case %d: %w", caseID, err)
	}
	if n == 0 {
		return fmt.Errorf("unfollow case %d: %w", caseID, driven.ErrCaseNotFound)
	}
	return nil
}

// ListByWorkspace returns the workspace's followed cases, newest first.
func (r *CaseRepo) ListByWorkspace(ctx context.Context, workspaceID int64, court string) ([]model.FollowedCase, error) {
	const query = `
		SELECT id, workspace_id, court, cnr, filing_number, diary_number, case_year,
		       bench_id, case_data, payload, snapshot, followed_at
		FROM followed_cases
		WHERE workspace_id = ? AND (? = '' OR court = ?)
		ORDER BY followed_at DESC, id DESC
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, workspaceID, court, court)
	if err != nil {
		return nil, fmt.Errorf("list followed cases of workspace %d: %w", workspaceID, err)
	}
	defer rows.Close()

	cases := []model.FollowedCase{}
	for rows.Next() {
		fc, err := scanFollowedCase(rows)
		if err != nil {
			return nil, err
		}
		cases = append(cases, fc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate followed cases: %w", err)
	}

	return cases, nil
}

// UpdateSnapshot stores the raw snapshot from the latest poll.
func (r *CaseRepo) UpdateSnapshot(ctx context.Context, caseID int64, snapshot []byte) error {
	return r.setSnapshot(ctx, caseID, sql.NullString{String: string(snapshot), Valid: snapshot != nil})
}

// ClearSnapshot resets the stored snapshot to NULL.
func (r *CaseRepo) ClearSnapshot(ctx context.Context, caseID int64) error {
	return r.setSnapshot(ctx, caseID, sql.NullString{})
}

func (r *CaseRepo) setSnapshot(ctx context.Context, caseID int64, snapshot sql.NullString) error {
	result, err := r.db.Writer.ExecContext(ctx, `UPDATE followed_cases SET snapshot = ? WHERE id = ?`, snapshot, caseID)
	if err != nil {
		return fmt.Errorf("update snapshot of case %d: %w", caseID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for case %d: %w", caseID, err)
	}
	if n == 0 {
		return fmt.Errorf("update snapshot of case %d: %w", caseID, driven.ErrCaseNotFound)
	}
	return nil
}

func scanFollowedCase(s scanner) (model.FollowedCase, error) {
	var fc model.FollowedCase
	var cnr, filingNumber, diaryNumber, caseYear, benchID sql.NullString
	var caseData string
	var payload, snapshot sql.NullString
	var followedAt string

	err := s.Scan(
		&fc.ID, &fc.WorkspaceID, &fc.Court,
		&cnr, &filingNumber, &diaryNumber, &caseYear, &benchID,
		&caseData, &payload, &snapshot, &followedAt,
	)
	if err != nil {
		return model.FollowedCase{}, fmt.Errorf("scan followed case: %w", err)
	}

	fc.CNR = cnr.String
	fc.FilingNumber = filingNumber.String
	fc.DiaryNumber = diaryNumber.String
	fc.CaseYear = caseYear.String
	fc.BenchID = benchID.String

	if fc.CaseData, err = model.ParseValue([]byte(caseData)); err != nil {
		return model.FollowedCase{}, fmt.Errorf("decode case data of case %d: %w", fc.ID, err)
	}
	if payload.Valid {
		if fc.Payload, err = model.ParseValue([]byte(payload.String)); err != nil {
			return model.FollowedCase{}, fmt.Errorf("decode payload of case %d: %w", fc.ID, err)
		}
	}
	// The snapshot is returned raw; the poll cycle decides what to do with
	// one that no longer parses.
	if snapshot.Valid {
		fc.Snapshot = []byte(snapshot.String)
	}

	if fc.FollowedAt, err = parseTime(followedAt); err != nil {
		return model.FollowedCase{}, fmt.Errorf("parse followed_at: %w", err)
	}

	return fc, nil
}
