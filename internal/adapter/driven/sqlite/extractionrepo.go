package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/casewatch/internal/domain/model"
	"github.com/ericfisherdev/casewatch/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.ExtractionStore = (*ExtractionRepo)(nil)

// ExtractionRepo is the SQLite implementation of the ExtractionStore port interface.
type ExtractionRepo struct {
	db  *DB
	now func() time.Time
}

// NewExtractionRepo creates a new ExtractionRepo backed by the given DB.
func NewExtractionRepo(db *DB) *ExtractionRepo {
	return &ExtractionRepo{db: db, now: time.Now}
}

// SaveCharged debits the ledger and stores doc in one write transaction.
func (r *ExtractionRepo) SaveCharged(ctx context.Context, doc model.ExtractedDocument, debit model.DebitRequest) (model.ExtractedDocument, model.DebitResult, error) {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return model.ExtractedDocument{}, model.DebitResult{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := r.now()
	result, err := debitTx(ctx, tx, debit, now)
	if err != nil {
		return model.ExtractedDocument{}, model.DebitResult{}, err
	}

	if doc.Agent == "" {
		doc.Agent = model.DefaultAgent
	}
	if len(doc.Data) == 0 {
		doc.Data = json.RawMessage("null")
	}
	doc.CreatedAt = now.UTC()

	const insert = `
		INSERT INTO extracted_documents (workspace_id, file_name, data, usage_tokens, raw_response, agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, insert,
		doc.WorkspaceID, doc.FileName, string(doc.Data), doc.UsageTokens,
		nullString(doc.RawResponse), doc.Agent, formatTime(doc.CreatedAt),
	).Scan(&doc.ID)
	if err != nil {
		return model.ExtractedDocument{}, model.DebitResult{}, fmt.Errorf("insert extraction %q: %w", doc.FileName, err)
	}

	if err := tx.Commit(); err != nil {
		return model.ExtractedDocument{}, model.DebitResult{}, fmt.Errorf("commit extraction %q: %w", doc.FileName, err)
	}
	return doc, result, nil
}

// ListByWorkspace returns the workspace's extracted documents, newest first.
func (r *ExtractionRepo) ListByWorkspace(ctx context.Context, workspaceID int64) ([]model.ExtractedDocument, error) {
	const query = `
		SELECT id, workspace_id, file_name, data, usage_tokens, raw_response, agent, created_at
		FROM extracted_documents
		WHERE workspace_id = ?
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list extractions of workspace %d: %w", workspaceID, err)
	}
	defer rows.Close()

	docs := []model.ExtractedDocument{}
	for rows.Next() {
		doc, err := scanExtraction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan extraction: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate extractions: %w", err)
	}

	return docs, nil
}

// GetByID returns one extracted document.
func (r *ExtractionRepo) GetByID(ctx context.Context, id int64) (model.ExtractedDocument, error) {
	const query = `
		SELECT id, workspace_id, file_name, data, usage_tokens, raw_response, agent, created_at
		FROM extracted_documents
		WHERE id = ?
	`

	doc, err := scanExtraction(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.ExtractedDocument{}, fmt.Errorf("extraction %d: %w", id, driven.ErrExtractionNotFound)
	}
	if err != nil {
		return model.ExtractedDocument{}, fmt.Errorf("get extraction %d: %w", id, err)
	}
	return doc, nil
}

func scanExtraction(s scanner) (model.ExtractedDocument, error) {
	var doc model.ExtractedDocument
	var data, createdAt string
	var rawResponse sql.NullString

	err := s.Scan(&doc.ID, &doc.WorkspaceID, &doc.FileName, &data, &doc.UsageTokens, &rawResponse, &doc.Agent, &createdAt)
	if err != nil {
		return model.ExtractedDocument{}, err
	}
	doc.Data = json.RawMessage(data)
	doc.RawResponse = rawResponse.String

	if doc.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.ExtractedDocument{}, fmt.Errorf("parse created_at: %w", err)
	}
	return doc, nil
}
