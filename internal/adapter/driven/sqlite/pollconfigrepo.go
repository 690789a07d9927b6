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
var _ driven.PollConfigStore = (*PollConfigRepo)(nil)

// PollConfigRepo is the SQLite implementation of the PollConfigStore port interface.
type PollConfigRepo struct {
	db  *DB
	now func() time.Time
}

// NewPollConfigRepo creates a new PollConfigRepo backed by the given DB.
func NewPollConfigRepo(db *DB) *PollConfigRepo {
	return &PollConfigRepo{db: db, now: time.Now}
}

// Upsert inserts or replaces the config for (cfg.WorkspaceID, cfg.Role).
func (r *PollConfigRepo) Upsert(ctx context.Context, cfg model.PollConfig) (model.PollConfig, error) {
	const query = `
		INSERT INTO poll_configs (workspace_id, role, days, hours, minutes, recipients, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(workspace_id, role) DO UPDATE SET
			days = excluded.days,
			hours = excluded.hours,
			minutes = excluded.minutes,
			recipients = excluded.recipients,
			updated_at = excluded.updated_at
	`

	recipients := cfg.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	encoded, err := json.Marshal(recipients)
	if err != nil {
		return model.PollConfig{}, fmt.Errorf("encode recipients: %w", err)
	}

	cfg.Recipients = recipients
	cfg.UpdatedAt = r.now().UTC()

	_, err = r.db.Writer.ExecContext(ctx, query,
		cfg.WorkspaceID, cfg.Role, cfg.Days, cfg.Hours, cfg.Minutes,
		string(encoded), formatTime(cfg.UpdatedAt),
	)
	if err != nil {
		return model.PollConfig{}, fmt.Errorf("upsert poll config %d/%s: %w", cfg.WorkspaceID, cfg.Role, err)
	}

	return cfg, nil
}

// Get returns the config for the key, or nil if none exists.
func (r *PollConfigRepo) Get(ctx context.Context, workspaceID int64, role string) (*model.PollConfig, error) {
	const query = `
		SELECT workspace_id, role, days, hours, minutes, recipients, updated_at
		FROM poll_configs
		WHERE workspace_id = ? AND role = ?
	`

	cfg, err := scanPollConfig(r.db.Reader.QueryRowContext(ctx, query, workspaceID, role))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get poll config %d/%s: %w", workspaceID, role, err)
	}
	return &cfg, nil
}

// Delete removes the config for the key.
func (r *PollConfigRepo) Delete(ctx context.Context, workspaceID int64, role string) error {
	result, err := r.db.Writer.ExecContext(ctx,
		`DELETE FROM poll_configs WHERE workspace_id = ? AND role = ?`, workspaceID, role)
	if err != nil {
		return fmt.Errorf("delete poll config %d/%s: %w", workspaceID, role, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for poll config %d/%s: %w", workspaceID, role, err)
	}
	if n == 0 {
		return fmt.Errorf("delete poll config %d/%s: %w", workspaceID, role, driven.ErrPollConfigNotFound)
	}
	return nil
}

// ListAll returns every stored config, ordered by key.
func (r *PollConfigRepo) ListAll(ctx context.Context) ([]model.PollConfig, error) {
	const query = `
		SELECT workspace_id, role, days, hours, minutes, recipients, updated_at
		FROM poll_configs
		ORDER BY workspace_id, role
	`

	rows, err := r.db.Reader.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list poll configs: %w", err)
	}
	defer rows.Close()

	configs := []model.PollConfig{}
	for rows.Next() {
		cfg, err := scanPollConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan poll config: %w", err)
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate poll configs: %w", err)
	}

	return configs, nil
}

func scanPollConfig(s scanner) (model.PollConfig, error) {
	var cfg model.PollConfig
	var recipients, updatedAt string

	if err := s.Scan(&cfg.WorkspaceID, &cfg.Role, &cfg.Days, &cfg.Hours, &cfg.Minutes, &recipients, &updatedAt); err != nil {
		return model.PollConfig{}, err
	}

	if err := json.Unmarshal([]byte(recipients), &cfg.Recipients); err != nil {
		return model.PollConfig{}, fmt.Errorf("decode recipients: %w", err)
	}

	var err error
	if cfg.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.PollConfig{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return cfg, nil
}
