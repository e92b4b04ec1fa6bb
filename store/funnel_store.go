package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"funnelboard/api/models"
)

var ErrFunnelNotFound = errors.New("funnel not found")

// FunnelStore persists funnel definitions in Postgres. Stages are stored as
// a JSONB column:
//
//	CREATE TABLE funnels (
//	    id UUID PRIMARY KEY, project_id TEXT NOT NULL,
//	    name TEXT NOT NULL, description TEXT,
//	    stages JSONB NOT NULL, is_active BOOLEAN NOT NULL DEFAULT TRUE,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type FunnelStore struct {
	db *sql.DB
}

func NewFunnelStore(db *sql.DB) *FunnelStore {
	return &FunnelStore{db: db}
}

func (s *FunnelStore) CreateFunnel(ctx context.Context, projectID, name, description string, stages []models.Stage) (*models.Funnel, error) {
	funnel := &models.Funnel{
		ID:          uuid.New().String(),
		ProjectID:   projectID,
		Name:        name,
		Description: description,
		Stages:      stages,
		IsActive:    true,
	}
	if err := funnel.Validate(); err != nil {
		return nil, err
	}

	stagesJSON, err := json.Marshal(stages)
	if err != nil {
		return nil, fmt.Errorf("failed to encode stages: %w", err)
	}

	query := `
		INSERT INTO funnels (id, project_id, name, description, stages)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at;
	`
	err = s.db.QueryRowContext(ctx, query, funnel.ID, projectID, name, description, stagesJSON).Scan(
		&funnel.CreatedAt,
		&funnel.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create funnel: %w", err)
	}

	return funnel, nil
}

func (s *FunnelStore) GetFunnel(ctx context.Context, funnelID string) (*models.Funnel, error) {
	query := `
		SELECT id, project_id, name, COALESCE(description, ''), stages, is_active, created_at, updated_at
		FROM funnels
		WHERE id = $1;
	`
	return s.scanFunnel(s.db.QueryRowContext(ctx, query, funnelID))
}

func (s *FunnelStore) ListFunnels(ctx context.Context, projectID string) ([]models.Funnel, error) {
	query := `
		SELECT id, project_id, name, COALESCE(description, ''), stages, is_active, created_at, updated_at
		FROM funnels
	`
	var args []interface{}
	if projectID != "" {
		query += ` WHERE project_id = $1`
		args = append(args, projectID)
	}
	query += ` ORDER BY created_at DESC;`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list funnels: %w", err)
	}
	defer rows.Close()

	funnels := []models.Funnel{}
	for rows.Next() {
		funnel, err := s.scanFunnel(rows)
		if err != nil {
			return nil, err
		}
		funnels = append(funnels, *funnel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating funnel rows: %w", err)
	}
	return funnels, nil
}

func (s *FunnelStore) UpdateFunnel(ctx context.Context, funnelID, name, description string, stages []models.Stage) (*models.Funnel, error) {
	check := models.Funnel{Name: name, Stages: stages}
	if err := check.Validate(); err != nil {
		return nil, err
	}

	stagesJSON, err := json.Marshal(stages)
	if err != nil {
		return nil, fmt.Errorf("failed to encode stages: %w", err)
	}

	query := `
		UPDATE funnels
		SET name = $2, description = $3, stages = $4, updated_at = now()
		WHERE id = $1
		RETURNING id, project_id, name, COALESCE(description, ''), stages, is_active, created_at, updated_at;
	`
	return s.scanFunnel(s.db.QueryRowContext(ctx, query, funnelID, name, description, stagesJSON))
}

func (s *FunnelStore) DeleteFunnel(ctx context.Context, funnelID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM funnels WHERE id = $1;`, funnelID)
	if err != nil {
		return fmt.Errorf("failed to delete funnel: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrFunnelNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *FunnelStore) scanFunnel(row rowScanner) (*models.Funnel, error) {
	funnel := &models.Funnel{}
	var stagesJSON []byte
	var createdAt, updatedAt time.Time

	err := row.Scan(
		&funnel.ID,
		&funnel.ProjectID,
		&funnel.Name,
		&funnel.Description,
		&stagesJSON,
		&funnel.IsActive,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFunnelNotFound
		}
		return nil, fmt.Errorf("failed to scan funnel: %w", err)
	}

	if err := json.Unmarshal(stagesJSON, &funnel.Stages); err != nil {
		return nil, fmt.Errorf("failed to decode stages for funnel %s: %w", funnel.ID, err)
	}
	funnel.CreatedAt = createdAt
	funnel.UpdatedAt = updatedAt
	return funnel, nil
}
