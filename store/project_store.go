package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"funnelboard/api/models"
	"funnelboard/api/utils"
)

var ErrProjectNotFound = errors.New("project not found")

// ProjectStore persists projects in Postgres. Project IDs are opaque text,
// not UUIDs: created projects get a uuid string, but fixed IDs like the
// bootstrap POC project are plain slugs.
//
//	CREATE TABLE projects (
//	    id TEXT PRIMARY KEY, name TEXT NOT NULL, surface TEXT,
//	    api_key TEXT NOT NULL UNIQUE,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type ProjectStore struct {
	db *sql.DB
}

func NewProjectStore(db *sql.DB) *ProjectStore {
	return &ProjectStore{db: db}
}

func (s *ProjectStore) CreateProject(ctx context.Context, name, surface string) (*models.Project, error) {
	project := &models.Project{
		ID:      uuid.New().String(),
		Name:    name,
		Surface: surface,
		APIKey:  utils.GenerateAPIKey(),
	}

	query := `
		INSERT INTO projects (id, name, surface, api_key)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at;
	`
	err := s.db.QueryRowContext(ctx, query, project.ID, name, surface, project.APIKey).Scan(
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	return project, nil
}

func (s *ProjectStore) GetProjectByID(ctx context.Context, projectID string) (*models.Project, error) {
	query := `
		SELECT id, name, COALESCE(surface, ''), api_key, created_at, updated_at
		FROM projects
		WHERE id = $1;
	`
	return s.scanProject(s.db.QueryRowContext(ctx, query, projectID))
}

// GetProjectByAPIKey resolves a tracking API key to its project. Used by the
// ingestion path on every request.
func (s *ProjectStore) GetProjectByAPIKey(ctx context.Context, apiKey string) (*models.Project, error) {
	query := `
		SELECT id, name, COALESCE(surface, ''), api_key, created_at, updated_at
		FROM projects
		WHERE api_key = $1;
	`
	return s.scanProject(s.db.QueryRowContext(ctx, query, apiKey))
}

func (s *ProjectStore) ListProjects(ctx context.Context) ([]models.Project, error) {
	query := `
		SELECT id, name, COALESCE(surface, ''), api_key, created_at, updated_at
		FROM projects
		ORDER BY created_at ASC;
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		project, err := s.scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating project rows: %w", err)
	}
	return projects, nil
}

// EnsureDefaultProject creates the default POC project if it does not exist,
// and returns it either way.
func (s *ProjectStore) EnsureDefaultProject(ctx context.Context, projectID, name, surface string) (*models.Project, error) {
	project, err := s.GetProjectByID(ctx, projectID)
	if err == nil {
		return project, nil
	}
	if !errors.Is(err, ErrProjectNotFound) {
		return nil, err
	}

	project = &models.Project{
		ID:      projectID,
		Name:    name,
		Surface: surface,
		APIKey:  utils.GenerateAPIKey(),
	}
	query := `
		INSERT INTO projects (id, name, surface, api_key)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at;
	`
	err = s.db.QueryRowContext(ctx, query, project.ID, name, surface, project.APIKey).Scan(
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create default project: %w", err)
	}
	return project, nil
}

func (s *ProjectStore) scanProject(row rowScanner) (*models.Project, error) {
	project := &models.Project{}
	err := row.Scan(
		&project.ID,
		&project.Name,
		&project.Surface,
		&project.APIKey,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	return project, nil
}
