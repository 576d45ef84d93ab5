package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/permitdesk/permitdesk/pkg/apperrors"
	"github.com/permitdesk/permitdesk/pkg/observability"
	"github.com/permitdesk/permitdesk/pkg/storage"
)

// Step is one blueprint entry in a workflow template
type Step struct {
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	DueOffsetDays *int   `json:"due_offset_days,omitempty"`
}

// Template is a reusable, permit-type-scoped milestone blueprint
type Template struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PermitType  *string   `json:"permit_type,omitempty"`
	IsDefault   bool      `json:"is_default"`
	Steps       []Step    `json:"steps"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

const templateCacheSize = 256

// TemplateStore manages workflow templates. Reads by id go through a small
// LRU cache; templates change rarely and are read on every apply.
type TemplateStore struct {
	db     *sql.DB
	cache  *lru.Cache[int64, *Template]
	logger *observability.Logger
}

// NewTemplateStore creates a new template store
func NewTemplateStore(db *sql.DB, logger *observability.Logger) (*TemplateStore, error) {
	cache, err := lru.New[int64, *Template](templateCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create template cache: %w", err)
	}
	return &TemplateStore{
		db:     db,
		cache:  cache,
		logger: logger,
	}, nil
}

const templateColumns = `
	id, name, description, permit_type, is_default, steps, created_at, updated_at`

// List returns templates ordered default-first, then name ascending. When
// permitType is given, type-scoped templates for that type and untyped
// templates are returned; otherwise all templates.
func (s *TemplateStore) List(ctx context.Context, permitType *string) ([]*Template, error) {
	query := fmt.Sprintf("SELECT %s FROM workflow_templates", templateColumns)
	args := []interface{}{}

	if permitType != nil {
		query += " WHERE permit_type = $1 OR permit_type IS NULL"
		args = append(args, *permitType)
	}
	query += " ORDER BY is_default DESC, name ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow templates: %w", err)
	}
	defer rows.Close()

	templates := make([]*Template, 0)
	for rows.Next() {
		template, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, template)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflow templates: %w", err)
	}

	return templates, nil
}

// Get returns a template by id
func (s *TemplateStore) Get(ctx context.Context, id int64) (*Template, error) {
	if template, ok := s.cache.Get(id); ok {
		return template, nil
	}

	query := fmt.Sprintf("SELECT %s FROM workflow_templates WHERE id = $1", templateColumns)
	row := s.db.QueryRowContext(ctx, query, id)

	template, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("workflow template")
	}
	if err != nil {
		return nil, err
	}

	s.cache.Add(id, template)
	return template, nil
}

// Create inserts a new template. The result is never the default; defaults
// are assigned only through the privileged seeding path (SetDefault).
func (s *TemplateStore) Create(ctx context.Context, name, description string, permitType *string, steps []Step) (*Template, error) {
	if name == "" {
		return nil, apperrors.Validation("name", "name is required")
	}
	if len(steps) == 0 {
		return nil, apperrors.Validation("steps", "at least one step is required")
	}
	for i, step := range steps {
		if step.Title == "" {
			return nil, apperrors.Validation("steps", fmt.Sprintf("step %d is missing a title", i+1))
		}
	}

	stepsJSON, err := json.Marshal(steps)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal template steps: %w", err)
	}

	query := `
		INSERT INTO workflow_templates (name, description, permit_type, is_default, steps)
		VALUES ($1, $2, $3, false, $4)
		RETURNING id, created_at, updated_at`

	template := &Template{
		Name:        name,
		Description: description,
		PermitType:  permitType,
		IsDefault:   false,
		Steps:       steps,
	}

	err = s.db.QueryRowContext(ctx, query, name, description, permitType, stepsJSON).
		Scan(&template.ID, &template.CreatedAt, &template.UpdatedAt)
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, apperrors.Conflict("workflow template")
		}
		return nil, fmt.Errorf("failed to create workflow template: %w", err)
	}

	s.cache.Add(template.ID, template)
	return template, nil
}

// SetDefault marks a template as the default for its permit type, clearing
// any previous default for that type in the same transaction. This is the
// privileged seeding path; regular creates never produce defaults.
func (s *TemplateStore) SetDefault(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE workflow_templates
		SET is_default = false, updated_at = NOW()
		WHERE is_default = true
		  AND COALESCE(permit_type, '') = (
			SELECT COALESCE(permit_type, '') FROM workflow_templates WHERE id = $1
		  )`, id)
	if err != nil {
		return fmt.Errorf("failed to clear previous default: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE workflow_templates
		SET is_default = true, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to set default template: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("workflow template")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.cache.Remove(id)
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (*Template, error) {
	template := &Template{}
	var stepsJSON []byte

	err := row.Scan(
		&template.ID, &template.Name, &template.Description,
		&template.PermitType, &template.IsDefault, &stepsJSON,
		&template.CreatedAt, &template.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan workflow template: %w", err)
	}

	if len(stepsJSON) > 0 {
		if err := json.Unmarshal(stepsJSON, &template.Steps); err != nil {
			return nil, fmt.Errorf("failed to unmarshal template steps: %w", err)
		}
	}

	return template, nil
}
