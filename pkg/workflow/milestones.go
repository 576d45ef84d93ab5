package workflow

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/permitdesk/permitdesk/pkg/apperrors"
)

// Milestone is a tracked unit of progress on a permit
type Milestone struct {
	ID          int64      `json:"id"`
	PermitID    int64      `json:"permit_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	SortOrder   int        `json:"sort_order"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Completed reports whether the milestone has been completed
func (m *Milestone) Completed() bool {
	return m.CompletedAt != nil
}

// CreateMilestoneInput carries the fields for creating one milestone.
// SortOrder nil means append after the permit's current maximum.
type CreateMilestoneInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	SortOrder   *int       `json:"sort_order,omitempty"`
}

// Sequencer maintains the ordered milestone list per permit. It is
// permission-agnostic and trusts its caller to have authorized the
// operation.
type Sequencer struct {
	db *sql.DB
}

// NewSequencer creates a new milestone sequencer
func NewSequencer(db *sql.DB) *Sequencer {
	return &Sequencer{db: db}
}

const milestoneColumns = `
	id, permit_id, title, description, due_date, sort_order, completed_at, created_at`

// List returns a permit's milestones ordered by sort order ascending. Sort
// orders may be sparse or duplicated; id ascending breaks ties.
func (s *Sequencer) List(ctx context.Context, permitID int64) ([]*Milestone, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM milestones
		WHERE permit_id = $1
		ORDER BY sort_order ASC, id ASC`, milestoneColumns)

	rows, err := s.db.QueryContext(ctx, query, permitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}
	defer rows.Close()

	milestones := make([]*Milestone, 0)
	for rows.Next() {
		milestone := &Milestone{}
		err := rows.Scan(
			&milestone.ID, &milestone.PermitID, &milestone.Title,
			&milestone.Description, &milestone.DueDate, &milestone.SortOrder,
			&milestone.CompletedAt, &milestone.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan milestone: %w", err)
		}
		milestones = append(milestones, milestone)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating milestones: %w", err)
	}

	return milestones, nil
}

// Get returns one milestone scoped to its permit
func (s *Sequencer) Get(ctx context.Context, permitID, milestoneID int64) (*Milestone, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM milestones
		WHERE id = $1 AND permit_id = $2`, milestoneColumns)

	milestone := &Milestone{}
	err := s.db.QueryRowContext(ctx, query, milestoneID, permitID).Scan(
		&milestone.ID, &milestone.PermitID, &milestone.Title,
		&milestone.Description, &milestone.DueDate, &milestone.SortOrder,
		&milestone.CompletedAt, &milestone.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("milestone")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get milestone: %w", err)
	}

	return milestone, nil
}

// Create inserts one milestone. When SortOrder is omitted it becomes the
// permit's current maximum plus one, computed in the insert itself so the
// read and the write share one statement. A concurrent create may still
// produce a duplicate sort order; that is a tie, not an error.
func (s *Sequencer) Create(ctx context.Context, permitID int64, input CreateMilestoneInput) (*Milestone, error) {
	if input.Title == "" {
		return nil, apperrors.Validation("title", "title is required")
	}

	milestone := &Milestone{
		PermitID:    permitID,
		Title:       input.Title,
		Description: input.Description,
		DueDate:     input.DueDate,
	}

	var err error
	if input.SortOrder != nil {
		query := `
			INSERT INTO milestones (permit_id, title, description, due_date, sort_order)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, sort_order, created_at`
		err = s.db.QueryRowContext(ctx, query,
			permitID, input.Title, input.Description, input.DueDate, *input.SortOrder,
		).Scan(&milestone.ID, &milestone.SortOrder, &milestone.CreatedAt)
	} else {
		query := `
			INSERT INTO milestones (permit_id, title, description, due_date, sort_order)
			SELECT $1, $2, $3, $4, COALESCE(MAX(sort_order), 0) + 1
			FROM milestones WHERE permit_id = $1
			RETURNING id, sort_order, created_at`
		err = s.db.QueryRowContext(ctx, query,
			permitID, input.Title, input.Description, input.DueDate,
		).Scan(&milestone.ID, &milestone.SortOrder, &milestone.CreatedAt)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create milestone: %w", err)
	}

	return milestone, nil
}

// ApplyTemplate instantiates a template's steps as milestones on the permit
// in one transaction. Step order becomes sort order, appended after any
// existing milestones. Due dates are computed from now plus each step's
// offset. The created milestones are copies; editing the template later
// never touches them.
func (s *Sequencer) ApplyTemplate(ctx context.Context, permitID int64, template *Template) ([]*Milestone, error) {
	if len(template.Steps) == 0 {
		return nil, apperrors.Validation("steps", "template has no steps")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var base int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(sort_order), 0) FROM milestones WHERE permit_id = $1", permitID,
	).Scan(&base)
	if err != nil {
		return nil, fmt.Errorf("failed to read current sort order: %w", err)
	}

	now := time.Now().UTC()
	milestones := make([]*Milestone, 0, len(template.Steps))
	for i, step := range template.Steps {
		var dueDate *time.Time
		if step.DueOffsetDays != nil {
			due := now.AddDate(0, 0, *step.DueOffsetDays)
			dueDate = &due
		}

		milestone := &Milestone{
			PermitID:    permitID,
			Title:       step.Title,
			Description: step.Description,
			DueDate:     dueDate,
			SortOrder:   base + i + 1,
		}

		err = tx.QueryRowContext(ctx, `
			INSERT INTO milestones (permit_id, title, description, due_date, sort_order)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at`,
			permitID, step.Title, step.Description, dueDate, milestone.SortOrder,
		).Scan(&milestone.ID, &milestone.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to create milestone from template step: %w", err)
		}

		milestones = append(milestones, milestone)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return milestones, nil
}

// Complete marks a milestone completed. Idempotent: re-completing leaves
// the original completed_at untouched. The returned bool is true only when
// this call performed the transition.
func (s *Sequencer) Complete(ctx context.Context, permitID, milestoneID int64) (*Milestone, bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE milestones
		SET completed_at = NOW()
		WHERE id = $1 AND permit_id = $2 AND completed_at IS NULL`,
		milestoneID, permitID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to complete milestone: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to check rows affected: %w", err)
	}

	milestone, err := s.Get(ctx, permitID, milestoneID)
	if err != nil {
		return nil, false, err
	}

	return milestone, rows == 1, nil
}

// Delete removes a milestone. Remaining sort orders are never renumbered;
// gaps are intentional so surviving milestones keep a stable order.
func (s *Sequencer) Delete(ctx context.Context, permitID, milestoneID int64) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM milestones WHERE id = $1 AND permit_id = $2",
		milestoneID, permitID)
	if err != nil {
		return fmt.Errorf("failed to delete milestone: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("milestone")
	}

	return nil
}
