// Package inspections tracks scheduled inspections on a permit.
package inspections

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/permitdesk/permitdesk/pkg/apperrors"
)

// Result is the recorded outcome of an inspection
type Result string

const (
	ResultPassed     Result = "passed"
	ResultFailed     Result = "failed"
	ResultIncomplete Result = "incomplete"
)

// IsValidResult reports whether the given string names a known result
func IsValidResult(result string) bool {
	switch Result(result) {
	case ResultPassed, ResultFailed, ResultIncomplete:
		return true
	}
	return false
}

// Inspection is one scheduled inspection on a permit
type Inspection struct {
	ID              int64      `json:"id"`
	PermitID        int64      `json:"permit_id"`
	InspectorUserID *int64     `json:"inspector_user_id,omitempty"`
	ScheduledFor    time.Time  `json:"scheduled_for"`
	Result          *Result    `json:"result,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ScheduleInput carries the fields for scheduling an inspection
type ScheduleInput struct {
	InspectorUserID *int64    `json:"inspector_user_id,omitempty"`
	ScheduledFor    time.Time `json:"scheduled_for"`
	Notes           string    `json:"notes,omitempty"`
}

// UpdateInput carries the mutable inspection fields. Nil means unchanged.
type UpdateInput struct {
	ScheduledFor *time.Time `json:"scheduled_for,omitempty"`
	Result       *string    `json:"result,omitempty"`
	Notes        *string    `json:"notes,omitempty"`
}

// Service provides inspection persistence. Permission checks happen in
// the facade.
type Service struct {
	db *sql.DB
}

// NewService creates a new inspection service
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

const inspectionColumns = `
	id, permit_id, inspector_user_id, scheduled_for, result, notes, created_at, updated_at`

// Schedule creates an inspection on a permit
func (s *Service) Schedule(ctx context.Context, permitID int64, input ScheduleInput) (*Inspection, error) {
	if input.ScheduledFor.IsZero() {
		return nil, apperrors.Validation("scheduled_for", "scheduled_for is required")
	}

	inspection := &Inspection{
		PermitID:        permitID,
		InspectorUserID: input.InspectorUserID,
		ScheduledFor:    input.ScheduledFor,
		Notes:           input.Notes,
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO inspections (permit_id, inspector_user_id, scheduled_for, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		permitID, input.InspectorUserID, input.ScheduledFor, input.Notes,
	).Scan(&inspection.ID, &inspection.CreatedAt, &inspection.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule inspection: %w", err)
	}

	return inspection, nil
}

// Get retrieves one inspection scoped to its permit
func (s *Service) Get(ctx context.Context, permitID, inspectionID int64) (*Inspection, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM inspections
		WHERE id = $1 AND permit_id = $2`, inspectionColumns)

	inspection := &Inspection{}
	var notes sql.NullString
	err := s.db.QueryRowContext(ctx, query, inspectionID, permitID).Scan(
		&inspection.ID, &inspection.PermitID, &inspection.InspectorUserID,
		&inspection.ScheduledFor, &inspection.Result, &notes,
		&inspection.CreatedAt, &inspection.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("inspection")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inspection: %w", err)
	}

	inspection.Notes = notes.String
	return inspection, nil
}

// Update applies the given changes to an inspection
func (s *Service) Update(ctx context.Context, permitID, inspectionID int64, input UpdateInput) (*Inspection, error) {
	if input.Result != nil && !IsValidResult(*input.Result) {
		return nil, apperrors.Validation("result", "unknown result")
	}

	query := `
		UPDATE inspections
		SET scheduled_for = COALESCE($3, scheduled_for),
		    result = COALESCE($4::varchar, result),
		    notes = COALESCE($5::text, notes),
		    updated_at = NOW()
		WHERE id = $1 AND permit_id = $2
		RETURNING ` + inspectionColumns

	inspection := &Inspection{}
	var notes sql.NullString
	err := s.db.QueryRowContext(ctx, query,
		inspectionID, permitID, input.ScheduledFor, input.Result, input.Notes,
	).Scan(
		&inspection.ID, &inspection.PermitID, &inspection.InspectorUserID,
		&inspection.ScheduledFor, &inspection.Result, &notes,
		&inspection.CreatedAt, &inspection.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("inspection")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update inspection: %w", err)
	}

	inspection.Notes = notes.String
	return inspection, nil
}

// List returns a permit's inspections ordered by schedule
func (s *Service) List(ctx context.Context, permitID int64) ([]*Inspection, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM inspections
		WHERE permit_id = $1
		ORDER BY scheduled_for ASC, id ASC`, inspectionColumns)

	rows, err := s.db.QueryContext(ctx, query, permitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list inspections: %w", err)
	}
	defer rows.Close()

	out := make([]*Inspection, 0)
	for rows.Next() {
		inspection := &Inspection{}
		var notes sql.NullString
		if err := rows.Scan(
			&inspection.ID, &inspection.PermitID, &inspection.InspectorUserID,
			&inspection.ScheduledFor, &inspection.Result, &notes,
			&inspection.CreatedAt, &inspection.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan inspection: %w", err)
		}
		inspection.Notes = notes.String
		out = append(out, inspection)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inspections: %w", err)
	}

	return out, nil
}
