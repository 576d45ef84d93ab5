package permits

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/permitdesk/permitdesk/pkg/apperrors"
)

// Service provides permit persistence. It is permission-agnostic; the
// facade enforces capabilities before calling it.
type Service struct {
	db *sql.DB
}

// NewService creates a new permit service
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

const permitColumns = `
	id, creator_id, status, subcode_type, property_id, address, description,
	created_at, updated_at`

// Create inserts a new permit owned by creatorID
func (s *Service) Create(ctx context.Context, creatorID int64, input CreatePermitInput) (*Permit, error) {
	if !IsValidSubcode(input.SubcodeType) {
		return nil, apperrors.Validation("subcode_type", "unknown subcode type")
	}
	if input.PropertyID <= 0 {
		return nil, apperrors.Validation("property_id", "property_id is required")
	}

	permit := &Permit{
		CreatorID:   creatorID,
		Status:      StatusDraft,
		SubcodeType: SubcodeType(input.SubcodeType),
		PropertyID:  input.PropertyID,
		Address:     input.Address,
		Description: input.Description,
	}

	query := `
		INSERT INTO permits (creator_id, status, subcode_type, property_id, address, description)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		creatorID, permit.Status, permit.SubcodeType, permit.PropertyID,
		permit.Address, permit.Description,
	).Scan(&permit.ID, &permit.CreatedAt, &permit.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create permit: %w", err)
	}

	return permit, nil
}

// Get retrieves a permit by id
func (s *Service) Get(ctx context.Context, id int64) (*Permit, error) {
	query := fmt.Sprintf("SELECT %s FROM permits WHERE id = $1", permitColumns)

	permit := &Permit{}
	var address, description sql.NullString
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&permit.ID, &permit.CreatorID, &permit.Status, &permit.SubcodeType,
		&permit.PropertyID, &address, &description,
		&permit.CreatedAt, &permit.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("permit")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get permit: %w", err)
	}

	permit.Address = address.String
	permit.Description = description.String
	return permit, nil
}

// ListForUser returns permits the user created or is a party on, newest
// first.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]*Permit, error) {
	query := `
		SELECT DISTINCT
			p.id, p.creator_id, p.status, p.subcode_type, p.property_id,
			p.address, p.description, p.created_at, p.updated_at
		FROM permits p
		LEFT JOIN permit_parties pp ON pp.permit_id = p.id
		WHERE p.creator_id = $1 OR pp.user_id = $1
		ORDER BY p.created_at DESC, p.id DESC`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list permits: %w", err)
	}
	defer rows.Close()

	permits := make([]*Permit, 0)
	for rows.Next() {
		permit := &Permit{}
		var address, description sql.NullString
		err := rows.Scan(
			&permit.ID, &permit.CreatorID, &permit.Status, &permit.SubcodeType,
			&permit.PropertyID, &address, &description,
			&permit.CreatedAt, &permit.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan permit: %w", err)
		}
		permit.Address = address.String
		permit.Description = description.String
		permits = append(permits, permit)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating permits: %w", err)
	}

	return permits, nil
}

// Update applies the given changes. creator_id is never touched.
func (s *Service) Update(ctx context.Context, id int64, input UpdatePermitInput) (*Permit, error) {
	if input.Status != nil && !IsValidStatus(*input.Status) {
		return nil, apperrors.Validation("status", "unknown status")
	}

	query := `
		UPDATE permits
		SET status = COALESCE($2::varchar, status),
		    address = COALESCE($3::text, address),
		    description = COALESCE($4::text, description),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + permitColumns

	permit := &Permit{}
	var address, description sql.NullString
	err := s.db.QueryRowContext(ctx, query, id, input.Status, input.Address, input.Description).Scan(
		&permit.ID, &permit.CreatorID, &permit.Status, &permit.SubcodeType,
		&permit.PropertyID, &address, &description,
		&permit.CreatedAt, &permit.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("permit")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update permit: %w", err)
	}

	permit.Address = address.String
	permit.Description = description.String
	return permit, nil
}

// Delete removes a permit. Parties, milestones, documents, messages and
// inspections cascade; activity records are kept for the trail.
func (s *Service) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM permits WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete permit: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("permit")
	}

	return nil
}

// CountActiveForUser counts the user's permits that are not closed or
// rejected, used for entitlement checks.
func (s *Service) CountActiveForUser(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM permits
		WHERE creator_id = $1 AND status NOT IN ($2, $3)`,
		userID, StatusClosed, StatusRejected,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active permits: %w", err)
	}
	return count, nil
}
