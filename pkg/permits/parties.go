package permits

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/permitdesk/permitdesk/pkg/access"
	"github.com/permitdesk/permitdesk/pkg/apperrors"
)

const partyColumns = `id, permit_id, user_id, role, invited_by, created_at`

// ListParties returns a permit's party memberships in join order
func (s *Service) ListParties(ctx context.Context, permitID int64) ([]*Party, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM permit_parties
		WHERE permit_id = $1
		ORDER BY created_at ASC, id ASC`, partyColumns)

	rows, err := s.db.QueryContext(ctx, query, permitID)
	if err != nil {
		return nil, fmt.Errorf("failed to list parties: %w", err)
	}
	defer rows.Close()

	parties := make([]*Party, 0)
	for rows.Next() {
		party := &Party{}
		if err := rows.Scan(
			&party.ID, &party.PermitID, &party.UserID, &party.Role,
			&party.InvitedBy, &party.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan party: %w", err)
		}
		parties = append(parties, party)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating parties: %w", err)
	}

	return parties, nil
}

// GetParty retrieves one membership by permit and user
func (s *Service) GetParty(ctx context.Context, permitID, userID int64) (*Party, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM permit_parties
		WHERE permit_id = $1 AND user_id = $2`, partyColumns)

	party := &Party{}
	err := s.db.QueryRowContext(ctx, query, permitID, userID).Scan(
		&party.ID, &party.PermitID, &party.UserID, &party.Role,
		&party.InvitedBy, &party.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("party")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get party: %w", err)
	}

	return party, nil
}

// AddParty attaches a user to a permit with a role. A user may hold at most
// one membership per permit; a second add is a conflict.
func (s *Service) AddParty(ctx context.Context, permitID, userID int64, role access.Role, invitedBy *int64) (*Party, error) {
	if !access.IsValidRole(string(role)) {
		return nil, apperrors.Validation("role", "unknown role")
	}

	query := `
		INSERT INTO permit_parties (permit_id, user_id, role, invited_by)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (permit_id, user_id) DO NOTHING
		RETURNING id, created_at`

	party := &Party{
		PermitID:  permitID,
		UserID:    userID,
		Role:      role,
		InvitedBy: invitedBy,
	}

	err := s.db.QueryRowContext(ctx, query, permitID, userID, role, invitedBy).
		Scan(&party.ID, &party.CreatedAt)
	if err == sql.ErrNoRows {
		// ON CONFLICT DO NOTHING returns no row when the membership exists
		return nil, apperrors.Conflict("party membership")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add party: %w", err)
	}

	return party, nil
}

// ChangePartyRole replaces a membership with one carrying the new role.
// Delete plus recreate in one transaction, never an in-place update, so
// each membership row maps to exactly one role assignment in the trail.
func (s *Service) ChangePartyRole(ctx context.Context, permitID, userID int64, role access.Role, changedBy *int64) (*Party, error) {
	if !access.IsValidRole(string(role)) {
		return nil, apperrors.Validation("role", "unknown role")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"DELETE FROM permit_parties WHERE permit_id = $1 AND user_id = $2",
		permitID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to remove previous membership: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperrors.NotFound("party")
	}

	party := &Party{
		PermitID:  permitID,
		UserID:    userID,
		Role:      role,
		InvitedBy: changedBy,
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO permit_parties (permit_id, user_id, role, invited_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		permitID, userID, role, changedBy,
	).Scan(&party.ID, &party.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to recreate membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return party, nil
}

// RemoveParty detaches a user from a permit
func (s *Service) RemoveParty(ctx context.Context, permitID, userID int64) error {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM permit_parties WHERE permit_id = $1 AND user_id = $2",
		permitID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove party: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperrors.NotFound("party")
	}

	return nil
}

// CountParties counts a permit's party memberships
func (s *Service) CountParties(ctx context.Context, permitID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM permit_parties WHERE permit_id = $1", permitID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count parties: %w", err)
	}
	return count, nil
}
