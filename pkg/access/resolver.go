package access

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/permitdesk/permitdesk/pkg/apperrors"
	"github.com/permitdesk/permitdesk/pkg/observability"
)

// Decision is the outcome of resolving a user against a permit. It is
// derived per request and never persisted or cached.
type Decision struct {
	HasAccess   bool          `json:"has_access"`
	Role        Role          `json:"role,omitempty"`
	Permissions CapabilitySet `json:"-"`
	IsCreator   bool          `json:"is_creator"`
}

// Can reports whether the decision grants the given capability
func (d Decision) Can(c Capability) bool {
	return d.HasAccess && d.Permissions.Has(c)
}

// Resolver determines a user's role and capability set on a permit
type Resolver struct {
	db      *sql.DB
	logger  *observability.Logger
	metrics *observability.Metrics
}

// NewResolver creates a new access resolver
func NewResolver(db *sql.DB, logger *observability.Logger, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		db:      db,
		logger:  logger,
		metrics: metrics,
	}
}

// Resolve loads the permit's creator and the caller's party membership in
// one query and maps them to a Decision. Returns apperrors.ErrNotFound when
// the permit does not exist. A user who is neither creator nor party gets
// HasAccess false, which callers must treat as denial rather than absence.
func (r *Resolver) Resolve(ctx context.Context, permitID, userID int64) (*Decision, error) {
	query := `
		SELECT p.creator_id, pp.role
		FROM permits p
		LEFT JOIN permit_parties pp ON pp.permit_id = p.id AND pp.user_id = $2
		WHERE p.id = $1`

	var creatorID int64
	var partyRole sql.NullString
	err := r.db.QueryRowContext(ctx, query, permitID, userID).Scan(&creatorID, &partyRole)
	if err == sql.ErrNoRows {
		r.observe("not_found")
		return nil, apperrors.NotFound("permit")
	}
	if err != nil {
		r.observe("error")
		return nil, fmt.Errorf("failed to resolve access: %w", err)
	}

	if creatorID == userID {
		// Creator override wins even over a lesser stored role
		r.observe("granted")
		return &Decision{
			HasAccess:   true,
			Role:        RoleOwner,
			Permissions: PermissionsFor(RoleOwner),
			IsCreator:   true,
		}, nil
	}

	if !partyRole.Valid {
		r.observe("denied")
		return &Decision{HasAccess: false}, nil
	}

	role := Role(partyRole.String)
	if !IsValidRole(partyRole.String) {
		r.logger.WithField("role", partyRole.String).
			WithField("permit_id", permitID).
			Warn("Unrecognized party role, degrading to viewer permissions")
		role = RoleViewer
	}

	r.observe("granted")
	return &Decision{
		HasAccess:   true,
		Role:        role,
		Permissions: PermissionsFor(role),
	}, nil
}

// Authorize reports whether the user holds the given capability on the
// permit. Read-only, no side effects beyond metrics.
func (r *Resolver) Authorize(ctx context.Context, permitID, userID int64, capability Capability) (bool, error) {
	decision, err := r.Resolve(ctx, permitID, userID)
	if err != nil {
		return false, err
	}
	return decision.Can(capability), nil
}

func (r *Resolver) observe(outcome string) {
	if r.metrics != nil {
		r.metrics.AccessChecksTotal.WithLabelValues(outcome).Inc()
	}
}
