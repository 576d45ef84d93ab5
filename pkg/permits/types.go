package permits

import (
	"time"

	"github.com/permitdesk/permitdesk/pkg/access"
)

// Status represents a permit's workflow state
type Status string

const (
	StatusDraft       Status = "draft"
	StatusSubmitted   Status = "submitted"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusClosed      Status = "closed"
)

// IsValidStatus reports whether the given string names a known status
func IsValidStatus(status string) bool {
	switch Status(status) {
	case StatusDraft, StatusSubmitted, StatusUnderReview,
		StatusApproved, StatusRejected, StatusClosed:
		return true
	}
	return false
}

// SubcodeType classifies the regulatory subcode a permit falls under
type SubcodeType string

const (
	SubcodeBuilding   SubcodeType = "BUILDING"
	SubcodeElectrical SubcodeType = "ELECTRICAL"
	SubcodePlumbing   SubcodeType = "PLUMBING"
	SubcodeFire       SubcodeType = "FIRE"
	SubcodeMechanical SubcodeType = "MECHANICAL"
)

// IsValidSubcode reports whether the given string names a known subcode
func IsValidSubcode(subcode string) bool {
	switch SubcodeType(subcode) {
	case SubcodeBuilding, SubcodeElectrical, SubcodePlumbing,
		SubcodeFire, SubcodeMechanical:
		return true
	}
	return false
}

// Permit is one unit of regulatory work tied to a property. CreatorID is
// immutable for the life of the record; the creator always has full access
// regardless of any stored party role.
type Permit struct {
	ID          int64       `json:"id"`
	CreatorID   int64       `json:"creator_id"`
	Status      Status      `json:"status"`
	SubcodeType SubcodeType `json:"subcode_type"`
	PropertyID  int64       `json:"property_id"`
	Address     string      `json:"address,omitempty"`
	Description string      `json:"description,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Party is a user explicitly associated with a permit via a role. A role
// change is delete plus recreate, never an in-place update, so the trail
// stays unambiguous.
type Party struct {
	ID        int64       `json:"id"`
	PermitID  int64       `json:"permit_id"`
	UserID    int64       `json:"user_id"`
	Role      access.Role `json:"role"`
	InvitedBy *int64      `json:"invited_by,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// CreatePermitInput carries the fields for creating a permit
type CreatePermitInput struct {
	SubcodeType string `json:"subcode_type"`
	PropertyID  int64  `json:"property_id"`
	Address     string `json:"address,omitempty"`
	Description string `json:"description,omitempty"`
}

// UpdatePermitInput carries the mutable permit fields. Nil means unchanged.
type UpdatePermitInput struct {
	Status      *string `json:"status,omitempty"`
	Address     *string `json:"address,omitempty"`
	Description *string `json:"description,omitempty"`
}
