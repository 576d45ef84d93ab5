package audit

import (
	"time"
)

// Action enumerates the state-changing events the trail records
type Action string

const (
	ActionPermitCreated Action = "PERMIT_CREATED"
	ActionPermitUpdated Action = "PERMIT_UPDATED"
	ActionPermitDeleted Action = "PERMIT_DELETED"

	ActionPartyAdded       Action = "PARTY_ADDED"
	ActionPartyRemoved     Action = "PARTY_REMOVED"
	ActionPartyRoleChanged Action = "PARTY_ROLE_CHANGED"

	ActionMilestoneCreated   Action = "MILESTONE_CREATED"
	ActionMilestoneCompleted Action = "MILESTONE_COMPLETED"
	ActionMilestoneDeleted   Action = "MILESTONE_DELETED"
	ActionTemplateCreated    Action = "TEMPLATE_CREATED"
	ActionTemplateApplied    Action = "TEMPLATE_APPLIED"

	ActionDocumentUploaded Action = "DOCUMENT_UPLOADED"
	ActionDocumentDeleted  Action = "DOCUMENT_DELETED"
	ActionPhotoShared      Action = "PHOTO_SHARED"

	ActionMessageSent Action = "MESSAGE_SENT"

	ActionInspectionScheduled Action = "INSPECTION_SCHEDULED"
	ActionInspectionUpdated   Action = "INSPECTION_UPDATED"
)

// EntityType names the kind of entity an activity record describes
type EntityType string

const (
	EntityTypePermit     EntityType = "permit"
	EntityTypeParty      EntityType = "party"
	EntityTypeMilestone  EntityType = "milestone"
	EntityTypeTemplate   EntityType = "workflow_template"
	EntityTypeDocument   EntityType = "document"
	EntityTypeMessage    EntityType = "message"
	EntityTypeInspection EntityType = "inspection"
)

// ActivityRecord is one immutable entry in the audit trail
type ActivityRecord struct {
	ID          int64                  `json:"id"`
	ActorUserID int64                  `json:"actor_user_id"`
	Action      Action                 `json:"action"`
	EntityType  EntityType             `json:"entity_type"`
	EntityID    int64                  `json:"entity_id"`
	Description string                 `json:"description"`
	PermitID    *int64                 `json:"permit_id,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Entry is the input for recording one activity
type Entry struct {
	ActorUserID int64
	Action      Action
	EntityType  EntityType
	EntityID    int64
	Description string
	PermitID    *int64
	Metadata    map[string]interface{}
}

// FeedPage is one page of a permit's activity feed
type FeedPage struct {
	Records  []*ActivityRecord `json:"records"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// SearchFilter narrows a trail search. Zero values mean unfiltered.
type SearchFilter struct {
	ActorUserID *int64
	Actions     []Action
	EntityType  EntityType
	PermitID    *int64
	StartTime   *time.Time
	EndTime     *time.Time
	Limit       int
	Offset      int
}
