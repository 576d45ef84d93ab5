package notifications

// Kind classifies what happened, for channel routing and templates
type Kind string

const (
	KindPartyAdded         Kind = "party_added"
	KindPartyRemoved       Kind = "party_removed"
	KindMilestoneCompleted Kind = "milestone_completed"
	KindMilestoneDue       Kind = "milestone_due"
	KindPhotoShared        Kind = "photo_shared"
	KindMessageSent        Kind = "message_sent"
	KindInspectionChanged  Kind = "inspection_changed"
)

// Notification is one outbound message. Recipients are user ids; channel
// resolution (email address, device token) happens in the sender.
type Notification struct {
	Kind       Kind    `json:"kind"`
	PermitID   int64   `json:"permit_id"`
	EntityID   int64   `json:"entity_id,omitempty"`
	ActorName  string  `json:"actor_name,omitempty"`
	Recipients []int64 `json:"recipients"`
	Message    string  `json:"message,omitempty"`
}
