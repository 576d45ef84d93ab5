package permits

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/permitdesk/permitdesk/pkg/access"
	"github.com/permitdesk/permitdesk/pkg/apperrors"
	"github.com/permitdesk/permitdesk/pkg/audit"
	"github.com/permitdesk/permitdesk/pkg/documents"
	"github.com/permitdesk/permitdesk/pkg/entitlements"
	"github.com/permitdesk/permitdesk/pkg/inspections"
	"github.com/permitdesk/permitdesk/pkg/messages"
	"github.com/permitdesk/permitdesk/pkg/notifications"
	"github.com/permitdesk/permitdesk/pkg/observability"
	"github.com/permitdesk/permitdesk/pkg/workflow"
)

// Operation names a mutating boundary operation
type Operation string

const (
	OpPermitUpdate Operation = "permit.update"
	OpPermitDelete Operation = "permit.delete"

	OpPartyAdd        Operation = "party.add"
	OpPartyChangeRole Operation = "party.change_role"
	OpPartyRemove     Operation = "party.remove"

	OpMilestoneCreate   Operation = "milestone.create"
	OpMilestoneComplete Operation = "milestone.complete"
	OpMilestoneDelete   Operation = "milestone.delete"
	OpTemplateApply     Operation = "template.apply"

	OpDocumentUpload Operation = "document.upload"
	OpDocumentDelete Operation = "document.delete"
	OpPhotoShare     Operation = "photo.share"

	OpMessageSend Operation = "message.send"

	OpInspectionSchedule Operation = "inspection.schedule"
	OpInspectionUpdate   Operation = "inspection.update"
)

// operationCapabilities is the fixed operation to capability mapping,
// initialized once and never mutated.
var operationCapabilities = map[Operation]access.Capability{
	OpPermitUpdate: access.CapabilityEdit,
	OpPermitDelete: access.CapabilityDelete,

	OpPartyAdd:        access.CapabilityManageParties,
	OpPartyChangeRole: access.CapabilityManageParties,
	OpPartyRemove:     access.CapabilityManageParties,

	OpMilestoneCreate:   access.CapabilityEdit,
	OpMilestoneComplete: access.CapabilityEdit,
	OpMilestoneDelete:   access.CapabilityEdit,
	OpTemplateApply:     access.CapabilityEdit,

	OpDocumentUpload: access.CapabilityUploadDocuments,
	OpDocumentDelete: access.CapabilityDelete,
	OpPhotoShare:     access.CapabilityRead,

	OpMessageSend: access.CapabilitySendMessages,

	OpInspectionSchedule: access.CapabilityManageInspections,
	OpInspectionUpdate:   access.CapabilityManageInspections,
}

// Notifier hands best-effort notifications to an out-of-band worker
type Notifier interface {
	Enqueue(n notifications.Notification) bool
}

// FacadeConfig wires the facade's collaborators
type FacadeConfig struct {
	Resolver    *access.Resolver
	Permits     *Service
	Sequencer   *workflow.Sequencer
	Templates   *workflow.TemplateStore
	Documents   *documents.Service
	Messages    *messages.Service
	Inspections *inspections.Service
	Recorder    *audit.Recorder
	Feed        *audit.Store
	Notifier    Notifier
	Limits      entitlements.Entitlements
	Logger      *observability.Logger
	Metrics     *observability.Metrics
	OTel        *observability.OTelMetrics
}

// Facade gates every mutating operation. Pipeline, strictly in order:
// resolve access, check the operation's capability, mutate, append one
// activity record, enqueue notifications. A denial short-circuits with no
// mutation and no trail entry. The audit write happens after the mutation
// commits and never rolls it back; a failed write is logged and counted
// instead.
type Facade struct {
	resolver    *access.Resolver
	permits     *Service
	sequencer   *workflow.Sequencer
	templates   *workflow.TemplateStore
	documents   *documents.Service
	messages    *messages.Service
	inspections *inspections.Service
	recorder    *audit.Recorder
	feed        *audit.Store
	notifier    Notifier
	limits      entitlements.Entitlements
	logger      *observability.Logger
	metrics     *observability.Metrics
	otel        *observability.OTelMetrics
}

// NewFacade creates the permission-gated mutation facade
func NewFacade(cfg FacadeConfig) *Facade {
	return &Facade{
		resolver:    cfg.Resolver,
		permits:     cfg.Permits,
		sequencer:   cfg.Sequencer,
		templates:   cfg.Templates,
		documents:   cfg.Documents,
		messages:    cfg.Messages,
		inspections: cfg.Inspections,
		recorder:    cfg.Recorder,
		feed:        cfg.Feed,
		notifier:    cfg.Notifier,
		limits:      cfg.Limits,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		otel:        cfg.OTel,
	}
}

// require resolves access and checks the operation's capability. NotFound
// propagates as-is; a principal without the capability gets Forbidden.
func (f *Facade) require(ctx context.Context, op Operation, permitID, actorID int64) (*access.Decision, error) {
	capability, ok := operationCapabilities[op]
	if !ok {
		return nil, fmt.Errorf("unknown operation %q", op)
	}

	decision, err := f.resolver.Resolve(ctx, permitID, actorID)
	if err != nil {
		return nil, err
	}
	if !decision.Can(capability) {
		if f.metrics != nil {
			f.metrics.AccessDeniedTotal.WithLabelValues(string(op)).Inc()
		}
		if f.otel != nil {
			f.otel.RecordDenial(ctx, string(op))
		}
		return nil, apperrors.Forbidden(string(op))
	}
	return decision, nil
}

// requireRead is the same gate for read endpoints
func (f *Facade) requireRead(ctx context.Context, permitID, actorID int64) (*access.Decision, error) {
	decision, err := f.resolver.Resolve(ctx, permitID, actorID)
	if err != nil {
		return nil, err
	}
	if !decision.Can(access.CapabilityRead) {
		return nil, apperrors.Forbidden("read")
	}
	return decision, nil
}

func (f *Facade) observeMutation(ctx context.Context, op Operation, started time.Time) {
	if f.otel != nil {
		f.otel.RecordMutation(ctx, string(op), time.Since(started).Seconds())
	}
}

func (f *Facade) record(ctx context.Context, entry audit.Entry) {
	f.recorder.RecordBestEffort(ctx, entry)
}

func (f *Facade) notify(n notifications.Notification) {
	if f.notifier != nil {
		f.notifier.Enqueue(n)
	}
}

// CreatePermit creates a permit owned by the actor. There is nothing to
// resolve against yet; only the plan's active-permit limit applies.
func (f *Facade) CreatePermit(ctx context.Context, actorID int64, input CreatePermitInput) (*Permit, error) {
	started := time.Now()

	if f.limits.MaxActivePermits != entitlements.Unlimited {
		count, err := f.permits.CountActiveForUser(ctx, actorID)
		if err != nil {
			return nil, err
		}
		if !entitlements.Allows(f.limits.MaxActivePermits, count) {
			return nil, apperrors.Validation("plan", "active permit limit reached for plan")
		}
	}

	permit, err := f.permits.Create(ctx, actorID, input)
	if err != nil {
		return nil, err
	}

	if f.metrics != nil {
		f.metrics.PermitsTotal.Inc()
	}
	f.record(ctx, audit.Entry{
		ActorUserID: actorID,
		Action:      audit.ActionPermitCreated,
		EntityType:  audit.EntityTypePermit,
		EntityID:    permit.ID,
		Description: fmt.Sprintf("Created %s permit", permit.SubcodeType),
		PermitID:    &permit.ID,
	})
	f.observeMutation(ctx, "permit.create", started)
	return permit, nil
}

// GetPermit returns a permit the actor may read
func (f *Facade) GetPermit(ctx context.Context, actorID, permitID int64) (*Permit, error) {
	if _, err := f.requireRead(ctx, permitID, actorID); err != nil {
		return nil, err
	}
	return f.permits.Get(ctx, permitID)
}

// ListPermits returns the actor's permits
func (f *Facade) ListPermits(ctx context.Context, actorID int64) ([]*Permit, error) {
	return f.permits.ListForUser(ctx, actorID)
}

// UpdatePermit applies changes to a permit the actor may edit
func (f *Facade) UpdatePermit(ctx context.Context, actorID, permitID int64, input UpdatePermitInput) (*Permit, error) {
	started := time.Now()
	if _, err := f.require(ctx, OpPermitUpdate, permitID, actorID); err != nil {
		return nil, err
	}

	permit, err := f.permits.Update(ctx, permitID, input)
	if err != nil {
		return nil, err
	}

	f.record(ctx, audit.Entry{
		ActorUserID: actorID,
		Action:      audit.ActionPermitUpdated,
		EntityType:  audit.EntityTypePermit,
		EntityID:    permit.ID,
		Description: "Updated permit",
		PermitID:    &permit.ID,
	})
	f.observeMutation(ctx, OpPermitUpdate, started)
	return permit, nil
}

// DeletePermit removes a permit the actor may delete. The activity record
// keeps the permit id for the trail even though the row is gone.
func (f *Facade) DeletePermit(ctx context.Context, actorID, permitID int64) error {
	started := time.Now()
	if _, err := f.require(ctx, OpPermitDelete, permitID, actorID); err != nil {
		return err
	}

	if err := f.permits.Delete(ctx, permitID); err != nil {
		return err
	}

	f.record(ctx, audit.Entry{
		ActorUserID: actorID,
		Action:      audit.ActionPermitDeleted,
		EntityType:  audit.EntityTypePermit,
		EntityID:    permitID,
		Description: "Deleted permit",
		PermitID:    &permitID,
	})
	f.observeMutation(ctx, OpPermitDelete, started)
	return nil
}

// ResolveAccess exposes the actor's own decision for a permit, used by the
// boundary to shape UI affordances.
func (f *Facade) ResolveAccess(ctx context.Context, actorID, permitID int64) (*access.Decision, error) {
	return f.resolver.Resolve(ctx, permitID, actorID)
}

// ListParties returns a permit's parties to an actor who may read it
func (f *Facade) ListParties(ctx context.Context, actorID, permitID int64) ([]*Party, error) {
	if _, err := f.requireRead(ctx, permitID, actorID); err != nil {
		return nil, err
	}
	return f.permits.ListParties(ctx, permitID)
}

// AddParty attaches a user to the permit with a role
func (f *Facade) AddParty(ctx context.Context, actorID, permitID, userID int64, role access.Role) (*Party, error) {
	started := time.Now()
	if _, err := f.require(ctx, OpPartyAdd, permitID, actorID); err != nil {
		return nil, err
	}

	if f.limits.MaxPartiesPerPermit != entitlements.Unlimited {
		count, err := f.permits.CountParties(ctx, permitID)
		if err != nil {
			return nil, err
		}
		if !entitlements.Allows(f.limits.MaxPartiesPerPermit, count) {
			return nil, apperrors.Validation("plan", "party limit reached for plan")
		}
	}

	party, err := f.permits.AddParty(ctx, permitID, userID, role, &actorID)
	if err != nil {
		return nil, err
	}

	f.record(ctx, audit.Entry{
		ActorUserID: actorID,
		Action:      audit.ActionPartyAdded,
		EntityType:  audit.EntityTypeParty,
		EntityID:    party.ID,
		Description: fmt.Sprintf("Added user %d as %s", userID, role),
		PermitID:    &permitID,
		Metadata:    map[string]interface{}{"user_id": userID, "role": string(role)},
	})
	f.notify(notifications.Notification{
		Kind:       notifications.KindPartyAdded,
		PermitID:   permitID,
		EntityID:   party.ID,
		Recipients: []int64{userID},
	})
	f.observeMutation(ctx, OpPartyAdd, started)
	return party, nil
}

// ChangePartyRole swaps a party's role via delete plus recreate
func (f *Facade) ChangePartyRole(ctx context.Context, actorID, permitID, userID int64, role access.Role) (*Party, error) {
	started := time.Now()
	if _, err := f.require(ctx, OpPartyChangeRole, permitID, actorID); err != nil {
		return nil, err
	}

	party, err := f.permits.ChangePartyRole(ctx, permitID, userID, role, &actorID)
	if err != nil {
		return nil, err
	}

	f.record(ctx, audit.Entry{
		ActorUserID: actorID,
		Action:      audit.ActionPartyRoleChanged,
		EntityType:  audit.EntityTypeParty,
		EntityID:    party.ID,
		Description: fmt.Sprintf("Changed user %d role to %s", userID, role),
		PermitID:    &permitID,
		Metadata:    map[string]interface{}{"user_id": userID, "role": string(role)},
	})
	f.observeMutation(ctx, OpPartyChangeRole, started)
	return party, nil
}

// RemoveParty detaches a user from the permit
func (f *Facade) RemoveParty(ctx context.Context, actorID, permitID, userID int64) error {
	started := time.Now()
	if _, err := f.require(ctx, OpPartyRemove, permitID, actorID); err != nil {
		return err
	}

	if err := f.permits.RemoveParty(ctx, permitID, userID); err != nil {
		return err
	}

	f.record(ctx, audit.Entry{
		ActorUserID: actorID,
		Action:      audit.ActionPartyRemoved,
		EntityType:  audit.EntityTypeParty,
		EntityID:    userID,
		Description: fmt.Sprintf("Removed user %d from permit", userID),
		PermitID:    &permitID,
		Metadata:    map[string]interface{}{"user_id": userID},
	})
	f.notify(notifications.Notification{
		Kind:       notifications.KindPartyRemoved,
		PermitID:   permitID,
		Recipients: []int64{userID},
	})
	f.observeMutation(ctx, OpPartyRemove, started)
	return nil
}

// ListMilestones returns a permit's milestones to an actor who may read it
func (f *Facade) ListMilestones(ctx context.Context, actorID, permitID int64) ([]*workflow.Milestone, error) {
	if _, err := f.requireRead(ctx, permitID, actorID); err != nil {
		return nil, err
	}
	return f.sequencer.List(ctx, permitID)
}

// CreateMilestone adds a milestone to a permit the actor may edit
func (f *Facade) CreateMilestone(ctx context.Context, actorID, permitID int64, input workflow.CreateMilestoneInput) (*workflow.Milestone, error) {
	started := time.Now()
	if _, err := f.require(ctx, OpMilestoneCreate, permitID, actorID); err != nil {
		return nil, err
	}

	milestone, err := f.sequencer.Create(ctx, permitID, input)
	if err != nil {
		return nil, err
	}

	if f.metrics != nil {
		f.metrics.MilestonesTotal.Inc()
	}
	f.record(ctx, audit.Entry{
		ActorUserID: actorID,
		Action:      audit.ActionMilestoneCreated,
		EntityType:  audit.EntityTypeMilestone,
		EntityID:    milestone.ID,
		Description: fmt.Sprintf("Created milestone %q", milestone.Title),
		PermitID:    &permitID,
	})
	f.observeMutation(ctx, OpMilestoneCreate, started)
	return milestone, nil
}

// ApplyTemplate instantiates a workflow template onto a permit
func (f *Facade) ApplyTemplate(ctx context.Context, actorID, permitID, templateID int64) ([]*workflow.Milestone, error) {
	started := time.Now()
	if _, err := f.require(ctx, OpTemplateApply, permitID, actorID); err != nil {
		return nil, err
	}

	template, err := f.templates.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}

	milestones, err := f.sequencer.ApplyTemplate(ctx, permitID, template)
	if err != nil {
		return nil, err
	}

	f.record(ctx, audit.Entry{
		ActorUserID: actorID,
		Action:      audit.ActionTemplateApplied,
		EntityType:  audit.EntityTypeTemplate,
		EntityID:    template.ID,
		Description: fmt.Sprintf("Applied template %q (%d milestones)", template.Name, len(milestones)),
		PermitID:    &permitID,
		Metadata:    map[string]interface{}{"milestones": len(milestones)},
	})
	f.observeMutation(ctx, OpTemplateApply, started)
	return milestones, nil
}

// CompleteMilestone marks a milestone done. Idempotent: a repeat call
// changes nothing, records nothing, and notifies nobody.
func (f *Facade) CompleteMilestone(ctx context.Context, actorID int64, actorName string, permitID, milestoneID int64) (*workflow.Milestone, error) {
	started := time.Now()
	if _, err := f.require(ctx, OpMilestoneComplete, permitID, actorID); err != nil {
		return nil, err
	}

	milestone, transitioned, err := f.sequencer.Complete(ctx, permitID, milestoneID)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		return milestone, nil
	}

	f.record(ctx, audit.Entry{
		ActorUserID: actorID,
		Action:      audit.ActionMilestoneCompleted,
		EntityType:  audit.EntityTypeMilestone,
		EntityID:    milestone.ID,
		Description: fmt.Sprintf("Completed milestone %q", milestone.Title),
		PermitID:    &permitID,
	})
	recipients, err := f.threadRecipients(ctx, permitID, actorID)
	if err != nil {
		f.logger.WithError(err).WithField("permit_id", permitID).
			Warn("failed to resolve milestone recipients")
	} else {
		f.notify(notifications.Notification{
			Kind:       notifications.KindMilestoneCompleted,
			PermitID:   permitID,
			EntityID:   milestone.ID,
			ActorName:  actorName,
			Recipients: recipients,
		})
	}
	f.observeMutation(ctx, OpMilestoneComplete, started)
	return milestone, nil
}

// DeleteMilestone removes a milestone without renumbering the rest
func (f *Facade) DeleteMilestone(ctx context.Context, actorID, permitID, milestoneID int64) error {
	started := time.Now()
	if _, err := f.require(ctx, OpMilestoneDelete, permitID, actorID); err != nil {
		return err
	}

	if err := f.sequencer.Delete(ctx, permitID, milestoneID); err != nil {
		return err
	}

	f.record(ctx, audit.Entry{
		ActorUserID: actorID,
		Action:      audit.ActionMilestoneDeleted,
		EntityType:  audit.EntityTypeMilestone,
		EntityID:    milestoneID,
		Description: "Deleted milestone",
		PermitID:    &permitID,
	})
	f.observeMutation(ctx, OpMilestoneDelete, started)
	return nil
}

// ListDocuments returns a permit's documents to an actor who may read it
func (f *Facade) ListDocuments(ctx context.Context, actorID, permitID int64) ([]*documents.Document, error) {
	if _, err := f.requireRead(ctx, permitID, actorID); err != nil {
		return nil, err
	}
	return f.documents.List(ctx, permitID)
}

// OpenDocument streams a document to an actor who may read the permit
func (f *Facade) OpenDocument(ctx context.Context, actorID, permitID, documentID int64) (*documents.Document, io.ReadCloser, error) {
	if _, err := f.requireRead(ctx, permitID, actorID); err != nil {
		return nil, nil, err
	}
	return f.documents.Open(ctx, permitID, documentID)
}

// UploadDocument stores a file on the permit
func (f *Facade) UploadDocument(ctx context.Context, actorID, permitID int64, fileName, contentType string, isPhoto bool, content io.Reader) (*documents.Document, error) {
	started := time.Now()
	if _, err := f.require(ctx, OpDocumentUpload, permitID, actorID); err != nil {
		return nil, err
	}

	if f.limits.MaxDocumentsPerPermit != entitlements.Unlimited {
		count, err := f.documents.Count(ctx, permitID)
		if err != nil {
			return nil, err
		}
		if !entitlements.Allows(f.limits.MaxDocumentsPerPermit, count) {
			return nil, apperrors.Validation("plan", "document limit reached for plan")
		}
	}

	if f.limits.MaxStorageBytes != entitlements.Unlimited {
		used, err := f.documents.StorageUsed(ctx, permitID)
		if err != nil {
			return nil, err
		}
		if !entitlements.AllowsBytes(f.limits.MaxStorageBytes, used) {
			return nil, apperrors.Validation("plan", "storage limit reached for plan")
		}
	}

	doc, err := f.documents.Upload(ctx, permitID, actorID, fileName, contentType, isPhoto, content)
	if err != nil {
		return nil, err
	}

	f.record(ctx, audit.Entry{
		ActorUserID: actorID,
		Action:      audit.ActionDocumentUploaded,
		EntityType:  audit.EntityTypeDocument,
		EntityID:    doc.ID,
		Description: fmt.Sprintf("Uploaded %q", doc.FileName),
		PermitID:    &permitID,
		Metadata:    map[string]interface{}{"file_name": doc.FileName, "size_bytes": doc.SizeBytes},
	})
	f.observeMutation(ctx, OpDocumentUpload, started)
	return doc, nil
}

// DeleteDocument removes a document from the permit
func (f *Facade) DeleteDocument(ctx context.Context, actorID, permitID, documentID int64) error {
	started := time.Now()
	if _, err := f.require(ctx, OpDocumentDelete, permitID, actorID); err != nil {
		return err
	}

	doc, err := f.documents.Delete(ctx, permitID, documentID)
	if err != nil {
		return err
	}

	f.record(ctx, audit.Entry{
		ActorUserID: actorID,
		Action:      audit.ActionDocumentDeleted,
		EntityType:  audit.EntityTypeDocument,
		EntityID:    doc.ID,
		Description: fmt.Sprintf("Deleted %q", doc.FileName),
		PermitID:    &permitID,
	})
	f.observeMutation(ctx, OpDocumentDelete, started)
	return nil
}

// SharePhoto shares a photo document with other users on the permit. The
// actor needs only read; every recipient must be the creator or a party,
// checked before anything is recorded or sent.
func (f *Facade) SharePhoto(ctx context.Context, actorID int64, actorName string, permitID, documentID int64, recipients []int64, message string) error {
	started := time.Now()
	if _, err := f.require(ctx, OpPhotoShare, permitID, actorID); err != nil {
		return err
	}

	if len(recipients) == 0 {
		return apperrors.Validation("recipients", "at least one recipient is required")
	}

	doc, err := f.documents.Get(ctx, permitID, documentID)
	if err != nil {
		return err
	}
	if !doc.IsPhoto {
		return apperrors.Validation("document_id", "document is not a photo")
	}

	permit, err := f.permits.Get(ctx, permitID)
	if err != nil {
		return err
	}
	parties, err := f.permits.ListParties(ctx, permitID)
	if err != nil {
		return err
	}

	allowed := make(map[int64]bool, len(parties)+1)
	allowed[permit.CreatorID] = true
	for _, party := range parties {
		allowed[party.UserID] = true
	}
	for _, recipient := range recipients {
		if !allowed[recipient] {
			return apperrors.Validation("recipients", fmt.Sprintf("user %d is not associated with this permit", recipient))
		}
	}

	f.record(ctx, audit.Entry{
		ActorUserID: actorID,
		Action:      audit.ActionPhotoShared,
		EntityType:  audit.EntityTypeDocument,
		EntityID:    doc.ID,
		Description: fmt.Sprintf("Shared photo %q with %d recipients", doc.FileName, len(recipients)),
		PermitID:    &permitID,
		Metadata:    map[string]interface{}{"recipients": len(recipients)},
	})
	f.notify(notifications.Notification{
		Kind:       notifications.KindPhotoShared,
		PermitID:   permitID,
		EntityID:   doc.ID,
		ActorName:  actorName,
		Recipients: recipients,
		Message:    message,
	})
	f.observeMutation(ctx, OpPhotoShare, started)
	return nil
}

// ListMessages returns the permit thread to an actor who may read it
func (f *Facade) ListMessages(ctx context.Context, actorID, permitID int64, limit, offset int) ([]*messages.Message, error) {
	if _, err := f.requireRead(ctx, permitID, actorID); err != nil {
		return nil, err
	}
	return f.messages.List(ctx, permitID, limit, offset)
}

// SendMessage posts to the permit thread and notifies the other parties
func (f *Facade) SendMessage(ctx context.Context, actorID int64, actorName string, permitID int64, body string) (*messages.Message, error) {
	started := time.Now()
	if _, err := f.require(ctx, OpMessageSend, permitID, actorID); err != nil {
		return nil, err
	}

	message, err := f.messages.Send(ctx, permitID, actorID, body)
	if err != nil {
		return nil, err
	}

	f.record(ctx, audit.Entry{
		ActorUserID: actorID,
		Action:      audit.ActionMessageSent,
		EntityType:  audit.EntityTypeMessage,
		EntityID:    message.ID,
		Description: "Sent message",
		PermitID:    &permitID,
	})

	recipients, err := f.threadRecipients(ctx, permitID, actorID)
	if err != nil {
		f.logger.WithError(err).WithField("permit_id", permitID).
			Warn("failed to resolve message recipients")
	} else {
		f.notify(notifications.Notification{
			Kind:       notifications.KindMessageSent,
			PermitID:   permitID,
			EntityID:   message.ID,
			ActorName:  actorName,
			Recipients: recipients,
		})
	}

	f.observeMutation(ctx, OpMessageSend, started)
	return message, nil
}

// threadRecipients is everyone on the permit except the actor
func (f *Facade) threadRecipients(ctx context.Context, permitID, actorID int64) ([]int64, error) {
	permit, err := f.permits.Get(ctx, permitID)
	if err != nil {
		return nil, err
	}
	parties, err := f.permits.ListParties(ctx, permitID)
	if err != nil {
		return nil, err
	}

	seen := map[int64]bool{actorID: true}
	recipients := make([]int64, 0, len(parties)+1)
	if !seen[permit.CreatorID] {
		seen[permit.CreatorID] = true
		recipients = append(recipients, permit.CreatorID)
	}
	for _, party := range parties {
		if !seen[party.UserID] {
			seen[party.UserID] = true
			recipients = append(recipients, party.UserID)
		}
	}
	return recipients, nil
}

// inspectionRecipients is the permit thread plus the assigned inspector,
// who may not hold a party row.
func (f *Facade) inspectionRecipients(ctx context.Context, permitID, actorID int64, inspectorID *int64) ([]int64, error) {
	recipients, err := f.threadRecipients(ctx, permitID, actorID)
	if err != nil {
		return nil, err
	}
	if inspectorID == nil || *inspectorID == actorID {
		return recipients, nil
	}
	for _, id := range recipients {
		if id == *inspectorID {
			return recipients, nil
		}
	}
	return append(recipients, *inspectorID), nil
}

// ListInspections returns a permit's inspections to an actor who may read it
func (f *Facade) ListInspections(ctx context.Context, actorID, permitID int64) ([]*inspections.Inspection, error) {
	if _, err := f.requireRead(ctx, permitID, actorID); err != nil {
		return nil, err
	}
	return f.inspections.List(ctx, permitID)
}

// ScheduleInspection creates an inspection on the permit
func (f *Facade) ScheduleInspection(ctx context.Context, actorID, permitID int64, input inspections.ScheduleInput) (*inspections.Inspection, error) {
	started := time.Now()
	if _, err := f.require(ctx, OpInspectionSchedule, permitID, actorID); err != nil {
		return nil, err
	}

	inspection, err := f.inspections.Schedule(ctx, permitID, input)
	if err != nil {
		return nil, err
	}

	f.record(ctx, audit.Entry{
		ActorUserID: actorID,
		Action:      audit.ActionInspectionScheduled,
		EntityType:  audit.EntityTypeInspection,
		EntityID:    inspection.ID,
		Description: fmt.Sprintf("Scheduled inspection for %s", inspection.ScheduledFor.Format("2006-01-02")),
		PermitID:    &permitID,
	})
	f.notifyInspectionChanged(ctx, permitID, actorID, inspection)
	f.observeMutation(ctx, OpInspectionSchedule, started)
	return inspection, nil
}

// UpdateInspection changes an inspection's schedule, result or notes
func (f *Facade) UpdateInspection(ctx context.Context, actorID, permitID, inspectionID int64, input inspections.UpdateInput) (*inspections.Inspection, error) {
	started := time.Now()
	if _, err := f.require(ctx, OpInspectionUpdate, permitID, actorID); err != nil {
		return nil, err
	}

	inspection, err := f.inspections.Update(ctx, permitID, inspectionID, input)
	if err != nil {
		return nil, err
	}

	f.record(ctx, audit.Entry{
		ActorUserID: actorID,
		Action:      audit.ActionInspectionUpdated,
		EntityType:  audit.EntityTypeInspection,
		EntityID:    inspection.ID,
		Description: "Updated inspection",
		PermitID:    &permitID,
	})
	f.notifyInspectionChanged(ctx, permitID, actorID, inspection)
	f.observeMutation(ctx, OpInspectionUpdate, started)
	return inspection, nil
}

func (f *Facade) notifyInspectionChanged(ctx context.Context, permitID, actorID int64, inspection *inspections.Inspection) {
	recipients, err := f.inspectionRecipients(ctx, permitID, actorID, inspection.InspectorUserID)
	if err != nil {
		f.logger.WithError(err).WithField("permit_id", permitID).
			Warn("failed to resolve inspection recipients")
		return
	}
	f.notify(notifications.Notification{
		Kind:       notifications.KindInspectionChanged,
		PermitID:   permitID,
		EntityID:   inspection.ID,
		Recipients: recipients,
	})
}

// ActivityFeed returns one page of the permit's trail to an actor who may
// read it
func (f *Facade) ActivityFeed(ctx context.Context, actorID, permitID int64, page, pageSize int) (*audit.FeedPage, error) {
	if _, err := f.requireRead(ctx, permitID, actorID); err != nil {
		return nil, err
	}
	return f.feed.Feed(ctx, permitID, page, pageSize)
}

// ListTemplates returns workflow templates; not permit-scoped, any
// authenticated user may browse them.
func (f *Facade) ListTemplates(ctx context.Context, permitType *string) ([]*workflow.Template, error) {
	return f.templates.List(ctx, permitType)
}

// CreateTemplate creates a non-default workflow template
func (f *Facade) CreateTemplate(ctx context.Context, actorID int64, name, description string, permitType *string, steps []workflow.Step) (*workflow.Template, error) {
	template, err := f.templates.Create(ctx, name, description, permitType, steps)
	if err != nil {
		return nil, err
	}

	f.record(ctx, audit.Entry{
		ActorUserID: actorID,
		Action:      audit.ActionTemplateCreated,
		EntityType:  audit.EntityTypeTemplate,
		EntityID:    template.ID,
		Description: fmt.Sprintf("Created workflow template %q", template.Name),
	})
	return template, nil
}
