package permits

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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

type capturingNotifier struct {
	sent []notifications.Notification
}

func (n *capturingNotifier) Enqueue(notification notifications.Notification) bool {
	n.sent = append(n.sent, notification)
	return true
}

type nullBlobStore struct{}

func (nullBlobStore) Put(ctx context.Context, permitID int64, content io.Reader, contentType string) (string, int64, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return "", 0, err
	}
	return fmt.Sprintf("permits/%d/test", permitID), int64(len(data)), nil
}

func (nullBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (nullBlobStore) Delete(ctx context.Context, key string) error { return nil }

func newTestFacade(t *testing.T) (*Facade, sqlmock.Sqlmock, *capturingNotifier) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	recorder, err := audit.NewRecorder(db, logger, nil)
	require.NoError(t, err)
	templates, err := workflow.NewTemplateStore(db, logger)
	require.NoError(t, err)

	notifier := &capturingNotifier{}
	facade := NewFacade(FacadeConfig{
		Resolver:    access.NewResolver(db, logger, nil),
		Permits:     NewService(db),
		Sequencer:   workflow.NewSequencer(db),
		Templates:   templates,
		Documents:   documents.NewService(db, nullBlobStore{}, logger),
		Messages:    messages.NewService(db),
		Inspections: inspections.NewService(db),
		Recorder:    recorder,
		Feed:        audit.NewStore(db),
		Notifier:    notifier,
		Limits:      entitlements.ForTier(entitlements.TierUnlimited),
		Logger:      logger,
	})
	return facade, mock, notifier
}

func expectResolve(mock sqlmock.Sqlmock, permitID, userID, creatorID int64, role interface{}) {
	mock.ExpectQuery("SELECT p.creator_id, pp.role").
		WithArgs(permitID, userID).
		WillReturnRows(sqlmock.NewRows([]string{"creator_id", "role"}).
			AddRow(creatorID, role))
}

func expectAuditInsert(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("INSERT INTO activity_records").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(int64(99), time.Now()))
}

func TestFacade_DeniedMutationLeavesNoTrace(t *testing.T) {
	facade, mock, notifier := newTestFacade(t)

	// Contractor attempts delete: resolve runs, then nothing else.
	expectResolve(mock, 1, 8, 42, "CONTRACTOR")

	err := facade.DeletePermit(context.Background(), 8, 1)
	assert.True(t, apperrors.IsForbidden(err))
	assert.Empty(t, notifier.sent)
	// No DELETE, no activity insert
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacade_NonMemberDenied(t *testing.T) {
	facade, mock, _ := newTestFacade(t)

	expectResolve(mock, 1, 99, 42, nil)

	_, err := facade.UpdatePermit(context.Background(), 99, 1, UpdatePermitInput{})
	assert.True(t, apperrors.IsForbidden(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacade_MissingPermitIsNotFound(t *testing.T) {
	facade, mock, _ := newTestFacade(t)

	mock.ExpectQuery("SELECT p.creator_id, pp.role").
		WithArgs(int64(123), int64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"creator_id", "role"}))

	_, err := facade.UpdatePermit(context.Background(), 8, 123, UpdatePermitInput{})
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacade_ContractorUploadSucceedsWithRecord(t *testing.T) {
	facade, mock, _ := newTestFacade(t)

	expectResolve(mock, 1, 8, 42, "CONTRACTOR")
	mock.ExpectQuery("INSERT INTO documents").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(int64(5), time.Now()))
	expectAuditInsert(mock)

	doc, err := facade.UploadDocument(context.Background(), 8, 1,
		"foundation.jpg", "image/jpeg", true, strings.NewReader("bytes"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), doc.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacade_AuditFailureDoesNotFailMutation(t *testing.T) {
	facade, mock, _ := newTestFacade(t)

	expectResolve(mock, 1, 42, 42, nil)
	mock.ExpectQuery("UPDATE permits").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "creator_id", "status", "subcode_type", "property_id",
			"address", "description", "created_at", "updated_at",
		}).AddRow(int64(1), int64(42), "submitted", "BUILDING", int64(3),
			nil, nil, time.Now(), time.Now()))
	mock.ExpectQuery("INSERT INTO activity_records").
		WillReturnError(fmt.Errorf("activity store unavailable"))

	status := "submitted"
	permit, err := facade.UpdatePermit(context.Background(), 42, 1, UpdatePermitInput{Status: &status})
	require.NoError(t, err, "mutation must succeed even when the audit write fails")
	assert.Equal(t, StatusSubmitted, permit.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacade_CreatorOverridesLesserStoredRole(t *testing.T) {
	facade, mock, _ := newTestFacade(t)

	// Creator holds a VIEWER membership row; delete still succeeds.
	expectResolve(mock, 1, 42, 42, "VIEWER")
	mock.ExpectExec("DELETE FROM permits").
		WithArgs(int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	expectAuditInsert(mock)

	err := facade.DeletePermit(context.Background(), 42, 1)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacade_AddPartyRecordsAndNotifies(t *testing.T) {
	facade, mock, notifier := newTestFacade(t)

	expectResolve(mock, 1, 42, 42, nil)
	mock.ExpectQuery("INSERT INTO permit_parties").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(int64(6), time.Now()))
	expectAuditInsert(mock)

	party, err := facade.AddParty(context.Background(), 42, 1, 8, access.RoleContractor)
	require.NoError(t, err)

	assert.Equal(t, access.RoleContractor, party.Role)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, notifications.KindPartyAdded, notifier.sent[0].Kind)
	assert.Equal(t, []int64{8}, notifier.sent[0].Recipients)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacade_AddPartyDuplicateConflict(t *testing.T) {
	facade, mock, notifier := newTestFacade(t)

	expectResolve(mock, 1, 42, 42, nil)
	mock.ExpectQuery("INSERT INTO permit_parties").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))

	_, err := facade.AddParty(context.Background(), 42, 1, 8, access.RoleContractor)
	assert.True(t, apperrors.IsConflict(err))
	assert.Empty(t, notifier.sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacade_CompleteMilestoneOnlyRecordsTransition(t *testing.T) {
	facade, mock, notifier := newTestFacade(t)

	completedAt := time.Now().Add(-time.Hour).UTC()
	milestoneRow := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{
			"id", "permit_id", "title", "description", "due_date",
			"sort_order", "completed_at", "created_at",
		}).AddRow(int64(10), int64(1), "Intake", "", nil, 1, completedAt, time.Now())
	}

	// First completion transitions, records and notifies the other parties.
	expectResolve(mock, 1, 42, 42, nil)
	mock.ExpectExec("SET completed_at = NOW\\(\\)").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM milestones").
		WillReturnRows(milestoneRow())
	expectAuditInsert(mock)
	mock.ExpectQuery("FROM permits WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "creator_id", "status", "subcode_type", "property_id",
			"address", "description", "created_at", "updated_at",
		}).AddRow(int64(1), int64(42), "draft", "BUILDING", int64(3),
			nil, nil, time.Now(), time.Now()))
	mock.ExpectQuery("FROM permit_parties").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "permit_id", "user_id", "role", "invited_by", "created_at",
		}).AddRow(int64(6), int64(1), int64(8), "CONTRACTOR", nil, time.Now()))

	_, err := facade.CompleteMilestone(context.Background(), 42, "Dana", 1, 10)
	require.NoError(t, err)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, notifications.KindMilestoneCompleted, notifier.sent[0].Kind)
	assert.Equal(t, []int64{8}, notifier.sent[0].Recipients,
		"completion must reach the permit's other parties")

	// Second completion is a no-op: no record, no notification.
	expectResolve(mock, 1, 42, 42, nil)
	mock.ExpectExec("SET completed_at = NOW\\(\\)").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM milestones").
		WillReturnRows(milestoneRow())

	milestone, err := facade.CompleteMilestone(context.Background(), 42, "Dana", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, completedAt, *milestone.CompletedAt)
	assert.Len(t, notifier.sent, 1, "idempotent completion must not notify again")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacade_SharePhotoValidatesRecipients(t *testing.T) {
	facade, mock, notifier := newTestFacade(t)

	expectResolve(mock, 1, 8, 42, "CONTRACTOR")
	mock.ExpectQuery("FROM documents").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "permit_id", "uploader_id", "file_name", "content_type",
			"size_bytes", "blob_key", "is_photo", "created_at",
		}).AddRow(int64(5), int64(1), int64(8), "roof.jpg", "image/jpeg",
			int64(1), "k", true, time.Now()))
	mock.ExpectQuery("FROM permits WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "creator_id", "status", "subcode_type", "property_id",
			"address", "description", "created_at", "updated_at",
		}).AddRow(int64(1), int64(42), "draft", "BUILDING", int64(3),
			nil, nil, time.Now(), time.Now()))
	mock.ExpectQuery("FROM permit_parties").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "permit_id", "user_id", "role", "invited_by", "created_at",
		}).AddRow(int64(6), int64(1), int64(8), "CONTRACTOR", nil, time.Now()))

	// User 77 is neither creator nor party.
	err := facade.SharePhoto(context.Background(), 8, "Dana", 1, 5, []int64{42, 77}, "look")
	ve, ok := apperrors.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "recipients", ve.Field)
	assert.Empty(t, notifier.sent, "invalid share must not notify")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacade_SharePhotoSucceeds(t *testing.T) {
	facade, mock, notifier := newTestFacade(t)

	expectResolve(mock, 1, 8, 42, "CONTRACTOR")
	mock.ExpectQuery("FROM documents").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "permit_id", "uploader_id", "file_name", "content_type",
			"size_bytes", "blob_key", "is_photo", "created_at",
		}).AddRow(int64(5), int64(1), int64(8), "roof.jpg", "image/jpeg",
			int64(1), "k", true, time.Now()))
	mock.ExpectQuery("FROM permits WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "creator_id", "status", "subcode_type", "property_id",
			"address", "description", "created_at", "updated_at",
		}).AddRow(int64(1), int64(42), "draft", "BUILDING", int64(3),
			nil, nil, time.Now(), time.Now()))
	mock.ExpectQuery("FROM permit_parties").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "permit_id", "user_id", "role", "invited_by", "created_at",
		}).AddRow(int64(6), int64(1), int64(8), "CONTRACTOR", nil, time.Now()))
	expectAuditInsert(mock)

	err := facade.SharePhoto(context.Background(), 8, "Dana", 1, 5, []int64{42}, "look")
	require.NoError(t, err)
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, notifications.KindPhotoShared, notifier.sent[0].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacade_SendMessageNotifiesOtherParties(t *testing.T) {
	facade, mock, notifier := newTestFacade(t)

	expectResolve(mock, 1, 8, 42, "CONTRACTOR")
	mock.ExpectQuery("INSERT INTO messages").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(int64(4), time.Now()))
	expectAuditInsert(mock)
	mock.ExpectQuery("FROM permits WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "creator_id", "status", "subcode_type", "property_id",
			"address", "description", "created_at", "updated_at",
		}).AddRow(int64(1), int64(42), "draft", "BUILDING", int64(3),
			nil, nil, time.Now(), time.Now()))
	mock.ExpectQuery("FROM permit_parties").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "permit_id", "user_id", "role", "invited_by", "created_at",
		}).
			AddRow(int64(6), int64(1), int64(8), "CONTRACTOR", nil, time.Now()).
			AddRow(int64(7), int64(1), int64(12), "INSPECTOR", nil, time.Now()))

	_, err := facade.SendMessage(context.Background(), 8, "Dana", 1, "update please")
	require.NoError(t, err)

	require.Len(t, notifier.sent, 1)
	// Creator and the inspector, never the sender.
	assert.ElementsMatch(t, []int64{42, 12}, notifier.sent[0].Recipients)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacade_ViewerCannotSendMessage(t *testing.T) {
	facade, mock, _ := newTestFacade(t)

	expectResolve(mock, 1, 9, 42, "VIEWER")

	_, err := facade.SendMessage(context.Background(), 9, "Sam", 1, "hello")
	assert.True(t, apperrors.IsForbidden(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacade_CreatePermitEnforcesPlanLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	recorder, err := audit.NewRecorder(db, logger, nil)
	require.NoError(t, err)

	facade := NewFacade(FacadeConfig{
		Resolver: access.NewResolver(db, logger, nil),
		Permits:  NewService(db),
		Recorder: recorder,
		Limits:   entitlements.ForTier(entitlements.TierFree),
		Logger:   logger,
	})

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM permits").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	_, err = facade.CreatePermit(context.Background(), 42, CreatePermitInput{
		SubcodeType: "BUILDING",
		PropertyID:  3,
	})
	assert.True(t, apperrors.IsValidation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacade_UploadEnforcesStorageLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	recorder, err := audit.NewRecorder(db, logger, nil)
	require.NoError(t, err)

	facade := NewFacade(FacadeConfig{
		Resolver:  access.NewResolver(db, logger, nil),
		Documents: documents.NewService(db, nullBlobStore{}, logger),
		Recorder:  recorder,
		Limits:    entitlements.ForTier(entitlements.TierFree),
		Logger:    logger,
	})

	expectResolve(mock, 1, 42, 42, nil)
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM documents").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(size_bytes\\), 0\\) FROM documents").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(100 << 20)))

	_, err = facade.UploadDocument(context.Background(), 42, 1,
		"drawings.pdf", "application/pdf", false, strings.NewReader("bytes"))
	ve, ok := apperrors.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "plan", ve.Field)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacade_InspectorCanManageInspections(t *testing.T) {
	facade, mock, notifier := newTestFacade(t)

	now := time.Now()
	expectResolve(mock, 1, 12, 42, "INSPECTOR")
	mock.ExpectQuery("INSERT INTO inspections").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(2), now, now))
	expectAuditInsert(mock)
	mock.ExpectQuery("FROM permits WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "creator_id", "status", "subcode_type", "property_id",
			"address", "description", "created_at", "updated_at",
		}).AddRow(int64(1), int64(42), "draft", "BUILDING", int64(3),
			nil, nil, time.Now(), time.Now()))
	mock.ExpectQuery("FROM permit_parties").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "permit_id", "user_id", "role", "invited_by", "created_at",
		}).AddRow(int64(7), int64(1), int64(12), "INSPECTOR", nil, time.Now()))

	inspection, err := facade.ScheduleInspection(context.Background(), 12, 1, inspections.ScheduleInput{
		ScheduledFor: now.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), inspection.ID)

	// The creator hears about it, the scheduling inspector does not.
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, notifications.KindInspectionChanged, notifier.sent[0].Kind)
	assert.Equal(t, []int64{42}, notifier.sent[0].Recipients)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacade_UpdateInspectionNotifiesAssignedInspector(t *testing.T) {
	facade, mock, notifier := newTestFacade(t)

	now := time.Now()
	inspectorID := int64(77)
	expectResolve(mock, 1, 42, 42, nil)
	mock.ExpectQuery("UPDATE inspections").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "permit_id", "inspector_user_id", "scheduled_for", "result",
			"notes", "created_at", "updated_at",
		}).AddRow(int64(2), int64(1), inspectorID, now.Add(24*time.Hour),
			nil, "", now, now))
	expectAuditInsert(mock)
	mock.ExpectQuery("FROM permits WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "creator_id", "status", "subcode_type", "property_id",
			"address", "description", "created_at", "updated_at",
		}).AddRow(int64(1), int64(42), "draft", "BUILDING", int64(3),
			nil, nil, time.Now(), time.Now()))
	mock.ExpectQuery("FROM permit_parties").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "permit_id", "user_id", "role", "invited_by", "created_at",
		}).AddRow(int64(6), int64(1), int64(8), "CONTRACTOR", nil, time.Now()))

	rescheduled := now.Add(24 * time.Hour)
	_, err := facade.UpdateInspection(context.Background(), 42, 1, 2, inspections.UpdateInput{
		ScheduledFor: &rescheduled,
	})
	require.NoError(t, err)

	// Assigned inspector 77 holds no party row but is still notified.
	require.Len(t, notifier.sent, 1)
	assert.Equal(t, notifications.KindInspectionChanged, notifier.sent[0].Kind)
	assert.ElementsMatch(t, []int64{8, 77}, notifier.sent[0].Recipients)
	assert.NoError(t, mock.ExpectationsWereMet())
}
