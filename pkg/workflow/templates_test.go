package workflow

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/permitdesk/permitdesk/pkg/apperrors"
	"github.com/permitdesk/permitdesk/pkg/observability"
)

func newTestTemplateStore(t *testing.T) (*TemplateStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	store, err := NewTemplateStore(db, logger)
	require.NoError(t, err)
	return store, mock
}

func stepsJSON(t *testing.T, steps []Step) []byte {
	t.Helper()
	b, err := json.Marshal(steps)
	require.NoError(t, err)
	return b
}

func TestTemplateList_DefaultFirstThenName(t *testing.T) {
	store, mock := newTestTemplateStore(t)

	steps := stepsJSON(t, []Step{{Title: "Intake"}})
	now := time.Now()
	permitType := "BUILDING"

	mock.ExpectQuery("ORDER BY is_default DESC, name ASC").
		WithArgs("BUILDING").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "permit_type", "is_default", "steps", "created_at", "updated_at",
		}).
			AddRow(int64(2), "Standard Building", "", &permitType, true, steps, now, now).
			AddRow(int64(1), "Custom Review", "", nil, false, steps, now, now))

	templates, err := store.List(context.Background(), &permitType)
	require.NoError(t, err)

	require.Len(t, templates, 2)
	assert.True(t, templates[0].IsDefault)
	assert.Equal(t, "Standard Building", templates[0].Name)
	assert.Len(t, templates[0].Steps, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateList_AllTypesWhenUnscoped(t *testing.T) {
	store, mock := newTestTemplateStore(t)

	mock.ExpectQuery("SELECT (.+) FROM workflow_templates ORDER BY is_default DESC, name ASC").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "permit_type", "is_default", "steps", "created_at", "updated_at",
		}))

	templates, err := store.List(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, templates)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateCreate_NeverDefault(t *testing.T) {
	store, mock := newTestTemplateStore(t)

	now := time.Now()
	mock.ExpectQuery("INSERT INTO workflow_templates").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(3), now, now))

	permitType := "ELECTRICAL"
	template, err := store.Create(context.Background(), "Electrical Rough-In", "", &permitType, []Step{
		{Title: "Submit plans"},
		{Title: "Schedule inspection"},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), template.ID)
	assert.False(t, template.IsDefault)
	assert.Len(t, template.Steps, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateCreate_Validation(t *testing.T) {
	store, _ := newTestTemplateStore(t)

	tests := []struct {
		name      string
		tplName   string
		steps     []Step
		wantField string
	}{
		{"missing name", "", []Step{{Title: "x"}}, "name"},
		{"empty steps", "T", nil, "steps"},
		{"step without title", "T", []Step{{Title: "a"}, {Description: "no title"}}, "steps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Create(context.Background(), tt.tplName, "", nil, tt.steps)
			ve, ok := apperrors.AsValidation(err)
			require.True(t, ok, "expected validation error, got %v", err)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}

func TestTemplateGet_CachesByID(t *testing.T) {
	store, mock := newTestTemplateStore(t)

	steps := stepsJSON(t, []Step{{Title: "Intake"}})
	now := time.Now()

	// One DB hit serves both reads.
	mock.ExpectQuery("FROM workflow_templates WHERE id").
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "permit_type", "is_default", "steps", "created_at", "updated_at",
		}).AddRow(int64(4), "Standard", "", nil, false, steps, now, now))

	first, err := store.Get(context.Background(), 4)
	require.NoError(t, err)

	second, err := store.Get(context.Background(), 4)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateGet_NotFound(t *testing.T) {
	store, mock := newTestTemplateStore(t)

	mock.ExpectQuery("FROM workflow_templates WHERE id").
		WithArgs(int64(404)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "name", "description", "permit_type", "is_default", "steps", "created_at", "updated_at",
		}))

	_, err := store.Get(context.Background(), 404)
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetDefault_ClearsPreviousDefault(t *testing.T) {
	store, mock := newTestTemplateStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("SET is_default = false").
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET is_default = true").
		WithArgs(int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.SetDefault(context.Background(), 2)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetDefault_NotFound(t *testing.T) {
	store, mock := newTestTemplateStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("SET is_default = false").
		WithArgs(int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("SET is_default = true").
		WithArgs(int64(404)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := store.SetDefault(context.Background(), 404)
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
