package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/permitdesk/permitdesk/pkg/apperrors"
)

func newTestSequencer(t *testing.T) (*Sequencer, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSequencer(db), mock
}

func milestoneRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "permit_id", "title", "description", "due_date",
		"sort_order", "completed_at", "created_at",
	})
}

func TestMilestoneList_OrderedBySortOrder(t *testing.T) {
	sequencer, mock := newTestSequencer(t)

	now := time.Now()
	mock.ExpectQuery("ORDER BY sort_order ASC, id ASC").
		WithArgs(int64(1)).
		WillReturnRows(milestoneRows().
			AddRow(int64(10), int64(1), "Intake", "", nil, 1, nil, now).
			AddRow(int64(11), int64(1), "Plan review", "", nil, 2, nil, now).
			AddRow(int64(13), int64(1), "Final inspection", "", nil, 5, nil, now))

	milestones, err := sequencer.List(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, milestones, 3)
	// Sparse sort orders survive as-is
	assert.Equal(t, []int{1, 2, 5}, []int{
		milestones[0].SortOrder, milestones[1].SortOrder, milestones[2].SortOrder,
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMilestoneCreate_AppendsAfterMax(t *testing.T) {
	sequencer, mock := newTestSequencer(t)

	mock.ExpectQuery(`SELECT \$1, \$2, \$3, \$4, COALESCE\(MAX\(sort_order\), 0\) \+ 1`).
		WithArgs(int64(1), "Plan review", "", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sort_order", "created_at"}).
			AddRow(int64(12), 4, time.Now()))

	milestone, err := sequencer.Create(context.Background(), 1, CreateMilestoneInput{
		Title: "Plan review",
	})
	require.NoError(t, err)

	assert.Equal(t, int64(12), milestone.ID)
	assert.Equal(t, 4, milestone.SortOrder)
	assert.Nil(t, milestone.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMilestoneCreate_ExplicitSortOrder(t *testing.T) {
	sequencer, mock := newTestSequencer(t)

	order := 7
	mock.ExpectQuery("INSERT INTO milestones").
		WithArgs(int64(1), "Reorder me", "", nil, 7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "sort_order", "created_at"}).
			AddRow(int64(15), 7, time.Now()))

	milestone, err := sequencer.Create(context.Background(), 1, CreateMilestoneInput{
		Title:     "Reorder me",
		SortOrder: &order,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, milestone.SortOrder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMilestoneCreate_RequiresTitle(t *testing.T) {
	sequencer, _ := newTestSequencer(t)

	_, err := sequencer.Create(context.Background(), 1, CreateMilestoneInput{})
	ve, ok := apperrors.AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "title", ve.Field)
}

func TestApplyTemplate_SequentialSortOrders(t *testing.T) {
	sequencer, mock := newTestSequencer(t)

	offset := 14
	template := &Template{
		ID:   2,
		Name: "Standard Building",
		Steps: []Step{
			{Title: "Submit plans"},
			{Title: "Plan review", DueOffsetDays: &offset},
			{Title: "Final inspection"},
		},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(sort_order\), 0\) FROM milestones`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))

	now := time.Now()
	for i := 1; i <= 3; i++ {
		mock.ExpectQuery("INSERT INTO milestones").
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
				AddRow(int64(100+i), now))
	}
	mock.ExpectCommit()

	milestones, err := sequencer.ApplyTemplate(context.Background(), 1, template)
	require.NoError(t, err)

	require.Len(t, milestones, 3)
	assert.Equal(t, 1, milestones[0].SortOrder)
	assert.Equal(t, 2, milestones[1].SortOrder)
	assert.Equal(t, 3, milestones[2].SortOrder)
	assert.Nil(t, milestones[0].CompletedAt)
	assert.Nil(t, milestones[0].DueDate)
	require.NotNil(t, milestones[1].DueDate)
	assert.WithinDuration(t, time.Now().UTC().AddDate(0, 0, 14), *milestones[1].DueDate, time.Minute)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTemplate_AppendsAfterExisting(t *testing.T) {
	sequencer, mock := newTestSequencer(t)

	template := &Template{Steps: []Step{{Title: "Extra step"}}}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(sort_order\), 0\) FROM milestones`).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(5))
	mock.ExpectQuery("INSERT INTO milestones").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(200), time.Now()))
	mock.ExpectCommit()

	milestones, err := sequencer.ApplyTemplate(context.Background(), 1, template)
	require.NoError(t, err)
	require.Len(t, milestones, 1)
	assert.Equal(t, 6, milestones[0].SortOrder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyTemplate_EmptyTemplate(t *testing.T) {
	sequencer, _ := newTestSequencer(t)

	_, err := sequencer.ApplyTemplate(context.Background(), 1, &Template{})
	assert.True(t, apperrors.IsValidation(err))
}

func TestComplete_FirstCallTransitions(t *testing.T) {
	sequencer, mock := newTestSequencer(t)

	completedAt := time.Now()
	mock.ExpectExec("SET completed_at = NOW\\(\\)").
		WithArgs(int64(10), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM milestones").
		WithArgs(int64(10), int64(1)).
		WillReturnRows(milestoneRows().
			AddRow(int64(10), int64(1), "Intake", "", nil, 1, &completedAt, time.Now()))

	milestone, transitioned, err := sequencer.Complete(context.Background(), 1, 10)
	require.NoError(t, err)

	assert.True(t, transitioned)
	assert.True(t, milestone.Completed())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplete_Idempotent(t *testing.T) {
	sequencer, mock := newTestSequencer(t)

	// Second completion matches no row; the original completed_at survives.
	original := time.Now().Add(-time.Hour)
	mock.ExpectExec("SET completed_at = NOW\\(\\)").
		WithArgs(int64(10), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM milestones").
		WithArgs(int64(10), int64(1)).
		WillReturnRows(milestoneRows().
			AddRow(int64(10), int64(1), "Intake", "", nil, 1, &original, time.Now()))

	milestone, transitioned, err := sequencer.Complete(context.Background(), 1, 10)
	require.NoError(t, err)

	assert.False(t, transitioned)
	require.NotNil(t, milestone.CompletedAt)
	assert.Equal(t, original, *milestone.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestComplete_NotFound(t *testing.T) {
	sequencer, mock := newTestSequencer(t)

	mock.ExpectExec("SET completed_at = NOW\\(\\)").
		WithArgs(int64(404), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM milestones").
		WithArgs(int64(404), int64(1)).
		WillReturnRows(milestoneRows())

	_, _, err := sequencer.Complete(context.Background(), 1, 404)
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_NoRenumbering(t *testing.T) {
	sequencer, mock := newTestSequencer(t)

	// A single DELETE and nothing else; surviving sort orders stay sparse.
	mock.ExpectExec("DELETE FROM milestones").
		WithArgs(int64(11), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := sequencer.Delete(context.Background(), 1, 11)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_NotFound(t *testing.T) {
	sequencer, mock := newTestSequencer(t)

	mock.ExpectExec("DELETE FROM milestones").
		WithArgs(int64(404), int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := sequencer.Delete(context.Background(), 1, 404)
	assert.True(t, apperrors.IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
