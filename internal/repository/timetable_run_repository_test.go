package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/models"
)

func newTimetableRunRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTimetableRunRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newTimetableRunRepoMock(t)
	defer cleanup()
	repo := NewTimetableRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_runs")).
		WithArgs(sqlmock.AnyArg(), "fp-1", string(models.TimetableRunStatusCompleted), true, 2, 3, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	run := &models.TimetableRun{Fingerprint: "fp-1", BorrowedRoomUsed: true, Attempts: 2, AssignmentCount: 3}
	require.NoError(t, repo.Create(context.Background(), nil, run))
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, types.JSONText(`{}`), run.Meta)
	assert.False(t, run.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRunRepositoryInsertAssignments(t *testing.T) {
	db, mock, cleanup := newTimetableRunRepoMock(t)
	defer cleanup()
	repo := NewTimetableRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_assignments")).
		WithArgs("run-1", "CS101", "Data Structures", "Kim", 40, false, "1215", "lecture", "Mon", "09:00", "10:00", 1).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_assignments")).
		WithArgs("run-1", "CS102", "OS Lab", "Lee", 20, true, "1217", "lab", "Mon", "09:00", "10:00", 1).
		WillReturnResult(sqlmock.NewResult(1, 1))

	assignments := []models.Assignment{
		{CourseID: "CS101", Name: "Data Structures", Instructor: "Kim", Enrollment: 40, RoomID: "1215", RoomType: models.RoomTypeLecture, Day: models.Monday, Start: "09:00", End: "10:00", Hours: 1},
		{CourseID: "CS102", Name: "OS Lab", Instructor: "Lee", Enrollment: 20, RequiresLab: true, RoomID: "1217", RoomType: models.RoomTypeLab, Day: models.Monday, Start: "09:00", End: "10:00", Hours: 1},
	}
	require.NoError(t, repo.InsertAssignments(context.Background(), nil, "run-1", assignments))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRunRepositoryInsertAssignmentsInTransaction(t *testing.T) {
	db, mock, cleanup := newTimetableRunRepoMock(t)
	defer cleanup()
	repo := NewTimetableRunRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_runs")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_assignments")).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	run := &models.TimetableRun{ID: "run-1", Fingerprint: "fp", Attempts: 1, AssignmentCount: 1}
	require.NoError(t, repo.Create(context.Background(), tx, run))
	require.NoError(t, repo.InsertAssignments(context.Background(), tx, run.ID, []models.Assignment{{CourseID: "A", RoomID: "R", Day: models.Monday, Start: "09:00", End: "10:00", Hours: 1}}))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRunRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newTimetableRunRepoMock(t)
	defer cleanup()
	repo := NewTimetableRunRepository(db)

	created := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "fingerprint", "status", "borrowed_room_used", "attempts", "assignment_count", "meta", "created_at"}).
		AddRow("run-1", "fp", "COMPLETED", false, 1, 10, []byte(`{"start_hour":9}`), created)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, fingerprint, status, borrowed_room_used, attempts, assignment_count, meta, created_at FROM timetable_runs WHERE id = $1")).
		WithArgs("run-1").
		WillReturnRows(rows)

	run, err := repo.FindByID(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.TimetableRunStatusCompleted, run.Status)
	assert.Equal(t, 10, run.AssignmentCount)
	assert.JSONEq(t, `{"start_hour":9}`, string(run.Meta))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRunRepositoryListAssignments(t *testing.T) {
	db, mock, cleanup := newTimetableRunRepoMock(t)
	defer cleanup()
	repo := NewTimetableRunRepository(db)

	rows := sqlmock.NewRows([]string{"course_id", "name", "instructor", "enrollment", "requires_lab", "room_id", "room_type", "day", "start_label", "end_label", "hours"}).
		AddRow("CS102", "OS Lab", "Lee", 20, true, "1217", "lab", "Tue", "10:00", "11:00", 1)
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_assignments WHERE run_id = $1")).
		WithArgs("run-1").
		WillReturnRows(rows)

	assignments, err := repo.ListAssignments(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, models.LabFlag(true), assignments[0].RequiresLab)
	assert.Equal(t, models.Tuesday, assignments[0].Day)
	assert.Equal(t, "10:00", assignments[0].Start)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRunRepositoryListRecentDefaultsLimit(t *testing.T) {
	db, mock, cleanup := newTimetableRunRepoMock(t)
	defer cleanup()
	repo := NewTimetableRunRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_runs ORDER BY created_at DESC LIMIT $1")).
		WithArgs(20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "fingerprint", "status", "borrowed_room_used", "attempts", "assignment_count", "meta", "created_at"}))

	runs, err := repo.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableRunRepositoryUpdateStatusNotFound(t *testing.T) {
	db, mock, cleanup := newTimetableRunRepoMock(t)
	defer cleanup()
	repo := NewTimetableRunRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_runs SET status = $1 WHERE id = $2")).
		WithArgs(string(models.TimetableRunStatusExported), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), nil, "missing", models.TimetableRunStatusExported)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
