package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/sma-timetable/internal/models"
)

// TimetableRunRepository persists scheduling runs and their assignments.
type TimetableRunRepository struct {
	db *sqlx.DB
}

// NewTimetableRunRepository constructs repository.
func NewTimetableRunRepository(db *sqlx.DB) *TimetableRunRepository {
	return &TimetableRunRepository{db: db}
}

func (r *TimetableRunRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

type assignmentRow struct {
	RunID string `db:"run_id"`
	models.Assignment
}

// Create inserts a run header.
func (r *TimetableRunRepository) Create(ctx context.Context, exec sqlx.ExtContext, run *models.TimetableRun) error {
	if run == nil {
		return fmt.Errorf("run payload is nil")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Status == "" {
		run.Status = models.TimetableRunStatusCompleted
	}
	if len(run.Meta) == 0 {
		run.Meta = types.JSONText(`{}`)
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	const query = `
INSERT INTO timetable_runs (id, fingerprint, status, borrowed_room_used, attempts, assignment_count, meta, created_at)
VALUES (:id, :fingerprint, :status, :borrowed_room_used, :attempts, :assignment_count, :meta, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, run); err != nil {
		return fmt.Errorf("insert timetable run: %w", err)
	}
	return nil
}

// InsertAssignments stores every assignment of a run.
func (r *TimetableRunRepository) InsertAssignments(ctx context.Context, exec sqlx.ExtContext, runID string, assignments []models.Assignment) error {
	if len(assignments) == 0 {
		return nil
	}
	target := r.exec(exec)

	const query = `
INSERT INTO timetable_assignments (run_id, course_id, name, instructor, enrollment, requires_lab, room_id, room_type, day, start_label, end_label, hours)
VALUES (:run_id, :course_id, :name, :instructor, :enrollment, :requires_lab, :room_id, :room_type, :day, :start_label, :end_label, :hours)`
	for _, assignment := range assignments {
		row := assignmentRow{RunID: runID, Assignment: assignment}
		if _, err := sqlx.NamedExecContext(ctx, target, query, row); err != nil {
			return fmt.Errorf("insert timetable assignment: %w", err)
		}
	}
	return nil
}

// FindByID loads a run header by its identifier.
func (r *TimetableRunRepository) FindByID(ctx context.Context, id string) (*models.TimetableRun, error) {
	const query = `SELECT id, fingerprint, status, borrowed_room_used, attempts, assignment_count, meta, created_at FROM timetable_runs WHERE id = $1`
	var run models.TimetableRun
	if err := r.db.GetContext(ctx, &run, query, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListAssignments returns a run's assignments in weekday and hour order.
func (r *TimetableRunRepository) ListAssignments(ctx context.Context, runID string) ([]models.Assignment, error) {
	const query = `SELECT course_id, name, instructor, enrollment, requires_lab, room_id, room_type, day, start_label, end_label, hours
FROM timetable_assignments WHERE run_id = $1
ORDER BY array_position(ARRAY['Mon','Tue','Wed','Thu','Fri','Sat','Sun'], day), start_label, room_id, name, course_id`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, runID); err != nil {
		return nil, fmt.Errorf("list timetable assignments: %w", err)
	}
	return assignments, nil
}

// ListRecent returns the newest runs first.
func (r *TimetableRunRepository) ListRecent(ctx context.Context, limit int) ([]models.TimetableRun, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT id, fingerprint, status, borrowed_room_used, attempts, assignment_count, meta, created_at
FROM timetable_runs ORDER BY created_at DESC LIMIT $1`
	var runs []models.TimetableRun
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("list timetable runs: %w", err)
	}
	return runs, nil
}

// UpdateStatus sets the lifecycle status of a run.
func (r *TimetableRunRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableRunStatus) error {
	const query = `UPDATE timetable_runs SET status = $1 WHERE id = $2`
	result, err := r.exec(exec).ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("update timetable run status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable run rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
