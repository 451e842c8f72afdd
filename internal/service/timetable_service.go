package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/scheduler"
	"github.com/noah-isme/sma-timetable/pkg/config"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
)

type timetableRunRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, run *models.TimetableRun) error
	InsertAssignments(ctx context.Context, exec sqlx.ExtContext, runID string, assignments []models.Assignment) error
	FindByID(ctx context.Context, id string) (*models.TimetableRun, error)
	ListAssignments(ctx context.Context, runID string) ([]models.Assignment, error)
	ListRecent(ctx context.Context, limit int) ([]models.TimetableRun, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type exportDispatcher interface {
	Dispatch(result models.TimetableResult) error
}

// TimetableConfig carries the defaults applied to requests that omit optional fields.
type TimetableConfig struct {
	Days            []models.Weekday
	StartHour       int
	EndHour         int
	RespectCapacity bool
	AnchorDate      string
	BorrowedRoomID  string
	ResultTTL       time.Duration
}

// NewTimetableConfig converts the scheduler section of the process config.
func NewTimetableConfig(cfg config.SchedulerConfig) (TimetableConfig, error) {
	days, err := models.ParseWeekdays(cfg.Days)
	if err != nil {
		return TimetableConfig{}, fmt.Errorf("scheduler days: %w", err)
	}
	return TimetableConfig{
		Days:            days,
		StartHour:       cfg.StartHour,
		EndHour:         cfg.EndHour,
		RespectCapacity: cfg.RespectCapacity,
		AnchorDate:      cfg.AnchorDate,
		BorrowedRoomID:  cfg.BorrowedRoomID,
		ResultTTL:       cfg.ResultTTL,
	}, nil
}

// TimetableService runs the allocator and keeps results available for reads and exports.
type TimetableService struct {
	runs      timetableRunRepository
	tx        txProvider
	cache     *CacheService
	metrics   *MetricsService
	exports   exportDispatcher
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TimetableConfig
	store     *resultStore
	now       func() time.Time
}

// NewTimetableService wires the scheduling pipeline. runs and tx may be nil when persistence is disabled.
func NewTimetableService(
	runs timetableRunRepository,
	tx txProvider,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.Days) == 0 {
		cfg.Days = models.DefaultWeek
	}
	if cfg.StartHour == 0 && cfg.EndHour == 0 {
		cfg.StartHour, cfg.EndHour = 9, 21
	}
	if cfg.BorrowedRoomID == "" {
		cfg.BorrowedRoomID = scheduler.DefaultBorrowedRoomID
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &TimetableService{
		runs:      runs,
		tx:        tx,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		store:     newResultStore(cfg.ResultTTL),
		now:       time.Now,
	}
}

// AttachExports sets the dispatcher notified after every fresh run.
func (s *TimetableService) AttachExports(exports exportDispatcher) {
	s.exports = exports
}

type runInput struct {
	rooms   []models.Room
	courses []models.Course
	meta    models.TimetableRunMeta
	grid    *scheduler.Grid
	anchor  time.Time
}

// Assign validates the request, schedules every course and returns the run with its projections.
func (s *TimetableService) Assign(ctx context.Context, req dto.AssignTimetableRequest) (*models.TimetableResult, error) {
	start := s.now()
	input, err := s.prepare(req)
	if err != nil {
		s.metrics.ObserveTimetableRun(RunOutcomeInvalid, time.Since(start))
		return nil, err
	}

	fingerprint, err := fingerprintInput(input)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fingerprint request")
	}
	if hit, ok := s.cache.LookupRun(ctx, fingerprint); ok {
		cached := *hit
		cached.Cached = true
		if s.exports != nil {
			cached.Run.Status = models.TimetableRunStatusExporting
			cached.Exports = nil
		}
		s.store.Save(cached)
		s.metrics.ObserveTimetableRun(RunOutcomeCached, time.Since(start))
		s.logger.Debug("timetable served from cache", zap.String("run_id", cached.Run.ID), zap.String("fingerprint", fingerprint))
		return s.dispatchExports(cached), nil
	}

	result, err := scheduler.Schedule(input.grid, input.rooms, input.courses, scheduler.ReliefOptions{
		Options:        scheduler.Options{RespectCapacity: input.meta.RespectCapacity},
		BorrowedRoomID: input.meta.BorrowedRoomID,
	}, s.logger)
	if err != nil {
		var infeasible *scheduler.InfeasibleError
		if errors.As(err, &infeasible) {
			s.metrics.ObserveTimetableRun(RunOutcomeInfeasible, time.Since(start))
			s.logger.Warn("timetable infeasible", zap.Int("rooms", len(input.rooms)), zap.Int("courses", len(input.courses)), zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrScheduleInfeasible.Code, appErrors.ErrScheduleInfeasible.Status, appErrors.ErrScheduleInfeasible.Message)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "scheduling failed")
	}

	input.meta.Rooms = result.Rooms
	metaJSON, err := json.Marshal(input.meta)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode run meta")
	}

	out := models.TimetableResult{
		Run: models.TimetableRun{
			ID:               uuid.NewString(),
			Fingerprint:      fingerprint,
			Status:           models.TimetableRunStatusCompleted,
			BorrowedRoomUsed: result.BorrowedRoomUsed,
			Attempts:         result.Attempts,
			AssignmentCount:  len(result.Assignments),
			Meta:             types.JSONText(metaJSON),
			CreatedAt:        s.now().UTC(),
		},
		Meta:        input.meta,
		Projections: scheduler.BuildProjections(result, input.grid, input.anchor),
	}

	if err := s.persist(ctx, &out.Run, out.Projections.Assigned); err != nil {
		return nil, err
	}

	if s.exports != nil {
		out.Run.Status = models.TimetableRunStatusExporting
	}
	s.store.Save(out)
	s.cache.StoreRun(ctx, out)

	outcome := RunOutcomeScheduled
	if result.BorrowedRoomUsed {
		outcome = RunOutcomeBorrowed
	}
	s.metrics.ObserveTimetableRun(outcome, time.Since(start))
	s.metrics.SetRoomUtilization(out.Projections.Utilization)

	s.logger.Info("timetable scheduled",
		zap.String("run_id", out.Run.ID),
		zap.Int("assignments", out.Run.AssignmentCount),
		zap.Bool("borrowed_room_used", out.Run.BorrowedRoomUsed),
		zap.Int("attempts", out.Run.Attempts),
	)

	return s.dispatchExports(out), nil
}

// dispatchExports hands a stored result to the export pipeline and returns its latest stored state.
func (s *TimetableService) dispatchExports(result models.TimetableResult) *models.TimetableResult {
	if s.exports == nil {
		return &result
	}
	if err := s.exports.Dispatch(result); err != nil {
		s.logger.Error("failed to dispatch exports", zap.String("run_id", result.Run.ID), zap.Error(err))
		s.SetStatus(result.Run.ID, models.TimetableRunStatusFailed, nil)
	}
	if latest, ok := s.store.Get(result.Run.ID); ok {
		return &latest
	}
	return &result
}

// Get returns a run from memory or, failing that, rebuilds it from the database.
func (s *TimetableService) Get(ctx context.Context, id string) (*models.TimetableResult, error) {
	if result, ok := s.store.Get(id); ok {
		return &result, nil
	}
	if s.runs == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable run not found")
	}

	run, err := s.runs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable run not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable run")
	}
	var meta models.TimetableRunMeta
	if err := run.Meta.Unmarshal(&meta); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "corrupt timetable run meta")
	}
	assignments, err := s.runs.ListAssignments(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	grid, err := scheduler.NewGrid(meta.Days, meta.StartHour, meta.EndHour)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored run has an invalid grid")
	}
	anchor, _ := scheduler.ParseAnchorDate(meta.AnchorDate)

	rebuilt := models.TimetableResult{
		Run:  *run,
		Meta: meta,
		Projections: scheduler.BuildProjections(&scheduler.Result{
			Assignments:      assignments,
			Rooms:            meta.Rooms,
			BorrowedRoomUsed: run.BorrowedRoomUsed,
			Attempts:         run.Attempts,
		}, grid, anchor),
	}
	s.store.Save(rebuilt)
	return &rebuilt, nil
}

// List returns the newest persisted run headers.
func (s *TimetableService) List(ctx context.Context, limit int) ([]models.TimetableRun, error) {
	if s.runs == nil {
		return []models.TimetableRun{}, nil
	}
	runs, err := s.runs.ListRecent(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable runs")
	}
	if runs == nil {
		runs = []models.TimetableRun{}
	}
	return runs, nil
}

// SetStatus records an export lifecycle transition on a stored run.
func (s *TimetableService) SetStatus(id string, status models.TimetableRunStatus, links []models.ExportLink) {
	s.store.Update(id, func(result *models.TimetableResult) {
		result.Run.Status = status
		if links != nil {
			result.Exports = links
		}
	})
}

// PurgeExpired drops results older than the configured TTL from memory.
func (s *TimetableService) PurgeExpired() int {
	return s.store.Purge()
}

func (s *TimetableService) prepare(req dto.AssignTimetableRequest) (*runInput, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}

	rooms := make([]models.Room, 0, len(req.Rooms))
	seenRooms := make(map[string]struct{}, len(req.Rooms))
	for _, room := range req.Rooms {
		room.ID = strings.TrimSpace(room.ID)
		room.Type = models.NormalizeRoomType(string(room.Type))
		if _, dup := seenRooms[room.ID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate room id %q", room.ID))
		}
		seenRooms[room.ID] = struct{}{}
		rooms = append(rooms, room)
	}

	courses := make([]models.Course, 0, len(req.Courses))
	seenCourses := make(map[string]struct{}, len(req.Courses))
	for _, course := range req.Courses {
		course.ID = strings.TrimSpace(course.ID)
		if _, dup := seenCourses[course.ID]; dup {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("duplicate course id %q", course.ID))
		}
		seenCourses[course.ID] = struct{}{}
		courses = append(courses, course)
	}

	days := s.cfg.Days
	if len(req.Days) > 0 {
		parsed, err := models.ParseWeekdays(req.Days)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
		}
		days = parsed
	}
	startHour, endHour := s.cfg.StartHour, s.cfg.EndHour
	if req.StartHour != nil {
		startHour = *req.StartHour
	}
	if req.EndHour != nil {
		endHour = *req.EndHour
	}
	respectCapacity := s.cfg.RespectCapacity
	if req.RespectCapacity != nil {
		respectCapacity = *req.RespectCapacity
	}
	borrowedID := strings.TrimSpace(req.BorrowedRoomID)
	if borrowedID == "" {
		borrowedID = s.cfg.BorrowedRoomID
	}

	grid, err := scheduler.NewGrid(days, startHour, endHour)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	anchorRaw := req.AnchorDate
	if anchorRaw == "" {
		anchorRaw = s.cfg.AnchorDate
	}
	anchor, ok := scheduler.ParseAnchorDate(anchorRaw)
	if !ok && anchorRaw != "" {
		s.logger.Warn("invalid anchor date, using default", zap.String("anchor_date", anchorRaw))
	}

	return &runInput{
		rooms:   rooms,
		courses: courses,
		grid:    grid,
		anchor:  anchor,
		meta: models.TimetableRunMeta{
			Days:            grid.Days(),
			StartHour:       grid.StartHour(),
			EndHour:         grid.EndHour(),
			RespectCapacity: respectCapacity,
			AnchorDate:      anchor.Format("2006-01-02"),
			BorrowedRoomID:  borrowedID,
		},
	}, nil
}

// persist writes the run and its assignments in one transaction when a database is configured.
func (s *TimetableService) persist(ctx context.Context, run *models.TimetableRun, assignments []models.Assignment) (err error) {
	if s.runs == nil || s.tx == nil {
		return nil
	}
	start := time.Now()
	defer func() { s.metrics.ObserveDBQuery("timetable_run_persist", time.Since(start)) }()

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.runs.Create(ctx, tx, run); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable run")
	}
	if err = s.runs.InsertAssignments(ctx, tx, run.ID, assignments); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist assignments")
	}
	if err = tx.Commit(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable run")
	}
	return nil
}

type fingerprintPayload struct {
	Rooms   []models.Room           `json:"rooms"`
	Courses []models.Course         `json:"courses"`
	Meta    models.TimetableRunMeta `json:"meta"`
}

// fingerprintInput hashes the normalized inputs; identical requests share a fingerprint.
func fingerprintInput(input *runInput) (string, error) {
	payload, err := json.Marshal(fingerprintPayload{Rooms: input.rooms, Courses: input.courses, Meta: input.meta})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}
