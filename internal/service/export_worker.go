package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
)

// ExportJobType tags queue jobs that render a run's artifacts.
const ExportJobType = "timetable_export"

// Export job outcomes reported to metrics.
const (
	ExportJobSucceeded = "succeeded"
	ExportJobFailed    = "failed"
)

type artifactRenderer interface {
	Render(ctx context.Context, result models.TimetableResult) ([]models.ExportLink, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type runStatusSink interface {
	SetStatus(id string, status models.TimetableRunStatus, links []models.ExportLink)
}

type runStatusUpdater interface {
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableRunStatus) error
}

type exportState struct {
	status models.TimetableRunStatus
	links  []models.ExportLink
	err    string
}

// ExportWorker bridges finished runs to ExportService, either inline or through a job queue.
type ExportWorker struct {
	exporter artifactRenderer
	queue    jobEnqueuer
	sink     runStatusSink
	runs     runStatusUpdater
	metrics  *MetricsService
	logger   *zap.Logger

	mu     sync.RWMutex
	states map[string]exportState
}

// NewExportWorker constructs a worker. sink and runs are optional.
func NewExportWorker(exporter artifactRenderer, sink runStatusSink, runs runStatusUpdater, metrics *MetricsService, logger *zap.Logger) *ExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportWorker{
		exporter: exporter,
		sink:     sink,
		runs:     runs,
		metrics:  metrics,
		logger:   logger,
		states:   make(map[string]exportState),
	}
}

// AttachQueue switches Dispatch to asynchronous mode.
func (w *ExportWorker) AttachQueue(queue jobEnqueuer) {
	w.queue = queue
}

// Dispatch schedules rendering for result. Without a queue the artifacts are rendered before it returns.
func (w *ExportWorker) Dispatch(result models.TimetableResult) error {
	id := result.Run.ID
	w.setState(id, exportState{status: models.TimetableRunStatusExporting})
	if w.queue == nil {
		return w.Handle(context.Background(), jobs.Job{ID: id, Type: ExportJobType, Payload: result})
	}
	if err := w.queue.Enqueue(jobs.Job{ID: id, Type: ExportJobType, Payload: result}); err != nil {
		w.setState(id, exportState{status: models.TimetableRunStatusFailed, err: err.Error()})
		return err
	}
	return nil
}

// Handle processes one export job.
func (w *ExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	result, ok := job.Payload.(models.TimetableResult)
	if !ok {
		return fmt.Errorf("export job %s: unexpected payload %T", job.ID, job.Payload)
	}
	links, err := w.exporter.Render(ctx, result)
	if err != nil {
		w.logger.Warn("export render failed", zap.String("run_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
		if w.queue == nil {
			w.MarkFailed(job, err)
		}
		return err
	}
	w.finish(ctx, job.ID, exportState{status: models.TimetableRunStatusExported, links: links})
	w.metrics.RecordExportJob(ExportJobSucceeded)
	w.logger.Info("exports rendered", zap.String("run_id", job.ID), zap.Int("artifacts", len(links)))
	return nil
}

// MarkFailed records a job that will not be retried.
func (w *ExportWorker) MarkFailed(job jobs.Job, err error) {
	state := exportState{status: models.TimetableRunStatusFailed}
	if err != nil {
		state.err = err.Error()
	}
	w.finish(context.Background(), job.ID, state)
	w.metrics.RecordExportJob(ExportJobFailed)
}

// Links returns the rendered artifacts of a run.
func (w *ExportWorker) Links(runID string) (models.TimetableRunStatus, []models.ExportLink, error) {
	w.mu.RLock()
	state, ok := w.states[runID]
	w.mu.RUnlock()
	switch {
	case !ok:
		return "", nil, appErrors.Clone(appErrors.ErrNotFound, "no exports for this run")
	case state.status == models.TimetableRunStatusExporting:
		return state.status, []models.ExportLink{}, appErrors.ErrExportPending
	case state.status == models.TimetableRunStatusFailed:
		return state.status, nil, appErrors.Wrap(fmt.Errorf("%s", state.err), appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "export failed")
	}
	return state.status, state.links, nil
}

func (w *ExportWorker) finish(ctx context.Context, runID string, state exportState) {
	w.setState(runID, state)
	if w.sink != nil {
		w.sink.SetStatus(runID, state.status, state.links)
	}
	if w.runs == nil {
		return
	}
	if err := w.runs.UpdateStatus(ctx, nil, runID, state.status); err != nil {
		w.logger.Warn("failed to update run status", zap.String("run_id", runID), zap.String("status", string(state.status)), zap.Error(err))
	}
}

func (w *ExportWorker) setState(runID string, state exportState) {
	w.mu.Lock()
	w.states[runID] = state
	w.mu.Unlock()
}
