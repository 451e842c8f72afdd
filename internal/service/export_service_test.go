package service

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/export"
	"github.com/noah-isme/sma-timetable/pkg/jobs"
	"github.com/noah-isme/sma-timetable/pkg/storage"
)

func newExportServiceForTest(t *testing.T, cfg ExportConfig) (*ExportService, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	if cfg.APIPrefix == "" {
		cfg.APIPrefix = "/api/v1"
	}
	svc := NewExportService(store, signer, cfg, zap.NewNop(), export.NewCSVExporter(true), export.NewPDFExporter(""))
	return svc, dir
}

func TestNewExportServiceWarnsWithoutPDFFont(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	core, logs := observer.New(zapcore.WarnLevel)
	NewExportService(store, nil, ExportConfig{RenderPDF: true}, zap.New(core), nil, export.NewPDFExporter(""))
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "EXPORTS_PDF_FONT")

	core, logs = observer.New(zapcore.WarnLevel)
	NewExportService(store, nil, ExportConfig{RenderPDF: true}, zap.New(core), nil, export.NewPDFExporter("/fonts/NanumGothic.ttf"))
	NewExportService(store, nil, ExportConfig{RenderPDF: false}, zap.New(core), nil, export.NewPDFExporter(""))
	assert.Equal(t, 0, logs.Len())
}

func scheduledResult(t *testing.T) models.TimetableResult {
	t.Helper()
	svc := newTimetableServiceFixture(nil, nil, nil, nil)
	result, err := svc.Assign(context.Background(), smallRequest())
	require.NoError(t, err)
	return *result
}

func TestExportServiceRenderCSVArtifacts(t *testing.T) {
	svc, dir := newExportServiceForTest(t, ExportConfig{})
	result := scheduledResult(t)

	links, err := svc.Render(context.Background(), result)
	require.NoError(t, err)
	require.Len(t, links, 4)

	want := []string{ArtifactAssignedSchedule, ArtifactVacantSlots, ArtifactCalendar, ArtifactUtilization}
	for i, link := range links {
		assert.Equal(t, want[i], link.Artifact)
		assert.Equal(t, "csv", link.Format)
		assert.Equal(t, result.Run.ID+"/"+want[i]+".csv", link.Path)
		assert.True(t, strings.HasPrefix(link.URL, "/api/v1/export/"))
		require.NotNil(t, link.ExpiresAt)
	}

	raw, err := os.ReadFile(filepath.Join(dir, result.Run.ID, "calendar_google_import.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "\ufeffSubject,Start Date,Start Time,End Date,End Time,All Day Event,Description,Location"))
	assert.Contains(t, string(raw), "Algorithms (C1)")
}

func TestExportServiceRenderPDFArtifacts(t *testing.T) {
	svc, dir := newExportServiceForTest(t, ExportConfig{RenderPDF: true, Flat: true})
	result := scheduledResult(t)

	links, err := svc.Render(context.Background(), result)
	require.NoError(t, err)
	require.Len(t, links, 6)
	assert.Equal(t, "utilization.pdf", links[4].Path)
	assert.Equal(t, "assigned_schedule.pdf", links[5].Path)

	raw, err := os.ReadFile(filepath.Join(dir, "utilization.pdf"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "%PDF"))
}

func TestExportServiceRenderHonoursCancellation(t *testing.T) {
	svc, _ := newExportServiceForTest(t, ExportConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Render(ctx, scheduledResult(t))
	require.ErrorIs(t, err, context.Canceled)
}

func TestExportServiceResolveTokenAndOpen(t *testing.T) {
	svc, _ := newExportServiceForTest(t, ExportConfig{})
	result := scheduledResult(t)
	links, err := svc.Render(context.Background(), result)
	require.NoError(t, err)

	token := strings.TrimPrefix(links[0].URL, "/api/v1/export/")
	parsed, err := svc.ResolveToken(token)
	require.NoError(t, err)
	assert.Equal(t, result.Run.ID, parsed.RunID)
	assert.Equal(t, links[0].Path, parsed.Path)

	file, err := svc.Open(parsed.Path)
	require.NoError(t, err)
	defer file.Close()
	body, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(body), "course_id")

	_, err = svc.ResolveToken(token + "x")
	require.Error(t, err)
	assert.Equal(t, errInvalidDownload.Code, appErrors.FromError(err).Code)

	_, err = svc.Open(result.Run.ID + "/missing.csv")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportServiceCleanup(t *testing.T) {
	svc, dir := newExportServiceForTest(t, ExportConfig{})
	result := scheduledResult(t)
	_, err := svc.Render(context.Background(), result)
	require.NoError(t, err)

	old := time.Now().Add(-48 * time.Hour)
	target := filepath.Join(dir, result.Run.ID, "vacant_slots.csv")
	require.NoError(t, os.Chtimes(target, old, old))

	deleted, err := svc.Cleanup(0)
	require.NoError(t, err)
	assert.Equal(t, []string{result.Run.ID + "/vacant_slots.csv"}, deleted)
}

type rendererStub struct {
	failures int
	calls    int
}

func (r *rendererStub) Render(ctx context.Context, result models.TimetableResult) ([]models.ExportLink, error) {
	r.calls++
	if r.calls <= r.failures {
		return nil, errors.New("disk unavailable")
	}
	return []models.ExportLink{{Artifact: ArtifactUtilization, Format: "csv", Path: result.Run.ID + "/utilization.csv"}}, nil
}

type statusSinkStub struct {
	statuses []models.TimetableRunStatus
	links    []models.ExportLink
}

func (s *statusSinkStub) SetStatus(id string, status models.TimetableRunStatus, links []models.ExportLink) {
	s.statuses = append(s.statuses, status)
	if links != nil {
		s.links = links
	}
}

type recordingQueue struct {
	jobs []jobs.Job
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func TestExportWorkerInlineDispatch(t *testing.T) {
	renderer := &rendererStub{}
	sink := &statusSinkStub{}
	metrics := NewMetricsService()
	worker := NewExportWorker(renderer, sink, nil, metrics, nil)

	result := models.TimetableResult{Run: models.TimetableRun{ID: "run-1"}}
	require.NoError(t, worker.Dispatch(result))

	status, links, err := worker.Links("run-1")
	require.NoError(t, err)
	assert.Equal(t, models.TimetableRunStatusExported, status)
	require.Len(t, links, 1)
	assert.Equal(t, []models.TimetableRunStatus{models.TimetableRunStatusExported}, sink.statuses)

	_, _, err = worker.Links("run-2")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestExportWorkerInlineFailure(t *testing.T) {
	worker := NewExportWorker(&rendererStub{failures: 1}, nil, nil, nil, nil)

	err := worker.Dispatch(models.TimetableResult{Run: models.TimetableRun{ID: "run-1"}})
	require.Error(t, err)

	status, _, err := worker.Links("run-1")
	require.Error(t, err)
	assert.Equal(t, models.TimetableRunStatusFailed, status)
}

func TestExportWorkerQueuedDispatch(t *testing.T) {
	renderer := &rendererStub{failures: 1}
	queue := &recordingQueue{}
	worker := NewExportWorker(renderer, nil, nil, nil, nil)
	worker.AttachQueue(queue)

	result := models.TimetableResult{Run: models.TimetableRun{ID: "run-1"}}
	require.NoError(t, worker.Dispatch(result))
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, ExportJobType, queue.jobs[0].Type)

	status, _, err := worker.Links("run-1")
	assert.ErrorIs(t, err, appErrors.ErrExportPending)
	assert.Equal(t, models.TimetableRunStatusExporting, status)

	require.Error(t, worker.Handle(context.Background(), queue.jobs[0]))
	status, _, _ = worker.Links("run-1")
	assert.Equal(t, models.TimetableRunStatusExporting, status, "a retryable failure keeps the run pending")

	require.NoError(t, worker.Handle(context.Background(), queue.jobs[0]))
	status, links, err := worker.Links("run-1")
	require.NoError(t, err)
	assert.Equal(t, models.TimetableRunStatusExported, status)
	assert.Len(t, links, 1)
}

func TestExportWorkerMarkFailed(t *testing.T) {
	sink := &statusSinkStub{}
	worker := NewExportWorker(&rendererStub{}, sink, nil, nil, nil)
	worker.AttachQueue(&recordingQueue{})
	require.NoError(t, worker.Dispatch(models.TimetableResult{Run: models.TimetableRun{ID: "run-1"}}))

	worker.MarkFailed(jobs.Job{ID: "run-1"}, errors.New("exhausted"))
	status, _, err := worker.Links("run-1")
	require.Error(t, err)
	assert.Equal(t, models.TimetableRunStatusFailed, status)
	assert.Equal(t, []models.TimetableRunStatus{models.TimetableRunStatusFailed}, sink.statuses)
}

func TestExportWorkerRejectsUnknownPayload(t *testing.T) {
	worker := NewExportWorker(&rendererStub{}, nil, nil, nil, nil)
	err := worker.Handle(context.Background(), jobs.Job{ID: "run-1", Payload: "nope"})
	require.Error(t, err)
}
