package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/storage"
)

type timetableServiceStub struct {
	result  *models.TimetableResult
	err     error
	runs    []models.TimetableRun
	lastReq dto.AssignTimetableRequest
	limit   int
}

func (s *timetableServiceStub) Assign(ctx context.Context, req dto.AssignTimetableRequest) (*models.TimetableResult, error) {
	s.lastReq = req
	return s.result, s.err
}

func (s *timetableServiceStub) Get(ctx context.Context, id string) (*models.TimetableResult, error) {
	if s.result == nil || s.result.Run.ID != id {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable run not found")
	}
	return s.result, nil
}

func (s *timetableServiceStub) List(ctx context.Context, limit int) ([]models.TimetableRun, error) {
	s.limit = limit
	return s.runs, nil
}

type exportLinkerStub struct {
	status models.TimetableRunStatus
	links  []models.ExportLink
	err    error
}

func (s *exportLinkerStub) Links(runID string) (models.TimetableRunStatus, []models.ExportLink, error) {
	return s.status, s.links, s.err
}

type downloaderStub struct {
	token   storage.DownloadToken
	err     error
	baseDir string
}

func (s *downloaderStub) ResolveToken(token string) (storage.DownloadToken, error) {
	return s.token, s.err
}

func (s *downloaderStub) Open(relPath string) (*os.File, error) {
	return os.Open(filepath.Join(s.baseDir, relPath))
}

func newTestContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func sampleResult() *models.TimetableResult {
	return &models.TimetableResult{
		Run: models.TimetableRun{ID: "run-1", Status: models.TimetableRunStatusCompleted, BorrowedRoomUsed: true, Attempts: 2},
		Projections: models.TimetableProjections{
			Assigned: []models.Assignment{{CourseID: "C1", RoomID: "1215", Day: models.Monday, Start: "09:00", End: "10:00", Hours: 1}},
			Summary:  models.UtilizationSummary{Rooms: 1, Mean: 0.5, Max: 0.5, Min: 0.5},
		},
	}
}

func TestTimetableHandlerAssign(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &timetableServiceStub{result: sampleResult()}
	handler := NewTimetableHandler(svc, nil, nil)

	payload := []byte(`{"rooms":[{"room_id":"1215","room_type":"lecture","capacity":40}],"courses":[{"course_id":"C1","hours_per_week":1}],"startHour":9,"respectCapacity":true}`)
	c, w := newTestContext(http.MethodPost, "/timetables", payload)
	handler.Assign(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, svc.lastReq.Rooms, 1)
	require.NotNil(t, svc.lastReq.StartHour)
	assert.Equal(t, 9, *svc.lastReq.StartHour)
	assert.Nil(t, svc.lastReq.EndHour)
	require.NotNil(t, svc.lastReq.RespectCapacity)
	assert.True(t, *svc.lastReq.RespectCapacity)

	var body struct {
		Data dto.AssignTimetableResponse `json:"data"`
		Meta map[string]interface{}      `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.Data.RunID)
	assert.True(t, body.Data.BorrowedRoomUsed)
	assert.Len(t, body.Data.Projections.Assigned, 1)
	assert.Contains(t, body.Meta, "summary")
	assert.Equal(t, false, body.Meta["cache_hit"])
}

func TestTimetableHandlerAssignBadJSON(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableServiceStub{}, nil, nil)

	c, w := newTestContext(http.MethodPost, "/timetables", []byte(`{"rooms":`))
	handler.Assign(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerAssignInfeasible(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &timetableServiceStub{err: appErrors.Wrap(errors.New("course L1: placed 2 of 3 weekly blocks"),
		appErrors.ErrScheduleInfeasible.Code, appErrors.ErrScheduleInfeasible.Status, appErrors.ErrScheduleInfeasible.Message)}
	handler := NewTimetableHandler(svc, nil, nil)

	c, w := newTestContext(http.MethodPost, "/timetables", []byte(`{"rooms":[{"room_id":"LAB","room_type":"lab"}]}`))
	handler.Assign(c)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrScheduleInfeasible.Code)
}

func TestTimetableHandlerGet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableServiceStub{result: sampleResult()}, nil, nil)

	c, w := newTestContext(http.MethodGet, "/timetables/run-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "run-1"}}
	handler.Get(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = newTestContext(http.MethodGet, "/timetables/other", nil)
	c.Params = gin.Params{{Key: "id", Value: "other"}}
	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &timetableServiceStub{runs: []models.TimetableRun{{ID: "run-1"}}}
	handler := NewTimetableHandler(svc, nil, nil)

	c, w := newTestContext(http.MethodGet, "/timetables?limit=5", nil)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, svc.limit)

	c, w = newTestContext(http.MethodGet, "/timetables?limit=abc", nil)
	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTimetableHandlerExports(t *testing.T) {
	gin.SetMode(gin.TestMode)
	linker := &exportLinkerStub{
		status: models.TimetableRunStatusExported,
		links:  []models.ExportLink{{Artifact: "utilization", Format: "csv", Path: "run-1/utilization.csv"}},
	}
	handler := NewTimetableHandler(&timetableServiceStub{}, linker, nil)

	c, w := newTestContext(http.MethodGet, "/timetables/run-1/exports", nil)
	c.Params = gin.Params{{Key: "id", Value: "run-1"}}
	handler.Exports(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "run-1/utilization.csv")

	linker.err = appErrors.ErrExportPending
	linker.status = models.TimetableRunStatusExporting
	c, w = newTestContext(http.MethodGet, "/timetables/run-1/exports", nil)
	c.Params = gin.Params{{Key: "id", Value: "run-1"}}
	handler.Exports(c)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), string(models.TimetableRunStatusExporting))
}

func TestTimetableHandlerExportsDisabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewTimetableHandler(&timetableServiceStub{}, nil, nil)

	c, w := newTestContext(http.MethodGet, "/timetables/run-1/exports", nil)
	c.Params = gin.Params{{Key: "id", Value: "run-1"}}
	handler.Exports(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableHandlerDownload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "run-1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run-1", "vacant_slots.csv"), []byte("room_id,day,start,end\n"), 0o644))

	downloads := &downloaderStub{token: storage.DownloadToken{RunID: "run-1", Path: "run-1/vacant_slots.csv"}, baseDir: dir}
	handler := NewTimetableHandler(&timetableServiceStub{}, nil, downloads)

	c, w := newTestContext(http.MethodGet, "/export/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}
	handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="vacant_slots.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "room_id,day,start,end\n", w.Body.String())
}

func TestTimetableHandlerDownloadRejectsToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	downloads := &downloaderStub{err: appErrors.New("DOWNLOAD_EXPIRED", http.StatusGone, "download link has expired")}
	handler := NewTimetableHandler(&timetableServiceStub{}, nil, downloads)

	c, w := newTestContext(http.MethodGet, "/export/token", nil)
	c.Params = gin.Params{{Key: "token", Value: "token"}}
	handler.Download(c)
	assert.Equal(t, http.StatusGone, w.Code)
}
