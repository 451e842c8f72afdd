package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/middleware"
	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/response"
	"github.com/noah-isme/sma-timetable/pkg/storage"
)

const maxListLimit = 100

type timetableRunner interface {
	Assign(ctx context.Context, req dto.AssignTimetableRequest) (*models.TimetableResult, error)
	Get(ctx context.Context, id string) (*models.TimetableResult, error)
	List(ctx context.Context, limit int) ([]models.TimetableRun, error)
}

type exportLinker interface {
	Links(runID string) (models.TimetableRunStatus, []models.ExportLink, error)
}

type artifactDownloader interface {
	ResolveToken(token string) (storage.DownloadToken, error)
	Open(relPath string) (*os.File, error)
}

// TimetableHandler exposes timetable scheduling endpoints.
type TimetableHandler struct {
	timetables timetableRunner
	exports    exportLinker
	downloads  artifactDownloader
}

// NewTimetableHandler constructs the handler. exports and downloads may be nil when exports are disabled.
func NewTimetableHandler(timetables timetableRunner, exports exportLinker, downloads artifactDownloader) *TimetableHandler {
	return &TimetableHandler{timetables: timetables, exports: exports, downloads: downloads}
}

// Assign godoc
// @Summary Schedule courses into rooms
// @Description Runs the allocator, borrowing one extra lecture room when the given rooms fall short.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.AssignTimetableRequest true "Rooms, courses and grid options"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetables [post]
func (h *TimetableHandler) Assign(c *gin.Context) {
	var req dto.AssignTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable payload"))
		return
	}
	result, err := h.timetables.Assign(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, result.Cached)
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	meta["summary"] = result.Projections.Summary
	response.JSON(c, http.StatusOK, dto.NewAssignTimetableResponse(result), meta)
}

// Get godoc
// @Summary Fetch a scheduling run
// @Tags Timetables
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id} [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	result, err := h.timetables.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.NewAssignTimetableResponse(result))
}

// List godoc
// @Summary List recent scheduling runs
// @Tags Timetables
// @Produce json
// @Param limit query int false "Maximum runs to return"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > maxListLimit {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("limit must be between 1 and %d", maxListLimit)))
			return
		}
		limit = parsed
	}
	runs, err := h.timetables.List(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, runs, map[string]interface{}{"count": len(runs)})
}

// Exports godoc
// @Summary List rendered artifacts of a run
// @Tags Timetables
// @Produce json
// @Param id path string true "Run ID"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /timetables/{id}/exports [get]
func (h *TimetableHandler) Exports(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	runID := c.Param("id")
	status, links, err := h.exports.Links(runID)
	if err != nil {
		if errors.Is(err, appErrors.ErrExportPending) {
			response.Accepted(c, dto.TimetableExportsResponse{RunID: runID, Status: status, Exports: []models.ExportLink{}})
			return
		}
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.TimetableExportsResponse{RunID: runID, Status: status, Exports: links})
}

// Download godoc
// @Summary Download an artifact via signed token
// @Tags Timetables
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Router /export/{token} [get]
func (h *TimetableHandler) Download(c *gin.Context) {
	if h.downloads == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled"))
		return
	}
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	parsed, err := h.downloads.ResolveToken(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.downloads.Open(parsed.Path)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck
	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.FromError(err))
		return
	}
	name := path.Base(parsed.Path)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", name))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, info.Size(), contentType(name), file, nil)
}

func contentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv":
		return "text/csv; charset=utf-8"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
