package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/models"
	appErrors "github.com/noah-isme/sma-timetable/pkg/errors"
	"github.com/noah-isme/sma-timetable/pkg/export"
	"github.com/noah-isme/sma-timetable/pkg/storage"
)

// Artifact names written for every run.
const (
	ArtifactAssignedSchedule = "assigned_schedule"
	ArtifactVacantSlots      = "vacant_slots"
	ArtifactCalendar         = "calendar_google_import"
	ArtifactUtilization      = "utilization"
)

var (
	errInvalidDownload = appErrors.New("INVALID_DOWNLOAD_TOKEN", http.StatusForbidden, "download link is invalid")
	errExpiredDownload = appErrors.New("DOWNLOAD_EXPIRED", http.StatusGone, "download link has expired")
)

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(rows interface{}) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
	RenderBarChart(title string, bars []export.Bar) ([]byte, error)
}

// ExportConfig tunes artifact rendering.
type ExportConfig struct {
	APIPrefix string
	RenderPDF bool
	// Flat writes artifacts at the storage root instead of one directory per run.
	Flat      bool
	ResultTTL time.Duration
}

// ExportService renders a run's projections into files and issues signed links to them.
type ExportService struct {
	storage fileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	logger  *zap.Logger
	cfg     ExportConfig
}

// NewExportService constructs an ExportService. signer may be nil, in which case links carry no URL.
func NewExportService(store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter(true)
	}
	if pdf == nil {
		pdf = export.NewPDFExporter("")
	}
	if fonts, ok := pdf.(interface{ HasUnicodeFont() bool }); ok && cfg.RenderPDF && !fonts.HasUnicodeFont() {
		logger.Warn("no PDF font configured; Hangul names in PDF artifacts will not render, set EXPORTS_PDF_FONT or --pdf-font")
	}
	return &ExportService{
		storage: store,
		csv:     csv,
		pdf:     pdf,
		signer:  signer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Render writes every artifact of result and returns one link per file in a fixed order.
func (s *ExportService) Render(ctx context.Context, result models.TimetableResult) ([]models.ExportLink, error) {
	if result.Run.ID == "" {
		return nil, fmt.Errorf("run id required")
	}
	proj := result.Projections
	tables := []struct {
		artifact string
		rows     interface{}
	}{
		{ArtifactAssignedSchedule, &proj.Assigned},
		{ArtifactVacantSlots, &proj.Vacancies},
		{ArtifactCalendar, &proj.Calendar},
		{ArtifactUtilization, &proj.Utilization},
	}

	links := make([]models.ExportLink, 0, len(tables)+2)
	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		payload, err := s.csv.Render(table.rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", table.artifact, err)
		}
		link, err := s.store(result.Run.ID, table.artifact, "csv", payload)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}

	if !s.cfg.RenderPDF {
		return links, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	chart, err := s.pdf.RenderBarChart("Room utilization", utilizationBars(proj.Utilization))
	if err != nil {
		return nil, fmt.Errorf("%s chart: %w", ArtifactUtilization, err)
	}
	link, err := s.store(result.Run.ID, ArtifactUtilization, "pdf", chart)
	if err != nil {
		return nil, err
	}
	links = append(links, link)

	table, err := s.pdf.Render(scheduleDataset(proj.Assigned), "Assigned schedule")
	if err != nil {
		return nil, fmt.Errorf("%s pdf: %w", ArtifactAssignedSchedule, err)
	}
	if link, err = s.store(result.Run.ID, ArtifactAssignedSchedule, "pdf", table); err != nil {
		return nil, err
	}
	return append(links, link), nil
}

func (s *ExportService) store(runID, artifact, format string, payload []byte) (models.ExportLink, error) {
	name := artifact + "." + format
	if !s.cfg.Flat {
		name = path.Join(runID, name)
	}
	relPath, err := s.storage.Save(name, payload)
	if err != nil {
		return models.ExportLink{}, fmt.Errorf("save %s: %w", name, err)
	}
	link := models.ExportLink{Artifact: artifact, Format: format, Path: relPath}
	if s.signer == nil {
		return link, nil
	}
	token, expiresAt, err := s.signer.Generate(runID, relPath)
	if err != nil {
		return models.ExportLink{}, fmt.Errorf("sign %s: %w", name, err)
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	link.URL = fmt.Sprintf("%s/export/%s", prefix, token)
	link.ExpiresAt = &expiresAt
	return link, nil
}

// ResolveToken validates a download token and returns the artifact it points at.
func (s *ExportService) ResolveToken(token string) (storage.DownloadToken, error) {
	if s.signer == nil {
		return storage.DownloadToken{}, errInvalidDownload
	}
	parsed, err := s.signer.Parse(token, false)
	switch {
	case err == nil:
		return parsed, nil
	case errors.Is(err, storage.ErrTokenExpired):
		return storage.DownloadToken{}, appErrors.Wrap(err, errExpiredDownload.Code, errExpiredDownload.Status, errExpiredDownload.Message)
	default:
		return storage.DownloadToken{}, appErrors.Wrap(err, errInvalidDownload.Code, errInvalidDownload.Status, errInvalidDownload.Message)
	}
}

// Open returns a handle to a stored artifact.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	file, err := s.storage.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "artifact not found")
		}
		return nil, err
	}
	return file, nil
}

// Cleanup removes artifacts older than ttl, or the configured ResultTTL when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func utilizationBars(rows []models.UtilizationRow) []export.Bar {
	bars := make([]export.Bar, 0, len(rows))
	for _, row := range rows {
		bars = append(bars, export.Bar{Label: row.RoomID, Value: row.UtilizationRate})
	}
	return bars
}

var scheduleHeaders = []string{"Day", "Start", "End", "Room", "Course", "Name", "Instructor", "Enrollment", "Lab"}

func scheduleDataset(assignments []models.Assignment) export.Dataset {
	rows := make([]map[string]string, 0, len(assignments))
	for _, a := range assignments {
		rows = append(rows, map[string]string{
			"Day":        string(a.Day),
			"Start":      a.Start,
			"End":        a.End,
			"Room":       a.RoomID,
			"Course":     a.CourseID,
			"Name":       a.Name,
			"Instructor": a.Instructor,
			"Enrollment": strconv.Itoa(a.Enrollment),
			"Lab":        a.RequiresLab.String(),
		})
	}
	return export.Dataset{Headers: scheduleHeaders, Rows: rows}
}
