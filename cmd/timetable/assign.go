package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable/internal/csvio"
	"github.com/noah-isme/sma-timetable/internal/dto"
	"github.com/noah-isme/sma-timetable/internal/models"
	"github.com/noah-isme/sma-timetable/internal/scheduler"
	"github.com/noah-isme/sma-timetable/internal/service"
	"github.com/noah-isme/sma-timetable/pkg/export"
	"github.com/noah-isme/sma-timetable/pkg/storage"
)

const infeasibleAdvice = `No complete timetable exists even with one borrowed lecture room.
Try one of:
  - add rooms to the rooms file (lab rooms if lab courses are short)
  - widen the hour window with --start-hour / --end-hour
  - relax --respect-capacity
  - narrow the course set with --department-filter`

var assignBindings = []flagBinding{
	{key: "COURSES_FILE", flag: "courses"},
	{key: "ROOMS_FILE", flag: "rooms"},
	{key: "DEPARTMENT_FILTER", flag: "department-filter"},
	{key: "SCHEDULER_ANCHOR_DATE", flag: "anchor-date"},
	{key: "SCHEDULER_DAYS", flag: "days"},
	{key: "SCHEDULER_START_HOUR", flag: "start-hour"},
	{key: "SCHEDULER_END_HOUR", flag: "end-hour"},
	{key: "SCHEDULER_RESPECT_CAPACITY", flag: "respect-capacity"},
	{key: "SCHEDULER_BORROWED_ROOM_ID", flag: "borrowed-room"},
	{key: "OUT_DIR", flag: "out-dir"},
	{key: "EXPORTS_RENDER_PDF", flag: "pdf"},
	{key: "EXPORTS_PDF_FONT", flag: "pdf-font"},
}

func newAssignCmd(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assign",
		Short: "Schedule the courses file into the rooms file and write the artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssign(cmd, app)
		},
	}
	flags := cmd.Flags()
	flags.String("courses", "courses.csv", "course sheet (registrar export or normalized CSV)")
	flags.String("rooms", "rooms.csv", "rooms CSV, created with defaults when missing")
	flags.String("department-filter", "", "keep only courses whose department contains this value")
	flags.String("anchor-date", "2025-11-03", "Monday of the calendar export week (YYYY-MM-DD)")
	flags.String("days", "Mon,Tue,Wed,Thu,Fri", "comma-separated teaching days")
	flags.Int("start-hour", 9, "first teaching hour")
	flags.Int("end-hour", 21, "hour teaching ends")
	flags.Bool("respect-capacity", false, "require room capacity to cover enrollment")
	flags.String("borrowed-room", scheduler.DefaultBorrowedRoomID, "id of the lecture room borrowed when rooms fall short")
	flags.String("out-dir", "out", "directory for the generated artifacts")
	flags.Bool("pdf", true, "also render PDF artifacts")
	flags.String("pdf-font", "", "TTF font with Hangul coverage for PDF output")

	return cmd
}

func runAssign(cmd *cobra.Command, app *cli) error {
	cfg, logr, err := app.load(cmd.Flags(), assignBindings)
	if err != nil {
		return err
	}
	defer logr.Sync() //nolint:errcheck
	out := cmd.OutOrStdout()

	created, err := csvio.EnsureRoomsFile(cfg.Inputs.RoomsFile)
	if err != nil {
		return fmt.Errorf("prepare rooms file: %w", err)
	}
	if created {
		fmt.Fprintf(out, "created default rooms file %s\n", cfg.Inputs.RoomsFile)
	}
	rooms, err := csvio.LoadRooms(cfg.Inputs.RoomsFile)
	if err != nil {
		return fmt.Errorf("load rooms: %w", err)
	}
	courses, err := csvio.LoadCourses(cfg.Inputs.CoursesFile, csvio.CourseOptions{DepartmentFilter: cfg.Inputs.DepartmentFilter})
	if err != nil {
		return fmt.Errorf("load courses: %w", err)
	}
	logr.Info("inputs loaded", zap.Int("rooms", len(rooms)), zap.Int("courses", len(courses)))

	timetableCfg, err := service.NewTimetableConfig(cfg.Scheduler)
	if err != nil {
		return err
	}
	timetables := service.NewTimetableService(nil, nil, nil, nil, nil, logr, timetableCfg)

	store, err := storage.NewLocalStorage(cfg.Inputs.OutDir)
	if err != nil {
		return err
	}
	exports := service.NewExportService(store, nil, service.ExportConfig{
		RenderPDF: cfg.Exports.RenderPDF,
		Flat:      true,
	}, logr, export.NewCSVExporter(true), export.NewPDFExporter(cfg.Exports.PDFFontFile))
	timetables.AttachExports(service.NewExportWorker(exports, timetables, nil, nil, logr))

	result, err := timetables.Assign(cmd.Context(), dto.AssignTimetableRequest{Rooms: rooms, Courses: courses})
	if err != nil {
		if errors.Is(err, scheduler.ErrInfeasible) {
			fmt.Fprintln(cmd.ErrOrStderr(), infeasibleAdvice)
		}
		return err
	}
	if result.Run.Status == models.TimetableRunStatusFailed {
		return fmt.Errorf("timetable scheduled but artifacts could not be written to %s", cfg.Inputs.OutDir)
	}
	printSummary(out, result, len(courses), store)
	return nil
}

func printSummary(w io.Writer, result *models.TimetableResult, courses int, store *storage.LocalStorage) {
	borrowed := "no"
	if result.Run.BorrowedRoomUsed && len(result.Meta.Rooms) > 0 {
		borrowed = "yes (" + result.Meta.Rooms[len(result.Meta.Rooms)-1].ID + ")"
	}
	summary := result.Projections.Summary
	fmt.Fprintf(w, "courses scheduled: %d (%d blocks)\n", courses, result.Run.AssignmentCount)
	fmt.Fprintf(w, "borrowed room used: %s\n", borrowed)
	fmt.Fprintf(w, "room utilization: mean %.1f%%, min %.1f%%, max %.1f%%, std %.1f%%\n",
		summary.Mean*100, summary.Min*100, summary.Max*100, summary.StdDev*100)
	fmt.Fprintln(w, "artifacts:")
	for _, link := range result.Exports {
		fmt.Fprintf(w, "  %s\n", store.Path(link.Path))
	}
}
