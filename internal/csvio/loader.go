package csvio

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/noah-isme/sma-timetable/internal/models"
)

var (
	// ErrMissingColumns is returned when a CSV header lacks a required column.
	ErrMissingColumns = errors.New("missing required columns")
	// ErrEmptyFilter is returned when a department filter leaves no courses.
	ErrEmptyFilter = errors.New("department filter matched no courses")
)

// Registrar export columns.
const (
	colCode       = "교과목코드"
	colName       = "교과목명"
	colInstructor = "강좌담당교수"
	colEnrollment = "수강인원"
	colCredits    = "교과목학점"
	colKind       = "강의유형구분"
	colDepartment = "개설학과"
)

// Normalized course columns.
const (
	colCourseID    = "course_id"
	colCourseName  = "name"
	colHours       = "hours_per_week"
	colLecturer    = "instructor"
	colRequiresLab = "requires_lab"
	colHeadcount   = "enrollment"
	colPriority    = "priority"
	colDept        = "department"
)

var (
	registrarColumns  = []string{colCode, colName, colInstructor, colEnrollment, colCredits, colKind, colDepartment}
	normalizedColumns = []string{colCourseID, colHours}
	roomColumns       = []string{"room_id", "room_type"}
)

// DefaultRooms seeds a rooms file when none exists.
var DefaultRooms = []models.Room{
	{ID: "1215", Type: models.RoomTypeLecture, Capacity: 9999},
	{ID: "1216", Type: models.RoomTypeLecture, Capacity: 9999},
	{ID: "1217", Type: models.RoomTypeLab, Capacity: 9999},
	{ID: "1418", Type: models.RoomTypeLab, Capacity: 9999},
}

// CourseOptions tunes course normalization.
type CourseOptions struct {
	// DepartmentFilter keeps only rows whose department contains the value.
	DepartmentFilter string
}

type roomRecord struct {
	ID       string `csv:"room_id"`
	Type     string `csv:"room_type"`
	Capacity string `csv:"capacity"`
}

// LoadRooms reads a rooms CSV file.
func LoadRooms(path string) ([]models.Room, error) {
	data, _, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	rooms, err := ParseRooms(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rooms, nil
}

// ParseRooms decodes rooms with columns room_id, room_type and optional capacity.
// Missing or unparseable capacities become models.UnboundedCapacity.
func ParseRooms(r io.Reader) ([]models.Room, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	header, err := readHeader(data)
	if err != nil {
		return nil, err
	}
	if missing := missingColumns(header, roomColumns); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	var records []roomRecord
	if err := gocsv.UnmarshalBytes(data, &records); err != nil {
		return nil, fmt.Errorf("parse rooms: %w", err)
	}

	rooms := make([]models.Room, 0, len(records))
	for _, rec := range records {
		id := strings.TrimSpace(rec.ID)
		if id == "" {
			continue
		}
		capacity, ok := parseNumber(rec.Capacity)
		if !ok || capacity < 0 {
			capacity = models.UnboundedCapacity
		}
		rooms = append(rooms, models.Room{
			ID:       id,
			Type:     models.NormalizeRoomType(rec.Type),
			Capacity: capacity,
		})
	}
	return rooms, nil
}

// LoadCourses reads a course CSV in either the registrar or the normalized layout.
func LoadCourses(path string, opts CourseOptions) ([]models.Course, error) {
	data, _, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	courses, err := ParseCourses(bytes.NewReader(data), opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return courses, nil
}

// ParseCourses detects the layout from the header. Registrar rows map credits to weekly blocks
// and mark a course as lab when its lecture type contains "실습". Unparseable hours or enrollment become 0.
// A code repeated across section rows gets a numeric suffix per repeat.
func ParseCourses(r io.Reader, opts CourseOptions) ([]models.Course, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	header, err := readHeader(data)
	if err != nil {
		return nil, err
	}

	registrar := hasColumn(header, colCode)
	required := normalizedColumns
	if registrar {
		required = registrarColumns
	}
	if missing := missingColumns(header, required); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	rows, err := gocsv.CSVToMaps(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("parse courses: %w", err)
	}

	courses := make([]models.Course, 0, len(rows))
	for _, row := range rows {
		row = trimKeys(row)
		var course models.Course
		if registrar {
			course = registrarCourse(row)
		} else {
			course = normalizedCourse(row)
		}
		if course.ID == "" {
			continue
		}
		courses = append(courses, course)
	}

	if filter := strings.TrimSpace(opts.DepartmentFilter); filter != "" {
		filtered := courses[:0]
		for _, course := range courses {
			if strings.Contains(course.Department, filter) {
				filtered = append(filtered, course)
			}
		}
		if len(filtered) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrEmptyFilter, filter)
		}
		courses = filtered
	}
	return suffixDuplicateIDs(courses), nil
}

// suffixDuplicateIDs renames repeated course codes, one per section row, to CODE-2, CODE-3 and so on.
func suffixDuplicateIDs(courses []models.Course) []models.Course {
	taken := make(map[string]struct{}, len(courses))
	for _, course := range courses {
		taken[course.ID] = struct{}{}
	}
	seen := make(map[string]int, len(courses))
	for i := range courses {
		id := courses[i].ID
		seen[id]++
		if seen[id] == 1 {
			continue
		}
		for n := seen[id]; ; n++ {
			candidate := fmt.Sprintf("%s-%d", id, n)
			if _, exists := taken[candidate]; !exists {
				courses[i].ID = candidate
				taken[candidate] = struct{}{}
				seen[id] = n
				break
			}
		}
	}
	return courses
}

func registrarCourse(row map[string]string) models.Course {
	hours, _ := parseNumber(row[colCredits])
	enrollment, _ := parseNumber(row[colEnrollment])
	return models.Course{
		ID:           strings.TrimSpace(row[colCode]),
		Name:         strings.TrimSpace(row[colName]),
		WeeklyBlocks: nonNegative(hours),
		Instructor:   strings.TrimSpace(row[colInstructor]),
		RequiresLab:  models.LabFlag(strings.Contains(row[colKind], "실습")),
		Enrollment:   nonNegative(enrollment),
		Priority:     models.DefaultPriority,
		Department:   strings.TrimSpace(row[colDepartment]),
	}
}

func normalizedCourse(row map[string]string) models.Course {
	hours, _ := parseNumber(row[colHours])
	enrollment, _ := parseNumber(row[colHeadcount])
	priority, ok := parseNumber(row[colPriority])
	if !ok {
		priority = models.DefaultPriority
	}
	return models.Course{
		ID:           strings.TrimSpace(row[colCourseID]),
		Name:         strings.TrimSpace(row[colCourseName]),
		WeeklyBlocks: nonNegative(hours),
		Instructor:   strings.TrimSpace(row[colLecturer]),
		RequiresLab:  models.ParseLabFlag(row[colRequiresLab]),
		Enrollment:   nonNegative(enrollment),
		Priority:     priority,
		Department:   strings.TrimSpace(row[colDept]),
	}
}

// EnsureRoomsFile writes DefaultRooms to path when it does not exist yet. It reports whether a file was created.
func EnsureRoomsFile(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("create rooms dir: %w", err)
		}
	}
	rooms := append([]models.Room(nil), DefaultRooms...)
	body, err := gocsv.MarshalBytes(&rooms)
	if err != nil {
		return false, fmt.Errorf("render default rooms: %w", err)
	}
	if err := os.WriteFile(path, append(append([]byte(nil), utf8BOM...), body...), 0o644); err != nil {
		return false, fmt.Errorf("write rooms file: %w", err)
	}
	return true, nil
}

func readHeader(data []byte) ([]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrMissingColumns)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return header, nil
}

func hasColumn(header []string, name string) bool {
	for _, col := range header {
		if col == name {
			return true
		}
	}
	return false
}

func missingColumns(header, required []string) []string {
	var missing []string
	for _, col := range required {
		if !hasColumn(header, col) {
			missing = append(missing, col)
		}
	}
	return missing
}

func trimKeys(row map[string]string) map[string]string {
	out := make(map[string]string, len(row))
	for k, v := range row {
		out[strings.TrimSpace(k)] = v
	}
	return out
}

// parseNumber accepts integers and decimals ("3", "3.0"), truncating toward zero.
func parseNumber(raw string) (int, bool) {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, ",", ""))
	if raw == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
