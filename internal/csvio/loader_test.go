package csvio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"

	"github.com/noah-isme/sma-timetable/internal/models"
)

const registrarSheet = `교과목코드,교과목명,강좌담당교수,수강인원,교과목학점,강의유형구분,개설학과
CS101,자료구조,김교수,45,3,이론,컴퓨터공학과
CS102,운영체제실습,이교수,30,2.0,이론/실습,컴퓨터공학과
EE201,회로이론,박교수,,abc,이론,전자공학과
`

func TestParseCoursesRegistrarLayout(t *testing.T) {
	courses, err := ParseCourses(strings.NewReader(registrarSheet), CourseOptions{})
	require.NoError(t, err)
	require.Len(t, courses, 3)

	assert.Equal(t, models.Course{
		ID:           "CS101",
		Name:         "자료구조",
		WeeklyBlocks: 3,
		Instructor:   "김교수",
		RequiresLab:  false,
		Enrollment:   45,
		Priority:     1,
		Department:   "컴퓨터공학과",
	}, courses[0])
	assert.True(t, bool(courses[1].RequiresLab))
	assert.Equal(t, 2, courses[1].WeeklyBlocks)
	assert.Equal(t, 0, courses[2].WeeklyBlocks, "unparseable credits become zero")
	assert.Equal(t, 0, courses[2].Enrollment, "blank enrollment becomes zero")
}

func TestParseCoursesDepartmentFilter(t *testing.T) {
	courses, err := ParseCourses(strings.NewReader(registrarSheet), CourseOptions{DepartmentFilter: "전자"})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "EE201", courses[0].ID)

	_, err = ParseCourses(strings.NewReader(registrarSheet), CourseOptions{DepartmentFilter: "경영"})
	assert.ErrorIs(t, err, ErrEmptyFilter)
}

func TestParseCoursesSuffixesRepeatedSections(t *testing.T) {
	sheet := "교과목코드,교과목명,강좌담당교수,수강인원,교과목학점,강의유형구분,개설학과\n" +
		"CS101,자료구조,김교수,45,3,이론,컴퓨터공학과\n" +
		"CS101,자료구조,이교수,40,3,이론,컴퓨터공학과\n" +
		"CS101-2,자료구조특강,박교수,10,1,이론,컴퓨터공학과\n" +
		"CS101,자료구조,최교수,35,3,이론,컴퓨터공학과\n"
	courses, err := ParseCourses(strings.NewReader(sheet), CourseOptions{})
	require.NoError(t, err)
	require.Len(t, courses, 4)

	ids := []string{courses[0].ID, courses[1].ID, courses[2].ID, courses[3].ID}
	assert.Equal(t, []string{"CS101", "CS101-3", "CS101-2", "CS101-4"}, ids)
	assert.Equal(t, "이교수", courses[1].Instructor)
}

func TestParseCoursesMissingColumns(t *testing.T) {
	sheet := "교과목코드,교과목명,수강인원\nCS101,자료구조,45\n"
	_, err := ParseCourses(strings.NewReader(sheet), CourseOptions{})
	require.ErrorIs(t, err, ErrMissingColumns)
	assert.Contains(t, err.Error(), "강좌담당교수")

	_, err = ParseCourses(strings.NewReader(""), CourseOptions{})
	assert.ErrorIs(t, err, ErrMissingColumns)
}

func TestParseCoursesNormalizedLayout(t *testing.T) {
	sheet := "course_id,name,hours_per_week,instructor,requires_lab,enrollment,priority\n" +
		"A1,Algorithms,3,Kim,N,40,2\n" +
		"L1,Lab,2,Lee,Y,20,\n"
	courses, err := ParseCourses(strings.NewReader(sheet), CourseOptions{})
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, 2, courses[0].Priority)
	assert.False(t, bool(courses[0].RequiresLab))
	assert.Equal(t, models.DefaultPriority, courses[1].Priority)
	assert.True(t, bool(courses[1].RequiresLab))
}

func TestLoadCoursesDecodesCP949(t *testing.T) {
	encoded, err := korean.EUCKR.NewEncoder().String(registrarSheet)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "courses.csv")
	require.NoError(t, os.WriteFile(path, []byte(encoded), 0o644))

	courses, err := LoadCourses(path, CourseOptions{})
	require.NoError(t, err)
	require.Len(t, courses, 3)
	assert.Equal(t, "자료구조", courses[0].Name)
	assert.Equal(t, "김교수", courses[0].Instructor)
}

func TestDecodeStripsBOM(t *testing.T) {
	data, enc, err := Decode(append([]byte{0xEF, 0xBB, 0xBF}, []byte("room_id")...))
	require.NoError(t, err)
	assert.Equal(t, EncodingUTF8, enc)
	assert.Equal(t, "room_id", string(data))
}

func TestParseRoomsDefaultsCapacity(t *testing.T) {
	sheet := "room_id,room_type,capacity\n1215, Lecture ,60\n1217,LAB,\n,lecture,10\n"
	rooms, err := ParseRooms(strings.NewReader(sheet))
	require.NoError(t, err)
	assert.Equal(t, []models.Room{
		{ID: "1215", Type: models.RoomTypeLecture, Capacity: 60},
		{ID: "1217", Type: models.RoomTypeLab, Capacity: models.UnboundedCapacity},
	}, rooms)

	_, err = ParseRooms(strings.NewReader("id,type\n1,lab\n"))
	assert.ErrorIs(t, err, ErrMissingColumns)
}

func TestEnsureRoomsFileSeedsDefaultsOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "rooms.csv")

	created, err := EnsureRoomsFile(path)
	require.NoError(t, err)
	assert.True(t, created)

	rooms, err := LoadRooms(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultRooms, rooms)

	require.NoError(t, os.WriteFile(path, []byte("room_id,room_type,capacity\nX,lab,5\n"), 0o644))
	created, err = EnsureRoomsFile(path)
	require.NoError(t, err)
	assert.False(t, created)

	rooms, err = LoadRooms(path)
	require.NoError(t, err)
	assert.Equal(t, []models.Room{{ID: "X", Type: models.RoomTypeLab, Capacity: 5}}, rooms)
}
