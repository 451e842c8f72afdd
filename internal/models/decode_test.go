package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomJSONDefaultsMissingCapacity(t *testing.T) {
	var rooms []Room
	require.NoError(t, json.Unmarshal([]byte(`[
		{"room_id":"R1","room_type":"lecture"},
		{"room_id":"R2","room_type":"lab","capacity":0},
		{"room_id":"R3","room_type":"lab","capacity":30}
	]`), &rooms))

	require.Len(t, rooms, 3)
	assert.Equal(t, Room{ID: "R1", Type: RoomTypeLecture, Capacity: UnboundedCapacity}, rooms[0])
	assert.Equal(t, 0, rooms[1].Capacity)
	assert.Equal(t, 30, rooms[2].Capacity)
}

func TestCourseJSONDefaultsMissingPriority(t *testing.T) {
	var courses []Course
	require.NoError(t, json.Unmarshal([]byte(`[
		{"course_id":"A1","hours_per_week":2,"requires_lab":true},
		{"course_id":"A2","priority":0}
	]`), &courses))

	require.Len(t, courses, 2)
	assert.Equal(t, DefaultPriority, courses[0].Priority)
	assert.Equal(t, 2, courses[0].WeeklyBlocks)
	assert.True(t, bool(courses[0].RequiresLab))
	assert.Equal(t, 0, courses[1].Priority)
}
