package models

import (
	"encoding/json"
	"strings"
)

// RoomType classifies the sessions a room can host.
type RoomType string

const (
	RoomTypeLecture RoomType = "lecture"
	RoomTypeLab     RoomType = "lab"
)

// UnboundedCapacity is used for rooms whose capacity is unknown or irrelevant.
const UnboundedCapacity = 999999

// Room is a physical (or borrowed) teaching space. Rooms are immutable for a scheduling run.
type Room struct {
	ID       string   `json:"room_id" csv:"room_id" validate:"required"`
	Type     RoomType `json:"room_type" csv:"room_type" validate:"required"`
	Capacity int      `json:"capacity" csv:"capacity" validate:"min=0"`
}

// IsLab reports whether the room type is lab.
func (t RoomType) IsLab() bool {
	return strings.EqualFold(strings.TrimSpace(string(t)), string(RoomTypeLab))
}

// IsLab reports whether the room is a lab room.
func (r Room) IsLab() bool {
	return r.Type.IsLab()
}

// NormalizeRoomType lower-cases and trims a raw room type.
func NormalizeRoomType(raw string) RoomType {
	return RoomType(strings.ToLower(strings.TrimSpace(raw)))
}

// UnmarshalJSON defaults an absent capacity to UnboundedCapacity, matching the rooms CSV loader.
// An explicit 0 is kept.
func (r *Room) UnmarshalJSON(data []byte) error {
	type plain Room
	aux := struct {
		*plain
		Capacity *int `json:"capacity"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Capacity = UnboundedCapacity
	if aux.Capacity != nil {
		r.Capacity = *aux.Capacity
	}
	return nil
}
