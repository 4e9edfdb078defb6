package models

import "time"

// MissionStatus represents the lifecycle state of a mission.
type MissionStatus string

const (
	MissionStatusPlanned    MissionStatus = "planned"
	MissionStatusInProgress MissionStatus = "in_progress"
	MissionStatusCompleted  MissionStatus = "completed"
	MissionStatusAborted    MissionStatus = "aborted"
	MissionStatusFailed     MissionStatus = "failed"
)

// Valid reports whether s is a known mission status.
func (s MissionStatus) Valid() bool {
	switch s {
	case MissionStatusPlanned, MissionStatusInProgress, MissionStatusCompleted,
		MissionStatusAborted, MissionStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is a terminal state. Terminal missions are
// immutable and never deleted.
func (s MissionStatus) Terminal() bool {
	return s == MissionStatusCompleted || s == MissionStatusAborted || s == MissionStatusFailed
}

// WaypointAction is what the drone should do at a waypoint.
type WaypointAction string

const (
	ActionFlyover     WaypointAction = "flyover"
	ActionHover       WaypointAction = "hover"
	ActionTakePhoto   WaypointAction = "take_photo"
	ActionRecordVideo WaypointAction = "record_video"
	ActionScan        WaypointAction = "scan"
	ActionLand        WaypointAction = "land"
	ActionTakeoff     WaypointAction = "takeoff"
)

// Valid reports whether a is a known waypoint action.
func (a WaypointAction) Valid() bool {
	switch a {
	case ActionFlyover, ActionHover, ActionTakePhoto, ActionRecordVideo,
		ActionScan, ActionLand, ActionTakeoff:
		return true
	}
	return false
}

// Coordinate is a 2D geographic position in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Waypoint is one stop along a mission path.
type Waypoint struct {
	Coordinate
	Altitude float64        `json:"altitude"`
	Action   WaypointAction `json:"action"`
	Duration float64        `json:"duration,omitempty"` // seconds, for hover-like actions
}

// Polygon is a restricted zone expressed as an ordered ring of
// coordinates.
type Polygon struct {
	Ring []Coordinate `json:"ring"`
}

// Mission represents a planned flight task for one drone.
// Waypoints and restricted zones are stored as JSON in SQLite.
// Only status and the actual start/end timestamps mutate once a mission
// leaves the planned state.
type Mission struct {
	ID               int64         `db:"id" json:"id"`
	Name             string        `db:"name" json:"name"`
	Description      string        `db:"description" json:"description"`
	DroneID          int64         `db:"drone_id" json:"drone_id"`
	Status           MissionStatus `db:"status" json:"status"`
	Waypoints        []Waypoint    `db:"waypoints" json:"waypoints"`
	RestrictedZones  []Polygon     `db:"restricted_zones" json:"restricted_zones,omitempty"`
	PlannedStartTime time.Time     `db:"planned_start_time" json:"planned_start_time"`
	PlannedEndTime   time.Time     `db:"planned_end_time" json:"planned_end_time"`
	ActualStartTime  *time.Time    `db:"actual_start_time" json:"actual_start_time"`
	ActualEndTime    *time.Time    `db:"actual_end_time" json:"actual_end_time"`
	CreatedBy        int64         `db:"created_by" json:"created_by"`
}

// ActualDurationHours returns the flown duration in hours, or 0 when
// the mission has not both started and ended.
func (m *Mission) ActualDurationHours() float64 {
	if m.ActualStartTime == nil || m.ActualEndTime == nil {
		return 0
	}
	return m.ActualEndTime.Sub(*m.ActualStartTime).Hours()
}
