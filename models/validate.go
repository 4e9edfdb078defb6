package models

import (
	"fmt"
	"strings"
)

// Violations is the list of constraints an input failed. An empty list
// means the value is valid. Validation runs before construction or
// storage so a rejected value never reaches the entity store.
type Violations []string

// OK reports whether no constraints were violated.
func (v Violations) OK() bool { return len(v) == 0 }

func (v Violations) String() string { return strings.Join(v, "; ") }

// ValidateDrone checks a drone ahead of create/update.
func ValidateDrone(d *Drone) Violations {
	var v Violations
	if strings.TrimSpace(d.Name) == "" {
		v = append(v, "name is required")
	}
	if strings.TrimSpace(d.SerialNumber) == "" {
		v = append(v, "serial_number is required")
	}
	if strings.TrimSpace(d.Model) == "" {
		v = append(v, "model is required")
	}
	if d.Status != "" && !d.Status.Valid() {
		v = append(v, fmt.Sprintf("status %q is not a valid drone status", d.Status))
	}
	if d.BatteryLevel < 0 || d.BatteryLevel > 100 {
		v = append(v, "battery_level must be between 0 and 100")
	}
	if d.TotalFlightHours < 0 {
		v = append(v, "total_flight_hours must not be negative")
	}
	for _, s := range d.Sensors {
		if !s.Valid() {
			v = append(v, fmt.Sprintf("sensor %q is not a valid sensor kind", s))
		}
	}
	return v
}

// ValidateWaypoints checks an ordered waypoint sequence. A mission or a
// simulation needs at least one waypoint, and every waypoint needs a
// known action.
func ValidateWaypoints(wps []Waypoint) Violations {
	var v Violations
	if len(wps) == 0 {
		v = append(v, "waypoints must be a non-empty ordered sequence")
		return v
	}
	for i, wp := range wps {
		if wp.Action != "" && !wp.Action.Valid() {
			v = append(v, fmt.Sprintf("waypoint %d: action %q is not a valid action", i, wp.Action))
		}
		if wp.Duration < 0 {
			v = append(v, fmt.Sprintf("waypoint %d: duration must not be negative", i))
		}
	}
	return v
}

// ValidateMission checks a mission ahead of create/update.
func ValidateMission(m *Mission) Violations {
	var v Violations
	if strings.TrimSpace(m.Name) == "" {
		v = append(v, "name is required")
	}
	if strings.TrimSpace(m.Description) == "" {
		v = append(v, "description is required")
	}
	if m.DroneID == 0 {
		v = append(v, "drone_id is required")
	}
	if m.Status != "" && !m.Status.Valid() {
		v = append(v, fmt.Sprintf("status %q is not a valid mission status", m.Status))
	}
	v = append(v, ValidateWaypoints(m.Waypoints)...)
	for i, z := range m.RestrictedZones {
		if len(z.Ring) < 3 {
			v = append(v, fmt.Sprintf("restricted zone %d: ring needs at least 3 coordinates", i))
		}
	}
	if m.PlannedStartTime.IsZero() {
		v = append(v, "planned_start_time is required")
	}
	if m.PlannedEndTime.IsZero() {
		v = append(v, "planned_end_time is required")
	}
	if !m.PlannedStartTime.IsZero() && !m.PlannedEndTime.IsZero() && !m.PlannedEndTime.After(m.PlannedStartTime) {
		v = append(v, "planned_end_time must be after planned_start_time")
	}
	return v
}
