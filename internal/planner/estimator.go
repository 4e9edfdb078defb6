// Package planner estimates whether a proposed mission is feasible
// before it is created.
package planner

import (
	"math"

	"droneFleetManagement/internal/fault"
	"droneFleetManagement/models"
)

const (
	// MetersPerDegree converts planar degree distance to meters.
	// Path distance is a planar approximation, not geodesic.
	MetersPerDegree = 111000.0
	// CruiseSpeedMPS is the assumed constant cruise speed.
	CruiseSpeedMPS = 10.0
	// BatteryPctPerSecond is the assumed drain: 1% per 2 minutes.
	BatteryPctPerSecond = 1.0 / 120.0
	// FeasibleThresholdPct is the safety ceiling on estimated
	// consumption; at or above it a mission is not feasible.
	FeasibleThresholdPct = 80.0
)

// Estimate is the feasibility result for a waypoint sequence.
type Estimate struct {
	TotalDistance      float64 `json:"totalDistance"`      // meters
	EstimatedDuration  float64 `json:"estimatedDuration"`  // seconds
	BatteryConsumption float64 `json:"batteryConsumption"` // percent
	Feasible           bool    `json:"feasible"`
	WaypointCount      int     `json:"waypointCount"`
}

// PathDistanceMeters sums the planar distance between consecutive
// waypoints, scaled by MetersPerDegree.
func PathDistanceMeters(wps []models.Waypoint) float64 {
	var total float64
	for i := 1; i < len(wps); i++ {
		dLat := wps[i].Lat - wps[i-1].Lat
		dLng := wps[i].Lng - wps[i-1].Lng
		total += math.Sqrt(dLat*dLat+dLng*dLng) * MetersPerDegree
	}
	return total
}

// Simulate computes distance, duration and battery consumption for an
// ordered waypoint sequence. Pure and deterministic: the same input
// always yields the same estimate.
func Simulate(wps []models.Waypoint) (*Estimate, error) {
	if v := models.ValidateWaypoints(wps); !v.OK() {
		return nil, fault.Validationf("%s", v.String())
	}
	distance := PathDistanceMeters(wps)
	duration := distance / CruiseSpeedMPS
	consumption := duration * BatteryPctPerSecond
	return &Estimate{
		TotalDistance:      distance,
		EstimatedDuration:  duration,
		BatteryConsumption: consumption,
		Feasible:           consumption < FeasibleThresholdPct,
		WaypointCount:      len(wps),
	}, nil
}
