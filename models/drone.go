package models

import "time"

// DroneStatus represents the operational state of a drone.
type DroneStatus string

const (
	DroneStatusActive      DroneStatus = "active"
	DroneStatusMaintenance DroneStatus = "maintenance"
	DroneStatusInactive    DroneStatus = "inactive"
	DroneStatusFlying      DroneStatus = "flying"
	DroneStatusCharging    DroneStatus = "charging"
	DroneStatusError       DroneStatus = "error"
)

// Valid reports whether s is a known drone status.
func (s DroneStatus) Valid() bool {
	switch s {
	case DroneStatusActive, DroneStatusMaintenance, DroneStatusInactive,
		DroneStatusFlying, DroneStatusCharging, DroneStatusError:
		return true
	}
	return false
}

// Sensor is a drone capability kind.
type Sensor string

const (
	SensorCamera        Sensor = "camera"
	SensorThermal       Sensor = "thermal"
	SensorLidar         Sensor = "lidar"
	SensorMultispectral Sensor = "multispectral"
	SensorGas           Sensor = "gas"
	SensorRadiation     Sensor = "radiation"
)

// Valid reports whether s is a known sensor kind.
func (s Sensor) Valid() bool {
	switch s {
	case SensorCamera, SensorThermal, SensorLidar, SensorMultispectral, SensorGas, SensorRadiation:
		return true
	}
	return false
}

// Drone represents a fleet drone.
// Sensors are stored as a comma-delimited string in SQLite.
type Drone struct {
	ID               int64       `db:"id" json:"id"`
	Name             string      `db:"name" json:"name"`
	SerialNumber     string      `db:"serial_number" json:"serial_number"`
	Model            string      `db:"model" json:"model"`
	Status           DroneStatus `db:"status" json:"status"`
	BatteryLevel     float64     `db:"battery_level" json:"battery_level"`
	LastMaintenance  time.Time   `db:"last_maintenance" json:"last_maintenance"`
	NextMaintenance  time.Time   `db:"next_maintenance" json:"next_maintenance"`
	TotalFlightHours float64     `db:"total_flight_hours" json:"total_flight_hours"`
	Lat              float64     `db:"lat" json:"lat"`
	Lng              float64     `db:"lng" json:"lng"`
	Altitude         float64     `db:"altitude" json:"altitude"`
	MaxSpeed         float64     `db:"max_speed" json:"max_speed"`             // m/s
	MaxAltitude      float64     `db:"max_altitude" json:"max_altitude"`       // meters
	MaxFlightTime    float64     `db:"max_flight_time" json:"max_flight_time"` // minutes
	Sensors          []Sensor    `db:"sensors" json:"sensors"`
	CreatedBy        int64       `db:"created_by" json:"created_by"`
}

// MaintenanceStatus summarizes how close a drone is to its next
// scheduled maintenance.
type MaintenanceStatus struct {
	Status string `json:"status"` // "overdue", "warning", "ok"
	Days   int    `json:"days"`
}

// MaintenanceDue computes the maintenance status relative to now.
// Maintenance within 7 days is a warning; past due is overdue.
func (d *Drone) MaintenanceDue(now time.Time) MaintenanceStatus {
	days := int(d.NextMaintenance.Sub(now).Hours() / 24)
	switch {
	case days < 0:
		return MaintenanceStatus{Status: "overdue", Days: -days}
	case days <= 7:
		return MaintenanceStatus{Status: "warning", Days: days}
	default:
		return MaintenanceStatus{Status: "ok", Days: days}
	}
}
