package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"droneFleetManagement/models"
)

const droneColumns = `id, name, serial_number, model, status, battery_level,
	last_maintenance, next_maintenance, total_flight_hours,
	lat, lng, altitude, max_speed, max_altitude, max_flight_time, sensors, created_by`

type DroneRepository struct {
	db *sql.DB
}

func NewDroneRepository(db *sql.DB) *DroneRepository {
	return &DroneRepository{db: db}
}

func joinSensors(sensors []models.Sensor) string {
	parts := make([]string, 0, len(sensors))
	for _, s := range sensors {
		parts = append(parts, string(s))
	}
	return strings.Join(parts, ",")
}

func splitSensors(s string) []models.Sensor {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]models.Sensor, 0, len(parts))
	for _, p := range parts {
		out = append(out, models.Sensor(p))
	}
	return out
}

type droneScanner interface {
	Scan(dest ...any) error
}

func scanDrone(row droneScanner) (*models.Drone, error) {
	var d models.Drone
	var status, sensors string
	err := row.Scan(&d.ID, &d.Name, &d.SerialNumber, &d.Model, &status, &d.BatteryLevel,
		&d.LastMaintenance, &d.NextMaintenance, &d.TotalFlightHours,
		&d.Lat, &d.Lng, &d.Altitude, &d.MaxSpeed, &d.MaxAltitude, &d.MaxFlightTime, &sensors, &d.CreatedBy)
	if err != nil {
		return nil, err
	}
	d.Status = models.DroneStatus(status)
	d.Sensors = splitSensors(sensors)
	return &d, nil
}

// Create inserts a new drone. Status defaults to 'inactive' if empty;
// battery defaults to 100 when unset; maintenance dates default to
// now / now+3 months.
func (r *DroneRepository) Create(ctx context.Context, d *models.Drone) (*models.Drone, error) {
	if d == nil {
		return nil, errors.New("drone is nil")
	}
	if d.Status == "" {
		d.Status = models.DroneStatusInactive
	}
	if d.BatteryLevel == 0 {
		d.BatteryLevel = 100
	}
	now := time.Now().UTC()
	if d.LastMaintenance.IsZero() {
		d.LastMaintenance = now
	}
	if d.NextMaintenance.IsZero() {
		d.NextMaintenance = now.AddDate(0, 3, 0)
	}
	if d.MaxSpeed == 0 {
		d.MaxSpeed = 20
	}
	if d.MaxAltitude == 0 {
		d.MaxAltitude = 120
	}
	if d.MaxFlightTime == 0 {
		d.MaxFlightTime = 30
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `INSERT INTO drones
		(name, serial_number, model, status, battery_level, last_maintenance, next_maintenance,
		 total_flight_hours, lat, lng, altitude, max_speed, max_altitude, max_flight_time, sensors, created_by)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.Name, d.SerialNumber, d.Model, string(d.Status), d.BatteryLevel, d.LastMaintenance, d.NextMaintenance,
		d.TotalFlightHours, d.Lat, d.Lng, d.Altitude, d.MaxSpeed, d.MaxAltitude, d.MaxFlightTime,
		joinSensors(d.Sensors), d.CreatedBy)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	d.ID = id
	return d, nil
}

func (r *DroneRepository) GetByID(ctx context.Context, id int64) (*models.Drone, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	d, err := scanDrone(r.db.QueryRowContext(ctx, `SELECT `+droneColumns+` FROM drones WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

func (r *DroneRepository) GetBySerial(ctx context.Context, serial string) (*models.Drone, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	d, err := scanDrone(r.db.QueryRowContext(ctx, `SELECT `+droneColumns+` FROM drones WHERE serial_number = ?`, serial))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return d, err
}

// ListDronesParams contains filters and pagination for List.
type ListDronesParams struct {
	Status   *models.DroneStatus
	PageSize int
	AfterID  int64
}

// List returns drones matching filters ordered by id asc with keyset
// pagination by id.
func (r *DroneRepository) List(ctx context.Context, p ListDronesParams) ([]models.Drone, error) {
	if p.PageSize <= 0 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	where := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if p.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*p.Status))
	}
	if p.AfterID > 0 {
		where = append(where, "id > ?")
		args = append(args, p.AfterID)
	}

	query := `SELECT ` + droneColumns + ` FROM drones`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC LIMIT ?"
	args = append(args, p.PageSize)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Drone
	for rows.Next() {
		d, err := scanDrone(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Update rewrites the drone's mutable attributes. Status is not touched
// here; it moves through UpdateStatus and the lifecycle transitions.
func (r *DroneRepository) Update(ctx context.Context, d *models.Drone) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `UPDATE drones SET
		name = ?, serial_number = ?, model = ?, battery_level = ?,
		last_maintenance = ?, next_maintenance = ?,
		lat = ?, lng = ?, altitude = ?, max_speed = ?, max_altitude = ?, max_flight_time = ?, sensors = ?
		WHERE id = ?`,
		d.Name, d.SerialNumber, d.Model, d.BatteryLevel,
		d.LastMaintenance, d.NextMaintenance,
		d.Lat, d.Lng, d.Altitude, d.MaxSpeed, d.MaxAltitude, d.MaxFlightTime, joinSensors(d.Sensors),
		d.ID)
	return err
}

func (r *DroneRepository) UpdateStatus(ctx context.Context, id int64, status models.DroneStatus) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `UPDATE drones SET status = ? WHERE id = ?`, string(status), id)
	return err
}

func (r *DroneRepository) UpdateLocation(ctx context.Context, id int64, lat, lng, altitude float64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `UPDATE drones SET lat = ?, lng = ?, altitude = ? WHERE id = ?`, lat, lng, altitude, id)
	return err
}

// AddFlightHours accumulates flown time. Hours only ever increase.
func (r *DroneRepository) AddFlightHours(ctx context.Context, id int64, hours float64) error {
	if hours < 0 {
		return errors.New("flight hours must not be negative")
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `UPDATE drones SET total_flight_hours = total_flight_hours + ? WHERE id = ?`, hours, id)
	return err
}

// ScheduleMaintenance sets the next maintenance date and moves the
// drone into maintenance status.
func (r *DroneRepository) ScheduleMaintenance(ctx context.Context, id int64, next time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `UPDATE drones SET status = ?, next_maintenance = ? WHERE id = ?`,
		string(models.DroneStatusMaintenance), next, id)
	return err
}

func (r *DroneRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `DELETE FROM drones WHERE id = ?`, id)
	return err
}
