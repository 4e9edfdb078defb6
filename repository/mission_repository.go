package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"droneFleetManagement/models"
)

const missionColumns = `id, name, description, drone_id, status, waypoints, restricted_zones,
	planned_start_time, planned_end_time, actual_start_time, actual_end_time, created_by`

type MissionRepository struct {
	db *sql.DB
}

func NewMissionRepository(db *sql.DB) *MissionRepository {
	return &MissionRepository{db: db}
}

type missionScanner interface {
	Scan(dest ...any) error
}

func scanMission(row missionScanner) (*models.Mission, error) {
	var m models.Mission
	var status, waypoints, zones string
	var start, end sql.NullTime
	err := row.Scan(&m.ID, &m.Name, &m.Description, &m.DroneID, &status, &waypoints, &zones,
		&m.PlannedStartTime, &m.PlannedEndTime, &start, &end, &m.CreatedBy)
	if err != nil {
		return nil, err
	}
	m.Status = models.MissionStatus(status)
	if err := json.Unmarshal([]byte(waypoints), &m.Waypoints); err != nil {
		return nil, fmt.Errorf("decode waypoints for mission %d: %w", m.ID, err)
	}
	if zones != "" {
		if err := json.Unmarshal([]byte(zones), &m.RestrictedZones); err != nil {
			return nil, fmt.Errorf("decode restricted zones for mission %d: %w", m.ID, err)
		}
	}
	if start.Valid {
		t := start.Time
		m.ActualStartTime = &t
	}
	if end.Valid {
		t := end.Time
		m.ActualEndTime = &t
	}
	return &m, nil
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Create inserts a new mission. Status defaults to 'planned' if empty.
func (r *MissionRepository) Create(ctx context.Context, m *models.Mission) (*models.Mission, error) {
	if m == nil {
		return nil, errors.New("mission is nil")
	}
	if m.Status == "" {
		m.Status = models.MissionStatusPlanned
	}
	waypoints, err := encodeJSON(m.Waypoints)
	if err != nil {
		return nil, err
	}
	if m.RestrictedZones == nil {
		m.RestrictedZones = []models.Polygon{}
	}
	zones, err := encodeJSON(m.RestrictedZones)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `INSERT INTO missions
		(name, description, drone_id, status, waypoints, restricted_zones,
		 planned_start_time, planned_end_time, created_by)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		m.Name, m.Description, m.DroneID, string(m.Status), waypoints, zones,
		m.PlannedStartTime, m.PlannedEndTime, m.CreatedBy)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	m.ID = id
	return m, nil
}

func (r *MissionRepository) GetByID(ctx context.Context, id int64) (*models.Mission, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	m, err := scanMission(r.db.QueryRowContext(ctx, `SELECT `+missionColumns+` FROM missions WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return m, err
}

// ListMissionsParams contains filters and pagination for List.
type ListMissionsParams struct {
	Status   *models.MissionStatus
	DroneID  *int64
	PageSize int
	AfterID  int64
}

// List returns missions matching filters ordered by id asc with keyset
// pagination by id.
func (r *MissionRepository) List(ctx context.Context, p ListMissionsParams) ([]models.Mission, error) {
	if p.PageSize <= 0 {
		p.PageSize = 20
	}
	if p.PageSize > 100 {
		p.PageSize = 100
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	where := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if p.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*p.Status))
	}
	if p.DroneID != nil {
		where = append(where, "drone_id = ?")
		args = append(args, *p.DroneID)
	}
	if p.AfterID > 0 {
		where = append(where, "id > ?")
		args = append(args, p.AfterID)
	}

	query := `SELECT ` + missionColumns + ` FROM missions`
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

	var out []models.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// Update rewrites the mission's plan fields. Status and the actual
// timestamps never move through here; they move through
// TransitionStatus only.
func (r *MissionRepository) Update(ctx context.Context, m *models.Mission) error {
	waypoints, err := encodeJSON(m.Waypoints)
	if err != nil {
		return err
	}
	if m.RestrictedZones == nil {
		m.RestrictedZones = []models.Polygon{}
	}
	zones, err := encodeJSON(m.RestrictedZones)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err = r.db.ExecContext(ctx, `UPDATE missions SET
		name = ?, description = ?, drone_id = ?, waypoints = ?, restricted_zones = ?,
		planned_start_time = ?, planned_end_time = ?
		WHERE id = ?`,
		m.Name, m.Description, m.DroneID, waypoints, zones,
		m.PlannedStartTime, m.PlannedEndTime, m.ID)
	return err
}

// StatusTransition describes one guarded status move.
type StatusTransition struct {
	MissionID int64
	From      models.MissionStatus
	To        models.MissionStatus
	StartedAt *time.Time // set on transition to in_progress
	EndedAt   *time.Time // set on transition to a terminal state
}

// TransitionStatus conditionally moves a mission from one status to
// another. The WHERE clause re-checks the expected current status, so
// of two concurrent writers only one sees a row change; the loser gets
// false and must treat it as a conflict.
func (r *MissionRepository) TransitionStatus(ctx context.Context, t StatusTransition) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	set := []string{"status = ?"}
	args := []any{string(t.To)}
	if t.StartedAt != nil {
		set = append(set, "actual_start_time = ?")
		args = append(args, *t.StartedAt)
	}
	if t.EndedAt != nil {
		set = append(set, "actual_end_time = ?")
		args = append(args, *t.EndedAt)
	}
	args = append(args, t.MissionID, string(t.From))

	res, err := r.db.ExecContext(ctx,
		`UPDATE missions SET `+strings.Join(set, ", ")+` WHERE id = ? AND status = ?`, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *MissionRepository) Delete(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := r.db.ExecContext(ctx, `DELETE FROM missions WHERE id = ?`, id)
	return err
}

// CountByDrone counts missions referencing a drone, in any status.
func (r *MissionRepository) CountByDrone(ctx context.Context, droneID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM missions WHERE drone_id = ?`, droneID).Scan(&n)
	return n, err
}

// CountsByStatus returns per-status mission counts for a drone.
func (r *MissionRepository) CountsByStatus(ctx context.Context, droneID int64) (map[models.MissionStatus]int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM missions WHERE drone_id = ? GROUP BY status`, droneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[models.MissionStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[models.MissionStatus(status)] = n
	}
	return out, rows.Err()
}
