// Package lifecycle enforces the mission/drone state machine and the
// coupling between the two entities.
//
// Transition graph for missions:
//
//	planned -> in_progress -> completed | aborted | failed
//
// Every transition validates all preconditions before the first write,
// and the status move itself is a guarded conditional update, so a
// rejected operation leaves no partial state and two concurrent writers
// cannot both win.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"droneFleetManagement/internal/fault"
	"droneFleetManagement/models"
	"droneFleetManagement/repository"
)

// Engine owns all mission/drone status mutations.
type Engine struct {
	missions repository.MissionRepositoryI
	drones   repository.DroneRepositoryI
	now      func() time.Time
}

// NewEngine creates a lifecycle engine over the given repositories.
func NewEngine(missions repository.MissionRepositoryI, drones repository.DroneRepositoryI) *Engine {
	return &Engine{missions: missions, drones: drones, now: func() time.Time { return time.Now().UTC() }}
}

// SetClock overrides the engine's time source. Tests only.
func (e *Engine) SetClock(now func() time.Time) { e.now = now }

func (e *Engine) getMission(ctx context.Context, id int64) (*models.Mission, error) {
	m, err := e.missions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get mission: %w", err)
	}
	if m == nil {
		return nil, fault.NotFoundf("mission %d not found", id)
	}
	return m, nil
}

func (e *Engine) getDrone(ctx context.Context, id int64) (*models.Drone, error) {
	d, err := e.drones.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get drone: %w", err)
	}
	if d == nil {
		return nil, fault.NotFoundf("drone %d not found", id)
	}
	return d, nil
}

// CreateMission validates and stores a new mission in planned status.
// Drones in maintenance or error are not eligible.
func (e *Engine) CreateMission(ctx context.Context, m *models.Mission) (*models.Mission, error) {
	if v := models.ValidateMission(m); !v.OK() {
		return nil, fault.Validationf("%s", v.String())
	}
	d, err := e.getDrone(ctx, m.DroneID)
	if err != nil {
		return nil, err
	}
	if d.Status == models.DroneStatusMaintenance || d.Status == models.DroneStatusError {
		return nil, fault.Conflictf("drone %d is not available for missions. Current status: %s", d.ID, d.Status)
	}
	m.Status = models.MissionStatusPlanned
	m.ActualStartTime = nil
	m.ActualEndTime = nil
	return e.missions.Create(ctx, m)
}

// UpdateMission rewrites a mission's plan. Only planned missions are
// mutable.
func (e *Engine) UpdateMission(ctx context.Context, m *models.Mission) (*models.Mission, error) {
	current, err := e.getMission(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if current.Status != models.MissionStatusPlanned {
		return nil, fault.Conflictf("cannot update a mission with status %s", current.Status)
	}
	if v := models.ValidateMission(m); !v.OK() {
		return nil, fault.Validationf("%s", v.String())
	}
	if err := e.missions.Update(ctx, m); err != nil {
		return nil, fmt.Errorf("update mission: %w", err)
	}
	return e.getMission(ctx, m.ID)
}

// DeleteMission removes a mission. Only planned missions may be
// deleted; anything further along is history and stays.
func (e *Engine) DeleteMission(ctx context.Context, id int64) error {
	m, err := e.getMission(ctx, id)
	if err != nil {
		return err
	}
	if m.Status != models.MissionStatusPlanned {
		return fault.Conflictf("cannot delete a mission with status %s", m.Status)
	}
	return e.missions.Delete(ctx, id)
}

// Start moves a planned mission to in_progress, stamps the actual start
// time, and puts the drone in the air.
func (e *Engine) Start(ctx context.Context, missionID int64) (*models.Mission, error) {
	m, err := e.getMission(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MissionStatusPlanned {
		return nil, fault.Conflictf("cannot start a mission with status %s", m.Status)
	}
	d, err := e.getDrone(ctx, m.DroneID)
	if err != nil {
		return nil, err
	}
	switch d.Status {
	case models.DroneStatusFlying, models.DroneStatusMaintenance, models.DroneStatusError:
		return nil, fault.Conflictf("drone %d is not available. Current status: %s", d.ID, d.Status)
	}

	startedAt := e.now()
	ok, err := e.missions.TransitionStatus(ctx, repository.StatusTransition{
		MissionID: m.ID,
		From:      models.MissionStatusPlanned,
		To:        models.MissionStatusInProgress,
		StartedAt: &startedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("start mission: %w", err)
	}
	if !ok {
		// A concurrent writer moved the mission first.
		return nil, fault.Conflictf("mission %d is no longer in planned status", m.ID)
	}
	if err := e.drones.UpdateStatus(ctx, d.ID, models.DroneStatusFlying); err != nil {
		return nil, fmt.Errorf("update drone status: %w", err)
	}
	m.Status = models.MissionStatusInProgress
	m.ActualStartTime = &startedAt
	return m, nil
}

// Abort moves an in-progress mission to aborted and returns the drone
// to active. A drone that no longer exists is skipped silently; the
// mission-side effect still applies.
func (e *Engine) Abort(ctx context.Context, missionID int64) (*models.Mission, error) {
	return e.finish(ctx, missionID, models.MissionStatusAborted)
}

// Complete moves an in-progress mission to completed, returns the drone
// to active, and accrues the flown duration onto the drone's total
// flight hours.
func (e *Engine) Complete(ctx context.Context, missionID int64) (*models.Mission, error) {
	return e.finish(ctx, missionID, models.MissionStatusCompleted)
}

// Fail moves an in-progress mission to failed (e.g. after a drone-side
// error report) and returns the drone to active without accruing hours.
func (e *Engine) Fail(ctx context.Context, missionID int64) (*models.Mission, error) {
	return e.finish(ctx, missionID, models.MissionStatusFailed)
}

func (e *Engine) finish(ctx context.Context, missionID int64, to models.MissionStatus) (*models.Mission, error) {
	m, err := e.getMission(ctx, missionID)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MissionStatusInProgress {
		verb := "abort"
		switch to {
		case models.MissionStatusCompleted:
			verb = "complete"
		case models.MissionStatusFailed:
			verb = "fail"
		}
		return nil, fault.Conflictf("cannot %s a mission with status %s", verb, m.Status)
	}

	endedAt := e.now()
	ok, err := e.missions.TransitionStatus(ctx, repository.StatusTransition{
		MissionID: m.ID,
		From:      models.MissionStatusInProgress,
		To:        to,
		EndedAt:   &endedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("finish mission: %w", err)
	}
	if !ok {
		return nil, fault.Conflictf("mission %d is no longer in progress", m.ID)
	}
	m.Status = to
	m.ActualEndTime = &endedAt

	// Lenient degradation: a drone deleted mid-mission does not block
	// closing out the mission.
	d, err := e.drones.GetByID(ctx, m.DroneID)
	if err != nil {
		return nil, fmt.Errorf("get drone: %w", err)
	}
	if d != nil {
		if err := e.drones.UpdateStatus(ctx, d.ID, models.DroneStatusActive); err != nil {
			return nil, fmt.Errorf("update drone status: %w", err)
		}
		if to == models.MissionStatusCompleted && m.ActualStartTime != nil {
			hours := endedAt.Sub(*m.ActualStartTime).Hours()
			if hours > 0 {
				if err := e.drones.AddFlightHours(ctx, d.ID, hours); err != nil {
					return nil, fmt.Errorf("add flight hours: %w", err)
				}
			}
		}
	}
	return m, nil
}

// DeleteDrone removes a drone unless any mission, in any status,
// still references it.
func (e *Engine) DeleteDrone(ctx context.Context, droneID int64) error {
	if _, err := e.getDrone(ctx, droneID); err != nil {
		return err
	}
	n, err := e.missions.CountByDrone(ctx, droneID)
	if err != nil {
		return fmt.Errorf("count missions: %w", err)
	}
	if n > 0 {
		return fault.Conflictf("cannot delete drone %d: %d missions reference it", droneID, n)
	}
	return e.drones.Delete(ctx, droneID)
}

// UpdateDroneStatus is the operator override: any valid status, no
// precondition beyond the role check at the boundary.
func (e *Engine) UpdateDroneStatus(ctx context.Context, droneID int64, status models.DroneStatus) (*models.Drone, error) {
	if !status.Valid() {
		return nil, fault.Validationf("status %q is not a valid drone status", status)
	}
	d, err := e.getDrone(ctx, droneID)
	if err != nil {
		return nil, err
	}
	if err := e.drones.UpdateStatus(ctx, d.ID, status); err != nil {
		return nil, fmt.Errorf("update drone status: %w", err)
	}
	d.Status = status
	return d, nil
}

// ScheduleMaintenance sets the next maintenance date and moves the
// drone into maintenance, unconditionally.
func (e *Engine) ScheduleMaintenance(ctx context.Context, droneID int64, date time.Time) (*models.Drone, error) {
	if date.IsZero() {
		return nil, fault.Validationf("maintenance date is required")
	}
	d, err := e.getDrone(ctx, droneID)
	if err != nil {
		return nil, err
	}
	if err := e.drones.ScheduleMaintenance(ctx, d.ID, date); err != nil {
		return nil, fmt.Errorf("schedule maintenance: %w", err)
	}
	d.Status = models.DroneStatusMaintenance
	d.NextMaintenance = date
	return d, nil
}

// DroneStats summarizes a drone's mission history and maintenance
// standing.
type DroneStats struct {
	TotalMissions      int64                    `json:"totalMissions"`
	CompletedMissions  int64                    `json:"completedMissions"`
	AbortedMissions    int64                    `json:"abortedMissions"`
	FailedMissions     int64                    `json:"failedMissions"`
	PlannedMissions    int64                    `json:"plannedMissions"`
	InProgressMissions int64                    `json:"inProgressMissions"`
	TotalFlightHours   float64                  `json:"totalFlightHours"`
	MaintenanceStatus  models.MaintenanceStatus `json:"maintenanceStatus"`
}

// Stats computes per-drone mission counts and maintenance standing.
func (e *Engine) Stats(ctx context.Context, droneID int64) (*DroneStats, error) {
	d, err := e.getDrone(ctx, droneID)
	if err != nil {
		return nil, err
	}
	counts, err := e.missions.CountsByStatus(ctx, droneID)
	if err != nil {
		return nil, fmt.Errorf("count missions: %w", err)
	}
	s := &DroneStats{
		CompletedMissions:  counts[models.MissionStatusCompleted],
		AbortedMissions:    counts[models.MissionStatusAborted],
		FailedMissions:     counts[models.MissionStatusFailed],
		PlannedMissions:    counts[models.MissionStatusPlanned],
		InProgressMissions: counts[models.MissionStatusInProgress],
		TotalFlightHours:   d.TotalFlightHours,
		MaintenanceStatus:  d.MaintenanceDue(e.now()),
	}
	for _, n := range counts {
		s.TotalMissions += n
	}
	return s, nil
}
