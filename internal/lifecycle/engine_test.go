package lifecycle

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"droneFleetManagement/internal/fault"
	"droneFleetManagement/internal/testutil"
	"droneFleetManagement/models"
	"droneFleetManagement/repository"
)

type fixtures struct {
	engine   *Engine
	drones   *repository.DroneRepository
	missions *repository.MissionRepository
	user     *models.User
}

func setup(t *testing.T, name string) *fixtures {
	t.Helper()
	d := testutil.OpenInMemoryDB(t, name)
	drones := repository.NewDroneRepository(d)
	missions := repository.NewMissionRepository(d)
	users := repository.NewUserRepository(d)

	u, err := users.Create(context.Background(), &models.User{
		Name: "Op", Email: name + "@example.com", Role: models.RoleOperator, IsActive: true,
	})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return &fixtures{
		engine:   NewEngine(missions, drones),
		drones:   drones,
		missions: missions,
		user:     u,
	}
}

func (f *fixtures) createDrone(t *testing.T, serial string, status models.DroneStatus) *models.Drone {
	t.Helper()
	d, err := f.drones.Create(context.Background(), &models.Drone{
		Name: "Fixture", SerialNumber: serial, Model: "QX-4", Status: status, CreatedBy: f.user.ID,
	})
	if err != nil {
		t.Fatalf("create drone: %v", err)
	}
	return d
}

func (f *fixtures) newMission(droneID int64) *models.Mission {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	return &models.Mission{
		Name:        "Survey",
		Description: "Field survey flight",
		DroneID:     droneID,
		Waypoints: []models.Waypoint{
			{Coordinate: models.Coordinate{Lat: 52.5, Lng: 13.4}, Altitude: 30, Action: models.ActionTakeoff},
			{Coordinate: models.Coordinate{Lat: 52.51, Lng: 13.41}, Altitude: 30, Action: models.ActionLand},
		},
		PlannedStartTime: start,
		PlannedEndTime:   start.Add(time.Hour),
		CreatedBy:        f.user.ID,
	}
}

func TestMissionLifecycleHappyPath(t *testing.T) {
	f := setup(t, "lifecycle_happy")
	ctx := context.Background()
	d := f.createDrone(t, "SN-L-001", models.DroneStatusActive)

	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	f.engine.SetClock(func() time.Time { return now })

	m, err := f.engine.CreateMission(ctx, f.newMission(d.ID))
	if err != nil {
		t.Fatalf("create mission: %v", err)
	}
	if m.Status != models.MissionStatusPlanned {
		t.Fatalf("new mission status = %s, want planned", m.Status)
	}

	m, err = f.engine.Start(ctx, m.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if m.Status != models.MissionStatusInProgress {
		t.Errorf("status = %s, want in_progress", m.Status)
	}
	if m.ActualStartTime == nil || !m.ActualStartTime.Equal(now) {
		t.Errorf("actual start = %v, want %v", m.ActualStartTime, now)
	}
	dAfter, _ := f.drones.GetByID(ctx, d.ID)
	if dAfter.Status != models.DroneStatusFlying {
		t.Errorf("drone status = %s, want flying", dAfter.Status)
	}

	// Complete half an hour later: 0.5 flight hours accrue.
	now = now.Add(30 * time.Minute)
	m, err = f.engine.Complete(ctx, m.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if m.Status != models.MissionStatusCompleted {
		t.Errorf("status = %s, want completed", m.Status)
	}
	dAfter, _ = f.drones.GetByID(ctx, d.ID)
	if dAfter.Status != models.DroneStatusActive {
		t.Errorf("drone status = %s, want active", dAfter.Status)
	}
	if math.Abs(dAfter.TotalFlightHours-0.5) > 1e-9 {
		t.Errorf("flight hours = %v, want 0.5", dAfter.TotalFlightHours)
	}
}

func TestStartRejectsNonPlanned(t *testing.T) {
	f := setup(t, "lifecycle_start_twice")
	ctx := context.Background()
	d := f.createDrone(t, "SN-L-002", models.DroneStatusActive)

	m, err := f.engine.CreateMission(ctx, f.newMission(d.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.engine.Start(ctx, m.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	_, err = f.engine.Start(ctx, m.ID)
	if !fault.Is(err, fault.KindConflict) {
		t.Fatalf("second start should conflict, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "in_progress") {
		t.Errorf("conflict message should name the current status: %v", err)
	}
}

func TestStartRejectsBusyDrone(t *testing.T) {
	f := setup(t, "lifecycle_busy_drone")
	ctx := context.Background()
	d := f.createDrone(t, "SN-L-003", models.DroneStatusActive)

	first, err := f.engine.CreateMission(ctx, f.newMission(d.ID))
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := f.engine.CreateMission(ctx, f.newMission(d.ID))
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if _, err := f.engine.Start(ctx, first.ID); err != nil {
		t.Fatalf("start first: %v", err)
	}

	// The drone is flying; the second mission must not start, and must
	// stay planned.
	_, err = f.engine.Start(ctx, second.ID)
	if !fault.Is(err, fault.KindConflict) {
		t.Fatalf("start with flying drone should conflict, got %v", err)
	}
	got, _ := f.missions.GetByID(ctx, second.ID)
	if got.Status != models.MissionStatusPlanned {
		t.Errorf("rejected start mutated the mission: %s", got.Status)
	}
}

func TestCreateMissionRejectsUnavailableDrone(t *testing.T) {
	f := setup(t, "lifecycle_unavailable")
	ctx := context.Background()
	d := f.createDrone(t, "SN-L-004", models.DroneStatusMaintenance)

	_, err := f.engine.CreateMission(ctx, f.newMission(d.ID))
	if !fault.Is(err, fault.KindConflict) {
		t.Fatalf("maintenance drone should conflict, got %v", err)
	}
	if !strings.Contains(err.Error(), "maintenance") {
		t.Errorf("message should name the drone status: %v", err)
	}
}

func TestCreateMissionValidation(t *testing.T) {
	f := setup(t, "lifecycle_validation")
	ctx := context.Background()
	d := f.createDrone(t, "SN-L-005", models.DroneStatusActive)

	m := f.newMission(d.ID)
	m.Waypoints = nil
	_, err := f.engine.CreateMission(ctx, m)
	if !fault.Is(err, fault.KindValidation) {
		t.Fatalf("empty waypoints should be a validation fault, got %v", err)
	}

	_, err = f.engine.CreateMission(ctx, f.newMission(9999))
	if !fault.Is(err, fault.KindNotFound) {
		t.Fatalf("unknown drone should be not-found, got %v", err)
	}
}

func TestAbortReturnsDroneWithoutHours(t *testing.T) {
	f := setup(t, "lifecycle_abort")
	ctx := context.Background()
	d := f.createDrone(t, "SN-L-006", models.DroneStatusActive)

	m, err := f.engine.CreateMission(ctx, f.newMission(d.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.engine.Start(ctx, m.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	m, err = f.engine.Abort(ctx, m.ID)
	if err != nil {
		t.Fatalf("abort: %v", err)
	}
	if m.Status != models.MissionStatusAborted {
		t.Errorf("status = %s, want aborted", m.Status)
	}
	dAfter, _ := f.drones.GetByID(ctx, d.ID)
	if dAfter.Status != models.DroneStatusActive {
		t.Errorf("drone status = %s, want active", dAfter.Status)
	}
	if dAfter.TotalFlightHours != 0 {
		t.Errorf("abort should not accrue flight hours, got %v", dAfter.TotalFlightHours)
	}

	// Terminal missions cannot be closed again.
	if _, err := f.engine.Complete(ctx, m.ID); !fault.Is(err, fault.KindConflict) {
		t.Errorf("completing an aborted mission should conflict, got %v", err)
	}
}

func TestFailMission(t *testing.T) {
	f := setup(t, "lifecycle_fail")
	ctx := context.Background()
	d := f.createDrone(t, "SN-L-007", models.DroneStatusActive)

	m, err := f.engine.CreateMission(ctx, f.newMission(d.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.engine.Fail(ctx, m.ID); !fault.Is(err, fault.KindConflict) {
		t.Fatalf("failing a planned mission should conflict, got %v", err)
	}
	if _, err := f.engine.Start(ctx, m.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	m, err = f.engine.Fail(ctx, m.ID)
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if m.Status != models.MissionStatusFailed || m.ActualEndTime == nil {
		t.Errorf("failed mission state wrong: %+v", m)
	}
}

func TestUpdateAndDeleteOnlyPlanned(t *testing.T) {
	f := setup(t, "lifecycle_mutability")
	ctx := context.Background()
	d := f.createDrone(t, "SN-L-008", models.DroneStatusActive)

	m, err := f.engine.CreateMission(ctx, f.newMission(d.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	m.Description = "Adjusted flight plan"
	if _, err := f.engine.UpdateMission(ctx, m); err != nil {
		t.Fatalf("update planned mission: %v", err)
	}

	if _, err := f.engine.Start(ctx, m.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.engine.UpdateMission(ctx, m); !fault.Is(err, fault.KindConflict) {
		t.Errorf("updating an in-progress mission should conflict, got %v", err)
	}
	if err := f.engine.DeleteMission(ctx, m.ID); !fault.Is(err, fault.KindConflict) {
		t.Errorf("deleting an in-progress mission should conflict, got %v", err)
	}
}

func TestDeleteDroneGuard(t *testing.T) {
	f := setup(t, "lifecycle_delete_drone")
	ctx := context.Background()
	d := f.createDrone(t, "SN-L-009", models.DroneStatusActive)
	free := f.createDrone(t, "SN-L-010", models.DroneStatusActive)

	if _, err := f.engine.CreateMission(ctx, f.newMission(d.ID)); err != nil {
		t.Fatalf("create mission: %v", err)
	}

	err := f.engine.DeleteDrone(ctx, d.ID)
	if !fault.Is(err, fault.KindConflict) {
		t.Fatalf("deleting a referenced drone should conflict, got %v", err)
	}
	if !strings.Contains(err.Error(), "1 missions") {
		t.Errorf("conflict message should carry the mission count: %v", err)
	}

	if err := f.engine.DeleteDrone(ctx, free.ID); err != nil {
		t.Fatalf("deleting an unreferenced drone: %v", err)
	}
	if err := f.engine.DeleteDrone(ctx, free.ID); !fault.Is(err, fault.KindNotFound) {
		t.Errorf("second delete should be not-found, got %v", err)
	}
}

func TestUpdateDroneStatusOverride(t *testing.T) {
	f := setup(t, "lifecycle_status_override")
	ctx := context.Background()
	d := f.createDrone(t, "SN-L-011", models.DroneStatusActive)

	got, err := f.engine.UpdateDroneStatus(ctx, d.ID, models.DroneStatusCharging)
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if got.Status != models.DroneStatusCharging {
		t.Errorf("status = %s, want charging", got.Status)
	}

	if _, err := f.engine.UpdateDroneStatus(ctx, d.ID, "warp"); !fault.Is(err, fault.KindValidation) {
		t.Errorf("unknown status should be a validation fault, got %v", err)
	}
}

func TestScheduleMaintenance(t *testing.T) {
	f := setup(t, "lifecycle_maintenance")
	ctx := context.Background()
	d := f.createDrone(t, "SN-L-012", models.DroneStatusActive)

	if _, err := f.engine.ScheduleMaintenance(ctx, d.ID, time.Time{}); !fault.Is(err, fault.KindValidation) {
		t.Fatalf("zero date should be a validation fault, got %v", err)
	}

	next := time.Now().UTC().AddDate(0, 0, 14)
	got, err := f.engine.ScheduleMaintenance(ctx, d.ID, next)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if got.Status != models.DroneStatusMaintenance {
		t.Errorf("status = %s, want maintenance", got.Status)
	}
}

func TestDroneStats(t *testing.T) {
	f := setup(t, "lifecycle_stats")
	ctx := context.Background()
	d := f.createDrone(t, "SN-L-013", models.DroneStatusActive)

	m, err := f.engine.CreateMission(ctx, f.newMission(d.ID))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.engine.CreateMission(ctx, f.newMission(d.ID)); err != nil {
		t.Fatalf("create second: %v", err)
	}
	if _, err := f.engine.Start(ctx, m.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := f.engine.Complete(ctx, m.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	stats, err := f.engine.Stats(ctx, d.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalMissions != 2 {
		t.Errorf("total = %d, want 2", stats.TotalMissions)
	}
	if stats.CompletedMissions != 1 || stats.PlannedMissions != 1 {
		t.Errorf("counts = %+v", stats)
	}
	if stats.MaintenanceStatus.Status == "" {
		t.Errorf("maintenance standing missing")
	}
}
