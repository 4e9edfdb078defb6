package repository

import (
	"context"
	"time"

	"droneFleetManagement/models"
)

// UserRepositoryI defines operations on User entities.
type UserRepositoryI interface {
	Create(ctx context.Context, u *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// DroneRepositoryI defines operations on Drone entities.
type DroneRepositoryI interface {
	Create(ctx context.Context, d *models.Drone) (*models.Drone, error)
	GetByID(ctx context.Context, id int64) (*models.Drone, error)
	GetBySerial(ctx context.Context, serial string) (*models.Drone, error)
	List(ctx context.Context, p ListDronesParams) ([]models.Drone, error)
	Update(ctx context.Context, d *models.Drone) error
	UpdateStatus(ctx context.Context, id int64, status models.DroneStatus) error
	UpdateLocation(ctx context.Context, id int64, lat, lng, altitude float64) error
	AddFlightHours(ctx context.Context, id int64, hours float64) error
	ScheduleMaintenance(ctx context.Context, id int64, next time.Time) error
	Delete(ctx context.Context, id int64) error
}

// MissionRepositoryI defines operations on Mission entities.
type MissionRepositoryI interface {
	Create(ctx context.Context, m *models.Mission) (*models.Mission, error)
	GetByID(ctx context.Context, id int64) (*models.Mission, error)
	List(ctx context.Context, p ListMissionsParams) ([]models.Mission, error)
	Update(ctx context.Context, m *models.Mission) error
	TransitionStatus(ctx context.Context, t StatusTransition) (bool, error)
	Delete(ctx context.Context, id int64) error
	CountByDrone(ctx context.Context, droneID int64) (int64, error)
	CountsByStatus(ctx context.Context, droneID int64) (map[models.MissionStatus]int64, error)
}
