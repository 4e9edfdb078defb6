// Package httpapi is the REST boundary: chi routing, role gates, and
// the JSON envelope every endpoint speaks.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"droneFleetManagement/internal/auth"
	"droneFleetManagement/internal/lifecycle"
	"droneFleetManagement/internal/telemetry"
	"droneFleetManagement/models"
	"droneFleetManagement/repository"
)

// Server holds the wired application and builds the router.
type Server struct {
	logger   *slog.Logger
	engine   *lifecycle.Engine
	drones   repository.DroneRepositoryI
	missions repository.MissionRepositoryI
	registry *telemetry.Registry
	ws       *telemetry.WSHandler
	auth     *auth.Middleware
	origins  []string
}

// Deps are the collaborators the server routes to.
type Deps struct {
	Logger         *slog.Logger
	Engine         *lifecycle.Engine
	Drones         repository.DroneRepositoryI
	Missions       repository.MissionRepositoryI
	Users          repository.UserRepositoryI
	Registry       *telemetry.Registry
	WS             *telemetry.WSHandler
	JWTSecret      string
	AllowedOrigins []string
}

// New wires a server from its dependencies.
func New(d Deps) *Server {
	s := &Server{
		logger:   d.Logger,
		engine:   d.Engine,
		drones:   d.Drones,
		missions: d.Missions,
		registry: d.Registry,
		ws:       d.WS,
		origins:  d.AllowedOrigins,
	}
	s.auth = &auth.Middleware{Secret: d.JWTSecret, Users: d.Users, WriteError: s.writeError}
	return s
}

// Router assembles the full route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		ok(w, map[string]string{"status": "ok"})
	})

	r.Get("/ws/drone", s.ws.ServeDrone)
	r.Get("/ws/client", s.ws.ServeClient)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.auth.Authenticate)
		operator := s.auth.RequireRole(models.RoleOperator)
		admin := s.auth.RequireRole(models.RoleAdmin)

		r.Route("/drones", func(r chi.Router) {
			r.Get("/", s.listDrones)
			r.With(operator).Post("/", s.createDrone)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getDrone)
				r.With(operator).Put("/", s.updateDrone)
				r.With(admin).Delete("/", s.deleteDrone)
				r.With(operator).Put("/status", s.updateDroneStatus)
				r.With(operator).Post("/maintenance", s.scheduleMaintenance)
				r.Get("/stats", s.droneStats)
				r.Get("/telemetry", s.droneTelemetry)
			})
		})

		r.Route("/missions", func(r chi.Router) {
			r.Get("/", s.listMissions)
			r.With(operator).Post("/", s.createMission)
			r.With(operator).Post("/simulate", s.simulateMission)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getMission)
				r.With(operator).Put("/", s.updateMission)
				r.With(admin).Delete("/", s.deleteMission)
				r.With(operator).Post("/start", s.startMission)
				r.With(operator).Post("/abort", s.abortMission)
				r.With(operator).Post("/complete", s.completeMission)
				r.With(operator).Post("/fail", s.failMission)
				r.Get("/telemetry", s.missionTelemetry)
			})
		})
	})

	return r
}
