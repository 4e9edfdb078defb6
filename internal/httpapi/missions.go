package httpapi

import (
	"context"
	"net/http"

	"droneFleetManagement/internal/auth"
	"droneFleetManagement/internal/fault"
	"droneFleetManagement/internal/planner"
	"droneFleetManagement/models"
	"droneFleetManagement/repository"
)

func (s *Server) listMissions(w http.ResponseWriter, r *http.Request) {
	p := repository.ListMissionsParams{
		PageSize: int(queryInt(r, "page_size")),
		AfterID:  queryInt(r, "after_id"),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := models.MissionStatus(raw)
		if !st.Valid() {
			s.writeError(w, fault.Validationf("status %q is not a valid mission status", raw))
			return
		}
		p.Status = &st
	}
	if droneID := queryInt(r, "drone_id"); droneID > 0 {
		p.DroneID = &droneID
	}
	missions, err := s.missions.List(r.Context(), p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	okList(w, missions, len(missions))
}

func (s *Server) createMission(w http.ResponseWriter, r *http.Request) {
	var m models.Mission
	if err := decodeBody(r, &m); err != nil {
		s.writeError(w, err)
		return
	}
	p, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	m.CreatedBy = p.Subject
	out, err := s.engine.CreateMission(r.Context(), &m)
	if err != nil {
		s.writeError(w, err)
		return
	}
	created(w, out)
}

func (s *Server) getMission(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	m, err := s.missions.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if m == nil {
		s.writeError(w, fault.NotFoundf("mission %d not found", id))
		return
	}
	ok(w, m)
}

func (s *Server) updateMission(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var m models.Mission
	if err := decodeBody(r, &m); err != nil {
		s.writeError(w, err)
		return
	}
	m.ID = id
	out, err := s.engine.UpdateMission(r.Context(), &m)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ok(w, out)
}

func (s *Server) deleteMission(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.DeleteMission(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	okMessage(w, "mission deleted")
}

func (s *Server) startMission(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.engine.Start)
}

func (s *Server) abortMission(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.engine.Abort)
}

func (s *Server) completeMission(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.engine.Complete)
}

func (s *Server) failMission(w http.ResponseWriter, r *http.Request) {
	s.transition(w, r, s.engine.Fail)
}

func (s *Server) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64) (*models.Mission, error)) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	m, err := op(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ok(w, m)
}

func (s *Server) simulateMission(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DroneID   int64             `json:"drone_id"`
		Waypoints []models.Waypoint `json:"waypoints"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	if body.DroneID > 0 {
		d, err := s.drones.GetByID(r.Context(), body.DroneID)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if d == nil {
			s.writeError(w, fault.NotFoundf("drone %d not found", body.DroneID))
			return
		}
	}
	est, err := planner.Simulate(body.Waypoints)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ok(w, est)
}

func (s *Server) missionTelemetry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	m, err := s.missions.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if m == nil {
		s.writeError(w, fault.NotFoundf("mission %d not found", id))
		return
	}
	session, found := s.registry.Get(m.DroneID)
	if !found {
		s.writeError(w, fault.NotFoundf("no telemetry session for drone %d", m.DroneID))
		return
	}
	ok(w, session)
}
