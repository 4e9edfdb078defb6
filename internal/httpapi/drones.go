package httpapi

import (
	"net/http"
	"time"

	"droneFleetManagement/internal/auth"
	"droneFleetManagement/internal/fault"
	"droneFleetManagement/models"
	"droneFleetManagement/repository"
)

func (s *Server) listDrones(w http.ResponseWriter, r *http.Request) {
	p := repository.ListDronesParams{
		PageSize: int(queryInt(r, "page_size")),
		AfterID:  queryInt(r, "after_id"),
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := models.DroneStatus(raw)
		if !st.Valid() {
			s.writeError(w, fault.Validationf("status %q is not a valid drone status", raw))
			return
		}
		p.Status = &st
	}
	drones, err := s.drones.List(r.Context(), p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	okList(w, drones, len(drones))
}

func (s *Server) createDrone(w http.ResponseWriter, r *http.Request) {
	var d models.Drone
	if err := decodeBody(r, &d); err != nil {
		s.writeError(w, err)
		return
	}
	if v := models.ValidateDrone(&d); !v.OK() {
		s.writeError(w, fault.Validationf("%s", v.String()))
		return
	}
	existing, err := s.drones.GetBySerial(r.Context(), d.SerialNumber)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if existing != nil {
		s.writeError(w, fault.Conflictf("a drone with serial number %q already exists", d.SerialNumber))
		return
	}
	p, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	d.CreatedBy = p.Subject
	out, err := s.drones.Create(r.Context(), &d)
	if err != nil {
		s.writeError(w, err)
		return
	}
	created(w, out)
}

func (s *Server) getDrone(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	d, err := s.drones.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if d == nil {
		s.writeError(w, fault.NotFoundf("drone %d not found", id))
		return
	}
	ok(w, d)
}

func (s *Server) updateDrone(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	current, err := s.drones.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if current == nil {
		s.writeError(w, fault.NotFoundf("drone %d not found", id))
		return
	}
	var d models.Drone
	if err := decodeBody(r, &d); err != nil {
		s.writeError(w, err)
		return
	}
	d.ID = id
	if v := models.ValidateDrone(&d); !v.OK() {
		s.writeError(w, fault.Validationf("%s", v.String()))
		return
	}
	if d.SerialNumber != current.SerialNumber {
		other, err := s.drones.GetBySerial(r.Context(), d.SerialNumber)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if other != nil {
			s.writeError(w, fault.Conflictf("a drone with serial number %q already exists", d.SerialNumber))
			return
		}
	}
	if err := s.drones.Update(r.Context(), &d); err != nil {
		s.writeError(w, err)
		return
	}
	out, err := s.drones.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ok(w, out)
}

func (s *Server) deleteDrone(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.DeleteDrone(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	okMessage(w, "drone deleted")
}

func (s *Server) updateDroneStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var body struct {
		Status models.DroneStatus `json:"status"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	d, err := s.engine.UpdateDroneStatus(r.Context(), id, body.Status)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ok(w, d)
}

func (s *Server) scheduleMaintenance(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var body struct {
		Date time.Time `json:"date"`
	}
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, err)
		return
	}
	d, err := s.engine.ScheduleMaintenance(r.Context(), id, body.Date)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ok(w, d)
}

func (s *Server) droneStats(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	stats, err := s.engine.Stats(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	ok(w, stats)
}

func (s *Server) droneTelemetry(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	d, err := s.drones.GetByID(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if d == nil {
		s.writeError(w, fault.NotFoundf("drone %d not found", id))
		return
	}
	session, found := s.registry.Get(id)
	if !found {
		s.writeError(w, fault.NotFoundf("no telemetry session for drone %d", id))
		return
	}
	ok(w, session)
}
