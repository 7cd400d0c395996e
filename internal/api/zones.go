package api

import (
	"net/http"

	"github.com/panelkit/hostpanel/internal/models"
	"github.com/panelkit/hostpanel/internal/provision"
)

// listZones returns the zones attached to ?site_id=
func (s *Server) listZones(w http.ResponseWriter, r *http.Request) {
	siteID, ok := s.queryID(w, r, "site_id")
	if !ok {
		return
	}
	zones, err := s.svc.Zones.List(r.Context(), siteID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.success(w, map[string]interface{}{
		"zones": zones,
		"total": len(zones),
	})
}

func (s *Server) createZone(w http.ResponseWriter, r *http.Request) {
	var req provision.CreateZoneRequest
	if !s.decode(w, r, &req) {
		return
	}
	zone, err := s.svc.Zones.Create(r.Context(), &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.created(w, zone)
}

func (s *Server) getZone(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	zone, err := s.svc.Zones.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.success(w, zone)
}

func (s *Server) deleteZone(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	report, err := s.svc.Zones.Delete(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.deleted(w, report)
}

func (s *Server) addRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	var rec models.DNSRecord
	if !s.decode(w, r, &rec) {
		return
	}
	rec.ID = 0
	created, err := s.svc.Zones.AddRecord(r.Context(), id, &rec)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.created(w, created)
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	zoneID, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	recordID, ok := s.idParam(w, r, "recordID")
	if !ok {
		return
	}
	zone, err := s.svc.Zones.Get(r.Context(), zoneID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	found := false
	for _, rec := range zone.Records {
		if rec.ID == recordID {
			found = true
			break
		}
	}
	if !found {
		s.error(w, http.StatusNotFound, "dns record not found")
		return
	}
	if err := s.svc.Zones.DeleteRecord(r.Context(), recordID); err != nil {
		s.fail(w, r, err)
		return
	}
	s.deleted(w, nil)
}
