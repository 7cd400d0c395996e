package api

import (
	"net/http"

	"github.com/panelkit/hostpanel/internal/provision"
)

// listSites returns the sites of the user given by ?user_id=
func (s *Server) listSites(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.queryID(w, r, "user_id")
	if !ok {
		return
	}
	sites, err := s.svc.Sites.List(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.success(w, map[string]interface{}{
		"sites": sites,
		"total": len(sites),
	})
}

// createSite provisions a new site
func (s *Server) createSite(w http.ResponseWriter, r *http.Request) {
	var req provision.CreateSiteRequest
	if !s.decode(w, r, &req) {
		return
	}
	site, err := s.svc.Sites.Create(r.Context(), &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.created(w, site)
}

func (s *Server) getSite(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	site, err := s.svc.Sites.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.success(w, site)
}

func (s *Server) deleteSite(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	report, err := s.svc.Sites.Delete(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.deleted(w, report)
}

// listPHPRuntimes returns the PHP versions installed on the host
func (s *Server) listPHPRuntimes(w http.ResponseWriter, r *http.Request) {
	runtimes := s.svc.Sites.PHPRuntimes()
	s.success(w, map[string]interface{}{
		"runtimes": runtimes,
		"total":    len(runtimes),
	})
}
