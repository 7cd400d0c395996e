package api

import (
	"net/http"

	"github.com/panelkit/hostpanel/internal/provision"
)

// ResetDatabasePasswordRequest sets a new password for one of a database's users
type ResetDatabasePasswordRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) listDatabases(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.queryID(w, r, "user_id")
	if !ok {
		return
	}
	dbs, err := s.svc.Databases.List(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.success(w, map[string]interface{}{
		"databases": dbs,
		"total":     len(dbs),
	})
}

func (s *Server) createDatabase(w http.ResponseWriter, r *http.Request) {
	var req provision.CreateDatabaseRequest
	if !s.decode(w, r, &req) {
		return
	}
	db, err := s.svc.Databases.Create(r.Context(), &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.created(w, db)
}

func (s *Server) getDatabase(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	db, err := s.svc.Databases.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.success(w, db)
}

func (s *Server) deleteDatabase(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	report, err := s.svc.Databases.Delete(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.deleted(w, report)
}

// resetDatabasePassword changes the password of a user attached to the database
func (s *Server) resetDatabasePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	var req ResetDatabasePasswordRequest
	if !s.decode(w, r, &req) {
		return
	}

	db, err := s.svc.Databases.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	found := false
	for _, u := range db.Users {
		if u.Username == req.Username {
			found = true
			break
		}
	}
	if !found {
		s.error(w, http.StatusNotFound, "database user not found")
		return
	}

	if err := s.svc.Databases.ResetPassword(r.Context(), req.Username, req.Password); err != nil {
		s.fail(w, r, err)
		return
	}
	s.success(w, map[string]string{"message": "password updated"})
}
