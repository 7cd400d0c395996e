package api

import (
	"net/http"

	"github.com/panelkit/hostpanel/internal/provision"
)

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Users.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.success(w, map[string]interface{}{
		"users": users,
		"total": len(users),
	})
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req provision.CreateUserRequest
	if !s.decode(w, r, &req) {
		return
	}
	user, err := s.svc.Users.Create(r.Context(), &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.created(w, user)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	user, err := s.svc.Users.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.success(w, user)
}
