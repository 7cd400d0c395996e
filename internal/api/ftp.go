package api

import (
	"net/http"

	"github.com/panelkit/hostpanel/internal/provision"
)

// FTPPasswordRequest carries a new FTP password
type FTPPasswordRequest struct {
	Password string `json:"password"`
}

// FTPHomeRequest moves an FTP account to another directory
type FTPHomeRequest struct {
	HomeDir string `json:"home_dir"`
}

func (s *Server) listFTPUsers(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.queryID(w, r, "user_id")
	if !ok {
		return
	}
	accounts, err := s.svc.FTP.List(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.success(w, map[string]interface{}{
		"ftp_users": accounts,
		"total":     len(accounts),
	})
}

func (s *Server) createFTPUser(w http.ResponseWriter, r *http.Request) {
	var req provision.CreateFTPUserRequest
	if !s.decode(w, r, &req) {
		return
	}
	account, err := s.svc.FTP.Create(r.Context(), &req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.created(w, account)
}

func (s *Server) getFTPUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	account, err := s.svc.FTP.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.success(w, account)
}

func (s *Server) deleteFTPUser(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	report, err := s.svc.FTP.Delete(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.deleted(w, report)
}

func (s *Server) changeFTPPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	var req FTPPasswordRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.svc.FTP.ChangePassword(r.Context(), id, req.Password); err != nil {
		s.fail(w, r, err)
		return
	}
	s.success(w, map[string]string{"message": "password updated"})
}

func (s *Server) updateFTPHome(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r, "id")
	if !ok {
		return
	}
	var req FTPHomeRequest
	if !s.decode(w, r, &req) {
		return
	}
	account, err := s.svc.FTP.UpdateHome(r.Context(), id, req.HomeDir)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.success(w, account)
}
