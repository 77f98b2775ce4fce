package httpapi

import (
	"net/http"
	"time"

	"github.com/fortifile/fortifile/internal/server/models"
)

type credentialsRequest struct {
	UserName string `json:"username"`
	Password string `json:"password"`
}

type userView struct {
	ID        string    `json:"id"`
	UserName  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserView(u *models.User) userView {
	return userView{ID: u.ID, UserName: u.UserName, Role: u.Role, CreatedAt: u.CreatedAt}
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	u, err := s.users.Register(r.Context(), req.UserName, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toUserView(u))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	token, u, err := s.users.Login(r.Context(), req.UserName, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Token string   `json:"token"`
		User  userView `json:"user"`
	}{Token: token, User: toUserView(u)})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := session(r)
	u, err := s.users.GetByID(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toUserView(u))
}
