package httpapi

import (
	"net/http"
)

func (s *Server) handleSendCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileID string `json:"fileId"`
		Email  string `json:"email"`
		Code   string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	userID, isAdmin := session(r)

	if err := s.codes.Send(r.Context(), userID, isAdmin, req.FileID, req.Email, req.Code); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Message string `json:"message"`
	}{Message: "code sent"})
}

func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileID string `json:"fileId"`
		Code   string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	userID, isAdmin := session(r)

	valid, err := s.codes.Verify(r.Context(), userID, isAdmin, req.FileID, req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Valid bool `json:"valid"`
	}{Valid: valid})
}
