package httpapi

import (
	"net/http"
	"time"

	"github.com/fortifile/fortifile/internal/server/models"
)

type dlpLogView struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId,omitempty"`
	FileName      string    `json:"fileName"`
	FileSize      int64     `json:"fileSize"`
	DetectedTypes []string  `json:"detectedTypes"`
	Action        string    `json:"action"`
	Timestamp     time.Time `json:"timestamp"`
}

func toDlpLogView(e *models.DlpLogEntry) dlpLogView {
	return dlpLogView{
		ID:            e.ID,
		UserID:        e.UserID,
		FileName:      e.FileName,
		FileSize:      e.FileSize,
		DetectedTypes: e.DetectedTypes,
		Action:        e.Action,
		Timestamp:     e.Timestamp,
	}
}

// handleCreateDlpLog records a user-side decision, typically a cancelled
// upload the browser never sent to the server.
func (s *Server) handleCreateDlpLog(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FileName      string   `json:"fileName"`
		FileSize      int64    `json:"fileSize"`
		DetectedTypes []string `json:"detectedTypes"`
		Action        string   `json:"action"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	userID, _ := session(r)

	entry, err := s.dlp.Log(r.Context(), &models.DlpLogEntry{
		UserID:        userID,
		FileName:      req.FileName,
		FileSize:      req.FileSize,
		DetectedTypes: req.DetectedTypes,
		Action:        req.Action,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toDlpLogView(entry))
}

func (s *Server) handleListDlpLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.dlp.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	views := make([]dlpLogView, 0, len(entries))
	for _, e := range entries {
		views = append(views, toDlpLogView(e))
	}
	s.writeJSON(w, http.StatusOK, views)
}
