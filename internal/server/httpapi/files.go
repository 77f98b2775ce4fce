package httpapi

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fortifile/fortifile/internal/common"
	"github.com/fortifile/fortifile/internal/dlp"
	"github.com/fortifile/fortifile/internal/server/models"
	"github.com/fortifile/fortifile/internal/server/services"
)

// maxUploadSize caps a single upload request body.
const maxUploadSize = 64 << 20

type fileView struct {
	ID            string    `json:"id"`
	FileName      string    `json:"fileName"`
	FileSize      int64     `json:"fileSize"`
	FileType      string    `json:"fileType"`
	SecurityLevel string    `json:"securityLevel"`
	IsEncrypted   bool      `json:"isEncrypted"`
	IsStarred     bool      `json:"isStarred"`
	IsTrash       bool      `json:"isTrash"`
	UploadedAt    time.Time `json:"uploadedAt"`
	LastAccessed  time.Time `json:"lastAccessed"`
}

func toFileView(f *models.FileRecord) fileView {
	return fileView{
		ID:            f.ID,
		FileName:      f.FileName,
		FileSize:      f.FileSize,
		FileType:      f.FileType,
		SecurityLevel: f.SecurityLevel,
		IsEncrypted:   f.IsEncrypted,
		IsStarred:     f.IsStarred,
		IsTrash:       f.IsTrash,
		UploadedAt:    f.UploadedAt,
		LastAccessed:  f.LastAccessed,
	}
}

// readUploadForm extracts the file part and its metadata from a multipart
// request.
func readUploadForm(w http.ResponseWriter, r *http.Request) (name, contentType string, content []byte, err error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return "", "", nil, fmt.Errorf("%w: invalid multipart body", common.ErrorValidation)
	}

	part, header, err := r.FormFile("file")
	if err != nil {
		return "", "", nil, fmt.Errorf("%w: missing file part", common.ErrorValidation)
	}
	defer part.Close()

	content, err = io.ReadAll(part)
	if err != nil {
		return "", "", nil, fmt.Errorf("error reading upload: %w", err)
	}
	return header.Filename, partContentType(header), content, nil
}

func partContentType(header *multipart.FileHeader) string {
	ct := header.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return ct
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	name, contentType, content, err := readUploadForm(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	decision, err := s.files.EvaluateUpload(name, contentType, content, r.FormValue("securityLevel"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, decision)
}

type uploadResponse struct {
	Action   dlp.Action    `json:"action"`
	Findings []dlp.Finding `json:"findings,omitempty"`
	File     *fileView     `json:"file,omitempty"`
	Code     string        `json:"code,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	name, contentType, content, err := readUploadForm(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	userID, _ := session(r)

	res, err := s.files.Upload(r.Context(), userID, services.UploadRequest{
		Name:           name,
		ContentType:    contentType,
		Content:        content,
		SecurityLevel:  r.FormValue("securityLevel"),
		Action:         r.FormValue("action"),
		RecipientEmail: r.FormValue("recipientEmail"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := uploadResponse{Action: res.Decision.Action, Findings: res.Decision.Findings, Code: res.Code}
	status := http.StatusOK
	if res.File != nil {
		v := toFileView(res.File)
		resp.File = &v
		status = http.StatusCreated
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	userID, _ := session(r)

	list, err := s.files.List(r.Context(), userID,
		models.FileView(r.URL.Query().Get("view")), r.URL.Query().Get("search"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	views := make([]fileView, 0, len(list))
	for _, f := range list {
		views = append(views, toFileView(f))
	}
	s.writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin := session(r)

	f, err := s.files.Get(r.Context(), userID, isAdmin, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toFileView(f))
}

func (s *Server) handleUpdateFile(w http.ResponseWriter, r *http.Request) {
	var patch models.FilePatch
	if err := decodeJSON(r, &patch); err != nil {
		s.writeError(w, r, err)
		return
	}
	userID, _ := session(r)

	f, err := s.files.Update(r.Context(), userID, mux.Vars(r)["id"], patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toFileView(f))
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	userID, _ := session(r)

	if err := s.files.Delete(r.Context(), userID, mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID, _ := session(r)

	stats, err := s.files.Stats(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDownloadURL(w http.ResponseWriter, r *http.Request) {
	userID, isAdmin := session(r)

	url, err := s.files.DownloadURL(r.Context(), userID, isAdmin, mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		URL string `json:"url"`
	}{URL: url})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	userID, isAdmin := session(r)

	f, data, err := s.files.Download(r.Context(), userID, isAdmin, mux.Vars(r)["id"], req.Code)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", f.FileType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.FileName))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Error(r.Context(), "error writing download", "error", err)
	}
}
