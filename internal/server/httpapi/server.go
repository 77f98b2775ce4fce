// Package httpapi exposes the service over HTTP/JSON: auth, file management,
// the decryption-code exchange, and the DLP audit log. Routing is gorilla/mux
// with a JWT bearer middleware; errors are mapped from the shared sentinels
// to status codes in one place.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/fortifile/fortifile/internal/logging"
	"github.com/fortifile/fortifile/internal/server/config"
	"github.com/fortifile/fortifile/internal/server/services"
)

// Server bundles the services behind the HTTP boundary.
type Server struct {
	users  *services.UserService
	files  *services.FileService
	codes  *services.CodeService
	dlp    *services.DlpService
	secret []byte
	logger logging.Logger
}

// NewServer constructs the HTTP boundary over the given services.
func NewServer(users *services.UserService, files *services.FileService,
	codes *services.CodeService, dlp *services.DlpService,
	cfg *config.Config, logger logging.Logger) *Server {
	return &Server{
		users:  users,
		files:  files,
		codes:  codes,
		dlp:    dlp,
		secret: []byte(cfg.SecretKey),
		logger: logger,
	}
}

// Router builds the route table. Everything under /api except registration
// and login requires a bearer token; the audit listing additionally requires
// the admin role.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)

	authed := api.NewRoute().Subrouter()
	authed.Use(s.authMiddleware)

	authed.HandleFunc("/auth/me", s.handleMe).Methods(http.MethodGet)

	authed.HandleFunc("/files", s.handleListFiles).Methods(http.MethodGet)
	authed.HandleFunc("/files", s.handleUpload).Methods(http.MethodPost)
	authed.HandleFunc("/files/scan", s.handleScan).Methods(http.MethodPost)
	authed.HandleFunc("/files/stats", s.handleStats).Methods(http.MethodGet)
	authed.HandleFunc("/files/{id}", s.handleGetFile).Methods(http.MethodGet)
	authed.HandleFunc("/files/{id}", s.handleUpdateFile).Methods(http.MethodPatch)
	authed.HandleFunc("/files/{id}", s.handleDeleteFile).Methods(http.MethodDelete)
	authed.HandleFunc("/files/{id}/download", s.handleDownload).Methods(http.MethodPost)
	authed.HandleFunc("/files/{id}/url", s.handleDownloadURL).Methods(http.MethodGet)

	authed.HandleFunc("/security/send-code", s.handleSendCode).Methods(http.MethodPost)
	authed.HandleFunc("/security/verify-code", s.handleVerifyCode).Methods(http.MethodPost)

	authed.HandleFunc("/dlp/logs", s.handleCreateDlpLog).Methods(http.MethodPost)
	authed.Handle("/dlp/logs", s.adminOnly(http.HandlerFunc(s.handleListDlpLogs))).Methods(http.MethodGet)

	return r
}
