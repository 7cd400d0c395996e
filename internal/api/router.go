package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/panelkit/hostpanel/internal/apperr"
	"github.com/panelkit/hostpanel/internal/provision"
)

// Version is reported by the health endpoint
var Version = "dev"

// Services are the provisioning services the API exposes
type Services struct {
	Users     *provision.UserService
	Sites     *provision.SiteService
	Databases *provision.DatabaseService
	FTP       *provision.FTPUserService
	Cron      *provision.CronJobService
	Zones     *provision.DnsZoneService
}

// Server holds all API handlers and dependencies
type Server struct {
	router  chi.Router
	svc     Services
	timeout time.Duration
	logger  *slog.Logger
}

// NewServer creates a new API server. Requests are cut off after timeout;
// zero means 120 seconds.
func NewServer(svc Services, timeout time.Duration, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	s := &Server{
		svc:     svc,
		timeout: timeout,
		logger:  logger,
	}

	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(s.timeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.healthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.listUsers)
			r.Post("/", s.createUser)
			r.Get("/{id}", s.getUser)
		})

		r.Route("/sites", func(r chi.Router) {
			r.Get("/", s.listSites)
			r.Post("/", s.createSite)
			r.Get("/{id}", s.getSite)
			r.Delete("/{id}", s.deleteSite)
		})

		r.Get("/php/runtimes", s.listPHPRuntimes)

		r.Route("/databases", func(r chi.Router) {
			r.Get("/", s.listDatabases)
			r.Post("/", s.createDatabase)
			r.Get("/{id}", s.getDatabase)
			r.Delete("/{id}", s.deleteDatabase)
			r.Post("/{id}/reset-password", s.resetDatabasePassword)
		})

		r.Route("/ftp-users", func(r chi.Router) {
			r.Get("/", s.listFTPUsers)
			r.Post("/", s.createFTPUser)
			r.Get("/{id}", s.getFTPUser)
			r.Delete("/{id}", s.deleteFTPUser)
			r.Put("/{id}/password", s.changeFTPPassword)
			r.Put("/{id}/home", s.updateFTPHome)
		})

		r.Route("/cron-jobs", func(r chi.Router) {
			r.Get("/", s.listCronJobs)
			r.Post("/", s.createCronJob)
			r.Get("/{id}", s.getCronJob)
			r.Put("/{id}", s.updateCronJob)
			r.Delete("/{id}", s.deleteCronJob)
			r.Post("/{id}/enable", s.enableCronJob)
			r.Post("/{id}/disable", s.disableCronJob)
		})

		r.Route("/zones", func(r chi.Router) {
			r.Get("/", s.listZones)
			r.Post("/", s.createZone)
			r.Get("/{id}", s.getZone)
			r.Delete("/{id}", s.deleteZone)
			r.Post("/{id}/records", s.addRecord)
			r.Delete("/{id}/records/{recordID}", s.deleteRecord)
		})
	})

	s.router = r
}

// requestLogger logs one line per request through the server's slog logger.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", chiMiddleware.GetReqID(r.Context()),
		)
	})
}

// Response helpers
func (s *Server) json(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) error(w http.ResponseWriter, status int, message string) {
	s.json(w, status, map[string]string{"error": message})
}

func (s *Server) success(w http.ResponseWriter, data interface{}) {
	s.json(w, http.StatusOK, data)
}

func (s *Server) created(w http.ResponseWriter, data interface{}) {
	s.json(w, http.StatusCreated, data)
}

// errorResponse is the body of every failed request
type errorResponse struct {
	Error    string                `json:"error"`
	Kind     string                `json:"kind,omitempty"`
	Rollback []apperr.RollbackStep `json:"rollback,omitempty"`
}

// statusFor maps an error kind to its HTTP status
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusUnprocessableEntity
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindOperational:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// fail renders a service error
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	resp := errorResponse{Error: err.Error(), Kind: kind.String()}

	switch kind {
	case apperr.KindOperational:
		if report := apperr.RollbackOf(err); report != nil {
			resp.Rollback = report.Steps
		}
		s.logger.Error("provisioning failed", "path", r.URL.Path, "error", err, "request_id", chiMiddleware.GetReqID(r.Context()))
	case apperr.KindSecurity, apperr.KindUnknown:
		// a sandbox rejection reaching a client is a defect
		s.logger.Error("internal error", "path", r.URL.Path, "kind", kind.String(), "error", err, "request_id", chiMiddleware.GetReqID(r.Context()))
		resp = errorResponse{Error: "internal error"}
	}
	s.json(w, status, resp)
}

// decode reads a JSON body into v and reports a 400 on malformed input.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.error(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// idParam parses a positive integer URL parameter.
func (s *Server) idParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		s.error(w, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}

// queryID parses a required positive integer query parameter.
func (s *Server) queryID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil || id <= 0 {
		s.error(w, http.StatusBadRequest, name+" query parameter is required")
		return 0, false
	}
	return id, true
}

// deleted renders the outcome of a delete workflow
func (s *Server) deleted(w http.ResponseWriter, report *apperr.RollbackReport) {
	resp := map[string]interface{}{"deleted": true}
	if report != nil {
		resp["cleanup"] = report.Steps
		if failed := report.Failed(); len(failed) > 0 {
			resp["leftovers"] = failed
		}
	}
	s.success(w, resp)
}

// Health check handler
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	s.json(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}
