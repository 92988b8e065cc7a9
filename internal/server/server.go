package server

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"autohaus/internal/app"
	"autohaus/internal/auth"
	"autohaus/internal/ratelimit"
	"autohaus/internal/util"
	"autohaus/pkg/domain"
	"autohaus/pkg/store"
)

const defaultMaxUploadBytes = 10 * 1024 * 1024

// Config wires required dependencies for the HTTP server.
type Config struct {
	Reader         *app.ReadService
	Writer         *app.WriteService
	Verifier       *auth.Verifier                // nil switches to an all-roles dev principal
	GraphQL        http.Handler                  // optional, mounted at /graphql
	Limiter        *ratelimit.FixedWindowLimiter // optional throttle on the write endpoints
	MaxUploadBytes int64
}

// Server exposes the REST endpoints of the Auto service.
type Server struct {
	reader         *app.ReadService
	writer         *app.WriteService
	verifier       *auth.Verifier
	limiter        *ratelimit.FixedWindowLimiter
	mux            *http.ServeMux
	maxUploadBytes int64
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	s := &Server{
		reader:         cfg.Reader,
		writer:         cfg.Writer,
		verifier:       cfg.Verifier,
		limiter:        cfg.Limiter,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
	}
	s.routes(cfg.GraphQL)
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes(graphql http.Handler) {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/rest", s.handleCollection)
	s.mux.HandleFunc("/rest/", s.handleByID)
	if graphql != nil {
		s.mux.Handle("/graphql", graphql)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleSearch(w, r)
	case http.MethodPost:
		s.handleCreate(w, r)
	default:
		methodNotAllowed(w)
	}
}

var idPattern = regexp.MustCompile(app.IDPattern)

// /rest/{id} or /rest/{id}/file
func (s *Server) handleByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/rest/")
	parts := strings.SplitN(path, "/", 2)
	if !idPattern.MatchString(parts[0]) {
		notFound(w)
		return
	}
	id64, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		notFound(w)
		return
	}
	id := uint(id64)

	if len(parts) == 2 {
		if parts[1] != "file" {
			notFound(w)
			return
		}
		switch r.Method {
		case http.MethodGet:
			s.handleDownloadFile(w, r, id)
		case http.MethodPut:
			s.handleUploadFile(w, r, id)
		default:
			methodNotAllowed(w)
		}
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleGet(w, r, id)
	case http.MethodPut:
		s.handleUpdate(w, r, id)
	case http.MethodDelete:
		s.handleDelete(w, r, id)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, id uint) {
	auto, err := s.reader.FindByID(r.Context(), id, false)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	etag := domain.FormatVersion(auto.Version)
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, auto)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	criteria := store.Criteria{}
	size, number := -1, -1
	for key, values := range r.URL.Query() {
		if len(values) == 0 {
			continue
		}
		switch key {
		case "size":
			if n, err := strconv.Atoi(values[0]); err == nil {
				size = n
			}
		case "page":
			if n, err := strconv.Atoi(values[0]); err == nil {
				number = n
			}
		default:
			criteria[key] = values[0]
		}
	}

	page, err := s.reader.Find(r.Context(), criteria, store.NewPageable(size, number))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !s.allowWrite(w, r) {
		return
	}
	if _, ok := s.requireRole(w, r, auth.RoleAdmin, auth.RoleKunde); !ok {
		return
	}
	var dto AutoDTO
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := dto.Validate(true); err != nil {
		writeDomainError(w, err)
		return
	}

	id, err := s.writer.Create(r.Context(), dto.ToDomain())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Location", baseURL(r)+"/"+strconv.FormatUint(uint64(id), 10))
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, id uint) {
	if !s.allowWrite(w, r) {
		return
	}
	if _, ok := s.requireRole(w, r, auth.RoleAdmin, auth.RoleKunde); !ok {
		return
	}
	versionToken := r.Header.Get("If-Match")
	if versionToken == "" {
		writeError(w, http.StatusPreconditionRequired, "Header If-Match fehlt.")
		return
	}
	var dto AutoDTO
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := dto.Validate(false); err != nil {
		writeDomainError(w, err)
		return
	}

	newVersion, err := s.writer.Update(r.Context(), id, dto.ToDomain(), versionToken)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("ETag", domain.FormatVersion(newVersion))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, id uint) {
	if !s.allowWrite(w, r) {
		return
	}
	if _, ok := s.requireRole(w, r, auth.RoleAdmin); !ok {
		return
	}
	if _, err := s.writer.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request, id uint) {
	if !s.allowWrite(w, r) {
		return
	}
	if _, ok := s.requireRole(w, r, auth.RoleAdmin, auth.RoleKunde); !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "Datei zu gross.")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "Dateiinhalt fehlt.")
		return
	}
	mimetype := r.Header.Get("Content-Type")
	if mimetype == "" {
		mimetype = http.DetectContentType(data)
	}
	filename := r.Header.Get("X-Filename")
	if filename == "" {
		filename = "auto-" + strconv.FormatUint(uint64(id), 10)
	}
	if _, err := s.writer.AddFile(r.Context(), id, data, filename, mimetype); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request, id uint) {
	file, err := s.reader.FindFile(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", file.Mimetype)
	w.Header().Set("Content-Disposition", `inline; filename="`+file.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}

// allowWrite checks the write-endpoint quota for the caller.
func (s *Server) allowWrite(w http.ResponseWriter, r *http.Request) bool {
	if s.limiter == nil {
		return true
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !s.limiter.Allow(host) {
		writeError(w, http.StatusTooManyRequests, "too many requests")
		return false
	}
	return true
}

// requireRole resolves the caller's principal and checks it against the
// allowed roles. Without a configured verifier every caller acts as a dev
// principal carrying all roles.
func (s *Server) requireRole(w http.ResponseWriter, r *http.Request, roles ...string) (auth.Principal, bool) {
	if s.verifier == nil {
		return auth.Principal{Subject: "dev", Roles: []string{auth.RoleAdmin, auth.RoleKunde}}, true
	}
	token, ok := auth.BearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return auth.Principal{}, false
	}
	principal, err := s.verifier.Verify(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return auth.Principal{}, false
	}
	for _, role := range roles {
		if principal.HasRole(role) {
			return principal, true
		}
	}
	writeError(w, http.StatusForbidden, "forbidden")
	return auth.Principal{}, false
}

func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/")
}

// writeDomainError maps the typed errors of the core onto HTTP statuses.
// Both version errors answer 412 so clients can retry on the German
// "Versionsnummer" message alone.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		notFoundErr   *domain.NotFoundError
		invalidErr    *domain.VersionInvalidError
		outdatedErr   *domain.VersionOutdatedError
		existsErr     *domain.FahrgestellnummerExistsError
		validationErr *domain.ValidationError
	)
	switch {
	case errors.As(err, &notFoundErr):
		writeError(w, http.StatusNotFound, notFoundErr.Error())
	case errors.As(err, &invalidErr):
		writeError(w, http.StatusPreconditionFailed, invalidErr.Error())
	case errors.As(err, &outdatedErr):
		writeError(w, http.StatusPreconditionFailed, outdatedErr.Error())
	case errors.As(err, &existsErr):
		writeError(w, http.StatusUnprocessableEntity, existsErr.Error())
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "not found")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCode(status),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "AUTO_INVALID_REQUEST"
	case http.StatusUnauthorized:
		return "AUTH_INVALID_TOKEN"
	case http.StatusForbidden:
		return "AUTH_FORBIDDEN"
	case http.StatusNotFound:
		return "AUTO_NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "SYSTEM_METHOD_NOT_ALLOWED"
	case http.StatusPreconditionFailed:
		return "AUTO_PRECONDITION_FAILED"
	case http.StatusPreconditionRequired:
		return "AUTO_PRECONDITION_REQUIRED"
	case http.StatusUnprocessableEntity:
		return "AUTO_FAHRGESTELLNUMMER_EXISTS"
	case http.StatusRequestEntityTooLarge:
		return "AUTO_FILE_TOO_LARGE"
	case http.StatusTooManyRequests:
		return "SYSTEM_RATE_LIMITED"
	default:
		if status >= http.StatusInternalServerError {
			return "SYSTEM_INTERNAL_ERROR"
		}
		return "REQUEST_ERROR"
	}
}
