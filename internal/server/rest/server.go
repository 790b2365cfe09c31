package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/MSSkowron/MicroURL/internal/dto"
	"github.com/MSSkowron/MicroURL/internal/service"
	"github.com/MSSkowron/MicroURL/pkg/logger"
	"github.com/MSSkowron/MicroURL/pkg/validation"
)

type contextKey string

const (
	// DefaultAddress is the default address the server listens on.
	DefaultAddress = ":8080"
	// DefaultWriteTimeout is the default write timeout for server responses.
	DefaultWriteTimeout = 15 * time.Second
	// DefaultReadTimeout is the default read timeout for incoming requests.
	DefaultReadTimeout = 15 * time.Second

	// HeaderRequestID carries the id assigned to every request.
	HeaderRequestID = "X-Request-ID"

	contextKeyReqID = contextKey("reqID")

	// StatusOK is the status reported by a successful form registration.
	StatusOK = "OK"
	// StatusError is the status reported by a failed form registration.
	StatusError = "ERROR"

	// ErrMsgBadRequestInvalidRequestBody is a http response body message for bad request status code.
	ErrMsgBadRequestInvalidRequestBody = "Invalid request body"
	// ErrMsgBadRequestInvalidLimit is a http response body message for a malformed limit parameter.
	ErrMsgBadRequestInvalidLimit = "Invalid limit"
	// ErrMsgNotFound is a http response body message for not found status code.
	ErrMsgNotFound = "invalid url"
	// ErrMsgServiceUnavailable is a http response body message for service unavailable status code.
	ErrMsgServiceUnavailable = "Service unavailable"
	// ErrMsgInternalServerError is a http response body message for internal server error status code.
	ErrMsgInternalServerError = "Internal server error"
)

// emptyListing is rendered in place of an empty ranking.
var emptyListing = dto.OrderedMicros{{Code: "", Destination: "nothing here"}}

// Server represents the REST server of the registry.
type Server struct {
	*http.Server
	registry service.RegistryService
}

// NewServer creates a new Server instance.
func NewServer(registry service.RegistryService, opts ...ServerOption) *Server {
	server := &Server{
		Server: &http.Server{
			Addr:         DefaultAddress,
			WriteTimeout: DefaultWriteTimeout,
			ReadTimeout:  DefaultReadTimeout,
		},
		registry: registry,
	}

	for _, opt := range opts {
		opt(server)
	}

	server.initRoutes()

	return server
}

// ServerOption is a function signature for providing options to configure the Server.
type ServerOption func(*Server)

// WithAddress is an option to set the server address.
func WithAddress(addr string) ServerOption {
	return func(s *Server) {
		s.Addr = addr
	}
}

// WithReadTimeout is an option to set the read timeout for the server.
func WithReadTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.ReadTimeout = timeout
	}
}

// WithWriteTimeout is an option to set the write timeout for the server.
func WithWriteTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.WriteTimeout = timeout
	}
}

func (s *Server) initRoutes() {
	r := mux.NewRouter()

	r.Use(s.logMiddleware)

	r.HandleFunc("/generate_micro", s.handleGenerateMicro).Methods(http.MethodPost)
	r.HandleFunc("/api/micros", s.handleShorten).Methods(http.MethodPost)
	r.HandleFunc("/api/micros/top", s.handleTop).Methods(http.MethodGet)
	r.HandleFunc("/api/micros/recent", s.handleRecent).Methods(http.MethodGet)
	r.HandleFunc("/{micro}", s.handleRedirect).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.respondWithError(w, http.StatusNotFound, ErrMsgNotFound)
	})

	s.Handler = r
}

func (s *Server) handleGenerateMicro(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.respondWithJSON(w, http.StatusBadRequest, dto.GenerateMicroDTO{Status: StatusError, Error: ErrMsgBadRequestInvalidRequestBody})
		return
	}

	destination := strings.TrimSpace(r.PostFormValue("url"))
	public := r.PostFormValue("public") == "on"

	code, err := s.registry.RegisterOrReuse(r.Context(), destination, public)
	if err != nil {
		status, message := s.errorStatus(r, err)
		s.respondWithJSON(w, status, dto.GenerateMicroDTO{Status: StatusError, Error: message})
		return
	}

	s.respondWithJSON(w, http.StatusOK, dto.GenerateMicroDTO{Status: StatusOK, Micro: code})
}

func (s *Server) handleShorten(w http.ResponseWriter, r *http.Request) {
	shortenDTO := &dto.ShortenRequestDTO{}
	if err := json.NewDecoder(r.Body).Decode(shortenDTO); err != nil {
		s.respondWithError(w, http.StatusBadRequest, ErrMsgBadRequestInvalidRequestBody)
		return
	}

	code, err := s.registry.RegisterOrReuse(r.Context(), shortenDTO.Destination, shortenDTO.Public)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	s.respondWithJSON(w, http.StatusOK, dto.MicroDTO{Code: code})
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	s.handleListing(w, r, s.registry.ListTop)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	s.handleListing(w, r, s.registry.ListRecent)
}

func (s *Server) handleListing(w http.ResponseWriter, r *http.Request, list func(ctx context.Context, limit int) (dto.OrderedMicros, error)) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.respondWithError(w, http.StatusBadRequest, ErrMsgBadRequestInvalidLimit)
			return
		}
		limit = parsed
	}

	micros, err := list(r.Context(), limit)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	if len(micros) == 0 {
		micros = emptyListing
	}

	s.respondWithJSON(w, http.StatusOK, micros)
}

func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["micro"]

	destination, err := s.registry.Resolve(r.Context(), code)
	if err != nil {
		s.respondWithServiceError(w, r, err)
		return
	}

	target, err := validation.RedirectTarget(destination)
	if err != nil {
		logger.Warn("Micro destination is not routable", "id", requestID(r), "code", code, "destination", destination)
		s.respondWithError(w, http.StatusNotFound, ErrMsgNotFound)
		return
	}

	http.Redirect(w, r, target, http.StatusFound)
}

// errorStatus maps a registry error to a response status and message.
func (s *Server) errorStatus(r *http.Request, err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrMicroNotFound):
		return http.StatusNotFound, ErrMsgNotFound
	case errors.Is(err, service.ErrInvalidDestination):
		return http.StatusBadRequest, ErrMsgBadRequestInvalidRequestBody + ": " + err.Error()
	case errors.Is(err, service.ErrStoreUnavailable):
		logger.Error("Micro store unavailable", "id", requestID(r), "error", err)
		return http.StatusServiceUnavailable, ErrMsgServiceUnavailable
	default:
		logger.Error("Failed to handle request", "id", requestID(r), "error", err)
		return http.StatusInternalServerError, ErrMsgInternalServerError
	}
}

func (s *Server) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := s.errorStatus(r, err)
	s.respondWithError(w, status, message)
}

func (s *Server) respondWithError(w http.ResponseWriter, errCode int, errMessage string) {
	s.respondWithJSON(w, errCode, dto.ErrorDTO{Error: errMessage})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")

	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal response to JSON", "error", err)

		w.WriteHeader(http.StatusInternalServerError)
		if _, err := w.Write([]byte(ErrMsgInternalServerError)); err != nil {
			logger.Error("Failed to respond", "error", err)
		}

		return
	}

	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		logger.Error("Failed to respond", "error", err)
	}
}
