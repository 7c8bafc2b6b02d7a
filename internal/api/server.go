// Package api exposes the REST surface: account registration/login, room
// and stats snapshots, and the health check. None of these endpoints touch
// the advice core's live state beyond read-only snapshots.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"tanktalk/internal/auth"
	"tanktalk/pkg/types"
)

// StatsSource provides read-only snapshots of live chat state.
type StatsSource interface {
	Stats() types.Stats
	RoomOccupancy() map[string]int
}

// HealthChecker reports archive database connectivity.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server is the HTTP API handler.
type Server struct {
	auth    *auth.Service
	stats   StatsSource
	checker HealthChecker
	router  chi.Router
}

// NewServer builds the API router.
func NewServer(authService *auth.Service, stats StatsSource, checker HealthChecker) *Server {
	s := &Server{
		auth:    authService,
		stats:   stats,
		checker: checker,
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(corsMiddleware)
	r.Use(jsonMiddleware)

	r.Post("/api/auth/register", s.handleRegister)
	r.Post("/api/auth/login", s.handleLogin)
	r.Get("/api/rooms", s.handleRooms)
	r.Get("/api/stats", s.handleStats)
	r.Get("/health", s.handleHealth)

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type registerRequest struct {
	Username string      `json:"username"`
	Password string      `json:"password"`
	Level    types.Level `json:"level"`
}

type userResponse struct {
	ID       string      `json:"id"`
	Username string      `json:"username"`
	Level    types.Level `json:"level"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type roomInfo struct {
	Name    string `json:"name"`
	Members int    `json:"members"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	user, err := s.auth.Register(r.Context(), req.Username, req.Password, req.Level)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrUsernameTaken):
		s.sendError(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, types.ErrInvalidUsername):
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	default:
		s.sendError(w, "registration failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(userResponse{ID: user.ID, Username: user.Username, Level: user.Level})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	token, user, err := s.auth.Login(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.sendError(w, err.Error(), http.StatusUnauthorized)
		return
	default:
		s.sendError(w, "login failed", http.StatusInternalServerError)
		return
	}

	_ = json.NewEncoder(w).Encode(loginResponse{
		Token: token,
		User:  userResponse{ID: user.ID, Username: user.Username, Level: user.Level},
	})
}

func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	occupancy := s.stats.RoomOccupancy()
	rooms := make([]roomInfo, 0, len(types.RoomNames))
	for _, name := range types.RoomNames {
		rooms = append(rooms, roomInfo{Name: name, Members: occupancy[name]})
	}
	_ = json.NewEncoder(w).Encode(map[string][]roomInfo{"rooms": rooms})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(s.stats.Stats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"
	if s.checker != nil {
		if err := s.checker.HealthCheck(ctx); err != nil {
			status = "unhealthy"
			dbStatus = err.Error()
		}
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"database":  dbStatus,
		"timestamp": time.Now(),
	})
}

func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
