package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"switchboard/internal/room"
	"switchboard/internal/websocket"
)

// HealthChecker is the narrow view of the database Manager the health
// endpoint needs.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Server is the process's HTTP surface: health/readiness, Prometheus
// metrics, and a read-only room listing for operators. It carries no
// business logic of its own — every handler reads state already owned by
// another component.
type Server struct {
	db     HealthChecker
	conns  *websocket.Registry
	rooms  *room.Registry
	router *http.ServeMux
}

// NewServer constructs a Server and wires its routes.
func NewServer(db HealthChecker, conns *websocket.Registry, rooms *room.Registry) *Server {
	s := &Server{db: db, conns: conns, rooms: rooms, router: http.NewServeMux()}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
	s.router.Handle("/api/rooms", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.listRooms))))
	s.router.Handle("/metrics", promhttp.Handler())
}

// ServeHTTP implements http.Handler for integration with the standard HTTP
// server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Database    string    `json:"database"`
	Connections int       `json:"connections"`
	RoomsActive int       `json:"rooms_active"`
}

// RoomSummary is one entry of the /api/rooms listing.
type RoomSummary struct {
	Name        string `json:"name"`
	MemberCount int    `json:"memberCount"`
	ChatCount   int    `json:"chatCount"`
}

// ListRoomsResponse is the /api/rooms payload.
type ListRoomsResponse struct {
	Rooms []RoomSummary `json:"rooms"`
}

// healthCheck reports process and database liveness; a database failure
// is reported as 503 so a load balancer routes traffic away.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	dbStatus := "healthy"
	if err := s.db.HealthCheck(ctx); err != nil {
		status = "unhealthy"
		dbStatus = "error: " + err.Error()
	}

	resp := HealthResponse{
		Status:      status,
		Timestamp:   time.Now(),
		Database:    dbStatus,
		Connections: s.conns.Count(),
		RoomsActive: s.rooms.Len(),
	}

	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// listRooms is a read-only snapshot of every live room, for operator
// visibility. It never exposes member identities, only counts.
func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	names := s.rooms.Names()
	summaries := make([]RoomSummary, 0, len(names))
	for _, name := range names {
		rm, ok := s.rooms.Get(name)
		if !ok {
			continue
		}
		summaries = append(summaries, RoomSummary{
			Name:        name,
			MemberCount: rm.MemberCount(),
			ChatCount:   rm.ChatCount(),
		})
	}
	_ = json.NewEncoder(w).Encode(ListRoomsResponse{Rooms: summaries})
}

// corsMiddleware allows all origins, matching a classroom tool meant to be
// embedded from arbitrary course-site origins.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
