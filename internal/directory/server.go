package directory

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"dispatchd/pkg/types"
)

const defaultKeepAlive = 5 * time.Second

// Server is the directory HTTP front end. Registration streams are the only
// liveness signal: an entry lives exactly as long as its stream.
type Server struct {
	reg       *CapabilityRegistry
	keepAlive time.Duration
	log       zerolog.Logger

	// Stream generations: a re-register for the same replica id supersedes
	// the old stream, whose teardown must then leave the new entry alone.
	mu      sync.Mutex
	seq     uint64
	current map[string]uint64
}

func NewServer(reg *CapabilityRegistry, keepAlive time.Duration, log zerolog.Logger) *Server {
	if keepAlive <= 0 {
		keepAlive = defaultKeepAlive
	}
	return &Server{
		reg:       reg,
		keepAlive: keepAlive,
		log:       log,
		current:   make(map[string]uint64),
	}
}

// Handler assembles the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE"},
	}))
	r.Use(MetricsMiddleware)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/register", s.handleRegister)
	r.Get("/route", s.handleRoute)
	r.Get("/registry", s.handleRegistry)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// handleRegister stores the replica and holds the connection open, emitting
// keep-alive events. Any stream failure deregisters.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req types.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ReplicaID == "" || req.Endpoint == "" {
		writeJSONError(w, http.StatusBadRequest, "replica_id and endpoint are required")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	s.reg.Register(types.ReplicaInfo{
		ReplicaID:    req.ReplicaID,
		Endpoint:     req.Endpoint,
		Capabilities: req.Capabilities,
	})
	gen := s.openStream(req.ReplicaID)
	defer s.closeStream(req.ReplicaID, gen)
	s.log.Info().Str("replica_id", req.ReplicaID).Str("endpoint", req.Endpoint).
		Int("capabilities", len(req.Capabilities)).Msg("replica registered")
	registrationsTotal.Inc()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeEvent(w, types.StreamEvent{Status: "registered", ReplicaID: req.ReplicaID}); err != nil {
		return
	}
	flusher.Flush()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			s.log.Info().Str("replica_id", req.ReplicaID).Msg("registration stream closed")
			return
		case <-ticker.C:
			if err := writeEvent(w, types.StreamEvent{Status: "alive"}); err != nil {
				s.log.Warn().Str("replica_id", req.ReplicaID).Err(err).Msg("keep-alive write failed")
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	query := types.Capability{}
	exclude := ""
	for key, vals := range r.URL.Query() {
		if len(vals) == 0 {
			continue
		}
		if key == "exclude_replica_id" {
			exclude = vals[0]
			continue
		}
		query[key] = vals[0]
	}
	if len(query) == 0 {
		writeJSONError(w, http.StatusBadRequest, "capability query is empty")
		return
	}
	info, ok := s.reg.Lookup(query, exclude)
	if !ok {
		routeMissesTotal.Inc()
		writeJSONError(w, http.StatusNotFound, "no matching replica")
		return
	}
	writeJSON(w, http.StatusOK, types.RouteResponse{Endpoint: info.Endpoint, ReplicaID: info.ReplicaID})
}

func (s *Server) handleRegistry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.RegistryResponse{Replicas: s.reg.List()})
}

// openStream records a new stream generation for the replica.
func (s *Server) openStream(replicaID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.current[replicaID] = s.seq
	registeredReplicas.Set(float64(len(s.current)))
	return s.seq
}

// closeStream deregisters only if this stream is still the replica's current
// one; a superseding registration keeps the entry.
func (s *Server) closeStream(replicaID string, gen uint64) {
	s.mu.Lock()
	owner := s.current[replicaID] == gen
	if owner {
		delete(s.current, replicaID)
		registeredReplicas.Set(float64(len(s.current)))
	}
	s.mu.Unlock()
	if owner {
		s.reg.Unregister(replicaID)
		s.log.Info().Str("replica_id", replicaID).Msg("replica deregistered")
	}
}

func writeEvent(w http.ResponseWriter, ev types.StreamEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n\n"))
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}
