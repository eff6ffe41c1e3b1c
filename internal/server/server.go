package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/claude/posecoach/internal/coach"
	"github.com/claude/posecoach/internal/metrics"
	"github.com/claude/posecoach/internal/models"
	"github.com/claude/posecoach/internal/storage"
)

// Store is the persistence the handlers need. *storage.DB satisfies it.
type Store interface {
	UserStore
	InsertCoachSession(ctx context.Context, row models.CoachSessionRow, reps []models.CoachRepRow) (bool, error)
	QueryCoachSessions(ctx context.Context, start, end time.Time, userID int, exercise models.ExerciseKind) ([]models.CoachSessionRow, error)
	GetCoachSession(ctx context.Context, id uuid.UUID, userID int) (*storage.CoachSessionDetail, error)
	GetExerciseStats(ctx context.Context, userID int) (*storage.CoachStats, error)
	InsertIngestLog(ctx context.Context, log storage.IngestLog) (int64, error)
	QueryIngestLogs(ctx context.Context, userID, limit int) ([]storage.IngestLog, error)
}

var _ Store = (*storage.DB)(nil)

// Server holds dependencies for HTTP handlers.
type Server struct {
	db        Store
	coach     *coach.Registry
	metrics   *metrics.Manager
	log       *slog.Logger
	apiKey    string
	tailscale WhoIser
	router    chi.Router
}

// New creates a new Server with all routes configured. m may be nil.
func New(db Store, registry *coach.Registry, apiKey string, m *metrics.Manager, log *slog.Logger) *Server {
	s := &Server{
		db:      db,
		coach:   registry,
		metrics: m,
		log:     log,
		apiKey:  apiKey,
		router:  chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// SetTailscale switches request identity from the dev user to tailscale WhoIs.
func (s *Server) SetTailscale(lc WhoIser) {
	s.tailscale = lc
}

// Handle mounts an extra handler, such as /metrics.
func (s *Server) Handle(pattern string, h http.Handler) {
	s.router.Handle(pattern, h)
}

// HandleWithIdentity mounts h behind the identity middleware so it can read
// the caller with UserID.
func (s *Server) HandleWithIdentity(pattern string, h http.Handler) {
	s.router.With(s.identity).Handle(pattern, h)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(Recovery(s.log, s.metrics))
	s.router.Use(RequestMetrics(s.metrics))
	s.router.Use(CORS)

	// Ingest endpoints (API key required)
	s.router.Route("/api/v1/ingest", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Post("/sessions", s.handleIngestSessions)
	})

	s.router.Group(func(r chi.Router) {
		r.Use(s.identity)

		r.Get("/api/v1/me", s.handleMe)
		r.Get("/api/v1/exercises", s.handleExercises)
		r.Post("/api/v1/evaluate", s.handleEvaluate)

		r.Post("/api/v1/sessions", s.handleCreateSession)
		r.Get("/api/v1/sessions/{id}", s.handleGetSession)
		r.Post("/api/v1/sessions/{id}/frames", s.handleFrame)
		r.Post("/api/v1/sessions/{id}/exercise", s.handleSwitchExercise)
		r.Post("/api/v1/sessions/{id}/end", s.handleEndSession)

		r.Get("/api/v1/history", s.handleHistory)
		r.Get("/api/v1/history/{id}", s.handleHistoryDetail)
		r.Get("/api/v1/stats", s.handleStats)
		r.Get("/api/v1/ingest-logs", s.handleIngestLogs)
	})
}

// identity picks tailscale WhoIs when a local client is set, dev identity
// otherwise.
func (s *Server) identity(next http.Handler) http.Handler {
	dev := DevIdentity(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.tailscale == nil {
			dev.ServeHTTP(w, r)
			return
		}
		TailscaleIdentity(s.tailscale, s.db, s.log)(next).ServeHTTP(w, r)
	})
}

// Persist stores a finished set. Sets without frames are skipped. Returns
// true when a new row was written.
func (s *Server) Persist(ctx context.Context, sum coach.Summary, source string) (bool, error) {
	if sum.Frames == 0 {
		return false, nil
	}
	row, reps := sum.Rows(source)
	return s.db.InsertCoachSession(ctx, row, reps)
}

// PersistAll stores every summary, continuing past failures. The returned
// error combines all failures.
func (s *Server) PersistAll(ctx context.Context, sums []coach.Summary, source string) error {
	var err error
	for _, sum := range sums {
		if _, perr := s.Persist(ctx, sum, source); perr != nil {
			err = multierr.Append(err, fmt.Errorf("set %s: %w", sum.SetID, perr))
		}
	}
	return err
}
