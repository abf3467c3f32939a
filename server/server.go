// Package server exposes meal reconciliation sessions over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"nutriguide"
	"nutriguide/budget"
	"nutriguide/reconciler"
)

const (
	// maxUploadBytes bounds identify request bodies, images included.
	maxUploadBytes = 10 << 20
	maxJSONBytes   = 1 << 20
)

// MealNotifier announces logged meals. *slack.Client satisfies it.
type MealNotifier interface {
	PostMeal(ctx context.Context, channel string, meal nutriguide.LoggedMeal, progress budget.Progress) error
}

type Config struct {
	// NewReconciler builds the state machine for a new session.
	NewReconciler func() *reconciler.Reconciler

	Writer nutriguide.MealLogWriter
	Goals  nutriguide.GoalStore

	Notifier      MealNotifier
	NotifyChannel string

	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int
	SessionTTL     time.Duration
	Clock          func() time.Time
}

type Server struct {
	cfg      Config
	sessions *sessionStore
	limiter  *rateLimiter
	router   *httprouter.Router
	handler  http.Handler
	now      func() time.Time
	tracer   trace.Tracer
}

func New(cfg Config) (*Server, error) {
	if cfg.NewReconciler == nil {
		return nil, errors.New("server needs a reconciler factory")
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 5
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 10
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}

	s := &Server{
		cfg:      cfg,
		sessions: newSessionStore(cfg.NewReconciler, cfg.SessionTTL, cfg.Clock),
		limiter:  newRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, cfg.Clock),
		router:   httprouter.New(),
		now:      cfg.Clock,
		tracer:   otel.Tracer(nutriguide.TracerNameServer),
	}
	s.routes()

	s.handler = loggingMiddleware(cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(s.router))

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() {
	limit := s.limiter.Limit

	s.router.GET("/health", s.health)

	s.router.POST("/sessions", limit(s.createSession))
	s.router.GET("/sessions/:id", limit(s.withSession(s.getSession)))
	s.router.DELETE("/sessions/:id", limit(s.deleteSession))
	s.router.POST("/sessions/:id/identify", limit(s.withSession(s.identify)))
	s.router.POST("/sessions/:id/toggle", limit(s.withSession(s.toggle)))
	s.router.POST("/sessions/:id/adjust", limit(s.withSession(s.adjust)))
	s.router.POST("/sessions/:id/quick-check", limit(s.withSession(s.quickCheck)))
	s.router.POST("/sessions/:id/confirm", limit(s.withSession(s.confirm)))
	s.router.POST("/sessions/:id/cancel", limit(s.withSession(s.cancel)))

	s.router.GET("/history", limit(s.history))
	s.router.GET("/progress", limit(s.progress))
	s.router.GET("/goals", limit(s.getGoals))
	s.router.PUT("/goals", limit(s.putGoals))
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session)

func (s *Server) withSession(next sessionHandler) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		sess, ok := s.sessions.get(ps.ByName("id"))
		if !ok {
			writeError(w, http.StatusNotFound, "session not found", nil)
			return
		}
		next(w, r, sess)
	}
}

type sessionResponse struct {
	ID string `json:"id"`
	reconciler.Snapshot
}

func (s *Server) health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.len()})
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	sess := s.sessions.create()
	if _, err := sess.rec.Refresh(r.Context()); err != nil {
		slog.Warn("SERVER: Initial progress unavailable", "session", sess.id, "error", err)
	}
	slog.Info("SERVER: Session created", "session", sess.id)
	writeJSON(w, http.StatusCreated, sessionResponse{ID: sess.id, Snapshot: sess.rec.Snapshot()})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request, sess *session) {
	writeJSON(w, http.StatusOK, sessionResponse{ID: sess.id, Snapshot: sess.rec.Snapshot()})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if !s.sessions.remove(ps.ByName("id")) {
		writeError(w, http.StatusNotFound, "session not found", nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// identify accepts either JSON {"text": ...} or a multipart form with an "image" file and optional "text".
func (s *Server) identify(w http.ResponseWriter, r *http.Request, sess *session) {
	in, err := readIdentifyInput(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	ctx, span := s.tracer.Start(r.Context(), "Server.Identify", trace.WithAttributes(
		attribute.String("session.id", sess.id),
		attribute.Int("image.bytes", len(in.Image)),
	))
	defer span.End()

	snap, err := sess.rec.Identify(ctx, in)
	s.reply(w, sess, snap, err)
}

func readIdentifyInput(w http.ResponseWriter, r *http.Request) (reconciler.Input, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return reconciler.Input{}, fmt.Errorf("invalid JSON body: %w", err)
		}
		return reconciler.Input{Text: body.Text}, nil
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return reconciler.Input{}, fmt.Errorf("invalid multipart body: %w", err)
	}
	in := reconciler.Input{Text: r.FormValue("text")}

	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return in, nil
	}
	if err != nil {
		return reconciler.Input{}, fmt.Errorf("invalid image upload: %w", err)
	}
	defer file.Close()

	in.Image, err = io.ReadAll(file)
	if err != nil {
		return reconciler.Input{}, fmt.Errorf("failed to read image: %w", err)
	}
	in.ImageFilename = header.Filename
	return in, nil
}

type itemRequest struct {
	Item string `json:"item"`
}

func (s *Server) toggle(w http.ResponseWriter, r *http.Request, sess *session) {
	var req itemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	snap, err := sess.rec.Toggle(req.Item)
	s.reply(w, sess, snap, err)
}

// adjust moves a selected item's quantity one step up (delta > 0) or down (delta < 0).
func (s *Server) adjust(w http.ResponseWriter, r *http.Request, sess *session) {
	var req struct {
		Item  string `json:"item"`
		Delta int    `json:"delta"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	var (
		snap reconciler.Snapshot
		err  error
	)
	switch {
	case req.Delta > 0:
		snap, err = sess.rec.Increment(req.Item)
	case req.Delta < 0:
		snap, err = sess.rec.Decrement(req.Item)
	default:
		writeError(w, http.StatusBadRequest, "delta must be positive or negative", nil)
		return
	}
	s.reply(w, sess, snap, err)
}

func (s *Server) quickCheck(w http.ResponseWriter, r *http.Request, sess *session) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	snap, err := sess.rec.SetQuickCheck(req.Enabled)
	s.reply(w, sess, snap, err)
}

func (s *Server) confirm(w http.ResponseWriter, r *http.Request, sess *session) {
	ctx, span := s.tracer.Start(r.Context(), "Server.Confirm", trace.WithAttributes(
		attribute.String("session.id", sess.id),
	))
	defer span.End()

	snap, err := sess.rec.Confirm(ctx)
	if err == nil && snap.Result != nil && snap.Result.Meal != nil {
		s.notify(ctx, *snap.Result.Meal, snap.Progress)
	}
	s.reply(w, sess, snap, err)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request, sess *session) {
	snap, err := sess.rec.Cancel()
	s.reply(w, sess, snap, err)
}

func (s *Server) notify(ctx context.Context, meal nutriguide.LoggedMeal, progress budget.Progress) {
	if s.cfg.Notifier == nil {
		return
	}
	if err := s.cfg.Notifier.PostMeal(ctx, s.cfg.NotifyChannel, meal, progress); err != nil {
		slog.Warn("SERVER: Failed to post meal notification", "error", err, "meal_id", meal.ID)
	}
}

func (s *Server) history(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.cfg.Writer == nil {
		writeError(w, http.StatusServiceUnavailable, "no meal log configured", nil)
		return
	}
	meals, err := s.cfg.Writer.History(r.Context())
	if err != nil {
		slog.Error("SERVER: Failed to load history", "error", err)
		writeError(w, http.StatusBadGateway, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, meals)
}

type progressResponse struct {
	budget.Progress
	Percent        float64 `json:"percent"`
	ProteinPercent float64 `json:"protein_percent"`
	Remaining      float64 `json:"remaining"`
}

func (s *Server) progress(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.cfg.Writer == nil {
		writeError(w, http.StatusServiceUnavailable, "no meal log configured", nil)
		return
	}
	meals, err := s.cfg.Writer.History(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error(), nil)
		return
	}
	var goals nutriguide.Goals
	if s.cfg.Goals != nil {
		if goals, err = s.cfg.Goals.Goals(r.Context()); err != nil {
			writeError(w, http.StatusBadGateway, err.Error(), nil)
			return
		}
	}

	p := budget.Recompute(meals, goals, s.now())
	writeJSON(w, http.StatusOK, progressResponse{
		Progress:       p,
		Percent:        p.Percent(),
		ProteinPercent: p.ProteinPercent(),
		Remaining:      p.Remaining(),
	})
}

func (s *Server) getGoals(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.cfg.Goals == nil {
		writeError(w, http.StatusServiceUnavailable, "no goal store configured", nil)
		return
	}
	goals, err := s.cfg.Goals.Goals(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusOK, goals)
}

func (s *Server) putGoals(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.cfg.Goals == nil {
		writeError(w, http.StatusServiceUnavailable, "no goal store configured", nil)
		return
	}
	var goals nutriguide.Goals
	if !decodeBody(w, r, &goals) {
		return
	}
	if goals.Calories < 0 || goals.Protein < 0 {
		writeError(w, http.StatusBadRequest, "goals must not be negative", nil)
		return
	}
	if err := s.cfg.Goals.SetGoals(r.Context(), goals); err != nil {
		writeError(w, http.StatusBadGateway, err.Error(), nil)
		return
	}
	slog.Info("SERVER: Goals updated", "calories", goals.Calories, "protein", goals.Protein)
	writeJSON(w, http.StatusOK, goals)
}

// reply writes the session snapshot, or the mapped error status with the snapshot attached.
func (s *Server) reply(w http.ResponseWriter, sess *session, snap reconciler.Snapshot, err error) {
	resp := sessionResponse{ID: sess.id, Snapshot: snap}
	if err != nil {
		writeError(w, StatusFor(err), err.Error(), &resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// StatusFor maps reconciler errors to HTTP status codes.
func StatusFor(err error) int {
	var (
		verr *reconciler.ValidationError
		rerr *reconciler.ResolutionError
		ferr *reconciler.FinalizationError
	)
	switch {
	case errors.As(err, &verr), errors.Is(err, reconciler.ErrNoInput):
		return http.StatusBadRequest
	case errors.Is(err, reconciler.ErrBusy),
		errors.Is(err, reconciler.ErrInvalidTransition),
		errors.Is(err, reconciler.ErrStaleResponse):
		return http.StatusConflict
	case errors.Is(err, reconciler.ErrUnknownItem), errors.Is(err, reconciler.ErrItemNotInBasket):
		return http.StatusNotFound
	case errors.As(err, &rerr), errors.As(err, &ferr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error(), nil)
		return false
	}
	return true
}

type errorResponse struct {
	Error   string           `json:"error"`
	Session *sessionResponse `json:"session,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string, sess *sessionResponse) {
	writeJSON(w, status, errorResponse{Error: msg, Session: sess})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("SERVER: Failed to write response", "error", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("SERVER: Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"remote", r.RemoteAddr,
			"duration", time.Since(start),
		)
	})
}
