package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"contestcal/internal/aggregator"
	"contestcal/internal/calendar"
	"contestcal/internal/config"
	"contestcal/internal/ics"
	appLog "contestcal/internal/log"
	"contestcal/internal/model"
)

// Aggregator is the part of aggregator.Aggregator the HTTP layer uses.
type Aggregator interface {
	Snapshot() aggregator.State
	SetFilters(ctx context.Context, f aggregator.Filters) aggregator.State
	Refresh(ctx context.Context) aggregator.State
	Location() *time.Location
	Now() time.Time
}

// Server exposes the aggregated contest views and per-contest ICS export.
type Server struct {
	cfg *config.Config
	agg Aggregator
	r   chi.Router

	// Built grids keyed by month and ranged generation. A new generation
	// makes every entry stale.
	gridMu    sync.RWMutex
	gridCache map[gridKey]model.Grid
}

type gridKey struct {
	month        string
	generation   uint64
	adjacentDays bool
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, agg Aggregator) *Server {
	s := &Server{
		cfg:       cfg,
		agg:       agg,
		gridCache: make(map[gridKey]model.Grid),
	}
	s.r = s.routes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.r
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(api chi.Router) {
		if s.basicAuthEnabled() {
			appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
			api.Use(s.basicAuthMiddleware)
		}
		api.Get("/state", s.handleState)
		api.Get("/calendar", s.handleCalendar)
		api.Get("/next", s.handleNext)
		api.Get("/freshness", s.handleFreshness)
		api.Put("/filters", s.handleFilters)
		api.Post("/refresh", s.handleRefresh)
		api.Get("/contests/{id}/ics", s.handleContestICS)
	})

	return r
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password disables auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware guards the API routes; /health stays public.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="contestcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.buildState(s.agg.Snapshot()))
}

// handleCalendar returns the 42-day grid for a month.
//
// GET /api/calendar?month=2025-03&adjacent_days=1
//   - month: YYYY-MM, defaults to the filters' reference month, else today
//   - adjacent_days: also fill leading/trailing days from the next and previous month
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	loc := s.agg.Location()
	st := s.agg.Snapshot()

	month, err := s.resolveMonth(r.URL.Query().Get("month"), st.Filters, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
		return
	}
	adjacentDays := parseBool(r.URL.Query().Get("adjacent_days"))

	key := gridKey{month: month.Format(monthLayout), generation: st.Ranged.Generation, adjacentDays: adjacentDays}

	s.gridMu.RLock()
	grid, ok := s.gridCache[key]
	s.gridMu.RUnlock()
	if !ok || st.Ranged.Loading {
		var opts []calendar.GridOption
		if adjacentDays {
			opts = append(opts, calendar.WithAdjacentDays())
		}
		grid = calendar.BuildGrid(month.Year(), month.Month(), loc, st.Ranged.Data, opts...)
		if !st.Ranged.Loading {
			s.storeGrid(key, grid)
		}
	}

	days := make([]calendarDayDTO, 0, len(grid))
	for _, d := range grid {
		days = append(days, calendarDayDTO{
			Date:     d.Date.Format(dateLayout),
			InMonth:  calendar.InMonth(d, month.Month()),
			Contests: toContestDTOs(d.Contests),
		})
	}
	writeJSON(w, http.StatusOK, calendarResponse{
		Month:    month.Format(monthLayout),
		Timezone: loc.String(),
		Loading:  st.Ranged.Loading,
		Error:    errString(st.Ranged.Err),
		Days:     days,
	})
}

func (s *Server) storeGrid(key gridKey, grid model.Grid) {
	s.gridMu.Lock()
	defer s.gridMu.Unlock()
	for k := range s.gridCache {
		if k.generation != key.generation {
			delete(s.gridCache, k)
		}
	}
	s.gridCache[key] = grid
}

func (s *Server) handleNext(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.buildNext(s.agg.Snapshot()))
}

func (s *Server) handleFreshness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.buildFreshness(s.agg.Snapshot()))
}

// handleFilters replaces the active filters and refetches what changed.
func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	var req filtersRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	f, err := req.toFilters(s.agg.Snapshot().Filters, s.agg.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	appLog.Info("api filters update", "platforms", len(f.Platforms), "timeframe", string(f.Timeframe))
	st := s.agg.SetFilters(r.Context(), f)
	writeJSON(w, http.StatusOK, s.buildState(st))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	st := s.agg.Refresh(r.Context())
	writeJSON(w, http.StatusOK, s.buildState(st))
}

// handleContestICS serves one contest as a downloadable .ics file.
func (s *Server) handleContestICS(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, ok := s.agg.Snapshot().FindContest(id)
	if !ok {
		writeError(w, http.StatusNotFound, "contest not found")
		return
	}

	ev, err := ics.EventFromContest(c)
	if err != nil {
		appLog.Error("api ics: contest not encodable", err, "id", id)
		writeError(w, http.StatusUnprocessableEntity, "contest has invalid start or end time")
		return
	}
	body, err := ics.Encode(ev)
	if err != nil {
		appLog.Error("api ics: encode failed", err, "id", id)
		writeError(w, http.StatusUnprocessableEntity, "contest could not be encoded")
		return
	}

	filename := ics.Filename(c.NormalizedPlatform, c.Name)
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func (s *Server) resolveMonth(raw string, f aggregator.Filters, loc *time.Location) (time.Time, error) {
	if raw != "" {
		return time.ParseInLocation(monthLayout, raw, loc)
	}
	ref := s.agg.Now().In(loc)
	if !f.Month.IsZero() {
		ref = f.Month.In(loc)
	}
	return time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, loc), nil
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	return err == nil && b
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
