package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dukerupert/suitecal/internal/config"
	"github.com/dukerupert/suitecal/internal/dispatch"
	"github.com/dukerupert/suitecal/internal/group"
	"github.com/dukerupert/suitecal/internal/handler"
	"github.com/dukerupert/suitecal/internal/middleware"
	"github.com/dukerupert/suitecal/internal/model"
	"github.com/dukerupert/suitecal/internal/store"
	ws "github.com/dukerupert/suitecal/internal/websocket"
)

type Server struct {
	cfg        *config.Config
	hub        *ws.Hub
	scheduleH  *handler.ScheduleHandler
	calendarH  *handler.CalendarHandler
	sweeper    *dispatch.Sweeper
	wsOrigins  []string
	writeLimit func(http.Handler) http.Handler
	logger     *slog.Logger
}

// New wires handlers, the change hub and the due sweep around gw.
func New(cfg *config.Config, gw store.Gateway, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))
	loc := cfg.Location()
	planner := group.NewPlanner(cfg.HorizonWeeks)

	sweeper := dispatch.NewSweeper(gw, cfg.DueSweep, func(due []model.Occurrence) {
		hub.Broadcast(ws.NewMessage(ws.EntityOccurrence, ws.ActionDue, due...))
	}, logger.With("component", "dispatch"))

	return &Server{
		cfg:        cfg,
		hub:        hub,
		scheduleH:  handler.NewScheduleHandler(gw, planner, loc, hub, logger.With("component", "schedule")),
		calendarH:  handler.NewCalendarHandler(gw, loc, cfg.FirstWeekday(), planner.Horizon(), logger.With("component", "calendar")),
		sweeper:    sweeper,
		wsOrigins:  originHosts(cfg.AllowedOrigins),
		writeLimit: middleware.WriteLimit(cfg.WriteRateLimit, time.Minute, cfg.TrustProxy),
		logger:     logger,
	}
}

// Sweeper returns the due-run sweep so the caller can start and stop it.
func (s *Server) Sweeper() *dispatch.Sweeper {
	return s.sweeper
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /api/suites", s.calendarH.Suites)
	mux.HandleFunc("GET /api/week", s.calendarH.Week)
	mux.HandleFunc("GET /calendar.ics", s.calendarH.Feed)

	mux.HandleFunc("GET /api/occurrences", s.scheduleH.List)
	mux.HandleFunc("GET /api/occurrences/{id}", s.scheduleH.Get)
	mux.HandleFunc("GET /api/groups/{group_id}", s.scheduleH.Group)

	mux.Handle("POST /api/schedules", s.limited(s.scheduleH.CreateSchedule))
	mux.Handle("POST /api/occurrences", s.limited(s.scheduleH.CreateOccurrence))
	mux.Handle("PUT /api/occurrences/{id}", s.limited(s.scheduleH.Update))
	mux.Handle("DELETE /api/occurrences/{id}", s.limited(s.scheduleH.Delete))

	mux.HandleFunc("GET /ws", ws.Handler(s.hub, s.wsOrigins, s.logger.With("component", "websocket")))

	var h http.Handler = mux
	h = middleware.CORS(s.cfg.AllowedOrigins)(h)
	h = middleware.RequestLogger(s.logger.With("component", "http"), s.cfg.TrustProxy)(h)
	return h
}

func (s *Server) limited(h http.HandlerFunc) http.Handler {
	return s.writeLimit(h)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
	})
}

// originHosts turns CORS origins into the host patterns the websocket
// upgrader matches against.
func originHosts(origins []string) []string {
	var hosts []string
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
		}
	}
	return hosts
}
