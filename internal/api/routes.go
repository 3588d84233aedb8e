// Package api wires the wire-protocol transport: chi routing, middleware,
// and the handler set, generalized from the teacher's single-queue
// Server into a multi-tenant router scoped per request by Basic auth.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maumercado/task-queue-go/internal/api/handlers"
	apimiddleware "github.com/maumercado/task-queue-go/internal/api/middleware"
	"github.com/maumercado/task-queue-go/internal/api/websocket"
	"github.com/maumercado/task-queue-go/internal/config"
	"github.com/maumercado/task-queue-go/internal/dispatch"
	"github.com/maumercado/task-queue-go/internal/events"
	"github.com/maumercado/task-queue-go/internal/reaper"
	"github.com/maumercado/task-queue-go/internal/report"
	"github.com/maumercado/task-queue-go/internal/store"
	"github.com/maumercado/task-queue-go/internal/task"
	"github.com/maumercado/task-queue-go/internal/tenant"
	"github.com/maumercado/task-queue-go/internal/worker"
)

// Server holds the chi router plus every handler it dispatches to.
type Server struct {
	router *chi.Mux
	config *config.Config

	queueHandler  *handlers.QueueHandler
	taskHandler   *handlers.TaskHandler
	workerHandler *handlers.WorkerHandler
	healthHandler *handlers.HealthHandler
	wsHandler     *websocket.Handler
}

// Deps bundles the core services the router dispatches into, keeping
// NewServer's signature stable as the core grows.
type Deps struct {
	Store      *store.Store
	Tenants    *tenant.Service
	Tasks      *task.Service
	Workers    *worker.Service
	Dispatcher *dispatch.Dispatcher
	Reporter   *report.Reporter
	Journal    *events.Journal
	Reaper     *reaper.Reaper
}

// NewServer builds the router and every handler bound to deps.
func NewServer(cfg *config.Config, deps *Deps) *Server {
	s := &Server{
		router:        chi.NewRouter(),
		config:        cfg,
		queueHandler:  handlers.NewQueueHandler(deps.Tenants),
		taskHandler:   handlers.NewTaskHandler(deps.Tasks, deps.Dispatcher, deps.Reporter, cfg.Reaper.PeriodicTaskInterval.Seconds()),
		workerHandler: handlers.NewWorkerHandler(deps.Workers, deps.Reporter),
		healthHandler: handlers.NewHealthHandler(deps.Store),
		wsHandler:     websocket.NewHandler(deps.Journal),
	}

	s.setupMiddleware()
	s.setupRoutes(deps.Tenants)

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(apimiddleware.RequestLogger())
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes(tenants *tenant.Service) {
	s.router.Get("/health", s.healthHandler.Live)
	s.router.Get("/health/full", s.healthHandler.Full)

	if s.config.Metrics.Enabled {
		s.router.Handle(s.config.Metrics.Path, promhttp.Handler())
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		if s.config.Queue.RateLimitRPS > 0 {
			r.Use(apimiddleware.ClientRateLimit(s.config.Queue.RateLimitRPS))
		}

		r.Post("/queues", s.queueHandler.Create)

		r.Route("/queues/me", func(r chi.Router) {
			r.Use(apimiddleware.BasicAuth(tenants))

			r.Get("/", s.queueHandler.Get)
			r.Put("/", s.queueHandler.Update)
			r.Delete("/", s.queueHandler.Delete)

			r.Route("/tasks", func(r chi.Router) {
				r.Post("/", s.taskHandler.Submit)
				r.Get("/", s.taskHandler.List)
				r.Post("/next", s.taskHandler.Next)
				r.Get("/{taskID}", s.taskHandler.Get)
				r.Delete("/{taskID}", s.taskHandler.Delete)
				r.Post("/{taskID}/status", s.taskHandler.Status)
				r.Post("/{taskID}/heartbeat", s.taskHandler.Heartbeat)
			})

			r.Route("/workers", func(r chi.Router) {
				r.Post("/", s.workerHandler.Register)
				r.Get("/", s.workerHandler.List)
				r.Get("/{workerID}", s.workerHandler.Get)
				r.Delete("/{workerID}", s.workerHandler.Delete)
				r.Post("/{workerID}/reset", s.workerHandler.Reset)
				r.Post("/{workerID}/status", s.workerHandler.Status)
			})

			r.Get("/events", s.wsHandler.ServeEvents)
		})
	})
}

// Router returns the chi router.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
