package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BenjaminAGH/NocturneScope/application/dashboard"
	"github.com/BenjaminAGH/NocturneScope/application/editor"
	"github.com/BenjaminAGH/NocturneScope/infrastructure/config"
	"github.com/BenjaminAGH/NocturneScope/infrastructure/upstream"
	"github.com/BenjaminAGH/NocturneScope/interfaces/http/rest/handlers"
	"github.com/BenjaminAGH/NocturneScope/interfaces/http/rest/middleware"
	"github.com/BenjaminAGH/NocturneScope/pkg/auth"
	pkgerrors "github.com/BenjaminAGH/NocturneScope/pkg/errors"
)

// Router creates and configures the HTTP router
type Router struct {
	cfg       config.Config
	client    *upstream.Client
	sessions  auth.SessionStore
	manager   *editor.Manager
	dashboard *dashboard.Service
	logger    *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	cfg config.Config,
	client *upstream.Client,
	sessions auth.SessionStore,
	manager *editor.Manager,
	dashboardService *dashboard.Service,
	logger *zap.Logger,
) *Router {
	return &Router{
		cfg:       cfg,
		client:    client,
		sessions:  sessions,
		manager:   manager,
		dashboard: dashboardService,
		logger:    logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	errHandler := pkgerrors.NewErrorHandler(rt.logger, rt.cfg.IsDevelopment())
	loginLimiter := auth.NewLoginLimiter(rt.cfg.Auth.LoginAttemptsPerMinute)

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health and telemetry
	router.Get("/health", rt.healthCheck)
	router.Handle("/metrics", promhttp.Handler())

	authHandler := handlers.NewAuthHandler(rt.client, rt.sessions, loginLimiter,
		errHandler, rt.logger, rt.cfg.Session.TTL, rt.cfg.Session.SecureCookie)
	dashboardHandler := handlers.NewDashboardHandler(rt.dashboard, errHandler, rt.logger)
	tokenHandler := handlers.NewTokenHandler(rt.client, errHandler, rt.logger)
	editorHandler := handlers.NewEditorHandler(rt.manager, rt.client, errHandler, rt.logger)
	emailHandler := handlers.NewEmailHandler(rt.client, errHandler, rt.logger)

	router.Route("/api", func(r chi.Router) {
		// Credential endpoints are the only unauthenticated API surface.
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(rt.sessions, errHandler))

			r.Get("/auth/me", authHandler.Me)
			r.Post("/auth/refresh", authHandler.Refresh)

			// Dashboard
			r.Get("/devices", dashboardHandler.ListDevices)
			r.Get("/devices/overview", dashboardHandler.Overview)
			r.Get("/metrics/timeseries", dashboardHandler.TimeSeries)
			r.Get("/metrics/history", dashboardHandler.History)

			// API tokens
			r.Route("/tokens", func(r chi.Router) {
				r.Get("/", tokenHandler.List)
				r.Post("/", tokenHandler.Create)
				r.Delete("/{tokenID}", tokenHandler.Delete)
			})

			// Stored topologies
			r.Route("/topologies", func(r chi.Router) {
				r.Get("/", editorHandler.ListTopologies)
				r.Delete("/{topologyID}", editorHandler.DeleteTopology)
			})

			// Editor sessions
			r.Route("/editor/sessions", func(r chi.Router) {
				r.Post("/", editorHandler.OpenSession)
				r.Route("/{sessionID}", func(r chi.Router) {
					r.Get("/", editorHandler.GetState)
					r.Delete("/", editorHandler.CloseSession)
					r.Post("/nodes", editorHandler.AddNode)
					r.Put("/nodes/{nodeID}", editorHandler.UpdateNode)
					r.Put("/nodes/{nodeID}/position", editorHandler.MoveNode)
					r.Delete("/nodes/{nodeID}", editorHandler.DeleteNode)
					r.Post("/edges", editorHandler.Connect)
					r.Delete("/edges/{edgeID}", editorHandler.DeleteEdge)
					r.Put("/autodetect", editorHandler.SetAutoDetect)
					r.Put("/name", editorHandler.Rename)
					r.Post("/save", editorHandler.Save)
					r.Post("/load", editorHandler.Load)
					r.Post("/reset", editorHandler.Reset)
				})
			})

			// Email verification
			r.Post("/email/test", emailHandler.SendTest)
		})
	})

	// Page-level guard for the UI shell.
	router.Group(func(r chi.Router) {
		r.Use(middleware.RouteGuard(rt.sessions))
		r.Get("/", rt.uiPlaceholder)
		r.Get("/auth/login", rt.uiPlaceholder)
		r.Get("/auth/register", rt.uiPlaceholder)
		r.Get("/dashboard", rt.uiPlaceholder)
		r.Get("/topology", rt.uiPlaceholder)
		r.Get("/topology/*", rt.uiPlaceholder)
		r.Get("/tokens", rt.uiPlaceholder)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// uiPlaceholder stands in for the asset server that delivers the UI bundle
// in deployments where the console serves its own frontend.
func (rt *Router) uiPlaceholder(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("<!doctype html><title>NocturneScope</title>"))
}
