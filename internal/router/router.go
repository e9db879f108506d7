package router

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"wildsats-api/internal/handler"
	"wildsats-api/internal/middleware"
	"wildsats-api/pkg/apierror"
	"wildsats-api/pkg/response"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler        *handler.Handler
	PlayerHandler  *handler.PlayerHandler
	AdminHandler   *handler.AdminHandler
	AuthMiddleware func(http.Handler) http.Handler
	Metrics        middleware.HTTPObserver
	MetricsHandler http.Handler
	CORSOrigins    []string
	Logger         *slog.Logger
}

// fallbackMethods are answered by the descriptive buy-animal fallback.
var fallbackMethods = []string{http.MethodGet, http.MethodPut, http.MethodPatch, http.MethodDelete}

// New creates and configures the HTTP router. Player routes are served both at the
// root and under /api.
func New(cfg Config) *chi.Mux {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.Metrics(cfg.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader, handler.LoginKeyHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, apierror.RouteNotFound(""))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, apierror.MethodNotAllowed(""))
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	playerRoutes(r, cfg)

	r.Route("/api", func(r chi.Router) {
		playerRoutes(r, cfg)

		if cfg.Handler != nil {
			r.Get("/status", cfg.Handler.Status)
		}

		r.Route("/v1", func(r chi.Router) {
			if cfg.Handler != nil {
				r.Get("/health", cfg.Handler.Health)
				r.Get("/ready", cfg.Handler.Ready)
			}

			if cfg.AdminHandler != nil {
				r.Route("/admin", func(r chi.Router) {
					r.Use(cfg.AdminHandler.RequireLoginKey)
					r.Get("/stats", cfg.AdminHandler.GetStats)
					r.Post("/login", cfg.AdminHandler.VerifyLogin)
				})
			}
		})
	})

	return r
}

func playerRoutes(r chi.Router, cfg Config) {
	h := cfg.PlayerHandler
	if h == nil {
		return
	}

	r.Get("/test", h.Test)
	r.Get("/catalog", h.Catalog)

	r.Group(func(r chi.Router) {
		if cfg.AuthMiddleware != nil {
			r.Use(cfg.AuthMiddleware)
		}

		r.Post("/users", h.Login)
		r.Get("/users/{identity}", h.GetPlayer)
		r.Get("/users/{identity}/characters", h.ListCharacters)
		r.Post("/users/{identity}/characters", h.AddCharacter)
		r.Post("/users/{identity}/inventory", h.AddInventoryItem)
		r.Post("/users/{identity}/buy-animal", h.BuyAnimal)
		for _, method := range fallbackMethods {
			r.MethodFunc(method, "/users/{identity}/buy-animal", h.BuyAnimalFallback)
		}
	})
}
