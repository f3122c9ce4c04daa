package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/atelierhq/atelier/internal/access"
	"github.com/atelierhq/atelier/internal/api/handlers"
	"github.com/atelierhq/atelier/internal/api/middleware"
	"github.com/atelierhq/atelier/internal/auth"
	"github.com/atelierhq/atelier/internal/portal"
	"github.com/atelierhq/atelier/internal/storage"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB               *gorm.DB
	Redis            *redis.Client
	Logger           *slog.Logger
	JWTService       *auth.JWTService
	AuthService      *auth.Service
	ApiTokens        *auth.ApiTokenService
	Sessions         *portal.SessionStore
	FileStore        storage.FileStore
	AsynqClient      *asynq.Client
	PortalSessionTTL time.Duration
	AllowedOrigins   []string // CORS allowed origins
	RateLimitReqs    int      // Rate limit requests per window
	RateLimitSecs    int      // Rate limit window in seconds
	RateLimitLogin   int      // Tighter limit for portal login
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	// Rate limiting - applied globally to prevent abuse
	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	// CORS - restrict to configured origins, or allow all in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		// Default to localhost for development - configure in production
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Resolvers: staff routes accept user identities only; portal
	// routes accept both, staff taking precedence.
	userResolver := auth.NewUserResolver(cfg.JWTService, cfg.ApiTokens)
	clientResolver := auth.NewClientResolver(cfg.JWTService)
	dualResolver := auth.NewDualResolver(userResolver, clientResolver)

	verifier := access.NewVerifier(cfg.DB)
	csrfStore := middleware.NewCSRFStore()

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService)
	tokenHandler := handlers.NewTokenHandler(cfg.ApiTokens)
	clientHandler := handlers.NewClientHandler(cfg.DB, verifier)
	projectHandler := handlers.NewProjectHandler(cfg.DB)
	boardHandler := handlers.NewBoardHandler(cfg.DB, verifier)
	invoiceHandler := handlers.NewInvoiceHandler(cfg.DB, verifier)
	quoteHandler := handlers.NewQuoteHandler(cfg.DB, verifier)
	fileHandler := handlers.NewFileHandler(cfg.DB, verifier, cfg.FileStore)
	var enqueuer handlers.TaskEnqueuer
	if cfg.AsynqClient != nil {
		enqueuer = cfg.AsynqClient
	}
	portalHandler := handlers.NewPortalHandler(
		cfg.DB, cfg.Sessions, cfg.JWTService, verifier, enqueuer, cfg.PortalSessionTTL)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public auth endpoints
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)

		// Public portal login, rate limited harder than the rest
		r.Group(func(r chi.Router) {
			if cfg.RateLimitLogin > 0 {
				r.Use(middleware.RateLimit(cfg.RateLimitLogin, cfg.RateLimitSecs))
			}
			r.Post("/portal/login", portalHandler.Login)
			r.Post("/portal/verify", portalHandler.Verify)
		})
		r.Post("/portal/logout", portalHandler.Logout)

		// Staff routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(userResolver))
			r.Use(middleware.CSRF(csrfStore))

			r.Get("/me", authHandler.Me)

			r.Route("/tokens", func(r chi.Router) {
				r.Get("/", tokenHandler.List)
				r.Post("/", tokenHandler.Create)
				r.Delete("/{id}", tokenHandler.Revoke)
			})

			r.Route("/clients", func(r chi.Router) {
				r.Get("/", clientHandler.List)
				r.Post("/", clientHandler.Create)
				r.Get("/{id}", clientHandler.Get)
				r.Put("/{id}", clientHandler.Update)
				r.Delete("/{id}", clientHandler.Delete)
				r.Post("/{id}/projects/{projectID}", clientHandler.GrantProject)
				r.Delete("/{id}/projects/{projectID}", clientHandler.RevokeProject)
			})

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projectHandler.List)
				r.Post("/", projectHandler.Create)
				r.Get("/{id}", projectHandler.Get)
				r.Put("/{id}", projectHandler.Update)
				r.Delete("/{id}", projectHandler.Archive)
				r.Get("/{id}/boards", boardHandler.ListByProject)
				r.Post("/{id}/boards", boardHandler.Create)
				r.Get("/{id}/files", fileHandler.List)
				r.Post("/{id}/files", fileHandler.Upload)
				r.Get("/{id}/files/{fileID}", fileHandler.Download)
				r.Delete("/{id}/files/{fileID}", fileHandler.Delete)
			})

			r.Route("/boards", func(r chi.Router) {
				r.Get("/{id}/cards", boardHandler.ListCards)
				r.Post("/{id}/cards", boardHandler.CreateCard)
			})

			r.Route("/cards", func(r chi.Router) {
				r.Put("/{id}/move", boardHandler.MoveCard)
				r.Delete("/{id}", boardHandler.DeleteCard)
			})

			r.Route("/invoices", func(r chi.Router) {
				r.Get("/", invoiceHandler.List)
				r.Post("/", invoiceHandler.Create)
				r.Get("/{id}", invoiceHandler.Get)
				r.Put("/{id}", invoiceHandler.Update)
				r.Delete("/{id}", invoiceHandler.Delete)
				r.Post("/{id}/send", invoiceHandler.Send)
				r.Post("/{id}/pay", invoiceHandler.MarkPaid)
			})

			r.Route("/quotes", func(r chi.Router) {
				r.Get("/", quoteHandler.List)
				r.Post("/", quoteHandler.Create)
				r.Get("/{id}", quoteHandler.Get)
				r.Put("/{id}", quoteHandler.Update)
				r.Delete("/{id}", quoteHandler.Delete)
				r.Post("/{id}/send", quoteHandler.Send)
			})
		})

		// Portal routes: staff or client, user precedence
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(dualResolver))
			r.Use(middleware.CSRF(csrfStore))

			r.Get("/portal/projects", portalHandler.ListProjects)
			r.Get("/portal/projects/{id}", portalHandler.GetProject)
			r.Get("/portal/invoices", portalHandler.ListInvoices)
			r.Get("/portal/quotes", portalHandler.ListQuotes)
			r.Post("/portal/quotes/{id}/accept", portalHandler.AcceptQuote)
			r.Post("/portal/quotes/{id}/decline", portalHandler.DeclineQuote)
		})
	})

	return &Router{r}
}
