// Package server is the composition root: it opens the configured store,
// builds the services and handlers, mounts the routes and runs the HTTP
// server until its context is cancelled.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/linkbio/internal/auth"
	"github.com/sakif/linkbio/internal/config"
	"github.com/sakif/linkbio/internal/handler"
	"github.com/sakif/linkbio/internal/middleware"
	"github.com/sakif/linkbio/internal/repository"
	"github.com/sakif/linkbio/internal/repository/postgres"
	"github.com/sakif/linkbio/internal/repository/sqlite"
	"github.com/sakif/linkbio/internal/service"
)

const (
	shutdownTimeout = 30 * time.Second
	sweepInterval   = 5 * time.Minute
)

// Server owns the router and the store connection. The store is closed when
// Start returns.
type Server struct {
	router  *chi.Mux
	config  config.Config
	logger  *slog.Logger
	limiter *middleware.RateLimiter
	close   func()
}

// New opens the store described by cfg and wires every route.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	store, closeStore, err := OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	s, err := NewWithStore(cfg, store, logger)
	if err != nil {
		closeStore()
		return nil, err
	}
	s.close = closeStore
	return s, nil
}

// NewWithStore wires the routes over an already opened store.
func NewWithStore(cfg config.Config, store repository.Store, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		limiter: middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, logger),
		close:   func() {},
	}
	if err := s.setupRoutes(store); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// OpenStore opens the sqlite or postgres backend. Postgres migrations are
// applied first; sqlite migrates itself on open.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (repository.Store, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		if err := postgres.Migrate(ctx, cfg.PostgresDSN); err != nil {
			return repository.Store{}, nil, err
		}
		db, err := postgres.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return repository.Store{}, nil, err
		}
		logger.Info("store opened", slog.String("driver", cfg.Driver))
		return db.Store(), db.Close, nil

	case config.DriverSQLite:
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return repository.Store{}, nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqlite.New(cfg.Path)
		if err != nil {
			return repository.Store{}, nil, err
		}
		logger.Info("store opened", slog.String("driver", cfg.Driver), slog.String("path", cfg.Path))
		closeDB := func() {
			if err := db.Close(); err != nil {
				logger.Error("closing database", slog.String("error", err.Error()))
			}
		}
		return db.Store(), closeDB, nil
	}
	return repository.Store{}, nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes builds the services and mounts:
//
//	GET    /healthz
//	GET    /api/u/{username}              public profile page
//	GET    /u/{username}/links/{id}       click-through redirect
//	GET    /api/usernames/{username}      availability
//	POST   /auth/register|login|logout
//	GET    /auth/{provider}/login|callback
//	       /api/me...                     owner surface, RequireAuth
//
// Sign-in and the owner surface are only mounted when a JWT secret is set.
func (s *Server) setupRoutes(store repository.Store) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(s.limiter.Handler)

	registry := service.NewRegistry(store.Usernames, s.logger)
	profiles := service.NewProfileService(store.Profiles, s.logger)
	links := service.NewLinkService(store.Links, service.NewOrderClock(), s.logger)
	resolver := service.NewResolver(registry, profiles, links, s.logger)

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	var tokens *auth.TokenService
	if s.config.Auth.Enabled() {
		var err error
		tokens, err = auth.NewTokenService(s.config.Auth.JWTSecret, s.config.Auth.TTL())
		if err != nil {
			return fmt.Errorf("creating token service: %w", err)
		}
	} else {
		s.logger.Warn("jwt secret not set, sign-in and the owner API are disabled")
	}

	directory := handler.NewDirectoryHandler(resolver, registry, links, s.logger)
	s.router.Get("/u/{username}/links/{id}", directory.HandleClick)

	var (
		owner       *handler.OwnerHandler
		authHandler *handler.AuthHandler
	)
	if tokens != nil {
		accounts := service.NewAccountService(registry, profiles, store.Credentials,
			auth.NewPasswordService(), tokens, s.config.Directory.MaxUsernameProbes, s.logger)
		owner = handler.NewOwnerHandler(resolver, profiles, links, accounts, s.logger)
		authHandler = handler.NewAuthHandler(accounts, s.providers(), tokens,
			strings.HasPrefix(s.config.Server.BaseURL, "https://"), s.logger)
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if tokens != nil {
				r.Use(auth.OptionalAuth(tokens))
			}
			r.Get("/u/{username}", directory.HandleResolve)
		})
		r.Get("/usernames/{username}", directory.HandleAvailability)

		if owner == nil {
			return
		}
		r.Route("/me", func(r chi.Router) {
			r.Use(auth.RequireAuth(tokens))
			r.Get("/", owner.HandleMe)
			r.Patch("/profile", owner.HandleUpdateProfile)
			r.Put("/username", owner.HandleChangeUsername)
			r.Get("/links", owner.HandleListLinks)
			r.Post("/links", owner.HandleCreateLink)
			r.Post("/links/batch", owner.HandleBatch)
			r.Patch("/links/{id}", owner.HandleUpdateLink)
			r.Delete("/links/{id}", owner.HandleDeleteLink)
		})
	})

	if authHandler != nil {
		s.router.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/logout", authHandler.HandleLogout)
			r.Get("/{provider}/login", authHandler.HandleProviderLogin)
			r.Get("/{provider}/callback", authHandler.HandleProviderCallback)
		})
	}
	return nil
}

// providers returns the identity providers that have a client configured.
func (s *Server) providers() auth.Providers {
	var list []auth.IdentityProvider
	if gh := s.config.GitHub; gh.Enabled() {
		list = append(list, auth.NewGitHubProvider(gh.ClientID, gh.ClientSecret, gh.CallbackURL))
	}
	if g := s.config.Google; g.Enabled() {
		list = append(list, auth.NewGoogleProvider(g.ClientID, g.ClientSecret, g.CallbackURL))
	}
	ps := auth.NewProviders(list...)
	s.logger.Info("identity providers configured", slog.Any("providers", ps.Names()))
	return ps
}

// Start serves HTTP until ctx is cancelled, then drains in-flight requests
// and closes the store.
func (s *Server) Start(ctx context.Context) error {
	defer s.close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	done := make(chan struct{})
	defer close(done)
	go s.limiter.Run(done, sweepInterval)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("driver", s.config.Database.Driver),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}
	return nil
}
