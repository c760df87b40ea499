package internal

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/promodash/dash-front/internal/adminauth"
	"github.com/promodash/dash-front/internal/apicall"
	"github.com/promodash/dash-front/internal/business"
	"github.com/promodash/dash-front/internal/config"
	"github.com/promodash/dash-front/internal/gate"
	"github.com/promodash/dash-front/internal/identity"
	jsonwriter "github.com/promodash/dash-front/internal/json"
	"github.com/promodash/dash-front/internal/log"
	"github.com/promodash/dash-front/internal/server"
	"github.com/promodash/dash-front/internal/session"
	"github.com/promodash/dash-front/internal/storage"
	"golang.org/x/sync/errgroup"
)

// DashFront represents the complete dashboard front application
type DashFront struct {
	config     config.Config
	httpServer *server.HTTPServer
	cleanup    *storage.CleanupManager
	backend    storage.Backend
}

// NewDashFront creates a new dashboard front application with all dependencies built
func NewDashFront(ctx context.Context, cfg config.Config) (*DashFront, error) {
	log.LogInfoWithFields("dashfront", "Building dashboard front application", map[string]any{
		"addr":         cfg.Server.Addr,
		"session_mode": string(cfg.Session.Mode),
	})

	backend, err := setupStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	sessions, err := setupSessions(cfg, backend)
	if err != nil {
		return nil, fmt.Errorf("failed to setup sessions: %w", err)
	}

	identityClient := identity.NewClient(string(cfg.Identity.BaseURL))
	businessClient := business.NewClient(string(cfg.Business.BaseURL))
	executor := apicall.New(identityClient)

	mux := buildHTTPHandler(cfg, sessions, identityClient, businessClient, executor)

	var cleanup *storage.CleanupManager
	if backend != nil {
		interval := time.Duration(cfg.Session.CleanupInterval)
		if interval <= 0 {
			interval = time.Minute
		}
		cleanup = storage.NewCleanupManager(backend, interval)
	}

	return &DashFront{
		config:     cfg,
		httpServer: server.NewHTTPServer(mux, cfg.Server.Addr),
		cleanup:    cleanup,
		backend:    backend,
	}, nil
}

// Run starts and manages the complete application lifecycle
func (d *DashFront) Run() error {
	log.LogInfoWithFields("dashfront", "Starting dashboard front application", map[string]any{
		"addr": d.config.Server.Addr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := d.httpServer.Start(); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	if d.cleanup != nil {
		group.Go(func() error {
			return d.cleanup.Run(groupCtx)
		})
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var shutdownReason string
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("signal %v", sig)
		log.LogInfoWithFields("dashfront", "Received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
	case <-groupCtx.Done():
		shutdownReason = "background task failed"
		log.LogErrorWithFields("dashfront", "Shutting down due to error", map[string]any{
			"error": groupCtx.Err().Error(),
		})
	}

	log.LogInfoWithFields("dashfront", "Starting graceful shutdown", map[string]any{
		"reason":  shutdownReason,
		"timeout": "30s",
	})
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := d.httpServer.Stop(shutdownCtx); err != nil {
		log.LogErrorWithFields("dashfront", "HTTP server shutdown error", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	if d.cleanup != nil {
		d.cleanup.Stop()
	}
	cancel()

	if err := group.Wait(); err != nil {
		log.LogWarnWithFields("dashfront", "Background task error during shutdown", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("dashfront", "Application shutdown complete", map[string]any{
		"reason": shutdownReason,
	})
	return nil
}

// setupStorage creates the server-side session backend when one is needed.
// Cookie-mode deployments return a nil backend.
func setupStorage(ctx context.Context, cfg config.Config) (storage.Backend, error) {
	if cfg.Session.Mode != config.SessionModeServer {
		return nil, nil
	}

	if cfg.Session.Storage == config.StorageKindFirestore {
		log.LogInfoWithFields("storage", "Using Firestore session storage", map[string]any{
			"project":    cfg.Session.GCPProject,
			"database":   cfg.Session.FirestoreDatabase,
			"collection": cfg.Session.FirestoreCollection,
		})
		return storage.NewFirestoreBackend(
			ctx,
			cfg.Session.GCPProject,
			cfg.Session.FirestoreDatabase,
			cfg.Session.FirestoreCollection,
		)
	}

	log.LogInfoWithFields("storage", "Using in-memory session storage", map[string]any{})
	return storage.NewMemoryBackend(), nil
}

func setupSessions(cfg config.Config, backend storage.Backend) (*session.Manager, error) {
	signingKey := []byte(cfg.Session.SigningKey)
	window := time.Duration(cfg.Session.Window)

	if cfg.Session.Mode == config.SessionModeServer {
		if backend == nil {
			return nil, fmt.Errorf("server session mode requires a storage backend")
		}
		return session.NewServerManager(signingKey, window, backend), nil
	}
	return session.NewCookieManager(signingKey, window), nil
}

// buildHTTPHandler creates the complete HTTP handler with all routing and middleware
func buildHTTPHandler(
	cfg config.Config,
	sessions *session.Manager,
	identityClient *identity.Client,
	businessClient *business.Client,
	executor *apicall.Executor,
) http.Handler {
	mux := http.NewServeMux()

	handlers := server.NewHandlers(sessions, identityClient, businessClient, executor, cfg.Version)

	apiLogger := server.NewLoggerMiddleware("api")
	adminLogger := server.NewLoggerMiddleware("admin")
	apiRecover := server.NewRecoverMiddleware("api")
	requestID := server.NewRequestIDMiddleware()
	loginRateLimit := server.NewRateLimitMiddleware(server.LoginRateLimit)

	apiMiddleware := []server.MiddlewareFunc{
		apiLogger,
		requestID,
		apiRecover,
	}

	mux.Handle("/healthz", server.NewHealthHandler())

	mux.Handle("/api/login", server.ChainMiddleware(http.HandlerFunc(handlers.LoginHandler), append([]server.MiddlewareFunc{loginRateLimit}, apiMiddleware...)...))
	mux.Handle("/api/logout", server.ChainMiddleware(http.HandlerFunc(handlers.LogoutHandler), apiMiddleware...))
	mux.Handle("/api/cajeros", server.ChainMiddleware(http.HandlerFunc(handlers.CajerosHandler), apiMiddleware...))
	mux.Handle("/api/promociones", server.ChainMiddleware(http.HandlerFunc(handlers.PromocionesHandler), apiMiddleware...))
	mux.Handle("/api/solicitudes", server.ChainMiddleware(http.HandlerFunc(handlers.SolicitudesHandler), apiMiddleware...))

	adminMiddleware := []server.MiddlewareFunc{
		adminauth.Middleware(cfg.Admin),
		adminLogger,
		requestID,
		apiRecover,
	}
	mux.Handle("/admin/status", server.ChainMiddleware(http.HandlerFunc(handlers.StatusHandler), adminMiddleware...))

	// Everything else is page navigation guarded by the route gate. The gate's
	// exclusion patterns keep it away from the API and static routes above.
	pageGate := gate.New(sessions, cfg.Routes)
	pages := pageGate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Pages are rendered by the frontend bundle; anything that reaches
		// this process directly gets a JSON 404.
		jsonwriter.WriteNotFound(w, "Not Found")
	}))
	mux.Handle("/", server.ChainMiddleware(pages, server.NewLoggerMiddleware("pages"), requestID, apiRecover))

	log.LogInfoWithFields("dashfront", "Dashboard front server initialized", nil)
	return mux
}
