package internal

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dgellow/saml-front/internal/backend"
	"github.com/dgellow/saml-front/internal/config"
	"github.com/dgellow/saml-front/internal/cookie"
	"github.com/dgellow/saml-front/internal/crypto"
	"github.com/dgellow/saml-front/internal/log"
	"github.com/dgellow/saml-front/internal/saml"
	"github.com/dgellow/saml-front/internal/server"
	"github.com/dgellow/saml-front/internal/sessionstate"
	"github.com/dgellow/saml-front/internal/storage"
	"github.com/dgellow/saml-front/internal/tokens"
	"github.com/dgellow/saml-front/internal/urlutil"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

// SAMLFront is the complete authenticating proxy application
type SAMLFront struct {
	config     config.Config
	httpServer *server.HTTPServer
	storage    storage.Storage
	cleanup    *storage.CleanupManager
}

// NewSAMLFront builds the application and all its dependencies
func NewSAMLFront(ctx context.Context, cfg config.Config) (*SAMLFront, error) {
	log.LogInfoWithFields("samlfront", "Building SAML proxy application", map[string]any{
		"baseURL":  cfg.Proxy.BaseURL,
		"basePath": cfg.Proxy.BasePath,
		"realm":    cfg.SAML.Realm,
		"storage":  string(cfg.Storage.Kind),
	})

	store, err := setupStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	app, err := build(cfg, store)
	if err != nil {
		if cerr := store.Close(); cerr != nil {
			log.LogError("Failed to close storage: %v", cerr)
		}
		return nil, err
	}
	return app, nil
}

func build(cfg config.Config, store storage.Storage) (*SAMLFront, error) {
	backendClient, err := backend.NewClient(backend.Config{
		URL:      cfg.Backend.URL,
		Username: cfg.Backend.Username,
		Password: string(cfg.Backend.Password),
		Timeout:  cfg.Backend.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	provider, err := setupProvider(cfg, backendClient, tokens.NewService(backendClient, cfg.Backend.TokenPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create SAML provider: %w", err)
	}

	jar := cookie.New(cfg.Session.CookieName, cfg.Proxy.BasePath)
	if jar.SameSite, err = cookie.ParseSameSite(cfg.Session.SameSite); err != nil {
		return nil, fmt.Errorf("invalid session.sameSite: %w", err)
	}
	states, err := setupSessionState(cfg.Session, jar)
	if err != nil {
		return nil, fmt.Errorf("failed to setup session state: %w", err)
	}

	upstream, err := server.NewUpstreamProxy(cfg.Proxy.UpstreamURL, jar.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream proxy: %w", err)
	}

	handler := server.NewRouter(server.RouterConfig{
		Name:           cfg.Proxy.Name,
		BasePath:       cfg.Proxy.BasePath,
		AllowedOrigins: cfg.Proxy.AllowedOrigins,
		Provider:       provider,
		States:         states,
		Storage:        store,
		Users:          backendClient,
		Upstream:       upstream,
	})

	app := &SAMLFront{
		config:     cfg,
		httpServer: server.NewHTTPServer(handler, cfg.Proxy.Addr),
		storage:    store,
	}
	if cfg.Storage.Retention > 0 {
		app.cleanup = storage.NewCleanupManager(store, cfg.Storage.CleanupInterval, cfg.Storage.Retention)
	}
	return app, nil
}

// setupStorage creates user tracking storage based on configuration
func setupStorage(ctx context.Context, cfg config.StorageConfig) (storage.Storage, error) {
	switch cfg.Kind {
	case config.StorageKindFirestore:
		log.LogInfoWithFields("storage", "Using Firestore storage", map[string]any{
			"project":    cfg.GCPProject,
			"database":   cfg.FirestoreDatabase,
			"collection": cfg.FirestoreCollection,
		})
		return storage.NewFirestoreStorage(ctx, cfg.GCPProject, cfg.FirestoreDatabase, cfg.FirestoreCollection)
	case config.StorageKindRedis:
		log.LogInfoWithFields("storage", "Using Redis storage", map[string]any{
			"addr": cfg.RedisAddr,
			"db":   cfg.RedisDB,
		})
		return storage.NewRedisStorage(ctx, storage.RedisConfig{
			Addr:      cfg.RedisAddr,
			Username:  cfg.RedisUsername,
			Password:  string(cfg.RedisPassword),
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		})
	case config.StorageKindMemory, "":
		log.LogInfoWithFields("storage", "Using in-memory storage", nil)
		return storage.NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unsupported storage kind %q", cfg.Kind)
	}
}

// redirectPolicy builds the provider's redirect policy. Configured API
// prefixes and AJAX headers replace the defaults; prefixes are relative to
// the base path, like the defaults.
func redirectPolicy(cfg config.Config) saml.RedirectPolicy {
	policy := saml.DefaultRedirectPolicy(cfg.Proxy.BasePath)
	if len(cfg.SAML.APIPrefixes) > 0 {
		policy.APIPrefixes = make([]string, 0, len(cfg.SAML.APIPrefixes))
		for _, prefix := range cfg.SAML.APIPrefixes {
			policy.APIPrefixes = append(policy.APIPrefixes, urlutil.WithBasePath(cfg.Proxy.BasePath, prefix))
		}
	}
	if len(cfg.SAML.AJAXHeaders) > 0 {
		policy.AJAXHeaders = cfg.SAML.AJAXHeaders
	}
	return policy
}

func setupProvider(cfg config.Config, b saml.Backend, ts saml.TokenService) (*saml.Provider, error) {
	return saml.NewProvider(saml.Options{
		Realm:     cfg.SAML.Realm,
		PublicURL: cfg.Proxy.BaseURL,
		BasePath:  saml.StaticBasePath(cfg.Proxy.BasePath),
		Redirect:  redirectPolicy(cfg),
		Backend:   b,
		Tokens:    ts,
	})
}

func setupSessionState(cfg config.SessionConfig, jar cookie.Jar) (*sessionstate.Store, error) {
	encryptor, err := crypto.NewEncryptor([]byte(cfg.EncryptionKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}
	return sessionstate.NewStore(jar, encryptor, cfg.TTL), nil
}

// Run serves until SIGINT or SIGTERM, then shuts down gracefully
func (a *SAMLFront) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *SAMLFront) run(ctx context.Context) error {
	log.LogInfoWithFields("samlfront", "Starting SAML proxy application", map[string]any{
		"addr": a.config.Proxy.Addr,
	})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.httpServer.Start(); err != nil {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	if a.cleanup != nil {
		a.cleanup.Start(gctx)
	}

	g.Go(func() error {
		<-gctx.Done()

		reason := "context cancelled"
		if cause := context.Cause(gctx); cause != nil && !errors.Is(cause, context.Canceled) {
			reason = cause.Error()
		}
		log.LogInfoWithFields("samlfront", "Starting graceful shutdown", map[string]any{
			"reason":  reason,
			"timeout": shutdownTimeout.String(),
		})

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if a.cleanup != nil {
			a.cleanup.Stop()
		}
		return a.httpServer.Stop(shutdownCtx)
	})

	err := g.Wait()

	if cerr := a.storage.Close(); cerr != nil {
		log.LogErrorWithFields("samlfront", "Failed to close storage", map[string]any{
			"error": cerr.Error(),
		})
	}

	if err != nil {
		log.LogErrorWithFields("samlfront", "Application stopped with error", map[string]any{
			"error": err.Error(),
		})
		return err
	}
	log.LogInfoWithFields("samlfront", "Application shutdown complete", nil)
	return nil
}
