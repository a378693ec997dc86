package server

import (
	"net/http"

	"github.com/dgellow/saml-front/internal/saml"
	"github.com/dgellow/saml-front/internal/storage"
	"github.com/dgellow/saml-front/internal/urlutil"
)

// Application routes outside the SAML protocol endpoints, relative to the base path
const (
	MePath    = "/internal/security/me"
	UsersPath = "/internal/security/users"
)

// RouterConfig holds the dependencies of the HTTP handler tree
type RouterConfig struct {
	Name           string
	BasePath       string
	AllowedOrigins []string
	Provider       Provider
	States         StateStore
	Storage        storage.Storage
	Users          UserResolver

	// Upstream receives every authenticated request not served here. Nil disables proxying.
	Upstream http.Handler
}

// NewRouter registers all routes and wraps them in the global middleware
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()
	route := func(p string) string {
		return urlutil.WithBasePath(cfg.BasePath, p)
	}

	authHandlers := NewAuthHandlers(cfg.Provider, cfg.States, cfg.Storage, cfg.Users, cfg.Name, cfg.BasePath)

	// CORS must run before authentication so preflights are answered
	public := []MiddlewareFunc{NewCORSMiddleware(cfg.AllowedOrigins)}
	protected := []MiddlewareFunc{
		NewAuthMiddleware(cfg.Provider, cfg.States, cfg.Storage),
		NewCORSMiddleware(cfg.AllowedOrigins),
	}

	mux.Handle("/health", NewHealthHandler(cfg.Name))

	mux.Handle(route(saml.ACSPath), ChainMiddleware(http.HandlerFunc(authHandlers.LoginHandler), public...))
	mux.Handle(route(saml.LogoutPath), ChainMiddleware(http.HandlerFunc(authHandlers.LogoutHandler), public...))
	mux.Handle(route(saml.LoggedOutPath), ChainMiddleware(http.HandlerFunc(authHandlers.LoggedOutHandler), public...))

	mux.Handle(route(saml.OverwrittenSessionPath), ChainMiddleware(http.HandlerFunc(authHandlers.OverwrittenSessionHandler), protected...))
	mux.Handle(route(MePath), ChainMiddleware(http.HandlerFunc(authHandlers.MeHandler), protected...))
	mux.Handle(route(UsersPath), ChainMiddleware(http.HandlerFunc(authHandlers.UsersHandler), protected...))

	if cfg.Upstream != nil {
		mux.Handle(route("/"), ChainMiddleware(cfg.Upstream, protected...))
	}

	return ChainMiddleware(mux,
		NewRecoverMiddleware(cfg.Name),
		NewLoggerMiddleware("http"),
		NewRequestIDMiddleware(),
	)
}
