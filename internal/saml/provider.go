package saml

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/dgellow/saml-front/internal/urlutil"
)

// Application paths, relative to the base path.
const (
	ACSPath                = "/api/security/v1/saml"
	LogoutPath             = "/api/security/v1/logout"
	LoggedOutPath          = "/logged_out"
	OverwrittenSessionPath = "/overwritten_session"
)

// IdPRequestParam is the query parameter identifying identity-provider-initiated flows.
const IdPRequestParam = "SAMLRequest"

// BasePathFunc returns the mounted path prefix for a request ("" when mounted at root).
type BasePathFunc func(r *http.Request) string

// StaticBasePath returns a BasePathFunc for a fixed prefix.
func StaticBasePath(basePath string) BasePathFunc {
	normalized := urlutil.NormalizeBasePath(basePath)
	return func(*http.Request) string { return normalized }
}

// RedirectPolicy decides whether a client can follow a multi-step redirect flow.
// Requests under an API prefix or carrying any AJAX header cannot.
type RedirectPolicy struct {
	APIPrefixes []string
	AJAXHeaders []string
}

// DefaultRedirectPolicy treats /api/ and /internal/ under basePath as
// programmatic and recognises the usual AJAX marker headers.
func DefaultRedirectPolicy(basePath string) RedirectPolicy {
	return RedirectPolicy{
		APIPrefixes: []string{
			urlutil.WithBasePath(basePath, "/api/"),
			urlutil.WithBasePath(basePath, "/internal/"),
		},
		AJAXHeaders: []string{"X-Requested-With", "Kbn-Xsrf", "Kbn-Version"},
	}
}

// CanRedirect reports whether r comes from an interactive client.
func (p RedirectPolicy) CanRedirect(r *http.Request) bool {
	if slices.ContainsFunc(p.APIPrefixes, func(prefix string) bool {
		return strings.HasPrefix(r.URL.Path, prefix)
	}) {
		return false
	}
	return !slices.ContainsFunc(p.AJAXHeaders, func(h string) bool {
		return r.Header.Get(h) != ""
	})
}

// Options configures a Provider.
type Options struct {
	// Realm is the backing store SAML realm. When empty, handshakes and
	// IdP-initiated logouts identify the realm by ACS URL instead.
	Realm string

	// PublicURL is the externally visible scheme://host[:port] of this server.
	PublicURL string

	BasePath BasePathFunc
	Redirect RedirectPolicy
	Backend  Backend
	Tokens   TokenService
}

// Provider authenticates requests against a SAML realm of the backing store.
type Provider struct {
	realm     string
	publicURL string
	basePath  BasePathFunc
	redirect  RedirectPolicy
	backend   Backend
	tokens    TokenService
}

// NewProvider validates opts and creates a Provider.
func NewProvider(opts Options) (*Provider, error) {
	if opts.Backend == nil {
		return nil, errors.New("saml: backend is required")
	}
	if opts.Tokens == nil {
		return nil, errors.New("saml: token service is required")
	}
	if opts.Realm == "" && opts.PublicURL == "" {
		return nil, errors.New("saml: either a realm or a public URL is required")
	}
	if opts.BasePath == nil {
		opts.BasePath = StaticBasePath("")
	}
	return &Provider{
		realm:     opts.Realm,
		publicURL: opts.PublicURL,
		basePath:  opts.BasePath,
		redirect:  opts.Redirect,
		backend:   opts.Backend,
		tokens:    opts.Tokens,
	}, nil
}

// Type returns the provider type name.
func (p *Provider) Type() string {
	return "saml"
}

func (p *Provider) path(r *http.Request, rel string) string {
	return urlutil.WithBasePath(p.basePath(r), rel)
}

// acsURL is the absolute assertion consumer service URL for r.
func (p *Provider) acsURL(r *http.Request) (string, error) {
	return urlutil.JoinPath(p.publicURL, p.basePath(r), ACSPath)
}

// realmOrACS fills exactly one of the realm/acs selectors.
func (p *Provider) realmOrACS(r *http.Request) (realm, acs string, err error) {
	if p.realm != "" {
		return p.realm, "", nil
	}
	acs, err = p.acsURL(r)
	return "", acs, err
}
