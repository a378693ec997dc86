package server

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/dgellow/saml-front/internal/authcontext"
	jsonwriter "github.com/dgellow/saml-front/internal/json"
	"github.com/dgellow/saml-front/internal/log"
)

// NewUpstreamProxy forwards authenticated requests to the upstream
// application. The state cookie never leaves this server.
func NewUpstreamProxy(upstreamURL, stateCookie string) (http.Handler, error) {
	target, err := url.Parse(upstreamURL)
	if err != nil {
		return nil, fmt.Errorf("parsing upstream URL: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return nil, fmt.Errorf("upstream URL must be absolute: %q", upstreamURL)
	}

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			stripCookie(pr.Out, stateCookie)
			if user, ok := authcontext.GetUser(pr.In.Context()); ok {
				log.LogTraceWithFields("proxy", "Forwarding request", map[string]any{
					"user":       user.Username,
					"path":       pr.Out.URL.Path,
					"request_id": authcontext.GetRequestID(pr.In.Context()),
				})
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.LogErrorWithFields("proxy", "Upstream request failed", map[string]any{
				"error":      err.Error(),
				"path":       r.URL.Path,
				"request_id": authcontext.GetRequestID(r.Context()),
			})
			jsonwriter.WriteError(w, http.StatusBadGateway, "bad_gateway", "Upstream unavailable")
		},
	}, nil
}

// stripCookie removes the named cookie from the request's Cookie header
func stripCookie(r *http.Request, name string) {
	if name == "" || r.Header.Get("Cookie") == "" {
		return
	}
	var kept []string
	for _, c := range r.Cookies() {
		if c.Name != name {
			kept = append(kept, c.Name+"="+c.Value)
		}
	}
	r.Header.Del("Cookie")
	if len(kept) > 0 {
		r.Header.Set("Cookie", strings.Join(kept, "; "))
	}
}
