package cookie

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dgellow/saml-front/internal/envutil"
	"github.com/dgellow/saml-front/internal/log"
)

// DefaultStateCookie is the cookie holding the encrypted provider state
const DefaultStateCookie = "sid"

// Jar writes cookies scoped to one name and path
type Jar struct {
	Name string
	Path string

	// SameSite defaults to None: the identity provider posts its response
	// to the assertion consumer service from another site.
	SameSite http.SameSite
}

// New returns a SameSite=None Jar for name under the mounted base path
func New(name, basePath string) Jar {
	if name == "" {
		name = DefaultStateCookie
	}
	if basePath == "" {
		basePath = "/"
	}
	return Jar{Name: name, Path: basePath, SameSite: http.SameSiteNoneMode}
}

// ParseSameSite maps "none", "lax" and "strict" to their modes. Empty means none.
func ParseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return http.SameSiteNoneMode, nil
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	default:
		return 0, fmt.Errorf("invalid SameSite mode %q: must be none, lax or strict", s)
	}
}

func sameSiteName(mode http.SameSite) string {
	switch mode {
	case http.SameSiteNoneMode:
		return "None"
	case http.SameSiteLaxMode:
		return "Lax"
	case http.SameSiteStrictMode:
		return "Strict"
	default:
		return "Default"
	}
}

// attributes returns the Secure flag and SameSite mode for the current
// environment. Browsers drop SameSite=None cookies that are not Secure, so
// development over plain HTTP falls back to Lax.
func (j Jar) attributes() (bool, http.SameSite) {
	secure := !envutil.IsDev()
	mode := j.SameSite
	if mode == 0 {
		mode = http.SameSiteNoneMode
	}
	if mode == http.SameSiteNoneMode && !secure {
		mode = http.SameSiteLaxMode
	}
	return secure, mode
}

// Set stores value as an HttpOnly cookie
func (j Jar) Set(w http.ResponseWriter, value string, maxAge time.Duration) {
	secure, mode := j.attributes()
	http.SetCookie(w, &http.Cookie{
		Name:     j.Name,
		Value:    value,
		Path:     j.Path,
		HttpOnly: true,
		Secure:   secure,
		SameSite: mode,
		MaxAge:   int(maxAge.Seconds()),
	})

	log.LogTraceWithFields("cookie", "Cookie set", map[string]any{
		"name":     j.Name,
		"maxAge":   maxAge.String(),
		"secure":   secure,
		"sameSite": sameSiteName(mode),
	})
}

// Clear removes the cookie by setting MaxAge to -1
func (j Jar) Clear(w http.ResponseWriter) {
	secure, mode := j.attributes()
	http.SetCookie(w, &http.Cookie{
		Name:     j.Name,
		Value:    "",
		Path:     j.Path,
		HttpOnly: true,
		Secure:   secure,
		SameSite: mode,
		MaxAge:   -1,
	})
	log.LogTraceWithFields("cookie", "Cookie cleared", map[string]any{"name": j.Name})
}

// Get retrieves the cookie value from the request
func (j Jar) Get(r *http.Request) (string, error) {
	c, err := r.Cookie(j.Name)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}
