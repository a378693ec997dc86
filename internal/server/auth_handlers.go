package server

import (
	"context"
	"html/template"
	"net/http"

	"github.com/dgellow/saml-front/internal/authcontext"
	jsonwriter "github.com/dgellow/saml-front/internal/json"
	"github.com/dgellow/saml-front/internal/log"
	"github.com/dgellow/saml-front/internal/saml"
	"github.com/dgellow/saml-front/internal/storage"
	"github.com/dgellow/saml-front/internal/urlutil"
)

// maxLoginFormBytes bounds the ACS form body. Signed and encrypted
// assertions are typically well under 1MiB.
const maxLoginFormBytes = 2 << 20

// UserResolver resolves the user behind an Authorization header value
type UserResolver interface {
	AuthenticateUser(ctx context.Context, authorization string) (*saml.User, error)
}

// AuthHandlers serves the SAML login and logout endpoints and the session pages
type AuthHandlers struct {
	provider Provider
	states   StateStore
	storage  storage.Storage
	users    UserResolver
	name     string
	basePath string
}

// NewAuthHandlers creates new auth handlers with dependency injection
func NewAuthHandlers(
	provider Provider,
	states StateStore,
	storage storage.Storage,
	users UserResolver,
	name string,
	basePath string,
) *AuthHandlers {
	return &AuthHandlers{
		provider: provider,
		states:   states,
		storage:  storage,
		users:    users,
		name:     name,
		basePath: urlutil.NormalizeBasePath(basePath),
	}
}

func (h *AuthHandlers) path(p string) string {
	return urlutil.WithBasePath(h.basePath, p)
}

// LoginHandler consumes the identity provider's SAMLResponse (assertion consumer service)
func (h *AuthHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonwriter.WriteMethodNotAllowed(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxLoginFormBytes)
	if err := r.ParseForm(); err != nil {
		log.LogDebugWithFields("auth", "Failed to parse login form", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteBadRequest(w, "Invalid form data")
		return
	}

	ctx := r.Context()
	state := loadState(w, r, h.states)
	attempt := saml.LoginAttempt{SAMLResponse: r.PostForm.Get("SAMLResponse")}

	res := h.provider.Login(ctx, r, attempt, state)
	log.LogDebugWithFields("auth", "Login result", map[string]any{
		"result":     saml.Kind(res),
		"request_id": authcontext.GetRequestID(ctx),
	})

	switch res := res.(type) {
	case saml.Redirected:
		if !saveState(w, r, h.states, res.State) {
			return
		}
		http.Redirect(w, r, res.URL, http.StatusFound)
	case saml.Succeeded:
		if !saveState(w, r, h.states, res.State) {
			return
		}
		trackUser(ctx, h.storage, res.User)
		http.Redirect(w, r, h.path("/"), http.StatusFound)
	case saml.Failed:
		writeFailure(w, r, res)
	case saml.NotHandled:
		jsonwriter.WriteUnauthorized(w, "Unauthorized")
	default:
		jsonwriter.WriteInternalServerError(w, "Internal Server Error")
	}
}

// LogoutHandler ends the session, either at the user's request or on behalf
// of the identity provider (SAMLRequest in the query). The state cookie is
// cleared on every outcome except failure.
func (h *AuthHandlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonwriter.WriteMethodNotAllowed(w)
		return
	}

	ctx := r.Context()
	state := loadState(w, r, h.states)

	// Resolve before logging out, the tokens are gone afterwards
	user := h.resolveUser(ctx, state)

	res := h.provider.Logout(ctx, r, state)
	switch res := res.(type) {
	case saml.LogoutRedirected:
		h.states.Clear(w)
		h.recordLogout(ctx, user)
		http.Redirect(w, r, res.URL, http.StatusFound)
	case saml.LogoutNotHandled:
		h.states.Clear(w)
		http.Redirect(w, r, h.path(saml.LoggedOutPath), http.StatusFound)
	case saml.LogoutFailed:
		writeFailure(w, r, saml.Failed{Err: res.Err})
	default:
		jsonwriter.WriteInternalServerError(w, "Internal Server Error")
	}
}

func (h *AuthHandlers) resolveUser(ctx context.Context, state *saml.State) *saml.User {
	if h.users == nil || state == nil || state.AccessToken == "" {
		return nil
	}
	user, err := h.users.AuthenticateUser(ctx, "Bearer "+state.AccessToken)
	if err != nil {
		log.LogTraceWithFields("auth", "Could not resolve user before logout", map[string]any{
			"error": err.Error(),
		})
		return nil
	}
	return user
}

func (h *AuthHandlers) recordLogout(ctx context.Context, user *saml.User) {
	if h.storage == nil || user == nil {
		return
	}
	if err := h.storage.RecordLogout(ctx, user.Username, user.AuthenticationRealm.Name); err != nil {
		log.LogWarnWithFields("auth", "Failed to record logout", map[string]any{
			"user":  user.Username,
			"error": err.Error(),
		})
		return
	}
	log.LogInfoWithFields("auth", "User logged out", map[string]any{
		"user":  user.Username,
		"realm": user.AuthenticationRealm.Name,
	})
}

// LoggedOutHandler renders the logged out notice
func (h *AuthHandlers) LoggedOutHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonwriter.WriteMethodNotAllowed(w)
		return
	}
	h.render(w, loggedOutPageTemplate, LoggedOutPageData{
		Name:     h.name,
		LoginURL: h.path("/"),
	})
}

// OverwrittenSessionHandler tells the user a new login replaced their previous session
func (h *AuthHandlers) OverwrittenSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonwriter.WriteMethodNotAllowed(w)
		return
	}
	data := OverwrittenSessionPageData{
		Name:        h.name,
		ContinueURL: h.path("/"),
	}
	if user, ok := authcontext.GetUser(r.Context()); ok {
		data.Username = user.Username
	}
	h.render(w, overwrittenSessionPageTemplate, data)
}

func (h *AuthHandlers) render(w http.ResponseWriter, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := tmpl.Execute(w, data); err != nil {
		log.LogError("Failed to render page: %v", err)
	}
}

// MeHandler returns the authenticated user
func (h *AuthHandlers) MeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonwriter.WriteMethodNotAllowed(w)
		return
	}
	user, ok := authcontext.GetUser(r.Context())
	if !ok {
		jsonwriter.WriteUnauthorized(w, "Unauthorized")
		return
	}
	_ = jsonwriter.Write(w, user)
}

// UsersHandler lists the users seen by this server
func (h *AuthHandlers) UsersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonwriter.WriteMethodNotAllowed(w)
		return
	}
	if h.storage == nil {
		jsonwriter.WriteNotFound(w, "User tracking is disabled")
		return
	}

	users, err := h.storage.GetAllUsers(r.Context())
	if err != nil {
		log.LogErrorWithFields("auth", "Failed to list users", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteInternalServerError(w, "Failed to list users")
		return
	}
	_ = jsonwriter.Write(w, map[string]any{"users": users})
}
