package server

import (
	"context"
	"net/http"

	"github.com/dgellow/saml-front/internal/authcontext"
	jsonwriter "github.com/dgellow/saml-front/internal/json"
	"github.com/dgellow/saml-front/internal/log"
	"github.com/dgellow/saml-front/internal/saml"
	"github.com/dgellow/saml-front/internal/storage"
)

// Provider is the authentication provider driven by the HTTP layer
type Provider interface {
	Authenticate(ctx context.Context, r *http.Request, state *saml.State) saml.AuthenticationResult
	Login(ctx context.Context, r *http.Request, attempt saml.LoginAttempt, state *saml.State) saml.AuthenticationResult
	Logout(ctx context.Context, r *http.Request, state *saml.State) saml.DeauthenticationResult
}

// StateStore persists provider state between requests
type StateStore interface {
	Load(r *http.Request) (*saml.State, error)
	Save(w http.ResponseWriter, state *saml.State) error
	Clear(w http.ResponseWriter)
}

// loadState returns the request's provider state. Unreadable state is
// logged, cleared and treated as absent.
func loadState(w http.ResponseWriter, r *http.Request, states StateStore) *saml.State {
	state, err := states.Load(r)
	if err != nil {
		log.LogDebugWithFields("auth", "Discarding unreadable session state", map[string]any{
			"error":      err.Error(),
			"request_id": authcontext.GetRequestID(r.Context()),
		})
		states.Clear(w)
		return nil
	}
	return state
}

// saveState persists a state handed back by the provider. Nil means unchanged.
func saveState(w http.ResponseWriter, r *http.Request, states StateStore, state *saml.State) bool {
	if state == nil {
		return true
	}
	if err := states.Save(w, state); err != nil {
		log.LogErrorWithFields("auth", "Failed to persist session state", map[string]any{
			"error":      err.Error(),
			"request_id": authcontext.GetRequestID(r.Context()),
		})
		jsonwriter.WriteInternalServerError(w, "Failed to persist session")
		return false
	}
	return true
}

func writeFailure(w http.ResponseWriter, r *http.Request, res saml.Failed) {
	status := saml.StatusCode(res.Err)
	addHeaders(w.Header(), res.AuthResponseHeaders)

	fields := map[string]any{
		"status":     status,
		"path":       r.URL.Path,
		"request_id": authcontext.GetRequestID(r.Context()),
	}
	if res.Err != nil {
		fields["error"] = res.Err.Error()
	}
	if status >= http.StatusInternalServerError {
		log.LogErrorWithFields("auth", "Authentication failed", fields)
	} else {
		log.LogDebugWithFields("auth", "Authentication failed", fields)
	}

	message := http.StatusText(status)
	if status < http.StatusInternalServerError && res.Err != nil {
		message = res.Err.Error()
	}
	jsonwriter.WriteError(w, status, "", message)
}

// trackUser records the user as seen. Tracking never fails the request.
func trackUser(ctx context.Context, store storage.Storage, user *saml.User) {
	if store == nil || user == nil {
		return
	}
	if err := store.UpsertUser(ctx, user.Username, user.AuthenticationRealm.Name); err != nil {
		log.LogWarnWithFields("auth", "Failed to track user", map[string]any{
			"user":  user.Username,
			"realm": user.AuthenticationRealm.Name,
			"error": err.Error(),
		})
	}
}

// NewAuthMiddleware authenticates every request through provider. Succeeded
// requests continue with the user in the context and the provider's auth
// headers applied; everything else is answered here.
func NewAuthMiddleware(provider Provider, states StateStore, store storage.Storage) MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			state := loadState(w, r, states)

			res := provider.Authenticate(ctx, r, state)
			log.LogTraceWithFields("auth", "Authentication result", map[string]any{
				"result":     saml.Kind(res),
				"path":       r.URL.Path,
				"request_id": authcontext.GetRequestID(ctx),
			})

			switch res := res.(type) {
			case saml.Succeeded:
				if !saveState(w, r, states, res.State) {
					return
				}
				addHeaders(w.Header(), res.AuthResponseHeaders)
				replaceHeaders(r.Header, res.AuthHeaders)
				trackUser(ctx, store, res.User)
				next.ServeHTTP(w, r.WithContext(authcontext.WithUser(ctx, res.User)))
			case saml.Redirected:
				if !saveState(w, r, states, res.State) {
					return
				}
				http.Redirect(w, r, res.URL, http.StatusFound)
			case saml.Failed:
				writeFailure(w, r, res)
			case saml.NotHandled:
				jsonwriter.WriteUnauthorized(w, "Unauthorized")
			default:
				log.LogErrorWithFields("auth", "Unknown authentication result", map[string]any{
					"result": saml.Kind(res),
				})
				jsonwriter.WriteInternalServerError(w, "Internal Server Error")
			}
		})
	}
}
