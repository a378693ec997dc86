// Package saml implements the SAML authentication provider.
//
// The provider never parses SAML itself. Assertions, handshake preparation and
// single logout are delegated to the backing store's security API, and the
// resulting access/refresh token pair is kept in a per-session State that the
// caller persists between requests.
//
// All operations return closed result types instead of errors:
//
//	switch res := provider.Authenticate(ctx, r, state).(type) {
//	case saml.Succeeded:
//	case saml.Redirected:
//	case saml.Failed:
//	case saml.NotHandled:
//	}
//
// A Provider holds only immutable configuration and is safe for concurrent use.
package saml
