// Package sessionstate persists the SAML provider state in an encrypted cookie.
package sessionstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dgellow/saml-front/internal/cookie"
	"github.com/dgellow/saml-front/internal/crypto"
	"github.com/dgellow/saml-front/internal/log"
	"github.com/dgellow/saml-front/internal/saml"
)

// DefaultTTL bounds how long a state cookie is accepted
const DefaultTTL = 8 * time.Hour

// ErrExpired is returned by Load when the envelope is past its expiry
var ErrExpired = errors.New("session state expired")

// envelope is the data stored in the encrypted cookie
type envelope struct {
	State   saml.State `json:"state"`
	Expires time.Time  `json:"expires"`
}

func (e envelope) isExpired(now time.Time) bool {
	return !now.Before(e.Expires)
}

// Store reads and writes provider state for a request
type Store struct {
	jar       cookie.Jar
	encryptor crypto.Encryptor
	ttl       time.Duration
	now       func() time.Time
}

// NewStore creates a Store writing cookies through jar
func NewStore(jar cookie.Jar, encryptor crypto.Encryptor, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		jar:       jar,
		encryptor: encryptor,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Load returns the state carried by r. A missing cookie yields nil without
// error; an expired or undecryptable cookie yields nil and an error the
// caller is expected to log before clearing the cookie.
func (s *Store) Load(r *http.Request) (*saml.State, error) {
	value, err := s.jar.Get(r)
	if err != nil {
		return nil, nil
	}

	decrypted, err := s.encryptor.Decrypt(value)
	if err != nil {
		return nil, fmt.Errorf("decrypting session state: %w", err)
	}

	var env envelope
	if err := json.Unmarshal([]byte(decrypted), &env); err != nil {
		return nil, fmt.Errorf("decoding session state: %w", err)
	}
	if env.isExpired(s.now()) {
		return nil, ErrExpired
	}

	state := env.State
	if state.IsEmpty() {
		return nil, nil
	}
	return &state, nil
}

// Save replaces the stored state. A nil or empty state clears the cookie.
func (s *Store) Save(w http.ResponseWriter, state *saml.State) error {
	if state.IsEmpty() {
		s.Clear(w)
		return nil
	}

	data, err := json.Marshal(envelope{
		State:   *state,
		Expires: s.now().Add(s.ttl),
	})
	if err != nil {
		return fmt.Errorf("encoding session state: %w", err)
	}

	encrypted, err := s.encryptor.Encrypt(string(data))
	if err != nil {
		return fmt.Errorf("encrypting session state: %w", err)
	}

	s.jar.Set(w, encrypted, s.ttl)
	log.LogTraceWithFields("sessionstate", "Session state saved", map[string]any{
		"authenticated": state.AccessToken != "",
		"handshake":     state.HasHandshake(),
	})
	return nil
}

// Clear removes the state cookie
func (s *Store) Clear(w http.ResponseWriter) {
	s.jar.Clear(w)
}
