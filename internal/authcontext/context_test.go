package authcontext

import (
	"context"
	"testing"

	"github.com/dgellow/saml-front/internal/saml"
	"github.com/stretchr/testify/assert"
)

func TestWithUserAndGetUser(t *testing.T) {
	t.Run("set and retrieve user", func(t *testing.T) {
		user := &saml.User{Username: "alice", AuthenticationRealm: saml.Realm{Name: "saml1"}}
		ctx := WithUser(context.Background(), user)

		got, ok := GetUser(ctx)
		assert.True(t, ok)
		assert.Same(t, user, got)
	})

	t.Run("get user when not set", func(t *testing.T) {
		got, ok := GetUser(context.Background())
		assert.False(t, ok)
		assert.Nil(t, got)
	})

	t.Run("nil user is not a user", func(t *testing.T) {
		_, ok := GetUser(WithUser(context.Background(), nil))
		assert.False(t, ok)
	})

	t.Run("overwrite existing user", func(t *testing.T) {
		ctx := WithUser(context.Background(), &saml.User{Username: "alice"})
		ctx = WithUser(ctx, &saml.User{Username: "bob"})

		got, ok := GetUser(ctx)
		assert.True(t, ok)
		assert.Equal(t, "bob", got.Username)
	})
}

func TestRequestID(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))

	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
}
