package testutil

import (
	"context"
	"net/http"
	"time"

	"github.com/dgellow/saml-front/internal/saml"
	"github.com/dgellow/saml-front/internal/storage"
	"github.com/stretchr/testify/mock"
)

// MockBackend is a mock implementation of saml.Backend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) CallAsInternalUser(ctx context.Context, op string, body any, out any) error {
	args := m.Called(ctx, op, body, out)
	return args.Error(0)
}

func (m *MockBackend) AuthenticateUser(ctx context.Context, authorization string) (*saml.User, error) {
	args := m.Called(ctx, authorization)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*saml.User), args.Error(1)
}

// MockProvider is a mock of the provider operations driven by the HTTP layer
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Authenticate(ctx context.Context, r *http.Request, state *saml.State) saml.AuthenticationResult {
	args := m.Called(ctx, r, state)
	return args.Get(0).(saml.AuthenticationResult)
}

func (m *MockProvider) Login(ctx context.Context, r *http.Request, attempt saml.LoginAttempt, state *saml.State) saml.AuthenticationResult {
	args := m.Called(ctx, r, attempt, state)
	return args.Get(0).(saml.AuthenticationResult)
}

func (m *MockProvider) Logout(ctx context.Context, r *http.Request, state *saml.State) saml.DeauthenticationResult {
	args := m.Called(ctx, r, state)
	return args.Get(0).(saml.DeauthenticationResult)
}

// MockTokenService is a mock implementation of saml.TokenService
type MockTokenService struct {
	mock.Mock
}

func (m *MockTokenService) Refresh(ctx context.Context, refreshToken string) (*saml.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*saml.TokenPair), args.Error(1)
}

func (m *MockTokenService) Invalidate(ctx context.Context, pair saml.TokenPair) error {
	args := m.Called(ctx, pair)
	return args.Error(0)
}

func (m *MockTokenService) IsAccessTokenExpiredError(err error) bool {
	args := m.Called(err)
	return args.Bool(0)
}

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) UpsertUser(ctx context.Context, username, realm string) error {
	args := m.Called(ctx, username, realm)
	return args.Error(0)
}

func (m *MockStorage) GetAllUsers(ctx context.Context) ([]storage.TrackedUser, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.TrackedUser), args.Error(1)
}

func (m *MockStorage) RecordLogout(ctx context.Context, username, realm string) error {
	args := m.Called(ctx, username, realm)
	return args.Error(0)
}

func (m *MockStorage) PruneUsers(ctx context.Context, before time.Time) (int, error) {
	args := m.Called(ctx, before)
	return args.Int(0), args.Error(1)
}

func (m *MockStorage) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockEncryptor is a mock implementation of crypto.Encryptor
type MockEncryptor struct {
	mock.Mock
}

func (m *MockEncryptor) Encrypt(plaintext string) (string, error) {
	args := m.Called(plaintext)
	return args.String(0), args.Error(1)
}

func (m *MockEncryptor) Decrypt(ciphertext string) (string, error) {
	args := m.Called(ciphertext)
	return args.String(0), args.Error(1)
}
