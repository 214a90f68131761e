package realtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chatwire/errors"
	"chatwire/services"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// stubAuthService returns canned results for the REST glue tests.
type stubAuthService struct {
	registerToken services.Token
	registerErr   error
	loginToken    services.Token
	loginErr      error
}

func (s stubAuthService) Register(string, string, string) (services.Token, error) {
	return s.registerToken, s.registerErr
}

func (s stubAuthService) Login(string, string) (services.Token, error) {
	return s.loginToken, s.loginErr
}

func newAuthServer(t *testing.T, service services.IAuthService) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	NewAuthHandler(logs.GetLoggerFromLevel(slog.LevelError), service).RegisterRoutes(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestAuthHandler_Register(t *testing.T) {
	t.Run("should answer 201 with a token", func(t *testing.T) {
		req := require.New(t)
		server := newAuthServer(t, stubAuthService{registerToken: "tok-123"})

		resp := postJSON(t, server.URL+"/api/register",
			`{"name":"Alice","email":"alice@example.com","password":"ComplexPass123!"}`)
		req.Equal(http.StatusCreated, resp.StatusCode)

		var payload tokenResponse
		req.NoError(json.NewDecoder(resp.Body).Decode(&payload))
		req.Equal("tok-123", payload.Token)
	})

	t.Run("should answer 409 for a duplicate account", func(t *testing.T) {
		req := require.New(t)
		server := newAuthServer(t, stubAuthService{registerErr: errors.ErrUserAlreadyExists})

		resp := postJSON(t, server.URL+"/api/register",
			`{"name":"Alice","email":"alice@example.com","password":"ComplexPass123!"}`)
		req.Equal(http.StatusConflict, resp.StatusCode)
	})

	t.Run("should answer 400 for a weak password", func(t *testing.T) {
		req := require.New(t)
		server := newAuthServer(t, stubAuthService{registerErr: errors.ErrInvalidPassword})

		resp := postJSON(t, server.URL+"/api/register",
			`{"name":"Alice","email":"alice@example.com","password":"weak"}`)
		req.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("should answer 400 for a broken body", func(t *testing.T) {
		req := require.New(t)
		server := newAuthServer(t, stubAuthService{})

		resp := postJSON(t, server.URL+"/api/register", `{broken`)
		req.Equal(http.StatusBadRequest, resp.StatusCode)
	})
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("should answer 200 with a token", func(t *testing.T) {
		req := require.New(t)
		server := newAuthServer(t, stubAuthService{loginToken: "tok-456"})

		resp := postJSON(t, server.URL+"/api/login",
			`{"email":"alice@example.com","password":"ComplexPass123!"}`)
		req.Equal(http.StatusOK, resp.StatusCode)

		var payload tokenResponse
		req.NoError(json.NewDecoder(resp.Body).Decode(&payload))
		req.Equal("tok-456", payload.Token)
	})

	t.Run("should answer 401 for bad credentials", func(t *testing.T) {
		req := require.New(t)
		server := newAuthServer(t, stubAuthService{loginErr: errors.ErrInvalidCredentials})

		resp := postJSON(t, server.URL+"/api/login",
			`{"email":"alice@example.com","password":"wrong"}`)
		req.Equal(http.StatusUnauthorized, resp.StatusCode)
	})
}
