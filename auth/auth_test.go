package auth

import (
	"testing"
	"time"

	"chatwire/errors"
	"chatwire/mocks"
	"chatwire/repositories"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestHashPassword(t *testing.T) {
	t.Run("should verify the original password and reject others", func(t *testing.T) {
		req := require.New(t)

		hash, err := HashPassword("CorrectHorse42!")
		req.NoError(err)
		req.Contains(hash, "$argon2id$")

		match, err := ComparePassword("CorrectHorse42!", hash)
		req.NoError(err)
		req.True(match)

		match, err = ComparePassword("WrongHorse42!", hash)
		req.NoError(err)
		req.False(match)
	})

	t.Run("should produce distinct hashes for the same password", func(t *testing.T) {
		req := require.New(t)

		first, err := HashPassword("CorrectHorse42!")
		req.NoError(err)
		second, err := HashPassword("CorrectHorse42!")
		req.NoError(err)

		req.NotEqual(first, second)
	})

	t.Run("should reject a malformed stored hash", func(t *testing.T) {
		req := require.New(t)

		_, err := ComparePassword("anything", "not-a-hash")
		req.Error(err)
	})
}

func TestTokenManager(t *testing.T) {
	t.Run("should round-trip the user id through a token", func(t *testing.T) {
		req := require.New(t)
		manager := NewTokenManager("test-secret", time.Hour)

		token, err := manager.Generate("user-123")
		req.NoError(err)
		req.NotEmpty(token)

		claims, err := manager.Validate(token)
		req.NoError(err)
		req.Equal("user-123", claims.UserID)
	})

	t.Run("should reject a token signed with another secret", func(t *testing.T) {
		req := require.New(t)

		token, err := NewTokenManager("secret-a", time.Hour).Generate("user-123")
		req.NoError(err)

		_, err = NewTokenManager("secret-b", time.Hour).Validate(token)
		req.Error(err)
	})

	t.Run("should reject an expired token", func(t *testing.T) {
		req := require.New(t)
		manager := NewTokenManager("test-secret", -time.Minute)

		token, err := manager.Generate("user-123")
		req.NoError(err)

		_, err = manager.Validate(token)
		req.Error(err)
	})
}

func TestValidateRegister(t *testing.T) {
	tests := []struct {
		name    string
		request RegisterRequest
		wantErr bool
	}{
		{
			name:    "valid request",
			request: RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "ComplexPass123!"},
			wantErr: false,
		},
		{
			name:    "missing name",
			request: RegisterRequest{Email: "alice@example.com", Password: "ComplexPass123!"},
			wantErr: true,
		},
		{
			name:    "invalid email",
			request: RegisterRequest{Name: "Alice", Email: "not-an-email", Password: "ComplexPass123!"},
			wantErr: true,
		},
		{
			name:    "too short",
			request: RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "Short1!"},
			wantErr: true,
		},
		{
			name:    "no uppercase",
			request: RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "complexpass123!"},
			wantErr: true,
		},
		{
			name:    "no special character",
			request: RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "ComplexPass1234"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			err := ValidateRegister(tt.request)
			if tt.wantErr {
				req.Error(err)
				return
			}
			req.NoError(err)
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	manager := NewTokenManager("test-secret", time.Hour)
	resolver := NewResolver(manager, mockRepo)

	t.Run("should resolve a valid token into its user", func(t *testing.T) {
		req := require.New(t)

		token, err := manager.Generate("user-123")
		req.NoError(err)

		mockRepo.EXPECT().
			GetUserByID("user-123").
			Return(repositories.User{ID: "user-123", Name: "Alice"}, nil).
			Times(1)

		user, err := resolver.Resolve(token)
		req.NoError(err)
		req.Equal("Alice", user.Name)
	})

	t.Run("should fail on an empty token", func(t *testing.T) {
		req := require.New(t)

		_, err := resolver.Resolve("")
		req.ErrorIs(err, errors.ErrAuthenticationFailed)
	})

	t.Run("should fail on a garbage token", func(t *testing.T) {
		req := require.New(t)

		_, err := resolver.Resolve("not.a.token")
		req.ErrorIs(err, errors.ErrAuthenticationFailed)
	})

	t.Run("should fail when the subject no longer exists", func(t *testing.T) {
		req := require.New(t)

		token, err := manager.Generate("ghost")
		req.NoError(err)

		mockRepo.EXPECT().
			GetUserByID("ghost").
			Return(repositories.User{}, errors.ErrUserNotFound).
			Times(1)

		_, err = resolver.Resolve(token)
		req.ErrorIs(err, errors.ErrAuthenticationFailed)
	})
}
