package repositories

import (
	"testing"

	"chatwire/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestUserRepository_CreateUser(t *testing.T) {
	t.Run("should create and fetch a user by id and email", func(t *testing.T) {
		req := require.New(t)
		repo := NewUserRepository(newTestDB(t))

		id, err := repo.CreateUser("Alice", "alice@example.com", "https://cdn/a.png", "hash")
		req.NoError(err)
		req.NotEmpty(id)

		byID, err := repo.GetUserByID(id)
		req.NoError(err)
		req.Equal("Alice", byID.Name)
		req.Equal("alice@example.com", byID.Email)
		req.Equal("hash", byID.PasswordHash)

		byEmail, err := repo.GetUserByEmail("alice@example.com")
		req.NoError(err)
		req.Equal(byID.ID, byEmail.ID)
	})

	t.Run("should refuse a duplicate email", func(t *testing.T) {
		req := require.New(t)
		repo := NewUserRepository(newTestDB(t))

		_, err := repo.CreateUser("Alice", "alice@example.com", "", "hash")
		req.NoError(err)

		_, err = repo.CreateUser("Impostor", "alice@example.com", "", "hash2")
		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestUserRepository_GetUser(t *testing.T) {
	req := require.New(t)
	repo := NewUserRepository(newTestDB(t))

	_, err := repo.GetUserByID("missing")
	req.ErrorIs(err, errors.ErrUserNotFound)

	_, err = repo.GetUserByEmail("missing@example.com")
	req.ErrorIs(err, errors.ErrUserNotFound)
}

func TestUser_Profile(t *testing.T) {
	req := require.New(t)

	user := User{ID: "u1", Name: "Alice", Email: "alice@example.com", PasswordHash: "secret"}
	profile := user.Profile()

	req.Equal("u1", profile.ID)
	req.Equal("Alice", profile.Name)
}
