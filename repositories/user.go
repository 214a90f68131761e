//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"errors"
	"time"

	apperrors "chatwire/errors"

	"chatwire/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IUserRepository interface {
	CreateUser(name, email, avatarURL, passwordHash string) (string, error)
	GetUserByID(id string) (User, error)
	GetUserByEmail(email string) (User, error)
}

// User is the repository-level account record. The messaging core only
// ever reads the display fields, exposed through Profile.
type User struct {
	ID           string
	Name         string
	Email        string
	AvatarURL    string
	PasswordHash string
	CreatedAt    time.Time
}

// Profile strips the credential fields for delivery to other users.
func (u User) Profile() domain.User {
	return domain.User{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
	}
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// diskUser is the stored shape of a User.
type diskUser struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	AvatarURL    string    `json:"avatarUrl"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

func userKey(id string) []byte {
	return []byte("user:" + id)
}

// emailKey indexes users by email so registration can enforce
// uniqueness and login can resolve credentials.
func emailKey(email string) []byte {
	return []byte("useremail:" + email)
}

// CreateUser persists a new account and returns its generated id.
// The email index is written in the same transaction, so two concurrent
// registrations for one email cannot both commit.
func (u *UserRepository) CreateUser(name, email, avatarURL, passwordHash string) (string, error) {
	newID := uuid.NewString()
	record := diskUser{
		ID:           newID,
		Name:         name,
		Email:        email,
		AvatarURL:    avatarURL,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	data, err := json.Marshal(record)
	if err != nil {
		return "", err
	}

	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(emailKey(email)); err == nil {
			return apperrors.ErrUserAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(userKey(newID), data); err != nil {
			return err
		}
		return txn.Set(emailKey(email), []byte(newID))
	})
	if err != nil {
		return "", err
	}
	return newID, nil
}

func (u *UserRepository) GetUserByID(id string) (User, error) {
	var record diskUser

	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return User{}, apperrors.ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return toUser(record), nil
}

func (u *UserRepository) GetUserByEmail(email string) (User, error) {
	var id string

	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(emailKey(email))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return User{}, apperrors.ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u.GetUserByID(id)
}

func toUser(record diskUser) User {
	return User{
		ID:           record.ID,
		Name:         record.Name,
		Email:        record.Email,
		AvatarURL:    record.AvatarURL,
		PasswordHash: record.PasswordHash,
		CreatedAt:    record.CreatedAt,
	}
}
