package services

import (
	"fmt"

	apperrors "chatwire/errors"

	"chatwire/auth"
	"chatwire/repositories"
)

// IAuthService issues session tokens. It exists next to the messaging
// core as the credential collaborator: the websocket layer only ever
// sees the opaque tokens minted here.
type IAuthService interface {
	Register(name, email, password string) (Token, error)
	Login(email, password string) (Token, error)
}

type Token string

type AuthService struct {
	users  repositories.IUserRepository
	tokens *auth.TokenManager
}

func NewAuthService(users repositories.IUserRepository, tokens *auth.TokenManager) IAuthService {
	return &AuthService{users: users, tokens: tokens}
}

func (s *AuthService) Register(name, email, password string) (Token, error) {
	request := auth.RegisterRequest{
		Name:     name,
		Email:    email,
		Password: password,
	}
	// Business rules first, before any expensive hashing.
	if err := auth.ValidateRegister(request); err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrInvalidPassword, err)
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.users.CreateUser(name, email, "", hashedPassword)
	if err != nil {
		return "", err
	}

	token, err := s.tokens.Generate(userID)
	if err != nil {
		return "", apperrors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) Login(email, password string) (Token, error) {
	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		// One generic error prevents user enumeration.
		return "", apperrors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", apperrors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return "", apperrors.ErrTokenGeneration
	}
	return Token(token), nil
}
