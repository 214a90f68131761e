package auth

import (
	"fmt"

	apperrors "chatwire/errors"

	"chatwire/repositories"
)

// Resolver turns the opaque credential presented at connection time
// into a verified user record, or fails. A failed resolution must leave
// no trace: the caller rejects the connection before any session or
// presence state exists.
type Resolver struct {
	tokens *TokenManager
	users  repositories.IUserRepository
}

func NewResolver(tokens *TokenManager, users repositories.IUserRepository) *Resolver {
	return &Resolver{tokens: tokens, users: users}
}

// Resolve validates the token and loads the account it names. Every
// failure collapses into ErrAuthenticationFailed so the client cannot
// distinguish a bad signature from a deleted account.
func (r *Resolver) Resolve(token string) (repositories.User, error) {
	if token == "" {
		return repositories.User{}, apperrors.ErrAuthenticationFailed
	}
	claims, err := r.tokens.Validate(token)
	if err != nil {
		return repositories.User{}, fmt.Errorf("%w: %v", apperrors.ErrAuthenticationFailed, err)
	}
	user, err := r.users.GetUserByID(claims.UserID)
	if err != nil {
		return repositories.User{}, fmt.Errorf("%w: unknown subject", apperrors.ErrAuthenticationFailed)
	}
	return user, nil
}
