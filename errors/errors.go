package errors

import "fmt"

var (
	ErrAuthenticationFailed = fmt.Errorf("authentication failed")
	ErrInvalidCredentials   = fmt.Errorf("invalid credentials")
	ErrInvalidPassword      = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration      = fmt.Errorf("token generation failed")
	ErrUserAlreadyExists    = fmt.Errorf("user already exists")
	ErrUserNotFound         = fmt.Errorf("user not found")

	ErrEmptyParticipant = fmt.Errorf("participant id is empty")
	ErrSameParticipant  = fmt.Errorf("a conversation requires two distinct participants")
	ErrMalformedPairKey = fmt.Errorf("malformed conversation pair key")

	ErrConversationNotFound = fmt.Errorf("conversation not found")

	ErrEmptyMessage   = fmt.Errorf("message carries no text nor media")
	ErrSenderMismatch = fmt.Errorf("sender does not match the session identity")
)
