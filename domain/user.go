package domain

// User holds the display identity of an account. The record itself is
// owned by the account subsystem; the messaging core only reads it.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatarUrl"`
}
