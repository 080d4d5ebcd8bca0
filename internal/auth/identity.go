package auth

import "fmt"

// Identity represents an authenticated caller for the duration of one
// request. It is constructed from validated token claims or from a fresh
// OAuth profile and is never persisted.
type Identity struct {
	UserID       int64  `json:"user_id"`
	Username     string `json:"username"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	AvatarURL    string `json:"avatar_url"`
	IsPrivileged bool   `json:"is_privileged"`
}

// String returns a short description suitable for logs. It deliberately
// omits email and avatar.
func (id *Identity) String() string {
	return fmt.Sprintf("Identity(username=%q, privileged=%t)", id.Username, id.IsPrivileged)
}
