// internal/models/user.go
package models

import "github.com/google/uuid"

// User is an account. Password holds the argon2id hash once stored and is
// never serialized.
type User struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
	Email    string    `json:"email,omitempty"`
	Password string    `json:"-"`
}
