// api/models/user.go
package models

import "time"

// SignupRequest and LoginRequest are the dashboard account payloads.
type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// User is a dashboard account, distinct from the anonymous visitor identity
// tracked by the collector.
type User struct {
	ID             int       `json:"id"`
	Email          string    `json:"email"`
	HashedPassword []byte    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
