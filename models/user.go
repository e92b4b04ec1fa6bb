// api/models/user.go
package models

import "time"

// Dashboard accounts. These are the analysts logging into the funnel
// dashboard, not the end users whose events we track.

type SignupRequest struct {
	Email string `json:"email" binding:"required,email"`
	// bcrypt truncates past 72 bytes, so reject longer passwords up front.
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type User struct {
	ID             int       `json:"id"`
	Email          string    `json:"email"`
	HashedPassword []byte    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
