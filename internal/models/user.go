package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a row in the PostgreSQL users table.
type User struct {
	ID             uuid.UUID `json:"id"`
	Username       string    `json:"username"`
	PasswordHash   string    `json:"-"` // never serialize
	IsVerified     bool      `json:"is_verified"`
	IsActive       bool      `json:"is_active"`
	IsAdmin        bool      `json:"is_admin"`
	HasPremiumTier bool      `json:"has_premium_tier"`
	CreatedAt      time.Time `json:"created_at"`
}

// RegisterRequest is the JSON body for POST /access/register-user.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required"`
}

// Token is the response of POST /access/get-access-token.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// UserFlags holds the optional flag updates an admin may apply.
// A nil field means "leave unchanged".
type UserFlags struct {
	IsVerified     *bool `json:"is_verified,omitempty"`
	IsActive       *bool `json:"is_active,omitempty"`
	IsAdmin        *bool `json:"is_admin,omitempty"`
	HasPremiumTier *bool `json:"has_premium_tier,omitempty"`
}

// Empty reports whether no flag is set.
func (f UserFlags) Empty() bool {
	return f.IsVerified == nil && f.IsActive == nil && f.IsAdmin == nil && f.HasPremiumTier == nil
}

// UserFlagsRequest is the JSON body for POST /admin/set-user-flags.
type UserFlagsRequest struct {
	Username string    `json:"username" validate:"required,email"`
	Flags    UserFlags `json:"flags"`
}
