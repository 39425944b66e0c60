package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// OrgRole is a user's role within the organization. Roles gate destructive
// console actions; in particular only owners and admins may manage legal
// holds.
type OrgRole string

const (
	// RoleOwner is the organization owner.
	RoleOwner OrgRole = "owner"
	// RoleAdmin is an organization administrator.
	RoleAdmin OrgRole = "admin"
	// RoleMember is a regular member with read/restore access.
	RoleMember OrgRole = "member"
)

// Valid reports whether the role is one of the known org roles.
func (r OrgRole) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	}
	return false
}

// CanManageLegalHolds reports whether the role may place or remove legal
// holds. Holds gate deletion only, so members keep full restore access.
func (r OrgRole) CanManageLegalHolds() bool {
	return r == RoleOwner || r == RoleAdmin
}

// User represents a console user.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"` // Never send password hash in JSON
	Role         OrgRole   `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser creates a new user with a hashed password.
func NewUser(username, email, password string, role OrgRole, bcryptCost int) (*User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &User{
		ID:           uuid.New(),
		Username:     strings.TrimSpace(username),
		Email:        strings.TrimSpace(email),
		PasswordHash: string(hashedPassword),
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// LoginRequest is the request body for console login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response body for a successful login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	User        *User  `json:"user"`
}
