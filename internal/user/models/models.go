// Package models defines the user account entity and its API request and
// response shapes.
package models

import (
	"time"

	"meridian/pkg/domain"
)

// Role is a user's authorization level.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleUser    Role = "user"
	RoleManager Role = "manager"
)

func (r Role) String() string { return string(r) }

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleManager:
		return true
	default:
		return false
	}
}

// User is an account record. HashedPassword stays inside the service and
// store layers; response mapping strips it.
type User struct {
	ID             domain.UserID
	Email          string
	Username       string
	HashedPassword string
	FirstName      string
	LastName       string
	Role           Role
	IsActive       bool
	IsSuperuser    bool
	IsVerified     bool
	PhoneNumber    string
	Bio            string
	AvatarURL      string
	LastLoginAt    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FullName is the display name: both name parts when present, otherwise
// whichever exists, otherwise the username, otherwise the email.
func (u *User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.LastName != "":
		return u.LastName
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}

// IsAdmin reports whether the user holds the admin role or the legacy
// superuser flag.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.IsSuperuser
}
