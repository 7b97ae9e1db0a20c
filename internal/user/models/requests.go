package models

import (
	"strings"

	dErrors "meridian/pkg/domain-errors"
	s "meridian/pkg/string"
	"meridian/pkg/validation"
)

// RegisterRequest is the self-service signup payload. Role and the
// account flags are not client-controlled here.
type RegisterRequest struct {
	Email       string `json:"email" validate:"required,email,max=255"`
	Username    string `json:"username" validate:"required,min=3,max=100"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	FirstName   string `json:"first_name" validate:"max=100"`
	LastName    string `json:"last_name" validate:"max=100"`
	PhoneNumber string `json:"phone_number" validate:"max=20"`
	Bio         string `json:"bio" validate:"max=500"`
}

func (r *RegisterRequest) Normalize() {
	if r == nil {
		return
	}
	s.TrimStrings(&r.Email, &r.Username, &r.FirstName, &r.LastName, &r.PhoneNumber, &r.Bio)
	r.Email = strings.ToLower(r.Email)
}

func (r *RegisterRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}

// CreateUserRequest is the admin creation payload: registration fields
// plus role and account flags.
type CreateUserRequest struct {
	Email       string `json:"email" validate:"required,email,max=255"`
	Username    string `json:"username" validate:"required,min=3,max=100"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	FirstName   string `json:"first_name" validate:"max=100"`
	LastName    string `json:"last_name" validate:"max=100"`
	Role        Role   `json:"role" validate:"omitempty,oneof=admin user manager"`
	IsActive    *bool  `json:"is_active,omitempty"`
	IsSuperuser bool   `json:"is_superuser"`
	IsVerified  bool   `json:"is_verified"`
	PhoneNumber string `json:"phone_number" validate:"max=20"`
	Bio         string `json:"bio" validate:"max=500"`
	AvatarURL   string `json:"avatar_url" validate:"omitempty,url,max=2048"`
}

func (r *CreateUserRequest) Normalize() {
	if r == nil {
		return
	}
	s.TrimStrings(&r.Email, &r.Username, &r.FirstName, &r.LastName, &r.PhoneNumber, &r.Bio, &r.AvatarURL)
	r.Email = strings.ToLower(r.Email)
	if r.Role == "" {
		r.Role = RoleUser
	}
}

func (r *CreateUserRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}

// UpdateUserRequest carries a partial update. Nil fields are left
// untouched.
type UpdateUserRequest struct {
	Email       *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Username    *string `json:"username,omitempty" validate:"omitempty,min=3,max=100"`
	Password    *string `json:"password,omitempty" validate:"omitempty,min=8,max=128"`
	FirstName   *string `json:"first_name,omitempty" validate:"omitempty,max=100"`
	LastName    *string `json:"last_name,omitempty" validate:"omitempty,max=100"`
	Role        *Role   `json:"role,omitempty" validate:"omitempty,oneof=admin user manager"`
	IsActive    *bool   `json:"is_active,omitempty"`
	IsVerified  *bool   `json:"is_verified,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty" validate:"omitempty,max=20"`
	Bio         *string `json:"bio,omitempty" validate:"omitempty,max=500"`
	AvatarURL   *string `json:"avatar_url,omitempty" validate:"omitempty,url,max=2048"`
}

func (r *UpdateUserRequest) Normalize() {
	if r == nil {
		return
	}
	if r.Email != nil {
		trimmed := strings.ToLower(strings.TrimSpace(*r.Email))
		r.Email = &trimmed
	}
	for _, f := range []*string{r.Username, r.FirstName, r.LastName, r.PhoneNumber, r.Bio, r.AvatarURL} {
		if f != nil {
			s.TrimStrings(f)
		}
	}
}

func (r *UpdateUserRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}

// Empty reports whether the update carries no changes.
func (r *UpdateUserRequest) Empty() bool {
	return r.Email == nil && r.Username == nil && r.Password == nil &&
		r.FirstName == nil && r.LastName == nil && r.Role == nil &&
		r.IsActive == nil && r.IsVerified == nil && r.PhoneNumber == nil &&
		r.Bio == nil && r.AvatarURL == nil
}

// LoginRequest is the credential payload for token issuance.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (r *LoginRequest) Normalize() {
	if r == nil {
		return
	}
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
}

func (r *LoginRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request is required")
	}
	return validation.Validate(r)
}
