package models

import "time"

// UserResponse is the public view of an account. The password hash is
// deliberately absent.
type UserResponse struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	FirstName   string     `json:"first_name,omitempty"`
	LastName    string     `json:"last_name,omitempty"`
	FullName    string     `json:"full_name"`
	Role        Role       `json:"role"`
	IsActive    bool       `json:"is_active"`
	IsSuperuser bool       `json:"is_superuser"`
	IsVerified  bool       `json:"is_verified"`
	PhoneNumber string     `json:"phone_number,omitempty"`
	Bio         string     `json:"bio,omitempty"`
	AvatarURL   string     `json:"avatar_url,omitempty"`
	LastLoginAt *time.Time `json:"last_login,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ToResponse maps an account to its public view.
func ToResponse(u *User) UserResponse {
	return UserResponse{
		ID:          u.ID.String(),
		Email:       u.Email,
		Username:    u.Username,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		FullName:    u.FullName(),
		Role:        u.Role,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		IsVerified:  u.IsVerified,
		PhoneNumber: u.PhoneNumber,
		Bio:         u.Bio,
		AvatarURL:   u.AvatarURL,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

// UserListResponse is one page of accounts plus pagination metadata.
type UserListResponse struct {
	Items      []UserResponse `json:"items"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	Size       int            `json:"size"`
	TotalPages int            `json:"total_pages"`
}

// ToListResponse maps a page of accounts and its pre-pagination total.
func ToListResponse(users []*User, total int, filter ListFilter) UserListResponse {
	items := make([]UserResponse, 0, len(users))
	for _, u := range users {
		items = append(items, ToResponse(u))
	}
	return UserListResponse{
		Items:      items,
		Total:      total,
		Page:       filter.Page,
		Size:       filter.Size,
		TotalPages: Pages(total, filter.Size),
	}
}

// TokenResponse is returned from a successful login.
type TokenResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresIn   int          `json:"expires_in"`
	Device      string       `json:"device,omitempty"`
	User        UserResponse `json:"user"`
}

// StatsResponse summarizes the account base for the admin dashboard.
type StatsResponse struct {
	TotalUsers          int     `json:"total_users"`
	ActiveUsers         int     `json:"active_users"`
	InactiveUsers       int     `json:"inactive_users"`
	VerifiedUsers       int     `json:"verified_users"`
	RecentRegistrations int     `json:"recent_registrations"`
	VerificationRate    float64 `json:"verification_rate"`
}
