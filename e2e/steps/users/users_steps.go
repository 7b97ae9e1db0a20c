// Package users covers registration, login, profile, and the admin
// account operations.
package users

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the suite context these steps need.
type TestContext interface {
	Do(method, path string, body any, token string) error
	ResponseField(field string) (any, error)
	ResponseStringField(field string) (string, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	UniqueEmail(prefix string) string
	UniqueUsername(prefix string) string
	GetUserEmail() string
	SetUserEmail(email string)
	GetUserID() string
	SetUserID(id string)
	GetAccessToken() string
	SetAccessToken(token string)
	GetAdminToken() string
	SetAdminToken(token string)
}

// Credentials for the suite-owned accounts.
type Credentials struct {
	Password      string
	AdminEmail    string
	AdminPassword string
}

// RegisterSteps wires the user account step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext, creds Credentials) {
	steps := &userSteps{tc: tc, creds: creds}

	ctx.Step(`^I register a user with a unique email prefixed "([^"]*)"$`, steps.registerUnique)
	ctx.Step(`^I register the same email again$`, steps.registerSameEmailAgain)
	ctx.Step(`^I register a user with the invalid email "([^"]*)"$`, steps.registerWithEmail)
	ctx.Step(`^I log in with the registered email$`, steps.loginRegistered)
	ctx.Step(`^I log in as the seeded admin$`, steps.loginSeededAdmin)
	ctx.Step(`^I fetch my profile$`, steps.fetchProfile)
	ctx.Step(`^the response field "([^"]*)" should equal the registered email$`, steps.fieldEqualsRegisteredEmail)
	ctx.Step(`^I fetch the registered user as admin$`, steps.fetchRegisteredAsAdmin)
	ctx.Step(`^I delete the registered user as admin$`, steps.deleteRegisteredAsAdmin)
	ctx.Step(`^I list users with my token$`, steps.listUsersWithOwnToken)
	ctx.Step(`^I list users as admin with page (\d+) and size (\d+)$`, steps.listUsersAsAdmin)
}

type userSteps struct {
	tc    TestContext
	creds Credentials
}

func (s *userSteps) registerUnique(ctx context.Context, prefix string) error {
	email := s.tc.UniqueEmail(prefix)
	body := map[string]any{
		"email":    email,
		"username": s.tc.UniqueUsername(prefix),
		"password": s.creds.Password,
	}
	if err := s.tc.Do(http.MethodPost, "/api/v1/users/register", body, ""); err != nil {
		return err
	}

	s.tc.SetUserEmail(email)
	if s.tc.GetLastResponseStatus() == http.StatusCreated {
		id, err := s.tc.ResponseStringField("id")
		if err != nil {
			return err
		}
		s.tc.SetUserID(id)
	}
	return nil
}

func (s *userSteps) registerWithEmail(ctx context.Context, email string) error {
	body := map[string]any{
		"email":    email,
		"username": s.tc.UniqueUsername("invalid"),
		"password": s.creds.Password,
	}
	return s.tc.Do(http.MethodPost, "/api/v1/users/register", body, "")
}

func (s *userSteps) registerSameEmailAgain(ctx context.Context) error {
	body := map[string]any{
		"email":    s.tc.GetUserEmail(),
		"username": s.tc.UniqueUsername("other"),
		"password": s.creds.Password,
	}
	return s.tc.Do(http.MethodPost, "/api/v1/users/register", body, "")
}

func (s *userSteps) loginRegistered(ctx context.Context) error {
	token, err := s.login(s.tc.GetUserEmail(), s.creds.Password)
	if err != nil {
		return err
	}
	s.tc.SetAccessToken(token)
	return nil
}

func (s *userSteps) loginSeededAdmin(ctx context.Context) error {
	token, err := s.login(s.creds.AdminEmail, s.creds.AdminPassword)
	if err != nil {
		return err
	}
	s.tc.SetAdminToken(token)
	return nil
}

func (s *userSteps) login(email, password string) (string, error) {
	body := map[string]any{"email": email, "password": password}
	if err := s.tc.Do(http.MethodPost, "/api/v1/users/login", body, ""); err != nil {
		return "", err
	}
	if status := s.tc.GetLastResponseStatus(); status != http.StatusOK {
		return "", fmt.Errorf("login for %s returned %d: %s",
			email, status, s.tc.GetLastResponseBody())
	}
	return s.tc.ResponseStringField("access_token")
}

func (s *userSteps) fetchProfile(ctx context.Context) error {
	return s.tc.Do(http.MethodGet, "/api/v1/users/me", nil, s.tc.GetAccessToken())
}

func (s *userSteps) fieldEqualsRegisteredEmail(ctx context.Context, field string) error {
	got, err := s.tc.ResponseStringField(field)
	if err != nil {
		return err
	}
	if want := s.tc.GetUserEmail(); got != want {
		return fmt.Errorf("field %q is %q, expected %q", field, got, want)
	}
	return nil
}

func (s *userSteps) fetchRegisteredAsAdmin(ctx context.Context) error {
	return s.tc.Do(http.MethodGet, "/api/v1/users/"+s.tc.GetUserID(), nil, s.tc.GetAdminToken())
}

func (s *userSteps) deleteRegisteredAsAdmin(ctx context.Context) error {
	return s.tc.Do(http.MethodDelete, "/api/v1/users/"+s.tc.GetUserID(), nil, s.tc.GetAdminToken())
}

func (s *userSteps) listUsersWithOwnToken(ctx context.Context) error {
	return s.tc.Do(http.MethodGet, "/api/v1/users", nil, s.tc.GetAccessToken())
}

func (s *userSteps) listUsersAsAdmin(ctx context.Context, page, size int) error {
	path := fmt.Sprintf("/api/v1/users?page=%d&size=%d", page, size)
	return s.tc.Do(http.MethodGet, path, nil, s.tc.GetAdminToken())
}
