// Package service implements account management: registration, login,
// administration and statistics. Authorization that depends on the
// acting user (self-or-admin rules, self-targeting guards) lives here;
// route-level role gates live in the router.
package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"meridian/internal/audit"
	"meridian/internal/notify"
	"meridian/internal/user/device"
	usermetrics "meridian/internal/user/metrics"
	"meridian/internal/user/models"
	"meridian/pkg/domain"
	dErrors "meridian/pkg/domain-errors"
	"meridian/pkg/platform/middleware/auth"
	"meridian/pkg/platform/privacy"
	"meridian/pkg/platform/sentinel"
	"meridian/pkg/platform/tracer"
	"meridian/pkg/requestcontext"
	"meridian/pkg/secrets"
)

// recentSignupWindow bounds the "recent registrations" statistic.
const recentSignupWindow = 30 * 24 * time.Hour

// Store is the account persistence the service depends on.
type Store interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, userID domain.UserID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	Update(ctx context.Context, u *models.User) error
	Delete(ctx context.Context, userID domain.UserID) error
	List(ctx context.Context, filter models.ListFilter) ([]*models.User, int, error)
	Count(ctx context.Context) (int, error)
	CountActive(ctx context.Context) (int, error)
	CountVerified(ctx context.Context) (int, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
}

// TokenIssuer mints access tokens for authenticated users.
type TokenIssuer interface {
	Issue(ctx context.Context, userID domain.UserID, email, role string) (string, time.Time, error)
}

// AuditPublisher records lifecycle events off the request path.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event)
}

// Notifier delivers user-facing messages asynchronously.
type Notifier interface {
	Enqueue(ctx context.Context, msg notify.Message)
}

// Service orchestrates account lifecycle and authentication.
type Service struct {
	users      Store
	tokens     TokenIssuer
	logger     *slog.Logger
	audit      AuditPublisher
	notifier   Notifier
	metrics    *usermetrics.Metrics
	tracer     tracer.Tracer
	bcryptCost int
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func WithNotifier(notifier Notifier) Option {
	return func(s *Service) {
		s.notifier = notifier
	}
}

func WithMetrics(m *usermetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithBcryptCost overrides the password hashing cost. Values outside
// bcrypt's range fall back to the library default.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		s.bcryptCost = cost
	}
}

func New(users Store, tokens TokenIssuer, opts ...Option) *Service {
	s := &Service{users: users, tokens: tokens, tracer: tracer.NewNoop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account from a self-service signup. New accounts
// always start as active regular users; a welcome notification is
// queued without blocking the response.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.User, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "registration request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if err := s.ensureIdentifiersFree(ctx, req.Email, req.Username); err != nil {
		return nil, err
	}

	hashed, err := secrets.Hash(req.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	u := &models.User{
		ID:             domain.NewUserID(),
		Email:          req.Email,
		Username:       req.Username,
		HashedPassword: hashed,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Role:           models.RoleUser,
		IsActive:       true,
		PhoneNumber:    req.PhoneNumber,
		Bio:            req.Bio,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.createUser(ctx, u); err != nil {
		return nil, err
	}

	s.welcome(ctx, u)
	s.logAudit(ctx, audit.NewEvent(ctx, audit.EventUserRegistered, u.ID.String(), u.ID.String(), map[string]any{
		"email":    u.Email,
		"username": u.Username,
	}))
	s.incrementRegistrations()

	return u, nil
}

// Create adds an account on behalf of an administrator, with full
// control over role and account flags. No welcome notification is sent;
// provisioning is not a signup.
func (s *Service) Create(ctx context.Context, actor auth.Principal, req *models.CreateUserRequest) (*models.User, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "create request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if err := s.ensureIdentifiersFree(ctx, req.Email, req.Username); err != nil {
		return nil, err
	}

	hashed, err := secrets.Hash(req.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	now := requestcontext.Now(ctx)
	u := &models.User{
		ID:             domain.NewUserID(),
		Email:          req.Email,
		Username:       req.Username,
		HashedPassword: hashed,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Role:           req.Role,
		IsActive:       active,
		IsSuperuser:    req.IsSuperuser,
		IsVerified:     req.IsVerified,
		PhoneNumber:    req.PhoneNumber,
		Bio:            req.Bio,
		AvatarURL:      req.AvatarURL,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.createUser(ctx, u); err != nil {
		return nil, err
	}

	s.logAudit(ctx, audit.NewEvent(ctx, audit.EventUserCreated, actor.UserID.String(), u.ID.String(), map[string]any{
		"email": u.Email,
		"role":  string(u.Role),
	}))
	s.incrementRegistrations()

	return u, nil
}

// Login verifies credentials and issues an access token. Unknown email
// and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.TokenResponse, error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "login request is required")
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.recordLogin(usermetrics.LoginInvalidCredentials)
			return nil, dErrors.New(dErrors.CodeUnauthorized, "Invalid email or password")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}

	if err := secrets.Verify(req.Password, u.HashedPassword); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			s.recordLogin(usermetrics.LoginInvalidCredentials)
			return nil, dErrors.New(dErrors.CodeUnauthorized, "Invalid email or password")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify credentials")
	}

	if !u.IsActive {
		s.recordLogin(usermetrics.LoginDeactivated)
		return nil, dErrors.New(dErrors.CodeUnauthorized, "Account is deactivated")
	}

	now := requestcontext.Now(ctx)
	last := now
	u.LastLoginAt = &last
	u.UpdatedAt = now
	if err := s.users.Update(ctx, u); err != nil {
		// Last-login bookkeeping must not block the login itself.
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to record last login",
				"user_id", u.ID.String(), "error", err)
		}
	}

	token, expiresAt, err := s.tokens.Issue(ctx, u.ID, u.Email, effectiveRole(u))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue access token")
	}

	deviceName := device.DisplayName(requestcontext.UserAgent(ctx))
	s.logAudit(ctx, audit.NewEvent(ctx, audit.EventUserLoggedIn, u.ID.String(), u.ID.String(), map[string]any{
		"device": deviceName,
		"ip":     privacy.AnonymizeIP(requestcontext.ClientIP(ctx)),
	}))
	s.recordLogin(usermetrics.LoginSuccess)

	return &models.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(expiresAt.Sub(now).Seconds()),
		Device:      deviceName,
		User:        models.ToResponse(u),
	}, nil
}

// Get loads one account. Regular users may only read themselves.
func (s *Service) Get(ctx context.Context, actor auth.Principal, userID domain.UserID) (*models.User, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user ID is required")
	}
	if actor.UserID != userID && !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "Not enough permissions")
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, wrapUserErr(err, "failed to load user")
	}
	return u, nil
}

// List returns one page of accounts and the total match count.
func (s *Service) List(ctx context.Context, filter models.ListFilter) ([]*models.User, int, error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanUserList,
		tracer.Int("page", filter.Page),
		tracer.Int("size", filter.Size),
	)
	users, total, err := s.users.List(ctx, filter)
	span.End(err)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}
	return users, total, nil
}

// Update applies a partial update. Role and account flags may only be
// changed by administrators; everyone else is limited to their own
// profile fields.
func (s *Service) Update(ctx context.Context, actor auth.Principal, userID domain.UserID, req *models.UpdateUserRequest) (*models.User, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user ID is required")
	}
	if req == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "update request is required")
	}
	if actor.UserID != userID && !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "Not enough permissions")
	}
	if (req.Role != nil || req.IsActive != nil || req.IsVerified != nil) && !actor.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "Not enough permissions")
	}

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, wrapUserErr(err, "failed to load user")
	}
	if req.Empty() {
		return u, nil
	}

	fields := make([]string, 0, 4)
	if req.Email != nil && *req.Email != u.Email {
		if _, err := s.users.GetByEmail(ctx, *req.Email); err == nil {
			return nil, dErrors.New(dErrors.CodeConflict, "Email already registered")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check email")
		}
		u.Email = *req.Email
		fields = append(fields, "email")
	}
	if req.Username != nil && *req.Username != u.Username {
		if _, err := s.users.GetByUsername(ctx, *req.Username); err == nil {
			return nil, dErrors.New(dErrors.CodeConflict, "Username already taken")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check username")
		}
		u.Username = *req.Username
		fields = append(fields, "username")
	}
	if req.Password != nil {
		hashed, err := secrets.Hash(*req.Password, s.bcryptCost)
		if err != nil {
			return nil, err
		}
		u.HashedPassword = hashed
		fields = append(fields, "password")
	}
	if req.FirstName != nil {
		u.FirstName = *req.FirstName
		fields = append(fields, "first_name")
	}
	if req.LastName != nil {
		u.LastName = *req.LastName
		fields = append(fields, "last_name")
	}
	if req.PhoneNumber != nil {
		u.PhoneNumber = *req.PhoneNumber
		fields = append(fields, "phone_number")
	}
	if req.Bio != nil {
		u.Bio = *req.Bio
		fields = append(fields, "bio")
	}
	if req.AvatarURL != nil {
		u.AvatarURL = *req.AvatarURL
		fields = append(fields, "avatar_url")
	}
	if req.Role != nil {
		u.Role = *req.Role
		fields = append(fields, "role")
	}
	if req.IsActive != nil {
		u.IsActive = *req.IsActive
		fields = append(fields, "is_active")
	}
	if req.IsVerified != nil {
		u.IsVerified = *req.IsVerified
		fields = append(fields, "is_verified")
	}

	u.UpdatedAt = requestcontext.Now(ctx)
	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "Email or username already registered")
		}
		return nil, wrapUserErr(err, "failed to update user")
	}

	s.logAudit(ctx, audit.NewEvent(ctx, audit.EventUserUpdated, actor.UserID.String(), u.ID.String(), map[string]any{
		"fields": fields,
	}))

	return u, nil
}

// Deactivate disables an account without removing it. Administrators
// cannot deactivate themselves.
func (s *Service) Deactivate(ctx context.Context, actor auth.Principal, userID domain.UserID) (*models.User, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "user ID is required")
	}
	if actor.UserID == userID {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Cannot deactivate your own account")
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, wrapUserErr(err, "failed to load user")
	}
	if !u.IsActive {
		return u, nil
	}

	u.IsActive = false
	u.UpdatedAt = requestcontext.Now(ctx)
	if err := s.users.Update(ctx, u); err != nil {
		return nil, wrapUserErr(err, "failed to deactivate user")
	}

	s.logAudit(ctx, audit.NewEvent(ctx, audit.EventUserDeactivated, actor.UserID.String(), u.ID.String(), nil))
	s.incrementDeactivations()

	return u, nil
}

// Delete permanently removes an account. Administrators cannot delete
// themselves.
func (s *Service) Delete(ctx context.Context, actor auth.Principal, userID domain.UserID) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeBadRequest, "user ID is required")
	}
	if actor.UserID == userID {
		return dErrors.New(dErrors.CodeBadRequest, "Cannot delete your own account")
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return wrapUserErr(err, "failed to delete user")
	}

	s.logAudit(ctx, audit.NewEvent(ctx, audit.EventUserDeleted, actor.UserID.String(), userID.String(), nil))
	s.incrementDeletions()

	return nil
}

// Stats aggregates account counts. The four counts run concurrently;
// the first failing query cancels the rest.
func (s *Service) Stats(ctx context.Context) (*models.StatsResponse, error) {
	since := requestcontext.Now(ctx).Add(-recentSignupWindow)

	var total, active, verified, recent int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = s.users.Count(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		active, err = s.users.CountActive(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		verified, err = s.users.CountVerified(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = s.users.CountCreatedSince(gctx, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user stats")
	}

	rate := 0.0
	if total > 0 {
		rate = math.Round(float64(verified)/float64(total)*100*100) / 100
	}

	return &models.StatsResponse{
		TotalUsers:          total,
		ActiveUsers:         active,
		InactiveUsers:       total - active,
		VerifiedUsers:       verified,
		RecentRegistrations: recent,
		VerificationRate:    rate,
	}, nil
}

func (s *Service) createUser(ctx context.Context, u *models.User) error {
	ctx, span := s.tracer.Start(ctx, tracer.SpanUserCreate,
		tracer.String("role", string(u.Role)),
	)
	err := s.users.Create(ctx, u)
	span.End(err)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost the race between the pre-check and the insert.
			return dErrors.New(dErrors.CodeConflict, "Email or username already registered")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}
	return nil
}

func (s *Service) ensureIdentifiersFree(ctx context.Context, email, username string) error {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return dErrors.New(dErrors.CodeConflict, "Email already registered")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check email")
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return dErrors.New(dErrors.CodeConflict, "Username already taken")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check username")
	}
	return nil
}

func (s *Service) welcome(ctx context.Context, u *models.User) {
	if s.notifier == nil {
		return
	}
	s.notifier.Enqueue(ctx, notify.Welcome(u.Email, u.FullName()))
}

func (s *Service) logAudit(ctx context.Context, event audit.Event) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, string(event.Type),
			"event", string(event.Type),
			"actor", event.Actor,
			"subject", event.Subject,
			"request_id", event.RequestID,
			"log_type", "audit",
		)
	}
	if s.audit != nil {
		s.audit.Emit(ctx, event)
	}
}

func (s *Service) recordLogin(outcome string) {
	if s.metrics != nil {
		s.metrics.RecordLogin(outcome)
	}
}

func (s *Service) incrementRegistrations() {
	if s.metrics != nil {
		s.metrics.Registrations.Inc()
	}
}

func (s *Service) incrementDeactivations() {
	if s.metrics != nil {
		s.metrics.Deactivations.Inc()
	}
}

func (s *Service) incrementDeletions() {
	if s.metrics != nil {
		s.metrics.Deletions.Inc()
	}
}

// effectiveRole is the authorization role carried in the access token.
// Superusers act as administrators regardless of their display role.
func effectiveRole(u *models.User) string {
	if u.IsAdmin() {
		return string(models.RoleAdmin)
	}
	return string(u.Role)
}

func wrapUserErr(err error, action string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "User not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, action)
}
