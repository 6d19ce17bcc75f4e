// Package users is the credential and identity service: registration, login,
// token verification and the per-request active check.
package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/restamate/pos-server/internal/app/domain/user"
	"github.com/restamate/pos-server/internal/app/storage"
	svcerr "github.com/restamate/pos-server/internal/errors"
	"github.com/restamate/pos-server/internal/logging"
)

// Service manages actor identities and bearer tokens.
type Service struct {
	store  storage.UserStore
	log    *logging.Logger
	secret []byte
	ttl    time.Duration
}

// New constructs a user service. secret signs bearer tokens; ttl bounds their
// validity.
func New(store storage.UserStore, log *logging.Logger, secret string, ttl time.Duration) *Service {
	if log == nil {
		log = logging.NewDefault("users")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{store: store, log: log, secret: []byte(secret), ttl: ttl}
}

// RegisterRequest carries a new account's fields.
type RegisterRequest struct {
	Username string    `json:"username"`
	Password string    `json:"password"`
	Role     user.Role `json:"role"`
}

// Register creates an account. Owner only. Fails with a conflict when the
// username is taken.
func (s *Service) Register(ctx context.Context, actor user.User, req RegisterRequest) (user.User, error) {
	if !user.Allowed(actor.Role, user.OpManageUsers) {
		return user.User{}, svcerr.Forbidden("role not permitted to manage users")
	}
	return s.create(ctx, req)
}

func (s *Service) create(ctx context.Context, req RegisterRequest) (user.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return user.User{}, svcerr.Validation("username is required")
	}
	if len(req.Password) < 6 {
		return user.User{}, svcerr.Validation("password must be at least 6 characters")
	}
	if !req.Role.Valid() {
		return user.User{}, svcerr.Validation("unknown role")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, svcerr.Internal("failed to hash password", err)
	}

	created, err := s.store.CreateUser(ctx, user.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         req.Role,
		Active:       true,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return user.User{}, svcerr.Conflict("username already taken")
		}
		return user.User{}, svcerr.Internal("failed to create user", err)
	}
	s.log.WithContext(ctx).Infof("user %s registered with role %s", created.Username, created.Role)
	return created, nil
}

// Login verifies credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (user.User, string, error) {
	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, "", svcerr.Unauthorized("invalid credentials")
		}
		return user.User{}, "", svcerr.Internal("failed to load user", err)
	}
	if !u.Active {
		return user.User{}, "", svcerr.Unauthorized("account is deactivated")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return user.User{}, "", svcerr.Unauthorized("invalid credentials")
	}

	token, err := s.issueToken(u)
	if err != nil {
		return user.User{}, "", svcerr.Internal("failed to issue token", err)
	}
	return u, token, nil
}

// VerifyToken parses a bearer token and re-fetches its user, rejecting
// unknown and inactive accounts. Called on every authenticated request.
func (s *Service) VerifyToken(ctx context.Context, token string) (user.User, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return user.User{}, svcerr.Unauthorized("invalid token")
	}

	u, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, svcerr.Unauthorized("unknown user")
		}
		return user.User{}, svcerr.Internal("failed to load user", err)
	}
	if !u.Active {
		return user.User{}, svcerr.Unauthorized("account is deactivated")
	}
	return u, nil
}

// Get returns a user by id.
func (s *Service) Get(ctx context.Context, id string) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return user.User{}, svcerr.NotFound("user not found")
		}
		return user.User{}, svcerr.Internal("failed to load user", err)
	}
	return u, nil
}

// Deactivate disables an account. Owner only. The next request carrying the
// account's token fails the active check.
func (s *Service) Deactivate(ctx context.Context, actor user.User, id string) error {
	if !user.Allowed(actor.Role, user.OpManageUsers) {
		return svcerr.Forbidden("role not permitted to manage users")
	}
	u, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	u.Active = false
	if _, err := s.store.UpdateUser(ctx, u); err != nil {
		return svcerr.Internal("failed to deactivate user", err)
	}
	s.log.WithContext(ctx).Infof("user %s deactivated", id)
	return nil
}

// EnsureOwner seeds the bootstrap OWNER account when the store holds no
// users yet. Password may be empty, in which case nothing is seeded.
func (s *Service) EnsureOwner(ctx context.Context, username, password string) error {
	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return err
	}
	if count > 0 || password == "" {
		return nil
	}
	_, err = s.create(ctx, RegisterRequest{Username: username, Password: password, Role: user.RoleOwner})
	if err != nil {
		return err
	}
	s.log.Warnf("seeded bootstrap owner account %q; change its password", username)
	return nil
}
