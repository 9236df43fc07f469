package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"educrm.io/ai-agent/internal/auth"
	"educrm.io/ai-agent/internal/crm"
	"educrm.io/ai-agent/internal/logger"
	"educrm.io/ai-agent/internal/store"
)

const (
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes and rejects it outright
	maxPasswordLength = 72
	maxUsernameLength = 50
)

type RegisterInput struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserPatch is a partial update of the caller's own account.
type UserPatch struct {
	Email    *string `json:"email,omitempty"`
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
}

type UserService struct {
	store  *store.Store
	jwt    *auth.JWT
	mirror *CRMMirror
	log    *logger.Logger
}

func NewUserService(st *store.Store, jwt *auth.JWT, mirror *CRMMirror, log *logger.Logger) *UserService {
	return &UserService{store: st, jwt: jwt, mirror: mirror, log: log.With("service", "UserService")}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*store.User, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	username, err := normalizeUsername(in.Username)
	if err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user, err := s.store.CreateUser(ctx, email, username, hash)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, fmt.Errorf("%w: email or username already registered", ErrConflict)
		}
		return nil, err
	}

	payload := toCRMUser(user)
	s.mirror.run("create_user", user.ID, func(ctx context.Context, g crm.Gateway) error {
		return g.CreateUser(ctx, payload)
	})
	s.log.Info("User registered", "user_id", user.ID)
	return user, nil
}

// Login checks the credentials and issues an access token. login is a username or an email.
func (s *UserService) Login(ctx context.Context, login, password string) (string, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return "", fmt.Errorf("%w: username and password are required", ErrInvalidArgument)
	}
	user, err := s.store.GetUserByLogin(ctx, login)
	if err != nil {
		return "", err
	}
	if user == nil || !auth.CheckPasswordHash(password, user.PasswordHash) {
		return "", fmt.Errorf("%w: incorrect username or password", ErrUnauthorized)
	}
	if !user.IsActive {
		return "", fmt.Errorf("%w: user is inactive", ErrForbidden)
	}
	token, err := s.jwt.Generate(user.ID)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Authenticate resolves a bearer token to an active user.
func (s *UserService) Authenticate(ctx context.Context, token string) (*store.User, error) {
	userID, err := s.jwt.Validate(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user no longer exists", ErrUnauthorized)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: user is inactive", ErrForbidden)
	}
	return user, nil
}

func (s *UserService) Get(ctx context.Context, id int64) (*store.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, skip, limit int) ([]store.User, error) {
	skip, limit, err := NormalizePage(skip, limit)
	if err != nil {
		return nil, err
	}
	return s.store.ListUsers(ctx, skip, limit)
}

func (s *UserService) Update(ctx context.Context, id int64, patch UserPatch) (*store.User, error) {
	var upd store.UserUpdate
	if patch.Email != nil {
		email, err := normalizeEmail(*patch.Email)
		if err != nil {
			return nil, err
		}
		upd.Email = &email
	}
	if patch.Username != nil {
		username, err := normalizeUsername(*patch.Username)
		if err != nil {
			return nil, err
		}
		upd.Username = &username
	}
	if patch.Password != nil {
		if err := validatePassword(*patch.Password); err != nil {
			return nil, err
		}
		hash, err := auth.HashPassword(*patch.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		upd.PasswordHash = &hash
	}

	user, err := s.store.UpdateUser(ctx, id, upd)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return nil, fmt.Errorf("%w: email or username already registered", ErrConflict)
	case errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, id)
	case err != nil:
		return nil, err
	}

	payload := toCRMUser(user)
	s.mirror.run("update_user", user.ID, func(ctx context.Context, g crm.Gateway) error {
		return g.UpdateUser(ctx, payload.ID, payload)
	})
	return user, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", fmt.Errorf("%w: a valid email is required", ErrInvalidArgument)
	}
	return email, nil
}

func normalizeUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	if username == "" || len(username) > maxUsernameLength {
		return "", fmt.Errorf("%w: username must be 1 to %d characters", ErrInvalidArgument, maxUsernameLength)
	}
	// Logins containing @ are resolved as email addresses.
	if strings.Contains(username, "@") {
		return "", fmt.Errorf("%w: username must not contain @", ErrInvalidArgument)
	}
	return username, nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidArgument, minPasswordLength)
	}
	if len(password) > maxPasswordLength {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrInvalidArgument, maxPasswordLength)
	}
	return nil
}

func toCRMUser(u *store.User) crm.UserPayload {
	return crm.UserPayload{ID: u.ID, Email: u.Email, Username: u.Username, IsActive: u.IsActive}
}
