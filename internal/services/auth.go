package services

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ticketer/internal/clock"
	"ticketer/internal/models"
	"ticketer/internal/utils"
)

// dummyHash is verified against when the username does not exist so that
// unknown users and wrong passwords take the same time.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=2$c29tZXNhbHRzb21lc2FsdA$RdescudvJCsgt3ub+b+dWRWJTmaaJObG0+YD6oqN6ns"

// LoginResult is returned by a successful login
type LoginResult struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// AuthService manages operator accounts and their credentials
type AuthService struct {
	users    UserRepository
	tokens   CredentialIssuer
	clock    clock.Clock
	validate *validator.Validate
	logger   *logrus.Logger

	hashPassword   func(password string) (string, error)
	verifyPassword func(password, hash string) (bool, error)
}

// NewAuthService creates a new authentication service
func NewAuthService(users UserRepository, tokens CredentialIssuer, clk clock.Clock, logger *logrus.Logger) *AuthService {
	if clk == nil {
		clk = clock.NewSystem()
	}

	return &AuthService{
		users:          users,
		tokens:         tokens,
		clock:          clk,
		validate:       NewValidator(),
		logger:         logger,
		hashPassword:   utils.HashPassword,
		verifyPassword: utils.VerifyPassword,
	}
}

// Register creates a new operator account
func (s *AuthService) Register(ctx context.Context, req *models.UserCreateRequest) (*models.User, error) {
	if req == nil {
		return nil, &models.ValidationError{Err: errors.New("empty request")}
	}

	req.Normalize()
	if err := validateStruct(ctx, s.validate, req); err != nil {
		return nil, err
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: hash,
		CreatedAt:    s.clock.Now(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, models.ErrDuplicateEntry) {
			return nil, err
		}
		return nil, &models.InfrastructureError{Op: "create user", Err: err}
	}

	s.logger.WithContext(ctx).WithField("username", user.Username).Info("user registered")

	return user, nil
}

// Login checks the credentials and issues a bearer token. A wrong
// username or password yields ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, req *models.LoginRequest) (*LoginResult, error) {
	if req == nil {
		return nil, &models.ValidationError{Err: errors.New("empty request")}
	}

	req.Normalize()
	if err := validateStruct(ctx, s.validate, req); err != nil {
		return nil, err
	}

	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if !errors.Is(err, models.ErrUserNotFound) {
			return nil, &models.InfrastructureError{Op: "get user", Err: err}
		}
		_, _ = s.verifyPassword(req.Password, dummyHash)
		return nil, models.ErrUnauthorized
	}

	ok, err := s.verifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("username", user.Username).Error("stored password hash is unreadable")
		return nil, models.ErrUnauthorized
	}
	if !ok {
		return nil, models.ErrUnauthorized
	}

	token, err := s.tokens.IssueCredential(user.ID)
	if err != nil {
		return nil, err
	}

	return &LoginResult{User: user, Token: token}, nil
}

// ListUsers returns all operator accounts
func (s *AuthService) ListUsers(ctx context.Context) ([]*models.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, &models.InfrastructureError{Op: "list users", Err: err}
	}
	if users == nil {
		users = []*models.User{}
	}
	return users, nil
}

// VerifyCredential returns the user id carried by a bearer token
func (s *AuthService) VerifyCredential(token string) (string, error) {
	return s.tokens.VerifyCredential(token)
}
