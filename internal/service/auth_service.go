package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/RishiVykunta/e-commerce/internal/auth"
	"github.com/RishiVykunta/e-commerce/internal/models"
	"github.com/RishiVykunta/e-commerce/internal/store"
	"github.com/RishiVykunta/e-commerce/internal/util"

	"go.uber.org/zap"
)

const minPasswordLength = 6

// UserRepository is the account persistence auth needs.
type UserRepository interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// AuthService registers users, logs them in and resolves bearer tokens
type AuthService struct {
	users  UserRepository
	tokens *auth.TokenIssuer
	logger *zap.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(users UserRepository, tokens *auth.TokenIssuer) *AuthService {
	return &AuthService{users: users, tokens: tokens, logger: util.GetLogger()}
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user account with the default role
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Register")
	defer span.End()

	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	if name == "" || email == "" || req.Password == "" {
		return nil, invalidf("Please provide all required fields")
	}
	if !strings.Contains(email, "@") {
		return nil, invalidf("Please provide a valid email")
	}
	if len(req.Password) < minPasswordLength {
		return nil, invalidf("Password must be at least %d characters", minPasswordLength)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, newError(ErrConflict, "User already exists")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", zap.Int64("user_id", user.ID))
	return s.respond(user)
}

// Login checks credentials and issues a token
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Login")
	defer span.End()

	email := normalizeEmail(req.Email)
	if email == "" || req.Password == "" {
		return nil, invalidf("Please provide email and password")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, newError(ErrUnauthorized, "Invalid credentials")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		return nil, newError(ErrUnauthorized, "Invalid credentials")
	}

	return s.respond(user)
}

func (s *AuthService) respond(user *models.User) (*AuthResponse, error) {
	token, err := s.tokens.Issue(user.ID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{Token: token, User: user}, nil
}

// Authenticate resolves a bearer token to the current state of its user
func (s *AuthService) Authenticate(ctx context.Context, token string) (models.Caller, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return models.Caller{}, newError(ErrUnauthorized, "Not authorized, token failed")
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Caller{}, newError(ErrUnauthorized, "User not found")
		}
		return models.Caller{}, fmt.Errorf("failed to load user: %w", err)
	}

	return models.Caller{ID: user.ID, Email: user.Email, Name: user.Name, Role: user.Role}, nil
}

// Me returns the caller's account
func (s *AuthService) Me(ctx context.Context, caller models.Caller) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, caller.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFoundf("User not found")
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}
