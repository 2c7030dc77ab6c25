package service

import (
	"context"
	"strings"

	"bazaar/internal/auth"
	"bazaar/internal/models"
	"bazaar/internal/observability"
	"bazaar/internal/repository"
	"bazaar/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// TokenIssuer signs access tokens for a user.
type TokenIssuer interface {
	Issue(userID uint) (string, error)
}

// AuthService registers accounts and exchanges credentials for tokens.
type AuthService struct {
	users  repository.UserRepository
	tokens TokenIssuer
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Phone    string
}

// RegisterResult is returned after a successful registration.
type RegisterResult struct {
	User  *models.User
	Token string
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	User        *models.User
	AccessToken string
}

func NewAuthService(users repository.UserRepository, tokens TokenIssuer) *AuthService {
	return &AuthService{users: users, tokens: tokens}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	ctx, span := observability.StartSpan(ctx, "auth.register")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	username := validation.SanitizeText(in.Username)
	email := strings.ToLower(validation.SanitizeText(in.Email))
	phone := validation.SanitizeText(in.Phone)

	if !validation.IsValidEmail(email) {
		err = models.NewValidationError("Invalid email")
		return nil, err
	}
	if !validation.IsValidUsername(username) {
		err = models.NewValidationError("Username must be between 3 and 32 characters and must not contain @")
		return nil, err
	}
	if pwErr := validation.ValidatePassword(in.Password); pwErr != nil {
		err = models.NewValidationError(capitalize(pwErr.Error()))
		return nil, err
	}
	if !validation.IsValidPhone(phone) {
		err = models.NewValidationError("Phone must be between 7 and 32 characters")
		return nil, err
	}

	if err = s.ensureAvailable(ctx, username, email, phone); err != nil {
		return nil, err
	}

	hashed, hashErr := auth.HashPassword(in.Password)
	if hashErr != nil {
		err = models.NewInternalError(hashErr)
		return nil, err
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: hashed,
		Phone:    phone,
		Role:     models.RoleClient,
	}
	if err = s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("user.id", int(user.ID)))

	token, tokErr := s.tokens.Issue(user.ID)
	if tokErr != nil {
		err = models.NewInternalError(tokErr)
		return nil, err
	}
	return &RegisterResult{User: user, Token: token}, nil
}

// ensureAvailable rejects registrations whose email, phone or username is
// already taken.
func (s *AuthService) ensureAvailable(ctx context.Context, username, email, phone string) error {
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if existing == nil {
		if existing, err = s.users.GetByPhone(ctx, phone); err != nil {
			return err
		}
	}
	if existing != nil {
		return models.NewConflictError("User already exists")
	}

	taken, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return err
	}
	if taken != nil {
		return models.NewConflictError("Username already taken")
	}
	return nil
}

// Login verifies the password of the user named by identifier, a username
// or an email address. Every failure yields the same error.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	ctx, span := observability.StartSpan(ctx, "auth.login")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	invalid := models.NewUnauthorizedError("Invalid credentials")

	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		auth.BurnPasswordCheck(password)
		err = invalid
		return nil, err
	}

	user, lookupErr := s.users.FindByLogin(ctx, identifier)
	if lookupErr != nil {
		err = lookupErr
		return nil, err
	}
	if user == nil {
		auth.BurnPasswordCheck(password)
		err = invalid
		return nil, err
	}
	if !auth.CheckPassword(user.Password, password) {
		err = invalid
		return nil, err
	}

	token, tokErr := s.tokens.Issue(user.ID)
	if tokErr != nil {
		err = models.NewInternalError(tokErr)
		return nil, err
	}
	return &LoginResult{User: user, AccessToken: token}, nil
}

// Me returns the caller's full record. The password hash never leaves the
// model serialization.
func (s *AuthService) Me(ctx context.Context, userID uint) (*models.User, error) {
	return s.users.GetByID(ctx, userID)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
