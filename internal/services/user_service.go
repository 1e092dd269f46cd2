package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"

	"github.com/jefmud/species-ident/internal/models"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 2

type UserService struct {
	users    UserStore
	tokens   *TokenIssuer
	hashCost int
}

func NewUserService(users UserStore, tokens *TokenIssuer) *UserService {
	return &UserService{users: users, tokens: tokens, hashCost: bcrypt.DefaultCost}
}

// SetHashCost overrides the bcrypt cost used for new hashes.
func (s *UserService) SetHashCost(cost int) {
	s.hashCost = cost
}

func (s *UserService) Tokens() *TokenIssuer {
	return s.tokens
}

func validateRegistration(req models.RegisterRequest) error {
	if strings.TrimSpace(req.Username) == "" {
		return &models.ValidationError{Field: "username", Message: "username is required"}
	}
	if strings.ContainsAny(req.Username, " \t\r\n") {
		return &models.ValidationError{Field: "username", Message: "username may not contain spaces"}
	}
	if req.Email == "" {
		return &models.ValidationError{Field: "email", Message: "email is required"}
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return &models.ValidationError{Field: "email", Message: "invalid email address"}
	}
	if len(req.Password) < minPasswordLength {
		return &models.ValidationError{Field: "password", Message: fmt.Sprintf("password must be at least %d characters", minPasswordLength)}
	}
	if req.Password != req.Password2 {
		return &models.ValidationError{Field: "password", Message: "password must match"}
	}
	return nil
}

// Register creates a regular user. Taken usernames or emails are reported
// as a *models.ConflictError naming the field.
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	if err := validateRegistration(req); err != nil {
		return nil, err
	}
	return s.create(ctx, req, false)
}

// CreateSuperuser creates an administrator account.
func (s *UserService) CreateSuperuser(ctx context.Context, username, email, password string) (*models.User, error) {
	req := models.RegisterRequest{Username: username, Email: email, Password: password, Password2: password}
	if err := validateRegistration(req); err != nil {
		return nil, err
	}
	return s.create(ctx, req, true)
}

func (s *UserService) create(ctx context.Context, req models.RegisterRequest, isAdmin bool) (*models.User, error) {
	usernameTaken, emailTaken, err := s.users.UserExists(ctx, req.Username, req.Email)
	if err != nil {
		return nil, err
	}
	if usernameTaken {
		return nil, &models.ConflictError{Field: "username"}
	}
	if emailTaken {
		return nil, &models.ConflictError{Field: "email"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: string(hash),
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsAdmin:      isAdmin,
	}
	if err := s.users.CreateUser(ctx, &user); err != nil {
		return nil, err
	}

	return &user, nil
}

// Authenticate checks a username/password pair against the stored hash.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if errors.Is(err, models.ErrNotFound) {
		return models.User{}, models.ErrInvalidCredentials
	}
	if err != nil {
		return models.User{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return models.User{}, models.ErrInvalidCredentials
	}

	return user, nil
}

func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// Refresh exchanges a refresh token for a new token pair and revokes the old one.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error) {
	claims, err := s.tokens.Validate(ctx, refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	if err := s.tokens.Revoke(ctx, claims); err != nil {
		return nil, err
	}
	return s.issue(user)
}

func (s *UserService) Logout(ctx context.Context, claims TokenClaims) error {
	return s.tokens.Revoke(ctx, claims)
}

func (s *UserService) issue(user models.User) (*models.AuthResponse, error) {
	token, err := s.tokens.GenerateJWT(user.ID, user.Username)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.GenerateRefreshToken(user.ID, user.Username)
	if err != nil {
		return nil, err
	}

	return &models.AuthResponse{
		Token:        token,
		RefreshToken: refresh,
		Username:     user.Username,
		UserID:       user.ID,
		IsAdmin:      user.IsAdmin,
	}, nil
}

func (s *UserService) GetUser(ctx context.Context, id int) (models.User, error) {
	return s.users.GetUserByID(ctx, id)
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.ListUsers(ctx)
}

func (s *UserService) ResetPassword(ctx context.Context, userID int, password string) error {
	if len(password) < minPasswordLength {
		return &models.ValidationError{Field: "password", Message: fmt.Sprintf("password must be at least %d characters", minPasswordLength)}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return err
	}
	return s.users.UpdatePasswordHash(ctx, userID, string(hash))
}

// AuditPasswords rehashes any stored password that is not a bcrypt hash,
// treating it as plaintext. It returns the number of accounts fixed.
func (s *UserService) AuditPasswords(ctx context.Context) (int, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return 0, err
	}

	fixed := 0
	for _, u := range users {
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err == nil {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(u.PasswordHash), s.hashCost)
		if err != nil {
			return fixed, fmt.Errorf("rehash %s: %w", u.Username, err)
		}
		if err := s.users.UpdatePasswordHash(ctx, u.ID, string(hash)); err != nil {
			return fixed, fmt.Errorf("rehash %s: %w", u.Username, err)
		}
		log.Printf("audit: rehashed plaintext password for %s", u.Username)
		fixed++
	}

	return fixed, nil
}
