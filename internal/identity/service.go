// Package identity provides email/password accounts and session
// resolution for the map API.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"learningmap/api/internal/auth"
	"learningmap/api/internal/hexmap"
	"learningmap/api/internal/rbac"
)

// UserStore defines the storage the identity service needs.
type UserStore interface {
	GetUser(ctx context.Context, email string) (*hexmap.User, string, error)
	PutUser(ctx context.Context, user hexmap.User, passwordHash string) error
}

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAlreadyRegistered  = errors.New("email already registered")
)

// Service authenticates accounts held in the local store.
type Service struct {
	store       UserStore
	tokenSecret []byte
	sessionTTL  time.Duration
}

func NewService(store UserStore, tokenSecret string, sessionTTL time.Duration) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &Service{
		store:       store,
		tokenSecret: []byte(tokenSecret),
		sessionTTL:  sessionTTL,
	}
}

// Register creates an account. The role is normalized through rbac so
// an unknown role lands at student.
func (s *Service) Register(ctx context.Context, email, password, name, role string) (hexmap.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return hexmap.User{}, errors.New("a valid email is required")
	}
	if len(password) < 8 {
		return hexmap.User{}, errors.New("password must be at least 8 characters")
	}

	existing, _, err := s.store.GetUser(ctx, email)
	if err != nil {
		return hexmap.User{}, err
	}
	if existing != nil {
		return hexmap.User{}, ErrAlreadyRegistered
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return hexmap.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := hexmap.User{
		Email: email,
		Name:  name,
		Role:  string(rbac.Normalize(role)),
	}
	if err := s.store.PutUser(ctx, user, string(hash)); err != nil {
		return hexmap.User{}, err
	}
	return user, nil
}

// SignIn verifies credentials and issues a session token.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, hexmap.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, hash, err := s.store.GetUser(ctx, email)
	if err != nil {
		return "", hexmap.User{}, err
	}
	if user == nil {
		return "", hexmap.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", hexmap.User{}, ErrInvalidCredentials
	}

	token, err := auth.IssueToken(s.tokenSecret, auth.Claims{
		Email: user.Email,
		Name:  user.Name,
		Role:  user.Role,
		Exp:   time.Now().Add(s.sessionTTL).Unix(),
	})
	if err != nil {
		return "", hexmap.User{}, fmt.Errorf("issue token: %w", err)
	}
	return token, *user, nil
}

// FromToken resolves a session token into a principal.
func (s *Service) FromToken(token string) (hexmap.User, error) {
	claims, err := auth.ParseToken(s.tokenSecret, token)
	if err != nil {
		return hexmap.User{}, err
	}
	return hexmap.User{
		Email: claims.Email,
		Name:  claims.Name,
		Role:  string(rbac.Normalize(claims.Role)),
	}, nil
}
