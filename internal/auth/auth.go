// Package auth issues and verifies the bearer tokens that gate the agent
// endpoints.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/medsim/diagnosis-gateway/internal/core/domain"
	"github.com/medsim/diagnosis-gateway/internal/core/ports"
)

// DefaultTokenTTL is the login token lifetime when none is configured.
const DefaultTokenTTL = 60 * time.Minute

var usernamePattern = regexp.MustCompile(`^[a-z0-9@]+$`)

// ErrInvalidUsername is returned by Register for names outside [a-z0-9@].
var ErrInvalidUsername = errors.New("username may only contain lowercase letters, digits and @")

// Token is the login response body.
type Token struct {
	TokenType   string    `json:"token_type"`
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Claims are the JWT claims issued at login.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// Service registers users, issues tokens and verifies them.
type Service struct {
	users  ports.UserStore
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTokenTTL overrides DefaultTokenTTL.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock sets the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a Service signing with secret using an HS algorithm
// (HS256, HS384 or HS512).
func NewService(users ports.UserStore, secret, algorithm string, opts ...Option) (*Service, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth secret is required")
	}
	method := jwt.GetSigningMethod(algorithm)
	if _, ok := method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}

	s := &Service{
		users:  users,
		secret: []byte(secret),
		method: method,
		ttl:    DefaultTokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register creates a user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, username, password string) error {
	if !usernamePattern.MatchString(username) {
		return ErrInvalidUsername
	}
	if password == "" {
		return fmt.Errorf("password is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if _, err := s.users.CreateUser(ctx, username, string(hash)); err != nil {
		return fmt.Errorf("create user %s: %w", username, err)
	}
	return nil
}

// Login checks credentials and issues a signed token. Unknown users and bad
// passwords both return domain.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (*Token, error) {
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	expiresAt := s.now().Add(s.ttl)
	claims := Claims{
		UserID: user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Username,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &Token{
		TokenType:   "bearer",
		AccessToken: signed,
		ExpiresAt:   expiresAt,
	}, nil
}

// Verify validates token and confirms its subject still exists. Every
// failure is reported as domain.ErrUnauthorized.
func (s *Service) Verify(ctx context.Context, token string) (domain.Identity, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if claims.Subject == "" || claims.UserID == 0 {
		return domain.Identity{}, fmt.Errorf("%w: missing sub or user_id", domain.ErrUnauthorized)
	}

	user, err := s.users.GetUserByUsername(ctx, claims.Subject)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if user.ID != claims.UserID {
		return domain.Identity{}, fmt.Errorf("%w: user id mismatch", domain.ErrUnauthorized)
	}

	return domain.Identity{UserID: user.ID, Username: user.Username}, nil
}

// ExtractBearer extracts the token from the Authorization header.
func ExtractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	// Support "Bearer <token>" format
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	if strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("unsupported authorization scheme")
	}

	return strings.TrimSpace(parts[1]), nil
}
