package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode"

	"github.com/kube-rca/auth/internal/config"
	"github.com/kube-rca/auth/internal/db"
	"github.com/kube-rca/auth/internal/hasher"
	"github.com/kube-rca/auth/internal/model"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 32
	passwordSymbols   = "!@#?$%^&*"
)

// AuthService is the entry point used by the HTTP handlers.
type AuthService struct {
	users     UserStore
	hasher    hasher.Hasher
	codec     TokenCodec
	authn     *Authenticator
	issuer    *Issuer
	refresher *RefreshCoordinator
	limiter   LoginLimiter
	log       *slog.Logger
}

type Option func(*AuthService)

func WithLoginLimiter(l LoginLimiter) Option {
	return func(s *AuthService) { s.limiter = l }
}

func WithLogger(log *slog.Logger) Option {
	return func(s *AuthService) { s.log = log }
}

func NewAuthService(users UserStore, h hasher.Hasher, codec TokenCodec, cfg config.AuthConfig, opts ...Option) (*AuthService, error) {
	s := &AuthService{
		users:  users,
		hasher: h,
		codec:  codec,
		log:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}

	authn, err := NewAuthenticator(users, h)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrMisconfigured, err)
	}
	issuer, err := NewIssuer(codec, h, users, cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrMisconfigured, err)
	}

	s.authn = authn
	s.issuer = issuer
	s.refresher = NewRefreshCoordinator(codec, authn, issuer, cfg.RotateRefreshOnUse, s.log)
	return s, nil
}

// Register creates a user with a hashed password.
func (s *AuthService) Register(ctx context.Context, email, password string) (*model.User, error) {
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	existing, err := lookup(s.users.GetUserByEmail(ctx, email))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.CreateUser(ctx, email, hash)
	if err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, storeErr(err)
	}

	s.log.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Login returns an access token only.
func (s *AuthService) Login(ctx context.Context, email, password string) (model.AccessTokenResponse, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return model.AccessTokenResponse{}, err
	}

	access, err := s.issuer.IssueAccessToken(user.ID)
	if err != nil {
		return model.AccessTokenResponse{}, err
	}
	return model.AccessTokenResponse{AccessToken: access, TokenType: model.TokenTypeBearer}, nil
}

// LoginWithRefresh returns an access/refresh pair and replaces the stored
// refresh token hash.
func (s *AuthService) LoginWithRefresh(ctx context.Context, email, password string) (model.TokensResponse, error) {
	user, err := s.authenticate(ctx, email, password)
	if err != nil {
		return model.TokensResponse{}, err
	}

	pair, err := s.issuer.IssueSession(ctx, user.ID)
	if err != nil {
		return model.TokensResponse{}, err
	}
	return model.TokensResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    model.TokenTypeBearer,
	}, nil
}

// Refresh exchanges a refresh token for a new access token. RefreshToken in
// the response is only set when rotation on use is enabled.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (model.TokensResponse, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return model.TokensResponse{}, ErrInvalidCredentials
	}

	pair, err := s.refresher.Refresh(ctx, refreshToken)
	if err != nil {
		return model.TokensResponse{}, err
	}
	return model.TokensResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    model.TokenTypeBearer,
	}, nil
}

// ResolveCurrentUser decodes an access token and loads its user.
func (s *AuthService) ResolveCurrentUser(ctx context.Context, accessToken string) (*model.User, error) {
	claims, err := s.codec.Decode(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	userID, ok := subjectID(claims, typeAccess)
	if !ok {
		return nil, ErrInvalidCredentials
	}

	user, err := lookup(s.users.GetUserByID(ctx, userID))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *AuthService) authenticate(ctx context.Context, email, password string) (*model.User, error) {
	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, email)
		if err != nil {
			s.log.Warn("login limiter unavailable", "error", err)
		}
		if !allowed {
			return nil, ErrTooManyAttempts
		}
	}

	user, err := s.authn.AuthenticateByPassword(ctx, email, password)
	if err != nil {
		if errors.Is(err, ErrIncorrectCredentials) {
			s.log.Info("login rejected")
			s.recordFailure(ctx, email)
		}
		return nil, err
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, email); err != nil {
			s.log.Warn("login limiter unavailable", "error", err)
		}
	}
	s.log.Info("login succeeded", "user_id", user.ID)
	return user, nil
}

func (s *AuthService) recordFailure(ctx context.Context, email string) {
	if s.limiter == nil {
		return
	}
	if err := s.limiter.RecordFailure(ctx, email); err != nil {
		s.log.Warn("login limiter unavailable", "error", err)
	}
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return fmt.Errorf("%w: email address is not valid", ErrInvalidInput)
	}
	// domain needs at least two labels: a@x is rejected
	domain := email[strings.LastIndex(email, "@")+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") || strings.Contains(domain, "..") {
		return fmt.Errorf("%w: email address is not valid", ErrInvalidInput)
	}
	return nil
}

// validatePassword: 8-32 chars from [a-zA-Z0-9!@#?$%^&*] with at least one
// lowercase letter, one uppercase letter and one digit.
func validatePassword(password string) error {
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return fmt.Errorf("%w: password must be between %d and %d characters", ErrInvalidInput, minPasswordLength, maxPasswordLength)
	}

	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case r > unicode.MaxASCII:
			return fmt.Errorf("%w: password contains unsupported characters", ErrInvalidInput)
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSymbols, r):
		default:
			return fmt.Errorf("%w: password contains unsupported characters", ErrInvalidInput)
		}
	}
	if !lower || !upper || !digit {
		return fmt.Errorf("%w: password needs one uppercase letter, one lowercase letter and one number", ErrInvalidInput)
	}
	return nil
}
