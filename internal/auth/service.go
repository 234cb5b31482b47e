package auth

import (
	"context"
	"errors"
	"time"

	"github.com/congo-pay/vault_ledger/internal/identity"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

var (
	ErrInvalidRefresh   = errors.New("invalid refresh token")
	ErrTokenInvalidated = errors.New("token version invalidated")
	ErrWrongTokenType   = errors.New("wrong token type")
)

// Settings are the signing secrets and lifetimes.
type Settings struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type Service struct {
	settings Settings
	idRepo   identity.Repository
	now      func() time.Time
}

func NewService(settings Settings, idRepo identity.Repository) *Service {
	return &Service{settings: settings, idRepo: idRepo, now: time.Now}
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login issues a token pair for an already authenticated user.
func (s *Service) Login(user identity.User) (TokenPair, error) {
	access, err := s.sign(user.ID, user.TokenVersion, typeAccess, s.settings.AccessSecret, s.settings.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.sign(user.ID, user.TokenVersion, typeRefresh, s.settings.RefreshSecret, s.settings.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(s.settings.AccessTTL.Seconds())}, nil
}

func (s *Service) sign(sub string, ver int, typ, secret string, ttl time.Duration) (string, error) {
	now := s.now()
	return SignHS256(Claims{
		"sub": sub,
		"ver": ver,
		"typ": typ,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}, []byte(secret))
}

// VerifyAccess validates an access token and its version, returning the user id.
func (s *Service) VerifyAccess(ctx context.Context, token string) (string, int, error) {
	claims, err := ParseAndVerifyHS256(token, []byte(s.settings.AccessSecret), s.now())
	if err != nil {
		return "", 0, err
	}
	if claims.Type() != typeAccess {
		return "", 0, ErrWrongTokenType
	}
	if _, err := s.current(ctx, claims); err != nil {
		return "", 0, err
	}
	return claims.Subject(), claims.Version(), nil
}

// Refresh verifies the refresh token and returns a new access token if valid.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	user, err := s.refreshUser(ctx, refreshToken)
	if err != nil {
		return "", 0, err
	}
	signed, err := s.sign(user.ID, user.TokenVersion, typeAccess, s.settings.AccessSecret, s.settings.AccessTTL)
	if err != nil {
		return "", 0, err
	}
	return signed, int64(s.settings.AccessTTL.Seconds()), nil
}

// Logout increments the token version so every outstanding token becomes invalid.
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	user, err := s.refreshUser(ctx, refreshToken)
	if err != nil {
		return err
	}
	return s.idRepo.UpdateTokenVersion(ctx, user.ID, user.TokenVersion+1)
}

func (s *Service) refreshUser(ctx context.Context, token string) (identity.User, error) {
	claims, err := ParseAndVerifyHS256(token, []byte(s.settings.RefreshSecret), s.now())
	if err != nil || claims.Type() != typeRefresh {
		return identity.User{}, ErrInvalidRefresh
	}
	return s.current(ctx, claims)
}

func (s *Service) current(ctx context.Context, claims Claims) (identity.User, error) {
	user, err := s.idRepo.FindByID(ctx, claims.Subject())
	if err != nil {
		return identity.User{}, err
	}
	if user.TokenVersion != claims.Version() {
		return identity.User{}, ErrTokenInvalidated
	}
	return user, nil
}
