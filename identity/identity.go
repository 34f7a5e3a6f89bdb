// Package identity provisions organizations and issues sessions. Sessions are
// JWT access and refresh token pairs; signing out revokes their token ids in the
// cache until they would have expired anyway.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/clientbook/cache"
	"github.com/yourusername/clientbook/config"
	"github.com/yourusername/clientbook/middleware"
	"github.com/yourusername/clientbook/models"
	"github.com/yourusername/clientbook/store"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDisabled    = errors.New("account is inactive")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidSession     = errors.New("session is invalid or has ended")
)

const (
	minPasswordLength = 8
	revokedPrefix     = "revoked:"
)

type Service struct {
	store *store.Store
	cfg   *config.Config
	cache cache.Cache
	log   *logrus.Logger
	cost  int
}

func NewService(s *store.Store, cfg *config.Config, c cache.Cache, log *logrus.Logger) *Service {
	return &Service{store: s, cfg: cfg, cache: c, log: log, cost: bcrypt.DefaultCost}
}

// Session is what a successful sign-in, sign-up or refresh returns.
type Session struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	ExpiresAt    time.Time       `json:"expires_at"`
	User         *models.Profile `json:"user"`
	Org          *models.Org     `json:"org"`
}

// CurrentUser is the profile and organization behind a verified access token.
type CurrentUser struct {
	User *models.Profile `json:"user"`
	Org  *models.Org     `json:"org"`
}

type SignUpInput struct {
	OrgName  string `json:"org_name" binding:"required,max=255"`
	FullName string `json:"full_name" binding:"required,max=255"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// SignUp creates an organization and its first admin profile in one transaction.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*Session, error) {
	orgName := strings.TrimSpace(in.OrgName)
	if orgName == "" {
		return nil, &store.ValidationError{Field: "org_name", Message: "is required"}
	}
	email, err := validEmail(in.Email)
	if err != nil {
		return nil, err
	}
	hash, err := s.hashPassword("password", in.Password)
	if err != nil {
		return nil, err
	}

	org := &models.Org{Name: orgName, Currency: s.cfg.Currency}
	profile := &models.Profile{
		Email:        email,
		FullName:     strings.TrimSpace(in.FullName),
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		IsActive:     true,
	}
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.Orgs.Create(ctx, org); err != nil {
			return fmt.Errorf("create organization: %w", err)
		}
		profile.OrgID = org.ID
		if err := tx.Profiles.Create(ctx, profile); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return ErrEmailTaken
			}
			return fmt.Errorf("create profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"org_id": org.ID, "user_id": profile.ID}).Info("organization provisioned")
	return s.issue(profile, org)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	profile, err := s.store.Profiles.GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !profile.IsActive {
		return nil, ErrAccountDisabled
	}
	org, err := s.store.Orgs.Get(ctx, profile.OrgID)
	if err != nil {
		return nil, fmt.Errorf("load organization: %w", err)
	}
	return s.issue(profile, org)
}

// Refresh exchanges a refresh token for a new pair. The presented refresh token
// is revoked so it cannot be replayed.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := middleware.ParseToken(refreshToken, s.cfg.JWTRefreshSecret, middleware.TokenRefresh)
	if err != nil {
		return nil, ErrInvalidSession
	}
	revoked, err := s.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrInvalidSession
	}

	profile, err := s.store.Profiles.Get(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}
	if !profile.IsActive {
		return nil, ErrAccountDisabled
	}
	org, err := s.store.Orgs.Get(ctx, profile.OrgID)
	if err != nil {
		return nil, fmt.Errorf("load organization: %w", err)
	}

	if err := s.revoke(ctx, claims); err != nil {
		return nil, err
	}
	return s.issue(profile, org)
}

// SignOut revokes the access token and, when given, the refresh token.
func (s *Service) SignOut(ctx context.Context, access *middleware.Claims, refreshToken string) error {
	if access != nil {
		if err := s.revoke(ctx, access); err != nil {
			return err
		}
	}
	if refreshToken == "" {
		return nil
	}
	claims, err := middleware.ParseToken(refreshToken, s.cfg.JWTRefreshSecret, middleware.TokenRefresh)
	if err != nil {
		return nil
	}
	if access != nil && claims.UserID != access.UserID {
		return ErrInvalidSession
	}
	return s.revoke(ctx, claims)
}

// IsRevoked satisfies middleware.RevocationChecker.
func (s *Service) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var revoked bool
	found, err := s.cache.Get(ctx, revokedPrefix+tokenID, &revoked)
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return found && revoked, nil
}

func (s *Service) CurrentSession(ctx context.Context, userID string) (*CurrentUser, error) {
	profile, err := s.store.Profiles.Get(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}
	if !profile.IsActive {
		return nil, ErrAccountDisabled
	}
	org, err := s.store.Orgs.Get(ctx, profile.OrgID)
	if err != nil {
		return nil, fmt.Errorf("load organization: %w", err)
	}
	return &CurrentUser{User: profile, Org: org}, nil
}

func (s *Service) revoke(ctx context.Context, claims *middleware.Claims) error {
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	if err := s.cache.Set(ctx, revokedPrefix+claims.ID, true, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *Service) issue(profile *models.Profile, org *models.Org) (*Session, error) {
	access, accessClaims, err := middleware.GenerateToken(profile.ID, profile.OrgID, profile.Role,
		middleware.TokenAccess, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	refresh, _, err := middleware.GenerateToken(profile.ID, profile.OrgID, profile.Role,
		middleware.TokenRefresh, s.cfg.JWTRefreshSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    accessClaims.ExpiresAt.Time,
		User:         profile,
		Org:          org,
	}, nil
}

func (s *Service) hashPassword(field, password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", &store.ValidationError{Field: field, Message: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func validEmail(raw string) (string, error) {
	email := store.NormalizeEmail(raw)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", &store.ValidationError{Field: "email", Message: "must be a valid email address"}
	}
	return email, nil
}
