// Package auth issues and validates session credentials and adapts the
// authenticated session to the resolver's provider interfaces.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"ratebench.io/internal/authz"
	"ratebench.io/internal/directory"
	"ratebench.io/internal/ids"
)

const (
	defaultIssuer     = "ratebench"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 14 * 24 * time.Hour
)

var (
	// ErrInvalidToken indicates the token failed validation.
	ErrInvalidToken = errors.New("auth: invalid token")
	// ErrUnauthorized indicates credentials that do not resolve to an active actor.
	ErrUnauthorized = errors.New("auth: unauthorized")
)

// Claims are the JWT claims carried by access tokens.
type Claims struct {
	OrganizationID string `json:"org"`
	Role           string `json:"role"`
	jwt.RegisteredClaims
}

// Service authenticates credentials and mints token pairs.
type Service struct {
	dir    *directory.Service
	secret []byte
	issuer string

	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) Option {
	return func(s *Service) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			s.issuer = issuer
		}
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source, useful for tests.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the auth service. The signing secret is required.
func NewService(dir *directory.Service, secret string, opts ...Option) (*Service, error) {
	if dir == nil {
		return nil, errors.New("auth: directory service is required")
	}
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	s := &Service{
		dir:        dir,
		secret:     []byte(secret),
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TokenPair carries access and refresh tokens with their expirations.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Login authenticates email/password credentials and issues a fresh pair.
func (s *Service) Login(ctx context.Context, email, password string) (TokenPair, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return TokenPair{}, ErrUnauthorized
	}
	actor, err := s.dir.FindActorByEmail(ctx, email)
	if err != nil {
		return TokenPair{}, ErrUnauthorized
	}
	if actor.Status != directory.ActorStatusActive {
		return TokenPair{}, ErrUnauthorized
	}
	if err := VerifyPassword(actor.PasswordHash, password); err != nil {
		return TokenPair{}, ErrUnauthorized
	}
	return s.mintPair(ctx, actor)
}

// Refresh rotates the refresh token and issues new credentials. A token whose
// secret does not match its stored hash is revoked immediately.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	tokenID, secret, err := splitRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}
	store := s.dir.Store()
	record, err := store.FindRefreshToken(ctx, tokenID)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}
	if record.Revoked || s.now().After(record.ExpiresAt) {
		return TokenPair{}, ErrInvalidToken
	}
	if !secureCompareHash(record.TokenHash, secret) {
		_ = store.RevokeRefreshToken(ctx, record.ID)
		return TokenPair{}, ErrInvalidToken
	}
	actor, err := s.dir.GetActor(ctx, record.ActorID)
	if err != nil {
		return TokenPair{}, ErrInvalidToken
	}
	if actor.Status != directory.ActorStatusActive {
		return TokenPair{}, ErrUnauthorized
	}
	if err := store.RevokeRefreshToken(ctx, record.ID); err != nil {
		return TokenPair{}, err
	}
	return s.mintPair(ctx, actor)
}

// Logout revokes every refresh token of the actor.
func (s *Service) Logout(ctx context.Context, actorID string) error {
	return s.dir.Store().RevokeActorTokens(ctx, actorID)
}

// Authenticate validates an access token and resolves it into the in-memory
// session pair the resolver consumes.
func (s *Service) Authenticate(ctx context.Context, token string) (*authz.Actor, *authz.OrgContext, error) {
	claims, err := s.parseAndValidate(token)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}
	actor, org, err := s.dir.Session(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, nil, ErrInvalidToken
		}
		return nil, nil, err
	}
	return actor, org, nil
}

func (s *Service) mintPair(ctx context.Context, actor directory.Actor) (TokenPair, error) {
	now := s.now().UTC()
	accessExp := now.Add(s.accessTTL)
	claims := Claims{
		OrganizationID: actor.OrganizationID,
		Role:           actor.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("sign token: %w", err)
	}

	refreshString, record, err := s.generateRefreshToken(actor.ID, now)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.dir.Store().CreateRefreshToken(ctx, record); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      signed,
		RefreshToken:     refreshString,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: record.ExpiresAt,
	}, nil
}

func (s *Service) parseAndValidate(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Issuer != s.issuer {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalidToken
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}
	// Allow a small clock skew when validating issued-at.
	if claims.IssuedAt.Time.After(s.now().Add(5 * time.Second)) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) generateRefreshToken(actorID string, now time.Time) (string, *directory.RefreshToken, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", nil, err
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)
	sum := sha256.Sum256([]byte(secret))
	record := &directory.RefreshToken{
		ID:        ids.New(),
		ActorID:   actorID,
		TokenHash: hex.EncodeToString(sum[:]),
		ExpiresAt: now.Add(s.refreshTTL),
	}
	return record.ID + "." + secret, record, nil
}

func splitRefreshToken(raw string) (id, secret string, err error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid refresh token format")
	}
	return parts[0], parts[1], nil
}

func secureCompareHash(expectedHash, secret string) bool {
	sum := sha256.Sum256([]byte(secret))
	actual := hex.EncodeToString(sum[:])
	if len(expectedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expectedHash), []byte(actual)) == 1
}

// ContextWithSession attaches the resolved session to the context.
func ContextWithSession(ctx context.Context, actor *authz.Actor, org *authz.OrgContext) context.Context {
	ctx = context.WithValue(ctx, actorContextKey{}, actor)
	return context.WithValue(ctx, orgContextKey{}, org)
}

// ActorFromContext returns the authenticated actor, or nil.
func ActorFromContext(ctx context.Context) *authz.Actor {
	if ctx == nil {
		return nil
	}
	actor, _ := ctx.Value(actorContextKey{}).(*authz.Actor)
	return actor
}

// OrgFromContext returns the active organization context, or nil.
func OrgFromContext(ctx context.Context) *authz.OrgContext {
	if ctx == nil {
		return nil
	}
	org, _ := ctx.Value(orgContextKey{}).(*authz.OrgContext)
	return org
}

type actorContextKey struct{}
type orgContextKey struct{}

// SessionProvider feeds the resolver from the request context. It implements
// both authz.ActorProvider and authz.OrgProvider.
type SessionProvider struct{}

func (SessionProvider) CurrentActor(ctx context.Context) *authz.Actor { return ActorFromContext(ctx) }

func (SessionProvider) CurrentOrganization(ctx context.Context) *authz.OrgContext {
	return OrgFromContext(ctx)
}
