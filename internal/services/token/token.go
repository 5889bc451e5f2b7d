// Package token implements Token Session (C9): platform login, rotate-on-
// refresh with reuse detection, and access-token authentication, grounded on
// spec.md §4.9. JWT claim shape follows the teacher's RegisteredClaims
// embedding convention (tests/helpers/jwt.go), adapted from RSA to a single
// shared HMAC secret since this is one deployable, not a multi-party
// token-issuer federation.
package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/creatorplatform/gateway-core/internal/adapters/identity"
	"github.com/creatorplatform/gateway-core/internal/adapters/postgres/account"
	"github.com/creatorplatform/gateway-core/internal/adapters/postgres/tokenstore"
	"github.com/creatorplatform/gateway-core/pkg"
	"github.com/creatorplatform/gateway-core/pkg/constant"
	"github.com/creatorplatform/gateway-core/pkg/mmodel"
)

// RevocationChecker is the fast-path jti revocation cache port, implemented
// by internal/adapters/redis.RevocationCache. A Redis outage degrades this
// check back to Postgres-only correctness (spec.md §5), never to a wrong
// answer - callers treat a cache error as "unknown", not "not revoked".
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti uuid.UUID) (bool, error)
	MarkRevoked(ctx context.Context, jti uuid.UUID, ttl time.Duration) error
}

// Config holds the signing and lifetime parameters from spec.md §6's
// configuration table.
type Config struct {
	Secret       []byte
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	GraceSeconds int
}

func (c Config) graceSeconds() int {
	if c.GraceSeconds <= 0 {
		return 300
	}

	return c.GraceSeconds
}

// Service implements the Token Session contract.
type Service struct {
	accounts   account.Repository
	tokens     tokenstore.Repository
	revocation RevocationChecker
	provider   identity.Provider
	cfg        Config
}

// New returns a Service.
func New(accounts account.Repository, tokens tokenstore.Repository, revocation RevocationChecker, provider identity.Provider, cfg Config) *Service {
	return &Service{accounts: accounts, tokens: tokens, revocation: revocation, provider: provider, cfg: cfg}
}

// AccessClaims is the JWT payload for access tokens.
type AccessClaims struct {
	jwt.RegisteredClaims
}

// Login exchanges platformCode at the upstream identity provider, converges
// the resolved identity onto an Account, and issues a fresh token pair.
func (s *Service) Login(ctx context.Context, platformCode string) (mmodel.TokenPair, mmodel.Account, error) {
	claims, err := s.provider.Exchange(ctx, platformCode)
	if err != nil {
		return mmodel.TokenPair{}, mmodel.Account{}, err
	}

	acc, err := s.accounts.FindOrCreateByIdentity(ctx, claims.UnionID, claims.OpenID, claims.Phone)
	if err != nil {
		return mmodel.TokenPair{}, mmodel.Account{}, err
	}

	pair, err := s.issuePair(ctx, acc.ID)
	if err != nil {
		return mmodel.TokenPair{}, mmodel.Account{}, err
	}

	return pair, acc, nil
}

// Refresh rotates the presented refresh token for a fresh pair. A refresh
// token that is already revoked or expired is treated as reuse: the whole
// rotation chain is revoked defensively (spec.md §4.9, §8 scenario F).
func (s *Service) Refresh(ctx context.Context, presented string) (mmodel.TokenPair, error) {
	rec, err := s.tokens.GetByHash(ctx, hashToken(presented))
	if err != nil {
		return mmodel.TokenPair{}, pkg.UnauthorizedError{Code: constant.ErrTokenInvalid, Message: "unknown refresh token"}
	}

	if rec.RevokedAt != nil || time.Now().After(rec.ExpiresAt) {
		s.revokeChainBestEffort(ctx, rec.JTI)
		return mmodel.TokenPair{}, pkg.UnauthorizedError{Code: constant.ErrRefreshReuse, Message: "refresh token reused or expired"}
	}

	if revoked, cacheErr := s.revocation.IsRevoked(ctx, rec.JTI); cacheErr == nil && revoked {
		s.revokeChainBestEffort(ctx, rec.JTI)
		return mmodel.TokenPair{}, pkg.UnauthorizedError{Code: constant.ErrRefreshReuse, Message: "refresh token reused"}
	}

	nextJTI := uuid.New()

	nextRaw, err := newOpaqueToken()
	if err != nil {
		return mmodel.TokenPair{}, err
	}

	next := &mmodel.RefreshTokenRecord{
		JTI:       nextJTI,
		UserID:    rec.UserID,
		TokenHash: hashToken(nextRaw),
		ExpiresAt: time.Now().Add(s.refreshTTL()),
	}

	if err := s.tokens.Rotate(ctx, rec.JTI, next); err != nil {
		var unauthorized pkg.UnauthorizedError
		if errors.As(err, &unauthorized) {
			s.revokeChainBestEffort(ctx, rec.JTI)
		}

		return mmodel.TokenPair{}, err
	}

	s.revocation.MarkRevoked(ctx, rec.JTI, s.refreshTTL()) //nolint:errcheck

	access, err := s.signAccess(rec.UserID)
	if err != nil {
		return mmodel.TokenPair{}, err
	}

	return mmodel.TokenPair{AccessToken: access, RefreshToken: nextRaw}, nil
}

func (s *Service) revokeChainBestEffort(ctx context.Context, jti uuid.UUID) {
	_ = s.tokens.RevokeChain(ctx, jti)
	_ = s.revocation.MarkRevoked(ctx, jti, s.refreshTTL())
}

// Authenticate verifies the access token cryptographically and returns the
// owning user id. This is the server-side check; it never skips signature
// verification (spec.md §4.9's expiry-check shortcut is a client-only
// optimization).
func (s *Service) Authenticate(ctx context.Context, accessToken string) (uuid.UUID, error) {
	claims := &AccessClaims{}

	parsed, err := jwt.ParseWithClaims(accessToken, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, pkg.UnauthorizedError{Code: constant.ErrTokenInvalid, Message: "unexpected signing method"}
		}

		return s.cfg.Secret, nil
	})

	if err != nil || !parsed.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.UUID{}, pkg.UnauthorizedError{Code: constant.ErrTokenExpired, Message: "access token expired"}
		}

		return uuid.UUID{}, pkg.UnauthorizedError{Code: constant.ErrTokenInvalid, Message: "invalid access token"}
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.UUID{}, pkg.UnauthorizedError{Code: constant.ErrTokenInvalid, Message: "malformed subject claim"}
	}

	return userID, nil
}

// CurrentUser is the convenience read backing GET /auth/user.
func (s *Service) CurrentUser(ctx context.Context, userID uuid.UUID) (mmodel.Account, error) {
	return s.accounts.Get(ctx, userID)
}

func (s *Service) issuePair(ctx context.Context, userID uuid.UUID) (mmodel.TokenPair, error) {
	raw, err := newOpaqueToken()
	if err != nil {
		return mmodel.TokenPair{}, err
	}

	rec := &mmodel.RefreshTokenRecord{
		JTI:       uuid.New(),
		UserID:    userID,
		TokenHash: hashToken(raw),
		ExpiresAt: time.Now().Add(s.refreshTTL()),
	}

	if err := s.tokens.Create(ctx, rec); err != nil {
		return mmodel.TokenPair{}, err
	}

	access, err := s.signAccess(userID)
	if err != nil {
		return mmodel.TokenPair{}, err
	}

	return mmodel.TokenPair{AccessToken: access, RefreshToken: raw}, nil
}

func (s *Service) signAccess(userID uuid.UUID) (string, error) {
	now := time.Now()

	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL())),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
}

func (s *Service) accessTTL() time.Duration {
	if s.cfg.AccessTTL <= 0 {
		return 15 * time.Minute
	}

	return s.cfg.AccessTTL
}

func (s *Service) refreshTTL() time.Duration {
	if s.cfg.RefreshTTL <= 0 {
		return 30 * 24 * time.Hour
	}

	return s.cfg.RefreshTTL
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func newOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(buf), nil
}

// IsExpiringWithinGrace implements spec.md §4.9's client-side expiry check:
// a token is treated as expired once `exp <= now + grace_seconds`. now and
// exp are both Unix seconds.
func IsExpiringWithinGrace(exp, now int64, graceSeconds int) bool {
	return exp <= now+int64(graceSeconds)
}

// IsAccessTokenExpiringSoon applies the service's configured grace window to
// an already-decoded expiry claim.
func (s *Service) IsAccessTokenExpiringSoon(exp, now int64) bool {
	return IsExpiringWithinGrace(exp, now, s.cfg.graceSeconds())
}

// ParseClaimsUnverified decodes an access token's claims without verifying
// its signature - the client-side shortcut spec.md §4.9 explicitly carves
// out from the server's cryptographic Authenticate path.
func ParseClaimsUnverified(accessToken string) (*AccessClaims, error) {
	claims := &AccessClaims{}

	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, claims); err != nil {
		return nil, err
	}

	return claims, nil
}
