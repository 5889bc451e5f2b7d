package token

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/creatorplatform/gateway-core/internal/adapters/identity"
	"github.com/creatorplatform/gateway-core/pkg"
	"github.com/creatorplatform/gateway-core/pkg/mmodel"
)

type fakeRevocation struct {
	revoked map[uuid.UUID]bool
}

func newFakeRevocation() *fakeRevocation {
	return &fakeRevocation{revoked: map[uuid.UUID]bool{}}
}

func (f *fakeRevocation) IsRevoked(ctx context.Context, jti uuid.UUID) (bool, error) {
	return f.revoked[jti], nil
}

func (f *fakeRevocation) MarkRevoked(ctx context.Context, jti uuid.UUID, ttl time.Duration) error {
	f.revoked[jti] = true
	return nil
}

type fakeAccounts struct {
	byID map[uuid.UUID]mmodel.Account
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{byID: map[uuid.UUID]mmodel.Account{}}
}

func (f *fakeAccounts) FindOrCreateByIdentity(ctx context.Context, unionID, openID, phone string) (mmodel.Account, error) {
	for _, acc := range f.byID {
		if (unionID != "" && acc.UnionID == unionID) || (openID != "" && acc.OpenID == openID) || (phone != "" && acc.Phone == phone) {
			return acc, nil
		}
	}

	acc := mmodel.Account{ID: uuid.New(), UnionID: unionID, OpenID: openID, Phone: phone}
	f.byID[acc.ID] = acc

	return acc, nil
}

func (f *fakeAccounts) Get(ctx context.Context, id uuid.UUID) (mmodel.Account, error) {
	acc, ok := f.byID[id]
	if !ok {
		return mmodel.Account{}, pkg.EntityNotFoundError{EntityType: "Account"}
	}

	return acc, nil
}

type fakeTokens struct {
	byJTI  map[uuid.UUID]*mmodel.RefreshTokenRecord
	byHash map[string]uuid.UUID
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{byJTI: map[uuid.UUID]*mmodel.RefreshTokenRecord{}, byHash: map[string]uuid.UUID{}}
}

func (f *fakeTokens) Create(ctx context.Context, rec *mmodel.RefreshTokenRecord) error {
	cp := *rec
	f.byJTI[rec.JTI] = &cp
	f.byHash[rec.TokenHash] = rec.JTI

	return nil
}

func (f *fakeTokens) Get(ctx context.Context, jti uuid.UUID) (*mmodel.RefreshTokenRecord, error) {
	rec, ok := f.byJTI[jti]
	if !ok {
		return nil, pkg.EntityNotFoundError{EntityType: "RefreshToken"}
	}

	return rec, nil
}

func (f *fakeTokens) GetByHash(ctx context.Context, tokenHash string) (*mmodel.RefreshTokenRecord, error) {
	jti, ok := f.byHash[tokenHash]
	if !ok {
		return nil, pkg.EntityNotFoundError{EntityType: "RefreshToken"}
	}

	return f.Get(ctx, jti)
}

func (f *fakeTokens) Rotate(ctx context.Context, oldJTI uuid.UUID, next *mmodel.RefreshTokenRecord) error {
	old, ok := f.byJTI[oldJTI]
	if !ok || old.RevokedAt != nil {
		return pkg.UnauthorizedError{Code: "REFRESH_TOKEN_REUSED"}
	}

	now := time.Now()
	old.RevokedAt = &now
	old.ReplacedBy = &next.JTI

	cp := *next
	f.byJTI[next.JTI] = &cp
	f.byHash[next.TokenHash] = next.JTI

	return nil
}

func (f *fakeTokens) RevokeChain(ctx context.Context, jti uuid.UUID) error {
	cur := jti

	for {
		rec, ok := f.byJTI[cur]
		if !ok {
			return nil
		}

		now := time.Now()
		if rec.RevokedAt == nil {
			rec.RevokedAt = &now
		}

		if rec.ReplacedBy == nil {
			return nil
		}

		cur = *rec.ReplacedBy
	}
}

type fakeIdentity struct {
	claims identity.Claims
	err    error
}

func (f *fakeIdentity) Exchange(ctx context.Context, platformCode string) (identity.Claims, error) {
	return f.claims, f.err
}

func newHarness(t *testing.T) (*Service, *fakeAccounts, *fakeTokens, *fakeIdentity) {
	t.Helper()

	accounts := newFakeAccounts()
	tokens := newFakeTokens()
	idp := &fakeIdentity{claims: identity.Claims{UnionID: "union-1"}}
	revocation := newFakeRevocation()

	svc := New(accounts, tokens, revocation, idp, Config{Secret: []byte("test-secret"), AccessTTL: time.Minute, RefreshTTL: time.Hour})

	return svc, accounts, tokens, idp
}

func TestLoginCreatesAccountAndIssuesPair(t *testing.T) {
	svc, accounts, _, _ := newHarness(t)

	pair, acc, err := svc.Login(context.Background(), "platform-code")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.Contains(t, accounts.byID, acc.ID)
}

func TestAuthenticateAcceptsFreshAccessToken(t *testing.T) {
	svc, _, _, _ := newHarness(t)

	_, acc, err := svc.Login(context.Background(), "platform-code")
	require.NoError(t, err)

	pair, _, err := svc.Login(context.Background(), "platform-code")
	require.NoError(t, err)

	userID, err := svc.Authenticate(context.Background(), pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, acc.ID, userID)
}

func TestAuthenticateRejectsMalformedToken(t *testing.T) {
	svc, _, _, _ := newHarness(t)

	_, err := svc.Authenticate(context.Background(), "not-a-jwt")
	require.Error(t, err)
}

func TestRefreshRotatesBothTokens(t *testing.T) {
	svc, _, _, _ := newHarness(t)

	pair, _, err := svc.Login(context.Background(), "platform-code")
	require.NoError(t, err)

	rotated, err := svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	require.NotEqual(t, pair.AccessToken, rotated.AccessToken)
}

func TestRefreshRejectsReuseOfRotatedToken(t *testing.T) {
	svc, _, _, _ := newHarness(t)

	pair, _, err := svc.Login(context.Background(), "platform-code")
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	require.Error(t, err)
}

func TestLoginConvergesIdentityAcrossUnionOpenAndPhone(t *testing.T) {
	svc, accounts, _, idp := newHarness(t)

	idp.claims = identity.Claims{UnionID: "u1", OpenID: "o1"}

	_, acc1, err := svc.Login(context.Background(), "code-1")
	require.NoError(t, err)

	idp.claims = identity.Claims{OpenID: "o1", Phone: "+1555"}

	_, acc2, err := svc.Login(context.Background(), "code-2")
	require.NoError(t, err)

	require.Equal(t, acc1.ID, acc2.ID)
	require.Len(t, accounts.byID, 1)
}
