package identity

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/clientbook/cache"
	"github.com/yourusername/clientbook/config"
	"github.com/yourusername/clientbook/middleware"
	"github.com/yourusername/clientbook/models"
	"github.com/yourusername/clientbook/store"
	"github.com/yourusername/clientbook/testutil"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:        "access-secret-access-secret-0000",
		JWTRefreshSecret: "refresh-secret-refresh-secret-00",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  time.Hour,
		Currency:         "USD",
	}
}

func newService(t *testing.T) (*Service, *store.Store) {
	db := testutil.NewDB(t)
	log := logrus.New()
	log.SetOutput(io.Discard)
	s := store.New(db)
	svc := NewService(s, testConfig(), cache.NewMemory(), log)
	svc.cost = bcrypt.MinCost
	return svc, s
}

func signUp(t *testing.T, svc *Service) *Session {
	t.Helper()
	session, err := svc.SignUp(context.Background(), SignUpInput{
		OrgName:  "Acme Studio",
		FullName: "Ada Admin",
		Email:    "Ada@Acme.test",
		Password: "s3cret-pass",
	})
	require.NoError(t, err)
	return session
}

func TestSignUpProvisionsOrgAndAdmin(t *testing.T) {
	svc, s := newService(t)
	session := signUp(t, svc)

	assert.Equal(t, "Acme Studio", session.Org.Name)
	assert.Equal(t, "USD", session.Org.Currency)
	assert.Equal(t, "ada@acme.test", session.User.Email)
	assert.Equal(t, models.RoleAdmin, session.User.Role)
	assert.Equal(t, session.Org.ID, session.User.OrgID)

	claims, err := middleware.ParseToken(session.AccessToken, testConfig().JWTSecret, middleware.TokenAccess)
	require.NoError(t, err)
	assert.Equal(t, session.Org.ID, claims.OrgID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	members, err := s.Profiles.ListByOrg(context.Background(), session.Org.ID)
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestSignUpIsAtomic(t *testing.T) {
	svc, s := newService(t)
	signUp(t, svc)

	_, err := svc.SignUp(context.Background(), SignUpInput{
		OrgName: "Second Org", FullName: "Eve", Email: "ada@acme.test", Password: "another-pass",
	})
	assert.ErrorIs(t, err, ErrEmailTaken)

	var orgs int64
	require.NoError(t, s.DB().Model(&models.Org{}).Count(&orgs).Error)
	assert.Equal(t, int64(1), orgs, "the second organization is rolled back")
}

func TestSignUpValidation(t *testing.T) {
	svc, _ := newService(t)
	tests := []struct {
		name  string
		in    SignUpInput
		field string
	}{
		{"blank org", SignUpInput{OrgName: " ", Email: "a@b.test", Password: "longenough"}, "org_name"},
		{"bad email", SignUpInput{OrgName: "Org", Email: "not-an-email", Password: "longenough"}, "email"},
		{"short password", SignUpInput{OrgName: "Org", Email: "a@b.test", Password: "short"}, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SignUp(context.Background(), tt.in)
			var verr *store.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestSignIn(t *testing.T) {
	svc, s := newService(t)
	created := signUp(t, svc)
	ctx := context.Background()

	session, err := svc.SignIn(ctx, " ADA@acme.test ", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, created.User.ID, session.User.ID)
	assert.NotEmpty(t, session.RefreshToken)

	_, err = svc.SignIn(ctx, "ada@acme.test", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.SignIn(ctx, "nobody@acme.test", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = s.Profiles.Update(ctx, created.User.ID, map[string]interface{}{"is_active": false})
	require.NoError(t, err)
	_, err = svc.SignIn(ctx, "ada@acme.test", "s3cret-pass")
	assert.ErrorIs(t, err, ErrAccountDisabled)
}

func TestRefreshRotatesTokens(t *testing.T) {
	svc, _ := newService(t)
	session := signUp(t, svc)
	ctx := context.Background()

	next, err := svc.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, session.RefreshToken, next.RefreshToken)

	_, err = svc.Refresh(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidSession, "a used refresh token cannot be replayed")

	_, err = svc.Refresh(ctx, session.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestSignOutRevokesSession(t *testing.T) {
	svc, _ := newService(t)
	session := signUp(t, svc)
	ctx := context.Background()

	access, err := middleware.ParseToken(session.AccessToken, testConfig().JWTSecret, middleware.TokenAccess)
	require.NoError(t, err)

	revoked, err := svc.IsRevoked(ctx, access.ID)
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, svc.SignOut(ctx, access, session.RefreshToken))

	revoked, err = svc.IsRevoked(ctx, access.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	_, err = svc.Refresh(ctx, session.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestCurrentSession(t *testing.T) {
	svc, _ := newService(t)
	session := signUp(t, svc)

	current, err := svc.CurrentSession(context.Background(), session.User.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Org.ID, current.Org.ID)

	_, err = svc.CurrentSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestMembers(t *testing.T) {
	svc, _ := newService(t)
	session := signUp(t, svc)
	ctx := context.Background()

	member, err := svc.CreateMember(ctx, session.Org.ID, MemberInput{Email: "bob@acme.test", FullName: "Bob", Password: "bob-password"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, member.Role)
	assert.Equal(t, session.Org.ID, member.OrgID)

	_, err = svc.CreateMember(ctx, session.Org.ID, MemberInput{Email: "bob@acme.test", Password: "bob-password"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	_, err = svc.CreateMember(ctx, session.Org.ID, MemberInput{Email: "carol@acme.test", Password: "carol-password", Role: "owner"})
	var verr *store.ValidationError
	assert.ErrorAs(t, err, &verr)

	members, err := svc.ListMembers(ctx, session.Org.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	signedIn, err := svc.SignIn(ctx, "bob@acme.test", "bob-password")
	require.NoError(t, err)
	assert.Equal(t, models.RoleUser, signedIn.User.Role)
}

func TestUpdateProfileAndPassword(t *testing.T) {
	svc, _ := newService(t)
	session := signUp(t, svc)
	ctx := context.Background()
	_, err := svc.CreateMember(ctx, session.Org.ID, MemberInput{Email: "bob@acme.test", Password: "bob-password"})
	require.NoError(t, err)

	name := "Ada Lovelace"
	profile, err := svc.UpdateProfile(ctx, session.User.ID, ProfileInput{FullName: &name})
	require.NoError(t, err)
	assert.Equal(t, name, profile.FullName)

	taken := "BOB@acme.test"
	_, err = svc.UpdateProfile(ctx, session.User.ID, ProfileInput{Email: &taken})
	assert.ErrorIs(t, err, ErrEmailTaken)

	err = svc.ChangePassword(ctx, session.User.ID, PasswordInput{CurrentPassword: "nope", NewPassword: "new-password"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = svc.ChangePassword(ctx, session.User.ID, PasswordInput{CurrentPassword: "s3cret-pass", NewPassword: "new-password"})
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, "ada@acme.test", "new-password")
	assert.NoError(t, err)
}
