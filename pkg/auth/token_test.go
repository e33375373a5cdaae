package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/artisancrate/billing-engine/pkg/config"
	"github.com/artisancrate/billing-engine/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "artisancrate-auth"}

func mint(t *testing.T, cfg config.JWTConfig, issuedAt time.Time, ttl time.Duration, role enums.UserRole) (string, uuid.UUID) {
	t.Helper()
	user := uuid.New()
	token, err := MintAccessToken(cfg, issuedAt, ttl, AccessTokenPayload{UserID: user, Role: role})
	require.NoError(t, err)
	return token, user
}

func TestVerifyRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	token, user := mint(t, testJWT, now, 30*time.Minute, enums.UserRoleCustomer)

	claims, err := ParseAccessToken(testJWT, token)
	require.NoError(t, err)
	require.Equal(t, user, claims.UserID)
	require.Equal(t, user.String(), claims.Subject)
	require.False(t, claims.IsAdmin())
	require.True(t, claims.ExpiresAt.Equal(now.Add(30*time.Minute)))
	require.NotEmpty(t, claims.ID)

	admin, _ := mint(t, testJWT, now, time.Minute, enums.UserRoleAdmin)
	claims, err = ParseAccessToken(testJWT, admin)
	require.NoError(t, err)
	require.True(t, claims.IsAdmin())
}

func TestVerifyFallsBackToSubject(t *testing.T) {
	user := uuid.New()
	now := time.Now()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":  testJWT.Issuer,
		"sub":  user.String(),
		"role": "customer",
		"iat":  now.Unix(),
		"exp":  now.Add(time.Minute).Unix(),
	}).SignedString([]byte(testJWT.Secret))
	require.NoError(t, err)

	claims, err := ParseAccessToken(testJWT, raw)
	require.NoError(t, err)
	require.Equal(t, user, claims.UserID)
}

func TestVerifyRejects(t *testing.T) {
	good, _ := mint(t, testJWT, time.Now(), 10*time.Minute, enums.UserRoleCustomer)
	expired, _ := mint(t, testJWT, time.Now().Add(-time.Hour), 15*time.Minute, enums.UserRoleCustomer)

	otherIssuer := testJWT
	otherIssuer.Issuer = "someone-else"
	withAudience := testJWT
	withAudience.Audience = "billing"

	cases := map[string]struct {
		cfg   config.JWTConfig
		token string
	}{
		"bad signature":    {testJWT, good + "x"},
		"issuer mismatch":  {otherIssuer, good},
		"missing audience": {withAudience, good},
		"expired":          {testJWT, expired},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAccessToken(tc.cfg, tc.token)
			require.Error(t, err)
		})
	}

	_, err := ParseAccessToken(testJWT, expired)
	require.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestVerifyHonoursLeeway(t *testing.T) {
	lenient := testJWT
	lenient.Leeway = time.Minute
	token, _ := mint(t, lenient, time.Now().Add(-90*time.Second), time.Minute, enums.UserRoleCustomer)

	_, err := ParseAccessToken(lenient, token)
	require.NoError(t, err)
	_, err = ParseAccessToken(testJWT, token)
	require.Error(t, err)
}

func TestAudienceIsMintedAndChecked(t *testing.T) {
	cfg := testJWT
	cfg.Audience = "billing"
	token, _ := mint(t, cfg, time.Now(), time.Minute, enums.UserRoleAdmin)
	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	require.Equal(t, jwt.ClaimStrings{"billing"}, claims.Audience)
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		want string
		ok   bool
	}{
		"Bearer abc.def":   {"abc.def", true},
		"bearer   abc.def": {"abc.def", true},
		"abc.def":          {"abc.def", true},
		"Bearer ":          {"", false},
		"   ":              {"", false},
	}
	for header, tc := range cases {
		got, ok := BearerToken(header)
		require.Equal(t, tc.want, got, header)
		require.Equal(t, tc.ok, ok, header)
	}
}

func TestMintAccessTokenValidation(t *testing.T) {
	admin := AccessTokenPayload{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	cases := map[string]struct {
		cfg     config.JWTConfig
		ttl     time.Duration
		payload AccessTokenPayload
	}{
		"role":   {testJWT, time.Minute, AccessTokenPayload{UserID: uuid.New()}},
		"user":   {testJWT, time.Minute, AccessTokenPayload{Role: enums.UserRoleAdmin}},
		"ttl":    {testJWT, 0, admin},
		"secret": {config.JWTConfig{Issuer: "x"}, time.Minute, admin},
		"issuer": {config.JWTConfig{Secret: "x"}, time.Minute, admin},
	}
	for name, tc := range cases {
		_, err := MintAccessToken(tc.cfg, time.Now(), tc.ttl, tc.payload)
		require.Error(t, err, name)
	}
}
