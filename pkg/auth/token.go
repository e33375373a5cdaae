// Package auth verifies the HS256 bearer tokens issued by the storefront's
// auth service.
package auth

import (
	"cmp"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/artisancrate/billing-engine/pkg/config"
)

var (
	signingMethod  = jwt.SigningMethodHS256
	errMissingUser = errors.New("token missing user id")
)

// Verifier checks signature, issuer, expiry and (when configured) audience.
type Verifier struct {
	key    []byte
	parser *jwt.Parser
}

func NewVerifier(cfg config.JWTConfig) (*Verifier, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}
	return &Verifier{key: []byte(cfg.Secret), parser: jwt.NewParser(opts...)}, nil
}

func (v *Verifier) Verify(raw string) (*AccessTokenClaims, error) {
	claims := &AccessTokenClaims{}
	if _, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	}); err != nil {
		return nil, err
	}
	if err := claims.resolveUser(); err != nil {
		return nil, err
	}
	if !claims.Role.IsValid() {
		return nil, fmt.Errorf("token carries invalid role %q", claims.Role)
	}
	return claims, nil
}

// ParseAccessToken is a one-shot Verify.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	v, err := NewVerifier(cfg)
	if err != nil {
		return nil, err
	}
	return v.Verify(raw)
}

// BearerToken extracts the credential from an Authorization header value.
// The scheme is matched case-insensitively; a bare token is accepted too.
func BearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if scheme, rest, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "bearer") {
		header = strings.TrimSpace(rest)
	}
	return header, header != ""
}

// MintAccessToken signs a token the way the auth service does. It backs
// local tooling and tests; production tokens are never minted here.
func MintAccessToken(cfg config.JWTConfig, now time.Time, ttl time.Duration, payload AccessTokenPayload) (string, error) {
	switch {
	case cfg.Secret == "":
		return "", errors.New("jwt secret is required")
	case cfg.Issuer == "":
		return "", errors.New("jwt issuer is required")
	case ttl <= 0:
		return "", errors.New("jwt ttl must be positive")
	case payload.UserID == uuid.Nil:
		return "", errMissingUser
	case !payload.Role.IsValid():
		return "", fmt.Errorf("invalid user role %q", payload.Role)
	}

	registered := jwt.RegisteredClaims{
		Issuer:    cfg.Issuer,
		Subject:   payload.UserID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        cmp.Or(strings.TrimSpace(payload.JTI), uuid.NewString()),
	}
	if cfg.Audience != "" {
		registered.Audience = jwt.ClaimStrings{cfg.Audience}
	}
	signed, err := jwt.NewWithClaims(signingMethod, AccessTokenClaims{
		UserID:           payload.UserID,
		Role:             payload.Role,
		RegisteredClaims: registered,
	}).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}
