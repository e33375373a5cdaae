package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/artisancrate/billing-engine/pkg/enums"
)

// AccessTokenPayload is what MintAccessToken signs.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.UserRole
	JTI    string
}

// AccessTokenClaims is the body of a bearer token from the auth service.
// Older tokens carry the user only in "sub".
type AccessTokenClaims struct {
	UserID uuid.UUID      `json:"user_id"`
	Role   enums.UserRole `json:"role"`
	jwt.RegisteredClaims
}

func (c *AccessTokenClaims) IsAdmin() bool {
	return c != nil && c.Role == enums.UserRoleAdmin
}

// resolveUser fills UserID from the subject when the explicit claim is absent.
func (c *AccessTokenClaims) resolveUser() error {
	if c.UserID != uuid.Nil {
		return nil
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil || id == uuid.Nil {
		return errMissingUser
	}
	c.UserID = id
	return nil
}
