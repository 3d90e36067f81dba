package dto

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// RoleReviewer grants access to the human review endpoint.
const RoleReviewer = "reviewer"

// AuthClaims defines the custom claims for JWT. The subject is the learner id.
type AuthClaims struct {
	Roles     []string `json:"roles,omitempty"`
	TokenType string   `json:"token_type"` // "access" or "refresh"
	jwt.RegisteredClaims
}

// LearnerID parses the numeric subject.
func (c *AuthClaims) LearnerID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

func (c *AuthClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}
