package testutil

import (
	"strings"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicehub-api/middleware"
	"github.com/kendall-kelly/servicehub-api/models"
)

// MockValidatedClaims builds the claims EnsureValidToken would put on the context
func MockValidatedClaims(subject, issuer string, role models.Role, scopes ...string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  issuer,
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Scope: strings.Join(scopes, " "),
			Role:  string(role),
		},
	}
}

// SetMockAuthContext sets up a mock authenticated context for testing
func SetMockAuthContext(c *gin.Context, subject string, role models.Role) {
	c.Set("user_id", subject)
	c.Set("access_token", "mock-token-"+subject)
	c.Set("validated_claims", MockValidatedClaims(subject, "https://test.auth0.com/", role))
}

// MockAuthMiddleware authenticates every request as subject with role
func MockAuthMiddleware(subject string, role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		SetMockAuthContext(c, subject, role)
		c.Next()
	}
}
