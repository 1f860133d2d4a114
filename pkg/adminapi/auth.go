// Package adminapi exposes the control-plane REST API used by the
// `hive service ...` CLI subcommands to create, start, stop, remove,
// and list services over HTTP rather than in-process. It is a thin
// consumer of pkg/service, gated by a bearer-token scheme built on
// golang-jwt/jwt/v5 and request validation built on
// go-playground/validator.
package adminapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/cuemby/hive/pkg/hiveerr"
)

// claims is the bearer token's payload; Subject names the admin
// principal but nothing reads it — the core has no notion of admin
// identity beyond "holds a validly signed token".
type claims struct {
	jwt.RegisteredClaims
}

// IssueToken signs a bearer token for subject, valid for ttl, using
// signingKey. No CLI command calls it; its caller in this repository
// is the admin API test, and the running server itself only ever
// verifies tokens.
func IssueToken(signingKey, subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString([]byte(signingKey))
}

// authMiddleware verifies the `Authorization: Bearer <token>` header
// against signingKey, rejecting anything else with 401.
func authMiddleware(signingKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenStr, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenStr == "" {
			unauthorized(c, "missing bearer token")
			return
		}

		token, err := jwt.ParseWithClaims(tokenStr, &claims{}, func(t *jwt.Token) (any, error) {
			return []byte(signingKey), nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil || !token.Valid {
			unauthorized(c, "invalid or expired token")
			return
		}
		c.Next()
	}
}

func unauthorized(c *gin.Context, message string) {
	err := hiveerr.New(hiveerr.PermissionDenied, message)
	c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody(err))
}
