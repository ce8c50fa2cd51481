package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// TriggerTokenHeader is set by trusted periodic callers instead of the
// query-string secret.
const TriggerTokenHeader = "X-Trigger-Token"

// TriggerAuthMiddleware authorizes refresh invocations. Three paths
// are accepted:
//   - ?secret=<value> matching the configured shared secret
//   - X-Trigger-Token header matching the shared secret
//   - Authorization: Bearer <jwt> signed HS256 with the shared secret
//
// The configured secret may be stored as a bcrypt hash (recognized by
// the $2 prefix); the JWT path requires the plain secret since HMAC
// needs the raw key.
func TriggerAuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "Refresh trigger secret is not configured",
			})
			c.Abort()
			return
		}

		if candidate := c.Query("secret"); candidate != "" && secretMatches(secret, candidate) {
			c.Next()
			return
		}

		if candidate := c.GetHeader(TriggerTokenHeader); candidate != "" && secretMatches(secret, candidate) {
			c.Next()
			return
		}

		if token := bearerToken(c); token != "" && validateTriggerJWT(token, secret) {
			c.Next()
			return
		}

		c.JSON(http.StatusUnauthorized, gin.H{
			"error":   "unauthorized",
			"message": "Invalid or missing trigger credentials",
		})
		c.Abort()
	}
}

// secretMatches compares a candidate against the configured secret,
// supporting both plain and bcrypt-hashed storage.
func secretMatches(configured, candidate string) bool {
	if strings.HasPrefix(configured, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(candidate)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(candidate)) == 1
}

// bearerToken extracts the token from an Authorization header
func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == authHeader {
		return ""
	}
	return token
}

// validateTriggerJWT verifies an HS256 token signed with the shared secret
func validateTriggerJWT(tokenString, secret string) bool {
	if strings.HasPrefix(secret, "$2") {
		// Hashed secrets cannot serve as HMAC keys.
		return false
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))

	return err == nil && token.Valid
}
