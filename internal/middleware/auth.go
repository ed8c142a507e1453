package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ContextDriverID is the gin context key holding the authenticated driver.
const ContextDriverID = "driver_id"

var (
	ErrMissingToken    = errors.New("missing bearer token")
	ErrInvalidToken    = errors.New("invalid token")
	ErrForbiddenDriver = errors.New("token does not belong to this driver")
)

// DriverClaims are the claims carried by a driver token.
type DriverClaims struct {
	DriverID string `json:"driver_id"`
	jwt.RegisteredClaims
}

// ParseDriverToken validates an HS256 token and returns its claims.
func ParseDriverToken(tokenStr string, secret []byte) (*DriverClaims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &DriverClaims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*DriverClaims)
	if !ok || claims.DriverID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GenerateDriverToken signs a token for driverID valid for ttl.
func GenerateDriverToken(driverID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &DriverClaims{
		DriverID: driverID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   driverID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// DriverAuthMiddleware requires a driver token whose driver_id matches the
// :id path parameter. The token is read from the Authorization header, or
// from the token query parameter for websocket upgrades. An empty secret
// disables the check.
func DriverAuthMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(secret) == 0 {
			c.Set(ContextDriverID, c.Param("id"))
			c.Next()
			return
		}

		tokenStr := bearerToken(c.GetHeader("Authorization"))
		if tokenStr == "" {
			tokenStr = c.Query("token")
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrMissingToken.Error()})
			return
		}

		claims, err := ParseDriverToken(tokenStr, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrInvalidToken.Error()})
			return
		}

		if id := c.Param("id"); id != "" && claims.DriverID != id {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": ErrForbiddenDriver.Error()})
			return
		}

		c.Set(ContextDriverID, claims.DriverID)
		c.Next()
	}
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
