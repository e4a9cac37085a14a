// Package auth issues and verifies the bearer tokens the HTTP layer uses to
// resolve an authenticated user ID for ledger operations.
package auth

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/creatorpilot/creditledger/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// contextUserIDKey stores the authenticated user ID on the gin context.
const contextUserIDKey = "userID"

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hashed, errHash := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if errHash != nil {
		return "", fmt.Errorf("auth: hash password: %w", errHash)
	}
	return string(hashed), nil
}

// CheckPassword reports whether the plaintext matches the stored hash.
func CheckPassword(hashed, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}

// IssueToken signs a JWT for the user.
func IssueToken(cfg config.JWTConfig, userID uint64) (string, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return "", fmt.Errorf("auth: jwt secret not configured")
	}
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(cfg.Expiry)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, errSign := token.SignedString([]byte(cfg.Secret))
	if errSign != nil {
		return "", fmt.Errorf("auth: sign token: %w", errSign)
	}
	return signed, nil
}

// ParseToken verifies a JWT and returns the user ID it carries.
func ParseToken(cfg config.JWTConfig, raw string) (uint64, error) {
	token, errParse := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method %v", t.Header["alg"])
		}
		return []byte(cfg.Secret), nil
	})
	if errParse != nil {
		return 0, fmt.Errorf("auth: parse token: %w", errParse)
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return 0, fmt.Errorf("auth: invalid token")
	}
	userID, errAtoi := strconv.ParseUint(claims.Subject, 10, 64)
	if errAtoi != nil || userID == 0 {
		return 0, fmt.Errorf("auth: invalid subject")
	}
	return userID, nil
}

// Middleware authenticates requests via the Authorization bearer header and
// stores the user ID on the context.
func Middleware(cfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		userID, errParse := ParseToken(cfg, strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")))
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(contextUserIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user ID from the gin context, or 0.
func UserID(c *gin.Context) uint64 {
	v, exists := c.Get(contextUserIDKey)
	if !exists {
		return 0
	}
	userID, ok := v.(uint64)
	if !ok {
		return 0
	}
	return userID
}
