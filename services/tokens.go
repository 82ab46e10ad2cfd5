package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/framecraft-studio/framecraft-api/config"
	"github.com/framecraft-studio/framecraft-api/models"
)

// SessionTokenTTL is how long an issued session token stays valid.
const SessionTokenTTL = 24 * time.Hour

// IssueSessionToken signs an HS256 JWT for the user. The subject is the
// user id; the role claim is a convenience copy of the profile role (the
// profile row stays the source of truth and is re-checked per request).
func IssueSessionToken(cfg *config.Config, user *models.User, profile *models.Profile) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss":            cfg.JWTIssuer,
		"aud":            cfg.JWTAudience,
		"sub":            fmt.Sprintf("%d", user.ID),
		"iat":            now.Unix(),
		"exp":            now.Add(SessionTokenTTL).Unix(),
		"role":           profile.Role,
		"email_verified": user.EmailVerified,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}
