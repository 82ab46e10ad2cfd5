package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/framecraft-studio/framecraft-api/config"
	"github.com/framecraft-studio/framecraft-api/models"
	"github.com/framecraft-studio/framecraft-api/services"
)

// SeedPassword is the password every seeded account gets.
const SeedPassword = "password1234"

// SeedAccount creates a verified user plus profile with the given role,
// bypassing the signup and verification flow. Use it to provision the
// actors a cross-package test needs before the scenario starts.
func SeedAccount(t *testing.T, db *gorm.DB, email, role string) (*models.User, *models.Profile) {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(SeedPassword), bcrypt.DefaultCost)
	require.NoError(t, err)

	user := &models.User{
		Email:         email,
		PasswordHash:  string(hash),
		EmailVerified: true,
	}
	require.NoError(t, db.Create(user).Error)

	profile := &models.Profile{
		UserID:        user.ID,
		Name:          email,
		Role:          models.NormalizeRole(role),
		EmailVerified: true,
	}
	require.NoError(t, db.Create(profile).Error)

	return user, profile
}

// SessionToken issues a real signed session token for a seeded account,
// so tests can drive the full middleware chain instead of stubbing it.
func SessionToken(t *testing.T, cfg *config.Config, user *models.User, profile *models.Profile) string {
	t.Helper()

	token, err := services.IssueSessionToken(cfg, user, profile)
	require.NoError(t, err)
	return token
}
