package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/framecraft-studio/framecraft-api/config"
	"github.com/framecraft-studio/framecraft-api/models"
)

// RequireTestEnvironmentOrSkip skips the test unless GO_ENV is "test".
// Use this for suites that touch global state shared with a running
// development server.
func RequireTestEnvironmentOrSkip(t *testing.T) {
	t.Helper()

	if env := os.Getenv("GO_ENV"); env != "" && env != "test" {
		t.Skipf("Skipping test: GO_ENV must be 'test' or unset (current: %q)", env)
	}
}

// TestConfig returns a configuration suitable for in-process tests. The
// JWT settings match what the auth middleware validates against, so
// tokens issued with this config pass the real token check.
func TestConfig(t *testing.T) *config.Config {
	t.Helper()

	return &config.Config{
		DatabaseURL:  ":memory:",
		Port:         "8080",
		GoEnv:        "test",
		JWTSecret:    "testutil-shared-secret",
		JWTIssuer:    "framecraft-api",
		JWTAudience:  "framecraft-app",
		AuthFailOpen: true,
		UploadDir:    t.TempDir(),
	}
}

// OpenTestDB opens a fresh in-memory database with the full schema
// migrated and registers it as the active connection.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.RegistrationCode{},
		&models.VerificationCode{},
		&models.Order{},
		&models.JobCard{},
		&models.Draft{},
		&models.Material{},
		&models.OrderMaterial{},
		&models.MaterialUsage{},
		&models.OrderEvent{},
	))

	config.SetDB(db)
	return db
}
