package services

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/framecraft-studio/framecraft-api/config"
	"github.com/framecraft-studio/framecraft-api/models"
)

func setupAccountsTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.RegistrationCode{},
		&models.VerificationCode{},
	); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

func accountsTestConfig() *config.Config {
	return &config.Config{
		JWTSecret:   "test-secret-key-for-unit-tests",
		JWTIssuer:   "framecraft-api",
		JWTAudience: "framecraft-app",
	}
}

// lastEmailSecret pulls the bolded code out of a mock verification mail.
func lastEmailSecret(t *testing.T, sender *MockEmailSender) string {
	t.Helper()
	if len(sender.Sent) == 0 {
		t.Fatal("No email was sent")
	}
	body := sender.Sent[len(sender.Sent)-1].Body
	start := strings.Index(body, "<b>")
	end := strings.Index(body, "</b>")
	if start == -1 || end == -1 {
		t.Fatalf("Email body has no code: %q", body)
	}
	return body[start+3 : end]
}

func TestSignup_Customer(t *testing.T) {
	db := setupAccountsTestDB(t)
	sender := NewMockEmailSender()
	SetEmailSender(sender)
	defer SetEmailSender(nil)

	svc := NewAccountService(db, accountsTestConfig())
	user, profile, err := svc.Signup(SignupInput{
		Email:    "Alice@Example.COM",
		Password: "supersecret",
		Name:     "Alice",
	})
	assert.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.False(t, user.EmailVerified)
	assert.Equal(t, models.RoleCustomer, profile.Role)

	// Password is stored hashed
	assert.NotEqual(t, "supersecret", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("supersecret")))

	// A verification code went out
	assert.Equal(t, "alice@example.com", sender.LastTo())
	assert.Len(t, lastEmailSecret(t, sender), OTPLength)
}

func TestSignup_WorkerWithCode(t *testing.T) {
	db := setupAccountsTestDB(t)
	sender := NewMockEmailSender()
	SetEmailSender(sender)
	defer SetEmailSender(nil)

	codes := NewCodeService(db)
	generated, err := codes.Generate("worker", 1)
	assert.NoError(t, err)

	svc := NewAccountService(db, accountsTestConfig())
	user, profile, err := svc.Signup(SignupInput{
		Email:            "worker@example.com",
		Password:         "supersecret",
		Name:             "Walter",
		Role:             "worker",
		RegistrationCode: generated[0].Plain,
	})
	assert.NoError(t, err)
	assert.Equal(t, models.RoleWorker, profile.Role)

	// The code is consumed by this signup and attributed to the user
	var code models.RegistrationCode
	db.First(&code, generated[0].Code.ID)
	assert.True(t, code.Used)
	assert.Equal(t, user.ID, *code.UsedByID)
}

func TestSignup_LegacyRoleNameMapsToWorker(t *testing.T) {
	db := setupAccountsTestDB(t)
	SetEmailSender(NewMockEmailSender())
	defer SetEmailSender(nil)

	codes := NewCodeService(db)
	generated, err := codes.Generate("worker", 1)
	assert.NoError(t, err)

	svc := NewAccountService(db, accountsTestConfig())
	_, profile, err := svc.Signup(SignupInput{
		Email:            "legacy@example.com",
		Password:         "supersecret",
		Role:             "employer",
		RegistrationCode: generated[0].Plain,
	})
	assert.NoError(t, err)
	assert.Equal(t, models.RoleWorker, profile.Role)
}

func TestSignup_WorkerWithoutCodeFails(t *testing.T) {
	db := setupAccountsTestDB(t)
	svc := NewAccountService(db, accountsTestConfig())

	_, _, err := svc.Signup(SignupInput{
		Email:    "worker@example.com",
		Password: "supersecret",
		Role:     "worker",
	})
	assert.ErrorIs(t, err, ErrCodeInvalid)

	// Nothing was created
	var users int64
	db.Model(&models.User{}).Count(&users)
	assert.Equal(t, int64(0), users)
}

func TestSignup_WrongRoleCodeFails(t *testing.T) {
	db := setupAccountsTestDB(t)
	codes := NewCodeService(db)
	generated, err := codes.Generate("worker", 1)
	assert.NoError(t, err)

	svc := NewAccountService(db, accountsTestConfig())
	_, _, err = svc.Signup(SignupInput{
		Email:            "boss@example.com",
		Password:         "supersecret",
		Role:             "admin",
		RegistrationCode: generated[0].Plain,
	})
	assert.ErrorIs(t, err, ErrCodeInvalid)

	// The miss did not consume the worker code
	var code models.RegistrationCode
	db.First(&code, generated[0].Code.ID)
	assert.False(t, code.Used)
}

func TestSignup_EmailTaken(t *testing.T) {
	db := setupAccountsTestDB(t)
	SetEmailSender(NewMockEmailSender())
	defer SetEmailSender(nil)

	svc := NewAccountService(db, accountsTestConfig())
	_, _, err := svc.Signup(SignupInput{Email: "dup@example.com", Password: "supersecret"})
	assert.NoError(t, err)

	_, _, err = svc.Signup(SignupInput{Email: "DUP@example.com", Password: "othersecret"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignup_ShortPassword(t *testing.T) {
	db := setupAccountsTestDB(t)
	svc := NewAccountService(db, accountsTestConfig())

	_, _, err := svc.Signup(SignupInput{Email: "short@example.com", Password: "tiny"})
	assert.Error(t, err)
}

func TestVerifyEmail(t *testing.T) {
	db := setupAccountsTestDB(t)
	sender := NewMockEmailSender()
	SetEmailSender(sender)
	defer SetEmailSender(nil)

	cfg := accountsTestConfig()
	svc := NewAccountService(db, cfg)
	user, _, err := svc.Signup(SignupInput{Email: "verify@example.com", Password: "supersecret"})
	assert.NoError(t, err)

	otp := lastEmailSecret(t, sender)

	t.Run("Wrong code increments attempts", func(t *testing.T) {
		wrong := "000000"
		if wrong == otp {
			wrong = "000001"
		}
		_, err := svc.VerifyEmail(user.Email, wrong)
		assert.ErrorIs(t, err, ErrInvalidOTP)

		var record models.VerificationCode
		db.Where("user_id = ?", user.ID).Order("created_at DESC").First(&record)
		assert.Equal(t, 1, record.Attempts)
	})

	t.Run("Correct code verifies and issues a token", func(t *testing.T) {
		token, err := svc.VerifyEmail(user.Email, otp)
		assert.NoError(t, err)
		assert.NotEmpty(t, token)

		// Both truth sources are flipped together
		var refreshed models.User
		db.First(&refreshed, user.ID)
		assert.True(t, refreshed.EmailVerified)

		var profile models.Profile
		db.Where("user_id = ?", user.ID).First(&profile)
		assert.True(t, profile.EmailVerified)

		// The token carries the verified claim
		parsed, err := jwt.Parse(token, func(tok *jwt.Token) (interface{}, error) {
			return []byte(cfg.JWTSecret), nil
		})
		assert.NoError(t, err)
		claims := parsed.Claims.(jwt.MapClaims)
		assert.Equal(t, true, claims["email_verified"])
		assert.Equal(t, models.RoleCustomer, claims["role"])
	})

	t.Run("Code is single use", func(t *testing.T) {
		_, err := svc.VerifyEmail(user.Email, otp)
		assert.ErrorIs(t, err, ErrInvalidOTP)
	})
}

func TestVerifyEmail_ExpiredCode(t *testing.T) {
	db := setupAccountsTestDB(t)
	sender := NewMockEmailSender()
	SetEmailSender(sender)
	defer SetEmailSender(nil)

	svc := NewAccountService(db, accountsTestConfig())
	user, _, err := svc.Signup(SignupInput{Email: "late@example.com", Password: "supersecret"})
	assert.NoError(t, err)
	otp := lastEmailSecret(t, sender)

	// Age the code past its TTL
	db.Model(&models.VerificationCode{}).Where("user_id = ?", user.ID).
		Update("expires_at", time.Now().Add(-time.Minute))

	_, err = svc.VerifyEmail(user.Email, otp)
	assert.ErrorIs(t, err, ErrInvalidOTP)
}

func TestVerifyEmail_LockedAfterMaxAttempts(t *testing.T) {
	db := setupAccountsTestDB(t)
	sender := NewMockEmailSender()
	SetEmailSender(sender)
	defer SetEmailSender(nil)

	svc := NewAccountService(db, accountsTestConfig())
	user, _, err := svc.Signup(SignupInput{Email: "locked@example.com", Password: "supersecret"})
	assert.NoError(t, err)
	otp := lastEmailSecret(t, sender)

	wrong := "000000"
	if wrong == otp {
		wrong = "111111"
	}
	for i := 0; i < OTPMaxAttempts; i++ {
		_, err = svc.VerifyEmail(user.Email, wrong)
		assert.ErrorIs(t, err, ErrInvalidOTP)
	}

	// Each wrong guess must survive the failed call
	var record models.VerificationCode
	assert.NoError(t, db.Where("user_id = ?", user.ID).First(&record).Error)
	assert.Equal(t, OTPMaxAttempts, record.Attempts)

	// Even the right code is rejected once the attempt limit is spent
	_, err = svc.VerifyEmail(user.Email, otp)
	assert.ErrorIs(t, err, ErrInvalidOTP)

	var reloaded models.User
	assert.NoError(t, db.First(&reloaded, user.ID).Error)
	assert.False(t, reloaded.EmailVerified)
}

func TestLogin(t *testing.T) {
	db := setupAccountsTestDB(t)
	sender := NewMockEmailSender()
	SetEmailSender(sender)
	defer SetEmailSender(nil)

	svc := NewAccountService(db, accountsTestConfig())
	user, _, err := svc.Signup(SignupInput{Email: "login@example.com", Password: "supersecret"})
	assert.NoError(t, err)

	t.Run("Unverified account cannot log in", func(t *testing.T) {
		_, _, _, err := svc.Login("login@example.com", "supersecret")
		assert.ErrorIs(t, err, ErrEmailNotVerified)
	})

	otp := lastEmailSecret(t, sender)
	_, err = svc.VerifyEmail(user.Email, otp)
	assert.NoError(t, err)

	t.Run("Correct credentials", func(t *testing.T) {
		token, loggedIn, profile, err := svc.Login("Login@Example.com", "supersecret")
		assert.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, user.ID, loggedIn.ID)
		assert.Equal(t, models.RoleCustomer, profile.Role)
	})

	t.Run("Wrong password", func(t *testing.T) {
		_, _, _, err := svc.Login("login@example.com", "wrongsecret")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("Unknown email", func(t *testing.T) {
		_, _, _, err := svc.Login("nobody@example.com", "supersecret")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("Account without profile is rejected", func(t *testing.T) {
		db.Where("user_id = ?", user.ID).Delete(&models.Profile{})
		_, _, _, err := svc.Login("login@example.com", "supersecret")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestPasswordReset(t *testing.T) {
	db := setupAccountsTestDB(t)
	sender := NewMockEmailSender()
	SetEmailSender(sender)
	defer SetEmailSender(nil)

	svc := NewAccountService(db, accountsTestConfig())
	user, _, err := svc.Signup(SignupInput{Email: "reset@example.com", Password: "oldsecret1"})
	assert.NoError(t, err)
	otp := lastEmailSecret(t, sender)
	_, err = svc.VerifyEmail(user.Email, otp)
	assert.NoError(t, err)

	t.Run("Unknown email reports success", func(t *testing.T) {
		sentBefore := len(sender.Sent)
		assert.NoError(t, svc.StartPasswordReset("nobody@example.com"))
		assert.Len(t, sender.Sent, sentBefore)
	})

	assert.NoError(t, svc.StartPasswordReset("reset@example.com"))
	token := lastEmailSecret(t, sender)

	t.Run("Bogus token fails", func(t *testing.T) {
		assert.ErrorIs(t, svc.ResetPassword("not-a-token", "newsecret1"), ErrInvalidOTP)
	})

	t.Run("Valid token replaces the password", func(t *testing.T) {
		assert.NoError(t, svc.ResetPassword(token, "newsecret1"))

		_, _, _, err := svc.Login("reset@example.com", "oldsecret1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)

		_, _, _, err = svc.Login("reset@example.com", "newsecret1")
		assert.NoError(t, err)
	})

	t.Run("Token is single use", func(t *testing.T) {
		assert.ErrorIs(t, svc.ResetPassword(token, "thirdsecret1"), ErrInvalidOTP)
	})
}
