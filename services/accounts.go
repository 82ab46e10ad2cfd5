package services

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/framecraft-studio/framecraft-api/config"
	"github.com/framecraft-studio/framecraft-api/models"
)

const (
	// OTPLength is the number of digits in an emailed verification code.
	OTPLength = 6
	// OTPTTL is how long a verification code stays valid.
	OTPTTL = 15 * time.Minute
	// OTPMaxAttempts locks a code after this many wrong guesses.
	OTPMaxAttempts = 5
	// ResetTokenTTL is how long a password reset token stays valid.
	ResetTokenTTL = time.Hour
)

var (
	// ErrInvalidCredentials covers unknown email and wrong password alike.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrEmailNotVerified is returned on login before the OTP step is done.
	ErrEmailNotVerified = errors.New("email address is not verified")

	// ErrEmailTaken is returned when signing up with an existing email.
	ErrEmailTaken = errors.New("an account with this email already exists")

	// ErrInvalidOTP covers expired, consumed, locked and wrong codes.
	ErrInvalidOTP = errors.New("verification code is invalid or expired")
)

// AccountService owns signup, login, email verification and password
// reset. Signup is the one place a registration code is consumed, and it
// happens in the same transaction that creates the account.
type AccountService struct {
	db  *gorm.DB
	cfg *config.Config
}

// NewAccountService creates an AccountService.
func NewAccountService(db *gorm.DB, cfg *config.Config) *AccountService {
	return &AccountService{db: db, cfg: cfg}
}

// SignupInput is what the signup endpoint collects.
type SignupInput struct {
	Email            string
	Password         string
	Name             string
	Role             string
	RegistrationCode string
}

// Signup creates the user row, the profile row and, for worker/admin
// signups, consumes the registration code in one transaction, so a
// failure at any step leaves nothing behind. The verification OTP is
// created and emailed after commit.
func (s *AccountService) Signup(input SignupInput) (*models.User, *models.Profile, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	role := models.NormalizeRole(strings.TrimSpace(input.Role))
	if role == "" {
		role = models.RoleCustomer
	}
	if !models.IsValidRole(role) {
		return nil, nil, fmt.Errorf("invalid role %q", input.Role)
	}
	if len(input.Password) < 8 {
		return nil, nil, fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var user models.User
	var profile models.Profile
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Worker and admin accounts are gated on a role-scoped code.
		var code *models.RegistrationCode
		if role != models.RoleCustomer {
			code, err = validateCode(tx, input.RegistrationCode, role)
			if err != nil {
				return err
			}
		}

		var existing int64
		if err := tx.Model(&models.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrEmailTaken
		}

		user = models.User{
			Email:        email,
			PasswordHash: string(hash),
		}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}

		profile = models.Profile{
			UserID: user.ID,
			Name:   strings.TrimSpace(input.Name),
			Role:   role,
		}
		if err := tx.Create(&profile).Error; err != nil {
			return err
		}

		if code != nil {
			return Consume(tx, code.ID, user.ID)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// Verification mail is best effort; the user can request a resend.
	if err := s.SendVerificationCode(&user); err != nil {
		log.Warnf("Failed to send verification code to %s: %v", user.Email, err)
	}

	return &user, &profile, nil
}

// SendVerificationCode issues a fresh OTP for the user and emails it.
// Previous unconsumed codes are invalidated.
func (s *AccountService) SendVerificationCode(user *models.User) error {
	otp, err := generateOTP()
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND purpose = ? AND consumed_at IS NULL", user.ID, models.PurposeEmailVerify).
			Delete(&models.VerificationCode{}).Error; err != nil {
			return err
		}
		record := models.VerificationCode{
			UserID:    user.ID,
			CodeHash:  HashCode(otp),
			Purpose:   models.PurposeEmailVerify,
			ExpiresAt: time.Now().Add(OTPTTL),
		}
		return tx.Create(&record).Error
	})
	if err != nil {
		return err
	}

	sender := GetEmailSender()
	if sender == nil {
		return fmt.Errorf("email sender not configured")
	}
	body := fmt.Sprintf("<p>Your Framecraft verification code is <b>%s</b>. It expires in %d minutes.</p>",
		otp, int(OTPTTL.Minutes()))
	return sender.SendEmail(user.Email, "Verify your email", body)
}

// VerifyEmail checks the OTP and, on success, marks both the user row and
// the profile row verified in one transaction and returns a session
// token.
func (s *AccountService) VerifyEmail(email, otp string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidOTP
		}
		return "", err
	}

	var record models.VerificationCode
	if err := s.db.Where("user_id = ? AND purpose = ? AND consumed_at IS NULL", user.ID, models.PurposeEmailVerify).
		Order("created_at DESC").First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidOTP
		}
		return "", err
	}

	if !record.Usable(time.Now(), OTPMaxAttempts) {
		return "", ErrInvalidOTP
	}
	if record.CodeHash != HashCode(otp) {
		// The failed guess must be counted even though the call errors,
		// so it is written outside the verification transaction below.
		if err := s.db.Model(&record).Update("attempts", gorm.Expr("attempts + 1")).Error; err != nil {
			return "", err
		}
		return "", ErrInvalidOTP
	}

	var profile models.Profile
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Guarded consume: a concurrent verify of the same code loses.
		now := time.Now()
		res := tx.Model(&models.VerificationCode{}).
			Where("id = ? AND consumed_at IS NULL", record.ID).
			Update("consumed_at", &now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidOTP
		}
		if err := tx.Model(&user).Update("email_verified", true).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).First(&profile).Error; err != nil {
			return err
		}
		return tx.Model(&profile).Update("email_verified", true).Error
	})
	if err != nil {
		return "", err
	}

	user.EmailVerified = true
	profile.EmailVerified = true
	return IssueSessionToken(s.cfg, &user, &profile)
}

// Login checks credentials and returns a session token. The password is
// checked first, so only a caller holding valid credentials learns that
// the account is unverified.
func (s *AccountService) Login(email, password string) (string, *models.User, *models.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, nil, ErrInvalidCredentials
		}
		return "", nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, nil, ErrInvalidCredentials
	}

	if !user.EmailVerified {
		return "", nil, nil, ErrEmailNotVerified
	}

	var profile models.Profile
	if err := s.db.Where("user_id = ?", user.ID).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// Ghost account: credentials exist but the profile is gone.
			return "", nil, nil, ErrInvalidCredentials
		}
		return "", nil, nil, err
	}

	token, err := IssueSessionToken(s.cfg, &user, &profile)
	if err != nil {
		return "", nil, nil, err
	}
	return token, &user, &profile, nil
}

// StartPasswordReset issues a reset token and emails it. It reports
// success for unknown emails too, so the endpoint cannot be used to
// enumerate accounts.
func (s *AccountService) StartPasswordReset(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.db.Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	token, err := generateResetToken()
	if err != nil {
		return err
	}

	record := models.VerificationCode{
		UserID:    user.ID,
		CodeHash:  HashCode(token),
		Purpose:   models.PurposePasswordReset,
		ExpiresAt: time.Now().Add(ResetTokenTTL),
	}
	if err := s.db.Create(&record).Error; err != nil {
		return err
	}

	sender := GetEmailSender()
	if sender == nil {
		return fmt.Errorf("email sender not configured")
	}
	body := fmt.Sprintf("<p>Use this token to reset your Framecraft password: <b>%s</b>. It expires in %d minutes.</p>",
		token, int(ResetTokenTTL.Minutes()))
	return sender.SendEmail(user.Email, "Reset your password", body)
}

// ResetPassword consumes a reset token and replaces the password hash in
// one transaction.
func (s *AccountService) ResetPassword(token, newPassword string) error {
	if len(newPassword) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		var record models.VerificationCode
		err := tx.Where("code_hash = ? AND purpose = ? AND consumed_at IS NULL", HashCode(token), models.PurposePasswordReset).
			First(&record).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidOTP
			}
			return err
		}
		if !record.Usable(time.Now(), OTPMaxAttempts) {
			return ErrInvalidOTP
		}

		now := time.Now()
		if err := tx.Model(&record).Update("consumed_at", &now).Error; err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", record.UserID).
			Update("password_hash", string(hash)).Error
	})
}

// generateOTP returns a random 6-digit numeric code.
func generateOTP() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < OTPLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}
	return fmt.Sprintf("%0*d", OTPLength, n), nil
}

// generateResetToken returns a URL-safe random token.
func generateResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
