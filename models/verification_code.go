package models

import (
	"time"
)

// Purposes a VerificationCode can be issued for.
const (
	PurposeEmailVerify   = "email_verify"
	PurposePasswordReset = "password_reset"
)

// VerificationCode is a short-lived emailed secret: the 6-digit OTP sent
// after signup, or the password-reset token. Stored hashed, with an
// expiry and an attempt counter.
type VerificationCode struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"index;not null" json:"user_id"`
	User       User       `gorm:"foreignKey:UserID" json:"-"`
	CodeHash   string     `gorm:"index;not null" json:"-"`
	Purpose    string     `gorm:"not null" json:"purpose"` // "email_verify" or "password_reset"
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	Attempts   int        `gorm:"not null;default:0" json:"attempts"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TableName specifies the table name for the VerificationCode model
func (VerificationCode) TableName() string {
	return "verification_codes"
}

// Usable reports whether the code can still be presented: not consumed,
// not expired, not locked out by too many wrong attempts.
func (v *VerificationCode) Usable(now time.Time, maxAttempts int) bool {
	return v.ConsumedAt == nil && now.Before(v.ExpiresAt) && v.Attempts < maxAttempts
}
