package models

import (
	"time"

	"gorm.io/gorm"
)

// Role values stored on profiles. "worker" is canonical; the legacy
// "employer" spelling is normalized on input and never stored.
const (
	RoleCustomer = "customer"
	RoleWorker   = "worker"
	RoleAdmin    = "admin"
)

// Profile is the application-side view of a user. It is the source of
// truth for the role; the email_verified flag mirrors the User row and is
// reconciled on login (the User row wins for verification).
type Profile struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	UserID        uint           `gorm:"uniqueIndex;not null" json:"user_id"`
	User          User           `gorm:"foreignKey:UserID" json:"-"`
	Name          string         `gorm:"not null" json:"name"`
	Role          string         `gorm:"not null;default:'customer'" json:"role"` // "customer", "worker" or "admin"
	EmailVerified bool           `gorm:"not null;default:false" json:"email_verified"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Profile model
func (Profile) TableName() string {
	return "profiles"
}

// NormalizeRole maps legacy role spellings onto the canonical set.
// "employer" was used interchangeably with "worker" in older clients.
func NormalizeRole(role string) string {
	if role == "employer" {
		return RoleWorker
	}
	return role
}

// IsValidRole reports whether role is one of the canonical roles after
// normalization.
func IsValidRole(role string) bool {
	switch NormalizeRole(role) {
	case RoleCustomer, RoleWorker, RoleAdmin:
		return true
	}
	return false
}
