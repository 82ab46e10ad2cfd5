package models

import (
	"time"
)

// RegistrationCode is a one-time, role-scoped secret required to sign up
// as worker or admin. Only the SHA-256 hash of the code is stored; the
// plaintext is shown to the generating admin exactly once.
type RegistrationCode struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	CodeHash  string     `gorm:"uniqueIndex;not null" json:"-"`
	Role      string     `gorm:"not null" json:"role"` // "worker" or "admin"
	Used      bool       `gorm:"not null;default:false" json:"used"`
	UsedByID  *uint      `gorm:"index" json:"used_by_id,omitempty"`
	UsedBy    *User      `gorm:"foreignKey:UsedByID" json:"-"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName specifies the table name for the RegistrationCode model
func (RegistrationCode) TableName() string {
	return "registration_codes"
}
