package models

import (
	"time"

	"gorm.io/gorm"
)

// Draft review states.
const (
	DraftStatusSubmitted = "submitted"
	DraftStatusApproved  = "approved"
	DraftStatusRejected  = "rejected"
)

// Draft is a worker's submitted proof-of-completion artifact awaiting
// admin review. FileKey points at the stored upload; FileURL is computed
// per response and never persisted.
type Draft struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	OrderID    uint           `gorm:"not null;index" json:"order_id"`
	Order      Order          `gorm:"foreignKey:OrderID" json:"-"`
	WorkerID   uint           `gorm:"not null;index" json:"worker_id"`
	Worker     User           `gorm:"foreignKey:WorkerID" json:"-"`
	FileKey    string         `gorm:"not null" json:"file_key"`
	FileURL    string         `gorm:"-" json:"file_url,omitempty"` // computed, presigned or local URL
	Note       string         `json:"note"`
	Status     string         `gorm:"not null;default:'submitted'" json:"status"`
	ReviewNote string         `json:"review_note"`
	ReviewedAt *time.Time     `json:"reviewed_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Draft model
func (Draft) TableName() string {
	return "drafts"
}
