package models

import (
	"time"

	"gorm.io/gorm"
)

// Order lifecycle states. Transitions happen only through the workflow
// service, which keeps the job card in step inside the same transaction.
const (
	OrderStatusPending        = "pending"
	OrderStatusAssigned       = "assigned"
	OrderStatusInProgress     = "in_progress"
	OrderStatusDraftSubmitted = "draft_submitted"
	OrderStatusCompleted      = "completed"
	OrderStatusCancelled      = "cancelled"
	OrderStatusDelayed        = "delayed"
)

// Order represents a custom framing order in the system
type Order struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	OrderNumber string         `gorm:"uniqueIndex;not null" json:"order_number"`
	Description string         `gorm:"not null" json:"description"`
	FrameStyle  string         `gorm:"not null" json:"frame_style"`
	WidthCM     float64        `gorm:"not null" json:"width_cm"`
	HeightCM    float64        `gorm:"not null" json:"height_cm"`
	Deadline    string         `gorm:"not null;default:'standard'" json:"deadline"` // standard, express, custom
	Cost        float64        `gorm:"not null" json:"cost"`
	Status      string         `gorm:"not null;default:'pending'" json:"status"`
	Version     int            `gorm:"not null;default:0" json:"version"` // optimistic concurrency token
	CustomerID  uint           `gorm:"not null;index" json:"customer_id"`
	Customer    User           `gorm:"foreignKey:CustomerID" json:"-"`
	WorkerID    *uint          `gorm:"index" json:"worker_id"` // nullable, set on assignment
	Worker      *User          `gorm:"foreignKey:WorkerID" json:"-"`
	DeadlineAt  *time.Time     `json:"deadline_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// Terminal reports whether the order can no longer transition.
func (o *Order) Terminal() bool {
	return o.Status == OrderStatusCompleted || o.Status == OrderStatusCancelled
}
