package models

import (
	"time"

	"gorm.io/gorm"
)

// Job card states. These drive the production dashboards; the workflow
// service is the only writer and always updates the owning order in the
// same transaction.
const (
	JobCardStatusAssigned         = "assigned"
	JobCardStatusInProgress       = "in_progress"
	JobCardStatusWaitingMaterials = "waiting_materials"
	JobCardStatusCompleted        = "completed"
)

// JobCard is the production-tracking record for an order once a worker
// is assigned. At most one exists per order (upsert on order_id).
type JobCard struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	OrderID       uint           `gorm:"uniqueIndex;not null" json:"order_id"`
	Order         Order          `gorm:"foreignKey:OrderID" json:"-"`
	WorkerID      uint           `gorm:"not null;index" json:"worker_id"`
	Worker        User           `gorm:"foreignKey:WorkerID" json:"-"`
	Status        string         `gorm:"not null;default:'assigned'" json:"status"`
	MinutesLogged int            `gorm:"not null;default:0" json:"minutes_logged"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the JobCard model
func (JobCard) TableName() string {
	return "job_cards"
}
