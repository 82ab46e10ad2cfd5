package models

import (
	"time"
)

// OrderEvent is one entry in an order's timeline: a status transition or
// another notable action, with who triggered it. The workflow service
// appends one per transition; the same payload goes out on the change
// feed.
type OrderEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OrderID    uint      `gorm:"not null;index" json:"order_id"`
	Order      Order     `gorm:"foreignKey:OrderID" json:"-"` // don't include full order in JSON
	ActorID    uint      `gorm:"not null;index" json:"actor_id"`
	Actor      User      `gorm:"foreignKey:ActorID" json:"actor"`
	Type       string    `gorm:"not null" json:"type"` // e.g. "assigned", "draft_submitted"
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	Detail     string    `gorm:"type:text" json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for the OrderEvent model
func (OrderEvent) TableName() string {
	return "order_events"
}
