package models

import (
	"time"

	"gorm.io/gorm"
)

// Material is an inventory item (glass sheet, MDF board, moulding, ...).
type Material struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Name            string         `gorm:"uniqueIndex;not null" json:"name"`
	Unit            string         `gorm:"not null" json:"unit"` // e.g. "sheet", "metre"
	UnitPrice       float64        `gorm:"not null" json:"unit_price"`
	QuantityInStock float64        `gorm:"not null;default:0" json:"quantity_in_stock"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Material model
func (Material) TableName() string {
	return "materials"
}

// OrderMaterial is the quantity of a material allocated to an order.
type OrderMaterial struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	OrderID           uint      `gorm:"not null;index:idx_order_material,unique" json:"order_id"`
	Order             Order     `gorm:"foreignKey:OrderID" json:"-"`
	MaterialID        uint      `gorm:"not null;index:idx_order_material,unique" json:"material_id"`
	Material          Material  `gorm:"foreignKey:MaterialID" json:"material"`
	QuantityAllocated float64   `gorm:"not null" json:"quantity_allocated"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName specifies the table name for the OrderMaterial model
func (OrderMaterial) TableName() string {
	return "order_materials"
}

// MaterialUsage is logged actual consumption against an allocation.
// Creating one decrements the material's stock in the same transaction.
type MaterialUsage struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	OrderMaterialID uint          `gorm:"not null;index" json:"order_material_id"`
	OrderMaterial   OrderMaterial `gorm:"foreignKey:OrderMaterialID" json:"-"`
	QuantityUsed    float64       `gorm:"not null" json:"quantity_used"`
	LoggedByID      uint          `gorm:"not null;index" json:"logged_by_id"`
	LoggedBy        User          `gorm:"foreignKey:LoggedByID" json:"-"`
	CreatedAt       time.Time     `json:"created_at"`
}

// TableName specifies the table name for the MaterialUsage model
func (MaterialUsage) TableName() string {
	return "material_usages"
}
