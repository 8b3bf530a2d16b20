package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scoopworks/creamery-backend/pkg/enums"
)

// CartItem snapshots the unit price at add time, already membership
// discounted. Subtotal is unit price times quantity.
type CartItem struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	CartID         uuid.UUID         `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID      uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	ProductType    enums.ProductType `gorm:"column:product_type;type:text;not null"`
	ProductName    string            `gorm:"column:product_name;not null"`
	Quantity       int               `gorm:"column:quantity;not null"`
	UnitPriceCents int               `gorm:"column:unit_price_cents;not null"`
	SubtotalCents  int               `gorm:"column:subtotal_cents;not null"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *CartItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
