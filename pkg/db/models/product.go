package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scoopworks/creamery-backend/pkg/enums"
)

// Product is the catalog row the core touches only through the stock ledger.
// Stock applies to base products; custom products are made to order.
type Product struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	Name       string            `gorm:"column:name;not null"`
	Type       enums.ProductType `gorm:"column:type;type:text;not null;default:'base'"`
	PriceCents int               `gorm:"column:price_cents;not null"`
	Stock      int               `gorm:"column:stock;not null;default:0"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
