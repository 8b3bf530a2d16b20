package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scoopworks/creamery-backend/pkg/enums"
)

// PointTransaction is one row of the append-only loyalty ledger. Points
// are signed: earned rows are positive, redeemed rows negative. Reversal
// rows written by refunds keep the same convention.
type PointTransaction struct {
	ID        uuid.UUID                  `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID                  `gorm:"column:user_id;type:uuid;not null;index"`
	OrderID   *uuid.UUID                 `gorm:"column:order_id;type:uuid;index"`
	Type      enums.PointTransactionType `gorm:"column:type;type:text;not null"`
	Points    int                        `gorm:"column:points;not null"`
	Reason    string                     `gorm:"column:reason;not null"`
	Reversal  bool                       `gorm:"column:reversal;not null;default:false"`
	ExpiresAt *time.Time                 `gorm:"column:expires_at"`
	CreatedAt time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (p *PointTransaction) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
