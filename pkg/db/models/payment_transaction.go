package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scoopworks/creamery-backend/pkg/enums"
)

// PaymentTransaction records one captured gateway payment, keyed by the
// remote payment reference.
type PaymentTransaction struct {
	ID                  uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID             uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	UserID              uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	RemotePaymentRef    string              `gorm:"column:remote_payment_ref;not null;uniqueIndex"`
	RemoteTransactionID string              `gorm:"column:remote_transaction_id;not null"`
	AmountCents         int                 `gorm:"column:amount_cents;not null"`
	Status              enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'completed'"`
	CreatedAt           time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PaymentTransaction) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
