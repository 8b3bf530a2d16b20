package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scoopworks/creamery-backend/pkg/enums"
)

// Order is immutable once created except for status, the assigned
// delivery person, and total corrections on cancellation.
// (user_id, remote_payment_ref) carries a unique index: it is the
// idempotency key for the whole checkout.
type Order struct {
	ID                  uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	UserID              uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index;uniqueIndex:idx_orders_user_payment_ref"`
	AddressID           uuid.UUID          `gorm:"column:address_id;type:uuid;not null"`
	RemotePaymentRef    string             `gorm:"column:remote_payment_ref;not null;uniqueIndex:idx_orders_user_payment_ref"`
	RemoteTransactionID string             `gorm:"column:remote_transaction_id;not null"`
	Status              enums.OrderStatus  `gorm:"column:status;type:text;not null;default:'pending'"`
	SubtotalCents       int                `gorm:"column:subtotal_cents;not null"`
	ShippingCents       int                `gorm:"column:shipping_cents;not null"`
	PointsDiscountCents int                `gorm:"column:points_discount_cents;not null;default:0"`
	TotalCents          int                `gorm:"column:total_cents;not null"`
	DeliveryPersonID    *uuid.UUID         `gorm:"column:delivery_person_id;type:uuid"`
	CancelledAt         *time.Time         `gorm:"column:cancelled_at"`
	Items               []OrderItem        `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	StatusHistory       []OrderStatusEntry `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt           time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
