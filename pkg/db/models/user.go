package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scoopworks/creamery-backend/pkg/enums"
)

// User carries the membership tier and the authoritative points balance.
// Points are mutated only by the points ledger operations.
type User struct {
	ID        uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	Email     string               `gorm:"column:email;type:text;not null;uniqueIndex"`
	Name      string               `gorm:"column:name;not null"`
	Role      enums.UserRole       `gorm:"column:role;type:text;not null;default:'customer'"`
	Tier      enums.MembershipTier `gorm:"column:tier;type:text;not null;default:'classic'"`
	Points    int                  `gorm:"column:points;not null;default:0"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
