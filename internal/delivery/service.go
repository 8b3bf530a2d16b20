package delivery

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scoopworks/creamery-backend/pkg/db/models"
	"github.com/scoopworks/creamery-backend/pkg/enums"
	pkgerrors "github.com/scoopworks/creamery-backend/pkg/errors"
)

// activeStatuses are the order states that count toward a driver's load.
var activeStatuses = []enums.OrderStatus{
	enums.OrderStatusPending,
	enums.OrderStatusPreparing,
	enums.OrderStatusEnRoute,
}

// DriverWorkload is the reporting view of one driver's open orders.
type DriverWorkload struct {
	DeliveryPerson models.DeliveryPerson `json:"delivery_person"`
	ActiveOrders   int                   `json:"active_orders"`
}

// Service assigns orders to the in-house driver pool.
type Service interface {
	// AssignDeliveryPerson picks the available driver with the fewest
	// active orders and binds them to the order. Returns nil when no
	// driver is available; an empty pool is not an error.
	AssignDeliveryPerson(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.DeliveryPerson, error)
	Workload(ctx context.Context) ([]DriverWorkload, error)
}

type service struct {
	db *gorm.DB
}

// NewService wires the delivery assignment service.
func NewService(db *gorm.DB) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle required")
	}
	return &service{db: db}, nil
}

func (s *service) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

func (s *service) AssignDeliveryPerson(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.DeliveryPerson, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	db := s.handle(tx)

	driver, err := s.leastLoaded(ctx, db)
	if err != nil {
		return nil, err
	}
	if driver == nil {
		return nil, nil
	}

	if err := db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		UpdateColumn("delivery_person_id", driver.ID).Error; err != nil {
		return nil, err
	}
	return driver, nil
}

// leastLoaded returns the available driver with the fewest orders in an
// active status, breaking ties by name for determinism.
func (s *service) leastLoaded(ctx context.Context, db *gorm.DB) (*models.DeliveryPerson, error) {
	var drivers []models.DeliveryPerson
	if err := db.WithContext(ctx).
		Where("available = ?", true).
		Order("name ASC").
		Find(&drivers).Error; err != nil {
		return nil, err
	}
	if len(drivers) == 0 {
		return nil, nil
	}

	var best *models.DeliveryPerson
	bestLoad := 0
	for i := range drivers {
		load, err := s.activeLoad(ctx, db, drivers[i].ID)
		if err != nil {
			return nil, err
		}
		if best == nil || load < bestLoad {
			best = &drivers[i]
			bestLoad = load
		}
	}
	return best, nil
}

func (s *service) activeLoad(ctx context.Context, db *gorm.DB, driverID uuid.UUID) (int, error) {
	var count int64
	if err := db.WithContext(ctx).
		Model(&models.Order{}).
		Where("delivery_person_id = ? AND status IN ?", driverID, activeStatuses).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *service) Workload(ctx context.Context) ([]DriverWorkload, error) {
	var drivers []models.DeliveryPerson
	if err := s.db.WithContext(ctx).
		Order("name ASC").
		Find(&drivers).Error; err != nil {
		return nil, err
	}

	workloads := make([]DriverWorkload, 0, len(drivers))
	for _, driver := range drivers {
		load, err := s.activeLoad(ctx, s.db, driver.ID)
		if err != nil {
			return nil, err
		}
		workloads = append(workloads, DriverWorkload{DeliveryPerson: driver, ActiveOrders: load})
	}
	return workloads, nil
}
