package stock

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scoopworks/creamery-backend/pkg/db/models"
	pkgerrors "github.com/scoopworks/creamery-backend/pkg/errors"
)

// ReservationRequest asks to take qty units of one base product.
type ReservationRequest struct {
	ProductID uuid.UUID
	Qty       int
}

// Reserve decrements stock for each request with a guarded update, so
// concurrent checkouts never oversell. It runs on the caller's
// transaction handle; the first insufficient product aborts with
// CodeInsufficientStock and the caller is expected to roll back.
func Reserve(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) error {
	for _, req := range requests {
		if req.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
		}
		if req.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "reservation qty must be positive")
		}

		result := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ? AND stock >= ?", req.ProductID, req.Qty).
			UpdateColumn("stock", gorm.Expr("stock - ?", req.Qty))
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var product models.Product
			err := tx.WithContext(ctx).First(&product, "id = ?", req.ProductID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
					WithDetails(map[string]any{"product_id": req.ProductID})
			}
			if err != nil {
				return err
			}
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "not enough stock").
				WithDetails(map[string]any{
					"product_id": req.ProductID,
					"requested":  req.Qty,
					"available":  product.Stock,
				})
		}
	}
	return nil
}

// Restore returns previously reserved units to stock, used when an
// order is cancelled.
func Restore(ctx context.Context, tx *gorm.DB, requests []ReservationRequest) error {
	for _, req := range requests {
		if req.ProductID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
		}
		if req.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "restore qty must be positive")
		}

		if err := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ?", req.ProductID).
			UpdateColumn("stock", gorm.Expr("stock + ?", req.Qty)).Error; err != nil {
			return err
		}
	}
	return nil
}
