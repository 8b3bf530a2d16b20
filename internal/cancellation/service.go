package cancellation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/scoopworks/creamery-backend/internal/orders"
	"github.com/scoopworks/creamery-backend/internal/points"
	"github.com/scoopworks/creamery-backend/internal/stock"
	"github.com/scoopworks/creamery-backend/pkg/db/models"
	"github.com/scoopworks/creamery-backend/pkg/enums"
	pkgerrors "github.com/scoopworks/creamery-backend/pkg/errors"
	"github.com/scoopworks/creamery-backend/pkg/logger"
	"github.com/scoopworks/creamery-backend/pkg/metrics"
)

// penaltyByStatus maps the order status at cancel time to the share of
// the total withheld from the refund.
var penaltyByStatus = map[enums.OrderStatus]decimal.Decimal{
	enums.OrderStatusPending:   decimal.Zero,
	enums.OrderStatusPreparing: decimal.NewFromFloat(0.25),
	enums.OrderStatusEnRoute:   decimal.NewFromFloat(0.50),
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Result reports the financial outcome of a cancellation.
type Result struct {
	Order          *models.Order `json:"order"`
	PenaltyPercent int           `json:"penalty_percent"`
	PenaltyCents   int           `json:"penalty_cents"`
	RefundCents    int           `json:"refund_cents"`
}

// Service cancels orders with a status-tiered penalty and reverses
// their stock and points side effects.
type Service interface {
	Cancel(ctx context.Context, orderID, actorUserID uuid.UUID) (*Result, error)
	Compensate(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

type service struct {
	ordersRepo orders.Repository
	pointsSvc  points.Service
	runner     txRunner
	logger     *logger.Logger
}

// NewService wires the cancellation service.
func NewService(ordersRepo orders.Repository, pointsSvc points.Service, runner txRunner, logg *logger.Logger) (Service, error) {
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if pointsSvc == nil {
		return nil, fmt.Errorf("points service required")
	}
	if runner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		ordersRepo: ordersRepo,
		pointsSvc:  pointsSvc,
		runner:     runner,
		logger:     logg,
	}, nil
}

// Cancel moves the order to cancelled, withholding a penalty that grows
// as fulfilment progresses: nothing while pending, a quarter while
// preparing, half once en route. Delivered and already-cancelled orders
// are immutable.
func (s *service) Cancel(ctx context.Context, orderID, actorUserID uuid.UUID) (*Result, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if actorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor user id is required")
	}

	ctx = s.logger.WithOrderID(ctx, orderID.String())

	var result *Result
	var priorStatus enums.OrderStatus
	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.ordersRepo.WithTx(tx)

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != actorUserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
		}
		if order.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is in a terminal state").
				WithDetails(map[string]any{"status": order.Status})
		}
		priorStatus = order.Status

		pct, ok := penaltyByStatus[order.Status]
		if !ok {
			pct = decimal.Zero
		}
		penaltyCents := int(decimal.New(int64(order.TotalCents), 0).Mul(pct).Floor().IntPart())
		refundCents := order.TotalCents - penaltyCents
		percent := int(pct.Mul(decimal.NewFromInt(100)).IntPart())

		now := time.Now()
		if err := repo.UpdateStatus(ctx, order.ID, enums.OrderStatusCancelled, &now); err != nil {
			return err
		}

		note := fmt.Sprintf("cancelled from %s with %d%% penalty (%d cents withheld, %d cents refunded)",
			order.Status, percent, penaltyCents, refundCents)
		if err := repo.AppendStatusHistory(ctx, &models.OrderStatusEntry{
			OrderID: order.ID,
			Status:  enums.OrderStatusCancelled,
			Note:    note,
		}); err != nil {
			return err
		}

		if err := s.Compensate(ctx, tx, order); err != nil {
			s.logger.Error(ctx, "cancellation.compensation_failed", err)
		}

		result = &Result{
			PenaltyPercent: percent,
			PenaltyCents:   penaltyCents,
			RefundCents:    refundCents,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.CancellationTotal.WithLabelValues(priorStatus.String()).Inc()
	metrics.PenaltyCentsTotal.Add(float64(result.PenaltyCents))

	order, err := s.ordersRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	result.Order = order
	return result, nil
}

// Compensate reverses the order's side effects: the points ledger is
// refunded, stock returns for every base product line, and the captured
// payment moves to refunded. Both the user-facing cancel and the
// operator status path call this, so the two never diverge.
func (s *service) Compensate(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	repo := s.ordersRepo.WithTx(tx)

	// reload when the caller did not bring items along
	if len(order.Items) == 0 {
		fresh, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return err
		}
		order = fresh
	}

	if _, err := s.pointsSvc.RefundForOrder(ctx, tx, order.ID); err != nil {
		return fmt.Errorf("refunding points: %w", err)
	}

	var restores []stock.ReservationRequest
	for _, item := range order.Items {
		if item.ProductType != enums.ProductTypeBase {
			continue
		}
		restores = append(restores, stock.ReservationRequest{
			ProductID: item.ProductID,
			Qty:       item.Quantity,
		})
	}
	if len(restores) > 0 {
		if err := stock.Restore(ctx, tx, restores); err != nil {
			return fmt.Errorf("restoring stock: %w", err)
		}
	}

	payment, err := repo.FindPaymentByOrder(ctx, order.ID)
	if err != nil {
		return err
	}
	if payment != nil && payment.Status == enums.PaymentStatusCompleted {
		if err := repo.UpdatePaymentStatus(ctx, order.ID, enums.PaymentStatusRefunded); err != nil {
			return fmt.Errorf("marking payment refunded: %w", err)
		}
	}
	return nil
}
