package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scoopworks/creamery-backend/internal/cart"
	"github.com/scoopworks/creamery-backend/internal/delivery"
	"github.com/scoopworks/creamery-backend/internal/orders"
	"github.com/scoopworks/creamery-backend/internal/points"
	"github.com/scoopworks/creamery-backend/internal/stock"
	"github.com/scoopworks/creamery-backend/internal/users"
	"github.com/scoopworks/creamery-backend/pkg/config"
	"github.com/scoopworks/creamery-backend/pkg/db"
	"github.com/scoopworks/creamery-backend/pkg/db/models"
	"github.com/scoopworks/creamery-backend/pkg/enums"
	pkgerrors "github.com/scoopworks/creamery-backend/pkg/errors"
	"github.com/scoopworks/creamery-backend/pkg/logger"
	"github.com/scoopworks/creamery-backend/pkg/metrics"
)

// pointCents is the redemption value of one point.
const pointCents = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Input is the checkout request after the gateway capture succeeded.
type Input struct {
	AddressID           uuid.UUID
	RemotePaymentRef    string
	RemoteTransactionID string
	PointsToRedeem      int
}

// PointsInfo reports the loyalty outcome of a checkout.
type PointsInfo struct {
	Redeemed             int `json:"redeemed"`
	DiscountAppliedCents int `json:"discount_applied_cents"`
	Earned               int `json:"earned"`
	NewBalance           int `json:"new_balance"`
}

// DeliveryInfo reports the driver assignment outcome.
type DeliveryInfo struct {
	Assigned       bool                   `json:"assigned"`
	DeliveryPerson *models.DeliveryPerson `json:"delivery_person,omitempty"`
}

// Result is the full checkout response payload.
type Result struct {
	Order            *models.Order              `json:"order"`
	Transaction      *models.PaymentTransaction `json:"transaction"`
	PointsInfo       PointsInfo                 `json:"points_info"`
	DeliveryInfo     DeliveryInfo               `json:"delivery_info"`
	AlreadyProcessed bool                       `json:"already_processed"`
}

// Service converts the user's cart into a durable paid order.
type Service interface {
	Execute(ctx context.Context, userID uuid.UUID, input Input) (*Result, error)
}

type service struct {
	cartRepo    cart.Repository
	ordersRepo  orders.Repository
	usersRepo   users.Repository
	pointsSvc   points.Service
	deliverySvc delivery.Service
	runner      txRunner
	logger      *logger.Logger
	cfg         config.CheckoutConfig
}

// NewService wires the checkout orchestrator.
func NewService(
	cartRepo cart.Repository,
	ordersRepo orders.Repository,
	usersRepo users.Repository,
	pointsSvc points.Service,
	deliverySvc delivery.Service,
	runner txRunner,
	logg *logger.Logger,
	cfg config.CheckoutConfig,
) (Service, error) {
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if usersRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if pointsSvc == nil {
		return nil, fmt.Errorf("points service required")
	}
	if deliverySvc == nil {
		return nil, fmt.Errorf("delivery service required")
	}
	if runner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		cartRepo:    cartRepo,
		ordersRepo:  ordersRepo,
		usersRepo:   usersRepo,
		pointsSvc:   pointsSvc,
		deliverySvc: deliverySvc,
		runner:      runner,
		logger:      logg,
		cfg:         cfg,
	}, nil
}

// Execute runs the checkout saga. The payment is already captured by
// the caller, so every failure path here must either commit a
// consistent order or leave the database untouched. All writes share
// one transaction; a stock shortage discovered at commit time rolls the
// whole order back. Driver assignment and points earn are best-effort
// and never abort a committed checkout. Points redeem honors the
// configured strict mode.
func (s *service) Execute(ctx context.Context, userID uuid.UUID, input Input) (*Result, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.RemotePaymentRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "remote payment ref is required")
	}
	if input.PointsToRedeem < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "points to redeem must not be negative")
	}

	ctx = s.logger.WithUserID(ctx, userID.String())
	started := time.Now()

	// Replay: an order for this payment ref means a previous attempt
	// already committed. Return it unchanged.
	existing, err := s.ordersRepo.FindByUserAndPaymentRef(ctx, userID, input.RemotePaymentRef)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		metrics.CheckoutReplayTotal.Inc()
		metrics.CheckoutTotal.WithLabelValues(metrics.OutcomeReplay).Inc()
		return s.replayResult(ctx, existing)
	}

	user, err := s.usersRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	record, err := s.cartRepo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record == nil || len(record.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart has no items")
	}

	subtotalCents := 0
	for _, item := range record.Items {
		subtotalCents += item.SubtotalCents
	}
	totalWithShipping := subtotalCents + s.cfg.ShippingFeeCents

	// Points validation happens before any write so the failure needs
	// no rollback. One point is one currency unit; the discount never
	// exceeds the order value.
	discountCents := 0
	if input.PointsToRedeem > 0 {
		if user.Points < input.PointsToRedeem {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientPoints, "not enough points").
				WithDetails(map[string]any{
					"requested": input.PointsToRedeem,
					"available": user.Points,
				})
		}
		discountCents = input.PointsToRedeem * pointCents
		if discountCents > totalWithShipping {
			discountCents = totalWithShipping
		}
	}

	finalTotal := totalWithShipping - discountCents
	if finalTotal < 0 {
		finalTotal = 0
	}

	var (
		order       *models.Order
		transaction *models.PaymentTransaction
		pointsInfo  PointsInfo
		deliverInfo DeliveryInfo
	)

	txErr := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.ordersRepo.WithTx(tx)

		order = &models.Order{
			UserID:              userID,
			AddressID:           input.AddressID,
			RemotePaymentRef:    input.RemotePaymentRef,
			RemoteTransactionID: input.RemoteTransactionID,
			Status:              enums.OrderStatusPending,
			SubtotalCents:       subtotalCents,
			ShippingCents:       s.cfg.ShippingFeeCents,
			PointsDiscountCents: discountCents,
			TotalCents:          finalTotal,
		}
		if err := ordersRepo.Create(ctx, order); err != nil {
			if db.IsDuplicateKey(err) {
				return errDuplicateOrder
			}
			return err
		}

		items := make([]models.OrderItem, 0, len(record.Items))
		var reservations []stock.ReservationRequest
		for _, line := range record.Items {
			items = append(items, models.OrderItem{
				OrderID:        order.ID,
				ProductID:      line.ProductID,
				ProductType:    line.ProductType,
				ProductName:    line.ProductName,
				Quantity:       line.Quantity,
				UnitPriceCents: line.UnitPriceCents,
				SubtotalCents:  line.SubtotalCents,
			})
			if line.ProductType == enums.ProductTypeBase {
				reservations = append(reservations, stock.ReservationRequest{
					ProductID: line.ProductID,
					Qty:       line.Quantity,
				})
			}
		}
		if err := ordersRepo.CreateItems(ctx, items); err != nil {
			return err
		}

		// best-effort: an empty driver pool or an assignment failure
		// never blocks the order
		driver, err := s.deliverySvc.AssignDeliveryPerson(ctx, tx, order.ID)
		if err != nil {
			s.logger.Error(ctx, "checkout.delivery_assignment_failed", err)
		} else if driver != nil {
			deliverInfo = DeliveryInfo{Assigned: true, DeliveryPerson: driver}
			order.DeliveryPersonID = &driver.ID
		}

		transaction = &models.PaymentTransaction{
			OrderID:             order.ID,
			UserID:              userID,
			RemotePaymentRef:    input.RemotePaymentRef,
			RemoteTransactionID: input.RemoteTransactionID,
			AmountCents:         finalTotal,
			Status:              enums.PaymentStatusCompleted,
		}
		if err := ordersRepo.CreatePaymentTransaction(ctx, transaction); err != nil {
			return err
		}

		if err := stock.Reserve(ctx, tx, reservations); err != nil {
			return err
		}

		if input.PointsToRedeem > 0 {
			orderID := order.ID
			if _, err := s.pointsSvc.Redeem(ctx, tx, points.RedeemInput{
				UserID:  userID,
				OrderID: &orderID,
				Points:  input.PointsToRedeem,
				Reason:  "checkout discount",
			}); err != nil {
				if s.cfg.PointsStrict {
					return err
				}
				s.logger.Error(ctx, "checkout.points_redeem_failed", err)
			} else {
				pointsInfo.Redeemed = input.PointsToRedeem
				pointsInfo.DiscountAppliedCents = discountCents
			}
		}

		earned := points.PointsFor(finalTotal, user.Tier)
		if earned > 0 {
			orderID := order.ID
			if _, err := s.pointsSvc.Earn(ctx, tx, points.EarnInput{
				UserID:  userID,
				OrderID: &orderID,
				Points:  earned,
				Reason:  "purchase reward",
			}); err != nil {
				s.logger.Error(ctx, "checkout.points_earn_failed", err)
			} else {
				pointsInfo.Earned = earned
			}
		}

		if err := ordersRepo.AppendStatusHistory(ctx, &models.OrderStatusEntry{
			OrderID: order.ID,
			Status:  enums.OrderStatusPending,
			Note:    "order created",
		}); err != nil {
			return err
		}

		return s.cartRepo.WithTx(tx).Clear(ctx, record.ID)
	})

	if txErr == errDuplicateOrder {
		// lost the insert race: the winner's order is the answer
		winner, err := s.ordersRepo.FindByUserAndPaymentRef(ctx, userID, input.RemotePaymentRef)
		if err != nil {
			return nil, err
		}
		if winner == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "duplicate order vanished")
		}
		metrics.CheckoutReplayTotal.Inc()
		metrics.CheckoutTotal.WithLabelValues(metrics.OutcomeReplay).Inc()
		return s.replayResult(ctx, winner)
	}
	if txErr != nil {
		metrics.CheckoutTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, txErr
	}

	balance, err := s.pointsSvc.Balance(ctx, userID)
	if err != nil {
		s.logger.Error(ctx, "checkout.balance_read_failed", err)
	} else {
		pointsInfo.NewBalance = balance
	}

	metrics.CheckoutDuration.Observe(time.Since(started).Seconds())
	metrics.CheckoutTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	s.logger.Info(s.logger.WithOrderID(ctx, order.ID.String()), "checkout.completed")

	return &Result{
		Order:        order,
		Transaction:  transaction,
		PointsInfo:   pointsInfo,
		DeliveryInfo: deliverInfo,
	}, nil
}

var errDuplicateOrder = pkgerrors.New(pkgerrors.CodeConflict, "order already exists for payment ref")

// replayResult rebuilds the checkout response from a committed order.
func (s *service) replayResult(ctx context.Context, order *models.Order) (*Result, error) {
	transaction, err := s.ordersRepo.FindPaymentByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	info := PointsInfo{DiscountAppliedCents: order.PointsDiscountCents}
	if redeemed, earned, err := s.pointsSvc.TotalsForOrder(ctx, nil, order.ID); err == nil {
		info.Redeemed = redeemed
		info.Earned = earned
	}
	if balance, err := s.pointsSvc.Balance(ctx, order.UserID); err == nil {
		info.NewBalance = balance
	}

	return &Result{
		Order:            order,
		Transaction:      transaction,
		PointsInfo:       info,
		DeliveryInfo:     DeliveryInfo{Assigned: order.DeliveryPersonID != nil},
		AlreadyProcessed: true,
	}, nil
}
