package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scoopworks/creamery-backend/internal/points"
	"github.com/scoopworks/creamery-backend/internal/users"
	"github.com/scoopworks/creamery-backend/pkg/db/models"
	"github.com/scoopworks/creamery-backend/pkg/enums"
	pkgerrors "github.com/scoopworks/creamery-backend/pkg/errors"
	"github.com/scoopworks/creamery-backend/pkg/logger"
)

// Compensator reverses the side effects of an order (points, stock)
// when it is cancelled. The cancellation service provides the
// implementation; declaring the surface here keeps the dependency
// pointing one way.
type Compensator interface {
	Compensate(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service reads orders and walks them through the status lifecycle.
type Service interface {
	Get(ctx context.Context, orderID, actorUserID uuid.UUID, actorRole enums.UserRole) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error)
}

// UpdateStatusInput moves an order to a new status.
type UpdateStatusInput struct {
	OrderID uuid.UUID
	Status  enums.OrderStatus
	Note    string
}

type service struct {
	repo        Repository
	pointsSvc   points.Service
	usersRepo   users.Repository
	compensator Compensator
	runner      txRunner
	logger      *logger.Logger
}

// NewService wires the orders service with its collaborators.
func NewService(repo Repository, pointsSvc points.Service, usersRepo users.Repository, compensator Compensator, runner txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if pointsSvc == nil {
		return nil, fmt.Errorf("points service required")
	}
	if usersRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if compensator == nil {
		return nil, fmt.Errorf("compensator required")
	}
	if runner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:        repo,
		pointsSvc:   pointsSvc,
		usersRepo:   usersRepo,
		compensator: compensator,
		runner:      runner,
		logger:      logg,
	}, nil
}

func (s *service) Get(ctx context.Context, orderID, actorUserID uuid.UUID, actorRole enums.UserRole) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if actorRole != enums.UserRoleStaff && order.UserID != actorUserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order belongs to another user")
	}
	return order, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.repo.ListByUser(ctx, userID)
}

// UpdateStatus advances the order along the forward-only lifecycle.
// Delivered grants purchase points exactly once; cancelled funnels
// through the shared compensation routine.
func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]any{"status": input.Status})
	}

	ctx = s.logger.WithOrderID(ctx, input.OrderID.String())

	err := s.runner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(input.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "status transition disallowed").
				WithDetails(map[string]any{
					"from": order.Status,
					"to":   input.Status,
				})
		}

		var cancelledAt *time.Time
		if input.Status == enums.OrderStatusCancelled {
			now := time.Now()
			cancelledAt = &now
		}
		if err := repo.UpdateStatus(ctx, order.ID, input.Status, cancelledAt); err != nil {
			return err
		}
		if err := repo.AppendStatusHistory(ctx, &models.OrderStatusEntry{
			OrderID: order.ID,
			Status:  input.Status,
			Note:    input.Note,
		}); err != nil {
			return err
		}

		switch input.Status {
		case enums.OrderStatusDelivered:
			s.grantDeliveryPoints(ctx, tx, order)
		case enums.OrderStatusCancelled:
			if err := s.compensator.Compensate(ctx, tx, order); err != nil {
				s.logger.Error(ctx, "orders.compensation_failed", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.repo.FindByID(ctx, input.OrderID)
}

// grantDeliveryPoints credits purchase points when the order arrives.
// An existing earned row means a previous delivery (or checkout) already
// granted them. Failures are logged, never fatal to the transition.
func (s *service) grantDeliveryPoints(ctx context.Context, tx *gorm.DB, order *models.Order) {
	granted, err := s.pointsSvc.HasEarnedForOrder(ctx, tx, order.ID)
	if err != nil {
		s.logger.Error(ctx, "orders.points_lookup_failed", err)
		return
	}
	if granted {
		return
	}

	user, err := s.usersRepo.WithTx(tx).FindByID(ctx, order.UserID)
	if err != nil {
		s.logger.Error(ctx, "orders.user_lookup_failed", err)
		return
	}

	earned := points.PointsFor(order.TotalCents, user.Tier)
	if earned <= 0 {
		return
	}
	orderID := order.ID
	if _, err := s.pointsSvc.Earn(ctx, tx, points.EarnInput{
		UserID:  order.UserID,
		OrderID: &orderID,
		Points:  earned,
		Reason:  "purchase reward",
	}); err != nil {
		s.logger.Error(ctx, "orders.points_earn_failed", err)
	}
}
