package orders

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/scoopworks/creamery-backend/internal/points"
	"github.com/scoopworks/creamery-backend/internal/users"
	"github.com/scoopworks/creamery-backend/pkg/db/models"
	"github.com/scoopworks/creamery-backend/pkg/enums"
	pkgerrors "github.com/scoopworks/creamery-backend/pkg/errors"
	"github.com/scoopworks/creamery-backend/pkg/logger"
)

type gormRunner struct {
	db *gorm.DB
}

func (r gormRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type stubCompensator struct {
	calls []uuid.UUID
	err   error
}

func (s *stubCompensator) Compensate(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	s.calls = append(s.calls, order.ID)
	return s.err
}

type fixture struct {
	svc         Service
	db          *gorm.DB
	compensator *stubCompensator
	pointsSvc   points.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := gdb.AutoMigrate(
		&models.User{},
		&models.Order{}, &models.OrderItem{}, &models.OrderStatusEntry{},
		&models.PointTransaction{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	usersRepo := users.NewRepository(gdb)
	pointsSvc, err := points.NewService(points.NewRepository(gdb), usersRepo)
	if err != nil {
		t.Fatalf("points service: %v", err)
	}
	compensator := &stubCompensator{}

	svc, err := NewService(NewRepository(gdb), pointsSvc, usersRepo, compensator, gormRunner{db: gdb}, logg)
	if err != nil {
		t.Fatalf("orders service: %v", err)
	}
	return &fixture{svc: svc, db: gdb, compensator: compensator, pointsSvc: pointsSvc}
}

func (f *fixture) seedUser(t *testing.T, tier enums.MembershipTier) uuid.UUID {
	t.Helper()
	user := models.User{
		Email: uuid.NewString() + "@example.com",
		Name:  "Test User",
		Role:  enums.UserRoleCustomer,
		Tier:  tier,
	}
	if err := f.db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user.ID
}

func (f *fixture) seedOrder(t *testing.T, userID uuid.UUID, status enums.OrderStatus, totalCents int) uuid.UUID {
	t.Helper()
	order := models.Order{
		UserID:           userID,
		AddressID:        uuid.New(),
		RemotePaymentRef: uuid.NewString(),
		Status:           status,
		SubtotalCents:    totalCents,
		TotalCents:       totalCents,
	}
	if err := f.db.Omit("Items", "StatusHistory").Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order.ID
}

func TestUpdateStatusForward(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := f.seedUser(t, enums.MembershipTierClassic)
	orderID := f.seedOrder(t, userID, enums.OrderStatusPending, 10000)

	order, err := f.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: orderID,
		Status:  enums.OrderStatusPreparing,
		Note:    "kitchen started",
	})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if order.Status != enums.OrderStatusPreparing {
		t.Fatalf("status = %s, want preparing", order.Status)
	}
	if len(order.StatusHistory) != 1 || order.StatusHistory[0].Note != "kitchen started" {
		t.Fatalf("unexpected history: %+v", order.StatusHistory)
	}
}

func TestUpdateStatusBackwardRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := f.seedUser(t, enums.MembershipTierClassic)
	orderID := f.seedOrder(t, userID, enums.OrderStatusEnRoute, 10000)

	_, err := f.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: orderID,
		Status:  enums.OrderStatusPending,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateStatusTerminalImmutable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := f.seedUser(t, enums.MembershipTierClassic)
	orderID := f.seedOrder(t, userID, enums.OrderStatusDelivered, 10000)

	_, err := f.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: orderID,
		Status:  enums.OrderStatusCancelled,
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUpdateStatusDeliveredGrantsPoints(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	userID := f.seedUser(t, enums.MembershipTierGold)
	orderID := f.seedOrder(t, userID, enums.OrderStatusEnRoute, 27000)

	if _, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{
		OrderID: orderID,
		Status:  enums.OrderStatusDelivered,
	}); err != nil {
		t.Fatalf("update status: %v", err)
	}

	var user models.User
	if err := f.db.First(&user, "id = ?", userID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	// gold: floor(270 * 0.05) = 13
	if user.Points != 13 {
		t.Fatalf("points = %d, want 13", user.Points)
	}
}

func TestUpdateStatusDeliveredDoesNotDoubleGrant(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	userID := f.seedUser(t, enums.MembershipTierClassic)
	orderID := f.seedOrder(t, userID, enums.OrderStatusEnRoute, 27000)

	// the checkout already granted purchase points for this order
	if _, err := f.pointsSvc.Earn(ctx, nil, points.EarnInput{
		UserID: userID, OrderID: &orderID, Points: 5, Reason: "purchase reward",
	}); err != nil {
		t.Fatalf("earn: %v", err)
	}

	if _, err := f.svc.UpdateStatus(ctx, UpdateStatusInput{
		OrderID: orderID,
		Status:  enums.OrderStatusDelivered,
	}); err != nil {
		t.Fatalf("update status: %v", err)
	}

	var user models.User
	if err := f.db.First(&user, "id = ?", userID).Error; err != nil {
		t.Fatalf("load user: %v", err)
	}
	if user.Points != 5 {
		t.Fatalf("points = %d, want 5", user.Points)
	}
}

func TestUpdateStatusCancelledRunsCompensation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := f.seedUser(t, enums.MembershipTierClassic)
	orderID := f.seedOrder(t, userID, enums.OrderStatusPreparing, 10000)

	order, err := f.svc.UpdateStatus(context.Background(), UpdateStatusInput{
		OrderID: orderID,
		Status:  enums.OrderStatusCancelled,
		Note:    "operator cancel",
	})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if order.Status != enums.OrderStatusCancelled {
		t.Fatalf("status = %s", order.Status)
	}
	if order.CancelledAt == nil {
		t.Fatal("cancelled_at not set")
	}
	if len(f.compensator.calls) != 1 || f.compensator.calls[0] != orderID {
		t.Fatalf("compensator calls = %+v", f.compensator.calls)
	}
}

func TestGetEnforcesOwnership(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	owner := f.seedUser(t, enums.MembershipTierClassic)
	stranger := f.seedUser(t, enums.MembershipTierClassic)
	orderID := f.seedOrder(t, owner, enums.OrderStatusPending, 10000)

	if _, err := f.svc.Get(ctx, orderID, owner, enums.UserRoleCustomer); err != nil {
		t.Fatalf("owner read: %v", err)
	}

	_, err := f.svc.Get(ctx, orderID, stranger, enums.UserRoleCustomer)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := f.svc.Get(ctx, orderID, stranger, enums.UserRoleStaff); err != nil {
		t.Fatalf("staff read: %v", err)
	}
}
