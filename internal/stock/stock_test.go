package stock

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/scoopworks/creamery-backend/pkg/db/models"
	"github.com/scoopworks/creamery-backend/pkg/enums"
	pkgerrors "github.com/scoopworks/creamery-backend/pkg/errors"
)

func TestReserve(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	vanilla := seedProduct(t, db, "vanilla pint", 5)
	mint := seedProduct(t, db, "mint pint", 1)

	err := db.Transaction(func(tx *gorm.DB) error {
		return Reserve(ctx, tx, []ReservationRequest{
			{ProductID: vanilla, Qty: 2},
			{ProductID: mint, Qty: 1},
		})
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	assertStock(t, db, vanilla, 3)
	assertStock(t, db, mint, 0)
}

func TestReserveInsufficientRollsBack(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()

	vanilla := seedProduct(t, db, "vanilla pint", 5)
	mint := seedProduct(t, db, "mint pint", 1)

	err := db.Transaction(func(tx *gorm.DB) error {
		return Reserve(ctx, tx, []ReservationRequest{
			{ProductID: vanilla, Qty: 2},
			{ProductID: mint, Qty: 3},
		})
	})
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}

	// the failed transaction must not leak the vanilla decrement
	assertStock(t, db, vanilla, 5)
	assertStock(t, db, mint, 1)
}

func TestReserveUnknownProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	err := Reserve(context.Background(), db, []ReservationRequest{{ProductID: uuid.New(), Qty: 1}})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReserveInvalidQty(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	product := seedProduct(t, db, "vanilla pint", 5)

	err := Reserve(context.Background(), db, []ReservationRequest{{ProductID: product, Qty: 0}})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReserveConcurrentLastUnit(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// one connection serializes the competing updates the way the row
	// lock does on postgres
	sqlDB.SetMaxOpenConns(1)

	product := seedProduct(t, db, "vanilla pint", 1)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			errs <- Reserve(context.Background(), db, []ReservationRequest{{ProductID: product, Qty: 1}})
		}()
	}

	failures := 0
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
				t.Fatalf("unexpected error: %v", err)
			}
			failures++
		}
	}
	if failures != 1 {
		t.Fatalf("failed reservations = %d, want exactly 1", failures)
	}
	assertStock(t, db, product, 0)
}

func TestRestore(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	product := seedProduct(t, db, "vanilla pint", 3)

	err := db.Transaction(func(tx *gorm.DB) error {
		return Restore(ctx, tx, []ReservationRequest{{ProductID: product, Qty: 2}})
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	assertStock(t, db, product, 5)
}

func seedProduct(t *testing.T, db *gorm.DB, name string, stockQty int) uuid.UUID {
	t.Helper()
	product := models.Product{
		Name:       name,
		Type:       enums.ProductTypeBase,
		PriceCents: 700,
		Stock:      stockQty,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product.ID
}

func assertStock(t *testing.T, db *gorm.DB, productID uuid.UUID, want int) {
	t.Helper()
	var product models.Product
	if err := db.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if product.Stock != want {
		t.Fatalf("stock = %d, want %d", product.Stock, want)
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:stock_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}); err != nil {
		t.Fatalf("migrate products: %v", err)
	}
	return db
}
