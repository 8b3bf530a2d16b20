package cart

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

func TestAddItemCreatesCartAndSnapshotsPrice(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	product := seedProduct(t, db, "vanilla pint", 700)

	record, err := svc.AddItem(ctx, userID, AddItemInput{ProductID: product, Quantity: 2})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if len(record.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(record.Items))
	}
	item := record.Items[0]
	if item.UnitPriceCents != 700 || item.SubtotalCents != 1400 {
		t.Fatalf("unexpected item pricing: %+v", item)
	}
	if record.TotalCents != 1400 {
		t.Fatalf("total = %d, want 1400", record.TotalCents)
	}

	// a later catalog edit must not change the snapshot
	if err := db.Model(&models.Product{}).Where("id = ?", product).
		UpdateColumn("price_cents", 900).Error; err != nil {
		t.Fatalf("reprice product: %v", err)
	}
	record, err = svc.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if record.Items[0].UnitPriceCents != 700 {
		t.Fatalf("snapshot changed: %+v", record.Items[0])
	}
}

func TestAddItemMergesSameProduct(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	product := seedProduct(t, db, "vanilla pint", 700)

	if _, err := svc.AddItem(ctx, userID, AddItemInput{ProductID: product, Quantity: 1}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	record, err := svc.AddItem(ctx, userID, AddItemInput{ProductID: product, Quantity: 2})
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(record.Items) != 1 {
		t.Fatalf("expected merged line, got %d items", len(record.Items))
	}
	if record.Items[0].Quantity != 3 || record.TotalCents != 2100 {
		t.Fatalf("unexpected cart state: %+v", record)
	}
}

func TestUpdateAndRemoveItem(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	userID := uuid.New()
	vanilla := seedProduct(t, db, "vanilla pint", 700)
	mint := seedProduct(t, db, "mint pint", 800)

	if _, err := svc.AddItem(ctx, userID, AddItemInput{ProductID: vanilla, Quantity: 1}); err != nil {
		t.Fatalf("add vanilla: %v", err)
	}
	record, err := svc.AddItem(ctx, userID, AddItemInput{ProductID: mint, Quantity: 1})
	if err != nil {
		t.Fatalf("add mint: %v", err)
	}

	var vanillaItem models.CartItem
	for _, item := range record.Items {
		if item.ProductID == vanilla {
			vanillaItem = item
		}
	}

	record, err = svc.UpdateItem(ctx, userID, vanillaItem.ID, 4)
	if err != nil {
		t.Fatalf("update item: %v", err)
	}
	if record.TotalCents != 4*700+800 {
		t.Fatalf("total = %d, want %d", record.TotalCents, 4*700+800)
	}

	record, err = svc.RemoveItem(ctx, userID, vanillaItem.ID)
	if err != nil {
		t.Fatalf("remove item: %v", err)
	}
	if len(record.Items) != 1 || record.TotalCents != 800 {
		t.Fatalf("unexpected cart after removal: %+v", record)
	}
}

func TestUpdateItemNotOwned(t *testing.T) {
	t.Parallel()

	svc, db := newTestService(t)
	ctx := context.Background()
	owner := uuid.New()
	stranger := uuid.New()
	product := seedProduct(t, db, "vanilla pint", 700)

	record, err := svc.AddItem(ctx, owner, AddItemInput{ProductID: product, Quantity: 1})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}

	_, err = svc.UpdateItem(ctx, stranger, record.Items[0].ID, 2)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAddItemUnknownProduct(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	_, err := svc.AddItem(context.Background(), uuid.New(), AddItemInput{ProductID: uuid.New(), Quantity: 1})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.CartRecord{}, &models.CartItem{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	svc, err := NewService(NewRepository(db), NewProductSource(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, db
}

func seedProduct(t *testing.T, db *gorm.DB, name string, priceCents int) uuid.UUID {
	t.Helper()
	product := models.Product{
		Name:       name,
		Type:       enums.ProductTypeBase,
		PriceCents: priceCents,
		Stock:      100,
	}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product.ID
}
