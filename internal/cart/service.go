package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/scoopworks/creamery-backend/pkg/db/models"
	pkgerrors "github.com/scoopworks/creamery-backend/pkg/errors"
)

// ProductSource exposes the catalog read the cart needs to snapshot
// prices at add time.
type ProductSource interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type productSource struct {
	db *gorm.DB
}

// NewProductSource returns a catalog reader bound to the database.
func NewProductSource(db *gorm.DB) ProductSource {
	return &productSource{db: db}
}

func (p *productSource) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := p.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, err
	}
	return &product, nil
}

// Service maintains the cart and its cached total. Prices are
// snapshotted onto items when they are added, so later catalog edits
// never change a cart line.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error)
	AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*models.CartRecord, error)
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*models.CartRecord, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*models.CartRecord, error)
}

// AddItemInput adds one product line to the cart.
type AddItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

type service struct {
	repo     Repository
	products ProductSource
}

// NewService wires the cart service with its collaborators.
func NewService(repo Repository, products ProductSource) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product source required")
	}
	return &service{repo: repo, products: products}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	record, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return &models.CartRecord{UserID: userID}, nil
	}
	return record, nil
}

func (s *service) AddItem(ctx context.Context, userID uuid.UUID, input AddItemInput) (*models.CartRecord, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.products.FindByID(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		record = &models.CartRecord{UserID: userID}
		if err := s.repo.Create(ctx, record); err != nil {
			return nil, err
		}
	}

	// Same product lines merge instead of duplicating.
	var existing *models.CartItem
	for i := range record.Items {
		if record.Items[i].ProductID == input.ProductID {
			existing = &record.Items[i]
			break
		}
	}

	if existing != nil {
		existing.Quantity += input.Quantity
		existing.SubtotalCents = existing.Quantity * existing.UnitPriceCents
		if err := s.repo.UpdateItem(ctx, existing); err != nil {
			return nil, err
		}
	} else {
		item := &models.CartItem{
			CartID:         record.ID,
			ProductID:      product.ID,
			ProductType:    product.Type,
			ProductName:    product.Name,
			Quantity:       input.Quantity,
			UnitPriceCents: product.PriceCents,
			SubtotalCents:  input.Quantity * product.PriceCents,
		}
		if err := s.repo.CreateItem(ctx, item); err != nil {
			return nil, err
		}
	}

	return s.reprice(ctx, userID)
}

func (s *service) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*models.CartRecord, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	_, item, err := s.findOwnedItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	item.Quantity = quantity
	item.SubtotalCents = quantity * item.UnitPriceCents
	if err := s.repo.UpdateItem(ctx, item); err != nil {
		return nil, err
	}
	return s.reprice(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*models.CartRecord, error) {
	_, item, err := s.findOwnedItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	if err := s.repo.DeleteItem(ctx, item.ID); err != nil {
		return nil, err
	}
	return s.reprice(ctx, userID)
}

func (s *service) findOwnedItem(ctx context.Context, userID, itemID uuid.UUID) (*models.CartRecord, *models.CartItem, error) {
	if userID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if itemID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "item id is required")
	}

	record, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if record == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	for i := range record.Items {
		if record.Items[i].ID == itemID {
			return record, &record.Items[i], nil
		}
	}
	return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
}

// reprice recomputes the cached total from the item lines and returns
// the fresh cart.
func (s *service) reprice(ctx context.Context, userID uuid.UUID) (*models.CartRecord, error) {
	record, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return &models.CartRecord{UserID: userID}, nil
	}

	total := 0
	for _, item := range record.Items {
		total += item.SubtotalCents
	}
	if total != record.TotalCents {
		if err := s.repo.UpdateTotal(ctx, record.ID, total); err != nil {
			return nil, err
		}
		record.TotalCents = total
	}
	return record, nil
}
