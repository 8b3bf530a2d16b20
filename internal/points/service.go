package points

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/scoopworks/creamery-backend/internal/users"
	"github.com/scoopworks/creamery-backend/pkg/db/models"
	"github.com/scoopworks/creamery-backend/pkg/enums"
	pkgerrors "github.com/scoopworks/creamery-backend/pkg/errors"
)

// earnRateByTier maps membership tiers to the purchase earn rate.
var earnRateByTier = map[enums.MembershipTier]decimal.Decimal{
	enums.MembershipTierClassic:  decimal.NewFromFloat(0.02),
	enums.MembershipTierGold:     decimal.NewFromFloat(0.05),
	enums.MembershipTierPlatinum: decimal.NewFromFloat(0.10),
}

// EarnRate returns the earn rate for a tier. Unknown tiers fall back to
// the classic rate.
func EarnRate(tier enums.MembershipTier) decimal.Decimal {
	if rate, ok := earnRateByTier[tier]; ok {
		return rate
	}
	return earnRateByTier[enums.MembershipTierClassic]
}

// PointsFor computes the points earned on a purchase. One point is one
// currency unit, so the amount is scaled out of cents before the rate
// applies, then floored.
func PointsFor(amountCents int, tier enums.MembershipTier) int {
	amount := decimal.New(int64(amountCents), -2)
	return int(amount.Mul(EarnRate(tier)).Floor().IntPart())
}

// Service is the loyalty ledger: every balance change appends a ledger
// row and mutates the authoritative users.points column in the same
// transaction.
type Service interface {
	Earn(ctx context.Context, tx *gorm.DB, input EarnInput) (*models.PointTransaction, error)
	Redeem(ctx context.Context, tx *gorm.DB, input RedeemInput) (*models.PointTransaction, error)
	RefundForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int, error)
	HasEarnedForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error)
	TotalsForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (redeemed, earned int, err error)
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
	History(ctx context.Context, userID uuid.UUID, limit int) ([]models.PointTransaction, error)
}

// EarnInput credits points to a user.
type EarnInput struct {
	UserID  uuid.UUID
	OrderID *uuid.UUID
	Points  int
	Reason  string
}

// RedeemInput debits points from a user.
type RedeemInput struct {
	UserID  uuid.UUID
	OrderID *uuid.UUID
	Points  int
	Reason  string
}

type service struct {
	repo      Repository
	usersRepo users.Repository
}

// NewService wires the points ledger with its repositories.
func NewService(repo Repository, usersRepo users.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("points repository required")
	}
	if usersRepo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	return &service{repo: repo, usersRepo: usersRepo}, nil
}

func (s *service) Earn(ctx context.Context, tx *gorm.DB, input EarnInput) (*models.PointTransaction, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.Points <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "earned points must be positive")
	}

	expiresAt := time.Now().AddDate(1, 0, 0)
	txn := &models.PointTransaction{
		UserID:    input.UserID,
		OrderID:   input.OrderID,
		Type:      enums.PointTransactionEarned,
		Points:    input.Points,
		Reason:    input.Reason,
		ExpiresAt: &expiresAt,
	}

	if err := s.repo.WithTx(tx).Create(ctx, txn); err != nil {
		return nil, err
	}
	if err := s.usersRepo.WithTx(tx).AddPoints(ctx, input.UserID, input.Points); err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *service) Redeem(ctx context.Context, tx *gorm.DB, input RedeemInput) (*models.PointTransaction, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if input.Points <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "redeemed points must be positive")
	}

	ok, err := s.usersRepo.WithTx(tx).DeductPoints(ctx, input.UserID, input.Points)
	if err != nil {
		return nil, err
	}
	if !ok {
		balance, balErr := s.balanceTx(ctx, tx, input.UserID)
		if balErr != nil {
			return nil, balErr
		}
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientPoints, "not enough points").
			WithDetails(map[string]any{
				"requested": input.Points,
				"available": balance,
			})
	}

	txn := &models.PointTransaction{
		UserID:  input.UserID,
		OrderID: input.OrderID,
		Type:    enums.PointTransactionRedeemed,
		Points:  -input.Points,
		Reason:  input.Reason,
	}
	if err := s.repo.WithTx(tx).Create(ctx, txn); err != nil {
		return nil, err
	}
	return txn, nil
}

// RefundForOrder reverses every ledger row tied to an order so its net
// contribution returns to zero. Redeemed rows are re-credited and
// earned rows are clawed back. The reversal rows themselves mark the
// order as refunded, so a second call is a no-op. Returns the points
// re-credited to the user.
func (s *service) RefundForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int, error) {
	if orderID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	txns, err := s.repo.WithTx(tx).ListByOrder(ctx, orderID)
	if err != nil {
		return 0, err
	}

	for _, txn := range txns {
		if txn.Reversal {
			return 0, nil
		}
	}

	recredited := 0
	for _, txn := range txns {
		reversal := &models.PointTransaction{
			UserID:   txn.UserID,
			OrderID:  &orderID,
			Points:   -txn.Points,
			Reversal: true,
		}

		switch txn.Type {
		case enums.PointTransactionRedeemed:
			reversal.Type = enums.PointTransactionEarned
			reversal.Reason = "cancellation refund"
		case enums.PointTransactionEarned:
			reversal.Type = enums.PointTransactionRedeemed
			reversal.Reason = "cancellation clawback"
		default:
			continue
		}

		if err := s.repo.WithTx(tx).Create(ctx, reversal); err != nil {
			return recredited, err
		}

		if reversal.Points > 0 {
			if err := s.usersRepo.WithTx(tx).AddPoints(ctx, txn.UserID, reversal.Points); err != nil {
				return recredited, err
			}
			recredited += reversal.Points
			continue
		}

		// Clawback deducts at most the current balance: the user may
		// have spent the earned points already.
		claw := -reversal.Points
		ok, err := s.usersRepo.WithTx(tx).DeductPoints(ctx, txn.UserID, claw)
		if err != nil {
			return recredited, err
		}
		if !ok {
			balance, balErr := s.balanceTx(ctx, tx, txn.UserID)
			if balErr != nil {
				return recredited, balErr
			}
			if balance > 0 {
				if _, err := s.usersRepo.WithTx(tx).DeductPoints(ctx, txn.UserID, balance); err != nil {
					return recredited, err
				}
			}
		}
	}
	return recredited, nil
}

// HasEarnedForOrder reports whether a non-reversal earned row already
// exists for the order. UpdateStatus uses it to grant purchase points
// exactly once.
func (s *service) HasEarnedForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	if orderID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	txns, err := s.repo.WithTx(tx).ListByOrder(ctx, orderID)
	if err != nil {
		return false, err
	}
	for _, txn := range txns {
		if txn.Type == enums.PointTransactionEarned && !txn.Reversal {
			return true, nil
		}
	}
	return false, nil
}

// TotalsForOrder sums the order's non-reversal ledger rows: how many
// points the order redeemed and how many it earned. Reversal rows are
// skipped so a refunded order still reports its original movement.
func (s *service) TotalsForOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (int, int, error) {
	if orderID == uuid.Nil {
		return 0, 0, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}

	txns, err := s.repo.WithTx(tx).ListByOrder(ctx, orderID)
	if err != nil {
		return 0, 0, err
	}

	redeemed, earned := 0, 0
	for _, txn := range txns {
		if txn.Reversal {
			continue
		}
		switch txn.Type {
		case enums.PointTransactionRedeemed:
			redeemed += -txn.Points
		case enums.PointTransactionEarned:
			earned += txn.Points
		}
	}
	return redeemed, earned, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (int, error) {
	return s.balanceTx(ctx, nil, userID)
}

func (s *service) balanceTx(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int, error) {
	user, err := s.usersRepo.WithTx(tx).FindByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Points, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID, limit int) ([]models.PointTransaction, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	return s.repo.ListByUser(ctx, userID, limit)
}
