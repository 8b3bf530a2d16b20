package controllers

import (
	"fmt"
	"net/http"

	"github.com/scoopworks/creamery-backend/api/responses"
	"github.com/scoopworks/creamery-backend/api/validators"
	cartsvc "github.com/scoopworks/creamery-backend/internal/cart"
	"github.com/scoopworks/creamery-backend/pkg/config"
	pkgerrors "github.com/scoopworks/creamery-backend/pkg/errors"
	"github.com/scoopworks/creamery-backend/pkg/logger"
	"github.com/scoopworks/creamery-backend/pkg/paypal"
)

const pointCents = 100

type createPaymentOrderRequest struct {
	PointsToRedeem int `json:"points_to_redeem,omitempty" validate:"omitempty,min=0"`
}

// CreatePaymentOrder registers a gateway order for the caller's cart
// total and returns the approval URL the client must visit before
// checkout. The amount mirrors the checkout computation so the captured
// payment matches the order.
func CreatePaymentOrder(gateway *paypal.Client, cartRepo cartsvc.Repository, cfg config.CheckoutConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if gateway == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway unavailable"))
			return
		}

		userID, _, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createPaymentOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := cartRepo.FindActiveByUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if record == nil || len(record.Items) == 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeEmptyCart, "cart has no items"))
			return
		}

		subtotal := 0
		for _, item := range record.Items {
			subtotal += item.SubtotalCents
		}
		total := subtotal + cfg.ShippingFeeCents
		discount := payload.PointsToRedeem * pointCents
		if discount > total {
			discount = total
		}
		total -= discount

		order, err := gateway.CreateRemoteOrder(r.Context(), total, fmt.Sprintf("creamery order for %s", userID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"remote_order_id": order.RemoteOrderID,
			"approval_url":    order.ApprovalURL,
			"amount_cents":    total,
		})
	}
}
