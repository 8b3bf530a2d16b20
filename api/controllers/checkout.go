package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/scoopworks/creamery-backend/api/responses"
	"github.com/scoopworks/creamery-backend/api/validators"
	checkoutsvc "github.com/scoopworks/creamery-backend/internal/checkout"
	pkgerrors "github.com/scoopworks/creamery-backend/pkg/errors"
	"github.com/scoopworks/creamery-backend/pkg/logger"
	"github.com/scoopworks/creamery-backend/pkg/paypal"
)

type checkoutRequest struct {
	AddressID        uuid.UUID `json:"address_id" validate:"required"`
	RemotePaymentRef string    `json:"remote_payment_ref" validate:"required"`
	PayerID          string    `json:"payer_id,omitempty"`
	PointsToRedeem   int       `json:"points_to_redeem,omitempty" validate:"omitempty,min=0"`
}

// Checkout captures the gateway payment, then converts the cart into an
// order. The capture runs before any database transaction so gateway
// latency never holds row locks, and a duplicate capture is harmless.
func Checkout(svc checkoutsvc.Service, gateway *paypal.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		if gateway == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment gateway unavailable"))
			return
		}

		userID, _, err := actorFromRequest(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		capture, err := gateway.CaptureRemoteOrder(r.Context(), payload.RemotePaymentRef)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), userID, checkoutsvc.Input{
			AddressID:           payload.AddressID,
			RemotePaymentRef:    payload.RemotePaymentRef,
			RemoteTransactionID: capture.RemoteTransactionID,
			PointsToRedeem:      payload.PointsToRedeem,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.AlreadyProcessed {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, result)
	}
}
