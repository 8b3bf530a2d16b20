package controllers

import (
	"net/http"

	"github.com/scoopworks/creamery-backend/api/responses"
	deliverysvc "github.com/scoopworks/creamery-backend/internal/delivery"
	"github.com/scoopworks/creamery-backend/pkg/logger"
)

// DeliveryWorkload reports active orders per driver. Staff only.
func DeliveryWorkload(svc deliverysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		workloads, err := svc.Workload(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, workloads)
	}
}
