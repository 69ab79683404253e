package adaptor

import (
	"net/http"

	"room-booking/internal/usecase"
	"room-booking/pkg/utils"

	"go.uber.org/zap"
)

type AdminHandler struct {
	expiry usecase.ExpiryService
	log    *zap.Logger
}

func NewAdminHandler(expiry usecase.ExpiryService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		expiry: expiry,
		log:    log.With(zap.String("handler", "admin")),
	}
}

// Reconcile handles POST /api/admin/reconcile (admin). It runs one
// reconciliation pass synchronously.
func (h *AdminHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	canceled, err := h.expiry.ReconcilePending(r.Context())
	data := map[string]int{"canceled": canceled}
	if err != nil {
		h.log.Error("Reconciliation finished with errors", zap.Error(err), zap.Int("canceled", canceled))
		utils.ResponseJSON(w, http.StatusInternalServerError, false, "Reconciliation finished with errors", data, nil)
		return
	}

	utils.ResponseSuccess(w, "Reconciliation finished", data)
}
