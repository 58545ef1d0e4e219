// README: Payment gateway notification endpoint.
package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"kilap/internal/modules/order"
	"kilap/internal/modules/payment"
)

type WebhookHandler struct {
	payments *payment.Service
}

func NewWebhookHandler(svc *payment.Service) *WebhookHandler {
	return &WebhookHandler{payments: svc}
}

// Notification handles a gateway callback. The gateway retries on non-2xx,
// so unknown references answer 404 and signature mismatches 403; both stop
// the retry loop only on the gateway's terms.
func (h *WebhookHandler) Notification(c *gin.Context) {
	var n payment.Notification
	if err := c.ShouldBindJSON(&n); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.payments.HandleNotification(c.Request.Context(), n)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, payment.ErrBadSignature):
		log.Printf("payment webhook rejected: bad signature for %s", n.OrderRef)
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, payment.ErrBadOrderRef):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
