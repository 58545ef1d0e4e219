// README: Customer-facing order handlers: booking, history, detail, QR charges.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"kilap/internal/http/middleware"
	"kilap/internal/modules/catalog"
	"kilap/internal/modules/order"
	"kilap/internal/modules/payment"
	"kilap/internal/types"
)

type OrderHandler struct {
	orders   *order.Service
	payments *payment.Service
	catalog  *catalog.Store
}

func NewOrderHandler(orders *order.Service, payments *payment.Service, cat *catalog.Store) *OrderHandler {
	return &OrderHandler{orders: orders, payments: payments, catalog: cat}
}

type createOrderReq struct {
	Name        string  `json:"name"`
	Phone       string  `json:"phone"`
	Street      string  `json:"street"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	ServiceDate string  `json:"service_date"` // YYYY-MM-DD
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	serviceDate, err := time.Parse("2006-01-02", req.ServiceDate)
	if err != nil {
		writeError(c, http.StatusBadRequest, "service_date must be YYYY-MM-DD")
		return
	}
	o, err := h.orders.CreateOnline(c.Request.Context(), order.CreateOnlineCommand{
		UserID:      middleware.CallerID(c),
		Name:        req.Name,
		Phone:       req.Phone,
		Street:      req.Street,
		Point:       types.Point{Lat: req.Lat, Lng: req.Lng},
		ServiceDate: serviceDate,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"number":       o.Number,
		"status":       order.StatusWaitingDeposit,
		"service_date": o.ServiceDate.Format("2006-01-02"),
	})
}

func (h *OrderHandler) List(c *gin.Context) {
	completed := c.Query("completed") == "true"
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	items, total, err := h.orders.ListByUser(c.Request.Context(), middleware.CallerID(c), completed, page, perPage)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": summariesJSON(items), "total": total, "page": page})
}

func (h *OrderHandler) Detail(c *gin.Context) {
	number := c.Param("number")
	d, err := h.orders.Detail(c.Request.Context(), number)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if !middleware.CallerRole(c).IsStaff() && d.Order.UserID != middleware.CallerID(c) {
		writeError(c, http.StatusNotFound, order.ErrNotFound.Error())
		return
	}
	c.JSON(http.StatusOK, detailJSON(d))
}

// Status is the lightweight poll target for payment pages: current status
// only, no history or address payload.
func (h *OrderHandler) Status(c *gin.Context) {
	number := c.Param("number")
	o, err := h.orders.GetByNumber(c.Request.Context(), number)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if !middleware.CallerRole(c).IsStaff() && o.UserID != middleware.CallerID(c) {
		writeError(c, http.StatusNotFound, order.ErrNotFound.Error())
		return
	}
	st, err := h.orders.CurrentStatus(c.Request.Context(), o.ID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"number":         number,
		"status":         st,
		"status_display": st.Display(),
	})
}

// Payment returns the QR charge for one phase, creating it at the gateway on
// first view. Phase is "deposit" or "full".
func (h *OrderHandler) Payment(c *gin.Context) {
	number := c.Param("number")
	var phase payment.Phase
	switch c.Param("phase") {
	case "deposit":
		phase = payment.PhaseDownPayment
	case "full":
		phase = payment.PhaseFullPayment
	default:
		writeError(c, http.StatusBadRequest, "phase must be deposit or full")
		return
	}

	o, err := h.orders.GetByNumber(c.Request.Context(), number)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if !middleware.CallerRole(c).IsStaff() && o.UserID != middleware.CallerID(c) {
		writeError(c, http.StatusNotFound, order.ErrNotFound.Error())
		return
	}
	txn, err := h.payments.EnsureCharge(c.Request.Context(), number, phase)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"order_number": number,
		"phase":        txn.Phase,
		"amount":       txn.Amount,
		"status":       txn.Status,
		"qr_url":       txn.QRUrl,
		"channel":      "payments:" + number + ":" + string(txn.Phase),
	})
}

func (h *OrderHandler) Services(c *gin.Context) {
	items, err := h.catalog.List(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"services": items})
}

func summariesJSON(items []order.Summary) []gin.H {
	out := make([]gin.H, 0, len(items))
	for _, it := range items {
		out = append(out, gin.H{
			"number":         it.Number,
			"type":           it.Type,
			"status":         it.CurrentStatus,
			"status_display": it.CurrentStatus.Display(),
			"customer":       it.Address.Name,
			"phone":          it.Address.Phone,
			"street":         it.Address.Street,
			"service_date":   it.ServiceDate.Format("2006-01-02"),
			"status_since":   it.StatusSince,
			"created_at":     it.CreatedAt,
		})
	}
	return out
}

func detailJSON(d *order.Detail) gin.H {
	history := make([]gin.H, 0, len(d.History))
	for _, h := range d.History {
		history = append(history, gin.H{
			"status":     h.Name,
			"display":    h.Name.Display(),
			"note":       h.Note,
			"updated_at": h.UpdatedAt,
		})
	}
	return gin.H{
		"number":         d.Order.Number,
		"type":           d.Order.Type,
		"status":         d.CurrentStatus,
		"status_display": d.CurrentStatus.Display(),
		"service_date":   d.Order.ServiceDate.Format("2006-01-02"),
		"address": gin.H{
			"name":   d.Address.Name,
			"phone":  d.Address.Phone,
			"street": d.Address.Street,
		},
		"history": history,
	}
}
