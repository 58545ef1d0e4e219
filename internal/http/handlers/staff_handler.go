// README: Staff handlers: task queues, offline intake, stage claim flow.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"kilap/internal/http/middleware"
	"kilap/internal/modules/order"
	"kilap/internal/modules/stage"
	"kilap/internal/types"
)

type StaffHandler struct {
	orders *order.Service
	stages *stage.Service
}

func NewStaffHandler(orders *order.Service, stages *stage.Service) *StaffHandler {
	return &StaffHandler{orders: orders, stages: stages}
}

// Tasks renders the dashboard queues. Bucket defaults to "all"; search
// matches order number, customer fields and status display names.
func (h *StaffHandler) Tasks(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	q := order.QueueQuery{
		Bucket:  order.Bucket(c.DefaultQuery("bucket", "all")),
		Search:  c.Query("search"),
		Page:    page,
		PerPage: perPage,
	}
	items, total, counts, err := h.orders.Queues(c.Request.Context(), q)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orders": summariesJSON(items),
		"total":  total,
		"page":   page,
		"counts": gin.H{
			"all":        counts.All,
			"pickup":     counts.Pickup,
			"inspection": counts.Inspection,
			"delivery":   counts.Delivery,
		},
	})
}

type createOfflineReq struct {
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
	ServiceDate   string `json:"service_date"`
}

// CreateOffline books a walk-in drop-off and lands the staff member on the
// new order's inspection page.
func (h *StaffHandler) CreateOffline(c *gin.Context) {
	var req createOfflineReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	var date time.Time
	if req.ServiceDate != "" {
		var err error
		date, err = time.Parse("2006-01-02", req.ServiceDate)
		if err != nil {
			writeError(c, http.StatusBadRequest, "service_date must be YYYY-MM-DD")
			return
		}
	}
	o, err := h.orders.CreateOffline(c.Request.Context(), order.CreateOfflineCommand{
		StaffID:       middleware.CallerID(c),
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		ServiceDate:   date,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	redirectNotice(c, "/staff/inspection/"+o.Number, fmt.Sprintf("order %s dibuat", o.Number))
}

// StageDetail shows one order on a stage page: projection, history and the
// caller's claim state for the stage.
func (h *StaffHandler) StageDetail(c *gin.Context) {
	st, ok := stage.StageFromSlug(c.Param("slug"))
	if !ok {
		writeError(c, http.StatusNotFound, stage.ErrUnknownStage.Error())
		return
	}
	d, err := h.orders.Detail(c.Request.Context(), c.Param("number"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	claim, err := h.stages.OpenClaim(c.Request.Context(), middleware.CallerID(c))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	body := detailJSON(d)
	body["stage"] = st
	body["claimed_by_me"] = claim != nil &&
		claim.OrderNumber == d.Order.Number && claim.Stage == st
	if notice := c.Query("notice"); notice != "" {
		body["notice"] = notice
	}
	c.JSON(http.StatusOK, body)
}

// Claim attempts to take the stage for the caller. Success and guard
// rejections both land back on the stage page; the notice carries the
// outcome.
func (h *StaffHandler) Claim(c *gin.Context) {
	st, ok := stage.StageFromSlug(c.Param("slug"))
	if !ok {
		writeError(c, http.StatusNotFound, stage.ErrUnknownStage.Error())
		return
	}
	number := c.Param("number")
	err := h.stages.Claim(c.Request.Context(), stage.ClaimCommand{
		OrderNumber: number,
		Stage:       st,
		AdminID:     middleware.CallerID(c),
	})
	page := fmt.Sprintf("/staff/%s/%s", st.Slug(), number)
	switch {
	case err == nil:
		redirectNotice(c, page, "order diklaim")
	case isClaimGuard(err):
		redirectNotice(c, "/staff/tasks", guardNotice(err, number))
	default:
		writeDomainError(c, err)
	}
}

// Complete finishes the claimed stage. Multipart: a "photo" file plus form
// fields; the inspection stage additionally takes a "shoes" JSON array.
func (h *StaffHandler) Complete(c *gin.Context) {
	st, ok := stage.StageFromSlug(c.Param("slug"))
	if !ok {
		writeError(c, http.StatusNotFound, stage.ErrUnknownStage.Error())
		return
	}
	number := c.Param("number")

	cmd := stage.CompleteCommand{
		OrderNumber: number,
		Stage:       st,
		AdminID:     middleware.CallerID(c),
		Note:        c.PostForm("note"),
	}
	if file, err := c.FormFile("photo"); err == nil {
		f, err := file.Open()
		if err != nil {
			writeError(c, http.StatusBadRequest, "unreadable photo upload")
			return
		}
		defer f.Close()
		cmd.Photo = f
		cmd.PhotoExt = strings.ToLower(filepathExt(file.Filename))
	}
	if raw := c.PostForm("shoes"); raw != "" {
		shoes, err := parseShoes(raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid shoes payload")
			return
		}
		cmd.Shoes = shoes
	}

	err := h.stages.Complete(c.Request.Context(), cmd)
	switch {
	case err == nil:
		redirectNotice(c, "/staff/tasks", fmt.Sprintf("order %s selesai di tahap %s", number, st.Slug()))
	case isClaimGuard(err):
		redirectNotice(c, fmt.Sprintf("/staff/%s/%s", st.Slug(), number), guardNotice(err, number))
	default:
		writeDomainError(c, err)
	}
}

// Cancel releases the caller's claim and returns the order to its queue.
func (h *StaffHandler) Cancel(c *gin.Context) {
	st, ok := stage.StageFromSlug(c.Param("slug"))
	if !ok {
		writeError(c, http.StatusNotFound, stage.ErrUnknownStage.Error())
		return
	}
	number := c.Param("number")
	err := h.stages.Release(c.Request.Context(), stage.ReleaseCommand{
		OrderNumber: number,
		Stage:       st,
		AdminID:     middleware.CallerID(c),
		Note:        c.PostForm("note"),
	})
	switch {
	case err == nil:
		redirectNotice(c, "/staff/tasks", fmt.Sprintf("klaim order %s dilepas", number))
	case isClaimGuard(err):
		redirectNotice(c, fmt.Sprintf("/staff/%s/%s", st.Slug(), number), guardNotice(err, number))
	default:
		writeDomainError(c, err)
	}
}

// ProcessComplete marks cleaning done, moving the order into the delivery
// queue.
func (h *StaffHandler) ProcessComplete(c *gin.Context) {
	number := c.Param("number")
	if err := h.orders.ProcessComplete(c.Request.Context(), number); err != nil {
		writeDomainError(c, err)
		return
	}
	redirectNotice(c, "/staff/tasks", fmt.Sprintf("order %s siap diantar", number))
}

func isClaimGuard(err error) bool {
	switch err {
	case stage.ErrStageLockedByOther, stage.ErrStageAlreadyCompleted, stage.ErrStageNotClaimed:
		return true
	}
	return false
}

func guardNotice(err error, number string) string {
	switch err {
	case stage.ErrStageLockedByOther:
		return fmt.Sprintf("order %s sedang dikerjakan staff lain", number)
	case stage.ErrStageAlreadyCompleted:
		return fmt.Sprintf("tahap ini sudah selesai untuk order %s", number)
	case stage.ErrStageNotClaimed:
		return fmt.Sprintf("klaim order %s dulu sebelum menyelesaikan", number)
	}
	return err.Error()
}

type shoeReq struct {
	Brand      string   `json:"brand"`
	Color      string   `json:"color"`
	Note       string   `json:"note"`
	ServiceIDs []string `json:"service_ids"`
}

func parseShoes(raw string) ([]stage.ShoeSelection, error) {
	var reqs []shoeReq
	if err := json.Unmarshal([]byte(raw), &reqs); err != nil {
		return nil, err
	}
	out := make([]stage.ShoeSelection, 0, len(reqs))
	for _, r := range reqs {
		ids := make([]types.ID, 0, len(r.ServiceIDs))
		for _, id := range r.ServiceIDs {
			ids = append(ids, types.ID(id))
		}
		out = append(out, stage.ShoeSelection{
			Brand:      r.Brand,
			Color:      r.Color,
			Note:       r.Note,
			ServiceIDs: ids,
		})
	}
	return out, nil
}

func filepathExt(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i:]
	}
	return ""
}
