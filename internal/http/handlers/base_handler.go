// README: Base handler utilities (JSON helpers, error mapping, redirects).
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"kilap/internal/modules/account"
	"kilap/internal/modules/catalog"
	"kilap/internal/modules/order"
	"kilap/internal/modules/payment"
	"kilap/internal/modules/stage"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(c *gin.Context, status int, msg string) {
	c.JSON(status, errorResponse{Error: msg})
}

func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound), errors.Is(err, account.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrBadRequest),
		errors.Is(err, order.ErrOutsideServiceArea),
		errors.Is(err, account.ErrBadInput),
		errors.Is(err, catalog.ErrUnknownService),
		errors.Is(err, stage.ErrUnknownStage),
		errors.Is(err, payment.ErrBadOrderRef):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, account.ErrEmailTaken):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, account.ErrBadCredentials), errors.Is(err, account.ErrBadSession):
		writeError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, payment.ErrBadSignature):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, order.ErrInvalidState),
		errors.Is(err, stage.ErrStageLockedByOther),
		errors.Is(err, stage.ErrStageAlreadyCompleted),
		errors.Is(err, stage.ErrStageNotClaimed),
		errors.Is(err, stage.ErrStageNotApplicable):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, stage.ErrPhotoRequired), errors.Is(err, stage.ErrShoesRequired):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// redirectNotice sends a 302 with a flash message in the notice query param.
// Staff mutations and guard rejections land back on a page, not a JSON body.
func redirectNotice(c *gin.Context, location, notice string) {
	if notice != "" {
		location = fmt.Sprintf("%s?notice=%s", location, url.QueryEscape(notice))
	}
	c.Redirect(http.StatusFound, location)
}
