package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
	"github.com/wyfcoding/pkg/response"
)

// statusFor 业务错误到 HTTP 状态码的唯一映射
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTraderNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrPayoutNotFound),
		errors.Is(err, domain.ErrTicketNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateOrder),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrNoTraderAvailable):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRequisitesMissing):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	// 存储细节不外泄
	if status >= http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	response.ErrorWithStatus(c, status, msg, "")
}
