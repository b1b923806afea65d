package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/orderdispatch/internal/dispatch/application"
	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
)

// MerchantOrderRequest 商户下单请求，amount 可以是数字或字符串
type MerchantOrderRequest struct {
	ID       string          `json:"id" binding:"required"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" binding:"required"`
}

// MerchantOrder 商户入口，返回 {"status": ...} 格式
func (h *Handler) MerchantOrder(c *gin.Context) {
	var req MerchantOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "invalid", "error": err.Error()})
		return
	}

	order, err := h.svc.Dispatcher.Dispatch(c.Request.Context(), application.DispatchCommand{
		MerchantOrderID: req.ID,
		Amount:          req.Amount,
		Currency:        req.Currency,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"order_id":  order.ID,
			"order_no":  order.OrderNo,
			"trader_id": order.TraderID,
		})
	case errors.Is(err, domain.ErrNoTraderAvailable):
		c.JSON(http.StatusOK, gin.H{"status": "no_trader"})
	case errors.Is(err, domain.ErrDuplicateOrder):
		c.JSON(http.StatusConflict, gin.H{"status": "duplicate"})
	case errors.Is(err, domain.ErrInvalidArgument), errors.Is(err, domain.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"status": "invalid", "error": err.Error()})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
	}
}
