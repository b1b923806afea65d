package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/orderdispatch/internal/dispatch/application"
	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
	"github.com/wyfcoding/pkg/response"
)

// Handler 派单服务 HTTP 处理器
// 商户入口与交易员界面、运营后台共用的 JSON API
type Handler struct {
	svc *application.DispatchService
}

func NewHandler(svc *application.DispatchService) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册路由，merchantMiddlewares 仅作用于商户入口（如限流）
func (h *Handler) RegisterRoutes(router gin.IRouter, merchantMiddlewares ...gin.HandlerFunc) {
	router.POST("/merchant/order", append(merchantMiddlewares, h.MerchantOrder)...)

	api := router.Group("/api/v1")
	{
		traders := api.Group("/traders")
		traders.POST("", h.EnsureTrader)
		traders.GET("/:id", h.GetTrader)
		traders.PUT("/:id/requisites", h.SetRequisites)
		traders.PUT("/:id/enabled", h.SetEnabled)
		traders.GET("/:id/orders", h.ListOrders)
		traders.GET("/:id/stats", h.TraderStats)
		traders.POST("/:id/payouts", h.RequestPayout)
		traders.GET("/:id/payouts", h.ListPayouts)
		traders.POST("/:id/tickets", h.OpenTicket)
		traders.GET("/:id/tickets", h.ListTickets)

		api.GET("/orders/:id", h.GetOrder)
		api.POST("/orders/:id/transition", h.TransitionOrder)
		api.POST("/payouts/:id/review", h.ReviewPayout)
		api.POST("/payouts/:id/paid", h.MarkPayoutPaid)
		api.POST("/tickets/:id/close", h.CloseTicket)
	}
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid id", "")
		return 0, false
	}
	return uint(id), true
}

func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return false
	}
	return true
}

func listQuery(c *gin.Context, traderID uint) application.ListQuery {
	page, _ := strconv.Atoi(c.Query("page"))
	pageSize, _ := strconv.Atoi(c.Query("page_size"))
	return application.ListQuery{TraderID: traderID, Page: page, PageSize: pageSize}
}

type EnsureTraderRequest struct {
	ChannelHandle string `json:"channel_handle" binding:"required"`
}

// EnsureTrader 交易员首次交互时注册
func (h *Handler) EnsureTrader(c *gin.Context) {
	var req EnsureTraderRequest
	if !bindJSON(c, &req) {
		return
	}
	trader, created, err := h.svc.Traders.EnsureTrader(c.Request.Context(), req.ChannelHandle)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"trader": trader, "created": created})
}

func (h *Handler) GetTrader(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	trader, err := h.svc.Query.GetTrader(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, trader)
}

type SetRequisitesRequest struct {
	Requisites string `json:"requisites"`
}

func (h *Handler) SetRequisites(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req SetRequisitesRequest
	if !bindJSON(c, &req) {
		return
	}
	trader, err := h.svc.Traders.SetRequisites(c.Request.Context(), id, req.Requisites)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, trader)
}

type SetEnabledRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func (h *Handler) SetEnabled(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req SetEnabledRequest
	if !bindJSON(c, &req) {
		return
	}
	trader, err := h.svc.Traders.SetEnabled(c.Request.Context(), id, *req.Enabled)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, trader)
}

// ListOrders 交易员订单列表，?status 过滤
func (h *Handler) ListOrders(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	q := listQuery(c, id)
	if s := c.Query("status"); s != "" {
		status, err := domain.ParseOrderStatus(s)
		if err != nil {
			writeError(c, err)
			return
		}
		q.Status = status
	}
	list, err := h.svc.Query.ListOrders(c.Request.Context(), q)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, list)
}

func (h *Handler) TraderStats(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	stats, err := h.svc.Query.TraderStats(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, stats)
}

type RequestPayoutRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency" binding:"required"`
}

func (h *Handler) RequestPayout(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req RequestPayoutRequest
	if !bindJSON(c, &req) {
		return
	}
	payout, err := h.svc.Payouts.RequestPayout(c.Request.Context(), application.RequestPayoutCommand{
		TraderID: id,
		Amount:   req.Amount,
		Currency: req.Currency,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, payout)
}

func (h *Handler) ListPayouts(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	list, err := h.svc.Query.ListPayouts(c.Request.Context(), listQuery(c, id))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, list)
}

type OpenTicketRequest struct {
	Text string `json:"text" binding:"required"`
}

func (h *Handler) OpenTicket(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req OpenTicketRequest
	if !bindJSON(c, &req) {
		return
	}
	ticket, err := h.svc.Tickets.OpenTicket(c.Request.Context(), id, req.Text)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, ticket)
}

func (h *Handler) ListTickets(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	list, err := h.svc.Query.ListTickets(c.Request.Context(), listQuery(c, id))
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, list)
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	order, err := h.svc.Query.GetOrder(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, order)
}

type TransitionRequest struct {
	Status string `json:"status" binding:"required"`
}

// TransitionOrder 交易员接单、完成或取消
func (h *Handler) TransitionOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req TransitionRequest
	if !bindJSON(c, &req) {
		return
	}
	target, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	order, err := h.svc.Orders.Transition(c.Request.Context(), id, target)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, order)
}

type ReviewPayoutRequest struct {
	Approve *bool `json:"approve" binding:"required"`
}

// ReviewPayout 运营审核提现
func (h *Handler) ReviewPayout(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req ReviewPayoutRequest
	if !bindJSON(c, &req) {
		return
	}
	payout, err := h.svc.Payouts.ReviewPayout(c.Request.Context(), id, *req.Approve)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, payout)
}

func (h *Handler) MarkPayoutPaid(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	payout, err := h.svc.Payouts.MarkPaid(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, payout)
}

func (h *Handler) CloseTicket(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ticket, err := h.svc.Tickets.CloseTicket(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, ticket)
}
