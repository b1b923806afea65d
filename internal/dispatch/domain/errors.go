package domain

import "errors"

// 业务错误，调用方使用 errors.Is 判断
var (
	// ErrDuplicateOrder 商户订单号已存在
	ErrDuplicateOrder = errors.New("duplicate merchant order")
	// ErrNoTraderAvailable 当前没有可接单的交易员
	ErrNoTraderAvailable = errors.New("no trader available")
	// ErrRequisitesMissing 未填写收款信息时不能开启接单
	ErrRequisitesMissing = errors.New("requisites missing")
	// ErrInvalidAmount 金额必须大于 0
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidTransition 目标状态不可达
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidArgument 参数缺失或格式错误
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnavailable 存储故障或超时，可使用相同商户订单号重试
	ErrUnavailable = errors.New("service unavailable")

	ErrTraderNotFound = errors.New("trader not found")
	ErrOrderNotFound  = errors.New("order not found")
	ErrPayoutNotFound = errors.New("payout not found")
	ErrTicketNotFound = errors.New("ticket not found")
)
