package domain

import (
	"fmt"
	"strings"
	"time"
)

// TicketStatus 工单状态
type TicketStatus string

const (
	TicketStatusOpen   TicketStatus = "open"
	TicketStatusClosed TicketStatus = "closed"
)

// Ticket 交易员申诉工单
type Ticket struct {
	ID        uint         `json:"id"`
	TicketNo  string       `json:"ticket_no"`
	TraderID  uint         `json:"trader_id"`
	Text      string       `json:"text"`
	Status    TicketStatus `json:"status"`
	ClosedAt  *time.Time   `json:"closed_at,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewTicket 创建工单
func NewTicket(ticketNo string, traderID uint, text string) (*Ticket, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: ticket text is required", ErrInvalidArgument)
	}
	return &Ticket{
		TicketNo: ticketNo,
		TraderID: traderID,
		Text:     text,
		Status:   TicketStatusOpen,
	}, nil
}

// Close 关闭工单，已关闭时返回 false
func (t *Ticket) Close() bool {
	if t.Status == TicketStatusClosed {
		return false
	}
	t.Status = TicketStatusClosed
	now := time.Now()
	t.ClosedAt = &now
	return true
}
