package application

import (
	"context"
	"time"

	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
	"github.com/wyfcoding/orderdispatch/pkg/logger"
)

// TicketCommandService 申诉工单
type TicketCommandService struct {
	txRunner
	tickets domain.TicketRepository
	traders domain.TraderRepository
	events  domain.EventPublisher
	newNo   NoGenerator
}

// NewTicketCommandService 创建工单命令服务
func NewTicketCommandService(deps Deps) *TicketCommandService {
	return &TicketCommandService{
		txRunner: txRunner{tx: deps.Tx, timeout: deps.Timeout},
		tickets:  deps.Tickets,
		traders:  deps.Traders,
		events:   deps.Events,
		newNo:    deps.noGenerator(),
	}
}

// OpenTicket 交易员提交工单
func (s *TicketCommandService) OpenTicket(ctx context.Context, traderID uint, text string) (*TicketDTO, error) {
	ticket, err := domain.NewTicket(s.newNo("TK"), traderID, text)
	if err != nil {
		return nil, err
	}
	err = s.inTx(ctx, func(txCtx context.Context) error {
		if _, err := s.traders.Get(txCtx, traderID); err != nil {
			return err
		}
		if err := s.tickets.Create(txCtx, ticket); err != nil {
			return err
		}
		return s.events.Publish(txCtx, ticketEvent(domain.EventTicketOpened, ticket))
	})
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "ticket opened", "ticket_no", ticket.TicketNo, "trader_id", traderID)
	return toTicketDTO(ticket), nil
}

// CloseTicket 关闭工单，重复关闭直接返回当前状态
func (s *TicketCommandService) CloseTicket(ctx context.Context, ticketID uint) (*TicketDTO, error) {
	var ticket *domain.Ticket
	err := s.inTx(ctx, func(txCtx context.Context) error {
		t, err := s.tickets.GetForUpdate(txCtx, ticketID)
		if err != nil {
			return err
		}
		ticket = t
		if !t.Close() {
			return nil
		}
		if err := s.tickets.Save(txCtx, t); err != nil {
			return err
		}
		return s.events.Publish(txCtx, ticketEvent(domain.EventTicketClosed, t))
	})
	if err != nil {
		return nil, err
	}
	return toTicketDTO(ticket), nil
}

func ticketEvent(eventType string, t *domain.Ticket) domain.TicketEvent {
	return domain.TicketEvent{
		Type:       eventType,
		TicketID:   t.ID,
		TicketNo:   t.TicketNo,
		TraderID:   t.TraderID,
		Status:     t.Status,
		OccurredOn: time.Now(),
	}
}
