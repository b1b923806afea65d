package persistence

import (
	"context"
	"errors"

	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
	"gorm.io/gorm"
)

// TicketRepository 工单 gorm 仓储
type TicketRepository struct {
	db *gorm.DB
}

// NewTicketRepository 创建工单仓储
func NewTicketRepository(db *gorm.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

var _ domain.TicketRepository = (*TicketRepository)(nil)

func (r *TicketRepository) Create(ctx context.Context, t *domain.Ticket) error {
	model := r.toModel(t)
	if err := getDB(ctx, r.db).Create(model).Error; err != nil {
		return err
	}
	t.ID = model.ID
	t.CreatedAt = model.CreatedAt
	t.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *TicketRepository) Get(ctx context.Context, id uint) (*domain.Ticket, error) {
	return r.find(getDB(ctx, r.db), id)
}

func (r *TicketRepository) GetForUpdate(ctx context.Context, id uint) (*domain.Ticket, error) {
	return r.find(getDB(ctx, r.db).Clauses(lockForUpdate), id)
}

func (r *TicketRepository) find(db *gorm.DB, id uint) (*domain.Ticket, error) {
	var model TicketModel
	if err := db.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTicketNotFound
		}
		return nil, err
	}
	return r.toDomain(&model), nil
}

func (r *TicketRepository) Save(ctx context.Context, t *domain.Ticket) error {
	return getDB(ctx, r.db).Model(&TicketModel{}).Where("id = ?", t.ID).Updates(map[string]any{
		"status":    string(t.Status),
		"closed_at": t.ClosedAt,
	}).Error
}

func (r *TicketRepository) ListByTrader(ctx context.Context, traderID uint, limit, offset int) ([]*domain.Ticket, int64, error) {
	db := getDB(ctx, r.db).Model(&TicketModel{}).Where("trader_id = ?", traderID)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []TicketModel
	if err := db.Order("id DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	result := make([]*domain.Ticket, len(models))
	for i := range models {
		result[i] = r.toDomain(&models[i])
	}
	return result, total, nil
}

func (r *TicketRepository) toModel(t *domain.Ticket) *TicketModel {
	return &TicketModel{
		Model:    gorm.Model{ID: t.ID, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt},
		TicketNo: t.TicketNo,
		TraderID: t.TraderID,
		Text:     t.Text,
		Status:   string(t.Status),
		ClosedAt: t.ClosedAt,
	}
}

func (r *TicketRepository) toDomain(m *TicketModel) *domain.Ticket {
	return &domain.Ticket{
		ID:        m.ID,
		TicketNo:  m.TicketNo,
		TraderID:  m.TraderID,
		Text:      m.Text,
		Status:    domain.TicketStatus(m.Status),
		ClosedAt:  m.ClosedAt,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
