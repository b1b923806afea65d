package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
	"gorm.io/gorm"
)

// PayoutRepository 提现 gorm 仓储
type PayoutRepository struct {
	db *gorm.DB
}

// NewPayoutRepository 创建提现仓储
func NewPayoutRepository(db *gorm.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

var _ domain.PayoutRepository = (*PayoutRepository)(nil)

func (r *PayoutRepository) Create(ctx context.Context, p *domain.Payout) error {
	model := r.toModel(p)
	if err := getDB(ctx, r.db).Create(model).Error; err != nil {
		return err
	}
	p.ID = model.ID
	p.CreatedAt = model.CreatedAt
	p.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *PayoutRepository) Get(ctx context.Context, id uint) (*domain.Payout, error) {
	return r.find(getDB(ctx, r.db), id)
}

func (r *PayoutRepository) GetForUpdate(ctx context.Context, id uint) (*domain.Payout, error) {
	return r.find(getDB(ctx, r.db).Clauses(lockForUpdate), id)
}

func (r *PayoutRepository) find(db *gorm.DB, id uint) (*domain.Payout, error) {
	var model PayoutModel
	if err := db.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPayoutNotFound
		}
		return nil, err
	}
	return r.toDomain(&model), nil
}

func (r *PayoutRepository) UpdateStatus(ctx context.Context, p *domain.Payout, from domain.PayoutStatus) error {
	res := getDB(ctx, r.db).Model(&PayoutModel{}).
		Where("id = ? AND status = ?", p.ID, string(from)).
		Updates(map[string]any{
			"status":      string(p.Status),
			"reviewed_at": p.ReviewedAt,
			"paid_at":     p.PaidAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: payout %d changed concurrently", domain.ErrInvalidTransition, p.ID)
	}
	return nil
}

func (r *PayoutRepository) ListByTrader(ctx context.Context, traderID uint, limit, offset int) ([]*domain.Payout, int64, error) {
	db := getDB(ctx, r.db).Model(&PayoutModel{}).Where("trader_id = ?", traderID)

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []PayoutModel
	if err := db.Order("id DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	result := make([]*domain.Payout, len(models))
	for i := range models {
		result[i] = r.toDomain(&models[i])
	}
	return result, total, nil
}

func (r *PayoutRepository) toModel(p *domain.Payout) *PayoutModel {
	return &PayoutModel{
		Model:      gorm.Model{ID: p.ID, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt},
		PayoutNo:   p.PayoutNo,
		TraderID:   p.TraderID,
		Amount:     p.Amount,
		Currency:   p.Currency,
		Status:     string(p.Status),
		ReviewedAt: p.ReviewedAt,
		PaidAt:     p.PaidAt,
	}
}

func (r *PayoutRepository) toDomain(m *PayoutModel) *domain.Payout {
	p := &domain.Payout{
		ID:         m.ID,
		PayoutNo:   m.PayoutNo,
		TraderID:   m.TraderID,
		Amount:     m.Amount,
		Currency:   m.Currency,
		Status:     domain.PayoutStatus(m.Status),
		ReviewedAt: m.ReviewedAt,
		PaidAt:     m.PaidAt,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	p.InitFSM()
	return p
}
