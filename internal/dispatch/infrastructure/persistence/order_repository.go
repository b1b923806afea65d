package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
	"gorm.io/gorm"
)

// OrderRepository 订单 gorm 仓储
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

var _ domain.OrderRepository = (*OrderRepository)(nil)

func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	model := r.toModel(o)
	if err := getDB(ctx, r.db).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateOrder, o.MerchantOrderID)
		}
		return err
	}
	o.ID = model.ID
	o.CreatedAt = model.CreatedAt
	o.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id uint) (*domain.Order, error) {
	return r.first(getDB(ctx, r.db).Where("id = ?", id))
}

func (r *OrderRepository) GetForUpdate(ctx context.Context, id uint) (*domain.Order, error) {
	return r.first(getDB(ctx, r.db).Clauses(lockForUpdate).Where("id = ?", id))
}

func (r *OrderRepository) GetByMerchantOrderID(ctx context.Context, merchantOrderID string) (*domain.Order, error) {
	return r.first(getDB(ctx, r.db).Where("merchant_order_id = ?", merchantOrderID))
}

func (r *OrderRepository) first(q *gorm.DB) (*domain.Order, error) {
	var model OrderModel
	if err := q.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrOrderNotFound
		}
		return nil, err
	}
	return r.toDomain(&model), nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, o *domain.Order, from domain.OrderStatus) error {
	res := getDB(ctx, r.db).Model(&OrderModel{}).
		Where("id = ? AND status = ?", o.ID, string(from)).
		Update("status", string(o.Status))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: order %d changed concurrently", domain.ErrInvalidTransition, o.ID)
	}
	return nil
}

func (r *OrderRepository) ListByTrader(ctx context.Context, traderID uint, status domain.OrderStatus, limit, offset int) ([]*domain.Order, int64, error) {
	db := getDB(ctx, r.db).Model(&OrderModel{}).Where("trader_id = ?", traderID)
	if status != "" {
		db = db.Where("status = ?", string(status))
	}

	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []OrderModel
	if err := db.Order("id DESC").Offset(offset).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	result := make([]*domain.Order, len(models))
	for i := range models {
		result[i] = r.toDomain(&models[i])
	}
	return result, total, nil
}

func (r *OrderRepository) CountByStatus(ctx context.Context, traderID uint) (map[domain.OrderStatus]int64, error) {
	var rows []struct {
		Status string
		Cnt    int64
	}
	err := getDB(ctx, r.db).Model(&OrderModel{}).
		Select("status, COUNT(*) AS cnt").
		Where("trader_id = ?", traderID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := map[domain.OrderStatus]int64{
		domain.OrderStatusNew:    0,
		domain.OrderStatusInWork: 0,
		domain.OrderStatusDone:   0,
		domain.OrderStatusCancel: 0,
	}
	for _, row := range rows {
		counts[domain.OrderStatus(row.Status)] = row.Cnt
	}
	return counts, nil
}

func (r *OrderRepository) toModel(o *domain.Order) *OrderModel {
	return &OrderModel{
		Model:           gorm.Model{ID: o.ID, CreatedAt: o.CreatedAt, UpdatedAt: o.UpdatedAt},
		OrderNo:         o.OrderNo,
		MerchantOrderID: o.MerchantOrderID,
		Amount:          o.Amount,
		Currency:        o.Currency,
		Status:          string(o.Status),
		TraderID:        o.TraderID,
	}
}

func (r *OrderRepository) toDomain(m *OrderModel) *domain.Order {
	o := &domain.Order{
		ID:              m.ID,
		OrderNo:         m.OrderNo,
		MerchantOrderID: m.MerchantOrderID,
		Amount:          m.Amount,
		Currency:        m.Currency,
		Status:          domain.OrderStatus(m.Status),
		TraderID:        m.TraderID,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	o.InitFSM()
	return o
}
