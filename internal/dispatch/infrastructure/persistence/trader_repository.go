package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/orderdispatch/internal/dispatch/domain"
	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// getDB 优先使用 context 中的事务句柄
func getDB(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return db.WithContext(ctx)
}

var (
	lockForUpdate = clause.Locking{Strength: "UPDATE"}
	// 忙碌策略下跳过其他事务已锁定的交易员
	lockSkipLocked = clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}
	lockForShare   = clause.Locking{Strength: "SHARE"}
)

// TraderRepository 交易员 gorm 仓储
type TraderRepository struct {
	db *gorm.DB
}

// NewTraderRepository 创建交易员仓储
func NewTraderRepository(db *gorm.DB) *TraderRepository {
	return &TraderRepository{db: db}
}

var _ domain.TraderRepository = (*TraderRepository)(nil)

func (r *TraderRepository) Ensure(ctx context.Context, channelHandle string) (*domain.Trader, bool, error) {
	t, err := domain.NewTrader(channelHandle)
	if err != nil {
		return nil, false, err
	}

	db := getDB(ctx, r.db)
	model := r.toModel(t)
	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_handle"}},
		DoNothing: true,
	}).Create(model)
	if res.Error != nil {
		return nil, false, fmt.Errorf("ensure trader: %w", res.Error)
	}

	var existing TraderModel
	if err := db.Where("channel_handle = ?", t.ChannelHandle).First(&existing).Error; err != nil {
		return nil, false, fmt.Errorf("load trader: %w", err)
	}
	return r.toDomain(&existing), res.RowsAffected == 1, nil
}

func (r *TraderRepository) Get(ctx context.Context, id uint) (*domain.Trader, error) {
	return r.find(getDB(ctx, r.db), id)
}

func (r *TraderRepository) GetForUpdate(ctx context.Context, id uint) (*domain.Trader, error) {
	return r.find(getDB(ctx, r.db).Clauses(lockForUpdate), id)
}

func (r *TraderRepository) find(db *gorm.DB, id uint) (*domain.Trader, error) {
	var model TraderModel
	if err := db.Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTraderNotFound
		}
		return nil, err
	}
	return r.toDomain(&model), nil
}

func (r *TraderRepository) Save(ctx context.Context, t *domain.Trader) error {
	res := getDB(ctx, r.db).Model(&TraderModel{}).Where("id = ?", t.ID).Updates(map[string]any{
		"requisites":         t.Requisites,
		"requisites_enabled": t.RequisitesEnabled,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrTraderNotFound
	}
	return nil
}

func (r *TraderRepository) FindEligible(ctx context.Context, busyPolicy bool) (*domain.Trader, error) {
	q := getDB(ctx, r.db).
		Where("requisites_enabled = ? AND requisites <> ?", true, "")
	if busyPolicy {
		q = q.Where("active_order_id IS NULL").Clauses(lockSkipLocked)
	} else {
		// 共享锁：与 SetEnabled 的排他锁互斥，多个派单事务可并行
		q = q.Clauses(lockForShare)
	}

	var models []TraderModel
	if err := q.Order("id ASC").Limit(1).Find(&models).Error; err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, nil
	}
	return r.toDomain(&models[0]), nil
}

func (r *TraderRepository) Reserve(ctx context.Context, traderID, orderID uint) (bool, error) {
	res := getDB(ctx, r.db).Model(&TraderModel{}).
		Where("id = ? AND active_order_id IS NULL", traderID).
		Update("active_order_id", orderID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *TraderRepository) Release(ctx context.Context, traderID, orderID uint) error {
	return getDB(ctx, r.db).Model(&TraderModel{}).
		Where("id = ? AND active_order_id = ?", traderID, orderID).
		Update("active_order_id", nil).Error
}

func (r *TraderRepository) toModel(t *domain.Trader) *TraderModel {
	return &TraderModel{
		Model:             gorm.Model{ID: t.ID, CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt},
		ChannelHandle:     t.ChannelHandle,
		Requisites:        t.Requisites,
		RequisitesEnabled: t.RequisitesEnabled,
		ActiveOrderID:     t.ActiveOrderID,
		Deposit:           t.Deposit,
		Frozen:            t.Frozen,
		Reserved:          t.Reserved,
		Referral:          t.Referral,
	}
}

func (r *TraderRepository) toDomain(m *TraderModel) *domain.Trader {
	return &domain.Trader{
		ID:                m.ID,
		ChannelHandle:     m.ChannelHandle,
		Requisites:        m.Requisites,
		RequisitesEnabled: m.RequisitesEnabled,
		ActiveOrderID:     m.ActiveOrderID,
		Deposit:           m.Deposit,
		Frozen:            m.Frozen,
		Reserved:          m.Reserved,
		Referral:          m.Referral,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}
