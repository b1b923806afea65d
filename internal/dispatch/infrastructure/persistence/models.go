// Package persistence 派单服务的 gorm 仓储实现，支持 postgres、mysql 与 sqlite
package persistence

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/pkg/messagequeue/outbox"
	"gorm.io/gorm"
)

// TraderModel 交易员表
type TraderModel struct {
	gorm.Model
	ChannelHandle     string          `gorm:"column:channel_handle;type:varchar(128);uniqueIndex;not null"`
	Requisites        string          `gorm:"column:requisites;type:text;not null;default:''"`
	RequisitesEnabled bool            `gorm:"column:requisites_enabled;not null;default:false;index"`
	ActiveOrderID     *uint           `gorm:"column:active_order_id;index"`
	Deposit           decimal.Decimal `gorm:"column:deposit;type:decimal(32,8);not null;default:0"`
	Frozen            decimal.Decimal `gorm:"column:frozen;type:decimal(32,8);not null;default:0"`
	Reserved          decimal.Decimal `gorm:"column:reserved;type:decimal(32,8);not null;default:0"`
	Referral          decimal.Decimal `gorm:"column:referral;type:decimal(32,8);not null;default:0"`
}

func (TraderModel) TableName() string {
	return "traders"
}

// OrderModel 订单表
type OrderModel struct {
	gorm.Model
	OrderNo         string          `gorm:"column:order_no;type:varchar(64);uniqueIndex;not null"`
	MerchantOrderID string          `gorm:"column:merchant_order_id;type:varchar(128);uniqueIndex;not null"`
	Amount          decimal.Decimal `gorm:"column:amount;type:decimal(32,8);not null"`
	Currency        string          `gorm:"column:currency;type:varchar(16);not null"`
	Status          string          `gorm:"column:status;type:varchar(16);not null;index"`
	TraderID        uint            `gorm:"column:trader_id;not null;index"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// PayoutModel 提现表
type PayoutModel struct {
	gorm.Model
	PayoutNo   string          `gorm:"column:payout_no;type:varchar(64);uniqueIndex;not null"`
	TraderID   uint            `gorm:"column:trader_id;not null;index"`
	Amount     decimal.Decimal `gorm:"column:amount;type:decimal(32,8);not null"`
	Currency   string          `gorm:"column:currency;type:varchar(16);not null"`
	Status     string          `gorm:"column:status;type:varchar(16);not null;index"`
	ReviewedAt *time.Time      `gorm:"column:reviewed_at"`
	PaidAt     *time.Time      `gorm:"column:paid_at"`
}

func (PayoutModel) TableName() string {
	return "payouts"
}

// TicketModel 工单表
type TicketModel struct {
	gorm.Model
	TicketNo string     `gorm:"column:ticket_no;type:varchar(64);uniqueIndex;not null"`
	TraderID uint       `gorm:"column:trader_id;not null;index"`
	Text     string     `gorm:"column:text;type:text;not null"`
	Status   string     `gorm:"column:status;type:varchar(16);not null;index"`
	ClosedAt *time.Time `gorm:"column:closed_at"`
}

func (TicketModel) TableName() string {
	return "tickets"
}

// AutoMigrate 创建或更新全部表结构
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&TraderModel{},
		&OrderModel{},
		&PayoutModel{},
		&TicketModel{},
	); err != nil {
		return err
	}
	return migrateOutbox(db)
}

// outbox.Message 的列类型（blob、tinyint、datetime）postgres 不支持，单独建表
var postgresOutboxDDL = []string{
	`CREATE TABLE IF NOT EXISTS sys_outbox_messages (
		id bigserial PRIMARY KEY,
		created_at timestamptz,
		updated_at timestamptz,
		deleted_at timestamptz,
		next_retry timestamptz,
		topic varchar(255) NOT NULL,
		"key" varchar(255),
		metadata text,
		last_error text,
		payload bytea NOT NULL,
		retry_count integer DEFAULT 0,
		max_retries integer DEFAULT 5,
		status smallint DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sys_outbox_messages_deleted_at ON sys_outbox_messages (deleted_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sys_outbox_messages_next_retry ON sys_outbox_messages (next_retry)`,
	`CREATE INDEX IF NOT EXISTS idx_sys_outbox_messages_topic ON sys_outbox_messages (topic)`,
	`CREATE INDEX IF NOT EXISTS idx_sys_outbox_messages_key ON sys_outbox_messages ("key")`,
	`CREATE INDEX IF NOT EXISTS idx_sys_outbox_messages_status ON sys_outbox_messages (status)`,
}

func migrateOutbox(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return db.AutoMigrate(&outbox.Message{})
	}
	for _, stmt := range postgresOutboxDDL {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
