package repository

import (
	"context"

	"gorm.io/gorm"
	"sms-relay-go/internal/model"
)

// DeliveryRepository 持久化每个回复分段的发送结果。
type DeliveryRepository interface {
	Create(ctx context.Context, record *model.DeliveryRecord) error
	ListBySender(ctx context.Context, senderID string, limit int) ([]model.DeliveryRecord, error)
}

type deliveryRepository struct {
	db *gorm.DB
}

// NewDeliveryRepository 创建一个新的 DeliveryRepository 实例。
func NewDeliveryRepository(db *gorm.DB) DeliveryRepository {
	return &deliveryRepository{db: db}
}

// AutoMigrate 创建或更新 sms_deliveries 表。
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&model.DeliveryRecord{})
}

func (r *deliveryRepository) Create(ctx context.Context, record *model.DeliveryRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// ListBySender 按时间倒序返回某个发送方最近的投递记录。
func (r *deliveryRepository) ListBySender(ctx context.Context, senderID string, limit int) ([]model.DeliveryRecord, error) {
	var records []model.DeliveryRecord
	q := r.db.WithContext(ctx).Where("sender_id = ?", senderID).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&records).Error
	return records, err
}
