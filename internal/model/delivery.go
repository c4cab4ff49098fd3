package model

import "time"

const (
	DeliveryStatusSent   = "sent"
	DeliveryStatusFailed = "failed"
)

// DeliveryRecord 记录一个回复分段的发送结果。只保存匿名化后的发送方 ID。
type DeliveryRecord struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SenderID     string    `gorm:"type:char(64);index;not null" json:"senderId"`
	InboundSID   string    `gorm:"type:varchar(64);index" json:"inboundSid"`
	SegmentIndex int       `gorm:"not null" json:"segmentIndex"`
	SegmentTotal int       `gorm:"not null" json:"segmentTotal"`
	ProviderSID  string    `gorm:"type:varchar(64)" json:"providerSid"`
	Status       string    `gorm:"type:varchar(16);not null" json:"status"`
	Error        string    `gorm:"type:text" json:"error,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (DeliveryRecord) TableName() string {
	return "sms_deliveries"
}

// DeliveryView 是管理接口返回的投递记录。
type DeliveryView struct {
	SenderID     string    `json:"senderId"`
	InboundSID   string    `json:"inboundSid"`
	SegmentIndex int       `json:"segmentIndex"`
	SegmentTotal int       `json:"segmentTotal"`
	ProviderSID  string    `json:"providerSid"`
	Status       string    `json:"status"`
	Error        string    `json:"error,omitempty"`
	CreatedAt    LocalTime `json:"createdAt"`
}

// View 转换为管理接口的展示结构。
func (r DeliveryRecord) View() DeliveryView {
	return DeliveryView{
		SenderID:     r.SenderID,
		InboundSID:   r.InboundSID,
		SegmentIndex: r.SegmentIndex,
		SegmentTotal: r.SegmentTotal,
		ProviderSID:  r.ProviderSID,
		Status:       r.Status,
		Error:        r.Error,
		CreatedAt:    LocalTime(r.CreatedAt),
	}
}
