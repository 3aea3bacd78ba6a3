package model

import "time"

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusPublished OutboxStatus = "PUBLISHED"
)

// 送信待ちイベント。業務データと同じトランザクションで書く
type OutboxEvent struct {
	ID          int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	Topic       string       `gorm:"type:varchar(100);not null" json:"topic"`
	Key         string       `gorm:"type:varchar(100);not null" json:"key"`
	Payload     string       `gorm:"type:text;not null" json:"payload"`
	Status      OutboxStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt   time.Time    `gorm:"not null;autoCreateTime" json:"created_at"`
	PublishedAt *time.Time   `json:"published_at,omitempty"`
}
