package model

import "time"

type Role string

const (
	RoleCustomer Role = "CUSTOMER"
	RoleStaff    Role = "STAFF"
	RoleAdmin    Role = "ADMIN"
)

// 認証情報の発行は別サービス。ここでは照合とポイント残高だけ持つ
type User struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	Email         string `gorm:"uniqueIndex;not null"`
	Role          Role   `gorm:"type:varchar(20);not null;default:'CUSTOMER'"`
	TokenVersion  int    `gorm:"not null;default:0"`
	IsActive      bool   `gorm:"not null;default:true"`
	LoyaltyPoints int64  `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
