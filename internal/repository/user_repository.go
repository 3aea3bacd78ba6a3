package repository

import (
	"bookstore/internal/domain/model"
	"context"
)

// 照合用。発行・更新は認証サービス側
type UserRepository interface {
	// IDからユーザーを1件取得する。
	FindByID(ctx context.Context, userID int64) (*model.User, error)
}
