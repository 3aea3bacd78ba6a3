package repository

import (
	"errors"
	"fmt"

	repo "bookstore/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgresのエラーを repository のエラーへ寄せる
func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repo.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		// serialization_failure / deadlock_detected / lock_not_available
		case "40001", "40P01", "55P03":
			return fmt.Errorf("%w: %s", repo.ErrConflict, pgErr.Message)
		// unique_violation
		case "23505":
			return fmt.Errorf("%w: %s", repo.ErrDuplicate, pgErr.ConstraintName)
		}
	}
	return err
}

// 条件付きUPDATEの結果（0件なら条件不成立）
func affected(res *gorm.DB) (bool, error) {
	if res.Error != nil {
		return false, mapDBError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// 0件更新は対象なし
func mustAffect(res *gorm.DB) error {
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return repo.ErrNotFound
	}
	return nil
}
