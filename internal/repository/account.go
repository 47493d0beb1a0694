package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/pinstore/internal/domain/model"
)

// AccountRepository — интерфейс доступа к счётчикам использованного места.
type AccountRepository interface {
	// AddUsage атомарно увеличивает счётчик кошелька на delta байт.
	// Счётчик создаётся неявно при первом обращении (upsert).
	AddUsage(ctx context.Context, walletAddress string, delta int64) error
	// SubtractUsage атомарно уменьшает счётчик кошелька на delta байт.
	// Счётчик не опускается ниже нуля.
	SubtractUsage(ctx context.Context, walletAddress string, delta int64) error
	// GetByWallet возвращает счётчик кошелька или ErrNotFound.
	GetByWallet(ctx context.Context, walletAddress string) (*model.StorageAccount, error)
}

// accountRepo — реализация AccountRepository через pgx с ленивым пулом.
type accountRepo struct {
	pp PoolProvider
}

// NewAccountRepository создаёт репозиторий счётчиков.
func NewAccountRepository(pp PoolProvider) AccountRepository {
	return &accountRepo{pp: pp}
}

func (r *accountRepo) db(ctx context.Context) (DBTX, error) {
	pool, err := r.pp.Pool(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return pool, nil
}

func (r *accountRepo) AddUsage(ctx context.Context, walletAddress string, delta int64) error {
	db, err := r.db(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO storage_accounts (wallet_address, total_storage_used)
		VALUES ($1, $2)
		ON CONFLICT (wallet_address) DO UPDATE
		SET total_storage_used = storage_accounts.total_storage_used + EXCLUDED.total_storage_used,
		    updated_at = now()`

	if _, err := db.Exec(ctx, query, walletAddress, delta); err != nil {
		return fmt.Errorf("ошибка обновления счётчика хранилища: %w", err)
	}
	return nil
}

func (r *accountRepo) SubtractUsage(ctx context.Context, walletAddress string, delta int64) error {
	db, err := r.db(ctx)
	if err != nil {
		return err
	}

	// GREATEST не даёт счётчику уйти в минус при повторных удалениях.
	query := `
		UPDATE storage_accounts
		SET total_storage_used = GREATEST(total_storage_used - $2, 0),
		    updated_at = now()
		WHERE wallet_address = $1`

	if _, err := db.Exec(ctx, query, walletAddress, delta); err != nil {
		return fmt.Errorf("ошибка уменьшения счётчика хранилища: %w", err)
	}
	return nil
}

func (r *accountRepo) GetByWallet(ctx context.Context, walletAddress string) (*model.StorageAccount, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT wallet_address, total_storage_used, created_at, updated_at
		FROM storage_accounts
		WHERE wallet_address = $1`

	a := &model.StorageAccount{}
	err = db.QueryRow(ctx, query, walletAddress).Scan(
		&a.WalletAddress, &a.TotalStorageUsed, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения счётчика хранилища: %w", err)
	}
	return a, nil
}
