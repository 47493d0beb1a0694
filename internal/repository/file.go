package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/pinstore/internal/domain/model"
)

// fileColumns — список столбцов таблицы files для SELECT-запросов.
// DRY: одно место для всех SELECT'ов.
const fileColumns = `id, file_name, cid, size, mime_type, wallet_address, created_at, updated_at`

// FileRepository — интерфейс доступа к записям файлов.
type FileRepository interface {
	// Create вставляет новую запись. Заполняет CreatedAt/UpdatedAt из БД.
	Create(ctx context.Context, f *model.FileRecord) error
	// ListByWallet возвращает все файлы кошелька, новые первыми.
	ListByWallet(ctx context.Context, walletAddress string) ([]*model.FileRecord, error)
	// GetByCIDAndWallet возвращает запись по паре (cid, wallet) или ErrNotFound.
	GetByCIDAndWallet(ctx context.Context, cid, walletAddress string) (*model.FileRecord, error)
	// Delete удаляет запись по первичному ключу.
	Delete(ctx context.Context, id string) error
}

// fileRepo — реализация FileRepository через pgx с ленивым пулом.
type fileRepo struct {
	pp PoolProvider
}

// NewFileRepository создаёт репозиторий файлов.
func NewFileRepository(pp PoolProvider) FileRepository {
	return &fileRepo{pp: pp}
}

// db получает пул подключений через PoolProvider.
// Ошибка подключения маппится в ErrUnavailable (503 на уровне API).
func (r *fileRepo) db(ctx context.Context) (DBTX, error) {
	pool, err := r.pp.Pool(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return pool, nil
}

func (r *fileRepo) Create(ctx context.Context, f *model.FileRecord) error {
	db, err := r.db(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO files (id, file_name, cid, size, mime_type, wallet_address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`

	err = db.QueryRow(ctx, query,
		f.ID, f.FileName, f.CID, f.Size, f.MimeType, f.WalletAddress,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания записи файла: %w", err)
	}
	return nil
}

func (r *fileRepo) ListByWallet(ctx context.Context, walletAddress string) ([]*model.FileRecord, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM files
		WHERE wallet_address = $1
		ORDER BY created_at DESC`, fileColumns)

	rows, err := db.Query(ctx, query, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	var result []*model.FileRecord
	for rows.Next() {
		f := &model.FileRecord{}
		if err := rows.Scan(
			&f.ID, &f.FileName, &f.CID, &f.Size, &f.MimeType,
			&f.WalletAddress, &f.CreatedAt, &f.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи файла: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}

	return result, nil
}

func (r *fileRepo) GetByCIDAndWallet(ctx context.Context, cid, walletAddress string) (*model.FileRecord, error) {
	db, err := r.db(ctx)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM files WHERE cid = $1 AND wallet_address = $2 LIMIT 1`, fileColumns)

	f := &model.FileRecord{}
	err = db.QueryRow(ctx, query, cid, walletAddress).Scan(
		&f.ID, &f.FileName, &f.CID, &f.Size, &f.MimeType,
		&f.WalletAddress, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла: %w", err)
	}
	return f, nil
}

func (r *fileRepo) Delete(ctx context.Context, id string) error {
	db, err := r.db(ctx)
	if err != nil {
		return err
	}

	tag, err := db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления записи файла: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
