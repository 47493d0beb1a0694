// Пакет repository — слой доступа к данным PostgreSQL.
// Все запросы — чистый SQL через pgx, без ORM.
// Подключение к БД устанавливается лениво: репозитории получают пул
// через PoolProvider на каждом вызове (см. database.Manager).
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ошибки слоя репозиториев.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrUnavailable — не удалось получить подключение к БД.
	ErrUnavailable = errors.New("база данных недоступна")
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PoolProvider выдаёт пул подключений, устанавливая его при первом обращении.
// Реализуется database.Manager: конкурентные первые вызовы разделяют
// одну попытку подключения.
type PoolProvider interface {
	Pool(ctx context.Context) (*pgxpool.Pool, error)
}
