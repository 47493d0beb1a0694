// files.go — сервис метаданных файлов.
// Координирует repository, кэш списков, счётчики места и Prometheus-метрики.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/pinstore/internal/domain/model"
	"github.com/bigkaa/pinstore/internal/repository"
)

// Ошибки сервисного слоя.
var (
	// ErrNotFound — запись файла не найдена.
	ErrNotFound = errors.New("файл не найден")
)

// Prometheus-метрики операций с метаданными.
var (
	filesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ps_files_created_total",
		Help: "Общее количество созданных записей файлов.",
	})
	filesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ps_files_deleted_total",
		Help: "Общее количество удалённых записей файлов.",
	})
	listTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ps_list_total",
		Help: "Общее количество запросов списка файлов.",
	})
	listDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ps_list_duration_seconds",
		Help:    "Длительность запросов списка файлов.",
		Buckets: prometheus.DefBuckets,
	})
)

// CreateParams — параметры создания записи файла.
// Все поля уже провалидированы обработчиком; SizeBytes — распарсенный Size.
type CreateParams struct {
	FileName      string
	CID           string
	Size          string
	SizeBytes     int64
	MimeType      string
	WalletAddress string
}

// FileService — сервис метаданных файлов: create/list/delete
// с учётом места и кэшем списков.
type FileService struct {
	fileRepo    repository.FileRepository
	accountRepo repository.AccountRepository
	cache       *CacheService
	logger      *slog.Logger
}

// NewFileService создаёт сервис метаданных.
func NewFileService(
	fileRepo repository.FileRepository,
	accountRepo repository.AccountRepository,
	cache *CacheService,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		fileRepo:    fileRepo,
		accountRepo: accountRepo,
		cache:       cache,
		logger:      logger.With(slog.String("component", "file_service")),
	}
}

// Create сохраняет запись файла, увеличивает счётчик места кошелька
// и инвалидирует его кэш списка. Транзакция не используется: частичный
// сбой между записью и счётчиком допустим для этого уровня.
func (s *FileService) Create(ctx context.Context, params CreateParams) (*model.FileRecord, error) {
	record := &model.FileRecord{
		ID:            uuid.NewString(),
		FileName:      params.FileName,
		CID:           params.CID,
		Size:          params.Size,
		MimeType:      params.MimeType,
		WalletAddress: params.WalletAddress,
	}

	if err := s.fileRepo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("создание записи файла: %w", err)
	}

	if err := s.accountRepo.AddUsage(ctx, params.WalletAddress, params.SizeBytes); err != nil {
		return nil, fmt.Errorf("обновление счётчика места: %w", err)
	}

	// Мутация — запись кошелька в кэше больше не актуальна
	s.cache.Invalidate(params.WalletAddress)
	filesCreatedTotal.Inc()

	s.logger.Info("Запись файла создана",
		slog.String("file_id", record.ID),
		slog.String("cid", record.CID),
		slog.String("wallet", record.WalletAddress),
		slog.Int64("size", params.SizeBytes),
	)

	return record, nil
}

// List возвращает декорированный список файлов кошелька, новые первыми.
// Валидная (не истёкшая) запись кэша возвращается без обращения к БД.
func (s *FileService) List(ctx context.Context, walletAddress string) ([]model.FileView, error) {
	start := time.Now()
	listTotal.Inc()

	if files, ok := s.cache.Get(walletAddress); ok {
		s.logger.Debug("Кэш hit для списка файлов", slog.String("wallet", walletAddress))
		return files, nil
	}

	records, err := s.fileRepo.ListByWallet(ctx, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("получение списка файлов: %w", err)
	}

	files := make([]model.FileView, 0, len(records))
	for _, r := range records {
		files = append(files, decorate(r))
	}

	s.cache.Set(walletAddress, files)
	listDuration.Observe(time.Since(start).Seconds())

	return files, nil
}

// Delete удаляет запись по (cid, wallet), уменьшает счётчик места
// и инвалидирует кэш. Возвращает ErrNotFound, если записи нет.
func (s *FileService) Delete(ctx context.Context, cid, walletAddress string) error {
	record, err := s.fileRepo.GetByCIDAndWallet(ctx, cid, walletAddress)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("поиск записи файла: %w", err)
	}

	if err := s.fileRepo.Delete(ctx, record.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Запись исчезла между lookup и delete — для вызывающего это 404
			return ErrNotFound
		}
		return fmt.Errorf("удаление записи файла: %w", err)
	}

	// Нечитаемый размер считается нулевым — счётчик не трогаем
	if size := parseSizeOrZero(record.Size); size > 0 {
		if err := s.accountRepo.SubtractUsage(ctx, walletAddress, size); err != nil {
			return fmt.Errorf("уменьшение счётчика места: %w", err)
		}
	}

	s.cache.Invalidate(walletAddress)
	filesDeletedTotal.Inc()

	s.logger.Info("Запись файла удалена",
		slog.String("file_id", record.ID),
		slog.String("cid", cid),
		slog.String("wallet", walletAddress),
	)

	return nil
}

// decorate строит FileView: lastUpdate с fallback и человекочитаемый размер.
func decorate(r *model.FileRecord) model.FileView {
	lastUpdate := r.UpdatedAt
	if lastUpdate.IsZero() {
		lastUpdate = r.CreatedAt
	}

	return model.FileView{
		ID:            r.ID,
		FileName:      r.FileName,
		CID:           r.CID,
		Size:          r.Size,
		MimeType:      r.MimeType,
		WalletAddress: r.WalletAddress,
		CreatedAt:     r.CreatedAt,
		LastUpdate:    lastUpdate,
		FormattedSize: FormatSize(parseSizeOrZero(r.Size)),
	}
}

// parseSizeOrZero парсит строковый размер; нечитаемое значение — ноль.
func parseSizeOrZero(size string) int64 {
	n, err := strconv.ParseInt(size, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// FormatSize возвращает человекочитаемый размер: последовательное деление
// на 1024 с округлением до двух знаков и выбором единицы B/KB/MB/GB.
func FormatSize(bytes int64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", bytes)
	}
	v := float64(bytes) / 1024
	if v < 1024 {
		return fmt.Sprintf("%.2f KB", v)
	}
	v /= 1024
	if v < 1024 {
		return fmt.Sprintf("%.2f MB", v)
	}
	return fmt.Sprintf("%.2f GB", v/1024)
}
