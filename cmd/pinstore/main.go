// Точка входа Pinstore — сервис метаданных файлов и проброса загрузок.
// Загружает конфигурацию, создаёт менеджер ленивого подключения к PostgreSQL,
// клиент pinning API, сервисный слой и API handlers, запускает мониторинг
// зависимостей (topologymetrics) и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/pinstore/internal/api/handlers"
	"github.com/bigkaa/pinstore/internal/config"
	"github.com/bigkaa/pinstore/internal/database"
	"github.com/bigkaa/pinstore/internal/pinclient"
	"github.com/bigkaa/pinstore/internal/repository"
	"github.com/bigkaa/pinstore/internal/server"
	"github.com/bigkaa/pinstore/internal/service"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Pinstore запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	// Ключ pinning API не блокирует старт: proxy-upload будет отвечать
	// ошибкой конфигурации, пока ключ не появится (fail closed)
	if cfg.PinAPIKey == "" {
		logger.Warn("PS_PIN_API_KEY не задан, проброс загрузок будет отклоняться")
	}
	if os.Getenv("PS_DEPHEALTH_GROUP") == "" {
		logger.Warn("PS_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. Менеджер ленивого подключения к PostgreSQL.
	// Подключение и миграции выполняются при первом обращении к БД,
	// а не при старте — недоступная БД не мешает запуску сервиса.
	dbManager := database.NewManager(cfg, logger)
	defer dbManager.Close()

	// 4. Клиент pinning API
	pinClient := pinclient.New(cfg.PinAPIURL, cfg.PinAPIKey, cfg.PinTimeout, logger)
	logger.Info("Клиент pinning API создан",
		slog.String("url", cfg.PinAPIURL),
		slog.Bool("has_key", pinClient.HasKey()),
	)

	// 5. Repositories (пул получают лениво через dbManager)
	fileRepo := repository.NewFileRepository(dbManager)
	accountRepo := repository.NewAccountRepository(dbManager)

	// 6. Services
	listCache := service.NewCacheService(cfg.CacheSize, cfg.CacheTTL)
	filesSvc := service.NewFileService(fileRepo, accountRepo, listCache, logger)
	proxySvc := service.NewProxyService(pinClient, logger)

	// 7. Readiness checker и API handler
	pgChecker := database.NewReadinessChecker(dbManager)
	apiHandler := handlers.NewAPIHandler(filesSvc, proxySvc, pgChecker, cfg.UploadTimeout, logger)

	// 8. topologymetrics — мониторинг зависимостей (PostgreSQL + pinning API).
	// Требует *sql.DB поверх пула, поэтому выполняем best-effort прогрев
	// подключения; при недоступной БД сервис стартует без мониторинга.
	var dephealthSvc *service.DephealthService
	ctx := context.Background()
	if pool, warmErr := dbManager.Pool(ctx); warmErr != nil {
		logger.Warn("БД недоступна при старте, подключение отложено до первого запроса",
			slog.String("error", warmErr.Error()),
		)
	} else {
		// Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
		pgDB := stdlib.OpenDBFromPool(pool)
		defer pgDB.Close()

		dephealthSvc, err = service.NewDephealthService(
			cfg.DephealthGroup,
			pgDB,
			cfg.DatabaseDSN(),
			cfg.PinAPIURL,
			cfg.DephealthCheckInterval,
			logger,
		)
		if err != nil {
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", err.Error()),
			)
			dephealthSvc = nil
		} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
			dephealthSvc = nil
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 9. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 10. Graceful shutdown фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Pinstore остановлен")
}
