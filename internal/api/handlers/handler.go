// Пакет handlers — HTTP-обработчики API Pinstore.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/bigkaa/pinstore/internal/service"
)

// ReadinessChecker — интерфейс проверки готовности зависимости.
// Реализуется пакетом database.
type ReadinessChecker interface {
	// CheckReady возвращает статус ("ok", "degraded", "fail") и описание.
	CheckReady() (status string, message string)
}

// APIHandler — контейнер обработчиков API с их зависимостями.
type APIHandler struct {
	fileService  *service.FileService
	proxyService *service.ProxyService
	readiness    ReadinessChecker
	logger       *slog.Logger

	// uploadTimeout — общий бюджет обработки proxy-upload запроса
	uploadTimeout time.Duration
}

// NewAPIHandler создаёт контейнер обработчиков.
func NewAPIHandler(
	fileService *service.FileService,
	proxyService *service.ProxyService,
	readiness ReadinessChecker,
	uploadTimeout time.Duration,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		fileService:   fileService,
		proxyService:  proxyService,
		readiness:     readiness,
		uploadTimeout: uploadTimeout,
		logger:        logger.With(slog.String("component", "api_handler")),
	}
}

// writeJSON сериализует v в тело ответа со статусом statusCode.
func (h *APIHandler) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Ошибка сериализации ответа", slog.String("error", err.Error()))
	}
}
