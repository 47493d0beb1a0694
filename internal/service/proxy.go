// proxy.go — сервис проброса загрузки файла на внешний pinning API.
// Pipeline: multipart-тело клиента → pinning API (bearer) → relay ответа.
// Одна попытка, без retry: неуспех любого этапа терминален для запроса.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/pinstore/internal/pinclient"
)

// ErrBadUpstreamJSON — pinning API вернул успех, но тело не парсится как JSON.
var ErrBadUpstreamJSON = errors.New("не удалось разобрать ответ pinning API")

// UpstreamError — pinning API ответил неуспешным статусом.
// Статус и тело пробрасываются клиенту без изменений.
type UpstreamError struct {
	Status      int
	ContentType string
	Body        []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("pinning API вернул статус %d", e.Status)
}

// Prometheus-метрики проброса загрузки.
var (
	pinUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ps_pin_uploads_total",
		Help: "Общее количество запросов проброса загрузки (по статусу).",
	}, []string{"status"})

	pinUploadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ps_pin_upload_duration_seconds",
		Help:    "Длительность проброса загрузки на pinning API.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 50, 60},
	})
)

// ProxyService — сервис проброса загрузки на pinning API.
type ProxyService struct {
	pinClient *pinclient.Client
	logger    *slog.Logger
}

// NewProxyService создаёт сервис проброса.
func NewProxyService(pinClient *pinclient.Client, logger *slog.Logger) *ProxyService {
	return &ProxyService{
		pinClient: pinClient,
		logger:    logger.With(slog.String("component", "proxy_service")),
	}
}

// Upload пробрасывает multipart-тело на pinning API и возвращает его
// JSON-ответ. Ошибки:
//   - pinclient.ErrNoAPIKey — ключ не задан, сетевой вызов не выполнялся;
//   - *UpstreamError — неуспешный статус, relay статуса и тела как есть;
//   - ErrBadUpstreamJSON — успех с нечитаемым телом;
//   - прочее — транспортный сбой.
func (s *ProxyService) Upload(ctx context.Context, contentType string, body io.Reader) (json.RawMessage, error) {
	start := time.Now()

	resp, err := s.pinClient.Pin(ctx, contentType, body)
	if err != nil {
		if errors.Is(err, pinclient.ErrNoAPIKey) {
			pinUploadsTotal.WithLabelValues("no_key").Inc()
			return nil, err
		}
		pinUploadsTotal.WithLabelValues("transport_error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		pinUploadsTotal.WithLabelValues("transport_error").Inc()
		return nil, fmt.Errorf("чтение ответа pinning API: %w", err)
	}

	// Неуспех — статус и тело уходят клиенту без изменений
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		s.logger.Warn("Pinning API вернул ошибку",
			slog.Int("status", resp.StatusCode),
			slog.Int("body_bytes", len(respBody)),
		)
		pinUploadsTotal.WithLabelValues("upstream_error").Inc()
		return nil, &UpstreamError{
			Status:      resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        respBody,
		}
	}

	// Успех обязан быть валидным JSON
	var parsed any
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		pinUploadsTotal.WithLabelValues("parse_error").Inc()
		return nil, fmt.Errorf("%w: %w", ErrBadUpstreamJSON, err)
	}

	duration := time.Since(start)
	pinUploadsTotal.WithLabelValues("success").Inc()
	pinUploadDuration.Observe(duration.Seconds())

	s.logger.Debug("Загрузка проброшена на pinning API",
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", duration),
	)

	return json.RawMessage(respBody), nil
}
