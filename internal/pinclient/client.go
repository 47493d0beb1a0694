// Пакет pinclient — HTTP-клиент внешнего pinning API.
// Пробрасывает multipart-тело запроса без изменений, авторизуется
// bearer-ключом. Один запрос — одна попытка, без retry.
package pinclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrNoAPIKey — bearer-ключ не сконфигурирован. Клиент падает до любого
// сетевого вызова (fail closed).
var ErrNoAPIKey = errors.New("ключ pinning API не задан")

// pinPath — endpoint загрузки файла на pinning-сервис.
const pinPath = "/pinning/pinFileToIPFS"

// Client — HTTP-клиент pinning API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     *slog.Logger
}

// New создаёт клиент pinning API.
// baseURL — базовый URL сервиса (PS_PIN_API_URL).
// apiKey — bearer-ключ (PS_PIN_API_KEY), может быть пустым — тогда
// каждый вызов Pin вернёт ErrNoAPIKey.
// timeout — жёсткий верхний предел ожидания ответа (PS_PIN_TIMEOUT).
func New(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	httpClient := &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			// Пул idle-соединений для переиспользования
			MaxIdleConnsPerHost: 10,
		},
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		logger:     logger.With(slog.String("component", "pin_client")),
	}
}

// HasKey сообщает, сконфигурирован ли bearer-ключ.
func (c *Client) HasKey() bool {
	return c.apiKey != ""
}

// BaseURL возвращает базовый URL pinning API (для dependency health).
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Pin отправляет multipart-тело на pinning API без изменений.
// contentType — исходный Content-Type клиента (с boundary).
// Возвращает *http.Response — вызывающий код ОБЯЗАН закрыть resp.Body.
// Ответ возвращается при любом HTTP-статусе; ошибка — только при
// отсутствии ключа или транспортном сбое.
func (c *Client) Pin(ctx context.Context, contentType string, body io.Reader) (*http.Response, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	reqURL := c.baseURL + pinPath

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("создание запроса Pin: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return nil, fmt.Errorf("запрос Pin к %s: %w", c.baseURL, err)
	}

	// Не закрываем resp.Body — вызывающий код отвечает за это
	return resp, nil
}
