// proxy.go — обработчик проброса загрузки файла на внешний pinning API.
package handlers

import (
	"bytes"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"

	apierrors "github.com/bigkaa/pinstore/internal/api/errors"
	"github.com/bigkaa/pinstore/internal/pinclient"
	"github.com/bigkaa/pinstore/internal/service"
)

// successEnvelope — стандартный ответ успешной операции.
type successEnvelope struct {
	Success bool `json:"success"`
}

// ProxyUploadHandler — POST /api/proxy-upload.
// Принимает multipart-форму с полем file и пробрасывает её тело
// на pinning API без изменений. Ответ pinning API (JSON либо
// статус+тело ошибки) уходит клиенту как есть.
func (h *APIHandler) ProxyUploadHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.uploadTimeout)
	defer cancel()

	contentType := r.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "multipart/form-data" || params["boundary"] == "" {
		apierrors.ValidationError(w, "ожидается multipart/form-data с полем file")
		return
	}

	// Тело буферизуется целиком: первый проход проверяет наличие поля
	// file, второй уходит на pinning API в исходном виде.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("Ошибка чтения тела запроса", slog.String("error", err.Error()))
		apierrors.InternalError(w, "не удалось прочитать тело запроса")
		return
	}

	if !hasFilePart(body, params["boundary"]) {
		apierrors.ValidationError(w, "no file found")
		return
	}

	result, err := h.proxyService.Upload(ctx, contentType, bytes.NewReader(body))
	if err != nil {
		h.writeProxyError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result)
}

// writeProxyError маппит ошибки проброса на HTTP-ответы.
func (h *APIHandler) writeProxyError(w http.ResponseWriter, err error) {
	// Неуспех pinning API — relay статуса и тела без изменений
	var upstream *service.UpstreamError
	if stderrors.As(err, &upstream) {
		contentType := upstream.ContentType
		if contentType == "" {
			contentType = "text/plain; charset=utf-8"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(upstream.Status)
		_, _ = w.Write(upstream.Body)
		return
	}

	switch {
	case stderrors.Is(err, pinclient.ErrNoAPIKey):
		// Fail closed: без ключа сетевой вызов не выполняется
		h.logger.Error("Проброс загрузки отклонён: ключ pinning API не задан")
		apierrors.ConfigError(w, "ключ pinning API не настроен")
	case stderrors.Is(err, service.ErrBadUpstreamJSON):
		h.logger.Error("Нечитаемый ответ pinning API", slog.String("error", err.Error()))
		apierrors.InternalError(w, "не удалось разобрать ответ pinning API")
	default:
		h.logger.Error("Ошибка обращения к pinning API", slog.String("error", err.Error()))
		apierrors.UpstreamError(w, err.Error())
	}
}

// hasFilePart проверяет наличие form-поля file в multipart-теле.
// Проход по копии тела, оригинал не модифицируется.
func hasFilePart(body []byte, boundary string) bool {
	mr := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := mr.NextPart()
		if err != nil {
			return false
		}
		name := part.FormName()
		_ = part.Close()
		if name == "file" {
			return true
		}
	}
}
