// files.go — обработчики CRUD метаданных файлов.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"

	apierrors "github.com/bigkaa/pinstore/internal/api/errors"
	"github.com/bigkaa/pinstore/internal/domain/model"
	"github.com/bigkaa/pinstore/internal/repository"
	"github.com/bigkaa/pinstore/internal/service"
)

// createFileRequest — тело запроса создания записи файла.
type createFileRequest struct {
	FileName      string `json:"fileName"`
	CID           string `json:"cid"`
	Size          string `json:"size"`
	MimeType      string `json:"mimeType"`
	WalletAddress string `json:"walletAddress"`
}

// createFileResponse — ответ создания записи.
type createFileResponse struct {
	Success bool              `json:"success"`
	File    *model.FileRecord `json:"file"`
}

// listFilesResponse — ответ списка файлов кошелька.
type listFilesResponse struct {
	Success bool             `json:"success"`
	Files   []model.FileView `json:"files"`
}

// CreateFileHandler — POST /api/upload.
// Сохраняет метаданные уже загруженного файла и увеличивает
// счётчик места кошелька.
func (h *APIHandler) CreateFileHandler(w http.ResponseWriter, r *http.Request) {
	var req createFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "некорректное JSON-тело запроса")
		return
	}

	if req.WalletAddress == "" {
		apierrors.ValidationError(w, "walletAddress обязателен")
		return
	}
	if req.FileName == "" {
		apierrors.ValidationError(w, "fileName обязателен")
		return
	}
	if req.CID == "" {
		apierrors.ValidationError(w, "cid обязателен")
		return
	}
	if req.Size == "" {
		apierrors.ValidationError(w, "size обязателен")
		return
	}
	if req.MimeType == "" {
		apierrors.ValidationError(w, "mimeType обязателен")
		return
	}

	// Размер валидируется до записи в БД: нечитаемый или отрицательный
	// размер не должен оставлять осиротевшую запись
	sizeBytes, err := strconv.ParseInt(req.Size, 10, 64)
	if err != nil || sizeBytes < 0 {
		apierrors.ValidationError(w, "size должен быть неотрицательным целым числом")
		return
	}

	record, err := h.fileService.Create(r.Context(), service.CreateParams{
		FileName:      req.FileName,
		CID:           req.CID,
		Size:          req.Size,
		SizeBytes:     sizeBytes,
		MimeType:      req.MimeType,
		WalletAddress: req.WalletAddress,
	})
	if err != nil {
		h.writeStorageError(w, err, "не удалось создать запись файла")
		return
	}

	h.writeJSON(w, http.StatusOK, createFileResponse{Success: true, File: record})
}

// ListFilesHandler — GET /api/upload?walletAddress=...
// Возвращает список файлов кошелька, новые первыми.
func (h *APIHandler) ListFilesHandler(w http.ResponseWriter, r *http.Request) {
	walletAddress := r.URL.Query().Get("walletAddress")
	if walletAddress == "" {
		apierrors.ValidationError(w, "walletAddress обязателен")
		return
	}

	files, err := h.fileService.List(r.Context(), walletAddress)
	if err != nil {
		h.writeStorageError(w, err, "не удалось получить список файлов")
		return
	}

	h.writeJSON(w, http.StatusOK, listFilesResponse{Success: true, Files: files})
}

// DeleteFileHandler — DELETE /api/upload?cid=...&walletAddress=...
// Удаляет запись по паре (cid, walletAddress) и уменьшает счётчик места.
func (h *APIHandler) DeleteFileHandler(w http.ResponseWriter, r *http.Request) {
	cid := r.URL.Query().Get("cid")
	walletAddress := r.URL.Query().Get("walletAddress")
	if cid == "" || walletAddress == "" {
		apierrors.ValidationError(w, "cid и walletAddress обязательны")
		return
	}

	if err := h.fileService.Delete(r.Context(), cid, walletAddress); err != nil {
		if stderrors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "файл не найден")
			return
		}
		h.writeStorageError(w, err, "не удалось удалить запись файла")
		return
	}

	h.writeJSON(w, http.StatusOK, successEnvelope{Success: true})
}

// writeStorageError маппит ошибки слоя хранения на HTTP-ответы:
// недоступность БД — 503, прочие сбои — 500.
func (h *APIHandler) writeStorageError(w http.ResponseWriter, err error, message string) {
	if stderrors.Is(err, repository.ErrUnavailable) {
		h.logger.Error("База данных недоступна", slog.String("error", err.Error()))
		apierrors.ServiceUnavailable(w, "база данных недоступна")
		return
	}
	h.logger.Error(message, slog.String("error", err.Error()))
	apierrors.InternalError(w, message)
}
