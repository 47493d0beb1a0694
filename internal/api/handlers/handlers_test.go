package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bigkaa/pinstore/internal/domain/model"
	"github.com/bigkaa/pinstore/internal/pinclient"
	"github.com/bigkaa/pinstore/internal/repository"
	"github.com/bigkaa/pinstore/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockFileRepo — мок FileRepository.
type mockFileRepo struct {
	createFn         func(ctx context.Context, f *model.FileRecord) error
	listByWalletFn   func(ctx context.Context, walletAddress string) ([]*model.FileRecord, error)
	getByCIDWalletFn func(ctx context.Context, cid, walletAddress string) (*model.FileRecord, error)
	deleteFn         func(ctx context.Context, id string) error
}

func (m *mockFileRepo) Create(ctx context.Context, f *model.FileRecord) error {
	if m.createFn != nil {
		return m.createFn(ctx, f)
	}
	return nil
}

func (m *mockFileRepo) ListByWallet(ctx context.Context, walletAddress string) ([]*model.FileRecord, error) {
	if m.listByWalletFn != nil {
		return m.listByWalletFn(ctx, walletAddress)
	}
	return nil, nil
}

func (m *mockFileRepo) GetByCIDAndWallet(ctx context.Context, cid, walletAddress string) (*model.FileRecord, error) {
	if m.getByCIDWalletFn != nil {
		return m.getByCIDWalletFn(ctx, cid, walletAddress)
	}
	return nil, repository.ErrNotFound
}

func (m *mockFileRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// mockAccountRepo — мок AccountRepository.
type mockAccountRepo struct {
	addUsageFn func(ctx context.Context, walletAddress string, delta int64) error
}

func (m *mockAccountRepo) AddUsage(ctx context.Context, walletAddress string, delta int64) error {
	if m.addUsageFn != nil {
		return m.addUsageFn(ctx, walletAddress, delta)
	}
	return nil
}

func (m *mockAccountRepo) SubtractUsage(ctx context.Context, walletAddress string, delta int64) error {
	return nil
}

func (m *mockAccountRepo) GetByWallet(ctx context.Context, walletAddress string) (*model.StorageAccount, error) {
	return nil, repository.ErrNotFound
}

// stubReadiness — стаб ReadinessChecker с фиксированным ответом.
type stubReadiness struct {
	status  string
	message string
}

func (s *stubReadiness) CheckReady() (string, string) {
	return s.status, s.message
}

// newTestHandler собирает APIHandler с моками репозиториев.
// pinBaseURL/pinKey настраивают клиент pinning API для proxy-тестов.
func newTestHandler(fileRepo *mockFileRepo, accountRepo *mockAccountRepo, pinBaseURL, pinKey string) *APIHandler {
	logger := testLogger()
	cache := service.NewCacheService(100, 30*time.Second)
	filesSvc := service.NewFileService(fileRepo, accountRepo, cache, logger)
	pinClient := pinclient.New(pinBaseURL, pinKey, 5*time.Second, logger)
	proxySvc := service.NewProxyService(pinClient, logger)
	readiness := &stubReadiness{status: "ok", message: "подключение активно"}
	return NewAPIHandler(filesSvc, proxySvc, readiness, 10*time.Second, logger)
}

// errorEnvelope — разбор стандартного тела ошибки.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeError(t *testing.T, body *bytes.Buffer) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(body.Bytes(), &env); err != nil {
		t.Fatalf("разбор тела ошибки: %v (тело: %s)", err, body.String())
	}
	return env
}

// --- CreateFileHandler ---

func validCreateBody() string {
	return `{"fileName":"doc.pdf","cid":"QmTest1","size":"2048","mimeType":"application/pdf","walletAddress":"0xwallet1"}`
}

// TestCreateFileHandler_Success проверяет успешное создание записи.
func TestCreateFileHandler_Success(t *testing.T) {
	h := newTestHandler(&mockFileRepo{}, &mockAccountRepo{}, "http://pin.invalid", "key")

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(validCreateBody()))
	rec := httptest.NewRecorder()
	h.CreateFileHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, ожидался 200 (тело: %s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool              `json:"success"`
		File    *model.FileRecord `json:"file"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("разбор ответа: %v", err)
	}
	if !resp.Success {
		t.Error("ожидался success = true")
	}
	if resp.File == nil || resp.File.CID != "QmTest1" {
		t.Errorf("file = %+v, ожидался CID QmTest1", resp.File)
	}
	if resp.File.ID == "" {
		t.Error("ожидался сгенерированный _id")
	}
}

// TestCreateFileHandler_MissingFields проверяет 400 при отсутствии
// каждого обязательного поля.
func TestCreateFileHandler_MissingFields(t *testing.T) {
	h := newTestHandler(&mockFileRepo{}, &mockAccountRepo{}, "http://pin.invalid", "key")

	bodies := map[string]string{
		"walletAddress": `{"fileName":"a","cid":"b","size":"1","mimeType":"c"}`,
		"fileName":      `{"cid":"b","size":"1","mimeType":"c","walletAddress":"d"}`,
		"cid":           `{"fileName":"a","size":"1","mimeType":"c","walletAddress":"d"}`,
		"size":          `{"fileName":"a","cid":"b","mimeType":"c","walletAddress":"d"}`,
		"mimeType":      `{"fileName":"a","cid":"b","size":"1","walletAddress":"d"}`,
	}

	for field, body := range bodies {
		req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.CreateFileHandler(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("без %s: status = %d, ожидался 400", field, rec.Code)
		}
	}
}

// TestCreateFileHandler_InvalidSize проверяет 400 при нечитаемом или
// отрицательном размере — запись в БД не создаётся.
func TestCreateFileHandler_InvalidSize(t *testing.T) {
	var createCalls atomic.Int32
	fileRepo := &mockFileRepo{
		createFn: func(ctx context.Context, f *model.FileRecord) error {
			createCalls.Add(1)
			return nil
		},
	}
	h := newTestHandler(fileRepo, &mockAccountRepo{}, "http://pin.invalid", "key")

	for _, size := range []string{"abc", "-5", "1.5"} {
		body := fmt.Sprintf(
			`{"fileName":"a","cid":"b","size":%q,"mimeType":"c","walletAddress":"d"}`, size)
		req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(body))
		rec := httptest.NewRecorder()
		h.CreateFileHandler(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("size=%q: status = %d, ожидался 400", size, rec.Code)
		}
	}

	if createCalls.Load() != 0 {
		t.Errorf("createCalls = %d, при невалидном размере записи быть не должно", createCalls.Load())
	}
}

// TestCreateFileHandler_DBUnavailable проверяет 503 при недоступной БД.
func TestCreateFileHandler_DBUnavailable(t *testing.T) {
	fileRepo := &mockFileRepo{
		createFn: func(ctx context.Context, f *model.FileRecord) error {
			return fmt.Errorf("%w: connection refused", repository.ErrUnavailable)
		},
	}
	h := newTestHandler(fileRepo, &mockAccountRepo{}, "http://pin.invalid", "key")

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(validCreateBody()))
	rec := httptest.NewRecorder()
	h.CreateFileHandler(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, ожидался 503", rec.Code)
	}
	env := decodeError(t, rec.Body)
	if env.Error.Code != "SERVICE_UNAVAILABLE" {
		t.Errorf("code = %q, ожидался SERVICE_UNAVAILABLE", env.Error.Code)
	}
}

// --- ListFilesHandler ---

// TestListFilesHandler_Success проверяет список файлов кошелька.
func TestListFilesHandler_Success(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	fileRepo := &mockFileRepo{
		listByWalletFn: func(ctx context.Context, walletAddress string) ([]*model.FileRecord, error) {
			return []*model.FileRecord{
				{ID: "id-1", FileName: "a.txt", CID: "cid-1", Size: "2048",
					WalletAddress: walletAddress, CreatedAt: created, UpdatedAt: created},
			}, nil
		},
	}
	h := newTestHandler(fileRepo, &mockAccountRepo{}, "http://pin.invalid", "key")

	req := httptest.NewRequest(http.MethodGet, "/api/upload?walletAddress=0xwallet1", nil)
	rec := httptest.NewRecorder()
	h.ListFilesHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, ожидался 200", rec.Code)
	}

	var resp struct {
		Success bool             `json:"success"`
		Files   []model.FileView `json:"files"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("разбор ответа: %v", err)
	}
	if !resp.Success || len(resp.Files) != 1 {
		t.Fatalf("success = %v, len(files) = %d", resp.Success, len(resp.Files))
	}
	if resp.Files[0].ID != "id-1" {
		t.Errorf("_id = %q, ожидался id-1", resp.Files[0].ID)
	}
	if resp.Files[0].FormattedSize != "2.00 KB" {
		t.Errorf("formattedSize = %q, ожидался 2.00 KB", resp.Files[0].FormattedSize)
	}
}

// TestListFilesHandler_MissingWallet проверяет 400 без walletAddress.
func TestListFilesHandler_MissingWallet(t *testing.T) {
	h := newTestHandler(&mockFileRepo{}, &mockAccountRepo{}, "http://pin.invalid", "key")

	req := httptest.NewRequest(http.MethodGet, "/api/upload", nil)
	rec := httptest.NewRecorder()
	h.ListFilesHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, ожидался 400", rec.Code)
	}
}

// --- DeleteFileHandler ---

// TestDeleteFileHandler_Success проверяет удаление существующей записи.
func TestDeleteFileHandler_Success(t *testing.T) {
	fileRepo := &mockFileRepo{
		getByCIDWalletFn: func(ctx context.Context, cid, walletAddress string) (*model.FileRecord, error) {
			return &model.FileRecord{ID: "id-1", CID: cid, Size: "100", WalletAddress: walletAddress}, nil
		},
	}
	h := newTestHandler(fileRepo, &mockAccountRepo{}, "http://pin.invalid", "key")

	req := httptest.NewRequest(http.MethodDelete, "/api/upload?cid=cid-1&walletAddress=0xwallet1", nil)
	rec := httptest.NewRecorder()
	h.DeleteFileHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, ожидался 200 (тело: %s)", rec.Code, rec.Body.String())
	}
	var resp successEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("разбор ответа: %v", err)
	}
	if !resp.Success {
		t.Error("ожидался success = true")
	}
}

// TestDeleteFileHandler_NotFound проверяет 404 для несуществующей записи.
func TestDeleteFileHandler_NotFound(t *testing.T) {
	h := newTestHandler(&mockFileRepo{}, &mockAccountRepo{}, "http://pin.invalid", "key")

	req := httptest.NewRequest(http.MethodDelete, "/api/upload?cid=missing&walletAddress=0xwallet1", nil)
	rec := httptest.NewRecorder()
	h.DeleteFileHandler(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, ожидался 404", rec.Code)
	}
	env := decodeError(t, rec.Body)
	if env.Error.Code != "NOT_FOUND" {
		t.Errorf("code = %q, ожидался NOT_FOUND", env.Error.Code)
	}
}

// TestDeleteFileHandler_MissingParams проверяет 400 без cid или walletAddress.
func TestDeleteFileHandler_MissingParams(t *testing.T) {
	h := newTestHandler(&mockFileRepo{}, &mockAccountRepo{}, "http://pin.invalid", "key")

	for _, target := range []string{
		"/api/upload?cid=cid-1",
		"/api/upload?walletAddress=0xwallet1",
		"/api/upload",
	} {
		req := httptest.NewRequest(http.MethodDelete, target, nil)
		rec := httptest.NewRecorder()
		h.DeleteFileHandler(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, ожидался 400", target, rec.Code)
		}
	}
}

// --- ProxyUploadHandler ---

// buildMultipart собирает multipart-тело с указанным именем поля.
func buildMultipart(t *testing.T, fieldName string) (string, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	part, err := mw.CreateFormFile(fieldName, "test.txt")
	if err != nil {
		t.Fatalf("создание multipart-поля: %v", err)
	}
	_, _ = part.Write([]byte("file contents"))
	_ = mw.Close()
	return mw.FormDataContentType(), buf
}

// TestProxyUploadHandler_Success проверяет успешный проброс: ответ
// pinning API возвращается клиенту без изменений.
func TestProxyUploadHandler_Success(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"IpfsHash":"QmRelay"}`))
	}))
	defer upstream.Close()

	h := newTestHandler(&mockFileRepo{}, &mockAccountRepo{}, upstream.URL, "key")

	contentType, body := buildMultipart(t, "file")
	req := httptest.NewRequest(http.MethodPost, "/api/proxy-upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ProxyUploadHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, ожидался 200 (тело: %s)", rec.Code, rec.Body.String())
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("QmRelay")) {
		t.Errorf("тело %q не содержит ответа upstream", rec.Body.String())
	}
}

// TestProxyUploadHandler_NoFileField проверяет 400 "no file found"
// без единого сетевого вызова к pinning API.
func TestProxyUploadHandler_NoFileField(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer upstream.Close()

	h := newTestHandler(&mockFileRepo{}, &mockAccountRepo{}, upstream.URL, "key")

	// Поле называется не file
	contentType, body := buildMultipart(t, "attachment")
	req := httptest.NewRequest(http.MethodPost, "/api/proxy-upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ProxyUploadHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, ожидался 400", rec.Code)
	}
	env := decodeError(t, rec.Body)
	if env.Error.Message != "no file found" {
		t.Errorf("message = %q, ожидался %q", env.Error.Message, "no file found")
	}
	if calls.Load() != 0 {
		t.Errorf("upstream calls = %d, без поля file вызовов быть не должно", calls.Load())
	}
}

// TestProxyUploadHandler_NotMultipart проверяет 400 для не-multipart тела.
func TestProxyUploadHandler_NotMultipart(t *testing.T) {
	h := newTestHandler(&mockFileRepo{}, &mockAccountRepo{}, "http://pin.invalid", "key")

	req := httptest.NewRequest(http.MethodPost, "/api/proxy-upload", strings.NewReader(`{"not":"multipart"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ProxyUploadHandler(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, ожидался 400", rec.Code)
	}
}

// TestProxyUploadHandler_NoAPIKey проверяет fail closed: без ключа
// pinning API возвращается 500 CONFIG_ERROR, сетевых вызовов нет.
func TestProxyUploadHandler_NoAPIKey(t *testing.T) {
	var calls atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer upstream.Close()

	h := newTestHandler(&mockFileRepo{}, &mockAccountRepo{}, upstream.URL, "")

	contentType, body := buildMultipart(t, "file")
	req := httptest.NewRequest(http.MethodPost, "/api/proxy-upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ProxyUploadHandler(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, ожидался 500", rec.Code)
	}
	env := decodeError(t, rec.Body)
	if env.Error.Code != "CONFIG_ERROR" {
		t.Errorf("code = %q, ожидался CONFIG_ERROR", env.Error.Code)
	}
	if calls.Load() != 0 {
		t.Errorf("upstream calls = %d, без ключа вызовов быть не должно", calls.Load())
	}
}

// TestProxyUploadHandler_UpstreamErrorRelay проверяет relay неуспешного
// статуса pinning API: код и тело уходят клиенту как есть.
func TestProxyUploadHandler_UpstreamErrorRelay(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("invalid api key"))
	}))
	defer upstream.Close()

	h := newTestHandler(&mockFileRepo{}, &mockAccountRepo{}, upstream.URL, "bad-key")

	contentType, body := buildMultipart(t, "file")
	req := httptest.NewRequest(http.MethodPost, "/api/proxy-upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ProxyUploadHandler(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, ожидался relay 403", rec.Code)
	}
	if rec.Body.String() != "invalid api key" {
		t.Errorf("тело = %q, ожидался relay тела upstream", rec.Body.String())
	}
}

// --- Health ---

// TestLivenessHandler проверяет liveness probe.
func TestLivenessHandler(t *testing.T) {
	h := newTestHandler(&mockFileRepo{}, &mockAccountRepo{}, "http://pin.invalid", "key")

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	h.LivenessHandler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, ожидался 200", rec.Code)
	}
}

// TestReadinessHandler проверяет маппинг статусов readiness:
// ok/degraded → 200, fail → 503.
func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		status   string
		wantCode int
	}{
		{"ok", http.StatusOK},
		{"degraded", http.StatusOK},
		{"fail", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		h := newTestHandler(&mockFileRepo{}, &mockAccountRepo{}, "http://pin.invalid", "key")
		h.readiness = &stubReadiness{status: tt.status, message: "test"}

		req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
		rec := httptest.NewRecorder()
		h.ReadinessHandler(rec, req)

		if rec.Code != tt.wantCode {
			t.Errorf("status=%s: code = %d, ожидался %d", tt.status, rec.Code, tt.wantCode)
		}
	}
}
