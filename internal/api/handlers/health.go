// health.go — обработчики health-проверок для Kubernetes probes.
package handlers

import (
	"net/http"

	"github.com/bigkaa/pinstore/internal/config"
)

// healthResponse — тело ответа health endpoint.
type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
	Message string `json:"message,omitempty"`
}

// LivenessHandler — liveness probe: процесс жив и отвечает.
// GET /health/live
func (h *APIHandler) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Service: "pinstore",
		Version: config.Version,
	})
}

// ReadinessHandler — readiness probe: сервис готов принимать трафик.
// GET /health/ready
//
// Подключение к БД ленивое, поэтому статус "degraded" (подключение ещё
// не устанавливалось) не считается неготовностью — иначе сервис никогда
// не получил бы первый запрос, который это подключение и инициирует.
func (h *APIHandler) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	status, message := h.readiness.CheckReady()

	httpStatus := http.StatusOK
	if status == "fail" {
		httpStatus = http.StatusServiceUnavailable
	}

	h.writeJSON(w, httpStatus, healthResponse{
		Status:  status,
		Service: "pinstore",
		Version: config.Version,
		Message: message,
	})
}
