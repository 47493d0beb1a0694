// Пакет service — бизнес-логика Pinstore.
// CacheService — кэш списков файлов по кошельку с TTL.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/pinstore/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ps_list_cache_hits_total",
		Help: "Общее количество попаданий в кэш списков файлов.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ps_list_cache_misses_total",
		Help: "Общее количество промахов кэша списков файлов.",
	})
)

// CacheService — кэш готовых (декорированных) списков файлов по кошельку.
// Запись валидна в течение TTL с момента добавления; любая мутация
// (create/delete) по кошельку инвалидирует его запись целиком.
// Кэш советующий: промах или потерянная запись приводят лишь к лишнему
// запросу к БД, корректность от кэша не зависит.
type CacheService struct {
	cache *expirable.LRU[string, []model.FileView]
}

// NewCacheService создаёт кэш с указанным максимальным размером и TTL.
// maxSize — максимальное количество кошельков в кэше.
// ttl — время жизни записи после добавления (PS_CACHE_TTL, 30s).
func NewCacheService(maxSize int, ttl time.Duration) *CacheService {
	cache := expirable.NewLRU[string, []model.FileView](maxSize, nil, ttl)
	return &CacheService{cache: cache}
}

// Get возвращает список файлов кошелька из кэша.
// Возвращает (список, true) при hit или (nil, false) при miss.
// Обновляет Prometheus-метрики hit/miss.
func (c *CacheService) Get(walletAddress string) ([]model.FileView, bool) {
	val, ok := c.cache.Get(walletAddress)
	if ok {
		cacheHitsTotal.Inc()
		return val, true
	}
	cacheMissesTotal.Inc()
	return nil, false
}

// Set сохраняет список файлов кошелька в кэше.
func (c *CacheService) Set(walletAddress string, files []model.FileView) {
	c.cache.Add(walletAddress, files)
}

// Invalidate удаляет запись кошелька (вызывается при create/delete).
func (c *CacheService) Invalidate(walletAddress string) {
	c.cache.Remove(walletAddress)
}
