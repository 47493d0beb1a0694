// Пакет model — доменные модели Pinstore.
// FileRecord — маппинг таблицы files, StorageAccount — таблицы storage_accounts.
package model

import "time"

// FileRecord — запись метаданных загруженного файла.
// Size хранится строкой — в том виде, в котором его прислал клиент.
// Учёт использованного места выполняется по распарсенному значению.
type FileRecord struct {
	// ID — UUID записи (генерируется при создании).
	// Ключ `_id` в JSON — часть контракта клиентского API.
	ID string `json:"_id"`
	// FileName — имя файла, указанное клиентом
	FileName string `json:"fileName"`
	// CID — content identifier, выданный внешним pinning-сервисом
	CID string `json:"cid"`
	// Size — размер файла в байтах (строковое представление)
	Size string `json:"size"`
	// MimeType — MIME-тип файла
	MimeType string `json:"mimeType"`
	// WalletAddress — адрес кошелька владельца
	WalletAddress string `json:"walletAddress"`
	// CreatedAt — время создания записи
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt — время последнего обновления
	UpdatedAt time.Time `json:"updatedAt"`
}

// FileView — запись файла, декорированная для ответа списка:
// lastUpdate (updatedAt с fallback на createdAt) и человекочитаемый размер.
type FileView struct {
	ID            string    `json:"_id"`
	FileName      string    `json:"fileName"`
	CID           string    `json:"cid"`
	Size          string    `json:"size"`
	MimeType      string    `json:"mimeType"`
	WalletAddress string    `json:"walletAddress"`
	CreatedAt     time.Time `json:"createdAt"`
	// LastUpdate — updatedAt, при нулевом значении — createdAt
	LastUpdate time.Time `json:"lastUpdate"`
	// FormattedSize — размер в формате "500 B" / "2.00 KB" / "5.00 MB" / "3.00 GB"
	FormattedSize string `json:"formattedSize"`
}

// StorageAccount — счётчик использованного места на кошелёк.
// Создаётся неявно (upsert) при первой загрузке.
type StorageAccount struct {
	// WalletAddress — адрес кошелька (уникальный ключ)
	WalletAddress string `json:"walletAddress"`
	// TotalStorageUsed — суммарный объём загруженных файлов в байтах
	TotalStorageUsed int64 `json:"totalStorageUsed"`
	// CreatedAt — время создания счётчика
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt — время последнего изменения
	UpdatedAt time.Time `json:"updatedAt"`
}
