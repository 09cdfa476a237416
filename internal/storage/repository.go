package storage

import (
	"context"
	"time"

	"news-archive-parser/internal/scraper"
)

// StoredRecord: одна извлечённая запись вместе с метаданными прогона
type StoredRecord struct {
	RunID       string
	Source      string
	SequenceNum int // порядковый номер записи внутри цепочки
	Link        string
	Title       string
	Fields      scraper.Record
	PublishedAt *time.Time // nil, если дату не удалось распознать
	CheckSum    string     // SHA256 полей записи
	HarvestedAt time.Time
}

// Repository интерфейс для сохранения записей. Только вставка: записи из
// разных прогонов не сравниваются и не схлопываются.
type Repository interface {
	// SaveRecord сохраняет одну запись сразу после извлечения
	SaveRecord(ctx context.Context, rec *StoredRecord) error

	// CountBySource получает количество сохранённых записей источника
	CountBySource(ctx context.Context, source string) (int, error)

	Close() error
}
