package checksum

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"news-archive-parser/internal/scraper"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateRecordHash генерирует SHA256 хеш записи
// Формула: SHA256(source|name=value|name=value|...), поля в порядке извлечения
func (g *Generator) GenerateRecordHash(source string, rec scraper.Record) string {
	var b strings.Builder
	b.WriteString(source)
	for _, f := range rec.Fields() {
		b.WriteByte('|')
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}

	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", hash)
}
