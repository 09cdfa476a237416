package checksum

import (
	"testing"

	"news-archive-parser/internal/scraper"
)

func testRecord(title string) scraper.Record {
	return scraper.NewRecord([]scraper.Field{
		{Name: "titel", Value: title},
		{Name: "link", Value: "https://www.freiepresse.de/artikel-1"},
		{Name: "teaser", Value: scraper.Sentinel},
	})
}

func TestGenerateRecordHash(t *testing.T) {
	gen := NewGenerator()
	rec := testRecord("Stadtrat beschließt Haushalt")

	hash1 := gen.GenerateRecordHash("freiepresse", rec)
	hash2 := gen.GenerateRecordHash("freiepresse", rec)

	// Хеш должен быть детерминированным
	if hash1 != hash2 {
		t.Errorf("Hash not deterministic: %s != %s", hash1, hash2)
	}

	// Хеш должен быть 64 символа (SHA256 hex)
	if len(hash1) != 64 {
		t.Errorf("Hash wrong length: %d, expected 64", len(hash1))
	}

	if hash1 == gen.GenerateRecordHash("freiepresse", testRecord("Anderer Titel")) {
		t.Errorf("Hash should change when a field changes")
	}

	if hash1 == gen.GenerateRecordHash("ruhr", rec) {
		t.Errorf("Hash should change when source changes")
	}
}

func TestGenerateRecordHashFieldOrder(t *testing.T) {
	gen := NewGenerator()

	a := scraper.NewRecord([]scraper.Field{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}})
	b := scraper.NewRecord([]scraper.Field{{Name: "b", Value: "2"}, {Name: "a", Value: "1"}})

	if gen.GenerateRecordHash("s", a) == gen.GenerateRecordHash("s", b) {
		t.Errorf("Hash should depend on field order")
	}
}
