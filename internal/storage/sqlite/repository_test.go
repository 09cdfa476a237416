package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-archive-parser/internal/observability"
	"news-archive-parser/internal/scraper"
	"news-archive-parser/internal/storage"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "harvest.db")
	repo, err := NewRepository(path, 5*time.Second, observability.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func storedRecord(source string, seq int, published *time.Time) *storage.StoredRecord {
	rec := scraper.NewRecord([]scraper.Field{
		{Name: "titel", Value: "Artikel"},
		{Name: "link", Value: "https://www.ruhrnachrichten.de/dortmund/artikel"},
		{Name: "datum", Value: scraper.Sentinel},
	})
	return &storage.StoredRecord{
		RunID:       "run-1",
		Source:      source,
		SequenceNum: seq,
		Link:        rec.Value("link"),
		Title:       rec.Value("titel"),
		Fields:      rec,
		PublishedAt: published,
		CheckSum:    "abc",
		HarvestedAt: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC),
	}
}

func TestRepository_SaveAndCount(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	published := time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveRecord(ctx, storedRecord("ruhr", 1, &published)))
	require.NoError(t, repo.SaveRecord(ctx, storedRecord("ruhr", 2, nil)))
	require.NoError(t, repo.SaveRecord(ctx, storedRecord("freiepresse", 1, nil)))

	n, err := repo.CountBySource(ctx, "ruhr")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = repo.CountBySource(ctx, "unknown")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRepository_StoresFieldsAndNullableDate(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	published := time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.SaveRecord(ctx, storedRecord("ruhr", 1, &published)))
	require.NoError(t, repo.SaveRecord(ctx, storedRecord("ruhr", 2, nil)))

	rows, err := repo.db.QueryContext(ctx, `SELECT fields, published_at FROM harvested_records ORDER BY sequence_num`)
	require.NoError(t, err)
	defer rows.Close()

	var got []sql.NullString
	for rows.Next() {
		var fields string
		var date sql.NullString
		require.NoError(t, rows.Scan(&fields, &date))
		assert.Equal(t, `{"titel":"Artikel","link":"https://www.ruhrnachrichten.de/dortmund/artikel","datum":"N/A"}`, fields)
		got = append(got, date)
	}
	require.NoError(t, rows.Err())
	require.Len(t, got, 2)
	assert.Equal(t, sql.NullString{String: "2025-03-13T00:00:00Z", Valid: true}, got[0])
	assert.False(t, got[1].Valid)
}

func TestRepository_InsertOnly(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	rec := storedRecord("ruhr", 1, nil)
	require.NoError(t, repo.SaveRecord(ctx, rec))
	require.NoError(t, repo.SaveRecord(ctx, rec))

	n, err := repo.CountBySource(ctx, "ruhr")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
