package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"news-archive-parser/internal/observability"
	"news-archive-parser/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS harvested_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	source TEXT NOT NULL,
	sequence_num INTEGER NOT NULL,
	link TEXT NOT NULL,
	title TEXT NOT NULL,
	fields TEXT NOT NULL,
	published_at TEXT,
	checksum TEXT NOT NULL,
	harvested_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_harvested_records_source ON harvested_records (source);
`

// Repository: локальное хранилище записей в одном файле SQLite
type Repository struct {
	db             *sql.DB
	commandTimeout time.Duration
	logger         *observability.Logger
}

func NewRepository(dsn string, commandTimeout time.Duration, logger *observability.Logger) (*Repository, error) {
	if err := ensureDir(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Одна запись за раз: параллельные цепочки пишут через общий пул
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Repository{
		db:             db,
		commandTimeout: commandTimeout,
		logger:         logger,
	}, nil
}

func (r *Repository) SaveRecord(ctx context.Context, rec *storage.StoredRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	fields, err := rec.Fields.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}

	var published *string
	if rec.PublishedAt != nil {
		s := rec.PublishedAt.UTC().Format(time.RFC3339)
		published = &s
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO harvested_records
			(run_id, source, sequence_num, link, title, fields, published_at, checksum, harvested_at)
		VALUES
			(@RunID, @Source, @SequenceNum, @Link, @Title, @Fields, @PublishedAt, @CheckSum, @HarvestedAt)`,
		sql.Named("RunID", rec.RunID),
		sql.Named("Source", rec.Source),
		sql.Named("SequenceNum", rec.SequenceNum),
		sql.Named("Link", rec.Link),
		sql.Named("Title", rec.Title),
		sql.Named("Fields", string(fields)),
		sql.Named("PublishedAt", published),
		sql.Named("CheckSum", rec.CheckSum),
		sql.Named("HarvestedAt", rec.HarvestedAt.UTC().Format(time.RFC3339Nano)),
	)
	if err != nil {
		return fmt.Errorf("failed to execute insert: %w", err)
	}
	return nil
}

func (r *Repository) CountBySource(ctx context.Context, source string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM harvested_records WHERE source = @Source`,
		sql.Named("Source", source),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to query database: %w", err)
	}
	return count, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ensureDir создаёт каталог файла базы, если DSN указывает на обычный путь
func ensureDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}
