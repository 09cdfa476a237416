package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/microsoft/go-mssqldb"

	"news-archive-parser/internal/observability"
	"news-archive-parser/internal/storage"
)

// schema создаёт таблицу при первом запуске; повторный вызов ничего не меняет
const schema = `
IF OBJECT_ID(N'dbo.TblHarvestedRecords', N'U') IS NULL
BEGIN
	CREATE TABLE dbo.TblHarvestedRecords (
		[UID]         BIGINT IDENTITY(1,1) PRIMARY KEY,
		[RunID]       UNIQUEIDENTIFIER NOT NULL,
		[Source]      NVARCHAR(100)    NOT NULL,
		[SequenceNum] INT              NOT NULL,
		[Link]        NVARCHAR(2048)   NOT NULL,
		[Title]       NVARCHAR(1000)   NOT NULL,
		[Fields]      NVARCHAR(MAX)    NOT NULL,
		[PublishedAt] DATE             NULL,
		[CheckSum]    CHAR(64)         NOT NULL,
		[HarvestedAt] DATETIME2        NOT NULL
	);
	CREATE INDEX IX_TblHarvestedRecords_Source ON dbo.TblHarvestedRecords ([Source]);
END
`

type Repository struct {
	db             *sql.DB
	commandTimeout time.Duration
	logger         *observability.Logger
}

func NewRepository(dsn string, commandTimeout time.Duration, logger *observability.Logger) (*Repository, error) {
	db, err := sql.Open("sqlserver", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Тестируем соединение
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Repository{
		db:             db,
		commandTimeout: commandTimeout,
		logger:         logger,
	}, nil
}

// SaveRecord вставляет запись. Поля записи хранятся JSON-объектом в исходном порядке.
func (r *Repository) SaveRecord(ctx context.Context, rec *storage.StoredRecord) error {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	query := `
		INSERT INTO dbo.TblHarvestedRecords
			([RunID], [Source], [SequenceNum], [Link], [Title], [Fields], [PublishedAt], [CheckSum], [HarvestedAt])
		VALUES
			(@RunID, @Source, @SequenceNum, @Link, @Title, @Fields, @PublishedAt, @CheckSum, @HarvestedAt);
	`

	fields, err := rec.Fields.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode fields: %w", err)
	}

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() {
		if err := stmt.Close(); err != nil {
			r.logger.Error("Failed to close statement", "error", err.Error())
		}
	}()

	published := sql.NullTime{}
	if rec.PublishedAt != nil {
		published = sql.NullTime{Time: *rec.PublishedAt, Valid: true}
	}

	_, err = stmt.ExecContext(ctx,
		sql.Named("RunID", rec.RunID),
		sql.Named("Source", rec.Source),
		sql.Named("SequenceNum", rec.SequenceNum),
		sql.Named("Link", rec.Link),
		sql.Named("Title", rec.Title),
		sql.Named("Fields", string(fields)),
		sql.Named("PublishedAt", published),
		sql.Named("CheckSum", rec.CheckSum),
		sql.Named("HarvestedAt", rec.HarvestedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to execute insert: %w", err)
	}

	return nil
}

// CountBySource получает количество записей источника
func (r *Repository) CountBySource(ctx context.Context, source string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.commandTimeout)
	defer cancel()

	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM dbo.TblHarvestedRecords WHERE [Source] = @Source`,
		sql.Named("Source", source),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to query database: %w", err)
	}

	return count, nil
}

// Close закрывает соединение с БД
func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}
