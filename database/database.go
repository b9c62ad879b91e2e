package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/angas/entsoe-go/hours"
	sqlite "modernc.org/sqlite"
)

type Database struct {
	logger        *slog.Logger
	read          *sql.DB
	write         *sql.DB
	path          string
	backupSources []BackupSource
}

type Option func(*Database)

// WithBackupSource adds a store that Backup archives together with the
// database.
func WithBackupSource(src BackupSource) Option {
	return func(d *Database) { d.backupSources = append(d.backupSources, src) }
}

const initSQL = `
	PRAGMA journal_mode = WAL;
	PRAGMA synchronous = NORMAL;
	PRAGMA temp_store = MEMORY;
	PRAGMA busy_timeout = 5000;
	PRAGMA foreign_keys = ON;
	PRAGMA trusted_schema = OFF;
`

// New opens the price and log store at path and applies pending migrations.
// Readers share a pool, writes go through a single connection.
func New(ctx context.Context, path string, opts ...Option) (*Database, error) {
	sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, _ string) error {
		_, err := conn.ExecContext(context.Background(), initSQL, nil)
		return err
	})

	read, err := openPool(path, 10)
	if err != nil {
		return nil, fmt.Errorf("open database (read): %w", err)
	}
	write, err := openPool(path, 1)
	if err != nil {
		read.Close()
		return nil, fmt.Errorf("open database (write): %w", err)
	}

	d := &Database{
		logger: slog.Default().With(slog.String("module", "database")),
		read:   read,
		write:  write,
		path:   path,
	}
	for _, opt := range opts {
		opt(d)
	}

	if err := d.migrate(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return d, nil
}

func openPool(path string, maxOpen int) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetConnMaxIdleTime(time.Minute)
	return db, nil
}

func (d *Database) SetLogger(logger *slog.Logger) {
	d.logger = logger
}

func (d *Database) Close() {
	d.read.Close()
	d.write.Close()
}

// purgeHourly deletes rows of an hour keyed table older than retentionDays.
func (d *Database) purgeHourly(ctx context.Context, table string, retentionDays int) (int64, error) {
	before := hours.FromTime(time.Now().AddDate(0, 0, -retentionDays))
	res, err := d.write.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %s WHERE date < ? OR (date = ? AND hour < ?)`, table),
		before.Date, before.Date, before.Hour)
	if err != nil {
		return 0, fmt.Errorf("purging %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		d.logger.Warn("can't get rows affected by purge", slog.String("table", table), slog.Any("error", err))
		return 0, nil
	}
	return n, nil
}
