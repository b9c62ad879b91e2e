package database

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

const backupTimeLayout = "20060102_150405"

// Archives are named <timestamp>_entsoe.zip. Older single-file archives
// (<timestamp>_entsoe.db.zip) match as well so they get purged too.
var backupFileRe = regexp.MustCompile(`^(\d{8}_\d{6})_entsoe(\.db)?\.zip$`)

// BackupSource is a store kept next to the database that must be restorable
// together with it, e.g. the entity registry.
type BackupSource interface {
	// BackupName is the file name of the store inside the archive.
	BackupName() string
	// WriteTo writes a consistent copy of the store.
	WriteTo(w io.Writer) (int64, error)
}

func (d *Database) backupDir() string {
	return filepath.Join(filepath.Dir(d.path), "backups")
}

// Backup writes one zip archive holding a vacuumed copy of the database and
// a snapshot of every backup source, all taken under the same timestamp.
func (d *Database) Backup(ctx context.Context) error {
	dir := d.backupDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}

	stamp := time.Now().Format(backupTimeLayout)
	vacuumed := filepath.Join(dir, stamp+"_vacuum.db")
	if _, err := d.write.ExecContext(ctx, "VACUUM INTO ?", vacuumed); err != nil {
		return fmt.Errorf("vacuuming database into '%s': %w", vacuumed, err)
	}
	defer func() {
		if err := os.Remove(vacuumed); err != nil && !errors.Is(err, fs.ErrNotExist) {
			d.logger.Warn("could not remove vacuumed copy", slog.String("path", vacuumed), slog.Any("error", err))
		}
	}()

	zipPath := filepath.Join(dir, stamp+"_entsoe.zip")
	if err := d.writeArchive(zipPath, vacuumed); err != nil {
		os.Remove(zipPath)
		return err
	}

	d.logger.Info("backup complete", slog.String("filename", zipPath), slog.Int("sources", len(d.backupSources)+1))
	return nil
}

func (d *Database) writeArchive(zipPath, vacuumed string) error {
	zipFile, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}
	defer zipFile.Close()

	zw := zip.NewWriter(zipFile)

	if err := addFileToZip(zw, vacuumed, filepath.Base(d.path)); err != nil {
		return err
	}
	for _, src := range d.backupSources {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     src.BackupName(),
			Method:   zip.Deflate,
			Modified: time.Now(),
		})
		if err != nil {
			return fmt.Errorf("create zip entry %s: %w", src.BackupName(), err)
		}
		if _, err := src.WriteTo(w); err != nil {
			return fmt.Errorf("snapshot %s: %w", src.BackupName(), err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip file: %w", err)
	}
	return zipFile.Close()
}

func addFileToZip(zw *zip.Writer, path, name string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s for compression: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("get file info: %w", err)
	}
	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("create zip header: %w", err)
	}
	header.Name = name
	header.Method = zip.Deflate

	w, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("create zip entry %s: %w", name, err)
	}
	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("write %s to zip: %w", name, err)
	}
	return nil
}

// PurgeBackups deletes archives older than retentionDays. Files that do not
// look like backup archives are left alone.
func (d *Database) PurgeBackups(ctx context.Context, retentionDays int) error {
	if retentionDays < 1 {
		return nil
	}
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	dir := d.backupDir()
	files, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read backup directory: %w", err)
	}

	purged := 0
	for _, file := range files {
		m := backupFileRe.FindStringSubmatch(file.Name())
		if m == nil {
			continue
		}
		t, err := time.ParseInLocation(backupTimeLayout, m[1], time.Local)
		if err != nil || !t.Before(cutoff) {
			continue
		}
		path := filepath.Join(dir, file.Name())
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("remove old backup '%s': %w", path, err)
		}
		purged++
	}

	d.logger.Info("backup purge complete", slog.Int("purged", purged))
	return nil
}
