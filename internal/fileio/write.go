package fileio

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/yamlr/yamlr/internal/models"
)

// Writer persists healed files. Every write goes backup-first: the
// previous content is rotated into name.<n>.bak (1 newest) before the
// target is replaced via a same-directory temp file and rename, so an
// interrupted run never leaves a truncated file or a missing backup.
type Writer struct {
	backupKeep int
}

// NewWriter returns a writer keeping up to backupKeep backups per file.
// Zero disables backups.
func NewWriter(backupKeep int) *Writer {
	return &Writer{backupKeep: backupKeep}
}

// Write atomically replaces path with data.
func (w *Writer) Write(path string, data []byte) error {
	if w.backupKeep > 0 {
		if err := w.backup(path); err != nil {
			return err
		}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return models.NewIOFailureError(path, "create temp", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return models.NewIOFailureError(path, "write", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return models.NewIOFailureError(path, "sync", err)
	}
	if err := tmp.Close(); err != nil {
		return models.NewIOFailureError(path, "close", err)
	}
	if info, err := os.Stat(path); err == nil {
		// carry the original mode over
		_ = os.Chmod(tmpName, info.Mode())
	}
	if err := os.Rename(tmpName, path); err != nil {
		return models.NewIOFailureError(path, "rename", err)
	}
	syncDir(dir)
	logger.Debug("wrote %d bytes to %s", len(data), path)
	return nil
}

// backup rotates existing backups up one slot and stores the current
// content as <path>.1.bak. The oldest backup past the limit is evicted.
func (w *Writer) backup(path string) error {
	current, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return models.NewIOFailureError(path, "read for backup", err)
	}

	os.Remove(backupName(path, w.backupKeep))
	for n := w.backupKeep - 1; n >= 1; n-- {
		from := backupName(path, n)
		if _, err := os.Stat(from); err == nil {
			if err := os.Rename(from, backupName(path, n+1)); err != nil {
				return models.NewIOFailureError(path, "rotate backup", err)
			}
		}
	}

	first := backupName(path, 1)
	f, err := os.OpenFile(first, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return models.NewIOFailureError(path, "create backup", err)
	}
	if _, err := f.Write(current); err != nil {
		f.Close()
		return models.NewIOFailureError(path, "write backup", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return models.NewIOFailureError(path, "sync backup", err)
	}
	if err := f.Close(); err != nil {
		return models.NewIOFailureError(path, "close backup", err)
	}
	return nil
}

// Backups lists the existing backups for path, newest first.
func (w *Writer) Backups(path string) []string {
	var out []string
	for n := 1; n <= w.backupKeep; n++ {
		name := backupName(path, n)
		if _, err := os.Stat(name); err == nil {
			out = append(out, name)
		}
	}
	return out
}

func backupName(path string, n int) string {
	return fmt.Sprintf("%s.%d.bak", path, n)
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	_ = d.Sync()
}
