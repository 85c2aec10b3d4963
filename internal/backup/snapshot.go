package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// TimestampLayout is the suffix format of snapshot and export file names.
const TimestampLayout = "2006-01-02_15-04-05"

// now is replaced in tests that need distinct timestamps.
var now = time.Now

// Snapshot writes a consistent copy of the SQLite database behind db to
// dir/<name>_<timestamp>.db using VACUUM INTO, then removes the oldest
// snapshots so that at most max remain. max <= 0 disables rotation.
// It returns the path of the new snapshot.
func Snapshot(ctx context.Context, db *sql.DB, dir, name string, max int) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating backup dir: %w", err)
	}
	path := filepath.Join(dir, name+"_"+now().Format(TimestampLayout)+".db")
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("replacing %s: %w", path, err)
	}

	quoted := "'" + strings.ReplaceAll(path, "'", "''") + "'"
	if _, err := db.ExecContext(ctx, "VACUUM INTO "+quoted); err != nil {
		return "", fmt.Errorf("vacuum into %s: %w", path, err)
	}

	if _, err := Rotate(dir, name, ".db", max); err != nil {
		return path, err
	}
	return path, nil
}

// Rotate deletes the oldest files in dir named <name>_*<ext> until at most
// max remain and returns the removed paths. File names embed a sortable
// timestamp, so name order is age order.
func Rotate(dir, name, ext string, max int) ([]string, error) {
	if max <= 0 {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasPrefix(n, name+"_") || !strings.HasSuffix(n, ext) {
			continue
		}
		files = append(files, n)
	}
	if len(files) <= max {
		return nil, nil
	}
	sort.Strings(files)

	var removed []string
	var errs []error
	for _, n := range files[:len(files)-max] {
		p := filepath.Join(dir, n)
		if err := os.Remove(p); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, p)
	}
	return removed, errors.Join(errs...)
}
