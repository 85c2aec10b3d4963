package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalDestination writes each export to dir/<name>_<timestamp>.jsonl and
// keeps the newest max files.
type LocalDestination struct {
	dir  string
	name string
	max  int
}

func NewLocalDestination(dir, name string, max int) *LocalDestination {
	return &LocalDestination{dir: dir, name: name, max: max}
}

func (d *LocalDestination) Write(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	path := filepath.Join(d.dir, d.name+"_"+now().Format(TimestampLayout)+".jsonl")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename: %w", err)
	}
	_, err := Rotate(d.dir, d.name, ".jsonl", d.max)
	return err
}
