package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FSSink writes files under a local root directory.
type FSSink struct {
	Root string
}

func NewFSSink(root string) *FSSink {
	return &FSSink{Root: root}
}

func (s *FSSink) Exists(_ context.Context, dest string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.Root, filepath.FromSlash(dest)))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", dest, err)
}

// Write lands the file via a temp name so a partial download never
// masquerades as a finished one.
func (s *FSSink) Write(ctx context.Context, dest string, r io.Reader, _ int64) error {
	path := filepath.Join(s.Root, filepath.FromSlash(dest))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dest, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", dest, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, &contextReader{ctx: ctx, r: r}); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dest, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to finalize %s: %w", dest, err)
	}
	return nil
}

// contextReader aborts a copy once the context is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
