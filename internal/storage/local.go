package storage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DirStorage keeps objects under a local directory. It backs archiving
// when no object store is configured.
type DirStorage struct {
	root string
}

func NewDirStorage(root string) (*DirStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	return &DirStorage{root: root}, nil
}

func (d *DirStorage) path(key string) string {
	return filepath.Join(d.root, filepath.FromSlash(key))
}

func (d *DirStorage) ListObjects(_ context.Context, prefix string) ([]ObjectInfo, error) {
	results := make([]ObjectInfo, 0)
	err := filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		results = append(results, ObjectInfo{Key: key, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	return results, nil
}

func (d *DirStorage) DownloadObject(_ context.Context, key, destPath string) error {
	src, err := os.Open(d.path(key))
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}
	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

func (d *DirStorage) UploadObject(_ context.Context, key string, data []byte, _ string) error {
	p := d.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", p, err)
	}
	return os.WriteFile(p, data, 0o644)
}

var _ ObjectStorage = (*DirStorage)(nil)
