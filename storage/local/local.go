// Package local implements storage.Disk on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/sndcds/attachments/storage"
)

type Disk struct {
	rootPath string
	baseURL  string
}

var _ storage.Disk = (*Disk)(nil)

// New creates the root directory if needed. baseURL is prefixed to every
// path by URL.
func New(rootPath, baseURL string) (*Disk, error) {
	p := filepath.Clean(rootPath)

	if err := os.MkdirAll(p, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root storage directory %s: %w", p, err)
	}

	return &Disk{rootPath: p, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (d *Disk) Root() string {
	return d.rootPath
}

// resolve maps a disk path to a filesystem path and rejects anything that
// would leave the root.
func (d *Disk) resolve(p string) (string, error) {
	clean := path.Clean("/" + filepath.ToSlash(p))
	if clean == "/" {
		return "", fmt.Errorf("%w: %q", storage.ErrInvalidPath, p)
	}
	return filepath.Join(d.rootPath, filepath.FromSlash(clean)), nil
}

func (d *Disk) Put(ctx context.Context, p string, r io.Reader) error {
	fullPath, err := d.resolve(p)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create subdirectories: %w", err)
	}
	return writeFile(fullPath, r)
}

func (d *Disk) PutExisting(ctx context.Context, p string, r io.Reader) error {
	fullPath, err := d.resolve(p)
	if err != nil {
		return err
	}
	err = writeFile(fullPath, r)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", storage.ErrNoDirectory, path.Dir(p))
	}
	return err
}

func writeFile(fullPath string, r io.Reader) error {
	dst, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}

	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		os.Remove(fullPath)
		return fmt.Errorf("failed to copy file data: %w", err)
	}
	if err := dst.Sync(); err != nil {
		dst.Close()
		os.Remove(fullPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}
	return dst.Close()
}

func (d *Disk) Get(ctx context.Context, p string) (io.ReadCloser, error) {
	fullPath, err := d.resolve(p)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, p)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

func (d *Disk) Exists(ctx context.Context, p string) (bool, error) {
	fullPath, err := d.resolve(p)
	if err != nil {
		return false, err
	}

	stat, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !stat.IsDir(), nil
}

func (d *Disk) Delete(ctx context.Context, p string) error {
	fullPath, err := d.resolve(p)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (d *Disk) DeleteDirectory(ctx context.Context, p string) error {
	fullPath, err := d.resolve(p)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(fullPath); err != nil {
		return fmt.Errorf("failed to delete directory: %w", err)
	}
	return nil
}

// MoveAtomic relies on rename(2), which is atomic within one filesystem.
// Temporary files are always created next to their final path, so the
// directory is never created here: if it vanished the move must fail.
func (d *Disk) MoveAtomic(ctx context.Context, tmpPath, finalPath string) error {
	from, err := d.resolve(tmpPath)
	if err != nil {
		return err
	}
	to, err := d.resolve(finalPath)
	if err != nil {
		return err
	}

	if err := os.Rename(from, to); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", storage.ErrNoDirectory, path.Dir(finalPath))
		}
		return fmt.Errorf("failed to move file: %w", err)
	}
	return nil
}

func (d *Disk) URL(p string) string {
	segments := strings.Split(strings.TrimPrefix(path.Clean("/"+p), "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return d.baseURL + "/" + strings.Join(segments, "/")
}

func (d *Disk) AbsolutePath(p string) string {
	fullPath, err := d.resolve(p)
	if err != nil {
		return d.rootPath
	}
	return fullPath
}
