// Package storage defines the disk abstraction attachments and their
// derivatives are written to.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrWrite       = errors.New("storage write failed")
	ErrUnknownDisk = errors.New("unknown disk")
	ErrInvalidPath = errors.New("invalid storage path")
	// ErrNoDirectory is returned by writes that must not create the
	// directory they write into.
	ErrNoDirectory = errors.New("directory does not exist")
)

// Disk is a storage backend. Paths are slash separated and relative to the
// disk root.
type Disk interface {
	// Put writes the content of r to p, creating parent directories.
	Put(ctx context.Context, p string, r io.Reader) error
	// PutExisting is Put without creating directories. A missing parent
	// yields ErrNoDirectory.
	PutExisting(ctx context.Context, p string, r io.Reader) error
	// Get opens p for reading. A missing file yields ErrNotFound.
	Get(ctx context.Context, p string) (io.ReadCloser, error)
	Exists(ctx context.Context, p string) (bool, error)
	// Delete removes a single file. A missing file is not an error.
	Delete(ctx context.Context, p string) error
	// DeleteDirectory removes p and everything below it.
	DeleteDirectory(ctx context.Context, p string) error
	// MoveAtomic renames tmpPath to finalPath so that readers of finalPath
	// see either the old state or the complete new file. Both paths share a
	// directory; when it is gone the move fails with ErrNoDirectory.
	MoveAtomic(ctx context.Context, tmpPath, finalPath string) error
	// URL is the public URL of p.
	URL(p string) string
	// AbsolutePath is the backend specific location of p.
	AbsolutePath(p string) string
}

// TempPath returns a unique sibling of finalPath used as the write target
// before MoveAtomic.
func TempPath(finalPath string) string {
	dir, file := path.Split(finalPath)
	return path.Join(dir, ".tmp-"+uuid.NewString()+"-"+file)
}

// WriteAtomic stores content at finalPath via a temporary file in the same
// directory, creating the directory when needed. The temporary file is
// removed when the move fails.
func WriteAtomic(ctx context.Context, disk Disk, finalPath string, content []byte) error {
	return writeAtomic(ctx, disk, finalPath, content, disk.Put)
}

// WriteAtomicExisting is WriteAtomic for files that belong to a directory
// somebody else owns. If that directory is missing, or removed while
// writing, the error wraps ErrNoDirectory and nothing is left behind.
func WriteAtomicExisting(ctx context.Context, disk Disk, finalPath string, content []byte) error {
	return writeAtomic(ctx, disk, finalPath, content, disk.PutExisting)
}

func writeAtomic(
	ctx context.Context,
	disk Disk,
	finalPath string,
	content []byte,
	put func(ctx context.Context, p string, r io.Reader) error,
) error {
	tmp := TempPath(finalPath)
	if err := put(ctx, tmp, bytes.NewReader(content)); err != nil {
		_ = disk.Delete(ctx, tmp)
		return fmt.Errorf("%w: put %s: %w", ErrWrite, tmp, err)
	}
	if err := disk.MoveAtomic(ctx, tmp, finalPath); err != nil {
		_ = disk.Delete(ctx, tmp)
		return fmt.Errorf("%w: move to %s: %w", ErrWrite, finalPath, err)
	}
	return nil
}

// ReadAll reads the whole file at p.
func ReadAll(ctx context.Context, disk Disk, p string) ([]byte, error) {
	rc, err := disk.Get(ctx, p)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Disks maps disk names to backends.
type Disks struct {
	mu    sync.RWMutex
	disks map[string]Disk
}

func NewDisks() *Disks {
	return &Disks{disks: make(map[string]Disk)}
}

func (d *Disks) Register(name string, disk Disk) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.disks[name] = disk
}

func (d *Disks) Get(name string) (Disk, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	disk, ok := d.disks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDisk, name)
	}
	return disk, nil
}

func (d *Disks) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.disks))
	for name := range d.disks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
