package generator

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sndcds/attachments/attachment"
	"github.com/sndcds/attachments/formats"
	"github.com/sndcds/attachments/imageproc"
	"github.com/sndcds/attachments/manipulations"
	"github.com/sndcds/attachments/queue"
	"github.com/sndcds/attachments/repository/memory"
	"github.com/sndcds/attachments/storage"
	"github.com/sndcds/attachments/storage/local"
)

type countingBackend struct {
	calls    atomic.Int32
	failures int32
	next     imageproc.Backend
}

func (b *countingBackend) Transform(ctx context.Context, src []byte, params manipulations.Params) ([]byte, error) {
	n := b.calls.Add(1)
	if n <= b.failures {
		return nil, imageproc.ErrTransform
	}
	return b.next.Transform(ctx, src, params)
}

type fixture struct {
	repo     *memory.Store
	registry *formats.Registry
	disks    *storage.Disks
	disk     *local.Disk
	backend  *countingBackend
	gen      *Generator
}

func newFixture(t *testing.T, failures int32) *fixture {
	t.Helper()
	disk, err := local.New(t.TempDir(), "http://localhost/storage")
	require.NoError(t, err)

	f := &fixture{
		repo:     memory.New(),
		registry: formats.NewRegistry(),
		disks:    storage.NewDisks(),
		disk:     disk,
		backend:  &countingBackend{failures: failures, next: imageproc.NewProcessor(nil)},
	}
	f.disks.Register("public", disk)
	f.registry.Register(
		formats.New("hero", manipulations.New().Crop(manipulations.CropCenter, 50, 40)).
			WithBreakpoint(320, manipulations.New().Width(20)),
		"post",
	)
	f.registry.Register(formats.New("original", manipulations.New()), "post")

	f.gen = New(f.repo, f.registry, f.disks, f.backend, Config{
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
	}, nil)
	return f
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func (f *fixture) upload(t *testing.T, filename string, content []byte, storeContent bool) *attachment.Attachment {
	t.Helper()
	ctx := context.Background()
	a := attachment.FromUpload("public", filename, content)
	if storeContent {
		require.NoError(t, f.disk.Put(ctx, a.FilePath(), bytes.NewReader(content)))
	}
	require.NoError(t, f.repo.Create(ctx, a))
	return a
}

func (f *fixture) target(t *testing.T, a *attachment.Attachment, format string, breakpoint int) formats.Target {
	t.Helper()
	def, ok := f.registry.Get(format)
	require.True(t, ok)
	target, err := def.Target(a, breakpoint)
	require.NoError(t, err)
	return target
}

func (f *fixture) listFiles(t *testing.T, a *attachment.Attachment) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(f.disk.Root(), filepath.FromSlash(a.Directory())))
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestExecuteWritesDerivativeAndWebp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	a := f.upload(t, "photo.jpg", testJPEG(t, 100, 100), true)

	require.NoError(t, f.gen.Execute(ctx, queue.Job{AttachmentID: a.ID, Format: "hero"}))

	target := f.target(t, a, "hero", 0)
	content, err := storage.ReadAll(ctx, f.disk, target.Path)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 50, cfg.Width)
	assert.Equal(t, 40, cfg.Height)

	exists, err := f.disk.Exists(ctx, target.WebpPath)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.EqualValues(t, 2, f.backend.calls.Load())
}

func TestExecuteBreakpoint(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	a := f.upload(t, "photo.jpg", testJPEG(t, 100, 100), true)

	require.NoError(t, f.gen.Execute(ctx, queue.Job{AttachmentID: a.ID, Format: "hero", Breakpoint: 320}))

	target := f.target(t, a, "hero", 320)
	content, err := storage.ReadAll(ctx, f.disk, target.Path)
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, 20, cfg.Width)

	exists, err := f.disk.Exists(ctx, f.target(t, a, "hero", 0).Path)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestExecuteTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	a := f.upload(t, "photo.jpg", testJPEG(t, 100, 100), true)
	job := queue.Job{AttachmentID: a.ID, Format: "hero"}

	require.NoError(t, f.gen.Execute(ctx, job))
	first := f.listFiles(t, a)
	target := f.target(t, a, "hero", 0)
	firstContent, err := storage.ReadAll(ctx, f.disk, target.Path)
	require.NoError(t, err)

	require.NoError(t, f.gen.Execute(ctx, job))
	second := f.listFiles(t, a)
	secondContent, err := storage.ReadAll(ctx, f.disk, target.Path)
	require.NoError(t, err)

	assert.ElementsMatch(t, first, second)
	assert.Len(t, second, 3)
	assert.Equal(t, firstContent, secondContent)
}

func TestExecuteConcurrentDuplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	a := f.upload(t, "photo.jpg", testJPEG(t, 100, 100), true)
	job := queue.Job{AttachmentID: a.ID, Format: "hero"}

	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() { errs <- f.gen.Execute(ctx, job) }()
	}
	for i := 0; i < 4; i++ {
		require.NoError(t, <-errs)
	}
	assert.Len(t, f.listFiles(t, a), 3)
}

func TestExecuteMissingAttachment(t *testing.T) {
	f := newFixture(t, 0)
	err := f.gen.Execute(context.Background(), queue.Job{AttachmentID: uuid.New(), Format: "hero"})
	assert.NoError(t, err)
	assert.Zero(t, f.backend.calls.Load())
}

func TestExecuteMissingSource(t *testing.T) {
	f := newFixture(t, 0)
	a := f.upload(t, "photo.jpg", testJPEG(t, 100, 100), false)

	assert.NoError(t, f.gen.Execute(context.Background(), queue.Job{AttachmentID: a.ID, Format: "hero"}))
	assert.Zero(t, f.backend.calls.Load())
}

func TestExecuteNothingToDo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 0)
	a := f.upload(t, "photo.jpg", testJPEG(t, 100, 100), true)
	svg := f.upload(t, "logo.svg", []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"></svg>`), true)

	jobs := []queue.Job{
		{AttachmentID: a.ID, Format: "unknown"},
		{AttachmentID: a.ID, Format: "original"},
		{AttachmentID: a.ID, Format: "hero", Breakpoint: 999},
		{AttachmentID: svg.ID, Format: "hero"},
	}
	for _, job := range jobs {
		assert.NoError(t, f.gen.Execute(ctx, job), job.Key())
	}
	assert.Zero(t, f.backend.calls.Load())
	assert.Len(t, f.listFiles(t, a), 1)
}

func TestExecuteRetriesThenSucceeds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 1)
	a := f.upload(t, "photo.jpg", testJPEG(t, 100, 100), true)

	require.NoError(t, f.gen.Execute(ctx, queue.Job{AttachmentID: a.ID, Format: "hero"}))

	exists, err := f.disk.Exists(ctx, f.target(t, a, "hero", 0).Path)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestExecuteGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, 100)
	a := f.upload(t, "photo.jpg", testJPEG(t, 100, 100), true)

	assert.NoError(t, f.gen.Execute(ctx, queue.Job{AttachmentID: a.ID, Format: "hero"}))
	assert.EqualValues(t, 3, f.backend.calls.Load())
	assert.Equal(t, []string{"photo.jpg"}, f.listFiles(t, a))

	got, err := f.repo.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ContentHash, got.ContentHash)
}

func TestExecuteCancelled(t *testing.T) {
	f := newFixture(t, 100)
	a := f.upload(t, "photo.jpg", testJPEG(t, 100, 100), true)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := f.gen.Execute(ctx, queue.Job{AttachmentID: a.ID, Format: "hero"})
	assert.True(t, errors.Is(err, context.Canceled))
}

// blockingBackend parks the first Transform call until released.
type blockingBackend struct {
	started chan struct{}
	release chan struct{}
	once    atomic.Bool
	next    imageproc.Backend
}

func (b *blockingBackend) Transform(ctx context.Context, src []byte, params manipulations.Params) ([]byte, error) {
	if b.once.CompareAndSwap(false, true) {
		close(b.started)
		<-b.release
	}
	return b.next.Transform(ctx, src, params)
}

func TestExecuteRacingDeletionLeavesNoFiles(t *testing.T) {
	tests := []struct {
		name            string
		deleteDirectory bool
	}{
		{"record and directory removed", true},
		{"record removed, directory pending", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, 0)
			backend := &blockingBackend{
				started: make(chan struct{}),
				release: make(chan struct{}),
				next:    imageproc.NewProcessor(nil),
			}
			f.gen = New(f.repo, f.registry, f.disks, backend, Config{MaxAttempts: 3, InitialInterval: time.Millisecond}, nil)
			a := f.upload(t, "photo.jpg", testJPEG(t, 100, 100), true)

			done := make(chan error, 1)
			go func() { done <- f.gen.Execute(ctx, queue.Job{AttachmentID: a.ID, Format: "hero"}) }()

			<-backend.started
			require.NoError(t, f.repo.Delete(ctx, a.ID))
			if tt.deleteDirectory {
				require.NoError(t, f.disk.DeleteDirectory(ctx, a.Directory()))
			}
			close(backend.release)
			require.NoError(t, <-done)

			_, err := os.Stat(filepath.Join(f.disk.Root(), filepath.FromSlash(a.Directory())))
			assert.True(t, os.IsNotExist(err), "attachment directory must not exist")

			target := f.target(t, a, "hero", 0)
			for _, p := range []string{target.Path, target.WebpPath} {
				exists, err := f.disk.Exists(ctx, p)
				require.NoError(t, err)
				assert.False(t, exists, p)
			}
		})
	}
}
