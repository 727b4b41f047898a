/*Package imgfile describes an image file on disk: its absolute path, its
size and modification time, and the decoded bitmap and metadata callers
attach to it once they have been resolved.
*/
package imgfile

import (
	"image"
	"path/filepath"
	"sync"
	"time"

	"github.com/cicerolneto/entangle/debug"
	"github.com/cicerolneto/entangle/metadata"
	"github.com/spf13/afero"
)

// Image is an image file.  The path is fixed at construction; everything
// else is cached.
type Image struct {
	fs   afero.Fs
	path string

	mu     sync.Mutex
	dirty  bool
	size   int64
	mtime  time.Time
	pixbuf image.Image
	md     metadata.Metadata
}

// New returns the image at path on the OS filesystem.  Relative paths are
// made absolute against the working directory.
func New(path string) *Image {
	return NewWithFs(afero.NewOsFs(), path)
}

// NewWithFs returns the image at path on fs
func NewWithFs(fs afero.Fs, path string) *Image {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &Image{fs: fs, path: path, dirty: true}
}

// Filename returns the absolute path of the file
func (i *Image) Filename() string { return i.path }

// Fs returns the filesystem the file lives on
func (i *Image) Fs() afero.Fs { return i.fs }

// stat loads the file size and mtime once.  A failed stat leaves the cache
// dirty so the next call tries again.
func (i *Image) stat() {
	if !i.dirty {
		return
	}
	fi, err := i.fs.Stat(i.path)
	if err != nil {
		lg := debug.For("imgfile")
		lg.Debug().Err(err).Str("path", i.path).Msg("stat failed")
		i.size, i.mtime = 0, time.Time{}
		return
	}
	i.size, i.mtime = fi.Size(), fi.ModTime()
	i.dirty = false
}

// FileSize returns the size of the file in bytes, or 0 if it cannot be
// read
func (i *Image) FileSize() int64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stat()
	return i.size
}

// LastModified returns the modification time of the file, or the zero time
// if it cannot be read
func (i *Image) LastModified() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stat()
	return i.mtime
}

// Pixbuf returns the decoded bitmap attached to the image, if any
func (i *Image) Pixbuf() image.Image {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.pixbuf
}

func (i *Image) SetPixbuf(img image.Image) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.pixbuf = img
}

// Metadata returns the metadata attached to the image, if any
func (i *Image) Metadata() metadata.Metadata {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.md
}

func (i *Image) SetMetadata(md metadata.Metadata) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.md = md
}

func (i *Image) String() string { return i.path }
