/*Package pixbuf resolves the pixels of an image file for display.

A file is opened for one of three slots.  The master is the full resolution
image, decoded by dcraw for raw formats and by the registered Go codecs
otherwise.  The preview and thumbnail slots prefer the smaller images cameras
embed in the file's metadata and fall back to the master when none fits.

Every bitmap returned is upright: the orientation recorded in the file is
applied before it is handed out.
*/
package pixbuf

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"strings"

	// codecs for general decoding
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/cicerolneto/entangle/debug"
	"github.com/cicerolneto/entangle/imgfile"
	"github.com/cicerolneto/entangle/metadata"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// minimum edge of the embedded preview picked per slot
const (
	previewMinSize   = 256
	thumbnailMinSize = 128
)

var (
	// ErrNoPreview is returned when a file embeds no preview large enough
	ErrNoPreview = errors.New("no suitable embedded preview")
)

var rawExtensions = []string{
	".cr2", ".nef", ".nrw", ".arw", ".orf", ".dng", ".pef",
	".crw", ".erf", ".mrw", ".raw", ".rw2", ".raf",
}

func logger() zerolog.Logger {
	return debug.For("pixbuf")
}

// Slot is the purpose an image is opened for
type Slot int

const (
	// SlotMaster is the full resolution image
	SlotMaster Slot = iota

	// SlotPreview is a screen sized image
	SlotPreview

	// SlotThumbnail is a small image for file lists
	SlotThumbnail
)

func (s Slot) String() string {
	switch s {
	case SlotMaster:
		return "master"
	case SlotPreview:
		return "preview"
	case SlotThumbnail:
		return "thumbnail"
	}
	return fmt.Sprintf("Slot(%d)", int(s))
}

// ParseSlot is the inverse of Slot.String
func ParseSlot(s string) (Slot, error) {
	for _, slot := range []Slot{SlotMaster, SlotPreview, SlotThumbnail} {
		if slot.String() == s {
			return slot, nil
		}
	}
	return 0, fmt.Errorf("unknown image slot %q", s)
}

// Pixbuf is a decoded bitmap and the orientation information that came
// with it
type Pixbuf struct {
	image.Image

	// Embedded is the orientation stored in the encoded stream itself
	Embedded metadata.Orientation

	// Tag is the orientation of the file an embedded preview was taken
	// from, as the preview stream usually does not carry one
	Tag metadata.Orientation
}

// IsRaw reports whether filename has the extension of a camera raw format.
// The match is case sensitive.
func IsRaw(filename string) bool {
	for _, ext := range rawExtensions {
		if strings.HasSuffix(filename, ext) {
			return true
		}
	}
	return false
}

// DecodeError is returned when a stage of decoding fails
type DecodeError struct {
	Stage string
	Path  string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %s: %v", e.Path, e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// decode stages
const (
	StageOpen        = "open"
	StageUnpack      = "unpack"
	StageProcess     = "process"
	StageMaterialize = "materialize"
	StageDecode      = "decode"
)

// Loader opens image files.  The zero value reads the OS filesystem, EXIF
// metadata and runs dcraw from PATH.
type Loader struct {
	Meta metadata.Opener
	Raw  RawDecoder
	Fs   afero.Fs
}

func (l *Loader) meta() metadata.Opener {
	if l.Meta == nil {
		return metadata.EXIF{Fs: l.fs()}
	}
	return l.Meta
}

func (l *Loader) raw() RawDecoder {
	if l.Raw == nil {
		return &Dcraw{}
	}
	return l.Raw
}

func (l *Loader) fs() afero.Fs {
	if l.Fs == nil {
		return afero.NewOsFs()
	}
	return l.Fs
}

// source is one file being opened, optionally backed by an asset caching
// its metadata
type source struct {
	path  string
	asset *imgfile.Image
}

func (l *Loader) metadata(src source) (metadata.Metadata, error) {
	if src.asset != nil {
		if md := src.asset.Metadata(); md != nil {
			return md, nil
		}
	}
	md, err := l.meta().Open(src.path)
	if err != nil {
		return nil, err
	}
	if src.asset != nil {
		src.asset.SetMetadata(md)
	}
	return md, nil
}

// Open decodes the file at path for slot
func (l *Loader) Open(path string, slot Slot) (*Pixbuf, error) {
	return l.open(source{path: path}, slot)
}

// OpenImage decodes img for slot.  The result and the file's metadata are
// cached on img.
func (l *Loader) OpenImage(img *imgfile.Image, slot Slot) (*Pixbuf, error) {
	pb, err := l.open(source{path: img.Filename(), asset: img}, slot)
	if err != nil {
		return nil, err
	}
	img.SetPixbuf(pb)
	return pb, nil
}

func (l *Loader) open(src source, slot Slot) (*Pixbuf, error) {
	lg := logger()
	lg.Debug().Str("path", src.path).Stringer("slot", slot).Msg("open image")
	switch slot {
	case SlotMaster:
		return l.master(src)
	case SlotPreview:
		if !IsRaw(src.path) {
			return l.general(src.path)
		}
		pb, err := l.embedded(src, previewMinSize)
		if err == nil {
			return pb, nil
		}
		lg := logger()
		lg.Debug().Err(err).Str("path", src.path).Msg("no preview, decoding raw")
		return l.rawMaster(src.path)
	case SlotThumbnail:
		pb, err := l.embedded(src, thumbnailMinSize)
		if err == nil {
			return pb, nil
		}
		lg := logger()
		lg.Debug().Err(err).Str("path", src.path).Msg("no thumbnail, decoding master")
		return l.master(src)
	}
	return nil, fmt.Errorf("unknown image slot %d", int(slot))
}

func (l *Loader) master(src source) (*Pixbuf, error) {
	if IsRaw(src.path) {
		return l.rawMaster(src.path)
	}
	return l.general(src.path)
}

func (l *Loader) rawMaster(path string) (*Pixbuf, error) {
	img, err := l.raw().Decode(path)
	if err != nil {
		lg := logger()
		lg.Warn().Err(err).Str("path", path).Msg("raw decode failed")
		return nil, err
	}
	return &Pixbuf{Image: img}, nil
}

// general decodes path with the registered codecs and applies the
// orientation stored in its EXIF data
func (l *Loader) general(path string) (*Pixbuf, error) {
	data, err := afero.ReadFile(l.fs(), path)
	if err != nil {
		return nil, &DecodeError{Stage: StageOpen, Path: path, Err: err}
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Stage: StageDecode, Path: path, Err: err}
	}
	pb := &Pixbuf{Image: img, Embedded: embeddedOrientation(data)}
	return ApplyEmbedded(pb), nil
}

func embeddedOrientation(data []byte) metadata.Orientation {
	md, err := metadata.Parse(data)
	if err != nil {
		return metadata.OrientationUnspecified
	}
	return md.Orientation()
}

// EmbeddedPreview decodes the preview embedded in the file at path.  A
// minSize of zero picks the largest preview, otherwise the smallest preview
// with both edges over minSize.
func (l *Loader) EmbeddedPreview(path string, minSize int) (*Pixbuf, error) {
	return l.embedded(source{path: path}, minSize)
}

func (l *Loader) embedded(src source, minSize int) (*Pixbuf, error) {
	md, err := l.metadata(src)
	if err != nil {
		return nil, err
	}
	props := md.Previews()
	var (
		best metadata.Preview
		ok   bool
	)
	if minSize > 0 {
		best, ok = ClosestPreview(props, minSize)
	} else {
		best, ok = LargestPreview(props)
	}
	if !ok {
		return nil, ErrNoPreview
	}
	data, mime, err := md.PreviewImage(best)
	if err != nil {
		return nil, &DecodeError{Stage: StageOpen, Path: src.path, Err: err}
	}
	img, err := decodeMIME(data, mime)
	if err != nil {
		return nil, &DecodeError{Stage: StageDecode, Path: src.path, Err: err}
	}
	pb := &Pixbuf{Image: img, Embedded: embeddedOrientation(data), Tag: md.Orientation()}
	return AutoRotate(pb), nil
}

// LargestPreview returns the preview bigger in both dimensions than every
// preview before it that was picked.  The first preview is always picked.
func LargestPreview(props []metadata.Preview) (metadata.Preview, bool) {
	var (
		best  metadata.Preview
		found bool
	)
	for _, p := range props {
		if !found || (p.Width > best.Width && p.Height > best.Height) {
			best, found = p, true
		}
	}
	return best, found
}

// ClosestPreview returns the smallest preview with both dimensions over
// minSize.  A candidate replaces the current pick only when it is smaller in
// both dimensions.
func ClosestPreview(props []metadata.Preview, minSize int) (metadata.Preview, bool) {
	var (
		best  metadata.Preview
		found bool
	)
	for _, p := range props {
		if p.Width <= minSize || p.Height <= minSize {
			continue
		}
		if !found || (p.Width < best.Width && p.Height < best.Height) {
			best, found = p, true
		}
	}
	return best, found
}

func decodeMIME(data []byte, mime string) (image.Image, error) {
	format, ok := mimeFormats[mime]
	if !ok {
		return nil, fmt.Errorf("no codec for %q", mime)
	}
	img, got, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if got != format {
		return nil, fmt.Errorf("%s data decoded as %s", mime, got)
	}
	return img, nil
}

// MIME types of the preview streams decoded, mapped to the image package
// format names
var mimeFormats = map[string]string{
	"image/jpeg": "jpeg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/tiff": "tiff",
	"image/bmp":  "bmp",
	"image/webp": "webp",
}
