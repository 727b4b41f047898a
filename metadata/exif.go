package metadata

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	_ "image/jpeg" // preview sizes
	"io"

	"github.com/cicerolneto/entangle/debug"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	"github.com/spf13/afero"
)

// TIFF tags walked to find previews
const (
	tagNewSubFileType  = 0x00FE
	tagImageWidth      = 0x0100
	tagImageLength     = 0x0101
	tagCompression     = 0x0103
	tagStripOffsets    = 0x0111
	tagOrientation     = 0x0112
	tagStripByteCounts = 0x0117
	tagSubIFDs         = 0x014A
	tagJPEGOffset      = 0x0201
	tagJPEGLength      = 0x0202
)

// compression values holding a JPEG stream
const (
	compressionOldJPEG = 6
	compressionJPEG    = 7
)

// EXIF opens files through goexif.  A nil Fs reads the OS filesystem.
type EXIF struct {
	Fs afero.Fs
}

// Open reads path and parses its metadata
func (e EXIF) Open(path string) (Metadata, error) {
	fs := e.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	md, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return md, nil
}

// Parse reads the metadata of an encoded file held in memory
func Parse(data []byte) (Metadata, error) {
	switch {
	case len(data) > 2 && data[0] == 0xFF && data[1] == 0xD8:
		return parseJPEG(data)
	case len(data) > 4 && (bytes.HasPrefix(data, []byte("II")) || bytes.HasPrefix(data, []byte("MM"))):
		return parseTIFF(data)
	}
	return nil, ErrNoMetadata
}

func parseJPEG(data []byte) (Metadata, error) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		if x == nil || exif.IsCriticalError(err) {
			return nil, ErrNoMetadata
		}
		lg := debug.For("metadata")
		lg.Debug().Err(err).Msg("partial EXIF")
	}
	md := &Static{}
	if tag, err := x.Get(exif.Orientation); err == nil {
		if v, err := tag.Int(0); err == nil {
			md.Orient = Orientation(v)
		}
	}
	if thumb, err := x.JpegThumbnail(); err == nil {
		if p, ok := jpegPreview(thumb); ok {
			md.List = append(md.List, p)
		}
	}
	return md, nil
}

func jpegPreview(b []byte) (Preview, bool) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(b))
	if err != nil {
		return Preview{}, false
	}
	return Preview{Width: cfg.Width, Height: cfg.Height, MIMEType: "image/jpeg", data: b}, true
}

// parseTIFF walks IFD0, the IFDs chained after it and their SubIFDs
// looking for JPEG streams
func parseTIFF(data []byte) (Metadata, error) {
	// ORF and RW2 use their own magic number in place of 42
	hdr := data
	if magic(data) != 42 {
		hdr = append([]byte(nil), data...)
		if hdr[0] == 'I' {
			hdr[2], hdr[3] = 42, 0
		} else {
			hdr[2], hdr[3] = 0, 42
		}
	}
	tf, err := tiff.Decode(bytes.NewReader(hdr))
	if err != nil {
		return nil, ErrNoMetadata
	}
	md := &Static{}
	if len(tf.Dirs) > 0 {
		if tag := findTag(tf.Dirs[0], tagOrientation); tag != nil {
			if v, err := tag.Int(0); err == nil {
				md.Orient = Orientation(v)
			}
		}
	}
	br := bytes.NewReader(hdr)
	for _, d := range tf.Dirs {
		md.List = append(md.List, dirPreviews(data, d)...)
		for _, sub := range subDirs(br, tf.Order, d) {
			md.List = append(md.List, dirPreviews(data, sub)...)
		}
	}
	return md, nil
}

func magic(b []byte) uint16 {
	if b[0] == 'I' {
		return binary.LittleEndian.Uint16(b[2:4])
	}
	return binary.BigEndian.Uint16(b[2:4])
}

func findTag(d *tiff.Dir, id uint16) *tiff.Tag {
	for _, t := range d.Tags {
		if t.Id == id {
			return t
		}
	}
	return nil
}

func tagInt(d *tiff.Dir, id uint16) (int64, bool) {
	t := findTag(d, id)
	if t == nil || t.Count == 0 {
		return 0, false
	}
	v, err := t.Int64(0)
	return v, err == nil
}

func subDirs(r *bytes.Reader, order binary.ByteOrder, d *tiff.Dir) []*tiff.Dir {
	t := findTag(d, tagSubIFDs)
	if t == nil {
		return nil
	}
	var out []*tiff.Dir
	for i := 0; i < int(t.Count); i++ {
		off, err := t.Int64(i)
		if err != nil {
			continue
		}
		if _, err := r.Seek(off, io.SeekStart); err != nil {
			continue
		}
		sub, _, err := tiff.DecodeDir(r, order)
		if err != nil {
			lg := debug.For("metadata")
			lg.Debug().Err(err).Int64("offset", off).Msg("bad SubIFD")
			continue
		}
		out = append(out, sub)
	}
	return out
}

// dirPreviews returns the JPEG streams referenced by one IFD
func dirPreviews(data []byte, d *tiff.Dir) []Preview {
	var out []Preview
	add := func(off, n int64) {
		if off <= 0 || n <= 0 || off+n > int64(len(data)) {
			return
		}
		if p, ok := jpegPreview(data[off : off+n]); ok {
			out = append(out, p)
		}
	}
	if off, ok := tagInt(d, tagJPEGOffset); ok {
		if n, ok := tagInt(d, tagJPEGLength); ok {
			add(off, n)
		}
	}
	comp, _ := tagInt(d, tagCompression)
	if comp == compressionOldJPEG || comp == compressionJPEG {
		so := findTag(d, tagStripOffsets)
		sc := findTag(d, tagStripByteCounts)
		// only single strip streams are self contained JPEG files
		if so != nil && sc != nil && so.Count == 1 && sc.Count == 1 {
			off, _ := so.Int64(0)
			n, _ := sc.Int64(0)
			// NewSubFileType 1 marks a reduced resolution image
			if sub, _ := tagInt(d, tagNewSubFileType); sub == 1 || comp == compressionOldJPEG {
				add(off, n)
			}
		}
	}
	return out
}
