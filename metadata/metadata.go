/*Package metadata reads the embedded metadata of image files: the EXIF
orientation and the preview images cameras store next to the main image.

Opener and Metadata describe the capability; EXIF implements it for JPEG
files and TIFF based raw formats (CR2, NEF, DNG, ARW, PEF, ...) with goexif.
*/
package metadata

import (
	"errors"
	"fmt"
)

var (
	// ErrNoMetadata is returned by Open when the file carries no metadata
	// the reader understands
	ErrNoMetadata = errors.New("no metadata in file")
)

// Orientation is the EXIF orientation code, 1 through 8
type Orientation int

const (
	OrientationUnspecified Orientation = iota
	OrientationNormal
	OrientationHFlip
	OrientationRot180
	OrientationVFlip
	OrientationRot90HFlip
	OrientationRot90
	OrientationRot90VFlip
	OrientationRot270
)

func (o Orientation) String() string {
	switch o {
	case OrientationUnspecified:
		return "unspecified"
	case OrientationNormal:
		return "normal"
	case OrientationHFlip:
		return "hflip"
	case OrientationRot180:
		return "rot-180"
	case OrientationVFlip:
		return "vflip"
	case OrientationRot90HFlip:
		return "rot-90-hflip"
	case OrientationRot90:
		return "rot-90"
	case OrientationRot90VFlip:
		return "rot-90-vflip"
	case OrientationRot270:
		return "rot-270"
	}
	return fmt.Sprintf("Orientation(%d)", int(o))
}

// Preview describes one embedded preview image
type Preview struct {
	Width    int
	Height   int
	MIMEType string

	data []byte
}

// NewPreview returns a preview holding data, for Metadata implementations
// outside of this package
func NewPreview(width, height int, mime string, data []byte) Preview {
	return Preview{Width: width, Height: height, MIMEType: mime, data: data}
}

// Metadata is the metadata of one file
type Metadata interface {
	// Previews lists the embedded previews in file order
	Previews() []Preview

	// PreviewImage returns the encoded bytes of p and their MIME type
	PreviewImage(p Preview) ([]byte, string, error)

	Orientation() Orientation

	// SetOrientation changes the orientation held in memory.  The file is
	// not rewritten.
	SetOrientation(Orientation)
}

// Opener reads the metadata of a file
type Opener interface {
	Open(path string) (Metadata, error)
}

// Static is a Metadata held entirely in memory
type Static struct {
	List   []Preview
	Orient Orientation
}

func (s *Static) Previews() []Preview { return append([]Preview(nil), s.List...) }

func (s *Static) PreviewImage(p Preview) ([]byte, string, error) {
	if p.data == nil {
		return nil, "", errors.New("preview has no data")
	}
	return append([]byte(nil), p.data...), p.MIMEType, nil
}

func (s *Static) Orientation() Orientation { return s.Orient }

func (s *Static) SetOrientation(o Orientation) { s.Orient = o }
