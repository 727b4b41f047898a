package metadata_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/cicerolneto/entangle/metadata"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	typeShort = 3
	typeLong  = 4
)

// what an entry's value points at, resolved once the layout is known
const (
	refNone = iota
	refPayload
	refPayloadLen
	refIFD1
)

type entry struct {
	id  uint16
	typ uint16
	val uint32
	ref int
}

// buildTIFF lays out a header, the IFDs back to back and then payload.  When
// chain is set IFD0 links to IFD1, otherwise IFD1 is only reachable through
// an entry referencing it.
func buildTIFF(order binary.ByteOrder, chain bool, payload []byte, ifds ...[]entry) []byte {
	offsets := make([]uint32, len(ifds))
	off := uint32(8)
	for i, d := range ifds {
		offsets[i] = off
		off += uint32(2 + 12*len(d) + 4)
	}
	payloadAt := off

	var buf bytes.Buffer
	if order == binary.LittleEndian {
		buf.WriteString("II")
	} else {
		buf.WriteString("MM")
	}
	binary.Write(&buf, order, uint16(42))
	binary.Write(&buf, order, offsets[0])
	for i, d := range ifds {
		binary.Write(&buf, order, uint16(len(d)))
		for _, e := range d {
			v := e.val
			switch e.ref {
			case refPayload:
				v = payloadAt
			case refPayloadLen:
				v = uint32(len(payload))
			case refIFD1:
				v = offsets[1]
			}
			binary.Write(&buf, order, e.id)
			binary.Write(&buf, order, e.typ)
			binary.Write(&buf, order, uint32(1))
			if e.typ == typeShort {
				binary.Write(&buf, order, uint16(v))
				binary.Write(&buf, order, uint16(0))
			} else {
				binary.Write(&buf, order, v)
			}
		}
		var next uint32
		if chain && i+1 < len(ifds) {
			next = offsets[i+1]
		}
		binary.Write(&buf, order, next)
	}
	buf.Write(payload)
	return buf.Bytes()
}

func encodeJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func jpegIFD(orient uint32) []entry {
	return []entry{
		{id: 0x0112, typ: typeShort, val: orient},
		{id: 0x0201, typ: typeLong, ref: refPayload},
		{id: 0x0202, typ: typeLong, ref: refPayloadLen},
	}
}

func ExampleOrientation_String() {
	fmt.Println(metadata.OrientationRot90, metadata.Orientation(12))
	// Output: rot-90 Orientation(12)
}

func TestParseTIFFJPEGInterchange(t *testing.T) {
	thumb := encodeJPEG(t, 40, 30)
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		data := buildTIFF(order, true, thumb, jpegIFD(6))
		md, err := metadata.Parse(data)
		require.NoError(t, err, order.String())
		assert.Equal(t, metadata.OrientationRot90, md.Orientation())

		ps := md.Previews()
		require.Len(t, ps, 1)
		assert.Equal(t, 40, ps[0].Width)
		assert.Equal(t, 30, ps[0].Height)
		assert.Equal(t, "image/jpeg", ps[0].MIMEType)

		b, mime, err := md.PreviewImage(ps[0])
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", mime)
		assert.Equal(t, thumb, b)
	}
}

func TestParseTIFFStripInChainedIFD(t *testing.T) {
	thumb := encodeJPEG(t, 64, 32)
	ifd0 := []entry{{id: 0x0112, typ: typeShort, val: 8}}
	ifd1 := []entry{
		{id: 0x0103, typ: typeShort, val: 6},
		{id: 0x0111, typ: typeLong, ref: refPayload},
		{id: 0x0117, typ: typeLong, ref: refPayloadLen},
	}
	md, err := metadata.Parse(buildTIFF(binary.BigEndian, true, thumb, ifd0, ifd1))
	require.NoError(t, err)
	assert.Equal(t, metadata.OrientationRot270, md.Orientation())
	ps := md.Previews()
	require.Len(t, ps, 1)
	assert.Equal(t, 64, ps[0].Width)
}

func TestParseTIFFSubIFD(t *testing.T) {
	thumb := encodeJPEG(t, 48, 48)
	ifd0 := []entry{{id: 0x014A, typ: typeLong, ref: refIFD1}}
	sub := []entry{
		{id: 0x00FE, typ: typeLong, val: 1},
		{id: 0x0103, typ: typeShort, val: 7},
		{id: 0x0111, typ: typeLong, ref: refPayload},
		{id: 0x0117, typ: typeLong, ref: refPayloadLen},
	}
	md, err := metadata.Parse(buildTIFF(binary.LittleEndian, false, thumb, ifd0, sub))
	require.NoError(t, err)
	assert.Equal(t, metadata.OrientationUnspecified, md.Orientation())
	require.Len(t, md.Previews(), 1)
}

func TestParseTIFFFullResolutionStripSkipped(t *testing.T) {
	thumb := encodeJPEG(t, 48, 48)
	ifd0 := []entry{
		{id: 0x00FE, typ: typeLong, val: 0},
		{id: 0x0103, typ: typeShort, val: 7},
		{id: 0x0111, typ: typeLong, ref: refPayload},
		{id: 0x0117, typ: typeLong, ref: refPayloadLen},
	}
	md, err := metadata.Parse(buildTIFF(binary.LittleEndian, false, thumb, ifd0))
	require.NoError(t, err)
	assert.Empty(t, md.Previews())
}

func TestParseOtherTIFFMagic(t *testing.T) {
	thumb := encodeJPEG(t, 40, 30)
	data := buildTIFF(binary.LittleEndian, true, thumb, jpegIFD(3))
	data[2], data[3] = 'R', 'O'
	md, err := metadata.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, metadata.OrientationRot180, md.Orientation())
	assert.Len(t, md.Previews(), 1)
	assert.Equal(t, byte('R'), data[2], "input must not be modified")
}

func TestParseBadPreviewIgnored(t *testing.T) {
	md, err := metadata.Parse(buildTIFF(binary.LittleEndian, true, []byte("not a jpeg"), jpegIFD(1)))
	require.NoError(t, err)
	assert.Equal(t, metadata.OrientationNormal, md.Orientation())
	assert.Empty(t, md.Previews())
}

func TestParseJPEGWithEXIF(t *testing.T) {
	thumb := encodeJPEG(t, 32, 24)
	main := encodeJPEG(t, 320, 240)
	ifd0 := []entry{{id: 0x0112, typ: typeShort, val: 3}}
	ifd1 := []entry{
		{id: 0x0201, typ: typeLong, ref: refPayload},
		{id: 0x0202, typ: typeLong, ref: refPayloadLen},
	}
	tf := buildTIFF(binary.BigEndian, true, thumb, ifd0, ifd1)

	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xD8, 0xFF, 0xE1})
	binary.Write(&buf, binary.BigEndian, uint16(2+6+len(tf)))
	buf.WriteString("Exif\x00\x00")
	buf.Write(tf)
	buf.Write(main[2:])

	md, err := metadata.Parse(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, metadata.OrientationRot180, md.Orientation())
	ps := md.Previews()
	require.Len(t, ps, 1)
	assert.Equal(t, 32, ps[0].Width)
	assert.Equal(t, 24, ps[0].Height)
}

func TestParseNoMetadata(t *testing.T) {
	var pngBuf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.White)
	require.NoError(t, png.Encode(&pngBuf, img))

	for name, data := range map[string][]byte{
		"plain jpeg": encodeJPEG(t, 16, 16),
		"png":        pngBuf.Bytes(),
		"garbage":    []byte("hello world"),
		"empty":      nil,
		"bad tiff":   []byte("II*\x00\xff\xff\xff\x7f"),
	} {
		_, err := metadata.Parse(data)
		assert.ErrorIs(t, err, metadata.ErrNoMetadata, name)
	}
}

func TestEXIFOpen(t *testing.T) {
	fs := afero.NewMemMapFs()
	thumb := encodeJPEG(t, 40, 30)
	require.NoError(t, afero.WriteFile(fs, "/photos/IMG_0001.CR2", buildTIFF(binary.LittleEndian, true, thumb, jpegIFD(1)), 0644))
	require.NoError(t, afero.WriteFile(fs, "/photos/notes.txt", []byte("hello"), 0644))

	op := metadata.EXIF{Fs: fs}
	md, err := op.Open("/photos/IMG_0001.CR2")
	require.NoError(t, err)
	assert.Len(t, md.Previews(), 1)

	_, err = op.Open("/photos/notes.txt")
	assert.True(t, errors.Is(err, metadata.ErrNoMetadata))
	assert.Contains(t, err.Error(), "notes.txt")

	_, err = op.Open("/photos/missing.CR2")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, metadata.ErrNoMetadata))
}

func TestStatic(t *testing.T) {
	p := metadata.NewPreview(2, 1, "image/png", []byte{1, 2, 3})
	s := &metadata.Static{List: []metadata.Preview{p}}

	ps := s.Previews()
	ps[0].Width = 99
	assert.Equal(t, 2, s.Previews()[0].Width)

	b, mime, err := s.PreviewImage(p)
	require.NoError(t, err)
	assert.Equal(t, "image/png", mime)
	b[0] = 9
	b2, _, _ := s.PreviewImage(p)
	assert.Equal(t, byte(1), b2[0])

	_, _, err = s.PreviewImage(metadata.Preview{Width: 1, Height: 1})
	assert.Error(t, err)

	s.SetOrientation(metadata.OrientationHFlip)
	assert.Equal(t, metadata.OrientationHFlip, s.Orientation())
}
