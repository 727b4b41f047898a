package camera

import (
	"image"
	"image/color"
	"io"

	"github.com/astrogo/fitsio"
)

// WriteFits streams img to w as a 16 bit FITS image of its luminance.  The
// first FITS row is the bottom row of the picture.
func WriteFits(w io.Writer, metadata []fitsio.Card, img image.Image) error {
	metadata = append(metadata, fitsio.Card{Name: "BZERO", Value: 32768}, fitsio.Card{Name: "BSCALE", Value: 1.0})
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	fits, err := fitsio.Create(w)
	if err != nil {
		return err
	}
	defer fits.Close()
	im := fitsio.NewImage(16, []int{width, height})
	defer im.Close()
	err = im.Header().Append(metadata...)
	if err != nil {
		return err
	}

	ints := make([]int16, width*height)
	offset := 0
	for y := b.Max.Y - 1; y >= b.Min.Y; y-- {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := color.Gray16Model.Convert(img.At(x, y)).(color.Gray16)
			ints[offset] = int16(int32(g.Y) - 32768)
			offset++
		}
	}
	err = im.Write(ints)
	if err != nil {
		return err
	}
	return fits.Write(im)
}
