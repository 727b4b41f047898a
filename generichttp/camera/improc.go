// this file contains a few small image processing utilities
package camera

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/astrogo/fitsio"
	"github.com/disintegration/gift"
)

// scale resizes img to width pixels wide, keeping the aspect ratio.  Images
// already narrower are returned as is.
func scale(img image.Image, width int) image.Image {
	if width <= 0 || img.Bounds().Dx() <= width {
		return img
	}
	g := gift.New(gift.Resize(width, 0, gift.LinearResampling))
	dst := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

// contentTypes maps the fmt query parameter to a MIME type
var contentTypes = map[string]string{
	"jpg":  "image/jpeg",
	"png":  "image/png",
	"fits": "image/fits",
}

// encode writes img to w in format
func encode(w io.Writer, img image.Image, format string, cards []fitsio.Card) error {
	switch format {
	case "jpg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	case "png":
		return png.Encode(w, img)
	case "fits":
		return WriteFits(w, cards, img)
	}
	return fmt.Errorf("unknown image format %q", format)
}
