package pixbuf

import (
	"image"

	"github.com/cicerolneto/entangle/metadata"
	"github.com/disintegration/gift"
)

// transforms maps an orientation code to the filters that make the image
// upright.  gift rotates counter-clockwise.
var transforms = map[metadata.Orientation][]gift.Filter{
	metadata.OrientationHFlip:      {gift.FlipHorizontal()},
	metadata.OrientationRot180:     {gift.Rotate180()},
	metadata.OrientationVFlip:      {gift.FlipVertical()},
	metadata.OrientationRot90HFlip: {gift.Rotate270(), gift.FlipHorizontal()},
	metadata.OrientationRot90:      {gift.Rotate270()},
	metadata.OrientationRot90VFlip: {gift.Rotate270(), gift.FlipVertical()},
	metadata.OrientationRot270:     {gift.Rotate90()},
}

// Orient returns img transformed for orientation o.  Normal and unknown
// codes return img itself.
func Orient(img image.Image, o metadata.Orientation) image.Image {
	filters, ok := transforms[o]
	if !ok {
		return img
	}
	g := gift.New(filters...)
	dst := image.NewRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

// ApplyEmbedded applies the orientation of the encoded stream.  pb is
// returned unchanged if it has none.
func ApplyEmbedded(pb *Pixbuf) *Pixbuf {
	if _, ok := transforms[pb.Embedded]; !ok {
		return pb
	}
	return &Pixbuf{Image: Orient(pb.Image, pb.Embedded), Tag: pb.Tag}
}

// AutoRotate makes pb upright.  The orientation of the encoded stream wins;
// without one the out of band Tag is applied.
func AutoRotate(pb *Pixbuf) *Pixbuf {
	if dst := ApplyEmbedded(pb); dst != pb {
		return dst
	}
	if _, ok := transforms[pb.Tag]; !ok {
		return pb
	}
	lg := logger()
	lg.Debug().Stringer("orientation", pb.Tag).Msg("auto rotate")
	return &Pixbuf{Image: Orient(pb.Image, pb.Tag)}
}
