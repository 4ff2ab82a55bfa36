package x11

import (
	"image"
	"image/color"

	"github.com/jezek/xgb/xproto"
)

// maxPutImageBytes keeps every PutImage under the core protocol request
// limit of 65535 four-byte units, with room for the request header
const maxPutImageBytes = 65535*4 - 64

// zpixmap converts the r part of src (premultiplied RGBA) into 32bpp
// little-endian ZPixmap rows (B, G, R, A) for an ARGB visual
func zpixmap(src *image.RGBA, r image.Rectangle) []byte {
	r = r.Intersect(src.Bounds())
	out := make([]byte, 0, r.Dx()*r.Dy()*4)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := src.PixOffset(r.Min.X, y)
		row := src.Pix[i : i+r.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			out = append(out, row[x+2], row[x+1], row[x], row[x+3])
		}
	}
	return out
}

// zpixmapOver is zpixmap for opaque visuals: src is composited over bg first
func zpixmapOver(src *image.RGBA, r image.Rectangle, bg color.NRGBA) []byte {
	r = r.Intersect(src.Bounds())
	out := make([]byte, 0, r.Dx()*r.Dy()*4)
	blend := func(s, b, a uint8) uint8 {
		return s + uint8(uint32(b)*uint32(255-a)/255)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		i := src.PixOffset(r.Min.X, y)
		row := src.Pix[i : i+r.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			a := row[x+3]
			out = append(out,
				blend(row[x+2], bg.B, a),
				blend(row[x+1], bg.G, a),
				blend(row[x], bg.R, a),
				0xFF)
		}
	}
	return out
}

// rowsPerChunk is how many rows of width pixels fit in one PutImage
func rowsPerChunk(width int) int {
	if width <= 0 {
		return 0
	}
	n := maxPutImageBytes / (width * 4)
	if n < 1 {
		n = 1
	}
	return n
}

// putImage uploads data (rows of r.Dx() pixels) to drawable at r.Min,
// splitting it into requests the server accepts
func putImage(c *conn, drawable xproto.Drawable, gc xproto.Gcontext, depth byte, r image.Rectangle, data []byte) error {
	w := r.Dx()
	stride := w * 4
	step := rowsPerChunk(w)
	for y := 0; y < r.Dy(); y += step {
		h := step
		if y+h > r.Dy() {
			h = r.Dy() - y
		}
		chunk := data[y*stride : (y+h)*stride]
		err := xproto.PutImageChecked(c.x, xproto.ImageFormatZPixmap, drawable, gc,
			uint16(w), uint16(h), int16(r.Min.X), int16(r.Min.Y+y), 0, depth, chunk).Check()
		if err != nil {
			return err
		}
	}
	return nil
}

// centered returns the rectangle of size sz centered in an area of size outer
func centered(outer, sz image.Point) image.Rectangle {
	off := image.Pt((outer.X-sz.X)/2, (outer.Y-sz.Y)/2)
	return image.Rectangle{Min: off, Max: off.Add(sz)}
}
