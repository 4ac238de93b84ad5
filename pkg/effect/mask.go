package effect

import (
	"image/color"

	"gocv.io/x/gocv"

	"github.com/teslashibe/posecam/pkg/segment"
)

// Default mask colors.
var (
	White       = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Black       = color.RGBA{A: 255}
	Transparent = color.RGBA{}
)

// ToMask returns a BGRA image with person pixels in fg and the rest in
// bg. With contour set, the person outline is traced in opaque fg.
func ToMask(res *segment.Result, fg, bg color.RGBA, contour bool) (gocv.Mat, error) {
	buf := make([]byte, res.Width*res.Height*4)
	for i, m := range res.Mask {
		c := bg
		if m != 0 {
			c = fg
		}
		putBGRA(buf[i*4:], c)
	}

	mat, err := matFromBytes(res.Height, res.Width, gocv.MatTypeCV8UC4, buf)
	if err != nil {
		return mat, err
	}
	if !contour {
		return mat, nil
	}

	bin, err := binaryMat(res.Mask, res.Width, res.Height, func(v uint8) bool { return v != 0 })
	if err != nil {
		mat.Close()
		return gocv.NewMat(), err
	}
	defer bin.Close()

	contours := gocv.FindContours(bin, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	line := fg
	line.A = 255
	gocv.DrawContours(&mat, contours, -1, line, 1)
	return mat, nil
}

// ToColoredPartMask returns a BGRA image painting each part pixel with
// its scale color. Background pixels stay transparent.
func ToColoredPartMask(res *segment.Result, scale ColorScale) (gocv.Mat, error) {
	if res.Parts == nil {
		return gocv.NewMat(), ErrNoParts
	}

	buf := make([]byte, res.Width*res.Height*4)
	for i, p := range res.Parts {
		if p < 0 || int(p) >= len(scale) {
			continue
		}
		putBGRA(buf[i*4:], scale[p])
	}
	return matFromBytes(res.Height, res.Width, gocv.MatTypeCV8UC4, buf)
}

// binaryMat builds a single-channel 0/255 mask from per-pixel values.
func binaryMat(values []uint8, w, h int, on func(uint8) bool) (gocv.Mat, error) {
	buf := make([]byte, w*h)
	for i, v := range values {
		if on(v) {
			buf[i] = 255
		}
	}
	return matFromBytes(h, w, gocv.MatTypeCV8UC1, buf)
}

// matFromBytes copies buf into a new Mat that owns its memory.
func matFromBytes(rows, cols int, t gocv.MatType, buf []byte) (gocv.Mat, error) {
	m, err := gocv.NewMatFromBytes(rows, cols, t, buf)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer m.Close()
	return m.Clone(), nil
}

func putBGRA(dst []byte, c color.RGBA) {
	dst[0] = c.B
	dst[1] = c.G
	dst[2] = c.R
	dst[3] = c.A
}
