// Package effect paints segmentation results over video frames.
//
// Renderers take a BGR frame and the segment.Result computed from it and
// write the composite into dst. Frames and results share the same
// orientation; mirroring is applied afterwards with Flip.
package effect

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/teslashibe/posecam/pkg/segment"
)

// Sentinel errors for rendering.
var (
	ErrUnsupportedFrame = errors.New("effect: frame must be 8-bit BGR")
	ErrSizeMismatch     = errors.New("effect: result does not match frame size")
	ErrNoParts          = errors.New("effect: result has no part map")
)

// Renderer paints one effect.
type Renderer interface {
	Render(dst *gocv.Mat, frame gocv.Mat, res *segment.Result) error
}

// Mask paints person and background pixels in two colors over the frame.
type Mask struct {
	Foreground color.RGBA
	Background color.RGBA
	Contour    bool
	Opacity    float64
	BlurAmount int
}

// Render implements Renderer.
func (m Mask) Render(dst *gocv.Mat, frame gocv.Mat, res *segment.Result) error {
	if err := check(frame, res); err != nil {
		return err
	}
	overlay, err := ToMask(res, m.Foreground, m.Background, m.Contour)
	if err != nil {
		return err
	}
	defer overlay.Close()
	return drawMask(dst, frame, &overlay, m.Opacity, m.BlurAmount)
}

// Bokeh blurs the background and keeps people sharp.
type Bokeh struct {
	BackgroundBlurAmount int
	EdgeBlurAmount       int
}

// Render implements Renderer.
func (b Bokeh) Render(dst *gocv.Mat, frame gocv.Mat, res *segment.Result) error {
	if err := check(frame, res); err != nil {
		return err
	}
	keep, err := binaryMat(res.Mask, res.Width, res.Height, func(v uint8) bool { return v != 0 })
	if err != nil {
		return err
	}
	defer keep.Close()
	return blurOutside(dst, frame, &keep, b.BackgroundBlurAmount, b.EdgeBlurAmount)
}

// PartMap recolors each body part.
type PartMap struct {
	Colors  ColorScale
	Opacity float64
}

// Render implements Renderer.
func (p PartMap) Render(dst *gocv.Mat, frame gocv.Mat, res *segment.Result) error {
	if err := check(frame, res); err != nil {
		return err
	}
	overlay, err := ToColoredPartMask(res, p.Colors)
	if err != nil {
		return err
	}
	defer overlay.Close()
	return drawMask(dst, frame, &overlay, p.Opacity, 0)
}

// Pixelation recolors body parts as coarse blocks of CellWidth pixels.
type Pixelation struct {
	Colors    ColorScale
	Opacity   float64
	CellWidth int
}

// Render implements Renderer.
func (p Pixelation) Render(dst *gocv.Mat, frame gocv.Mat, res *segment.Result) error {
	if err := check(frame, res); err != nil {
		return err
	}
	overlay, err := ToColoredPartMask(res, p.Colors)
	if err != nil {
		return err
	}
	defer overlay.Close()

	pixelate(&overlay, p.CellWidth)
	return drawMask(dst, frame, &overlay, p.Opacity, 0)
}

// BlurBodyPart blurs only the listed body parts.
type BlurBodyPart struct {
	PartIDs        []int
	BlurAmount     int
	EdgeBlurAmount int
}

// Render implements Renderer.
func (b BlurBodyPart) Render(dst *gocv.Mat, frame gocv.Mat, res *segment.Result) error {
	if err := check(frame, res); err != nil {
		return err
	}
	if res.Parts == nil {
		return ErrNoParts
	}

	selected := make(map[int8]bool, len(b.PartIDs))
	for _, id := range b.PartIDs {
		selected[int8(id)] = true
	}
	parts := make([]uint8, len(res.Parts))
	for i, p := range res.Parts {
		if selected[p] {
			parts[i] = 1
		}
	}

	keep, err := binaryMat(parts, res.Width, res.Height, func(v uint8) bool { return v == 0 })
	if err != nil {
		return err
	}
	defer keep.Close()
	return blurOutside(dst, frame, &keep, b.BlurAmount, b.EdgeBlurAmount)
}

// Flip mirrors m around its vertical axis in place.
func Flip(m *gocv.Mat) {
	gocv.Flip(*m, m, 1)
}

func check(frame gocv.Mat, res *segment.Result) error {
	if frame.Empty() || frame.Type() != gocv.MatTypeCV8UC3 {
		return ErrUnsupportedFrame
	}
	if res == nil || res.Width != frame.Cols() || res.Height != frame.Rows() || len(res.Mask) != res.Width*res.Height {
		return fmt.Errorf("%w: frame %dx%d", ErrSizeMismatch, frame.Cols(), frame.Rows())
	}
	if res.Parts != nil && len(res.Parts) != len(res.Mask) {
		return fmt.Errorf("%w: part map has %d entries", ErrSizeMismatch, len(res.Parts))
	}
	return nil
}

// drawMask composites a BGRA overlay over frame at opacity. A positive
// blurAmount softens the overlay first.
func drawMask(dst *gocv.Mat, frame gocv.Mat, overlay *gocv.Mat, opacity float64, blurAmount int) error {
	if blurAmount > 0 {
		gocv.GaussianBlur(*overlay, overlay, image.Pt(0, 0), float64(blurAmount), float64(blurAmount), gocv.BorderDefault)
	}

	frame.CopyTo(dst)
	d, err := dst.DataPtrUint8()
	if err != nil {
		return err
	}
	o, err := overlay.DataPtrUint8()
	if err != nil {
		return err
	}

	opacity = clamp01(opacity)
	for i, j := 0, 0; i+2 < len(d) && j+3 < len(o); i, j = i+3, j+4 {
		a := float64(o[j+3]) / 255 * opacity
		if a == 0 {
			continue
		}
		d[i] = mix(d[i], o[j], a)
		d[i+1] = mix(d[i+1], o[j+1], a)
		d[i+2] = mix(d[i+2], o[j+2], a)
	}
	return nil
}

// blurOutside keeps frame pixels where keep is set and shows a blurred
// copy elsewhere. edgeBlur feathers the boundary.
func blurOutside(dst *gocv.Mat, frame gocv.Mat, keep *gocv.Mat, blurAmount, edgeBlur int) error {
	blurred := gocv.NewMat()
	defer blurred.Close()
	if blurAmount > 0 {
		gocv.GaussianBlur(frame, &blurred, image.Pt(0, 0), float64(blurAmount), float64(blurAmount), gocv.BorderDefault)
	} else {
		frame.CopyTo(&blurred)
	}

	if edgeBlur > 0 {
		gocv.GaussianBlur(*keep, keep, image.Pt(0, 0), float64(edgeBlur), float64(edgeBlur), gocv.BorderDefault)
	}

	frame.CopyTo(dst)
	d, err := dst.DataPtrUint8()
	if err != nil {
		return err
	}
	b, err := blurred.DataPtrUint8()
	if err != nil {
		return err
	}
	k, err := keep.DataPtrUint8()
	if err != nil {
		return err
	}

	for p, v := range k {
		if v == 255 {
			continue
		}
		a := 1 - float64(v)/255
		i := p * 3
		d[i] = mix(d[i], b[i], a)
		d[i+1] = mix(d[i+1], b[i+1], a)
		d[i+2] = mix(d[i+2], b[i+2], a)
	}
	return nil
}

// pixelate turns m into blocks of cell pixels in place.
func pixelate(m *gocv.Mat, cell int) {
	if cell <= 1 {
		return
	}
	w, h := m.Cols(), m.Rows()
	small := gocv.NewMat()
	defer small.Close()

	sw := (w + cell - 1) / cell
	sh := (h + cell - 1) / cell
	gocv.Resize(*m, &small, image.Pt(sw, sh), 0, 0, gocv.InterpolationNearestNeighbor)
	gocv.Resize(small, m, image.Pt(w, h), 0, 0, gocv.InterpolationNearestNeighbor)
}

func mix(base, over uint8, a float64) uint8 {
	return uint8(float64(base)*(1-a) + float64(over)*a + 0.5)
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
