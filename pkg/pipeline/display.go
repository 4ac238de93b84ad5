package pipeline

import (
	"errors"

	"gocv.io/x/gocv"
)

// Display shows a rendered frame. Implementations must copy frame if they
// keep it; the loop reuses the buffer on the next tick.
type Display interface {
	Show(frame gocv.Mat) error
}

// DisplayFunc adapts a function to Display.
type DisplayFunc func(frame gocv.Mat) error

// Show implements Display.
func (f DisplayFunc) Show(frame gocv.Mat) error {
	return f(frame)
}

// MultiDisplay shows every frame on each display in order.
type MultiDisplay []Display

// Show implements Display. All displays see the frame even if one fails.
func (m MultiDisplay) Show(frame gocv.Mat) error {
	var errs []error
	for _, d := range m {
		if d == nil {
			continue
		}
		if err := d.Show(frame); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WindowDisplay shows frames in a native OpenCV window. Some platforms
// require the window to be driven from the main thread.
type WindowDisplay struct {
	window *gocv.Window
}

// NewWindowDisplay opens a window titled title.
func NewWindowDisplay(title string) *WindowDisplay {
	return &WindowDisplay{window: gocv.NewWindow(title)}
}

// Show implements Display.
func (w *WindowDisplay) Show(frame gocv.Mat) error {
	w.window.IMShow(frame)
	w.window.WaitKey(1)
	return nil
}

// Close destroys the window.
func (w *WindowDisplay) Close() error {
	return w.window.Close()
}
