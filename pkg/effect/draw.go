package effect

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"github.com/teslashibe/posecam/pkg/pose"
)

// Overlay style.
var (
	Aqua       = color.RGBA{R: 0, G: 255, B: 255, A: 255}
	LabelColor = color.RGBA{R: 255, G: 255, B: 0, A: 255}
)

const (
	keypointRadius = 3
	skeletonWidth  = 2
)

// DrawKeypoints marks keypoints scoring at least minConfidence.
func DrawKeypoints(dst *gocv.Mat, keypoints []pose.Keypoint, minConfidence float64, c color.RGBA) {
	for _, kp := range keypoints {
		if kp.Score < minConfidence {
			continue
		}
		gocv.Circle(dst, point(kp.Position), keypointRadius, c, -1)
	}
}

// DrawSkeleton joins adjacent keypoints scoring at least minConfidence.
func DrawSkeleton(dst *gocv.Mat, keypoints []pose.Keypoint, minConfidence float64, c color.RGBA) {
	for _, pair := range pose.Adjacent(keypoints, minConfidence) {
		gocv.Line(dst, point(pair[0].Position), point(pair[1].Position), c, skeletonWidth)
	}
}

// DrawLabel writes a line of text in the top-left corner.
func DrawLabel(dst *gocv.Mat, text string) {
	gocv.PutText(dst, text, image.Pt(10, 20), gocv.FontHersheySimplex, 0.5, LabelColor, 1)
}

func point(p pose.Position) image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}
