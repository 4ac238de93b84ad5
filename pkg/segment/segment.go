// Package segment runs person segmentation and pose estimation on video
// frames. Engines return per-pixel person and body-part masks together
// with the detected poses.
package segment

import (
	"context"

	"gocv.io/x/gocv"

	"github.com/teslashibe/posecam/pkg/pose"
)

// Body part ids.
const (
	LeftFace = iota
	RightFace
	LeftUpperArmFront
	LeftUpperArmBack
	RightUpperArmFront
	RightUpperArmBack
	LeftLowerArmFront
	LeftLowerArmBack
	RightLowerArmFront
	RightLowerArmBack
	LeftHand
	RightHand
	TorsoFront
	TorsoBack
	LeftUpperLegFront
	LeftUpperLegBack
	RightUpperLegFront
	RightUpperLegBack
	LeftLowerLegFront
	LeftLowerLegBack
	RightLowerLegFront
	RightLowerLegBack
	LeftFeet
	RightFeet

	NumParts
)

// Background marks a pixel outside any body part.
const Background int8 = -1

// PartNames lists body part names by id.
var PartNames = [NumParts]string{
	"left_face", "right_face",
	"left_upper_arm_front", "left_upper_arm_back",
	"right_upper_arm_front", "right_upper_arm_back",
	"left_lower_arm_front", "left_lower_arm_back",
	"right_lower_arm_front", "right_lower_arm_back",
	"left_hand", "right_hand",
	"torso_front", "torso_back",
	"left_upper_leg_front", "left_upper_leg_back",
	"right_upper_leg_front", "right_upper_leg_back",
	"left_lower_leg_front", "left_lower_leg_back",
	"right_lower_leg_front", "right_lower_leg_back",
	"left_feet", "right_feet",
}

// Result is the output of one inference call. Masks are row-major with
// Width*Height entries.
type Result struct {
	Width  int
	Height int

	// Mask is 1 for person pixels and 0 for background.
	Mask []uint8

	// Parts holds a body part id per pixel, or Background. Nil for
	// person segmentation.
	Parts []int8

	Poses []pose.Pose

	// multi-person calls record how many keypoints anchor an instance;
	// the split itself runs on the first Instances call.
	multi     bool
	match     int
	instances []Instance
}

// Instances splits the masks per person by assigning each person pixel to
// the nearest pose. Single-person results have none. The split is computed
// once, on first use; Instances must not be called concurrently.
func (r *Result) Instances() []Instance {
	if !r.multi || r.instances != nil {
		return r.instances
	}
	r.instances = splitInstances(r.Mask, r.Parts, r.Width, r.Height, r.Poses, r.match)
	return r.instances
}

// Instance is the segmentation of a single person.
type Instance struct {
	Mask  []uint8
	Parts []int8
	Pose  pose.Pose
}

// Foreground reports whether (x, y) belongs to a person.
func (r *Result) Foreground(x, y int) bool {
	if x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return false
	}
	return r.Mask[y*r.Width+x] != 0
}

// PartAt returns the body part id at (x, y), or Background.
func (r *Result) PartAt(x, y int) int8 {
	if r.Parts == nil || x < 0 || y < 0 || x >= r.Width || y >= r.Height {
		return Background
	}
	return r.Parts[y*r.Width+x]
}

// Engine runs inference on BGR frames.
type Engine interface {
	// SegmentPerson returns a single mask covering every person.
	SegmentPerson(ctx context.Context, frame gocv.Mat, opts InferenceOptions) (*Result, error)

	// SegmentMultiPerson returns one mask per person as well as the union.
	SegmentMultiPerson(ctx context.Context, frame gocv.Mat, opts InferenceOptions) (*Result, error)

	// SegmentPersonParts returns a body part map covering every person.
	SegmentPersonParts(ctx context.Context, frame gocv.Mat, opts InferenceOptions) (*Result, error)

	// SegmentMultiPersonParts returns one part map per person as well as the union.
	SegmentMultiPersonParts(ctx context.Context, frame gocv.Mat, opts InferenceOptions) (*Result, error)

	Close() error
}

// Loader loads an Engine. Loading may download and compile models and
// can take seconds.
type Loader interface {
	Load(ctx context.Context, opts ModelOptions) (Engine, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, opts ModelOptions) (Engine, error)

// Load calls f.
func (f LoaderFunc) Load(ctx context.Context, opts ModelOptions) (Engine, error) {
	return f(ctx, opts)
}
