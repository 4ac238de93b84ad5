// Package motion classifies a pose into directional gesture scores.
//
// Each score is the same-side wrist displacement from its shoulder along
// one axis, divided by the shoulder width. The four scores are independent
// ratios, not probabilities: a pose can score high on several at once.
package motion

import (
	"errors"
	"fmt"
	"math"

	"github.com/teslashibe/posecam/pkg/pose"
)

// ErrMalformedPose is returned when a pose lacks the keypoints needed for
// classification or its shoulders coincide horizontally.
var ErrMalformedPose = errors.New("motion: malformed pose")

// Score holds the four directional confidences for one pose.
type Score struct {
	Forward  float64 `json:"forward"`
	Backward float64 `json:"backward"`
	Left     float64 `json:"left"`
	Right    float64 `json:"right"`
}

// String formats the four named scores.
func (s Score) String() string {
	return fmt.Sprintf("forward=%.2f backward=%.2f left=%.2f right=%.2f",
		s.Forward, s.Backward, s.Left, s.Right)
}

// Dominant returns the name of the highest score. Ties resolve in the
// order forward, backward, left, right.
func (s Score) Dominant() string {
	name, best := "forward", s.Forward
	if s.Backward > best {
		name, best = "backward", s.Backward
	}
	if s.Left > best {
		name, best = "left", s.Left
	}
	if s.Right > best {
		name = "right"
	}
	return name
}

// Classify computes the motion score for a sequence of raw keypoints.
func Classify(keypoints []pose.Keypoint) (Score, error) {
	set := pose.NewKeypointSet(keypoints)

	ls, err := require(set, pose.LeftShoulder)
	if err != nil {
		return Score{}, err
	}
	rs, err := require(set, pose.RightShoulder)
	if err != nil {
		return Score{}, err
	}
	lw, err := require(set, pose.LeftWrist)
	if err != nil {
		return Score{}, err
	}
	rw, err := require(set, pose.RightWrist)
	if err != nil {
		return Score{}, err
	}

	basis := math.Abs(rs.X - ls.X)
	if basis == 0 {
		return Score{}, fmt.Errorf("%w: zero shoulder width", ErrMalformedPose)
	}

	return Score{
		Forward:  math.Abs(lw.Y-ls.Y) / basis,
		Backward: math.Abs(rw.Y-rs.Y) / basis,
		Left:     math.Abs(lw.X-ls.X) / basis,
		Right:    math.Abs(rw.X-rs.X) / basis,
	}, nil
}

// ClassifyPose is Classify over a pose's keypoints.
func ClassifyPose(p pose.Pose) (Score, error) {
	return Classify(p.Keypoints)
}

func require(set pose.KeypointSet, part string) (pose.Position, error) {
	kp, ok := set.Get(part)
	if !ok {
		return pose.Position{}, fmt.Errorf("%w: missing %s", ErrMalformedPose, part)
	}
	return kp.Position, nil
}
