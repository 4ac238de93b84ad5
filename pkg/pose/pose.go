// Package pose defines body keypoints as produced by the inference engine.
package pose

// Keypoint part names. The order matches the 17-point COCO layout that
// pose networks emit.
const (
	Nose          = "nose"
	LeftEye       = "leftEye"
	RightEye      = "rightEye"
	LeftEar       = "leftEar"
	RightEar      = "rightEar"
	LeftShoulder  = "leftShoulder"
	RightShoulder = "rightShoulder"
	LeftElbow     = "leftElbow"
	RightElbow    = "rightElbow"
	LeftWrist     = "leftWrist"
	RightWrist    = "rightWrist"
	LeftHip       = "leftHip"
	RightHip      = "rightHip"
	LeftKnee      = "leftKnee"
	RightKnee     = "rightKnee"
	LeftAnkle     = "leftAnkle"
	RightAnkle    = "rightAnkle"
)

// PartNames lists keypoint names by model output index.
var PartNames = []string{
	Nose, LeftEye, RightEye, LeftEar, RightEar,
	LeftShoulder, RightShoulder, LeftElbow, RightElbow,
	LeftWrist, RightWrist, LeftHip, RightHip,
	LeftKnee, RightKnee, LeftAnkle, RightAnkle,
}

// ConnectedParts are the skeleton edges drawn between keypoints.
var ConnectedParts = [][2]string{
	{LeftHip, LeftShoulder}, {LeftElbow, LeftShoulder},
	{LeftElbow, LeftWrist}, {LeftHip, LeftKnee},
	{LeftKnee, LeftAnkle}, {RightHip, RightShoulder},
	{RightElbow, RightShoulder}, {RightElbow, RightWrist},
	{RightHip, RightKnee}, {RightKnee, RightAnkle},
	{LeftShoulder, RightShoulder}, {LeftHip, RightHip},
}

// Position is a point in frame pixel coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Keypoint is a single detected body landmark.
type Keypoint struct {
	Part     string   `json:"part"`
	Score    float64  `json:"score"`
	Position Position `json:"position"`
}

// Pose is one detected person.
type Pose struct {
	Score     float64    `json:"score"`
	Keypoints []Keypoint `json:"keypoints"`
}

// KeypointSet indexes keypoints by part name.
type KeypointSet map[string]Keypoint

// NewKeypointSet reduces a keypoint sequence into a set. When a part
// name repeats the last one wins.
func NewKeypointSet(keypoints []Keypoint) KeypointSet {
	set := make(KeypointSet, len(keypoints))
	for _, kp := range keypoints {
		set[kp.Part] = Keypoint{
			Part:     kp.Part,
			Score:    kp.Score,
			Position: Position{X: kp.Position.X, Y: kp.Position.Y},
		}
	}
	return set
}

// Get returns the keypoint for a part and whether it was present.
func (s KeypointSet) Get(part string) (Keypoint, bool) {
	kp, ok := s[part]
	return kp, ok
}

// FlipHorizontal mirrors a pose across the vertical axis of a frame that
// is width pixels wide. The input pose is not modified.
func FlipHorizontal(p Pose, width int) Pose {
	flipped := Pose{
		Score:     p.Score,
		Keypoints: make([]Keypoint, len(p.Keypoints)),
	}
	for i, kp := range p.Keypoints {
		kp.Position.X = float64(width) - 1 - kp.Position.X
		flipped.Keypoints[i] = kp
	}
	return flipped
}

// Adjacent returns the pairs of keypoints joined by a skeleton edge where
// both ends score at least minConfidence.
func Adjacent(keypoints []Keypoint, minConfidence float64) [][2]Keypoint {
	set := NewKeypointSet(keypoints)
	var pairs [][2]Keypoint
	for _, edge := range ConnectedParts {
		a, okA := set[edge[0]]
		b, okB := set[edge[1]]
		if !okA || !okB {
			continue
		}
		if a.Score < minConfidence || b.Score < minConfidence {
			continue
		}
		pairs = append(pairs, [2]Keypoint{a, b})
	}
	return pairs
}
