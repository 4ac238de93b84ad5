package segment

import (
	"testing"

	"github.com/teslashibe/posecam/pkg/pose"
)

// poseTensor builds a channel-major YOLOv8-pose output with one column per pose.
func poseTensor(cols []poseColumn) []float32 {
	n := len(cols)
	data := make([]float32, poseOutputRows*n)
	for i, c := range cols {
		data[0*n+i] = c.cx
		data[1*n+i] = c.cy
		data[2*n+i] = c.w
		data[3*n+i] = c.h
		data[4*n+i] = c.score
		for k := 0; k < len(pose.PartNames); k++ {
			row := 5 + 3*k
			data[row*n+i] = c.cx + float32(k)
			data[(row+1)*n+i] = c.cy + float32(k)
			data[(row+2)*n+i] = 0.8
		}
	}
	return data
}

type poseColumn struct {
	cx, cy, w, h, score float32
}

func TestDecodePoses(t *testing.T) {
	data := poseTensor([]poseColumn{
		{cx: 100, cy: 100, w: 40, h: 80, score: 0.9},
		{cx: 300, cy: 200, w: 40, h: 80, score: 0.1},
	})

	cands := decodePoses(data, 2, 2, 0.5, 0.3)
	if len(cands) != 1 {
		t.Fatalf("got %d candidates, want 1", len(cands))
	}

	c := cands[0]
	if c.box.Min.X != 160 || c.box.Min.Y != 30 || c.box.Max.X != 240 || c.box.Max.Y != 70 {
		t.Errorf("box = %v", c.box)
	}
	if len(c.pose.Keypoints) != 17 {
		t.Fatalf("keypoints = %d, want 17", len(c.pose.Keypoints))
	}
	ls := c.pose.Keypoints[5]
	if ls.Part != pose.LeftShoulder {
		t.Errorf("keypoint 5 = %s, want leftShoulder", ls.Part)
	}
	if ls.Position.X != 210 || ls.Position.Y != 52.5 {
		t.Errorf("leftShoulder position = %+v, want (210, 52.5)", ls.Position)
	}
	if c.pose.Score < 0.89 || c.pose.Score > 0.91 {
		t.Errorf("pose score = %v", c.pose.Score)
	}
}

func TestDecodePoses_ShortTensor(t *testing.T) {
	if got := decodePoses(make([]float32, 10), 5, 1, 1, 0); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func shiftedPose(dx float64, score float64) pose.Pose {
	kps := make([]pose.Keypoint, len(pose.PartNames))
	for i, name := range pose.PartNames {
		kps[i] = pose.Keypoint{Part: name, Score: 0.9, Position: pose.Position{X: float64(i*10) + dx, Y: float64(i * 10)}}
	}
	return pose.Pose{Score: score, Keypoints: kps}
}

func TestSuppressByRadius(t *testing.T) {
	poses := []pose.Pose{
		shiftedPose(0, 0.9),
		shiftedPose(5, 0.8),   // duplicate of the first within radius 20
		shiftedPose(200, 0.7), // distinct person
	}

	got := suppressByRadius(poses, 20, 0)
	if len(got) != 2 {
		t.Fatalf("kept %d poses, want 2", len(got))
	}
	if got[1].Score != 0.7 {
		t.Errorf("second kept score = %v, want 0.7", got[1].Score)
	}

	if got := suppressByRadius(poses, 0, 0); len(got) != 3 {
		t.Errorf("radius 0 kept %d, want 3", len(got))
	}
	if got := suppressByRadius(poses, 0, 1); len(got) != 1 {
		t.Errorf("max 1 kept %d, want 1", len(got))
	}
}

func TestThresholdLogits(t *testing.T) {
	logits := []float32{-5, -0.5, 0.5, 0.9, 5}

	tests := []struct {
		threshold float64
		want      []uint8
	}{
		{0.5, []uint8{0, 0, 1, 1, 1}},
		{0.7, []uint8{0, 0, 0, 1, 1}},
		{0, []uint8{1, 1, 1, 1, 1}},
		{1, []uint8{0, 0, 0, 0, 0}},
	}
	for _, tc := range tests {
		got := thresholdLogits(logits, tc.threshold)
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("threshold %v: got %v, want %v", tc.threshold, got, tc.want)
				break
			}
		}
	}
}

func TestArgmaxParts(t *testing.T) {
	// 3 channels over a 1x2 plane
	heat := []float32{
		0.1, 0.9,
		0.8, 0.2,
		0.3, 0.95,
	}
	got := argmaxParts(heat, 3, 1, 2)
	if got[0] != 1 || got[1] != 2 {
		t.Errorf("got %v, want [1 2]", got)
	}

	short := argmaxParts(heat[:2], 3, 1, 2)
	if short[0] != Background || short[1] != Background {
		t.Errorf("short tensor = %v, want background", short)
	}
}

func TestResizeNearest(t *testing.T) {
	src := []int8{
		0, 1,
		2, 3,
	}
	got := resizeNearest(src, 2, 2, 4, 4)
	want := []int8{
		0, 0, 1, 1,
		0, 0, 1, 1,
		2, 2, 3, 3,
		2, 2, 3, 3,
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSplitInstances(t *testing.T) {
	const w, h = 10, 1
	mask := []uint8{1, 1, 1, 0, 0, 0, 0, 1, 1, 1}
	parts := []int8{12, 12, 10, -1, -1, -1, -1, 13, 13, 11}
	maskParts(parts, mask)

	left := pose.Pose{Score: 0.9, Keypoints: []pose.Keypoint{{Part: pose.Nose, Score: 1, Position: pose.Position{X: 1}}}}
	right := pose.Pose{Score: 0.8, Keypoints: []pose.Keypoint{{Part: pose.Nose, Score: 1, Position: pose.Position{X: 8}}}}

	inst := splitInstances(mask, parts, w, h, []pose.Pose{left, right}, 17)
	if len(inst) != 2 {
		t.Fatalf("instances = %d, want 2", len(inst))
	}
	for i := 0; i < 3; i++ {
		if inst[0].Mask[i] != 1 || inst[1].Mask[i] != 0 {
			t.Errorf("pixel %d assigned wrong", i)
		}
	}
	for i := 7; i < 10; i++ {
		if inst[1].Mask[i] != 1 || inst[0].Mask[i] != 0 {
			t.Errorf("pixel %d assigned wrong", i)
		}
	}
	if inst[1].Parts[9] != 11 || inst[0].Parts[9] != Background {
		t.Errorf("parts not split: %v / %v", inst[0].Parts, inst[1].Parts)
	}

	if splitInstances(mask, parts, w, h, nil, 17) != nil {
		t.Error("no poses should yield no instances")
	}
}

func TestResult_InstancesLazy(t *testing.T) {
	const w, h = 10, 1
	mask := []uint8{1, 1, 1, 0, 0, 0, 0, 1, 1, 1}
	left := pose.Pose{Keypoints: []pose.Keypoint{{Part: pose.Nose, Score: 1, Position: pose.Position{X: 1}}}}
	right := pose.Pose{Keypoints: []pose.Keypoint{{Part: pose.Nose, Score: 1, Position: pose.Position{X: 8}}}}

	single := &Result{Width: w, Height: h, Mask: mask, Poses: []pose.Pose{left, right}}
	if got := single.Instances(); got != nil {
		t.Errorf("single-person result split into %d instances", len(got))
	}

	multi := &Result{Width: w, Height: h, Mask: mask, Poses: []pose.Pose{left, right}, multi: true, match: 1}
	if multi.instances != nil {
		t.Fatal("instances computed before use")
	}
	inst := multi.Instances()
	if len(inst) != 2 || inst[0].Mask[0] != 1 || inst[1].Mask[9] != 1 {
		t.Fatalf("Instances() = %+v", inst)
	}
	if inst[0].Parts != nil {
		t.Error("segmentation result should have no per-person parts")
	}
	if again := multi.Instances(); &again[0] != &inst[0] {
		t.Error("split recomputed on second call")
	}
}

func TestAnchor_TopKeypoints(t *testing.T) {
	p := pose.Pose{Keypoints: []pose.Keypoint{
		{Score: 0.9, Position: pose.Position{X: 10, Y: 10}},
		{Score: 0.8, Position: pose.Position{X: 20, Y: 20}},
		{Score: 0.1, Position: pose.Position{X: 1000, Y: 1000}},
	}}

	a := anchor(p, 2)
	if a.X != 15 || a.Y != 15 {
		t.Errorf("anchor = %+v, want (15, 15)", a)
	}
}
