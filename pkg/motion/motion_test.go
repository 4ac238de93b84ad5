package motion

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/teslashibe/posecam/pkg/pose"
)

func kp(part string, x, y float64) pose.Keypoint {
	return pose.Keypoint{Part: part, Score: 0.9, Position: pose.Position{X: x, Y: y}}
}

func scenario() []pose.Keypoint {
	return []pose.Keypoint{
		kp(pose.Nose, 120, 20),
		kp(pose.LeftShoulder, 100, 50),
		kp(pose.RightShoulder, 140, 50),
		kp(pose.LeftWrist, 100, 90),
		kp(pose.RightWrist, 140, 30),
	}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestClassify_Scenario(t *testing.T) {
	score, err := Classify(scenario())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	want := Score{Forward: 1.0, Backward: 0.5, Left: 0, Right: 0}
	if score != want {
		t.Errorf("score = %+v, want %+v", score, want)
	}
}

func TestClassify_TranslationInvariant(t *testing.T) {
	base, err := Classify(scenario())
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	offsets := []pose.Position{{X: 13, Y: -7}, {X: -500, Y: 250}, {X: 0.5, Y: 0.25}}
	for _, off := range offsets {
		moved := scenario()
		for i := range moved {
			moved[i].Position.X += off.X
			moved[i].Position.Y += off.Y
		}
		got, err := Classify(moved)
		if err != nil {
			t.Fatalf("Classify(offset %+v): %v", off, err)
		}
		if !approx(got.Forward, base.Forward) || !approx(got.Backward, base.Backward) ||
			!approx(got.Left, base.Left) || !approx(got.Right, base.Right) {
			t.Errorf("offset %+v: got %+v, want %+v", off, got, base)
		}
	}
}

func TestClassify_ScaleInvariant(t *testing.T) {
	kps := []pose.Keypoint{
		kp(pose.LeftShoulder, 100, 50),
		kp(pose.RightShoulder, 160, 55),
		kp(pose.LeftWrist, 70, 120),
		kp(pose.RightWrist, 200, 10),
	}
	base, err := Classify(kps)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	for _, k := range []float64{0.25, 2, 3.5, 10} {
		scaled := make([]pose.Keypoint, len(kps))
		for i, p := range kps {
			p.Position.X *= k
			p.Position.Y *= k
			scaled[i] = p
		}
		got, err := Classify(scaled)
		if err != nil {
			t.Fatalf("Classify(k=%v): %v", k, err)
		}
		if !approx(got.Forward, base.Forward) || !approx(got.Backward, base.Backward) ||
			!approx(got.Left, base.Left) || !approx(got.Right, base.Right) {
			t.Errorf("k=%v: got %+v, want %+v", k, got, base)
		}
	}
}

func TestClassify_Deterministic(t *testing.T) {
	a, _ := Classify(scenario())
	b, _ := Classify(scenario())
	if a != b {
		t.Errorf("two runs differ: %+v vs %+v", a, b)
	}
}

func TestClassify_ZeroBasis(t *testing.T) {
	kps := []pose.Keypoint{
		kp(pose.LeftShoulder, 100, 50),
		kp(pose.RightShoulder, 100, 60),
		kp(pose.LeftWrist, 100, 90),
		kp(pose.RightWrist, 140, 30),
	}

	_, err := Classify(kps)
	if !errors.Is(err, ErrMalformedPose) {
		t.Errorf("err = %v, want ErrMalformedPose", err)
	}
}

func TestClassify_MissingKeypoint(t *testing.T) {
	required := []string{pose.LeftShoulder, pose.RightShoulder, pose.LeftWrist, pose.RightWrist}

	for _, missing := range required {
		t.Run(missing, func(t *testing.T) {
			var kps []pose.Keypoint
			for _, k := range scenario() {
				if k.Part != missing {
					kps = append(kps, k)
				}
			}
			_, err := Classify(kps)
			if !errors.Is(err, ErrMalformedPose) {
				t.Fatalf("err = %v, want ErrMalformedPose", err)
			}
			if !strings.Contains(err.Error(), missing) {
				t.Errorf("error %q does not name %s", err, missing)
			}
		})
	}
}

func TestClassify_Empty(t *testing.T) {
	if _, err := Classify(nil); !errors.Is(err, ErrMalformedPose) {
		t.Errorf("err = %v, want ErrMalformedPose", err)
	}
}

func TestClassify_RepeatedPartLastWins(t *testing.T) {
	kps := append(scenario(), kp(pose.LeftWrist, 100, 130))

	score, err := Classify(kps)
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if score.Forward != 2.0 {
		t.Errorf("forward = %v, want 2.0 from the last leftWrist", score.Forward)
	}
}

func TestScore_String(t *testing.T) {
	s := Score{Forward: 1, Backward: 0.5}
	got := s.String()
	want := "forward=1.00 backward=0.50 left=0.00 right=0.00"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestScore_Dominant(t *testing.T) {
	tests := []struct {
		s    Score
		want string
	}{
		{Score{Forward: 1, Backward: 0.5}, "forward"},
		{Score{Backward: 2}, "backward"},
		{Score{Left: 0.3, Right: 0.4}, "right"},
		{Score{}, "forward"},
	}
	for _, tc := range tests {
		if got := tc.s.Dominant(); got != tc.want {
			t.Errorf("%+v.Dominant() = %s, want %s", tc.s, got, tc.want)
		}
	}
}
