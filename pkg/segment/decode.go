package segment

import (
	"image"
	"math"
	"sort"

	"gocv.io/x/gocv"

	"github.com/teslashibe/posecam/pkg/pose"
)

// poseOutputRows is the YOLOv8-pose row count: 4 box values, 1 score and
// x, y, visibility for each of 17 keypoints.
const poseOutputRows = 4 + 1 + 17*3

type candidate struct {
	box   image.Rectangle
	score float32
	pose  pose.Pose
}

// decodePoses parses a channel-major [poseOutputRows, n] tensor. sx and sy
// scale network input pixels to frame pixels.
func decodePoses(data []float32, n int, sx, sy float64, minScore float32) []candidate {
	if len(data) < poseOutputRows*n {
		return nil
	}

	var out []candidate
	for i := 0; i < n; i++ {
		score := data[4*n+i]
		if score < minScore {
			continue
		}

		cx := float64(data[0*n+i])
		cy := float64(data[1*n+i])
		w := float64(data[2*n+i])
		h := float64(data[3*n+i])

		x1 := int((cx - w/2) * sx)
		y1 := int((cy - h/2) * sy)
		x2 := int((cx + w/2) * sx)
		y2 := int((cy + h/2) * sy)

		kps := make([]pose.Keypoint, len(pose.PartNames))
		for k, name := range pose.PartNames {
			row := 5 + 3*k
			kps[k] = pose.Keypoint{
				Part:  name,
				Score: float64(data[(row+2)*n+i]),
				Position: pose.Position{
					X: float64(data[row*n+i]) * sx,
					Y: float64(data[(row+1)*n+i]) * sy,
				},
			}
		}

		out = append(out, candidate{
			box:   image.Rect(x1, y1, x2, y2),
			score: score,
			pose:  pose.Pose{Score: float64(score), Keypoints: kps},
		})
	}
	return out
}

// selectPoses runs box NMS, then drops poses duplicating a stronger one
// by keypoint distance, keeping at most opts.MaxDetections.
func selectPoses(cands []candidate, opts InferenceOptions, iou float32) []pose.Pose {
	if len(cands) == 0 {
		return nil
	}

	boxes := make([]image.Rectangle, len(cands))
	scores := make([]float32, len(cands))
	for i, c := range cands {
		boxes[i] = c.box
		scores[i] = c.score
	}

	indices := gocv.NMSBoxes(boxes, scores, float32(opts.ScoreThreshold), iou)
	sort.SliceStable(indices, func(a, b int) bool {
		return scores[indices[a]] > scores[indices[b]]
	})

	poses := make([]pose.Pose, 0, len(indices))
	for _, idx := range indices {
		poses = append(poses, cands[idx].pose)
	}
	return suppressByRadius(poses, opts.NMSRadius, opts.MaxDetections)
}

// suppressByRadius walks poses in descending score order and drops a pose
// when at least half of its keypoints lie within radius of the matching
// keypoint of a pose already kept.
func suppressByRadius(poses []pose.Pose, radius float64, max int) []pose.Pose {
	r2 := radius * radius

	var kept []pose.Pose
	for _, p := range poses {
		if max > 0 && len(kept) >= max {
			break
		}
		if radius > 0 && len(p.Keypoints) > 0 {
			near := 0
			for i, kp := range p.Keypoints {
				if closeToKept(kept, i, kp.Position, r2) {
					near++
				}
			}
			if 2*near >= len(p.Keypoints) {
				continue
			}
		}
		kept = append(kept, p)
	}
	return kept
}

func closeToKept(kept []pose.Pose, i int, pos pose.Position, r2 float64) bool {
	for _, k := range kept {
		if i >= len(k.Keypoints) {
			continue
		}
		dx := k.Keypoints[i].Position.X - pos.X
		dy := k.Keypoints[i].Position.Y - pos.Y
		if dx*dx+dy*dy <= r2 {
			return true
		}
	}
	return false
}

// thresholdLogits marks pixels whose sigmoid probability exceeds threshold.
func thresholdLogits(logits []float32, threshold float64) []uint8 {
	mask := make([]uint8, len(logits))
	switch {
	case threshold <= 0:
		for i := range mask {
			mask[i] = 1
		}
		return mask
	case threshold >= 1:
		return mask
	}

	cut := float32(math.Log(threshold / (1 - threshold)))
	for i, v := range logits {
		if v > cut {
			mask[i] = 1
		}
	}
	return mask
}

// argmaxParts picks the strongest part channel for each pixel of a
// channel-major [channels, h*w] heatmap tensor.
func argmaxParts(heat []float32, channels, h, w int) []int8 {
	plane := h * w
	parts := make([]int8, plane)
	if len(heat) < channels*plane {
		for i := range parts {
			parts[i] = Background
		}
		return parts
	}

	for i := 0; i < plane; i++ {
		best, bestVal := 0, heat[i]
		for c := 1; c < channels; c++ {
			if v := heat[c*plane+i]; v > bestVal {
				best, bestVal = c, v
			}
		}
		parts[i] = int8(best)
	}
	return parts
}

// resizeNearest scales a label map with nearest-neighbour sampling.
func resizeNearest(src []int8, sw, sh, dw, dh int) []int8 {
	dst := make([]int8, dw*dh)
	for y := 0; y < dh; y++ {
		sy := y * sh / dh
		for x := 0; x < dw; x++ {
			sx := x * sw / dw
			dst[y*dw+x] = src[sy*sw+sx]
		}
	}
	return dst
}

// maskParts clears part labels outside the person mask.
func maskParts(parts []int8, mask []uint8) {
	for i := range parts {
		if mask[i] == 0 {
			parts[i] = Background
		}
	}
}

// anchor is the centroid of a pose's n strongest keypoints.
func anchor(p pose.Pose, n int) pose.Position {
	kps := append([]pose.Keypoint(nil), p.Keypoints...)
	sort.SliceStable(kps, func(a, b int) bool { return kps[a].Score > kps[b].Score })
	if n <= 0 || n > len(kps) {
		n = len(kps)
	}
	if n == 0 {
		return pose.Position{}
	}

	var c pose.Position
	for _, kp := range kps[:n] {
		c.X += kp.Position.X
		c.Y += kp.Position.Y
	}
	c.X /= float64(n)
	c.Y /= float64(n)
	return c
}

// splitInstances assigns each person pixel to the pose with the nearest anchor.
func splitInstances(mask []uint8, parts []int8, w, h int, poses []pose.Pose, nMatch int) []Instance {
	if len(poses) == 0 {
		return nil
	}

	anchors := make([]pose.Position, len(poses))
	inst := make([]Instance, len(poses))
	for i, p := range poses {
		anchors[i] = anchor(p, nMatch)
		inst[i].Pose = p
		inst[i].Mask = make([]uint8, w*h)
		if parts != nil {
			inst[i].Parts = make([]int8, w*h)
			for j := range inst[i].Parts {
				inst[i].Parts[j] = Background
			}
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if mask[i] == 0 {
				continue
			}
			best, bestD := 0, math.Inf(1)
			for k, a := range anchors {
				dx, dy := a.X-float64(x), a.Y-float64(y)
				if d := dx*dx + dy*dy; d < bestD {
					best, bestD = k, d
				}
			}
			inst[best].Mask[i] = 1
			if parts != nil {
				inst[best].Parts[i] = parts[i]
			}
		}
	}
	return inst
}
