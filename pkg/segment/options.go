package segment

import (
	"fmt"
	"strconv"
	"strings"
)

// Architectures.
const (
	MobileNetV1 = "MobileNetV1"
	ResNet50    = "ResNet50"
)

// ModelOptions selects and locates the models an engine loads.
type ModelOptions struct {
	Architecture string
	OutputStride int
	Multiplier   float64
	QuantBytes   int

	// ModelDir is searched for model files and receives downloads.
	ModelDir string

	// ModelURL is a base URL that missing model files are fetched from.
	ModelURL string

	// PoseModel and SegmentModel override the derived file names. Either
	// may be an absolute path.
	PoseModel    string
	SegmentModel string
}

// DefaultModelOptions returns a light MobileNet configuration.
func DefaultModelOptions() ModelOptions {
	return ModelOptions{
		Architecture: MobileNetV1,
		OutputStride: 16,
		Multiplier:   0.5,
		QuantBytes:   2,
		ModelDir:     "models",
	}
}

// SegmentModelName returns the segmentation model file for the options,
// e.g. bodypix_mobilenetv1_050_s16_q2.onnx.
func (o ModelOptions) SegmentModelName() string {
	if o.SegmentModel != "" {
		return o.SegmentModel
	}
	mult := 100
	if o.Architecture != ResNet50 {
		mult = int(o.Multiplier*100 + 0.5)
	}
	return fmt.Sprintf("bodypix_%s_%03d_s%d_q%d.onnx",
		strings.ToLower(o.Architecture), mult, o.OutputStride, o.QuantBytes)
}

// PoseModelName returns the pose model file.
func (o ModelOptions) PoseModelName() string {
	if o.PoseModel != "" {
		return o.PoseModel
	}
	return "yolov8n-pose.onnx"
}

// Validate checks the architecture and its parameters.
func (o ModelOptions) Validate() []string {
	var errs []string

	switch o.Architecture {
	case MobileNetV1:
		if o.OutputStride != 8 && o.OutputStride != 16 {
			errs = append(errs, "outputStride must be 8 or 16 for MobileNetV1")
		}
		switch o.Multiplier {
		case 0.5, 0.75, 1.0:
		default:
			errs = append(errs, "multiplier must be 0.5, 0.75 or 1.0")
		}
	case ResNet50:
		if o.OutputStride != 16 && o.OutputStride != 32 {
			errs = append(errs, "outputStride must be 16 or 32 for ResNet50")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown architecture %q", o.Architecture))
	}

	switch o.QuantBytes {
	case 1, 2, 4:
	default:
		errs = append(errs, "quantBytes must be 1, 2 or 4")
	}

	return errs
}

// InferenceOptions tunes one inference call.
type InferenceOptions struct {
	// InternalResolution scales the frame before segmentation: low,
	// medium, high, full, or a number in (0, 1].
	InternalResolution string

	// SegmentationThreshold is the minimum person probability per pixel.
	SegmentationThreshold float64

	MaxDetections  int
	ScoreThreshold float64

	// NMSRadius is the pixel distance below which a keypoint is considered
	// a duplicate of an earlier pose's keypoint.
	NMSRadius float64

	// NumKeypointForMatching is how many of a pose's strongest keypoints
	// anchor it when splitting masks per person.
	NumKeypointForMatching int

	// RefineSteps is accepted for compatibility; the DNN engine decodes
	// poses in one pass and ignores it.
	RefineSteps int
}

// DefaultInferenceOptions mirrors the multi-person decoding defaults.
func DefaultInferenceOptions() InferenceOptions {
	return InferenceOptions{
		InternalResolution:     "low",
		SegmentationThreshold:  0.7,
		MaxDetections:          5,
		ScoreThreshold:         0.3,
		NMSRadius:              20,
		NumKeypointForMatching: 17,
		RefineSteps:            10,
	}
}

var resolutionPresets = map[string]float64{
	"low":    0.25,
	"medium": 0.5,
	"high":   0.75,
	"full":   1.0,
}

// ResolutionScale converts an internal resolution name or number to a scale factor.
func ResolutionScale(s string) (float64, error) {
	if v, ok := resolutionPresets[strings.ToLower(s)]; ok {
		return v, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 || v > 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidResolution, s)
	}
	return v, nil
}

// ValidInputSize rounds n down to the nearest size the network accepts
// for the given output stride: a multiple of the stride plus one.
func ValidInputSize(n, stride int) int {
	if stride <= 0 {
		return n
	}
	if n%stride == 1 {
		return n
	}
	v := (n/stride)*stride + 1
	if v < stride+1 {
		v = stride + 1
	}
	return v
}
