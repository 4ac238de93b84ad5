// Package pipeline runs the real-time frame loop: inference, effect
// rendering, and motion classification for every tick.
package pipeline

import (
	"fmt"

	"github.com/teslashibe/posecam/pkg/segment"
)

// Algorithm selects single or multi-person inference.
type Algorithm string

const (
	AlgorithmMultiPersonInstance Algorithm = "multi-person-instance"
	AlgorithmPerson              Algorithm = "person"
)

// Estimate selects whole-person or per-part segmentation.
type Estimate string

const (
	EstimateSegmentation Estimate = "segmentation"
	EstimatePartMap      Estimate = "partmap"
)

// Effect names.
const (
	EffectNameMask         = "mask"
	EffectNameBokeh        = "bokeh"
	EffectNamePartMap      = "partMap"
	EffectNamePixelation   = "pixelation"
	EffectNameBlurBodyPart = "blurBodyPart"
)

// ModelConfig is the configuration of one loop session. The loop keeps a
// private copy; changing it means stopping the loop and building a new one.
type ModelConfig struct {
	Algorithm      Algorithm `json:"algorithm" yaml:"algorithm"`
	Estimate       Estimate  `json:"estimate" yaml:"estimate"`
	Camera         string    `json:"camera" yaml:"camera"`
	FlipHorizontal bool      `json:"flipHorizontal" yaml:"flipHorizontal"`
	ShowPoses      bool      `json:"showPoses" yaml:"showPoses"`

	Input               InputConfig               `json:"input" yaml:"input"`
	MultiPersonDecoding MultiPersonDecodingConfig `json:"multiPersonDecoding" yaml:"multiPersonDecoding"`
	Segmentation        SegmentationConfig        `json:"segmentation" yaml:"segmentation"`
	PartMap             PartMapConfig             `json:"partMap" yaml:"partMap"`
}

// InputConfig is handed to the inference engine when loading models.
type InputConfig struct {
	Architecture       string  `json:"architecture" yaml:"architecture"`
	OutputStride       int     `json:"outputStride" yaml:"outputStride"`
	InternalResolution string  `json:"internalResolution" yaml:"internalResolution"`
	Multiplier         float64 `json:"multiplier" yaml:"multiplier"`
	QuantBytes         int     `json:"quantBytes" yaml:"quantBytes"`
	ModelDir           string  `json:"modelDir" yaml:"modelDir"`
	ModelURL           string  `json:"modelUrl" yaml:"modelUrl"`
}

// MultiPersonDecodingConfig tunes pose decoding.
type MultiPersonDecodingConfig struct {
	MaxDetections          int     `json:"maxDetections" yaml:"maxDetections"`
	ScoreThreshold         float64 `json:"scoreThreshold" yaml:"scoreThreshold"`
	NMSRadius              float64 `json:"nmsRadius" yaml:"nmsRadius"`
	NumKeypointForMatching int     `json:"numKeypointForMatching" yaml:"numKeypointForMatching"`
	RefineSteps            int     `json:"refineSteps" yaml:"refineSteps"`
}

// SegmentationConfig configures the segmentation effects.
type SegmentationConfig struct {
	SegmentationThreshold float64 `json:"segmentationThreshold" yaml:"segmentationThreshold"`
	Effect                string  `json:"effect" yaml:"effect"`
	MaskBackground        bool    `json:"maskBackground" yaml:"maskBackground"`
	MaskContour           bool    `json:"maskContour" yaml:"maskContour"`
	Opacity               float64 `json:"opacity" yaml:"opacity"`
	BackgroundBlurAmount  int     `json:"backgroundBlurAmount" yaml:"backgroundBlurAmount"`
	MaskBlurAmount        int     `json:"maskBlurAmount" yaml:"maskBlurAmount"`
	EdgeBlurAmount        int     `json:"edgeBlurAmount" yaml:"edgeBlurAmount"`
}

// PartMapConfig configures the part map effects.
type PartMapConfig struct {
	ColorScale             string  `json:"colorScale" yaml:"colorScale"`
	Effect                 string  `json:"effect" yaml:"effect"`
	SegmentationThreshold  float64 `json:"segmentationThreshold" yaml:"segmentationThreshold"`
	Opacity                float64 `json:"opacity" yaml:"opacity"`
	BlurBodyPartAmount     int     `json:"blurBodyPartAmount" yaml:"blurBodyPartAmount"`
	BodyPartEdgeBlurAmount int     `json:"bodyPartEdgeBlurAmount" yaml:"bodyPartEdgeBlurAmount"`
	PixelCellWidth         int     `json:"pixelCellWidth" yaml:"pixelCellWidth"`
	BlurBodyPartIDs        []int   `json:"blurBodyPartIds" yaml:"blurBodyPartIds"`
}

// DefaultModelConfig returns the startup configuration: multi-person part
// maps on a light MobileNet, mirrored like a selfie view.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Algorithm:      AlgorithmMultiPersonInstance,
		Estimate:       EstimatePartMap,
		FlipHorizontal: true,
		ShowPoses:      true,
		Input: InputConfig{
			Architecture:       segment.MobileNetV1,
			OutputStride:       16,
			InternalResolution: "low",
			Multiplier:         0.5,
			QuantBytes:         2,
			ModelDir:           "models",
		},
		MultiPersonDecoding: MultiPersonDecodingConfig{
			MaxDetections:          5,
			ScoreThreshold:         0.3,
			NMSRadius:              20,
			NumKeypointForMatching: 17,
			RefineSteps:            10,
		},
		Segmentation: SegmentationConfig{
			SegmentationThreshold: 0.7,
			Effect:                EffectNameMask,
			MaskBackground:        true,
			MaskContour:           true,
			Opacity:               0.7,
			BackgroundBlurAmount:  3,
			MaskBlurAmount:        0,
			EdgeBlurAmount:        3,
		},
		PartMap: PartMapConfig{
			ColorScale:             "rainbow",
			Effect:                 EffectNamePartMap,
			SegmentationThreshold:  0.5,
			Opacity:                0.9,
			BlurBodyPartAmount:     3,
			BodyPartEdgeBlurAmount: 3,
			PixelCellWidth:         10,
			BlurBodyPartIDs:        []int{segment.LeftFace, segment.RightFace},
		},
	}
}

// Validate checks numeric ranges and model options. Unknown algorithm,
// estimate, effect, and color scale names are not errors here; the loop
// skips them per tick.
func (c *ModelConfig) Validate() []string {
	var errs []string

	errs = append(errs, c.ModelOptions().Validate()...)
	if _, err := segment.ResolutionScale(c.Input.InternalResolution); err != nil {
		errs = append(errs, fmt.Sprintf("input.internalResolution: %v", err))
	}

	d := c.MultiPersonDecoding
	if d.MaxDetections < 1 {
		errs = append(errs, "multiPersonDecoding.maxDetections must be at least 1")
	}
	if d.ScoreThreshold < 0 || d.ScoreThreshold > 1 {
		errs = append(errs, "multiPersonDecoding.scoreThreshold must be between 0 and 1")
	}
	if d.NMSRadius < 0 {
		errs = append(errs, "multiPersonDecoding.nmsRadius must not be negative")
	}
	if d.NumKeypointForMatching < 1 || d.NumKeypointForMatching > 17 {
		errs = append(errs, "multiPersonDecoding.numKeypointForMatching must be between 1 and 17")
	}

	s := c.Segmentation
	if s.SegmentationThreshold < 0 || s.SegmentationThreshold > 1 {
		errs = append(errs, "segmentation.segmentationThreshold must be between 0 and 1")
	}
	if s.Opacity < 0 || s.Opacity > 1 {
		errs = append(errs, "segmentation.opacity must be between 0 and 1")
	}
	if s.BackgroundBlurAmount < 0 || s.MaskBlurAmount < 0 || s.EdgeBlurAmount < 0 {
		errs = append(errs, "segmentation blur amounts must not be negative")
	}

	p := c.PartMap
	if p.SegmentationThreshold < 0 || p.SegmentationThreshold > 1 {
		errs = append(errs, "partMap.segmentationThreshold must be between 0 and 1")
	}
	if p.Opacity < 0 || p.Opacity > 1 {
		errs = append(errs, "partMap.opacity must be between 0 and 1")
	}
	if p.BlurBodyPartAmount < 0 || p.BodyPartEdgeBlurAmount < 0 {
		errs = append(errs, "partMap blur amounts must not be negative")
	}
	if p.PixelCellWidth < 1 {
		errs = append(errs, "partMap.pixelCellWidth must be at least 1")
	}
	for _, id := range p.BlurBodyPartIDs {
		if id < 0 || id >= segment.NumParts {
			errs = append(errs, fmt.Sprintf("partMap.blurBodyPartIds: %d is not a body part", id))
		}
	}

	return errs
}

// ModelOptions returns the options used to load the engine.
func (c ModelConfig) ModelOptions() segment.ModelOptions {
	return segment.ModelOptions{
		Architecture: c.Input.Architecture,
		OutputStride: c.Input.OutputStride,
		Multiplier:   c.Input.Multiplier,
		QuantBytes:   c.Input.QuantBytes,
		ModelDir:     c.Input.ModelDir,
		ModelURL:     c.Input.ModelURL,
	}
}

// InferenceOptions returns per-call options. The segmentation threshold
// comes from the section matching the estimate mode.
func (c ModelConfig) InferenceOptions() segment.InferenceOptions {
	threshold := c.Segmentation.SegmentationThreshold
	if c.Estimate == EstimatePartMap {
		threshold = c.PartMap.SegmentationThreshold
	}
	d := c.MultiPersonDecoding
	return segment.InferenceOptions{
		InternalResolution:     c.Input.InternalResolution,
		SegmentationThreshold:  threshold,
		MaxDetections:          d.MaxDetections,
		ScoreThreshold:         d.ScoreThreshold,
		NMSRadius:              d.NMSRadius,
		NumKeypointForMatching: d.NumKeypointForMatching,
		RefineSteps:            d.RefineSteps,
	}
}

// Clone returns a deep copy.
func (c ModelConfig) Clone() ModelConfig {
	c.PartMap.BlurBodyPartIDs = append([]int(nil), c.PartMap.BlurBodyPartIDs...)
	return c
}
