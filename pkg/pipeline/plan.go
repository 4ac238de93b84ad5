package pipeline

import (
	"context"

	"gocv.io/x/gocv"

	"github.com/teslashibe/posecam/pkg/effect"
	"github.com/teslashibe/posecam/pkg/segment"
)

// EstimatorKind selects the inference call made on each tick.
type EstimatorKind int

const (
	// EstimatorNone runs no inference; the algorithm or estimate mode is
	// unrecognized.
	EstimatorNone EstimatorKind = iota
	EstimatorMultiPersonSegmentation
	EstimatorPersonSegmentation
	EstimatorMultiPersonParts
	EstimatorPersonParts
)

func (k EstimatorKind) String() string {
	switch k {
	case EstimatorMultiPersonSegmentation:
		return "multi-person-segmentation"
	case EstimatorPersonSegmentation:
		return "person-segmentation"
	case EstimatorMultiPersonParts:
		return "multi-person-parts"
	case EstimatorPersonParts:
		return "person-parts"
	default:
		return "none"
	}
}

// EffectKind selects the renderer applied to each result.
type EffectKind int

const (
	// EffectNone renders nothing; the effect name is unrecognized for the
	// estimate mode.
	EffectNone EffectKind = iota
	EffectMask
	EffectBokeh
	EffectPartMap
	EffectPixelation
	EffectBlurBodyPart
)

func (k EffectKind) String() string {
	switch k {
	case EffectMask:
		return EffectNameMask
	case EffectBokeh:
		return EffectNameBokeh
	case EffectPartMap:
		return EffectNamePartMap
	case EffectPixelation:
		return EffectNamePixelation
	case EffectBlurBodyPart:
		return EffectNameBlurBodyPart
	default:
		return "none"
	}
}

// Plan is a ModelConfig resolved into fixed choices. It is built once when
// the loop is created, so ticks never re-parse configuration strings.
type Plan struct {
	Estimator EstimatorKind
	Effect    EffectKind
	Renderer  effect.Renderer // nil when Effect is EffectNone

	Inference      segment.InferenceOptions
	FlipHorizontal bool
	ShowPoses      bool

	// Problems lists every unrecognized value found while resolving.
	Problems []error
}

// NewPlan resolves cfg. Unknown names yield EstimatorNone or EffectNone
// plus a *ConfigError in Problems.
func NewPlan(cfg ModelConfig) Plan {
	p := Plan{
		Inference:      cfg.InferenceOptions(),
		FlipHorizontal: cfg.FlipHorizontal,
		ShowPoses:      cfg.ShowPoses,
	}

	multi := false
	switch cfg.Algorithm {
	case AlgorithmMultiPersonInstance:
		multi = true
	case AlgorithmPerson:
	default:
		p.Problems = append(p.Problems, &ConfigError{Field: "algorithm", Value: string(cfg.Algorithm)})
		return p
	}

	switch cfg.Estimate {
	case EstimateSegmentation:
		p.Estimator = EstimatorPersonSegmentation
		if multi {
			p.Estimator = EstimatorMultiPersonSegmentation
		}
		p.resolveSegmentationEffect(cfg.Segmentation)
	case EstimatePartMap:
		p.Estimator = EstimatorPersonParts
		if multi {
			p.Estimator = EstimatorMultiPersonParts
		}
		p.resolvePartMapEffect(cfg.PartMap)
	default:
		p.Problems = append(p.Problems, &ConfigError{Field: "estimate", Value: string(cfg.Estimate)})
	}
	return p
}

func (p *Plan) resolveSegmentationEffect(s SegmentationConfig) {
	switch s.Effect {
	case EffectNameMask:
		bg := effect.Black
		if !s.MaskBackground {
			bg = effect.Transparent
		}
		p.Effect = EffectMask
		p.Renderer = effect.Mask{
			Foreground: effect.White,
			Background: bg,
			Contour:    s.MaskContour,
			Opacity:    s.Opacity,
			BlurAmount: s.MaskBlurAmount,
		}
	case EffectNameBokeh:
		p.Effect = EffectBokeh
		p.Renderer = effect.Bokeh{
			BackgroundBlurAmount: s.BackgroundBlurAmount,
			EdgeBlurAmount:       s.EdgeBlurAmount,
		}
	default:
		p.Problems = append(p.Problems, &ConfigError{Field: "segmentation.effect", Value: s.Effect})
	}
}

func (p *Plan) resolvePartMapEffect(m PartMapConfig) {
	switch m.Effect {
	case EffectNamePartMap, EffectNamePixelation:
		colors, ok := effect.LookupColorScale(m.ColorScale)
		if !ok {
			p.Problems = append(p.Problems, &ConfigError{Field: "partMap.colorScale", Value: m.ColorScale})
			return
		}
		if m.Effect == EffectNamePartMap {
			p.Effect = EffectPartMap
			p.Renderer = effect.PartMap{Colors: colors, Opacity: m.Opacity}
			return
		}
		p.Effect = EffectPixelation
		p.Renderer = effect.Pixelation{Colors: colors, Opacity: m.Opacity, CellWidth: m.PixelCellWidth}
	case EffectNameBlurBodyPart:
		p.Effect = EffectBlurBodyPart
		p.Renderer = effect.BlurBodyPart{
			PartIDs:        append([]int(nil), m.BlurBodyPartIDs...),
			BlurAmount:     m.BlurBodyPartAmount,
			EdgeBlurAmount: m.BodyPartEdgeBlurAmount,
		}
	default:
		p.Problems = append(p.Problems, &ConfigError{Field: "partMap.effect", Value: m.Effect})
	}
}

// Estimate runs the planned inference call. With EstimatorNone it returns
// the first recorded problem without touching the engine.
func (p Plan) Estimate(ctx context.Context, engine segment.Engine, frame gocv.Mat) (*segment.Result, error) {
	switch p.Estimator {
	case EstimatorMultiPersonSegmentation:
		return engine.SegmentMultiPerson(ctx, frame, p.Inference)
	case EstimatorPersonSegmentation:
		return engine.SegmentPerson(ctx, frame, p.Inference)
	case EstimatorMultiPersonParts:
		return engine.SegmentMultiPersonParts(ctx, frame, p.Inference)
	case EstimatorPersonParts:
		return engine.SegmentPersonParts(ctx, frame, p.Inference)
	}
	if len(p.Problems) > 0 {
		return nil, p.Problems[0]
	}
	return nil, ErrUnrecognizedConfiguration
}
