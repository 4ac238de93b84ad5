package segment

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/posecam/internal/log"
	"github.com/teslashibe/posecam/pkg/pose"
)

// DNNConfig holds OpenCV DNN settings shared by both networks.
type DNNConfig struct {
	PoseInputSize int     // square input of the pose network
	NMSThreshold  float32 // box IoU above which detections merge

	SegmentsOutput string // person logits, [1,1,h,w]
	PartsOutput    string // part heatmaps, [1,24,h,w]

	Backend gocv.NetBackendType
	Target  gocv.NetTargetType

	Logger *slog.Logger
}

// DefaultDNNConfig returns CPU defaults for YOLOv8n-pose and BodyPix exports.
func DefaultDNNConfig() DNNConfig {
	return DNNConfig{
		PoseInputSize:  640,
		NMSThreshold:   0.45,
		SegmentsOutput: "segments",
		PartsOutput:    "part_heatmaps",
		Backend:        gocv.NetBackendDefault,
		Target:         gocv.NetTargetCPU,
	}
}

// DNNLoader loads ONNX models through gocv.
type DNNLoader struct {
	Config DNNConfig
}

// NewDNNLoader creates a loader with the given config.
func NewDNNLoader(cfg DNNConfig) *DNNLoader {
	return &DNNLoader{Config: cfg}
}

// Load resolves, downloads if needed, and compiles both networks.
func (l *DNNLoader) Load(ctx context.Context, opts ModelOptions) (Engine, error) {
	logger := l.Config.Logger
	if logger == nil {
		logger = log.Component("segment")
	}

	if errs := opts.Validate(); len(errs) > 0 {
		return nil, &LoadError{Model: opts.Architecture, Err: errors.New(strings.Join(errs, "; "))}
	}

	posePath, err := resolveModel(ctx, opts, opts.PoseModelName(), logger)
	if err != nil {
		return nil, err
	}
	segPath, err := resolveModel(ctx, opts, opts.SegmentModelName(), logger)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &LoadError{Model: segPath, Err: err}
	}

	poseNet, err := l.readNet(posePath)
	if err != nil {
		return nil, err
	}
	segNet, err := l.readNet(segPath)
	if err != nil {
		poseNet.Close()
		return nil, err
	}

	logger.Info("models loaded",
		"pose", posePath,
		"segmentation", segPath,
		"architecture", opts.Architecture,
		"output_stride", opts.OutputStride)

	return &DNN{
		poseNet: poseNet,
		segNet:  segNet,
		opts:    opts,
		cfg:     l.Config,
		logger:  logger,
	}, nil
}

func (l *DNNLoader) readNet(path string) (gocv.Net, error) {
	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return net, &LoadError{Model: path, Err: errors.New("failed to read ONNX network")}
	}
	net.SetPreferableBackend(l.Config.Backend)
	net.SetPreferableTarget(l.Config.Target)
	return net, nil
}

// DNN runs a YOLOv8-pose network for keypoints and a BodyPix network for
// person and part segmentation. Calls are serialized.
type DNN struct {
	mu      sync.Mutex
	poseNet gocv.Net
	segNet  gocv.Net
	opts    ModelOptions
	cfg     DNNConfig
	logger  *slog.Logger
	closed  bool
}

// SegmentPerson implements Engine.
func (d *DNN) SegmentPerson(ctx context.Context, frame gocv.Mat, opts InferenceOptions) (*Result, error) {
	return d.run(ctx, frame, opts, false, false)
}

// SegmentMultiPerson implements Engine.
func (d *DNN) SegmentMultiPerson(ctx context.Context, frame gocv.Mat, opts InferenceOptions) (*Result, error) {
	return d.run(ctx, frame, opts, false, true)
}

// SegmentPersonParts implements Engine.
func (d *DNN) SegmentPersonParts(ctx context.Context, frame gocv.Mat, opts InferenceOptions) (*Result, error) {
	return d.run(ctx, frame, opts, true, false)
}

// SegmentMultiPersonParts implements Engine.
func (d *DNN) SegmentMultiPersonParts(ctx context.Context, frame gocv.Mat, opts InferenceOptions) (*Result, error) {
	return d.run(ctx, frame, opts, true, true)
}

func (d *DNN) run(ctx context.Context, frame gocv.Mat, opts InferenceOptions, parts, multi bool) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame.Empty() {
		return nil, ErrEmptyFrame
	}
	scale, err := ResolutionScale(opts.InternalResolution)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, ErrEngineClosed
	}

	poses, err := d.estimatePoses(frame, opts)
	if err != nil {
		return nil, err
	}
	mask, partMap, err := d.segment(frame, opts, scale, parts)
	if err != nil {
		return nil, err
	}

	w, h := frame.Cols(), frame.Rows()
	res := &Result{Width: w, Height: h, Mask: mask, Parts: partMap, Poses: poses,
		multi: multi, match: opts.NumKeypointForMatching}

	d.logger.Debug("inference complete", "poses", len(poses), "parts", parts, "multi", multi)
	return res, nil
}

func (d *DNN) estimatePoses(frame gocv.Mat, opts InferenceOptions) ([]pose.Pose, error) {
	size := image.Pt(d.cfg.PoseInputSize, d.cfg.PoseInputSize)

	blob := gocv.BlobFromImage(frame, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.poseNet.SetInput(blob, "")
	out := d.poseNet.Forward("")
	defer out.Close()

	// [1, 56, N]: channel-major, one column per anchor
	shape := out.Size()
	if len(shape) != 3 || shape[1] != poseOutputRows {
		return nil, fmt.Errorf("segment: unexpected pose output shape %v", shape)
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("segment: read pose output: %w", err)
	}

	sx := float64(frame.Cols()) / float64(size.X)
	sy := float64(frame.Rows()) / float64(size.Y)
	cands := decodePoses(data, shape[2], sx, sy, float32(opts.ScoreThreshold))
	return selectPoses(cands, opts, d.cfg.NMSThreshold), nil
}

func (d *DNN) segment(frame gocv.Mat, opts InferenceOptions, scale float64, wantParts bool) ([]uint8, []int8, error) {
	w, h := frame.Cols(), frame.Rows()
	stride := d.opts.OutputStride
	in := image.Pt(
		ValidInputSize(int(float64(w)*scale), stride),
		ValidInputSize(int(float64(h)*scale), stride),
	)

	blob := d.segmentBlob(frame, in)
	defer blob.Close()

	d.segNet.SetInput(blob, "")
	outs := d.segNet.ForwardLayers([]string{d.cfg.SegmentsOutput, d.cfg.PartsOutput})
	defer func() {
		for i := range outs {
			outs[i].Close()
		}
	}()
	if len(outs) != 2 {
		return nil, nil, fmt.Errorf("segment: expected 2 outputs, got %d", len(outs))
	}

	shape := outs[0].Size()
	if len(shape) != 4 {
		return nil, nil, fmt.Errorf("segment: unexpected segments shape %v", shape)
	}
	oh, ow := shape[2], shape[3]

	raw := outs[0].ToBytes()
	logits, err := gocv.NewMatFromBytes(oh, ow, gocv.MatTypeCV32F, raw[:oh*ow*4])
	if err != nil {
		return nil, nil, fmt.Errorf("segment: wrap logits: %w", err)
	}
	defer logits.Close()

	up := gocv.NewMat()
	defer up.Close()
	gocv.Resize(logits, &up, image.Pt(w, h), 0, 0, gocv.InterpolationLinear)
	runtime.KeepAlive(raw)

	upData, err := up.DataPtrFloat32()
	if err != nil {
		return nil, nil, fmt.Errorf("segment: read logits: %w", err)
	}
	mask := thresholdLogits(upData, opts.SegmentationThreshold)
	if !wantParts {
		return mask, nil, nil
	}

	pshape := outs[1].Size()
	if len(pshape) != 4 || pshape[1] != NumParts {
		return nil, nil, fmt.Errorf("segment: unexpected part heatmap shape %v", pshape)
	}
	heat, err := outs[1].DataPtrFloat32()
	if err != nil {
		return nil, nil, fmt.Errorf("segment: read part heatmaps: %w", err)
	}

	low := argmaxParts(heat, pshape[1], pshape[2], pshape[3])
	partMap := resizeNearest(low, pshape[3], pshape[2], w, h)
	maskParts(partMap, mask)
	return mask, partMap, nil
}

// segmentBlob applies the preprocessing each BodyPix backbone was trained with.
func (d *DNN) segmentBlob(frame gocv.Mat, size image.Point) gocv.Mat {
	if d.opts.Architecture == ResNet50 {
		return gocv.BlobFromImage(frame, 1.0, size, gocv.NewScalar(123.15, 115.90, 103.06, 0), true, false)
	}
	return gocv.BlobFromImage(frame, 1.0/127.5, size, gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
}

// Close releases both networks.
func (d *DNN) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return errors.Join(d.poseNet.Close(), d.segNet.Close())
}
