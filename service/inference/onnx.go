package inference

import (
	"context"
	"image"
	"log/slog"
	"math"
	"os"

	"gocv.io/x/gocv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/nsfw-go/model"
	"github.com/khaledhikmat/nsfw-go/service/config"
	"github.com/khaledhikmat/nsfw-go/service/lgr"
)

const (
	inputSize = 224
	// output column order of the two-class model
	normalIdx = 0
	nsfwIdx   = 1
)

type job struct {
	data []byte
	resp chan jobResult
}

type jobResult struct {
	score model.Score
	err   error
}

type onnxService struct {
	canxCtx context.Context
	jobs    chan job
	canxFn  context.CancelFunc
}

// NewONNX loads the two-class ONNX model and starts a fixed pool of workers,
// one gocv.Net per worker. The jobs channel is the admission queue: callers
// block until a worker picks their unit up or their context is cancelled.
func NewONNX(canxCtx context.Context, cfgSvc config.IService) (IService, error) {
	modelPath := cfgSvc.GetClassifierModelPath()
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, xerrors.New("no classifier model exists at " + modelPath)
	}

	poolCtx, poolCanxFn := context.WithCancel(canxCtx)

	svc := &onnxService{
		canxCtx: poolCtx,
		canxFn:  poolCanxFn,
		jobs:    make(chan job),
	}

	workers := cfgSvc.GetClassifierMaxWorkers()
	lgr.Logger.Info("classifier starting...",
		slog.String("model", modelPath),
		slog.Int("workers", workers),
		slog.String("openCV", gocv.Version()),
	)

	for i := 0; i < workers; i++ {
		// WARNING: net is not thread-safe!!!
		// So it must be created in each worker
		net := gocv.ReadNet(modelPath, "")
		if net.Empty() {
			poolCanxFn()
			return nil, xerrors.New("error reading classifier model")
		}

		if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
			net.Close()
			poolCanxFn()
			return nil, err
		}

		if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
			net.Close()
			poolCanxFn()
			return nil, err
		}

		go svc.worker(i, net)
	}

	return svc, nil
}

func (svc *onnxService) Classify(ctx context.Context, data []byte) (model.Score, error) {
	j := job{
		data: data,
		resp: make(chan jobResult, 1),
	}

	select {
	case <-ctx.Done():
		return model.Score{}, ctx.Err()
	case <-svc.canxCtx.Done():
		return model.Score{}, xerrors.New("classifier is shut down")
	case svc.jobs <- j:
	}

	select {
	case <-ctx.Done():
		return model.Score{}, ctx.Err()
	case r := <-j.resp:
		return r.score, r.err
	}
}

func (svc *onnxService) Finalize() {
	svc.canxFn()
}

func (svc *onnxService) worker(worker int, net gocv.Net) {
	defer net.Close()

	for {
		select {
		case <-svc.canxCtx.Done():
			lgr.Logger.Info(
				"classifier worker context cancelled",
				slog.Int("worker", worker),
			)
			return
		case j := <-svc.jobs:
			score, err := infer(&net, j.data)
			j.resp <- jobResult{score: score, err: err}
		}
	}
}

func infer(net *gocv.Net, data []byte) (model.Score, error) {
	img, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return model.Score{}, xerrors.New("error decoding unit bytes")
	}
	defer img.Close()

	if img.Empty() {
		return model.Score{}, xerrors.New("unit decoded to an empty image")
	}

	// The model expects 224x224 inputs normalized to [-1, 1].
	blob := gocv.BlobFromImage(img, 1.0/127.5, image.Pt(inputSize, inputSize),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	net.SetInput(blob, "")

	output := net.Forward("")
	defer output.Close()

	logits, err := output.DataPtrFloat32()
	if err != nil || len(logits) < 2 {
		return model.Score{}, xerrors.New("unexpected classifier output shape")
	}

	normal, nsfw := softmax2(float64(logits[normalIdx]), float64(logits[nsfwIdx]))
	return model.Score{Nsfw: nsfw, Normal: normal}, nil
}

// softmax2 normalizes two logits into probabilities summing to 1.0.
func softmax2(a, b float64) (float64, float64) {
	m := math.Max(a, b)
	ea := math.Exp(a - m)
	eb := math.Exp(b - m)
	sum := ea + eb
	return ea / sum, eb / sum
}
