package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/khaledhikmat/nsfw-go/model"
	"github.com/khaledhikmat/nsfw-go/service/config"
	"github.com/khaledhikmat/nsfw-go/service/lgr"
	"github.com/khaledhikmat/nsfw-go/service/metrics"
)

const inferenceRetryDelay = 100 * time.Millisecond

// ConfigFromService snapshots the detection defaults once per run. The
// snapshot is what the run sees; reconfiguration cannot be observed midway.
func ConfigFromService(cfgSvc config.IService) model.DetectionConfig {
	return model.DetectionConfig{
		NsfwThreshold:     cfgSvc.GetNsfwThreshold(),
		MaxFrames:         cfgSvc.GetMaxFrames(),
		FrameTimeout:      cfgSvc.GetFrameTimeout(),
		MaxArchiveDepth:   cfgSvc.GetMaxArchiveDepth(),
		MaxArchiveEntries: cfgSvc.GetMaxArchiveEntries(),
		MaxFileSize:       cfgSvc.GetMaxFileSize(),
		DedupFrames:       cfgSvc.GetDedupFrames(),
	}
}

// Detect runs one file through the whole pipeline: identify, extract,
// score, aggregate. The file at path is never modified and never retained;
// any intermediate artifact the extractors materialize is gone by the time
// Detect returns, on every exit path.
func Detect(ctx context.Context, svcs ServicesFactory, path, declaredName string, cfg model.DetectionConfig) (model.Verdict, error) {
	tracer := svcs.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("")
	}

	if t := svcs.CfgSvc.GetRequestTimeout(); t > 0 {
		var canxFn context.CancelFunc
		ctx, canxFn = context.WithTimeout(ctx, time.Duration(t)*time.Second)
		defer canxFn()
	}

	verdict, err := detect(ctx, svcs, tracer, path, declaredName, cfg)
	metrics.RequestsTotal.WithLabelValues(outcome(verdict, err)).Inc()
	return verdict, err
}

func detect(ctx context.Context, svcs ServicesFactory, tracer trace.Tracer, path, declaredName string, cfg model.DetectionConfig) (model.Verdict, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return model.Verdict{}, &model.DecodeError{Source: declaredName, Inner: err}
	}
	if fi.Size() > cfg.MaxFileSize {
		return model.Verdict{}, model.ErrFileTooLarge
	}

	kind, err := identifyStage(ctx, tracer, path, declaredName)
	if err != nil {
		return model.Verdict{}, err
	}
	if kind == model.FormatUnsupported {
		return model.Verdict{}, model.ErrUnsupportedFormat
	}

	ex, err := extractStage(ctx, tracer, kind, path, declaredName, cfg)
	if err != nil {
		return model.Verdict{}, err
	}

	scores := scoreStage(ctx, svcs, tracer, ex.attempts, cfg)

	_, span := tracer.Start(ctx, "aggregate")
	verdict, err := Aggregate(scores, ex.truncated, cfg.NsfwThreshold)
	span.End()
	if err != nil {
		return verdict, err
	}

	lgr.Logger.Info("detection done",
		slog.String("file", declaredName),
		slog.String("kind", string(kind)),
		slog.Bool("isNsfw", verdict.IsNsfw),
		slog.Int("attempted", verdict.UnitsAttempted),
		slog.Int("failed", verdict.UnitsFailed),
		slog.Bool("truncated", verdict.Truncated),
	)

	return verdict, nil
}

func identifyStage(ctx context.Context, tracer trace.Tracer, path, declaredName string) (model.FormatKind, error) {
	_, span := tracer.Start(ctx, "identify")
	defer span.End()
	defer stageTimer("identify")()

	headBytes, err := readHead(path)
	if err != nil {
		return model.FormatUnsupported, &model.DecodeError{Source: declaredName, Inner: err}
	}

	return Identify(declaredName, headBytes), nil
}

func extractStage(ctx context.Context, tracer trace.Tracer, kind model.FormatKind, path, declaredName string, cfg model.DetectionConfig) (extraction, error) {
	ctx, span := tracer.Start(ctx, "extract")
	defer span.End()
	defer stageTimer("extract")()

	switch kind {
	case model.FormatImage:
		data, err := os.ReadFile(path)
		if err != nil {
			return extraction{}, err
		}
		return extractImage(declaredName, data)

	case model.FormatPdf:
		data, err := os.ReadFile(path)
		if err != nil {
			return extraction{}, err
		}
		return extractPdf(declaredName, data, cfg)

	case model.FormatVideo:
		return extractVideo(ctx, declaredName, path, cfg)

	case model.FormatArchive:
		data, err := os.ReadFile(path)
		if err != nil {
			return extraction{}, err
		}
		budget := cfg.MaxArchiveEntries
		return extractArchive(ctx, declaredName, declaredName, data, cfg, cfg.MaxArchiveDepth, &budget)
	}

	return extraction{}, model.ErrUnsupportedFormat
}

// scoreStage classifies every attempt with bounded parallelism. Completion
// order is whatever the pool gives; results land in their attempt's slot so
// the reported sequence is always extraction order. A unit failure is
// recorded against that unit and never aborts the stage.
func scoreStage(ctx context.Context, svcs ServicesFactory, tracer trace.Tracer, attempts []Attempt, cfg model.DetectionConfig) []model.UnitScore {
	ctx, span := tracer.Start(ctx, "score")
	defer span.End()
	defer stageTimer("score")()

	scores := make([]model.UnitScore, len(attempts))

	for _, a := range attempts {
		if a.Err != nil {
			kind := model.KindOf(a.Err)
			scores[a.Index] = model.UnitScore{UnitRef: a.SourceLabel, ErrorKind: kind}
			metrics.UnitFailures.WithLabelValues(kind).Inc()
		}
	}

	reps := identityReps(attempts)
	if cfg.DedupFrames {
		reps = dedupUnits(attempts)
	}

	g := errgroup.Group{}
	g.SetLimit(svcs.CfgSvc.GetClassifierMaxWorkers())

	for _, a := range attempts {
		if a.Err != nil || reps[a.Index] != a.Index {
			continue
		}

		a := a
		g.Go(func() error {
			scores[a.Index] = classifyUnit(ctx, svcs, a)
			return nil
		})
	}
	_ = g.Wait()

	// duplicates inherit their representative's numbers under their own ref
	for _, a := range attempts {
		if a.Err != nil {
			continue
		}
		rep := reps[a.Index]
		if rep == a.Index {
			continue
		}
		scores[a.Index] = model.UnitScore{
			UnitRef:   a.SourceLabel,
			Nsfw:      scores[rep].Nsfw,
			Normal:    scores[rep].Normal,
			ErrorKind: scores[rep].ErrorKind,
		}
	}

	return scores
}

func classifyUnit(ctx context.Context, svcs ServicesFactory, a Attempt) model.UnitScore {
	metrics.UnitsClassified.Inc()

	var score model.Score
	err := retry.Do(ctx, retry.WithMaxRetries(1, retry.NewConstant(inferenceRetryDelay)), func(ctx context.Context) error {
		s, err := svcs.InferenceSvc.Classify(ctx, a.Data)
		if err != nil {
			return retry.RetryableError(err)
		}
		score = s
		return nil
	})
	if err != nil {
		lgr.Logger.Warn("unit classification failed",
			slog.String("unit", a.SourceLabel),
			slog.Any("error", err),
		)
		metrics.UnitFailures.WithLabelValues(model.ErrorKindInference).Inc()
		return model.UnitScore{UnitRef: a.SourceLabel, ErrorKind: model.ErrorKindInference}
	}

	return model.UnitScore{UnitRef: a.SourceLabel, Nsfw: score.Nsfw, Normal: score.Normal}
}

func identityReps(attempts []Attempt) map[int]int {
	reps := make(map[int]int, len(attempts))
	for _, a := range attempts {
		if a.Err == nil {
			reps[a.Index] = a.Index
		}
	}
	return reps
}

func readHead(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// an empty file reads as an empty head, which Identify resolves to
	// unsupported rather than a decode failure
	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read head: %w", err)
	}
	return buf[:n], nil
}

func stageTimer(stage string) func() {
	start := time.Now()
	return func() {
		metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

func outcome(verdict model.Verdict, err error) string {
	switch {
	case err == nil && verdict.IsNsfw:
		return "nsfw"
	case err == nil:
		return "normal"
	case errors.Is(err, model.ErrUnsupportedFormat):
		return "unsupported"
	case errors.Is(err, model.ErrNoUsableUnits):
		return "no_usable_units"
	case errors.Is(err, model.ErrFileTooLarge):
		return "too_large"
	default:
		var te *model.TimeoutError
		if errors.As(err, &te) {
			return "timeout"
		}
		var de *model.DecodeError
		if errors.As(err, &de) {
			return "decode_error"
		}
		return "error"
	}
}
