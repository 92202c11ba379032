package mode

import (
	"context"
	"log/slog"

	"github.com/khaledhikmat/nsfw-go/model"
	"github.com/khaledhikmat/nsfw-go/pipeline"
	"github.com/khaledhikmat/nsfw-go/service/data"
	"github.com/khaledhikmat/nsfw-go/service/lgr"
)

// Signature of mode processor function
type Processor func(canxCtx context.Context, svcs pipeline.ServicesFactory) error

func procError(datasvc data.IService, err interface{}) {
	errTemp := datasvc.NewError(err)
	if errTemp != nil {
		lgr.Logger.Error(
			"failed to store error",
			slog.Any("error", errTemp),
		)
	}
}

func procMonitorStats(stats model.MonitorStats) {
	lgr.Logger.Info(
		"monitor sweep finished",
		slog.Int("scanned", stats.Scanned),
		slog.Int("skipped", stats.Skipped),
		slog.Int("flagged", stats.Flagged),
		slog.Int("errors", stats.Errors),
	)
}
