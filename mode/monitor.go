package mode

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/khaledhikmat/nsfw-go/model"
	"github.com/khaledhikmat/nsfw-go/pipeline"
	"github.com/khaledhikmat/nsfw-go/service/lgr"
)

// The monitor periodically sweeps the media folder, runs new or changed
// files through the detection pipeline, persists results via the data
// service and posts a webhook alert for every flagged file.
func Monitor(canxCtx context.Context, svcs pipeline.ServicesFactory) error {
	lgr.Logger.Info(
		"monitor starting...",
		slog.String("folder", svcs.CfgSvc.GetMediaFolder()),
		slog.Int("period", svcs.CfgSvc.GetMonitorPeriodicTimeout()),
	)

	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"monitor context cancelled",
			)
			return nil

		case <-time.After(time.Duration(svcs.CfgSvc.GetMonitorPeriodicTimeout()) * time.Second):
			stats := sweep(canxCtx, svcs)
			procMonitorStats(stats)
		}
	}
}

func sweep(canxCtx context.Context, svcs pipeline.ServicesFactory) model.MonitorStats {
	var stats model.MonitorStats
	start := time.Now().Unix()

	folder := svcs.CfgSvc.GetMediaFolder()
	err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if canxCtx.Err() != nil {
			return canxCtx.Err()
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		rec, found, err := svcs.DataSvc.RetrieveScanByPath(path)
		if err != nil {
			procError(svcs.DataSvc, model.GenError("monitor", err, nil, "error retrieving scan for %s", path))
			stats.Errors++
			return nil
		}
		if found && rec.Fresh(info.Size(), info.ModTime().Unix()) {
			stats.Skipped++
			return nil
		}

		flagged := scanFile(canxCtx, svcs, path, info.Size(), info.ModTime().Unix(), &stats)
		if flagged {
			stats.Flagged++
		}
		return nil
	})
	if err != nil && canxCtx.Err() == nil {
		procError(svcs.DataSvc, model.GenError("monitor", err, nil, "error walking media folder %s", folder))
	}

	stats.Uptime = time.Now().Unix() - start
	stats.Timestamp = time.Now().Unix()
	return stats
}

func scanFile(canxCtx context.Context, svcs pipeline.ServicesFactory, path string, size, modTime int64, stats *model.MonitorStats) bool {
	name := filepath.Base(path)
	cfg := pipeline.ConfigFromService(svcs.CfgSvc)

	rec := model.ScanRecord{
		ID:        uuid.NewString(),
		Path:      path,
		Name:      name,
		Size:      size,
		ModTime:   modTime,
		ScannedAt: time.Now().Unix(),
	}

	verdict, err := pipeline.Detect(canxCtx, svcs, path, name, cfg)
	if err != nil {
		// Persist the failure too so the file is not re-scanned every sweep.
		rec.Error = err.Error()
		stats.Errors++
	} else {
		rec.IsNsfw = verdict.IsNsfw
		rec.Nsfw = verdict.Nsfw
		rec.Normal = verdict.Normal
		rec.Attempted = verdict.UnitsAttempted
		rec.Failed = verdict.UnitsFailed
	}
	stats.Scanned++

	if saveErr := svcs.DataSvc.SaveScan(rec); saveErr != nil {
		procError(svcs.DataSvc, model.GenError("monitor", saveErr, nil, "error saving scan for %s", path))
		stats.Errors++
	}

	if err == nil && verdict.IsNsfw {
		alert(svcs, rec)
		return true
	}

	return false
}

func alert(svcs pipeline.ServicesFactory, rec model.ScanRecord) {
	err := svcs.WebhookSvc.Post(map[string]interface{}{
		"event":     "nsfw_detected",
		"path":      rec.Path,
		"name":      rec.Name,
		"nsfw":      rec.Nsfw,
		"normal":    rec.Normal,
		"scannedAt": rec.ScannedAt,
	})
	if err != nil {
		lgr.Logger.Error(
			"error posting webhook alert",
			slog.String("path", rec.Path),
			slog.Any("error", err),
		)
	}
}
