package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

type envService struct {
}

// NewEnv returns a config service backed by environment variables.
// Unset variables fall back to documented defaults. The .env file, if any,
// is loaded by main before services are constructed.
func NewEnv() IService {
	return &envService{}
}

func (svc *envService) GetModeMaxShutdownTime() int {
	return intVar("MODE_MAX_SHUTDOWN_TIME", 5)
}

func (svc *envService) GetHTTPPort() int {
	return intVar("HTTP_PORT", 3333)
}

func (svc *envService) GetMaxFileSize() int64 {
	return int64Var("MAX_FILE_SIZE", 20*1024*1024*1024)
}

func (svc *envService) GetAllowedPathRoots() []string {
	v := os.Getenv("ALLOWED_PATHS")
	if v == "" {
		return []string{svc.GetMediaFolder()}
	}

	var roots []string
	for _, p := range strings.Split(v, ":") {
		if p == "" {
			continue
		}
		roots = append(roots, filepath.Clean(p))
	}
	return roots
}

func (svc *envService) GetNsfwThreshold() float64 {
	return floatVar("NSFW_THRESHOLD", 0.8)
}

func (svc *envService) GetMaxFrames() int {
	return intVar("FFMPEG_MAX_FRAMES", 20)
}

func (svc *envService) GetFrameTimeout() int {
	return intVar("FFMPEG_MAX_TIMEOUT", 1800)
}

func (svc *envService) GetRequestTimeout() int {
	// 0 disables the overall per-request deadline
	return intVar("REQUEST_TIMEOUT", 0)
}

func (svc *envService) GetMaxArchiveDepth() int {
	return intVar("MAX_ARCHIVE_DEPTH", 3)
}

func (svc *envService) GetMaxArchiveEntries() int {
	return intVar("MAX_ARCHIVE_ENTRIES", 256)
}

func (svc *envService) GetDedupFrames() bool {
	return os.Getenv("DEDUP_FRAMES") != "0"
}

func (svc *envService) GetClassifierModelPath() string {
	return strVar("MODEL_PATH", "./models/nsfw.onnx")
}

func (svc *envService) GetClassifierMaxWorkers() int {
	return intVar("CLASSIFIER_MAX_WORKERS", runtime.NumCPU())
}

func (svc *envService) GetMediaFolder() string {
	return strVar("MEDIA_FOLDER", "/media")
}

func (svc *envService) GetMonitorPeriodicTimeout() int {
	return intVar("MONITOR_PERIODIC_TIMEOUT", 30)
}

func (svc *envService) GetScansFile() string {
	return strVar("SCANS_FILE", "./settings/scans.json")
}

func (svc *envService) GetWebhookURL() string {
	return os.Getenv("WEBHOOK_URL")
}

func strVar(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intVar(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func int64Var(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func floatVar(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
