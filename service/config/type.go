package config

type IService interface {
	GetModeMaxShutdownTime() int
	GetHTTPPort() int
	GetMaxFileSize() int64
	GetAllowedPathRoots() []string

	GetNsfwThreshold() float64
	GetMaxFrames() int
	GetFrameTimeout() int
	GetRequestTimeout() int
	GetMaxArchiveDepth() int
	GetMaxArchiveEntries() int
	GetDedupFrames() bool

	GetClassifierModelPath() string
	GetClassifierMaxWorkers() int

	GetMediaFolder() string
	GetMonitorPeriodicTimeout() int
	GetScansFile() string
	GetWebhookURL() string
}
