package pipeline

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/khaledhikmat/nsfw-go/service/config"
	"github.com/khaledhikmat/nsfw-go/service/data"
	"github.com/khaledhikmat/nsfw-go/service/inference"
	"github.com/khaledhikmat/nsfw-go/service/webhook"
)

// ServicesFactory carries the services a pipeline run depends on.
// They are constructed once in main and shared read-only by all runs.
type ServicesFactory struct {
	CfgSvc       config.IService
	DataSvc      data.IService
	InferenceSvc inference.IService
	WebhookSvc   webhook.IService
	Tracer       trace.Tracer
}

// Attempt is one classifiable unit in extraction order. A non-nil Err marks
// a unit that failed before it could be handed to the classifier (e.g. a
// page that would not render); such attempts still count and are reported.
type Attempt struct {
	Index       int
	SourceLabel string
	Data        []byte
	Err         error
}

// extraction is the bounded, ordered result of expanding one input file.
type extraction struct {
	attempts  []Attempt
	truncated bool
}

func (ex *extraction) add(label string, data []byte) {
	ex.attempts = append(ex.attempts, Attempt{
		Index:       len(ex.attempts),
		SourceLabel: label,
		Data:        data,
	})
}

func (ex *extraction) addFailed(label string, err error) {
	ex.attempts = append(ex.attempts, Attempt{
		Index:       len(ex.attempts),
		SourceLabel: label,
		Err:         err,
	})
}
