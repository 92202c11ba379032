package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/nsfw-go/mode"
	"github.com/khaledhikmat/nsfw-go/pipeline"
	"github.com/khaledhikmat/nsfw-go/service/config"
	"github.com/khaledhikmat/nsfw-go/service/data"
	"github.com/khaledhikmat/nsfw-go/service/inference"
	"github.com/khaledhikmat/nsfw-go/service/lgr"
	"github.com/khaledhikmat/nsfw-go/service/webhook"
)

const (
	// WARNING: this has to be bigger than the mode processor shutdown time
	waitOnShutdown = 8 * time.Second
)

var modeProcessors = map[string]mode.Processor{
	"server":  mode.Server,
	"monitor": mode.Monitor,
}

func main() {
	rootCtx := context.Background()
	canxCtx, canxFn := context.WithCancel(rootCtx)

	// Hook up a signal handler to cancel the context
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		lgr.Logger.Info(
			"received kill signal",
			slog.Any("signal", sig),
		)
		canxFn()
	}()

	// Load env vars if we are in DEV mode
	if os.Getenv("RUN_TIME_ENV") == "dev" || os.Getenv("RUN_TIME_ENV") == "" {
		lgr.Logger.Info("loading env vars from .env file")
		err := godotenv.Load()
		if err != nil {
			lgr.Logger.Warn("no .env file loaded", slog.Any("error", xerrors.New(err.Error())))
		}
	}

	modeType := "server"
	args := os.Args[1:]
	if len(args) > 0 {
		modeType = args[0]
	}

	modeProc, ok := modeProcessors[modeType]
	if !ok {
		lgr.Logger.Error("invalid mode", slog.String("mode", modeType))
		panic("invalid mode")
	}

	color.Green("nsfw-go starting in %s mode", modeType)

	// Create the services needed for the mode processor
	// Config service
	cfgSvc := config.NewEnv()
	// Data service
	dataSvc := data.NewFilesDB(cfgSvc)
	// Inference service (process-wide classifier, shared by all requests)
	inferenceSvc, err := inference.NewONNX(canxCtx, cfgSvc)
	if err != nil {
		lgr.Logger.Error("error creating inference service", slog.Any("error", err))
		color.Red("unable to load the classifier model: %v", err)
		canxFn()
		panic("error creating inference service")
	}
	defer inferenceSvc.Finalize()
	// Webhook service
	var webhookSvc webhook.IService
	if cfgSvc.GetWebhookURL() != "" {
		webhookSvc = webhook.NewHTTP(cfgSvc)
	} else {
		webhookSvc = webhook.NewFake(cfgSvc)
	}

	svcs := pipeline.ServicesFactory{
		CfgSvc:       cfgSvc,
		DataSvc:      dataSvc,
		InferenceSvc: inferenceSvc,
		WebhookSvc:   webhookSvc,
		Tracer:       noop.NewTracerProvider().Tracer("nsfw-go"),
	}

	// Create mode processor result
	modeProcResult := make(chan error)
	defer close(modeProcResult)

	// Start the mode processor
	go func() {
		modeProcResult <- modeProc(canxCtx, svcs)
	}()

	// Wait for cancellation, mode proc or error
	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"main context cancelled",
			)
			goto resume

		case err := <-modeProcResult:
			if err != nil {
				lgr.Logger.Info(
					"mode processor exited",
					slog.Any("error", xerrors.New(err.Error())),
				)
			}
			goto resume
		}
	}

	// Wait in a non-blocking way for `waitOnShutdown` for all the go routines to exit
	// This is needed because the go routines may need to report errors as they are exiting
resume:
	// Cancel the context if not already cancelled
	if canxCtx.Err() == nil {
		// Force cancel the context
		canxFn()
	}

	lgr.Logger.Info(
		"waiting for all go routines to exit",
	)

	// The only way to exit the main function is to wait for the shutdown
	// duration
	timer := time.NewTimer(waitOnShutdown)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			// Timer expired, proceed with shutdown
			lgr.Logger.Info(
				"shutdown waiting period expired. Exiting now",
				slog.Duration("period", waitOnShutdown),
			)

			return

		case err := <-modeProcResult:
			if err != nil {
				lgr.Logger.Info(
					"mode processor exited",
					slog.Any("error", xerrors.New(err.Error())),
				)
			}
		}
	}
}
