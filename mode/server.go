package mode

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/khaledhikmat/nsfw-go/model"
	"github.com/khaledhikmat/nsfw-go/pipeline"
	"github.com/khaledhikmat/nsfw-go/service/lgr"
)

//go:embed index.html
var indexHTML []byte

// Server runs the HTTP API until the context is cancelled.
func Server(canxCtx context.Context, svcs pipeline.ServicesFactory) error {
	gin.SetMode(gin.ReleaseMode)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", svcs.CfgSvc.GetHTTPPort()),
		Handler: newRouter(svcs),
	}

	serverResult := make(chan error, 1)
	go func() {
		serverResult <- srv.ListenAndServe()
	}()

	lgr.Logger.Info(
		"http server starting...",
		slog.Int("port", svcs.CfgSvc.GetHTTPPort()),
	)

	select {
	case <-canxCtx.Done():
		lgr.Logger.Info(
			"http server context cancelled",
		)

		shutdownCtx, canxFn := context.WithTimeout(context.Background(),
			time.Duration(svcs.CfgSvc.GetModeMaxShutdownTime())*time.Second)
		defer canxFn()

		return srv.Shutdown(shutdownCtx)

	case err := <-serverResult:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func newRouter(svcs pipeline.ServicesFactory) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.MaxMultipartMemory = 32 << 20

	router.GET("/", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", indexHTML)
	})
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.POST("/check", checkHandler(svcs))

	return router
}

func checkHandler(svcs pipeline.ServicesFactory) gin.HandlerFunc {
	return func(c *gin.Context) {
		fileHeader, fileErr := c.FormFile("file")
		formPath := c.PostForm("path")

		hasFile := fileErr == nil && fileHeader != nil
		hasPath := formPath != ""
		if hasFile == hasPath {
			errorResponse(c, http.StatusBadRequest, "provide exactly one of 'file' or 'path'")
			return
		}

		cfg, ok := requestConfig(c, svcs)
		if !ok {
			return
		}

		var path, name string
		if hasFile {
			if fileHeader.Filename == "" {
				errorResponse(c, http.StatusBadRequest, "no file selected")
				return
			}
			if fileHeader.Size > cfg.MaxFileSize {
				errorResponse(c, http.StatusBadRequest, "file too large")
				return
			}

			dst := filepath.Join(os.TempDir(), uuid.NewString()+filepath.Ext(fileHeader.Filename))
			if err := c.SaveUploadedFile(fileHeader, dst); err != nil {
				lgr.Logger.Error("error saving upload", slog.Any("error", err))
				errorResponse(c, http.StatusInternalServerError, "error saving upload")
				return
			}
			// the upload never outlives the request
			defer os.Remove(dst)

			path = dst
			name = filepath.Base(fileHeader.Filename)
		} else {
			resolved, status, msg := resolveLocalPath(formPath, svcs.CfgSvc.GetAllowedPathRoots())
			if status != 0 {
				errorResponse(c, status, msg)
				return
			}
			path = resolved
			name = filepath.Base(resolved)
		}

		verdict, err := pipeline.Detect(c.Request.Context(), svcs, path, name, cfg)
		if err != nil {
			errorResponse(c, statusFor(err), err.Error())
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":   "success",
			"filename": name,
			"result": gin.H{
				"nsfw":   verdict.Nsfw,
				"normal": verdict.Normal,
			},
			"detail": gin.H{
				"isNsfw":         verdict.IsNsfw,
				"unitsAttempted": verdict.UnitsAttempted,
				"unitsFailed":    verdict.UnitsFailed,
				"truncated":      verdict.Truncated,
				"unitScores":     verdict.UnitScores,
			},
		})
	}
}

// requestConfig starts from the process-wide defaults and applies the
// per-request overrides. Returns ok=false after writing a request error.
func requestConfig(c *gin.Context, svcs pipeline.ServicesFactory) (model.DetectionConfig, bool) {
	cfg := pipeline.ConfigFromService(svcs.CfgSvc)

	if v := c.PostForm("nsfw_threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil || t < 0 || t > 1 {
			errorResponse(c, http.StatusBadRequest, "nsfw_threshold must be a number in [0,1]")
			return cfg, false
		}
		cfg.NsfwThreshold = t
	}

	if v := c.PostForm("max_frames"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errorResponse(c, http.StatusBadRequest, "max_frames must be a positive integer")
			return cfg, false
		}
		cfg.MaxFrames = n
	}

	return cfg, true
}

// resolveLocalPath accepts a server-local path only when it sits inside one
// of the allowed roots. Returns a non-zero status and message on rejection.
func resolveLocalPath(formPath string, roots []string) (string, int, string) {
	abs, err := filepath.Abs(formPath)
	if err != nil {
		return "", http.StatusBadRequest, "invalid path"
	}
	abs = filepath.Clean(abs)

	allowed := false
	for _, root := range roots {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		if abs == rootAbs || strings.HasPrefix(abs, rootAbs+string(filepath.Separator)) {
			allowed = true
			break
		}
	}
	if !allowed {
		return "", http.StatusBadRequest, "path is outside the allowed folders"
	}

	fi, err := os.Stat(abs)
	if err != nil {
		return "", http.StatusNotFound, "file not found"
	}
	if fi.IsDir() {
		return "", http.StatusBadRequest, "path is not a file"
	}

	return abs, 0, ""
}

func statusFor(err error) int {
	var de *model.DecodeError
	switch {
	case errors.Is(err, model.ErrUnsupportedFormat),
		errors.Is(err, model.ErrNoUsableUnits),
		errors.Is(err, model.ErrFileTooLarge),
		errors.As(err, &de):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"status":  "error",
		"message": message,
	})
}
