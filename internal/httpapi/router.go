// Package httpapi exposes the relay pipeline over HTTP.
package httpapi

import (
	"context"
	"fmt"
	log "log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"voxrelay/internal/pipeline"
	"voxrelay/internal/store"
)

// DefaultMaxUpload matches MAX_AUDIO_UPLOAD_BYTES when unset.
const DefaultMaxUpload = 20 * 1024 * 1024

type Processor interface {
	Process(ctx context.Context, up pipeline.Upload) (pipeline.Outcome, error)
}

type Options struct {
	Processor Processor
	Store     store.Store
	MaxUpload int64
	Debug     bool
}

type Server struct {
	proc      Processor
	store     store.Store
	maxUpload int64
}

// NewRouter builds a gin engine with recovery, request logging and CORS.
func NewRouter(opts Options) (*gin.Engine, error) {
	if opts.Processor == nil || opts.Store == nil {
		return nil, fmt.Errorf("http router requires a processor and a store")
	}
	if opts.MaxUpload <= 0 {
		opts.MaxUpload = DefaultMaxUpload
	}

	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		proc:      opts.Processor,
		store:     opts.Store,
		maxUpload: opts.MaxUpload,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggingMiddleware())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))
	engine.MaxMultipartMemory = opts.MaxUpload

	engine.GET("/health", s.health)

	v1 := engine.Group("/v1")
	v1.POST("/process", s.process)
	v1.GET("/transcriptions/:id", s.transcription)
	v1.GET("/transcriptions/:id/audio", s.transcriptionAudio)

	return engine, nil
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"took", time.Since(start),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "err", c.Errors.Last().Err)
		}
		log.Info("HTTP request", attrs...)
	}
}
