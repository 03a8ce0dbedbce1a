// Package server exposes the transcription operations over HTTP with a
// small Gin surface and a uniform response envelope.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/skillsenselab/scribe/asr"
	"github.com/skillsenselab/scribe/config"
	"github.com/skillsenselab/scribe/logger"
	"github.com/skillsenselab/scribe/transcript"
)

// Service is the orchestrator surface the HTTP handlers drive.
type Service interface {
	ProcessURL(ctx context.Context, url string, onProgress asr.ProgressFunc) (*transcript.Transcript, error)
	Transcribe(ctx context.Context, audioPath string, onProgress asr.ProgressFunc) (*transcript.Transcript, error)
	DownloadAudio(ctx context.Context, url string) (string, error)
	DownloadVideo(ctx context.Context, url string) (string, error)
}

// Server hosts the HTTP surface.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	log        *logger.Logger
}

// New creates a Server with all routes registered.
func New(cfg config.ServerConfig, svc Service, log *logger.Logger) *Server {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = logger.Nop()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine: engine,
		log:    log.WithComponent("server"),
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      engine,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 10 * time.Minute,
		},
	}
	s.registerRoutes(svc)
	return s
}

func (s *Server) registerRoutes(svc Service) {
	h := &handlers{svc: svc, log: s.log}

	s.engine.GET("/healthz", h.health)
	v1 := s.engine.Group("/v1")
	v1.POST("/transcriptions", h.createTranscription)
	v1.POST("/downloads/audio", h.downloadAudio)
	v1.POST("/downloads/video", h.downloadVideo)
}

// Handler returns the root handler, used directly in tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start begins serving and blocks until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.log.Info("http server listening", map[string]interface{}{"addr": s.httpServer.Addr})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
