// Package httpapi exposes the file operations over HTTP. The session token
// travels in the X-Token header; statuses and error payloads follow the
// fixed contract of the service layer.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"filevault/internal/logging"
	"filevault/internal/server/repositories/files"
	"filevault/internal/server/services"
)

// TokenHeader is the request header carrying the opaque session token.
const TokenHeader = "X-Token"

type Server struct {
	address string
	files   *services.FileService
	stats   files.Repository
	ping    func(ctx context.Context) error
	logger  logging.Logger
	engine  *gin.Engine
}

func NewServer(address string, fs *services.FileService, stats files.Repository, ping func(ctx context.Context) error, logger logging.Logger) *Server {
	s := &Server{
		address: address,
		files:   fs,
		stats:   stats,
		ping:    ping,
		logger:  logger.With("module", "http_server"),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.Default())

	engine.GET("/status", s.getStatus)
	engine.GET("/stats", s.getStats)

	engine.POST("/files", s.postUpload)
	engine.GET("/files", s.getIndex)
	engine.GET("/files/:id", s.getShow)
	engine.PUT("/files/:id/publish", s.putPublish)
	engine.PUT("/files/:id/unpublish", s.putUnpublish)
	engine.GET("/files/:id/data", s.getFile)

	s.engine = engine
	return s
}

// Handler exposes the routing tree, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {

	srv := &http.Server{
		Addr:         s.address,
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
