package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/amankumarsingh77/transcodebot/internal/config"
	"github.com/amankumarsingh77/transcodebot/internal/jobs"
	"github.com/amankumarsingh77/transcodebot/internal/workspace"
	"github.com/amankumarsingh77/transcodebot/pkg/logger"
)

const (
	maxHeaderBytes = 1 << 20
	ctxTimeout     = 5
)

type Server struct {
	echo       *echo.Echo
	cfg        *config.Config
	scheduler  jobs.Scheduler
	workspaces *workspace.Manager
	logger     logger.Logger
}

func NewServer(cfg *config.Config, scheduler jobs.Scheduler, workspaces *workspace.Manager, logger logger.Logger) *Server {
	return &Server{
		echo:       echo.New(),
		cfg:        cfg,
		scheduler:  scheduler,
		workspaces: workspaces,
		logger:     logger,
	}
}

func (s *Server) Run() error {
	s.MapHandlers(s.echo)
	s.echo.Server.MaxHeaderBytes = maxHeaderBytes
	s.echo.HideBanner = true

	server := &http.Server{
		Addr:         s.cfg.Server.Port,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		if err := s.echo.StartServer(server); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("error starting Server: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, os.Interrupt)
	<-quit

	ctx, shutdown := context.WithTimeout(context.Background(), time.Second*ctxTimeout)
	defer shutdown()
	s.logger.Infof("shutting down server")
	return s.echo.Server.Shutdown(ctx)
}
