package bootstrap

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/creatorplatform/gateway-core/internal/adapters/http/in"
	"github.com/creatorplatform/gateway-core/pkg/mlog"
)

// Server wraps the fiber app and the address it listens on.
type Server struct {
	app           *fiber.App
	serverAddress string
	logger        mlog.Logger
}

// NewServer builds the fiber app from the wired handlers and returns a
// Server ready to Run.
func NewServer(cfg Config, svc *Service) *Server {
	app := in.NewRouter(svc.Logger, *svc.Router)

	return &Server{app: app, serverAddress: cfg.ServerAddress, logger: svc.Logger}
}

// Run starts the HTTP server and blocks until SIGINT/SIGTERM, then drains
// in-flight requests for up to 10s before returning.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Infof("listening on %s", s.serverAddress)
		errCh <- s.app.Listen(s.serverAddress)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		s.logger.Info("shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.app.ShutdownWithContext(ctx)
	}
}
