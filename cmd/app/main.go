// Command app runs the AI creation gateway's HTTP server.
package main

import (
	"log"

	"github.com/creatorplatform/gateway-core/internal/bootstrap"
	"github.com/creatorplatform/gateway-core/pkg"
)

func main() {
	var cfg bootstrap.Config
	if err := pkg.SetConfigFromEnvVars(&cfg); err != nil {
		log.Fatalf("load config: %v", err)
	}

	svc, err := bootstrap.NewService(cfg)
	if err != nil {
		log.Fatalf("wire service: %v", err)
	}

	server := bootstrap.NewServer(cfg, svc)

	if err := server.Run(); err != nil {
		svc.Logger.Errorf("server exited: %v", err)
		log.Fatalf("server exited: %v", err)
	}
}
