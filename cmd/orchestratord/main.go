package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/filipexyz/orchestrator/internal/config"
	"github.com/filipexyz/orchestrator/internal/logging"
	"github.com/filipexyz/orchestrator/internal/server"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kardianos/service"
)

const (
	serviceName        = "orchestratord"
	serviceDisplayName = "Hub Orchestrator"
	serviceDescription = "Runs the per-user WebSocket hub orchestrator"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "install", "uninstall", "start", "stop", "restart":
			runServiceControl(os.Args[1])
			return
		}
	}
	run()
}

func run() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logging.Setup(cfg)

	db, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		log.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	log.Info("connected to database")

	srv, err := server.New(cfg, db, log)
	if err != nil {
		log.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	go func() {
		log.Info("starting server", "port", cfg.Port)
		if err := srv.Start(); err != nil {
			log.Error("server error", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("shutdown complete")
}

// serviceProgram adapts run() to kardianos/service.Interface so the
// orchestrator can also install itself as a background OS service —
// the same shape as the operator bridge's own service wrapper, applied
// here to the hub process rather than the local connect bridge.
type serviceProgram struct {
	cancel context.CancelFunc
}

func (p *serviceProgram) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	go func() {
		<-ctx.Done()
	}()
	go run()
	return nil
}

func (p *serviceProgram) Stop(s service.Service) error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

func runServiceControl(action string) {
	svcConfig := &service.Config{
		Name:        serviceName,
		DisplayName: serviceDisplayName,
		Description: serviceDescription,
	}

	prg := &serviceProgram{}
	s, err := service.New(prg, svcConfig)
	if err != nil {
		fmt.Fprintln(os.Stderr, "create service:", err)
		os.Exit(1)
	}

	switch action {
	case "install":
		err = s.Install()
	case "uninstall":
		err = s.Uninstall()
	case "start":
		err = s.Start()
	case "stop":
		err = s.Stop()
	case "restart":
		err = s.Restart()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s service: %v\n", action, err)
		os.Exit(1)
	}
	fmt.Printf("service %s: ok\n", action)
}
