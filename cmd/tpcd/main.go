package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/veesix-networks/tpc/internal/engine"
	"github.com/veesix-networks/tpc/pkg/component"
	"github.com/veesix-networks/tpc/pkg/config"
	"github.com/veesix-networks/tpc/pkg/events/local"
	"github.com/veesix-networks/tpc/pkg/logger"
	"github.com/veesix-networks/tpc/pkg/version"
	_ "github.com/veesix-networks/tpc/plugins/all"
)

func main() {
	configPath := flag.String("config", "configs/tpc.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	components := make(map[string]logger.LogLevel, len(cfg.Logging.Components))
	for name, level := range cfg.Logging.Components {
		components[name] = logger.LogLevel(level)
	}
	logger.Configure(cfg.Logging.Format, logger.LogLevel(cfg.Logging.Level), components)

	mainLog := logger.Get(logger.Main)
	mainLog.Info("Starting tpc", "version", version.Full(), "app", cfg.App.Name, "driver", cfg.Southbound.Driver)

	ctx := context.Background()

	sb, err := openSouthbound(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to open southbound: %v", err)
	}

	eventBus := local.NewBus()
	if len(cfg.Logging.EventDebug) > 0 {
		eventBus.SetDebugTopics(cfg.Logging.EventDebug)
	}

	deps := component.Dependencies{
		Config:     cfg,
		EventBus:   eventBus,
		Southbound: sb,
	}

	eng, err := engine.New(deps)
	if err != nil {
		log.Fatalf("Failed to create engine: %v", err)
	}
	deps.Service = eng

	orch := component.NewOrchestrator()
	orch.Register(eng)

	pluginComponents, err := component.LoadAll(deps)
	if err != nil {
		log.Fatalf("Failed to load plugin components: %v", err)
	}
	for _, comp := range pluginComponents {
		mainLog.Info("Loaded plugin component", "name", comp.Name())
		orch.Register(comp)
	}

	if err := orch.Start(ctx); err != nil {
		log.Fatalf("Failed to start components: %v", err)
	}

	mainLog.Info("tpc started successfully", "app_id", eng.AppID().UUID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	mainLog.Info("Shutting down tpc...")

	if err := orch.Stop(ctx); err != nil {
		mainLog.Error("Error stopping components", "error", err)
	}

	if err := eventBus.Close(); err != nil {
		mainLog.Error("Error closing event bus", "error", err)
	}

	if err := sb.Close(); err != nil {
		mainLog.Error("Error closing southbound", "error", err)
	}

	mainLog.Info("tpc stopped")
}
