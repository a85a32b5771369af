package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"nodewatch/internal/basenode"
	"nodewatch/internal/config"
	"nodewatch/internal/explorer"
	"nodewatch/internal/health"
	"nodewatch/internal/network"
	"nodewatch/internal/node"
	"nodewatch/internal/orphan"
	"nodewatch/internal/protocol"
	"nodewatch/internal/syncer"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

func main() {
	writeConfig := flag.String("write-config", "", "write the effective configuration as YAML to this path and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load config")
	}
	setupLogging(cfg)

	if *writeConfig != "" {
		if err := config.WriteFile(*writeConfig, cfg); err != nil {
			logrus.WithError(err).Fatal("Failed to write config")
		}
		logrus.WithField("path", *writeConfig).Info("Configuration written")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	client := basenode.NewFromHostPort(cfg.NodeHost, cfg.NodeGRPCPort)
	checkVersion(ctx, client, cfg)

	monitor := health.NewMonitor(client, health.Config{
		NodeType: cfg.NodeType,
		Network:  cfg.Network,
		BasePath: cfg.BasePath,
	})

	coordinator := syncer.New(client, syncer.Config{
		RequiredPeers: cfg.RequiredSyncPeers,
		Interval:      cfg.SyncInterval,
		RetryDelay:    cfg.SyncRetryDelay,
	})

	var explorerOpts []explorer.Option
	if cfg.ExplorerURL != "" {
		explorerOpts = append(explorerOpts, explorer.WithBaseURL(cfg.ExplorerURL))
	}
	detector := orphan.New(client, explorer.New(explorerOpts...), cfg.Network)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps := node.Deps{
		Client:   client,
		Monitor:  monitor,
		Syncer:   coordinator,
		Orphan:   detector,
		Registry: registry,
	}

	var publisher *network.StatusPublisher
	if cfg.NATSURL != "" {
		publisher, err = network.NewStatusPublisher(network.PubSubConfig{
			URL:      cfg.NATSURL,
			Subject:  cfg.NATSSubject,
			Network:  cfg.Network,
			NodeType: cfg.NodeType,
			Name:     "nodewatch-" + string(cfg.Network),
		})
		if err != nil {
			logrus.WithError(err).Fatal("Failed to connect to NATS")
		}
		deps.Publisher = publisher
	}

	supervisor := node.NewSupervisor(node.Config{
		Network:            cfg.Network,
		NodeType:           cfg.NodeType,
		HealthInterval:     cfg.HealthInterval,
		HealthTimeout:      cfg.HealthTimeout,
		UnhealthyThreshold: cfg.UnhealthyThreshold,
		ListenAddr:         cfg.ListenAddr,
	}, deps)

	if err := coordinator.Start(ctx); err != nil {
		logrus.WithError(err).Fatal("Failed to start sync")
	}
	if err := supervisor.Start(ctx); err != nil {
		logrus.WithError(err).Fatal("Failed to start supervisor")
	}

	// Wait for shutdown signal
	<-sigChan
	logrus.Info("Shutting down...")

	if err := supervisor.Stop(); err != nil {
		logrus.WithError(err).Error("Error during shutdown")
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logrus.WithError(err).Debug("Failed to close NATS connection")
		}
	}
}

func setupLogging(cfg *config.Config) {
	// validated by config.Load
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	logrus.SetLevel(level)

	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

// checkVersion refuses to supervise a node older than the configured
// minimum. An unreachable node is only logged.
func checkVersion(ctx context.Context, client *basenode.Client, cfg *config.Config) {
	if cfg.MinNodeVersion == "" {
		return
	}
	gate, err := protocol.NewVersionGate(cfg.MinNodeVersion)
	if err != nil {
		logrus.WithError(err).Fatal("Invalid minimum node version")
	}

	checkCtx, cancel := context.WithTimeout(ctx, cfg.HealthTimeout)
	defer cancel()

	v, err := client.CheckVersion(checkCtx, gate)
	switch {
	case err == nil:
		logrus.WithField("version", v).Info("Base node version accepted")
	case errors.Is(err, basenode.ErrVersionTooOld):
		logrus.WithError(err).Fatal("Base node is too old")
	default:
		logrus.WithError(err).Warn("Could not check base node version")
	}
}
