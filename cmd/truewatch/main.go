package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"truewatch/internal/config"
	"truewatch/internal/federation"
	"truewatch/internal/identity"
	"truewatch/internal/node"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	logger.SetLevel(level)

	credPath := cfg.CredentialPath
	if credPath == "" {
		if credPath, err = identity.DefaultPath(); err != nil {
			logger.Fatalf("Failed to resolve credential path: %v", err)
		}
	}
	cred, err := identity.Load(credPath)
	if err != nil {
		logger.Fatalf("Failed to load credential: %v", err)
	}
	logger.WithField("node_id", cred.NodeID).Info("loaded federation credential")

	client := federation.NewClient(cfg, cred, logger)
	n := node.NewNode(cfg, cred, client, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := n.Start(ctx); err != nil {
		logger.Fatalf("Failed to start node: %v", err)
	}

	<-ctx.Done()
	logger.Info("Shutting down...")

	// Leave announcement happens inside Stop, before the drain.
	n.Stop()
}
