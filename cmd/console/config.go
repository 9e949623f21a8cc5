package main

import (
	"flag"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/clusterdeck/console/pkg/config"
	"github.com/clusterdeck/console/pkg/logging"
)

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

// parseConsoleConfig loads the YAML config file (if any) and applies flag
// and environment overrides. Priority: flags > env > file > defaults.
func parseConsoleConfig(logger *logging.ColoredLogger) *config.Config {
	cfgPath := flag.String("config", getEnvDefault("CONSOLE_CONFIG", ""), "Path to YAML config file")
	addr := flag.String("addr", getEnvDefault("CONSOLE_ADDR", ""), "HTTP listen address (e.g., :7420)")
	kubeconfig := flag.String("kubeconfig", getEnvDefault("CONSOLE_KUBECONFIG", ""), "Path to kubeconfig; empty uses in-cluster config")
	namespaces := flag.String("watch-namespaces", getEnvDefault("CONSOLE_WATCH_NAMESPACES", ""), "Comma-separated namespaces for the cluster watcher; empty watches all")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		loaded, err := config.LoadFromFile(*cfgPath)
		if err != nil {
			logger.ComponentError(logging.ComponentGeneral, "failed to load config file", zap.Error(err))
			os.Exit(1)
		}
		cfg = loaded
	}

	if *addr != "" {
		cfg.Server.ListenAddr = *addr
	}
	if *kubeconfig != "" {
		cfg.Cluster.Kubeconfig = *kubeconfig
	}
	if ns := strings.TrimSpace(*namespaces); ns != "" {
		var watched []string
		for _, part := range strings.Split(ns, ",") {
			if val := strings.TrimSpace(part); val != "" {
				watched = append(watched, val)
			}
		}
		cfg.Cluster.WatchNamespaces = watched
	}

	logger.ComponentInfo(logging.ComponentGeneral, "Loaded console configuration",
		zap.String("addr", cfg.Server.ListenAddr),
		zap.String("kubeconfig", cfg.Cluster.Kubeconfig),
		zap.Strings("watch_namespaces", cfg.Cluster.WatchNamespaces),
		zap.Int("tail_lines", cfg.Streams.TailLines),
	)

	return cfg
}
