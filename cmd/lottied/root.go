package main

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"lottied/internal/config"
	"lottied/internal/manager"
)

// cli carries what the persistent flags resolve to.
type cli struct {
	logLevel   string
	configPath string

	log zerolog.Logger
	cfg config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{logLevel: envStr("LOTTIED_LOG_LEVEL", "info")}
	root := &cobra.Command{
		Use:           "lottied",
		Short:         "Lottie frame scheduling service and tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", c.logLevel, "Log level: debug|info|warn|error (defaults LOTTIED_LOG_LEVEL or info)")
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Config file (.yaml, .json or .toml)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		c.log = newLogger(c.logLevel)
		if c.configPath == "" {
			return nil
		}
		cfg, err := config.Load(c.configPath)
		if err != nil {
			return err
		}
		c.cfg = cfg
		return nil
	}

	root.AddCommand(
		newServeCmd(c),
		newFetchCmd(c),
		newFrameCmd(c),
		newCacheCmd(c),
		newLibraryCmd(c),
	)
	return root
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(lvl).With().Timestamp().Logger()
}

// managerConfig maps file configuration onto manager tunables.
func managerConfig(cfg config.Config, log zerolog.Logger) manager.ManagerConfig {
	return manager.ManagerConfig{
		CacheDir:            cfg.CacheDir,
		LibraryDir:          cfg.LibraryDir,
		MaxQueues:           cfg.MaxQueues,
		QueueIdleTimeout:    cfg.QueueIdleTimeout(),
		LRUSize:             cfg.LRUSize,
		MaxAnimations:       cfg.MaxAnimations,
		ConnectTimeout:      cfg.ConnectTimeout(),
		ReadTimeout:         cfg.ReadTimeout(),
		DisableNetworkCache: !cfg.NetworkCache(),
		DefaultWidth:        cfg.DefaultWidth,
		DefaultHeight:       cfg.DefaultHeight,
		LimitFps:            cfg.LimitFps,
		ScreenRefreshRate:   cfg.ScreenRefreshRate,
		Log:                 log,
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
