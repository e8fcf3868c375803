package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lottied/internal/httpapi"
	"lottied/internal/manager"
)

type serveFlags struct {
	addr           string
	cacheDir       string
	libraryDir     string
	maxAnimations  int
	lruSize        int
	corsOrigins    string
	requestTimeout time.Duration
}

func newServeCmd(c *cli) *cobra.Command {
	f := &serveFlags{addr: envStr("LOTTIED_ADDR", ":8080")}
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API",
		Example: "  lottied serve --addr :8080 --library-dir ~/lottie",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, c, f)
		},
	}
	bindServeFlags(cmd, f)
	return cmd
}

func bindServeFlags(cmd *cobra.Command, f *serveFlags) {
	fl := cmd.Flags()
	fl.StringVar(&f.addr, "addr", f.addr, "HTTP listen address (defaults LOTTIED_ADDR or :8080)")
	fl.StringVar(&f.cacheDir, "cache-dir", "", "Resource cache directory")
	fl.StringVar(&f.libraryDir, "library-dir", "", "Directory of animations served under /library")
	fl.IntVar(&f.maxAnimations, "max-animations", 0, "Maximum live animations (0 = default)")
	fl.IntVar(&f.lruSize, "lru-size", 0, "Capacity of the completed task LRU (0 = default)")
	fl.StringVar(&f.corsOrigins, "cors-origins", "", "Comma separated CORS origins; enables CORS when set")
	fl.DurationVar(&f.requestTimeout, "request-timeout", 0, "Per-request timeout for loads and renders (0 = none)")
}

// apply overlays explicitly set flags onto the file configuration.
func (f *serveFlags) apply(cmd *cobra.Command, c *cli) {
	fl := cmd.Flags()
	if fl.Changed("addr") || c.cfg.Addr == "" {
		c.cfg.Addr = f.addr
	}
	if fl.Changed("cache-dir") {
		c.cfg.CacheDir = f.cacheDir
	}
	if fl.Changed("library-dir") {
		c.cfg.LibraryDir = f.libraryDir
	}
	if fl.Changed("max-animations") {
		c.cfg.MaxAnimations = f.maxAnimations
	}
	if fl.Changed("lru-size") {
		c.cfg.LRUSize = f.lruSize
	}
	if origins := splitCSV(f.corsOrigins); len(origins) > 0 {
		c.cfg.CORSEnabled = true
		c.cfg.CORSOrigins = origins
	}
}

func runServe(cmd *cobra.Command, c *cli, f *serveFlags) error {
	f.apply(cmd, c)
	cfg := c.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}

	mgr, err := manager.NewWithConfig(managerConfig(cfg, c.log))
	if err != nil {
		return err
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			c.log.Warn().Err(err).Msg("manager close")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpapi.SetLogger(c.log)
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetRequestTimeout(f.requestTimeout)
	if cfg.CORSEnabled {
		methods := cfg.CORSMethods
		if len(methods) == 0 {
			methods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
		}
		headers := cfg.CORSHeaders
		if len(headers) == 0 {
			headers = []string{"Content-Type", "X-Log-Level"}
		}
		httpapi.SetCORSOptions(true, cfg.CORSOrigins, methods, headers)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errc := make(chan error, 1)
	go func() {
		c.log.Info().Str("addr", cfg.Addr).Str("library", cfg.LibraryDir).Bool("renderer", mgr.Ready()).Msg("lottied listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err, ok := <-errc:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	c.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		c.log.Warn().Err(err).Msg("graceful shutdown")
	}
	return nil
}
