// Command contactsyncd runs the contact bridge on its Unix socket.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/pior/contactsync"
	"github.com/pior/contactsync/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "contactsyncd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "TOML configuration file")
	socketPath := flag.String("socket", "", "override the socket path")
	metricsAddr := flag.String("metrics", "", "override the metrics listen address")
	flag.Parse()

	logCfg, err := logging.FromEnv()
	if err != nil {
		return fmt.Errorf("logging config: %w", err)
	}
	log := logging.New(os.Stderr, logCfg)

	cfg := contactsync.DefaultConfig()
	if *configPath != "" {
		if cfg, err = contactsync.LoadConfig(*configPath); err != nil {
			return err
		}
	}
	if *socketPath != "" {
		cfg.SocketPath = *socketPath
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	store, closeStore, err := openStore(context.Background(), cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cfg.Logger = log
	cfg.Registerer = registry
	if cfg.Interactive {
		cfg.Confirmer = &terminalConfirmer{}
		cfg.FolderResolver = &terminalFolderPicker{store: store}
	}

	server, err := contactsync.NewServer(store, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := server.ListenAndServe(ctx)
		switch {
		case errors.Is(err, contactsync.ErrSocketInUse):
			log.Warn().Err(err).Msg("bridge already running, not serving")
			return errAlreadyRunning
		case errors.Is(err, contactsync.ErrServerClosed):
			return nil
		}
		return err
	})

	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return serveHTTP(ctx, cfg.MetricsAddr, newRouter(server, registry, log), log)
		})
	}

	err = g.Wait()
	server.Close()
	if errors.Is(err, errAlreadyRunning) {
		return nil
	}

	st := server.Stats()
	log.Info().
		Uint64("sessions", st.SessionsAccepted).
		Uint64("rejected", st.SessionsRejected).
		Uint64("commands", st.Commands).
		Uint64("failures", st.Failures).
		Msg("shutdown complete")
	return err
}

// errAlreadyRunning stops the group when another instance owns the socket.
var errAlreadyRunning = errors.New("bridge already running")
