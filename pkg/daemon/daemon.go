// Package daemon implements the dhcpd daemon lifecycle.
package daemon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nexthop-io/dhcpd/pkg/api"
	"github.com/nexthop-io/dhcpd/pkg/cli"
	"github.com/nexthop-io/dhcpd/pkg/configstore"
	"github.com/nexthop-io/dhcpd/pkg/dhcp"
	"github.com/nexthop-io/dhcpd/pkg/logging"
)

// Options configures the daemon.
type Options struct {
	ConfigFile string
	APIAddr    string // empty = no HTTP API
	NoCLI      bool   // set to true to run without the interactive shell

	// LogHandler, if set, receives the same syslog clients configured for
	// transaction-event forwarding so daemon-level log records (not just
	// DHCP transactions) reach the configured syslog streams.
	LogHandler *logging.SyslogSlogHandler
}

// Daemon is the main dhcpd daemon: it owns the config store, the running
// dhcp.Manager, and the optional HTTP API and interactive CLI built on
// top of them.
type Daemon struct {
	opts  Options
	store *configstore.Store
	mgr   *dhcp.Manager
}

// New creates a new Daemon.
func New(opts Options) *Daemon {
	if opts.ConfigFile == "" {
		opts.ConfigFile = "/etc/dhcpd/dhcpd.conf"
	}

	return &Daemon{
		opts:  opts,
		store: configstore.New(opts.ConfigFile),
	}
}

// Run starts the daemon and blocks until shutdown.
func (d *Daemon) Run(ctx context.Context) error {
	slog.Info("starting dhcpd", "config", d.opts.ConfigFile, "pid", os.Getpid())

	if err := d.store.Load(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("configuration loaded", "file", d.opts.ConfigFile)

	cfg := d.store.ActiveConfig()
	if cfg == nil {
		return fmt.Errorf("no active configuration (commit one with the CLI, then restart)")
	}

	d.mgr = dhcp.NewManager(cfg)

	eventBuf := logging.NewEventBuffer(1000)
	d.mgr.SetEventBuffer(eventBuf)

	closers, syslogClients := attachLogSinks(d.mgr, cfg)
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	if d.opts.LogHandler != nil && len(syslogClients) > 0 {
		// SyslogClient.Send is mutex-guarded, so sharing the same clients
		// between transaction-event forwarding and daemon-level logging
		// is safe.
		d.opts.LogHandler.SetClients(syslogClients)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := d.mgr.Run(ctx); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("dhcp manager: %w", err)
		}
	}()

	if d.opts.APIAddr != "" {
		apiServer := api.NewServer(api.Config{
			Addr:     d.opts.APIAddr,
			DHCP:     d.mgr,
			EventBuf: eventBuf,
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := apiServer.Run(ctx); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("api server: %w", err)
			}
		}()
		slog.Info("api server listening", "addr", d.opts.APIAddr)
	}

	var runErr error
	if !d.opts.NoCLI {
		shell := cli.New(d.store, d.mgr)
		shellErrCh := make(chan error, 1)
		go func() { shellErrCh <- shell.Run() }()

		select {
		case err := <-shellErrCh:
			if err != nil {
				runErr = fmt.Errorf("CLI: %w", err)
			}
		case err := <-errCh:
			runErr = err
		case <-ctx.Done():
			slog.Info("signal received, shutting down")
		}
	} else {
		select {
		case err := <-errCh:
			runErr = err
		case <-ctx.Done():
			slog.Info("signal received, shutting down")
		}
	}

	stop()
	wg.Wait()

	slog.Info("shutdown complete")
	return runErr
}

// attachLogSinks turns a compiled config's declarative syslog/local-log
// streams into live sinks and registers them with the manager. Each
// returned io.Closer must be closed on shutdown. The second return value
// is the subset of sinks that are syslog clients, for reuse by the
// daemon-level slog handler.
func attachLogSinks(mgr *dhcp.Manager, cfg *dhcp.Config) ([]io.Closer, []*logging.SyslogClient) {
	var closers []io.Closer
	var syslogClients []*logging.SyslogClient

	for _, stream := range cfg.SyslogStreams {
		client, err := logging.NewSyslogClientTransport(stream.Host, stream.Port, "", stream.Protocol, nil)
		if err != nil {
			slog.Warn("failed to create syslog client", "host", stream.Host, "port", stream.Port, "err", err)
			continue
		}
		if stream.Severity != "" {
			client.MinSeverity = logging.ParseSeverity(stream.Severity)
		}
		for _, cat := range stream.Categories {
			client.Categories |= logging.ParseCategory(cat)
		}
		mgr.AddLogSink(client)
		closers = append(closers, client)
		syslogClients = append(syslogClients, client)
		slog.Info("syslog stream configured", "host", stream.Host, "port", stream.Port, "protocol", stream.Protocol)
	}

	if cfg.LocalLog != nil {
		writer, err := logging.NewLocalLogWriter(logging.LocalLogConfig{
			Path:     cfg.LocalLog.Path,
			MaxSize:  cfg.LocalLog.MaxSize,
			MaxFiles: cfg.LocalLog.MaxFiles,
		})
		if err != nil {
			slog.Warn("failed to open local log", "path", cfg.LocalLog.Path, "err", err)
		} else {
			if cfg.LocalLog.Severity != "" {
				writer.MinSeverity = logging.ParseSeverity(cfg.LocalLog.Severity)
			}
			for _, cat := range cfg.LocalLog.Categories {
				writer.Categories |= logging.ParseCategory(cat)
			}
			writer.Format = cfg.LocalLog.Format
			mgr.AddLogSink(writer)
			closers = append(closers, writer)
			slog.Info("local log configured", "path", cfg.LocalLog.Path)
		}
	}

	return closers, syslogClients
}
