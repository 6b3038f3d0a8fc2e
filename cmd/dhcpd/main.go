// dhcpd is a Junos-style DHCPv4 server (RFC 2131/2132).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/nexthop-io/dhcpd/pkg/daemon"
	"github.com/nexthop-io/dhcpd/pkg/logging"
)

func main() {
	configFile := flag.String("config", "/etc/dhcpd/dhcpd.conf", "configuration file path")
	apiAddr := flag.String("api-addr", "127.0.0.1:8080", "HTTP admin API listen address (empty to disable)")
	verbosity := flag.String("verbosity", "info", "log level: debug, info, warn, error")
	noCLI := flag.Bool("no-cli", false, "run without the interactive CLI shell")
	flag.Parse()

	level, err := parseLevel(*verbosity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dhcpd: %v\n", err)
		os.Exit(1)
	}

	base := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	handler := logging.NewSyslogSlogHandler(base)
	defer handler.Close()
	slog.SetDefault(slog.New(handler))

	d := daemon.New(daemon.Options{
		ConfigFile: *configFile,
		APIAddr:    *apiAddr,
		NoCLI:      *noCLI,
		LogHandler: handler,
	})

	if err := d.Run(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "dhcpd: %v\n", err)
		os.Exit(1)
	}
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown verbosity %q (want debug, info, warn, or error)", s)
	}
}
