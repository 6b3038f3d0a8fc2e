package dhcp

// SyslogStreamConfig declares one remote syslog destination that
// transaction events should be forwarded to. It is pure configuration
// data — turning it into a live logging.SyslogClient and attaching it
// to a Manager via AddLogSink is the daemon's job, not this package's.
type SyslogStreamConfig struct {
	Host       string
	Port       int
	Protocol   string // "udp" (default), "tcp", "tls"
	Severity   string // "error", "warning", "info"; empty = no filter
	Categories []string
}

// LocalLogStreamConfig declares a local file destination for
// transaction events.
type LocalLogStreamConfig struct {
	Path       string
	MaxSize    int64
	MaxFiles   int
	Severity   string
	Categories []string
	Format     string // "structured" for one-JSON-object-per-line, "" for text
}
