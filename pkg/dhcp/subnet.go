package dhcp

import (
	"log/slog"
	"net"
	"net/netip"
)

// Interface identifies the network interface a subnet is bound to.
type Interface struct {
	Name string
	MAC  net.HardwareAddr
	Addr netip.Addr // the server's IPv4 address on this interface
}

// Subnet is one configured address pool bound to one interface: its
// network, its usable range, per-subnet option defaults, the link it
// sends and receives frames on, and its lease store.
type Subnet struct {
	Network   netip.Prefix
	Interface Interface
	Range     AddrRange
	Options   []Option // server defaults, offered when a client requests them
	Link      Link
	Leases    *LeaseDb
	Logger    *slog.Logger
}

// NewSubnet builds a Subnet with a fresh lease store and a logger
// scoped to its interface name.
func NewSubnet(network netip.Prefix, iface Interface, r AddrRange, opts []Option, link Link) *Subnet {
	return &Subnet{
		Network:   network,
		Interface: iface,
		Range:     r,
		Options:   opts,
		Link:      link,
		Leases:    NewLeaseDb(),
		Logger:    slog.Default().With("interface", iface.Name, "subnet", network.String()),
	}
}

// Config is the global server configuration: the subnets it serves and
// the lease-time policy applied across all of them.
type Config struct {
	Hostname         string
	Subnets          []*Subnet
	DefaultLeaseTime uint32
	MinLeaseTime     uint32
	MaxLeaseTime     uint32
	T1Ratio          float64
	T2Ratio          float64

	// SyslogStreams and LocalLog are declarative: the daemon turns them
	// into live logging.SyslogClient / logging.LocalLogWriter sinks and
	// attaches them to the Manager after a successful compile.
	SyslogStreams []SyslogStreamConfig
	LocalLog      *LocalLogStreamConfig
}

// NewConfig returns a Config with the RFC-recommended T1/T2 ratios.
func NewConfig(hostname string) *Config {
	return &Config{
		Hostname: hostname,
		T1Ratio:  0.5,
		T2Ratio:  0.875,
	}
}

// DefaultLeaseTimeFor returns the default lease time applied when a
// client doesn't request one (or requests one outside policy bounds).
// Subnets do not currently override the global default; the parameter
// is kept so a future per-subnet override doesn't change callers.
func (c *Config) DefaultLeaseTimeFor(_ *Subnet) uint32 {
	return c.DefaultLeaseTime
}

// LeaseTimeGood reports whether t falls within the configured
// min/max bounds for client-requested lease times.
func (c *Config) LeaseTimeGood(_ *Subnet, t uint32) bool {
	if c.MinLeaseTime != 0 && t < c.MinLeaseTime {
		return false
	}
	if c.MaxLeaseTime != 0 && t > c.MaxLeaseTime {
		return false
	}
	return true
}
