package config

import (
	"testing"

	"github.com/nexthop-io/dhcpd/pkg/dhcp"
)

func TestCompileConfigNoSubnets(t *testing.T) {
	tree, err := NewParser(`system {
    host-name dhcpd1;
    default-lease-time 7200;
}`).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	_, err = CompileConfig(tree)
	if err == nil {
		t.Fatal("expected error for config with no subnets")
	}
}

func TestCompileSystemBlock(t *testing.T) {
	tree, err := NewParser(`system {
    host-name dhcpd1;
    default-lease-time 7200;
    min-lease-time 300;
    max-lease-time 86400;
    syslog host 10.0.0.9 port 514 severity info category lease;
    local-log path /var/log/dhcpd/dhcpd.log max-size 1048576 max-files 3;
}`).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg := dhcp.NewConfig("")
	node := tree.FindChild("system")
	if node == nil {
		t.Fatal("system node not found")
	}
	if err := compileSystem(node, cfg); err != nil {
		t.Fatalf("compileSystem: %v", err)
	}

	if cfg.Hostname != "dhcpd1" {
		t.Errorf("Hostname = %q, want dhcpd1", cfg.Hostname)
	}
	if cfg.DefaultLeaseTime != 7200 {
		t.Errorf("DefaultLeaseTime = %d, want 7200", cfg.DefaultLeaseTime)
	}
	if cfg.MinLeaseTime != 300 || cfg.MaxLeaseTime != 86400 {
		t.Errorf("lease bounds = [%d,%d], want [300,86400]", cfg.MinLeaseTime, cfg.MaxLeaseTime)
	}
	if len(cfg.SyslogStreams) != 1 {
		t.Fatalf("SyslogStreams = %d, want 1", len(cfg.SyslogStreams))
	}
	s := cfg.SyslogStreams[0]
	if s.Host != "10.0.0.9" || s.Port != 514 || s.Severity != "info" {
		t.Errorf("syslog stream = %+v", s)
	}
	if len(s.Categories) != 1 || s.Categories[0] != "lease" {
		t.Errorf("syslog categories = %v", s.Categories)
	}

	if cfg.LocalLog == nil {
		t.Fatal("LocalLog not set")
	}
	if cfg.LocalLog.Path != "/var/log/dhcpd/dhcpd.log" || cfg.LocalLog.MaxSize != 1048576 || cfg.LocalLog.MaxFiles != 3 {
		t.Errorf("local log = %+v", cfg.LocalLog)
	}
}

func TestCompileLocalLogFormat(t *testing.T) {
	tree, err := NewParser(`system {
    local-log path /var/log/dhcpd/dhcpd.log format structured;
}`).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg := dhcp.NewConfig("")
	if err := compileSystem(tree.FindChild("system"), cfg); err != nil {
		t.Fatalf("compileSystem: %v", err)
	}
	if cfg.LocalLog.Format != "structured" {
		t.Errorf("Format = %q, want structured", cfg.LocalLog.Format)
	}
}

func TestCompileLocalLogFormatInvalid(t *testing.T) {
	tree, err := NewParser(`system {
    local-log path /var/log/dhcpd/dhcpd.log format xml;
}`).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg := dhcp.NewConfig("")
	if err := compileSystem(tree.FindChild("system"), cfg); err == nil {
		t.Fatal("expected error for invalid format value")
	}
}

func syslogLeaf(t *testing.T, body string) *Node {
	t.Helper()
	tree, err := NewParser("system { " + body + " }").Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	sys := tree.FindChild("system")
	if sys == nil {
		t.Fatal("system node not found")
	}
	leaf := sys.FindChild("syslog")
	if leaf == nil {
		t.Fatal("syslog leaf not found")
	}
	return leaf
}

func TestCompileSyslogStreamDefaults(t *testing.T) {
	leaf := syslogLeaf(t, "syslog host 10.1.1.1;")
	stream, err := compileSyslogStream(leaf)
	if err != nil {
		t.Fatalf("compileSyslogStream: %v", err)
	}
	if stream.Protocol != "udp" {
		t.Errorf("Protocol = %q, want udp", stream.Protocol)
	}
	if stream.Port != 514 {
		t.Errorf("Port = %d, want 514 (default)", stream.Port)
	}
}

func TestCompileSyslogStreamMissingHost(t *testing.T) {
	leaf := syslogLeaf(t, "syslog port 514;")
	if _, err := compileSyslogStream(leaf); err == nil {
		t.Fatal("expected error for syslog stream with no host")
	}
}

func TestMergeOptionRepeatsRouters(t *testing.T) {
	def, ok := ResolveOption("router")
	if !ok {
		t.Fatal("router should resolve")
	}

	opt, err := mergeOption(nil, def, "10.0.0.1")
	if err != nil {
		t.Fatalf("mergeOption: %v", err)
	}
	opt, err = mergeOption(opt, def, "10.0.0.2")
	if err != nil {
		t.Fatalf("mergeOption: %v", err)
	}
	if len(opt.Value) != 8 {
		t.Fatalf("merged router option has %d bytes, want 8", len(opt.Value))
	}
}

func TestMergeOptionNonRepeatableOverwrites(t *testing.T) {
	def, ok := ResolveOption("subnet-mask")
	if !ok {
		t.Fatal("subnet-mask should resolve")
	}

	first, err := mergeOption(nil, def, "255.255.255.0")
	if err != nil {
		t.Fatalf("mergeOption: %v", err)
	}
	second, err := mergeOption(first, def, "255.255.0.0")
	if err != nil {
		t.Fatalf("mergeOption: %v", err)
	}
	if len(second.Value) != 4 {
		t.Fatalf("subnet-mask option has %d bytes, want 4 (non-repeatable overwrite)", len(second.Value))
	}
}

func TestValidateConfigRangeOutsideNetwork(t *testing.T) {
	tree, err := NewParser(`interfaces {
    eth0 {
        subnet 10.0.0.0/24 {
            range low 10.0.1.10;
            range high 10.0.1.50;
        }
    }
}`).Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg := dhcp.NewConfig("")
	node := tree.FindChild("interfaces")
	if node == nil {
		t.Fatal("interfaces node not found")
	}

	ifaceNode := node.Children[0]
	subnetNode := ifaceNode.FindChild("subnet")
	if subnetNode == nil {
		t.Fatal("subnet node not found")
	}

	network, err := parseSubnetCIDR(subnetNode)
	if err != nil {
		t.Fatalf("parseSubnetCIDR: %v", err)
	}
	rng, err := parseSubnetRange(subnetNode)
	if err != nil {
		t.Fatalf("parseSubnetRange: %v", err)
	}

	sub := dhcp.NewSubnet(network, dhcp.Interface{Name: "eth0"}, rng, nil, nil)
	cfg.Subnets = append(cfg.Subnets, sub)

	warnings := ValidateConfig(cfg)
	if len(warnings) == 0 {
		t.Fatal("expected a warning for a range outside the declared network")
	}
}
