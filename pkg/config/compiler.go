package config

import (
	"fmt"
	"net/netip"
	"strconv"

	"github.com/nexthop-io/dhcpd/pkg/dhcp"
)

// CompileConfig converts a parsed ConfigTree into a ready-to-run
// dhcp.Config. Compilation is all-or-nothing: the first error aborts
// and returns nil, so a caller (configstore.Store.Commit) never ends
// up with a partially-applied configuration.
func CompileConfig(tree *ConfigTree) (*Config, error) {
	cfg := dhcp.NewConfig("")

	for _, node := range tree.Children {
		switch node.Name() {
		case "system":
			if err := compileSystem(node, cfg); err != nil {
				return nil, fmt.Errorf("system: %w", err)
			}
		case "interfaces":
			if err := compileInterfaces(node, cfg); err != nil {
				return nil, fmt.Errorf("interfaces: %w", err)
			}
		}
	}

	if cfg.DefaultLeaseTime == 0 {
		cfg.DefaultLeaseTime = 3600
	}
	if warnings := ValidateConfig(cfg); len(warnings) > 0 {
		return nil, fmt.Errorf("%d configuration error(s): %v", len(warnings), warnings)
	}

	return cfg, nil
}

// ValidateConfig performs cross-reference validation on a compiled
// config, returning a description of every problem found. An empty
// result means the config is safe to activate.
func ValidateConfig(cfg *Config) []string {
	var errs []string

	if len(cfg.Subnets) == 0 {
		errs = append(errs, "no subnets configured")
	}
	seen := make(map[string]bool)
	for _, sub := range cfg.Subnets {
		key := sub.Network.String()
		if seen[key] {
			errs = append(errs, fmt.Sprintf("subnet %s declared more than once", key))
		}
		seen[key] = true

		if !sub.Range.Low.IsValid() || !sub.Range.High.IsValid() {
			errs = append(errs, fmt.Sprintf("subnet %s: range not fully specified", key))
			continue
		}
		if !sub.Network.Contains(sub.Range.Low) || !sub.Network.Contains(sub.Range.High) {
			errs = append(errs, fmt.Sprintf("subnet %s: range %s-%s falls outside the network",
				key, sub.Range.Low, sub.Range.High))
		}
		if sub.Range.Low.Compare(sub.Range.High) > 0 {
			errs = append(errs, fmt.Sprintf("subnet %s: range low %s exceeds range high %s",
				key, sub.Range.Low, sub.Range.High))
		}
	}
	if cfg.MinLeaseTime != 0 && cfg.MaxLeaseTime != 0 && cfg.MinLeaseTime > cfg.MaxLeaseTime {
		errs = append(errs, "min-lease-time exceeds max-lease-time")
	}

	return errs
}

func compileSystem(node *Node, cfg *Config) error {
	for _, child := range node.Children {
		switch child.Name() {
		case "host-name":
			if len(child.Keys) >= 2 {
				cfg.Hostname = child.Keys[1]
			}
		case "default-lease-time":
			v, err := leafUint32(child, "default-lease-time")
			if err != nil {
				return err
			}
			cfg.DefaultLeaseTime = v
		case "min-lease-time":
			v, err := leafUint32(child, "min-lease-time")
			if err != nil {
				return err
			}
			cfg.MinLeaseTime = v
		case "max-lease-time":
			v, err := leafUint32(child, "max-lease-time")
			if err != nil {
				return err
			}
			cfg.MaxLeaseTime = v
		case "t1-ratio":
			v, err := leafFloat(child, "t1-ratio")
			if err != nil {
				return err
			}
			cfg.T1Ratio = v
		case "t2-ratio":
			v, err := leafFloat(child, "t2-ratio")
			if err != nil {
				return err
			}
			cfg.T2Ratio = v
		case "syslog":
			stream, err := compileSyslogStream(child)
			if err != nil {
				return fmt.Errorf("syslog: %w", err)
			}
			cfg.SyslogStreams = append(cfg.SyslogStreams, stream)
		case "local-log":
			local, err := compileLocalLog(child)
			if err != nil {
				return fmt.Errorf("local-log: %w", err)
			}
			cfg.LocalLog = local
		}
	}
	return nil
}

// compileSyslogStream parses a flat "syslog host H port P severity S
// category C category C ..." leaf into a SyslogStreamConfig. The line
// collapses into one leaf because "syslog" has no schema entry (§ast.go);
// its Keys are ["syslog","host",H,"port",P,...] in whatever order the
// operator wrote them.
func compileSyslogStream(leaf *Node) (dhcp.SyslogStreamConfig, error) {
	var stream dhcp.SyslogStreamConfig
	stream.Protocol = "udp"

	toks := leaf.Keys[1:] // drop "syslog"
	for i := 0; i < len(toks); i++ {
		switch toks[i] {
		case "host":
			if i+1 >= len(toks) {
				return stream, fmt.Errorf("host: missing value")
			}
			stream.Host = toks[i+1]
			i++
		case "port":
			if i+1 >= len(toks) {
				return stream, fmt.Errorf("port: missing value")
			}
			p, err := strconv.Atoi(toks[i+1])
			if err != nil {
				return stream, fmt.Errorf("port: %w", err)
			}
			stream.Port = p
			i++
		case "protocol":
			if i+1 >= len(toks) {
				return stream, fmt.Errorf("protocol: missing value")
			}
			stream.Protocol = toks[i+1]
			i++
		case "severity":
			if i+1 >= len(toks) {
				return stream, fmt.Errorf("severity: missing value")
			}
			stream.Severity = toks[i+1]
			i++
		case "category":
			if i+1 >= len(toks) {
				return stream, fmt.Errorf("category: missing value")
			}
			stream.Categories = append(stream.Categories, toks[i+1])
			i++
		default:
			return stream, fmt.Errorf("unknown syslog attribute %q", toks[i])
		}
	}
	if stream.Host == "" {
		return stream, fmt.Errorf("missing host")
	}
	if stream.Port == 0 {
		stream.Port = 514
	}
	return stream, nil
}

func compileLocalLog(leaf *Node) (*dhcp.LocalLogStreamConfig, error) {
	local := &dhcp.LocalLogStreamConfig{}

	toks := leaf.Keys[1:] // drop "local-log"
	for i := 0; i < len(toks); i++ {
		switch toks[i] {
		case "path":
			if i+1 >= len(toks) {
				return nil, fmt.Errorf("path: missing value")
			}
			local.Path = toks[i+1]
			i++
		case "max-size":
			if i+1 >= len(toks) {
				return nil, fmt.Errorf("max-size: missing value")
			}
			v, err := strconv.ParseInt(toks[i+1], 10, 64)
			if err != nil {
				return nil, fmt.Errorf("max-size: %w", err)
			}
			local.MaxSize = v
			i++
		case "max-files":
			if i+1 >= len(toks) {
				return nil, fmt.Errorf("max-files: missing value")
			}
			v, err := strconv.Atoi(toks[i+1])
			if err != nil {
				return nil, fmt.Errorf("max-files: %w", err)
			}
			local.MaxFiles = v
			i++
		case "severity":
			if i+1 >= len(toks) {
				return nil, fmt.Errorf("severity: missing value")
			}
			local.Severity = toks[i+1]
			i++
		case "category":
			if i+1 >= len(toks) {
				return nil, fmt.Errorf("category: missing value")
			}
			local.Categories = append(local.Categories, toks[i+1])
			i++
		case "format":
			if i+1 >= len(toks) {
				return nil, fmt.Errorf("format: missing value")
			}
			if toks[i+1] != "structured" && toks[i+1] != "text" {
				return nil, fmt.Errorf("format: must be \"structured\" or \"text\", got %q", toks[i+1])
			}
			if toks[i+1] == "structured" {
				local.Format = "structured"
			}
			i++
		default:
			return nil, fmt.Errorf("unknown local-log attribute %q", toks[i])
		}
	}
	if local.Path == "" {
		return nil, fmt.Errorf("missing path")
	}
	return local, nil
}

// compileInterfaces walks "interfaces <name> { subnet <cidr> { ... } }"
// (or the equivalent flat "set" form the schema collapses to the same
// shape) and appends one dhcp.Subnet per subnet block.
func compileInterfaces(node *Node, cfg *Config) error {
	for _, ifaceNode := range node.Children {
		if len(ifaceNode.Keys) == 0 {
			continue
		}
		ifaceName := ifaceNode.Keys[0]

		for _, subnetNode := range ifaceNode.FindChildren("subnet") {
			sub, err := compileSubnet(ifaceName, subnetNode)
			if err != nil {
				return fmt.Errorf("interface %s: %w", ifaceName, err)
			}
			cfg.Subnets = append(cfg.Subnets, sub)
		}
	}
	return nil
}

// parseSubnetCIDR extracts and normalizes the CIDR from a "subnet
// <cidr>" container node.
func parseSubnetCIDR(node *Node) (netip.Prefix, error) {
	if len(node.Keys) < 2 {
		return netip.Prefix{}, fmt.Errorf("subnet: missing CIDR")
	}
	network, err := netip.ParsePrefix(node.Keys[1])
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("subnet %s: %w", node.Keys[1], err)
	}
	return network.Masked(), nil
}

// parseSubnetRange collects the "range low <addr>" / "range high <addr>"
// leaves under a subnet container into a single AddrRange.
func parseSubnetRange(node *Node) (dhcp.AddrRange, error) {
	var rng dhcp.AddrRange
	var lowSet, highSet bool

	for _, child := range node.FindChildren("range") {
		if len(child.Keys) < 3 {
			return rng, fmt.Errorf("range: expected 'range low|high <addr>', got %q", child.KeyPath())
		}
		addr, err := netip.ParseAddr(child.Keys[2])
		if err != nil {
			return rng, fmt.Errorf("range %s: %w", child.Keys[2], err)
		}
		switch child.Keys[1] {
		case "low":
			rng.Low = addr
			lowSet = true
		case "high":
			rng.High = addr
			highSet = true
		default:
			return rng, fmt.Errorf("range: expected 'low' or 'high', got %q", child.Keys[1])
		}
	}
	if !lowSet || !highSet {
		return rng, fmt.Errorf("no range configured (set range low/high)")
	}
	return rng, nil
}

// parseSubnetOptions collects the "option <name> <value>" leaves under a
// subnet container, merging repeatable options into one wire option per
// tag in the order each tag was first seen.
func parseSubnetOptions(node *Node) ([]dhcp.Option, error) {
	optTags := make(map[byte]*dhcp.Option)
	var optOrder []byte

	for _, child := range node.FindChildren("option") {
		if len(child.Keys) < 3 {
			return nil, fmt.Errorf("option: expected 'option <name> <value>', got %q", child.KeyPath())
		}
		name, value := child.Keys[1], child.Keys[2]
		def, ok := ResolveOption(name)
		if !ok {
			return nil, fmt.Errorf("option: unknown option name %q", name)
		}
		opt, err := mergeOption(optTags[def.Tag], def, value)
		if err != nil {
			return nil, fmt.Errorf("option %s: %w", name, err)
		}
		if _, exists := optTags[def.Tag]; !exists {
			optOrder = append(optOrder, def.Tag)
		}
		optTags[def.Tag] = opt
	}

	var opts []dhcp.Option
	for _, tag := range optOrder {
		opts = append(opts, *optTags[tag])
	}
	return opts, nil
}

func compileSubnet(ifaceName string, node *Node) (*dhcp.Subnet, error) {
	network, err := parseSubnetCIDR(node)
	if err != nil {
		return nil, err
	}
	rng, err := parseSubnetRange(node)
	if err != nil {
		return nil, fmt.Errorf("subnet %s: %w", network, err)
	}
	opts, err := parseSubnetOptions(node)
	if err != nil {
		return nil, fmt.Errorf("subnet %s: %w", network, err)
	}

	iface, ifaceNet, err := dhcp.ResolveInterface(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("resolve interface %s: %w", ifaceName, err)
	}
	if ifaceNet != network {
		return nil, fmt.Errorf("subnet %s: interface %s's address is not on this network (found %s)",
			network, ifaceName, ifaceNet)
	}
	iface.Name = ifaceName

	link, err := dhcp.NewPacketLink(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("open link on %s: %w", ifaceName, err)
	}

	return dhcp.NewSubnet(network, iface, rng, opts, link), nil
}

// mergeOption builds or extends the wire Option for a named option,
// concatenating repeated IPv4 values (e.g. two "option
// domain-name-server" lines) onto one option instead of overwriting.
func mergeOption(existing *dhcp.Option, def OptionDef, value string) (*dhcp.Option, error) {
	switch def.Kind {
	case OptionKindIPv4:
		addr, err := netip.ParseAddr(value)
		if err != nil {
			return nil, fmt.Errorf("%w", err)
		}
		a4 := addr.As4()
		if existing != nil && def.Repeatable {
			merged := dhcp.Option{Tag: def.Tag, Value: append(append([]byte(nil), existing.Value...), a4[:]...)}
			return &merged, nil
		}
		opt := dhcp.OptionIPv4(def.Tag, addr)
		return &opt, nil
	case OptionKindString:
		opt := dhcp.OptionString(def.Tag, value)
		return &opt, nil
	case OptionKindUint32:
		v, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return nil, err
		}
		opt := dhcp.OptionUint32(def.Tag, uint32(v))
		return &opt, nil
	default:
		return nil, fmt.Errorf("unsupported option kind")
	}
}

func leafUint32(n *Node, name string) (uint32, error) {
	if len(n.Keys) < 2 {
		return 0, fmt.Errorf("%s: missing value", name)
	}
	v, err := strconv.ParseUint(n.Keys[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return uint32(v), nil
}

func leafFloat(n *Node, name string) (float64, error) {
	if len(n.Keys) < 2 {
		return 0, fmt.Errorf("%s: missing value", name)
	}
	v, err := strconv.ParseFloat(n.Keys[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}
