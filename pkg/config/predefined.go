package config

import "github.com/nexthop-io/dhcpd/pkg/dhcp"

// OptionKind describes how a named option's value is encoded onto the wire.
type OptionKind int

const (
	OptionKindIPv4 OptionKind = iota
	OptionKindString
	OptionKindUint32
)

// OptionDef describes one name recognized by an "option <name> <value>"
// configuration line.
type OptionDef struct {
	Tag  byte
	Kind OptionKind

	// Repeatable options (router, domain-name-server, ...) accumulate
	// every "option <name> <value>" line for the same name, within the
	// same subnet, into a single wire option carrying all the
	// addresses, rather than overwriting the previous line's value.
	Repeatable bool
}

// PredefinedOptions is the catalog of option names the compiler accepts
// in a subnet block. Tags come from the core package's RFC 2132
// constants where one exists; the rest are well-known tags this package
// has no dedicated accessor for but the wire codec still carries
// opaquely via Option.Tag/Option.Value.
var PredefinedOptions = map[string]OptionDef{
	"subnet-mask":         {Tag: dhcp.OptSubnetMask, Kind: OptionKindIPv4},
	"router":              {Tag: dhcp.OptRouter, Kind: OptionKindIPv4, Repeatable: true},
	"domain-name-server":  {Tag: dhcp.OptDNSServer, Kind: OptionKindIPv4, Repeatable: true},
	"domain-name":         {Tag: dhcp.OptDomainName, Kind: OptionKindString},
	"broadcast-address":   {Tag: 28, Kind: OptionKindIPv4},
	"ntp-server":          {Tag: 42, Kind: OptionKindIPv4, Repeatable: true},
	"netbios-name-server": {Tag: 44, Kind: OptionKindIPv4, Repeatable: true},
	"tftp-server-name":    {Tag: 66, Kind: OptionKindString},
	"bootfile-name":       {Tag: 67, Kind: OptionKindString},
}

// ResolveOption looks up a named option in the catalog.
func ResolveOption(name string) (OptionDef, bool) {
	d, ok := PredefinedOptions[name]
	return d, ok
}
