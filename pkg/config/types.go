package config

import "github.com/nexthop-io/dhcpd/pkg/dhcp"

// Config is the compiled, ready-to-run server configuration. It is an
// alias for dhcp.Config rather than a wrapper struct: CompileConfig
// builds exactly the struct the core package's Manager runs, and the
// config store carries it around under this package's name for
// symmetry with ConfigTree, without introducing a second shadow type
// that would need to be kept in sync with the real one by hand.
type Config = dhcp.Config
