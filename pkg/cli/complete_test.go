package cli

import (
	"net"
	"net/netip"
	"path/filepath"
	"testing"

	"github.com/nexthop-io/dhcpd/pkg/configstore"
	"github.com/nexthop-io/dhcpd/pkg/dhcp"
)

func newTestCLI(t *testing.T) *CLI {
	t.Helper()
	store := configstore.New(filepath.Join(t.TempDir(), "config"))
	store.EnterConfigure()

	cfg := dhcp.NewConfig("dhcpd1")
	network := netip.MustParsePrefix("192.168.1.0/24")
	iface := dhcp.Interface{Name: "eth0", MAC: net.HardwareAddr{0, 1, 2, 3, 4, 5}, Addr: netip.MustParseAddr("192.168.1.1")}
	r := dhcp.AddrRange{Low: netip.MustParseAddr("192.168.1.100"), High: netip.MustParseAddr("192.168.1.200")}
	cfg.Subnets = []*dhcp.Subnet{dhcp.NewSubnet(network, iface, r, nil, nil)}
	mgr := dhcp.NewManager(cfg)

	return New(store, mgr)
}

func TestSplitLastWord(t *testing.T) {
	cases := []struct {
		in         string
		head, part string
	}{
		{"set system host", "set system ", "host"},
		{"set system host-name ", "set system host-name ", ""},
		{"set", "", "set"},
		{"", "", ""},
	}
	for _, c := range cases {
		head, part := splitLastWord(c.in)
		if head != c.head || part != c.part {
			t.Errorf("splitLastWord(%q) = (%q, %q), want (%q, %q)", c.in, head, part, c.head, c.part)
		}
	}
}

func TestSetPathCompleterTopLevel(t *testing.T) {
	c := newTestCLI(t)
	comp := &setPathCompleter{cli: c}

	line := []rune("set ")
	results, length := comp.Do(line, len(line))
	if length != 0 {
		t.Errorf("length = %d, want 0", length)
	}
	got := completionStrings(results)
	if !containsString(got, "system ") || !containsString(got, "interfaces ") {
		t.Errorf("completions = %v, want system and interfaces", got)
	}
}

func TestSetPathCompleterInterfaceName(t *testing.T) {
	c := newTestCLI(t)
	comp := &setPathCompleter{cli: c}

	line := []rune("set interfaces e")
	results, length := comp.Do(line, len(line))
	if length != 1 {
		t.Errorf("length = %d, want 1", length)
	}
	got := completionStrings(results)
	if !containsString(got, "th0 ") {
		t.Errorf("completions = %v, want eth0 suffix", got)
	}
}

func TestSetPathCompleterOutsideConfigMode(t *testing.T) {
	c := newTestCLI(t)
	c.store.ExitConfigure()
	comp := &setPathCompleter{cli: c}

	line := []rune("set ")
	results, _ := comp.Do(line, len(line))
	if results != nil {
		t.Errorf("expected no completions outside configuration mode, got %v", results)
	}
}

func completionStrings(results [][]rune) []string {
	var out []string
	for _, r := range results {
		out = append(out, string(r))
	}
	return out
}

func containsString(haystack []string, want string) bool {
	for _, s := range haystack {
		if s == want {
			return true
		}
	}
	return false
}
