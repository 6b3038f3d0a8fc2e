package configstore

import (
	"strings"
	"testing"
	"time"

	"github.com/nexthop-io/dhcpd/pkg/config"
)

func treeWithHostnameAndSubnets(t *testing.T, hostname string, subnets int) *config.ConfigTree {
	t.Helper()
	tree := &config.ConfigTree{}
	if hostname != "" {
		if err := tree.SetPath([]string{"system", "host-name", hostname}); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < subnets; i++ {
		iface := "eth" + string(rune('0'+i))
		if err := tree.SetPath([]string{"interfaces", iface, "subnet", "10.0." + string(rune('0'+i)) + ".0/24"}); err != nil {
			t.Fatal(err)
		}
	}
	return tree
}

func TestHistoryEntryHostname(t *testing.T) {
	e := &HistoryEntry{Config: treeWithHostnameAndSubnets(t, "dhcpd1", 0)}
	if got := e.Hostname(); got != "dhcpd1" {
		t.Errorf("Hostname() = %q, want dhcpd1", got)
	}
}

func TestHistoryEntryHostnameMissing(t *testing.T) {
	e := &HistoryEntry{Config: &config.ConfigTree{}}
	if got := e.Hostname(); got != "" {
		t.Errorf("Hostname() = %q, want empty", got)
	}
}

func TestHistoryEntrySubnetCount(t *testing.T) {
	e := &HistoryEntry{Config: treeWithHostnameAndSubnets(t, "dhcpd1", 2)}
	if got := e.SubnetCount(); got != 2 {
		t.Errorf("SubnetCount() = %d, want 2", got)
	}
}

func TestHistoryEntrySummary(t *testing.T) {
	e := &HistoryEntry{
		Config:    treeWithHostnameAndSubnets(t, "dhcpd1", 1),
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	summary := e.Summary()
	for _, want := range []string{"dhcpd1", "subnets=1", "2026-01-02"} {
		if !strings.Contains(summary, want) {
			t.Errorf("Summary() = %q, missing %q", summary, want)
		}
	}
}

func TestHistoryPushAndList(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 3; i++ {
		h.Push(&HistoryEntry{
			Config:    treeWithHostnameAndSubnets(t, "dhcpd"+string(rune('1'+i)), 0),
			Timestamp: time.Now(),
		})
	}
	list := h.List()
	if len(list) != 3 {
		t.Fatalf("List() len = %d, want 3", len(list))
	}
	if list[0].Hostname() != "dhcpd3" {
		t.Errorf("most recent entry hostname = %q, want dhcpd3", list[0].Hostname())
	}
}
