package dhcp

import (
	"net"
	"net/netip"
	"testing"
)

func scenarioSubnetAndConfig() (*Config, *Subnet) {
	cfg := newTestConfig()
	sub := newTestSubnet()
	return cfg, sub
}

func discoverFrom(mac net.HardwareAddr, xid uint32) *Pkt {
	req := clientReq(mac, xid)
	req.Options = []Option{OptionMessageType(MsgDiscover)}
	return req
}

// Scenario 1: fresh DISCOVER, no existing lease, no Requested-IP.
func TestScenarioFreshDiscover(t *testing.T) {
	cfg, sub := scenarioSubnetAndConfig()
	mac := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}
	req := discoverFrom(mac, 1)

	reply, err := HandleDiscover(cfg, sub, req)
	if err != nil {
		t.Fatal(err)
	}
	if reply == nil {
		t.Fatal("expected an OFFER, got a drop")
	}
	if reply.YIAddr != netip.MustParseAddr("192.168.1.100") {
		t.Errorf("yiaddr = %v, want 192.168.1.100", reply.YIAddr)
	}
	if reply.SIAddr != sub.Interface.Addr {
		t.Errorf("siaddr = %v, want %v", reply.SIAddr, sub.Interface.Addr)
	}
	lt, _ := IPLeaseTime(reply.Options)
	if lt != 3600 {
		t.Errorf("lease time = %d, want 3600", lt)
	}
	var t1, t2 uint32
	for _, o := range reply.Options {
		switch o.Tag {
		case OptRenewalT1:
			t1 = decodeUint32(o.Value)
		case OptRebindingT2:
			t2 = decodeUint32(o.Value)
		}
	}
	if t1 != 1800 {
		t.Errorf("t1 = %d, want 1800", t1)
	}
	if t2 != 3150 {
		t.Errorf("t2 = %d, want 3150", t2)
	}
	if len(sub.Leases.All()) != 0 {
		t.Error("DISCOVER must not mutate the lease store")
	}
}

// Scenario 2: SELECTING REQUEST following scenario 1.
func TestScenarioSelectingRequestGrantsLease(t *testing.T) {
	cfg, sub := scenarioSubnetAndConfig()
	mac := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}

	req := clientReq(mac, 2)
	req.Options = []Option{
		OptionMessageType(MsgRequest),
		OptionIPv4(OptServerID, sub.Interface.Addr),
		OptionIPv4(OptRequestedIP, netip.MustParseAddr("192.168.1.100")),
	}

	reply, err := HandleRequest(cfg, sub, req)
	if err != nil {
		t.Fatal(err)
	}
	if reply == nil {
		t.Fatal("expected an ACK, got a drop")
	}
	mt, _ := MessageTypeOf(reply.Options)
	if mt != MsgAck {
		t.Fatalf("message type = %v, want ACK", mt)
	}
	if reply.YIAddr != netip.MustParseAddr("192.168.1.100") {
		t.Errorf("yiaddr = %v, want 192.168.1.100", reply.YIAddr)
	}

	leases := sub.Leases.All()
	if len(leases) != 1 {
		t.Fatalf("expected exactly one lease, got %d", len(leases))
	}
	if leases[0].Addr != netip.MustParseAddr("192.168.1.100") {
		t.Errorf("leased addr = %v, want 192.168.1.100", leases[0].Addr)
	}
}

// Scenario 3: SELECTING REQUEST with the wrong server identifier.
func TestScenarioSelectingRequestWrongSidDrops(t *testing.T) {
	cfg, sub := scenarioSubnetAndConfig()
	mac := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}

	req := clientReq(mac, 3)
	req.Options = []Option{
		OptionMessageType(MsgRequest),
		OptionIPv4(OptServerID, netip.MustParseAddr("192.168.1.2")),
		OptionIPv4(OptRequestedIP, netip.MustParseAddr("192.168.1.100")),
	}

	reply, err := HandleRequest(cfg, sub, req)
	if err != nil {
		t.Fatal(err)
	}
	if reply != nil {
		t.Fatal("expected silent drop for mismatched server identifier")
	}
	if len(sub.Leases.All()) != 0 {
		t.Error("a dropped REQUEST must not mutate the lease store")
	}
}

// Scenario 4: RENEWING REQUEST refreshes the lease.
func TestScenarioRenewingRequestRefreshesLease(t *testing.T) {
	cfg, sub := scenarioSubnetAndConfig()
	mac := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}
	id := ComputeClientID(clientReq(mac, 0))

	original := MakeLease(id, netip.MustParseAddr("192.168.1.100"), 3600, sub.Leases.Now())
	if err := sub.Leases.Replace(id, original); err != nil {
		t.Fatal(err)
	}

	req := clientReq(mac, 4)
	req.CIAddr = netip.MustParseAddr("192.168.1.100")
	req.Options = []Option{OptionMessageType(MsgRequest)}

	reply, err := HandleRequest(cfg, sub, req)
	if err != nil {
		t.Fatal(err)
	}
	if reply == nil {
		t.Fatal("expected an ACK renewing the lease")
	}
	if reply.YIAddr != netip.MustParseAddr("192.168.1.100") {
		t.Errorf("yiaddr = %v, want 192.168.1.100", reply.YIAddr)
	}

	refreshed, ok := sub.Leases.Lookup(id)
	if !ok {
		t.Fatal("lease disappeared after renewal")
	}
	if !refreshed.TmEnd.After(original.TmEnd) {
		t.Error("expected tm_end to advance on renewal")
	}
}

// Scenario 5: REQUEST for a taken address yields a NAK with the exact
// message text.
func TestScenarioRequestForTakenAddressNaks(t *testing.T) {
	cfg, sub := scenarioSubnetAndConfig()
	holder := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}
	holderID := ComputeClientID(clientReq(holder, 0))
	sub.Leases.Replace(holderID, MakeLease(holderID, netip.MustParseAddr("192.168.1.100"), 3600, sub.Leases.Now()))

	other := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x02}
	req := clientReq(other, 5)
	req.Options = []Option{
		OptionMessageType(MsgRequest),
		OptionIPv4(OptServerID, sub.Interface.Addr),
		OptionIPv4(OptRequestedIP, netip.MustParseAddr("192.168.1.100")),
	}

	reply, err := HandleRequest(cfg, sub, req)
	if err != nil {
		t.Fatal(err)
	}
	if reply == nil {
		t.Fatal("expected a NAK")
	}
	mt, _ := MessageTypeOf(reply.Options)
	if mt != MsgNak {
		t.Fatalf("message type = %v, want NAK", mt)
	}
	msg, ok := MessageText(reply.Options)
	if !ok || msg != "Requested address is not available" {
		t.Errorf("NAK message = %q, %v; want %q", msg, ok, "Requested address is not available")
	}
}

// Scenario 6: RELEASE frees the address for the next DISCOVER.
func TestScenarioReleaseFreesAddress(t *testing.T) {
	cfg, sub := scenarioSubnetAndConfig()
	// Narrow the pool to a single address so the only possible offer
	// after the release is the one just freed.
	sub.Range = AddrRange{Low: netip.MustParseAddr("192.168.1.100"), High: netip.MustParseAddr("192.168.1.100")}
	releaser := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}
	releaserID := ComputeClientID(clientReq(releaser, 0))
	sub.Leases.Replace(releaserID, MakeLease(releaserID, netip.MustParseAddr("192.168.1.100"), 3600, sub.Leases.Now()))

	relReq := clientReq(releaser, 6)
	relReq.Options = []Option{
		OptionMessageType(MsgRelease),
		OptionIPv4(OptServerID, sub.Interface.Addr),
		OptionIPv4(OptRequestedIP, netip.MustParseAddr("192.168.1.100")),
	}
	reply, err := HandleDeclineRelease(sub, relReq)
	if err != nil {
		t.Fatal(err)
	}
	if reply != nil {
		t.Error("RELEASE must never produce a reply")
	}
	if _, found := sub.Leases.Lookup(releaserID); found {
		t.Error("lease should be removed after RELEASE")
	}

	other := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x02}
	discReq := discoverFrom(other, 7)
	offer, err := HandleDiscover(cfg, sub, discReq)
	if err != nil {
		t.Fatal(err)
	}
	if offer == nil || offer.YIAddr != netip.MustParseAddr("192.168.1.100") {
		t.Errorf("expected the freed address to be offered next, got %+v", offer)
	}
}

// P4: ACK options contain exactly the required options, with
// t1 <= t2 <= lease_time.
func TestP4AckRequiredOptions(t *testing.T) {
	cfg, sub := scenarioSubnetAndConfig()
	mac := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}
	req := clientReq(mac, 1)
	req.Options = []Option{
		OptionMessageType(MsgRequest),
		OptionIPv4(OptServerID, sub.Interface.Addr),
		OptionIPv4(OptRequestedIP, netip.MustParseAddr("192.168.1.100")),
	}

	reply, err := HandleRequest(cfg, sub, req)
	if err != nil || reply == nil {
		t.Fatalf("expected ACK, got reply=%v err=%v", reply, err)
	}

	counts := map[byte]int{}
	for _, o := range reply.Options {
		counts[o.Tag]++
	}
	for _, tag := range []byte{OptMessageType, OptServerID, OptLeaseTime, OptRenewalT1, OptRebindingT2, OptSubnetMask} {
		if counts[tag] != 1 {
			t.Errorf("tag %d appears %d times, want exactly 1", tag, counts[tag])
		}
	}

	lt, _ := IPLeaseTime(reply.Options)
	var t1, t2 uint32
	for _, o := range reply.Options {
		switch o.Tag {
		case OptRenewalT1:
			t1 = decodeUint32(o.Value)
		case OptRebindingT2:
			t2 = decodeUint32(o.Value)
		}
	}
	if !(t1 <= t2 && t2 <= lt) {
		t.Errorf("expected t1 <= t2 <= lease_time, got t1=%d t2=%d lease_time=%d", t1, t2, lt)
	}
}

// P6: packets failing ValidPkt never produce a reply or mutate the
// lease store.
func TestP6InvalidPktNeverRepliesOrMutates(t *testing.T) {
	cfg, sub := scenarioSubnetAndConfig()
	req := discoverFrom(net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}, 1)
	req.Hops = 1 // violates valid_pkt

	reply, err := Dispatch(cfg, sub, req)
	if err != nil {
		t.Fatal(err)
	}
	if reply != nil {
		t.Error("expected no reply for an invalid packet shape")
	}
	if len(sub.Leases.All()) != 0 {
		t.Error("expected no lease-store mutation for an invalid packet shape")
	}
}

// P7: replaying the same DISCOVER is idempotent absent other changes.
func TestP7DiscoverIdempotent(t *testing.T) {
	cfg, sub := scenarioSubnetAndConfig()
	req := discoverFrom(net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}, 1)

	first, err := HandleDiscover(cfg, sub, req)
	if err != nil {
		t.Fatal(err)
	}
	second, err := HandleDiscover(cfg, sub, req)
	if err != nil {
		t.Fatal(err)
	}
	if first.YIAddr != second.YIAddr {
		t.Errorf("replayed DISCOVER offered different addresses: %v vs %v", first.YIAddr, second.YIAddr)
	}
	if len(sub.Leases.All()) != 0 {
		t.Error("replaying DISCOVER must not mutate the lease store")
	}
}

// P8: DECLINE/RELEASE with a mismatched server identifier is a no-op.
func TestP8DeclineReleaseWrongSidNoOp(t *testing.T) {
	_, sub := scenarioSubnetAndConfig()
	mac := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}
	id := ComputeClientID(clientReq(mac, 0))
	sub.Leases.Replace(id, MakeLease(id, netip.MustParseAddr("192.168.1.100"), 3600, sub.Leases.Now()))

	req := clientReq(mac, 1)
	req.Options = []Option{
		OptionMessageType(MsgDecline),
		OptionIPv4(OptServerID, netip.MustParseAddr("192.168.1.99")), // wrong
		OptionIPv4(OptRequestedIP, netip.MustParseAddr("192.168.1.100")),
	}

	reply, err := HandleDeclineRelease(sub, req)
	if err != nil {
		t.Fatal(err)
	}
	if reply != nil {
		t.Error("expected no reply")
	}
	if _, found := sub.Leases.Lookup(id); !found {
		t.Error("lease must survive a DECLINE/RELEASE addressed to a different server identifier")
	}
}

func TestInformBuildsAckWithoutTouchingLeaseStore(t *testing.T) {
	cfg, sub := scenarioSubnetAndConfig()
	mac := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}
	req := clientReq(mac, 1)
	req.CIAddr = netip.MustParseAddr("192.168.1.150")
	req.Options = []Option{OptionMessageType(MsgInform)}

	reply, err := HandleInform(cfg, sub, req)
	if err != nil {
		t.Fatal(err)
	}
	mt, _ := MessageTypeOf(reply.Options)
	if mt != MsgAck {
		t.Fatalf("message type = %v, want ACK", mt)
	}
	if reply.CIAddr != req.CIAddr {
		t.Errorf("ciaddr = %v, want %v", reply.CIAddr, req.CIAddr)
	}
	if reply.YIAddr != UnspecifiedIP() {
		t.Errorf("yiaddr = %v, want unspecified", reply.YIAddr)
	}
	if len(sub.Leases.All()) != 0 {
		t.Error("INFORM must not touch the lease store")
	}
}

func TestInformRequiresCiaddr(t *testing.T) {
	cfg, sub := scenarioSubnetAndConfig()
	req := clientReq(net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}, 1)
	req.Options = []Option{OptionMessageType(MsgInform)}

	if _, err := HandleInform(cfg, sub, req); err == nil {
		t.Error("expected error for INFORM with unspecified ciaddr")
	}
}

func TestDeclineRequiresMessageType(t *testing.T) {
	_, sub := scenarioSubnetAndConfig()
	req := clientReq(net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}, 1)
	if _, err := HandleDeclineRelease(sub, req); err == nil {
		t.Error("expected error for DECLINE/RELEASE with no message-type option")
	}
}

func TestInitRebootWrongAddressNaks(t *testing.T) {
	cfg, sub := scenarioSubnetAndConfig()
	mac := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}
	id := ComputeClientID(clientReq(mac, 0))
	sub.Leases.Replace(id, MakeLease(id, netip.MustParseAddr("192.168.1.100"), 3600, sub.Leases.Now()))

	req := clientReq(mac, 1)
	req.Options = []Option{
		OptionMessageType(MsgRequest),
		OptionIPv4(OptRequestedIP, netip.MustParseAddr("192.168.1.101")),
	}

	reply, err := HandleRequest(cfg, sub, req)
	if err != nil || reply == nil {
		t.Fatalf("expected NAK, got reply=%v err=%v", reply, err)
	}
	mt, _ := MessageTypeOf(reply.Options)
	if mt != MsgNak {
		t.Fatalf("message type = %v, want NAK", mt)
	}
	msg, _ := MessageText(reply.Options)
	if msg != "Requested address is incorrect" {
		t.Errorf("NAK message = %q", msg)
	}
}
