package dhcp

import (
	"net"
	"net/netip"
	"testing"
)

func TestValidPkt(t *testing.T) {
	good := clientReq(net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}, 1)
	if !ValidPkt(good) {
		t.Error("expected a well-formed BOOTREQUEST to be valid")
	}

	wrongOp := clientReq(net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}, 1)
	wrongOp.Op = BootReply
	if ValidPkt(wrongOp) {
		t.Error("a BOOTREPLY arriving as a request should be invalid")
	}

	wrongHType := clientReq(net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}, 1)
	wrongHType.HType = 6
	if ValidPkt(wrongHType) {
		t.Error("a non-Ethernet htype should be invalid")
	}

	wrongHLen := clientReq(net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}, 1)
	wrongHLen.HLen = 8
	if ValidPkt(wrongHLen) {
		t.Error("an hlen other than 6 should be invalid")
	}

	relayed := clientReq(net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}, 1)
	relayed.Hops = 1
	if ValidPkt(relayed) {
		t.Error("a nonzero hops count should be invalid")
	}
}

func TestDispatchRoutesByMessageType(t *testing.T) {
	cfg, sub := scenarioSubnetAndConfig()

	disc := discoverFrom(net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}, 1)
	reply, err := Dispatch(cfg, sub, disc)
	if err != nil || reply == nil {
		t.Fatalf("expected DISCOVER to route to an OFFER, got reply=%v err=%v", reply, err)
	}
	mt, _ := MessageTypeOf(reply.Options)
	if mt != MsgOffer {
		t.Errorf("message type = %v, want OFFER", mt)
	}
}

func TestDispatchDropsPacketWithNoMessageType(t *testing.T) {
	cfg, sub := scenarioSubnetAndConfig()
	req := clientReq(net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}, 1)
	// No Options at all: no Message-Type option present.

	reply, err := Dispatch(cfg, sub, req)
	if err != nil {
		t.Fatal(err)
	}
	if reply != nil {
		t.Error("expected a drop for a packet with no message-type option")
	}
}

func TestDispatchDropsInvalidShapeBeforeLookingAtMessageType(t *testing.T) {
	cfg, sub := scenarioSubnetAndConfig()
	req := discoverFrom(net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}, 1)
	req.HLen = 9

	reply, err := Dispatch(cfg, sub, req)
	if err != nil {
		t.Fatal(err)
	}
	if reply != nil {
		t.Error("expected a drop for an invalid packet shape regardless of message type")
	}
}

func TestDispatchIgnoresUnhandledMessageType(t *testing.T) {
	cfg, sub := scenarioSubnetAndConfig()
	req := clientReq(net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}, 1)
	req.Options = []Option{OptionMessageType(MsgOffer)} // servers never receive OFFER

	reply, err := Dispatch(cfg, sub, req)
	if err != nil {
		t.Fatal(err)
	}
	if reply != nil {
		t.Error("expected no reply for a message type the server doesn't handle as a request")
	}
}

func TestDispatchRoutesDeclineAndReleaseIdentically(t *testing.T) {
	_, sub := scenarioSubnetAndConfig()
	mac := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}
	id := ComputeClientID(clientReq(mac, 0))
	sub.Leases.Replace(id, MakeLease(id, AddrRangeLow(sub), 3600, sub.Leases.Now()))

	req := clientReq(mac, 1)
	req.Options = []Option{
		OptionMessageType(MsgDecline),
		OptionIPv4(OptServerID, sub.Interface.Addr),
		OptionIPv4(OptRequestedIP, AddrRangeLow(sub)),
	}

	cfg := newTestConfig()
	reply, err := Dispatch(cfg, sub, req)
	if err != nil {
		t.Fatal(err)
	}
	if reply != nil {
		t.Error("DECLINE must never produce a reply")
	}
	if _, found := sub.Leases.Lookup(id); found {
		t.Error("expected the lease to be removed after DECLINE")
	}
}

// AddrRangeLow is a tiny test helper kept local to this file.
func AddrRangeLow(sub *Subnet) netip.Addr {
	return sub.Range.Low
}
