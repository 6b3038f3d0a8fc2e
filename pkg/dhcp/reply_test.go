package dhcp

import (
	"net"
	"net/netip"
	"testing"
)

func newTestSubnet() *Subnet {
	network := netip.MustParsePrefix("192.168.1.0/24")
	iface := Interface{
		Name: "eth0",
		MAC:  net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		Addr: netip.MustParseAddr("192.168.1.1"),
	}
	r := AddrRange{Low: netip.MustParseAddr("192.168.1.100"), High: netip.MustParseAddr("192.168.1.200")}
	return NewSubnet(network, iface, r, nil, nil)
}

func newTestConfig() *Config {
	cfg := NewConfig("dhcpd")
	cfg.DefaultLeaseTime = 3600
	return cfg
}

func clientReq(mac net.HardwareAddr, xid uint32) *Pkt {
	return &Pkt{
		Op:     BootRequest,
		HType:  EthernetTenMB,
		HLen:   6,
		XID:    xid,
		Flags:  FlagBroadcast,
		CIAddr: UnspecifiedIP(),
		CHAddr: []byte(mac),
		SrcMAC: mac,
	}
}

// P3: every reply echoes the fixed header fields from the request.
func TestP3ReplyEchoesFixedFields(t *testing.T) {
	cfg := newTestConfig()
	sub := newTestSubnet()
	req := clientReq(net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}, 0x1234)
	req.Options = []Option{OptionMessageType(MsgDiscover)}

	reply, err := BuildReply(cfg, sub, req, UnspecifiedIP(), netip.MustParseAddr("192.168.1.100"), sub.Interface.Addr, UnspecifiedIP(), []Option{OptionMessageType(MsgOffer)})
	if err != nil {
		t.Fatal(err)
	}
	if reply.Op != BootReply {
		t.Errorf("Op = %v, want BootReply", reply.Op)
	}
	if reply.HType != EthernetTenMB || reply.HLen != 6 {
		t.Errorf("HType/HLen = %v/%v, want Ethernet_10mb/6", reply.HType, reply.HLen)
	}
	if reply.XID != req.XID {
		t.Errorf("XID = %x, want %x", reply.XID, req.XID)
	}
	if reply.Flags != req.Flags {
		t.Errorf("Flags = %v, want %v", reply.Flags, req.Flags)
	}
	if string(reply.CHAddr) != string(req.CHAddr) {
		t.Errorf("CHAddr mismatch")
	}
	if reply.SName != cfg.Hostname {
		t.Errorf("SName = %q, want %q", reply.SName, cfg.Hostname)
	}
	if reply.File != "" {
		t.Errorf("File = %q, want empty", reply.File)
	}
}

func TestReplyBuilderRequiresMessageType(t *testing.T) {
	cfg := newTestConfig()
	sub := newTestSubnet()
	req := clientReq(net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x01}, 1)
	if _, err := BuildReply(cfg, sub, req, UnspecifiedIP(), UnspecifiedIP(), UnspecifiedIP(), UnspecifiedIP(), nil); err == nil {
		t.Error("expected error building a reply with no Message_type option")
	}
}

func TestReplyDestinationTable(t *testing.T) {
	sub := newTestSubnet()
	relay := netip.MustParseAddr("192.168.1.1")
	ciaddr := netip.MustParseAddr("192.168.1.101")
	yiaddr := netip.MustParseAddr("192.168.1.100")
	reqMAC := net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x02}

	tests := []struct {
		name       string
		mt         MessageType
		giaddr     netip.Addr
		ciaddr     netip.Addr
		flags      Flags
		wantUnicast bool
		wantIP     netip.Addr
	}{
		{"NAK via relay", MsgNak, relay, UnspecifiedIP(), FlagBroadcast, true, relay},
		{"NAK no relay", MsgNak, UnspecifiedIP(), UnspecifiedIP(), FlagBroadcast, false, broadcastIP()},
		{"OFFER via relay", MsgOffer, relay, UnspecifiedIP(), FlagBroadcast, true, relay},
		{"ACK with ciaddr", MsgAck, UnspecifiedIP(), ciaddr, FlagBroadcast, true, ciaddr},
		{"OFFER unicast flag", MsgOffer, UnspecifiedIP(), UnspecifiedIP(), FlagUnicast, true, yiaddr},
		{"OFFER broadcast fallback", MsgOffer, UnspecifiedIP(), UnspecifiedIP(), FlagBroadcast, false, broadcastIP()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := clientReq(reqMAC, 1)
			req.Flags = tt.flags
			req.GIAddr = tt.giaddr

			opts := []Option{OptionMessageType(tt.mt)}
			reply, err := BuildReply(newTestConfig(), sub, req, tt.ciaddr, yiaddr, sub.Interface.Addr, tt.giaddr, opts)
			if err != nil {
				t.Fatal(err)
			}
			if reply.DstIP != tt.wantIP {
				t.Errorf("DstIP = %v, want %v", reply.DstIP, tt.wantIP)
			}
			if tt.wantUnicast {
				if string(reply.DstMAC) != string(reqMAC) {
					t.Errorf("DstMAC = %v, want request's src mac %v", reply.DstMAC, reqMAC)
				}
			} else if string(reply.DstMAC) != string(broadcastMAC) {
				t.Errorf("DstMAC = %v, want broadcast", reply.DstMAC)
			}
		})
	}
}

// P5: NAK replies zero out ciaddr/yiaddr/siaddr and echo giaddr.
func TestP5NakAddressFields(t *testing.T) {
	sub := newTestSubnet()
	req := clientReq(net.HardwareAddr{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0x03}, 1)
	req.GIAddr = netip.MustParseAddr("192.168.1.1")

	reply, err := nakReply(newTestConfig(), sub, req, "Requested address is not available")
	if err != nil {
		t.Fatal(err)
	}
	zero := UnspecifiedIP()
	if reply.CIAddr != zero || reply.YIAddr != zero || reply.SIAddr != zero {
		t.Errorf("expected ciaddr=yiaddr=siaddr=0, got ciaddr=%v yiaddr=%v siaddr=%v", reply.CIAddr, reply.YIAddr, reply.SIAddr)
	}
	if reply.GIAddr != req.GIAddr {
		t.Errorf("GIAddr = %v, want %v", reply.GIAddr, req.GIAddr)
	}
}
