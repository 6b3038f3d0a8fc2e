package dhcp

import (
	"fmt"
	"net"
	"net/netip"
)

// BuildReply assembles a reply packet. opts must contain a Message_type
// option; callers that fail to include one have a programming error,
// which is reported as an error rather than a panic so the subnet loop
// can log it and keep serving.
func BuildReply(cfg *Config, sub *Subnet, req *Pkt, ciaddr, yiaddr, siaddr, giaddr netip.Addr, opts []Option) (*Pkt, error) {
	mt, ok := MessageTypeOf(opts)
	if !ok {
		return nil, fmt.Errorf("dhcp: reply builder: options missing Message_type")
	}

	reply := &Pkt{
		Op:      BootReply,
		HType:   EthernetTenMB,
		HLen:    6,
		Hops:    0,
		XID:     req.XID,
		Secs:    0,
		Flags:   req.Flags,
		CIAddr:  ciaddr,
		YIAddr:  yiaddr,
		SIAddr:  siaddr,
		GIAddr:  giaddr,
		CHAddr:  req.CHAddr,
		SName:   cfg.Hostname,
		File:    "",
		Options: opts,

		SrcIP: sub.Interface.Addr,
	}

	if isSet(giaddr) {
		reply.SrcPort, reply.DstPort = 67, 67
	} else {
		reply.SrcPort, reply.DstPort = 67, 68
	}

	dstMAC, dstIP, err := replyDestination(mt, req, ciaddr, yiaddr, giaddr)
	if err != nil {
		return nil, err
	}
	reply.DstMAC = dstMAC
	reply.DstIP = dstIP

	return reply, nil
}

// replyDestination implements the destination-selection table in §4.3,
// keyed on the reply's message type.
func replyDestination(mt MessageType, req *Pkt, ciaddr, yiaddr, giaddr netip.Addr) (net.HardwareAddr, netip.Addr, error) {
	switch mt {
	case MsgNak:
		if isSet(giaddr) {
			return req.SrcMAC, giaddr, nil
		}
		return broadcastMAC, broadcastIP(), nil

	case MsgOffer, MsgAck:
		switch {
		case isSet(giaddr):
			return req.SrcMAC, giaddr, nil
		case isSet(ciaddr):
			return req.SrcMAC, ciaddr, nil
		case req.Flags == FlagUnicast:
			return req.SrcMAC, yiaddr, nil
		default:
			return broadcastMAC, broadcastIP(), nil
		}

	default:
		return nil, netip.Addr{}, fmt.Errorf("dhcp: reply builder: unsupported message type %s for destination selection", mt)
	}
}
