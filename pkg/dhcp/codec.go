package dhcp

import (
	"fmt"
	"net"
	"net/netip"
	"sort"

	"github.com/insomniacslk/dhcp/dhcpv4"
)

// fixedHeaderLen is the BOOTP fixed header size (RFC 951 §3), the byte
// offset of the magic cookie that opens the option area. dhcpv4.FromBytes
// enforces this layout internally; tests reference the constant to poke
// at specific offsets in an encoded packet.
const fixedHeaderLen = 236

// DecodeError is a recoverable wire decode failure: the caller should
// log the reason and drop the packet rather than propagate a fault.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string { return "dhcp: decode: " + e.Reason }

func decodeErr(format string, args ...any) error {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}

// Decode parses a raw UDP payload into a Pkt. The BOOTP header and
// option TLVs are handled by dhcpv4.FromBytes; this only translates
// the result into the package's own Pkt/Option vocabulary, which is
// what the rest of the server (handlers, lease store, reply assembly)
// is written against.
func Decode(buf []byte) (*Pkt, error) {
	msg, err := dhcpv4.FromBytes(buf)
	if err != nil {
		return nil, decodeErr("%v", err)
	}

	p := &Pkt{
		Op:      OpCode(msg.OpCode),
		HType:   msg.HWType,
		HLen:    uint8(len(msg.ClientHWAddr)),
		Hops:    msg.HopCount,
		XID:     xidFromTransactionID(msg.TransactionID),
		Secs:    msg.NumSeconds,
		CIAddr:  addrFromNetIP(msg.ClientIPAddr),
		YIAddr:  addrFromNetIP(msg.YourIPAddr),
		SIAddr:  addrFromNetIP(msg.ServerIPAddr),
		GIAddr:  addrFromNetIP(msg.GatewayIPAddr),
		CHAddr:  append([]byte(nil), msg.ClientHWAddr...),
		SName:   msg.ServerHostName,
		File:    msg.BootFileName,
		Options: optionsFromWire(msg.Options),
	}
	if msg.Flags&0x8000 != 0 {
		p.Flags = FlagBroadcast
	} else {
		p.Flags = FlagUnicast
	}
	return p, nil
}

// Encode serializes a Pkt back into a BOOTP wire payload via
// dhcpv4.DHCPv4.ToBytes, which takes care of the magic cookie, option
// TLV framing, and the trailing end tag.
func Encode(p *Pkt) ([]byte, error) {
	if len(p.CHAddr) > 16 {
		return nil, fmt.Errorf("dhcp: encode: chaddr too long: %d bytes", len(p.CHAddr))
	}

	msg := &dhcpv4.DHCPv4{
		OpCode:         dhcpv4.OpcodeType(p.Op),
		HWType:         p.HType,
		HopCount:       p.Hops,
		TransactionID:  transactionIDFromXID(p.XID),
		NumSeconds:     p.Secs,
		ClientIPAddr:   netIPFromAddr(p.CIAddr),
		YourIPAddr:     netIPFromAddr(p.YIAddr),
		ServerIPAddr:   netIPFromAddr(p.SIAddr),
		GatewayIPAddr:  netIPFromAddr(p.GIAddr),
		ClientHWAddr:   append(net.HardwareAddr(nil), p.CHAddr...),
		ServerHostName: p.SName,
		BootFileName:   p.File,
		Options:        wireOptionsFrom(p.Options),
	}
	if p.Flags == FlagBroadcast {
		msg.Flags = 0x8000
	}

	return msg.ToBytes(), nil
}

func xidFromTransactionID(t dhcpv4.TransactionID) uint32 {
	return uint32(t[0])<<24 | uint32(t[1])<<16 | uint32(t[2])<<8 | uint32(t[3])
}

func transactionIDFromXID(xid uint32) dhcpv4.TransactionID {
	return dhcpv4.TransactionID{byte(xid >> 24), byte(xid >> 16), byte(xid >> 8), byte(xid)}
}

func addrFromNetIP(ip net.IP) netip.Addr {
	if ip4 := ip.To4(); ip4 != nil {
		if a, ok := netip.AddrFromSlice(ip4); ok {
			return a
		}
	}
	return netip.IPv4Unspecified()
}

func netIPFromAddr(a netip.Addr) net.IP {
	if !a.IsValid() {
		return net.IPv4zero
	}
	b := a.As4()
	return net.IPv4(b[0], b[1], b[2], b[3]).To4()
}

// optionsFromWire flattens a decoded dhcpv4.Options map into the
// package's ordered []Option, sorted by tag so decode output is
// deterministic regardless of Go's map iteration order.
func optionsFromWire(opts dhcpv4.Options) []Option {
	if len(opts) == 0 {
		return nil
	}
	tags := make([]byte, 0, len(opts))
	for tag := range opts {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })

	out := make([]Option, 0, len(tags))
	for _, tag := range tags {
		out = append(out, Option{Tag: tag, Value: opts[tag]})
	}
	return out
}

// wireOptionsFrom builds a dhcpv4.Options map from the package's own
// []Option list. A later entry for the same tag overwrites an earlier
// one, matching findOption's first-match-wins read semantics closely
// enough that callers never rely on duplicate tags surviving encode.
func wireOptionsFrom(opts []Option) dhcpv4.Options {
	out := make(dhcpv4.Options, len(opts))
	for _, o := range opts {
		out[o.Tag] = o.Value
	}
	return out
}
