// Package dhcp implements a DHCPv4 server: packet validation, the
// per-message-type handlers driving clients through the DHCP state
// machine (RFC 2131), an in-memory lease database, and reply assembly.
package dhcp

import (
	"encoding/hex"
	"hash/fnv"
	"net"
	"net/netip"

	"github.com/insomniacslk/dhcp/iana"
)

// OpCode is the BOOTP op field.
type OpCode uint8

const (
	BootRequest OpCode = 1
	BootReply   OpCode = 2
)

// HType is the BOOTP hardware type field, the same IANA ARP hardware
// type registry insomniacslk/dhcp's wire codec uses. The server only
// supports 10Mb Ethernet, as required by §3 of the data model.
type HType = iana.HWType

const EthernetTenMB = iana.HWTypeEthernet

// Flags is the simplified two-value BOOTP flags field. The wire encoding
// is a 16-bit field with only the top bit (0x8000, "broadcast") defined;
// FlagBroadcast corresponds to that bit being set.
type Flags uint8

const (
	FlagUnicast   Flags = 0
	FlagBroadcast Flags = 1
)

// MessageType is the value of the DHCP Message-Type option (tag 53).
type MessageType byte

const (
	MsgDiscover MessageType = 1
	MsgOffer    MessageType = 2
	MsgRequest  MessageType = 3
	MsgDecline  MessageType = 4
	MsgAck      MessageType = 5
	MsgNak      MessageType = 6
	MsgRelease  MessageType = 7
	MsgInform   MessageType = 8
)

func (m MessageType) String() string {
	switch m {
	case MsgDiscover:
		return "DISCOVER"
	case MsgOffer:
		return "OFFER"
	case MsgRequest:
		return "REQUEST"
	case MsgDecline:
		return "DECLINE"
	case MsgAck:
		return "ACK"
	case MsgNak:
		return "NAK"
	case MsgRelease:
		return "RELEASE"
	case MsgInform:
		return "INFORM"
	default:
		return "UNKNOWN"
	}
}

// Well-known DHCP option tags (RFC 2132).
const (
	OptSubnetMask      byte = 1
	OptRouter          byte = 3
	OptDNSServer       byte = 6
	OptDomainName      byte = 15
	OptRequestedIP     byte = 50
	OptLeaseTime       byte = 51
	OptMessageType     byte = 53
	OptServerID        byte = 54
	OptParameterReqs   byte = 55
	OptMessage         byte = 56
	OptRenewalT1       byte = 58
	OptRebindingT2     byte = 59
	OptVendorClassID   byte = 60
	OptClientID        byte = 61
	OptPad             byte = 0
	OptEnd             byte = 255
)

// Option is one tagged option from a DHCP packet's option list. Unknown
// tags round-trip opaquely: Tag and Value are preserved as read even if
// this package has no named extractor for them.
type Option struct {
	Tag   byte
	Value []byte
}

func OptionBytes(tag byte, v []byte) Option { return Option{Tag: tag, Value: v} }

func OptionMessageType(mt MessageType) Option {
	return Option{Tag: OptMessageType, Value: []byte{byte(mt)}}
}

func OptionUint32(tag byte, v uint32) Option {
	return Option{Tag: tag, Value: []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}}
}

func OptionIPv4(tag byte, addr netip.Addr) Option {
	a4 := addr.As4()
	return Option{Tag: tag, Value: a4[:]}
}

func OptionString(tag byte, s string) Option {
	return Option{Tag: tag, Value: []byte(s)}
}

// Pkt is the in-memory representation of a DHCP packet: the BOOTP header
// fields, the option list, and the L2/L3/UDP transport envelope the
// packet arrived on (or should be sent on, for a reply).
type Pkt struct {
	Op      OpCode
	HType   HType
	HLen    uint8
	Hops    uint8
	XID     uint32
	Secs    uint16
	Flags   Flags
	CIAddr  netip.Addr
	YIAddr  netip.Addr
	SIAddr  netip.Addr
	GIAddr  netip.Addr
	CHAddr  []byte // hlen significant bytes of the hardware address
	SName   string
	File    string
	Options []Option

	SrcMAC  net.HardwareAddr
	DstMAC  net.HardwareAddr
	SrcIP   netip.Addr
	DstIP   netip.Addr
	SrcPort uint16
	DstPort uint16
}

// UnspecifiedIP is the 0.0.0.0 sentinel used throughout the header fields
// to mean "no address".
func UnspecifiedIP() netip.Addr { return netip.IPv4Unspecified() }

// isSet reports whether addr is a valid, non-unspecified IPv4 address.
func isSet(addr netip.Addr) bool {
	return addr.IsValid() && addr != netip.IPv4Unspecified()
}

// ClientID is the stable key used by the lease store: either the raw
// bytes of the Client-Identifier option, or a synthesized (htype, chaddr)
// pair when that option is absent.
type ClientID string

// ComputeClientID derives the client identifier for an inbound packet,
// per the fallback rule in §3 of the data model.
func ComputeClientID(p *Pkt) ClientID {
	if id, ok := ClientIdentifierOption(p.Options); ok {
		return ClientID(id)
	}
	buf := make([]byte, 1+len(p.CHAddr))
	buf[0] = byte(p.HType)
	copy(buf[1:], p.CHAddr)
	return ClientID(buf)
}

// Hex renders the client id as a hex string for logging.
func (c ClientID) Hex() string { return hex.EncodeToString([]byte(c)) }

// hash32 returns a stable 32-bit FNV-1a hash of the client id.
func (c ClientID) hash32() uint32 {
	h := fnv.New32a()
	h.Write([]byte(c))
	return h.Sum32()
}

var broadcastMAC = net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func broadcastIP() netip.Addr { return netip.AddrFrom4([4]byte{255, 255, 255, 255}) }

// NetmaskAddr returns the dotted-quad netmask for a CIDR prefix.
func NetmaskAddr(p netip.Prefix) netip.Addr {
	bits := p.Bits()
	var m [4]byte
	for i := 0; i < bits; i++ {
		m[i/8] |= 1 << (7 - uint(i%8))
	}
	return netip.AddrFrom4(m)
}
