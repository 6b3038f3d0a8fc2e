package dhcp

import "net/netip"

// findOption returns the first option in opts with the given tag.
func findOption(opts []Option, tag byte) (Option, bool) {
	for _, o := range opts {
		if o.Tag == tag {
			return o, true
		}
	}
	return Option{}, false
}

// MessageTypeOf extracts the Message-Type option (tag 53).
func MessageTypeOf(opts []Option) (MessageType, bool) {
	o, ok := findOption(opts, OptMessageType)
	if !ok || len(o.Value) < 1 {
		return 0, false
	}
	return MessageType(o.Value[0]), true
}

// RequestedIP extracts the Requested-IP-Address option (tag 50).
func RequestedIP(opts []Option) (netip.Addr, bool) {
	o, ok := findOption(opts, OptRequestedIP)
	if !ok || len(o.Value) != 4 {
		return netip.Addr{}, false
	}
	return netip.AddrFrom4([4]byte(o.Value)), true
}

// ServerIdentifier extracts the Server-Identifier option (tag 54).
func ServerIdentifier(opts []Option) (netip.Addr, bool) {
	o, ok := findOption(opts, OptServerID)
	if !ok || len(o.Value) != 4 {
		return netip.Addr{}, false
	}
	return netip.AddrFrom4([4]byte(o.Value)), true
}

// ClientIdentifierOption extracts the raw Client-Identifier option
// value (tag 61), if present.
func ClientIdentifierOption(opts []Option) ([]byte, bool) {
	o, ok := findOption(opts, OptClientID)
	if !ok || len(o.Value) == 0 {
		return nil, false
	}
	return o.Value, true
}

// ParameterRequestList extracts the Parameter-Request-List option
// (tag 55): an ordered list of option tags the client is asking for.
func ParameterRequestList(opts []Option) ([]byte, bool) {
	o, ok := findOption(opts, OptParameterReqs)
	if !ok || len(o.Value) == 0 {
		return nil, false
	}
	return o.Value, true
}

// IPLeaseTime extracts the IP-Address-Lease-Time option (tag 51), in
// seconds.
func IPLeaseTime(opts []Option) (uint32, bool) {
	o, ok := findOption(opts, OptLeaseTime)
	if !ok || len(o.Value) != 4 {
		return 0, false
	}
	return decodeUint32(o.Value), true
}

// VendorClassID extracts the raw Vendor-Class-Identifier option value
// (tag 60), if present.
func VendorClassID(opts []Option) ([]byte, bool) {
	o, ok := findOption(opts, OptVendorClassID)
	if !ok || len(o.Value) == 0 {
		return nil, false
	}
	return o.Value, true
}

// MessageText extracts the Message option (tag 56), used to carry a
// human-readable NAK reason or a DECLINE/RELEASE comment.
func MessageText(opts []Option) (string, bool) {
	o, ok := findOption(opts, OptMessage)
	if !ok || len(o.Value) == 0 {
		return "", false
	}
	return string(o.Value), true
}

func decodeUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// OptionsFromParameterRequests returns the subset of defaults whose tag
// appears in preqs, in the order given by preqs. Ties (a tag appearing
// more than once in either list) resolve to the first occurrence.
// Missing tags are silently skipped.
func OptionsFromParameterRequests(preqs []byte, defaults []Option) []Option {
	var out []Option
	seen := make(map[byte]bool, len(preqs))
	for _, tag := range preqs {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		if o, ok := findOption(defaults, tag); ok {
			out = append(out, o)
		}
	}
	return out
}
