package dhcp

// ValidPkt reports whether an inbound packet has an acceptable shape to
// proceed to dispatch at all (§4.5). Packets failing this check are
// never passed to a handler and never produce a reply or lease-store
// mutation (P6).
func ValidPkt(p *Pkt) bool {
	return p.Op == BootRequest && p.HType == EthernetTenMB && p.HLen == 6 && p.Hops == 0
}

// Dispatch validates p and routes it to the handler for its message
// type. It returns a reply packet (or nil for a drop) and an error only
// for a genuine handler fault — never for an ordinary drop.
func Dispatch(cfg *Config, sub *Subnet, p *Pkt) (*Pkt, error) {
	if !ValidPkt(p) {
		sub.Logger.Warn("invalid packet shape, dropping")
		return nil, nil
	}

	mt, ok := MessageTypeOf(p.Options)
	if !ok {
		sub.Logger.Warn("no dhcp msgtype")
		return nil, nil
	}

	switch mt {
	case MsgDiscover:
		return HandleDiscover(cfg, sub, p)
	case MsgRequest:
		return HandleRequest(cfg, sub, p)
	case MsgDecline, MsgRelease:
		return HandleDeclineRelease(sub, p)
	case MsgInform:
		return HandleInform(cfg, sub, p)
	default:
		sub.Logger.Debug("unhandled msgtype", "type", mt)
		return nil, nil
	}
}
