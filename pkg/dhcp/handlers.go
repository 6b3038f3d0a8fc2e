package dhcp

import (
	"fmt"
	"math"
	"net/netip"
	"time"
)

// HandleDiscover implements §4.4.1: choose an address to offer, choose a
// lease time, and build an OFFER. Never mutates the lease store.
func HandleDiscover(cfg *Config, sub *Subnet, req *Pkt) (*Pkt, error) {
	log := sub.Logger
	log.Debug("DISCOVER")

	id := ComputeClientID(req)
	now := sub.Leases.Now()
	lease, hasLease := sub.Leases.Lookup(id)
	unexpired := hasLease && !lease.Expired(now)

	addr, ok := chooseOfferAddr(sub, req, id, lease, hasLease, unexpired)
	if !ok {
		log.Warn("DISCOVER: no address available", "client", id.Hex())
		return nil, nil
	}

	leaseTime := chooseLeaseTime(cfg, sub, req, lease, unexpired)
	t1 := uint32(math.Round(cfg.T1Ratio * float64(leaseTime)))
	t2 := uint32(math.Round(cfg.T2Ratio * float64(leaseTime)))

	opts := []Option{
		OptionMessageType(MsgOffer),
		OptionIPv4(OptSubnetMask, NetmaskAddr(sub.Network)),
		OptionUint32(OptLeaseTime, leaseTime),
		OptionUint32(OptRenewalT1, t1),
		OptionUint32(OptRebindingT2, t2),
		OptionIPv4(OptServerID, sub.Interface.Addr),
	}
	opts = appendVendorAndRequested(opts, sub, req)

	return BuildReply(cfg, sub, req, UnspecifiedIP(), addr, sub.Interface.Addr, req.GIAddr, opts)
}

func chooseOfferAddr(sub *Subnet, req *Pkt, id ClientID, lease Lease, hasLease, unexpired bool) (netip.Addr, bool) {
	switch {
	case unexpired:
		return lease.Addr, true
	case hasLease && sub.Leases.AddrAvailable(lease.Addr):
		return lease.Addr, true
	}
	if reqip, ok := RequestedIP(req.Options); ok && AddrInRange(reqip, sub.Range) && sub.Leases.AddrAvailable(reqip) {
		return reqip, true
	}
	return sub.Leases.GetUsableAddr(id, sub.Range)
}

func chooseLeaseTime(cfg *Config, sub *Subnet, req *Pkt, lease Lease, unexpired bool) uint32 {
	if t, ok := IPLeaseTime(req.Options); ok && cfg.LeaseTimeGood(sub, t) {
		return t
	}
	if unexpired {
		return lease.TimeLeft(sub.Leases.Now())
	}
	return cfg.DefaultLeaseTimeFor(sub)
}

func appendVendorAndRequested(opts []Option, sub *Subnet, req *Pkt) []Option {
	if vc, ok := VendorClassID(req.Options); ok {
		opts = append(opts, OptionBytes(OptVendorClassID, vc))
	}
	if preqs, ok := ParameterRequestList(req.Options); ok {
		opts = append(opts, OptionsFromParameterRequests(preqs, sub.Options)...)
	}
	return opts
}

// HandleRequest implements §4.4.2: the three named sub-cases (SELECTING,
// INIT-REBOOT, RENEWING/REBINDING) distinguished by which of
// server-identifier, requested-IP, and an existing lease are present.
// Every other combination is a silent drop.
func HandleRequest(cfg *Config, sub *Subnet, req *Pkt) (*Pkt, error) {
	log := sub.Logger
	log.Debug("REQUEST")

	id := ComputeClientID(req)
	now := sub.Leases.Now()

	sid, hasSid := ServerIdentifier(req.Options)
	reqip, hasReqip := RequestedIP(req.Options)
	lease, hasLease := sub.Leases.Lookup(id)

	switch {
	case hasSid && hasReqip:
		return handleSelecting(cfg, sub, req, id, sid, reqip)
	case !hasSid && hasReqip && hasLease:
		return handleInitReboot(cfg, sub, req, id, reqip, lease, now)
	case !hasSid && !hasReqip && hasLease:
		return handleRenewing(cfg, sub, req, id, lease, now)
	default:
		return nil, nil
	}
}

func handleSelecting(cfg *Config, sub *Subnet, req *Pkt, id ClientID, sid, reqip netip.Addr) (*Pkt, error) {
	log := sub.Logger
	if sid != sub.Interface.Addr {
		return nil, nil // not addressed to us
	}
	if isSet(req.CIAddr) {
		log.Warn("REQUEST(SELECTING): ciaddr set, dropping", "client", id.Hex())
		return nil, nil
	}
	if !AddrInRange(reqip, sub.Range) {
		return nakReply(cfg, sub, req, "Requested address is not in subnet range")
	}
	if !sub.Leases.AddrAvailable(reqip) {
		return nakReply(cfg, sub, req, "Requested address is not available")
	}
	newLease := MakeLease(id, reqip, cfg.DefaultLeaseTimeFor(sub), sub.Leases.Now())
	return ackWithLease(cfg, sub, req, id, newLease)
}

func handleInitReboot(cfg *Config, sub *Subnet, req *Pkt, id ClientID, reqip netip.Addr, lease Lease, now time.Time) (*Pkt, error) {
	log := sub.Logger
	if isSet(req.CIAddr) {
		log.Warn("REQUEST(INIT-REBOOT): ciaddr set, dropping", "client", id.Hex())
		return nil, nil
	}
	if lease.Expired(now) && !sub.Leases.AddrAvailable(lease.Addr) {
		return nakReply(cfg, sub, req, "Lease has expired and address is taken")
	}
	if !isSet(req.GIAddr) && !AddrInRange(reqip, sub.Range) {
		return nakReply(cfg, sub, req, "Requested address is not in subnet range")
	}
	if lease.Addr != reqip {
		return nakReply(cfg, sub, req, "Requested address is incorrect")
	}
	return ackWithLease(cfg, sub, req, id, lease)
}

func handleRenewing(cfg *Config, sub *Subnet, req *Pkt, id ClientID, lease Lease, now time.Time) (*Pkt, error) {
	log := sub.Logger
	if !isSet(req.CIAddr) {
		log.Warn("REQUEST(RENEWING/REBINDING): missing ciaddr, dropping", "client", id.Hex())
		return nil, nil
	}
	if lease.Expired(now) && !sub.Leases.AddrAvailable(lease.Addr) {
		return nakReply(cfg, sub, req, "Lease has expired and address is taken")
	}
	if lease.Addr != req.CIAddr {
		return nakReply(cfg, sub, req, "Requested address is incorrect")
	}
	renewed := MakeLease(id, lease.Addr, cfg.DefaultLeaseTimeFor(sub), sub.Leases.Now())
	return ackWithLease(cfg, sub, req, id, renewed)
}

// ackWithLease replaces the lease in the store and builds the ACK.
//
// The source computes T1 and T2 by calling timeleft3 with the same
// ratio for both (a likely bug noted in the design notes). This
// implementation uses the distinct T1Ratio and T2Ratio, since nothing
// here depends on reproducing that ambiguity.
func ackWithLease(cfg *Config, sub *Subnet, req *Pkt, id ClientID, lease Lease) (*Pkt, error) {
	if lease.ClientID != id {
		return nil, fmt.Errorf("dhcp: ack assembly: lease client id %q does not match %q", lease.ClientID, id)
	}

	leaseTime, t1, t2 := lease.TimeLeft3(sub.Leases.Now(), cfg.T1Ratio, cfg.T2Ratio)

	opts := []Option{
		OptionMessageType(MsgAck),
		OptionIPv4(OptSubnetMask, NetmaskAddr(sub.Network)),
		OptionUint32(OptLeaseTime, leaseTime),
		OptionUint32(OptRenewalT1, t1),
		OptionUint32(OptRebindingT2, t2),
		OptionIPv4(OptServerID, sub.Interface.Addr),
	}
	opts = appendVendorAndRequested(opts, sub, req)

	if err := sub.Leases.Replace(id, lease); err != nil {
		return nil, err
	}

	return BuildReply(cfg, sub, req, UnspecifiedIP(), lease.Addr, sub.Interface.Addr, req.GIAddr, opts)
}

// nakReply builds a DHCPNAK carrying a human-readable reason.
func nakReply(cfg *Config, sub *Subnet, req *Pkt, reason string) (*Pkt, error) {
	opts := []Option{
		OptionMessageType(MsgNak),
		OptionIPv4(OptServerID, sub.Interface.Addr),
		OptionString(OptMessage, reason),
	}
	if cid, ok := ClientIdentifierOption(req.Options); ok {
		opts = append(opts, OptionBytes(OptClientID, cid))
	}
	if vc, ok := VendorClassID(req.Options); ok {
		opts = append(opts, OptionBytes(OptVendorClassID, vc))
	}
	zero := UnspecifiedIP()
	return BuildReply(cfg, sub, req, zero, zero, zero, req.GIAddr, opts)
}

// HandleDeclineRelease implements §4.4.3: DECLINE and RELEASE share
// identical logic. Neither ever produces a reply.
func HandleDeclineRelease(sub *Subnet, req *Pkt) (*Pkt, error) {
	log := sub.Logger
	id := ComputeClientID(req)

	if _, ok := MessageTypeOf(req.Options); !ok {
		return nil, fmt.Errorf("dhcp: decline/release: missing message-type option")
	}

	sid, ok := ServerIdentifier(req.Options)
	if !ok {
		log.Warn("DECLINE/RELEASE: missing server identifier", "client", id.Hex())
		return nil, nil
	}
	if sid != sub.Interface.Addr {
		return nil, nil
	}

	if _, ok := RequestedIP(req.Options); !ok {
		log.Warn("DECLINE/RELEASE: missing requested-ip", "client", id.Hex())
		return nil, nil
	}

	if _, found := sub.Leases.Lookup(id); !found {
		log.Warn("DECLINE/RELEASE: no lease found", "client", id.Hex())
		return nil, nil
	}

	sub.Leases.Remove(id)
	msg := "unspecified"
	if m, ok := MessageText(req.Options); ok {
		msg = m
	}
	log.Info("DECLINE/RELEASE: lease removed", "client", id.Hex(), "message", msg)
	return nil, nil
}

// HandleInform implements §4.4.4. Never touches the lease store.
func HandleInform(cfg *Config, sub *Subnet, req *Pkt) (*Pkt, error) {
	if !isSet(req.CIAddr) {
		return nil, fmt.Errorf("dhcp: inform: ciaddr is unspecified")
	}

	opts := []Option{
		OptionMessageType(MsgAck),
		OptionIPv4(OptServerID, sub.Interface.Addr),
	}
	opts = appendVendorAndRequested(opts, sub, req)

	return BuildReply(cfg, sub, req, req.CIAddr, UnspecifiedIP(), sub.Interface.Addr, req.GIAddr, opts)
}
