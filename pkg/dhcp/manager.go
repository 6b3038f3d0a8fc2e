package dhcp

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nexthop-io/dhcpd/pkg/logging"
)

// logSink is the subset of logging.SyslogClient and logging.LocalLogWriter
// a Manager needs to forward transaction events to a remote or local log.
type logSink interface {
	Send(severity int, msg string) error
	ShouldSendEvent(severity int, categoryBit uint8) bool
}

// Manager runs one receive loop per configured subnet (§5: one logical
// task per subnet, cooperative, no shared mutable state besides each
// subnet's own lease store).
type Manager struct {
	cfg    *Config
	logger *slog.Logger

	eventBuf *logging.EventBuffer
	sinks    []logSink
}

// NewManager creates a Manager for the given configuration.
func NewManager(cfg *Config) *Manager {
	return &Manager{cfg: cfg, logger: slog.Default()}
}

// Config returns the manager's configuration.
func (m *Manager) Config() *Config { return m.cfg }

// SetEventBuffer attaches an in-memory ring buffer that records every
// transaction the manager handles, for the admin API's event listing
// and SSE streaming.
func (m *Manager) SetEventBuffer(eb *logging.EventBuffer) { m.eventBuf = eb }

// AddLogSink registers a syslog or local-log destination to receive a
// formatted line for every transaction, subject to its own severity and
// category filters.
func (m *Manager) AddLogSink(s logSink) { m.sinks = append(m.sinks, s) }

// EventBuffer returns the manager's attached event buffer, or nil.
func (m *Manager) EventBuffer() *logging.EventBuffer { return m.eventBuf }

// Subnet looks up a configured subnet by interface name, for use by the
// admin API and CLI.
func (m *Manager) Subnet(ifaceName string) (*Subnet, bool) {
	for _, s := range m.cfg.Subnets {
		if s.Interface.Name == ifaceName {
			return s, true
		}
	}
	return nil, false
}

// Leases returns a snapshot of every lease held across every configured
// subnet, for the admin API's lease listing.
func (m *Manager) Leases() []Lease {
	var out []Lease
	for _, sub := range m.cfg.Subnets {
		out = append(out, sub.Leases.All()...)
	}
	return out
}

// Run starts every subnet's receive loop and blocks until ctx is
// canceled or one loop returns a non-cancellation error, at which point
// every other loop is canceled too (§5).
func (m *Manager) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, sub := range m.cfg.Subnets {
		sub := sub
		g.Go(func() error {
			return m.serveSubnet(ctx, sub)
		})
	}
	return g.Wait()
}

// serveSubnet implements §4.6: read, decode, dispatch, send, forever.
// No single bad packet or handler error terminates the loop; only
// context cancellation does.
func (m *Manager) serveSubnet(ctx context.Context, sub *Subnet) error {
	sub.Logger.Info("subnet loop started", "range", sub.Range.Low.String()+"-"+sub.Range.High.String())
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := sub.Link.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			sub.Logger.Warn("Dropped packet: link read error", "err", err)
			continue
		}

		replyFrame, err := m.handleFrame(sub, frame)
		if err != nil {
			sub.Logger.Warn("Input pkt error", "err", err)
			continue
		}
		if replyFrame == nil {
			continue
		}

		if err := sub.Link.WriteFrame(ctx, replyFrame); err != nil {
			sub.Logger.Warn("send failed", "err", err)
		}
	}
}

// handleFrame decodes one inbound frame, dispatches it, and renders any
// reply back into a frame. A handler panic is caught and turned into a
// logged error rather than killing the subnet loop (§5 failure
// isolation). Every decoded transaction, including silent drops, is
// recorded to the event buffer and forwarded to any attached log sink.
func (m *Manager) handleFrame(sub *Subnet, frame *Frame) (reply *Frame, err error) {
	defer func() {
		if r := recover(); r != nil {
			sub.Logger.Error("handler panic recovered", "panic", r)
			reply, err = nil, nil
		}
	}()

	p, decErr := Decode(frame.Payload)
	if decErr != nil {
		sub.Logger.Warn("Dropped packet: decode failed", "err", decErr)
		m.recordEvent(sub, nil, nil, "malformed packet: "+decErr.Error())
		return nil, nil
	}
	p.SrcMAC = frame.SrcMAC
	p.DstMAC = frame.DstMAC
	p.SrcIP = frame.SrcIP
	p.DstIP = frame.DstIP
	p.SrcPort = frame.SrcPort
	p.DstPort = frame.DstPort

	replyPkt, hErr := Dispatch(m.cfg, sub, p)
	if hErr != nil {
		m.recordEvent(sub, p, nil, hErr.Error())
		return nil, hErr
	}
	m.recordEvent(sub, p, replyPkt, "")
	if replyPkt == nil {
		return nil, nil
	}

	buf, encErr := Encode(replyPkt)
	if encErr != nil {
		return nil, encErr
	}

	return &Frame{
		SrcMAC:  sub.Interface.MAC,
		DstMAC:  replyPkt.DstMAC,
		SrcIP:   replyPkt.SrcIP,
		DstIP:   replyPkt.DstIP,
		SrcPort: replyPkt.SrcPort,
		DstPort: replyPkt.DstPort,
		Payload: buf,
	}, nil
}

// recordEvent builds an EventRecord for one handled transaction and
// fans it out to the event buffer and every attached log sink. req may
// be nil (packet failed to decode); reply may be nil (silent drop, or a
// message type that never produces one, like RELEASE).
func (m *Manager) recordEvent(sub *Subnet, req, reply *Pkt, reason string) {
	if m.eventBuf == nil && len(m.sinks) == 0 {
		return
	}

	rec := logging.EventRecord{
		Time:      time.Now(),
		Subnet:    sub.Network.String(),
		Interface: sub.Interface.Name,
		Reason:    reason,
	}

	switch {
	case reply != nil:
		mt, _ := MessageTypeOf(reply.Options)
		rec.Type = mt.String()
		if isSet(reply.YIAddr) {
			rec.Addr = reply.YIAddr.String()
		}
		if lt, ok := IPLeaseTime(reply.Options); ok {
			rec.LeaseTime = lt
		}
		if rec.Reason == "" {
			if msg, ok := MessageText(reply.Options); ok {
				rec.Reason = msg
			}
		}
	case req != nil:
		// A request that produced no reply is only expected for DECLINE
		// and RELEASE, which are acknowledgment-less by design; every
		// other no-reply case (malformed-but-decodable, no address
		// available, wrong server-id, any other silent drop) is a drop.
		if mt, ok := MessageTypeOf(req.Options); ok && (mt == MsgDecline || mt == MsgRelease) {
			rec.Type = mt.String()
		} else {
			rec.Type = "DROP"
		}
	default:
		rec.Type = "DROP"
	}
	if req != nil {
		rec.ClientID = ComputeClientID(req).Hex()
	}

	if m.eventBuf != nil {
		m.eventBuf.Add(rec)
	}

	if len(m.sinks) == 0 {
		return
	}
	severity, category := severityAndCategoryFor(rec.Type)
	line := formatEventLine(rec)
	for _, sink := range m.sinks {
		if !sink.ShouldSendEvent(severity, category) {
			continue
		}
		if err := sink.Send(severity, line); err != nil {
			sub.Logger.Warn("log sink send failed", "err", err)
		}
	}
}

func severityAndCategoryFor(eventType string) (severity int, category uint8) {
	switch eventType {
	case "NAK":
		return logging.SyslogWarning, logging.CategoryPolicy
	case "DROP":
		return logging.SyslogWarning, logging.CategoryDrop
	case "OFFER", "ACK", "RELEASE", "DECLINE":
		return logging.SyslogInfo, logging.CategoryLease
	default:
		return logging.SyslogInfo, logging.CategoryLease
	}
}

func formatEventLine(rec logging.EventRecord) string {
	msg := rec.Type + " subnet=" + rec.Subnet + " interface=" + rec.Interface
	if rec.ClientID != "" {
		msg += " client=" + rec.ClientID
	}
	if rec.Addr != "" {
		msg += " addr=" + rec.Addr
	}
	if rec.LeaseTime != 0 {
		msg += " lease_time=" + strconv.FormatUint(uint64(rec.LeaseTime), 10)
	}
	if rec.Reason != "" {
		msg += " reason=\"" + rec.Reason + "\""
	}
	return msg
}
