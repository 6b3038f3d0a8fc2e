package dhcp

import (
	"context"
	"fmt"
	"net"

	"github.com/mdlayher/packet"
	"golang.org/x/sys/unix"
)

// Link is the per-subnet raw I/O abstraction: read one frame, send one
// frame. The server never talks to a socket directly outside this
// interface, so tests can substitute an in-memory Link.
type Link interface {
	ReadFrame(ctx context.Context) (*Frame, error)
	WriteFrame(ctx context.Context, f *Frame) error
	Close() error
}

// PacketLink is a Link backed by an AF_PACKET socket bound to one
// network interface, filtering to UDP port 67 (the DHCP server port)
// at the IP layer since raw sockets see every frame on the interface.
type PacketLink struct {
	conn *packet.Conn
	ifi  *net.Interface
}

// NewPacketLink opens a raw socket on ifaceName and binds it to IPv4
// traffic only; DHCP has no IPv6 concern for this server.
func NewPacketLink(ifaceName string) (*PacketLink, error) {
	ifi, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("dhcp: resolve interface %s: %w", ifaceName, err)
	}
	conn, err := packet.Listen(ifi, unix.SOCK_RAW, unix.ETH_P_IP, nil)
	if err != nil {
		return nil, fmt.Errorf("dhcp: open raw socket on %s: %w", ifaceName, err)
	}
	return &PacketLink{conn: conn, ifi: ifi}, nil
}

const maxFrameLen = 1518

// ReadFrame blocks for one Ethernet frame, filtering for UDP port 67
// destined traffic and discarding everything else.
func (l *PacketLink) ReadFrame(ctx context.Context) (*Frame, error) {
	buf := make([]byte, maxFrameLen)
	for {
		if dl, ok := ctx.Deadline(); ok {
			l.conn.SetReadDeadline(dl)
		}
		n, _, err := l.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		f, err := ParseFrame(buf[:n])
		if err != nil {
			// Not a DHCP-shaped frame (ARP, IPv6, TCP, ...). Not an
			// error worth surfacing; keep reading.
			continue
		}
		if f.DstPort != ServerPort {
			continue
		}
		return f, nil
	}
}

// WriteFrame renders and transmits one frame on the link.
func (l *PacketLink) WriteFrame(ctx context.Context, f *Frame) error {
	buf, err := RenderFrame(f)
	if err != nil {
		return err
	}
	if dl, ok := ctx.Deadline(); ok {
		l.conn.SetWriteDeadline(dl)
	}
	addr := &packet.Addr{HardwareAddr: f.DstMAC}
	_, err = l.conn.WriteTo(buf, addr)
	return err
}

// Close releases the underlying socket.
func (l *PacketLink) Close() error { return l.conn.Close() }
