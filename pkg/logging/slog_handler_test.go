package logging

import (
	"bytes"
	"context"
	"log/slog"
	"net"
	"testing"
	"time"
)

func newUDPSyslogTestClient(t *testing.T) (*SyslogClient, *net.UDPConn) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatal(err)
	}
	addr := conn.LocalAddr().(*net.UDPAddr)
	client, err := NewSyslogClient("127.0.0.1", addr.Port)
	if err != nil {
		conn.Close()
		t.Fatal(err)
	}
	return client, conn
}

func recvCount(t *testing.T, conn *net.UDPConn, timeout time.Duration) int {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	buf := make([]byte, 1024)
	n := 0
	for {
		if _, _, err := conn.ReadFromUDP(buf); err != nil {
			return n
		}
		n++
	}
}

func TestSyslogSlogHandlerForwardsRecords(t *testing.T) {
	client, conn := newUDPSyslogTestClient(t)
	defer conn.Close()
	defer client.Close()

	var base bytes.Buffer
	h := NewSyslogSlogHandler(slog.NewTextHandler(&base, nil))
	h.SetClients([]*SyslogClient{client})

	logger := slog.New(h)
	logger.Warn("Dropped packet: decode failed", "subnet", "192.168.1.0/24")
	logger.Warn("Dropped packet: link read error", "subnet", "192.168.1.0/24")

	if got := recvCount(t, conn, 200*time.Millisecond); got != 2 {
		t.Errorf("received %d syslog datagrams, want 2 distinct messages forwarded", got)
	}
	if base.Len() == 0 {
		t.Error("base handler should still receive every record")
	}
}

// The subnet receive loop logs an identical warning on every failed
// read during a sustained error condition; the remote syslog server
// should see it once per window, not once per packet.
func TestSyslogSlogHandlerSuppressesIdenticalRepeats(t *testing.T) {
	client, conn := newUDPSyslogTestClient(t)
	defer conn.Close()
	defer client.Close()

	h := NewSyslogSlogHandler(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	h.SetClients([]*SyslogClient{client})

	logger := slog.New(h)
	for i := 0; i < 50; i++ {
		logger.Warn("Dropped packet: link read error")
	}

	if got := recvCount(t, conn, 200*time.Millisecond); got != 1 {
		t.Errorf("received %d syslog datagrams, want 1 (repeats suppressed)", got)
	}
}

func TestSyslogSlogHandlerForwardsAgainAfterWindow(t *testing.T) {
	h := NewSyslogSlogHandler(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	if !h.shouldForward("x") {
		t.Error("first occurrence should forward")
	}
	if h.shouldForward("x") {
		t.Error("immediate repeat should be suppressed")
	}
	h.lastSent = time.Now().Add(-2 * repeatSuppressWindow)
	if !h.shouldForward("x") {
		t.Error("repeat after the suppression window should forward again")
	}
}

func TestSyslogSlogHandlerEnabledDelegatesToBase(t *testing.T) {
	h := NewSyslogSlogHandler(slog.NewTextHandler(bytes.NewBuffer(nil), &slog.HandlerOptions{Level: slog.LevelWarn}))
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Info should not be enabled when base is configured for Warn")
	}
	if !h.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("Warn should be enabled")
	}
}

func TestSyslogSlogHandlerWithAttrsPreservesClients(t *testing.T) {
	client, conn := newUDPSyslogTestClient(t)
	defer conn.Close()
	defer client.Close()

	h := NewSyslogSlogHandler(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	h.SetClients([]*SyslogClient{client})

	h2 := h.WithAttrs([]slog.Attr{slog.String("interface", "eth0")}).(*SyslogSlogHandler)
	logger := slog.New(h2)
	logger.Warn("Dropped packet: decode failed")

	if got := recvCount(t, conn, 200*time.Millisecond); got != 1 {
		t.Errorf("received %d syslog datagrams, want 1", got)
	}
}
