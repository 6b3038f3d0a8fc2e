package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nexthop-io/dhcpd/pkg/logging"
)

// setSSEHeaders configures the response for Server-Sent Events streaming.
func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// writeSSEEvent writes a single SSE event to the response.
func writeSSEEvent(w http.ResponseWriter, id string, event string, data string) {
	fmt.Fprintf(w, "id: %s\n", id)
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// eventStreamHandler streams DHCP transaction events via SSE.
// Supports ?category= filter (comma-separated: lease,policy,drop,admin).
func (s *Server) eventStreamHandler(w http.ResponseWriter, r *http.Request) {
	if s.eventBuf == nil {
		writeError(w, http.StatusServiceUnavailable, "event buffer not available")
		return
	}

	categoryFilter := parseCategories(r.URL.Query().Get("category"))

	setSSEHeaders(w)

	sub := s.eventBuf.Subscribe(128)
	defer sub.Close()

	var seq uint64
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-sub.C:
			if categoryFilter != 0 && !matchCategory(rec.Type, categoryFilter) {
				continue
			}
			seq++
			data, err := json.Marshal(eventEntryFromRecord(rec))
			if err != nil {
				continue
			}
			writeSSEEvent(w, fmt.Sprintf("%d", seq), rec.Type, string(data))
		}
	}
}

// logStreamHandler streams the same transaction events formatted as log
// lines via SSE. Supports ?severity= and ?category= filters.
func (s *Server) logStreamHandler(w http.ResponseWriter, r *http.Request) {
	if s.eventBuf == nil {
		writeError(w, http.StatusServiceUnavailable, "event buffer not available")
		return
	}

	severityFilter := logging.ParseSeverity(r.URL.Query().Get("severity"))
	categoryFilter := parseCategories(r.URL.Query().Get("category"))

	setSSEHeaders(w)

	sub := s.eventBuf.Subscribe(128)
	defer sub.Close()

	var seq uint64
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-sub.C:
			severity, category := severityAndCategoryFor(rec.Type)
			if severityFilter != 0 && severity > severityFilter {
				continue
			}
			if categoryFilter != 0 && categoryFilter&category == 0 {
				continue
			}
			seq++
			logEntry := LogStreamEntry{
				Time:     rec.Time.Format(time.RFC3339),
				Severity: severityName(severity),
				Message:  formatLogMessage(rec),
			}
			data, err := json.Marshal(logEntry)
			if err != nil {
				continue
			}
			writeSSEEvent(w, fmt.Sprintf("%d", seq), "log", string(data))
		}
	}
}

// LogStreamEntry is a log message sent via SSE.
type LogStreamEntry struct {
	Time     string `json:"time"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

func eventEntryFromRecord(rec logging.EventRecord) EventEntry {
	severity, category := severityAndCategoryFor(rec.Type)
	return EventEntry{
		Time:      rec.Time.Format(time.RFC3339),
		Type:      rec.Type,
		Subnet:    rec.Subnet,
		Interface: rec.Interface,
		ClientID:  rec.ClientID,
		Addr:      rec.Addr,
		Reason:    rec.Reason,
		LeaseTime: rec.LeaseTime,
		Severity:  severityName(severity),
		Category:  categoryName(category),
	}
}

// parseCategories parses a comma-separated category string into a bitmask.
func parseCategories(s string) uint8 {
	if s == "" {
		return 0
	}
	var mask uint8
	for _, c := range strings.Split(s, ",") {
		mask |= logging.ParseCategory(strings.TrimSpace(c))
	}
	return mask
}

// matchCategory checks if an event type matches a category bitmask.
func matchCategory(eventType string, mask uint8) bool {
	_, category := severityAndCategoryFor(eventType)
	return mask&category != 0
}

func categoryName(c uint8) string {
	switch c {
	case logging.CategoryLease:
		return "lease"
	case logging.CategoryPolicy:
		return "policy"
	case logging.CategoryDrop:
		return "drop"
	case logging.CategoryAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

func severityName(s int) string {
	switch s {
	case logging.SyslogError:
		return "error"
	case logging.SyslogWarning:
		return "warning"
	default:
		return "info"
	}
}

func formatLogMessage(rec logging.EventRecord) string {
	msg := fmt.Sprintf("%s subnet=%s interface=%s", rec.Type, rec.Subnet, rec.Interface)
	if rec.ClientID != "" {
		msg += " client=" + rec.ClientID
	}
	if rec.Addr != "" {
		msg += " addr=" + rec.Addr
	}
	if rec.LeaseTime != 0 {
		msg += fmt.Sprintf(" lease_time=%d", rec.LeaseTime)
	}
	if rec.Reason != "" {
		msg += fmt.Sprintf(" reason=%q", rec.Reason)
	}
	return msg
}
