package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nexthop-io/dhcpd/pkg/logging"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Response{Success: false, Error: msg})
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeOK(w, map[string]string{"status": "ok"})
}

func (s *Server) statusHandler(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Uptime:       time.Since(s.startTime).Truncate(time.Second).String(),
		ConfigLoaded: s.dhcp != nil,
	}
	if s.dhcp != nil {
		resp.SubnetCount = len(s.dhcp.Config().Subnets)
		resp.LeaseCount = len(s.dhcp.Leases())
	}
	writeOK(w, resp)
}

func (s *Server) subnetsHandler(w http.ResponseWriter, _ *http.Request) {
	if s.dhcp == nil {
		writeOK(w, []SubnetInfo{})
		return
	}

	now := time.Now()
	var result []SubnetInfo
	for _, sub := range s.dhcp.Config().Subnets {
		active := 0
		for _, l := range sub.Leases.All() {
			if now.Before(l.TmEnd) {
				active++
			}
		}
		poolSize := int(sub.Range.High.As4()[3]) - int(sub.Range.Low.As4()[3]) + 1
		si := SubnetInfo{
			Network:      sub.Network.String(),
			Interface:    sub.Interface.Name,
			RangeLow:     sub.Range.Low.String(),
			RangeHigh:    sub.Range.High.String(),
			ActiveLeases: active,
			PoolSize:     poolSize,
		}
		for _, opt := range sub.Options {
			si.Options = append(si.Options, strconv.Itoa(int(opt.Tag)))
		}
		result = append(result, si)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Network < result[j].Network })
	writeOK(w, result)
}

func (s *Server) leasesHandler(w http.ResponseWriter, r *http.Request) {
	if s.dhcp == nil {
		writeOK(w, []LeaseInfo{})
		return
	}

	subnetFilter := r.URL.Query().Get("subnet")
	now := time.Now()

	var result []LeaseInfo
	for _, sub := range s.dhcp.Config().Subnets {
		net := sub.Network.String()
		if subnetFilter != "" && subnetFilter != net {
			continue
		}
		for _, l := range sub.Leases.All() {
			result = append(result, LeaseInfo{
				ClientID:  l.ClientID.Hex(),
				Address:   l.Addr.String(),
				Subnet:    net,
				Interface: sub.Interface.Name,
				Start:     l.TmStart.Format(time.RFC3339),
				End:       l.TmEnd.Format(time.RFC3339),
				Expired:   !now.Before(l.TmEnd),
			})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ClientID < result[j].ClientID })
	writeOK(w, result)
}

// releaseLeaseHandler handles an operator-initiated release, mirroring a
// client RELEASE: the lease is removed from whichever subnet's store holds
// it and a RELEASE event is recorded, which falls in the lease category
// like a client RELEASE (no separate admin category is assigned).
func (s *Server) releaseLeaseHandler(w http.ResponseWriter, r *http.Request) {
	if s.dhcp == nil {
		writeError(w, http.StatusServiceUnavailable, "dhcp manager not configured")
		return
	}

	clientIDHex := strings.TrimPrefix(r.URL.Path, "/api/v1/leases/")
	if clientIDHex == "" {
		writeError(w, http.StatusBadRequest, "missing client id")
		return
	}

	for _, sub := range s.dhcp.Config().Subnets {
		for _, l := range sub.Leases.All() {
			if l.ClientID.Hex() != clientIDHex {
				continue
			}
			sub.Leases.Remove(l.ClientID)
			if eb := s.dhcp.EventBuffer(); eb != nil {
				eb.Add(logging.EventRecord{
					Time:      time.Now(),
					Type:      "RELEASE",
					Subnet:    sub.Network.String(),
					Interface: sub.Interface.Name,
					ClientID:  clientIDHex,
					Addr:      l.Addr.String(),
					Reason:    "released via admin API",
				})
			}
			writeOK(w, map[string]string{"released": clientIDHex})
			return
		}
	}
	writeError(w, http.StatusNotFound, "no such lease")
}

func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	if s.eventBuf == nil {
		writeOK(w, []EventEntry{})
		return
	}

	limit := queryInt(r, "limit", 50)
	if limit > 10000 {
		limit = 10000
	}

	filter := logging.EventFilter{
		Subnet: r.URL.Query().Get("subnet"),
		Type:   r.URL.Query().Get("type"),
	}

	var events []logging.EventRecord
	if filter.IsEmpty() {
		events = s.eventBuf.Latest(limit)
	} else {
		events = s.eventBuf.LatestFiltered(limit, filter)
	}

	result := make([]EventEntry, len(events))
	for i, ev := range events {
		result[i] = eventEntryFromRecord(ev)
	}
	writeOK(w, result)
}

func (s *Server) configHandler(w http.ResponseWriter, _ *http.Request) {
	if s.dhcp == nil {
		writeOK(w, nil)
		return
	}
	writeOK(w, s.dhcp.Config())
}

// --- helpers ---

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// severityAndCategoryFor mirrors the manager's own event classification
// (pkg/dhcp) so the admin API reports the same severity/category an
// attached syslog or local-log sink would have received.
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
