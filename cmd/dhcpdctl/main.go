// dhcpdctl is a thin remote client for dhcpd's admin API.
//
// It offers the same show/release command set as the daemon's embedded
// CLI, but drives a running daemon over HTTP instead of a local socket,
// for scripting and remote operation without an interactive session.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
)

func main() {
	addr := flag.String("addr", "http://127.0.0.1:8080", "dhcpd admin API base URL")
	token := flag.String("token", "", "bearer token for the admin API (if auth is enabled)")
	flag.Parse()

	c := &client{
		baseURL: strings.TrimSuffix(*addr, "/"),
		token:   *token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}

	if err := c.get("/health", nil); err != nil {
		fmt.Fprintf(os.Stderr, "dhcpdctl: cannot reach %s: %v\n", c.baseURL, err)
		os.Exit(1)
	}

	if flag.NArg() > 0 {
		if err := c.dispatch(strings.Join(flag.Args(), " ")); err != nil {
			fmt.Fprintf(os.Stderr, "dhcpdctl: %v\n", err)
			os.Exit(1)
		}
		return
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "dhcpd"
	}
	c.prompt = fmt.Sprintf("%s@%s> ", os.Getenv("USER"), hostname)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          c.prompt,
		HistoryFile:     "/tmp/dhcpdctl_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "dhcpdctl: %v\n", err)
		os.Exit(1)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				break
			}
			fmt.Fprintf(os.Stderr, "dhcpdctl: %v\n", err)
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		if err := c.dispatch(line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

type client struct {
	baseURL string
	token   string
	http    *http.Client
	prompt  string

	// lastData holds the most recently decoded "data" payload; do() sets
	// it and each show* helper unmarshals it into the shape it expects.
	lastData json.RawMessage
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (c *client) get(path string, query url.Values) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req)
}

func (c *client) delete(path string) error {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req)
}

func (c *client) do(req *http.Request) error {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.Success {
		return fmt.Errorf("%s", env.Error)
	}
	c.lastData = env.Data
	return nil
}

func (c *client) dispatch(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	switch parts[0] {
	case "show":
		return c.handleShow(parts[1:])
	case "release":
		if len(parts) < 2 {
			return fmt.Errorf("release: missing client-id")
		}
		return c.handleRelease(parts[1])
	case "?", "help":
		c.showHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s", parts[0])
	}
}

func (c *client) handleShow(args []string) error {
	if len(args) == 0 {
		c.showHelp()
		return nil
	}

	switch args[0] {
	case "status":
		return c.showStatus()
	case "subnets":
		return c.showSubnets()
	case "leases":
		var filter string
		if len(args) > 1 {
			filter = args[1]
		}
		return c.showLeases(filter)
	case "events":
		return c.showEvents()
	case "configuration":
		return c.showConfiguration()
	default:
		return fmt.Errorf("unknown show target: %s", args[0])
	}
}

type statusResponse struct {
	Uptime       string `json:"uptime"`
	ConfigLoaded bool   `json:"config_loaded"`
	SubnetCount  int    `json:"subnet_count"`
	LeaseCount   int    `json:"lease_count"`
}

func (c *client) showStatus() error {
	if err := c.get("/api/v1/status", nil); err != nil {
		return err
	}
	var s statusResponse
	if err := json.Unmarshal(c.lastData, &s); err != nil {
		return err
	}
	fmt.Printf("uptime: %s\nconfig loaded: %v\nsubnets: %d\nleases: %d\n",
		s.Uptime, s.ConfigLoaded, s.SubnetCount, s.LeaseCount)
	return nil
}

type subnetInfo struct {
	Network      string   `json:"network"`
	Interface    string   `json:"interface"`
	RangeLow     string   `json:"range_low"`
	RangeHigh    string   `json:"range_high"`
	ActiveLeases int      `json:"active_leases"`
	PoolSize     int      `json:"pool_size"`
	Options      []string `json:"options,omitempty"`
}

func (c *client) showSubnets() error {
	if err := c.get("/api/v1/subnets", nil); err != nil {
		return err
	}
	var subnets []subnetInfo
	if err := json.Unmarshal(c.lastData, &subnets); err != nil {
		return err
	}
	for _, s := range subnets {
		fmt.Printf("Subnet: %s on %s\n", s.Network, s.Interface)
		fmt.Printf("  Range: %s - %s (%d addresses, %d active leases)\n",
			s.RangeLow, s.RangeHigh, s.PoolSize, s.ActiveLeases)
	}
	return nil
}

type leaseInfo struct {
	ClientID  string `json:"client_id"`
	Address   string `json:"address"`
	Subnet    string `json:"subnet"`
	Interface string `json:"interface"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Expired   bool   `json:"expired"`
}

func (c *client) showLeases(subnetFilter string) error {
	q := url.Values{}
	if subnetFilter != "" {
		q.Set("subnet", subnetFilter)
	}
	if err := c.get("/api/v1/leases", q); err != nil {
		return err
	}
	var leases []leaseInfo
	if err := json.Unmarshal(c.lastData, &leases); err != nil {
		return err
	}
	for _, l := range leases {
		state := "bound"
		if l.Expired {
			state = "expired"
		}
		fmt.Printf("%-20s %-16s %-10s %s\n", l.ClientID, l.Address, state, l.End)
	}
	return nil
}

type eventEntry struct {
	Time     string `json:"time"`
	Type     string `json:"type"`
	Subnet   string `json:"subnet"`
	ClientID string `json:"client_id,omitempty"`
	Addr     string `json:"addr,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

func (c *client) showEvents() error {
	if err := c.get("/api/v1/events", nil); err != nil {
		return err
	}
	var events []eventEntry
	if err := json.Unmarshal(c.lastData, &events); err != nil {
		return err
	}
	for _, e := range events {
		fmt.Printf("%s %-8s subnet=%s client=%s addr=%s reason=%q\n",
			e.Time, e.Type, e.Subnet, e.ClientID, e.Addr, e.Reason)
	}
	return nil
}

func (c *client) showConfiguration() error {
	if err := c.get("/api/v1/config", nil); err != nil {
		return err
	}
	pretty, err := json.MarshalIndent(json.RawMessage(c.lastData), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	return nil
}

func (c *client) handleRelease(clientID string) error {
	if err := c.delete("/api/v1/leases/" + clientID); err != nil {
		return err
	}
	fmt.Printf("released lease for %s\n", clientID)
	return nil
}

func (c *client) showHelp() {
	fmt.Println("Commands:")
	fmt.Println("  show status            Show daemon status")
	fmt.Println("  show subnets           Show configured subnets")
	fmt.Println("  show leases [subnet]   Show held leases")
	fmt.Println("  show events            Show recent transaction events")
	fmt.Println("  show configuration     Show the active configuration")
	fmt.Println("  release <client-id>    Release a held lease")
	fmt.Println("  quit                   Exit")
}
