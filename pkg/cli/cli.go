// Package cli implements the Junos-style interactive CLI for dhcpd.
package cli

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/nexthop-io/dhcpd/pkg/configstore"
	"github.com/nexthop-io/dhcpd/pkg/dhcp"
)

// CLI is the interactive command-line interface.
type CLI struct {
	rl       *readline.Instance
	store    *configstore.Store
	mgr      *dhcp.Manager
	hostname string
	username string
}

// New creates a new CLI bound to the config store and the running manager.
func New(store *configstore.Store, mgr *dhcp.Manager) *CLI {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "dhcpd"
	}
	username := os.Getenv("USER")
	if username == "" {
		username = "root"
	}

	return &CLI{
		store:    store,
		mgr:      mgr,
		hostname: hostname,
		username: username,
	}
}

// Run starts the interactive CLI loop.
func (c *CLI) Run() error {
	var err error
	c.rl, err = readline.NewEx(&readline.Config{
		Prompt:          c.operationalPrompt(),
		HistoryFile:     "/tmp/dhcpd_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    &setPathCompleter{cli: c},
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer c.rl.Close()

	fmt.Println("dhcpd - Junos-style DHCPv4 server")
	fmt.Println("Type '?' for help")
	fmt.Println()

	for {
		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			if err == io.EOF {
				break
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if err := c.dispatch(line); err != nil {
			if err == errExit {
				return nil
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	return nil
}

var errExit = fmt.Errorf("exit")

func (c *CLI) dispatch(line string) error {
	if c.store.InConfigMode() {
		return c.dispatchConfig(line)
	}
	return c.dispatchOperational(line)
}

func (c *CLI) dispatchOperational(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	switch parts[0] {
	case "configure":
		c.store.EnterConfigure()
		c.rl.SetPrompt(c.configPrompt())
		fmt.Println("Entering configuration mode")
		return nil

	case "show":
		return c.handleShow(parts[1:])

	case "release":
		if len(parts) < 2 {
			return fmt.Errorf("release: missing client-id")
		}
		return c.handleRelease(parts[1])

	case "quit", "exit":
		return errExit

	case "?", "help":
		c.showOperationalHelp()
		return nil

	default:
		return fmt.Errorf("unknown command: %s", parts[0])
	}
}

func (c *CLI) dispatchConfig(line string) error {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return nil
	}

	switch parts[0] {
	case "set":
		if len(parts) < 2 {
			return fmt.Errorf("set: missing path")
		}
		return c.store.SetFromInput(strings.Join(parts[1:], " "))

	case "delete":
		if len(parts) < 2 {
			return fmt.Errorf("delete: missing path")
		}
		return c.store.DeleteFromInput(strings.Join(parts[1:], " "))

	case "show":
		return c.handleConfigShow(parts[1:])

	case "commit":
		return c.handleCommit(parts[1:])

	case "rollback":
		n := 0
		if len(parts) >= 2 {
			fmt.Sscanf(parts[1], "%d", &n)
		}
		if err := c.store.Rollback(n); err != nil {
			return err
		}
		fmt.Println("configuration rolled back")
		return nil

	case "run":
		if len(parts) < 2 {
			return fmt.Errorf("run: missing command")
		}
		return c.dispatchOperational(strings.Join(parts[1:], " "))

	case "exit", "quit":
		if c.store.IsDirty() {
			fmt.Println("warning: uncommitted changes will be discarded")
		}
		c.store.ExitConfigure()
		c.rl.SetPrompt(c.operationalPrompt())
		fmt.Println("Exiting configuration mode")
		return nil

	case "?", "help":
		c.showConfigHelp()
		return nil

	default:
		return fmt.Errorf("unknown command: %s (in configuration mode)", parts[0])
	}
}

func (c *CLI) handleShow(args []string) error {
	if len(args) == 0 {
		fmt.Println("show: specify what to show")
		fmt.Println("  configuration    Show active configuration")
		fmt.Println("  subnets          Show configured subnets")
		fmt.Println("  leases           Show held leases")
		fmt.Println("  events           Show recent transaction events")
		fmt.Println("  log              Show recent events as log lines")
		fmt.Println("  commit-history   Show prior commits available to roll back to")
		return nil
	}

	switch args[0] {
	case "configuration":
		fmt.Print(c.store.ShowActive())
		return nil
	case "subnets":
		return c.showSubnets()
	case "leases":
		return c.showLeases(args[1:])
	case "events":
		return c.showEvents(args[1:])
	case "log":
		return c.showLog(args[1:])
	case "commit-history":
		return c.showCommitHistory()
	default:
		return fmt.Errorf("unknown show target: %s", args[0])
	}
}

func (c *CLI) showCommitHistory() error {
	entries := c.store.CommitHistory()
	if len(entries) == 0 {
		fmt.Println("no prior commits")
		return nil
	}
	for i, e := range entries {
		fmt.Printf("%d  %s\n", i+1, e.Summary())
	}
	return nil
}

func (c *CLI) showSubnets() error {
	if c.mgr == nil {
		fmt.Println("no manager attached")
		return nil
	}
	now := time.Now()
	for _, sub := range c.mgr.Config().Subnets {
		active := 0
		for _, l := range sub.Leases.All() {
			if now.Before(l.TmEnd) {
				active++
			}
		}
		fmt.Printf("Subnet: %s on %s\n", sub.Network.String(), sub.Interface.Name)
		fmt.Printf("  Range: %s - %s\n", sub.Range.Low, sub.Range.High)
		fmt.Printf("  Leases: %d active\n", active)
		for _, opt := range sub.Options {
			fmt.Printf("  Option: tag=%d bytes=%x\n", opt.Tag, opt.Value)
		}
		fmt.Println()
	}
	return nil
}

func (c *CLI) showLeases(args []string) error {
	if c.mgr == nil {
		fmt.Println("no manager attached")
		return nil
	}
	var filterSubnet string
	if len(args) > 0 {
		filterSubnet = args[0]
	}
	now := time.Now()
	for _, sub := range c.mgr.Config().Subnets {
		if filterSubnet != "" && sub.Network.String() != filterSubnet {
			continue
		}
		for _, l := range sub.Leases.All() {
			state := "bound"
			if l.Expired(now) {
				state = "expired"
			}
			fmt.Printf("%-20s %-20s %-10s %s\n", l.ClientID.Hex(), l.Addr, state, l.TmEnd.Format(time.RFC3339))
		}
	}
	return nil
}

func (c *CLI) showEvents(args []string) error {
	if c.mgr == nil || c.mgr.EventBuffer() == nil {
		fmt.Println("no event buffer attached")
		return nil
	}
	n := 50
	for _, rec := range c.mgr.EventBuffer().Latest(n) {
		if len(args) > 0 && args[0] != "" && rec.Subnet != args[0] {
			continue
		}
		fmt.Printf("%s %-8s subnet=%s iface=%s client=%s addr=%s reason=%q\n",
			rec.Time.Format(time.RFC3339), rec.Type, rec.Subnet, rec.Interface, rec.ClientID, rec.Addr, rec.Reason)
	}
	return nil
}

func (c *CLI) showLog(args []string) error {
	if c.mgr == nil || c.mgr.EventBuffer() == nil {
		fmt.Println("no event buffer attached")
		return nil
	}
	for _, rec := range c.mgr.EventBuffer().Latest(50) {
		fmt.Printf("%s [%s] subnet=%s %s\n", rec.Time.Format(time.RFC3339), rec.Type, rec.Subnet, rec.Reason)
	}
	return nil
}

func (c *CLI) handleRelease(idHex string) error {
	if c.mgr == nil {
		return fmt.Errorf("no manager attached")
	}
	raw, err := hex.DecodeString(idHex)
	if err != nil {
		return fmt.Errorf("invalid client-id %q: %w", idHex, err)
	}
	id := dhcp.ClientID(raw)
	for _, sub := range c.mgr.Config().Subnets {
		if _, ok := sub.Leases.Lookup(id); ok {
			sub.Leases.Remove(id)
			fmt.Printf("released lease for %s on %s\n", idHex, sub.Network)
			return nil
		}
	}
	return fmt.Errorf("no lease found for client-id %s", idHex)
}

func (c *CLI) handleConfigShow(args []string) error {
	line := strings.Join(args, " ")

	if strings.Contains(line, "| compare") {
		fmt.Print(c.store.ShowCompare())
		return nil
	}
	if strings.Contains(line, "| display set") {
		fmt.Print(c.store.ShowCandidateSet())
		return nil
	}

	fmt.Print(c.store.ShowCandidate())
	return nil
}

func (c *CLI) handleCommit(args []string) error {
	if len(args) > 0 && args[0] == "check" {
		if _, err := c.store.CommitCheck(); err != nil {
			return fmt.Errorf("commit check failed: %w", err)
		}
		fmt.Println("configuration check succeeds")
		return nil
	}

	if _, err := c.store.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	fmt.Println("commit complete")
	fmt.Println("note: restart dhcpd to bind any newly added or changed subnets")
	return nil
}

func (c *CLI) operationalPrompt() string {
	return fmt.Sprintf("%s@%s> ", c.username, c.hostname)
}

func (c *CLI) configPrompt() string {
	return fmt.Sprintf("%s@%s# ", c.username, c.hostname)
}

func (c *CLI) showOperationalHelp() {
	fmt.Println("Operational mode commands:")
	fmt.Println("  configure                 Enter configuration mode")
	fmt.Println("  show configuration        Show active configuration")
	fmt.Println("  show subnets               Show configured subnets")
	fmt.Println("  show leases [subnet]       Show held leases")
	fmt.Println("  show events [subnet]       Show recent transaction events")
	fmt.Println("  show log                   Show recent events as log lines")
	fmt.Println("  release <client-id>        Release a held lease")
	fmt.Println("  quit                       Exit the CLI")
}

func (c *CLI) showConfigHelp() {
	fmt.Println("Configuration mode commands:")
	fmt.Println("  set <path>                Set a configuration statement")
	fmt.Println("  delete <path>             Delete a configuration statement")
	fmt.Println("  show                      Show the candidate configuration")
	fmt.Println("  show | compare            Show pending changes")
	fmt.Println("  show | display set        Show candidate as set commands")
	fmt.Println("  commit [check]            Activate (or just validate) the candidate")
	fmt.Println("  rollback [n]              Discard changes or revert to a prior commit")
	fmt.Println("  run <command>             Run an operational-mode command")
	fmt.Println("  exit                      Leave configuration mode")
}
