// Command coordinator-cli runs a coordinator in-process and exposes an
// interactive console for operators: listing bound devices, inspecting
// one, sending ad hoc commands, and following the event bus.
//
// Usage:
//
//	coordinator-cli [flags]
//
// Commands:
//
//	list                         List bound target_ids
//	show <target_id>             Show one device's inventory
//	send <target_id> <label> <state>  Send a command frame
//	tail                         Follow MessageReceived/DeviceDisconnected
//	help                         Show this help
//	quit                         Exit
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/rvfleet/coordinator/pkg/config"
	"github.com/rvfleet/coordinator/pkg/coordinator"
	"github.com/rvfleet/coordinator/pkg/events"
	"github.com/rvfleet/coordinator/pkg/transport"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "", "Configuration file path (YAML)")
}

func main() {
	flag.Parse()

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "coordinator-cli: %v\n", err)
		os.Exit(1)
	}

	coord := newCoordinatorFromConfig(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	if err := coord.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "coordinator-cli: failed to start: %v\n", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	console, err := newConsole(coord)
	if err != nil {
		fmt.Fprintf(os.Stderr, "coordinator-cli: %v\n", err)
		os.Exit(1)
	}
	console.Run(ctx, cancel)

	coord.Stop()
}

// console handles the interactive command loop.
type console struct {
	coord *coordinator.Coordinator
	rl    *readline.Instance

	tailing   bool
	unsubTail func()
}

func newConsole(coord *coordinator.Coordinator) (*console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "coordinator> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &console{coord: coord, rl: rl}, nil
}

func (c *console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()
		case "list", "ls":
			c.cmdList()
		case "show":
			c.cmdShow(args)
		case "send":
			c.cmdSend(args)
		case "tail":
			c.cmdTail()
		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
Coordinator Commands:
  list                              - List bound target_ids
  show <target_id>                  - Show one device's inventory
  send <target_id> <label> <state>  - Send a command frame
  tail                              - Follow the event bus (ctrl-c won't stop it; "tail" again does)
  help                              - Show this help
  quit                              - Exit`)
}

func (c *console) cmdList() {
	devices := c.coord.GetDevices()
	if len(devices) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No bound devices")
		return
	}

	ids := make([]string, 0, len(devices))
	for id := range devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		snap := devices[id]
		fmt.Fprintf(c.rl.Stdout(), "  %-16s  %d entries  last heartbeat %s\n",
			id, len(snap.Inventory), snap.LastHeartbeat.Format("15:04:05"))
	}
}

func (c *console) cmdShow(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: show <target_id>")
		return
	}

	snap, ok := c.coord.GetDevices()[args[0]]
	if !ok {
		fmt.Fprintf(c.rl.Stdout(), "No such device: %s\n", args[0])
		return
	}

	fmt.Fprintf(c.rl.Stdout(), "\n%s\n", snap.TargetID)
	fmt.Fprintf(c.rl.Stdout(), "  last heartbeat: %s\n", snap.LastHeartbeat.Format("15:04:05"))
	for _, entry := range snap.Inventory {
		fmt.Fprintf(c.rl.Stdout(), "  %-12s (%s)  id=%s  state=%s\n", entry.Label, entry.DeviceType, entry.ID, entry.State)
	}
}

func (c *console) cmdSend(args []string) {
	if len(args) < 3 {
		fmt.Fprintln(c.rl.Stdout(), "Usage: send <target_id> <label> <state>")
		return
	}

	targetID, label, state := args[0], args[1], args[2]
	snap, ok := c.coord.GetDevices()[targetID]
	if !ok {
		fmt.Fprintf(c.rl.Stdout(), "No such device: %s\n", targetID)
		return
	}

	deviceType := ""
	for _, entry := range snap.Inventory {
		if entry.Label == label {
			deviceType = entry.DeviceType
			break
		}
	}

	if err := c.coord.SendCommand(targetID, deviceType, label, state); err != nil {
		fmt.Fprintf(c.rl.Stdout(), "Send failed: %v\n", err)
		return
	}
	fmt.Fprintln(c.rl.Stdout(), "OK")
}

func (c *console) cmdTail() {
	if c.tailing {
		c.unsubTail()
		c.tailing = false
		fmt.Fprintln(c.rl.Stdout(), "Stopped tailing")
		return
	}

	c.unsubTail = c.coord.Subscribe(func(e events.Event) {
		switch e.Kind {
		case events.MessageReceived:
			fmt.Fprintf(c.rl.Stdout(), "\n[%s] %s\n", e.TargetID, e.MessageKind)
		case events.DeviceDisconnected:
			fmt.Fprintf(c.rl.Stdout(), "\n[%s] disconnected\n", e.TargetID)
		}
		c.rl.Refresh()
	})
	c.tailing = true
	fmt.Fprintln(c.rl.Stdout(), "Tailing events (run 'tail' again to stop)")
}

func newCoordinatorFromConfig(cfg config.Config) *coordinator.Coordinator {
	return coordinator.New(coordinator.Config{
		UDPPort:               cfg.UDPPort,
		TCPPort:               cfg.TCPPort,
		HeartbeatTimeout:      time.Duration(cfg.HeartbeatTimeout),
		HeartbeatScanInterval: time.Duration(cfg.HeartbeatScanInterval),
		KeepAlive: transport.KeepAliveConfig{
			Idle:     time.Duration(cfg.TCPKeepAliveIdle),
			Interval: time.Duration(cfg.TCPKeepAliveInterval),
		},
		DiagnosticLogPath: cfg.DiagnosticLogPath,
		Advertise:         cfg.Advertise,
		InstanceName:      cfg.InstanceName,
	})
}
