package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/chzyer/readline"
)

// Console is the interactive command line of mash-exchange.
type Console struct {
	rl  *readline.Instance
	app *App
}

// NewConsole creates the console. Attach the App with SetApp before Run.
func NewConsole() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "exchange> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{rl: rl}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Stderr returns a writer that properly coordinates with the readline input.
func (c *Console) Stderr() io.Writer {
	return c.rl.Stderr()
}

// SetApp attaches the application the commands operate on.
func (c *Console) SetApp(app *App) {
	c.app = app
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
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

		case "nodes":
			c.cmdNodes()

		case "view", "v":
			c.cmdView(ctx, args)

		case "add":
			c.cmdAdd(ctx, args)

		case "remove", "rm":
			c.cmdRemove(ctx, args)

		case "disconnect":
			c.cmdDisconnect(ctx, args)

		case "download", "d":
			c.cmdDownload(ctx)

		case "fail":
			c.cmdFail(args)

		case "set":
			c.cmdSet(args)

		case "info", "status":
			c.cmdInfo(ctx)

		case "clean":
			c.cmdClean(ctx)

		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return

		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
MASH Exchange Commands:
  Subscriptions:
    nodes                 - List configured nodes
    add <group> <node>    - Subscribe a group to a node (creates the group)
    remove <group> <node> - Unsubscribe a group from a node
    disconnect <group>    - Disconnect a group and its child groups

  Data:
    view [prefix]         - Show stored values
    download              - Run a download cycle now
    clean                 - Drop stored values nobody subscribes to

  Simulation:
    set <node> <value>    - Change a value on the simulated device
    fail on|off           - Make the simulated device reject requests

  General:
    info                  - Show downloader status
    help                  - Show this help
    quit                  - Exit`)
}

func (c *Console) out() io.Writer {
	return c.rl.Stdout()
}

// do runs fn on the download goroutine and reports a scheduling failure.
func (c *Console) do(ctx context.Context, fn func()) bool {
	if err := c.app.Do(ctx, fn); err != nil {
		fmt.Fprintf(c.out(), "Error: %v\n", err)
		return false
	}
	return true
}

func (c *Console) cmdNodes() {
	for _, n := range c.app.cfg.Nodes {
		fmt.Fprintf(c.out(), "  %-16s %d/%d/%d %s\n", n.Key, n.Endpoint, n.Feature, n.Attribute, n.Access)
	}
}

func (c *Console) cmdView(ctx context.Context, args []string) {
	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}

	var items map[string]any
	if !c.do(ctx, func() { items = c.app.View(prefix) }) {
		return
	}
	if len(items) == 0 {
		fmt.Fprintln(c.out(), "No values")
		return
	}

	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(c.out(), "  %-16s %v\n", k, items[k])
	}
}

func (c *Console) cmdAdd(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out(), "Usage: add <group> <node>")
		return
	}
	var err error
	if !c.do(ctx, func() { err = c.app.AddNode(args[0], args[1]) }) {
		return
	}
	if err != nil {
		fmt.Fprintf(c.out(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out(), "%s subscribed to %s\n", args[0], args[1])
}

func (c *Console) cmdRemove(ctx context.Context, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out(), "Usage: remove <group> <node>")
		return
	}
	var err error
	if !c.do(ctx, func() { err = c.app.RemoveNode(args[0], args[1]) }) {
		return
	}
	if err != nil {
		fmt.Fprintf(c.out(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out(), "%s unsubscribed from %s\n", args[0], args[1])
}

func (c *Console) cmdDisconnect(ctx context.Context, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out(), "Usage: disconnect <group>")
		return
	}
	var (
		gone []string
		err  error
	)
	if !c.do(ctx, func() { gone, err = c.app.Disconnect(args[0]) }) {
		return
	}
	if err != nil {
		fmt.Fprintf(c.out(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out(), "Disconnected: %s\n", strings.Join(gone, ", "))
}

func (c *Console) cmdDownload(ctx context.Context) {
	var err error
	if !c.do(ctx, func() { err = c.app.Download(ctx) }) {
		return
	}
	if err != nil {
		fmt.Fprintf(c.out(), "Download failed: %v\n", err)
	}
}

func (c *Console) cmdFail(args []string) {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		fmt.Fprintln(c.out(), "Usage: fail on|off")
		return
	}
	c.app.SetFailing(args[0] == "on")
	fmt.Fprintf(c.out(), "Device failing: %s\n", args[0])
}

func (c *Console) cmdSet(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out(), "Usage: set <node> <value>")
		return
	}
	if err := c.app.SetValue(args[0], args[1]); err != nil {
		fmt.Fprintf(c.out(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out(), "%s = %s\n", args[0], args[1])
}

func (c *Console) cmdInfo(ctx context.Context) {
	var info Info
	if !c.do(ctx, func() { info = c.app.Info() }) {
		return
	}
	fmt.Fprintf(c.out(), "Cycles:     %d\n", info.Cycles)
	fmt.Fprintf(c.out(), "Registered: %d\n", info.Registered)
	fmt.Fprintf(c.out(), "Groups:     %s\n", strings.Join(info.Groups, ", "))
	fmt.Fprintf(c.out(), "Stored:     %d\n", info.Stored)
	fmt.Fprintf(c.out(), "Failing:    %v\n", info.Failing)
}

func (c *Console) cmdClean(ctx context.Context) {
	var removed int
	if !c.do(ctx, func() { removed = c.app.CleanData() }) {
		return
	}
	fmt.Fprintf(c.out(), "Removed %d values\n", removed)
}
