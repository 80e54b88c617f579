package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mash-protocol/mash-exchange/pkg/exchange"
	"github.com/mash-protocol/mash-exchange/pkg/interaction"
	"github.com/mash-protocol/mash-exchange/pkg/log"
	"github.com/mash-protocol/mash-exchange/pkg/node"
)

// App wires a simulated device to a Downloader and its consumer groups.
//
// The Downloader is driven by a single goroutine inside Run. Everything
// else reaches it through Do, which executes a function on that goroutine
// between cycles.
type App struct {
	cfg    *FileConfig
	logger *slog.Logger
	out    io.Writer

	points map[string]*node.Point
	table  *interaction.Table
	server *interaction.Server
	client *interaction.Client

	dl     *exchange.Downloader
	groups map[string]*exchange.DownloadConnection

	cmds   chan func()
	cycles int
}

// NewApp builds the simulated device, the Downloader and one Connection per
// configured group.
func NewApp(cfg *FileConfig, logger *slog.Logger, events log.Logger, out io.Writer) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: logger,
		out:    out,
		points: cfg.Points(),
		table:  interaction.NewTable(),
		groups: make(map[string]*exchange.DownloadConnection),
		cmds:   make(chan func()),
	}

	for _, n := range cfg.Nodes {
		if err := a.table.DefinePoint(a.points[n.Key], n.Value); err != nil {
			return nil, err
		}
	}

	a.server = interaction.NewServer(a.table)
	a.server.SetLogger(logger)
	a.client = interaction.NewLoopbackClient(a.server)
	a.client.SetTimeout(5 * time.Second)

	bio := interaction.NewBatchIO(a.client, interaction.BatchIOConfig{
		DeviceID: cfg.DeviceID,
		Logger:   logger,
	})

	dl, err := exchange.NewDownloader(exchange.Config{
		Reader:      bio,
		Logger:      logger,
		EventLogger: events,
	})
	if err != nil {
		return nil, err
	}
	a.dl = dl

	for _, g := range cfg.Groups {
		parent := a.dl.DownloadConnection
		if g.Parent != "" {
			parent = a.groups[g.Parent]
		}
		conn, err := a.newGroup(parent, g.Name, g.Priority)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", g.Name, err)
		}
		for _, key := range g.Nodes {
			if err := conn.AddNode(a.points[key]); err != nil {
				return nil, fmt.Errorf("group %s: %w", g.Name, err)
			}
		}
	}

	return a, nil
}

// newGroup creates a Connection under parent with a printing callback and a
// failure callback.
func (a *App) newGroup(parent *exchange.DownloadConnection, name string, priority int) (*exchange.DownloadConnection, error) {
	conn, err := parent.NewConnection()
	if err != nil {
		return nil, err
	}

	if _, err := conn.AddCallback(func() error {
		a.printGroup(name, conn)
		return nil
	}, priority); err != nil {
		return nil, err
	}

	if _, err := conn.AddFailureCallback(func(err error) error {
		if err != nil {
			fmt.Fprintf(a.out, "[%s] download failed: %v\n", name, err)
		} else {
			fmt.Fprintf(a.out, "[%s] recovered\n", name)
		}
		return nil
	}, priority); err != nil {
		return nil, err
	}

	a.groups[name] = conn
	return conn, nil
}

func (a *App) printGroup(name string, conn *exchange.DownloadConnection) {
	var parts []string
	for _, n := range conn.Nodes().Sorted() {
		v, ok := a.dl.Store().Get(n)
		if !ok {
			v = "-"
		}
		parts = append(parts, fmt.Sprintf("%s=%v", n.Key(), v))
	}
	fmt.Fprintf(a.out, "[%s] %s\n", name, strings.Join(parts, " "))
}

// Run drives the download loop until the context is done or maxCycles
// cycles have run. Zero means no limit.
func (a *App) Run(ctx context.Context, period time.Duration, maxCycles int) error {
	return a.dl.Run(ctx, exchange.RunOptions{
		Period: period,
		Stop: func() bool {
			if maxCycles > 0 && a.cycles >= maxCycles {
				return true
			}
			a.cycles++
			return false
		},
		Sleep: a.sleep,
	})
}

// sleep waits for the next cycle and executes queued functions meanwhile.
func (a *App) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		case fn := <-a.cmds:
			fn()
		}
	}
}

// Do executes fn on the download goroutine and waits for it to finish.
func (a *App) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case a.cmds <- func() { fn(); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// The methods below must run on the download goroutine.

// AddNode subscribes a group to a node, creating the group under the root
// if it does not exist yet.
func (a *App) AddNode(group, key string) error {
	p, ok := a.points[key]
	if !ok {
		return fmt.Errorf("unknown node %q", key)
	}
	if !p.Access().CanRead() {
		return fmt.Errorf("node %q is not readable", key)
	}
	conn, ok := a.groups[group]
	if !ok {
		var err error
		conn, err = a.newGroup(a.dl.DownloadConnection, group, 0)
		if err != nil {
			return err
		}
	}
	return conn.AddNode(p)
}

// RemoveNode unsubscribes a group from a node.
func (a *App) RemoveNode(group, key string) error {
	p, ok := a.points[key]
	if !ok {
		return fmt.Errorf("unknown node %q", key)
	}
	conn, ok := a.groups[group]
	if !ok {
		return fmt.Errorf("unknown group %q", group)
	}
	return conn.RemoveNode(p)
}

// Disconnect disconnects a group and forgets it and every descendant group.
func (a *App) Disconnect(group string) ([]string, error) {
	conn, ok := a.groups[group]
	if !ok {
		return nil, fmt.Errorf("unknown group %q", group)
	}
	if err := conn.Disconnect(); err != nil {
		return nil, err
	}

	var gone []string
	for name, c := range a.groups {
		if !c.IsConnected() {
			gone = append(gone, name)
			delete(a.groups, name)
		}
	}
	sort.Strings(gone)
	return gone, nil
}

// Groups returns the names of the live groups, sorted.
func (a *App) Groups() []string {
	names := make([]string, 0, len(a.groups))
	for name := range a.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Download runs one root cycle immediately.
func (a *App) Download(ctx context.Context) error {
	return a.dl.Download(ctx)
}

// SetValue changes the simulated device's value for a node.
func (a *App) SetValue(key, raw string) error {
	p, ok := a.points[key]
	if !ok {
		return fmt.Errorf("unknown node %q", key)
	}
	addr, _ := p.Address()
	return a.table.Set(addr.EndpointID, addr.FeatureID, addr.AttributeID, parseValue(raw))
}

// SetFailing makes the simulated device reject every request.
func (a *App) SetFailing(failing bool) {
	a.server.SetBusy(failing)
}

// View returns the stored values whose key starts with prefix.
func (a *App) View(prefix string) map[string]any {
	return a.dl.DataView(prefix).Items()
}

// CleanData deletes stored values no group subscribes to.
func (a *App) CleanData() int {
	return a.dl.CleanData()
}

// Info describes the downloader's state.
type Info struct {
	Cycles     int
	Registered int
	Groups     []string
	Stored     int
	Failing    bool
}

// Info returns the downloader's state.
func (a *App) Info() Info {
	return Info{
		Cycles:     a.cycles,
		Registered: a.dl.Registered(),
		Groups:     a.Groups(),
		Stored:     a.dl.Store().Len(),
		Failing:    a.server.Busy(),
	}
}

// Close stops the device client.
func (a *App) Close() error {
	return a.client.Close()
}

// parseValue interprets console input as an integer, a float, a bool, or
// else a string.
func parseValue(raw string) any {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}
