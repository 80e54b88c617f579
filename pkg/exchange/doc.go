// Package exchange coordinates a shared periodic download or upload cycle
// between many independent consumers.
//
// A Downloader (or Uploader) owns a shared value store, a subscription
// registry and the root of a tree of Connections. Each consumer registers
// its interest through a Connection: nodes to read or write, data links to
// populate or drain, and callbacks to run after each cycle. The coordinator
// aggregates every registration into one compiled cycle, so a single batched
// round trip serves all consumers.
//
// # Connection Tree
//
//	dl, err := exchange.NewDownloader(exchange.Config{Reader: reader})
//	if err != nil {
//	    return err
//	}
//
//	// A control loop subscribes to two nodes
//	loop, _ := dl.NewConnection()
//	_ = loop.AddNodes(power, limit)
//	_, _ = loop.AddCallback(func() error { return controller.Step() }, 0)
//
//	// A GUI panel hangs off the control loop's connection
//	panel, _ := loop.NewConnection()
//	_ = panel.AddNode(soc)
//
//	dl.Download(ctx) // reads power, limit and soc in one batch
//
// Every mutation recompiles the cycle of the mutated Connection and of each
// of its ancestors, so executing a cycle never re-aggregates. Disconnect
// tears down a Connection and all of its descendants at once.
//
// # Running
//
// Run drives the root cycle at a fixed period until the context is done,
// the Stop function returns true, or a callback returns ErrStop. A batch
// error with no failure callback registered ends Run with that error.
//
// # Concurrency
//
// A coordinator and its Connections are not safe for concurrent use. Drive
// each coordinator from one goroutine and hand results to others over
// channels.
package exchange
