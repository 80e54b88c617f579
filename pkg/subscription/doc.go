// Package subscription implements the subscription registry behind a
// download/upload coordinator.
//
// Every consumer of a coordinator registers its interest under a Token: a
// set of nodes, a set of data links, and ordered lists of success and
// failure callbacks. The Registry aggregates the interest of any subset of
// tokens and compiles it into a single executable cycle.
//
// # Aggregation
//
// For a set of tokens the registry computes:
//   - the union of their nodes and of the nodes their data links require
//   - their data links, de-duplicated by identity
//   - their callbacks, stable-sorted by ascending priority (ties keep
//     registration order)
//
// # Cycles
//
// BuildCycle compiles an aggregate into a CycleFunc. A download cycle reads
// the aggregated nodes in one batch, stores the values, populates every data
// link and then runs the success callbacks. An upload cycle gathers values
// from the store and the data links, writes them in one batch and then runs
// the success callbacks.
//
// # Failure and Recovery
//
// When the batch call fails, the failure callbacks run with a
// *BatchIOError. With no failure callbacks the error is returned instead.
// The first successful cycle after one or more failures calls every failure
// callback once with a nil error before the success callbacks. Failure
// memory lives in a State owned by the caller, so rebuilding a cycle does not
// lose a pending recovery notification.
package subscription
