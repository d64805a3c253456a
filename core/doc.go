// Package core wires the stat aggregator and the pairwise identifier service
// into a single process wide Service: configuration, logging, metrics and
// error envelopes. Store adapters depend on this package, never the reverse.
package core
