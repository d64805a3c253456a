// Package stat aggregates node local usage statistics per calendar month: an
// approximate distinct user count and exact token counters keyed by grant type
// and token kind. Each node owns one record per month in the directory,
// jansId=<nodeId>,ou=<YYYYMM>,<baseDn>, and overwrites it on every flush.
package stat
