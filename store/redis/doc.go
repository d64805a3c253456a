// Package redisstore implements directory.Store on Redis. Entries are stored
// as CBOR values and subtree searches are served from per-ancestor sets.
package redisstore
