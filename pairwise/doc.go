// Package pairwise issues pseudonymous subject identifiers per user and
// relying party sector. Identifiers are either persisted under the user entry
// (PERSISTENT) or derived on demand from a keyed hash (ALGORITHMIC).
package pairwise
