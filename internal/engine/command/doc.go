// Package command defines the closed vocabulary of engine API commands.
//
// Every command the engine understands is declared here once, as an
// Identifier grouped under a Family. Callers address engine operations through
// these identifiers instead of raw strings, so a typo cannot reach the wire
// and the wire format can change without touching call sites.
//
// The default vocabulary is built and validated when the package is
// initialised; it is immutable afterwards and safe for concurrent use.
package command
