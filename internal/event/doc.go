// Package event defines the closed set of ledger event variants and their
// wire encoding.
//
// Every variant carries a wall-clock capture timestamp and a stable
// discriminant tag used both on the broadcast wire and in persisted files.
// Tags are declared once in an explicit table (kindTags) rather than derived
// from type names at runtime; a test asserts the table is complete, unique,
// and lower-camel-cased.
//
// Wire format is one JSON object per event:
//
//	{"type":"<tag>","systemTime":"<RFC 3339>", ...variant fields...}
//
// with all keys lower-camel-cased. New subscribers receive a one-time
// welcome payload tagged "welcomeEvent" so clients can tell the protocol
// handshake apart from ledger content.
package event
