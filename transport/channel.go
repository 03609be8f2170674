// Package transport carries the APDU byte-strings this module's core never
// touches directly: a raw Transmitter abstraction, a Channel that knows how
// to follow ISO 7816-4 GET RESPONSE chaining on top of one, and a concrete
// PC/SC adapter. None of it is GlobalPlatform-specific.
package transport

import "github.com/cardterm/gpscp/apdu"

// Transmitter exchanges a raw command byte string for a raw response byte
// string. It is the minimal abstraction every concrete reader binding
// (PC/SC, a scripted test double, a USB CCID driver) implements.
type Transmitter interface {
	Transmit(command []byte) ([]byte, error)
}

// Channel sends a Command and returns a parsed Response. Unlike
// Transmitter it operates on apdu.Command/apdu.Response rather than raw
// bytes, and is free to do protocol-level work — GET RESPONSE chaining,
// secure channel wrapping — before/after the raw transmit.
type Channel interface {
	Send(cmd *apdu.Command) (*apdu.Response, error)
}
