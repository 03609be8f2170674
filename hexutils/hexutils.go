// Package hexutils provides small hex/byte conversion helpers shared by the
// apdu and globalplatform packages, mostly for logging and tests.
package hexutils

import (
	"encoding/hex"
	"fmt"
)

// HexToBytes decodes a hex string, panicking on malformed input. It exists
// purely for terse test fixtures and constant tables, never for data coming
// off the wire.
func HexToBytes(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(err)
	}

	return b
}

// BytesToHex renders b as upper-case hex with no separators.
func BytesToHex(b []byte) string {
	return fmt.Sprintf("%X", b)
}

// BytesToHexWithSpaces renders b as upper-case hex with a space between each
// byte, matching the format used in GlobalPlatform specification examples.
func BytesToHexWithSpaces(b []byte) string {
	return fmt.Sprintf("% X", b)
}
