package globalplatform

// CLA bytes. ClaGp is the base CLA for every command issued through a
// secure channel, including EXTERNAL AUTHENTICATE itself — Wrap sets bit
// 0x04 (ClaMac) once MAC construction runs, so callers never build the
// MAC'd CLA by hand.
const (
	ClaISO7816 = uint8(0x00)
	ClaGp      = uint8(0x80)
	ClaMac     = uint8(0x84)
)

// Instruction bytes, GlobalPlatform Card Specification table 11-3 plus the
// ISO 7816-4 GET RESPONSE opcode used for response chaining.
const (
	InsGetResponse          = uint8(0xC0)
	InsSelect               = uint8(0xA4)
	InsGetData              = uint8(0xCA)
	InsInitializeUpdate     = uint8(0x50)
	InsExternalAuthenticate = uint8(0x82)
	InsInstall              = uint8(0xE6)
	InsLoad                 = uint8(0xE8)
	InsDelete               = uint8(0xE4)
	InsGetStatus            = uint8(0xF2)
)

// P1 values for LOAD command chaining.
const (
	P1LoadMoreBlocks = uint8(0x00)
	P1LoadLastBlock  = uint8(0x80)
)

// P1 values for INSTALL, keyed by what it's installing.
const (
	P1InstallForLoad           = uint8(0x02)
	P1InstallForInstall        = uint8(0x04)
	P1InstallForMakeSelectable = uint8(0x08)
)

// INSTALL [for install] combines InstallForInstall and InstallForMakeSelectable
// when an applet is installed and made selectable in one command, the
// common case this module exposes as InstallAndMakeSelectable.
const P1InstallForInstallAndMakeSelectable = P1InstallForInstall | P1InstallForMakeSelectable

// DELETE P2 values.
const (
	P2DeleteExactlyThisObject  = uint8(0x00)
	P2DeleteObjectAndRelatedObjects = uint8(0x80)
)

// GET STATUS P1 values, issued in this fixed order (spec.md §4.6).
var GetStatusScopes = []uint8{0x80, 0x40, 0x10, 0x20}

// Sw1ResponseDataIncomplete (0x61) signals more data is waiting behind a
// GET RESPONSE; Sw2 carries the number of bytes still available.
const Sw1ResponseDataIncomplete = uint8(0x61)

// SwMoreDataAvailable (0x6310) is GET STATUS's own continuation signal,
// distinct from the generic ISO 0x61xx chaining above.
const SwMoreDataAvailable = uint16(0x6310)

// Security level bits (GP Card Specification §10.2).
const (
	SecurityLevelNoSecurity = uint8(0x00)
	SecurityLevelMAC        = uint8(0x01)
	SecurityLevelENC        = uint8(0x02)
	SecurityLevelRMAC       = uint8(0x10)
)

// DefaultTestKey is the well-known all-three-key-types test key shared by
// every GlobalPlatform reference implementation.
var DefaultTestKey = []byte{
	0x40, 0x41, 0x42, 0x43, 0x44, 0x45, 0x46, 0x47,
	0x48, 0x49, 0x4A, 0x4B, 0x4C, 0x4D, 0x4E, 0x4F,
}

// MaxAPDULength is the largest command byte string the transport interface
// is required to accept (spec.md §6).
const MaxAPDULength = 261

// Tag constants used by FCI TLV parsing.
const (
	TagFCITemplate = uint8(0x6F)
	TagAID         = uint8(0x84)
)
