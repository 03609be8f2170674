// Package apdu implements the ISO/IEC 7816-4 command and response APDU value
// types used throughout the globalplatform and transport packages. It knows
// nothing about GlobalPlatform, secure channels, or any particular card
// reader; it only serializes and parses byte strings.
package apdu

import (
	"bytes"
	"fmt"
)

// MaxShortLc is the largest data length short-form Lc/Le encoding can carry.
const MaxShortLc = 255

// Command is a single ISO 7816-4 command APDU: CLA INS P1 P2 [Lc Data] [Le].
// Le is optional; a freshly built Command has none (ISO case 1/3) until
// SetLe is called, which is how case 2/4 APDUs that expect a response are
// represented.
type Command struct {
	Cla  uint8
	Ins  uint8
	P1   uint8
	P2   uint8
	Data []byte

	le    byte
	hasLe bool
}

// NewCommand builds a Command with no Le byte. Call SetLe to turn it into a
// case 2/4 APDU that requests a response.
func NewCommand(cla, ins, p1, p2 uint8, data []byte) *Command {
	return &Command{
		Cla:  cla,
		Ins:  ins,
		P1:   p1,
		P2:   p2,
		Data: data,
	}
}

// SetLe attaches an Le byte to the command.
func (c *Command) SetLe(le byte) {
	c.le = le
	c.hasLe = true
}

// Le reports the Le byte and whether one has been set.
func (c *Command) Le() (bool, byte) {
	return c.hasLe, c.le
}

// Serialize renders the command as wire bytes. It returns an error if Data
// is longer than the short-form Lc encoding can express; extended length is
// not needed by anything in this module's command set.
func (c *Command) Serialize() ([]byte, error) {
	if len(c.Data) > MaxShortLc {
		return nil, fmt.Errorf("apdu: data length %d exceeds short-form Lc", len(c.Data))
	}

	buf := new(bytes.Buffer)
	buf.WriteByte(c.Cla)
	buf.WriteByte(c.Ins)
	buf.WriteByte(c.P1)
	buf.WriteByte(c.P2)

	if len(c.Data) > 0 {
		buf.WriteByte(byte(len(c.Data)))
		buf.Write(c.Data)
	}

	if c.hasLe {
		buf.WriteByte(c.le)
	}

	return buf.Bytes(), nil
}
