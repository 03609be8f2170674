package transport

import (
	"github.com/cardterm/gpscp/apdu"
	"github.com/cardterm/gpscp/hexutils"
	"github.com/ethereum/go-ethereum/log"
)

var logger = log.New("package", "gpscp/transport")

// ISO 7816-4 GET RESPONSE framing. Generic to any smart card, not specific
// to GlobalPlatform, so it lives here rather than in the globalplatform
// package (which itself depends on this package for the Channel interface —
// duplicating these three bytes avoids an import cycle for no real cost).
const (
	claISO7816          = uint8(0x00)
	insGetResponse      = uint8(0xC0)
	sw1MoreDataViaChain = uint8(0x61)
)

// NormalChannel is a Channel over a raw Transmitter that transparently
// follows SW1=0x61 ("more data") by issuing GET RESPONSE until the card
// delivers everything, the common behavior of contact readers that don't
// do this chaining themselves.
type NormalChannel struct {
	t Transmitter
}

// NewNormalChannel wraps a Transmitter as a Channel.
func NewNormalChannel(t Transmitter) *NormalChannel {
	return &NormalChannel{t: t}
}

func (c *NormalChannel) Send(cmd *apdu.Command) (*apdu.Response, error) {
	raw, err := cmd.Serialize()
	if err != nil {
		return nil, err
	}

	logger.Debug("apdu command", "hex", hexutils.BytesToHexWithSpaces(raw))
	rawResp, err := c.t.Transmit(raw)
	if err != nil {
		return nil, err
	}
	logger.Debug("apdu response", "hex", hexutils.BytesToHexWithSpaces(rawResp))

	resp, err := apdu.ParseResponse(rawResp)
	if err != nil {
		return nil, err
	}

	if resp.Sw1 == sw1MoreDataViaChain && (cmd.Cla != claISO7816 || cmd.Ins != insGetResponse) {
		getResponse := apdu.NewCommand(claISO7816, insGetResponse, 0x00, 0x00, nil)
		getResponse.SetLe(resp.Sw2)
		return c.Send(getResponse)
	}

	return resp, nil
}
