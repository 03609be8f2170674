package transport

import (
	"testing"

	"github.com/cardterm/gpscp/apdu"
	"github.com/cardterm/gpscp/hexutils"
	"github.com/stretchr/testify/assert"
)

// scriptedTransmitter replays a fixed sequence of raw responses, one per
// Transmit call, regardless of what was sent — enough to exercise GET
// RESPONSE chaining without a real reader.
type scriptedTransmitter struct {
	responses [][]byte
	sent      [][]byte
}

func (s *scriptedTransmitter) Transmit(command []byte) ([]byte, error) {
	s.sent = append(s.sent, command)
	resp := s.responses[0]
	s.responses = s.responses[1:]
	return resp, nil
}

func TestNormalChannel_Send_NoChaining(t *testing.T) {
	tr := &scriptedTransmitter{responses: [][]byte{hexutils.HexToBytes("84769000")}}
	c := NewNormalChannel(tr)

	resp, err := c.Send(apdu.NewCommand(0x00, 0xA4, 0x04, 0x00, nil))
	assert.NoError(t, err)
	assert.True(t, resp.IsOK())
	assert.Equal(t, hexutils.HexToBytes("8476"), resp.Data)
	assert.Len(t, tr.sent, 1)
}

func TestNormalChannel_Send_FollowsGetResponseChaining(t *testing.T) {
	tr := &scriptedTransmitter{responses: [][]byte{
		hexutils.HexToBytes("61" + "10"),     // SW1=0x61, 0x10 more bytes available
		hexutils.HexToBytes("AABBCCDD9000"),
	}}
	c := NewNormalChannel(tr)

	resp, err := c.Send(apdu.NewCommand(0x00, 0xCA, 0x00, 0x66, nil))
	assert.NoError(t, err)
	assert.True(t, resp.IsOK())
	assert.Equal(t, hexutils.HexToBytes("AABBCCDD"), resp.Data)
	assert.Len(t, tr.sent, 2)

	// second transmit must be a GET RESPONSE carrying the reported Le
	assert.Equal(t, insGetResponse, tr.sent[1][1])
	assert.Equal(t, byte(0x10), tr.sent[1][4]) // Le byte carries Sw2 from the 0x61xx
}
