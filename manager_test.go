package gpscp

import (
	"testing"

	"github.com/cardterm/gpscp/apdu"
	"github.com/cardterm/gpscp/globalplatform"
	"github.com/cardterm/gpscp/globalplatform/crypto"
	"github.com/cardterm/gpscp/hexutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChannel scripts a fixed sequence of responses, one per Send call.
type fakeChannel struct {
	responses []*apdu.Response
	sent      []*apdu.Command
}

func (f *fakeChannel) Send(cmd *apdu.Command) (*apdu.Response, error) {
	f.sent = append(f.sent, cmd)
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func TestManager_GuardedMethodsRequireSecureChannel(t *testing.T) {
	m := NewManager(&fakeChannel{})

	_, err := m.GetStatus()
	var notAuthed *ErrNotAuthenticated
	require.ErrorAs(t, err, &notAuthed)

	err = m.Delete([]byte{0xA0}, false)
	require.ErrorAs(t, err, &notAuthed)

	err = m.MakeDefaultSelected([]byte{0xA0}, 0x00)
	require.ErrorAs(t, err, &notAuthed)

	err = m.InstallAndMakeSelectable([]byte{0xA0}, []byte{0xA0}, nil, 0x00, nil, nil)
	require.ErrorAs(t, err, &notAuthed)

	err = m.LoadCapFile(nil, []byte{0xA0}, globalplatform.DefaultLoadOptions())
	require.ErrorAs(t, err, &notAuthed)
}

func TestManager_SelectSecurityDomain_DelegatesToRawChannel(t *testing.T) {
	fci := hexutils.HexToBytes("6F10840AA0000001510000000000A5029F6501FF")
	fc := &fakeChannel{responses: []*apdu.Response{
		{Data: fci, Sw1: 0x90, Sw2: 0x00, Sw: 0x9000},
	}}
	m := NewManager(fc)

	aid, err := m.SelectSecurityDomain(nil)
	require.NoError(t, err)
	assert.Equal(t, hexutils.HexToBytes("A0000001510000000000"), aid)
	assert.Len(t, fc.sent, 1)
}

// scriptedAuthChannel computes a correct card cryptogram against whatever
// host challenge OpenSecureChannel generates, then accepts every command
// issued after EXTERNAL AUTHENTICATE, recording each for inspection.
type scriptedAuthChannel struct {
	cardChallenge []byte
	step          int
	sent          []*apdu.Command
}

func (c *scriptedAuthChannel) Send(cmd *apdu.Command) (*apdu.Response, error) {
	c.sent = append(c.sent, cmd)
	c.step++
	if c.step == 1 {
		hostChallenge := cmd.Data

		seq := c.cardChallenge[0:2]
		sessionEnc, err := crypto.DeriveKey(globalplatform.DefaultTestKey, seq, crypto.DerivationPurposeEnc)
		if err != nil {
			return nil, err
		}
		cardCryptogram, err := crypto.MacFull3DES(sessionEnc, append(append([]byte{}, hostChallenge...), c.cardChallenge...), crypto.NullBytes8)
		if err != nil {
			return nil, err
		}

		data := make([]byte, 0, 28)
		data = append(data, make([]byte, 10)...)
		data = append(data, 0x00, 0x02) // version 0, SCP02
		data = append(data, c.cardChallenge...)
		data = append(data, cardCryptogram...)

		return &apdu.Response{Data: data, Sw1: 0x90, Sw2: 0x00, Sw: 0x9000}, nil
	}

	return &apdu.Response{Sw1: 0x90, Sw2: 0x00, Sw: 0x9000}, nil
}

func TestManager_OpenSecureChannel_RoutesSubsequentCommandsThroughSecureChannel(t *testing.T) {
	fc := &scriptedAuthChannel{cardChallenge: hexutils.HexToBytes("0001C1C2C3C4C5C6")}
	m := NewManager(fc)

	variant, err := m.OpenSecureChannel(globalplatform.NewKeySet(globalplatform.DefaultTestKey, 0, 0), globalplatform.Any, globalplatform.SecurityLevel(globalplatform.SecurityLevelMAC))
	require.NoError(t, err)
	assert.Equal(t, globalplatform.SCP02_15, variant)

	err = m.Delete([]byte{0xA0, 0x00, 0x00, 0x00, 0x03}, false)
	require.NoError(t, err)

	// two commands for the handshake (INITIALIZE UPDATE, EXTERNAL
	// AUTHENTICATE) plus the DELETE just issued.
	assert.Len(t, fc.sent, 3)
	assert.Equal(t, globalplatform.InsDelete, fc.sent[2].Ins)
}

func TestManager_GetData_WorksBeforeAuthentication(t *testing.T) {
	fc := &fakeChannel{responses: []*apdu.Response{
		{Data: []byte{0x9F, 0x7F, 0x00}, Sw1: 0x90, Sw2: 0x00, Sw: 0x9000},
	}}
	m := NewManager(fc)

	data, err := m.GetCPLC()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x9F, 0x7F, 0x00}, data)
}

// erroringChannel always fails at the transport layer, regardless of the
// command it's given.
type erroringChannel struct{ err error }

func (c *erroringChannel) Send(cmd *apdu.Command) (*apdu.Response, error) {
	return nil, c.err
}

func TestManager_SendWrapsTransportFailure(t *testing.T) {
	cause := assert.AnError
	m := NewManager(&erroringChannel{err: cause})

	_, err := m.GetCPLC()
	require.Error(t, err)
	var wrapped *transportError
	require.ErrorAs(t, err, &wrapped)
	assert.ErrorIs(t, err, cause)
}

func TestManager_UnexpectedStatusWordIsProtocolError(t *testing.T) {
	fc := &fakeChannel{responses: []*apdu.Response{
		{Sw1: 0x6A, Sw2: 0x88, Sw: 0x6A88},
	}}
	m := NewManager(fc)

	_, err := m.GetCPLC()
	var protoErr *globalplatform.ErrProtocol
	require.ErrorAs(t, err, &protoErr)
}
