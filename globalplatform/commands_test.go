package globalplatform

import (
	"testing"

	"github.com/cardterm/gpscp/hexutils"
	"github.com/stretchr/testify/assert"
)

func TestCommandSelect(t *testing.T) {
	cmd := NewCommandSelect(nil)
	assert.Equal(t, ClaISO7816, cmd.Cla)
	assert.Equal(t, InsSelect, cmd.Ins)
	assert.Equal(t, uint8(0x04), cmd.P1)
	assert.Equal(t, uint8(0x00), cmd.P2)
}

func TestCommandInitializeUpdate(t *testing.T) {
	challenge := hexutils.HexToBytes("0001020304050607")
	cmd := NewCommandInitializeUpdate(0x00, 0x00, challenge)

	assert.Equal(t, ClaGp, cmd.Cla)
	assert.Equal(t, InsInitializeUpdate, cmd.Ins)
	assert.Equal(t, challenge, cmd.Data)
	ok, le := cmd.Le()
	assert.True(t, ok)
	assert.Equal(t, byte(0x00), le)
}

func TestInstallForLoadPayload_S4(t *testing.T) {
	pkg := hexutils.HexToBytes("A00000006203010801")
	sd := hexutils.HexToBytes("A000000003000000")

	payload := InstallForLoadPayload(pkg, sd, nil, nil)
	expected := hexutils.HexToBytes("09A0000000620301080108A000000003000000000000")

	assert.Equal(t, expected, payload)
}

func TestDeletePayload_S5(t *testing.T) {
	aid := hexutils.HexToBytes("A00000006203010801")

	cmd := NewCommandDelete(aid, true)
	expected, err := cmd.Serialize()
	assert.NoError(t, err)

	assert.Equal(t, hexutils.HexToBytes("80E400800B4F09A00000006203010801"), expected)
}

func TestInstallForInstallAndMakeSelectablePayload_Defaults(t *testing.T) {
	pkg := []byte{0xAA}
	applet := []byte{0xBB, 0xCC}

	payload := InstallForInstallAndMakeSelectablePayload(pkg, applet, nil, 0x00, nil, nil)

	expected := hexutils.HexToBytes("01AA" + "02BBCC" + "02BBCC" + "0100" + "02C900" + "00")
	assert.Equal(t, expected, payload)
}

func TestMakeDefaultSelectedPayload(t *testing.T) {
	aid := []byte{0xAA, 0xBB}
	payload := MakeDefaultSelectedPayload(aid, 0x04)

	expected := hexutils.HexToBytes("0000" + "02AABB" + "0104" + "0000")
	assert.Equal(t, expected, payload)
}

func TestNewCommandGetStatus(t *testing.T) {
	cmd := NewCommandGetStatus(0x80, false)
	assert.Equal(t, uint8(0x80), cmd.P1)
	assert.Equal(t, uint8(0x00), cmd.P2)
	assert.Equal(t, []byte{0x4F, 0x00}, cmd.Data)

	more := NewCommandGetStatus(0x80, true)
	assert.Equal(t, uint8(0x01), more.P2)
}

func TestNewCommandLoad(t *testing.T) {
	block := []byte{0x01, 0x02}

	first := NewCommandLoad(block, 0, false)
	assert.Equal(t, P1LoadMoreBlocks, first.P1)

	last := NewCommandLoad(block, 3, true)
	assert.Equal(t, P1LoadLastBlock, last.P1)
	assert.Equal(t, uint8(3), last.P2)
}
