package crypto

import (
	"crypto/cipher"
	"crypto/des"
	"testing"

	"github.com/cardterm/gpscp/hexutils"
	"github.com/stretchr/testify/assert"
)

func TestDeriveKey(t *testing.T) {
	cardKey := hexutils.HexToBytes("404142434445464748494a4b4c4d4e4f")
	seq := hexutils.HexToBytes("0065")

	encKey, err := DeriveKey(cardKey, seq, DerivationPurposeEnc)
	assert.NoError(t, err)
	assert.Equal(t, "85E72AAF47874218A202BF5EF891DD21", hexutils.BytesToHex(encKey))
}

func TestResizeKey24(t *testing.T) {
	key := hexutils.HexToBytes("404142434445464748494a4b4c4d4e4f")
	resized := resizeKey24(key)
	assert.Equal(t, "404142434445464748494A4B4C4D4E4F4041424344454647", hexutils.BytesToHex(resized))
}

func TestPad80_AlwaysPads(t *testing.T) {
	// a block-aligned input still grows by a full block, matching every MAC
	// primitive in this package (they never skip padding on aligned input).
	result := Pad80(hexutils.HexToBytes("0102030405060708"), 8)
	assert.Equal(t, "01020304050607088000000000000000", hexutils.BytesToHex(result))
}

func TestPad80_Unaligned(t *testing.T) {
	result := Pad80(hexutils.HexToBytes("AABB"), 8)
	assert.Equal(t, "AABB800000000000", hexutils.BytesToHex(result))
}

func TestVerifyCryptogram(t *testing.T) {
	encKey := hexutils.HexToBytes("16B5867FF50BE7239C2BF1245B83A362")
	hostChallenge := hexutils.HexToBytes("32da078d7aac1cff")
	cardChallenge := hexutils.HexToBytes("007284f64a7d6465")
	cardCryptogram := hexutils.HexToBytes("05c4bb8a86014e22")

	ok, err := VerifyCryptogram(encKey, hostChallenge, cardChallenge, cardCryptogram)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyCryptogram_Mismatch(t *testing.T) {
	encKey := hexutils.HexToBytes("16B5867FF50BE7239C2BF1245B83A362")
	hostChallenge := hexutils.HexToBytes("32da078d7aac1cff")
	cardChallenge := hexutils.HexToBytes("007284f64a7d6465")
	wrongCryptogram := hexutils.HexToBytes("0000000000000000")

	ok, err := VerifyCryptogram(encKey, hostChallenge, cardChallenge, wrongCryptogram)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestMacFull3DES(t *testing.T) {
	key := hexutils.HexToBytes("5b02e75ad63190aece0622936f11abab")
	data := hexutils.HexToBytes("8482010010810b098a8fbb88da")

	result, err := MacFull3DES(key, data, NullBytes8)
	assert.NoError(t, err)
	assert.Equal(t, "851D3A4F59ADD680", hexutils.BytesToHex(result))
}

func TestRetailMAC_DegeneratesToSingleDESCBCMacWhenK1EqualsK2(t *testing.T) {
	k1 := hexutils.HexToBytes("0123456789ABCDEF")
	key := append(append([]byte{}, k1...), k1...) // K1 == K2
	data := Pad80(hexutils.HexToBytes("00112233445566778899AABBCCDDEEFF0011"), 8)

	mac, err := RetailMAC(key, data, NullBytes8)
	assert.NoError(t, err)
	assert.Len(t, mac, 8)

	// decrypt-then-re-encrypt the last block with an identical K1/K2 is the
	// identity transform, so this must equal a plain single-DES CBC MAC.
	plainLastBlock, err := macSingleDESCBC(k1, data, NullBytes8)
	assert.NoError(t, err)
	assert.Equal(t, plainLastBlock, mac)
}

func TestRetailMAC_RejectsShortKey(t *testing.T) {
	_, err := RetailMAC(hexutils.HexToBytes("0011223344556677"), Pad80([]byte("x"), 8), NullBytes8)
	assert.Error(t, err)
}

func TestRetailMAC_RejectsUnpaddedInput(t *testing.T) {
	key := hexutils.HexToBytes("00112233445566778899AABBCCDDEEFF")[:16]
	_, err := RetailMAC(key, []byte{0x01, 0x02, 0x03}, NullBytes8)
	assert.Error(t, err)
}

func TestEncryptICVSingleDES_IsDeterministic(t *testing.T) {
	key := hexutils.HexToBytes("0123456789ABCDEF0123456789ABCDEF")
	icv := hexutils.HexToBytes("1122334455667788")

	out1, err := EncryptICVSingleDES(key, icv)
	assert.NoError(t, err)
	out2, err := EncryptICVSingleDES(key, icv)
	assert.NoError(t, err)
	assert.Equal(t, out1, out2)
	assert.Len(t, out1, 8)
	assert.NotEqual(t, icv, out1)
}

func TestEncryptICVTripleDES_IsDeterministic(t *testing.T) {
	key := hexutils.HexToBytes("404142434445464748494a4b4c4d4e4f")
	icv := hexutils.HexToBytes("1122334455667788")

	out1, err := EncryptICVTripleDES(key, icv)
	assert.NoError(t, err)
	out2, err := EncryptICVTripleDES(key, icv)
	assert.NoError(t, err)
	assert.Equal(t, out1, out2)
	assert.Len(t, out1, 8)
}

// macSingleDESCBC is the plain single-DES CBC MAC (encrypt every block
// including the last, keep the last ciphertext block) used only to verify
// RetailMAC's degenerate case above.
func macSingleDESCBC(key, data, iv []byte) ([]byte, error) {
	block, err := des.NewCipher(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)

	return out[len(out)-8:], nil
}
