// Package crypto implements the DES/3DES primitives a GlobalPlatform secure
// channel is built from: session key derivation, the full-3DES-CBC MAC used
// for authentication cryptograms, the ANSI X9.19 retail MAC used for SCP02
// command/response MACing, ICV encryption, and ISO 9797-1 method 2 padding.
// None of it is GP-specific wiring — callers in the globalplatform package
// decide which primitive a given SCP variant needs.
package crypto

import (
	"crypto/cipher"
	"crypto/des"

	"github.com/pkg/errors"
)

// NullBytes8 is the all-zero 8 byte IV GlobalPlatform uses to start a fresh
// chain: the initial ICV, and the IV for every key derivation and cryptogram
// computation.
var NullBytes8 = []byte{0, 0, 0, 0, 0, 0, 0, 0}

// Derivation purpose constants (first two bytes of the 16-byte derivation
// block, GP Amendment E §4.1.5). The remaining 14 bytes are the two-byte
// sequence counter followed by twelve zero bytes.
var (
	DerivationPurposeEnc  = []byte{0x01, 0x82}
	DerivationPurposeCMAC = []byte{0x01, 0x01}
	DerivationPurposeRMAC = []byte{0x01, 0x02}
	DerivationPurposeDEK  = []byte{0x01, 0x81}
)

// DeriveKey derives a session key from a static card key and a two-byte
// sequence counter for the given purpose. It is the SCP02 session-key
// derivation primitive (C-MAC/R-MAC/S-ENC/DEK session keys; SCP01 uses
// EncryptECB3DES instead): 3DES-CBC-encrypt, under a null IV,
// a 16-byte block of purpose‖seq‖zeroes with the static key expanded to 24
// bytes.
func DeriveKey(cardKey, seq, purpose []byte) ([]byte, error) {
	key24 := resizeKey24(cardKey)

	derivation := make([]byte, 16)
	copy(derivation, purpose[:2])
	copy(derivation[2:], seq[:2])

	block, err := des.NewTripleDESCipher(key24)
	if err != nil {
		return nil, errors.Wrap(err, "create 3DES cipher for key derivation")
	}

	ciphertext := make([]byte, 16)
	cipher.NewCBCEncrypter(block, NullBytes8).CryptBlocks(ciphertext, derivation)

	return ciphertext, nil
}

// VerifyCryptogram recomputes a card or host authentication cryptogram and
// compares it against the value the card sent, in constant time. The
// cryptogram primitive is the full-3DES-CBC MAC (MacFull3DES below) regardless
// of SCP variant — cryptograms are not HMACs and do not use the retail MAC.
func VerifyCryptogram(encKey, hostChallenge, cardChallenge, cardCryptogram []byte) (bool, error) {
	data := make([]byte, 0, len(hostChallenge)+len(cardChallenge))
	data = append(data, hostChallenge...)
	data = append(data, cardChallenge...)

	calculated, err := MacFull3DES(encKey, data, NullBytes8)
	if err != nil {
		return false, err
	}

	return constantTimeEqual(calculated, cardCryptogram), nil
}

// MacFull3DES computes the full-3DES-CBC MAC of data under key (resized to
// 24 bytes) and iv, after ISO 9797-1 method 2 padding: it pads, CBC
// encrypts the entire padded buffer, and returns only the final 8-byte
// block. Used for every SCP01/SCP02 authentication cryptogram and for the
// SCP01 command MAC.
func MacFull3DES(key, data, iv []byte) ([]byte, error) {
	key24 := resizeKey24(key)

	block, err := des.NewTripleDESCipher(key24)
	if err != nil {
		return nil, errors.Wrap(err, "create 3DES cipher for MAC")
	}

	padded := Pad80(data, 8)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return ciphertext[len(ciphertext)-8:], nil
}

// RetailMAC computes the ANSI X9.19 / ISO 9797-1 algorithm 3 retail MAC
// used for the SCP02 command MAC and R-MAC: single-DES-CBC encrypt every
// block but the last under K1, DES-decrypt the last block under K2, then
// DES-encrypt it again under K1. key must be 16 bytes (K1‖K2); data must
// already be padded to a multiple of 8 bytes (see Pad80).
func RetailMAC(key, data, iv []byte) ([]byte, error) {
	if len(key) != 16 {
		return nil, errors.Errorf("crypto: retail MAC key must be 16 bytes, got %d", len(key))
	}
	if len(data)%8 != 0 || len(data) == 0 {
		return nil, errors.Errorf("crypto: retail MAC input must be a non-zero multiple of 8 bytes, got %d", len(data))
	}

	k1, k2 := key[:8], key[8:16]

	cipher1, err := des.NewCipher(k1)
	if err != nil {
		return nil, errors.Wrap(err, "create DES cipher for retail MAC K1")
	}
	cipher2, err := des.NewCipher(k2)
	if err != nil {
		return nil, errors.Wrap(err, "create DES cipher for retail MAC K2")
	}

	chained := make([]byte, len(data))
	cipher.NewCBCEncrypter(cipher1, iv).CryptBlocks(chained, data)
	last := chained[len(chained)-8:]

	decrypted := make([]byte, 8)
	cipher2.Decrypt(decrypted, last)

	mac := make([]byte, 8)
	cipher1.Encrypt(mac, decrypted)

	return mac, nil
}

// EncryptECB3DES 3DES-ECB encrypts data (each 8-byte block independently,
// no chaining) under key resized to 24 bytes. This is SCP01's session-key
// derivation primitive — distinct from the CBC-under-null-IV derivation
// SCP02 uses, which for single-block input happens to coincide with ECB
// but does not for the two-block derivation data SCP01 builds.
func EncryptECB3DES(key, data []byte) ([]byte, error) {
	if len(data)%8 != 0 {
		return nil, errors.Errorf("crypto: ECB input must be a multiple of 8 bytes, got %d", len(data))
	}

	block, err := des.NewTripleDESCipher(resizeKey24(key))
	if err != nil {
		return nil, errors.Wrap(err, "create 3DES cipher for ECB derivation")
	}

	out := make([]byte, len(data))
	for i := 0; i < len(data); i += 8 {
		block.Encrypt(out[i:i+8], data[i:i+8])
	}

	return out, nil
}

// EncryptCBC3DES 3DES-CBC encrypts data (already padded to an 8-byte
// multiple) under key with a null IV. Used for the SCP01/SCP02 ENC data
// field and nowhere else — session key derivation and MACs have their own
// entry points above even though they share the same cipher mode.
func EncryptCBC3DES(key, data []byte) ([]byte, error) {
	block, err := des.NewTripleDESCipher(resizeKey24(key))
	if err != nil {
		return nil, errors.Wrap(err, "create 3DES cipher for ENC")
	}

	ciphertext := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, NullBytes8).CryptBlocks(ciphertext, data)

	return ciphertext, nil
}

// EncryptICVSingleDES encrypts an 8-byte ICV under a single DES block
// operation using K1 of the given 16-byte key. SCP02's ICVEncryptionForCMAC
// option uses this to derive the next command's ICV from the previous
// command MAC instead of chaining it directly.
func EncryptICVSingleDES(key, icv []byte) ([]byte, error) {
	if len(key) < 8 {
		return nil, errors.New("crypto: ICV encryption key must be at least 8 bytes")
	}

	block, err := des.NewCipher(key[:8])
	if err != nil {
		return nil, errors.Wrap(err, "create DES cipher for ICV encryption")
	}

	out := make([]byte, 8)
	block.Encrypt(out, icv)

	return out, nil
}

// EncryptICVTripleDES encrypts an 8-byte ICV under a single 3DES block
// operation. SCP01's ICV encryption variant uses this instead of the
// single-DES form SCP02 uses.
func EncryptICVTripleDES(key, icv []byte) ([]byte, error) {
	block, err := des.NewTripleDESCipher(resizeKey24(key))
	if err != nil {
		return nil, errors.Wrap(err, "create 3DES cipher for ICV encryption")
	}

	out := make([]byte, 8)
	block.Encrypt(out, icv)

	return out, nil
}

// resizeKey24 expands a 16-byte double-length key K1‖K2 to the 24-byte
// form K1‖K2‖K1 crypto/des.NewTripleDESCipher requires.
func resizeKey24(key []byte) []byte {
	data := make([]byte, 24)
	copy(data, key[0:16])
	copy(data[16:], key[0:8])

	return data
}

// Pad80 appends ISO 9797-1 method 2 padding (a single 0x80 byte followed by
// zero bytes) so the result's length is the next multiple of blockSize
// strictly greater than len(data) — padding is always applied, even to
// already-aligned input, matching every MAC primitive in this package.
func Pad80(data []byte, blockSize int) []byte {
	length := len(data) + 1
	for length%blockSize != 0 {
		length++
	}

	padded := make([]byte, length)
	copy(padded, data)
	padded[len(data)] = 0x80

	return padded
}

// constantTimeEqual reports whether a and b hold the same bytes, taking
// time independent of where they first differ. Plain bytes.Equal short
// -circuits on length, which is safe here (cryptogram/RMAC lengths are
// fixed), but subtle bugs have crept into other ports of this algorithm
// from comparing with == instead; spelling it out here keeps the intent
// obvious at the call sites that matter most (card cryptogram, RMAC).
func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}

	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}

	return diff == 0
}
