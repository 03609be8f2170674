package globalplatform

import (
	"crypto/rand"

	"github.com/cardterm/gpscp/apdu"
	"github.com/cardterm/gpscp/globalplatform/crypto"
	"github.com/cardterm/gpscp/hexutils"
	"github.com/cardterm/gpscp/transport"
	"github.com/pkg/errors"
)

// initializeUpdateResponseLen is the fixed 28-byte INITIALIZE UPDATE data
// field: 10 bytes key-diversification data, 1 key version, 1 SCP, 8
// card challenge, 8 card cryptogram.
const initializeUpdateResponseLen = 28

// OpenSecureChannel runs the full INITIALIZE UPDATE / EXTERNAL
// AUTHENTICATE handshake over channel and returns a SecureChannel ready
// for GP commands, plus the SCP variant actually negotiated.
func OpenSecureChannel(channel transport.Channel, staticKeys *KeySet, requested SCPVariant, level SecurityLevel) (*SecureChannel, SCPVariant, error) {
	hostChallenge := make([]byte, 8)
	if _, err := rand.Read(hostChallenge); err != nil {
		return nil, 0, errors.Wrap(err, "generate host challenge")
	}

	resp, err := channel.Send(NewCommandInitializeUpdate(staticKeys.Version, staticKeys.ID, hostChallenge))
	if err != nil {
		return nil, 0, &ErrTransport{Cause: err}
	}

	if err := checkInitializeUpdateStatus(resp); err != nil {
		return nil, 0, err
	}
	if len(resp.Data) != initializeUpdateResponseLen {
		return nil, 0, &ErrMalformedResponse{Reason: "INITIALIZE UPDATE response must be 28 bytes"}
	}

	reportedKeyVersion := resp.Data[10]
	reportedSCP := Family(resp.Data[11])
	cardChallenge := resp.Data[12:20]
	cardCryptogram := resp.Data[20:28]

	variant, err := negotiate(requested, reportedSCP)
	if err != nil {
		return nil, 0, err
	}

	level = level.Normalize(variant.Family())

	var cardResponse [28]byte
	copy(cardResponse[:], resp.Data)
	if staticKeys.NeedsDiversity() {
		if err := staticKeys.Diversify(cardResponse); err != nil {
			return nil, 0, err
		}
	}

	if staticKeys.Version > 0 && staticKeys.Version != reportedKeyVersion {
		return nil, 0, &ErrKeyMismatch{Expected: staticKeys.Version, Reported: reportedKeyVersion}
	}

	sessionKeys, err := deriveSessionKeys(staticKeys, variant.Family(), hostChallenge, cardChallenge)
	if err != nil {
		return nil, 0, err
	}

	ok, err := crypto.VerifyCryptogram(sessionKeys.Get(KeyTypeEnc), hostChallenge, cardChallenge, cardCryptogram)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, &ErrAuthenticationFailed{Reason: "card cryptogram mismatch"}
	}

	hostCryptogram, err := crypto.MacFull3DES(sessionKeys.Get(KeyTypeEnc), append(append([]byte{}, cardChallenge...), hostChallenge...), crypto.NullBytes8)
	if err != nil {
		return nil, 0, err
	}

	wrapper := NewSecureChannelWrapper(sessionKeys, variant, SecurityLevel(SecurityLevelMAC))

	sc := NewSecureChannel(wrapper, channel)

	authResp, err := sc.Send(NewCommandExternalAuthenticate(level, hostCryptogram))
	if err != nil {
		return nil, 0, err
	}
	if !authResp.IsOK() {
		return nil, 0, &ErrAuthenticationFailed{Reason: "card rejected EXTERNAL AUTHENTICATE"}
	}

	wrapper.SecurityLevel = level
	if level.Has(SecurityLevelRMAC) {
		wrapper.SnapshotResponseICV()
	}

	logger.Debug("secure channel open", "variant", variant.String(), "level", level, "host_challenge", hexutils.BytesToHex(hostChallenge))

	return sc, variant, nil
}

func checkInitializeUpdateStatus(resp *apdu.Response) error {
	switch resp.Sw {
	case apdu.SwOK:
		return nil
	case apdu.SwSecurityConditionNotSatisfied, apdu.SwAuthenticationMethodBlocked:
		return &ErrLocked{Sw: resp.Sw}
	default:
		return &ErrProtocol{Sw: resp.Sw}
	}
}

// deriveSessionKeys builds the session keys (ENC, MAC, KEK, plus RMAC for
// SCP02) per spec.md §4.3 step 9. SCP01 ECB-encrypts the same 16-byte
// derivation data under each static key; SCP02 derives each key
// independently under its own purpose constant.
func deriveSessionKeys(staticKeys *KeySet, family Family, hostChallenge, cardChallenge []byte) (*KeySet, error) {
	session := NewKeySetWithKeys(nil, nil, nil, staticKeys.Version, staticKeys.ID)

	if family == FamilySCP01 {
		derivationData := make([]byte, 0, 16)
		derivationData = append(derivationData, cardChallenge[4:8]...)
		derivationData = append(derivationData, hostChallenge[0:4]...)
		derivationData = append(derivationData, cardChallenge[0:4]...)
		derivationData = append(derivationData, hostChallenge[4:8]...)

		for _, kt := range []KeyType{KeyTypeEnc, KeyTypeMac, KeyTypeKek} {
			derived, err := crypto.EncryptECB3DES(staticKeys.Get(kt), derivationData)
			if err != nil {
				return nil, errors.Wrap(err, "derive SCP01 session key")
			}
			session.Set(kt, derived)
		}

		return session, nil
	}

	seq := cardChallenge[0:2]

	enc, err := crypto.DeriveKey(staticKeys.Get(KeyTypeEnc), seq, crypto.DerivationPurposeEnc)
	if err != nil {
		return nil, err
	}
	mac, err := crypto.DeriveKey(staticKeys.Get(KeyTypeMac), seq, crypto.DerivationPurposeCMAC)
	if err != nil {
		return nil, err
	}
	kek, err := crypto.DeriveKey(staticKeys.Get(KeyTypeKek), seq, crypto.DerivationPurposeDEK)
	if err != nil {
		return nil, err
	}
	rmac, err := crypto.DeriveKey(staticKeys.Get(KeyTypeMac), seq, crypto.DerivationPurposeRMAC)
	if err != nil {
		return nil, err
	}

	session.Set(KeyTypeEnc, enc)
	session.Set(KeyTypeMac, mac)
	session.Set(KeyTypeKek, kek)
	session.Set(KeyTypeRmac, rmac)

	return session, nil
}
