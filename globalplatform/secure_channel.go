package globalplatform

import (
	"bytes"

	"github.com/cardterm/gpscp/apdu"
	"github.com/cardterm/gpscp/globalplatform/crypto"
	"github.com/cardterm/gpscp/hexutils"
	"github.com/cardterm/gpscp/transport"
	"github.com/pkg/errors"
)

// SecureChannelWrapper is the per-session state machine that wraps
// outbound APDUs and validates inbound RMAC. It owns its session keys and
// ICVs as a plain value type — no outer-class field sharing — and is bound
// to exactly one transport channel by its caller; it performs no I/O
// itself (spec.md §9 "State encapsulation").
type SecureChannelWrapper struct {
	Keys          *KeySet
	Variant       SCPVariant
	SecurityLevel SecurityLevel

	icv  [8]byte
	ricv [8]byte

	rmacBuffer []byte

	wrapCount int
}

// NewSecureChannelWrapper builds a wrapper bound to a derived session key
// set, SCP variant, and negotiated security level. The ICV starts at zero;
// the caller sets the response ICV (ricv) to the command ICV snapshot
// after EXTERNAL AUTHENTICATE succeeds, via SnapshotResponseICV.
func NewSecureChannelWrapper(keys *KeySet, variant SCPVariant, level SecurityLevel) *SecureChannelWrapper {
	return &SecureChannelWrapper{Keys: keys, Variant: variant, SecurityLevel: level}
}

// SnapshotResponseICV copies the current command ICV into the response
// ICV, done once after EXTERNAL AUTHENTICATE succeeds when RMAC was
// requested (spec.md §4.3 step 14).
func (w *SecureChannelWrapper) SnapshotResponseICV() {
	w.ricv = w.icv
}

// MaxPayload is the largest Lc wrap accepts, spec.md's SUPPLEMENTED
// "MaximumCommandPayloadLength" budget: 255 minus 8 bytes for MAC (if
// active) minus 8 bytes for the ENC padding overhead (if active).
func (w *SecureChannelWrapper) MaxPayload() int {
	max := 255
	if w.SecurityLevel.Has(SecurityLevelMAC) {
		max -= 8
	}
	if w.SecurityLevel.Has(SecurityLevelENC) {
		max -= 8
	}
	return max
}

// Wrap applies MAC/ENC to an outbound command per spec.md §4.4, in order:
// RMAC snapshot, fast path, ICV update, MAC, ENC, assemble.
func (w *SecureChannelWrapper) Wrap(cmd *apdu.Command) (*apdu.Command, error) {
	if len(cmd.Data) > w.MaxPayload() {
		return nil, &ErrTooLong{Lc: len(cmd.Data), MaxLc: w.MaxPayload()}
	}

	flags := flagsFor(w.Variant)
	mac := w.SecurityLevel.Has(SecurityLevelMAC)
	enc := w.SecurityLevel.Has(SecurityLevelENC)
	rmac := w.SecurityLevel.Has(SecurityLevelRMAC)

	// Step 1: RMAC snapshot, taken from the untouched original APDU.
	if rmac {
		w.rmacBuffer = append(w.rmacBuffer, cmd.Cla&^0x07, cmd.Ins, cmd.P1, cmd.P2)
		if len(cmd.Data) > 0 {
			w.rmacBuffer = append(w.rmacBuffer, byte(len(cmd.Data)))
			w.rmacBuffer = append(w.rmacBuffer, cmd.Data...)
		}
	}

	// Step 2: fast path.
	if !mac && !enc {
		w.wrapCount++
		return cmd, nil
	}

	pastFirstCommand := w.wrapCount > 0

	// Step 3: ICV update.
	if flags.icvEncrypt && pastFirstCommand {
		encrypted, err := w.encryptICV(w.icv[:])
		if err != nil {
			return nil, errors.Wrap(err, "encrypt ICV")
		}
		copy(w.icv[:], encrypted)
	}

	newCla := cmd.Cla
	newLc := len(cmd.Data)
	data := cmd.Data
	var macValue []byte

	// Step 4: MAC construction.
	if mac {
		if flags.preMac {
			newCla = cmd.Cla | 0x04
			newLc = len(cmd.Data) + 8
		}

		macInput := new(bytes.Buffer)
		macInput.WriteByte(newCla)
		macInput.WriteByte(cmd.Ins)
		macInput.WriteByte(cmd.P1)
		macInput.WriteByte(cmd.P2)
		macInput.WriteByte(byte(newLc))
		macInput.Write(cmd.Data)

		computed, err := w.macCommand(macInput.Bytes())
		if err != nil {
			return nil, errors.Wrap(err, "compute command MAC")
		}
		macValue = computed
		copy(w.icv[:], computed)

		if flags.postMac {
			newCla = cmd.Cla | 0x04
			newLc = len(cmd.Data) + 8
		}
	}

	// Step 5: ENC.
	if enc && len(cmd.Data) > 0 {
		ciphertext, err := w.encryptData(cmd.Data)
		if err != nil {
			return nil, errors.Wrap(err, "encrypt command data")
		}
		newLc += len(ciphertext) - len(data)
		data = ciphertext
	}

	// Step 6: assemble.
	newData := make([]byte, 0, len(data)+len(macValue))
	newData = append(newData, data...)
	newData = append(newData, macValue...)

	newCmd := apdu.NewCommand(newCla, cmd.Ins, cmd.P1, cmd.P2, newData)
	if ok, le := cmd.Le(); ok {
		newCmd.SetLe(le)
	}

	w.wrapCount++

	return newCmd, nil
}

// Unwrap validates and strips the response MAC per spec.md §4.4. If RMAC
// isn't active it returns resp unchanged.
func (w *SecureChannelWrapper) Unwrap(resp *apdu.Response) (*apdu.Response, error) {
	if !w.SecurityLevel.Has(SecurityLevelRMAC) {
		return resp, nil
	}

	if len(resp.Data) < 8 {
		return nil, &ErrMalformedResponse{Reason: "response too short to carry an RMAC"}
	}

	respLen := len(resp.Data) - 8
	w.rmacBuffer = append(w.rmacBuffer, byte(respLen))
	w.rmacBuffer = append(w.rmacBuffer, resp.Data[:respLen]...)
	w.rmacBuffer = append(w.rmacBuffer, resp.Sw1, resp.Sw2)

	padded := crypto.Pad80(w.rmacBuffer, 8)
	computed, err := crypto.RetailMAC(w.Keys.Get(KeyTypeRmac), padded, w.ricv[:])
	if err != nil {
		return nil, errors.Wrap(err, "compute RMAC")
	}

	if !constantTimeEqual(computed, resp.Data[respLen:respLen+8]) {
		return nil, &ErrRMacInvalid{}
	}

	copy(w.ricv[:], computed)

	return &apdu.Response{
		Data: resp.Data[:respLen],
		Sw1:  resp.Sw1,
		Sw2:  resp.Sw2,
		Sw:   resp.Sw,
	}, nil
}

// macCommand computes the command MAC with the primitive the variant's
// family calls for: full-3DES-CBC for SCP01, the ANSI X9.19 retail MAC for
// SCP02. Both consume the running command ICV as their chaining IV.
func (w *SecureChannelWrapper) macCommand(data []byte) ([]byte, error) {
	macKey := w.Keys.Get(KeyTypeMac)

	if w.Variant.Family() == FamilySCP01 {
		return crypto.MacFull3DES(macKey, data, w.icv[:])
	}

	return crypto.RetailMAC(macKey, crypto.Pad80(data, 8), w.icv[:])
}

// encryptICV re-encrypts the 8-byte ICV in place ahead of the next
// command's MAC, using 3DES-ECB for SCP01 or single-DES-ECB with K1 for
// SCP02 (spec.md §4.4 step 3).
func (w *SecureChannelWrapper) encryptICV(icv []byte) ([]byte, error) {
	macKey := w.Keys.Get(KeyTypeMac)

	if w.Variant.Family() == FamilySCP01 {
		return crypto.EncryptICVTripleDES(macKey, icv)
	}

	return crypto.EncryptICVSingleDES(macKey, icv)
}

// encryptData builds and 3DES-CBC encrypts the ENC data field. SCP01
// prefixes the original Lc byte before padding; SCP02 pads the data
// directly (spec.md §4.4 step 5).
func (w *SecureChannelWrapper) encryptData(data []byte) ([]byte, error) {
	var plain []byte
	if w.Variant.Family() == FamilySCP01 {
		plain = append([]byte{byte(len(data))}, data...)
	} else {
		plain = data
	}

	padded := crypto.Pad80(plain, 8)

	return crypto.EncryptCBC3DES(w.Keys.Get(KeyTypeEnc), padded)
}

// constantTimeEqual compares two byte slices without early-exit, matching
// spec.md §9's explicit requirement for card cryptogram and RMAC checks.
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

// SecureChannel composes a raw transport.Channel with a
// SecureChannelWrapper, presenting itself as a transport.Channel: every
// Send wraps the command, transmits it, then unwraps the response. This is
// the thin delegate spec.md §9 calls for — the manager holds exactly one of
// these.
type SecureChannel struct {
	wrapper *SecureChannelWrapper
	channel transport.Channel
}

// NewSecureChannel binds a wrapper to the raw channel it secures.
func NewSecureChannel(wrapper *SecureChannelWrapper, channel transport.Channel) *SecureChannel {
	return &SecureChannel{wrapper: wrapper, channel: channel}
}

var _ transport.Channel = (*SecureChannel)(nil)

func (c *SecureChannel) Send(cmd *apdu.Command) (*apdu.Response, error) {
	raw, err := cmd.Serialize()
	if err != nil {
		return nil, err
	}
	logger.Debug("wrapping apdu command", "hex", hexutils.BytesToHexWithSpaces(raw))

	wrapped, err := c.wrapper.Wrap(cmd)
	if err != nil {
		return nil, err
	}

	resp, err := c.channel.Send(wrapped)
	if err != nil {
		return nil, &ErrTransport{Cause: err}
	}

	return c.wrapper.Unwrap(resp)
}
