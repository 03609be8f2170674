package globalplatform

import (
	"bytes"

	"github.com/cardterm/gpscp/apdu"
)

// NewCommandSelect builds a SELECT command for the given AID, or the empty
// AID to select "the currently selected application" during discovery.
func NewCommandSelect(aid []byte) *apdu.Command {
	return apdu.NewCommand(ClaISO7816, InsSelect, 0x04, 0x00, aid)
}

// NewCommandGetData builds a GET DATA command for the given tag (P1‖P2),
// used by Manager.GetData to read card metadata.
func NewCommandGetData(tag uint16) *apdu.Command {
	return apdu.NewCommand(ClaGp, InsGetData, uint8(tag>>8), uint8(tag), nil)
}

// NewCommandInitializeUpdate builds the INITIALIZE UPDATE command carrying
// the host challenge, per spec.md §4.3 step 2.
func NewCommandInitializeUpdate(version, id uint8, hostChallenge []byte) *apdu.Command {
	cmd := apdu.NewCommand(ClaGp, InsInitializeUpdate, version, id, hostChallenge)
	cmd.SetLe(0x00)
	return cmd
}

// tlvLen builds a single length-prefixed byte string for the INSTALL/DELETE
// payload encodings below, each of which uses a one-byte length (every
// field this module handles is far short of 255 bytes).
func tlvLen(data []byte) []byte {
	return append([]byte{byte(len(data))}, data...)
}

// InstallForLoadPayload builds the INSTALL [for load] data field: package
// AID, security domain AID, optional load-file-data-hash, optional load
// parameters, and a trailing empty install token length.
func InstallForLoadPayload(packageAID, sdAID, hash, loadParams []byte) []byte {
	buf := new(bytes.Buffer)
	buf.Write(tlvLen(packageAID))
	buf.Write(tlvLen(sdAID))
	buf.Write(tlvLen(hash))
	buf.Write(tlvLen(loadParams))
	buf.WriteByte(0x00)
	return buf.Bytes()
}

// NewCommandInstallForLoad builds the INSTALL command that precedes a LOAD
// sequence.
func NewCommandInstallForLoad(packageAID, sdAID, hash, loadParams []byte) *apdu.Command {
	return apdu.NewCommand(ClaGp, InsInstall, P1InstallForLoad, 0x00, InstallForLoadPayload(packageAID, sdAID, hash, loadParams))
}

// LoadParams builds the single EF04C6 TLV this module's LOAD path uses:
// "load file data block format" carrying the CAP code length.
func LoadParams(codeLength uint16) []byte {
	return []byte{0xEF, 0x04, 0xC6, 0x02, byte(codeLength >> 8), byte(codeLength)}
}

// NewCommandLoad builds one LOAD command for block index i of n, setting
// P1 to the last-block marker on the final block.
func NewCommandLoad(block []byte, index uint8, last bool) *apdu.Command {
	p1 := P1LoadMoreBlocks
	if last {
		p1 = P1LoadLastBlock
	}
	return apdu.NewCommand(ClaGp, InsLoad, p1, index, block)
}

// InstallForInstallAndMakeSelectablePayload builds the INSTALL [for
// install and make selectable] data field, applying the same-as-applet
// and default-parameter conventions spec.md §4.6 calls for.
func InstallForInstallAndMakeSelectablePayload(pkg, applet, instance []byte, privileges uint8, params, token []byte) []byte {
	if instance == nil {
		instance = applet
	}
	if params == nil {
		params = []byte{0xC9, 0x00}
	}

	buf := new(bytes.Buffer)
	buf.Write(tlvLen(pkg))
	buf.Write(tlvLen(applet))
	buf.Write(tlvLen(instance))
	buf.WriteByte(0x01)
	buf.WriteByte(privileges)
	buf.Write(tlvLen(params))
	buf.Write(tlvLen(token))
	return buf.Bytes()
}

// NewCommandInstallForInstallAndMakeSelectable builds the INSTALL command
// that instantiates an applet and makes it selectable in one step.
func NewCommandInstallForInstallAndMakeSelectable(pkg, applet, instance []byte, privileges uint8, params, token []byte) *apdu.Command {
	payload := InstallForInstallAndMakeSelectablePayload(pkg, applet, instance, privileges, params, token)
	return apdu.NewCommand(ClaGp, InsInstall, P1InstallForInstallAndMakeSelectable, 0x00, payload)
}

// MakeDefaultSelectedPayload builds the INSTALL [for make selectable]
// payload that promotes an already-installed applet to the card's default
// selected application.
func MakeDefaultSelectedPayload(aid []byte, privileges uint8) []byte {
	buf := new(bytes.Buffer)
	buf.Write([]byte{0x00, 0x00})
	buf.Write(tlvLen(aid))
	buf.WriteByte(0x01)
	buf.WriteByte(privileges)
	buf.Write([]byte{0x00, 0x00})
	return buf.Bytes()
}

// NewCommandMakeDefaultSelected builds the INSTALL command that sets an
// applet as the card's default selected application.
func NewCommandMakeDefaultSelected(aid []byte, privileges uint8) *apdu.Command {
	return apdu.NewCommand(ClaGp, InsInstall, P1InstallForMakeSelectable, 0x00, MakeDefaultSelectedPayload(aid, privileges))
}

// DeletePayload builds the DELETE data field: tag 0x4F (AID) with its
// length.
func DeletePayload(aid []byte) []byte {
	return append([]byte{0x4F}, tlvLen(aid)...)
}

// NewCommandDelete builds a DELETE command for aid, deleting its
// dependents too when deleteDeps is set.
func NewCommandDelete(aid []byte, deleteDeps bool) *apdu.Command {
	p2 := P2DeleteExactlyThisObject
	if deleteDeps {
		p2 = P2DeleteObjectAndRelatedObjects
	}
	return apdu.NewCommand(ClaGp, InsDelete, 0x00, p2, DeletePayload(aid))
}

// NewCommandExternalAuthenticate builds the EXTERNAL AUTHENTICATE command
// carrying the host cryptogram at the given final security level. It is
// built with the plain GP CLA — the wrapper's own pre-MAC step, not this
// builder, is what turns it into the 0x84 CLA the card expects.
func NewCommandExternalAuthenticate(level SecurityLevel, hostCryptogram []byte) *apdu.Command {
	return apdu.NewCommand(ClaGp, InsExternalAuthenticate, uint8(level), 0x00, hostCryptogram)
}

// NewCommandGetStatus builds one GET STATUS command for the given scope
// (P1), continuing a paginated query when more is true.
func NewCommandGetStatus(scope uint8, more bool) *apdu.Command {
	p2 := uint8(0x00)
	if more {
		p2 = 0x01
	}
	return apdu.NewCommand(ClaGp, InsGetStatus, scope, p2, []byte{0x4F, 0x00})
}
