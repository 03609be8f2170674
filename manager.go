// Package gpscp implements the GlobalPlatform card-manager core: secure
// channel setup (SCP01/SCP02) and the INSTALL/LOAD/DELETE/GET STATUS
// command layer built on top of it.
package gpscp

import (
	"fmt"

	"github.com/cardterm/gpscp/apdu"
	"github.com/cardterm/gpscp/globalplatform"
	"github.com/cardterm/gpscp/hexutils"
	"github.com/cardterm/gpscp/transport"
	"github.com/ethereum/go-ethereum/log"
)

var logger = log.New("package", "gpscp")

// ErrNotAuthenticated means a command that requires a secure channel was
// issued before OpenSecureChannel succeeded.
type ErrNotAuthenticated struct{}

func (e *ErrNotAuthenticated) Error() string {
	return "gpscp: no secure channel open; call OpenSecureChannel first"
}

// Manager is the thin delegate spec.md §9 describes: it owns one
// SecureChannel bound to one transport.Channel by strong ownership, and
// exposes the GP command layer (SELECT, secure channel setup,
// INSTALL/LOAD/DELETE/GET STATUS) as plain method calls, grounded on the
// teacher's Installer (installer.go's NewInstaller/Install/send shape).
type Manager struct {
	// Strict toggles the strict/non-strict warning gate SPEC_FULL.md
	// carries over from the original's printStrictWarning: under strict,
	// a recoverable condition during SD selection is a hard error.
	Strict bool

	raw    transport.Channel
	secure *globalplatform.SecureChannel
}

// NewManager binds a Manager to the raw transport it will authenticate
// over. No I/O happens until the first method call.
func NewManager(channel transport.Channel) *Manager {
	return &Manager{raw: channel}
}

// channel returns the secure channel once authenticated, otherwise the raw
// transport — SELECT and INITIALIZE UPDATE run before a secure channel
// exists, everything else after.
func (m *Manager) channel() transport.Channel {
	if m.secure != nil {
		return m.secure
	}
	return m.raw
}

// SelectSecurityDomain selects the target security domain, falling back to
// globalplatform.WellKnownSDAIDs when the no-AID SELECT doesn't resolve one
// (spec.md §4.5). Pass nil for expectedAID to accept whatever AID the card
// reports.
func (m *Manager) SelectSecurityDomain(expectedAID []byte) ([]byte, error) {
	logger.Debug("selecting security domain", "expected", hexutils.BytesToHex(expectedAID))
	return globalplatform.SelectSecurityDomain(m.raw, expectedAID, m.Strict)
}

// OpenSecureChannel runs the SCP01/SCP02 mutual authentication handshake
// (spec.md §4.3) and, on success, routes every subsequent Manager method
// through the resulting SecureChannel. Pass globalplatform.Any for
// requested to autonegotiate from whatever family the card reports.
func (m *Manager) OpenSecureChannel(staticKeys *globalplatform.KeySet, requested globalplatform.SCPVariant, level globalplatform.SecurityLevel) (globalplatform.SCPVariant, error) {
	logger.Debug("opening secure channel", "requested", requested.String())

	sc, negotiated, err := globalplatform.OpenSecureChannel(m.raw, staticKeys, requested, level)
	if err != nil {
		return 0, err
	}

	m.secure = sc
	logger.Debug("secure channel open", "negotiated", negotiated.String())
	return negotiated, nil
}

// requireSecureChannel is the guard every post-authentication command runs
// first, so a caller skipping OpenSecureChannel fails fast with a clear
// error instead of sending an unprotected command a real card would reject.
func (m *Manager) requireSecureChannel() (*globalplatform.SecureChannel, error) {
	if m.secure == nil {
		return nil, &ErrNotAuthenticated{}
	}
	return m.secure, nil
}

// send issues cmd over the channel a command requires, accepting only
// SwOK unless allowed lists other status words explicitly. Grounded on the
// teacher's Installer.send.
func (m *Manager) send(description string, channel transport.Channel, cmd *apdu.Command, allowed ...uint16) (*apdu.Response, error) {
	resp, err := channel.Send(cmd)
	if err != nil {
		return nil, &transportError{description: description, cause: err}
	}

	if len(allowed) == 0 {
		allowed = []uint16{apdu.SwOK}
	}
	for _, sw := range allowed {
		if sw == resp.Sw {
			return resp, nil
		}
	}

	return nil, &globalplatform.ErrProtocol{Sw: resp.Sw}
}

type transportError struct {
	description string
	cause       error
}

func (e *transportError) Error() string {
	return fmt.Sprintf("gpscp: %s failed: %v", e.description, e.cause)
}
func (e *transportError) Unwrap() error { return e.cause }

// LoadCapFile issues INSTALL [for load] followed by one LOAD per block
// (spec.md §4.6), requiring a secure channel.
func (m *Manager) LoadCapFile(cap globalplatform.CapFile, sdAID []byte, opts globalplatform.LoadOptions) error {
	sc, err := m.requireSecureChannel()
	if err != nil {
		return err
	}
	logger.Debug("loading cap file", "package", hexutils.BytesToHex(cap.PackageAID()))
	return globalplatform.LoadCapFile(sc, cap, sdAID, opts)
}

// InstallAndMakeSelectable issues INSTALL [for install and make
// selectable] with instance=applet, params=C9 00, and no token unless the
// caller overrides them (spec.md §4.6's stated defaults).
func (m *Manager) InstallAndMakeSelectable(pkg, applet, instance []byte, privileges uint8, params, token []byte) error {
	sc, err := m.requireSecureChannel()
	if err != nil {
		return err
	}
	cmd := globalplatform.NewCommandInstallForInstallAndMakeSelectable(pkg, applet, instance, privileges, params, token)
	_, err = m.send("install for install and make selectable", sc, cmd)
	return err
}

// MakeDefaultSelected issues INSTALL [for make selectable] carrying the
// caller-supplied privileges byte (spec.md §4.6); it sets no privilege bit
// itself.
func (m *Manager) MakeDefaultSelected(aid []byte, privileges uint8) error {
	sc, err := m.requireSecureChannel()
	if err != nil {
		return err
	}
	cmd := globalplatform.NewCommandMakeDefaultSelected(aid, privileges)
	_, err = m.send("make default selected", sc, cmd)
	return err
}

// Delete removes an application, package, or (with deleteDeps) a package
// and every application loaded from it (spec.md §4.6).
func (m *Manager) Delete(aid []byte, deleteDeps bool) error {
	sc, err := m.requireSecureChannel()
	if err != nil {
		return err
	}
	cmd := globalplatform.NewCommandDelete(aid, deleteDeps)
	_, err = m.send("delete", sc, cmd)
	return err
}

// GetStatus walks every GET STATUS scope and returns the combined registry
// (spec.md §4.6).
func (m *Manager) GetStatus() (globalplatform.AIDRegistry, error) {
	sc, err := m.requireSecureChannel()
	if err != nil {
		return nil, err
	}
	return globalplatform.FetchAIDRegistry(sc)
}

// GetData issues a GET DATA command for the given P1/P2 tag and returns
// the raw TLV bytes — parsing is the caller's responsibility, consistent
// with this module's TLV-walker-only primitive (SPEC_FULL.md's
// card-data-discovery supplement).
func (m *Manager) GetData(p1, p2 byte) ([]byte, error) {
	cmd := globalplatform.NewCommandGetData(uint16(p1)<<8 | uint16(p2))
	resp, err := m.send("get data", m.channel(), cmd)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// GetCPLC retrieves Card Production Life Cycle data (GET DATA P1=0x9F
// P2=0x7F), the SUPPLEMENTED card-discovery feature from SPEC_FULL.md.
func (m *Manager) GetCPLC() ([]byte, error) {
	return m.GetData(0x9F, 0x7F)
}
