package globalplatform

import (
	"bytes"

	"github.com/cardterm/gpscp/apdu"
	"github.com/cardterm/gpscp/transport"
)

// WellKnownSDAIDs is the fallback catalog SelectSecurityDomain walks when
// the no-AID SELECT doesn't resolve one, grounded on the handful of
// issuer security domain AIDs real GlobalPlatform cards ship with in
// practice (the teacher's own `installer.go` default `sdaid` is the first
// entry).
var WellKnownSDAIDs = [][]byte{
	{0xA0, 0x00, 0x00, 0x01, 0x51, 0x00, 0x00, 0x00},
	{0xA0, 0x00, 0x00, 0x00, 0x03, 0x00, 0x00, 0x00},
	{0xA0, 0x00, 0x00, 0x00, 0x18, 0x43, 0x4D, 0x00},
}

// warnOrFail implements spec.md's strict/non-strict gate for recoverable
// SD-selection conditions: under strict it returns an error, otherwise it
// logs a warning and lets the caller continue.
func warnOrFail(strict bool, reason string) error {
	if strict {
		return &ErrInvalidArgument{Reason: reason}
	}
	logger.Warn("recoverable condition during SD selection", "reason", reason)
	return nil
}

// SelectSecurityDomain selects a security domain per spec.md §4.5: first
// an empty-AID SELECT, falling back to WellKnownSDAIDs if that leaves the
// SD undetermined. If expectedAID is non-nil, a mismatch between the
// caller's expectation and the FCI's reported AID is a warning, or an
// error under strict.
func SelectSecurityDomain(channel transport.Channel, expectedAID []byte, strict bool) ([]byte, error) {
	resp, err := channel.Send(selectCommand(nil))
	if err != nil {
		return nil, &ErrTransport{Cause: err}
	}

	if aid, ok, err := parseSelectResponse(resp, expectedAID, strict); err != nil {
		return nil, err
	} else if ok {
		return aid, nil
	}

	for _, aid := range WellKnownSDAIDs {
		resp, err := channel.Send(selectCommand(aid))
		if err != nil {
			return nil, &ErrTransport{Cause: err}
		}
		if resp.IsOK() {
			return aid, nil
		}
	}

	return nil, &ErrNoSecurityDomain{}
}

func selectCommand(aid []byte) *apdu.Command {
	cmd := NewCommandSelect(aid)
	cmd.SetLe(0x00)
	return cmd
}

// parseSelectResponse reports (aid, true, nil) when resp carries a usable
// FCI; (nil, false, nil) when the caller should fall through to the
// well-known catalog; or a non-nil error when the FCI carries no AID or,
// under strict mode, on a recoverable condition.
func parseSelectResponse(resp *apdu.Response, expectedAID []byte, strict bool) ([]byte, bool, error) {
	switch resp.Sw {
	case apdu.SwApplicationNotActive:
		if err := warnOrFail(strict, "SELECT returned 6A82 - unfused card?"); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	case apdu.SwCardLocked:
		if err := warnOrFail(strict, "SELECT returned 6283 - card locked"); err != nil {
			return nil, false, err
		}
	case apdu.SwOK:
		// fall through to FCI parsing below
	default:
		return nil, false, nil
	}

	aid, err := apdu.FindTag(resp.Data, TagFCITemplate, TagAID)
	if err != nil {
		return nil, false, &ErrMalformedResponse{Reason: "SELECT response has no AID in its FCI template"}
	}

	if expectedAID != nil && !bytes.Equal(aid, expectedAID) {
		if err := warnOrFail(strict, "SD AID in FCI does not match the requested AID"); err != nil {
			return nil, false, err
		}
	}

	return aid, true, nil
}
