package globalplatform

import "fmt"

// ErrTransport wraps an underlying I/O failure from the transport. It is
// always fatal to the session: the caller must discard the wrapper.
type ErrTransport struct {
	Cause error
}

func (e *ErrTransport) Error() string { return fmt.Sprintf("globalplatform: transport error: %v", e.Cause) }
func (e *ErrTransport) Unwrap() error { return e.Cause }

// ErrProtocol carries a non-success status word returned by the card.
type ErrProtocol struct {
	Sw uint16
}

func (e *ErrProtocol) Error() string {
	return fmt.Sprintf("globalplatform: protocol error, sw=%04X", e.Sw)
}

// ErrMalformedResponse means a card response violated an expected length or
// structure invariant.
type ErrMalformedResponse struct {
	Reason string
}

func (e *ErrMalformedResponse) Error() string {
	return fmt.Sprintf("globalplatform: malformed response: %s", e.Reason)
}

// ErrLocked means INITIALIZE UPDATE returned SW 0x6982 or 0x6983.
type ErrLocked struct {
	Sw uint16
}

func (e *ErrLocked) Error() string {
	return fmt.Sprintf("globalplatform: card locked, sw=%04X", e.Sw)
}

// ErrAuthenticationFailed means the card cryptogram didn't match, or
// EXTERNAL AUTHENTICATE was rejected.
type ErrAuthenticationFailed struct {
	Reason string
}

func (e *ErrAuthenticationFailed) Error() string {
	return fmt.Sprintf("globalplatform: authentication failed: %s", e.Reason)
}

// ErrVersionMismatch means the card reported an SCP family different from
// the one requested.
type ErrVersionMismatch struct {
	Requested, Reported uint8
}

func (e *ErrVersionMismatch) Error() string {
	return fmt.Sprintf("globalplatform: scp version mismatch: requested scp%02d, card reported scp%02d", e.Requested, e.Reported)
}

// ErrKeyMismatch means the static key set's version doesn't match the
// version the card reported.
type ErrKeyMismatch struct {
	Expected, Reported uint8
}

func (e *ErrKeyMismatch) Error() string {
	return fmt.Sprintf("globalplatform: key version mismatch: keyset has %d, card reported %d", e.Expected, e.Reported)
}

// ErrRMacInvalid means a response MAC failed verification.
type ErrRMacInvalid struct{}

func (e *ErrRMacInvalid) Error() string { return "globalplatform: response MAC verification failed" }

// ErrTooLong means a command's data length exceeds the wrap budget once
// MAC/ENC overhead is accounted for.
type ErrTooLong struct {
	Lc, MaxLc int
}

func (e *ErrTooLong) Error() string {
	return fmt.Sprintf("globalplatform: command data length %d exceeds wrap budget %d", e.Lc, e.MaxLc)
}

// ErrInvalidArgument means the caller misused the API: an out-of-range
// security level, RMAC requested under SCP01, or similar.
type ErrInvalidArgument struct {
	Reason string
}

func (e *ErrInvalidArgument) Error() string {
	return fmt.Sprintf("globalplatform: invalid argument: %s", e.Reason)
}

// ErrNoSecurityDomain means SD selection exhausted the well-known AID
// catalog without a successful SELECT.
type ErrNoSecurityDomain struct{}

func (e *ErrNoSecurityDomain) Error() string {
	return "globalplatform: no security domain found"
}
