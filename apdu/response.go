package apdu

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Status words referenced directly by the globalplatform package's error
// taxonomy. Card-specific or vendor SWs are not enumerated here; callers
// compare against the raw Sw field.
const (
	SwOK                            = 0x9000
	SwMoreData                      = 0x6310
	SwSecurityConditionNotSatisfied = 0x6982
	SwAuthenticationMethodBlocked   = 0x6983
	SwCardLocked                    = 0x6283
	SwApplicationNotActive          = 0x6A82
)

// ErrBadResponse wraps a non-OK status word together with a human-readable
// note about what operation produced it.
type ErrBadResponse struct {
	sw      uint16
	message string
}

func NewErrBadResponse(sw uint16, message string) *ErrBadResponse {
	return &ErrBadResponse{sw: sw, message: message}
}

func (e *ErrBadResponse) Error() string {
	return fmt.Sprintf("bad response %04X: %s", e.sw, e.message)
}

// Response is a parsed ISO 7816-4 response APDU: Data ‖ SW1 ‖ SW2.
type Response struct {
	Data []byte
	Sw1  uint8
	Sw2  uint8
	Sw   uint16
}

var ErrBadRawResponse = errors.New("apdu: response must be at least 2 bytes")

// ParseResponse splits raw transmitted bytes into data and status word.
func ParseResponse(data []byte) (*Response, error) {
	r := &Response{}
	return r, r.deserialize(data)
}

func (r *Response) deserialize(data []byte) error {
	if len(data) < 2 {
		return ErrBadRawResponse
	}

	r.Data = make([]byte, len(data)-2)
	buf := bytes.NewReader(data)

	if err := binary.Read(buf, binary.BigEndian, &r.Data); err != nil {
		return err
	}
	if err := binary.Read(buf, binary.BigEndian, &r.Sw1); err != nil {
		return err
	}
	if err := binary.Read(buf, binary.BigEndian, &r.Sw2); err != nil {
		return err
	}

	r.Sw = uint16(r.Sw1)<<8 | uint16(r.Sw2)

	return nil
}

// IsOK reports whether the status word is 0x9000.
func (r *Response) IsOK() bool {
	return r.Sw == SwOK
}

// IsMoreData reports SW=0x6310, the "more data available" continuation used
// by GET STATUS pagination.
func (r *Response) IsMoreData() bool {
	return r.Sw == SwMoreData
}
