package apdu

import (
	"bytes"
	"fmt"
	"io"
)

// ErrTagNotFound is returned by FindTag when none of the walked TLV
// structures carry the requested tag.
type ErrTagNotFound struct {
	tag uint8
}

func (e *ErrTagNotFound) Error() string {
	return fmt.Sprintf("apdu: tag %02X not found", e.tag)
}

// FindTag walks a BER-TLV structure using short-form (single byte tag,
// single byte length, length < 0x80) encoding only — the only form the
// FCI template and GET STATUS responses this module parses ever use — and
// returns the value of the tag path given by tags. A single tag returns
// that tag's value directly; multiple tags descend into nested
// constructed values left to right.
func FindTag(raw []byte, tags ...uint8) ([]byte, error) {
	if len(tags) == 0 {
		return raw, nil
	}

	target := tags[0]
	buf := bytes.NewBuffer(raw)

	for {
		tag, err := buf.ReadByte()
		switch {
		case err == io.EOF:
			return []byte{}, &ErrTagNotFound{target}
		case err != nil:
			return nil, err
		}

		length, err := buf.ReadByte()
		if err != nil {
			return nil, err
		}

		value := make([]byte, length)
		if length != 0 {
			if _, err := buf.Read(value); err != nil {
				return nil, err
			}
		}

		if tag == target {
			if len(tags) == 1 {
				return value, nil
			}
			return FindTag(value, tags[1:]...)
		}
	}
}
