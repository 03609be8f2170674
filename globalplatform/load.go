package globalplatform

import (
	"github.com/cardterm/gpscp/apdu"
)

// CapFile is the interface a caller-supplied CAP file archive presents to
// LoadCapFile. This module never parses CAP zip structure itself — the
// caller is responsible for the archive's internal layout and for slicing
// its bytecode components into blocks no larger than blockSize (spec.md
// §6's CAP file interface).
type CapFile interface {
	PackageAID() []byte
	CodeLength(includeDebug bool) uint32
	LoadBlocks(includeDebug, separateComponents bool, blockSize int) [][]byte
	LoadFileDataHash(includeDebug bool) []byte
}

// LoadOptions controls the optional parts of an INSTALL [for load]/LOAD
// sequence: whether to include debug components, whether to compute and
// send the load-file-data-hash, and whether to send load parameters
// carrying the CAP code length.
type LoadOptions struct {
	IncludeDebug       bool
	SeparateComponents bool
	BlockSize          int
	SendHash           bool
	SendLoadParams     bool
}

// DefaultLoadOptions matches what every reference GP tool uses absent a
// reason to do otherwise: 247-byte blocks (255 minus 8 bytes of MAC
// overhead), no debug components, no hash, no load params.
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{BlockSize: 247}
}

// LoadCapFile runs INSTALL [for load] followed by the full LOAD block
// sequence for cap against sdAID, through the given secured channel
// (spec.md §4.6 "Install-for-Load + Load").
func LoadCapFile(channel *SecureChannel, cap CapFile, sdAID []byte, opts LoadOptions) error {
	var hash []byte
	if opts.SendHash {
		hash = cap.LoadFileDataHash(opts.IncludeDebug)
	}

	var loadParams []byte
	if opts.SendLoadParams {
		loadParams = LoadParams(uint16(cap.CodeLength(opts.IncludeDebug)))
	}

	installResp, err := channel.Send(NewCommandInstallForLoad(cap.PackageAID(), sdAID, hash, loadParams))
	if err != nil {
		return err
	}
	if !installResp.IsOK() {
		return &ErrProtocol{Sw: installResp.Sw}
	}

	stream := newLoadCommandStream(cap, opts)
	for stream.Next() {
		resp, err := channel.Send(stream.Command())
		if err != nil {
			return err
		}
		if !resp.IsOK() {
			return &ErrProtocol{Sw: resp.Sw}
		}
	}

	return nil
}

// loadCommandStream iterates a CAP file's load blocks one at a time,
// grounded on the teacher's LoadCommandStream (Next/Index/GetCommand)
// shape, adapted to consume the CapFile interface's opaque blocks instead
// of parsing a zip archive itself.
type loadCommandStream struct {
	blocks  [][]byte
	current int
}

func newLoadCommandStream(cap CapFile, opts LoadOptions) *loadCommandStream {
	return &loadCommandStream{
		blocks:  cap.LoadBlocks(opts.IncludeDebug, opts.SeparateComponents, opts.BlockSize),
		current: -1,
	}
}

// Next advances to the next block, returning false once exhausted.
func (s *loadCommandStream) Next() bool {
	if s.current+1 >= len(s.blocks) {
		return false
	}
	s.current++
	return true
}

// Index returns the current block's LOAD command index (P2).
func (s *loadCommandStream) Index() uint8 {
	return uint8(s.current)
}

// IsLast reports whether the current block is the final one.
func (s *loadCommandStream) IsLast() bool {
	return s.current == len(s.blocks)-1
}

// Command returns the LOAD command for the current block.
func (s *loadCommandStream) Command() *apdu.Command {
	return NewCommandLoad(s.blocks[s.current], s.Index(), s.IsLast())
}
