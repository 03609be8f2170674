package globalplatform

import (
	"github.com/cardterm/gpscp/transport"
)

// Kind classifies an AIDRegistry entry by what GET STATUS scope it came
// from and, for P1=0x40, its privilege bits.
type Kind int

const (
	KindIssuerSecurityDomain Kind = iota
	KindSecurityDomain
	KindApplication
	KindExecutableLoadFiles
	KindExecutableLoadFilesAndModules
)

func (k Kind) String() string {
	switch k {
	case KindIssuerSecurityDomain:
		return "IssuerSecurityDomain"
	case KindSecurityDomain:
		return "SecurityDomain"
	case KindApplication:
		return "Application"
	case KindExecutableLoadFiles:
		return "ExecutableLoadFiles"
	case KindExecutableLoadFilesAndModules:
		return "ExecutableLoadFilesAndModules"
	default:
		return "Unknown"
	}
}

// Entry is one card-reported object: an ISD, a security domain, an
// application, or an executable load file (with its module AIDs, for
// P1=0x10 only).
type Entry struct {
	AID        []byte
	LifeCycle  byte
	Privileges byte
	Kind       Kind
	Modules    [][]byte
}

// AIDRegistry is the ordered collection GET STATUS builds up across its
// four scopes, in the order the card reported them.
type AIDRegistry []Entry

// privilegeSecurityDomain is the bit in an entry's privileges byte that
// distinguishes a security domain from a plain application under P1=0x40.
const privilegeSecurityDomain = 0x80

// FetchAIDRegistry issues GET STATUS for each scope in GetStatusScopes,
// paginating on SW=0x6310 and parsing the concatenated data into an
// AIDRegistry (spec.md §4.6). A scope that fails outright is skipped, not
// fatal — the SUPPLEMENTED "Get Status scope fallback" behavior — and a
// successful P1=0x10 causes P1=0x20 to be skipped entirely.
func FetchAIDRegistry(channel transport.Channel) (AIDRegistry, error) {
	var registry AIDRegistry
	sawExecutableLoadFilesAndModules := false

	for _, p1 := range GetStatusScopes {
		if p1 == 0x20 && sawExecutableLoadFilesAndModules {
			continue
		}

		data, ok, err := fetchStatusData(channel, p1)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		var entries []Entry
		if p1 == 0x10 || p1 == 0x20 {
			entries, err = parseLoadFileRecords(p1, data)
			if p1 == 0x10 {
				sawExecutableLoadFilesAndModules = true
			}
		} else {
			entries, err = parseISDOrAppRecords(p1, data)
		}
		if err != nil {
			return nil, err
		}

		registry = append(registry, entries...)
	}

	return registry, nil
}

// fetchStatusData runs one scope's GET STATUS / pagination sequence,
// returning (nil, false, nil) when the initial command or a continuation
// fails —
// the per-scope skip-on-error SPEC_FULL.md calls for — rather than an
// error.
func fetchStatusData(channel transport.Channel, p1 uint8) ([]byte, bool, error) {
	resp, err := channel.Send(NewCommandGetStatus(p1, false))
	if err != nil {
		return nil, false, &ErrTransport{Cause: err}
	}
	if !resp.IsOK() && resp.Sw != SwMoreDataAvailable {
		return nil, false, nil
	}

	data := append([]byte{}, resp.Data...)

	for resp.Sw == SwMoreDataAvailable {
		resp, err = channel.Send(NewCommandGetStatus(p1, true))
		if err != nil {
			return nil, false, &ErrTransport{Cause: err}
		}
		if !resp.IsOK() && resp.Sw != SwMoreDataAvailable {
			return nil, false, nil
		}
		data = append(data, resp.Data...)
	}

	return data, true, nil
}

// parseISDOrAppRecords parses P1=0x80/0x40 data: a flat stream of
// len‖aid‖life_cycle‖privileges records, no module sub-records.
func parseISDOrAppRecords(p1 uint8, data []byte) ([]Entry, error) {
	var entries []Entry
	index := 0

	for index < len(data) {
		aid, next, err := readLenPrefixedAID(data, index)
		if err != nil {
			return nil, err
		}
		index = next

		if index+2 > len(data) {
			return nil, &ErrMalformedResponse{Reason: "GET STATUS record truncated before life_cycle/privileges"}
		}
		lifeCycle := data[index]
		privileges := data[index+1]
		index += 2

		kind := KindIssuerSecurityDomain
		if p1 == 0x40 {
			if privileges&privilegeSecurityDomain == 0 {
				kind = KindApplication
			} else {
				kind = KindSecurityDomain
			}
		}

		entries = append(entries, Entry{AID: aid, LifeCycle: lifeCycle, Privileges: privileges, Kind: kind})
	}

	return entries, nil
}

// parseLoadFileRecords parses P1=0x10/0x20 data. P1=0x10 records carry a
// trailing num_modules‖(len‖module_aid)* sub-record; P1=0x20 never does.
// life_cycle and privileges are read in that order — left to right — per
// spec.md's redesign note on evaluation order matching the original's
// side-effecting reads.
func parseLoadFileRecords(p1 uint8, data []byte) ([]Entry, error) {
	var entries []Entry
	index := 0
	kind := KindExecutableLoadFiles
	if p1 == 0x10 {
		kind = KindExecutableLoadFilesAndModules
	}

	for index < len(data) {
		aid, next, err := readLenPrefixedAID(data, index)
		if err != nil {
			return nil, err
		}
		index = next

		if index+2 > len(data) {
			return nil, &ErrMalformedResponse{Reason: "GET STATUS record truncated before life_cycle/privileges"}
		}
		lifeCycle := data[index]
		privileges := data[index+1]
		index += 2

		entry := Entry{AID: aid, LifeCycle: lifeCycle, Privileges: privileges, Kind: kind}

		if p1 == 0x10 {
			if index >= len(data) {
				return nil, &ErrMalformedResponse{Reason: "GET STATUS P1=0x10 record truncated before module count"}
			}
			numModules := int(data[index])
			index++

			for i := 0; i < numModules; i++ {
				moduleAID, next, err := readLenPrefixedAID(data, index)
				if err != nil {
					return nil, err
				}
				index = next
				entry.Modules = append(entry.Modules, moduleAID)
			}
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

// readLenPrefixedAID reads a one-byte length followed by that many AID
// bytes starting at index, returning the AID and the index just past it.
func readLenPrefixedAID(data []byte, index int) ([]byte, int, error) {
	if index >= len(data) {
		return nil, 0, &ErrMalformedResponse{Reason: "GET STATUS record truncated before AID length"}
	}
	length := int(data[index])
	index++

	if index+length > len(data) {
		return nil, 0, &ErrMalformedResponse{Reason: "GET STATUS record truncated mid-AID"}
	}

	aid := data[index : index+length]
	return aid, index + length, nil
}
