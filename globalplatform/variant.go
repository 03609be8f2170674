package globalplatform

// SCPVariant identifies a Secure Channel Protocol family and option byte.
// Family (SCP01 vs SCP02) and the (icv_encrypt, pre_mac, post_mac) trio are
// derived from the variant by variantFlags below, grounded on the reported
// `i` value during session setup — never scattered as ad hoc `if scp==...`
// branches in the crypto path.
type SCPVariant uint8

const (
	// Any lets session setup autonegotiate from the card's reported SCP
	// family (spec.md §4.3 step 5): SCP02_15 if the card reports SCP02,
	// SCP01_05 if it reports SCP01.
	Any SCPVariant = iota
	SCP01_05
	SCP01_15
	SCP02_04
	SCP02_05
	SCP02_0A
	SCP02_0B
	SCP02_14
	SCP02_15
	SCP02_1A
	SCP02_1B
)

// Family identifies the SCP protocol family a variant belongs to.
type Family uint8

const (
	FamilySCP01 Family = 1
	FamilySCP02 Family = 2
)

func (v SCPVariant) Family() Family {
	if v == SCP01_05 || v == SCP01_15 {
		return FamilySCP01
	}
	return FamilySCP02
}

func (v SCPVariant) String() string {
	switch v {
	case Any:
		return "any"
	case SCP01_05:
		return "SCP01_05"
	case SCP01_15:
		return "SCP01_15"
	case SCP02_04:
		return "SCP02_04"
	case SCP02_05:
		return "SCP02_05"
	case SCP02_0A:
		return "SCP02_0A"
	case SCP02_0B:
		return "SCP02_0B"
	case SCP02_14:
		return "SCP02_14"
	case SCP02_15:
		return "SCP02_15"
	case SCP02_1A:
		return "SCP02_1A"
	case SCP02_1B:
		return "SCP02_1B"
	default:
		return "unknown"
	}
}

// variantFlags is the three independent booleans spec.md's data model ties
// to the SCP variant: icv_encrypt, pre_mac, post_mac. Exactly one of
// pre_mac/post_mac holds for every concrete (non-Any) variant.
type variantFlags struct {
	icvEncrypt bool
	preMac     bool
	postMac    bool
}

func flagsFor(v SCPVariant) variantFlags {
	switch v {
	case SCP01_15, SCP02_14, SCP02_15, SCP02_1A, SCP02_1B:
		return variantFlags{icvEncrypt: true, preMac: preMacFor(v), postMac: postMacFor(v)}
	default:
		return variantFlags{icvEncrypt: false, preMac: preMacFor(v), postMac: postMacFor(v)}
	}
}

func preMacFor(v SCPVariant) bool {
	switch v {
	case SCP01_05, SCP01_15, SCP02_04, SCP02_05, SCP02_14, SCP02_15:
		return true
	default:
		return false
	}
}

func postMacFor(v SCPVariant) bool {
	switch v {
	case SCP02_0A, SCP02_0B, SCP02_1A, SCP02_1B:
		return true
	default:
		return false
	}
}

// negotiate picks a concrete variant given what the caller requested and
// what the card reported during INITIALIZE UPDATE (spec.md §4.3 step 5).
// reportedFamily is 1 for SCP01 or 2 for SCP02.
func negotiate(requested SCPVariant, reportedFamily Family) (SCPVariant, error) {
	if requested == Any {
		if reportedFamily == FamilySCP02 {
			return SCP02_15, nil
		}
		return SCP01_05, nil
	}

	if requested.Family() != reportedFamily {
		return 0, &ErrVersionMismatch{Requested: uint8(requested.Family()), Reported: uint8(reportedFamily)}
	}

	return requested, nil
}

// SecurityLevel is a bitset drawn from {MAC, ENC, RMAC}, stored as the same
// byte value the card uses on the wire.
type SecurityLevel uint8

func (l SecurityLevel) Has(bit uint8) bool { return uint8(l)&bit != 0 }

// Normalize implements spec.md §3's two security-level invariants: ENC
// implies MAC, and RMAC is legal only under SCP02 — for SCP01 it is
// silently cleared rather than rejected.
func (l SecurityLevel) Normalize(family Family) SecurityLevel {
	b := uint8(l)

	if b&SecurityLevelENC != 0 {
		b |= SecurityLevelMAC
	}
	if family == FamilySCP01 {
		b &^= SecurityLevelRMAC
	}

	return SecurityLevel(b)
}
