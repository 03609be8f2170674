package globalplatform

import (
	"github.com/pkg/errors"
)

// KeyType names one of the four key roles a KeySet can hold. RMAC only
// ever appears on a SCP02 session key set, derived during setup — never on
// a static key set the caller constructs.
type KeyType uint8

const (
	KeyTypeEnc KeyType = iota
	KeyTypeMac
	KeyTypeKek
	KeyTypeRmac
)

// Diversification names which key diversification scheme, if any, a KeySet
// needs applied before its keys are usable. The schemes themselves (EMV,
// VISA2, KDF3) are out of scope for this module — diversify() calls
// through a single Diversifier hook rather than implementing them here.
type Diversification uint8

const (
	DiversificationNone Diversification = iota
	DiversificationEMV
	DiversificationVISA2
	DiversificationKDF3
)

// versionAny1/versionAny2 mark a KeySet as eligible for diversification (spec.md
// §4.2: diversify only applies when version is 0 or 255, meaning "any").
const (
	versionAny1 = uint8(0)
	versionAny2 = uint8(255)
)

// KeySet holds the symmetric keys for one security domain key version: ENC,
// MAC, KEK always present; RMAC present only once a SCP02 session derives
// it. Keys are stored as 16-byte K1‖K2 values. GetDES returns a sub-slice
// of that storage; Get3DES builds and returns a new 24-byte slice, not a
// view.
type KeySet struct {
	keys            map[KeyType][]byte
	Version         uint8
	ID              uint8
	Diversification Diversification
	diversified     bool
}

// NewKeySet builds a static key set from a single 16-byte key used for all
// of ENC, MAC, and KEK — the common case (GlobalPlatform's own default test
// key is exactly this shape).
func NewKeySet(key []byte, version, id uint8) *KeySet {
	return NewKeySetWithKeys(key, key, key, version, id)
}

// NewKeySetWithKeys builds a static key set from three independently-chosen
// keys.
func NewKeySetWithKeys(enc, mac, kek []byte, version, id uint8) *KeySet {
	return &KeySet{
		keys: map[KeyType][]byte{
			KeyTypeEnc: enc,
			KeyTypeMac: mac,
			KeyTypeKek: kek,
		},
		Version: version,
		ID:      id,
	}
}

// Get returns the 16-byte key for the given type.
func (k *KeySet) Get(t KeyType) []byte {
	return k.keys[t]
}

// Set installs a key for the given type; used by session setup to record
// freshly-derived session keys (including RMAC, which static key sets
// never carry).
func (k *KeySet) Set(t KeyType, key []byte) {
	if k.keys == nil {
		k.keys = make(map[KeyType][]byte)
	}
	k.keys[t] = key
}

// Get3DES returns the 24-byte 3DES expansion (K1‖K2‖K1) of the key for the
// given type.
func (k *KeySet) Get3DES(t KeyType) []byte {
	key := k.keys[t]
	expanded := make([]byte, 24)
	copy(expanded, key[:16])
	copy(expanded[16:], key[:8])
	return expanded
}

// GetDES returns the 8-byte K1 half of the key for the given type, for use
// as a single-DES key.
func (k *KeySet) GetDES(t KeyType) []byte {
	return k.keys[t][:8]
}

// NeedsDiversity reports whether diversify() should still be applied: only
// when a scheme is configured, version is 0 or 255, and it hasn't already
// run once.
func (k *KeySet) NeedsDiversity() bool {
	if k.diversified || k.Diversification == DiversificationNone {
		return false
	}
	return k.Version == versionAny1 || k.Version == versionAny2
}

// Diversifier computes diversified keys from a static key set and the
// card's 28-byte INITIALIZE UPDATE response. The concrete EMV/VISA2/KDF3
// algorithms are external collaborators of this module (spec.md §1); only
// the no-op None diversifier is implemented here.
type Diversifier interface {
	Diversify(keys *KeySet, cardResponse [28]byte) error
}

var diversifiers = map[Diversification]Diversifier{
	DiversificationNone: noneDiversifier{},
}

// RegisterDiversifier installs a Diversifier for a scheme, letting a caller
// supply EMV/VISA2/KDF3 (or any other scheme) without this package knowing
// about it.
func RegisterDiversifier(d Diversification, impl Diversifier) {
	diversifiers[d] = impl
}

// Diversify mutates the key set in place using the registered Diversifier
// for its configured scheme and the card's response data. Applied at most
// once; spec.md §4.2 restricts it to key sets with version 0 or 255.
func (k *KeySet) Diversify(cardResponse [28]byte) error {
	if !k.NeedsDiversity() {
		return nil
	}

	impl, ok := diversifiers[k.Diversification]
	if !ok {
		return errors.Errorf("globalplatform: no diversifier registered for scheme %d", k.Diversification)
	}

	if err := impl.Diversify(k, cardResponse); err != nil {
		return err
	}

	k.diversified = true
	return nil
}

// noneDiversifier leaves the key set untouched; it exists so "no
// diversification configured" and "diversified, trivially" behave
// identically rather than needing a special case at every call site.
type noneDiversifier struct{}

func (noneDiversifier) Diversify(*KeySet, [28]byte) error { return nil }

// unregisteredDiversifier is registered by init below for the
// out-of-scope schemes, so wiring one up without providing a real
// implementation fails loudly instead of silently using the static key.
type unregisteredDiversifier struct {
	scheme string
}

func (u unregisteredDiversifier) Diversify(*KeySet, [28]byte) error {
	return errors.Errorf("globalplatform: %s diversification is not implemented by this module; register a Diversifier via RegisterDiversifier", u.scheme)
}

func init() {
	RegisterDiversifier(DiversificationEMV, unregisteredDiversifier{"EMV"})
	RegisterDiversifier(DiversificationVISA2, unregisteredDiversifier{"VISA2"})
	RegisterDiversifier(DiversificationKDF3, unregisteredDiversifier{"KDF3"})
}
