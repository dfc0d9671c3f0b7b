// Package descriptor defines the static catalog of wallet conventions
// searched during recovery. A descriptor pairs a derivation path
// template with a script type and default gap limits. The catalog is
// read-only; its declaration order is the scan priority and the
// tie-break when two descriptors produce the same address.
package descriptor

import (
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// ScriptType is the spending-condition template governing address
// encoding and signing scheme.
type ScriptType int

// Supported single-key script types.
const (
	// Legacy is pay-to-pubkey-hash, base58check encoded.
	Legacy ScriptType = iota

	// Nested is P2WPKH wrapped in P2SH, base58check encoded.
	Nested

	// SegWit is native P2WPKH, bech32 encoded.
	SegWit

	// Taproot is P2TR key-spend, bech32m encoded.
	Taproot
)

// String returns the conventional name of the script type.
func (s ScriptType) String() string {
	switch s {
	case Legacy:
		return "legacy"
	case Nested:
		return "nested-segwit"
	case SegWit:
		return "segwit"
	case Taproot:
		return "taproot"
	default:
		return "unknown"
	}
}

// SegmentKind tags one level of a path template.
type SegmentKind int

// Path template segment kinds.
const (
	// KindFixed is a constant derivation index.
	KindFixed SegmentKind = iota

	// KindAccount is the variable account level.
	KindAccount

	// KindChain is the variable external/internal chain level.
	KindChain

	// KindIndex is the variable address index level.
	KindIndex
)

// Segment is one level of a derivation path template.
type Segment struct {
	Kind     SegmentKind
	Value    uint32 // only meaningful for KindFixed
	Hardened bool
}

// Convenience constructors keeping the catalog readable.
func fixedH(v uint32) Segment { return Segment{Kind: KindFixed, Value: v, Hardened: true} }
func accountH() Segment       { return Segment{Kind: KindAccount, Hardened: true} }
func chainSeg() Segment       { return Segment{Kind: KindChain} }
func index() Segment          { return Segment{Kind: KindIndex} }
func indexH() Segment         { return Segment{Kind: KindIndex, Hardened: true} }

// Descriptor is one wallet convention: an ordered path template, a
// script type, and default gap limits. Values are immutable once the
// catalog is built.
type Descriptor struct {
	// Name identifies the wallet convention for reporting.
	Name string

	// Template is the ordered path template from the master key.
	Template []Segment

	// Script selects address encoding and signing scheme.
	Script ScriptType

	// AddressGap is the default consecutive-empty-address limit.
	AddressGap int

	// AccountGap is the default empty-account limit.
	AccountGap int
}

// HasAccount reports whether the template has a variable account level.
func (d *Descriptor) HasAccount() bool { return d.hasKind(KindAccount) }

// HasChain reports whether the template has a variable chain level.
// Descriptors without one scan a single implicit chain.
func (d *Descriptor) HasChain() bool { return d.hasKind(KindChain) }

func (d *Descriptor) hasKind(kind SegmentKind) bool {
	for _, seg := range d.Template {
		if seg.Kind == kind {
			return true
		}
	}
	return false
}

// Chains returns the chain roles this descriptor scans.
func (d *Descriptor) Chains() []uint32 {
	if d.HasChain() {
		return []uint32{0, 1}
	}
	return []uint32{0}
}

// Resolve substitutes the variables and returns the concrete derivation
// indexes, hardened levels offset by HardenedKeyStart.
func (d *Descriptor) Resolve(account, chain, idx uint32) []uint32 {
	path := make([]uint32, 0, len(d.Template))
	for _, seg := range d.Template {
		var v uint32
		switch seg.Kind {
		case KindFixed:
			v = seg.Value
		case KindAccount:
			v = account
		case KindChain:
			v = chain
		case KindIndex:
			v = idx
		}
		if seg.Hardened {
			v += hdkeychain.HardenedKeyStart
		}
		path = append(path, v)
	}
	return path
}

// PathString renders the concrete path in the usual m/44'/0'/0'/0/5 form.
func (d *Descriptor) PathString(account, chain, idx uint32) string {
	var b strings.Builder
	b.WriteByte('m')
	for _, step := range d.Resolve(account, chain, idx) {
		b.WriteByte('/')
		if step >= hdkeychain.HardenedKeyStart {
			b.WriteString(strconv.FormatUint(uint64(step-hdkeychain.HardenedKeyStart), 10))
			b.WriteByte('\'')
		} else {
			b.WriteString(strconv.FormatUint(uint64(step), 10))
		}
	}
	return b.String()
}
