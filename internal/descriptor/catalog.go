package descriptor

// Samourai wallet fixed account indexes.
const (
	samouraiRicochet uint32 = 2147483647
	samouraiPostMix  uint32 = 2147483646
	samouraiPreMix   uint32 = 2147483645
	samouraiBadBank  uint32 = 2147483644
)

// Default gap limits carried by every catalog entry. Callers override
// them explicitly; an explicit override always wins.
const (
	defaultAddressGap = 20
	defaultAccountGap = 0
)

// Catalog returns the wallet conventions to search, in priority order.
// The standard BIP44/49/84/86 families come first, then the Bitcoin
// Core and BRD-style legacy layouts, then the Samourai accounts.
func Catalog() []Descriptor {
	bip := func(name string, purpose uint32, script ScriptType) Descriptor {
		return Descriptor{
			Name:       name,
			Template:   []Segment{fixedH(purpose), fixedH(0), accountH(), chainSeg(), index()},
			Script:     script,
			AddressGap: defaultAddressGap,
			AccountGap: defaultAccountGap,
		}
	}
	samourai := func(name string, purpose, account uint32, script ScriptType) Descriptor {
		return Descriptor{
			Name:       name,
			Template:   []Segment{fixedH(purpose), fixedH(0), fixedH(account), chainSeg(), index()},
			Script:     script,
			AddressGap: defaultAddressGap,
			AccountGap: defaultAccountGap,
		}
	}
	core := func(script ScriptType) Descriptor {
		return Descriptor{
			Name:       "core-" + script.String(),
			Template:   []Segment{fixedH(0), fixedH(0), indexH()},
			Script:     script,
			AddressGap: defaultAddressGap,
			AccountGap: defaultAccountGap,
		}
	}
	brd := func(script ScriptType) Descriptor {
		return Descriptor{
			Name:       "brd-" + script.String(),
			Template:   []Segment{fixedH(0), chainSeg(), index()},
			Script:     script,
			AddressGap: defaultAddressGap,
			AccountGap: defaultAccountGap,
		}
	}

	return []Descriptor{
		bip("bip44", 44, Legacy),
		bip("bip49", 49, Nested),
		bip("bip84", 84, SegWit),
		bip("bip86", 86, Taproot),

		// Bitcoin Core's original hardened keypool layout.
		core(Legacy),
		core(Nested),
		core(SegWit),

		// BRD / Hodl / Coinomi / Multibit style m/0'/chain/index.
		brd(Legacy),
		brd(Nested),
		brd(SegWit),

		samourai("samourai-ricochet-bip44", 44, samouraiRicochet, Legacy),
		samourai("samourai-ricochet-bip49", 49, samouraiRicochet, Nested),
		samourai("samourai-ricochet-bip84", 84, samouraiRicochet, SegWit),
		samourai("samourai-postmix", 84, samouraiPostMix, SegWit),
		samourai("samourai-premix", 84, samouraiPreMix, SegWit),
		samourai("samourai-badbank", 84, samouraiBadBank, SegWit),
	}
}
