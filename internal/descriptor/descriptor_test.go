package descriptor

import (
	"testing"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const h = hdkeychain.HardenedKeyStart

// byName fetches a catalog entry for inspection.
func byName(t *testing.T, name string) *Descriptor {
	t.Helper()
	catalog := Catalog()
	for i := range catalog {
		if catalog[i].Name == name {
			return &catalog[i]
		}
	}
	t.Fatalf("descriptor %s not in catalog", name)
	return nil
}

func TestCatalogOrderIsStable(t *testing.T) {
	a := Catalog()
	b := Catalog()

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Name, b[i].Name)
	}

	// The BIP44 convention leads the search.
	assert.Equal(t, "bip44", a[0].Name)
	assert.Equal(t, Legacy, a[0].Script)
}

func TestCatalogReturnsIndependentCopies(t *testing.T) {
	a := Catalog()
	a[0].Name = "mutated"
	a[0].Template[0] = Segment{}

	b := Catalog()
	assert.Equal(t, "bip44", b[0].Name)
	assert.Equal(t, uint32(44), b[0].Template[0].Value)
}

func TestResolveBIP84(t *testing.T) {
	d := byName(t, "bip84")

	assert.Equal(t, []uint32{h + 84, h + 0, h + 0, 0, 0}, d.Resolve(0, 0, 0))
	assert.Equal(t, []uint32{h + 84, h + 0, h + 2, 1, 7}, d.Resolve(2, 1, 7))
	assert.Equal(t, "m/84'/0'/0'/0/0", d.PathString(0, 0, 0))
	assert.Equal(t, "m/84'/0'/2'/1/7", d.PathString(2, 1, 7))

	assert.True(t, d.HasAccount())
	assert.True(t, d.HasChain())
	assert.Equal(t, []uint32{0, 1}, d.Chains())
}

func TestResolveCoreLayoutHasHardenedIndex(t *testing.T) {
	d := byName(t, "core-legacy")

	assert.False(t, d.HasAccount())
	assert.False(t, d.HasChain())
	assert.Equal(t, []uint32{0}, d.Chains())

	// m/0'/0'/i' — the index level itself is hardened.
	assert.Equal(t, []uint32{h, h, h + 5}, d.Resolve(0, 0, 5))
	assert.Equal(t, "m/0'/0'/5'", d.PathString(0, 0, 5))
}

func TestResolveSamouraiFixedAccount(t *testing.T) {
	d := byName(t, "samourai-postmix")

	// The account level is fixed; the account variable is ignored.
	assert.Equal(t, []uint32{h + 84, h, h + 2147483646, 0, 3}, d.Resolve(9, 0, 3))
	assert.False(t, d.HasAccount())
	assert.True(t, d.HasChain())
}

func TestScriptTypeString(t *testing.T) {
	assert.Equal(t, "legacy", Legacy.String())
	assert.Equal(t, "nested-segwit", Nested.String())
	assert.Equal(t, "segwit", SegWit.String())
	assert.Equal(t, "taproot", Taproot.String())
}
