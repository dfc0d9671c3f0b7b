package derivation

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/hdsweep/internal/descriptor"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// BIP39 seed for "abandon abandon ... about" with an empty passphrase.
const testSeedHex = "5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc1" +
	"9a5ac40b389cd370d086206dec8aa6c43daea6690f20ad3d8d48b2d2ce9e38e4"

func testRoot(t *testing.T) *hdkeychain.ExtendedKey {
	t.Helper()

	seed, err := hex.DecodeString(testSeedHex)
	require.NoError(t, err)

	root, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)
	return root
}

func byName(t *testing.T, name string) *descriptor.Descriptor {
	t.Helper()

	catalog := descriptor.Catalog()
	for i := range catalog {
		if catalog[i].Name == name {
			return &catalog[i]
		}
	}
	t.Fatalf("descriptor %q not in catalog", name)
	return nil
}

// First receive address of each standard purpose path, as published in
// the BIP-49, BIP-84 and BIP-86 reference vectors.
func TestDeriveFirstAddresses(t *testing.T) {
	root := testRoot(t)

	tests := []struct {
		descriptor string
		address    string
	}{
		{"bip44", "1LqBGSKuX5yYUonjxT5qGfpUsXKYYWeabA"},
		{"bip49", "37VucYSaXLCAsxYyAPfbSi9eh4iEcbShgf"},
		{"bip84", "bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu"},
		{"bip86", "bc1p5cyxnuxmeuwuvkwfem96lqzszd02n6xdcjrs20cac6yqjjwudpxqkedrcr"},
	}

	for _, tt := range tests {
		t.Run(tt.descriptor, func(t *testing.T) {
			entry, err := Derive(root, byName(t, tt.descriptor), 0, 0, 0)
			require.NoError(t, err)

			assert.Equal(t, tt.address, entry.Address.EncodeAddress())
			assert.Len(t, entry.ScriptHash, 64)

			script, err := txscript.PayToAddrScript(entry.Address)
			require.NoError(t, err)
			assert.Equal(t, script, entry.OutputScript)
		})
	}
}

func TestDeriveEntryPathString(t *testing.T) {
	root := testRoot(t)

	entry, err := Derive(root, byName(t, "bip84"), 0, 1, 7)
	require.NoError(t, err)

	assert.Equal(t, "m/84'/0'/0'/1/7", entry.PathString)
}

// Deriving a full path must equal deriving a prefix and then the rest
// below the intermediate key.
func TestDerivePathComposition(t *testing.T) {
	root := testRoot(t)
	path := byName(t, "bip84").Resolve(0, 0, 0)

	full, err := DerivePath(root, path)
	require.NoError(t, err)

	account, err := DerivePath(root, path[:3])
	require.NoError(t, err)
	rest, err := DerivePath(account, path[3:])
	require.NoError(t, err)

	assert.Equal(t, full.String(), rest.String())
}

func TestDeriveHardenedFromPublicFails(t *testing.T) {
	pub, err := testRoot(t).Neuter()
	require.NoError(t, err)

	_, err = Derive(pub, byName(t, "bip44"), 0, 0, 0)
	require.Error(t, err)
	assert.True(t, sweeperr.Is(err, sweeperr.ErrHardenedFromPublic))
}

func TestPrivateKeyMatchesDerivedAddress(t *testing.T) {
	root := testRoot(t)

	entry, err := Derive(root, byName(t, "bip84"), 0, 0, 0)
	require.NoError(t, err)

	priv, err := entry.PrivateKey()
	require.NoError(t, err)
	defer priv.Zero()

	addr, err := AddressForKey(priv.PubKey(), descriptor.SegWit)
	require.NoError(t, err)
	assert.Equal(t, entry.Address.EncodeAddress(), addr.EncodeAddress())
}

func TestPrivateKeyFromWatchOnlyFails(t *testing.T) {
	pub, err := testRoot(t).Neuter()
	require.NoError(t, err)

	// A descriptor with no hardened steps derives fine from a public key.
	watch := &descriptor.Descriptor{
		Name:     "watch",
		Template: []descriptor.Segment{{Kind: descriptor.KindIndex}},
		Script:   descriptor.SegWit,
	}

	entry, err := Derive(pub, watch, 0, 0, 0)
	require.NoError(t, err)

	_, err = entry.PrivateKey()
	require.Error(t, err)
	assert.True(t, sweeperr.Is(err, sweeperr.ErrReadOnlyKey))
}

// Script hash of the genesis block address, the worked example in the
// Electrum protocol documentation.
func TestElectrumScriptHashReferenceVector(t *testing.T) {
	addr, err := btcutil.DecodeAddress("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", &chaincfg.MainNetParams)
	require.NoError(t, err)

	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)

	assert.Equal(t,
		"8b01df4e368ea28f8dc0423bcf7a4923e3a12d307c875e47a0cfbf90b5c39161",
		ElectrumScriptHash(script))
}

func TestNestedRedeemScriptIsWitnessProgram(t *testing.T) {
	root := testRoot(t)

	entry, err := Derive(root, byName(t, "bip49"), 0, 0, 0)
	require.NoError(t, err)

	priv, err := entry.PrivateKey()
	require.NoError(t, err)
	defer priv.Zero()

	redeem, err := NestedRedeemScript(priv.PubKey())
	require.NoError(t, err)

	// OP_0 <20-byte key hash>
	require.Len(t, redeem, 22)
	assert.Equal(t, byte(txscript.OP_0), redeem[0])
	assert.Equal(t, byte(0x14), redeem[1])
}
