// Package derivation turns an extended key and a resolved descriptor path
// into concrete Bitcoin addresses, output scripts, and Electrum script
// hashes for each supported script type.
package derivation

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"

	"github.com/mrz1836/hdsweep/internal/descriptor"
	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// Entry is a single derived address with everything the scanner and the
// sweeper need to know about it.
type Entry struct {
	// Descriptor is the catalog name the path came from.
	Descriptor string

	// Path is the resolved child index sequence below the root.
	Path []uint32

	// PathString is the human-readable form, e.g. m/84'/0'/0'/0/3.
	PathString string

	// Script is the script type the address encodes.
	Script descriptor.ScriptType

	// Address is the chain-formatted address.
	Address btcutil.Address

	// OutputScript is the scriptPubKey paying to Address.
	OutputScript []byte

	// ScriptHash is the Electrum protocol script hash for OutputScript.
	ScriptHash string

	key *hdkeychain.ExtendedKey
}

// PrivateKey returns the signing key for the entry. The caller owns the
// returned key and should zero it after use.
func (e *Entry) PrivateKey() (*btcec.PrivateKey, error) {
	priv, err := e.key.ECPrivKey()
	if err != nil {
		return nil, sweeperr.Classify(sweeperr.ErrReadOnlyKey, err,
			"cannot sign for %s without a private key", e.PathString)
	}
	return priv, nil
}

// Derive resolves a descriptor slot against the root key and returns the
// fully populated entry for it.
func Derive(root *hdkeychain.ExtendedKey, d *descriptor.Descriptor, account, chainBranch, index uint32) (*Entry, error) {
	path := d.Resolve(account, chainBranch, index)

	key, err := DerivePath(root, path)
	if err != nil {
		return nil, err
	}

	pub, err := key.ECPubKey()
	if err != nil {
		return nil, sweeperr.Wrap(err, "failed to extract public key for %s", d.PathString(account, chainBranch, index))
	}

	addr, err := AddressForKey(pub, d.Script)
	if err != nil {
		return nil, err
	}

	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, sweeperr.Wrap(err, "failed to build output script for %s", addr.EncodeAddress())
	}

	return &Entry{
		Descriptor:   d.Name,
		Path:         path,
		PathString:   d.PathString(account, chainBranch, index),
		Script:       d.Script,
		Address:      addr,
		OutputScript: script,
		ScriptHash:   ElectrumScriptHash(script),
		key:          key,
	}, nil
}

// DerivePath replays a resolved path step by step below the root key.
func DerivePath(root *hdkeychain.ExtendedKey, path []uint32) (*hdkeychain.ExtendedKey, error) {
	key := root
	for i, child := range path {
		next, err := key.Derive(child)
		if err != nil {
			if errors.Is(err, hdkeychain.ErrDeriveHardFromPublic) {
				return nil, sweeperr.Classify(sweeperr.ErrHardenedFromPublic, err,
					"step %d of the path requires a private key", i)
			}
			return nil, sweeperr.Wrap(err, "key derivation failed at step %d", i)
		}
		key = next
	}
	return key, nil
}

// AddressForKey encodes a public key as an address of the given script type.
func AddressForKey(pub *btcec.PublicKey, script descriptor.ScriptType) (btcutil.Address, error) {
	params := &chaincfg.MainNetParams
	pkHash := btcutil.Hash160(pub.SerializeCompressed())

	var (
		addr btcutil.Address
		err  error
	)
	switch script {
	case descriptor.Legacy:
		addr, err = btcutil.NewAddressPubKeyHash(pkHash, params)
	case descriptor.Nested:
		var redeem []byte
		redeem, err = NestedRedeemScript(pub)
		if err == nil {
			addr, err = btcutil.NewAddressScriptHash(redeem, params)
		}
	case descriptor.SegWit:
		addr, err = btcutil.NewAddressWitnessPubKeyHash(pkHash, params)
	case descriptor.Taproot:
		tweaked := txscript.ComputeTaprootKeyNoScript(pub)
		addr, err = btcutil.NewAddressTaproot(schnorr.SerializePubKey(tweaked), params)
	default:
		return nil, sweeperr.New("UNKNOWN_SCRIPT_TYPE", "unknown script type")
	}
	if err != nil {
		return nil, sweeperr.Wrap(err, "failed to encode %s address", script)
	}
	return addr, nil
}

// NestedRedeemScript returns the P2WPKH script that a nested SegWit
// spend reveals as its redeem script.
func NestedRedeemScript(pub *btcec.PublicKey) ([]byte, error) {
	params := &chaincfg.MainNetParams
	wit, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pub.SerializeCompressed()), params)
	if err != nil {
		return nil, sweeperr.Wrap(err, "failed to build witness program")
	}
	redeem, err := txscript.PayToAddrScript(wit)
	if err != nil {
		return nil, sweeperr.Wrap(err, "failed to build redeem script")
	}
	return redeem, nil
}

// ElectrumScriptHash hashes an output script the way the Electrum protocol
// indexes it: sha256 of the script, byte-reversed, hex encoded.
func ElectrumScriptHash(script []byte) string {
	sum := sha256.Sum256(script)
	for i, j := 0, len(sum)-1; i < j; i, j = i+1, j-1 {
		sum[i], sum[j] = sum[j], sum[i]
	}
	return hex.EncodeToString(sum[:])
}
