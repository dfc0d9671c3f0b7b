// Package keys parses raw key material into a typed master key.
// It accepts a BIP39 mnemonic (any supported language), a base58check
// extended private key, or a base58check extended public key, in that
// classification order. Parsing is a pure function of its input: no
// network access, no mutable side effects.
package keys

import (
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/tyler-smith/go-bip39"

	sweeperr "github.com/mrz1836/hdsweep/pkg/errors"
)

// Source identifies what kind of input the key material was parsed from.
type Source int

// Key material variants, in decreasing capability order.
const (
	// SourceSeed is raw entropy from a mnemonic. Full capability.
	SourceSeed Source = iota

	// SourcePrivateExtended is an xprv. Full capability.
	SourcePrivateExtended

	// SourcePublicExtended is an xpub. Derive-only; never yields a
	// signing key.
	SourcePublicExtended
)

// String returns a human-readable name for the source.
func (s Source) String() string {
	switch s {
	case SourceSeed:
		return "mnemonic"
	case SourcePrivateExtended:
		return "xprv"
	case SourcePublicExtended:
		return "xpub"
	default:
		return "unknown"
	}
}

// KeyMaterial is a parsed master key with an explicit capability tag.
type KeyMaterial struct {
	source   Source
	root     *hdkeychain.ExtendedKey
	language string
}

// Source returns the variant tag.
func (k *KeyMaterial) Source() Source { return k.source }

// Root returns the master extended key.
func (k *KeyMaterial) Root() *hdkeychain.ExtendedKey { return k.root }

// Language returns the inferred mnemonic language, or empty for
// extended-key inputs.
func (k *KeyMaterial) Language() string { return k.language }

// CanSign reports whether this key material carries private keys.
// Callers must check this before attempting to sign; a public-only key
// fails explicitly rather than silently producing nothing.
func (k *KeyMaterial) CanSign() bool {
	return k.source != SourcePublicExtended
}

// Zero wipes the underlying key material.
func (k *KeyMaterial) Zero() {
	if k.root != nil {
		k.root.Zero()
	}
}

// Parse classifies and parses raw key input. The passphrase only
// applies to mnemonics and is ignored for extended keys.
func Parse(input, passphrase string) (*KeyMaterial, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, sweeperr.ErrUnrecognizedKeyFormat
	}

	// A multi-word input can only be a mnemonic; classify it as one so
	// that a bad phrase reports INVALID_MNEMONIC rather than falling
	// through to the base58 branch.
	if len(strings.Fields(input)) > 1 {
		return parseMnemonic(input, passphrase)
	}

	return parseExtendedKey(input)
}

// parseMnemonic infers the wordlist language, validates the checksum,
// and stretches the phrase into a BIP39 seed.
func parseMnemonic(phrase, passphrase string) (*KeyMaterial, error) {
	normalized := NormalizePhrase(phrase)
	words := strings.Fields(normalized)

	if !validWordCounts[len(words)] {
		return nil, sweeperr.WithDetails(sweeperr.ErrInvalidMnemonic,
			map[string]string{"word_count": strconv.Itoa(len(words))})
	}

	candidates := candidateLanguages(words)
	if len(candidates) == 0 {
		err := sweeperr.WithDetails(sweeperr.ErrInvalidMnemonic,
			map[string]string{"reason": "no matching wordlist language"})
		if hint := typoSuggestions(words); hint != "" {
			err = sweeperr.WithSuggestion(err, hint)
		}
		return nil, err
	}

	for _, lang := range candidates {
		if !checksumValid(normalized, lang) {
			continue
		}

		// PBKDF2-HMAC-SHA512 over the NFKD phrase, salt
		// "mnemonic"+passphrase, 2048 rounds, 64 bytes.
		seed := bip39.NewSeed(normalized, NormalizePassphrase(passphrase))
		root, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
		if err != nil {
			return nil, sweeperr.Wrap(err, "deriving master key from seed")
		}
		return &KeyMaterial{source: SourceSeed, root: root, language: lang.Name}, nil
	}

	return nil, sweeperr.WithDetails(sweeperr.ErrInvalidMnemonic,
		map[string]string{"reason": "checksum does not validate under any matching language"})
}

// parseExtendedKey parses a base58check xprv or xpub with a recognized
// mainnet version prefix.
func parseExtendedKey(input string) (*KeyMaterial, error) {
	key, err := hdkeychain.NewKeyFromString(input)
	if err != nil {
		return nil, sweeperr.WithSuggestion(sweeperr.ErrUnrecognizedKeyFormat,
			"expected a mnemonic phrase, an xprv, or an xpub")
	}

	if !key.IsForNet(&chaincfg.MainNetParams) {
		return nil, sweeperr.WithDetails(sweeperr.ErrUnrecognizedKeyFormat,
			map[string]string{"reason": "unrecognized extended key version prefix"})
	}

	source := SourcePublicExtended
	if key.IsPrivate() {
		source = SourcePrivateExtended
	}
	return &KeyMaterial{source: source, root: key}, nil
}
