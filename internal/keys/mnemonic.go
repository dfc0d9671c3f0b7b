package keys

import (
	"strconv"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/tyler-smith/go-bip39"
	"github.com/tyler-smith/go-bip39/wordlists"
	"golang.org/x/text/unicode/norm"
)

// Valid BIP39 phrase lengths.
//
//nolint:gochecknoglobals // Static lookup table
var validWordCounts = map[int]bool{12: true, 15: true, 18: true, 21: true, 24: true}

// Language is one supported BIP39 wordlist.
type Language struct {
	Name  string
	Words []string

	once sync.Once
	set  map[string]bool
}

// Contains reports whether the word belongs to this language's wordlist.
func (l *Language) Contains(word string) bool {
	l.once.Do(func() {
		l.set = make(map[string]bool, len(l.Words))
		for _, w := range l.Words {
			l.set[w] = true
		}
	})
	return l.set[word]
}

// languages lists every supported wordlist. The order is the tie-break
// when a phrase validates under more than one language.
//
//nolint:gochecknoglobals // Static wordlist table
var languages = []*Language{
	{Name: "english", Words: wordlists.English},
	{Name: "japanese", Words: wordlists.Japanese},
	{Name: "korean", Words: wordlists.Korean},
	{Name: "spanish", Words: wordlists.Spanish},
	{Name: "chinese_simplified", Words: wordlists.ChineseSimplified},
	{Name: "chinese_traditional", Words: wordlists.ChineseTraditional},
	{Name: "french", Words: wordlists.French},
	{Name: "italian", Words: wordlists.Italian},
	{Name: "czech", Words: wordlists.Czech},
}

// wordListMu serializes access to go-bip39's package-global wordlist.
//
//nolint:gochecknoglobals // Guards third-party package-global state
var wordListMu sync.Mutex

// NormalizePassphrase applies NFKD to the optional passphrase before it
// is folded into the seeding salt. Case and spacing are preserved.
func NormalizePassphrase(s string) string {
	return norm.NFKD.String(s)
}

// NormalizePhrase lowercases, NFKD-normalizes, and collapses whitespace
// so that pasted phrases with odd spacing or composed unicode still
// validate. BIP39 mandates NFKD before seeding.
func NormalizePhrase(input string) string {
	input = norm.NFKD.String(strings.ToLower(input))
	return strings.Join(strings.Fields(input), " ")
}

// candidateLanguages returns every language whose wordlist contains all
// of the given words, preserving declaration order.
func candidateLanguages(words []string) []*Language {
	var candidates []*Language
	for _, lang := range languages {
		all := true
		for _, w := range words {
			if !lang.Contains(w) {
				all = false
				break
			}
		}
		if all {
			candidates = append(candidates, lang)
		}
	}
	return candidates
}

// checksumValid reports whether the phrase has a valid BIP39 checksum
// under the given language.
func checksumValid(phrase string, lang *Language) bool {
	wordListMu.Lock()
	defer wordListMu.Unlock()

	bip39.SetWordList(lang.Words)
	defer bip39.SetWordList(wordlists.English)

	return bip39.IsMnemonicValid(phrase)
}

// MaxTypoDistance is the maximum Levenshtein distance to consider a suggestion.
const MaxTypoDistance = 2

// SuggestWord finds the closest English wordlist entry to the input.
// Returns empty string if no word is close enough.
func SuggestWord(input string) string {
	minDist := MaxTypoDistance + 1
	var suggestion string

	for _, word := range wordlists.English {
		dist := levenshtein.ComputeDistance(input, word)
		if dist == 0 {
			return word
		}
		if dist < minDist {
			minDist = dist
			suggestion = word
		}
	}
	return suggestion
}

// typoSuggestions describes each word that belongs to no wordlist,
// with the closest English word when one is near.
func typoSuggestions(words []string) string {
	var b strings.Builder
	for i, word := range words {
		inAny := false
		for _, lang := range languages {
			if lang.Contains(word) {
				inAny = true
				break
			}
		}
		if inAny {
			continue
		}

		if b.Len() > 0 {
			b.WriteString("; ")
		}
		b.WriteString("word ")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(" '")
		b.WriteString(word)
		b.WriteByte('\'')
		if s := SuggestWord(word); s != "" {
			b.WriteString(" - did you mean '")
			b.WriteString(s)
			b.WriteString("'?")
		} else {
			b.WriteString(" is not in any wordlist")
		}
	}
	return b.String()
}
