// internal/rules/normalize.go
package rules

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize prepares free text for keyword matching. Diacritics are removed
// ("crème" becomes "creme"), case is folded, and every run of punctuation or
// whitespace becomes a single space.
func Normalize(in string) string {
	if in == "" {
		return ""
	}

	// Transformers and casers carry state, so each call builds its own.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, in)
	if err != nil {
		out = in
	}
	out = cases.Fold().String(out)

	return strings.Join(strings.FieldsFunc(out, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), " ")
}

// shortKeyword is the longest keyword, in runes, that only matches whole words.
const shortKeyword = 3

// containsKeyword reports whether normalised text mentions keyword kw, which
// must also be normalised. Short keywords match whole words with an optional
// plural ending, so "egg" matches "eggs" but not "eggplant". Longer keywords
// match at the start of a word, so "hazelnut" matches "hazelnuts" and "lard"
// does not match "collard".
func containsKeyword(text, kw string) bool {
	if kw == "" || text == "" {
		return false
	}
	if len([]rune(kw)) > shortKeyword {
		return containsAtWordStart(text, kw)
	}

	for _, w := range strings.Fields(text) {
		if w == kw || w == kw+"s" || w == kw+"es" {
			return true
		}
	}

	return false
}

func containsAtWordStart(text, kw string) bool {
	for i := 0; i < len(text); {
		j := strings.Index(text[i:], kw)
		if j < 0 {
			return false
		}
		j += i
		if j == 0 || text[j-1] == ' ' {
			return true
		}
		i = j + 1
	}
	return false
}

// stripPhrases blanks out each phrase in text so the words inside it are not
// matched on their own, e.g. "cocoa butter" for a dairy scan.
func stripPhrases(text string, phrases []string) string {
	if len(phrases) == 0 {
		return text
	}
	for _, p := range phrases {
		text = strings.ReplaceAll(text, p, " ")
	}
	return strings.Join(strings.Fields(text), " ")
}
