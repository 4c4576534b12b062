// Package query normalizes free-text search queries into a canonical
// include/exclude token set and derives a stable fingerprint from it.
//
// Grounded on original_source/src/marketplace/search.rs (NormalisedQuery).
package query

import (
	"sort"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalized is a canonical include/exclude split of a free-text query.
// Both sets are kept sorted so Unparse is deterministic.
type Normalized struct {
	Include []string
	Exclude []string
}

var asciiFolder = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldToken lowercases a token and strips diacritics, e.g. "SKÅDIS" -> "skadis".
func foldToken(token string) string {
	folded, _, err := transform.String(asciiFolder, strings.ToLower(token))
	if err != nil {
		// transform.String only fails on encoding errors; fall back to the
		// lowercased original rather than dropping the token.
		return strings.ToLower(token)
	}
	return folded
}

// Parse splits text on whitespace, folds and lowercases each token, and
// sorts the resulting include/exclude sets, collapsing duplicates.
func Parse(text string) Normalized {
	include := make(map[string]struct{})
	exclude := make(map[string]struct{})

	for _, raw := range strings.Fields(text) {
		token := foldToken(raw)
		if token == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(token, "-"); ok {
			if rest != "" {
				exclude[rest] = struct{}{}
			}
			continue
		}
		include[token] = struct{}{}
	}

	return Normalized{
		Include: sortedKeys(include),
		Exclude: sortedKeys(exclude),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ToSearchText joins the include tokens with a single space, for use as the
// upstream marketplace's text query. Exclude terms are never sent upstream;
// they are enforced locally via Matches.
func (n Normalized) ToSearchText() string {
	return strings.Join(n.Include, " ")
}

// Unparse renders the canonical text form: positive tokens, then
// "-"-prefixed negative tokens, space-joined. Parse(Unparse(q)) == q.
func (n Normalized) Unparse() string {
	parts := make([]string, 0, len(n.Include)+len(n.Exclude))
	parts = append(parts, n.Include...)
	for _, tok := range n.Exclude {
		parts = append(parts, "-"+tok)
	}
	return strings.Join(parts, " ")
}

// Matches reports whether every include token appears in terms and no
// exclude token does, after folding each term the same way as Parse.
func (n Normalized) Matches(terms []string) bool {
	folded := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		folded[foldToken(t)] = struct{}{}
	}
	for _, want := range n.Include {
		if _, ok := folded[want]; !ok {
			return false
		}
	}
	for _, forbidden := range n.Exclude {
		if _, ok := folded[forbidden]; ok {
			return false
		}
	}
	return true
}

// Fingerprint computes a deterministic 64-bit signed hash of Unparse(n),
// suitable both as a database key and as an opaque deep-link payload field.
func Fingerprint(n Normalized) int64 {
	h := xxhash.New()
	_, _ = h.WriteString(n.Unparse())
	return int64(h.Sum64())
}
