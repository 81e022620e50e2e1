package common

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// MaxSymbolLength is the longest canonical ticker.
const MaxSymbolLength = 5

// defaultAliases maps normalized company names to canonical tickers.
var defaultAliases = map[string]string{
	"APPLE":      "AAPL",
	"TESLA":      "TSLA",
	"MICROSOFT":  "MSFT",
	"GOOGLE":     "GOOGL",
	"ALPHABET":   "GOOGL",
	"AMAZON":     "AMZN",
	"META":       "META",
	"FACEBOOK":   "META",
	"NETFLIX":    "NFLX",
	"NVIDIA":     "NVDA",
	"JPMORGAN":   "JPM",
	"JP MORGAN":  "JPM",
	"VISA":       "V",
	"WALMART":    "WMT",
	"MASTERCARD": "MA",
}

// corporateSuffixes are stripped from the end of a normalized query.
var corporateSuffixes = []string{
	"INCORPORATED", "INC", "CORPORATION", "CORP", "LIMITED", "LTD",
	"PLC", "COMPANY", "CO", "HOLDINGS", "GROUP",
}

// SymbolResolver maps free-text queries to canonical ticker symbols.
type SymbolResolver struct {
	aliases map[string]string
}

// NewSymbolResolver creates a resolver with the built-in alias table plus extra.
// Extra keys are normalized; values that are not canonical tickers are dropped
// so that resolution stays idempotent.
func NewSymbolResolver(extra map[string]string) *SymbolResolver {
	aliases := make(map[string]string, len(defaultAliases)+len(extra))
	for k, v := range defaultAliases {
		aliases[k] = v
	}
	for k, v := range extra {
		v = strings.ToUpper(strings.TrimSpace(v))
		if !IsCanonicalSymbol(v) {
			continue
		}
		aliases[normalizeQuery(k)] = v
	}
	return &SymbolResolver{aliases: aliases}
}

type aliasFile struct {
	Aliases map[string]string `yaml:"aliases"`
}

// LoadAliasFile reads a YAML alias file of the form `aliases: {NAME: TICKER}`.
func LoadAliasFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias file %s: %w", path, err)
	}
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse alias file %s: %w", path, err)
	}
	return f.Aliases, nil
}

// Resolve maps a query to a ticker. Only input that is already an uppercase
// ticker passes through; mixed-case names such as "Tesla" go to the alias
// table. It never fails: an unknown name comes back normalized.
// Resolve(Resolve(q)) == Resolve(q).
func (r *SymbolResolver) Resolve(query string) string {
	q := strings.TrimSpace(query)
	if IsCanonicalSymbol(q) {
		return q
	}

	normalized := normalizeQuery(q)
	if ticker, ok := r.aliases[normalized]; ok {
		return ticker
	}
	if collapsed := strings.ReplaceAll(normalized, " ", ""); collapsed != normalized {
		if ticker, ok := r.aliases[collapsed]; ok {
			return ticker
		}
	}
	return normalized
}

// ResolveAll resolves queries, drops anything that is not a canonical ticker,
// removes duplicates (first occurrence wins) and caps the result at max.
// A max of zero or less means no cap.
func (r *SymbolResolver) ResolveAll(queries []string, max int) []string {
	seen := make(map[string]bool, len(queries))
	var out []string
	for _, q := range queries {
		s := r.Resolve(q)
		if !IsCanonicalSymbol(s) || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out
}

// IsCanonicalSymbol reports whether s is 1-5 uppercase ASCII letters.
func IsCanonicalSymbol(s string) bool {
	if len(s) == 0 || len(s) > MaxSymbolLength {
		return false
	}
	for _, c := range s {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// normalizeQuery uppercases, collapses whitespace, drops punctuation and strips
// trailing corporate suffixes. It is idempotent.
func normalizeQuery(q string) string {
	q = strings.ToUpper(q)
	q = strings.Map(func(c rune) rune {
		if c == '&' || unicode.IsLetter(c) || unicode.IsDigit(c) {
			return c
		}
		return ' '
	}, q)
	words := strings.Fields(q)
	for len(words) > 1 && isCorporateSuffix(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

func isCorporateSuffix(word string) bool {
	for _, s := range corporateSuffixes {
		if word == s {
			return true
		}
	}
	return false
}
