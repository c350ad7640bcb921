package analyst

import (
	"regexp"
	"slices"
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// DefaultCompanies maps lower-case company names and common aliases to their
// primary US listing.
var DefaultCompanies = map[string]string{
	"apple":              "AAPL",
	"microsoft":          "MSFT",
	"tesla":              "TSLA",
	"amazon":             "AMZN",
	"nvidia":             "NVDA",
	"alphabet":           "GOOGL",
	"google":             "GOOGL",
	"meta":               "META",
	"facebook":           "META",
	"netflix":            "NFLX",
	"amd":                "AMD",
	"advanced micro":     "AMD",
	"intel":              "INTC",
	"ibm":                "IBM",
	"oracle":             "ORCL",
	"salesforce":         "CRM",
	"adobe":              "ADBE",
	"paypal":             "PYPL",
	"uber":               "UBER",
	"airbnb":             "ABNB",
	"coca cola":          "KO",
	"coca-cola":          "KO",
	"pepsico":            "PEP",
	"pepsi":              "PEP",
	"walmart":            "WMT",
	"disney":             "DIS",
	"nike":               "NKE",
	"boeing":             "BA",
	"jpmorgan":           "JPM",
	"jp morgan":          "JPM",
	"goldman sachs":      "GS",
	"visa":               "V",
	"mastercard":         "MA",
	"berkshire hathaway": "BRK-B",
	"exxon":              "XOM",
	"exxonmobil":         "XOM",
	"chevron":            "CVX",
	"pfizer":             "PFE",
	"johnson & johnson":  "JNJ",
	"qualcomm":           "QCOM",
	"broadcom":           "AVGO",
	"spotify":            "SPOT",
	"shopify":            "SHOP",
	"palantir":           "PLTR",
	"costco":             "COST",
	"starbucks":          "SBUX",
	"mcdonalds":          "MCD",
	"mcdonald's":         "MCD",
}

// tickerPattern matches a ticker symbol as written in free text: 1-5 upper
// case letters, an optional class suffix, and an optional leading '$'.
var tickerPattern = regexp.MustCompile(`\$?\b[A-Z]{1,5}(?:[.-][A-Z])?\b`)

// ResolverOption configures a [TickerResolver].
type ResolverOption func(*TickerResolver)

// WithCompanies replaces the built-in company table. Keys are matched
// case-insensitively.
func WithCompanies(companies map[string]string) ResolverOption {
	return func(r *TickerResolver) {
		r.companies = make(map[string]string, len(companies))
		for name, ticker := range companies {
			r.companies[strings.ToLower(name)] = strings.ToUpper(ticker)
		}
	}
}

// WithThresholds sets the minimum Jaro-Winkler scores for phonetically
// matched names and for pure fuzzy matches.
func WithThresholds(phonetic, fuzzy float64) ResolverOption {
	return func(r *TickerResolver) {
		r.phoneticThreshold = phonetic
		r.fuzzyThreshold = fuzzy
	}
}

// TickerResolver maps company names (possibly misspelled) to ticker symbols.
//
// Matching runs in two stages. Double Metaphone codes of the input and of each
// known name are compared; names sharing a code are ranked by Jaro-Winkler
// similarity and accepted above the phonetic threshold. When nothing matches
// phonetically, pure Jaro-Winkler similarity above the stricter fuzzy
// threshold is used instead.
//
// A TickerResolver is read-only after construction and safe for concurrent use.
type TickerResolver struct {
	companies         map[string]string
	tickers           map[string]struct{}
	names             []string
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// NewTickerResolver builds a resolver over [DefaultCompanies] unless
// [WithCompanies] is supplied.
func NewTickerResolver(opts ...ResolverOption) *TickerResolver {
	r := &TickerResolver{
		companies:         DefaultCompanies,
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(r)
	}
	r.tickers = make(map[string]struct{}, len(r.companies))
	r.names = make([]string, 0, len(r.companies))
	for name, ticker := range r.companies {
		r.tickers[ticker] = struct{}{}
		r.names = append(r.names, name)
	}
	slices.Sort(r.names)
	return r
}

// IsKnownTicker reports whether sym is a ticker in the company table.
func (r *TickerResolver) IsKnownTicker(sym string) bool {
	_, ok := r.tickers[strings.ToUpper(strings.TrimPrefix(sym, "$"))]
	return ok
}

// Resolve maps name to a ticker. Exact names, aliases and known tickers
// resolve with confidence 1. Otherwise the best phonetic/fuzzy match is
// returned. When ok is false, ticker is empty and confidence is 0.
func (r *TickerResolver) Resolve(name string) (ticker string, confidence float64, ok bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return "", 0, false
	}
	if t, found := r.companies[lower]; found {
		return t, 1, true
	}
	if r.IsKnownTicker(lower) {
		return strings.ToUpper(strings.TrimPrefix(lower, "$")), 1, true
	}

	tokens := strings.Fields(lower)
	inputCodes := metaphoneCodes(tokens)

	var (
		bestName     string
		bestScore    float64
		bestPhonetic bool
	)
	for _, candidate := range r.names {
		candTokens := strings.Fields(candidate)
		score := similarity(tokens, candTokens, lower, candidate)
		if sharesCode(inputCodes, metaphoneCodes(candTokens)) {
			if score >= r.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				bestName, bestScore, bestPhonetic = candidate, score, true
			}
			continue
		}
		if !bestPhonetic && score >= r.fuzzyThreshold && score > bestScore {
			bestName, bestScore = candidate, score
		}
	}
	if bestName == "" {
		return "", 0, false
	}
	return r.companies[bestName], bestScore, true
}

// FindInText returns the tickers mentioned in free text, in order of first
// appearance and without duplicates. Explicit symbols ("TSLA", "$NVDA") that
// appear in the company table are kept, as are unknown '$'-prefixed symbols.
// Company names are recognised by exact (case-insensitive) match on single
// words and word pairs.
func (r *TickerResolver) FindInText(text string) []string {
	type hit struct {
		pos    int
		ticker string
	}
	var hits []hit

	for _, loc := range tickerPattern.FindAllStringIndex(text, -1) {
		sym := text[loc[0]:loc[1]]
		dollar := strings.HasPrefix(sym, "$")
		sym = strings.TrimPrefix(sym, "$")
		if dollar || (len(sym) > 1 && r.IsKnownTicker(sym)) {
			hits = append(hits, hit{loc[0], sym})
		}
	}

	lower := strings.ToLower(text)
	for name, ticker := range r.companies {
		for off := 0; ; {
			i := strings.Index(lower[off:], name)
			if i < 0 {
				break
			}
			start := off + i
			end := start + len(name)
			if wordBoundary(lower, start, end) {
				hits = append(hits, hit{start, ticker})
			}
			off = end
		}
	}

	slices.SortStableFunc(hits, func(a, b hit) int { return a.pos - b.pos })
	seen := make(map[string]bool, len(hits))
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		if !seen[h.ticker] {
			seen[h.ticker] = true
			out = append(out, h.ticker)
		}
	}
	return out
}

// wordBoundary reports whether s[start:end] is delimited by non-letters.
// A trailing possessive "'s" counts as a boundary.
func wordBoundary(s string, start, end int) bool {
	isLetter := func(b byte) bool { return b >= 'a' && b <= 'z' }
	if start > 0 && isLetter(s[start-1]) {
		return false
	}
	if end < len(s) && isLetter(s[end]) {
		return false
	}
	return true
}

// metaphoneCodes returns the union of the primary and secondary Double
// Metaphone codes of tokens, excluding empty codes.
func metaphoneCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func sharesCode(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// similarity is the best Jaro-Winkler score between the full strings, their
// space-stripped forms, and any pair of tokens.
func similarity(inTokens, candTokens []string, inFull, candFull string) float64 {
	score := matchr.JaroWinkler(inFull, candFull, false)
	if len(inTokens) > 1 || len(candTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(inTokens, ""), strings.Join(candTokens, ""), false); s > score {
			score = s
		}
	}
	for _, it := range inTokens {
		for _, ct := range candTokens {
			if s := matchr.JaroWinkler(it, ct, false); s > score {
				score = s
			}
		}
	}
	return score
}
