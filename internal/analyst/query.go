package analyst

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultTimeframe and DefaultAction fill in whatever the query leaves open.
const (
	DefaultTimeframe = "1y"
	DefaultAction    = "plot"
)

// validPeriods are the yfinance period strings the writer is told to use.
var validPeriods = map[string]bool{
	"1d": true, "5d": true, "1mo": true, "3mo": true, "6mo": true,
	"1y": true, "2y": true, "5y": true, "10y": true, "ytd": true, "max": true,
}

// Query is the structured form of a natural-language analysis request.
type Query struct {
	// Raw is the original request text.
	Raw string

	// Symbols are resolved ticker symbols, in order of mention.
	Symbols []string

	// Timeframe is a yfinance period string such as "3mo".
	Timeframe string

	// Action describes what to do with the data (plot, compare, ...).
	Action string
}

// parsedQuery is the JSON shape returned by the parser model.
type parsedQuery struct {
	Symbols   []string `json:"symbols"`
	Timeframe string   `json:"timeframe"`
	Action    string   `json:"action"`
}

// decodeQuery parses the model's JSON answer into a Query, resolving company
// names to tickers and merging symbols written explicitly in raw.
func decodeQuery(raw, content string, resolver *TickerResolver) (Query, error) {
	body := strings.TrimSpace(content)
	if block, ok := fencedBlock(body, func(string) bool { return true }); ok {
		body = block
	}
	if i, j := strings.IndexByte(body, '{'), strings.LastIndexByte(body, '}'); i >= 0 && j > i {
		body = body[i : j+1]
	}

	var pq parsedQuery
	if err := json.Unmarshal([]byte(body), &pq); err != nil {
		return Query{}, fmt.Errorf("analyst: decode parsed query: %w", err)
	}

	q := Query{
		Raw:       raw,
		Timeframe: normalizeTimeframe(pq.Timeframe),
		Action:    strings.ToLower(strings.TrimSpace(pq.Action)),
	}
	if q.Action == "" {
		q.Action = DefaultAction
	}

	seen := map[string]bool{}
	add := func(sym string) {
		if sym != "" && !seen[sym] {
			seen[sym] = true
			q.Symbols = append(q.Symbols, sym)
		}
	}
	for _, s := range pq.Symbols {
		add(resolveSymbol(s, resolver))
	}
	for _, s := range resolver.FindInText(raw) {
		add(s)
	}
	if len(q.Symbols) == 0 {
		return q, fmt.Errorf("analyst: no ticker symbols found in query")
	}
	return q, nil
}

// resolveSymbol keeps ticker-shaped input as written and maps anything else
// through the resolver. Unresolvable names are dropped.
func resolveSymbol(s string, resolver *TickerResolver) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	if s == "" {
		return ""
	}
	if tickerPattern.FindString(s) == s {
		return s
	}
	if t, _, ok := resolver.Resolve(s); ok {
		return t
	}
	return ""
}

// normalizeTimeframe maps common spellings onto yfinance periods.
func normalizeTimeframe(tf string) string {
	tf = strings.ToLower(strings.TrimSpace(tf))
	if validPeriods[tf] {
		return tf
	}
	switch tf {
	case "1m", "1 month", "month", "last month":
		return "1mo"
	case "3m", "3 months", "quarter":
		return "3mo"
	case "6m", "6 months":
		return "6mo"
	case "1 year", "year", "12mo", "past year", "last year":
		return "1y"
	case "2 years":
		return "2y"
	case "5 years":
		return "5y"
	case "week", "1w", "5 days":
		return "5d"
	case "day", "today":
		return "1d"
	}
	return DefaultTimeframe
}

// brief renders q as the user message handed to the code writer.
func (q Query) brief() string {
	var b strings.Builder
	if len(q.Symbols) > 0 {
		fmt.Fprintf(&b, "Symbols: %s\n", strings.Join(q.Symbols, ", "))
	}
	if q.Timeframe != "" {
		fmt.Fprintf(&b, "Timeframe (yfinance period): %s\n", q.Timeframe)
	}
	if q.Action != "" {
		fmt.Fprintf(&b, "Action: %s\n", q.Action)
	}
	fmt.Fprintf(&b, "Original request: %s\n", q.Raw)
	return b.String()
}
