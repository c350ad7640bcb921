package analyst

import (
	"slices"
	"testing"
)

func TestTickerResolver_Resolve(t *testing.T) {
	t.Parallel()
	r := NewTickerResolver()

	tests := []struct {
		input    string
		want     string
		wantOK   bool
		wantConf float64 // checked only when > 0
	}{
		{"Tesla", "TSLA", true, 1},
		{"  apple ", "AAPL", true, 1},
		{"Goldman Sachs", "GS", true, 1},
		{"tsla", "TSLA", true, 1},
		{"$NVDA", "NVDA", true, 1},
		{"nvidea", "NVDA", true, 0},
		{"Microsft", "MSFT", true, 0},
		{"tesler", "TSLA", true, 0},
		{"qwxzv", "", false, 0},
		{"", "", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			got, conf, ok := r.Resolve(tt.input)
			if ok != tt.wantOK || got != tt.want {
				t.Fatalf("Resolve(%q) = %q, %v; want %q, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
			if tt.wantConf > 0 && conf != tt.wantConf {
				t.Errorf("confidence = %v, want %v", conf, tt.wantConf)
			}
			if !ok && conf != 0 {
				t.Errorf("confidence = %v on miss, want 0", conf)
			}
		})
	}
}

func TestTickerResolver_FindInText(t *testing.T) {
	t.Parallel()
	r := NewTickerResolver()

	tests := []struct {
		text string
		want []string
	}{
		{"Show me Tesla's stock performance over the last 3 months", []string{"TSLA"}},
		{"Compare Apple and Microsoft stocks for the past year", []string{"AAPL", "MSFT"}},
		{"Analyze the trading volume of Amazon stock for the last month", []string{"AMZN"}},
		{"Plot TSLA vs NVDA, and tesla again", []string{"TSLA", "NVDA"}},
		{"What about $ROKU this year?", []string{"ROKU"}},
		{"I want a plot of metadata and intelligence", nil},
		{"Berkshire Hathaway against JP Morgan", []string{"BRK-B", "JPM"}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			got := r.FindInText(tt.text)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("FindInText = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTickerResolver_WithCompanies(t *testing.T) {
	t.Parallel()
	r := NewTickerResolver(WithCompanies(map[string]string{"Rheinmetall": "rhm.de"}))

	if got, _, ok := r.Resolve("rheinmetall"); !ok || got != "RHM.DE" {
		t.Errorf("Resolve = %q, %v; want RHM.DE", got, ok)
	}
	if _, _, ok := r.Resolve("Tesla"); ok {
		t.Error("custom table should replace the defaults")
	}
	if !r.IsKnownTicker("rhm.de") {
		t.Error("IsKnownTicker(rhm.de) = false")
	}
}

func TestTickerResolver_StrictThresholds(t *testing.T) {
	t.Parallel()
	r := NewTickerResolver(WithThresholds(0.99, 0.99))
	if _, _, ok := r.Resolve("nvidea"); ok {
		t.Error("near miss should not resolve with 0.99 thresholds")
	}
	if got, _, ok := r.Resolve("nvidia"); !ok || got != "NVDA" {
		t.Errorf("exact name should still resolve, got %q, %v", got, ok)
	}
}
