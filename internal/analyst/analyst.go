// Package analyst turns natural-language stock-market questions into runnable
// Python analysis scripts.
//
// The [Crew] works in two LLM stages. A parser call extracts the ticker
// symbols, timeframe and action from the request; company names are mapped to
// tickers by a [TickerResolver]. A writer call then produces a yfinance +
// pandas + matplotlib script for that analysis, and [ExtractCode] strips it
// out of the model's reply.
//
// When the parser stage fails (provider error, malformed JSON, no symbols) the
// crew logs the problem and hands the raw request to the writer instead.
package analyst

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"

	"github.com/MrWong99/finanalyst/internal/observe"
	"github.com/MrWong99/finanalyst/pkg/provider/llm"
	"github.com/MrWong99/finanalyst/pkg/types"
)

var (
	// ErrEmptyQuery is returned for blank requests.
	ErrEmptyQuery = errors.New("analyst: query must not be empty")

	// ErrNoCode is returned when the writer's reply contains no code.
	ErrNoCode = errors.New("analyst: model returned no code")

	// ErrNoProvider is returned by the generator from [Unavailable].
	ErrNoProvider = errors.New("analyst: no LLM provider configured")
)

// Generator produces an analysis script for a natural-language query.
type Generator interface {
	RunFinancialAnalysis(ctx context.Context, query string) (string, error)
}

// Unavailable returns a Generator that fails every request with
// [ErrNoProvider]. It stands in when no LLM backend is configured so the
// remaining tools keep working.
func Unavailable() Generator { return unavailable{} }

type unavailable struct{}

func (unavailable) RunFinancialAnalysis(context.Context, string) (string, error) {
	return "", ErrNoProvider
}

// Option configures a [Crew].
type Option func(*Crew)

// WithTemperature sets the sampling temperature for the writer stage. The
// parser stage always runs at temperature 0.
func WithTemperature(t float64) Option {
	return func(c *Crew) { c.temperature = t }
}

// WithMaxTokens caps the writer's completion length.
func WithMaxTokens(n int) Option {
	return func(c *Crew) { c.maxTokens = n }
}

// WithRequestsPerMinute limits LLM calls to n per minute. n <= 0 disables
// limiting.
func WithRequestsPerMinute(n int) Option {
	return func(c *Crew) {
		if n <= 0 {
			c.limiter = nil
			return
		}
		// A full run costs two calls; allow both without waiting.
		c.limiter = rate.NewLimiter(rate.Limit(float64(n)/60.0), min(n, 2))
	}
}

// WithResolver replaces the default [TickerResolver].
func WithResolver(r *TickerResolver) Option {
	return func(c *Crew) { c.resolver = r }
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Crew) { c.metrics = m }
}

// WithProviderName sets the provider label used in metrics and logs.
func WithProviderName(name string) Option {
	return func(c *Crew) { c.providerName = name }
}

// Crew is the LLM-backed [Generator]. It is safe for concurrent use.
type Crew struct {
	llm          llm.Provider
	resolver     *TickerResolver
	limiter      *rate.Limiter
	metrics      *observe.Metrics
	providerName string
	temperature  float64
	maxTokens    int
}

var _ Generator = (*Crew)(nil)

// New creates a Crew that sends its completions to p.
func New(p llm.Provider, opts ...Option) (*Crew, error) {
	if p == nil {
		return nil, fmt.Errorf("analyst: llm provider must not be nil")
	}
	c := &Crew{
		llm:          p,
		providerName: "llm",
		temperature:  0.2,
		maxTokens:    4096,
	}
	for _, o := range opts {
		o(c)
	}
	if c.resolver == nil {
		c.resolver = NewTickerResolver()
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c, nil
}

// RunFinancialAnalysis implements [Generator].
func (c *Crew) RunFinancialAnalysis(ctx context.Context, query string) (code string, err error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}
	ctx, span := observe.StartSpan(ctx, "analyst.run")
	defer func() { observe.EndSpan(span, err) }()

	log := observe.Logger(ctx)

	q, perr := c.parse(ctx, query)
	if perr != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("analyst: parse query: %w", perr)
		}
		log.Warn("analyst: query parsing failed, using raw request", "err", perr)
		q = Query{Raw: query}
	} else {
		log.Debug("analyst: query parsed",
			"symbols", q.Symbols,
			"timeframe", q.Timeframe,
			"action", q.Action,
		)
	}

	code, err = c.write(ctx, q)
	if err != nil {
		return "", err
	}
	log.Info("analyst: code generated", "symbols", q.Symbols, "chars", len(code))
	return code, nil
}

// Parse runs only the parser stage. It is exported for diagnostics.
func (c *Crew) Parse(ctx context.Context, query string) (Query, error) {
	return c.parse(ctx, query)
}

func (c *Crew) parse(ctx context.Context, query string) (Query, error) {
	resp, err := c.complete(ctx, "parse", llm.CompletionRequest{
		SystemPrompt: queryParserPrompt,
		Messages:     []types.Message{{Role: "user", Content: query}},
		MaxTokens:    256,
		JSONMode:     true,
	})
	if err != nil {
		return Query{}, err
	}
	return decodeQuery(query, resp.Content, c.resolver)
}

func (c *Crew) write(ctx context.Context, q Query) (string, error) {
	resp, err := c.complete(ctx, "write", llm.CompletionRequest{
		SystemPrompt: codeWriterPrompt,
		Messages:     []types.Message{{Role: "user", Content: q.brief()}},
		Temperature:  c.temperature,
		MaxTokens:    c.maxTokens,
	})
	if err != nil {
		return "", err
	}
	code := ExtractCode(resp.Content)
	if code == "" {
		return "", ErrNoCode
	}
	return code, nil
}

// complete waits for the rate limiter, calls the provider and records
// metrics for the given stage.
func (c *Crew) complete(ctx context.Context, stage string, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("analyst: %s: rate limit: %w", stage, err)
		}
	}

	start := time.Now()
	resp, err := c.llm.Complete(ctx, req)
	elapsed := time.Since(start)

	// Attribute successes to the backend that answered after failover.
	provider := c.providerName
	if err == nil && resp != nil && resp.Provider != "" {
		provider = resp.Provider
	}
	c.metrics.LLMDuration.Record(ctx, elapsed.Seconds(),
		metric.WithAttributes(observe.Attr("provider", provider), observe.Attr("stage", stage)))

	if err != nil {
		c.metrics.RecordProviderRequest(ctx, provider, "llm", "error")
		c.metrics.RecordProviderError(ctx, provider, "llm")
		return nil, fmt.Errorf("analyst: %s: %w", stage, err)
	}
	c.metrics.RecordProviderRequest(ctx, provider, "llm", "ok")
	if resp == nil {
		return nil, fmt.Errorf("analyst: %s: empty response", stage)
	}
	if provider != c.providerName {
		observe.Logger(ctx).Info("analyst: served by fallback", "stage", stage, "provider", provider)
	}
	return resp, nil
}
