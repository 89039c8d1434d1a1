// Package relation resolves which articles a legal article amends,
// replaces, repeals, suspends or guides.
package relation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/errgroup"

	"github.com/jackzampolin/vbpl/internal/legal"
	"github.com/jackzampolin/vbpl/internal/metrics"
	"github.com/jackzampolin/vbpl/internal/providers"
)

// Config bounds the resolver's work.
type Config struct {
	Concurrency int           // Articles classified in parallel (default: 5)
	MaxAttempts int           // Classification attempts per article (default: 3)
	CallTimeout time.Duration // Per-call timeout (default: 60s)
	RetryDelay  time.Duration // Base backoff between attempts (default: 500ms)
}

// DefaultConfig returns the default resolver configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency: 5,
		MaxAttempts: 3,
		CallTimeout: 60 * time.Second,
		RetryDelay:  500 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = d.CallTimeout
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	return c
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics records resolver outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) { r.metrics = m }
}

// WithRateLimiter shares a token bucket across workers.
func WithRateLimiter(l *providers.RateLimiter) Option {
	return func(r *Resolver) { r.limiter = l }
}

// Resolver classifies articles and enforces the relation post-conditions.
type Resolver struct {
	classifier Classifier
	cfg        Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
	limiter    *providers.RateLimiter
}

// New creates a Resolver.
func New(classifier Classifier, cfg Config, opts ...Option) *Resolver {
	r := &Resolver{
		classifier: classifier,
		cfg:        cfg.withDefaults(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the effective configuration.
func (r *Resolver) Config() Config { return r.cfg }

// Resolve classifies one article. It never fails: when every attempt fails
// the result is FAILED_EMPTY with empty relation lists and Err set.
func (r *Resolver) Resolve(ctx context.Context, info legal.DocumentInfo, article legal.Article) Result {
	res := newResult(article)
	log := r.logger.With("document_id", info.DocumentID, "article_id", article.ID)

	r.metrics.InFlight(1)
	defer r.metrics.InFlight(-1)

	var (
		cls          *Classification
		sawMalformed bool
	)
	req := Request{Info: info, Article: article}

	err := retry.Do(
		func() error {
			if res.Attempts > 0 {
				res.transition(Retry)
			}
			res.transition(InFlight)
			res.Attempts++

			if err := r.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}

			// The call outlives cancellation of ctx, bounded by CallTimeout.
			callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.CallTimeout)
			defer cancel()

			c, err := r.classifier.Classify(callCtx, req)
			if err != nil {
				if errors.Is(err, ErrMalformed) {
					sawMalformed = true
				}
				return err
			}
			cls = c
			return nil
		},
		retry.Attempts(uint(r.cfg.MaxAttempts)),
		retry.Delay(r.cfg.RetryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			log.Debug("classification attempt failed", "attempt", n+1, "error", err)
		}),
	)

	if err != nil {
		res.transition(FailedEmpty)
		res.Err = err
		res.transportFailure = !sawMalformed && ctx.Err() == nil
		r.metrics.ObserveResolution(FailedEmpty.String(), res.Attempts)
		log.Warn("classification failed, recording empty relations",
			"attempt", res.Attempts, "error", err)
		return res
	}

	res.Relations, res.External, res.Corrections = reconcile(article, cls, log, r.metrics)
	res.transition(Resolved)
	r.metrics.ObserveResolution(Resolved.String(), res.Attempts)
	for _, e := range res.Edges() {
		r.metrics.Edge(e.Type.EdgeLabel(), e.Scope.String())
	}
	return res
}

// ResolveAll classifies a document's articles with at most Concurrency in
// flight. Results are returned in input order.
//
// Once ctx is done no more articles are dispatched; those stay PENDING and
// ctx.Err() is returned with the partial results. When every article fails
// on transport errors the error wraps ErrClassifierUnavailable.
func (r *Resolver) ResolveAll(ctx context.Context, info legal.DocumentInfo, articles []legal.Article) ([]Result, error) {
	results := make([]Result, len(articles))
	for i, a := range articles {
		results[i] = newResult(a)
	}

	g := new(errgroup.Group)
	g.SetLimit(r.cfg.Concurrency)
	for i := range articles {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = r.Resolve(ctx, info, articles[i])
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}

	if len(results) > 0 {
		var lastErr error
		for i := range results {
			if results[i].State != FailedEmpty || !results[i].transportFailure {
				return results, nil
			}
			lastErr = results[i].Err
		}
		return results, fmt.Errorf("%w: all %d articles failed: %v", ErrClassifierUnavailable, len(results), lastErr)
	}
	return results, nil
}

// Summary counts results by state.
func Summary(results []Result) map[State]int {
	out := make(map[State]int)
	for i := range results {
		out[results[i].State]++
	}
	return out
}
