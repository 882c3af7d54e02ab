package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/michbru/PTrees/internal/domain"
	"github.com/michbru/PTrees/internal/observability"
)

// Options bounds the fetcher's batching, parallelism and retry behavior.
type Options struct {
	BatchSize      int           // entities per vendor request
	MaxRetries     int           // attempts per batch before it is marked failed
	InitialBackoff time.Duration // first retry delay, doubled per attempt
	MaxParallel    int           // concurrent batches
	RequestsPerSec float64       // vendor rate limit, 0 = unlimited
}

// DefaultOptions matches the vendor quota the pipeline was tuned against.
func DefaultOptions() Options {
	return Options{
		BatchSize:      50,
		MaxRetries:     5,
		InitialBackoff: time.Second,
		MaxParallel:    4,
		RequestsPerSec: 5,
	}
}

// BatchError records one failed entity batch. Failed batches are excluded
// from the observations but never silently dropped.
type BatchError struct {
	Entities []string
	Kind     string // "prices", "fundamentals", "industry"
	Freq     domain.Frequency
	Err      error
}

func (e BatchError) Error() string {
	return fmt.Sprintf("%s batch (%d entities, freq %s): %v", e.Kind, len(e.Entities), e.Freq, e.Err)
}

func (e BatchError) Unwrap() error { return e.Err }

// Result carries partial fetch output: successful observations plus an
// explicit record per failed batch.
type Result struct {
	Observations []domain.RawObservation
	Failed       []BatchError
}

// Fetcher pulls raw series in parallel entity batches. Batches share no
// mutable state; each produces its own partial slice, concatenated in batch
// order so output is deterministic.
type Fetcher struct {
	prices   PriceSource
	funds    FundamentalsSource
	industry IndustrySource
	opts     Options
	limiter  *rate.Limiter
	log      *logrus.Entry
}

// New creates a fetcher. industry may be nil when classification codes are
// not requested.
func New(prices PriceSource, funds FundamentalsSource, industry IndustrySource, opts Options, log *logrus.Entry) *Fetcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	limit := rate.Inf
	if opts.RequestsPerSec > 0 {
		limit = rate.Limit(opts.RequestsPerSec)
	}
	return &Fetcher{
		prices:   prices,
		funds:    funds,
		industry: industry,
		opts:     opts,
		limiter:  rate.NewLimiter(limit, 1),
		log:      log.WithField("component", "fetch"),
	}
}

// FetchPrices pulls price/volume observations at the given frequency. One
// batch failing does not abort the others.
func (f *Fetcher) FetchPrices(ctx context.Context, entities []string, start, end time.Time, freq domain.Frequency) (*Result, error) {
	return f.runBatches(ctx, entities, "prices", freq, func(ctx context.Context, batch []string) ([]domain.RawObservation, error) {
		return f.prices.GetPriceSeries(ctx, batch, start, end, freq)
	})
}

// FetchFundamentals pulls fundamental observations at both quarterly and
// annual frequency in the target currency. Schema errors degrade the field
// set per batch: full fields, then core fields, then per-field isolation.
func (f *Fetcher) FetchFundamentals(ctx context.Context, entities []string, start, end time.Time, currency string) (*Result, error) {
	out := &Result{}
	for _, freq := range []domain.Frequency{domain.FreqQuarterly, domain.FreqAnnual} {
		res, err := f.runBatches(ctx, entities, "fundamentals", freq, func(ctx context.Context, batch []string) ([]domain.RawObservation, error) {
			return f.fundamentalsWithDegradation(ctx, batch, start, end, freq, currency)
		})
		if err != nil {
			return nil, err
		}
		out.Observations = append(out.Observations, res.Observations...)
		out.Failed = append(out.Failed, res.Failed...)
	}
	return out, nil
}

// FetchIndustry pulls classification codes, or nothing when no industry
// source is configured.
func (f *Fetcher) FetchIndustry(ctx context.Context, entities []string) ([]domain.Security, []BatchError, error) {
	if f.industry == nil {
		return nil, nil, nil
	}
	var secs []domain.Security
	var failed []BatchError
	for _, batch := range chunks(entities, f.opts.BatchSize) {
		got, err := withRetry(ctx, f, func(ctx context.Context) ([]domain.Security, error) {
			return f.industry.GetIndustry(ctx, batch)
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			f.log.WithError(err).WithField("entities", len(batch)).Warn("industry batch failed")
			failed = append(failed, BatchError{Entities: batch, Kind: "industry", Err: err})
			continue
		}
		secs = append(secs, got...)
	}
	return secs, failed, nil
}

// runBatches executes one fetch function per entity chunk with bounded
// parallelism. Each slot of the results slice belongs to exactly one
// goroutine.
func (f *Fetcher) runBatches(ctx context.Context, entities []string, kind string, freq domain.Frequency, fn func(context.Context, []string) ([]domain.RawObservation, error)) (*Result, error) {
	batches := chunks(entities, f.opts.BatchSize)
	obs := make([][]domain.RawObservation, len(batches))
	errs := make([]error, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, f.opts.MaxParallel))
	for i, batch := range batches {
		g.Go(func() error {
			began := time.Now()
			got, err := withRetry(gctx, f, func(ctx context.Context) ([]domain.RawObservation, error) {
				return fn(ctx, batch)
			})
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				errs[i] = err
				observability.RecordFetchBatch(kind, "failed", time.Since(began).Seconds(), 0)
				return nil
			}
			obs[i] = got
			observability.RecordFetchBatch(kind, "ok", time.Since(began).Seconds(), len(got))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{}
	for i, batch := range batches {
		if errs[i] != nil {
			f.log.WithError(errs[i]).WithFields(logrus.Fields{
				"kind": kind, "freq": freq, "entities": len(batch),
			}).Warn("batch failed after retries, excluded from results")
			res.Failed = append(res.Failed, BatchError{Entities: batch, Kind: kind, Freq: freq, Err: errs[i]})
			continue
		}
		res.Observations = append(res.Observations, obs[i]...)
	}
	return res, nil
}

// fundamentalsWithDegradation applies the documented fallback ordering:
// full field set, core fields only, then per-field isolation where only the
// offending fields are lost.
func (f *Fetcher) fundamentalsWithDegradation(ctx context.Context, batch []string, start, end time.Time, freq domain.Frequency, currency string) ([]domain.RawObservation, error) {
	obs, err := f.funds.GetFundamentals(ctx, batch, start, end, freq, currency, domain.FundamentalFields)
	if err == nil {
		return obs, nil
	}
	if !errors.Is(err, ErrFieldUnsupported) {
		return nil, err
	}

	f.log.WithError(err).WithField("freq", freq).Warn("schema error on full field set, degrading to core fields")
	observability.RecordFieldDegradation()
	obs, coreErr := f.funds.GetFundamentals(ctx, batch, start, end, freq, currency, CoreFundamentalFields)
	if coreErr == nil {
		return obs, nil
	}
	if !errors.Is(coreErr, ErrFieldUnsupported) {
		return nil, coreErr
	}

	var collected []domain.RawObservation
	for _, field := range domain.FundamentalFields {
		got, fieldErr := f.funds.GetFundamentals(ctx, batch, start, end, freq, currency, []string{field})
		if fieldErr != nil {
			f.log.WithError(fieldErr).WithFields(logrus.Fields{"field": field, "freq": freq}).Warn("field dropped for batch")
			continue
		}
		collected = append(collected, got...)
	}
	if len(collected) == 0 {
		return nil, fmt.Errorf("all fields failed: %w", coreErr)
	}
	return collected, nil
}

// withRetry wraps one batch call with rate limiting and bounded
// exponential backoff. Schema errors are not retried; the caller degrades
// instead.
func withRetry[T any](ctx context.Context, f *Fetcher, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	delay := f.opts.InitialBackoff
	var lastErr error
	for attempt := 0; attempt < max(1, f.opts.MaxRetries); attempt++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return zero, err
		}
		got, err := fn(ctx)
		if err == nil {
			return got, nil
		}
		if errors.Is(err, ErrFieldUnsupported) {
			return zero, err
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return zero, lastErr
}

func chunks(entities []string, n int) [][]string {
	if n <= 0 {
		n = len(entities)
	}
	var out [][]string
	for i := 0; i < len(entities); i += n {
		end := min(i+n, len(entities))
		out = append(out, entities[i:end])
	}
	return out
}
