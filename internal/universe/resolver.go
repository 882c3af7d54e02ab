// Package universe resolves time-varying index membership over a date
// range, including delisted constituents, so the panel carries no
// survivorship bias.
package universe

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/michbru/PTrees/internal/domain"
	"github.com/michbru/PTrees/internal/observability"
)

// MembershipSource returns the index constituents as of a historical
// month-end snapshot.
type MembershipSource interface {
	GetMembership(ctx context.Context, date time.Time) ([]string, error)
}

// MonthError records a failed month-end lookup.
type MonthError struct {
	Date time.Time
	Err  error
}

func (e MonthError) Error() string {
	return fmt.Sprintf("membership lookup %s: %v", e.Date.Format("2006-01-02"), e.Err)
}

func (e MonthError) Unwrap() error { return e.Err }

// Result is the resolved membership set plus any per-month failures. A
// failed month contributes zero membership rather than aborting the range.
type Result struct {
	Members []domain.UniverseMembership
	Errors  []MonthError
}

// Resolver queries one membership snapshot per canonical month-end.
type Resolver struct {
	src MembershipSource
	log *logrus.Entry
}

// NewResolver creates a resolver.
func NewResolver(src MembershipSource, log *logrus.Entry) *Resolver {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Resolver{src: src, log: log.WithField("component", "universe")}
}

// Resolve returns the (month-end, entity) membership pairs covering every
// entity that was a constituent at any month-end in [start, end]. Lookup
// failures are recorded per month and surfaced in the result; only context
// cancellation aborts the range.
func (r *Resolver) Resolve(ctx context.Context, start, end time.Time) (*Result, error) {
	res := &Result{}
	seen := make(map[domain.UniverseMembership]bool)

	for _, d := range domain.MonthEnds(start, end) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entities, err := r.src.GetMembership(ctx, d)
		if err != nil {
			r.log.WithError(err).WithField("date", d.Format("2006-01-02")).Warn("membership lookup failed, month recorded as unknown")
			observability.RecordMembershipError()
			res.Errors = append(res.Errors, MonthError{Date: d, Err: err})
			continue
		}
		for _, e := range entities {
			if e == "" {
				continue
			}
			m := domain.UniverseMembership{Date: d, Entity: e}
			if seen[m] {
				continue
			}
			seen[m] = true
			res.Members = append(res.Members, m)
		}
	}
	return res, nil
}
