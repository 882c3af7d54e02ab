package universe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/michbru/PTrees/internal/domain"
)

type fakeMembership struct {
	byDate  map[time.Time][]string
	failOn  map[time.Time]bool
	lookups int
}

func (s *fakeMembership) GetMembership(_ context.Context, date time.Time) ([]string, error) {
	s.lookups++
	if s.failOn[date] {
		return nil, errors.New("vendor timeout")
	}
	return s.byDate[date], nil
}

func monthEnd(y int, m time.Month) time.Time {
	return domain.MonthEnd(time.Date(y, m, 1, 0, 0, 0, 0, time.UTC))
}

func TestResolve_CollectsPerMonth(t *testing.T) {
	jan, feb := monthEnd(2020, 1), monthEnd(2020, 2)
	src := &fakeMembership{byDate: map[time.Time][]string{
		jan: {"A", "B"},
		feb: {"B", "C"},
	}}

	res, err := NewResolver(src, nil).Resolve(context.Background(), jan, feb)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(res.Members) != 4 {
		t.Fatalf("Expected 4 membership pairs, got %d", len(res.Members))
	}
	if src.lookups != 2 {
		t.Errorf("Expected one lookup per month, got %d", src.lookups)
	}

	// A appears only in January, C only in February.
	want := map[domain.UniverseMembership]bool{
		{Date: jan, Entity: "A"}: true,
		{Date: jan, Entity: "B"}: true,
		{Date: feb, Entity: "B"}: true,
		{Date: feb, Entity: "C"}: true,
	}
	for _, m := range res.Members {
		if !want[m] {
			t.Errorf("Unexpected membership pair %+v", m)
		}
	}
}

func TestResolve_FailedMonthRecordedNotFatal(t *testing.T) {
	jan, feb, mar := monthEnd(2020, 1), monthEnd(2020, 2), monthEnd(2020, 3)
	src := &fakeMembership{
		byDate: map[time.Time][]string{
			jan: {"A"},
			mar: {"A"},
		},
		failOn: map[time.Time]bool{feb: true},
	}

	res, err := NewResolver(src, nil).Resolve(context.Background(), jan, mar)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if len(res.Errors) != 1 {
		t.Fatalf("Expected 1 month error, got %d", len(res.Errors))
	}
	if !res.Errors[0].Date.Equal(feb) {
		t.Errorf("Expected failure recorded for February, got %v", res.Errors[0].Date)
	}
	if len(res.Members) != 2 {
		t.Errorf("Expected the healthy months to survive, got %d pairs", len(res.Members))
	}
}

func TestResolve_EmptyEntitySkipped(t *testing.T) {
	jan := monthEnd(2020, 1)
	src := &fakeMembership{byDate: map[time.Time][]string{
		jan: {"A", "", "A"},
	}}

	res, err := NewResolver(src, nil).Resolve(context.Background(), jan, jan)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(res.Members) != 1 {
		t.Errorf("Expected blank and duplicate entities dropped, got %d pairs", len(res.Members))
	}
}

func TestResolve_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeMembership{}
	if _, err := NewResolver(src, nil).Resolve(ctx, monthEnd(2020, 1), monthEnd(2020, 12)); err == nil {
		t.Error("Expected error from cancelled context")
	}
}

func TestMonthError_Unwrap(t *testing.T) {
	inner := errors.New("boom")
	e := MonthError{Date: monthEnd(2020, 1), Err: inner}
	if !errors.Is(e, inner) {
		t.Error("Expected MonthError to unwrap its cause")
	}
}
