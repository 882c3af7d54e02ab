// Package stub provides fixed in-memory data sources for tests and the
// fixture pipeline.
package stub

import (
	"context"
	"time"

	"github.com/michbru/PTrees/internal/domain"
)

// PriceSource returns fixed in-memory price observations.
// Implements fetch.PriceSource.
type PriceSource struct {
	obs []domain.RawObservation
}

// NewPriceSource creates a new stub price source.
func NewPriceSource(obs []domain.RawObservation) *PriceSource {
	return &PriceSource{obs: obs}
}

// GetPriceSeries returns observations matching the entities, range and
// frequency.
func (s *PriceSource) GetPriceSeries(_ context.Context, entities []string, start, end time.Time, freq domain.Frequency) ([]domain.RawObservation, error) {
	want := entitySet(entities)
	var result []domain.RawObservation
	for _, o := range s.obs {
		if want[o.Entity] && o.Freq == freq && inRange(o.Date, start, end) {
			result = append(result, o)
		}
	}
	return result, nil
}

// FundamentalsSource returns fixed in-memory fundamental observations.
// Implements fetch.FundamentalsSource.
type FundamentalsSource struct {
	obs []domain.RawObservation
}

// NewFundamentalsSource creates a new stub fundamentals source.
func NewFundamentalsSource(obs []domain.RawObservation) *FundamentalsSource {
	return &FundamentalsSource{obs: obs}
}

// GetFundamentals returns observations matching the entities, range,
// frequency and field set.
func (s *FundamentalsSource) GetFundamentals(_ context.Context, entities []string, start, end time.Time, freq domain.Frequency, currency string, fields []string) ([]domain.RawObservation, error) {
	want := entitySet(entities)
	wantField := make(map[string]bool, len(fields))
	for _, f := range fields {
		wantField[f] = true
	}

	var result []domain.RawObservation
	for _, o := range s.obs {
		if !want[o.Entity] || o.Freq != freq || !inRange(o.Date, start, end) {
			continue
		}
		if len(wantField) > 0 && !wantField[o.Field] {
			continue
		}
		if currency != "" && o.Currency != "" && o.Currency != currency {
			continue
		}
		result = append(result, o)
	}
	return result, nil
}

// IndustrySource returns fixed in-memory classification codes.
// Implements fetch.IndustrySource.
type IndustrySource struct {
	secs map[string]domain.Security
}

// NewIndustrySource creates a new stub industry source.
func NewIndustrySource(secs []domain.Security) *IndustrySource {
	m := make(map[string]domain.Security, len(secs))
	for _, s := range secs {
		m[s.Entity] = s
	}
	return &IndustrySource{secs: m}
}

// GetIndustry returns the securities known for the requested entities.
func (s *IndustrySource) GetIndustry(_ context.Context, entities []string) ([]domain.Security, error) {
	var result []domain.Security
	for _, e := range entities {
		if sec, ok := s.secs[e]; ok {
			result = append(result, sec)
		}
	}
	return result, nil
}

// MembershipSource returns fixed index membership snapshots.
// Implements universe.MembershipSource.
type MembershipSource struct {
	members []domain.UniverseMembership
}

// NewMembershipSource creates a new stub membership source.
func NewMembershipSource(members []domain.UniverseMembership) *MembershipSource {
	return &MembershipSource{members: members}
}

// GetMembership returns the constituents at the given month-end.
func (s *MembershipSource) GetMembership(_ context.Context, date time.Time) ([]string, error) {
	var result []string
	for _, m := range s.members {
		if m.Date.Equal(date) {
			result = append(result, m.Entity)
		}
	}
	return result, nil
}

func entitySet(entities []string) map[string]bool {
	m := make(map[string]bool, len(entities))
	for _, e := range entities {
		m[e] = true
	}
	return m
}

func inRange(d, start, end time.Time) bool {
	return !d.Before(start) && !d.After(end)
}
