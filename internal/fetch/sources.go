// Package fetch pulls raw price/volume and fundamental observations from
// external data sources in parallel entity batches, tolerating partial
// failure.
package fetch

import (
	"context"
	"errors"
	"time"

	"github.com/michbru/PTrees/internal/domain"
)

// ErrFieldUnsupported is returned (wrapped) by a fundamentals source when a
// requested field is absent from the vendor response schema. The fetcher
// reacts by degrading the field set rather than failing the batch.
var ErrFieldUnsupported = errors.New("field not supported by source")

// PriceSource returns price/volume observations for an entity batch.
type PriceSource interface {
	GetPriceSeries(ctx context.Context, entities []string, start, end time.Time, freq domain.Frequency) ([]domain.RawObservation, error)
}

// FundamentalsSource returns fundamental line items for an entity batch at
// one reporting frequency, converted to the target currency.
type FundamentalsSource interface {
	GetFundamentals(ctx context.Context, entities []string, start, end time.Time, freq domain.Frequency, currency string, fields []string) ([]domain.RawObservation, error)
}

// IndustrySource returns industry classification codes per entity.
type IndustrySource interface {
	GetIndustry(ctx context.Context, entities []string) ([]domain.Security, error)
}

// CoreFundamentalFields is the reduced field set used when the full request
// hits a schema error: enough to compute size, book-to-market, and the
// profitability ratios.
var CoreFundamentalFields = []string{
	domain.FieldTotalAssets,
	domain.FieldShareholdersEquity,
	domain.FieldSharesOutstanding,
	domain.FieldNetIncome,
	domain.FieldRevenue,
}
