package domain

import "time"

// Frequency tags the reporting frequency of a raw observation.
type Frequency string

const (
	FreqMonthly   Frequency = "M"
	FreqDaily     Frequency = "D"
	FreqQuarterly Frequency = "Q"
	FreqAnnual    Frequency = "A"
)

// Price/volume stream fields.
const (
	FieldClose    = "close"
	FieldAdjClose = "adj_close"
	FieldVolume   = "volume"
)

// Fundamental statement line items, canonical names.
const (
	FieldTotalAssets        = "total_assets"
	FieldShareholdersEquity = "shareholders_equity"
	FieldSharesOutstanding  = "shares_outstanding"
	FieldNetIncome          = "net_income"
	FieldOperatingIncome    = "operating_income"
	FieldRevenue            = "revenue"
	FieldGrossProfit        = "gross_profit"
	FieldCashFromOperations = "cash_from_operations"
	FieldTotalDebt          = "total_debt"
	FieldLongTermDebt       = "long_term_debt"
	FieldCapEx              = "capital_expenditures"
)

// FundamentalFields lists every fundamental line item the fetcher requests.
var FundamentalFields = []string{
	FieldTotalAssets,
	FieldShareholdersEquity,
	FieldSharesOutstanding,
	FieldNetIncome,
	FieldOperatingIncome,
	FieldRevenue,
	FieldGrossProfit,
	FieldCashFromOperations,
	FieldTotalDebt,
	FieldLongTermDebt,
	FieldCapEx,
}

// RawObservation is one (entity, date, field, value) record from either the
// price/volume stream or the fundamentals stream. For fundamentals Date is
// the report effective date; Freq and Currency carry the reporting context.
// At most one value may exist per (entity, date, field, freq).
type RawObservation struct {
	Entity   string
	Date     time.Time
	Field    string
	Value    float64
	Freq     Frequency
	Currency string // reporting currency for fundamentals, e.g. "SEK"
}
