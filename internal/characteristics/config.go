// Package characteristics computes named firm-level characteristics from
// aligned monthly series and trailing-window derived series.
package characteristics

// Windows holds trailing-window lengths and minimum-periods floors. The
// floors keep early-window artifacts out of the panel: a "trailing twelve
// month" sum backed by one quarter never appears as a value.
type Windows struct {
	TTMQuarters   int `yaml:"ttm_quarters" json:"ttm_quarters"`       // trailing-sum window on quarterly reports
	AvgMonths     int `yaml:"avg_months" json:"avg_months"`           // trailing-mean window for stock averages
	BookLagMonths int `yaml:"book_lag_months" json:"book_lag_months"` // book equity lag feeding book-to-market
	GrowthMonths  int `yaml:"growth_months" json:"growth_months"`     // lookback for growth rates

	Mom121Window int `yaml:"mom_12_1_window" json:"mom_12_1_window"`
	Mom121Min    int `yaml:"mom_12_1_min" json:"mom_12_1_min"`
	Mom6Window   int `yaml:"mom_6_window" json:"mom_6_window"`
	Mom6Min      int `yaml:"mom_6_min" json:"mom_6_min"`
	Mom36Window  int `yaml:"mom_36_window" json:"mom_36_window"`
	Mom36Min     int `yaml:"mom_36_min" json:"mom_36_min"`
	MomSkip      int `yaml:"mom_skip" json:"mom_skip"` // months skipped before the momentum window

	RVarWindow  int `yaml:"rvar_window" json:"rvar_window"`
	RVarMin     int `yaml:"rvar_min" json:"rvar_min"`
	RVar12Win   int `yaml:"rvar_12m_window" json:"rvar_12m_window"`
	RVar12MinPd int `yaml:"rvar_12m_min" json:"rvar_12m_min"`
	LiqStdWin   int `yaml:"liq_std_window" json:"liq_std_window"`
	LiqStdMin   int `yaml:"liq_std_min" json:"liq_std_min"`
}

// DefaultWindows mirrors the production configuration: TTM over 4 quarters,
// 12-month balance-sheet averages, 6-month book lag, 12-1 momentum with at
// least 6 valid returns.
func DefaultWindows() Windows {
	return Windows{
		TTMQuarters:   4,
		AvgMonths:     12,
		BookLagMonths: 6,
		GrowthMonths:  12,
		Mom121Window:  11,
		Mom121Min:     6,
		Mom6Window:    5,
		Mom6Min:       3,
		Mom36Window:   35,
		Mom36Min:      24,
		MomSkip:       1,
		RVarWindow:    3,
		RVarMin:       2,
		RVar12Win:     12,
		RVar12MinPd:   6,
		LiqStdWin:     3,
		LiqStdMin:     2,
	}
}

// Fallbacks configures denominator/numerator substitution chains. Each
// chain is tried left to right; the field actually used is recorded in a
// label column so users can see which substitution backed each observation.
type Fallbacks struct {
	OperatingProfitDenominator []string `yaml:"op_prof_denominator" json:"op_prof_denominator"`
	GrossMarginDenominator     []string `yaml:"gma_denominator" json:"gma_denominator"`
	LeverageNumerator          []string `yaml:"leverage_numerator" json:"leverage_numerator"`
}

// DefaultFallbacks preserves the substitutions the original dataset used:
// shareholders' equity stands in for total assets, long-term debt for total
// debt.
func DefaultFallbacks() Fallbacks {
	return Fallbacks{
		OperatingProfitDenominator: []string{"total_assets", "shareholders_equity"},
		GrossMarginDenominator:     []string{"total_assets", "shareholders_equity"},
		LeverageNumerator:          []string{"total_debt", "long_term_debt"},
	}
}

// Config bundles calculator settings.
type Config struct {
	Windows   Windows
	Fallbacks Fallbacks

	// IndustryAdjust adds demeaned-within-sector variants (suffix _ia) for
	// the listed characteristics.
	IndustryAdjust     bool
	IndustryAdjustCols []string
}

// DefaultConfig returns the production calculator configuration.
func DefaultConfig() Config {
	return Config{
		Windows:            DefaultWindows(),
		Fallbacks:          DefaultFallbacks(),
		IndustryAdjust:     false,
		IndustryAdjustCols: []string{"size", "bm", "op_prof", "pm", "roe", "leverage", "turnover"},
	}
}
