package domain

import "time"

// MonthEnd returns the last day of t's month, normalized to midnight UTC.
// All panel dates are keyed on this canonical form so that time.Time values
// compare equal across stages.
func MonthEnd(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// MonthEnds returns the inclusive list of canonical month-ends covering
// [start, end]. The first element is the month-end of start's month.
func MonthEnds(start, end time.Time) []time.Time {
	if end.Before(start) {
		return nil
	}
	var out []time.Time
	for d := MonthEnd(start); !d.After(MonthEnd(end)); d = MonthEnd(d.AddDate(0, 0, 1)) {
		out = append(out, d)
	}
	return out
}

// AddMonths returns the canonical month-end n months after (or before, for
// negative n) the month of t.
func AddMonths(t time.Time, n int) time.Time {
	y, m, _ := t.Date()
	return MonthEnd(time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC))
}
