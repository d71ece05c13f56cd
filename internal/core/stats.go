package core

import (
	"encoding/json"
	"sort"
	"time"
)

// PeriodAverage is an extrapolated period average. While the recorded
// history is shorter than the period's minimum span the value is not
// reported and Tallying is set instead; the JSON form is then the
// string "tallying" rather than a number, which the chart layer decodes
// distinctly.
type PeriodAverage struct {
	Amount   float64
	Tallying bool
}

func (p PeriodAverage) MarshalJSON() ([]byte, error) {
	if p.Tallying {
		return json.Marshal("tallying")
	}
	return json.Marshal(p.Amount)
}

// Stats is the full dashboard summary for one aggregation pass.
type Stats struct {
	TotalExpenses          float64       `json:"total_expenses"`
	NumCategories          int           `json:"num_categories"`
	LongestStreak          int           `json:"longest_streak"`
	AvgDailyExpense        float64       `json:"avg_daily_expense"`
	TotalTodayExpenses     float64       `json:"total_today_expenses"`
	TotalThisWeekExpenses  float64       `json:"total_this_week_expenses"`
	TotalThisMonthExpenses float64       `json:"total_this_month_expenses"`
	TotalThisYearExpenses  float64       `json:"total_this_year_expenses"`
	AvgExpensePerDay       float64       `json:"avg_expense_per_day"`
	AvgExpensePerWeek      PeriodAverage `json:"avg_expense_per_week"`
	AvgExpensePerMonth     PeriodAverage `json:"avg_expense_per_month"`
	AvgExpensePerYear      PeriodAverage `json:"avg_expense_per_year"`
	CategoryLabels         []string      `json:"category_labels"`
	CategoryValues         []float64     `json:"category_values"`
	PaymentLabels          []string      `json:"payment_labels"`
	PaymentValues          []float64     `json:"payment_values"`
	Expenses               []Expense     `json:"-"`
}

// Minimum recorded spans before an extrapolated average is reported,
// and the per-day scale factor for each period.
const (
	minWeekSpanDays  = 7
	minMonthSpanDays = 30
	minYearSpanDays  = 365

	daysPerWeek  = 7.0
	daysPerMonth = 30.4375
	daysPerYear  = 365.25
)

// defaultStats is what an empty (or fully filtered-out) record set
// produces: all zeros, empty slices, averages still tallying.
func defaultStats() Stats {
	return Stats{
		AvgExpensePerWeek:  PeriodAverage{Tallying: true},
		AvgExpensePerMonth: PeriodAverage{Tallying: true},
		AvgExpensePerYear:  PeriodAverage{Tallying: true},
		CategoryLabels:     []string{},
		CategoryValues:     []float64{},
		PaymentLabels:      []string{},
		PaymentValues:      []float64{},
		Expenses:           []Expense{},
	}
}

// dateOnly strips the time of day, keeping the calendar date in UTC so
// day arithmetic is exact.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// Compute derives the dashboard statistics from the full record set.
// It is a pure function of expenses and now: it never fails, records
// without a usable date are dropped, and an empty result degrades to
// the zero-valued default. The input slice is passed through unmodified
// (expected newest-first from the store).
func Compute(expenses []Expense, now time.Time) Stats {
	dated := make([]Expense, 0, len(expenses))
	for _, e := range expenses {
		if e.Date.IsZero() {
			continue
		}
		dated = append(dated, e)
	}
	if len(dated) == 0 {
		return defaultStats()
	}

	stats := defaultStats()
	stats.Expenses = expenses

	perDay := make(map[time.Time]float64)
	catTotals := make(map[string]float64)
	payTotals := make(map[string]float64)

	for _, e := range dated {
		day := dateOnly(e.Date)
		perDay[day] += e.Amount
		stats.TotalExpenses += e.Amount

		if _, seen := catTotals[e.Category]; !seen {
			stats.CategoryLabels = append(stats.CategoryLabels, e.Category)
		}
		catTotals[e.Category] += e.Amount

		if _, seen := payTotals[e.PaymentMethod]; !seen {
			stats.PaymentLabels = append(stats.PaymentLabels, e.PaymentMethod)
		}
		payTotals[e.PaymentMethod] += e.Amount
	}

	stats.NumCategories = len(catTotals)
	for _, label := range stats.CategoryLabels {
		stats.CategoryValues = append(stats.CategoryValues, catTotals[label])
	}
	for _, label := range stats.PaymentLabels {
		stats.PaymentValues = append(stats.PaymentValues, payTotals[label])
	}

	days := make([]time.Time, 0, len(perDay))
	var dayTotalSum float64
	for day, total := range perDay {
		days = append(days, day)
		dayTotalSum += total
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	stats.AvgDailyExpense = dayTotalSum / float64(len(days))
	stats.LongestStreak = longestStreak(days)

	today := dateOnly(now)
	weekStart := today.AddDate(0, 0, -mondayOffset(today))
	weekEnd := weekStart.AddDate(0, 0, 6)
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, -1)
	yearStart := time.Date(today.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
	yearEnd := time.Date(today.Year(), time.December, 31, 0, 0, 0, 0, time.UTC)

	for _, e := range dated {
		day := dateOnly(e.Date)
		if day.Equal(today) {
			stats.TotalTodayExpenses += e.Amount
		}
		if inWindow(day, weekStart, weekEnd) {
			stats.TotalThisWeekExpenses += e.Amount
		}
		if inWindow(day, monthStart, monthEnd) {
			stats.TotalThisMonthExpenses += e.Amount
		}
		if inWindow(day, yearStart, yearEnd) {
			stats.TotalThisYearExpenses += e.Amount
		}
	}

	// Extrapolated averages over the whole recorded history, gated so a
	// few days of data never project a monthly or yearly figure.
	span := daysBetween(days[0], days[len(days)-1]) + 1
	if span > 0 {
		stats.AvgExpensePerDay = stats.TotalExpenses / float64(span)
		if span >= minWeekSpanDays {
			stats.AvgExpensePerWeek = PeriodAverage{Amount: stats.AvgExpensePerDay * daysPerWeek}
		}
		if span >= minMonthSpanDays {
			stats.AvgExpensePerMonth = PeriodAverage{Amount: stats.AvgExpensePerDay * daysPerMonth}
		}
		if span >= minYearSpanDays {
			stats.AvgExpensePerYear = PeriodAverage{Amount: stats.AvgExpensePerDay * daysPerYear}
		}
	}

	return stats
}

// longestStreak walks the sorted distinct days and counts the longest
// run of consecutive calendar days. Any day at all means a streak of at
// least 1.
func longestStreak(sortedDays []time.Time) int {
	if len(sortedDays) == 0 {
		return 0
	}
	longest, current := 1, 1
	for i := 1; i < len(sortedDays); i++ {
		if daysBetween(sortedDays[i-1], sortedDays[i]) == 1 {
			current++
		} else {
			current = 1
		}
		if current > longest {
			longest = current
		}
	}
	return longest
}

// mondayOffset returns how many days back the Monday of day's week is.
func mondayOffset(day time.Time) int {
	return (int(day.Weekday()) + 6) % 7
}

func inWindow(day, start, end time.Time) bool {
	return !day.Before(start) && !day.After(end)
}
