package services

import (
	"fmt"
	"sort"
	"time"

	"bilancio/internal/core"
)

// ResolveRows merges one-off transactions with the recurring candidates for
// the accounting period anchored at anchorMonth. The result is unfiltered and
// unordered; run it through FilterInPeriod, MarkExpired and SortRows.
func ResolveRows(singles []core.Transaction, templates []core.RecurringTemplate, anchorMonth time.Month) ([]core.MonthRow, error) {
	rows := make([]core.MonthRow, 0, len(singles)+len(templates))

	for _, tx := range singles {
		rows = append(rows, core.MonthRow{
			RowKey:      fmt.Sprintf("single-%d", tx.ID),
			Source:      core.SourceSingle,
			ID:          tx.ID,
			Kind:        tx.Kind,
			Type:        tx.Type,
			Description: tx.Description,
			Amount:      tx.Amount,
			Date:        tx.Date,
		})
	}

	for _, tpl := range templates {
		expanded, err := ExpandTemplate(tpl, anchorMonth)
		if err != nil {
			return nil, err
		}
		rows = append(rows, expanded...)
	}

	return rows, nil
}

// FilterInPeriod keeps the rows whose date lies inside the period. This is
// the step that resolves the dual-candidate expansion: of the two slots a
// template may have contributed, only the one whose date falls in the active
// period survives.
func FilterInPeriod(rows []core.MonthRow, period core.Period) []core.MonthRow {
	kept := make([]core.MonthRow, 0, len(rows))
	for _, row := range rows {
		if period.Contains(row.Date) {
			kept = append(kept, row)
		}
	}
	return kept
}

// MarkExpired returns a new row slice with Expired set for rows dated
// strictly before today. A row dated today still counts as pending.
func MarkExpired(rows []core.MonthRow, today core.Date) []core.MonthRow {
	tagged := make([]core.MonthRow, len(rows))
	for i, row := range rows {
		row.Expired = row.Date.Before(today)
		tagged[i] = row
	}
	return tagged
}

// SortRows orders rows for display: date descending, ties broken by id
// descending, so the newest entry of a day comes first.
func SortRows(rows []core.MonthRow) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.After(rows[j].Date)
		}
		return rows[i].ID > rows[j].ID
	})
}

// ComputeTotals sums one transaction class: the period total over all rows
// and the not-yet-expired remainder.
func ComputeTotals(rows []core.MonthRow, today core.Date) core.ClassTotals {
	var totals core.ClassTotals
	for _, row := range rows {
		totals.Total = totals.Total.Add(row.Amount)
		if !row.Date.Before(today) {
			totals.NotExpired = totals.NotExpired.Add(row.Amount)
		}
	}
	return totals
}

// CombineTotals assembles the overview totals from the two class totals. The
// balance figures are income minus expenses, derived here and nowhere else.
func CombineTotals(expenses, income core.ClassTotals) core.OverviewTotals {
	return core.OverviewTotals{
		ExpensesMonth:      expenses.Total,
		ExpensesNotExpired: expenses.NotExpired,
		IncomeMonth:        income.Total,
		IncomeNotExpired:   income.NotExpired,
		BalanceMonth:       income.Total.Sub(expenses.Total),
		BalanceNotExpired:  income.NotExpired.Sub(expenses.NotExpired),
	}
}

// BuildOverview runs the full resolution pipeline for one accounting period:
// resolve the period, expand and merge rows, filter to period membership, tag
// expiry, order for display and aggregate totals. Pure and idempotent; the
// caller recomputes it whenever any input changes.
func BuildOverview(userID int64, singles []core.Transaction, templates []core.RecurringTemplate,
	ref core.Date, closingDay int, today core.Date) (core.Overview, error) {

	period, err := ResolvePeriod(ref, closingDay)
	if err != nil {
		return core.Overview{}, err
	}

	rows, err := ResolveRows(singles, templates, AnchorMonth(period))
	if err != nil {
		return core.Overview{}, err
	}
	rows = MarkExpired(FilterInPeriod(rows, period), today)

	var expenses, income []core.MonthRow
	for _, row := range rows {
		switch row.Kind {
		case core.Expense:
			expenses = append(expenses, row)
		case core.Income:
			income = append(income, row)
		}
	}
	SortRows(expenses)
	SortRows(income)

	return core.Overview{
		UserID:      userID,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Expenses:    expenses,
		Income:      income,
		Totals:      CombineTotals(ComputeTotals(expenses, today), ComputeTotals(income, today)),
	}, nil
}
