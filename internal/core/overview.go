package core

// Row sources. A row either mirrors a one-off transaction or was expanded
// from a recurring template's month slot.
const (
	SourceSingle    = "single"
	SourceRecurring = "recurring"
)

// MonthRow is one materialized transaction occurrence within an accounting
// period, ready for rendering. RowKey is unique within a resolved row set and
// encodes the source, the source id and (for recurring rows) the calendar
// month slot the row was drawn from.
type MonthRow struct {
	RowKey      string
	Source      string
	ID          int64
	Kind        Kind
	Type        string
	Description string
	Amount      Money
	Date        Date
	Expired     bool
}

// ClassTotals aggregates one transaction class over a resolved row set.
type ClassTotals struct {
	Total      Money
	NotExpired Money
}

// OverviewTotals combines both classes for one accounting period. The Balance*
// fields are income minus expenses, a derived convenience rather than
// independently tracked state.
type OverviewTotals struct {
	ExpensesMonth      Money
	ExpensesNotExpired Money
	IncomeMonth        Money
	IncomeNotExpired   Money
	BalanceMonth       Money
	BalanceNotExpired  Money
}

// Overview is the resolved view of one accounting period: its bounds, the
// ordered row sets per class and the aggregated totals. Derived on demand,
// never persisted.
type Overview struct {
	UserID      int64
	PeriodStart Date
	PeriodEnd   Date
	Expenses    []MonthRow
	Income      []MonthRow
	Totals      OverviewTotals
}

// MoneyState is the derived money summary for the active accounting period.
// Every field except Balance is recomputed from the row set; Balance is the
// one figure the user edits directly. Budget is the projected daily spending
// allowance in euros.
type MoneyState struct {
	Balance           Money
	Budget            float64
	TotalExpenses     Money
	RemainingExpenses Money
	TotalIncome       Money
	RemainingIncome   Money
}
