package services

import "bilancio/internal/core"

// ProjectDailyBudget returns the projected daily spending allowance in euros:
// what is still expected to come in, plus the account balance, minus what is
// still due to go out, spread over the days left in the accounting period.
// The divisor is floored to 1 so a reference date on the closing day itself
// cannot divide by zero.
func ProjectDailyBudget(remainingIncome, remainingExpenses, balance core.Money, remainingDays int) float64 {
	if remainingDays < 1 {
		remainingDays = 1
	}
	available := remainingIncome.Add(balance).Sub(remainingExpenses)
	return available.Euros() / float64(remainingDays)
}

// RecomputeMoneyState derives the full money summary from the period totals.
// It must run strictly after the row set for the (referenceDate, closingDay,
// transactions) triple is finalized; feeding it a previous period's totals is
// the stale-totals bug this ordering rule exists to prevent.
func RecomputeMoneyState(balance core.Money, totals core.OverviewTotals, remainingDays int) core.MoneyState {
	return core.MoneyState{
		Balance:           balance,
		Budget:            ProjectDailyBudget(totals.IncomeNotExpired, totals.ExpensesNotExpired, balance, remainingDays),
		TotalExpenses:     totals.ExpensesMonth,
		RemainingExpenses: totals.ExpensesNotExpired,
		TotalIncome:       totals.IncomeMonth,
		RemainingIncome:   totals.IncomeNotExpired,
	}
}
