package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bilancio/internal/core"
	"bilancio/internal/services"
)

type rowPayload struct {
	RowKey      string `json:"row_key"`
	Source      string `json:"source"`
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
	Date        string `json:"date"`
	Expired     bool   `json:"expired"`
}

type totalsPayload struct {
	ExpensesMonthCents      int64 `json:"expenses_month_cents"`
	ExpensesNotExpiredCents int64 `json:"expenses_not_expired_cents"`
	IncomeMonthCents        int64 `json:"income_month_cents"`
	IncomeNotExpiredCents   int64 `json:"income_not_expired_cents"`
	BalanceMonthCents       int64 `json:"balance_month_cents"`
	BalanceNotExpiredCents  int64 `json:"balance_not_expired_cents"`
}

type overviewPayload struct {
	UserID      int64         `json:"user_id"`
	PeriodStart string        `json:"period_start"`
	PeriodEnd   string        `json:"period_end"`
	Expenses    []rowPayload  `json:"expenses"`
	Income      []rowPayload  `json:"income"`
	Totals      totalsPayload `json:"totals"`
}

func toRowPayloads(rows []core.MonthRow) []rowPayload {
	out := make([]rowPayload, 0, len(rows))
	for _, row := range rows {
		out = append(out, rowPayload{
			RowKey:      row.RowKey,
			Source:      row.Source,
			ID:          row.ID,
			Kind:        string(row.Kind),
			Type:        row.Type,
			Description: row.Description,
			AmountCents: row.Amount.Cents,
			Date:        row.Date.ISO(),
			Expired:     row.Expired,
		})
	}
	return out
}

func toOverviewPayload(overview core.Overview) overviewPayload {
	return overviewPayload{
		UserID:      overview.UserID,
		PeriodStart: overview.PeriodStart.ISO(),
		PeriodEnd:   overview.PeriodEnd.ISO(),
		Expenses:    toRowPayloads(overview.Expenses),
		Income:      toRowPayloads(overview.Income),
		Totals: totalsPayload{
			ExpensesMonthCents:      overview.Totals.ExpensesMonth.Cents,
			ExpensesNotExpiredCents: overview.Totals.ExpensesNotExpired.Cents,
			IncomeMonthCents:        overview.Totals.IncomeMonth.Cents,
			IncomeNotExpiredCents:   overview.Totals.IncomeNotExpired.Cents,
			BalanceMonthCents:       overview.Totals.BalanceMonth.Cents,
			BalanceNotExpiredCents:  overview.Totals.BalanceNotExpired.Cents,
		},
	}
}

func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: message})
}

// userIDParam extracts the required user_id query parameter.
func userIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get("user_id")), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// refParam extracts the optional ref date parameter, defaulting to today.
func refParam(r *http.Request) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get("ref"))
	if v == "" {
		return core.Today(), nil
	}
	return core.ParseISO(v)
}

// closingDayParam resolves the closing day: explicit query parameter if
// present, otherwise the user's stored settings.
func (s *Server) closingDayParam(r *http.Request, userID int64) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get("closing_day"))
	if v == "" {
		settings, err := s.overviews.Settings(r.Context(), userID)
		if err != nil {
			return 0, fmt.Errorf("get settings: %w", err)
		}
		return settings.ClosingDay, nil
	}
	day, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: closing_day %q", core.ErrInvalidClosingDay, v)
	}
	return day, nil
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		badRequest(w, "user_id is required")
		return
	}
	ref, err := refParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	closingDay, err := s.closingDayParam(r, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	overview, err := s.overviews.Overview(r.Context(), userID, ref, closingDay)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOverviewPayload(overview))
}

type periodPayload struct {
	Ref         string `json:"ref"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	DaysLeft    int    `json:"days_left"`
}

// handlePeriod resolves the accounting period containing ref, optionally
// shifted by delta whole periods for next/previous navigation.
func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		badRequest(w, "user_id is required")
		return
	}
	ref, err := refParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	closingDay, err := s.closingDayParam(r, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	delta := 0
	if v := strings.TrimSpace(r.URL.Query().Get("delta")); v != "" {
		delta, err = strconv.Atoi(v)
		if err != nil {
			badRequest(w, "delta must be an integer")
			return
		}
	}

	if delta != 0 {
		ref, err = services.ShiftPeriod(ref, closingDay, delta)
		if err != nil {
			writeError(w, r, err)
			return
		}
	}
	period, err := services.ResolvePeriod(ref, closingDay)
	if err != nil {
		writeError(w, r, err)
		return
	}
	daysLeft, err := services.DaysRemaining(ref, closingDay)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, periodPayload{
		Ref:         ref.ISO(),
		PeriodStart: period.Start.ISO(),
		PeriodEnd:   period.End.ISO(),
		DaysLeft:    daysLeft,
	})
}

type moneyStatePayload struct {
	BalanceCents           int64   `json:"balance_cents"`
	Budget                 float64 `json:"budget"`
	TotalExpensesCents     int64   `json:"total_expenses_cents"`
	RemainingExpensesCents int64   `json:"remaining_expenses_cents"`
	TotalIncomeCents       int64   `json:"total_income_cents"`
	RemainingIncomeCents   int64   `json:"remaining_income_cents"`
}

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		badRequest(w, "user_id is required")
		return
	}
	ref, err := refParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	state, err := s.overviews.MoneyState(r.Context(), userID, ref)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, moneyStatePayload{
		BalanceCents:           state.Balance.Cents,
		Budget:                 state.Budget,
		TotalExpensesCents:     state.TotalExpenses.Cents,
		RemainingExpensesCents: state.RemainingExpenses.Cents,
		TotalIncomeCents:       state.TotalIncome.Cents,
		RemainingIncomeCents:   state.RemainingIncome.Cents,
	})
}

type createTransactionRequest struct {
	Kind        string `json:"kind"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
}

type createdPayload struct {
	ID int64 `json:"id"`
}

func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		badRequest(w, "user_id is required")
		return
	}

	var req createTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := core.ParseISO(strings.TrimSpace(req.Date))
	if err != nil {
		writeError(w, r, err)
		return
	}

	tx := core.Transaction{
		UserID:      userID,
		Kind:        core.Kind(strings.TrimSpace(req.Kind)),
		Type:        strings.TrimSpace(req.Type),
		Description: strings.TrimSpace(req.Description),
		Amount:      core.Money{Cents: cents},
		Date:        date,
	}

	id, err := s.ledger.CreateTransaction(r.Context(), tx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdPayload{ID: id})
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		badRequest(w, "user_id is required")
		return
	}
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid transaction id")
		return
	}

	if err := s.ledger.DeleteTransaction(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createRecurringRequest struct {
	Kind        string `json:"kind"`
	Type        string `json:"type"`
	Description string `json:"description"`
	DayOfMonth  int    `json:"day_of_month"`
	Amount      string `json:"amount"`
	Months      []int  `json:"months"`
	Year        int    `json:"year"`
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		badRequest(w, "user_id is required")
		return
	}

	var req createRecurringRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	year := req.Year
	if year == 0 {
		year = core.Today().Year()
	}
	months := make([]time.Month, 0, len(req.Months))
	for _, m := range req.Months {
		months = append(months, time.Month(m))
	}

	slots, err := services.MaterializeSlots(year, req.DayOfMonth, months, core.Money{Cents: cents})
	if err != nil {
		writeError(w, r, err)
		return
	}

	tpl := core.RecurringTemplate{
		UserID:      userID,
		Kind:        core.Kind(strings.TrimSpace(req.Kind)),
		Type:        strings.TrimSpace(req.Type),
		Description: strings.TrimSpace(req.Description),
		DayOfMonth:  req.DayOfMonth,
		Slots:       slots,
	}

	id, err := s.ledger.CreateRecurringTemplate(r.Context(), tpl)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdPayload{ID: id})
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		badRequest(w, "user_id is required")
		return
	}
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid template id")
		return
	}

	if err := s.ledger.DeleteRecurringTemplate(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateSlotRequest struct {
	Amount string `json:"amount"`
	Date   string `json:"date"`
}

// handleUpdateRecurringSlot overwrites one month's occurrence of a template.
// The other months of the template are untouched by this operation.
func (s *Server) handleUpdateRecurringSlot(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		badRequest(w, "user_id is required")
		return
	}
	id, ok := pathID(r)
	if !ok {
		badRequest(w, "invalid template id")
		return
	}
	month, err := strconv.Atoi(r.PathValue("month"))
	if err != nil {
		badRequest(w, "invalid month")
		return
	}

	var req updateSlotRequest
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := core.ParseISO(strings.TrimSpace(req.Date))
	if err != nil {
		writeError(w, r, err)
		return
	}

	slot := core.Slot{Amount: core.Money{Cents: cents}, Date: date}
	if err := s.ledger.UpdateRecurringSlot(r.Context(), userID, id, time.Month(month), slot); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type settingsPayload struct {
	ClosingDay   int   `json:"closing_day"`
	BalanceCents int64 `json:"balance_cents"`
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		badRequest(w, "user_id is required")
		return
	}

	settings, err := s.overviews.Settings(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsPayload{
		ClosingDay:   settings.ClosingDay,
		BalanceCents: settings.Balance.Cents,
	})
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDParam(r)
	if !ok {
		badRequest(w, "user_id is required")
		return
	}

	var req settingsPayload
	if err := decodeBody(r, &req); err != nil {
		badRequest(w, "invalid request body: "+err.Error())
		return
	}

	settings := core.Settings{
		UserID:     userID,
		ClosingDay: req.ClosingDay,
		Balance:    core.Money{Cents: req.BalanceCents},
	}
	if err := s.ledger.UpdateSettings(r.Context(), settings); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsPayload{
		ClosingDay:   settings.ClosingDay,
		BalanceCents: settings.Balance.Cents,
	})
}
