// Package storage persists transactions, recurring templates and user
// settings in SQLite. It is the collaborator the computation engine reads
// from; no derived value (periods, rows, totals) is ever stored here.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"bilancio/internal/core"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row does not exist or belongs to a
// different user.
var ErrNotFound = errors.New("not found")

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListTransactions returns all live one-off entries of a user.
func (r *SQLiteRepository) ListTransactions(ctx context.Context, userID int64) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, kind, type, description, amount_cents, occurs_on
		FROM transactions
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY occurs_on DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			tx       core.Transaction
			kind     string
			occursOn string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &kind, &tx.Type, &tx.Description, &tx.Amount.Cents, &occursOn); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Kind = core.Kind(kind)
		tx.Date, err = core.ParseISO(occursOn)
		if err != nil {
			return nil, fmt.Errorf("transaction %d has corrupt date %q: %w", tx.ID, occursOn, err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

// CreateTransaction inserts a one-off entry and returns its id.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (user_id, kind, type, description, amount_cents, occurs_on)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tx.UserID, string(tx.Kind), tx.Type, tx.Description, tx.Amount.Cents, tx.Date.ISO())
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("transaction id: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved",
		"id", id,
		"user_id", tx.UserID,
		"kind", string(tx.Kind),
		"amount_cents", tx.Amount.Cents,
		"occurs_on", tx.Date.ISO())
	return id, nil
}

// DeleteTransaction soft deletes a user's entry.
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET deleted_at = datetime('now')
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`, id, userID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("transaction %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListRecurringTemplates returns a user's live templates with their month
// slots attached.
func (r *SQLiteRepository) ListRecurringTemplates(ctx context.Context, userID int64) ([]core.RecurringTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, kind, type, description, day_of_month
		FROM recurring_templates
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("query recurring templates: %w", err)
	}
	defer rows.Close()

	var templates []core.RecurringTemplate
	index := make(map[int64]int)
	for rows.Next() {
		var (
			tpl  core.RecurringTemplate
			kind string
		)
		if err := rows.Scan(&tpl.ID, &tpl.UserID, &kind, &tpl.Type, &tpl.Description, &tpl.DayOfMonth); err != nil {
			return nil, fmt.Errorf("scan recurring template: %w", err)
		}
		tpl.Kind = core.Kind(kind)
		tpl.Slots = make(map[time.Month]core.Slot)
		index[tpl.ID] = len(templates)
		templates = append(templates, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recurring templates: %w", err)
	}
	if len(templates) == 0 {
		return nil, nil
	}

	slotRows, err := r.db.QueryContext(ctx, `
		SELECT s.template_id, s.month, s.amount_cents, s.occurs_on
		FROM recurring_slots s
		JOIN recurring_templates t ON t.id = s.template_id
		WHERE t.user_id = ? AND t.deleted_at IS NULL`, userID)
	if err != nil {
		return nil, fmt.Errorf("query recurring slots: %w", err)
	}
	defer slotRows.Close()

	for slotRows.Next() {
		var (
			templateID int64
			month      int
			slot       core.Slot
			occursOn   string
		)
		if err := slotRows.Scan(&templateID, &month, &slot.Amount.Cents, &occursOn); err != nil {
			return nil, fmt.Errorf("scan recurring slot: %w", err)
		}
		slot.Date, err = core.ParseISO(occursOn)
		if err != nil {
			return nil, fmt.Errorf("template %d month %d has corrupt date %q: %w", templateID, month, occursOn, err)
		}
		if i, ok := index[templateID]; ok {
			templates[i].Slots[time.Month(month)] = slot
		}
	}
	if err := slotRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recurring slots: %w", err)
	}

	return templates, nil
}

// CreateRecurringTemplate inserts a template and its slots atomically.
func (r *SQLiteRepository) CreateRecurringTemplate(ctx context.Context, tpl core.RecurringTemplate) (int64, error) {
	dbTx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer dbTx.Rollback()

	res, err := dbTx.ExecContext(ctx, `
		INSERT INTO recurring_templates (user_id, kind, type, description, day_of_month)
		VALUES (?, ?, ?, ?, ?)`,
		tpl.UserID, string(tpl.Kind), tpl.Type, tpl.Description, tpl.DayOfMonth)
	if err != nil {
		return 0, fmt.Errorf("insert recurring template: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("recurring template id: %w", err)
	}

	for _, month := range tpl.Months() {
		slot := tpl.Slots[month]
		_, err := dbTx.ExecContext(ctx, `
			INSERT INTO recurring_slots (template_id, month, amount_cents, occurs_on)
			VALUES (?, ?, ?, ?)`,
			id, int(month), slot.Amount.Cents, slot.Date.ISO())
		if err != nil {
			return 0, fmt.Errorf("insert slot for %s: %w", month, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	slog.InfoContext(ctx, "Recurring template saved",
		"id", id,
		"user_id", tpl.UserID,
		"kind", string(tpl.Kind),
		"active_months", len(tpl.Slots))
	return id, nil
}

// DeleteRecurringTemplate soft deletes a template. Its slot rows stay in
// place but are unreachable through the template listing.
func (r *SQLiteRepository) DeleteRecurringTemplate(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_templates
		SET deleted_at = datetime('now')
		WHERE id = ? AND user_id = ? AND deleted_at IS NULL`, id, userID)
	if err != nil {
		return fmt.Errorf("delete recurring template: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete recurring template result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("recurring template %d: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateRecurringSlot overwrites one month's occurrence of a template. The
// statement touches exactly one slot row; the template's other months cannot
// be affected.
func (r *SQLiteRepository) UpdateRecurringSlot(ctx context.Context, userID, templateID int64, month int, slot core.Slot) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_slots (template_id, month, amount_cents, occurs_on)
		SELECT t.id, ?, ?, ?
		FROM recurring_templates t
		WHERE t.id = ? AND t.user_id = ? AND t.deleted_at IS NULL
		ON CONFLICT (template_id, month)
		DO UPDATE SET amount_cents = excluded.amount_cents, occurs_on = excluded.occurs_on`,
		month, slot.Amount.Cents, slot.Date.ISO(), templateID, userID)
	if err != nil {
		return fmt.Errorf("update recurring slot: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update recurring slot result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("recurring template %d: %w", templateID, ErrNotFound)
	}
	return nil
}

// ListActiveUserIDs returns every user with stored settings or live data.
// The worker uses it for its periodic warm sweep.
func (r *SQLiteRepository) ListActiveUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT user_id FROM settings
		UNION
		SELECT user_id FROM transactions WHERE deleted_at IS NULL
		UNION
		SELECT user_id FROM recurring_templates WHERE deleted_at IS NULL
		ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query user ids: %w", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user ids: %w", err)
	}
	return out, nil
}

// GetSettings returns a user's settings, falling back to defaults (closing
// day 14, zero balance) when none were stored yet.
func (r *SQLiteRepository) GetSettings(ctx context.Context, userID int64) (core.Settings, error) {
	settings := core.Settings{UserID: userID, ClosingDay: 14}
	err := r.db.QueryRowContext(ctx, `
		SELECT closing_day, balance_cents FROM settings WHERE user_id = ?`, userID).
		Scan(&settings.ClosingDay, &settings.Balance.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return settings, nil
	}
	if err != nil {
		return core.Settings{}, fmt.Errorf("query settings: %w", err)
	}
	return settings, nil
}

// UpdateSettings upserts a user's closing day and balance.
func (r *SQLiteRepository) UpdateSettings(ctx context.Context, settings core.Settings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (user_id, closing_day, balance_cents, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT (user_id)
		DO UPDATE SET closing_day = excluded.closing_day,
		              balance_cents = excluded.balance_cents,
		              updated_at = excluded.updated_at`,
		settings.UserID, settings.ClosingDay, settings.Balance.Cents)
	if err != nil {
		return fmt.Errorf("update settings: %w", err)
	}
	return nil
}
