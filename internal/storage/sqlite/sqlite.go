// Package sqlite stores users, categories and expenses in a SQLite file
// through the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"spendwise/internal/core"
	"spendwise/internal/storage"

	_ "modernc.org/sqlite"
)

type Repository struct {
	db  *sql.DB
	now func() time.Time
}

var _ storage.Store = (*Repository)(nil)

func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

type scanner interface {
	Scan(dest ...any) error
}

// Users

const userColumns = `id, name, email, image, google_id, created_at, updated_at`

func scanUser(row scanner) (core.User, error) {
	var (
		u                core.User
		created, updated int64
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Image, &u.GoogleID, &created, &updated); err != nil {
		return core.User{}, err
	}
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return u, nil
}

func (r *Repository) UpsertUser(ctx context.Context, u core.User) (core.User, error) {
	now := toMillis(r.now())
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, image, google_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			name = excluded.name,
			image = excluded.image,
			google_id = excluded.google_id,
			updated_at = excluded.updated_at`,
		uuid.NewString(), u.Name, strings.ToLower(u.Email), u.Image, u.GoogleID, now, now)
	if err != nil {
		return core.User{}, fmt.Errorf("upsert user: %w", err)
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, strings.ToLower(u.Email))
	saved, err := scanUser(row)
	if err != nil {
		return core.User{}, fmt.Errorf("load upserted user: %w", err)
	}

	slog.InfoContext(ctx, "User signed in", "user_id", saved.ID)
	return saved, nil
}

func (r *Repository) GetUser(ctx context.Context, id string) (core.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrUserNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Categories

const categoryColumns = `id, user_id, name, color, icon, created_at, updated_at`

func scanCategory(row scanner) (core.Category, error) {
	var (
		c                core.Category
		created, updated int64
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Color, &c.Icon, &created, &updated); err != nil {
		return core.Category{}, err
	}
	c.CreatedAt = fromMillis(created)
	c.UpdatedAt = fromMillis(updated)
	return c, nil
}

func (r *Repository) ListCategories(ctx context.Context, userID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? ORDER BY name ASC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := make([]core.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) GetCategory(ctx context.Context, userID, id string) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrCategoryNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (r *Repository) FindCategoryByName(ctx context.Context, userID, name string) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE user_id = ? AND name = ?`, userID, name)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrCategoryNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("find category: %w", err)
	}
	return c, nil
}

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	now := r.now()
	c.ID = uuid.NewString()
	c.CreatedAt = fromMillis(toMillis(now))
	c.UpdatedAt = c.CreatedAt

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, user_id, name, color, icon, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Color, c.Icon, toMillis(now), toMillis(now))
	if isUniqueViolation(err) {
		return core.Category{}, core.ErrCategoryExists
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE categories SET name = ?, color = ?, icon = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		c.Name, c.Color, c.Icon, toMillis(r.now()), c.ID, c.UserID)
	if isUniqueViolation(err) {
		return core.Category{}, core.ErrCategoryExists
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Category{}, core.ErrCategoryNotFound
	}
	return r.GetCategory(ctx, c.UserID, c.ID)
}

func (r *Repository) DeleteCategory(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrCategoryNotFound
	}
	return nil
}

// Expenses

const expenseColumns = `id, user_id, category_id, amount_cents, description, place, date, created_at, updated_at`

func scanExpense(row scanner) (core.Expense, error) {
	var (
		e                      core.Expense
		date, created, updated int64
	)
	if err := row.Scan(&e.ID, &e.UserID, &e.CategoryID, &e.Amount.Cents, &e.Description, &e.Place,
		&date, &created, &updated); err != nil {
		return core.Expense{}, err
	}
	e.Date = fromMillis(date)
	e.CreatedAt = fromMillis(created)
	e.UpdatedAt = fromMillis(updated)
	return e, nil
}

func expenseFilter(userID string, q storage.ExpenseQuery) (string, []any) {
	where := []string{"user_id = ?"}
	args := []any{userID}
	if q.From != nil {
		where = append(where, "date >= ?")
		args = append(args, toMillis(*q.From))
	}
	if q.To != nil {
		where = append(where, "date <= ?")
		args = append(args, toMillis(*q.To))
	}
	if q.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, q.CategoryID)
	}
	return strings.Join(where, " AND "), args
}

func (r *Repository) ListExpenses(ctx context.Context, userID string, q storage.ExpenseQuery) ([]core.Expense, int64, error) {
	where, args := expenseFilter(userID, q)

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count expenses: %w", err)
	}

	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE ` + where +
		` ORDER BY date DESC, created_at DESC, id DESC`
	if q.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, q.Limit, q.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, total, nil
}

func (r *Repository) GetExpense(ctx context.Context, userID, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	now := fromMillis(toMillis(r.now()))
	e.ID = uuid.NewString()
	e.Date = fromMillis(toMillis(e.Date))
	e.CreatedAt = now
	e.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, user_id, category_id, amount_cents, description, place, date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.CategoryID, e.Amount.Cents, e.Description, e.Place,
		toMillis(e.Date), toMillis(now), toMillis(now))
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"amount_cents", e.Amount.Cents,
		"category_id", e.CategoryID)
	return e, nil
}

func (r *Repository) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses
		SET category_id = ?, amount_cents = ?, description = ?, place = ?, date = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		e.CategoryID, e.Amount.Cents, e.Description, e.Place, toMillis(e.Date), toMillis(r.now()),
		e.ID, e.UserID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	return r.GetExpense(ctx, e.UserID, e.ID)
}

func (r *Repository) DeleteExpense(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrExpenseNotFound
	}
	return nil
}

func (r *Repository) CountExpensesByCategory(ctx context.Context, userID, categoryID string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM expenses WHERE user_id = ? AND category_id = ?`, userID, categoryID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count expenses by category: %w", err)
	}
	return n, nil
}
