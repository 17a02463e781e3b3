package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pointvest/pointvest/internal/account"
	"github.com/pointvest/pointvest/internal/apperr"
	"github.com/pointvest/pointvest/internal/ledger"
	"github.com/pointvest/pointvest/internal/transaction"
)

const (
	userColumns = `id, role, status, referred_by, balance_primary, balance_secondary, created_at`
	txColumns   = `id, user_id, type, amount_primary, amount_secondary, fee_amount, status, approved_by,
        created_at, completed_at, notes, product_id, payment_method, address, network`
	subColumns = `id, user_id, product_id, purchase_date, expires_at, auto_renew, is_active, last_accrued_on, renewal_count`
)

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists state in PostgreSQL. Units lock the rows they read
// with SELECT ... FOR UPDATE.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a store backed by PostgreSQL.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if err := fn(&postgresTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) CreateUser(ctx context.Context, u account.User) error {
	if err := u.Balances.Validate(); err != nil {
		return err
	}
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Role, u.Status, u.ReferredBy, u.Primary, u.Secondary, createdAt.UTC())
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return apperr.Validation("user %s already exists", u.ID)
	}
	return err
}

func (s *PostgresStore) User(ctx context.Context, id string) (account.User, error) {
	return selectUser(ctx, s.db, id, "")
}

func (s *PostgresStore) ActiveUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM users WHERE status = $1 ORDER BY id`, account.StatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) Transaction(ctx context.Context, id string) (transaction.Transaction, error) {
	return selectTransaction(ctx, s.db, id, "")
}

func (s *PostgresStore) ListTransactions(ctx context.Context, f transaction.Filter) ([]transaction.Transaction, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	query := `SELECT ` + txColumns + ` FROM transactions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, f.PageSize(), f.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []transaction.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertTransaction(ctx context.Context, t transaction.Transaction) error {
	return insertTransaction(ctx, s.db, t)
}

func (s *PostgresStore) Subscriptions(ctx context.Context, userID string) ([]account.Subscription, error) {
	return selectSubscriptions(ctx, s.db, userID, "")
}

func (s *PostgresStore) UpdateAutoRenew(ctx context.Context, userID, subscriptionID string, autoRenew bool) (account.Subscription, error) {
	row := s.db.QueryRow(ctx, `UPDATE subscriptions SET auto_renew = $3 WHERE id = $1 AND user_id = $2
        RETURNING `+subColumns, subscriptionID, userID, autoRenew)
	sub, err := scanSubscription(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return account.Subscription{}, apperr.NotFound("subscription", subscriptionID)
	}
	return sub, err
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) User(ctx context.Context, id string) (account.User, error) {
	return selectUser(ctx, t.tx, id, " FOR UPDATE")
}

func (t *postgresTx) UpdateBalances(ctx context.Context, userID string, b ledger.Balances) error {
	if err := b.Validate(); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `UPDATE users SET balance_primary = $2, balance_secondary = $3 WHERE id = $1`,
		userID, b.Primary, b.Secondary)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("user", userID)
	}
	return nil
}

func (t *postgresTx) Transaction(ctx context.Context, id string) (transaction.Transaction, error) {
	return selectTransaction(ctx, t.tx, id, " FOR UPDATE")
}

func (t *postgresTx) InsertTransaction(ctx context.Context, rec transaction.Transaction) error {
	return insertTransaction(ctx, t.tx, rec)
}

func (t *postgresTx) FinalizeTransaction(ctx context.Context, rec transaction.Transaction) error {
	tag, err := t.tx.Exec(ctx, `UPDATE transactions
        SET status = $2, approved_by = $3, completed_at = $4, notes = $5, fee_amount = $6
        WHERE id = $1 AND status = 'pending'`,
		rec.ID, rec.Status, rec.ApprovedBy, rec.CompletedAt, rec.Notes, rec.FeeAmount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := t.Transaction(ctx, rec.ID); err != nil {
			return err
		}
		return apperr.ErrAlreadyProcessed
	}
	return nil
}

func (t *postgresTx) UpdateNotes(ctx context.Context, id, notes string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE transactions SET notes = $2 WHERE id = $1`, id, notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("transaction", id)
	}
	return nil
}

func (t *postgresTx) CountTransactions(ctx context.Context, userID string, typ transaction.Type) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE user_id = $1 AND type = $2`, userID, typ).Scan(&n)
	return n, err
}

func (t *postgresTx) Subscriptions(ctx context.Context, userID string) ([]account.Subscription, error) {
	return selectSubscriptions(ctx, t.tx, userID, " FOR UPDATE")
}

func (t *postgresTx) InsertSubscription(ctx context.Context, s account.Subscription) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO subscriptions (`+subColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.UserID, s.ProductID, s.PurchaseDate.UTC(), s.ExpiresAt.UTC(), s.AutoRenew, s.IsActive,
		nullableDay(s.LastAccruedOn), s.RenewalCount)
	return err
}

func (t *postgresTx) UpdateSubscription(ctx context.Context, s account.Subscription) error {
	tag, err := t.tx.Exec(ctx, `UPDATE subscriptions
        SET expires_at = $2, auto_renew = $3, is_active = $4, last_accrued_on = $5, renewal_count = $6
        WHERE id = $1`,
		s.ID, s.ExpiresAt.UTC(), s.AutoRenew, s.IsActive, nullableDay(s.LastAccruedOn), s.RenewalCount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("subscription", s.ID)
	}
	return nil
}

func selectUser(ctx context.Context, q queryer, id, lock string) (account.User, error) {
	row := q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`+lock, id)
	var u account.User
	err := row.Scan(&u.ID, &u.Role, &u.Status, &u.ReferredBy, &u.Primary, &u.Secondary, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return account.User{}, apperr.NotFound("user", id)
	}
	if err != nil {
		return account.User{}, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func selectTransaction(ctx context.Context, q queryer, id, lock string) (transaction.Transaction, error) {
	row := q.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`+lock, id)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return transaction.Transaction{}, apperr.NotFound("transaction", id)
	}
	return t, err
}

func insertTransaction(ctx context.Context, q queryer, t transaction.Transaction) error {
	_, err := q.Exec(ctx, `INSERT INTO transactions (`+txColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		t.ID, t.UserID, t.Type, t.AmountPrimary, t.AmountSecondary, t.FeeAmount, t.Status, t.ApprovedBy,
		t.CreatedAt.UTC(), t.CompletedAt, t.Notes, t.ProductID, t.PaymentMethod, t.Address, t.Network)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return apperr.NotFound("user", t.UserID)
	}
	return err
}

func scanTransaction(row pgx.Row) (transaction.Transaction, error) {
	var t transaction.Transaction
	err := row.Scan(&t.ID, &t.UserID, &t.Type, &t.AmountPrimary, &t.AmountSecondary, &t.FeeAmount, &t.Status,
		&t.ApprovedBy, &t.CreatedAt, &t.CompletedAt, &t.Notes, &t.ProductID, &t.PaymentMethod, &t.Address, &t.Network)
	if err != nil {
		return transaction.Transaction{}, err
	}
	t.CreatedAt = t.CreatedAt.UTC()
	if t.CompletedAt != nil {
		completed := t.CompletedAt.UTC()
		t.CompletedAt = &completed
	}
	return t, nil
}

func selectSubscriptions(ctx context.Context, q queryer, userID, lock string) ([]account.Subscription, error) {
	rows, err := q.Query(ctx, `SELECT `+subColumns+` FROM subscriptions WHERE user_id = $1
        ORDER BY purchase_date, id`+lock, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []account.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func scanSubscription(row pgx.Row) (account.Subscription, error) {
	var (
		s         account.Subscription
		accruedOn *time.Time
	)
	err := row.Scan(&s.ID, &s.UserID, &s.ProductID, &s.PurchaseDate, &s.ExpiresAt, &s.AutoRenew, &s.IsActive,
		&accruedOn, &s.RenewalCount)
	if err != nil {
		return account.Subscription{}, err
	}
	s.PurchaseDate = s.PurchaseDate.UTC()
	s.ExpiresAt = s.ExpiresAt.UTC()
	if accruedOn != nil {
		s.LastAccruedOn = account.Day(*accruedOn)
	}
	return s, nil
}

func nullableDay(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	d := account.Day(t)
	return &d
}
