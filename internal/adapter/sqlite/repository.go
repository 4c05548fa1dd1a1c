package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/neomorfeo/provisiq/internal/domain"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// CustomerRepository implements domain.CustomerRepository using SQLite.
//
// The pool is limited to a single connection, so a transaction holds the only
// connection for its whole read-modify-write cycle: concurrent Transact calls
// serialize instead of interleaving, which is what makes lost updates
// impossible without row locks.
type CustomerRepository struct {
	store
	db *sql.DB
}

// Compile-time check: CustomerRepository implements domain.CustomerRepository.
var _ domain.CustomerRepository = (*CustomerRepository)(nil)

// New opens a SQLite database, runs migrations, and returns a ready repository.
func New(dataSourceName string) (*CustomerRepository, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1)

	// Enable WAL mode for crash consistency without blocking readers.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Bound lock waits so a crashed writer cannot hang callers forever.
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and returns
// a ready repository. Use this when the *sql.DB has been pre-configured (e.g.,
// with otelsql instrumentation). The pool must be limited to one connection.
func NewFromDB(db *sql.DB) (*CustomerRepository, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &CustomerRepository{store: store{q: db}, db: db}, nil
}

// Close closes the underlying database connection.
func (r *CustomerRepository) Close() error {
	return r.db.Close()
}

// DB returns the underlying database connection for use by other adapters
// (e.g., river).
func (r *CustomerRepository) DB() *sql.DB {
	return r.db
}

// Transact runs fn inside a transaction. The transaction checks out the sole
// pooled connection, so fn's reads and writes execute as one exclusive unit
// against all other repository calls. fn returning an error rolls back.
func (r *CustomerRepository) Transact(ctx context.Context, fn func(domain.CustomerStore) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("beginning transaction", err)
	}

	if err := fn(&store{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back after %w: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return unavailable("committing transaction", err)
	}

	return nil
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

const timeFormat = "2006-01-02T15:04:05Z"

// querier is satisfied by *sql.DB (snapshot reads) and *sql.Tx (Transact).
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// store implements domain.CustomerStore over a querier, so the same query code
// serves both snapshot reads on the pool and exclusive access inside Transact.
type store struct {
	q querier
}

const customerColumns = `email, subdomain, billing_customer_id, billing_subscription_id, status, created_at, updated_at`

func (s *store) List(ctx context.Context) ([]domain.Customer, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+customerColumns+` FROM customers ORDER BY created_at DESC`)
	if err != nil {
		return nil, unavailable("listing customers", err)
	}
	defer rows.Close()

	var customers []domain.Customer
	for rows.Next() {
		c, err := scanCustomerFromRows(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}

	return customers, rows.Err()
}

func (s *store) GetByEmail(ctx context.Context, email string) (domain.Customer, error) {
	return scanCustomer(s.q.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE email = ?`,
		domain.NormalizeEmail(email),
	))
}

func (s *store) GetBySubdomain(ctx context.Context, subdomain string) (domain.Customer, error) {
	return scanCustomer(s.q.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE subdomain = ?`, subdomain,
	))
}

func (s *store) GetBySubscriptionID(ctx context.Context, subscriptionID string) (domain.Customer, error) {
	// Records without a billing subscription store the empty string; an
	// empty key must not match them.
	if subscriptionID == "" {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}

	return scanCustomer(s.q.QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE billing_subscription_id = ?`,
		subscriptionID,
	))
}

func (s *store) Create(ctx context.Context, c domain.Customer) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO customers (`+customerColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Email, nullable(c.Subdomain), c.BillingCustomerID, c.BillingSubscriptionID,
		string(c.Status),
		c.CreatedAt.Format(timeFormat),
		c.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.DuplicateEmailError{Email: c.Email}
		}
		return unavailable("inserting customer", err)
	}
	return nil
}

func (s *store) SetProvisioned(ctx context.Context, email, subdomain string, status domain.Status) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE customers SET subdomain = ?, status = ?, updated_at = ?
		 WHERE email = ?`,
		subdomain, string(status),
		time.Now().UTC().Format(timeFormat),
		domain.NormalizeEmail(email),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("subdomain %q already assigned: %w", subdomain, err)
		}
		return unavailable("recording provisioned customer", err)
	}

	return checkRowAffected(result)
}

func (s *store) SetStatus(ctx context.Context, subdomain string, status domain.Status) error {
	result, err := s.q.ExecContext(ctx,
		`UPDATE customers SET status = ?, updated_at = ? WHERE subdomain = ?`,
		string(status),
		time.Now().UTC().Format(timeFormat),
		subdomain,
	)
	if err != nil {
		return unavailable("updating customer status", err)
	}

	return checkRowAffected(result)
}

func (s *store) Remove(ctx context.Context, email string) error {
	// Only placeholders are removable: records that acquired a subdomain
	// are kept forever for audit.
	result, err := s.q.ExecContext(ctx,
		`DELETE FROM customers WHERE email = ? AND subdomain IS NULL`,
		domain.NormalizeEmail(email),
	)
	if err != nil {
		return unavailable("removing placeholder", err)
	}

	return checkRowAffected(result)
}

func checkRowAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return unavailable("checking rows affected", err)
	}
	if rows == 0 {
		return domain.ErrCustomerNotFound
	}
	return nil
}

// scanCustomer scans a single row from QueryRow into a domain.Customer.
func scanCustomer(row *sql.Row) (domain.Customer, error) {
	var c domain.Customer
	var subdomain sql.NullString
	var status, createdAt, updatedAt string

	err := row.Scan(&c.Email, &subdomain, &c.BillingCustomerID, &c.BillingSubscriptionID,
		&status, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, unavailable("scanning customer", err)
	}

	c.Subdomain = subdomain.String
	c.Status = domain.Status(status)
	c.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	c.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return c, nil
}

// scanCustomerFromRows scans a single row from Rows (used in List).
func scanCustomerFromRows(rows *sql.Rows) (domain.Customer, error) {
	var c domain.Customer
	var subdomain sql.NullString
	var status, createdAt, updatedAt string

	err := rows.Scan(&c.Email, &subdomain, &c.BillingCustomerID, &c.BillingSubscriptionID,
		&status, &createdAt, &updatedAt)
	if err != nil {
		return domain.Customer{}, unavailable("scanning customer row", err)
	}

	c.Subdomain = subdomain.String
	c.Status = domain.Status(status)
	c.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	c.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return c, nil
}

// nullable maps an unassigned subdomain to NULL so the UNIQUE index permits
// any number of in-flight placeholders.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// unavailable tags driver-level failures so callers can distinguish a broken
// store from domain conditions like not-found.
func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrStoreUnavailable, op, err)
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint violation.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
