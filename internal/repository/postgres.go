// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/expense-tracker/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserNotFound возвращается, если пользователь не найден.
var (
	ErrUserNotFound = errors.New("user not found")
	// ErrInvoiceNotFound возвращается, если счёт с указанным идентификатором не найден.
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrUnknownCustomer возвращается, если счёт ссылается на несуществующего клиента.
	ErrUnknownCustomer = errors.New("unknown customer")
	// ErrInvalidInvoiceID возвращается при вставке счёта с идентификатором не в формате UUID.
	ErrInvalidInvoiceID = errors.New("invalid invoice id")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// classifyInvoiceError выделяет ошибки ссылок на клиента из прочих ошибок БД.
// Идентификатор счёта проверяется до запроса, поэтому ошибка разбора UUID относится к customer_id.
func classifyInvoiceError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.ForeignKeyViolation, pgerrcode.InvalidTextRepresentation:
			return fmt.Errorf("%s: %w: %s", op, ErrUnknownCustomer, pgErr.Message)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// CreateUser создаёт пользователя, если пользователя с таким email ещё нет.
func (r *PostgresRepository) CreateUser(ctx context.Context, name, email string, passwordHash []byte) (bool, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`INSERT INTO users (name, email, password_hash) VALUES ($1, $2, $3) ON CONFLICT (email) DO NOTHING`,
		name, email, string(passwordHash),
	)
	if err != nil {
		return false, fmt.Errorf("create user: %w", err)
	}
	return cmdTag.RowsAffected() == 1, nil
}

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, email, password_hash FROM users WHERE email = $1`,
		email,
	)

	var (
		u    model.User
		hash string
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.PasswordHash = []byte(hash)

	return &u, nil
}

// ListCustomers возвращает клиентов, отсортированных по имени.
func (r *PostgresRepository) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id::text, name, email, image_url FROM customers ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("select customers: %w", err)
	}
	defer rows.Close()

	var res []model.Customer
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.ImageURL); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// InsertInvoice сохраняет счёт и возвращает признак того, что строка была вставлена.
// Повторная вставка с тем же идентификатором ничего не делает.
func (r *PostgresRepository) InsertInvoice(ctx context.Context, inv model.Invoice) (bool, error) {
	var (
		cmdTag pgconn.CommandTag
		err    error
	)

	if err := uuid.Validate(inv.ID); err != nil {
		return false, fmt.Errorf("insert invoice %q: %w", inv.ID, ErrInvalidInvoiceID)
	}

	if inv.ReceiptKey == "" {
		cmdTag, err = r.pool.Exec(ctx,
			`INSERT INTO invoices (id, customer_id, amount, status, date)
			 VALUES ($1, $2, $3, $4::invoice_status, $5)
			 ON CONFLICT (id) DO NOTHING`,
			inv.ID, inv.CustomerID, inv.AmountCents, string(inv.Status), inv.Date,
		)
	} else {
		cmdTag, err = r.pool.Exec(ctx,
			`INSERT INTO invoices (id, customer_id, amount, status, receipt_id, date)
			 VALUES ($1, $2, $3, $4::invoice_status, $5, $6)
			 ON CONFLICT (id) DO NOTHING`,
			inv.ID, inv.CustomerID, inv.AmountCents, string(inv.Status), inv.ReceiptKey, inv.Date,
		)
	}
	if err != nil {
		return false, classifyInvoiceError("insert invoice", err)
	}

	return cmdTag.RowsAffected() == 1, nil
}

// UpdateInvoice обновляет поля счёта. Пустой ReceiptID очищает ссылку на чек.
// Дата счёта не изменяется.
func (r *PostgresRepository) UpdateInvoice(ctx context.Context, id string, f model.InvoiceFields) error {
	// не-UUID идентификатор не может совпасть ни с одной строкой
	if uuid.Validate(id) != nil {
		return nil
	}

	var err error
	if f.ReceiptID != "" {
		_, err = r.pool.Exec(ctx,
			`UPDATE invoices
			 SET customer_id = $2, amount = $3, status = $4::invoice_status, receipt_id = $5
			 WHERE id = $1`,
			id, f.CustomerID, f.AmountCents, string(f.Status), f.ReceiptID,
		)
	} else {
		_, err = r.pool.Exec(ctx,
			`UPDATE invoices
			 SET customer_id = $2, amount = $3, status = $4::invoice_status, receipt_id = NULL
			 WHERE id = $1`,
			id, f.CustomerID, f.AmountCents, string(f.Status),
		)
	}
	if err != nil {
		return classifyInvoiceError("update invoice", err)
	}

	return nil
}

// DeleteInvoice удаляет счёт. Отсутствие строки ошибкой не считается.
func (r *PostgresRepository) DeleteInvoice(ctx context.Context, id string) error {
	if uuid.Validate(id) != nil {
		return nil
	}

	if _, err := r.pool.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}

	return nil
}

// GetInvoice возвращает счёт по идентификатору.
func (r *PostgresRepository) GetInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	if uuid.Validate(id) != nil {
		return nil, ErrInvoiceNotFound
	}

	row := r.pool.QueryRow(ctx,
		`SELECT id::text, customer_id::text, amount, status::text, receipt_id, date
		 FROM invoices
		 WHERE id = $1`,
		id,
	)

	var (
		inv     model.Invoice
		status  string
		receipt *string
	)
	err := row.Scan(&inv.ID, &inv.CustomerID, &inv.AmountCents, &status, &receipt, &inv.Date)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	inv.Status = model.InvoiceStatus(status)
	if receipt != nil {
		inv.ReceiptKey = *receipt
	}

	return &inv, nil
}

// ListInvoices возвращает счета вместе с данными клиентов, новые первыми.
func (r *PostgresRepository) ListInvoices(ctx context.Context) ([]model.InvoiceView, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT i.id::text, c.id::text, c.name, c.email, i.amount, i.status::text, i.receipt_id, i.date
		 FROM invoices i
		 JOIN customers c ON c.id = i.customer_id
		 ORDER BY i.date DESC, i.id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select invoices: %w", err)
	}
	defer rows.Close()

	var res []model.InvoiceView
	for rows.Next() {
		var (
			v       model.InvoiceView
			status  string
			receipt *string
			date    time.Time
		)
		if err := rows.Scan(&v.ID, &v.CustomerID, &v.CustomerName, &v.Email, &v.AmountCents, &status, &receipt, &date); err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}

		v.Status = model.InvoiceStatus(status)
		v.Date = date.Format(model.DateLayout)
		if receipt != nil {
			v.ReceiptKey = *receipt
		}
		res = append(res, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
