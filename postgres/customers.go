package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"boxoffice/entity"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func CreateCustomersTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS customers (
		customer_id UUID PRIMARY KEY,
		username VARCHAR(150) NOT NULL UNIQUE,
		email VARCHAR(255) NOT NULL,
		phone VARCHAR(20) NOT NULL DEFAULT '',
		birth_date DATE NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);`)
	return err
}

type CustomerRepo struct {
	db *sqlx.DB
}

func NewCustomerRepo(db *sqlx.DB) CustomerRepo {
	return CustomerRepo{
		db: db,
	}
}

func (r CustomerRepo) Add(ctx context.Context, c entity.Customer) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO customers
		(customer_id, username, email, phone, birth_date)
		VALUES ($1, $2, $3, $4, $5);`,
		c.ID, c.Username, c.Email, c.Phone, c.BirthDate)
	return err
}

func (r CustomerRepo) Get(ctx context.Context, customerID string) (entity.Customer, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT customer_id, username, email, phone, birth_date
		FROM customers WHERE customer_id = $1`, customerID)

	var c entity.Customer
	if err := row.Scan(&c.ID, &c.Username, &c.Email, &c.Phone, &c.BirthDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Customer{}, entity.ErrCustomerNotFound
		}
		return entity.Customer{}, fmt.Errorf("scanning customer: %w", err)
	}

	return c, nil
}

// Resolve maps a user identity to the customer record it owns.
func (r CustomerRepo) Resolve(ctx context.Context, username string) (string, error) {
	row := r.db.QueryRowContext(ctx, `SELECT customer_id FROM customers WHERE username = $1`, username)

	var customerID string
	if err := row.Scan(&customerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", entity.ErrCustomerNotFound
		}
		return "", fmt.Errorf("scanning customer id: %w", err)
	}

	return customerID, nil
}
