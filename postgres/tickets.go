package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"boxoffice/entity"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func CreateTicketsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS tickets (
		ticket_id UUID PRIMARY KEY,
		ticket_code VARCHAR(20) NOT NULL UNIQUE,
		event_id UUID NOT NULL REFERENCES events (event_id),
		customer_id UUID REFERENCES customers (customer_id),
		status VARCHAR(20) NOT NULL DEFAULT 'available',
		price_amount NUMERIC(10, 2) NOT NULL,
		price_currency CHAR(3) NOT NULL,
		purchased_at TIMESTAMP WITH TIME ZONE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS tickets_customer_id_idx ON tickets (customer_id);`)
	return err
}

// TicketRepo is the ticket ledger: one row per issued ticket.
type TicketRepo struct {
	db *sqlx.DB
}

func NewTicketRepo(db *sqlx.DB) TicketRepo {
	return TicketRepo{
		db: db,
	}
}

// IssueBatch appends the batch in a single insert so it is
// all-or-nothing. A ticket_code collision fails the whole batch with
// ErrDuplicateCode rather than overwriting the existing ticket. The
// insert runs under a savepoint: a unique violation aborts only the
// savepoint, not the enclosing transaction, so the caller can retry
// with fresh codes.
func (r TicketRepo) IssueBatch(ctx context.Context, tx *sql.Tx, tickets []entity.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}

	var (
		placeholders []string
		args         []any
	)
	for i, t := range tickets {
		n := i * 8
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8))
		args = append(args, t.ID, t.Code, t.EventID, t.CustomerID, t.Status,
			t.Price.Amount, t.Price.Currency, t.PurchasedAt)
	}

	query := `INSERT INTO tickets
		(ticket_id, ticket_code, event_id, customer_id, status, price_amount, price_currency, purchased_at)
		VALUES ` + strings.Join(placeholders, ", ")

	if _, err := tx.ExecContext(ctx, "SAVEPOINT issue_batch"); err != nil {
		return fmt.Errorf("creating savepoint: %w", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT issue_batch"); rbErr != nil {
				return errors.Join(entity.ErrDuplicateCode, fmt.Errorf("rolling back to savepoint: %w", rbErr))
			}
			return entity.ErrDuplicateCode
		}
		return fmt.Errorf("inserting tickets: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT issue_batch"); err != nil {
		return fmt.Errorf("releasing savepoint: %w", err)
	}

	return nil
}

func (r TicketRepo) ListForCustomer(ctx context.Context, customerID string) ([]entity.Ticket, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT ticket_id, ticket_code, event_id,
		customer_id, status, price_amount, price_currency, purchased_at
		FROM tickets WHERE customer_id = $1
		ORDER BY purchased_at DESC NULLS LAST, ticket_code`, customerID)
	if err != nil {
		return nil, fmt.Errorf("querying tickets: %w", err)
	}
	defer rows.Close()

	var tickets []entity.Ticket
	for rows.Next() {
		var t entity.Ticket
		if err := rows.Scan(&t.ID, &t.Code, &t.EventID, &t.CustomerID, &t.Status,
			&t.Price.Amount, &t.Price.Currency, &t.PurchasedAt); err != nil {
			return nil, fmt.Errorf("scanning ticket: %w", err)
		}

		tickets = append(tickets, t)
	}

	return tickets, rows.Err()
}

// CountIssued reports sold and reserved tickets for an event. Together
// with the events row it backs the availability invariant:
// available == total_capacity - CountIssued.
func (r TicketRepo) CountIssued(ctx context.Context, eventID string) (uint, error) {
	row := r.db.QueryRowContext(ctx, `SELECT count(*) FROM tickets
		WHERE event_id = $1 AND status IN ('sold', 'reserved')`, eventID)

	var n uint
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("counting issued tickets: %w", err)
	}

	return n, nil
}
