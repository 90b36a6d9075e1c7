package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"boxoffice/entity"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func CreateEventsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS events (
		event_id UUID PRIMARY KEY,
		name VARCHAR(200) NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		event_type VARCHAR(20) NOT NULL DEFAULT 'other',
		starts_at TIMESTAMP WITH TIME ZONE NOT NULL,
		location VARCHAR(200) NOT NULL DEFAULT '',
		total_capacity INTEGER NOT NULL CHECK (total_capacity >= 0),
		available INTEGER NOT NULL CHECK (available >= 0),
		price_amount NUMERIC(10, 2) NOT NULL,
		price_currency CHAR(3) NOT NULL,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
		updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);`)
	return err
}

// EventRepo is the inventory store. Each event row carries the shared
// availability counter that purchases contend on.
type EventRepo struct {
	db       *sqlx.DB
	lockWait time.Duration
}

func NewEventRepo(db *sqlx.DB, lockWait time.Duration) EventRepo {
	return EventRepo{
		db:       db,
		lockWait: lockWait,
	}
}

func (r EventRepo) Add(ctx context.Context, ev entity.Event) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO events
		(event_id, name, description, event_type, starts_at, location,
		total_capacity, available, price_amount, price_currency, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);`,
		ev.ID, ev.Name, ev.Description, ev.EventType, ev.StartsAt, ev.Location,
		ev.TotalCapacity, ev.Available, ev.Price.Amount, ev.Price.Currency, ev.Active)
	return err
}

func (r EventRepo) Get(ctx context.Context, eventID string) (entity.Event, error) {
	row := r.db.QueryRowxContext(ctx, `SELECT event_id, name, description, event_type,
		starts_at, location, total_capacity, available, price_amount, price_currency, active
		FROM events WHERE event_id = $1`, eventID)

	return scanEvent(row)
}

func (r EventRepo) ListActive(ctx context.Context) ([]entity.Event, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT event_id, name, description, event_type,
		starts_at, location, total_capacity, available, price_amount, price_currency, active
		FROM events WHERE active ORDER BY starts_at`)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var events []entity.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}

		events = append(events, ev)
	}

	return events, rows.Err()
}

// Availability is a lock-free point-in-time read. It may lag committed
// purchases if served from a replica.
func (r EventRepo) Availability(ctx context.Context, eventID string) (available, totalCapacity uint, err error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT available, total_capacity FROM events WHERE event_id = $1`, eventID)

	if err := row.Scan(&available, &totalCapacity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, entity.ErrEventNotFound
		}
		return 0, 0, fmt.Errorf("scanning availability: %w", err)
	}

	return available, totalCapacity, nil
}

// GetForUpdate locks the event's inventory row for the rest of the
// transaction. The wait is bounded by lock_timeout so contention
// surfaces as ErrLockTimeout instead of blocking indefinitely.
func (r EventRepo) GetForUpdate(ctx context.Context, tx *sql.Tx, eventID string) (entity.Event, error) {
	_, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", r.lockWait.Milliseconds()))
	if err != nil {
		return entity.Event{}, fmt.Errorf("setting lock timeout: %w", err)
	}

	row := tx.QueryRowContext(ctx, `SELECT event_id, name, description, event_type,
		starts_at, location, total_capacity, available, price_amount, price_currency, active
		FROM events WHERE event_id = $1 FOR UPDATE`, eventID)

	ev, err := scanEvent(row)
	if err != nil {
		if isLockNotAvailable(err) {
			return entity.Event{}, entity.ErrLockTimeout
		}
		return entity.Event{}, err
	}

	return ev, nil
}

// Decrement applies the availability decrement under the lock held by
// GetForUpdate. The guard re-checks the counter in the same statement,
// so check and decrement are indivisible.
func (r EventRepo) Decrement(ctx context.Context, tx *sql.Tx, eventID string, quantity uint) error {
	res, err := tx.ExecContext(ctx, `UPDATE events
		SET available = available - $2, updated_at = now()
		WHERE event_id = $1 AND available >= $2`, eventID, quantity)
	if err != nil {
		return fmt.Errorf("decrementing availability: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return entity.ErrInsufficientInventory
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (entity.Event, error) {
	var ev entity.Event
	err := row.Scan(&ev.ID, &ev.Name, &ev.Description, &ev.EventType,
		&ev.StartsAt, &ev.Location, &ev.TotalCapacity, &ev.Available,
		&ev.Price.Amount, &ev.Price.Currency, &ev.Active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entity.Event{}, entity.ErrEventNotFound
		}
		return entity.Event{}, fmt.Errorf("scanning event: %w", err)
	}

	return ev, nil
}
